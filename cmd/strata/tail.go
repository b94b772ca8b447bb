package main

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/strata-dev/strata/pkg/devtools"
)

func tailCmd() *cobra.Command {
	var (
		addr    string
		stores  []string
		asJSON  bool
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Stream live store events from a devtools endpoint",
		Long: `Connect to a running application's devtools WebSocket and print
every mutation and action event as it happens.

Examples:

  strata tail --addr localhost:9229
  strata tail --addr localhost:9229 --store cart --store session
  strata tail --addr localhost:9229 --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			u := url.URL{Scheme: "ws", Host: addr, Path: "/ws"}

			dialer := websocket.Dialer{HandshakeTimeout: timeout}
			conn, _, err := dialer.Dial(u.String(), nil)
			if err != nil {
				return fmt.Errorf("connecting to %s: %w", u.String(), err)
			}
			defer conn.Close()
			fmt.Fprintf(os.Stderr, "connected to %s\n", u.String())

			interrupt := make(chan os.Signal, 1)
			signal.Notify(interrupt, os.Interrupt)
			go func() {
				<-interrupt
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				conn.Close()
			}()

			filter := map[string]bool{}
			for _, id := range splitStoreArg(stores) {
				filter[id] = true
			}

			for {
				var event devtools.Event
				if err := conn.ReadJSON(&event); err != nil {
					if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
						return nil
					}
					return fmt.Errorf("stream closed: %w", err)
				}
				if len(filter) > 0 && !filter[event.StoreID] {
					continue
				}
				printEvent(event, asJSON)
			}
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "localhost:9229", "Devtools host:port")
	cmd.Flags().StringArrayVar(&stores, "store", nil, "Only show events for these store ids (repeatable)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print raw JSON events")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "Connect timeout")

	return cmd
}

func printEvent(event devtools.Event, asJSON bool) {
	if asJSON {
		data, err := json.Marshal(event)
		if err != nil {
			return
		}
		fmt.Println(string(data))
		return
	}

	stamp := time.Now().Format("15:04:05.000")
	switch event.Type {
	case "mutation":
		detail := event.Kind
		if event.Key != "" {
			detail += " " + event.Key
		}
		if len(event.Payload) > 0 {
			if data, err := json.Marshal(event.Payload); err == nil {
				detail += " " + string(data)
			}
		}
		fmt.Printf("%s  %-20s %s\n", stamp, event.StoreID, detail)
	case "action":
		line := fmt.Sprintf("%s.%s %s", event.StoreID, event.Action, event.Status)
		if event.Error != "" {
			line += ": " + event.Error
		}
		fmt.Printf("%s  %s\n", stamp, line)
	default:
		fmt.Printf("%s  %s %s\n", stamp, event.Type, event.StoreID)
	}
}

// splitStoreArg allows comma-separated values in a single --store flag.
func splitStoreArg(raw []string) []string {
	var out []string
	for _, entry := range raw {
		for _, id := range strings.Split(entry, ",") {
			if id = strings.TrimSpace(id); id != "" {
				out = append(out, id)
			}
		}
	}
	return out
}
