package main

import (
	"encoding/json"
	"fmt"
	"os"
	"reflect"
	"sort"

	"github.com/spf13/cobra"
)

func snapshotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Work with serialized container snapshots",
	}
	cmd.AddCommand(snapshotShowCmd(), snapshotDiffCmd())
	return cmd
}

func snapshotShowCmd() *cobra.Command {
	var storeID string

	cmd := &cobra.Command{
		Use:   "show <file>",
		Short: "Pretty-print a snapshot file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snapshot, err := readSnapshot(args[0])
			if err != nil {
				return err
			}

			if storeID != "" {
				fragment, ok := snapshot[storeID]
				if !ok {
					return fmt.Errorf("store %q not in snapshot", storeID)
				}
				snapshot = map[string]map[string]any{storeID: fragment}
			}

			out, err := json.MarshalIndent(snapshot, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}

	cmd.Flags().StringVar(&storeID, "store", "", "Only show this store's fragment")
	return cmd
}

func snapshotDiffCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "diff <before> <after>",
		Short: "Show field-level differences between two snapshot files",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			before, err := readSnapshot(args[0])
			if err != nil {
				return err
			}
			after, err := readSnapshot(args[1])
			if err != nil {
				return err
			}

			lines := diffSnapshots(before, after)
			if len(lines) == 0 {
				fmt.Println("snapshots are identical")
				return nil
			}
			for _, line := range lines {
				fmt.Println(line)
			}
			return nil
		},
	}
}

func readSnapshot(path string) (map[string]map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var snapshot map[string]map[string]any
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return snapshot, nil
}

// diffSnapshots returns one line per added, removed, or changed field,
// stable-sorted by store id and key.
func diffSnapshots(before, after map[string]map[string]any) []string {
	ids := map[string]bool{}
	for id := range before {
		ids[id] = true
	}
	for id := range after {
		ids[id] = true
	}
	sorted := make([]string, 0, len(ids))
	for id := range ids {
		sorted = append(sorted, id)
	}
	sort.Strings(sorted)

	var lines []string
	for _, id := range sorted {
		b, a := before[id], after[id]
		switch {
		case b == nil:
			lines = append(lines, fmt.Sprintf("+ %s (store added)", id))
			continue
		case a == nil:
			lines = append(lines, fmt.Sprintf("- %s (store removed)", id))
			continue
		}

		keys := map[string]bool{}
		for k := range b {
			keys[k] = true
		}
		for k := range a {
			keys[k] = true
		}
		sortedKeys := make([]string, 0, len(keys))
		for k := range keys {
			sortedKeys = append(sortedKeys, k)
		}
		sort.Strings(sortedKeys)

		for _, key := range sortedKeys {
			bv, bok := b[key]
			av, aok := a[key]
			switch {
			case !bok:
				lines = append(lines, fmt.Sprintf("+ %s.%s = %v", id, key, av))
			case !aok:
				lines = append(lines, fmt.Sprintf("- %s.%s (was %v)", id, key, bv))
			case !reflect.DeepEqual(bv, av):
				lines = append(lines, fmt.Sprintf("~ %s.%s: %v -> %v", id, key, bv, av))
			}
		}
	}
	return lines
}
