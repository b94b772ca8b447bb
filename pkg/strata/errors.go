package strata

import "errors"

// DebugMode enables strict validation throughout the package. When
// true, writing an undeclared state key panics instead of logging a
// warning. Set it at startup, typically in development builds only.
var DebugMode bool

// ErrUnknownAction is returned by Store.Call for an action name the
// store's definition never declared.
var ErrUnknownAction = errors.New("strata: unknown action")

// ErrDisposed is returned when an operation is invoked on a store that
// has been disposed. A disposed store's id may be re-instantiated by
// accessing it again through its accessor.
var ErrDisposed = errors.New("strata: store disposed")

// ErrResetUnsupported is returned by Reset on a setup-style store whose
// setup function never registered a reset via Store.OnReset.
// Options-style stores always support Reset.
var ErrResetUnsupported = errors.New("strata: reset not supported by this store")
