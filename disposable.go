package locus

import "context"

// Disposable services get a teardown action recorded when they are
// realized. Teardown actions run at shutdown in reverse order of
// registration.
//
// Example:
//
//	type AudioDevice struct {
//	    handle *deviceHandle
//	}
//
//	func (d *AudioDevice) Close() error {
//	    return d.handle.Release()
//	}
type Disposable interface {
	Close() error
}

// DisposableWithContext allows disposal with context for graceful
// shutdown. Implementations should respect context cancellation.
type DisposableWithContext interface {
	Close(ctx context.Context) error
}
