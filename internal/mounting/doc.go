// Package mounting owns the serialized view-mutation side.
//
// Ownership boundary:
// - the single mounting loop goroutine
// - the component view registry and root view pool
// - ordered application of mutation batches
//
// Mounting does not decide what to mount; batches arrive fully formed from
// the computation engine via the presenter.
package mounting
