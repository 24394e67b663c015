// Package scheduler owns tree computation for all surfaces of one
// producer-runtime generation.
//
// Ownership boundary:
// - per-surface computation tasks (start/stop/measure/constrain)
// - commit flushing on the event-beat cadence
// - mutation batch production, one batch per committed revision
//
// The scheduler never touches live views; committed batches cross into the
// mounting side through the delegate.
package scheduler
