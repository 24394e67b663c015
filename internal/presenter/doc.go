// Package presenter owns surface orchestration concerns.
//
// Ownership boundary:
// - surface registration and unregistration
// - scheduler lifetime (lazy creation, reload teardown)
// - stage progression and root-view binding
// - producer-runtime reload reaction
//
// The presenter does not compute trees or mutate views directly; it wires
// scheduler output into mounting input.
package presenter
