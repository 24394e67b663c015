package mounting

import (
	"github.com/danmuck/surfacekit/internal/surface"
)

// ViewTag identifies one host view inside the component view registry.
type ViewTag int64

// RootTag is the reserved tag for a surface's root view. The surface
// identifier doubles as its root view tag.
func RootTag(id surface.ID) ViewTag {
	return ViewTag(id)
}

type MutationKind int

const (
	MutationCreate MutationKind = iota
	MutationDelete
	MutationInsert
	MutationRemove
	MutationUpdate
)

func (k MutationKind) String() string {
	switch k {
	case MutationCreate:
		return "create"
	case MutationDelete:
		return "delete"
	case MutationInsert:
		return "insert"
	case MutationRemove:
		return "remove"
	case MutationUpdate:
		return "update"
	default:
		return "unknown"
	}
}

// Mutation is one view operation inside a committed tree revision.
type Mutation struct {
	Kind      MutationKind
	Tag       ViewTag
	ParentTag ViewTag
	Index     int
	Component string
	Props     surface.Props
}

// Batch is the ordered mutation list for one committed tree revision of one
// surface. Consumed exactly once, in commit order, never replayed.
type Batch struct {
	Surface   surface.ID
	Revision  uint64
	Mutations []Mutation
}
