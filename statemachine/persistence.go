package statemachine

import "context"

// Snapshot is the persistable state of a machine: its current state and its
// context value, tagged with the fingerprint of the table it ran under.
type Snapshot[C any] struct {
	Machine     string `json:"machine"     yaml:"machine"`
	ID          string `json:"id"          yaml:"id"`
	State       State  `json:"state"       yaml:"state"`
	Context     C      `json:"context"     yaml:"context"`
	Fingerprint uint64 `json:"fingerprint" yaml:"fingerprint"`
}

// Store persists snapshots. The engine ships no implementation.
type Store[C any] interface {
	Save(ctx context.Context, snap Snapshot[C]) error
	Load(ctx context.Context, id string) (Snapshot[C], error)
}
