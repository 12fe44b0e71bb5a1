package market

import "context"

// SourceStats summarizes the health of a snapshot source.
type SourceStats struct {
	Fetches   int
	Failures  int
	LastError string
}

// Source produces one option-chain snapshot per poll tick.
type Source interface {
	Fetch(ctx context.Context) (Snapshot, error)

	Stats() SourceStats

	Close() error
}
