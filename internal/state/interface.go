package state

import "io"

// HistoryStore handles repair-run persistence.
type HistoryStore interface {
	io.Closer
	Migrator
	SaveRun(r *Run) error
	GetRun(id string) (*Run, error)
	ListRuns(limit int) ([]Run, error)
	DeleteRun(id string) error
}

// Migrator handles database schema migrations.
type Migrator interface {
	// Migrate applies all pending schema migrations.
	Migrate() error
}

var (
	_ HistoryStore = (*DB)(nil)
	_ Migrator     = (*DB)(nil)
)
