package cache

// Store defines the cache operations the pipeline and API depend on.
type Store interface {
	GetSuggestion(key string) (*SuggestionRow, error)
	PutSuggestion(row SuggestionRow) error
	RecordRun(row RunRow) error
	ListRuns(limit int) ([]RunRow, error)
	GetRun(id string) (*RunRow, error)
	Close() error
}

// Verify *DB satisfies Store at compile time.
var _ Store = (*DB)(nil)
