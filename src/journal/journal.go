package journal

// Journal is an append-only log of Entries indexed from 0.
type Journal interface {
	// Append records line and returns its index.
	Append(dir Direction, line []byte) (uint64, error)

	// Entries returns up to limit entries starting at index from. A limit <= 0
	// means no limit.
	Entries(from uint64, limit int) ([]*Entry, error)

	// Len returns the number of entries ever appended.
	Len() uint64

	// StorePath returns the on-disk location, or "" for in-memory journals.
	StorePath() string

	Close() error
}
