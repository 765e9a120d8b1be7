package journal

import (
	"sync"

	cm "github.com/mosaicnetworks/maelnode/src/common"
)

// InmemJournal keeps the most recent entries in memory. Older entries are
// dropped in batches and requesting them fails with a TooLate StoreErr.
type InmemJournal struct {
	sync.RWMutex
	entries *cm.RollingIndex
}

// NewInmemJournal returns a journal retaining at least cacheSize entries.
func NewInmemJournal(cacheSize int) *InmemJournal {
	return &InmemJournal{
		entries: cm.NewRollingIndex("Entry", cacheSize),
	}
}

// Append implements the Journal interface.
func (j *InmemJournal) Append(dir Direction, line []byte) (uint64, error) {
	j.Lock()
	defer j.Unlock()

	entry := NewEntry(dir, line)
	entry.Index = uint64(j.entries.LastIndex() + 1)
	j.entries.Append(entry)

	return entry.Index, nil
}

// Entries implements the Journal interface.
func (j *InmemJournal) Entries(from uint64, limit int) ([]*Entry, error) {
	j.RLock()
	defer j.RUnlock()

	items, err := j.entries.Get(int(from), limit)
	if err != nil {
		return nil, err
	}

	res := make([]*Entry, 0, len(items))
	for _, item := range items {
		res = append(res, item.(*Entry))
	}
	return res, nil
}

// Len implements the Journal interface.
func (j *InmemJournal) Len() uint64 {
	j.RLock()
	defer j.RUnlock()
	return uint64(j.entries.LastIndex() + 1)
}

// StorePath implements the Journal interface.
func (j *InmemJournal) StorePath() string {
	return ""
}

// Close implements the Journal interface.
func (j *InmemJournal) Close() error {
	return nil
}
