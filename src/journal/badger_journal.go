package journal

import (
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/dgraph-io/badger"
	"github.com/sirupsen/logrus"
)

const (
	entryPrefix  = "entry"
	lastIndexKey = "last_index"
)

// BadgerJournal persists entries in a Badger database. Reopening a database
// continues the index sequence where it stopped.
type BadgerJournal struct {
	sync.Mutex
	db     *badger.DB
	path   string
	next   uint64
	closed bool
	logger *logrus.Entry
}

// NewBadgerJournal opens, or creates, the database at path.
func NewBadgerJournal(path string, logger *logrus.Entry) (*BadgerJournal, error) {
	if logger == nil {
		log := logrus.New()
		log.Level = logrus.DebugLevel
		logger = logrus.NewEntry(log)
	}

	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, err
	}

	opts := badger.DefaultOptions(path)
	opts.SyncWrites = false
	opts.Logger = logger.WithField("prefix", "badger")

	handle, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	j := &BadgerJournal{
		db:     handle,
		path:   path,
		logger: logger,
	}

	next, err := j.dbGetNextIndex()
	if err != nil {
		handle.Close()
		return nil, err
	}
	j.next = next

	logger.WithFields(logrus.Fields{
		"path":    path,
		"entries": next,
	}).Debug("Opened badger journal")

	return j, nil
}

func entryKey(index uint64) []byte {
	return []byte(fmt.Sprintf("%s_%020d", entryPrefix, index))
}

// Append implements the Journal interface.
func (j *BadgerJournal) Append(dir Direction, line []byte) (uint64, error) {
	j.Lock()
	defer j.Unlock()

	entry := NewEntry(dir, line)
	entry.Index = j.next

	val, err := entry.Marshal()
	if err != nil {
		return 0, err
	}

	err = j.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(entryKey(entry.Index), val); err != nil {
			return err
		}
		return txn.Set([]byte(lastIndexKey), []byte(strconv.FormatUint(entry.Index, 10)))
	})
	if err != nil {
		return 0, err
	}

	j.next++

	return entry.Index, nil
}

// Entries implements the Journal interface.
func (j *BadgerJournal) Entries(from uint64, limit int) ([]*Entry, error) {
	res := []*Entry{}

	err := j.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(entryPrefix + "_")

		for it.Seek(entryKey(from)); it.ValidForPrefix(prefix); it.Next() {
			if limit > 0 && len(res) >= limit {
				break
			}

			val, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}

			entry := new(Entry)
			if err := entry.Unmarshal(val); err != nil {
				return err
			}
			res = append(res, entry)
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	return res, nil
}

// Len implements the Journal interface.
func (j *BadgerJournal) Len() uint64 {
	j.Lock()
	defer j.Unlock()
	return j.next
}

// StorePath implements the Journal interface.
func (j *BadgerJournal) StorePath() string {
	return j.path
}

// Close implements the Journal interface. Closing twice is a no-op.
func (j *BadgerJournal) Close() error {
	j.Lock()
	defer j.Unlock()
	if j.closed {
		return nil
	}
	j.closed = true
	return j.db.Close()
}

func (j *BadgerJournal) dbGetNextIndex() (uint64, error) {
	var next uint64

	err := j.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(lastIndexKey))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}

		val, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}

		last, err := strconv.ParseUint(string(val), 10, 64)
		if err != nil {
			return err
		}
		next = last + 1

		return nil
	})

	return next, err
}
