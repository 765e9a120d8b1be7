package common

import "strconv"

// RollingIndex keeps the most recent items of a gapless sequence indexed
// from 0. Once 2*size items are held the oldest size are dropped, and
// requests for them fail with TooLate.
type RollingIndex struct {
	name      string
	size      int
	lastIndex int
	items     []interface{}
}

// NewRollingIndex ...
func NewRollingIndex(name string, size int) *RollingIndex {
	if size <= 0 {
		size = 1
	}
	return &RollingIndex{
		name:      name,
		size:      size,
		items:     make([]interface{}, 0, 2*size),
		lastIndex: -1,
	}
}

// LastIndex returns the index of the newest item, or -1.
func (r *RollingIndex) LastIndex() int {
	return r.lastIndex
}

// OldestIndex returns the index of the oldest cached item.
func (r *RollingIndex) OldestIndex() int {
	return r.lastIndex - len(r.items) + 1
}

// Get returns up to limit items starting at index from. A limit <= 0 means
// no limit.
func (r *RollingIndex) Get(from int, limit int) ([]interface{}, error) {
	if from > r.lastIndex {
		return []interface{}{}, nil
	}

	oldest := r.OldestIndex()
	if from < oldest {
		return nil, NewStoreErr(r.name, TooLate, strconv.Itoa(from))
	}

	items := r.items[from-oldest:]
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}

	res := make([]interface{}, len(items))
	copy(res, items)
	return res, nil
}

// GetItem ...
func (r *RollingIndex) GetItem(index int) (interface{}, error) {
	oldest := r.OldestIndex()
	if index < oldest {
		return nil, NewStoreErr(r.name, TooLate, strconv.Itoa(index))
	}
	if index > r.lastIndex {
		return nil, NewStoreErr(r.name, KeyNotFound, strconv.Itoa(index))
	}
	return r.items[index-oldest], nil
}

// Append adds item under the next index and returns that index.
func (r *RollingIndex) Append(item interface{}) int {
	if len(r.items) >= 2*r.size {
		r.roll()
	}
	r.items = append(r.items, item)
	r.lastIndex++
	return r.lastIndex
}

func (r *RollingIndex) roll() {
	newList := make([]interface{}, 0, 2*r.size)
	newList = append(newList, r.items[r.size:]...)
	r.items = newList
}
