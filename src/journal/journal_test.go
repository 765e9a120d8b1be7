package journal

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/mosaicnetworks/maelnode/src/common"
)

func appendLines(t *testing.T, j Journal, n int) {
	for i := 0; i < n; i++ {
		dir := Inbound
		if i%2 == 1 {
			dir = Outbound
		}
		line := []byte(fmt.Sprintf(`{"src":"c1","dest":"n1","body":{"type":"echo","msg_id":%d,"echo":"x"}}`+"\n", i))
		idx, err := j.Append(dir, line)
		if err != nil {
			t.Fatal(err)
		}
		if idx != uint64(i) {
			t.Fatalf("Append returned index %d, want %d", idx, i)
		}
	}
}

func checkEntries(t *testing.T, entries []*Entry, from uint64, n int) {
	if len(entries) != n {
		t.Fatalf("got %d entries, want %d", len(entries), n)
	}
	for i, e := range entries {
		want := from + uint64(i)
		if e.Index != want {
			t.Fatalf("entry %d has index %d, want %d", i, e.Index, want)
		}
		wantMsg := fmt.Sprintf(`{"src":"c1","dest":"n1","body":{"type":"echo","msg_id":%d,"echo":"x"}}`, want)
		if e.Message != wantMsg {
			t.Fatalf("entry %d message = %q, want %q", i, e.Message, wantMsg)
		}
		wantDir := Inbound
		if want%2 == 1 {
			wantDir = Outbound
		}
		if e.Direction != wantDir {
			t.Fatalf("entry %d direction = %s, want %s", i, e.Direction, wantDir)
		}
	}
}

func TestEntryMarshal(t *testing.T) {
	e := NewEntry(Outbound, []byte("{\"a\":1}\r\n"))
	e.Index = 12

	b, err := e.Marshal()
	if err != nil {
		t.Fatal(err)
	}

	var got Entry
	if err := got.Unmarshal(b); err != nil {
		t.Fatal(err)
	}
	if got != *e {
		t.Fatalf("got %#v, want %#v", got, *e)
	}
	if got.Message != `{"a":1}` {
		t.Fatalf("newline not trimmed: %q", got.Message)
	}
}

func TestInmemJournal(t *testing.T) {
	j := NewInmemJournal(5)

	appendLines(t, j, 8)

	if j.Len() != 8 {
		t.Fatalf("Len = %d, want 8", j.Len())
	}

	entries, err := j.Entries(2, 3)
	if err != nil {
		t.Fatal(err)
	}
	checkEntries(t, entries, 2, 3)

	// rolls at 10 items and keeps the newest 5
	appendLines2(t, j, 8, 12)
	if _, err := j.Entries(0, 0); !common.IsStore(err, common.TooLate) {
		t.Fatalf("expected TooLate, got %v", err)
	}

	entries, err = j.Entries(5, 0)
	if err != nil {
		t.Fatal(err)
	}
	checkEntries(t, entries, 5, 7)

	if j.StorePath() != "" {
		t.Fatal("inmem journal has a store path")
	}
}

func appendLines2(t *testing.T, j Journal, from, to int) {
	for i := from; i < to; i++ {
		dir := Inbound
		if i%2 == 1 {
			dir = Outbound
		}
		line := []byte(fmt.Sprintf(`{"src":"c1","dest":"n1","body":{"type":"echo","msg_id":%d,"echo":"x"}}`, i))
		if _, err := j.Append(dir, line); err != nil {
			t.Fatal(err)
		}
	}
}

func TestBadgerJournal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal")
	logger := common.NewTestEntry(t, common.TestLogLevel)

	j, err := NewBadgerJournal(path, logger)
	if err != nil {
		t.Fatal(err)
	}

	appendLines(t, j, 6)

	entries, err := j.Entries(0, 0)
	if err != nil {
		t.Fatal(err)
	}
	checkEntries(t, entries, 0, 6)

	entries, err = j.Entries(4, 10)
	if err != nil {
		t.Fatal(err)
	}
	checkEntries(t, entries, 4, 2)

	if j.StorePath() != path {
		t.Fatalf("StorePath = %s, want %s", j.StorePath(), path)
	}

	if err := j.Close(); err != nil {
		t.Fatal(err)
	}

	// reopen and continue the sequence
	j, err = NewBadgerJournal(path, logger)
	if err != nil {
		t.Fatal(err)
	}
	defer j.Close()

	if j.Len() != 6 {
		t.Fatalf("reopened Len = %d, want 6", j.Len())
	}

	appendLines2(t, j, 6, 9)

	entries, err = j.Entries(0, 0)
	if err != nil {
		t.Fatal(err)
	}
	checkEntries(t, entries, 0, 9)
}
