package net

import (
	"bufio"
	"bytes"
	"io"
	"sync"

	"github.com/sirupsen/logrus"
)

const (
	bufSize = 64 * 1024

	// DefaultMaxLineSize is used when a StdioTransport is created with a
	// non-positive limit.
	DefaultMaxLineSize = 4 << 20
)

// StdioTransport frames messages as newline delimited lines over a reader and
// a writer. Writes are serialized, so Send may be called from several
// goroutines, but Receive must only be called from one.
type StdioTransport struct {
	logger *logrus.Entry

	r           *bufio.Reader
	maxLineSize int

	w     *bufio.Writer
	wLock sync.Mutex

	shutdown     bool
	shutdownCh   chan struct{}
	shutdownLock sync.Mutex
}

// NewStdioTransport creates a transport reading lines from r and writing lines
// to w. Lines longer than maxLineSize bytes are rejected with ErrLineTooLong.
func NewStdioTransport(r io.Reader, w io.Writer, maxLineSize int, logger *logrus.Entry) *StdioTransport {
	if logger == nil {
		log := logrus.New()
		log.Level = logrus.DebugLevel
		logger = logrus.NewEntry(log)
	}

	if maxLineSize <= 0 {
		maxLineSize = DefaultMaxLineSize
	}

	return &StdioTransport{
		logger:      logger,
		r:           bufio.NewReaderSize(r, bufSize),
		maxLineSize: maxLineSize,
		w:           bufio.NewWriterSize(w, bufSize),
		shutdownCh:  make(chan struct{}),
	}
}

// IsShutdown is used to check if the transport is shutdown.
func (t *StdioTransport) IsShutdown() bool {
	select {
	case <-t.shutdownCh:
		return true
	default:
		return false
	}
}

// Receive implements the Transport interface. Empty lines are skipped and a
// final line without a newline is still returned before io.EOF.
func (t *StdioTransport) Receive() ([]byte, error) {
	for {
		if t.IsShutdown() {
			return nil, ErrTransportShutdown
		}

		line, err := t.readLine()
		if err != nil {
			return nil, err
		}

		line = bytes.TrimRight(line, "\r\n")
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		return line, nil
	}
}

func (t *StdioTransport) readLine() ([]byte, error) {
	var line []byte
	for {
		frag, err := t.r.ReadSlice('\n')

		if len(line)+len(frag) > t.maxLineSize {
			t.logger.WithField("max", t.maxLineSize).Error("Input line too long")
			return nil, ErrLineTooLong
		}
		line = append(line, frag...)

		switch err {
		case nil:
			return line, nil
		case bufio.ErrBufferFull:
			continue
		case io.EOF:
			if len(line) > 0 {
				return line, nil
			}
			return nil, io.EOF
		default:
			return nil, err
		}
	}
}

// Send implements the Transport interface.
func (t *StdioTransport) Send(msg []byte) error {
	t.wLock.Lock()
	defer t.wLock.Unlock()

	if t.IsShutdown() {
		return ErrTransportShutdown
	}

	if _, err := t.w.Write(msg); err != nil {
		return err
	}
	if len(msg) == 0 || msg[len(msg)-1] != '\n' {
		if err := t.w.WriteByte('\n'); err != nil {
			return err
		}
	}

	return t.w.Flush()
}

// Close implements the Transport interface. Pending output is flushed.
func (t *StdioTransport) Close() error {
	t.shutdownLock.Lock()
	defer t.shutdownLock.Unlock()

	if t.shutdown {
		return nil
	}

	t.wLock.Lock()
	err := t.w.Flush()
	t.wLock.Unlock()

	close(t.shutdownCh)
	t.shutdown = true

	return err
}
