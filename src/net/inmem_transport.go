package net

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// InmemTransport implements the Transport interface over channels, to allow
// nodes to be tested in-memory. The test plays the harness: it feeds lines
// with Deliver and reads replies from Outbox.
type InmemTransport struct {
	inCh  chan []byte
	outCh chan []byte

	timeout time.Duration

	inputLock   sync.Mutex
	inputClosed bool

	shutdownCh   chan struct{}
	shutdownOnce sync.Once
}

// NewInmemTransport is used to initialize a new transport.
func NewInmemTransport() *InmemTransport {
	return &InmemTransport{
		inCh:       make(chan []byte, 16),
		outCh:      make(chan []byte, 16),
		timeout:    time.Second,
		shutdownCh: make(chan struct{}),
	}
}

// Deliver queues line as the next input.
func (i *InmemTransport) Deliver(line []byte) error {
	i.inputLock.Lock()
	defer i.inputLock.Unlock()

	if i.inputClosed {
		return fmt.Errorf("input closed")
	}

	select {
	case i.inCh <- append([]byte(nil), line...):
		return nil
	case <-i.shutdownCh:
		return ErrTransportShutdown
	case <-time.After(i.timeout):
		return fmt.Errorf("deliver timed out")
	}
}

// CloseInput ends the input stream; Receive returns io.EOF once the queued
// lines are consumed.
func (i *InmemTransport) CloseInput() {
	i.inputLock.Lock()
	defer i.inputLock.Unlock()

	if !i.inputClosed {
		i.inputClosed = true
		close(i.inCh)
	}
}

// Outbox returns the channel replies are sent to.
func (i *InmemTransport) Outbox() <-chan []byte {
	return i.outCh
}

// Receive implements the Transport interface.
func (i *InmemTransport) Receive() ([]byte, error) {
	select {
	case line, ok := <-i.inCh:
		if !ok {
			return nil, io.EOF
		}
		return line, nil
	case <-i.shutdownCh:
		return nil, ErrTransportShutdown
	}
}

// Send implements the Transport interface.
func (i *InmemTransport) Send(msg []byte) error {
	select {
	case i.outCh <- append([]byte(nil), msg...):
		return nil
	case <-i.shutdownCh:
		return ErrTransportShutdown
	case <-time.After(i.timeout):
		return fmt.Errorf("send timed out")
	}
}

// Close is used to permanently disable the transport.
func (i *InmemTransport) Close() error {
	i.shutdownOnce.Do(func() {
		close(i.shutdownCh)
	})
	return nil
}
