package maelnode

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/mosaicnetworks/maelnode/src/config"
	"github.com/mosaicnetworks/maelnode/src/journal"
	"github.com/mosaicnetworks/maelnode/src/net"
	"github.com/mosaicnetworks/maelnode/src/node"
	"github.com/mosaicnetworks/maelnode/src/service"
	"github.com/mosaicnetworks/maelnode/src/telemetry"
	"github.com/mosaicnetworks/maelnode/src/version"
	"github.com/sirupsen/logrus"
)

// Maelnode is a struct containing the key objects of a maelnode.
type Maelnode struct {
	Config    *config.Config
	Node      *node.Node
	Transport net.Transport
	Journal   journal.Journal
	Service   *service.Service

	logger *logrus.Entry
}

// NewMaelnode is a factory method to produce a Maelnode object. Init must be
// called before Run.
func NewMaelnode(c *config.Config) *Maelnode {
	engine := &Maelnode{
		Config: c,
		logger: c.Logger(),
	}

	return engine
}

// Init initialises the Maelnode object: journal, transport, node and, unless
// disabled, the HTTP service.
func (m *Maelnode) Init() error {
	m.logger.WithFields(logrus.Fields{
		"version":       version.Version,
		"decode_policy": m.Config.DecodePolicy,
		"init_policy":   m.Config.InitPolicy,
		"store":         m.Config.Store,
	}).Debug("Init")

	telemetry.SetBuildInfo(version.Version)

	if err := m.initJournal(); err != nil {
		m.logger.WithError(err).Error("maelnode.go:Init() initJournal")
		return err
	}

	if err := m.initTransport(); err != nil {
		m.logger.WithError(err).Error("maelnode.go:Init() initTransport")
		return err
	}

	if err := m.initNode(); err != nil {
		m.logger.WithError(err).Error("maelnode.go:Init() initNode")
		return err
	}

	if err := m.initService(); err != nil {
		m.logger.WithError(err).Error("maelnode.go:Init() initService")
		return err
	}

	return nil
}

func (m *Maelnode) initJournal() error {
	if !m.Config.Store {
		m.Journal = journal.NewInmemJournal(m.Config.CacheSize)

		m.logger.Debug("created new in-mem journal")

		return nil
	}

	dbPath := m.Config.DatabaseDir

	m.logger.WithField("path", dbPath).Debug("Attempting to load or create database")

	j, err := journal.NewBadgerJournal(dbPath, m.logger)
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}

	m.Journal = j

	if j.Len() > 0 {
		m.logger.WithField("entries", j.Len()).Debug("loaded badger journal from existing database")
	} else {
		m.logger.Debug("created new badger journal from fresh database")
	}

	return nil
}

func (m *Maelnode) initTransport() error {
	in := m.Config.Input
	if in == nil {
		in = os.Stdin
	}

	out := m.Config.Output
	if out == nil {
		out = os.Stdout
	}

	m.Transport = net.NewStdioTransport(in, out, m.Config.MaxLineSize, m.logger)

	return nil
}

func (m *Maelnode) initNode() error {
	n, err := node.NewNode(m.Config, m.Transport, m.Journal)
	if err != nil {
		return fmt.Errorf("failed to initialize node: %w", err)
	}

	m.Node = n

	return nil
}

func (m *Maelnode) initService() error {
	if !m.Config.NoService {
		m.Service = service.NewService(m.Config.ServiceAddr, m.Node, m.logger)
	}
	return nil
}

// Run serves messages until the input is exhausted, ctx is cancelled, or a
// fatal error occurs. The engine is closed when Run returns.
func (m *Maelnode) Run(ctx context.Context) error {
	if m.Node == nil {
		return fmt.Errorf("maelnode not initialized")
	}

	var serviceDone chan struct{}
	if m.Service != nil {
		serviceDone = make(chan struct{})
		go func() {
			defer close(serviceDone)
			m.Service.Serve()
		}()
	}

	defer func() {
		m.Close()
		if serviceDone != nil {
			<-serviceDone
		}
	}()

	runCtx, cancel := context.WithCancel(ctx)
	watchDone := make(chan struct{})

	go func() {
		defer close(watchDone)
		<-runCtx.Done()
		m.Node.Shutdown()
	}()

	err := m.Node.Run(runCtx)

	cancel()
	<-watchDone

	if errors.Is(err, context.Canceled) {
		m.logger.Debug("Run cancelled")
		return nil
	}

	return err
}

// Close releases the transport, the journal and the HTTP service. It is safe
// to call more than once.
func (m *Maelnode) Close() error {
	var firstErr error

	if m.Service != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		if err := m.Service.Shutdown(ctx); err != nil {
			m.logger.WithError(err).Error("Shutting down service")
		}
		cancel()
	}

	if m.Node != nil {
		m.Node.Shutdown()
	} else if m.Transport != nil {
		if err := m.Transport.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if m.Journal != nil {
		if err := m.Journal.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}
