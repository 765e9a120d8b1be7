package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"

	"github.com/mosaicnetworks/maelnode/src/common"
	"github.com/mosaicnetworks/maelnode/src/journal"
	"github.com/mosaicnetworks/maelnode/src/node"
	"github.com/mosaicnetworks/maelnode/src/protocol"
	"github.com/mosaicnetworks/maelnode/src/telemetry"
	"github.com/sirupsen/logrus"
)

// DefaultJournalLimit caps the number of entries returned by /journal when
// the request does not set a limit.
const DefaultJournalLimit = 100

// Service exposes read-only information about a running node over HTTP. It
// never writes to the node's output stream.
type Service struct {
	sync.Mutex

	bindAddress string
	node        *node.Node
	mux         *http.ServeMux
	server      *http.Server
	closed      bool
	logger      *logrus.Entry
}

// NewService ...
func NewService(bindAddress string, n *node.Node, logger *logrus.Entry) *Service {
	service := Service{
		bindAddress: bindAddress,
		node:        n,
		mux:         http.NewServeMux(),
		logger:      logger,
	}

	service.registerHandlers()

	return &service
}

// registerHandlers registers the API handlers with the service's own mux, so
// that several services can live in one process, as they do in tests.
func (s *Service) registerHandlers() {
	s.logger.Debug("Registering maelnode API handlers")
	s.mux.HandleFunc("/stats", s.makeHandler(s.GetStats))
	s.mux.HandleFunc("/peers", s.makeHandler(s.GetPeers))
	s.mux.HandleFunc("/journal", s.makeHandler(s.GetJournal))
	s.mux.Handle("/metrics", telemetry.MetricsHandler())
}

func (s *Service) makeHandler(fn func(http.ResponseWriter, *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.Lock()
		defer s.Unlock()

		// enable CORS
		w.Header().Set("Access-Control-Allow-Origin", "*")

		fn(w, r)
	}
}

// Handler returns the service's routes.
func (s *Service) Handler() http.Handler {
	return s.mux
}

// Serve calls ListenAndServe. This is a blocking call that returns when
// Shutdown is called or the listener fails.
func (s *Service) Serve() {
	s.logger.WithField("bind_address", s.bindAddress).Debug("Serving maelnode API")

	s.Lock()
	if s.closed {
		s.Unlock()
		return
	}
	s.server = &http.Server{
		Addr:    s.bindAddress,
		Handler: s.mux,
	}
	server := s.server
	s.Unlock()

	err := server.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Error(err)
	}
}

// Shutdown stops the HTTP server started by Serve, if any. Serve returns
// immediately once Shutdown has been called.
func (s *Service) Shutdown(ctx context.Context) error {
	s.Lock()
	s.closed = true
	server := s.server
	s.Unlock()

	if server == nil {
		return nil
	}
	return server.Shutdown(ctx)
}

// GetStats ...
func (s *Service) GetStats(w http.ResponseWriter, r *http.Request) {
	stats := s.node.GetStats()

	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(stats)
}

// PeersResponse is the body returned by /peers.
type PeersResponse struct {
	Self   protocol.NodeID   `json:"self"`
	Peers  []protocol.NodeID `json:"peers"`
	Others []protocol.NodeID `json:"others"`
}

// GetPeers ...
func (s *Service) GetPeers(w http.ResponseWriter, r *http.Request) {
	self, _ := s.node.ID()
	peerSet := s.node.Peers()

	res := PeersResponse{
		Self:   self,
		Peers:  peerSet.IDs(),
		Others: peerSet.Others(self),
	}

	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(res)
}

// GetJournal returns journal entries. The query parameters from and limit
// select the range, defaulting to 0 and DefaultJournalLimit.
func (s *Service) GetJournal(w http.ResponseWriter, r *http.Request) {
	j := s.node.Journal()
	if j == nil {
		http.Error(w, "journal disabled", http.StatusNotFound)
		return
	}

	from, err := uintParam(r, "from", 0)
	if err != nil {
		s.logger.WithError(err).Errorf("Parsing from parameter %s", r.URL.Query().Get("from"))
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	limit, err := uintParam(r, "limit", DefaultJournalLimit)
	if err != nil {
		s.logger.WithError(err).Errorf("Parsing limit parameter %s", r.URL.Query().Get("limit"))
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	entries, err := j.Entries(from, int(limit))
	if err != nil {
		s.logger.WithError(err).Errorf("Retrieving journal entries from %d", from)
		status := http.StatusInternalServerError
		if common.IsStore(err, common.TooLate) {
			status = http.StatusGone
		}
		http.Error(w, err.Error(), status)
		return
	}

	if entries == nil {
		entries = []*journal.Entry{}
	}

	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(entries)
}

func uintParam(r *http.Request, name string, def uint64) (uint64, error) {
	param := r.URL.Query().Get(name)
	if param == "" {
		return def, nil
	}
	return strconv.ParseUint(param, 10, 64)
}
