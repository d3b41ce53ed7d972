package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/lixenwraith/radar-scan/core"
	"github.com/lixenwraith/radar-scan/engine"
	"github.com/lixenwraith/radar-scan/status"
)

// Message types on the wire
const (
	TypeScanInit      = "scan_init"
	TypeRevealChanged = "reveal_changed"
	TypeSweep         = "sweep"
)

// DefaultSweepInterval throttles sweep messages
const DefaultSweepInterval = 100 * time.Millisecond

// Source is the live scan a server reports on
type Source interface {
	Snapshot() engine.Snapshot
	IsScanning() bool
	Scan() *engine.RadarScan
}

// Envelope is the wire format of every message
type Envelope struct {
	Type string          `json:"type"`
	Ts   time.Time       `json:"ts"`
	Data json.RawMessage `json:"data,omitempty"`
}

// LocationData is one configured location in scan_init
type LocationData struct {
	ID       string  `json:"id"`
	Position float64 `json:"position"`
}

// ScanInitData is the payload of scan_init
type ScanInitData struct {
	Locations []LocationData `json:"locations"`
	Cycle     int64          `json:"cycle_ms"`
	Tolerance float64        `json:"tolerance"`
	Hold      int64          `json:"hold_ms"`
	Scanning  bool           `json:"scanning"`
	Sweep     float64        `json:"sweep"`
	Revealed  []string       `json:"revealed"`
	Version   uint64         `json:"version"`
}

// RevealChangedData is the payload of reveal_changed
type RevealChangedData struct {
	Version  uint64   `json:"version"`
	Sweep    float64  `json:"sweep"`
	Revealed []string `json:"revealed"`
	Added    []string `json:"added"`
	Removed  []string `json:"removed"`
}

// SweepData is the payload of sweep
type SweepData struct {
	Sweep float64 `json:"sweep"`
	Frame uint64  `json:"frame"`
}

// Config configures the server; zero values pick defaults
type Config struct {
	Hub           HubConfig
	SweepInterval time.Duration
}

// Server publishes scan snapshots to WebSocket clients and serves health
// and metrics endpoints
type Server struct {
	logger *zap.Logger
	hub    *Hub
	reg    *status.Registry

	sweepInterval time.Duration

	mu        sync.Mutex
	source    Source
	prev      engine.RevealSet
	lastSweep time.Time
}

// NewServer constructs the server; run Hub().Run(ctx) and mount Handler()
func NewServer(logger *zap.Logger, source Source, reg *status.Registry, cfg Config) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if reg == nil {
		reg = status.NewRegistry()
	}
	interval := cfg.SweepInterval
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	s := &Server{
		logger:        logger,
		hub:           NewHub(logger, cfg.Hub),
		reg:           reg,
		sweepInterval: interval,
		source:        source,
	}
	if source != nil {
		s.prev = source.Snapshot().Revealed
	}
	return s
}

// Hub returns the client hub
func (s *Server) Hub() *Hub { return s.hub }

// Handler mounts /ws, /healthz and /metrics
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.Register(mux)
	return mux
}

// Register mounts the endpoints on mux
func (s *Server) Register(mux *http.ServeMux) {
	if mux == nil {
		return
	}
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/metrics", s.handleMetrics)
}

// ListenAndServe serves Handler on addr until ctx is done
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.logger.Info("snapshot server listening", zap.String("addr", addr))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		<-errCh
		return nil
	}
}

// SetSource switches to a new scan after a reload and re-sends scan_init
// to every connected client
func (s *Server) SetSource(source Source) {
	s.mu.Lock()
	s.source = source
	s.prev = source.Snapshot().Revealed
	s.lastSweep = time.Time{}
	s.mu.Unlock()

	if msg, err := s.initMessage(source); err == nil {
		s.hub.BroadcastBytes(msg)
	}
}

// Observe is an engine subscriber: it emits reveal_changed when the reveal
// set changed and sweep at most once per sweep interval of scan time
func (s *Server) Observe(snap engine.Snapshot) {
	s.observe(nil, snap)
}

// ObserveFrom is Observe restricted to snapshots of src. Once SetSource
// moves on, a late frame from the old scan is dropped.
func (s *Server) ObserveFrom(src Source) func(engine.Snapshot) {
	return func(snap engine.Snapshot) { s.observe(src, snap) }
}

func (s *Server) observe(src Source, snap engine.Snapshot) {
	s.mu.Lock()
	if src != nil && s.source != src {
		s.mu.Unlock()
		return
	}
	var changed *RevealChangedData
	if snap.Changed {
		changed = &RevealChangedData{
			Version:  snap.Version,
			Sweep:    snap.Sweep,
			Revealed: nonNil(snap.Revealed.IDs()),
			Added:    nonNil(snap.Revealed.Added(s.prev)),
			Removed:  nonNil(s.prev.Added(snap.Revealed)),
		}
		s.prev = snap.Revealed
	}
	sendSweep := s.lastSweep.IsZero() || snap.At.Sub(s.lastSweep) >= s.sweepInterval || snap.At.Before(s.lastSweep)
	if sendSweep {
		s.lastSweep = snap.At
	}
	s.mu.Unlock()

	if changed != nil {
		s.publish(TypeRevealChanged, changed)
	}
	if sendSweep {
		s.publish(TypeSweep, SweepData{Sweep: snap.Sweep, Frame: snap.Frame})
	}
}

func (s *Server) publish(typ string, data any) {
	msg, err := encode(typ, data)
	if err != nil {
		s.logger.Error("encode ws message", zap.String("type", typ), zap.Error(err))
		return
	}
	s.hub.BroadcastBytes(msg)
}

func (s *Server) initMessage(source Source) ([]byte, error) {
	scan := source.Scan()
	cfg := scan.Config()
	snap := source.Snapshot()

	locs := scan.Locations()
	data := ScanInitData{
		Locations: make([]LocationData, len(locs)),
		Cycle:     cfg.CycleDuration.Milliseconds(),
		Tolerance: cfg.Tolerance,
		Hold:      cfg.HoldDuration.Milliseconds(),
		Scanning:  source.IsScanning(),
		Sweep:     snap.Sweep,
		Revealed:  nonNil(snap.Revealed.IDs()),
		Version:   snap.Version,
	}
	for i, l := range locs {
		data.Locations[i] = LocationData{ID: l.ID, Position: l.Position}
	}
	return encode(TypeScanInit, data)
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleWS upgrades, registers the client, then sends scan_init
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	select {
	case <-s.hub.done:
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	default:
	}

	s.mu.Lock()
	source := s.source
	s.mu.Unlock()
	if source == nil {
		http.Error(w, "no scan", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("ws upgrade failed", zap.Error(err))
		return
	}

	c := NewClient(s.hub, conn, r.RemoteAddr)

	// Queue scan_init before registering so it precedes any broadcast
	msg, err := s.initMessage(source)
	if err != nil {
		s.logger.Error("encode scan_init", zap.Error(err))
		_ = conn.Close()
		return
	}
	c.enqueue(msg)

	if !s.hub.add(c) {
		_ = conn.Close()
		return
	}
	core.Go(func() { c.writePump(context.Background()) })
	core.Go(c.readPump)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	source := s.source
	s.mu.Unlock()

	resp := map[string]any{
		"status":  "ok",
		"clients": s.hub.Clients(),
	}
	if source != nil {
		resp["scanning"] = source.IsScanning()
	}
	writeJSON(w, resp)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.reg.Dump())
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func encode(typ string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: typ, Ts: time.Now().UTC(), Data: raw})
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
