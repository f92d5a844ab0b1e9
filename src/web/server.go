package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"typofix/src/config"
	"typofix/src/history"
)

//go:embed static/*
var staticFiles embed.FS

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     sameHostOrigin,
}

// SettingsStore is the persisted settings file.
type SettingsStore interface {
	Load() (config.Settings, error)
	Update(fn func(*config.Settings)) (config.Settings, error)
}

// RunHistory is the optional run history.
type RunHistory interface {
	RecentRuns(limit int) ([]history.Run, error)
	Stats() (history.Stats, error)
}

// ModelLister lists the content-generation models available to apiKey.
type ModelLister func(ctx context.Context, apiKey string) ([]string, error)

type Options struct {
	Addr       string
	Settings   SettingsStore
	History    RunHistory
	ListModels ModelLister
	Logger     *zap.SugaredLogger
}

// Server is the local settings UI.
type Server struct {
	opts Options
	log  *zap.SugaredLogger
	hub  *Hub

	mu         sync.RWMutex
	httpServer *http.Server
	url        string
	lastStatus StatusMessage
}

func NewServer(opts Options) *Server {
	if opts.Addr == "" {
		opts.Addr = config.DefaultSettingsUIAddr
	}
	log := opts.Logger
	if log == nil {
		log = zap.S()
	}
	return &Server{
		opts:       opts,
		log:        log,
		hub:        NewHub(),
		lastStatus: StatusMessage{Status: "idle"},
	}
}

// Handler returns the HTTP routes of the settings UI.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/settings", s.handleSettings)
	mux.HandleFunc("/api/models", s.handleModels)
	mux.HandleFunc("/api/history", s.handleHistory)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/ws", s.handleWebSocket)

	staticFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		panic(fmt.Sprintf("web: static files: %v", err))
	}
	mux.Handle("/", http.FileServer(http.FS(staticFS)))
	return mux
}

// Start binds the configured address and serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.opts.Addr, err)
	}
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.mu.Lock()
	s.httpServer = srv
	s.url = "http://" + lis.Addr().String() + "/"
	s.mu.Unlock()
	s.log.Infow("Settings UI listening", "url", s.URL())

	go func() {
		if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Errorw("Settings UI stopped", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		s.Shutdown()
	}()
	return nil
}

// Shutdown stops the HTTP server and disconnects WebSocket clients.
func (s *Server) Shutdown() {
	s.mu.Lock()
	srv := s.httpServer
	s.httpServer = nil
	s.mu.Unlock()
	if srv == nil {
		return
	}
	s.hub.CloseAll()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
}

// URL returns the address of the UI, or "" before Start.
func (s *Server) URL() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.url
}

// BroadcastStatus records the latest run status and pushes it to every client.
func (s *Server) BroadcastStatus(status, message string) {
	msg := StatusMessage{Status: status, Message: message}
	s.mu.Lock()
	s.lastStatus = msg
	s.mu.Unlock()
	s.hub.BroadcastMessage(Message{Type: MessageTypeStatus, Data: msg})
}

// BroadcastRun pushes a freshly recorded run to every client.
func (s *Server) BroadcastRun(run history.Run) {
	s.hub.BroadcastMessage(Message{Type: MessageTypeRun, Data: run})
}

func (s *Server) status() StatusMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastStatus
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warnw("Failed to upgrade WebSocket connection", "error", err)
		return
	}
	client := &Client{hub: s.hub, conn: conn, send: make(chan []byte, sendBuffer)}
	s.hub.register(client)

	go client.writePump()
	go client.readPump()
}

// sameHostOrigin accepts requests without Origin (non-browser clients) and
// browser requests from the UI's own host.
func sameHostOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	host := strings.TrimPrefix(strings.TrimPrefix(origin, "http://"), "https://")
	return strings.EqualFold(host, r.Host)
}
