package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"

	"github.com/gorilla/mux"

	"github.com/ritzau/msedit/pkg/auth"
	"github.com/ritzau/msedit/pkg/history"
	"github.com/ritzau/msedit/pkg/logging"
	"github.com/ritzau/msedit/pkg/model"
	"github.com/ritzau/msedit/pkg/pubsub"
	"github.com/ritzau/msedit/pkg/run"
	"github.com/ritzau/msedit/pkg/session"
)

// runStatusBuffer is the number of run events kept for resuming clients
const runStatusBuffer = 200

// ErrNoSession is returned when a request arrives before a model system is open
var ErrNoSession = errors.New("no model system is open")

// Options configures a Server
type Options struct {
	// DefaultUser acts for requests without an X-User header. Empty means
	// such requests are refused.
	DefaultUser session.User
	// WorkDir is passed to dispatched runs
	WorkDir string
	// History records runs when set
	History *history.Store
	// Tokens, when set, makes edits name their user with a bearer token
	// instead of the X-User header
	Tokens *auth.Tokens
}

// Server represents the web server
type Server struct {
	router    *mux.Router
	publisher *pubsub.SSEPublisher
	opts      Options

	mu      sync.RWMutex
	session *session.EditingSession

	// runs outlive the request that started them
	runCtx    context.Context
	cancelRun context.CancelFunc
}

// NewServer creates a new web server
func NewServer(opts Options) *Server {
	ssePublisher := pubsub.NewSSEPublisher()

	// model_system: clients only need the latest state to know they should refetch
	ssePublisher.ConfigureTopic(pubsub.TopicModelSystem, pubsub.TopicConfig{
		BufferSize: 10,
		ReplayAll:  false,
	})
	// run_status: only reconnecting clients catch up on missed progress
	ssePublisher.ConfigureTopic(pubsub.TopicRunStatus, pubsub.TopicConfig{
		BufferSize: runStatusBuffer,
		ResumeOnly: true,
	})

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		router:    mux.NewRouter(),
		publisher: ssePublisher,
		opts:      opts,
		runCtx:    ctx,
		cancelRun: cancel,
	}
	s.setupRoutes()
	return s
}

// SetSession sets the session served by the API
func (s *Server) SetSession(sess *session.EditingSession) {
	s.mu.Lock()
	s.session = sess
	s.mu.Unlock()
}

func (s *Server) current() (*session.EditingSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.session == nil {
		return nil, ErrNoSession
	}
	return s.session, nil
}

// Publisher exposes the event publisher, e.g. for forwarding run events
func (s *Server) Publisher() pubsub.Publisher {
	return s.publisher
}

// PublishChange announces a session change on the model_system topic. It
// is meant to be used as session.Options.OnChange.
func (s *Server) PublishChange(c session.Change) {
	data := pubsub.ModelSystemChange{
		ModelSystem: c.ModelSystem,
		Op:          c.Op,
		User:        string(c.User),
	}
	if sess, err := s.current(); err == nil {
		data.Dirty = sess.Dirty()
		data.CanUndo = len(sess.UndoOps()) > 0
		data.CanRedo = len(sess.RedoOps()) > 0
	}
	if err := s.publisher.Publish(pubsub.TopicModelSystem, c.Op, data); err != nil {
		logging.Warn("failed to publish model system change", "op", c.Op, "error", err)
	}
}

// Handler returns the HTTP handler with request logging
func (s *Server) Handler() http.Handler {
	return logging.Middleware(s.logUser)(s.router)
}

// logUser names the user a request claims to act as, for log tagging only.
// Invalid tokens are left to the handlers to refuse.
func (s *Server) logUser(r *http.Request) string {
	if s.opts.Tokens != nil {
		name, _ := s.opts.Tokens.FromHeader(r.Header.Get("Authorization"))
		return name
	}
	if user := r.Header.Get(UserHeader); user != "" {
		return user
	}
	return string(s.opts.DefaultUser)
}

func (s *Server) setupRoutes() {
	// SSE subscription endpoints
	s.router.HandleFunc("/api/subscribe/{topic:model_system|run_status}", s.handleSubscribe).Methods("GET")

	// Read-only views
	s.router.HandleFunc("/api/model-system", s.handleModelSystem).Methods("GET")
	s.router.HandleFunc("/api/graph", s.handleGraph).Methods("GET")
	s.router.HandleFunc("/api/analysis", s.handleAnalysis).Methods("GET")

	// Edits - more specific routes must come first
	s.router.HandleFunc("/api/boundaries", s.handleAddBoundary).Methods("POST")
	s.router.HandleFunc("/api/boundaries/{id}", s.handleUpdateBoundary).Methods("PATCH")
	s.router.HandleFunc("/api/boundaries/{id}", s.handleRemoveBoundary).Methods("DELETE")
	s.router.HandleFunc("/api/starts", s.handleAddStart).Methods("POST")
	s.router.HandleFunc("/api/starts/{id}", s.handleRemoveStart).Methods("DELETE")
	s.router.HandleFunc("/api/nodes", s.handleAddNode).Methods("POST")
	s.router.HandleFunc("/api/nodes/{id}", s.handleUpdateNode).Methods("PATCH")
	s.router.HandleFunc("/api/nodes/{id}", s.handleRemoveNode).Methods("DELETE")
	s.router.HandleFunc("/api/links", s.handleAddLink).Methods("POST")
	s.router.HandleFunc("/api/links/{id}/destinations/{index:[0-9]+}", s.handleRemoveDestination).Methods("DELETE")
	s.router.HandleFunc("/api/links/{id}", s.handleUpdateLink).Methods("PATCH")
	s.router.HandleFunc("/api/links/{id}", s.handleRemoveLink).Methods("DELETE")
	s.router.HandleFunc("/api/{kind:comments|documentation}", s.handleAddBlock).Methods("POST")
	s.router.HandleFunc("/api/{kind:comments|documentation}/{id}", s.handleUpdateBlock).Methods("PATCH")
	s.router.HandleFunc("/api/{kind:comments|documentation}/{id}", s.handleRemoveBlock).Methods("DELETE")

	// History, persistence and execution
	s.router.HandleFunc("/api/undo", s.handleUndo).Methods("POST")
	s.router.HandleFunc("/api/redo", s.handleRedo).Methods("POST")
	s.router.HandleFunc("/api/save", s.handleSave).Methods("POST")
	s.router.HandleFunc("/api/runs", s.handleRun).Methods("POST")
	s.router.HandleFunc("/api/runs", s.handleListRuns).Methods("GET")
	s.router.HandleFunc("/api/runs/{id}", s.handleGetRun).Methods("GET")
}

func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	topic := mux.Vars(r)["topic"]

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	// Send initial comment to establish connection (Safari compatibility)
	fmt.Fprintf(w, ": connected\n\n")
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}

	// Browsers resend the last seen id when they reconnect
	after, _ := strconv.Atoi(r.Header.Get("Last-Event-ID"))
	sub, err := s.publisher.SubscribeAfter(r.Context(), topic, max(after, 0))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer sub.Close()

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-sub.Events():
			if !ok {
				return
			}
			if err := pubsub.WriteSSE(w, event); err != nil {
				logging.DebugContext(r.Context(), "SSE client went away", "topic", topic, "error", err)
				return
			}
			if flusher, ok := w.(http.Flusher); ok {
				flusher.Flush()
			}
		}
	}
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Start   string `json:"start"`
		WorkDir string `json:"work_dir"`
	}
	if !decode(w, r, &req) {
		return
	}
	sess, user, ok := s.begin(w, r)
	if !ok {
		return
	}
	workDir := req.WorkDir
	if workDir == "" {
		workDir = s.opts.WorkDir
	}

	id, events, err := sess.Run(s.runCtx, user, req.Start, workDir)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if h := s.opts.History; h != nil {
		var name string
		sess.View(func(ms *model.ModelSystem) { name = ms.Header().Name })
		rec := run.Request{ID: id, ModelSystem: name, Start: req.Start, User: string(user)}
		if err := h.Begin(r.Context(), rec); err != nil {
			logging.WarnContext(r.Context(), "run not recorded", "run", id, "error", err)
		}
		events = h.Observe(events, func(err error) {
			logging.Warn("run event not recorded", "run", id, "error", err)
		})
	}
	go run.Forward(s.publisher, events)
	writeJSON(w, http.StatusAccepted, map[string]string{"run_id": id})
}

// Start starts the web server on the specified port
func (s *Server) Start(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: s.Handler(),
	}
	go func() {
		<-ctx.Done()
		s.cancelRun()
		_ = s.publisher.Close()
		_ = srv.Close()
	}()

	logging.Info("starting web server", "url", fmt.Sprintf("http://localhost:%d", port))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
