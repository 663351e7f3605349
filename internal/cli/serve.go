package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/tablescope/tablescope/pkg/errors"
	"github.com/tablescope/tablescope/pkg/lineage"
	"github.com/tablescope/tablescope/pkg/store"
)

const serveShutdownTimeout = 5 * time.Second

// serveCommand creates the "serve" command: expose exploration sessions over
// an HTTP API so non-terminal frontends can drive them.
func (c *CLI) serveCommand() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the session API over HTTP",
		Long: `Start an HTTP server exposing lineage exploration sessions.

Routes:
  POST   /api/sessions                open (or resume) a session
  GET    /api/sessions/{id}/graph     current view
  POST   /api/sessions/{id}/expand    expand a node
  POST   /api/sessions/{id}/collapse  collapse a node
  POST   /api/sessions/{id}/snapshot  persist the session
  DELETE /api/sessions/{id}           close the session`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			backend := c.newCacheBackend(ctx, false)
			defer backend.Close()
			gateway, err := c.newGateway(backend)
			if err != nil {
				return err
			}

			snapshots, err := c.newSnapshotStore(ctx)
			if err != nil {
				return err
			}
			defer func() {
				if err := snapshots.Close(context.Background()); err != nil {
					c.Logger.Debug("close snapshot store", "err", err)
				}
			}()

			srv := newServer(gateway, c.newLayoutEngine(), snapshots, c.Logger)
			if addr == "" {
				addr = c.Config.Serve.Addr
			}

			httpSrv := &http.Server{
				Addr:              addr,
				Handler:           srv.routes(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				c.Logger.Info("serving session API", "addr", addr)
				errCh <- httpSrv.ListenAndServe()
			}()

			select {
			case <-ctx.Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), serveShutdownTimeout)
				defer cancel()
				srv.closeAll()
				return httpSrv.Shutdown(shutdownCtx)
			case err := <-errCh:
				if err == http.ErrServerClosed {
					return nil
				}
				return err
			}
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	return cmd
}

// newSnapshotStore selects the snapshot backend: MongoDB when a URI is
// configured, an in-process store otherwise.
func (c *CLI) newSnapshotStore(ctx context.Context) (store.Store, error) {
	if uri := c.Config.Store.MongoURI; uri != "" {
		s, err := store.NewMongoStore(ctx, uri, c.Config.Store.Database)
		if err != nil {
			return nil, fmt.Errorf("connect snapshot store: %w", err)
		}
		c.Logger.Debug("using mongodb snapshot store", "database", c.Config.Store.Database)
		return s, nil
	}
	c.Logger.Debug("using in-memory snapshot store")
	return store.NewMemoryStore(), nil
}

// =============================================================================
// Server - Session API over HTTP
// =============================================================================

// server holds the live sessions and their shared dependencies.
type server struct {
	gateway    lineage.Gateway
	positioner lineage.Positioner
	store      store.Store
	logger     *log.Logger

	mu       sync.Mutex
	sessions map[string]*lineage.Session
}

func newServer(gateway lineage.Gateway, positioner lineage.Positioner, snapshots store.Store, logger *log.Logger) *server {
	return &server{
		gateway:    gateway,
		positioner: positioner,
		store:      snapshots,
		logger:     logger,
		sessions:   make(map[string]*lineage.Session),
	}
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Route("/api/sessions", func(r chi.Router) {
		r.Post("/", s.handleOpen)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/graph", s.handleGraph)
			r.Post("/expand", s.handleExpand)
			r.Post("/collapse", s.handleCollapse)
			r.Post("/snapshot", s.handleSnapshot)
			r.Delete("/", s.handleClose)
		})
	})
	return r
}

// logRequests attaches the server logger to the request context and logs
// each request with its status and duration.
func (s *server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := withLogger(r.Context(), s.logger)
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))
		loggerFromContext(ctx).Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start).Round(time.Millisecond))
	})
}

type openRequest struct {
	FQN             string `json:"fqn"`
	EntityType      string `json:"entityType,omitempty"`
	UpstreamDepth   int    `json:"upstreamDepth,omitempty"`
	DownstreamDepth int    `json:"downstreamDepth,omitempty"`
	// SnapshotID resumes a persisted session instead of fetching fresh
	// lineage. FQN is ignored when set.
	SnapshotID string `json:"snapshotId,omitempty"`
}

type openResponse struct {
	ID     string       `json:"id"`
	Center string       `json:"center"`
	View   lineage.View `json:"view"`
}

type nodeOpRequest struct {
	Node      string `json:"node"`
	Direction string `json:"direction"`
}

type snapshotRequest struct {
	Name string `json:"name,omitempty"`
}

type snapshotResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

func (s *server) handleOpen(w http.ResponseWriter, r *http.Request) {
	var req openRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, errors.New(errors.ErrCodeInvalidInput, "malformed request body"))
		return
	}

	var (
		session *lineage.Session
		err     error
	)
	cfg := lineage.SessionConfig{
		Gateway:         s.gateway,
		Positioner:      s.positioner,
		Logger:          loggerFromContext(r.Context()),
		EntityType:      req.EntityType,
		UpstreamDepth:   req.UpstreamDepth,
		DownstreamDepth: req.DownstreamDepth,
	}
	if req.SnapshotID != "" {
		var snap *lineage.Snapshot
		snap, err = s.store.Load(r.Context(), req.SnapshotID)
		if err == store.ErrNotFound {
			s.writeError(w, errors.New(errors.ErrCodeSnapshotNotFound, "snapshot %s not found", req.SnapshotID))
			return
		}
		if err == nil {
			session, err = lineage.ResumeSession(snap, cfg)
		}
	} else {
		if req.FQN == "" {
			s.writeError(w, errors.New(errors.ErrCodeInvalidInput, "fqn is required"))
			return
		}
		session, err = lineage.OpenSession(r.Context(), req.FQN, cfg)
	}
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.mu.Lock()
	s.sessions[session.ID()] = session
	s.mu.Unlock()

	view := session.Recompute(r.Context())
	s.writeJSON(w, http.StatusCreated, openResponse{
		ID:     session.ID(),
		Center: session.Center().Key(),
		View:   view,
	})
}

func (s *server) handleGraph(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, session.Recompute(r.Context()))
}

func (s *server) handleExpand(w http.ResponseWriter, r *http.Request) {
	s.nodeOp(w, r, func(ctx context.Context, session *lineage.Session, node string, dir lineage.Direction) error {
		return session.Expand(ctx, node, dir)
	})
}

func (s *server) handleCollapse(w http.ResponseWriter, r *http.Request) {
	s.nodeOp(w, r, func(ctx context.Context, session *lineage.Session, node string, dir lineage.Direction) error {
		return session.Collapse(ctx, node, dir)
	})
}

func (s *server) nodeOp(w http.ResponseWriter, r *http.Request, op func(context.Context, *lineage.Session, string, lineage.Direction) error) {
	session, ok := s.session(w, r)
	if !ok {
		return
	}

	var req nodeOpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, errors.New(errors.ErrCodeInvalidInput, "malformed request body"))
		return
	}
	if req.Node == "" {
		s.writeError(w, errors.New(errors.ErrCodeInvalidInput, "node is required"))
		return
	}

	if err := op(r.Context(), session, req.Node, lineage.Direction(req.Direction)); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, session.Recompute(r.Context()))
}

func (s *server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(w, r)
	if !ok {
		return
	}

	var req snapshotRequest
	if r.Body != nil {
		// Body is optional; decode errors on an empty body are fine.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	snap := session.Snapshot(req.Name)
	if err := s.store.Save(r.Context(), snap); err != nil {
		s.writeError(w, errors.Wrap(errors.ErrCodeInternal, err, "persist snapshot"))
		return
	}
	s.writeJSON(w, http.StatusCreated, snapshotResponse{
		ID:        snap.ID,
		Name:      snap.Name,
		CreatedAt: snap.CreatedAt,
	})
}

func (s *server) handleClose(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s.mu.Lock()
	session, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if !ok {
		s.writeError(w, errors.New(errors.ErrCodeSessionNotFound, "session %s not found", id))
		return
	}
	session.Close()
	w.WriteHeader(http.StatusNoContent)
}

// closeAll tears down every live session, used on server shutdown.
func (s *server) closeAll() {
	s.mu.Lock()
	sessions := make([]*lineage.Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		sessions = append(sessions, session)
	}
	s.sessions = make(map[string]*lineage.Session)
	s.mu.Unlock()

	for _, session := range sessions {
		session.Close()
	}
}

// session resolves the {id} route parameter, writing a 404 on a miss.
func (s *server) session(w http.ResponseWriter, r *http.Request) (*lineage.Session, bool) {
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	session, ok := s.sessions[id]
	s.mu.Unlock()
	if !ok {
		s.writeError(w, errors.New(errors.ErrCodeSessionNotFound, "session %s not found", id))
		return nil, false
	}
	return session, true
}

// =============================================================================
// JSON Responses
// =============================================================================

type errorPayload struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (s *server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug("write response", "err", err)
	}
}

func (s *server) writeError(w http.ResponseWriter, err error) {
	code := errors.GetCode(err)
	s.writeJSON(w, httpStatus(code), errorPayload{Error: errorBody{
		Code:    string(code),
		Message: errors.UserMessage(err),
	}})
}

// httpStatus maps an error code onto an HTTP status.
func httpStatus(code errors.Code) int {
	switch code {
	case errors.ErrCodeInvalidInput, errors.ErrCodeInvalidEntity,
		errors.ErrCodeInvalidDirection, errors.ErrCodeInvalidDepth,
		errors.ErrCodeInvalidFormat:
		return http.StatusBadRequest
	case errors.ErrCodeNotFound, errors.ErrCodeEntityNotFound,
		errors.ErrCodeCenterNotFound, errors.ErrCodeSnapshotNotFound,
		errors.ErrCodeSessionNotFound:
		return http.StatusNotFound
	case errors.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case errors.ErrCodeSessionClosed:
		return http.StatusConflict
	case errors.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
