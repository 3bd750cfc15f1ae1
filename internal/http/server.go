package http

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strconv"
	"sync"
	"time"

	"finanlito/internal/cache"
	"finanlito/internal/kanban"
	applog "finanlito/internal/log"
	"finanlito/internal/middleware/ratelimit"
	"finanlito/internal/middleware/security"
	"finanlito/internal/middleware/trace"
	"finanlito/internal/ports"
)

// Store is the backend the boards are kept in sync with.
type Store interface {
	ports.TransactionService
	ports.CategoryLister
}

// Options configures a Server.
type Options struct {
	Board kanban.Options

	// BoardCacheSize bounds the number of loaded boards kept in memory.
	BoardCacheSize int
	// BoardCacheTTL drops a board after this long without requests.
	BoardCacheTTL time.Duration

	RateLimitPerMinute int
	Logger             *applog.Logger
}

// Server serves the board JSON API. It keeps one loaded kanban.Board per
// (credential, year) pair.
type Server struct {
	http.Server
	store   Store
	opts    Options
	log     *applog.Logger
	clock   func() time.Time
	boards  *cache.LRUCache[*kanban.Board]
	caches  *cache.Manager
	limiter *ratelimit.Limiter

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, store Store, opts Options) *Server {
	if opts.BoardCacheSize < 1 {
		opts.BoardCacheSize = 100
	}
	if opts.BoardCacheTTL <= 0 {
		opts.BoardCacheTTL = 30 * time.Minute
	}
	logger := opts.Logger
	if logger == nil {
		logger = applog.FromSlog(nil, applog.ComponentHTTP)
	}
	if opts.Board.Logger == nil {
		opts.Board.Logger = logger
	}
	clock := opts.Board.Clock
	if clock == nil {
		clock = time.Now
	}

	s := &Server{
		store:   store,
		opts:    opts,
		log:     logger.WithComponent(applog.ComponentHTTP),
		clock:   clock,
		boards:  cache.NewLRUCache[*kanban.Board](opts.BoardCacheSize, opts.BoardCacheTTL),
		caches:  cache.NewManager(),
		limiter: ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
	}
	s.caches.Register(s.boards)
	s.caches.StartCleanup(time.Minute)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)

	mux.HandleFunc("GET /api/board", s.authed(s.handleBoard))
	mux.HandleFunc("POST /api/board/reload", s.authed(s.handleReload))
	mux.HandleFunc("GET /api/balance", s.authed(s.handleBalance))

	mux.HandleFunc("POST /api/transactions", s.authed(s.handleCreate))
	mux.HandleFunc("PATCH /api/transactions/{id}", s.authed(s.handleUpdate))
	mux.HandleFunc("DELETE /api/transactions/{id}", s.authed(s.handleDelete))
	mux.HandleFunc("POST /api/transactions/{id}/move", s.authed(s.handleMove))
	mux.HandleFunc("POST /api/transactions/{id}/clone", s.authed(s.handleClone))
	mux.HandleFunc("POST /api/transactions/bulk/clone", s.authed(s.handleCloneMany))
	mux.HandleFunc("POST /api/transactions/bulk/delete", s.authed(s.handleDeleteMany))
	mux.HandleFunc("POST /api/months/replicate", s.authed(s.handleReplicate))

	mux.HandleFunc("GET /api/categories", s.authed(s.handleCategories))
	mux.HandleFunc("POST /api/categories/rename", s.authed(s.handleRenameCategory))
	mux.HandleFunc("DELETE /api/categories/{name}", s.authed(s.handleDeleteCategory))

	var h http.Handler = mux
	h = s.limiter.Middleware(trace.ClientIP, func(w http.ResponseWriter, r *http.Request) {
		applog.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded", applog.FieldClientIP, trace.ClientIP(r))
		writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "rate limit exceeded, try again later"})
	})(h)
	h = security.Headers(security.DefaultHeadersConfig())(h)
	h = applog.Middleware(s.log, trace.RequestID, trace.ClientIP)(h)
	h = trace.Middleware(h)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Shutdown stops the background cleanups and shuts the HTTP server down.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.caches.Stop()
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

type tokenKey struct{}

// authed rejects requests without a bearer token and passes the token on in
// the request context.
func (s *Server) authed(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tok, ok := bearerToken(r)
		if !ok {
			writeError(w, r, ports.ErrUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), tokenKey{}, tok)
		next(w, r.WithContext(ctx))
	}
}

func tokenOf(r *http.Request) string {
	tok, _ := r.Context().Value(tokenKey{}).(string)
	return tok
}

// board returns the loaded board of the caller for year, loading it on first
// use. Concurrent first requests share one load.
func (s *Server) board(r *http.Request, year int) (*kanban.Board, error) {
	tok := tokenOf(r)
	return s.boards.GetOrLoad(r.Context(), sessionKey(tok, year), func(ctx context.Context) (*kanban.Board, error) {
		b := kanban.NewBoard(s.store, s.opts.Board)
		if _, err := b.Load(ctx, year, tok); err != nil {
			return nil, err
		}
		return b, nil
	})
}

// sessionKey avoids keeping raw credentials as cache keys.
func sessionKey(token string, year int) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:8]) + ":" + strconv.Itoa(year)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// SweepOverdue reruns the overdue migration on every loaded board, so
// boards kept across midnight pick up the records that just became late.
func (s *Server) SweepOverdue(ctx context.Context) int {
	total := 0
	for _, b := range s.boards.Values() {
		n, err := b.MigrateOverdue(ctx)
		if err != nil {
			s.log.LogError(ctx, "Overdue sweep failed", err, applog.OpMigrate, nil)
			continue
		}
		total += n
	}
	if total > 0 {
		s.log.InfoContext(ctx, "Overdue sweep", applog.FieldCount, total)
	}
	return total
}
