package report

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

// DBCache keeps one DuckDB connection and reopens it after refreshRate so
// newly archived files become visible. A replaced connection stays open
// until every caller that acquired it has released it.
type DBCache struct {
	roots       []string
	refreshRate time.Duration

	mu          sync.Mutex
	cur         *dbHandle
	lastRefresh time.Time
}

type dbHandle struct {
	db      *sql.DB
	refs    int
	retired bool
}

func NewDBCache(roots []string, refreshRate time.Duration) *DBCache {
	return &DBCache{roots: roots, refreshRate: refreshRate}
}

// Get returns the current connection and a release func that must be called
// once the caller is done querying it.
func (c *DBCache) Get() (*sql.DB, func(), error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cur == nil || time.Since(c.lastRefresh) >= c.refreshRate {
		start := time.Now()
		db, err := Open(c.roots)
		if err != nil {
			return nil, nil, err
		}
		if c.cur != nil {
			_ = c.retireLocked(c.cur)
		}
		c.cur = &dbHandle{db: db}
		c.lastRefresh = time.Now()
		slog.Debug("report db refreshed", "took", time.Since(start))
	}

	h := c.cur
	h.refs++
	var once sync.Once
	release := func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			h.refs--
			if h.retired && h.refs == 0 {
				_ = h.db.Close()
			}
		})
	}
	return h.db, release, nil
}

// retireLocked closes h now if nobody holds it, otherwise on its last release.
func (c *DBCache) retireLocked(h *dbHandle) error {
	h.retired = true
	if h.refs > 0 {
		return nil
	}
	return h.db.Close()
}

func (c *DBCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cur == nil {
		return nil
	}
	err := c.retireLocked(c.cur)
	c.cur = nil
	return err
}

// Server exposes the report queries as JSON:
//
//	GET /api/overview
//	GET /api/blocks?size=1000
//	GET /api/tiles
//	GET /api/episodes?limit=100&offset=0
//	GET /api/episodes/{id}/steps
type Server struct {
	cache *DBCache
}

func NewServer(cache *DBCache) *Server {
	return &Server{cache: cache}
}

func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/overview", s.get(s.handleOverview))
	mux.HandleFunc("/api/blocks", s.get(s.handleBlocks))
	mux.HandleFunc("/api/tiles", s.get(s.handleTiles))
	mux.HandleFunc("/api/episodes", s.get(s.handleEpisodes))
	mux.HandleFunc("/api/episodes/", s.get(s.handleSteps))
}

// get wraps a handler with CORS, method filtering and the cached connection.
func (s *Server) get(h func(http.ResponseWriter, *http.Request, *sql.DB)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		withCORS(w)
		if r.Method == http.MethodOptions {
			return
		}
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		db, release, err := s.cache.Get()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		defer release()
		h(w, r, db)
	}
}

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request, db *sql.DB) {
	o, err := QueryOverview(r.Context(), db)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, o)
}

func (s *Server) handleBlocks(w http.ResponseWriter, r *http.Request, db *sql.DB) {
	blocks, err := QueryBlocks(r.Context(), db, parseIntQuery(r, "size", 1000))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, blocks)
}

func (s *Server) handleTiles(w http.ResponseWriter, r *http.Request, db *sql.DB) {
	tiles, err := QueryTileRates(r.Context(), db)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, tiles)
}

func (s *Server) handleEpisodes(w http.ResponseWriter, r *http.Request, db *sql.DB) {
	eps, err := QueryEpisodes(r.Context(), db, parseIntQuery(r, "limit", 100), parseIntQuery(r, "offset", 0))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, eps)
}

func (s *Server) handleSteps(w http.ResponseWriter, r *http.Request, db *sql.DB) {
	// /api/episodes/{id}/steps
	rest := strings.TrimPrefix(r.URL.Path, "/api/episodes/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] != "steps" {
		http.NotFound(w, r)
		return
	}
	id, err := url.PathUnescape(parts[0])
	if err != nil {
		http.Error(w, "bad episode id", http.StatusBadRequest)
		return
	}
	steps, err := QuerySteps(r.Context(), db, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			http.NotFound(w, r)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, steps)
}

func withCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func parseIntQuery(r *http.Request, key string, def int) int {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}
