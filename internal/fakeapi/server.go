// Copyright (c) 2026 dokeys authors
// dokeys - DigitalOcean SSH key management client
// This source code is licensed under the MIT license found in the LICENSE file.

// Package fakeapi is an in-memory stand-in for the DigitalOcean
// /v2/account/keys endpoints with a lagging read path.
//
// Writes land in the authoritative state at once, so conflicts and unknown
// ids are detected immediately. GET /v2/account/keys however serves a view
// that only catches up with a write after ListLag list requests have missed
// it and Lag has elapsed, which is how the real listing behaves.
package fakeapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/flavienbert/digitalocean/internal/sshkey"
)

const (
	defaultPerPage = 20
	maxPerPage     = 200
)

// Options configures a Server.
type Options struct {
	// Token, when set, is the only accepted bearer token.
	Token string
	// Lag is the minimum wall time before a write shows up in listings.
	Lag time.Duration
	// ListLag is the number of list requests that still miss a write.
	ListLag int
	// Now replaces time.Now.
	Now func() time.Time
}

type stored struct {
	ID          int    `json:"id"`
	Fingerprint string `json:"fingerprint"`
	Name        string `json:"name"`
	PublicKey   string `json:"public_key"`
}

type mutation struct {
	deleted   bool
	key       stored
	at        time.Time
	listsLeft int
}

type injected struct {
	status  int
	message string
}

// Server implements http.Handler.
type Server struct {
	opts   Options
	router chi.Router

	mu      sync.Mutex
	nextID  int
	keys    map[int]stored // authoritative
	view    map[int]stored // what listings return
	pending []mutation
	faults  map[string][]injected
	lists   int
}

// New returns a Server with no keys.
func New(opts Options) *Server {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	s := &Server{
		opts:   opts,
		nextID: 512190,
		keys:   map[int]stored{},
		view:   map[int]stored{},
		faults: map[string][]injected{},
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.requestID)
	r.Use(s.authenticate)
	r.Route("/v2/account/keys", func(r chi.Router) {
		r.Get("/", s.handleList)
		r.Post("/", s.handleCreate)
		r.Get("/{ref}", s.handleGet)
		r.Put("/{ref}", s.handleRename)
		r.Delete("/{ref}", s.handleDelete)
	})
	s.router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// FailNext makes the next call of op ("list", "get", "create", "rename",
// "delete") answer with status instead of being served.
func (s *Server) FailNext(op string, status int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[op] = append(s.faults[op], injected{status: status, message: message})
}

// Settle makes every pending write visible to listings.
func (s *Server) Settle() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.pending {
		s.applyLocked(m)
	}
	s.pending = nil
}

// Pending returns the number of writes not yet visible to listings.
func (s *Server) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// ListCalls returns how many first-page list requests were served.
func (s *Server) ListCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lists
}

// Len returns the number of keys in the authoritative state.
func (s *Server) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.keys)
}

func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Request-Id", uuid.NewString())
		next.ServeHTTP(w, r)
	})
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.opts.Token != "" && r.Header.Get("Authorization") != "Bearer "+s.opts.Token {
			writeError(w, http.StatusUnauthorized, "unauthorized", "Unable to authenticate you")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// faultLocked answers with an injected failure for op, if one is queued.
func (s *Server) faultLocked(w http.ResponseWriter, op string) bool {
	q := s.faults[op]
	if len(q) == 0 {
		return false
	}
	f := q[0]
	s.faults[op] = q[1:]
	writeError(w, f.status, errorID(f.status), f.message)
	return true
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.faultLocked(w, "list") {
		return
	}

	page := intParam(r, "page", 1)
	perPage := intParam(r, "per_page", defaultPerPage)
	if perPage > maxPerPage {
		perPage = maxPerPage
	}

	// Later pages read the view the first page settled on.
	if page == 1 {
		s.lists++
		s.catchUpLocked()
	}

	all := make([]stored, 0, len(s.view))
	for _, k := range s.view {
		all = append(all, k)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })

	start := (page - 1) * perPage
	if start > len(all) {
		start = len(all)
	}
	end := start + perPage
	if end > len(all) {
		end = len(all)
	}

	pages := map[string]string{}
	if end < len(all) {
		pages["next"] = pageURL(r, page+1, perPage)
		pages["last"] = pageURL(r, (len(all)+perPage-1)/perPage, perPage)
	}
	if page > 1 {
		pages["first"] = pageURL(r, 1, perPage)
		pages["prev"] = pageURL(r, page-1, perPage)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ssh_keys": all[start:end],
		"links":    map[string]any{"pages": pages},
		"meta":     map[string]any{"total": len(all)},
	})
}

// catchUpLocked applies every pending write that is due, then charges the
// remaining ones for the list request being served.
func (s *Server) catchUpLocked() {
	now := s.opts.Now()
	i := 0
	for ; i < len(s.pending); i++ {
		m := s.pending[i]
		if m.listsLeft > 0 || now.Sub(m.at) < s.opts.Lag {
			break
		}
		s.applyLocked(m)
	}
	s.pending = s.pending[i:]
	for j := range s.pending {
		s.pending[j].listsLeft--
	}
}

func (s *Server) applyLocked(m mutation) {
	if m.deleted {
		delete(s.view, m.key.ID)
		return
	}
	s.view[m.key.ID] = m.key
}

func (s *Server) recordLocked(k stored, deleted bool) {
	s.pending = append(s.pending, mutation{
		deleted:   deleted,
		key:       k,
		at:        s.opts.Now(),
		listsLeft: s.opts.ListLag,
	})
}

type keyRequest struct {
	Name      string `json:"name"`
	PublicKey string `json:"public_key"`
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req keyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Unable to parse request body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.faultLocked(w, "create") {
		return
	}

	if req.Name == "" {
		writeError(w, http.StatusUnprocessableEntity, "unprocessable_entity", "Name is required")
		return
	}
	fp, err := sshkey.Fingerprint(req.PublicKey)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "unprocessable_entity", "Key invalid type, we support 'ssh-rsa', 'ssh-dss', 'ecdsa-sha2-nistp' or 'ssh-ed25519'")
		return
	}
	for _, k := range s.keys {
		if k.Fingerprint == fp {
			writeError(w, http.StatusUnprocessableEntity, "unprocessable_entity", "SSH Key is already in use on your account")
			return
		}
		if k.Name == req.Name {
			writeError(w, http.StatusUnprocessableEntity, "unprocessable_entity", "Name is already in use on your account")
			return
		}
	}

	k := stored{ID: s.nextID, Fingerprint: fp, Name: req.Name, PublicKey: req.PublicKey}
	s.nextID++
	s.keys[k.ID] = k
	s.recordLocked(k, false)
	writeJSON(w, http.StatusCreated, map[string]any{"ssh_key": k})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.faultLocked(w, "get") {
		return
	}
	k, ok := s.lookupLocked(chi.URLParam(r, "ref"))
	if !ok {
		writeNotFound(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ssh_key": k})
}

func (s *Server) handleRename(w http.ResponseWriter, r *http.Request) {
	var req keyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Unable to parse request body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.faultLocked(w, "rename") {
		return
	}

	k, ok := s.lookupLocked(chi.URLParam(r, "ref"))
	if !ok {
		writeNotFound(w)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusUnprocessableEntity, "unprocessable_entity", "Name is required")
		return
	}
	for _, other := range s.keys {
		if other.ID != k.ID && other.Name == req.Name {
			writeError(w, http.StatusUnprocessableEntity, "unprocessable_entity", "Name is already in use on your account")
			return
		}
	}

	k.Name = req.Name
	s.keys[k.ID] = k
	s.recordLocked(k, false)
	writeJSON(w, http.StatusOK, map[string]any{"ssh_key": k})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.faultLocked(w, "delete") {
		return
	}

	k, ok := s.lookupLocked(chi.URLParam(r, "ref"))
	if !ok {
		writeNotFound(w)
		return
	}
	delete(s.keys, k.ID)
	s.recordLocked(k, true)
	w.WriteHeader(http.StatusNoContent)
}

// lookupLocked resolves ref as a numeric id or else as a fingerprint.
func (s *Server) lookupLocked(ref string) (stored, bool) {
	if ref, err := url.PathUnescape(ref); err == nil {
		if id, err := strconv.Atoi(ref); err == nil {
			k, ok := s.keys[id]
			return k, ok
		}
		for _, k := range s.keys {
			if k.Fingerprint == ref {
				return k, true
			}
		}
	}
	return stored{}, false
}

func intParam(r *http.Request, name string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil || v < 1 {
		return def
	}
	return v
}

func pageURL(r *http.Request, page, perPage int) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/v2/account/keys?page=%d&per_page=%d", scheme, r.Host, page, perPage)
}

func errorID(status int) string {
	switch status {
	case http.StatusNotFound:
		return "not_found"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusUnprocessableEntity:
		return "unprocessable_entity"
	case http.StatusTooManyRequests:
		return "too_many_requests"
	default:
		return "server_error"
	}
}

func writeNotFound(w http.ResponseWriter) {
	writeError(w, http.StatusNotFound, "not_found", "The resource you were accessing could not be found.")
}

func writeError(w http.ResponseWriter, status int, id, message string) {
	writeJSON(w, status, map[string]string{
		"id":         id,
		"message":    message,
		"request_id": w.Header().Get("X-Request-Id"),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
