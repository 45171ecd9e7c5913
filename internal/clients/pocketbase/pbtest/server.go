// Package pbtest runs an in-memory stand-in for the collaborator REST API.
// It understands just enough of the record, file and health routes for the
// portal's tests.
package pbtest

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"games_portal/internal/models"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

var eqFilter = regexp.MustCompile(`^\s*(\w+)\s*=\s*"((?:[^"\\]|\\.)*)"\s*$`)

type failure struct {
	status  int
	message string
}

type Server struct {
	*httptest.Server

	mu       sync.Mutex
	records  map[string][]map[string]any
	files    map[string][]byte
	required map[string][]string
	failures map[string]failure
	hold     map[string]chan struct{}
	clock    time.Time
	requests []string
}

// New starts a fake collaborator that is closed when the test ends.
func New(t testing.TB) *Server {
	t.Helper()

	s := &Server{
		records:  make(map[string][]map[string]any),
		files:    make(map[string][]byte),
		required: make(map[string][]string),
		failures: make(map[string]failure),
		hold:     make(map[string]chan struct{}),
		clock:    time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC),
	}

	r := chi.NewRouter()
	r.Get("/api/health", s.health)
	r.Get("/api/collections/{collection}/records", s.list)
	r.Post("/api/collections/{collection}/records", s.create)
	r.Get("/api/collections/{collection}/records/{id}", s.view)
	r.Get("/api/files/{collection}/{id}/{name}", s.file)

	s.Server = httptest.NewServer(r)
	t.Cleanup(s.Close)

	return s
}

// Require makes create reject records of collection missing any of fields.
func (s *Server) Require(collection string, fields ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.required[collection] = fields
}

// Fail makes every request matching "METHOD collection" answer with status.
func (s *Server) Fail(method, collection string, status int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[method+" "+collection] = failure{status: status, message: message}
}

func (s *Server) Recover(method, collection string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.failures, method+" "+collection)
}

// Hold blocks list requests whose filter contains match until the returned
// release func is called.
func (s *Server) Hold(match string) (release func()) {
	ch := make(chan struct{})

	s.mu.Lock()
	s.hold[match] = ch
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(ch)
			s.mu.Lock()
			delete(s.hold, match)
			s.mu.Unlock()
		})
	}
}

// Seed stores a record as if it had been created, returning its id.
func (s *Server) Seed(collection string, fields map[string]any) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insert(collection, fields)
}

func (s *Server) Records(collection string) []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]map[string]any, len(s.records[collection]))
	copy(out, s.records[collection])
	return out
}

// Requests lists "METHOD path" of every request served so far.
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

// CountRequests counts requests with the given method against collection records.
func (s *Server) CountRequests(method, collection string) int {
	prefix := fmt.Sprintf("%s /api/collections/%s/records", method, collection)

	n := 0
	for _, r := range s.Requests() {
		if strings.HasPrefix(r, prefix) {
			n++
		}
	}
	return n
}

func (s *Server) insert(collection string, fields map[string]any) string {
	s.clock = s.clock.Add(time.Second)
	stamp := models.NewDateTime(s.clock).String()

	id := strings.ReplaceAll(uuid.NewString(), "-", "")[:15]

	rec := map[string]any{
		"id":             id,
		"collectionId":   "pbc_" + collection,
		"collectionName": collection,
		"created":        stamp,
		"updated":        stamp,
	}
	for k, v := range fields {
		rec[k] = v
	}

	s.records[collection] = append(s.records[collection], rec)
	return id
}

func (s *Server) track(r *http.Request) (failure, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests = append(s.requests, r.Method+" "+r.URL.Path)
	f, ok := s.failures[r.Method+" "+chi.URLParam(r, "collection")]
	return f, ok
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	s.track(r)
	writeJSON(w, http.StatusOK, map[string]any{"code": 200, "message": "API is healthy."})
}

func (s *Server) list(w http.ResponseWriter, r *http.Request) {
	if f, ok := s.track(r); ok {
		writeError(w, f.status, f.message, nil)
		return
	}

	collection := chi.URLParam(r, "collection")
	q := r.URL.Query()

	filterField, filterValue, hasFilter := "", "", false
	if filter := q.Get("filter"); filter != "" {
		m := eqFilter.FindStringSubmatch(filter)
		if m == nil {
			writeError(w, http.StatusBadRequest, "Something went wrong while processing your request. Invalid filter parameters.", nil)
			return
		}
		filterField, filterValue, hasFilter = m[1], strings.NewReplacer(`\"`, `"`, `\\`, `\`).Replace(m[2]), true
	}

	s.mu.Lock()
	var wait chan struct{}
	for match, ch := range s.hold {
		if strings.Contains(q.Get("filter"), match) {
			wait = ch
		}
	}
	s.mu.Unlock()

	if wait != nil {
		select {
		case <-wait:
		case <-r.Context().Done():
			return
		}
	}

	s.mu.Lock()
	var items []map[string]any
	for _, rec := range s.records[collection] {
		if hasFilter && fmt.Sprint(rec[filterField]) != filterValue {
			continue
		}
		items = append(items, rec)
	}
	s.mu.Unlock()

	switch q.Get("sort") {
	case "-created":
		sort.SliceStable(items, func(i, j int) bool {
			return items[i]["created"].(string) > items[j]["created"].(string)
		})
	case "", "created":
	default:
		writeError(w, http.StatusBadRequest, "Unsupported sort.", nil)
		return
	}

	page := atoiDefault(q.Get("page"), 1)
	perPage := atoiDefault(q.Get("perPage"), 30)
	total := len(items)

	start := (page - 1) * perPage
	if start > total {
		start = total
	}
	end := start + perPage
	if end > total {
		end = total
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"page":       page,
		"perPage":    perPage,
		"totalItems": total,
		"totalPages": (total + perPage - 1) / perPage,
		"items":      append([]map[string]any{}, items[start:end]...),
	})
}

func (s *Server) view(w http.ResponseWriter, r *http.Request) {
	if f, ok := s.track(r); ok {
		writeError(w, f.status, f.message, nil)
		return
	}

	collection, id := chi.URLParam(r, "collection"), chi.URLParam(r, "id")

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range s.records[collection] {
		if rec["id"] == id {
			writeJSON(w, http.StatusOK, rec)
			return
		}
	}
	writeError(w, http.StatusNotFound, "The requested resource wasn't found.", nil)
}

func (s *Server) create(w http.ResponseWriter, r *http.Request) {
	if f, ok := s.track(r); ok {
		writeError(w, f.status, f.message, nil)
		return
	}

	collection := chi.URLParam(r, "collection")
	fields := map[string]any{}
	uploads := map[string][]byte{}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "multipart/form-data":
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			writeError(w, http.StatusBadRequest, "Failed to load the submitted data due to invalid formatting.", nil)
			return
		}
		for k, v := range r.MultipartForm.Value {
			fields[k] = v[0]
		}
		for k, headers := range r.MultipartForm.File {
			fh := headers[0]
			f, err := fh.Open()
			if err != nil {
				writeError(w, http.StatusBadRequest, "Failed to read file.", nil)
				return
			}
			data, _ := io.ReadAll(f)
			f.Close()
			fields[k] = fh.Filename
			uploads[fh.Filename] = data
		}
	default:
		if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
			writeError(w, http.StatusBadRequest, "Failed to load the submitted data due to invalid formatting.", nil)
			return
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	missing := map[string]any{}
	for _, name := range s.required[collection] {
		if v, ok := fields[name]; !ok || v == "" || v == nil {
			missing[name] = map[string]string{"code": "validation_required", "message": "Missing required value."}
		}
	}
	if len(missing) > 0 {
		writeError(w, http.StatusBadRequest, "Failed to create record.", missing)
		return
	}

	id := s.insert(collection, fields)
	for name, data := range uploads {
		s.files[collection+"/"+id+"/"+name] = data
	}

	recs := s.records[collection]
	writeJSON(w, http.StatusOK, recs[len(recs)-1])
}

func (s *Server) file(w http.ResponseWriter, r *http.Request) {
	s.track(r)

	// files are addressable by collection id or name
	collection := strings.TrimPrefix(chi.URLParam(r, "collection"), "pbc_")
	key := collection + "/" + chi.URLParam(r, "id") + "/" + chi.URLParam(r, "name")

	s.mu.Lock()
	data, ok := s.files[key]
	s.mu.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, "The requested resource wasn't found.", nil)
		return
	}
	_, _ = w.Write(data)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string, data map[string]any) {
	if data == nil {
		data = map[string]any{}
	}
	writeJSON(w, status, map[string]any{"code": status, "message": message, "data": data})
}

func atoiDefault(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return def
	}
	return n
}
