// Package pocketbase is a REST client for the PocketBase-compatible backend
// that stores game submissions, reviews and screenshots.
package pocketbase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	recordsPath = "/api/collections/%s/records"
	filesPath   = "/api/files/%s/%s/%s"
	healthPath  = "/api/health"

	maxErrorBody = 1 << 20
)

var ErrInvalidBaseURL = errors.New("base url must be an absolute http(s) url")

type Client struct {
	baseURL *url.URL
	http    *http.Client
	log     *slog.Logger
}

func New(log *slog.Logger, baseURL string, timeout time.Duration) (*Client, error) {
	const op = "pocketbase.New"

	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidBaseURL)
	}

	return &Client{
		baseURL: u,
		http:    &http.Client{Timeout: timeout},
		log:     log,
	}, nil
}

func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// NewSession returns an isolated request scope. Auto-cancellation only
// applies between requests of the same session.
func (c *Client) NewSession() *Session {
	return &Session{
		client:   c,
		inflight: make(map[string]*pendingRequest),
	}
}

// FileURL resolves a stored file name to a fetchable URL. thumb is an
// optional "WxH" size understood by the collaborator.
func (c *Client) FileURL(collection, recordID, filename, thumb string) string {
	if collection == "" || recordID == "" || filename == "" {
		return ""
	}

	var query url.Values
	if thumb != "" {
		query = url.Values{"thumb": {thumb}}
	}

	return c.endpoint(fmt.Sprintf(filesPath, collection, recordID, filename), query)
}

func (c *Client) Health(ctx context.Context) error {
	endpoint := c.endpoint(healthPath, nil)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return &Error{Kind: KindCollaborator, URL: endpoint, Message: err.Error(), Err: err}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return transportError(ctx, endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeError(resp, endpoint)
	}

	return nil
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(c.baseURL.Path, "/") + path
	u.RawPath = ""
	u.RawQuery = ""
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

type pendingRequest struct {
	cancel context.CancelCauseFunc
}

// Session issues requests on behalf of one workflow instance. A request
// started with a key that is already in flight cancels the older request.
type Session struct {
	client *Client

	mu       sync.Mutex
	inflight map[string]*pendingRequest
}

type ListOptions struct {
	Page    int
	PerPage int
	Sort    string
	Filter  string

	// RequestKey overrides the default auto-cancellation key (method + path).
	RequestKey string
}

type Page struct {
	Page       int `json:"page"`
	PerPage    int `json:"perPage"`
	TotalItems int `json:"totalItems"`
	TotalPages int `json:"totalPages"`
}

type listResponse struct {
	Page
	Items json.RawMessage `json:"items"`
}

// File is one file part of a multipart create.
type File struct {
	Field       string
	Name        string
	ContentType string
	Data        []byte
}

// List decodes the requested page of records into items, which must be a
// pointer to a slice.
func (s *Session) List(ctx context.Context, collection string, opts ListOptions, items any) (*Page, error) {
	query := url.Values{}

	page := opts.Page
	if page < 1 {
		page = 1
	}
	query.Set("page", strconv.Itoa(page))

	if opts.PerPage > 0 {
		query.Set("perPage", strconv.Itoa(opts.PerPage))
	}
	if opts.Sort != "" {
		query.Set("sort", opts.Sort)
	}
	if opts.Filter != "" {
		query.Set("filter", opts.Filter)
	}

	path := fmt.Sprintf(recordsPath, collection)
	key := opts.RequestKey
	if key == "" {
		key = http.MethodGet + " " + path
	}

	endpoint := s.client.endpoint(path, query)

	var resp listResponse
	if err := s.do(ctx, key, http.MethodGet, endpoint, nil, "", &resp); err != nil {
		return nil, err
	}

	if items != nil && len(resp.Items) > 0 {
		if err := json.Unmarshal(resp.Items, items); err != nil {
			return nil, &Error{Kind: KindCollaborator, URL: endpoint, Message: "malformed list response", Err: err}
		}
	}

	return &resp.Page, nil
}

// View fetches a single record by id.
func (s *Session) View(ctx context.Context, collection, id string, out any) error {
	path := fmt.Sprintf(recordsPath, collection) + "/" + id
	endpoint := s.client.endpoint(path, nil)

	if id == "" || strings.ContainsAny(id, "/?#") {
		return &Error{Kind: KindNotFound, Status: http.StatusNotFound, URL: endpoint, Message: "The requested resource wasn't found."}
	}

	return s.do(ctx, http.MethodGet+" "+path, http.MethodGet, endpoint, nil, "", out)
}

// Create posts body as JSON. Creates are never auto-cancelled.
func (s *Session) Create(ctx context.Context, collection string, body any, out any) error {
	endpoint := s.client.endpoint(fmt.Sprintf(recordsPath, collection), nil)

	payload, err := json.Marshal(body)
	if err != nil {
		return &Error{Kind: KindCollaborator, URL: endpoint, Message: "cannot encode request", Err: err}
	}

	return s.do(ctx, "", http.MethodPost, endpoint, bytes.NewReader(payload), "application/json", out)
}

// CreateMultipart posts text fields and files as multipart/form-data.
func (s *Session) CreateMultipart(ctx context.Context, collection string, fields map[string]string, files []File, out any) error {
	endpoint := s.client.endpoint(fmt.Sprintf(recordsPath, collection), nil)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for _, name := range sortedKeys(fields) {
		if err := w.WriteField(name, fields[name]); err != nil {
			return &Error{Kind: KindCollaborator, URL: endpoint, Message: "cannot encode request", Err: err}
		}
	}

	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition",
			fmt.Sprintf(`form-data; name="%s"; filename="%s"`, quoteEscaper.Replace(f.Field), quoteEscaper.Replace(f.Name)))

		contentType := f.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		h.Set("Content-Type", contentType)

		part, err := w.CreatePart(h)
		if err != nil {
			return &Error{Kind: KindCollaborator, URL: endpoint, Message: "cannot encode request", Err: err}
		}
		if _, err := part.Write(f.Data); err != nil {
			return &Error{Kind: KindCollaborator, URL: endpoint, Message: "cannot encode request", Err: err}
		}
	}

	if err := w.Close(); err != nil {
		return &Error{Kind: KindCollaborator, URL: endpoint, Message: "cannot encode request", Err: err}
	}

	return s.do(ctx, "", http.MethodPost, endpoint, &buf, w.FormDataContentType(), out)
}

// Cancel aborts the in-flight request registered under key, if any.
func (s *Session) Cancel(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.inflight[key]; ok {
		p.cancel(context.Canceled)
		delete(s.inflight, key)
	}
}

// CancelAll aborts every keyed request of the session.
func (s *Session) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, p := range s.inflight {
		p.cancel(context.Canceled)
		delete(s.inflight, key)
	}
}

func (s *Session) FileURL(collection, recordID, filename, thumb string) string {
	return s.client.FileURL(collection, recordID, filename, thumb)
}

func (s *Session) begin(ctx context.Context, key string) (context.Context, func()) {
	ctx, cancel := context.WithCancelCause(ctx)
	if key == "" {
		return ctx, func() { cancel(nil) }
	}

	p := &pendingRequest{cancel: cancel}

	s.mu.Lock()
	if prev, ok := s.inflight[key]; ok {
		prev.cancel(errSuperseded)
	}
	s.inflight[key] = p
	s.mu.Unlock()

	return ctx, func() {
		s.mu.Lock()
		if cur, ok := s.inflight[key]; ok && cur == p {
			delete(s.inflight, key)
		}
		s.mu.Unlock()
		cancel(nil)
	}
}

func (s *Session) do(ctx context.Context, key, method, endpoint string, body io.Reader, contentType string, out any) error {
	ctx, done := s.begin(ctx, key)
	defer done()

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return &Error{Kind: KindCollaborator, URL: endpoint, Message: err.Error(), Err: err}
	}

	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	start := time.Now()
	resp, err := s.client.http.Do(req)
	if err != nil {
		s.client.log.Debug("collaborator request failed",
			slog.String("method", method),
			slog.String("url", endpoint),
			slog.String("error", err.Error()))
		return transportError(ctx, endpoint, err)
	}
	defer resp.Body.Close()

	s.client.log.Debug("collaborator request",
		slog.String("method", method),
		slog.String("url", endpoint),
		slog.Int("status", resp.StatusCode),
		slog.Duration("took", time.Since(start)))

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp, endpoint)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return transportError(ctx, endpoint, err)
		}
		return &Error{Kind: KindCollaborator, Status: resp.StatusCode, URL: endpoint, Message: "malformed response", Err: err}
	}

	return nil
}

func transportError(ctx context.Context, endpoint string, err error) *Error {
	if errors.Is(ctx.Err(), context.Canceled) {
		cause := context.Cause(ctx)
		if cause == nil {
			cause = err
		}
		return &Error{Kind: KindCancelled, URL: endpoint, Message: "The request was autocancelled.", Err: cause}
	}
	return &Error{Kind: KindCollaborator, URL: endpoint, Message: err.Error(), Err: err}
}

func decodeError(resp *http.Response, endpoint string) *Error {
	var payload struct {
		Message string                     `json:"message"`
		Data    map[string]json.RawMessage `json:"data"`
	}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	_ = json.Unmarshal(raw, &payload)

	e := &Error{
		Kind:    KindCollaborator,
		Status:  resp.StatusCode,
		URL:     endpoint,
		Message: payload.Message,
	}
	if e.Message == "" {
		e.Message = http.StatusText(resp.StatusCode)
	}

	for name, rawField := range payload.Data {
		var fe FieldError
		if err := json.Unmarshal(rawField, &fe); err != nil || fe.Message == "" {
			continue
		}
		if e.Fields == nil {
			e.Fields = make(map[string]FieldError)
		}
		e.Fields[name] = fe
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		e.Kind = KindNotFound
	case resp.StatusCode == http.StatusBadRequest && len(e.Fields) > 0:
		e.Kind = KindValidationFailed
	}

	return e
}

var (
	quoteEscaper  = strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	filterEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)
)

// Eq builds a `field = "value"` filter expression with value quoted.
func Eq(field, value string) string {
	return fmt.Sprintf(`%s = "%s"`, field, filterEscaper.Replace(value))
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
