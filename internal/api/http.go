// Copyright (c) 2026 dokeys authors
// dokeys - DigitalOcean SSH key management client
// This source code is licensed under the MIT license found in the LICENSE file.

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/flavienbert/digitalocean/internal/metrics"
	"github.com/flavienbert/digitalocean/internal/model"
)

const (
	keysPath = "/v2/account/keys"
	// maxPages stops a misbehaving server from looping us through pages forever.
	maxPages = 1000
	// maxErrorBody bounds how much of an error response is read.
	maxErrorBody = 64 << 10
)

// HTTPClient talks to the DigitalOcean v2 API.
type HTTPClient struct {
	baseURL    *url.URL
	token      string
	httpClient *http.Client
	userAgent  string
	pageSize   int
	timeout    time.Duration
	metrics    *metrics.Metrics
}

var _ Client = (*HTTPClient)(nil)

// Option configures an HTTPClient.
type Option func(*HTTPClient)

// WithHTTPClient replaces the default instrumented http.Client. A nil
// client keeps the default.
func WithHTTPClient(c *http.Client) Option {
	return func(h *HTTPClient) {
		if c != nil {
			h.httpClient = c
		}
	}
}

// WithTimeout sets the per-request timeout. It applies to a copy of the
// http.Client, so a client passed through WithHTTPClient is left untouched.
func WithTimeout(d time.Duration) Option {
	return func(h *HTTPClient) {
		h.timeout = d
	}
}

func WithUserAgent(ua string) Option {
	return func(h *HTTPClient) {
		h.userAgent = ua
	}
}

// WithPageSize sets per_page for List. Values outside 1..200 are ignored.
func WithPageSize(n int) Option {
	return func(h *HTTPClient) {
		if n > 0 && n <= 200 {
			h.pageSize = n
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(h *HTTPClient) {
		h.metrics = m
	}
}

// NewHTTPClient returns a client for the API rooted at baseURL
// (e.g. https://api.digitalocean.com) authenticating with token.
func NewHTTPClient(baseURL, token string, opts ...Option) (*HTTPClient, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse api url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("parse api url: %q is not absolute", baseURL)
	}

	c := &HTTPClient{
		baseURL: u,
		token:   token,
		httpClient: &http.Client{
			Timeout:   30 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		userAgent: "dokeys",
		pageSize:  200,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.timeout > 0 {
		hc := *c.httpClient
		hc.Timeout = c.timeout
		c.httpClient = &hc
	}
	return c, nil
}

type keyJSON struct {
	ID          json.Number `json:"id"`
	Fingerprint string      `json:"fingerprint"`
	Name        string      `json:"name"`
	PublicKey   string      `json:"public_key"`
}

func (k keyJSON) toModel() model.Key {
	return model.Key{
		ID:          model.KeyID(k.ID.String()),
		Fingerprint: k.Fingerprint,
		Name:        k.Name,
		PublicKey:   k.PublicKey,
	}
}

type keyEnvelope struct {
	SSHKey keyJSON `json:"ssh_key"`
}

type listEnvelope struct {
	SSHKeys []keyJSON `json:"ssh_keys"`
	Links   struct {
		Pages struct {
			Next string `json:"next"`
		} `json:"pages"`
	} `json:"links"`
}

type errorBody struct {
	ID        string `json:"id"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
}

func (c *HTTPClient) List(ctx context.Context) ([]model.Key, error) {
	q := url.Values{}
	q.Set("page", "1")
	q.Set("per_page", strconv.Itoa(c.pageSize))
	next := c.endpoint(keysPath) + "?" + q.Encode()

	var keys []model.Key
	seen := map[string]bool{}
	for page := 1; next != ""; page++ {
		// A listing cut short would look like keys vanished, so a
		// pagination fault fails the whole call.
		if page > maxPages {
			return nil, c.listFault(fmt.Errorf("more than %d pages", maxPages))
		}
		if seen[next] {
			return nil, c.listFault(fmt.Errorf("page %d links back to %s", page-1, next))
		}
		seen[next] = true

		var env listEnvelope
		if err := c.do(ctx, "list", http.MethodGet, next, nil, &env); err != nil {
			return nil, err
		}
		for _, k := range env.SSHKeys {
			keys = append(keys, k.toModel())
		}
		var err error
		if next, err = c.resolve(env.Links.Pages.Next); err != nil {
			return nil, c.listFault(fmt.Errorf("next page link %q: %w", env.Links.Pages.Next, err))
		}
	}
	c.metrics.ObserveRequest("list", "ok")
	return keys, nil
}

// listFault reports a listing whose pagination cannot be followed to the end.
func (c *HTTPClient) listFault(err error) error {
	c.metrics.ObserveRequest("list", "transport")
	return &Error{Op: "list", Kind: ErrTransport, Message: "incomplete listing", Err: err}
}

func (c *HTTPClient) Get(ctx context.Context, id model.KeyID) (model.Key, error) {
	var env keyEnvelope
	if err := c.do(ctx, "get", http.MethodGet, c.keyURL(string(id)), nil, &env); err != nil {
		return model.Key{}, err
	}
	c.metrics.ObserveRequest("get", "ok")
	return env.SSHKey.toModel(), nil
}

func (c *HTTPClient) Create(ctx context.Context, name, publicKey string) (model.Key, error) {
	body := map[string]string{"name": name, "public_key": publicKey}
	var env keyEnvelope
	if err := c.do(ctx, "create", http.MethodPost, c.endpoint(keysPath), body, &env); err != nil {
		return model.Key{}, err
	}
	c.metrics.ObserveRequest("create", "ok")
	return env.SSHKey.toModel(), nil
}

func (c *HTTPClient) RenameByID(ctx context.Context, id model.KeyID, newName string) (model.Key, error) {
	return c.rename(ctx, string(id), newName)
}

func (c *HTTPClient) RenameByFingerprint(ctx context.Context, fingerprint, newName string) (model.Key, error) {
	return c.rename(ctx, fingerprint, newName)
}

func (c *HTTPClient) rename(ctx context.Context, ref, newName string) (model.Key, error) {
	body := map[string]string{"name": newName}
	var env keyEnvelope
	if err := c.do(ctx, "rename", http.MethodPut, c.keyURL(ref), body, &env); err != nil {
		return model.Key{}, err
	}
	c.metrics.ObserveRequest("rename", "ok")
	return env.SSHKey.toModel(), nil
}

func (c *HTTPClient) DeleteByID(ctx context.Context, id model.KeyID) error {
	return c.delete(ctx, string(id))
}

func (c *HTTPClient) DeleteByFingerprint(ctx context.Context, fingerprint string) error {
	return c.delete(ctx, fingerprint)
}

func (c *HTTPClient) delete(ctx context.Context, ref string) error {
	if err := c.do(ctx, "delete", http.MethodDelete, c.keyURL(ref), nil, nil); err != nil {
		return err
	}
	c.metrics.ObserveRequest("delete", "ok")
	return nil
}

func (c *HTTPClient) endpoint(path string) string {
	return c.baseURL.String() + path
}

func (c *HTTPClient) keyURL(ref string) string {
	return c.endpoint(keysPath) + "/" + url.PathEscape(ref)
}

// resolve turns a pagination link into an absolute URL. Relative links are
// taken against the base URL.
func (c *HTTPClient) resolve(link string) (string, error) {
	if link == "" {
		return "", nil
	}
	u, err := url.Parse(link)
	if err != nil {
		return "", err
	}
	return c.baseURL.ResolveReference(u).String(), nil
}

// do performs one request. Failures are returned as *Error and counted; the
// caller counts successes so multi-page lists count once.
func (c *HTTPClient) do(ctx context.Context, op, method, rawURL string, in, out any) (err error) {
	defer func() {
		if err != nil {
			c.metrics.ObserveRequest(op, Kind(err))
		}
	}()

	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return &Error{Op: op, Kind: ErrValidation, Err: err}
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return &Error{Op: op, Kind: ErrTransport, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &Error{Op: op, Kind: ErrTransport, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(op, resp)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &Error{Op: op, Kind: ErrTransport, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func decodeError(op string, resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var eb errorBody
	if err := json.Unmarshal(raw, &eb); err != nil || (eb.ID == "" && eb.Message == "") {
		eb.Message = strings.TrimSpace(string(raw))
	}
	if eb.RequestID == "" {
		eb.RequestID = resp.Header.Get("X-Request-Id")
	}
	return &Error{
		Op:        op,
		Kind:      classify(resp.StatusCode, eb.ID, eb.Message),
		Status:    resp.StatusCode,
		ID:        eb.ID,
		Message:   eb.Message,
		RequestID: eb.RequestID,
	}
}

// IsTimeout reports whether err was caused by a context deadline or a
// client side timeout rather than by the provider.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne interface{ Timeout() bool }
	return errors.As(err, &ne) && ne.Timeout()
}
