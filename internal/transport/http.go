package transport

import (
	"bytes"
	"context"
	"fmt"
	"hash/crc32"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	logpkg "github.com/rzbill/provex/pkg/log"
)

// Wire details of the HTTP transaction protocol. The collector side lives in
// internal/collector and mirrors these routes.
const (
	// TransactionsPath is where new transactions are opened, relative to the
	// collector base URL.
	TransactionsPath = "/provenance/transactions"

	// MetaHeaderPrefix carries batch metadata entries as HTTP headers.
	MetaHeaderPrefix = "X-Provex-Meta-"

	// ChecksumHeader carries the client's crc32c of the payload on confirm.
	ChecksumHeader = "X-Provex-Checksum"
)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// HTTPClient implements Client over the collector's HTTP transaction protocol.
type HTTPClient struct {
	base   string
	hc     *http.Client
	logger logpkg.Logger
}

// NewHTTPClient builds a client for the given collector base URL
// (e.g. "http://collector:9090").
func NewHTTPClient(base string, timeout time.Duration, logger logpkg.Logger) (*HTTPClient, error) {
	base = strings.TrimRight(base, "/")
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, fmt.Errorf("transport: invalid collector url %q: %w", base, err)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = logpkg.NewLogger().With(logpkg.Component("transport"))
	}
	return &HTTPClient{base: base, hc: &http.Client{Timeout: timeout}, logger: logger}, nil
}

// OpenSession opens a new transaction. Connection failures and 503 responses
// mean the collector cannot currently accept a transaction and yield
// (nil, nil); any other non-201 response is an error.
func (c *HTTPClient) OpenSession(ctx context.Context) (Session, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+TransactionsPath, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.Debug("collector unreachable", logpkg.Err(err))
		return nil, nil
	}
	defer drain(resp)

	switch resp.StatusCode {
	case http.StatusCreated:
	case http.StatusServiceUnavailable:
		c.logger.Debug("collector refusing transactions", logpkg.Int("status", resp.StatusCode))
		return nil, nil
	default:
		return nil, fmt.Errorf("transport: open transaction: unexpected status %s", resp.Status)
	}

	loc := resp.Header.Get("Location")
	if loc == "" {
		return nil, fmt.Errorf("transport: open transaction: missing Location header")
	}
	txURL, err := resolveLocation(c.base, loc)
	if err != nil {
		return nil, fmt.Errorf("transport: open transaction: %w", err)
	}
	return &httpSession{txURL: txURL, hc: c.hc}, nil
}

func resolveLocation(base, loc string) (string, error) {
	u, err := url.Parse(loc)
	if err != nil {
		return "", err
	}
	if u.IsAbs() {
		return u.String(), nil
	}
	b, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	return b.ResolveReference(u).String(), nil
}

type httpSession struct {
	txURL    string
	hc       *http.Client
	checksum uint32
	sent     bool
}

// Send implements Session.
func (s *httpSession) Send(ctx context.Context, payload []byte, metadata map[string]string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.txURL+"/payload", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	contentType := metadata[MetadataMimeType]
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	req.Header.Set("Content-Type", contentType)
	for k, v := range metadata {
		req.Header.Set(MetaHeaderPrefix+k, v)
	}
	resp, err := s.hc.Do(req)
	if err != nil {
		return fmt.Errorf("transport: send payload: %w", err)
	}
	defer drain(resp)
	if resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("transport: send payload: unexpected status %s", resp.Status)
	}
	s.checksum = crc32.Checksum(payload, castagnoli)
	s.sent = true
	return nil
}

// Confirm implements Session.
func (s *httpSession) Confirm(ctx context.Context) error {
	if !s.sent {
		return fmt.Errorf("transport: confirm before send")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.txURL+"/confirm", nil)
	if err != nil {
		return err
	}
	req.Header.Set(ChecksumHeader, strconv.FormatUint(uint64(s.checksum), 10))
	resp, err := s.hc.Do(req)
	if err != nil {
		return fmt.Errorf("transport: confirm: %w", err)
	}
	defer drain(resp)
	if resp.StatusCode == http.StatusConflict {
		return fmt.Errorf("transport: confirm: checksum mismatch")
	}
	if resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("transport: confirm: unexpected status %s", resp.Status)
	}
	return nil
}

// Complete implements Session.
func (s *httpSession) Complete(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.txURL+"/commit", nil)
	if err != nil {
		return err
	}
	resp, err := s.hc.Do(req)
	if err != nil {
		return fmt.Errorf("transport: commit: %w", err)
	}
	defer drain(resp)
	if resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("transport: commit: unexpected status %s", resp.Status)
	}
	return nil
}

// Abort implements Session.
func (s *httpSession) Abort(ctx context.Context, reason string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, s.txURL, nil)
	if err != nil {
		return err
	}
	if reason != "" {
		req.Header.Set(MetaHeaderPrefix+"abort-reason", reason)
	}
	resp, err := s.hc.Do(req)
	if err != nil {
		return err
	}
	drain(resp)
	return nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}
