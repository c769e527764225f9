package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	errs "github.com/jmgilman/go/errors"

	"github.com/five82/skiff/internal/apistore"
)

var _ apistore.Transport = (*Client)(nil)

// Client talks to the API over HTTP.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	userAgent string
}

const (
	defaultAPIBind   = "127.0.0.1:7487"
	defaultUserAgent = "skiff/0.1"
	requestTimeout   = 10 * time.Second
	maxBody          = 4 << 20
)

// NewClient builds a Client for the API at apiBind (host:port or URL).
func NewClient(apiBind string) (*Client, error) {
	base, err := parseBaseURL(apiBind)
	if err != nil {
		return nil, err
	}
	return &Client{
		baseURL: base,
		http: &http.Client{
			Timeout: requestTimeout,
		},
		userAgent: defaultUserAgent,
	}, nil
}

// BaseURL reports the resolved API base URL.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Call implements apistore.Transport.
func (c *Client) Call(ctx context.Context, endpoint apistore.Endpoint, endpointURL string, body []byte) (apistore.Response, error) {
	if c == nil {
		return apistore.Response{}, fmt.Errorf("client is nil")
	}
	rel, err := url.Parse(endpointURL)
	if err != nil {
		return apistore.Response{}, errs.Wrap(err, errs.CodeInvalidInput, "parse endpoint url")
	}
	reqURL := c.baseURL.ResolveReference(rel)

	var reader io.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, endpoint.Method(), reqURL.String(), reader)
	if err != nil {
		return apistore.Response{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return apistore.Response{}, classify(ctx, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return apistore.Response{}, errs.Wrap(err, errs.CodeNetwork, "read response")
	}

	var envelope apistore.Response
	decodeErr := json.Unmarshal(raw, &envelope)
	if resp.StatusCode >= 400 {
		if decodeErr == nil && strings.TrimSpace(envelope.Message) != "" {
			envelope.Success = false
			return envelope, nil
		}
		statusErr := errs.New(statusCode(resp.StatusCode),
			fmt.Sprintf("api %s returned status %d", rel.Path, resp.StatusCode))
		return apistore.Response{}, errs.WithContext(statusErr, "status", resp.StatusCode)
	}
	if decodeErr != nil {
		return apistore.Response{}, errs.Wrap(decodeErr, errs.CodeInternal, "decode response")
	}
	return envelope, nil
}

func classify(ctx context.Context, err error) error {
	switch {
	case errors.Is(ctx.Err(), context.Canceled):
		return errs.Wrap(err, errs.CodeUnavailable, "request canceled")
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return errs.Wrap(err, errs.CodeTimeout, "request timed out")
	default:
		return errs.Wrap(err, errs.CodeNetwork, "execute request")
	}
}

func statusCode(status int) errs.ErrorCode {
	switch {
	case status == http.StatusNotFound:
		return errs.CodeNotFound
	case status == http.StatusUnauthorized:
		return errs.CodeUnauthorized
	case status == http.StatusForbidden:
		return errs.CodeForbidden
	case status == http.StatusConflict:
		return errs.CodeConflict
	case status == http.StatusTooManyRequests:
		return errs.CodeRateLimit
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return errs.CodeTimeout
	case status >= 500:
		return errs.CodeUnavailable
	default:
		return errs.CodeInvalidInput
	}
}

func parseBaseURL(apiBind string) (*url.URL, error) {
	trimmed := strings.TrimSpace(apiBind)
	if trimmed == "" {
		trimmed = defaultAPIBind
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse api_bind %q: %w", apiBind, err)
	}
	u.Path = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
