package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/thewpminute/podloom/app/apperr"
)

const MaxRedirects = 3

// Request describes one outbound conditional GET.
type Request struct {
	URL          string
	ETag         string
	LastModified string
	Accept       string
	MaxBytes     int64
	Timeout      time.Duration
}

// Result carries the response back as data. Non-2xx statuses, 304
// included, are results rather than errors so callers can treat them as
// protocol states.
type Result struct {
	Status       int
	Body         []byte
	ETag         string
	LastModified string
	ContentType  string
}

// Client performs outbound HTTP GETs with request-forgery protection,
// redirect and size caps, and conditional headers.
type Client struct {
	httpClient *http.Client
	userAgent  string
	validate   func(string) error
}

func NewClient(userAgent string) *Client {
	return NewClientWithValidator(userAgent, ValidateURL)
}

// NewClientWithValidator builds a client with a custom URL screen, for
// deployments that deliberately fetch from hosts ValidateURL rejects.
func NewClientWithValidator(userAgent string, validate func(string) error) *Client {
	c := &Client{
		userAgent: userAgent,
		validate:  validate,
	}
	c.httpClient = &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= MaxRedirects {
				return fmt.Errorf("stopped after %d redirects", MaxRedirects)
			}
			// Redirect targets get the same host screening as the
			// original URL, so a public host cannot bounce us into
			// the internal network.
			return c.validate(req.URL.String())
		},
	}
	return c
}

func (c *Client) Fetch(ctx context.Context, req Request) (*Result, error) {
	if err := c.validate(req.URL); err != nil {
		return nil, err
	}

	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return nil, apperr.Validation("url", err.Error())
	}

	httpReq.Header.Set("User-Agent", c.userAgent)
	if req.Accept != "" {
		httpReq.Header.Set("Accept", req.Accept)
	}
	if req.ETag != "" {
		httpReq.Header.Set("If-None-Match", req.ETag)
	}
	if req.LastModified != "" {
		httpReq.Header.Set("If-Modified-Since", req.LastModified)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &apperr.TransientFetchError{URL: req.URL, Err: err}
	}
	defer resp.Body.Close()

	result := &Result{
		Status:       resp.StatusCode,
		ETag:         resp.Header.Get("ETag"),
		LastModified: resp.Header.Get("Last-Modified"),
		ContentType:  resp.Header.Get("Content-Type"),
	}

	if resp.StatusCode == http.StatusNotModified {
		return result, nil
	}

	reader := io.Reader(resp.Body)
	if req.MaxBytes > 0 {
		reader = io.LimitReader(resp.Body, req.MaxBytes+1)
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, &apperr.TransientFetchError{URL: req.URL, Err: err}
	}
	if req.MaxBytes > 0 && int64(len(body)) > req.MaxBytes {
		return nil, &apperr.LimitExceededError{
			URL:    req.URL,
			Reason: fmt.Sprintf("response larger than %d bytes", req.MaxBytes),
		}
	}

	result.Body = body
	return result, nil
}
