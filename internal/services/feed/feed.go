// Package feed fetches the upstream announcement list.
//
// The feed is an HTTP endpoint returning a JSON array of announcement
// objects. The client fails fast: no retries here, the poll driver simply
// waits for the next cycle.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	logx "racebot/pkg/logx"
)

// Announcement is one feed record. Fields the core does not consume
// (e.g. startAtISO) are ignored on decode.
type Announcement struct {
	Key      string `json:"race_key"`
	NotifyAt string `json:"announceAtISO"`
	Message  string `json:"message"`
}

// TransportError covers network failures and non-2xx responses.
type TransportError struct {
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("feed fetch: unexpected status %d", e.Status)
	}
	return fmt.Sprintf("feed fetch: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ShapeError means the response body was not a JSON array of announcements.
type ShapeError struct {
	Err error
}

func (e *ShapeError) Error() string { return fmt.Sprintf("feed decode: %v", e.Err) }

func (e *ShapeError) Unwrap() error { return e.Err }

type Config struct {
	URL     string
	Timeout time.Duration // per-request; 0 means default
}

type Client struct {
	cfg Config
	rc  *resty.Client
	log logx.Logger
}

func NewClient(cfg Config, log logx.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("feed url is empty")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	rc := resty.New().
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	return &Client{cfg: cfg, rc: rc, log: log}, nil
}

// Fetch retrieves the current announcement list.
// Errors are *TransportError or *ShapeError; both leave the caller's
// reservation state untouched.
func (c *Client) Fetch(ctx context.Context) ([]Announcement, error) {
	resp, err := c.rc.R().SetContext(ctx).Get(c.cfg.URL)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	if resp.IsError() {
		return nil, &TransportError{Status: resp.StatusCode()}
	}

	var list []Announcement
	if err := json.Unmarshal(resp.Body(), &list); err != nil {
		return nil, &ShapeError{Err: err}
	}
	return list, nil
}
