package icecast

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/tracksidelive/trackside/pkg/logging"
)

// Source is one mounted stream as reported by status-json.xsl.
type Source struct {
	ListenURL  string `json:"listenurl"`
	ServerName string `json:"server_name"`
	Listeners  int    `json:"listeners"`
}

// ActiveMountSet is the set of mount paths currently mounted on the server,
// keyed by path ("/lmsc-18-j-carter.mp3").
type ActiveMountSet map[string]Source

// Contains reports whether the exact mount path is active.
func (s ActiveMountSet) Contains(mount string) bool {
	_, ok := s[mount]
	return ok
}

// Paths returns the mount paths in no particular order.
func (s ActiveMountSet) Paths() []string {
	paths := make([]string, 0, len(s))
	for p := range s {
		paths = append(paths, p)
	}
	return paths
}

// statusDoc mirrors the status-json.xsl envelope. The source field is an
// object when one stream is mounted and an array when several are, so it is
// deferred to raw JSON and decoded both ways.
type statusDoc struct {
	Icestats struct {
		Source json.RawMessage `json:"source"`
	} `json:"icestats"`
}

// parseSources handles the three shapes of icestats.source: absent (no
// mounts), a single object, or an array.
func parseSources(body []byte) ([]Source, error) {
	var doc statusDoc
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("parse icecast status: %w", err)
	}
	raw := doc.Icestats.Source
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	var many []Source
	if err := json.Unmarshal(raw, &many); err == nil {
		return many, nil
	}
	var one Source
	if err := json.Unmarshal(raw, &one); err != nil {
		return nil, fmt.Errorf("parse icecast source: %w", err)
	}
	return []Source{one}, nil
}

var listenPathRe = regexp.MustCompile(`(/[^/?#\s]+\.mp3)`)

// mountPath extracts the mount path from a listenurl. Falls back to a regex
// scan when the URL does not parse, which malformed server_name configs can
// produce.
func mountPath(listenURL string) string {
	if u, err := url.Parse(listenURL); err == nil && strings.HasPrefix(u.Path, "/") && u.Path != "/" {
		return u.Path
	}
	if m := listenPathRe.FindString(listenURL); m != "" {
		return m
	}
	return ""
}

// Client queries an Icecast server's status endpoint.
type Client struct {
	client    *resty.Client
	statusURL string
	logger    logging.Logger
}

// NewClient creates a status client for the given server status URL
// (typically http://host:8000/status-json.xsl).
func NewClient(statusURL string, timeout time.Duration, logger logging.Logger) *Client {
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		client:    resty.New().SetTimeout(timeout),
		statusURL: statusURL,
		logger:    logger,
	}
}

// StatusURL returns the configured status endpoint.
func (c *Client) StatusURL() string {
	return c.statusURL
}

// RawStatus fetches the status document verbatim for passthrough serving.
func (c *Client) RawStatus(ctx context.Context) ([]byte, error) {
	resp, err := c.client.R().SetContext(ctx).Get(c.statusURL)
	if err != nil {
		return nil, fmt.Errorf("icecast status: %w", err)
	}
	if resp.StatusCode() >= 400 {
		return nil, fmt.Errorf("icecast status: status %d", resp.StatusCode())
	}
	return resp.Body(), nil
}

// ActiveMounts fetches and parses the current mount set.
func (c *Client) ActiveMounts(ctx context.Context) (ActiveMountSet, error) {
	body, err := c.RawStatus(ctx)
	if err != nil {
		return nil, err
	}
	sources, err := parseSources(body)
	if err != nil {
		return nil, err
	}

	set := make(ActiveMountSet, len(sources))
	for _, src := range sources {
		path := mountPath(src.ListenURL)
		if path == "" {
			c.logger.WithField("listenurl", src.ListenURL).Debug("Skipping source without a usable mount path")
			continue
		}
		set[path] = src
	}
	return set, nil
}
