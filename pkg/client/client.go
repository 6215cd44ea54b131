package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cuemby/zakuro/pkg/types"
)

// Client is a thin HTTP client for zc:// (broker) and zakuro://
// (direct worker) addresses, mirroring BrokerProcessor's connect/
// execute/get_credits/add_credits/list_workers surface from the
// original Python client.
type Client struct {
	baseURL string
	userID  string
	apiKey  string
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithAPIKey sets the bearer token sent as Authorization: Bearer <key>.
// The broker extracts a user_id from a "zk_<user>_<random>" shaped key
// without verifying it (spec.md §9 Open Question c).
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// WithUserID sets the X-Zakuro-User header used when no API key is
// configured.
func WithUserID(userID string) Option {
	return func(c *Client) { c.userID = userID }
}

// New resolves addr (accepting zc://, zakuro://, broker://, or plain
// http://) into a Client. Each request has a single 300s overall
// timeout, matching spec.md §4.1's per-request worker call deadline.
func New(addr string, opts ...Option) (*Client, error) {
	base, err := resolveBaseURL(addr)
	if err != nil {
		return nil, err
	}

	c := &Client{
		baseURL: base,
		http: &http.Client{
			Timeout: 300 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.userID == "" {
		c.userID = deriveUserID(c.apiKey)
	}
	return c, nil
}

func resolveBaseURL(addr string) (string, error) {
	u, err := url.Parse(addr)
	if err != nil {
		return "", fmt.Errorf("parse address: %w", err)
	}

	scheme := u.Scheme
	host := u.Host
	if host == "" {
		host = u.Opaque
	}

	switch scheme {
	case "zc", "broker":
		return "http://" + withDefaultPort(host, 9000), nil
	case "zakuro":
		return "http://" + withDefaultPort(host, 3960), nil
	case "http", "https":
		return scheme + "://" + host, nil
	default:
		return "", fmt.Errorf("unsupported scheme %q (expected zc, zakuro, broker, or http)", scheme)
	}
}

func withDefaultPort(host string, port int) string {
	if strings.Contains(host, ":") {
		return host
	}
	return fmt.Sprintf("%s:%d", host, port)
}

// deriveUserID extracts the user segment from a "zk_<user>_<random>"
// API key, the same unverified substring extraction the broker itself
// performs (spec.md §9 Open Question c).
func deriveUserID(apiKey string) string {
	if !strings.HasPrefix(apiKey, "zk_") {
		return "anonymous"
	}
	rest := apiKey[len("zk_"):]
	idx := strings.LastIndex(rest, "_")
	if idx <= 0 {
		return "anonymous"
	}
	return rest[:idx]
}

func (c *Client) authHeader(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	} else {
		req.Header.Set("X-Zakuro-User", c.userID)
	}
}

// ExecuteResult is the outcome of a successful /execute call.
type ExecuteResult struct {
	Body             []byte
	CostCredits      float64
	CreditsRemaining float64
	Worker           string
	DurationMs       int64
}

// Execute posts an opaque payload to the broker's /execute endpoint
// with the given requirements, returning the worker's opaque response
// body plus the cost headers.
func (c *Client) Execute(payload []byte, reqs types.Requirements) (*ExecuteResult, error) {
	reqJSON, err := json.Marshal(reqs)
	if err != nil {
		return nil, fmt.Errorf("marshal requirements: %w", err)
	}

	httpReq, err := http.NewRequest(http.MethodPost, c.baseURL+"/execute", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/octet-stream")
	httpReq.Header.Set("X-Zakuro-Requirements", string(reqJSON))
	c.authHeader(httpReq)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if err := statusErr(resp.StatusCode, body); err != nil {
		return nil, err
	}

	return &ExecuteResult{
		Body:             body,
		CostCredits:      parseFloatHeader(resp.Header.Get("X-Zakuro-Cost")),
		CreditsRemaining: parseFloatHeader(resp.Header.Get("X-Zakuro-Credits-Remaining")),
		Worker:           resp.Header.Get("X-Zakuro-Worker"),
		DurationMs:       parseIntHeader(resp.Header.Get("X-Zakuro-Duration-Ms")),
	}, nil
}

func statusErr(code int, body []byte) error {
	switch code {
	case http.StatusOK:
		return nil
	case http.StatusPaymentRequired:
		return fmt.Errorf("insufficient credits: %s", body)
	case http.StatusTooManyRequests:
		return fmt.Errorf("rate limited")
	case http.StatusServiceUnavailable:
		return fmt.Errorf("no workers available")
	case http.StatusGone:
		return fmt.Errorf("affinity lost: instance must be recreated")
	default:
		return fmt.Errorf("unexpected status %d: %s", code, body)
	}
}

func parseFloatHeader(v string) float64 {
	f, _ := strconv.ParseFloat(v, 64)
	return f
}

func parseIntHeader(v string) int64 {
	n, _ := strconv.ParseInt(v, 10, 64)
	return n
}

// CreditsInfo mirrors the broker's /credits/{user} response shape.
type CreditsInfo struct {
	UserID      string  `json:"user_id"`
	Balance     float64 `json:"balance"`
	TotalSpent  float64 `json:"total_spent"`
	RateLimit   float64 `json:"rate_limit,omitempty"`
}

// GetCredits fetches the caller's current balance.
func (c *Client) GetCredits() (*CreditsInfo, error) {
	var out CreditsInfo
	if err := c.getJSON(fmt.Sprintf("/credits/%s", c.userID), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AddCredits deposits amount credits into the caller's account.
func (c *Client) AddCredits(amount float64, description string) (*CreditsInfo, error) {
	body, err := json.Marshal(map[string]any{"amount": amount, "description": description})
	if err != nil {
		return nil, err
	}
	var out CreditsInfo
	if err := c.postJSON(fmt.Sprintf("/credits/%s/add", c.userID), body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListWorkers returns the broker's current worker set.
func (c *Client) ListWorkers() ([]*types.Worker, error) {
	var out struct {
		Workers []*types.Worker `json:"workers"`
	}
	if err := c.getJSON("/workers", &out); err != nil {
		return nil, err
	}
	return out.Workers, nil
}

// PriceEstimate is the broker's advisory /price response.
type PriceEstimate struct {
	MinCost         float64 `json:"min_cost"`
	MaxCost         float64 `json:"max_cost"`
	MatchingWorkers int     `json:"matching_workers"`
}

// Price asks the broker for an advisory cost range for reqs without
// reserving or executing anything.
func (c *Client) Price(reqs types.Requirements) (*PriceEstimate, error) {
	body, err := json.Marshal(reqs)
	if err != nil {
		return nil, err
	}
	var out PriceEstimate
	if err := c.postJSON("/price", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Ping reports whether the broker's /health endpoint is reachable and
// healthy, swallowing transport errors into a false result.
func (c *Client) Ping() bool {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Me returns the broker's self-reported identity/ledger-mode info.
func (c *Client) Me() (map[string]any, error) {
	var out map[string]any
	if err := c.getJSON("/me", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) getJSON(path string, out any) error {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	c.authHeader(req)
	return c.doJSON(req, out)
}

func (c *Client) postJSON(path string, body []byte, out any) error {
	req, err := http.NewRequest(http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	c.authHeader(req)
	return c.doJSON(req, out)
}

func (c *Client) doJSON(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, body)
	}
	return json.Unmarshal(body, out)
}
