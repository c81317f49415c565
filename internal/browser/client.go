// Package browser manages anti-detect browser profiles through the
// AdsPower local API and exposes their pages for claim automation.
package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DefaultBaseURL is where the AdsPower desktop app serves its local API.
const DefaultBaseURL = "http://local.adspower.net:50325"

// Client talks to the AdsPower local API. All endpoints are GET with
// query parameters and share the {code, msg, data} envelope.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	log        *zap.Logger
}

// NewClient builds a client for the local API. The limiter keeps us
// under the API's one-request-per-second throttle.
func NewClient(baseURL string, timeout time.Duration, log *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Every(time.Second), 1),
		log:        log,
	}
}

type apiResponse struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

func (c *Client) get(ctx context.Context, endpoint string, params url.Values) (json.RawMessage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	reqURL := c.baseURL + endpoint
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	c.log.Debug("adspower request", zap.String("endpoint", endpoint))
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("adspower unreachable: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var envelope apiResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if envelope.Code != 0 {
		msg := envelope.Msg
		if msg == "" {
			msg = "unknown error"
		}
		return nil, fmt.Errorf("adspower api error: %s", msg)
	}
	return envelope.Data, nil
}

// StartResult carries the connection endpoints of a started profile.
type StartResult struct {
	WSEndpoint string
	DebugPort  string
}

// StartProfile launches the browser bound to an AdsPower profile and
// returns its DevTools websocket endpoint.
func (c *Client) StartProfile(ctx context.Context, serial string, headless bool) (StartResult, error) {
	c.log.Info("starting browser profile", zap.String("serial", serial))

	params := url.Values{}
	params.Set("serial_number", serial)
	params.Set("open_tabs", "1")
	if headless {
		params.Set("headless", "1")
	}

	data, err := c.get(ctx, "/api/v1/browser/start", params)
	if err != nil {
		return StartResult{}, err
	}

	var payload struct {
		WS struct {
			Puppeteer string `json:"puppeteer"`
			Selenium  string `json:"selenium"`
		} `json:"ws"`
		DebugPort string `json:"debug_port"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return StartResult{}, fmt.Errorf("decode start response: %w", err)
	}
	if payload.WS.Puppeteer == "" {
		return StartResult{}, fmt.Errorf("no websocket endpoint in start response")
	}

	c.log.Info("browser profile started",
		zap.String("serial", serial),
		zap.String("debug_port", payload.DebugPort))
	return StartResult{WSEndpoint: payload.WS.Puppeteer, DebugPort: payload.DebugPort}, nil
}

// StopProfile shuts down the browser bound to a profile. Callers treat
// this as best-effort.
func (c *Client) StopProfile(ctx context.Context, serial string) error {
	params := url.Values{}
	params.Set("serial_number", serial)
	if _, err := c.get(ctx, "/api/v1/browser/stop", params); err != nil {
		return err
	}
	c.log.Info("browser profile stopped", zap.String("serial", serial))
	return nil
}

// IsActive reports whether the profile's browser is currently running.
func (c *Client) IsActive(ctx context.Context, serial string) (bool, error) {
	params := url.Values{}
	params.Set("serial_number", serial)
	data, err := c.get(ctx, "/api/v1/browser/active", params)
	if err != nil {
		return false, err
	}

	var payload struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return false, fmt.Errorf("decode active response: %w", err)
	}
	return payload.Status == "Active", nil
}

// Status checks that the local API itself is reachable and healthy.
func (c *Client) Status(ctx context.Context) error {
	_, err := c.get(ctx, "/status", nil)
	return err
}

// Profile is one AdsPower browser profile as the local API lists it.
type Profile struct {
	UserID       string      `json:"user_id"`
	SerialNumber json.Number `json:"serial_number"`
	Name         string      `json:"name"`
	GroupID      string      `json:"group_id"`
	GroupName    string      `json:"group_name"`
	LastOpenTime json.Number `json:"last_open_time"`
}

// Profiles lists the browser profiles known to AdsPower.
func (c *Client) Profiles(ctx context.Context) ([]Profile, error) {
	params := url.Values{}
	params.Set("page_size", "100")
	data, err := c.get(ctx, "/api/v1/user/list", params)
	if err != nil {
		return nil, err
	}

	var payload struct {
		List []Profile `json:"list"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("decode profile list: %w", err)
	}
	return payload.List, nil
}

// ProfileBySerial looks up a single profile, nil when absent.
func (c *Client) ProfileBySerial(ctx context.Context, serial string) (*Profile, error) {
	params := url.Values{}
	params.Set("serial_number", serial)
	data, err := c.get(ctx, "/api/v1/user/list", params)
	if err != nil {
		return nil, err
	}

	var payload struct {
		List []Profile `json:"list"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("decode profile list: %w", err)
	}
	if len(payload.List) == 0 {
		return nil, nil
	}
	return &payload.List[0], nil
}
