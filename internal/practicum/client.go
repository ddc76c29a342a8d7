// Package practicum talks to the homework status API.
package practicum

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"homeworkbot/internal/homework"
	logx "homeworkbot/pkg/logx"
)

// DefaultEndpoint is the production homework status endpoint.
const DefaultEndpoint = "https://practicum.yandex.ru/api/user_api/homework_statuses/"

const maxResponseBodySize = 1 << 20 // 1MB

// Config configures the Client.
type Config struct {
	Endpoint string
	Token    string
	// Timeout bounds one request. 0 means 30s.
	Timeout time.Duration
}

// Client issues one status request per call. It never retries.
type Client struct {
	cfg        Config
	httpClient *http.Client
	log        logx.Logger
	now        func() time.Time
}

func New(cfg Config, log logx.Logger) *Client {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{},
		log:        log,
		now:        time.Now,
	}
}

// Fetch requests all status changes since the given unix timestamp and
// returns the decoded JSON body. Numbers are kept as json.Number.
// A zero since means "now".
func (c *Client) Fetch(ctx context.Context, since int64) (any, error) {
	if since == 0 {
		since = c.now().Unix()
	}
	params := url.Values{"from_date": []string{strconv.FormatInt(since, 10)}}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.Endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, &homework.Error{Kind: homework.TransportFailure, Endpoint: c.cfg.Endpoint, Params: params, Err: err}
	}
	req.Header.Set("Authorization", "OAuth "+c.cfg.Token)
	req.Header.Set("Accept", "application/json")

	c.log.Debug("requesting homework statuses", logx.String("endpoint", c.cfg.Endpoint), logx.Int64("from_date", since))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &homework.Error{Kind: homework.TransportFailure, Endpoint: c.cfg.Endpoint, Params: params, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBodySize))
		return nil, &homework.Error{
			Kind:       homework.EndpointUnavailable,
			Endpoint:   c.cfg.Endpoint,
			Params:     params,
			StatusCode: resp.StatusCode,
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return nil, &homework.Error{Kind: homework.TransportFailure, Endpoint: c.cfg.Endpoint, Params: params, Err: fmt.Errorf("read body: %w", err)}
	}

	payload, err := decodeJSON(body)
	if err != nil {
		return nil, &homework.Error{Kind: homework.MalformedResponse, Err: err}
	}
	return payload, nil
}

// Close releases idle connections.
func (c *Client) Close() {
	if c == nil || c.httpClient == nil {
		return
	}
	c.httpClient.CloseIdleConnections()
}

func decodeJSON(b []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	// reject trailing tokens (e.g. concatenated JSON)
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return nil, fmt.Errorf("trailing data after JSON value")
		}
		return nil, err
	}
	return v, nil
}
