// Package gateway is the HTTP client of the external WhatsApp gateway: one
// POST per outbound message and a session connection-state query.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/popeskul/wa-dispatcher/internal/config"
)

const (
	presenceComposing = "composing"
	apiKeyHeader      = "apikey"
	stateOpen         = "open"
	stateClose        = "close"
	maxErrorBody      = 512
)

// ConnectionState is the session status reported by the gateway.
type ConnectionState int

const (
	// StateUnknown means the probe could not decide.
	StateUnknown ConnectionState = iota
	StateConnected
	// StateDisconnected is only returned when the gateway explicitly reports the session closed.
	StateDisconnected
)

func (s ConnectionState) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// SendRequest is one outbound message.
type SendRequest struct {
	Session   string
	APIKey    string
	To        string
	Text      string
	MediaURL  string
	MediaType string
	// Composing is forwarded as the "typing" presence duration.
	Composing time.Duration
}

type sendOptions struct {
	Delay    int64  `json:"delay"`
	Presence string `json:"presence"`
}

type sendPayload struct {
	InstanceName string      `json:"instanceName"`
	APIKey       string      `json:"api_key"`
	Number       string      `json:"number"`
	Text         string      `json:"text,omitempty"`
	MediaURL     string      `json:"mediaUrl,omitempty"`
	MediaType    string      `json:"mediaType,omitempty"`
	Options      sendOptions `json:"options"`
}

type connectionStateResponse struct {
	Instance struct {
		State string `json:"state"`
	} `json:"instance"`
}

// Client talks to the gateway over HTTP.
type Client struct {
	sendURL      string
	apiURL       string
	probeTimeout time.Duration
	httpClient   *http.Client
	logger       *zap.Logger
}

func NewClient(cfg *config.GatewayConfig, logger *zap.Logger) *Client {
	probeTimeout := time.Duration(cfg.ProbeTimeout) * time.Second
	if probeTimeout <= 0 {
		probeTimeout = 10 * time.Second
	}
	return &Client{
		sendURL:      cfg.SendURL,
		apiURL:       strings.TrimRight(cfg.APIURL, "/"),
		probeTimeout: probeTimeout,
		// Per-call deadlines come from the caller context.
		httpClient: &http.Client{},
		logger:     logger,
	}
}

// Configured reports whether outbound sends have a destination.
func (c *Client) Configured() bool {
	return c.sendURL != ""
}

// Send delivers one message. Non-2xx responses are returned as *StatusError.
func (c *Client) Send(ctx context.Context, req *SendRequest) error {
	if !c.Configured() {
		return ErrNotConfigured
	}

	payload := sendPayload{
		InstanceName: req.Session,
		APIKey:       req.APIKey,
		Number:       req.To,
		Text:         req.Text,
		MediaURL:     req.MediaURL,
		MediaType:    req.MediaType,
		Options: sendOptions{
			Delay:    req.Composing.Milliseconds(),
			Presence: presenceComposing,
		},
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.sendURL, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json; charset=utf-8")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.Warn("Failed to close response body", zap.Error(err))
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// ConnectionState queries the session status endpoint. Any failure to obtain
// an answer yields StateUnknown together with the error.
func (c *Client) ConnectionState(ctx context.Context, session, apiKey string) (ConnectionState, error) {
	if c.apiURL == "" {
		return StateUnknown, nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.probeTimeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/instance/connectionState/%s", c.apiURL, url.PathEscape(session))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return StateUnknown, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set(apiKeyHeader, apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return StateUnknown, fmt.Errorf("failed to query connection state: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.Warn("Failed to close response body", zap.Error(err))
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return StateUnknown, &StatusError{Code: resp.StatusCode}
	}

	var body connectionStateResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return StateUnknown, fmt.Errorf("failed to decode connection state: %w", err)
	}

	switch strings.ToLower(body.Instance.State) {
	case stateOpen:
		return StateConnected, nil
	case stateClose:
		return StateDisconnected, nil
	default:
		return StateUnknown, nil
	}
}
