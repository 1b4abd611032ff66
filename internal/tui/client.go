package tui

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/muurk/wifiportal/internal/httpd"
	"github.com/muurk/wifiportal/internal/radio"
)

// Client talks to a running portal's control server. It speaks the same
// surface a captive browser does: /scan, /connect, and the /events stream.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the portal at addr (host:port).
func NewClient(addr string) *Client {
	return &Client{
		baseURL: "http://" + addr,
		// /connect blocks for the duration of the bounded join, so the
		// client deadline must sit above the portal's join bound.
		http: &http.Client{Timeout: 30 * time.Second},
	}
}

type scanPayload struct {
	Networks []radio.Network `json:"networks"`
	Error    string          `json:"error,omitempty"`
}

// Scan asks the portal for the networks its radio can currently see.
func (c *Client) Scan(ctx context.Context) ([]radio.Network, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/scan", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("portal unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("scan request failed with status %d", resp.StatusCode)
	}

	var payload scanPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("malformed scan response: %w", err)
	}
	if payload.Error != "" {
		return nil, errors.New(payload.Error)
	}
	return payload.Networks, nil
}

// Connect asks the portal to join the given network and returns the
// portal's outcome text ("Connection successful" / "Connection failed: ...").
func (c *Client) Connect(ctx context.Context, ssid, passphrase string) (string, error) {
	form := url.Values{"ssid": {ssid}, "password": {passphrase}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/connect", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("portal unreachable: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	outcome := strings.TrimSpace(string(body))
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("connect rejected (%d): %s", resp.StatusCode, outcome)
	}
	return outcome, nil
}

// Events subscribes to the portal's radio state stream. Events arrive on
// the returned channel until the connection drops or ctx is cancelled; the
// channel is closed on exit.
func (c *Client) Events(ctx context.Context) (<-chan httpd.Event, error) {
	wsURL := "ws://" + strings.TrimPrefix(c.baseURL, "http://") + "/events"
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("event stream unavailable: %w", err)
	}

	ch := make(chan httpd.Event, 8)
	go func() {
		defer close(ch)
		defer conn.Close()
		for {
			var ev httpd.Event
			if err := conn.ReadJSON(&ev); err != nil {
				return
			}
			select {
			case ch <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	// Tear the socket down when the caller gives up, unblocking ReadJSON.
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	return ch, nil
}
