package ari

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
)

// defaultHTTPTimeout bounds each ARI command request.
const defaultHTTPTimeout = 10 * time.Second

// Client issues ARI commands against the Asterisk REST interface using
// HTTP basic auth. Command failures are returned to the caller; the event
// listener logs them and keeps the call alive rather than tearing it down.
type Client struct {
	baseURL    string
	username   string
	password   string
	appName    string
	httpClient *http.Client
}

// ClientOption is a functional option for configuring a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the default HTTP client, mainly for tests.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates an ARI command client. baseURL is the REST root,
// e.g. "http://localhost:8088/ari". appName is the Stasis application
// commands are issued on behalf of.
func NewClient(baseURL, username, password, appName string, opts ...ClientOption) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("ari: baseURL must not be empty")
	}
	if appName == "" {
		return nil, errors.New("ari: appName must not be empty")
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		username:   username,
		password:   password,
		appName:    appName,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// AppName returns the Stasis application name the client was built with.
func (c *Client) AppName() string { return c.appName }

// Answer answers a ringing channel. Asterisk responds 204 No Content.
func (c *Client) Answer(ctx context.Context, channelID string) error {
	path := "/channels/" + url.PathEscape(channelID) + "/answer"
	return c.do(ctx, http.MethodPost, path, nil, http.StatusNoContent, nil)
}

// Hangup deletes a channel, hanging up the call leg. Asterisk responds
// 204 No Content; hanging up an already-gone channel yields 404, which the
// caller may treat as success.
func (c *Client) Hangup(ctx context.Context, channelID string) error {
	path := "/channels/" + url.PathEscape(channelID)
	return c.do(ctx, http.MethodDelete, path, nil, http.StatusNoContent, nil)
}

// StartExternalMedia asks Asterisk to bridge the channel's audio to this
// process's duplex audio endpoint. The target is built as
// ws://<externalHost>/ws/audio/<callID>, so the call id rides in the URL
// path and the receiving end can route the stream to the right session.
// The audio format is fixed to signed 16-bit linear PCM.
func (c *Client) StartExternalMedia(ctx context.Context, callID, externalHost string) (string, error) {
	target := "ws://" + externalHost + "/ws/audio/" + url.PathEscape(callID)

	params := url.Values{}
	params.Set("app", c.appName)
	params.Set("external_host", target)
	params.Set("format", "slin16")
	params.Set("encapsulation", "none")
	params.Set("transport", "websocket")
	params.Set("connection_type", "client")
	params.Set("direction", "both")
	params.Set("channelId", "external-"+callID)

	var out Channel
	path := "/channels/externalMedia?" + params.Encode()
	if err := c.do(ctx, http.MethodPost, path, nil, http.StatusOK, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

// Originate places an outbound call to endpoint and drops it into the
// Stasis application. The call id is passed as a channel variable so the
// StasisStart handler can correlate the new channel with its record.
// Returns the id of the originated channel.
func (c *Client) Originate(ctx context.Context, callID, endpoint, callerID string) (string, error) {
	params := url.Values{}
	params.Set("endpoint", endpoint)
	params.Set("app", c.appName)
	params.Set("appArgs", callID)
	if callerID != "" {
		params.Set("callerId", callerID)
	}

	body := map[string]any{
		"variables": map[string]string{"CALL_ID": callID},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("ari: marshal originate body: %w", err)
	}

	var out Channel
	path := "/channels?" + params.Encode()
	if err := c.do(ctx, http.MethodPost, path, payload, http.StatusOK, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

// do issues one ARI request and decodes the response into out when non-nil.
func (c *Client) do(ctx context.Context, method, path string, body []byte, wantStatus int, out any) error {
	var reader io.Reader
	if body != nil {
		reader = strings.NewReader(string(body))
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("ari: create request: %w", err)
	}
	req.SetBasicAuth(c.username, c.password)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ari: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("ari: %s %s: HTTP %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("ari: decode response: %w", err)
		}
	}
	return nil
}
