package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/goware/urlx"
)

// Client posts viewer reports to an embers server.
type Client struct {
	base  *url.URL
	httpc *http.Client
}

func NewClient(target string) (*Client, error) {
	u, err := urlx.ParseWithDefaultScheme(target, "http")
	if err != nil {
		return nil, fmt.Errorf("unable to parse target url %q: %w", target, err)
	}
	return &Client{
		base:  u,
		httpc: &http.Client{Timeout: 5 * time.Second},
	}, nil
}

func (c *Client) post(path string, payload any, out any) error {
	buf, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	resp, err := c.httpc.Post(c.base.JoinPath(path).String(), "application/json", bytes.NewReader(buf))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned %s", path, resp.Status)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) PostFlames(count int, action string) error {
	payload := map[string]any{"count": count}
	if action != "" {
		payload["action"] = action
	}
	return c.post("/api/flames", payload, nil)
}

func (c *Client) PostRender(duration float64, flames int) error {
	return c.post("/api/render", map[string]any{"duration": duration, "flameCount": flames}, nil)
}

func (c *Client) PostLogs(flames int) (int, error) {
	var out struct {
		LogsGenerated int `json:"logsGenerated"`
	}
	err := c.post("/api/logs", map[string]any{"flameCount": flames}, &out)
	return out.LogsGenerated, err
}
