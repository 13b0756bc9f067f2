package signal

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultTimeout = 15 * time.Second

// Client polls the signal source REST API for an agent's open positions.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Config holds signal source client configuration.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// NewClient creates a new signal source client.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// positionsResponse is the wire envelope returned by the signal source.
type positionsResponse struct {
	AgentID   string     `json:"agent_id"`
	Positions []Position `json:"positions"`
	UpdatedAt int64      `json:"updated_at"`
}

// AgentPositions fetches the current open positions for an agent. Errors are
// transient by contract: the caller aborts the cycle and retries next poll.
func (c *Client) AgentPositions(ctx context.Context, agentID string) ([]Position, error) {
	if strings.TrimSpace(agentID) == "" {
		return nil, fmt.Errorf("agent id is required")
	}

	endpoint := fmt.Sprintf("%s/api/agents/%s/positions", c.baseURL, url.PathEscape(agentID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build signal request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("signal source request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("signal source returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed positionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode signal response: %w", err)
	}

	out := make([]Position, 0, len(parsed.Positions))
	for _, pos := range parsed.Positions {
		pos.Symbol = strings.ToUpper(strings.TrimSpace(pos.Symbol))
		if pos.Symbol == "" || pos.EntryOrderID == "" {
			continue
		}
		out = append(out, pos)
	}
	return out, nil
}
