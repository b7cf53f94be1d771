// Package retell wraps the external voice-agent REST API. Each call is a
// single attempt with the workspace's decrypted credential as a bearer
// token; retrying is left to the human clicking "try again" in the UI.
package retell

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"voiceboard-backend/internal/config"
	"voiceboard-backend/internal/metrics"
)

// DefaultBaseURL is the production Retell API endpoint.
const DefaultBaseURL = "https://api.retellai.com"

const maxResponseBytes = 4 << 20

// Client talks to the Retell API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient builds a client against RETELL_API_BASE, falling back to the
// production endpoint.
func NewClient() *Client {
	return NewClientWithBaseURL(config.GetEnv("RETELL_API_BASE", DefaultBaseURL))
}

// NewClientWithBaseURL builds a client against an explicit endpoint.
func NewClientWithBaseURL(base string) *Client {
	timeout := time.Duration(config.GetEnvInt("RETELL_TIMEOUT_SECONDS", 30)) * time.Second
	return &Client{
		baseURL:    strings.TrimRight(base, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// ListAgents returns the provider's raw list shape: either a JSON array or
// an object wrapping one. The caller normalizes.
func (c *Client) ListAgents(apiKey string) (json.RawMessage, error) {
	return c.do(http.MethodGet, "/list-agents", apiKey, nil, "list_agents")
}

// GetAgent returns the raw representation of a single remote agent.
func (c *Client) GetAgent(apiKey, agentID string) (json.RawMessage, error) {
	return c.do(http.MethodGet, "/get-agent/"+url.PathEscape(agentID), apiKey, nil, "get_agent")
}

// UpdateAgent patches a remote agent and returns the updated representation.
func (c *Client) UpdateAgent(apiKey, agentID string, patch map[string]interface{}) (json.RawMessage, error) {
	return c.do(http.MethodPatch, "/update-agent/"+url.PathEscape(agentID), apiKey, patch, "update_agent")
}

// GetLLM fetches the language-model configuration linked to an agent whose
// response engine is the provider's managed LLM.
func (c *Client) GetLLM(apiKey, llmID string) (json.RawMessage, error) {
	return c.do(http.MethodGet, "/get-retell-llm/"+url.PathEscape(llmID), apiKey, nil, "get_llm")
}

// UpdateLLM patches a linked language-model configuration.
func (c *Client) UpdateLLM(apiKey, llmID string, patch map[string]interface{}) (json.RawMessage, error) {
	return c.do(http.MethodPatch, "/update-retell-llm/"+url.PathEscape(llmID), apiKey, patch, "update_llm")
}

// CreateWebCall requests a short-lived, single-use access token for a live
// browser voice session. No local state is touched.
func (c *Client) CreateWebCall(apiKey, agentID string) (json.RawMessage, error) {
	body := map[string]interface{}{"agent_id": agentID}
	return c.do(http.MethodPost, "/v2/create-web-call", apiKey, body, "create_web_call")
}

func (c *Client) do(method, path, apiKey string, body interface{}, operation string) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RetellRequests.WithLabelValues(operation, "unavailable").Inc()
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		metrics.RetellRequests.WithLabelValues(operation, "unavailable").Inc()
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		metrics.RetellRequests.WithLabelValues(operation, "error").Inc()
		return nil, &ProviderError{
			StatusCode: resp.StatusCode,
			Message:    remoteMessage(data, resp.Status),
		}
	}

	metrics.RetellRequests.WithLabelValues(operation, "success").Inc()
	return json.RawMessage(data), nil
}

// remoteMessage pulls a human-readable message out of an error body when the
// provider sent one; otherwise the HTTP status line stands in.
func remoteMessage(body []byte, fallback string) string {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Error != "" {
			return payload.Error
		}
		if payload.Message != "" {
			return payload.Message
		}
	}
	return strings.TrimSpace(fallback)
}
