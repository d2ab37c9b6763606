package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
)

const (
	// DefaultBaseURL is the Anthropic API host.
	DefaultBaseURL = "https://api.anthropic.com"
	// DefaultModel is used when no model is configured.
	DefaultModel = "claude-sonnet-4-5"
	// APIVersion is the Messages API version header value.
	APIVersion = "2023-06-01"
)

// ErrNotConfigured is returned when no API key is set.
var ErrNotConfigured = errors.New("ai client not configured")

// Completer produces a text completion for a prompt.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// Client calls the Anthropic Messages API over plain HTTP.
type Client struct {
	apiKey     string
	model      string
	maxTokens  int
	endpoint   string
	httpClient *http.Client
}

// Options configures a Client.
type Options struct {
	BaseURL   string
	APIKey    string
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system,omitempty"`
	Messages  []message `json:"messages"`
}

// NewClient creates a Messages API client.
func NewClient(opts Options) (client *Client) {
	if opts.Model == "" {
		opts.Model = DefaultModel
	}
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 4096
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 120 * time.Second
	}
	client = &Client{
		apiKey:    opts.APIKey,
		model:     opts.Model,
		maxTokens: opts.MaxTokens,
		endpoint:  strings.TrimRight(opts.BaseURL, "/") + "/v1/messages",
		httpClient: &http.Client{
			Timeout: opts.Timeout,
		},
	}
	return client
}

// Complete sends a single-turn request and returns the first text block.
func (c *Client) Complete(ctx context.Context, system, prompt string) (responseText string, err error) {
	if strings.TrimSpace(c.apiKey) == "" {
		err = ErrNotConfigured
		return responseText, err
	}

	var reqBody []byte
	reqBody, err = json.Marshal(messagesRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		System:    system,
		Messages:  []message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		err = errors.Wrap(err, "failed to marshal request")
		return responseText, err
	}

	var httpReq *http.Request
	httpReq, err = http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(reqBody))
	if err != nil {
		err = errors.Wrap(err, "failed to create HTTP request")
		return responseText, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Api-Key", c.apiKey)
	httpReq.Header.Set("Anthropic-Version", APIVersion)

	var resp *http.Response
	resp, err = c.httpClient.Do(httpReq)
	if err != nil {
		err = errors.Wrap(err, "HTTP request failed")
		return responseText, err
	}
	defer resp.Body.Close()

	var respBody []byte
	respBody, err = io.ReadAll(resp.Body)
	if err != nil {
		err = errors.Wrap(err, "failed to read response body")
		return responseText, err
	}

	if resp.StatusCode != http.StatusOK {
		msg := gjson.GetBytes(respBody, "error.message").String()
		if msg == "" {
			msg = string(respBody)
		}
		err = errors.Errorf("API request failed with status %d: %s", resp.StatusCode, msg)
		return responseText, err
	}

	if !gjson.ValidBytes(respBody) {
		err = errors.Errorf("invalid JSON in API response: %s", string(respBody))
		return responseText, err
	}
	text := gjson.GetBytes(respBody, `content.#(type=="text").text`)
	if !text.Exists() {
		err = errors.New("no text content in API response")
		return responseText, err
	}

	responseText = text.String()
	return responseText, err
}

// StripCodeFences removes a surrounding markdown code fence, if any.
func StripCodeFences(text string) (cleaned string) {
	cleaned = strings.TrimSpace(text)
	if !strings.HasPrefix(cleaned, "```") {
		return cleaned
	}
	if nl := strings.IndexByte(cleaned, '\n'); nl >= 0 {
		cleaned = cleaned[nl+1:]
	} else {
		cleaned = strings.TrimPrefix(cleaned, "```")
	}
	cleaned = strings.TrimSuffix(strings.TrimSpace(cleaned), "```")
	return strings.TrimSpace(cleaned)
}

// ExtractJSON returns the outermost JSON object in text, tolerating prose around it.
func ExtractJSON(text string) (object string, err error) {
	cleaned := StripCodeFences(text)
	if gjson.Valid(cleaned) {
		object = cleaned
		return object, err
	}
	start := strings.IndexByte(cleaned, '{')
	end := strings.LastIndexByte(cleaned, '}')
	if start < 0 || end <= start || !gjson.Valid(cleaned[start:end+1]) {
		err = errors.Errorf("no JSON object in response: %.200s", text)
		return object, err
	}
	object = cleaned[start : end+1]
	return object, err
}
