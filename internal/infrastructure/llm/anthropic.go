package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"NotesTagger/internal/config"
	"NotesTagger/internal/domain"
	"NotesTagger/internal/ports"
)

const (
	defaultBodyLimit   = 1200
	maxResponseBytes   = 1 << 20
	errorSnippetBytes  = 1024
	errorSnippetLength = 200
)

// DefaultPromptTemplate asks for exactly three short labels. {{title}} and {{content}} are substituted.
const DefaultPromptTemplate = `Analyze the following note and suggest the three most fitting tags.

Title: {{title}}
Content: {{content}}

Rules:
- exactly three tags, most relevant to the content
- each tag 2-10 characters
- prefer common, searchable terms (category, topic, purpose, concept)

Reply with JSON only, in this form:
{"tags": ["tag1", "tag2", "tag3"]}`

// AnthropicClient implements ports.LabelOracle against the Anthropic Messages API.
type AnthropicClient struct {
	endpoint   string
	model      string
	apiKey     string
	apiVersion string
	maxTokens  int
	bodyLimit  int
	prompt     string
	httpClient ports.HTTPDoer
}

var _ ports.LabelOracle = (*AnthropicClient)(nil)

// NewAnthropicClient builds a client from configuration. A nil doer gets an *http.Client with cfg.Timeout.
func NewAnthropicClient(cfg config.OracleConfig, doer ports.HTTPDoer) *AnthropicClient {
	if doer == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		doer = &http.Client{Timeout: timeout}
	}
	limit := cfg.BodyLimit
	if limit <= 0 {
		limit = defaultBodyLimit
	}
	return &AnthropicClient{
		endpoint:   cfg.Endpoint,
		model:      cfg.Model,
		apiKey:     cfg.APIKey,
		apiVersion: cfg.APIVersion,
		maxTokens:  cfg.MaxTokens,
		bodyLimit:  limit,
		prompt:     safePrompt(cfg.PromptTemplate),
		httpClient: doer,
	}
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	Messages  []message `json:"messages"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// SuggestLabels asks the model for up to three labels for the record.
func (c *AnthropicClient) SuggestLabels(ctx context.Context, record domain.Record) ([]string, error) {
	if c == nil {
		return nil, fmt.Errorf("anthropic client is nil")
	}
	if c.apiKey == "" || c.endpoint == "" || c.model == "" {
		return nil, fmt.Errorf("anthropic client misconfigured")
	}

	body, err := c.buildPayload(record)
	if err != nil {
		return nil, fmt.Errorf("marshal anthropic payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	if c.apiVersion != "" {
		req.Header.Set("anthropic-version", c.apiVersion)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &domain.TransportError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, errorSnippetBytes))
		return nil, &domain.RemoteError{
			StatusCode: resp.StatusCode,
			Body:       truncate(strings.TrimSpace(string(snippet)), errorSnippetLength),
		}
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &domain.TransportError{Err: fmt.Errorf("read response: %w", err)}
	}

	text, err := responseText(raw)
	if err != nil {
		return nil, err
	}

	return ExtractLabels(text)
}

func (c *AnthropicClient) buildPayload(record domain.Record) ([]byte, error) {
	prompt := strings.NewReplacer(
		"{{title}}", record.DisplayTitle(),
		"{{content}}", truncate(record.Body, c.bodyLimit),
	).Replace(c.prompt)

	return json.Marshal(messagesRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Messages:  []message{{Role: "user", Content: prompt}},
	})
}

func responseText(raw []byte) (string, error) {
	var env messagesResponse
	if err := json.Unmarshal(raw, &env); err != nil {
		return "", &domain.MalformedResponseError{Reason: "decode envelope", Err: err}
	}
	for _, block := range env.Content {
		if block.Type == "" || block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", &domain.MalformedResponseError{Reason: "no text content block", Err: errors.New("empty content")}
}

func safePrompt(prompt string) string {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return DefaultPromptTemplate
	}
	return prompt
}

// truncate keeps the first n runes of s.
func truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
