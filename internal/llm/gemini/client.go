// Package gemini adapts google.golang.org/genai to the llm contracts.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/genai"

	"github.com/joseph-ayodele/cryotrace/internal/llm"
)

const providerName = "gemini"

type Config struct {
	APIKey         string // if empty, falls back to env GEMINI_API_KEY
	BaseURL        string // optional endpoint override
	Model          string // default "gemini-2.5-flash"
	EmbeddingModel string // default "gemini-embedding-001"
	Temperature    float32
	Timeout        time.Duration
}

type Client struct {
	cfg    Config
	client *genai.Client
	logger *slog.Logger
}

func NewClient(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.5-flash"
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = "gemini-embedding-001"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: cfg.Timeout},
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return &Client{cfg: cfg, client: client, logger: logger}, nil
}

// Complete implements llm.Completer. System messages are joined into the
// system instruction; the rest become user/model turns.
func (c *Client) Complete(ctx context.Context, req llm.ChatRequest) (string, error) {
	rid := uuid.New().String()
	start := time.Now()

	temp := c.cfg.Temperature
	if req.Temperature != nil {
		temp = *req.Temperature
	}
	gc := &genai.GenerateContentConfig{Temperature: &temp}
	if req.JSON {
		gc.ResponseMIMEType = "application/json"
	}

	var system []string
	var contents []*genai.Content
	for _, m := range req.Messages {
		switch m.Role {
		case llm.RoleSystem:
			system = append(system, m.Content)
		case llm.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	if len(system) > 0 {
		gc.SystemInstruction = genai.NewContentFromText(strings.Join(system, "\n\n"), genai.RoleUser)
	}

	c.logger.Info("llm.complete.start",
		"req_id", rid,
		"provider", providerName,
		"model", c.cfg.Model,
		"temp", temp,
		"messages", len(req.Messages),
	)

	resp, err := c.client.Models.GenerateContent(ctx, c.cfg.Model, contents, gc)
	if err != nil {
		c.logger.Error("llm.complete.http_error",
			"req_id", rid, "provider", providerName, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", classify(err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("gemini: empty response")
	}
	c.logger.Info("llm.complete.ok",
		"req_id", rid,
		"provider", providerName,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return text, nil
}

// Embed implements llm.Embedder for a single text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	contents := make([]*genai.Content, len(texts))
	for i, t := range texts {
		contents[i] = genai.NewContentFromText(t, genai.RoleUser)
	}
	resp, err := c.client.Models.EmbedContent(ctx, c.cfg.EmbeddingModel, contents,
		&genai.EmbedContentConfig{TaskType: "RETRIEVAL_DOCUMENT"})
	if err != nil {
		return nil, classify(err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("gemini embeddings: got %d vectors for %d inputs", len(resp.Embeddings), len(texts))
	}
	out := make([][]float32, len(resp.Embeddings))
	for i, e := range resp.Embeddings {
		out[i] = e.Values
	}
	return out, nil
}

// classify wraps rate limits, 5xx responses and transport failures as
// *llm.TransientError.
func classify(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if llm.IsTransientStatus(apiErr.Code) {
			return &llm.TransientError{Provider: providerName, Status: apiErr.Code, Err: err}
		}
		return fmt.Errorf("gemini: %w", err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &llm.TransientError{Provider: providerName, Err: err}
}
