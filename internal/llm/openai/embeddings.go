package openai

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/joseph-ayodele/cryotrace/internal/llm"
)

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed implements llm.Embedder for a single text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// EmbedBatch sends all texts in one embeddings request. Results are ordered by
// the index the API reports, not by arrival.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	start := time.Now()

	body := map[string]any{
		"model": c.cfg.EmbeddingModel,
		"input": texts,
	}
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/embeddings"
	raw, _, err := llm.SendJSON(ctx, c.http, providerName, endpoint, body, c.headers(), c.logger)
	if err != nil {
		return nil, err
	}

	var er embeddingResponse
	if err := json.Unmarshal(raw, &er); err != nil {
		return nil, fmt.Errorf("decode openai embeddings: %w", err)
	}
	if len(er.Data) != len(texts) {
		return nil, fmt.Errorf("openai embeddings: got %d vectors for %d inputs", len(er.Data), len(texts))
	}
	sort.Slice(er.Data, func(i, j int) bool { return er.Data[i].Index < er.Data[j].Index })

	out := make([][]float32, len(er.Data))
	for i, d := range er.Data {
		out[i] = d.Embedding
	}
	c.logger.Debug("llm.embed.ok",
		"provider", providerName,
		"model", c.cfg.EmbeddingModel,
		"inputs", len(texts),
		"dims", len(out[0]),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}
