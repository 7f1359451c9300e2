package openai

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/cryotrace/internal/llm"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(Config{
		APIKey:      "test-key",
		BaseURL:     srv.URL + "/v1/",
		Model:       "gpt-test",
		Temperature: 0.2,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestComplete(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var body struct {
			Model          string        `json:"model"`
			Temperature    float32       `json:"temperature"`
			Messages       []llm.Message `json:"messages"`
			ResponseFormat *struct {
				Type string `json:"type"`
			} `json:"response_format"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "gpt-test", body.Model)
		assert.InDelta(t, 0.0, body.Temperature, 1e-6)
		require.Len(t, body.Messages, 2)
		require.NotNil(t, body.ResponseFormat)
		assert.Equal(t, "json_object", body.ResponseFormat.Type)

		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"  {\"shipments\":[]}  "},"finish_reason":"stop"}]}`))
	})

	zero := float32(0)
	out, err := c.Complete(context.Background(), llm.ChatRequest{
		Messages:    llm.BuildAskMessages("ctx", "q"),
		Temperature: &zero,
		JSON:        true,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"shipments":[]}`, out)
}

func TestComplete_Errors(t *testing.T) {
	t.Run("rate limited is transient", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		})
		_, err := c.Complete(context.Background(), llm.ChatRequest{})
		require.Error(t, err)
		assert.True(t, llm.IsTransient(err))
	})

	t.Run("unauthorized is permanent", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		})
		_, err := c.Complete(context.Background(), llm.ChatRequest{})
		require.Error(t, err)
		assert.False(t, llm.IsTransient(err))
	})

	t.Run("no choices", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"choices":[]}`))
		})
		_, err := c.Complete(context.Background(), llm.ChatRequest{})
		assert.ErrorContains(t, err, "no choices")
	})
}

func TestEmbedBatch_OrdersByIndex(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		var body struct {
			Model string   `json:"model"`
			Input []string `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "text-embedding-3-small", body.Model)
		assert.Equal(t, []string{"a", "b"}, body.Input)
		_, _ = w.Write([]byte(`{"data":[{"index":1,"embedding":[0,1]},{"index":0,"embedding":[1,0]}]}`))
	})

	out, err := c.EmbedBatch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0}, {0, 1}}, out)
}

func TestEmbed_CountMismatch(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[]}`))
	})
	_, err := c.Embed(context.Background(), "a")
	assert.Error(t, err)
}
