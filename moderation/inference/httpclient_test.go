package inference

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	assert := assert.New(t)

	var gotReq chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": `{"toxicity":0.1}`}},
			},
		})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "secret", 100)
	out, err := c.Generate(context.Background(), GenerateRequest{
		Model:       "test-model",
		Prompt:      "score this",
		JSONMode:    true,
		Temperature: 0.1,
		MaxTokens:   256,
	})
	assert.NoError(err)
	assert.Equal(`{"toxicity":0.1}`, out)

	assert.Equal("test-model", gotReq.Model)
	require.NotNil(t, gotReq.ResponseFormat)
	assert.Equal("json_object", gotReq.ResponseFormat.Type)
	require.Len(t, gotReq.Messages, 1)
	assert.Equal("score this", gotReq.Messages[0].Content)
}

func TestGenerateServerError(t *testing.T) {
	assert := assert.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "", 100)
	_, err := c.Generate(context.Background(), GenerateRequest{Model: "m", Prompt: "p"})
	assert.Error(err)
}

func TestIsModelAvailable(t *testing.T) {
	assert := assert.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/models", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{"id": "present-model"}},
		})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "", 100)
	ok, err := c.IsModelAvailable(context.Background(), "present-model")
	assert.NoError(err)
	assert.True(ok)

	ok, err = c.IsModelAvailable(context.Background(), "absent-model")
	assert.NoError(err)
	assert.False(ok)
}

func TestMockProviderScripting(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	m := NewMockProvider("first", "second")
	out, err := m.Generate(ctx, GenerateRequest{})
	assert.NoError(err)
	assert.Equal("first", out)

	out, _ = m.Generate(ctx, GenerateRequest{})
	assert.Equal("second", out)

	// the last response repeats
	out, _ = m.Generate(ctx, GenerateRequest{})
	assert.Equal("second", out)
	assert.Equal(3, m.CallCount())
}
