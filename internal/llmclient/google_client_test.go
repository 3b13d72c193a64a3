// internal/llmclient/google_client_test.go
package llmclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pilotweb/pilot-cli/api/schemas"
	"github.com/pilotweb/pilot-cli/internal/config"
)

func testModelConfig(endpoint string) config.ModelConfig {
	return config.ModelConfig{
		Provider:   config.ProviderGemini,
		Model:      "gemini-2.0-flash",
		APIKey:     "test-key",
		Endpoint:   endpoint,
		APITimeout: 5 * time.Second,
		MaxTokens:  256,
	}
}

func candidateResponse(text string) geminiResponsePayload {
	var payload geminiResponsePayload
	payload.Candidates = []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	}{
		{
			Content:      geminiContent{Parts: []geminiPart{{Text: text}}, Role: "model"},
			FinishReason: "STOP",
		},
	}
	return payload
}

func TestGenerate_Success(t *testing.T) {
	var gotPayload geminiRequestPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
		json.NewEncoder(w).Encode(candidateResponse("navigate \"https://example.com\""))
	}))
	defer server.Close()

	client, err := NewGoogleClient(testModelConfig(server.URL), zap.NewNop())
	require.NoError(t, err)

	out, err := client.Generate(context.Background(), schemas.GenerationRequest{
		SystemPrompt: "You write action scripts.",
		UserPrompt:   "Open example.com",
		Options:      schemas.GenerationOptions{Temperature: 0.2},
	})

	require.NoError(t, err)
	assert.Equal(t, `navigate "https://example.com"`, out)

	require.NotNil(t, gotPayload.SystemInstruction)
	assert.Equal(t, "You write action scripts.", gotPayload.SystemInstruction.Parts[0].Text)
	require.Len(t, gotPayload.Contents, 1)
	assert.Equal(t, "Open example.com", gotPayload.Contents[0].Parts[0].Text)
	assert.InDelta(t, 0.2, gotPayload.GenerationConfig.Temperature, 1e-6)
	assert.Equal(t, 256, gotPayload.GenerationConfig.MaxOutputTokens)
}

func TestGenerate_RetriesTransientStatus(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(candidateResponse("refresh"))
	}))
	defer server.Close()

	client, err := NewGoogleClient(testModelConfig(server.URL), zap.NewNop())
	require.NoError(t, err)

	out, err := client.Generate(context.Background(), schemas.GenerationRequest{UserPrompt: "reload"})

	require.NoError(t, err)
	assert.Equal(t, "refresh", out)
	assert.GreaterOrEqual(t, calls.Load(), int32(2))
}

func TestGenerate_PermanentStatusFailsImmediately(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer server.Close()

	client, err := NewGoogleClient(testModelConfig(server.URL), zap.NewNop())
	require.NoError(t, err)

	_, err = client.Generate(context.Background(), schemas.GenerationRequest{UserPrompt: "x"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
	assert.Equal(t, int32(1), calls.Load())
}

func TestGenerate_NoCandidatesIsPermanent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(geminiResponsePayload{})
	}))
	defer server.Close()

	client, err := NewGoogleClient(testModelConfig(server.URL), zap.NewNop())
	require.NoError(t, err)

	_, err = client.Generate(context.Background(), schemas.GenerationRequest{UserPrompt: "x"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no candidates")
}

func TestNewGoogleClient_RequiresAPIKey(t *testing.T) {
	cfg := testModelConfig("http://localhost")
	cfg.APIKey = ""

	_, err := NewGoogleClient(cfg, zap.NewNop())

	require.Error(t, err)
}

func TestNewClient_Factory(t *testing.T) {
	client, err := NewClient(testModelConfig("http://localhost"), zap.NewNop())
	require.NoError(t, err)
	assert.NotNil(t, client)

	cfg := testModelConfig("http://localhost")
	cfg.Provider = "openai"
	_, err = NewClient(cfg, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported model provider")
}
