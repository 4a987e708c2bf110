package llm_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/UnknownOlympus/hermes/internal/apierr"
	"github.com/UnknownOlympus/hermes/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func anthropicServer(t *testing.T, handler func(w http.ResponseWriter, body map[string]any)) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		handler(w, body)
	}))
}

func newAnthropic(t *testing.T, baseURL string) *llm.AnthropicProvider {
	t.Helper()

	provider, err := llm.NewAnthropicProvider("test-key", llm.Options{BaseURL: baseURL})
	require.NoError(t, err)
	return provider
}

func writeSSE(w http.ResponseWriter, fragments []string) {
	w.Header().Set("Content-Type", "text/event-stream")
	fmt.Fprint(w, "event: message_start\ndata: {\"type\":\"message_start\"}\n\n")
	for _, f := range fragments {
		payload, _ := json.Marshal(map[string]any{
			"type":  "content_block_delta",
			"index": 0,
			"delta": map[string]string{"type": "text_delta", "text": f},
		})
		fmt.Fprintf(w, "event: content_block_delta\ndata: %s\n\n", payload)
	}
	fmt.Fprint(w, "event: message_stop\ndata: {\"type\":\"message_stop\"}\n\n")
}

func TestAnthropicProvider(t *testing.T) {
	answer := []string{"Dear Ms. Li,", "\nThe report is attached.", "\nBest regards"}

	t.Run("system messages move to the system field", func(t *testing.T) {
		srv := anthropicServer(t, func(w http.ResponseWriter, body map[string]any) {
			assert.Equal(t, "claude-3-5-haiku-20241022", body["model"])
			assert.Equal(t, "be brief", body["system"])
			assert.InDelta(t, 500, body["max_tokens"], 0)
			messages := body["messages"].([]any)
			require.Len(t, messages, 1)

			_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"Dear Ms. Li,"},{"type":"tool_use"},{"type":"text","text":" hi"}]}`))
		})
		defer srv.Close()

		text, err := newAnthropic(t, srv.URL).Complete(t.Context(), []llm.Message{
			{Role: llm.RoleSystem, Content: "be brief"},
			llm.UserMessage("write"),
		})

		require.NoError(t, err)
		assert.Equal(t, "Dear Ms. Li, hi", text)
	})

	t.Run("streamed concatenation equals complete", func(t *testing.T) {
		srv := anthropicServer(t, func(w http.ResponseWriter, body map[string]any) {
			if stream, _ := body["stream"].(bool); stream {
				writeSSE(w, answer)
				return
			}
			blocks := make([]map[string]string, 0, len(answer))
			for _, f := range answer {
				blocks = append(blocks, map[string]string{"type": "text", "text": f})
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"content": blocks})
		})
		defer srv.Close()
		provider := newAnthropic(t, srv.URL)
		msgs := []llm.Message{llm.UserMessage("write")}

		full, err := provider.Complete(t.Context(), msgs)
		require.NoError(t, err)

		stream, err := provider.Stream(t.Context(), msgs)
		require.NoError(t, err)
		streamed, err := llm.Collect(stream)
		require.NoError(t, err)

		assert.Equal(t, strings.Join(answer, ""), full)
		assert.Equal(t, full, streamed)
	})

	t.Run("error event ends the stream with an error", func(t *testing.T) {
		srv := anthropicServer(t, func(w http.ResponseWriter, _ map[string]any) {
			fmt.Fprint(w, "data: {\"type\":\"content_block_delta\",\"delta\":{\"type\":\"text_delta\",\"text\":\"a\"}}\n\n")
			fmt.Fprint(w, "event: error\ndata: {\"type\":\"error\",\"error\":{\"type\":\"overloaded_error\",\"message\":\"Overloaded\"}}\n\n")
		})
		defer srv.Close()

		stream, err := newAnthropic(t, srv.URL).Stream(t.Context(), []llm.Message{llm.UserMessage("x")})
		require.NoError(t, err)

		_, err = llm.Collect(stream)

		require.ErrorIs(t, err, apierr.ErrGeneration)
		assert.Contains(t, err.Error(), "Overloaded")
	})

	t.Run("non-200 status", func(t *testing.T) {
		srv := anthropicServer(t, func(w http.ResponseWriter, _ map[string]any) {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`))
		})
		defer srv.Close()

		_, err := newAnthropic(t, srv.URL).Complete(t.Context(), []llm.Message{llm.UserMessage("x")})

		require.ErrorIs(t, err, apierr.ErrGeneration)
		assert.Contains(t, err.Error(), "invalid x-api-key")
		assert.Contains(t, err.Error(), "401")
	})

	t.Run("no text blocks is malformed", func(t *testing.T) {
		srv := anthropicServer(t, func(w http.ResponseWriter, _ map[string]any) {
			_, _ = w.Write([]byte(`{"content":[]}`))
		})
		defer srv.Close()

		_, err := newAnthropic(t, srv.URL).Complete(t.Context(), []llm.Message{llm.UserMessage("x")})

		require.ErrorIs(t, err, apierr.ErrMalformedResponse)
	})

	t.Run("missing key", func(t *testing.T) {
		_, err := llm.NewAnthropicProvider("", llm.Options{})

		require.ErrorIs(t, err, apierr.ErrMissingCredential)
	})
}
