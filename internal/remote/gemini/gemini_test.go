package gemini_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pictor-io/pictor/internal/remote"
	"github.com/pictor-io/pictor/internal/remote/gemini"
	"github.com/stretchr/testify/require"
)

func TestInvoke(t *testing.T) {
	pngBytes := []byte{0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Contains(t, r.URL.Path, ":generateContent")
		require.Equal(t, "secret", r.Header.Get("x-goog-api-key"))

		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		require.Contains(t, payload, "contents")

		response := map[string]any{
			"candidates": []any{
				map[string]any{
					"content": map[string]any{
						"parts": []any{
							map[string]any{
								"inlineData": map[string]any{
									"mimeType": "image/png",
									"data":     base64.StdEncoding.EncodeToString(pngBytes),
								},
							},
						},
					},
				},
			},
		}

		require.NoError(t, json.NewEncoder(w).Encode(response))
	}))
	defer server.Close()

	client := gemini.New("secret", gemini.WithBaseURL(server.URL))

	result, err := client.Invoke(context.Background(), remote.Request{
		Prompt:         "a red cube",
		CandidateCount: 1,
	})
	require.NoError(t, err)
	require.Len(t, result.Images, 1)
	require.Equal(t, pngBytes, result.Images[0].Data)
	require.Equal(t, "image/png", result.Images[0].MIMEType)
	require.Equal(t, 0.039, result.CostUSD)
	require.Equal(t, 1290, result.Tokens)
}

func TestInvokeClassifiesStatusCodes(t *testing.T) {
	testCases := []struct {
		status       int
		expectedKind remote.ErrorKind
	}{
		{http.StatusTooManyRequests, remote.ErrorKindRateLimited},
		{http.StatusInternalServerError, remote.ErrorKindTransient},
		{http.StatusServiceUnavailable, remote.ErrorKindTransient},
		{http.StatusUnauthorized, remote.ErrorKindAuthFailed},
		{http.StatusForbidden, remote.ErrorKindAuthFailed},
		{http.StatusBadRequest, remote.ErrorKindInvalidInput},
	}

	for _, testCase := range testCases {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(testCase.status)
		}))

		client := gemini.New("secret", gemini.WithBaseURL(server.URL))

		_, err := client.Invoke(context.Background(), remote.Request{Prompt: "a red cube"})
		require.Error(t, err)

		kind, ok := remote.KindOf(err)
		require.True(t, ok)
		require.Equal(t, testCase.expectedKind, kind, "HTTP %d", testCase.status)

		server.Close()
	}
}

func TestInvokeSurfacesPromptBlock(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		response := map[string]any{
			"candidates":     []any{},
			"promptFeedback": map[string]any{"blockReason": "SAFETY"},
		}

		require.NoError(t, json.NewEncoder(w).Encode(response))
	}))
	defer server.Close()

	client := gemini.New("secret", gemini.WithBaseURL(server.URL))

	_, err := client.Invoke(context.Background(), remote.Request{Prompt: "a red cube"})
	require.Error(t, err)

	kind, ok := remote.KindOf(err)
	require.True(t, ok)
	require.Equal(t, remote.ErrorKindPolicyRejected, kind)
}
