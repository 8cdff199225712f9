package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pictor-io/pictor/internal/remote"
	"go.uber.org/zap"
)

const (
	DefaultBaseURL = "https://generativelanguage.googleapis.com"

	// Gemini 2.5 Flash Image, a.k.a. "nano banana"
	ModelName = "gemini-2.5-flash-image-preview"

	costPerImageUSD = 0.039
	tokensPerImage  = 1290
)

// Client talks to the Gemini image generation API over plain HTTP,
// authenticating with the x-goog-api-key header.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.SugaredLogger
}

type Option func(client *Client)

func WithBaseURL(baseURL string) Option {
	return func(client *Client) {
		client.baseURL = baseURL
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(client *Client) {
		client.httpClient = httpClient
	}
}

func WithLogger(logger *zap.SugaredLogger) Option {
	return func(client *Client) {
		client.logger = logger
	}
}

func New(apiKey string, opts ...Option) *Client {
	client := &Client{
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
	}

	for _, opt := range opts {
		opt(client)
	}

	if client.httpClient == nil {
		client.httpClient = &http.Client{}
	}

	if client.logger == nil {
		client.logger = zap.NewNop().Sugar()
	}

	return client
}

type generateContentRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

type generationConfig struct {
	CandidateCount int     `json:"candidateCount,omitempty"`
	Temperature    float32 `json:"temperature,omitempty"`
}

type generateContentResponse struct {
	Candidates     []candidate `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason,omitempty"`
	} `json:"promptFeedback,omitempty"`
}

type candidate struct {
	Content      content `json:"content"`
	FinishReason string  `json:"finishReason,omitempty"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func (client *Client) Invoke(ctx context.Context, request remote.Request) (*remote.Result, error) {
	parts := []part{{Text: request.Prompt}}

	for _, sourceImage := range request.SourceImages {
		parts = append(parts, part{
			InlineData: &inlineData{
				MIMEType: http.DetectContentType(sourceImage),
				Data:     base64.StdEncoding.EncodeToString(sourceImage),
			},
		})
	}

	if len(request.Mask) != 0 {
		parts = append(parts, part{
			InlineData: &inlineData{
				MIMEType: http.DetectContentType(request.Mask),
				Data:     base64.StdEncoding.EncodeToString(request.Mask),
			},
		})
	}

	payload := &generateContentRequest{
		Contents: []content{
			{
				Role:  "user",
				Parts: parts,
			},
		},
		GenerationConfig: &generationConfig{
			CandidateCount: request.CandidateCount,
			Temperature:    0.7,
		},
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent",
		strings.TrimRight(client.baseURL, "/"), ModelName)

	httpRequest, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint,
		bytes.NewReader(payloadBytes))
	if err != nil {
		return nil, err
	}

	httpRequest.Header.Set("Content-Type", "application/json")
	httpRequest.Header.Set("x-goog-api-key", client.apiKey)

	start := time.Now()

	httpResponse, err := client.httpClient.Do(httpRequest)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		return nil, remote.Errorf(remote.ErrorKindTransient, "request failed: %v", err)
	}
	defer func() {
		_ = httpResponse.Body.Close()
	}()

	latency := time.Since(start)

	if httpResponse.StatusCode != http.StatusOK {
		return nil, classifyHTTPError(httpResponse)
	}

	bodyBytes, err := io.ReadAll(httpResponse.Body)
	if err != nil {
		return nil, remote.Errorf(remote.ErrorKindTransient, "failed to read response: %v", err)
	}

	var response generateContentResponse

	if err := json.Unmarshal(bodyBytes, &response); err != nil {
		return nil, remote.Errorf(remote.ErrorKindTransient, "failed to parse response: %v", err)
	}

	if response.PromptFeedback != nil && response.PromptFeedback.BlockReason != "" {
		return nil, remote.Errorf(remote.ErrorKindPolicyRejected, "prompt blocked: %s",
			response.PromptFeedback.BlockReason)
	}

	var images []remote.Image

	for _, candidate := range response.Candidates {
		for _, part := range candidate.Content.Parts {
			if part.InlineData == nil {
				continue
			}

			imageBytes, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
			if err != nil {
				return nil, remote.Errorf(remote.ErrorKindTransient,
					"failed to decode image payload: %v", err)
			}

			images = append(images, remote.Image{
				Data:     imageBytes,
				MIMEType: part.InlineData.MIMEType,
			})
		}
	}

	if len(images) == 0 {
		return nil, remote.Errorf(remote.ErrorKindTransient, "no images returned")
	}

	client.logger.With(
		"images", len(images),
		"latency", latency,
	).Debugf("remote generation succeeded")

	return &remote.Result{
		Images:  images,
		CostUSD: float64(len(images)) * costPerImageUSD,
		Tokens:  len(images) * tokensPerImage,
		Latency: latency,
	}, nil
}

func classifyHTTPError(httpResponse *http.Response) error {
	message := fmt.Sprintf("HTTP %d", httpResponse.StatusCode)

	var response errorResponse

	if err := json.NewDecoder(httpResponse.Body).Decode(&response); err == nil &&
		response.Error.Message != "" {
		message = fmt.Sprintf("%s: %s", message, response.Error.Message)
	}

	switch {
	case httpResponse.StatusCode == http.StatusTooManyRequests:
		return remote.Errorf(remote.ErrorKindRateLimited, "%s", message)
	case httpResponse.StatusCode == http.StatusUnauthorized,
		httpResponse.StatusCode == http.StatusForbidden:
		return remote.Errorf(remote.ErrorKindAuthFailed, "%s", message)
	case httpResponse.StatusCode == http.StatusBadRequest:
		return remote.Errorf(remote.ErrorKindInvalidInput, "%s", message)
	case httpResponse.StatusCode >= 500:
		return remote.Errorf(remote.ErrorKindTransient, "%s", message)
	default:
		return remote.Errorf(remote.ErrorKindInvalidInput, "%s", message)
	}
}
