package embedders

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/ryanpkennedy/df-healthbench/pkg/util"

	"github.com/rs/zerolog"
	"github.com/tiktoken-go/tokenizer"
)

const (
	defaultModel       = "text-embedding-3-small"
	defaultAPIURL      = "https://api.openai.com/v1/embeddings"
	defaultMaxBatch    = 100
	timeoutSecsDefault = 30
)

// OpenAIEmbedder implements embedding using OpenAI's API. One instance holds
// one HTTP client with connection reuse and is safe for concurrent use.
type OpenAIEmbedder struct {
	apiKey     string
	model      string
	dimension  int
	maxTokens  int
	maxBatch   int
	httpClient *http.Client
	apiURL     string
	encoding   tokenizer.Codec
	logger     zerolog.Logger
}

// OpenAIEmbeddingRequest represents the request structure for OpenAI embeddings API.
// Input is a string for single requests or a []string for batches.
type OpenAIEmbeddingRequest struct {
	Input          any    `json:"input"`
	Model          string `json:"model"`
	EncodingFormat string `json:"encoding_format"`
}

// OpenAIEmbeddingResponse represents the response structure from OpenAI embeddings API.
type OpenAIEmbeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
		Object    string    `json:"object"`
	} `json:"data"`
	Model  string `json:"model"`
	Object string `json:"object"`
	Usage  struct {
		PromptTokens int `json:"prompt_tokens"`
		TotalTokens  int `json:"total_tokens"`
	} `json:"usage"`
}

// NewOpenAIEmbedder creates a new OpenAI embedder.
func NewOpenAIEmbedder(model string) (*OpenAIEmbedder, error) {
	return NewOpenAIEmbedderWithClient(model, nil, "")
}

// NewOpenAIEmbedderWithClient creates a new OpenAI embedder with custom HTTP client and API URL.
func NewOpenAIEmbedderWithClient(model string, httpClient *http.Client, apiURL string) (*OpenAIEmbedder, error) {
	logger := util.NewLogger(zerolog.ErrorLevel)
	apiKey := os.Getenv("OPENAI_API_KEY")
	if strings.EqualFold(apiKey, "") {
		logger.Error().Msg("OPENAI_API_KEY env variable not set")
		return nil, ErrAPIKeyNotSet
	}

	// Set dimension and max tokens based on model
	var dimension, maxTokens int
	switch model {
	case "text-embedding-3-small":
		dimension = 1536
		maxTokens = 8191
	case "text-embedding-3-large":
		dimension = 3072
		maxTokens = 8191
	case "text-embedding-ada-002":
		dimension = 1536
		maxTokens = 8191
	default:
		logger.Error().Str("unsupported model", model).Err(ErrUnsupportedModel)
		return nil, ErrUnsupportedModel
	}

	encoding, err := tokenizer.Get(tokenizer.Cl100kBase)
	if err != nil {
		logger.Error().Err(err).Msg("failed to get tokenizer")
		return nil, err
	}

	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: requestTimeout(),
		}
	}

	if apiURL == "" {
		apiURL = defaultAPIURL
	}

	return &OpenAIEmbedder{
		apiKey:     apiKey,
		model:      model,
		dimension:  dimension,
		maxTokens:  maxTokens,
		maxBatch:   defaultMaxBatch,
		httpClient: httpClient,
		apiURL:     apiURL,
		encoding:   encoding,
		logger:     logger,
	}, nil
}

// GenerateEmbedding creates a vector embedding for the given text.
func (o *OpenAIEmbedder) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		o.logger.Warn().Msg("text is empty")
		return nil, ErrContentEmpty
	}

	if err := o.checkTokenLimit(text); err != nil {
		return nil, err
	}

	start := time.Now()
	response, err := o.request(ctx, text)
	if err != nil {
		return nil, err
	}

	if len(response.Data) == 0 {
		return nil, newError(ErrAPI, "no embedding data in response", nil)
	}

	o.logger.Debug().
		Str("model", o.model).
		Int("tokens_used", response.Usage.TotalTokens).
		Int64("elapsed_ms", time.Since(start).Milliseconds()).
		Msg("generated embedding")
	return response.Data[0].Embedding, nil
}

// GenerateEmbeddingBatch creates embeddings for multiple texts in one
// provider call. Empty texts are filtered out first; the returned vectors
// match the order of the remaining texts.
func (o *OpenAIEmbedder) GenerateEmbeddingBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		o.logger.Warn().Msg("batch is empty")
		return nil, ErrContentEmpty
	}

	valid := make([]string, 0, len(texts))
	for _, t := range texts {
		if strings.TrimSpace(t) != "" {
			valid = append(valid, t)
		}
	}
	if len(valid) == 0 {
		o.logger.Warn().Msg("all texts in batch are empty")
		return nil, ErrContentEmpty
	}

	if len(valid) > o.maxBatch {
		o.logger.Warn().Int("batch_size", len(valid)).Int("max_batch", o.maxBatch).Msg("batch too large")
		return nil, ErrBatchTooLarge
	}

	for _, t := range valid {
		if err := o.checkTokenLimit(t); err != nil {
			return nil, err
		}
	}

	start := time.Now()
	response, err := o.request(ctx, valid)
	if err != nil {
		return nil, err
	}

	if len(response.Data) != len(valid) {
		detail := fmt.Sprintf("expected %d embeddings, got %d", len(valid), len(response.Data))
		return nil, newError(ErrAPI, detail, nil)
	}

	// The provider tags each vector with its input index; order by it rather
	// than trusting response order.
	embeddings := make([][]float32, len(valid))
	for _, item := range response.Data {
		if item.Index < 0 || item.Index >= len(valid) {
			return nil, newError(ErrAPI, fmt.Sprintf("embedding index %d out of range", item.Index), nil)
		}
		embeddings[item.Index] = item.Embedding
	}

	o.logger.Info().
		Int("count", len(embeddings)).
		Int("tokens_used", response.Usage.TotalTokens).
		Int64("elapsed_ms", time.Since(start).Milliseconds()).
		Msg("generated batch embeddings")
	return embeddings, nil
}

// CountTokens returns the number of tokens in the given text.
func (o *OpenAIEmbedder) CountTokens(text string) (int, error) {
	tokens, _, err := o.encoding.Encode(text)
	if err != nil {
		o.logger.Err(err).Msg("failed to tokenize text")
		return 0, err
	}
	return len(tokens), nil
}

// GetModelName returns the name of the embedding model.
func (o *OpenAIEmbedder) GetModelName() string {
	return o.model
}

// GetDimension returns the dimension of the embedding vectors.
func (o *OpenAIEmbedder) GetDimension() int {
	return o.dimension
}

// GetMaxTokens returns the maximum number of tokens this embedder can handle.
func (o *OpenAIEmbedder) GetMaxTokens() int {
	return o.maxTokens
}

// GetMaxBatchSize returns the largest batch the provider accepts.
func (o *OpenAIEmbedder) GetMaxBatchSize() int {
	return o.maxBatch
}

func (o *OpenAIEmbedder) checkTokenLimit(text string) error {
	count, err := o.CountTokens(text)
	if err != nil {
		return err
	}
	if count > o.maxTokens {
		o.logger.Warn().Int("token_count", count).Int("max_tokens", o.maxTokens).Msg("text too long")
		return fmt.Errorf("%w: %d tokens, limit %d", ErrTextTooLong, count, o.maxTokens)
	}
	return nil
}

func (o *OpenAIEmbedder) request(ctx context.Context, input any) (*OpenAIEmbeddingResponse, error) {
	request := OpenAIEmbeddingRequest{
		Input:          input,
		Model:          o.model,
		EncodingFormat: "float",
	}

	requestBody, err := json.Marshal(request)
	if err != nil {
		o.logger.Err(err).Msg("failed to marshal request")
		return nil, newError(ErrService, "marshal request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.apiURL, bytes.NewBuffer(requestBody))
	if err != nil {
		o.logger.Err(err).Msg("failed to create request")
		return nil, newError(ErrService, "create request", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", o.apiKey))

	resp, err := o.httpClient.Do(req)
	if err != nil {
		kind, detail := classifyTransportError(err)
		o.logger.Error().Err(err).Msg("embedding request failed")
		return nil, newError(kind, detail, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			o.logger.Error().Err(err).Msg("failed to close response body")
		}
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		kind := classifyStatus(resp.StatusCode)
		o.logger.Error().Int("status_code", resp.StatusCode).Msg("embedding API request failed")
		return nil, newError(kind, fmt.Sprintf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), nil)
	}

	var response OpenAIEmbeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		o.logger.Err(err).Msg("failed to decode response")
		return nil, newError(ErrAPI, "decode response", err)
	}

	return &response, nil
}

// classifyTransportError maps an HTTP client error to a failure kind.
func classifyTransportError(err error) (kind error, detail string) {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return ErrTimeout, "request deadline exceeded"
	case errors.As(err, &netErr) && netErr.Timeout():
		return ErrTimeout, "network timeout"
	default:
		return ErrConnection, "transport failure"
	}
}

// classifyStatus maps an HTTP status code to a failure kind.
func classifyStatus(code int) error {
	switch {
	case code == http.StatusTooManyRequests:
		return ErrRateLimit
	case code == http.StatusRequestTimeout || code == http.StatusGatewayTimeout:
		return ErrTimeout
	default:
		return ErrAPI
	}
}

func requestTimeout() time.Duration {
	value := os.Getenv("OPENAI_TIMEOUT_SECONDS")
	if value == "" {
		return timeoutSecsDefault * time.Second
	}
	var secs int
	if _, err := fmt.Sscanf(value, "%d", &secs); err != nil || secs <= 0 {
		return timeoutSecsDefault * time.Second
	}
	return time.Duration(secs) * time.Second
}

// Process-wide singleton. Provider clients are expensive to construct and
// hold no per-request state, so the first caller wins and everyone shares.
var (
	defaultOnce     sync.Once
	defaultEmbedder *OpenAIEmbedder
	defaultErr      error
)

// Default returns the shared embedder built from OPENAI_EMBEDDING_MODEL,
// constructing it on first use. Safe under concurrent first access.
func Default() (*OpenAIEmbedder, error) {
	defaultOnce.Do(func() {
		model := os.Getenv("OPENAI_EMBEDDING_MODEL")
		if model == "" {
			model = defaultModel
		}
		defaultEmbedder, defaultErr = NewOpenAIEmbedder(model)
	})
	return defaultEmbedder, defaultErr
}
