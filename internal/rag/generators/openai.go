package generators

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
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ryanpkennedy/df-healthbench/internal/rag/models"
	"github.com/ryanpkennedy/df-healthbench/pkg/util"

	"github.com/rs/zerolog"
)

const (
	defaultModel       = "gpt-4o-mini"
	defaultAPIURL      = "https://api.openai.com/v1/chat/completions"
	defaultTemperature = 0.3
	timeoutSecsDefault = 30
)

// OpenAIGenerator implements chat completion using OpenAI's API. One
// instance holds one HTTP client with connection reuse and is safe for
// concurrent use.
type OpenAIGenerator struct {
	apiKey       string
	defaultModel string
	temperature  float64
	httpClient   *http.Client
	apiURL       string
	logger       zerolog.Logger
}

// OpenAIChatRequest represents the request structure for OpenAI chat completions API.
type OpenAIChatRequest struct {
	Model       string           `json:"model"`
	Messages    []models.Message `json:"messages"`
	Temperature float64          `json:"temperature"`
}

// OpenAIChatResponse represents the response structure from OpenAI chat completions API.
type OpenAIChatResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Model string `json:"model"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// NewOpenAIGenerator creates a new OpenAI chat-completion generator.
func NewOpenAIGenerator() (*OpenAIGenerator, error) {
	return NewOpenAIGeneratorWithClient(nil, "")
}

// NewOpenAIGeneratorWithClient creates a generator with custom HTTP client and API URL.
func NewOpenAIGeneratorWithClient(httpClient *http.Client, apiURL string) (*OpenAIGenerator, error) {
	logger := util.NewLogger(zerolog.ErrorLevel)
	apiKey := os.Getenv("OPENAI_API_KEY")
	if strings.EqualFold(apiKey, "") {
		logger.Error().Msg("OPENAI_API_KEY env variable not set")
		return nil, ErrAPIKeyNotSet
	}

	model := os.Getenv("OPENAI_DEFAULT_MODEL")
	if model == "" {
		model = defaultModel
	}

	temperature := defaultTemperature
	if v := os.Getenv("OPENAI_TEMPERATURE"); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			temperature = parsed
		}
	}

	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: requestTimeout(),
		}
	}

	if apiURL == "" {
		apiURL = defaultAPIURL
	}

	return &OpenAIGenerator{
		apiKey:       apiKey,
		defaultModel: model,
		temperature:  temperature,
		httpClient:   httpClient,
		apiURL:       apiURL,
		logger:       logger,
	}, nil
}

// GetDefaultModel returns the model used when none is requested.
func (g *OpenAIGenerator) GetDefaultModel() string {
	return g.defaultModel
}

// CreateCompletion sends the message sequence and returns completion text
// plus token accounting. An empty completion is reported as a provider API
// error, never returned silently.
func (g *OpenAIGenerator) CreateCompletion(
	ctx context.Context,
	messages []models.Message,
	model string,
	temperature *float64,
) (*models.Completion, error) {
	if len(messages) == 0 {
		g.logger.Warn().Msg("no messages provided")
		return nil, ErrNoMessages
	}

	if model == "" {
		model = g.defaultModel
	}
	temp := g.temperature
	if temperature != nil {
		temp = *temperature
	}

	promptLength := 0
	for _, m := range messages {
		promptLength += len(m.Content)
	}
	g.logger.Info().
		Str("model", model).
		Float64("temperature", temp).
		Int("prompt_length", promptLength).
		Msg("creating completion")

	request := OpenAIChatRequest{
		Model:       model,
		Messages:    messages,
		Temperature: temp,
	}

	requestBody, err := json.Marshal(request)
	if err != nil {
		g.logger.Err(err).Msg("failed to marshal request")
		return nil, newError(ErrService, "marshal request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.apiURL, bytes.NewBuffer(requestBody))
	if err != nil {
		g.logger.Err(err).Msg("failed to create request")
		return nil, newError(ErrService, "create request", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", g.apiKey))

	start := time.Now()
	resp, err := g.httpClient.Do(req)
	if err != nil {
		kind, detail := classifyTransportError(err)
		g.logger.Error().Err(err).Msg("completion request failed")
		return nil, newError(kind, detail, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			g.logger.Error().Err(err).Msg("failed to close response body")
		}
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		kind := classifyStatus(resp.StatusCode)
		g.logger.Error().Int("status_code", resp.StatusCode).Msg("completion API request failed")
		return nil, newError(kind, fmt.Sprintf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), nil)
	}

	var response OpenAIChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		g.logger.Err(err).Msg("failed to decode response")
		return nil, newError(ErrAPI, "decode response", err)
	}

	if len(response.Choices) == 0 {
		return nil, newError(ErrAPI, "no choices in response", nil)
	}

	text := strings.TrimSpace(response.Choices[0].Message.Content)
	if text == "" {
		return nil, newError(ErrAPI, "empty response", nil)
	}

	usage := models.TokenUsage{
		PromptTokens:     response.Usage.PromptTokens,
		CompletionTokens: response.Usage.CompletionTokens,
		TotalTokens:      response.Usage.TotalTokens,
	}

	g.logger.Info().
		Str("model", response.Model).
		Int("prompt_tokens", usage.PromptTokens).
		Int("completion_tokens", usage.CompletionTokens).
		Int("total_tokens", usage.TotalTokens).
		Int64("elapsed_ms", time.Since(start).Milliseconds()).
		Msg("completion successful")

	return &models.Completion{
		Text:  text,
		Model: response.Model,
		Usage: usage,
	}, nil
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
	secs, err := strconv.Atoi(value)
	if err != nil || secs <= 0 {
		return timeoutSecsDefault * time.Second
	}
	return time.Duration(secs) * time.Second
}

// Process-wide singleton, same lifetime rationale as the embedder.
var (
	defaultOnce      sync.Once
	defaultGenerator *OpenAIGenerator
	defaultErr       error
)

// Default returns the shared generator, constructing it on first use.
// Safe under concurrent first access.
func Default() (*OpenAIGenerator, error) {
	defaultOnce.Do(func() {
		defaultGenerator, defaultErr = NewOpenAIGenerator()
	})
	return defaultGenerator, defaultErr
}
