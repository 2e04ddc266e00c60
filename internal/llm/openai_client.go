// ABOUTME: OpenAI-compatible chat and embedding clients with retry, timeouts and throttling
// ABOUTME: Works against api.openai.com or any compatible endpoint such as a local Ollama server
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/harper/policy-rag/internal/util"
)

const (
	// DefaultChatModel is the default model for chat completions
	DefaultChatModel = "gpt-4o-mini"
	// DefaultEmbeddingModel is the default model for embeddings
	DefaultEmbeddingModel = string(openai.SmallEmbedding3)
	// DefaultEmbedBatchSize is the number of texts sent per embeddings request
	DefaultEmbedBatchSize = 32
)

// ClientConfig holds configuration shared by the chat and embedding clients
type ClientConfig struct {
	APIKey         string
	BaseURL        string
	ChatModel      string
	EmbeddingModel string
	Temperature    float32
	MaxTokens      int
	JSONMode       bool
	Timeout        time.Duration
	MaxRetries     int
	RetryDelay     time.Duration
	EmbedBatchSize int
	EmbedRateLimit float64
}

// DefaultConfig returns the default client configuration
func DefaultConfig(apiKey string) *ClientConfig {
	return &ClientConfig{
		APIKey:         apiKey,
		ChatModel:      DefaultChatModel,
		EmbeddingModel: DefaultEmbeddingModel,
		Temperature:    0.2,
		MaxTokens:      4800,
		JSONMode:       true,
		Timeout:        120 * time.Second,
		MaxRetries:     3,
		RetryDelay:     2 * time.Second,
		EmbedBatchSize: DefaultEmbedBatchSize,
	}
}

func newAPIClient(config *ClientConfig) (*openai.Client, error) {
	// Local OpenAI-compatible servers accept any key
	if config.APIKey == "" && config.BaseURL == "" {
		return nil, errors.New("OpenAI API key is required (set OPENAI_API_KEY or OPENAI_BASE_URL)")
	}
	apiConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		apiConfig.BaseURL = config.BaseURL
	}
	return openai.NewClientWithConfig(apiConfig), nil
}

// OpenAIClient is a ChatModel backed by the chat completions API
type OpenAIClient struct {
	client      *openai.Client
	chatModel   string
	temperature float32
	maxTokens   int
	jsonMode    bool
	timeout     time.Duration
	maxRetries  int
	retryDelay  time.Duration
}

// NewOpenAIClient creates a chat client from config
func NewOpenAIClient(config *ClientConfig) (*OpenAIClient, error) {
	client, err := newAPIClient(config)
	if err != nil {
		return nil, err
	}
	return &OpenAIClient{
		client:      client,
		chatModel:   config.ChatModel,
		temperature: config.Temperature,
		maxTokens:   config.MaxTokens,
		jsonMode:    config.JSONMode,
		timeout:     config.Timeout,
		maxRetries:  config.MaxRetries,
		retryDelay:  config.RetryDelay,
	}, nil
}

// Chat sends messages and returns the first choice's content
func (c *OpenAIClient) Chat(ctx context.Context, messages []ChatMessage) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       c.chatModel,
		Messages:    toOpenAIMessages(messages),
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}
	if c.jsonMode {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			if err := util.SleepContext(ctx, util.CalculateBackoff(c.retryDelay, attempt)); err != nil {
				return "", err
			}
		}

		attemptCtx, cancel := withTimeout(ctx, c.timeout)
		resp, err := c.client.CreateChatCompletion(attemptCtx, req)
		cancel()

		if err != nil {
			lastErr = fmt.Errorf("attempt %d: %w", attempt+1, err)
			if !isRetryable(ctx, err) {
				break
			}
			continue
		}
		if len(resp.Choices) == 0 {
			lastErr = fmt.Errorf("attempt %d: no completion choices returned", attempt+1)
			continue
		}

		return resp.Choices[0].Message.Content, nil
	}

	return "", fmt.Errorf("chat completion failed: %w", lastErr)
}

// OpenAIEmbedder is an Embedder backed by the embeddings API.
// Every returned vector is L2-normalised.
type OpenAIEmbedder struct {
	client     *openai.Client
	model      string
	batchSize  int
	limiter    *rate.Limiter
	timeout    time.Duration
	maxRetries int
	retryDelay time.Duration
}

// NewOpenAIEmbedder creates an embedding client from config
func NewOpenAIEmbedder(config *ClientConfig) (*OpenAIEmbedder, error) {
	client, err := newAPIClient(config)
	if err != nil {
		return nil, err
	}

	batchSize := config.EmbedBatchSize
	if batchSize <= 0 {
		batchSize = DefaultEmbedBatchSize
	}
	limit := rate.Inf
	if config.EmbedRateLimit > 0 {
		limit = rate.Limit(config.EmbedRateLimit)
	}

	return &OpenAIEmbedder{
		client:     client,
		model:      config.EmbeddingModel,
		batchSize:  batchSize,
		limiter:    rate.NewLimiter(limit, 1),
		timeout:    config.Timeout,
		maxRetries: config.MaxRetries,
		retryDelay: config.RetryDelay,
	}, nil
}

// Model returns the embedding model name
func (e *OpenAIEmbedder) Model() string {
	return e.model
}

// Embed embeds texts in batches, preserving input order
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, 0, len(texts))
	for start := 0; start < len(texts); start += e.batchSize {
		end := min(start+e.batchSize, len(texts))
		vectors, err := e.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("embedding texts %d-%d: %w", start, end-1, err)
		}
		out = append(out, vectors...)
	}
	return out, nil
}

func (e *OpenAIEmbedder) embedBatch(ctx context.Context, batch []string) ([][]float64, error) {
	var lastErr error
	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		if attempt > 0 {
			if err := util.SleepContext(ctx, util.CalculateBackoff(e.retryDelay, attempt)); err != nil {
				return nil, err
			}
		}
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		attemptCtx, cancel := withTimeout(ctx, e.timeout)
		resp, err := e.client.CreateEmbeddings(attemptCtx, openai.EmbeddingRequestStrings{
			Input: batch,
			Model: openai.EmbeddingModel(e.model),
		})
		cancel()

		if err != nil {
			lastErr = fmt.Errorf("attempt %d: %w", attempt+1, err)
			if !isRetryable(ctx, err) {
				break
			}
			continue
		}
		if len(resp.Data) != len(batch) {
			lastErr = fmt.Errorf("attempt %d: got %d embeddings for %d texts", attempt+1, len(resp.Data), len(batch))
			continue
		}

		data := resp.Data
		sort.SliceStable(data, func(i, j int) bool { return data[i].Index < data[j].Index })

		vectors := make([][]float64, len(data))
		for i, d := range data {
			v := make([]float64, len(d.Embedding))
			for k, x := range d.Embedding {
				v[k] = float64(x)
			}
			vectors[i] = Normalize(v)
		}
		return vectors, nil
	}

	return nil, lastErr
}

func toOpenAIMessages(messages []ChatMessage) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		out[i] = openai.ChatCompletionMessage{Role: string(m.Role), Content: m.Content}
	}
	return out
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

// isRetryable reports whether err may succeed on another attempt.
// Client errors other than 408 and 429 are final, as is cancellation of ctx.
func isRetryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}

	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}

	if status >= 400 && status < 500 {
		return status == http.StatusRequestTimeout || status == http.StatusTooManyRequests
	}
	return true
}
