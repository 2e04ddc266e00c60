// ABOUTME: Centralized configuration for the policy RAG tools
// ABOUTME: Loads from environment variables with validation and defaults
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/adrg/xdg"

	"github.com/harper/policy-rag/internal/core"
	"github.com/harper/policy-rag/internal/llm"
)

// AppName names the data directory below the XDG data home
const AppName = "policy-rag"

// Config holds all configuration for the policy system
type Config struct {
	DataDir string

	// OpenAI-compatible collaborator settings
	APIKey         string
	BaseURL        string
	ChatModel      string
	EmbeddingModel string
	Temperature    float64
	MaxTokens      int
	JSONMode       bool
	Timeout        time.Duration
	MaxRetries     int
	RetryDelay     time.Duration
	EmbedBatchSize int
	EmbedRateLimit float64

	// Chunking
	ChunkSize     int
	ChunkOverlap  int
	MinChunkChars int

	// Evidence gate
	Top1MaxDist    float64
	GoodHitMaxDist float64
	MinGoodHits    int
	MinGap         float64

	// Retrieval and generation
	TopK              int
	SourceMaxChars    int
	SummaryMaxSources int
	IngestWorkers     int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	gate := core.DefaultGateThresholds()
	cfg := &Config{
		DataDir:           getEnv("POLICY_DATA_DIR", DefaultDataDir()),
		APIKey:            os.Getenv("OPENAI_API_KEY"),
		BaseURL:           os.Getenv("OPENAI_BASE_URL"),
		ChatModel:         getEnv("POLICY_CHAT_MODEL", llm.DefaultChatModel),
		EmbeddingModel:    getEnv("POLICY_EMBEDDING_MODEL", llm.DefaultEmbeddingModel),
		Temperature:       getEnvFloat("POLICY_TEMPERATURE", 0.2),
		MaxTokens:         getEnvInt("POLICY_MAX_TOKENS", 4800),
		JSONMode:          getEnvBool("POLICY_JSON_MODE", true),
		Timeout:           getEnvDuration("OPENAI_TIMEOUT", 120*time.Second),
		MaxRetries:        getEnvInt("OPENAI_MAX_RETRIES", 3),
		RetryDelay:        getEnvDuration("OPENAI_RETRY_DELAY", 2*time.Second),
		EmbedBatchSize:    getEnvInt("EMBED_BATCH_SIZE", llm.DefaultEmbedBatchSize),
		EmbedRateLimit:    getEnvFloat("EMBED_RATE_LIMIT", 0),
		ChunkSize:         getEnvInt("CHUNK_SIZE", core.DefaultChunkSize),
		ChunkOverlap:      getEnvInt("CHUNK_OVERLAP", core.DefaultChunkOverlap),
		MinChunkChars:     getEnvInt("MIN_CHUNK_CHARS", core.DefaultMinChunkChars),
		Top1MaxDist:       getEnvFloat("EVIDENCE_TOP1_MAX_DIST", gate.Top1MaxDist),
		GoodHitMaxDist:    getEnvFloat("EVIDENCE_GOOD_HIT_MAX_DIST", gate.GoodHitMaxDist),
		MinGoodHits:       getEnvInt("EVIDENCE_MIN_GOOD_HITS", gate.MinGoodHits),
		MinGap:            getEnvFloat("EVIDENCE_MIN_GAP", gate.MinGap),
		TopK:              getEnvInt("RETRIEVAL_TOP_K", 8),
		SourceMaxChars:    getEnvInt("SOURCE_MAX_CHARS", 900),
		SummaryMaxSources: getEnvInt("SUMMARY_MAX_SOURCES", core.DefaultSummaryMaxSources),
		IngestWorkers:     getEnvInt("INGEST_WORKERS", 4),
	}

	return cfg, cfg.Validate()
}

// Validate rejects unusable settings; nothing is clamped
func (c *Config) Validate() error {
	if err := c.ChunkParams().Validate(); err != nil {
		return err
	}
	if c.Top1MaxDist < 0 || c.GoodHitMaxDist < 0 || c.MinGap < 0 {
		return fmt.Errorf("evidence distance thresholds must be >= 0")
	}
	if c.MinGoodHits < 0 {
		return fmt.Errorf("EVIDENCE_MIN_GOOD_HITS must be >= 0, got %d", c.MinGoodHits)
	}
	if c.TopK < 1 || c.TopK > 30 {
		return fmt.Errorf("RETRIEVAL_TOP_K must be 1-30, got %d", c.TopK)
	}
	if c.SourceMaxChars < 200 || c.SourceMaxChars > 2000 {
		return fmt.Errorf("SOURCE_MAX_CHARS must be 200-2000, got %d", c.SourceMaxChars)
	}
	if c.SummaryMaxSources < 1 {
		return fmt.Errorf("SUMMARY_MAX_SOURCES must be >= 1, got %d", c.SummaryMaxSources)
	}
	if c.MaxRetries < 0 || c.MaxRetries > 10 {
		return fmt.Errorf("OPENAI_MAX_RETRIES must be 0-10, got %d", c.MaxRetries)
	}
	if c.EmbedBatchSize < 1 {
		return fmt.Errorf("EMBED_BATCH_SIZE must be >= 1, got %d", c.EmbedBatchSize)
	}
	if c.EmbedRateLimit < 0 {
		return fmt.Errorf("EMBED_RATE_LIMIT must be >= 0, got %f", c.EmbedRateLimit)
	}
	if c.IngestWorkers < 1 {
		return fmt.Errorf("INGEST_WORKERS must be >= 1, got %d", c.IngestWorkers)
	}
	return nil
}

// DefaultDataDir returns the data directory, respecting XDG_DATA_HOME
func DefaultDataDir() string {
	if dataHome := os.Getenv("XDG_DATA_HOME"); dataHome != "" {
		return filepath.Join(dataHome, AppName)
	}
	return filepath.Join(xdg.DataHome, AppName)
}

// ClientConfig returns the collaborator client settings
func (c *Config) ClientConfig() *llm.ClientConfig {
	return &llm.ClientConfig{
		APIKey:         c.APIKey,
		BaseURL:        c.BaseURL,
		ChatModel:      c.ChatModel,
		EmbeddingModel: c.EmbeddingModel,
		Temperature:    float32(c.Temperature),
		MaxTokens:      c.MaxTokens,
		JSONMode:       c.JSONMode,
		Timeout:        c.Timeout,
		MaxRetries:     c.MaxRetries,
		RetryDelay:     c.RetryDelay,
		EmbedBatchSize: c.EmbedBatchSize,
		EmbedRateLimit: c.EmbedRateLimit,
	}
}

// ChunkParams returns the chunking window parameters
func (c *Config) ChunkParams() core.ChunkParams {
	return core.ChunkParams{
		ChunkSize:     c.ChunkSize,
		Overlap:       c.ChunkOverlap,
		MinChunkChars: c.MinChunkChars,
	}
}

// GateThresholds returns the evidence gate thresholds
func (c *Config) GateThresholds() core.GateThresholds {
	return core.GateThresholds{
		Top1MaxDist:    c.Top1MaxDist,
		GoodHitMaxDist: c.GoodHitMaxDist,
		MinGoodHits:    c.MinGoodHits,
		MinGap:         c.MinGap,
	}
}

// AnswererConfig returns the answer pipeline settings
func (c *Config) AnswererConfig() core.AnswererConfig {
	return core.AnswererConfig{
		TopK:           c.TopK,
		SourceMaxChars: c.SourceMaxChars,
		Gate:           c.GateThresholds(),
	}
}

// SummarizerConfig returns the policy card settings
func (c *Config) SummarizerConfig() core.SummarizerConfig {
	return core.SummarizerConfig{
		MaxSources:     c.SummaryMaxSources,
		SourceMaxChars: c.SourceMaxChars,
	}
}

// Helper functions
func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	return v == "true" || v == "1"
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
