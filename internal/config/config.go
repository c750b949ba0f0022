package config

import "errors"

const (
	// DefaultModel is the Groq-hosted model used for answer generation.
	DefaultModel = "llama-3.1-8b-instant"

	// DefaultNumSources is the passage count requested from the
	// retrieval service when the client does not specify one.
	DefaultNumSources = 12
)

// Config holds application configuration
type Config struct {
	Addr         string  // HTTP listen address
	DBPath       string  // SQLite session database path
	RetrieverURL string  // base URL of the vector search service
	GroqAPIKey   string  // from GROQ_API_KEY
	GroqBaseURL  string  // OpenAI-compatible endpoint, defaults to Groq
	Model        string  // chat model identifier
	NumSources   int     // default k for retrieval
	Temperature  float64 // generation temperature
	MaxTokens    int64   // generation output cap
	Debug        bool    // enable debug logging
}

// Default returns the configuration defaults applied before flags
// and environment overrides.
func Default() Config {
	return Config{
		Addr:         ":7860",
		DBPath:       "assistant.db",
		RetrieverURL: "http://localhost:8001",
		GroqBaseURL:  "https://api.groq.com/openai/v1",
		Model:        DefaultModel,
		NumSources:   DefaultNumSources,
		Temperature:  0.3,
		MaxTokens:    1500,
		Debug:        false,
	}
}

// Validate checks that the configuration is complete enough to start.
func (c Config) Validate() error {
	if c.Addr == "" {
		return errors.New("missing listen address")
	}
	if c.RetrieverURL == "" {
		return errors.New("missing retriever URL")
	}
	if c.GroqAPIKey == "" {
		return errors.New("missing GROQ_API_KEY")
	}
	if c.Model == "" {
		return errors.New("missing model")
	}
	if c.NumSources <= 0 {
		return errors.New("num-sources must be > 0")
	}
	if c.MaxTokens <= 0 {
		return errors.New("max-tokens must be > 0")
	}
	return nil
}
