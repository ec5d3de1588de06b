// Package config loads runtime configuration from the environment with
// sensible local-development defaults.
package config

import (
	"os"
	"strconv"
	"strings"
)

const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

type LLMConfig struct {
	Provider string
	Model    string
}

type EmbeddingsConfig struct {
	Provider  string
	Model     string
	Dimension int
}

type Config struct {
	HTTPAddr    string
	PostgresDSN string
	Neo4jURI    string
	Neo4jUser   string
	Neo4jPass   string
	RedisAddr   string
	RedisPass   string

	OpenAIAPIKey  string
	OpenAIBaseURL string
	OllamaHost    string

	LLM        LLMConfig
	Embeddings EmbeddingsConfig

	// CorpusPaths are the chunk corpus JSON files merged at startup.
	CorpusPaths []string
	// RetrievalTopK is how many chunks are injected into generation prompts.
	RetrievalTopK int
	// LessonChunks is the number of content chunks a generated lesson carries.
	LessonChunks int
	// AssessmentQuestions is the question count requested per assessment phase.
	AssessmentQuestions int
}

func Load() Config {
	return Config{
		HTTPAddr:    getEnv("HTTP_ADDR", ":8080"),
		PostgresDSN: getEnv("POSTGRES_DSN", "postgres://localhost:5432/profai?sslmode=disable"),
		Neo4jURI:    getEnv("NEO4J_URI", "neo4j://localhost:7687"),
		Neo4jUser:   getEnv("NEO4J_USERNAME", "neo4j"),
		Neo4jPass:   getEnv("NEO4J_PASSWORD", "password"),
		RedisAddr:   getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPass:   getEnv("REDIS_PASSWORD", ""),

		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", ""),
		OllamaHost:    getEnv("OLLAMA_HOST", "http://localhost:11434"),

		LLM: LLMConfig{
			Provider: getEnv("LLM_PROVIDER", ProviderOpenAI),
			Model:    getEnv("LLM_MODEL", "gpt-4"),
		},
		Embeddings: EmbeddingsConfig{
			Provider:  getEnv("EMBEDDINGS_PROVIDER", ProviderOpenAI),
			Model:     getEnv("EMBEDDINGS_MODEL", "text-embedding-3-small"),
			Dimension: getEnvInt("EMBEDDINGS_DIMENSION", 1536),
		},

		CorpusPaths:         getEnvList("CORPUS_PATHS", []string{"data/math_ml_chunks.json", "data/mit_ocw_chunks.json"}),
		RetrievalTopK:       getEnvInt("RETRIEVAL_TOP_K", 3),
		LessonChunks:        getEnvInt("LESSON_CHUNKS", 4),
		AssessmentQuestions: getEnvInt("ASSESSMENT_QUESTIONS", 5),
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}

	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
