package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port          string
	AllowedOrigin string
	// OpenAI
	OpenAIAPIKey  string
	OpenAIBaseURL string
	Model         string
	TTSModel      string
	TTSHDModel    string
	TTSVoice      string
	// D-ID talks/streams
	DIDAPIKey    string
	DIDBaseURL   string
	DIDSourceURL string
	DIDVoice     string
	// HeyGen streaming
	HeyGenAPIKey  string
	HeyGenBaseURL string
	HeyGenQuality string
	// Optional YAML persona catalog; the embedded one is used when empty
	PersonasFile string
	// Optional avatar session ledger (postgres:// or sqlite:)
	DatabaseURL string
	// Client session cookie signing
	SessionSecret string
	SessionTTL    time.Duration
	// Idle avatar sessions are closed at the vendor after this long
	AvatarSessionTTL time.Duration
	ReaperInterval   time.Duration
	LogLevel         string
	LogFormat        string
	// Warnings collects problems found while loading, logged once the logger exists
	Warnings []string
}

func Load() Config {
	_ = godotenv.Load()
	var warnings []string
	durationDefault := func(key string, def time.Duration) time.Duration {
		d, warning := getEnvDurationDefault(key, def)
		if warning != "" {
			warnings = append(warnings, warning)
		}
		return d
	}
	cfg := Config{
		Port:             getEnvDefault("PORT", "8080"),
		AllowedOrigin:    getEnvDefault("ALLOWED_ORIGIN", "*"),
		OpenAIAPIKey:     os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:    getEnvDefault("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		Model:            getEnvDefault("OPENAI_MODEL", "gpt-4o"),
		TTSModel:         getEnvDefault("OPENAI_TTS_MODEL", "tts-1"),
		TTSHDModel:       getEnvDefault("OPENAI_TTS_HD_MODEL", "tts-1-hd"),
		TTSVoice:         getEnvDefault("OPENAI_TTS_VOICE", "nova"),
		DIDAPIKey:        os.Getenv("D_ID_API_KEY"),
		DIDBaseURL:       getEnvDefault("D_ID_BASE_URL", "https://api.d-id.com"),
		DIDSourceURL:     getEnvDefault("D_ID_SOURCE_URL", "https://ai-girlfriend-lilac.vercel.app/pamela.png"),
		DIDVoice:         getEnvDefault("D_ID_VOICE", "en-US-EmmaNeural"),
		HeyGenAPIKey:     os.Getenv("HEYGEN_API_KEY"),
		HeyGenBaseURL:    getEnvDefault("HEYGEN_BASE_URL", "https://api.heygen.com"),
		HeyGenQuality:    getEnvDefault("HEYGEN_QUALITY", "high"),
		PersonasFile:     os.Getenv("PERSONAS_FILE"),
		DatabaseURL:      os.Getenv("DB_URL"),
		SessionSecret:    os.Getenv("SESSION_SECRET"),
		SessionTTL:       durationDefault("SESSION_TTL", 12*time.Hour),
		AvatarSessionTTL: durationDefault("AVATAR_SESSION_TTL", 10*time.Minute),
		ReaperInterval:   durationDefault("REAPER_INTERVAL", time.Minute),
		LogLevel:         getEnvDefault("LOG_LEVEL", "info"),
		LogFormat:        getEnvDefault("LOG_FORMAT", "json"),
	}
	if cfg.OpenAIAPIKey == "" {
		warnings = append(warnings, "OPENAI_API_KEY is not set; chat and audio calls will fail until provided")
	}
	cfg.Warnings = warnings
	return cfg
}

func getEnvDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// getEnvDurationDefault returns def plus a warning when the value does not parse.
func getEnvDurationDefault(key string, def time.Duration) (time.Duration, string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d, ""
		}
		return def, fmt.Sprintf("%s=%q is not a valid duration; using %s", key, v, def)
	}
	return def, ""
}
