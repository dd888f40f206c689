package config

import (
	"os"
	"strconv"
	"strings"
)

// DatabaseConfig holds PostgreSQL settings for the optional run journal.
// The journal is disabled when Host is empty.
type DatabaseConfig struct {
	Host               string
	Port               string
	User               string
	Password           string
	Name               string
	SSLMode            string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeSec int
}

// Enabled reports whether a database host was configured.
func (c DatabaseConfig) Enabled() bool {
	return c.Host != ""
}

// MinIOConfig holds object storage settings for MinIO.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// StorageConfig selects the File Store backend.
type StorageConfig struct {
	// Backend is "local" (default) or "minio".
	Backend string
	// Dir is the root directory holding the uploads/ and books/ folders for the local backend.
	Dir string
	// AudioExtensions is the lower-cased allow-list for audio uploads.
	AudioExtensions []string
}

// GeminiConfig holds the generative-language service settings.
type GeminiConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// SpeechConfig holds the speech-synthesis settings.
type SpeechConfig struct {
	// Provider is "google" (default) or "openai".
	Provider     string
	APIKey       string
	LanguageCode string
	BaseURL      string
	OpenAIKey    string
	OpenAIVoice  string
}

// AppConfig is the centralized configuration struct for the application.
// It is populated from environment variables. Sensitive values are not hardcoded.
type AppConfig struct {
	Port             string
	SecretKey        string
	PipelineMode     string
	RemoteTimeoutSec int
	MaxUploadMB      int
	LogLevel         string
	TimeZone         string
	Storage          StorageConfig
	Gemini           GeminiConfig
	Speech           SpeechConfig
	Database         DatabaseConfig
	MinIO            MinIOConfig
}

// Load reads configuration from environment variables.
// A .env file can be auto-loaded by importing: _ "github.com/joho/godotenv/autoload"
func Load() *AppConfig {
	return &AppConfig{
		Port:             getEnv("PORT", "8080"),
		SecretKey:        getEnv("SECRET_KEY", "your_default_secret_key"),
		PipelineMode:     strings.ToLower(getEnv("PIPELINE_MODE", "reply")),
		RemoteTimeoutSec: getEnvInt("REMOTE_TIMEOUT_SEC", 0),
		MaxUploadMB:      getEnvInt("MAX_UPLOAD_MB", 32),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		TimeZone:         getEnv("TZ_NAME", "UTC"),
		Storage: StorageConfig{
			Backend:         strings.ToLower(getEnv("STORAGE_BACKEND", "local")),
			Dir:             getEnv("STORAGE_DIR", "."),
			AudioExtensions: getEnvList("ALLOWED_AUDIO_EXTENSIONS", []string{"wav"}),
		},
		Gemini: GeminiConfig{
			APIKey:  getEnv("GEMINI_API_KEY", ""),
			Model:   getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
			BaseURL: getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com"),
		},
		Speech: SpeechConfig{
			Provider:     strings.ToLower(getEnv("TTS_PROVIDER", "google")),
			APIKey:       getEnv("TTS_API_KEY", ""),
			LanguageCode: getEnv("TTS_LANGUAGE", "en-GB"),
			BaseURL:      getEnv("TTS_BASE_URL", "https://texttospeech.googleapis.com"),
			OpenAIKey:    getEnv("OPENAI_API_KEY", ""),
			OpenAIVoice:  getEnv("OPENAI_TTS_VOICE", "alloy"),
		},
		Database: DatabaseConfig{
			Host:               getEnv("DB_HOST", ""),
			Port:               getEnv("DB_PORT", "5432"),
			User:               getEnv("DB_USER", ""),
			Password:           getEnv("DB_PASSWORD", ""),
			Name:               getEnv("DB_NAME", ""),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetimeSec: getEnvInt("DB_CONN_MAX_LIFETIME_SEC", 300),
		},
		MinIO: MinIOConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", ""),
			AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey: getEnv("MINIO_SECRET_KEY", ""),
			Bucket:    getEnv("MINIO_BUCKET", ""),
			UseSSL:    getEnvBool("MINIO_USE_SSL", false),
		},
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}

// getEnvList splits a comma separated value, trimming blanks and leading dots.
func getEnvList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		item = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(item), "."))
		if item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
