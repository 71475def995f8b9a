package config

import (
	"log"
	"os"
	"runtime"
	"strconv"
	"strings"
)

// Config holds application configuration.
type Config struct {
	Port            string
	CORSAllowOrigin []string
	ObjectStoreType string
	LocalStoreDir   string
	AWSRegion       string
	S3Bucket        string
	S3Prefix        string
	SSEKMSKeyID     string
	DatabaseURL     string
	Env             string

	// Queue URLs keyed by logical queue name; empty entries disable publishing.
	NewResourcesQueueURL   string
	DeleteResourceQueueURL string
	CompletionQueueURL     string

	FFmpegPath             string
	CompressTimeoutSeconds int
	CompressPoolSize       int

	MaxUploadBytes int64
	MaxUploadFiles int
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")

	env := normalizeEnv(getEnv("ENV", "dev"))
	dbURL := os.Getenv("DATABASE_URL")

	if env == "production" && dbURL == "" {
		log.Printf("DATABASE_URL is required in production")
	}

	return Config{
		Port:            getEnv("PORT", "8080"),
		CORSAllowOrigin: splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:5173")),
		ObjectStoreType: normalizeStoreType(getEnv("OBJECT_STORE", "local")),
		LocalStoreDir:   getEnv("LOCAL_STORE_DIR", "./data"),
		AWSRegion:       getEnv("AWS_REGION", ""),
		S3Bucket:        getEnv("S3_BUCKET", ""),
		S3Prefix:        getEnv("S3_PREFIX", ""),
		SSEKMSKeyID:     getEnv("SSE_KMS_KEY_ID", ""),
		DatabaseURL:     dbURL,
		Env:             env,

		NewResourcesQueueURL:   getEnv("TR_SQS_NEW_RESOURCES_URL", ""),
		DeleteResourceQueueURL: getEnv("TR_SQS_DELETE_RESOURCE_URL", ""),
		CompletionQueueURL:     getEnv("TR_SQS_COMPLETION_URL", ""),

		FFmpegPath:             getEnv("FFMPEG_PATH", "ffmpeg"),
		CompressTimeoutSeconds: getEnvInt("COMPRESS_TIMEOUT_SECONDS", 300),
		CompressPoolSize:       getEnvInt("COMPRESS_POOL_SIZE", defaultPoolSize()),

		MaxUploadBytes: int64(getEnvInt("MAX_UPLOAD_MB", 15)) << 20,
		MaxUploadFiles: getEnvInt("MAX_UPLOAD_FILES", 5),
	}
}

func defaultPoolSize() int {
	size := runtime.NumCPU() / 2
	if size < 1 {
		size = 1
	}
	return size
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("config env %s invalid int: %v", key, err)
		return def
	}
	return val
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	case "development", "dev":
		return "dev"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	default:
		return "local"
	}
}
