package infra

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv        string
	Port          string
	PublicBaseURL string
	DatabaseURL   string
	DBMaxConns    int
	RedisURL      string
	GeoIPDBPath   string
	AdminToken    string
	CORSOrigins   []string

	DataDir        string
	UploadDir      string
	ResizeCacheDir string
	RegistryPath   string

	GeminiAPIKey     string
	GeminiModel      string
	GeminiImageModel string
	GeminiRESTURL    string
	VisionAPIKey     string
	VisionBaseURL    string
	NanoBananaURL    string
	NanoBananaAPIKey string

	CloudinaryURL    string
	CloudinaryFolder string
	S3Bucket         string
	S3Prefix         string
	S3PresignTTL     time.Duration

	MaxImageSizeMB    int
	MinImageDimension int
	AnalysisTimeout   time.Duration
	EditTimeout       time.Duration

	ModerationEnabled bool
	WatermarkEnabled  bool
	WatermarkText     string
	PrivacyMode       bool

	EnforceCredits       bool
	StartingCredits      int
	CreditCostAnalysis   int
	CreditCostGeneration int

	SessionRateLimitMax    int
	SessionRateLimitWindow time.Duration
	IPRatePerSecond        float64
	IPRateBurst            int

	AnalysisCacheTTL   time.Duration
	GenerationCacheTTL time.Duration

	LogFile             string
	BetterStackEndpoint string
	BetterStackToken    string

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	port := getEnv("PORT", "8080")
	if _, err := strconv.Atoi(port); err != nil {
		return nil, fmt.Errorf("PORT must be numeric, got %q", port)
	}
	dataDir := getEnv("DATA_DIR", "data")

	cfg := &Config{
		AppEnv:        getEnv("APP_ENV", "development"),
		Port:          port,
		PublicBaseURL: strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:"+port), "/"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		DBMaxConns:    getEnvInt("DB_MAX_CONNS", 5),
		RedisURL:      getEnv("REDIS_URL", os.Getenv("UPSTASH_REDIS_URL")),
		GeoIPDBPath:   os.Getenv("GEOIP_DB_PATH"),
		AdminToken:    os.Getenv("ADMIN_TOKEN"),
		CORSOrigins:   splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),

		DataDir:        dataDir,
		UploadDir:      getEnv("UPLOAD_DIR", filepath.Join("public", "uploads")),
		ResizeCacheDir: getEnv("RESIZE_CACHE_DIR", filepath.Join(dataDir, "resize-cache")),
		RegistryPath:   getEnv("REGISTRY_PATH", filepath.Join(dataDir, "generated_images.json")),

		GeminiAPIKey:     os.Getenv("GEMINI_API_KEY"),
		GeminiModel:      getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		GeminiImageModel: getEnv("GOOGLE_IMAGE_MODEL", "gemini-2.5-flash-image"),
		GeminiRESTURL:    os.Getenv("GEMINI_REST_URL"),
		VisionAPIKey:     os.Getenv("GOOGLE_VISION_API_KEY"),
		VisionBaseURL:    getEnv("GOOGLE_VISION_BASE_URL", "https://vision.googleapis.com/v1"),
		NanoBananaURL:    os.Getenv("NANOBANANA_URL"),
		NanoBananaAPIKey: os.Getenv("NANOBANANA_API_KEY"),

		CloudinaryURL:    os.Getenv("CLOUDINARY_URL"),
		CloudinaryFolder: getEnv("CLOUDINARY_FOLDER", "retouch"),
		S3Bucket:         os.Getenv("S3_BUCKET"),
		S3Prefix:         getEnv("S3_PREFIX", "retouch"),
		S3PresignTTL:     time.Minute * time.Duration(getEnvInt("S3_PRESIGN_TTL_MINUTES", 0)),

		MaxImageSizeMB:    getEnvInt("MAX_IMAGE_SIZE_MB", 8),
		MinImageDimension: getEnvInt("MIN_IMAGE_DIMENSION", 256),
		AnalysisTimeout:   time.Millisecond * time.Duration(getEnvInt("AI_ANALYSIS_TIMEOUT", 60000)),
		EditTimeout:       time.Millisecond * time.Duration(getEnvInt("AI_EDIT_TIMEOUT", 120000)),

		ModerationEnabled: getEnvBool("MODERATION_ENABLED", false),
		WatermarkEnabled:  getEnvBool("WATERMARK_ENABLED", true),
		WatermarkText:     getEnv("WATERMARK_TEXT", "AI Preview"),
		PrivacyMode:       getEnvBool("PRIVACY_MODE", false),

		EnforceCredits:       getEnvBool("ENFORCE_CREDITS", false),
		StartingCredits:      getEnvInt("STARTING_CREDITS", 10),
		CreditCostAnalysis:   getEnvInt("CREDIT_COST_ANALYSIS", 1),
		CreditCostGeneration: getEnvInt("CREDIT_COST_GENERATION", 2),

		SessionRateLimitMax:    getEnvInt("RATE_LIMIT_MAX", 20),
		SessionRateLimitWindow: time.Second * time.Duration(getEnvInt("RATE_LIMIT_WINDOW_SECONDS", 60)),
		IPRatePerSecond:        getEnvFloat("IP_RATE_PER_SECOND", 5),
		IPRateBurst:            getEnvInt("IP_RATE_BURST", 20),

		AnalysisCacheTTL:   time.Second * time.Duration(getEnvInt("ANALYSIS_CACHE_TTL_SECONDS", 86400)),
		GenerationCacheTTL: time.Second * time.Duration(getEnvInt("GENERATION_CACHE_TTL_SECONDS", 3600)),

		LogFile:             os.Getenv("LOG_FILE"),
		BetterStackEndpoint: os.Getenv("BETTERSTACK_LOG_ENDPOINT"),
		BetterStackToken:    os.Getenv("BETTERSTACK_TOKEN"),

		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 30)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 180)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
	}

	if cfg.MaxImageSizeMB <= 0 {
		return nil, fmt.Errorf("MAX_IMAGE_SIZE_MB must be positive")
	}
	if cfg.SessionRateLimitMax <= 0 || cfg.SessionRateLimitWindow <= 0 {
		return nil, fmt.Errorf("RATE_LIMIT_MAX and RATE_LIMIT_WINDOW_SECONDS must be positive")
	}

	return cfg, nil
}

// IsProduction reports whether the service runs with production settings.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
