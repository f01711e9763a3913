package config

import (
	"fmt"
	"os"
)

// MaxUploadSize caps the multipart request body. Uploads beyond this are
// rejected before any file is written to disk.
const MaxUploadSize = 16 << 20 // 16 MiB

// Config holds all service configuration loaded from environment variables.
type Config struct {
	Port      string
	MongoURI  string
	MongoDB   string
	RedisAddr string
	UploadDir string
	ModelAddr string
	JWTSecret string
}

// Load reads the configuration from the environment, applying defaults
// suitable for local development.
func Load() *Config {
	return &Config{
		Port:      getenv("PORT", "8080"),
		MongoURI:  getenv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:   getenv("MONGO_DB", "eye_disease_diagnosis"),
		RedisAddr: getenv("REDIS_ADDR", "redis:6379"),
		UploadDir: getenv("UPLOAD_DIR", "uploads"),
		ModelAddr: getenv("MODEL_ADDR", "model-server:50051"),
		JWTSecret: getenv("JWT_SECRET", "dev-secret"),
	}
}

// EnsureUploadDir creates the upload directory if it does not exist yet.
func (c *Config) EnsureUploadDir() error {
	if err := os.MkdirAll(c.UploadDir, 0o755); err != nil {
		return fmt.Errorf("create upload dir %q: %w", c.UploadDir, err)
	}
	return nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
