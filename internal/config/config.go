package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Store drivers
const (
	StorePostgres = "postgres"
	StoreMongo    = "mongo"
	StoreMemory   = "memory"
)

// Auth providers
const (
	AuthJWT      = "jwt"
	AuthFirebase = "firebase"
)

// Media providers
const (
	MediaR2         = "r2"
	MediaCloudinary = "cloudinary"
	MediaNone       = "none"
)

type Config struct {
	ServerPort string

	StoreDriver string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	MongoURI string
	MongoDB  string

	RedisURL string

	AuthProvider            string
	JWTSecret               string
	FirebaseCredentialsFile string

	MediaProvider     string
	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string
	R2PublicURL       string
	CloudinaryURL     string

	WorkerCount int

	RateLimitRPS   float64
	RateLimitBurst int

	DebugErrors bool
}

func LoadConfig() (*Config, error) {
	err := godotenv.Load()
	if err != nil {
		log.Println("No .env file found or error loading it, relying on environment variables")
	}

	cfg := &Config{
		ServerPort: getEnv("SERVER_PORT", "8080"),

		StoreDriver: strings.ToLower(getEnv("STORE_DRIVER", StorePostgres)),

		DBHost:     os.Getenv("DB_HOST"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     os.Getenv("DB_USER"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     os.Getenv("DB_NAME"),
		DBSSLMode:  getEnv("DB_SSLMODE", "require"),

		MongoURI: getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:  getEnv("MONGO_DB", "recipehub"),

		RedisURL: os.Getenv("REDIS_URL"),

		AuthProvider:            strings.ToLower(getEnv("AUTH_PROVIDER", AuthJWT)),
		JWTSecret:               os.Getenv("JWT_SECRET"),
		FirebaseCredentialsFile: os.Getenv("FIREBASE_CREDENTIALS_FILE"),

		MediaProvider:     strings.ToLower(getEnv("MEDIA_PROVIDER", MediaR2)),
		R2AccountID:       os.Getenv("R2_ACCOUNT_ID"),
		R2AccessKeyID:     os.Getenv("R2_ACCESS_KEY_ID"),
		R2SecretAccessKey: os.Getenv("R2_SECRET_ACCESS_KEY"),
		R2BucketName:      os.Getenv("R2_BUCKET_NAME"),
		R2PublicURL:       os.Getenv("R2_PUBLIC_URL"),
		CloudinaryURL:     os.Getenv("CLOUDINARY_URL"),

		WorkerCount: getEnvInt("WORKER_COUNT", 2),

		RateLimitRPS:   getEnvFloat("RATE_LIMIT_RPS", 5),
		RateLimitBurst: getEnvInt("RATE_LIMIT_BURST", 20),

		DebugErrors: getEnvBool("DEBUG_ERRORS", false),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StoreDriver {
	case StorePostgres, StoreMongo, StoreMemory:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}

	switch c.AuthProvider {
	case AuthJWT:
		if c.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required when AUTH_PROVIDER=jwt")
		}
	case AuthFirebase:
		if c.FirebaseCredentialsFile == "" {
			return fmt.Errorf("FIREBASE_CREDENTIALS_FILE is required when AUTH_PROVIDER=firebase")
		}
	default:
		return fmt.Errorf("unknown AUTH_PROVIDER %q", c.AuthProvider)
	}

	switch c.MediaProvider {
	case MediaR2, MediaCloudinary, MediaNone:
	default:
		return fmt.Errorf("unknown MEDIA_PROVIDER %q", c.MediaProvider)
	}
	return nil
}

// PostgresDSN builds the lib/pq connection string.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort, c.DBSSLMode)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func getEnvFloat(key string, fallback float64) float64 {
	v, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func getEnvBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}
