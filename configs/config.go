package configs

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port int

	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBNameTest string

	// An empty RedisHost disables the Redis cache
	RedisHost string
	RedisPort int
	CacheTTL  time.Duration
	// CacheSize bounds the in-process cache used without Redis; 0 disables it.
	CacheSize int

	JWTSecret string
	JWTTTL    time.Duration

	LogDir    string
	UploadDir string

	// StorageBackend is "disk" or "s3".
	StorageBackend string
	S3Bucket       string
	S3Region       string
	S3Endpoint     string
	S3AccessKey    string
	S3SecretKey    string
	S3UsePathStyle bool

	RateLimitMax int
	CORSOrigins  string
}

func LoadConfig() Config {
	// Load the .env file
	if err := godotenv.Load(); err != nil {
		// Only log outside test mode
		if os.Getenv("GO_ENV") != "test" {
			log.Println("No .env file found, using default values")
		}
	}

	return Config{
		Port: intEnv("PORT", 3004),

		DBHost:     stringEnv("DB_HOST", "localhost"),
		DBPort:     intEnv("DB_PORT", 5432),
		DBUser:     stringEnv("DB_USER", "postgres"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     stringEnv("DB_NAME", "taskmanager"),
		DBNameTest: os.Getenv("DB_NAME_TEST"),

		RedisHost: os.Getenv("REDIS_HOST"),
		RedisPort: intEnv("REDIS_PORT", 6379),
		CacheTTL:  durationEnv("CACHE_TTL", time.Hour),
		CacheSize: intEnv("CACHE_SIZE", 1024),

		JWTSecret: os.Getenv("JWT_SECRET"),
		JWTTTL:    durationEnv("JWT_TTL", 7*24*time.Hour),

		LogDir:    stringEnv("LOG_DIR", "logs"),
		UploadDir: stringEnv("UPLOAD_DIR", "uploads"),

		StorageBackend: stringEnv("STORAGE_BACKEND", "disk"),
		S3Bucket:       os.Getenv("S3_BUCKET"),
		S3Region:       stringEnv("S3_REGION", "us-east-1"),
		S3Endpoint:     os.Getenv("S3_ENDPOINT"),
		S3AccessKey:    os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey:    os.Getenv("S3_SECRET_KEY"),
		S3UsePathStyle: boolEnv("S3_USE_PATH_STYLE", false),

		RateLimitMax: intEnv("RATE_LIMIT_MAX", 100),
		CORSOrigins:  stringEnv("CORS_ORIGINS", "*"),
	}
}

func stringEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func intEnv(key string, def int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return def
	}
	return v
}

func boolEnv(key string, def bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return def
	}
	return v
}

func durationEnv(key string, def time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return def
	}
	return v
}
