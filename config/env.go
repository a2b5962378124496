package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Port      string
	RateLimit string
	Redis     RedisConfig
	DB        DBConfig
	Rabbit    RabbitConfig
	Proof     ProofConfig
	Seed      SeedConfig
}

type DBConfig struct {
	DSN string
}

type RabbitConfig struct {
	URL      string
	Exchange string
}

type ProofConfig struct {
	Dir string
}

// SeedConfig holds the bootstrap staff accounts created on first run.
type SeedConfig struct {
	OperatorUsername string
	OperatorPassword string
	CourierUsername  string
	CourierPassword  string
}

func LoadConfig() Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))

	return Config{
		Port:      getEnv("PORT", "8080"),
		RateLimit: getEnv("RATE_LIMIT", "60-M"),
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", ""),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		DB: DBConfig{
			DSN: getEnv("DB_DSN", ""),
		},
		Rabbit: RabbitConfig{
			URL:      getEnv("RABBITMQ_URL", ""),
			Exchange: getEnv("RABBITMQ_EXCHANGE", "warung.events"),
		},
		Proof: ProofConfig{
			Dir: getEnv("PROOF_DIR", "uploads/proofs"),
		},
		Seed: SeedConfig{
			OperatorUsername: getEnv("SEED_OPERATOR_USERNAME", "operator"),
			OperatorPassword: getEnv("SEED_OPERATOR_PASSWORD", "operator123"),
			CourierUsername:  getEnv("SEED_COURIER_USERNAME", "courier"),
			CourierPassword:  getEnv("SEED_COURIER_PASSWORD", "courier123"),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
