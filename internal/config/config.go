package config

import (
	"fmt"
	"log"
	"os"

	"github.com/ecomgo/storefront/internal/models"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type Config struct {
	DB_HOST           string
	DB_PORT           string
	DB_USER           string
	DB_PASSWORD       string
	DB_NAME           string
	REDIS_ADDR        string
	REDIS_PASSWORD    string
	ES_URL            string
	ES_USER           string
	ES_PASSWORD       string
	JWT_SECRET        string
	REFRESH_SECRET    string
	KAFKA_ADDRESS     string
	STRIPE_SECRET_KEY string
	MINIO_ENDPOINT    string
	MINIO_ACCESS_KEY  string
	MINIO_SECRET_KEY  string
	MINIO_BUCKET      string
	LOG_LEVEL         string
	PORT              string
}

func LoadConfig() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Notice: .env file not found: %v. Using system environment variables", err)
	}

	config := &Config{
		DB_HOST:           os.Getenv("DB_HOST"),
		DB_PORT:           os.Getenv("DB_PORT"),
		DB_USER:           os.Getenv("DB_USER"),
		DB_PASSWORD:       os.Getenv("DB_PASSWORD"),
		DB_NAME:           os.Getenv("DB_NAME"),
		REDIS_ADDR:        os.Getenv("REDIS_ADDR"),
		REDIS_PASSWORD:    os.Getenv("REDIS_PASSWORD"),
		ES_URL:            os.Getenv("ES_URL"),
		ES_USER:           os.Getenv("ES_USER"),
		ES_PASSWORD:       os.Getenv("ES_PASSWORD"),
		JWT_SECRET:        os.Getenv("JWT_SECRET"),
		REFRESH_SECRET:    os.Getenv("REFRESH_SECRET"),
		KAFKA_ADDRESS:     os.Getenv("KAFKA_ADDRESS"),
		STRIPE_SECRET_KEY: os.Getenv("STRIPE_SECRET_KEY"),
		MINIO_ENDPOINT:    os.Getenv("MINIO_ENDPOINT"),
		MINIO_ACCESS_KEY:  os.Getenv("MINIO_ACCESS_KEY"),
		MINIO_SECRET_KEY:  os.Getenv("MINIO_SECRET_KEY"),
		MINIO_BUCKET:      os.Getenv("MINIO_BUCKET"),
		LOG_LEVEL:         os.Getenv("LOG_LEVEL"),
		PORT:              os.Getenv("PORT"),
	}
	if config.MINIO_BUCKET == "" {
		config.MINIO_BUCKET = "product-photos"
	}
	if config.PORT == "" {
		config.PORT = "8080"
	}

	return config, nil
}

func InitDB(cfg *Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		cfg.DB_USER, cfg.DB_PASSWORD, cfg.DB_HOST, cfg.DB_PORT, cfg.DB_NAME,
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.User{},
		&models.Category{},
		&models.Product{},
		&models.Order{},
		&models.OrderItem{},
		&models.RefreshToken{},
	); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}
