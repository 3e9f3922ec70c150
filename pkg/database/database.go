package database

import (
	"context"
	"fmt"
	"time"

	"restaurant_reviews/pkg/config"
	"restaurant_reviews/pkg/models"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Open connects to postgres using cfg.
func Open(cfg config.DatabaseConfig, logger *zap.Logger) (*gorm.DB, error) {
	logger.Info("Connecting to database",
		zap.String("host", cfg.Host),
		zap.String("port", cfg.Port),
		zap.String("name", cfg.Name),
		zap.Bool("url", cfg.URL != ""))
	return Connect(postgres.Open(cfg.DSN()), cfg, logger)
}

// Connect opens dialector, retrying up to cfg.MaxRetries times, tunes the pool
// and pings the database once.
func Connect(dialector gorm.Dialector, cfg config.DatabaseConfig, logger *zap.Logger) (*gorm.DB, error) {
	attempts := cfg.MaxRetries
	if attempts < 1 {
		attempts = 1
	}

	var (
		db  *gorm.DB
		err error
	)
	for i := 0; i < attempts; i++ {
		db, err = gorm.Open(dialector, &gorm.Config{
			Logger: gormlogger.Default.LogMode(gormlogger.Warn),
		})
		if err == nil {
			break
		}
		logger.Warn("Database connection attempt failed",
			zap.Int("attempt", i+1),
			zap.Int("max_attempts", attempts),
			zap.Error(err))
		if i < attempts-1 {
			time.Sleep(cfg.RetryDelay)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	logger.Info("Database connection established")
	return db, nil
}

// Migrate creates the restaurant and review tables if they do not exist.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.Restaurant{}, &models.Review{}); err != nil {
		return fmt.Errorf("database migration failed: %w", err)
	}
	return nil
}

// Drop removes both tables, review first so the foreign key never dangles.
func Drop(db *gorm.DB) error {
	if err := db.Migrator().DropTable(&models.Review{}, &models.Restaurant{}); err != nil {
		return fmt.Errorf("failed to drop tables: %w", err)
	}
	return nil
}

func Ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}

func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
