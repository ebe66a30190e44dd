/*
 * Database Adapter
 *
 * This package is responsible for establishing and configuring the connection
 * to the PostgreSQL database using GORM. It includes connection pooling settings
 * for performance and resilience and handles schema auto-migration.
 */
package db

import (
	"context"
	"fmt"
	"log"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/fiveinarow/server/internal/config"
	"github.com/fiveinarow/server/internal/core/domain"
)

/*
 * InitializeDatabase opens a GORM connection to cfg.DatabaseURL, bounding
 * the dial by cfg.DBConnectTimeout, sizes the pool from
 * cfg.DBMaxConnections/DBAcquireTimeout, and idempotently migrates the
 * users/refresh_sessions schema.
 *
 * Parameters:
 *   - cfg (*config.Config): The resolved server configuration.
 *
 * Returns:
 *   - *gorm.DB: The opened, migrated connection.
 *   - error: A non-nil error if the dial times out, fails, or migration fails.
 */
func InitializeDatabase(cfg *config.Config) (*gorm.DB, error) {
	type openResult struct {
		db  *gorm.DB
		err error
	}
	done := make(chan openResult, 1)
	go func() {
		gormDB, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		done <- openResult{gormDB, err}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DBConnectTimeout)
	defer cancel()

	var gormDB *gorm.DB
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("database connect timeout after %s", cfg.DBConnectTimeout)
	case res := <-done:
		if res.err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", res.err)
		}
		gormDB = res.db
	}

	sqlDB, err := gormDB.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.DBMaxConnections)
	sqlDB.SetMaxIdleConns(cfg.DBMaxConnections)
	sqlDB.SetConnMaxLifetime(time.Hour)

	pingCtx, pingCancel := context.WithTimeout(context.Background(), cfg.DBAcquireTimeout)
	defer pingCancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		return nil, fmt.Errorf("database acquire timeout: %w", err)
	}

	// AutoMigrate the schema. In a real-world production environment, a more robust
	// migration tool like GORM's migrator or an external tool (e.g., migrate, goose) is recommended.
	if err := gormDB.AutoMigrate(&domain.User{}, &domain.RefreshSession{}); err != nil {
		return nil, fmt.Errorf("database schema migration failed: %w", err)
	}
	log.Println("INFO: Database schema migration completed successfully.")

	return gormDB, nil
}
