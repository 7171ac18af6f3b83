package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"dorm-assignment-backend/config"
	"dorm-assignment-backend/internal/model"
)

// Init opens the configured database and runs migrations.
func Init(cfg *config.DatabaseConfig, log *zap.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case config.DriverPostgres:
		dialector = postgres.Open(cfg.DSN)
	case config.DriverSQLite, "":
		dialector = sqlite.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logLevel(cfg.LogLevel)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetimeMinutes > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)
	}

	log.Info("running database migrations", zap.String("driver", cfg.Driver))
	if err := Migrate(db); err != nil {
		return nil, err
	}

	log.Info("database initialization complete")
	return db, nil
}

// Migrate creates or updates every table the service uses.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.Dorm{},
		&model.Room{},
		&model.Person{},
		&model.Assignment{},
		&model.PushSubscription{},
	); err != nil {
		return fmt.Errorf("automigrate failed: %w", err)
	}
	return nil
}

// Seed creates the configured dorms and their rooms when no dorm exists yet.
// Dorms are inserted one by one so their IDs follow the configured order.
// It reports whether anything was created.
func Seed(ctx context.Context, db *gorm.DB, cfg config.SeedConfig, log *zap.Logger) (bool, error) {
	created := false
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.Dorm{}).Count(&count).Error; err != nil {
			return fmt.Errorf("count dorms: %w", err)
		}
		if count > 0 {
			return nil
		}

		for _, name := range cfg.Dorms {
			dorm := model.Dorm{Name: name, RoomsCount: cfg.RoomsPerDorm}
			if err := tx.Create(&dorm).Error; err != nil {
				return fmt.Errorf("create dorm %q: %w", name, err)
			}

			rooms := make([]model.Room, 0, cfg.RoomsPerDorm)
			for num := 1; num <= cfg.RoomsPerDorm; num++ {
				rooms = append(rooms, model.Room{DormID: dorm.ID, Number: num, Capacity: cfg.RoomCapacity})
			}
			if len(rooms) > 0 {
				if err := tx.Create(&rooms).Error; err != nil {
					return fmt.Errorf("create rooms for dorm %q: %w", name, err)
				}
			}
			log.Info("seeded dorm",
				zap.String("dorm", name),
				zap.Int("rooms", cfg.RoomsPerDorm),
				zap.Int("capacity", cfg.RoomCapacity))
		}
		created = true
		return nil
	})
	return created, err
}

func logLevel(level string) logger.LogLevel {
	switch strings.ToLower(level) {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}
