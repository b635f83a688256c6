package config

import (
	"fmt"
	"log/slog"

	"github.com/GrainArc/GlebaMap/models"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

func dialector(driver, dsn string) (gorm.Dialector, error) {
	switch driver {
	case "", "sqlite":
		return sqlite.Open(dsn), nil
	case "postgres":
		return postgres.Open(dsn), nil
	case "mysql":
		return mysql.Open(dsn), nil
	}
	return nil, fmt.Errorf("unsupported db driver %q", driver)
}

// InitDatabase 按配置打开数据库并迁移表结构
func InitDatabase(cfg Config) (*gorm.DB, error) {
	d, err := dialector(cfg.DBDriver, cfg.DataSource())
	if err != nil {
		return nil, err
	}
	db, err := gorm.Open(d, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		slog.Error("db_connect_failed", "driver", cfg.DBDriver, "err", err)
		return nil, err
	}
	if err := models.Migrate(db); err != nil {
		slog.Error("db_migrate_failed", "err", err)
		return nil, err
	}
	slog.Info("db_ready", "driver", cfg.DBDriver)
	DB = db
	return db, nil
}

// GetDB 获取数据库实例
func GetDB() *gorm.DB {
	return DB
}
