package models

import "gorm.io/gorm"

// migrateAllTables 批量迁移所有表
func migrateAllTables(db *gorm.DB) error {
	models := []interface{}{
		&Gleba{},
		&GeoRecord{},
		&EditSession{},
	}
	return db.AutoMigrate(models...)
}

// Migrate 建表，启动与测试共用
func Migrate(db *gorm.DB) error {
	return migrateAllTables(db)
}
