package models

import (
	"time"

	"gorm.io/datatypes"
)

// Gleba 一条地块/线/点记录，geojson 保存单个 Feature 的几何
type Gleba struct {
	ID            int64          `gorm:"primaryKey;autoIncrement"`
	Nome          string         `gorm:"type:varchar(100);not null"`
	GeoJSON       datatypes.JSON `gorm:"column:geojson;not null"`
	Tipo          string         `gorm:"type:varchar(50)"`
	AreaHa        float64
	ComprimentoKm float64
	Cor           string    `gorm:"type:varchar(20)"`
	CreatedAt     time.Time `gorm:"index"`
}

func (Gleba) TableName() string { return "glebas" }
