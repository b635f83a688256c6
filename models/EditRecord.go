package models

import "gorm.io/datatypes"

const (
	RecordAdd    = "要素添加"
	RecordUpdate = "要素修改"
	RecordDelete = "要素删除"
	RecordImport = "要素导入"
)

// GeoRecord 要素变更记录，SessionID 来自客户端的 X-Edit-Session
type GeoRecord struct {
	ID         int64  `gorm:"primaryKey;autoIncrement"`
	GeoID      int64  `gorm:"index"`
	Type       string `gorm:"type:varchar(50)"`
	Date       string `gorm:"type:varchar(50)"`
	SessionID  string `gorm:"type:varchar(64);index"`
	BZ         string `gorm:"type:varchar(255)"`
	OldGeojson datatypes.JSON
	NewGeojson datatypes.JSON
}
