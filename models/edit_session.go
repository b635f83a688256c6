package models

// EditSession 客户端一次编辑（edit-start 到 edit-stop）提交的批量修改，
// ID 即请求头 X-Edit-Session 的值
type EditSession struct {
	ID        string `gorm:"primaryKey;type:varchar(64)"`
	StartedAt string `gorm:"type:varchar(50)"`
	LastAt    string `gorm:"type:varchar(50)"`
	Changes   int
}
