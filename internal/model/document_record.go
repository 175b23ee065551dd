package model

import "time"

// DocumentRecord 定义了 document_records 表的结构，记录每一次成功的文档摄取。
type DocumentRecord struct {
	ID         uint      `gorm:"primarykey" json:"id"`
	FileName   string    `gorm:"type:varchar(512);not null" json:"fileName"`
	Collection string    `gorm:"type:varchar(255);not null;index" json:"collection"`
	Filetype   string    `gorm:"type:varchar(64)" json:"filetype"`
	ChunkCount int       `gorm:"not null" json:"chunkCount"`
	ObjectName string    `gorm:"type:varchar(768)" json:"objectName"`
	CreatedAt  time.Time `json:"createdAt"`
}

// TableName 指定 GORM 使用的表名。
func (DocumentRecord) TableName() string {
	return "document_records"
}
