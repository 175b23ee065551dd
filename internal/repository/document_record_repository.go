package repository

import (
	"docurag-go/internal/model"

	"gorm.io/gorm"
)

// DocumentRecordRepository 定义了对 document_records 表的数据操作接口。
type DocumentRecordRepository interface {
	Create(record *model.DocumentRecord) error
	List() ([]*model.DocumentRecord, error)
	ListByCollection(collection string) ([]*model.DocumentRecord, error)
	DeleteByCollection(collection string) error
}

type documentRecordRepository struct {
	db *gorm.DB
}

// NewDocumentRecordRepository 创建一个新的 DocumentRecordRepository 实例。
func NewDocumentRecordRepository(db *gorm.DB) DocumentRecordRepository {
	return &documentRecordRepository{db: db}
}

// Create 保存一条文档摄取记录。
func (r *documentRecordRepository) Create(record *model.DocumentRecord) error {
	return r.db.Create(record).Error
}

// List 返回全部摄取记录，按时间倒序。
func (r *documentRecordRepository) List() ([]*model.DocumentRecord, error) {
	var records []*model.DocumentRecord
	err := r.db.Order("created_at DESC").Find(&records).Error
	return records, err
}

// ListByCollection 返回指定集合的摄取记录。
func (r *documentRecordRepository) ListByCollection(collection string) ([]*model.DocumentRecord, error) {
	var records []*model.DocumentRecord
	err := r.db.Where("collection = ?", collection).Order("created_at DESC").Find(&records).Error
	return records, err
}

// DeleteByCollection 删除指定集合的全部摄取记录（集合删除时调用）。
func (r *documentRecordRepository) DeleteByCollection(collection string) error {
	return r.db.Where("collection = ?", collection).Delete(&model.DocumentRecord{}).Error
}
