package service

import (
	"context"

	"docurag-go/internal/model"
	"docurag-go/internal/repository"
	"docurag-go/pkg/events"
	"docurag-go/pkg/kafka"
	"docurag-go/pkg/log"

	"github.com/go-redis/redis/v8"
)

// CollectionService 定义了向量集合的生命周期管理操作。
type CollectionService interface {
	Create(ctx context.Context, name string) error
	Delete(ctx context.Context, name string) error
	Details(ctx context.Context, name string) (*model.CollectionDetails, error)
	AllDetails(ctx context.Context) ([]model.CollectionDetails, error)
}

type collectionService struct {
	vectorRepo repository.VectorRepository
	recordRepo repository.DocumentRecordRepository
	rdb        *redis.Client // 为 nil 时跳过缓存代数维护
}

// NewCollectionService 创建一个新的 CollectionService 实例。
func NewCollectionService(vectorRepo repository.VectorRepository, recordRepo repository.DocumentRecordRepository, rdb *redis.Client) CollectionService {
	return &collectionService{
		vectorRepo: vectorRepo,
		recordRepo: recordRepo,
		rdb:        rdb,
	}
}

// Create 创建集合，成功后推进缓存代数并发布审计事件。
func (s *collectionService) Create(ctx context.Context, name string) error {
	log.Infof("[CollectionService] 开始创建集合: %s", name)

	if err := s.vectorRepo.Create(ctx, name); err != nil {
		return err
	}

	s.bumpGeneration(ctx, name)
	kafka.PublishAudit(events.AuditEvent{
		Type:       events.TypeCollectionCreated,
		Collection: name,
	})

	log.Infof("[CollectionService] 集合创建成功: %s", name)
	return nil
}

// Delete 删除集合及其摄取登记记录，推进缓存代数使旧答案失效。
func (s *collectionService) Delete(ctx context.Context, name string) error {
	log.Infof("[CollectionService] 开始删除集合: %s", name)

	if err := s.vectorRepo.Delete(ctx, name); err != nil {
		return err
	}

	// 登记记录清理失败只降级记录，集合本体已删除
	if err := s.recordRepo.DeleteByCollection(name); err != nil {
		log.Warnf("[CollectionService] 清理集合 '%s' 的摄取记录失败: %v", name, err)
	}

	s.bumpGeneration(ctx, name)
	kafka.PublishAudit(events.AuditEvent{
		Type:       events.TypeCollectionDeleted,
		Collection: name,
	})

	log.Infof("[CollectionService] 集合删除成功: %s", name)
	return nil
}

// Details 返回单个集合的诊断信息。
func (s *collectionService) Details(ctx context.Context, name string) (*model.CollectionDetails, error) {
	return s.vectorRepo.Details(ctx, name)
}

// AllDetails 返回全部集合的诊断信息。
func (s *collectionService) AllDetails(ctx context.Context) ([]model.CollectionDetails, error) {
	return s.vectorRepo.AllDetails(ctx)
}

// bumpGeneration 推进集合的缓存代数。失败不影响主流程，
// 代价只是旧缓存答案在 TTL 内可能多存活一会儿。
func (s *collectionService) bumpGeneration(ctx context.Context, name string) {
	if s.rdb == nil {
		return
	}
	if err := s.rdb.Incr(ctx, collectionGenKey(name)).Err(); err != nil {
		log.Warnf("[CollectionService] 推进集合 '%s' 缓存代数失败: %v", name, err)
	}
}
