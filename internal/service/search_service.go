// Package service 提供了检索相关的业务逻辑。
package service

import (
	"context"
	"crypto/md5"
	"encoding/json"
	"fmt"
	"time"

	"docurag-go/internal/model"
	"docurag-go/internal/repository"
	"docurag-go/pkg/log"

	"github.com/go-redis/redis/v8"
)

// collectionGenKey 返回集合的缓存代数键。集合创建/删除时代数自增，
// 旧代数下缓存的答案自然失效。
func collectionGenKey(collection string) string {
	return "collection_gen:" + collection
}

// SearchService 接口定义了检索与答案合成的端到端操作。
type SearchService interface {
	Search(ctx context.Context, query string, limit int, collection string) (*model.SearchResult, error)
}

type searchService struct {
	vectorRepo    repository.VectorRepository
	answerService AnswerService
	rdb           *redis.Client // 为 nil 时禁用答案缓存
	answerTTL     time.Duration
}

// NewSearchService 创建一个新的 SearchService 实例。
func NewSearchService(vectorRepo repository.VectorRepository, answerService AnswerService, rdb *redis.Client, answerTTL time.Duration) SearchService {
	return &searchService{
		vectorRepo:    vectorRepo,
		answerService: answerService,
		rdb:           rdb,
		answerTTL:     answerTTL,
	}
}

// Search 执行相似度检索并合成接地答案。
// metadata 始终是完整的按分数排序的检索 payload 列表，与合成是否成功无关。
func (s *searchService) Search(ctx context.Context, query string, limit int, collection string) (*model.SearchResult, error) {
	log.Infof("[SearchService] 开始检索, query: '%s', limit: %d, collection: %s", query, limit, collection)

	// 1. 答案缓存查找
	cacheKey := s.answerCacheKey(ctx, collection, query, limit)
	if cached := s.cacheLookup(ctx, cacheKey); cached != nil {
		log.Infof("[SearchService] 答案缓存命中, collection: %s", collection)
		return cached, nil
	}

	// 2. 向量检索
	log.Info("[SearchService] 步骤1: 开始向量检索")
	hits, err := s.vectorRepo.Search(ctx, collection, query, limit)
	if err != nil {
		return nil, err
	}
	log.Infof("[SearchService] 步骤1: 检索完成, 命中 %d 条", len(hits))

	// 3. 空结果直接返回固定应答，不调用模型
	if len(hits) == 0 {
		log.Info("[SearchService] 检索结果为空, 返回固定应答")
		return &model.SearchResult{
			FinalAnswer: NoResultsAnswer,
			Metadata:    []map[string]interface{}{},
		}, nil
	}

	// 4. 合成答案（失败时降级为固定文案，不中断）
	log.Info("[SearchService] 步骤2: 开始合成答案")
	answer := s.answerService.Synthesize(ctx, hits, query)

	metadata := make([]map[string]interface{}, 0, len(hits))
	for _, hit := range hits {
		metadata = append(metadata, hit.Payload)
	}
	result := &model.SearchResult{
		FinalAnswer: answer,
		Metadata:    metadata,
	}

	// 5. 只缓存成功合成的答案：降级应答不值得复用
	if answer != FailedAnswer {
		s.cacheStore(ctx, cacheKey, result)
	}

	log.Infof("[SearchService] 检索完成, query: '%s', 返回 %d 条元数据", query, len(metadata))
	return result, nil
}

// answerCacheKey 构造答案缓存键：集合代数 + 查询摘要 + limit。
func (s *searchService) answerCacheKey(ctx context.Context, collection, query string, limit int) string {
	if s.rdb == nil {
		return ""
	}
	gen, err := s.rdb.Get(ctx, collectionGenKey(collection)).Result()
	if err != nil {
		gen = "0"
	}
	return fmt.Sprintf("answer:%s:%s:%d:%x", collection, gen, limit, md5.Sum([]byte(query)))
}

func (s *searchService) cacheLookup(ctx context.Context, key string) *model.SearchResult {
	if s.rdb == nil || key == "" {
		return nil
	}
	raw, err := s.rdb.Get(ctx, key).Result()
	if err != nil {
		return nil
	}
	var result model.SearchResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		log.Warnf("[SearchService] 解析缓存答案失败, key: %s, err: %v", key, err)
		return nil
	}
	return &result
}

func (s *searchService) cacheStore(ctx context.Context, key string, result *model.SearchResult) {
	if s.rdb == nil || key == "" {
		return
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return
	}
	if err := s.rdb.Set(ctx, key, raw, s.answerTTL).Err(); err != nil {
		log.Warnf("[SearchService] 写入答案缓存失败, key: %s, err: %v", key, err)
	}
}
