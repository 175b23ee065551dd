// Package repository 封装了对底层存储的数据访问操作。
package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"docurag-go/internal/model"
	"docurag-go/pkg/embedding"
	"docurag-go/pkg/log"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/google/uuid"
)

// 向量集合存储的错误分类。调用边界用 errors.Is 映射为 HTTP 状态码。
var (
	ErrCollectionAlreadyExists = errors.New("collection already exists")
	ErrCollectionNotFound      = errors.New("collection not found")
	ErrDimensionMismatch       = errors.New("vector dimension mismatch")
	ErrUpsertIncomplete        = errors.New("upsert did not complete")
)

// 每个集合对应一个带固定前缀的 Elasticsearch 索引。
// 前缀让诊断接口可以只枚举本系统管理的索引。
const collectionIndexPrefix = "ragcol-"

// VectorRepository 定义了命名向量集合的全部操作。
// 集合的向量维度和距离度量 (cosine) 在创建时固定，终生不变。
type VectorRepository interface {
	Create(ctx context.Context, name string) error
	Delete(ctx context.Context, name string) error
	Exists(ctx context.Context, name string) (bool, error)
	// Upsert 为每个分块生成全新的唯一标识、向量化其文本并批量写入。
	// 底层存储报告部分失败时整个调用以 ErrUpsertIncomplete 失败。
	Upsert(ctx context.Context, name string, chunks []model.Chunk) error
	// Search 用与摄取一致的模型向量化查询文本，按相似度降序返回至多 limit 条命中。
	Search(ctx context.Context, name string, query string, limit int) ([]model.SearchHit, error)
	Details(ctx context.Context, name string) (*model.CollectionDetails, error)
	AllDetails(ctx context.Context) ([]model.CollectionDetails, error)
}

type esVectorRepository struct {
	esClient        *elasticsearch.Client
	embeddingClient embedding.Client
}

// NewVectorRepository 创建一个基于 Elasticsearch 的 VectorRepository 实例。
func NewVectorRepository(esClient *elasticsearch.Client, embeddingClient embedding.Client) VectorRepository {
	return &esVectorRepository{
		esClient:        esClient,
		embeddingClient: embeddingClient,
	}
}

func indexFor(name string) string {
	return collectionIndexPrefix + name
}

func collectionFor(index string) string {
	return strings.TrimPrefix(index, collectionIndexPrefix)
}

// Exists 检查集合是否存在。
func (r *esVectorRepository) Exists(ctx context.Context, name string) (bool, error) {
	res, err := r.esClient.Indices.Exists(
		[]string{indexFor(name)},
		r.esClient.Indices.Exists.WithContext(ctx),
	)
	if err != nil {
		return false, fmt.Errorf("检查集合是否存在失败: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusOK {
		return true, nil
	}
	if res.StatusCode == http.StatusNotFound {
		return false, nil
	}
	return false, fmt.Errorf("检查集合是否存在时收到意外的状态码: %d", res.StatusCode)
}

// Create 创建一个新集合。维度取自当前配置的 embedding 模型，相似度固定为 cosine。
func (r *esVectorRepository) Create(ctx context.Context, name string) error {
	exists, err := r.Exists(ctx, name)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %s", ErrCollectionAlreadyExists, name)
	}

	dims, err := r.embeddingClient.Dimensions(ctx)
	if err != nil {
		return err
	}

	// 扁平的来源字段约定：text_id/text/text_type/languages/filetype/
	// last_modified/page_number，外加可选的 category 与 coordinates。
	mapping := fmt.Sprintf(`{
		"mappings": {
			"properties": {
				"text_id": { "type": "keyword" },
				"text": { "type": "text" },
				"text_type": { "type": "keyword" },
				"languages": { "type": "keyword" },
				"filetype": { "type": "keyword" },
				"last_modified": { "type": "keyword" },
				"page_number": { "type": "integer" },
				"category": { "type": "keyword" },
				"coordinates": { "type": "object", "enabled": false },
				"vector": {
					"type": "dense_vector",
					"dims": %d,
					"index": true,
					"similarity": "cosine"
				}
			}
		}
	}`, dims)

	res, err := r.esClient.Indices.Create(
		indexFor(name),
		r.esClient.Indices.Create.WithBody(strings.NewReader(mapping)),
		r.esClient.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("创建集合 '%s' 失败: %w", name, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		// String() 会读空响应体，只读一次
		body := res.String()
		// 并发创建时以存储的存在性检查为准
		if res.StatusCode == http.StatusBadRequest && strings.Contains(body, "resource_already_exists") {
			return fmt.Errorf("%w: %s", ErrCollectionAlreadyExists, name)
		}
		return fmt.Errorf("创建集合 '%s' 时存储返回错误: %s", name, body)
	}

	log.Infof("[VectorRepository] 集合 '%s' 创建成功, 维度: %d", name, dims)
	return nil
}

// Delete 删除集合及其全部点。
func (r *esVectorRepository) Delete(ctx context.Context, name string) error {
	res, err := r.esClient.Indices.Delete(
		[]string{indexFor(name)},
		r.esClient.Indices.Delete.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("删除集合 '%s' 失败: %w", name, err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}
	if res.IsError() {
		return fmt.Errorf("删除集合 '%s' 时存储返回错误: %s", name, res.String())
	}

	log.Infof("[VectorRepository] 集合 '%s' 已删除", name)
	return nil
}

// Upsert 将分块批量向量化并写入集合。
func (r *esVectorRepository) Upsert(ctx context.Context, name string, chunks []model.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	details, err := r.Details(ctx, name)
	if err != nil {
		return err
	}

	texts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		texts = append(texts, c.Text)
	}
	vectors, err := r.embeddingClient.CreateEmbeddings(ctx, texts)
	if err != nil {
		return fmt.Errorf("分块向量化失败: %w", err)
	}

	// 集合维度创建时固定，不一致的向量拒绝写入而不是静默截断
	for i, v := range vectors {
		if len(v) != details.Dimension {
			return fmt.Errorf("%w: 分块 %d 向量维度 %d, 集合 '%s' 维度 %d",
				ErrDimensionMismatch, i, len(v), name, details.Dimension)
		}
	}

	var buf bytes.Buffer
	for i, chunk := range chunks {
		textID := uuid.NewString()
		meta := map[string]map[string]string{
			"index": {"_index": indexFor(name), "_id": textID},
		}
		doc := map[string]interface{}{
			"text_id":       textID,
			"text":          chunk.Text,
			"text_type":     chunk.UnitType,
			"languages":     chunk.Languages,
			"filetype":      chunk.Filetype,
			"last_modified": chunk.LastModified,
			"page_number":   chunk.PageNumber,
			"vector":        vectors[i],
		}
		if chunk.Category != "" {
			doc["category"] = chunk.Category
		}
		if len(chunk.Coordinates) > 0 {
			doc["coordinates"] = chunk.Coordinates
		}
		if err := json.NewEncoder(&buf).Encode(meta); err != nil {
			return fmt.Errorf("序列化批量写入请求失败: %w", err)
		}
		if err := json.NewEncoder(&buf).Encode(doc); err != nil {
			return fmt.Errorf("序列化批量写入请求失败: %w", err)
		}
	}

	res, err := r.esClient.Bulk(
		bytes.NewReader(buf.Bytes()),
		r.esClient.Bulk.WithContext(ctx),
		r.esClient.Bulk.WithRefresh("true"),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpsertIncomplete, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("%w: 存储返回错误: %s", ErrUpsertIncomplete, res.String())
	}

	var bulkResp struct {
		Errors bool `json:"errors"`
		Items  []map[string]struct {
			Status int `json:"status"`
		} `json:"items"`
	}
	if err := json.NewDecoder(res.Body).Decode(&bulkResp); err != nil {
		return fmt.Errorf("%w: 解析批量写入响应失败: %v", ErrUpsertIncomplete, err)
	}

	// 只要存储报告任何一条写入失败，整批视为失败：不存在"部分成功"
	if bulkResp.Errors {
		failed := 0
		for _, item := range bulkResp.Items {
			for _, op := range item {
				if op.Status >= 300 {
					failed++
				}
			}
		}
		return fmt.Errorf("%w: %d/%d 条写入失败", ErrUpsertIncomplete, failed, len(chunks))
	}

	log.Infof("[VectorRepository] 成功写入 %d 个点到集合 '%s'", len(chunks), name)
	return nil
}

// Search 在集合内执行 kNN 相似度检索。
func (r *esVectorRepository) Search(ctx context.Context, name string, query string, limit int) ([]model.SearchHit, error) {
	exists, err := r.Exists(ctx, name)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}

	queryVector, err := r.embeddingClient.CreateEmbedding(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("查询向量化失败: %w", err)
	}

	numCandidates := limit * 10
	if numCandidates < 100 {
		numCandidates = 100
	}
	esQuery := map[string]interface{}{
		"knn": map[string]interface{}{
			"field":          "vector",
			"query_vector":   queryVector,
			"k":              limit,
			"num_candidates": numCandidates,
		},
		"size": limit,
		"_source": map[string]interface{}{
			"excludes": []string{"vector"},
		},
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(esQuery); err != nil {
		return nil, fmt.Errorf("序列化检索请求失败: %w", err)
	}

	res, err := r.esClient.Search(
		r.esClient.Search.WithContext(ctx),
		r.esClient.Search.WithIndex(indexFor(name)),
		r.esClient.Search.WithBody(&buf),
	)
	if err != nil {
		return nil, fmt.Errorf("向量检索失败: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}
	if res.IsError() {
		bodyBytes, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("检索时存储返回错误: %s, body: %s", res.Status(), string(bodyBytes))
	}

	var esResponse struct {
		Hits struct {
			Hits []struct {
				Score  float64                `json:"_score"`
				Source map[string]interface{} `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&esResponse); err != nil {
		return nil, fmt.Errorf("解析检索响应失败: %w", err)
	}

	hits := make([]model.SearchHit, 0, len(esResponse.Hits.Hits))
	for _, h := range esResponse.Hits.Hits {
		hits = append(hits, model.SearchHit{Score: h.Score, Payload: h.Source})
	}
	log.Infof("[VectorRepository] 集合 '%s' 检索完成, 命中 %d 条", name, len(hits))
	return hits, nil
}

// catIndexRow 对应 _cat/indices 的单行 JSON 输出。
type catIndexRow struct {
	Health    string `json:"health"`
	Status    string `json:"status"`
	Index     string `json:"index"`
	DocsCount string `json:"docs.count"`
}

// Details 返回集合的点数、维度与状态，仅用于诊断。
func (r *esVectorRepository) Details(ctx context.Context, name string) (*model.CollectionDetails, error) {
	rows, err := r.catIndices(ctx, indexFor(name))
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}

	dims, err := r.indexDimension(ctx, indexFor(name))
	if err != nil {
		return nil, err
	}

	count, _ := strconv.ParseInt(rows[0].DocsCount, 10, 64)
	return &model.CollectionDetails{
		Name:        name,
		PointsCount: count,
		Dimension:   dims,
		Status:      rows[0].Health,
	}, nil
}

// AllDetails 返回本系统管理的全部集合的诊断信息。
func (r *esVectorRepository) AllDetails(ctx context.Context) ([]model.CollectionDetails, error) {
	rows, err := r.catIndices(ctx, collectionIndexPrefix+"*")
	if err != nil {
		return nil, err
	}

	details := make([]model.CollectionDetails, 0, len(rows))
	for _, row := range rows {
		dims, err := r.indexDimension(ctx, row.Index)
		if err != nil {
			log.Warnf("[VectorRepository] 获取索引 '%s' 维度失败: %v", row.Index, err)
			continue
		}
		count, _ := strconv.ParseInt(row.DocsCount, 10, 64)
		details = append(details, model.CollectionDetails{
			Name:        collectionFor(row.Index),
			PointsCount: count,
			Dimension:   dims,
			Status:      row.Health,
		})
	}
	return details, nil
}

func (r *esVectorRepository) catIndices(ctx context.Context, pattern string) ([]catIndexRow, error) {
	res, err := r.esClient.Cat.Indices(
		r.esClient.Cat.Indices.WithContext(ctx),
		r.esClient.Cat.Indices.WithIndex(pattern),
		r.esClient.Cat.Indices.WithFormat("json"),
	)
	if err != nil {
		return nil, fmt.Errorf("枚举集合索引失败: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if res.IsError() {
		return nil, fmt.Errorf("枚举集合索引时存储返回错误: %s", res.String())
	}

	var rows []catIndexRow
	if err := json.NewDecoder(res.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("解析索引列表失败: %w", err)
	}
	return rows, nil
}

// indexDimension 从索引 mapping 中读出 dense_vector 字段的维度。
func (r *esVectorRepository) indexDimension(ctx context.Context, index string) (int, error) {
	res, err := r.esClient.Indices.GetMapping(
		r.esClient.Indices.GetMapping.WithContext(ctx),
		r.esClient.Indices.GetMapping.WithIndex(index),
	)
	if err != nil {
		return 0, fmt.Errorf("获取索引 mapping 失败: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return 0, fmt.Errorf("获取索引 mapping 时存储返回错误: %s", res.String())
	}

	var mappingResp map[string]struct {
		Mappings struct {
			Properties map[string]struct {
				Dims int `json:"dims"`
			} `json:"properties"`
		} `json:"mappings"`
	}
	if err := json.NewDecoder(res.Body).Decode(&mappingResp); err != nil {
		return 0, fmt.Errorf("解析索引 mapping 失败: %w", err)
	}

	for _, m := range mappingResp {
		if vec, ok := m.Mappings.Properties["vector"]; ok {
			return vec.Dims, nil
		}
	}
	return 0, fmt.Errorf("索引 '%s' 缺少 vector 字段", index)
}
