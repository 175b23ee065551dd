// Package embedding provides a client for interacting with embedding models.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"docurag-go/internal/config"
	"docurag-go/pkg/log"
	"docurag-go/pkg/modelcache"
)

// Client defines the interface for an embedding client.
type Client interface {
	// CreateEmbedding 将单条文本向量化。
	CreateEmbedding(ctx context.Context, text string) ([]float32, error)
	// CreateEmbeddings 批量向量化，返回向量顺序与输入一致。
	CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
	// Dimensions 返回当前模型的输出向量维度。
	// 维度在创建集合和校验写入时都要用到。
	Dimensions(ctx context.Context) (int, error)
}

// Model 是一个加载完成的 embedding 模型句柄，构造后不可变。
// 构造时通过一次探测调用确定输出维度，之后由模型缓存持有。
type Model struct {
	Name       string
	Dimensions int
}

type openAICompatibleClient struct {
	cfg    config.EmbeddingConfig
	cache  *modelcache.Cache
	client *http.Client
}

// NewClient creates a new embedding client backed by the shared model cache.
func NewClient(cfg config.EmbeddingConfig, cache *modelcache.Cache) Client {
	return &openAICompatibleClient{
		cfg:    cfg,
		cache:  cache,
		client: &http.Client{},
	}
}

type embeddingRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// acquireModel 通过模型缓存获取模型句柄；未命中时用一次探测调用加载模型并确定维度。
func (c *openAICompatibleClient) acquireModel(ctx context.Context) (*Model, error) {
	key := "embedding:" + c.cfg.Model
	handle, err := c.cache.Acquire(key, func() (interface{}, error) {
		log.Infof("[EmbeddingClient] 模型缓存未命中, 开始加载 embedding 模型: %s", c.cfg.Model)
		dims := c.cfg.Dimensions
		if dims <= 0 {
			// 配置未声明维度时，用一次探测调用读出模型的实际输出维度
			vectors, err := c.callAPI(ctx, []string{"dimension probe"})
			if err != nil {
				return nil, err
			}
			dims = len(vectors[0])
		}
		log.Infof("[EmbeddingClient] embedding 模型加载完成: %s, 维度: %d", c.cfg.Model, dims)
		return &Model{Name: c.cfg.Model, Dimensions: dims}, nil
	})
	if err != nil {
		return nil, err
	}
	return handle.(*Model), nil
}

// Dimensions 返回配置模型的输出维度。
func (c *openAICompatibleClient) Dimensions(ctx context.Context) (int, error) {
	m, err := c.acquireModel(ctx)
	if err != nil {
		return 0, err
	}
	return m.Dimensions, nil
}

// CreateEmbedding calls the OpenAI-compatible API to get the vector for a given text.
func (c *openAICompatibleClient) CreateEmbedding(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.CreateEmbeddings(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// CreateEmbeddings 批量调用 embedding API，并校验每个向量的维度与模型声明一致。
func (c *openAICompatibleClient) CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	model, err := c.acquireModel(ctx)
	if err != nil {
		return nil, err
	}

	log.Infof("[EmbeddingClient] 开始调用 Embedding API, model: %s, batch: %d", model.Name, len(texts))
	vectors, err := c.callAPI(ctx, texts)
	if err != nil {
		return nil, err
	}

	for i, v := range vectors {
		if len(v) != model.Dimensions {
			return nil, fmt.Errorf("embedding 维度异常: 第 %d 条向量维度 %d, 模型声明 %d", i, len(v), model.Dimensions)
		}
	}
	log.Infof("[EmbeddingClient] 成功获取 %d 个向量, 维度: %d", len(vectors), model.Dimensions)
	return vectors, nil
}

// callAPI 发起一次 OpenAI 兼容的 /embeddings 调用。
func (c *openAICompatibleClient) callAPI(ctx context.Context, texts []string) ([][]float32, error) {
	reqBody := embeddingRequest{
		Model:      c.cfg.Model,
		Input:      texts,
		Dimensions: c.cfg.Dimensions,
	}

	reqBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal embedding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.cfg.BaseURL+"/embeddings", bytes.NewReader(reqBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		log.Errorf("[EmbeddingClient] 调用 Embedding API 失败, error: %v", err)
		return nil, fmt.Errorf("failed to call embedding api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Errorf("[EmbeddingClient] Embedding API 返回非 200 状态码: %s", resp.Status)
		return nil, fmt.Errorf("embedding api returned non-200 status: %s", resp.Status)
	}

	var embeddingResp embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&embeddingResp); err != nil {
		log.Errorf("[EmbeddingClient] 解析 Embedding API 响应失败, error: %v", err)
		return nil, fmt.Errorf("failed to decode embedding response: %w", err)
	}

	if len(embeddingResp.Data) != len(texts) {
		log.Warnf("[EmbeddingClient] Embedding API 返回的向量数与输入不一致: %d != %d", len(embeddingResp.Data), len(texts))
		return nil, fmt.Errorf("embedding api returned %d vectors for %d inputs", len(embeddingResp.Data), len(texts))
	}

	vectors := make([][]float32, 0, len(embeddingResp.Data))
	for _, d := range embeddingResp.Data {
		if len(d.Embedding) == 0 {
			return nil, fmt.Errorf("received empty embedding from api")
		}
		vectors = append(vectors, d.Embedding)
	}
	return vectors, nil
}
