// Package unstructured 提供了一个与通用文档解析服务 (unstructured partition API) 交互的客户端。
//
// 解析服务负责把任意格式的文档拆成带元数据的逻辑元素（段落、表格、标题等），
// OCR 策略 (auto/fast/hi_res/ocr_only) 由调用方通过配置指定。
package unstructured

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"docurag-go/internal/config"
	"docurag-go/internal/model"
	"docurag-go/pkg/log"
)

// 合法的 OCR 策略取值。
var validStrategies = map[string]bool{
	"auto":     true,
	"fast":     true,
	"hi_res":   true,
	"ocr_only": true,
}

// Client 是解析服务的客户端。
type Client struct {
	baseURL  string
	apiKey   string
	strategy string
	client   *http.Client
}

// NewClient 创建一个新的解析服务客户端实例。非法策略回退为 auto。
func NewClient(cfg config.UnstructuredConfig) *Client {
	strategy := cfg.Strategy
	if !validStrategies[strategy] {
		log.Warnf("[UnstructuredClient] 未知的 OCR 策略 '%s', 回退为 auto", strategy)
		strategy = "auto"
	}
	return &Client{
		baseURL:  cfg.BaseURL,
		apiKey:   cfg.APIKey,
		strategy: strategy,
		client:   &http.Client{},
	}
}

// element 对应解析服务返回的单个逻辑元素。
type element struct {
	Type     string `json:"type"`
	Text     string `json:"text"`
	Metadata struct {
		Languages    []string `json:"languages"`
		Filetype     string   `json:"filetype"`
		LastModified string   `json:"last_modified"`
		PageNumber   int      `json:"page_number"`
		Coordinates  struct {
			Points [][]float64 `json:"points"`
		} `json:"coordinates"`
	} `json:"metadata"`
}

// Partition 将指定文件提交给解析服务，返回每个逻辑元素对应的一个 ExtractionUnit。
// 元素的语言、文件类型、最后修改时间和页码均由解析服务标注。
func (c *Client) Partition(ctx context.Context, filePath, fileName string) ([]model.ExtractionUnit, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("打开待解析文件失败: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("files", filepath.Base(fileName))
	if err != nil {
		return nil, fmt.Errorf("构造 multipart 请求失败: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, fmt.Errorf("读取待解析文件失败: %w", err)
	}
	if err := writer.WriteField("strategy", c.strategy); err != nil {
		return nil, fmt.Errorf("构造 multipart 请求失败: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("构造 multipart 请求失败: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/general/v0/general", &buf)
	if err != nil {
		return nil, fmt.Errorf("创建解析请求失败: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("unstructured-api-key", c.apiKey)
	}

	log.Infof("[UnstructuredClient] 提交文档解析, file: %s, strategy: %s", fileName, c.strategy)
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("调用解析服务失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("解析服务返回错误 [%d]: %s", resp.StatusCode, string(body))
	}

	var elements []element
	if err := json.NewDecoder(resp.Body).Decode(&elements); err != nil {
		return nil, fmt.Errorf("解析服务响应解码失败: %w", err)
	}

	units := make([]model.ExtractionUnit, 0, len(elements))
	for _, el := range elements {
		units = append(units, model.ExtractionUnit{
			Text:         el.Text,
			UnitType:     el.Type,
			Category:     el.Type,
			PageNumber:   el.Metadata.PageNumber,
			Languages:    el.Metadata.Languages,
			Filetype:     el.Metadata.Filetype,
			LastModified: el.Metadata.LastModified,
			Coordinates:  el.Metadata.Coordinates.Points,
		})
	}
	log.Infof("[UnstructuredClient] 文档解析完成, file: %s, 共 %d 个元素", fileName, len(units))
	return units, nil
}
