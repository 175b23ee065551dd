// Package ocr 提供了一个与 OCR 识别服务交互的客户端。
//
// 服务端按语言集合加载识别权重，加载是昂贵操作，因此 Reader 句柄由模型缓存
// 按语言能力键持有，构造后不可变。
package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"docurag-go/internal/config"
	"docurag-go/pkg/log"
)

// Reader 是一个已在服务端加载完成的 OCR 识别会话，绑定一组语言。
type Reader struct {
	baseURL   string
	languages []string
	client    *http.Client
}

// LanguageKey 把语言列表规范化为与顺序无关的能力键（排序后逗号连接）。
func LanguageKey(languages []string) string {
	sorted := make([]string, len(languages))
	copy(sorted, languages)
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}

// NewReader 请求服务端为给定语言集合加载识别模型，并返回绑定该集合的 Reader。
func NewReader(ctx context.Context, cfg config.OCRConfig, languages []string) (*Reader, error) {
	reqBody, err := json.Marshal(map[string]interface{}{"languages": languages})
	if err != nil {
		return nil, fmt.Errorf("序列化 OCR 加载请求失败: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", cfg.BaseURL+"/models", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("创建 OCR 加载请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("调用 OCR 服务失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("OCR 模型加载返回错误 [%d]: %s", resp.StatusCode, string(body))
	}

	log.Infof("[OCRClient] 识别模型加载完成, languages: %s", LanguageKey(languages))
	return &Reader{baseURL: cfg.BaseURL, languages: languages, client: client}, nil
}

type readResponse struct {
	Results []string `json:"results"`
}

// ReadText 对单张图片执行识别，返回按空格连接的识别 token 文本。
func (r *Reader) ReadText(ctx context.Context, image []byte) (string, error) {
	url := fmt.Sprintf("%s/read?langs=%s", r.baseURL, LanguageKey(r.languages))
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(image))
	if err != nil {
		return "", fmt.Errorf("创建 OCR 识别请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("调用 OCR 识别失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("OCR 识别返回错误 [%d]: %s", resp.StatusCode, string(body))
	}

	var rr readResponse
	if err := json.NewDecoder(resp.Body).Decode(&rr); err != nil {
		return "", fmt.Errorf("解析 OCR 响应失败: %w", err)
	}

	return strings.Join(rr.Results, " "), nil
}
