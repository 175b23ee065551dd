package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"docurag-go/internal/config"
	"docurag-go/pkg/log"
	"docurag-go/pkg/modelcache"
)

func TestMain(m *testing.M) {
	log.Init("error", "console", "")
	os.Exit(m.Run())
}

func embeddingServer(t *testing.T, dims int, calls *int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("意外的请求路径: %s", r.URL.Path)
		}
		if calls != nil {
			*calls++
		}
		var req struct {
			Input []string `json:"input"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)

		data := make([]map[string]interface{}, 0, len(req.Input))
		for range req.Input {
			vec := make([]float32, dims)
			data = append(data, map[string]interface{}{"embedding": vec})
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"data": data})
	}))
}

func TestCreateEmbeddingsBatch(t *testing.T) {
	srv := embeddingServer(t, 4, nil)
	defer srv.Close()

	client := NewClient(config.EmbeddingConfig{
		BaseURL: srv.URL, Model: "test-embed", Dimensions: 4,
	}, modelcache.New(5))

	vectors, err := client.CreateEmbeddings(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("CreateEmbeddings 失败: %v", err)
	}
	if len(vectors) != 3 {
		t.Fatalf("向量数应与输入一致: got %d", len(vectors))
	}
	for i, v := range vectors {
		if len(v) != 4 {
			t.Errorf("向量 %d 维度异常: %d", i, len(v))
		}
	}
}

func TestCreateEmbeddingsEmptyInput(t *testing.T) {
	client := NewClient(config.EmbeddingConfig{Model: "m", Dimensions: 4}, modelcache.New(5))
	vectors, err := client.CreateEmbeddings(context.Background(), nil)
	if err != nil {
		t.Fatalf("空输入不应报错: %v", err)
	}
	if vectors != nil {
		t.Errorf("空输入应返回 nil: %v", vectors)
	}
}

func TestDimensionsProbedWhenNotConfigured(t *testing.T) {
	calls := 0
	srv := embeddingServer(t, 8, &calls)
	defer srv.Close()

	client := NewClient(config.EmbeddingConfig{
		BaseURL: srv.URL, Model: "probe-embed",
	}, modelcache.New(5))

	dims, err := client.Dimensions(context.Background())
	if err != nil {
		t.Fatalf("Dimensions 失败: %v", err)
	}
	if dims != 8 {
		t.Errorf("探测到的维度不一致: got %d, want 8", dims)
	}
	if calls != 1 {
		t.Errorf("应发起一次探测调用, got %d", calls)
	}

	// 第二次读维度走缓存，不再探测
	if _, err := client.Dimensions(context.Background()); err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Errorf("缓存命中后不应再探测, calls=%d", calls)
	}
}

func TestCreateEmbeddingsServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewClient(config.EmbeddingConfig{
		BaseURL: srv.URL, Model: "m", Dimensions: 4,
	}, modelcache.New(5))

	if _, err := client.CreateEmbeddings(context.Background(), []string{"x"}); err == nil {
		t.Fatal("非 200 响应应返回错误")
	}
}

func TestModelLoadFailureClassified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model missing", http.StatusInternalServerError)
	}))
	defer srv.Close()

	// 未配置维度时构造模型需要探测，探测失败应归类为模型加载失败
	client := NewClient(config.EmbeddingConfig{
		BaseURL: srv.URL, Model: "missing",
	}, modelcache.New(5))

	_, err := client.Dimensions(context.Background())
	if !errors.Is(err, modelcache.ErrModelLoad) {
		t.Fatalf("应归类为 ErrModelLoad: %v", err)
	}
}

func TestCreateEmbeddingsCountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []map[string]interface{}{{"embedding": []float32{0, 0, 0, 0}}},
		})
	}))
	defer srv.Close()

	client := NewClient(config.EmbeddingConfig{
		BaseURL: srv.URL, Model: "m", Dimensions: 4,
	}, modelcache.New(5))

	if _, err := client.CreateEmbeddings(context.Background(), []string{"a", "b"}); err == nil {
		t.Fatal("返回向量数与输入不一致时应报错")
	}
}
