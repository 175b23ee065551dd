package unstructured

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"docurag-go/internal/config"
	"docurag-go/pkg/log"
)

func TestMain(m *testing.M) {
	log.Init("error", "console", "")
	os.Exit(m.Run())
}

func writeTempDoc(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "notes.docx")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestPartition(t *testing.T) {
	var gotStrategy, gotAPIKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/general/v0/general" {
			t.Errorf("意外的请求路径: %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("解析 multipart 失败: %v", err)
		}
		gotStrategy = r.FormValue("strategy")
		gotAPIKey = r.Header.Get("unstructured-api-key")
		if _, _, err := r.FormFile("files"); err != nil {
			t.Errorf("缺少 files 字段: %v", err)
		}

		_ = json.NewEncoder(w).Encode([]map[string]interface{}{
			{
				"type": "NarrativeText",
				"text": "第一段正文",
				"metadata": map[string]interface{}{
					"languages":     []string{"zh"},
					"filetype":      "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
					"last_modified": "2026-08-01T10:00:00",
					"page_number":   1,
					"coordinates": map[string]interface{}{
						"points": [][]float64{{1, 2}, {3, 4}},
					},
				},
			},
			{
				"type": "Title",
				"text": "结论",
				"metadata": map[string]interface{}{
					"page_number": 2,
				},
			},
		})
	}))
	defer srv.Close()

	client := NewClient(config.UnstructuredConfig{
		BaseURL: srv.URL, APIKey: "secret", Strategy: "hi_res",
	})

	path := writeTempDoc(t, "dummy")
	units, err := client.Partition(context.Background(), path, "notes.docx")
	if err != nil {
		t.Fatalf("Partition 失败: %v", err)
	}

	if gotStrategy != "hi_res" {
		t.Errorf("策略字段不一致: %q", gotStrategy)
	}
	if gotAPIKey != "secret" {
		t.Errorf("API key 头不一致: %q", gotAPIKey)
	}
	if len(units) != 2 {
		t.Fatalf("提取单元数不一致: %d", len(units))
	}

	first := units[0]
	if first.Text != "第一段正文" || first.UnitType != "NarrativeText" || first.Category != "NarrativeText" {
		t.Errorf("首个单元内容不一致: %+v", first)
	}
	if first.PageNumber != 1 || len(first.Languages) != 1 || first.Languages[0] != "zh" {
		t.Errorf("首个单元元数据不一致: %+v", first)
	}
	if len(first.Coordinates) != 2 {
		t.Errorf("坐标未透传: %+v", first.Coordinates)
	}
	if units[1].PageNumber != 2 || units[1].UnitType != "Title" {
		t.Errorf("第二个单元不一致: %+v", units[1])
	}
}

func TestNewClientInvalidStrategyFallsBack(t *testing.T) {
	var gotStrategy string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseMultipartForm(1 << 20)
		gotStrategy = r.FormValue("strategy")
		_ = json.NewEncoder(w).Encode([]interface{}{})
	}))
	defer srv.Close()

	client := NewClient(config.UnstructuredConfig{BaseURL: srv.URL, Strategy: "turbo"})
	path := writeTempDoc(t, "dummy")
	if _, err := client.Partition(context.Background(), path, "notes.docx"); err != nil {
		t.Fatalf("Partition 失败: %v", err)
	}
	if gotStrategy != "auto" {
		t.Errorf("非法策略应回退为 auto, got %q", gotStrategy)
	}
}

func TestPartitionServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unsupported format", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	client := NewClient(config.UnstructuredConfig{BaseURL: srv.URL, Strategy: "auto"})
	path := writeTempDoc(t, "dummy")
	if _, err := client.Partition(context.Background(), path, "notes.docx"); err == nil {
		t.Fatal("解析失败应返回错误")
	}
}

func TestPartitionMissingFile(t *testing.T) {
	client := NewClient(config.UnstructuredConfig{BaseURL: "http://127.0.0.1:0", Strategy: "auto"})
	if _, err := client.Partition(context.Background(), "/nonexistent/file.docx", "file.docx"); err == nil {
		t.Fatal("文件不存在应返回错误")
	}
}
