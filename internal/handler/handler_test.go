package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"docurag-go/internal/extract"
	"docurag-go/internal/model"
	"docurag-go/internal/repository"
	"docurag-go/internal/service"
	"docurag-go/pkg/log"

	"github.com/gin-gonic/gin"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	log.Init("error", "console", "")
	os.Exit(m.Run())
}

func TestStatusForError(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: '.zip'", extract.ErrUnsupportedFileType), http.StatusBadRequest},
		{fmt.Errorf("%w: docs", repository.ErrCollectionNotFound), http.StatusNotFound},
		{fmt.Errorf("%w: docs", repository.ErrCollectionAlreadyExists), http.StatusConflict},
		{fmt.Errorf("%w: 1/3 条写入失败", repository.ErrUpsertIncomplete), http.StatusInternalServerError},
		{fmt.Errorf("%w: parse failed", extract.ErrExtraction), http.StatusInternalServerError},
		{errors.New("anything else"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusForError(tt.err); got != tt.want {
			t.Errorf("statusForError(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

// fakeSearchService 按设定返回结果或错误。
type fakeSearchService struct {
	result *model.SearchResult
	err    error
}

func (f *fakeSearchService) Search(ctx context.Context, query string, limit int, collection string) (*model.SearchResult, error) {
	return f.result, f.err
}

func TestSearchEndpoint(t *testing.T) {
	svc := &fakeSearchService{result: &model.SearchResult{
		FinalAnswer: "the answer",
		Metadata: []map[string]interface{}{
			{"text": "ctx", "page_number": 1},
		},
	}}

	r := gin.New()
	r.POST("/search", NewSearchHandler(svc).Search)

	body, _ := json.Marshal(map[string]interface{}{
		"query": "what", "limit": 5, "collection_name": "docs",
	})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/search", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("状态码不一致: %d, body: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Data struct {
			FinalAnswer string                   `json:"final_answer"`
			Metadata    []map[string]interface{} `json:"metadata"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("响应解析失败: %v", err)
	}
	if resp.Data.FinalAnswer != "the answer" || len(resp.Data.Metadata) != 1 {
		t.Errorf("响应内容不一致: %+v", resp.Data)
	}
}

func TestSearchEndpointMissingQuery(t *testing.T) {
	r := gin.New()
	r.POST("/search", NewSearchHandler(&fakeSearchService{}).Search)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/search", strings.NewReader(`{"collection_name":"docs"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("缺少 query 应返回 400, got %d", w.Code)
	}
}

func TestSearchEndpointCollectionMissing(t *testing.T) {
	svc := &fakeSearchService{err: fmt.Errorf("%w: ghost", repository.ErrCollectionNotFound)}
	r := gin.New()
	r.POST("/search", NewSearchHandler(svc).Search)

	body := `{"query":"q","collection_name":"ghost"}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/search", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("集合不存在应返回 404, got %d", w.Code)
	}
}

// fakeDocumentService 按设定返回分块或错误。
type fakeDocumentService struct {
	chunks []model.Chunk
	units  []model.ExtractionUnit
	err    error
}

func (f *fakeDocumentService) ProcessDocument(ctx context.Context, data []byte, fileName, collection string) ([]model.Chunk, error) {
	return f.chunks, f.err
}

func (f *fakeDocumentService) ProcessInvoice(ctx context.Context, data []byte, fileName string) ([]model.ExtractionUnit, error) {
	return f.units, f.err
}

func (f *fakeDocumentService) ListRecords(collection string) ([]*model.DocumentRecord, error) {
	return nil, nil
}

// fakeAnswerService 返回固定的合成/摘要文本。
type fakeAnswerService struct {
	answer  string
	summary string
}

func (f *fakeAnswerService) Synthesize(ctx context.Context, hits []model.SearchHit, query string) string {
	return f.answer
}

func (f *fakeAnswerService) SummarizeInvoice(ctx context.Context, units []model.ExtractionUnit) string {
	return f.summary
}

func multipartUpload(t *testing.T, collection, fileName string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	if collection != "" {
		_ = writer.WriteField("collection_name", collection)
	}
	part, err := writer.CreateFormFile("file", fileName)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = part.Write([]byte("file content"))
	_ = writer.Close()
	return &buf, writer.FormDataContentType()
}

func TestProcessDocumentEndpoint(t *testing.T) {
	svc := &fakeDocumentService{chunks: []model.Chunk{{Text: "a"}, {Text: "b"}}}
	r := gin.New()
	r.POST("/process", NewDocumentHandler(svc, &fakeAnswerService{}).ProcessDocument)

	body, contentType := multipartUpload(t, "docs", "report.pdf")
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/process", body)
	req.Header.Set("Content-Type", contentType)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("状态码不一致: %d, body: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Data struct {
			ChunkCount int `json:"chunk_count"`
		} `json:"data"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Data.ChunkCount != 2 {
		t.Errorf("分块数不一致: %d", resp.Data.ChunkCount)
	}
}

func TestProcessDocumentEndpointUnsupportedType(t *testing.T) {
	svc := &fakeDocumentService{err: fmt.Errorf("%w: '.zip'", extract.ErrUnsupportedFileType)}
	r := gin.New()
	r.POST("/process", NewDocumentHandler(svc, &fakeAnswerService{}).ProcessDocument)

	body, contentType := multipartUpload(t, "docs", "archive.zip")
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/process", body)
	req.Header.Set("Content-Type", contentType)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("不支持的类型应返回 400, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "could not process document") {
		t.Errorf("错误信息应包含失败原因前缀: %s", w.Body.String())
	}
}

func TestProcessDocumentEndpointMissingCollection(t *testing.T) {
	r := gin.New()
	r.POST("/process", NewDocumentHandler(&fakeDocumentService{}, &fakeAnswerService{}).ProcessDocument)

	body, contentType := multipartUpload(t, "", "report.pdf")
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/process", body)
	req.Header.Set("Content-Type", contentType)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("缺少集合名应返回 400, got %d", w.Code)
	}
}

func TestProcessDocumentEndpointMissingFile(t *testing.T) {
	r := gin.New()
	r.POST("/process", NewDocumentHandler(&fakeDocumentService{}, &fakeAnswerService{}).ProcessDocument)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	_ = writer.WriteField("collection_name", "docs")
	_ = writer.Close()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/process", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("缺少文件应返回 400, got %d", w.Code)
	}
}

func TestProcessInvoiceEndpoint(t *testing.T) {
	svc := &fakeDocumentService{units: []model.ExtractionUnit{
		{Text: "Invoice #123", PageNumber: 1, UnitType: "page"},
		{Text: "Total: $50", PageNumber: 2, UnitType: "page"},
	}}
	r := gin.New()
	r.POST("/process-invoice", NewDocumentHandler(svc, &fakeAnswerService{summary: "INVOICE_SUMMARY"}).ProcessInvoice)

	body, contentType := multipartUpload(t, "", "invoice.pdf")
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/process-invoice", body)
	req.Header.Set("Content-Type", contentType)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("状态码不一致: %d, body: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Data struct {
			FileName string                 `json:"file_name"`
			Units    []model.ExtractionUnit `json:"units"`
			Summary  string                 `json:"summary"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("响应解析失败: %v", err)
	}
	if resp.Data.FileName != "invoice.pdf" {
		t.Errorf("文件名不一致: %q", resp.Data.FileName)
	}
	if len(resp.Data.Units) != 2 {
		t.Errorf("提取单元数不一致: %d", len(resp.Data.Units))
	}
	if resp.Data.Summary != "INVOICE_SUMMARY" {
		t.Errorf("摘要字段不一致: %q", resp.Data.Summary)
	}
}

// fakeCollectionService 按设定返回错误。
type fakeCollectionService struct {
	err     error
	details *model.CollectionDetails
}

func (f *fakeCollectionService) Create(ctx context.Context, name string) error { return f.err }
func (f *fakeCollectionService) Delete(ctx context.Context, name string) error { return f.err }
func (f *fakeCollectionService) Details(ctx context.Context, name string) (*model.CollectionDetails, error) {
	return f.details, f.err
}
func (f *fakeCollectionService) AllDetails(ctx context.Context) ([]model.CollectionDetails, error) {
	return nil, f.err
}

func TestCollectionCreateConflict(t *testing.T) {
	svc := &fakeCollectionService{err: fmt.Errorf("%w: docs", repository.ErrCollectionAlreadyExists)}
	r := gin.New()
	r.POST("/create", NewCollectionHandler(svc).Create)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/create", strings.NewReader(`{"collection_name":"docs"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusConflict {
		t.Errorf("重复创建应返回 409, got %d", w.Code)
	}
}

func TestCollectionDeleteNotFound(t *testing.T) {
	svc := &fakeCollectionService{err: fmt.Errorf("%w: ghost", repository.ErrCollectionNotFound)}
	r := gin.New()
	r.POST("/delete", NewCollectionHandler(svc).Delete)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/delete", strings.NewReader(`{"collection_name":"ghost"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("删除不存在的集合应返回 404, got %d", w.Code)
	}
}

var _ service.SearchService = (*fakeSearchService)(nil)
var _ service.DocumentService = (*fakeDocumentService)(nil)
var _ service.CollectionService = (*fakeCollectionService)(nil)
var _ service.AnswerService = (*fakeAnswerService)(nil)
