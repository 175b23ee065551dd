package ocr

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"docurag-go/internal/config"
	"docurag-go/pkg/log"
)

func TestMain(m *testing.M) {
	log.Init("error", "console", "")
	os.Exit(m.Run())
}

func TestLanguageKey(t *testing.T) {
	tests := []struct {
		languages []string
		want      string
	}{
		{[]string{"en"}, "en"},
		{[]string{"ch_sim", "en"}, "ch_sim,en"},
		{[]string{"en", "ch_sim"}, "ch_sim,en"},
		{[]string{"fr", "de", "en"}, "de,en,fr"},
		{nil, ""},
	}
	for _, tt := range tests {
		if got := LanguageKey(tt.languages); got != tt.want {
			t.Errorf("LanguageKey(%v) = %q, want %q", tt.languages, got, tt.want)
		}
	}
}

func TestLanguageKeyDoesNotMutateInput(t *testing.T) {
	langs := []string{"en", "ch_sim"}
	_ = LanguageKey(langs)
	if langs[0] != "en" || langs[1] != "ch_sim" {
		t.Errorf("输入切片不应被重排: %v", langs)
	}
}

func TestNewReaderLoadsModel(t *testing.T) {
	var gotLanguages []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models" {
			t.Errorf("意外的请求路径: %s", r.URL.Path)
		}
		var body struct {
			Languages []string `json:"languages"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		gotLanguages = body.Languages
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	reader, err := NewReader(context.Background(), config.OCRConfig{BaseURL: srv.URL}, []string{"en", "ch_sim"})
	if err != nil {
		t.Fatalf("NewReader 失败: %v", err)
	}
	if reader == nil {
		t.Fatal("应返回 Reader 句柄")
	}
	if len(gotLanguages) != 2 {
		t.Errorf("加载请求应携带语言列表: %v", gotLanguages)
	}
}

func TestNewReaderLoadFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unsupported language", http.StatusBadRequest)
	}))
	defer srv.Close()

	if _, err := NewReader(context.Background(), config.OCRConfig{BaseURL: srv.URL}, []string{"xx"}); err == nil {
		t.Fatal("模型加载失败应返回错误")
	}
}

func TestReadTextJoinsTokens(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/models":
			w.WriteHeader(http.StatusOK)
		case "/read":
			if got := r.URL.Query().Get("langs"); got != "en" {
				t.Errorf("识别请求的语言键不一致: %q", got)
			}
			_ = json.NewEncoder(w).Encode(map[string][]string{
				"results": {"Invoice", "No.", "2024-001"},
			})
		default:
			t.Errorf("意外的请求路径: %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	reader, err := NewReader(context.Background(), config.OCRConfig{BaseURL: srv.URL}, []string{"en"})
	if err != nil {
		t.Fatalf("NewReader 失败: %v", err)
	}

	text, err := reader.ReadText(context.Background(), []byte{0x89, 0x50, 0x4e, 0x47})
	if err != nil {
		t.Fatalf("ReadText 失败: %v", err)
	}
	if text != "Invoice No. 2024-001" {
		t.Errorf("识别 token 应按空格连接: %q", text)
	}
}

func TestReadTextServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/models" {
			w.WriteHeader(http.StatusOK)
			return
		}
		http.Error(w, "recognition failed", http.StatusInternalServerError)
	}))
	defer srv.Close()

	reader, err := NewReader(context.Background(), config.OCRConfig{BaseURL: srv.URL}, []string{"en"})
	if err != nil {
		t.Fatalf("NewReader 失败: %v", err)
	}
	if _, err := reader.ReadText(context.Background(), []byte("img")); err == nil {
		t.Fatal("识别失败应返回错误")
	}
}
