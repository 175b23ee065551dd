package extract

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"docurag-go/internal/config"
	"docurag-go/internal/model"
	"docurag-go/pkg/log"
	"docurag-go/pkg/modelcache"
	"docurag-go/pkg/ocr"
	"docurag-go/pkg/unstructured"

	"github.com/gen2brain/go-fitz"
)

// Selector 按文件类型选择提取策略，产出有序的 ExtractionUnit 序列。
// OCR 识别会话通过共享的模型缓存按语言能力键获取。
type Selector struct {
	ocrCfg             config.OCRConfig
	cache              *modelcache.Cache
	unstructuredClient *unstructured.Client
}

// NewSelector 创建一个新的 Selector 实例。
func NewSelector(ocrCfg config.OCRConfig, cache *modelcache.Cache, unstructuredClient *unstructured.Client) *Selector {
	return &Selector{
		ocrCfg:             ocrCfg,
		cache:              cache,
		unstructuredClient: unstructuredClient,
	}
}

// ProcessGeneric 把任意格式的文档交给通用解析服务，每个逻辑元素产出一个单元。
func (s *Selector) ProcessGeneric(ctx context.Context, filePath, fileName string) ([]model.ExtractionUnit, error) {
	units, err := s.unstructuredClient.Partition(ctx, filePath, fileName)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtraction, err)
	}
	return units, nil
}

// ProcessTargeted 执行面向 PDF 与图片的定向提取路径（票据处理使用）。
// 其余文件类型返回 ErrUnsupportedFileType。
func (s *Selector) ProcessTargeted(ctx context.Context, filePath, fileName string) ([]model.ExtractionUnit, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	switch {
	case ext == ".pdf":
		return s.processPDF(ctx, filePath, fileName)
	case imageExtensions[ext]:
		return s.processImage(ctx, filePath, fileName)
	default:
		return nil, unsupportedError(fileName)
	}
}

// processPDF 先探测首页文本决定可检索性，再走对应的提取分支。
func (s *Selector) processPDF(ctx context.Context, filePath, fileName string) ([]model.ExtractionUnit, error) {
	doc, err := fitz.New(filePath)
	if err != nil {
		// 文档本身打不开时两条分支都无从执行
		return nil, fmt.Errorf("%w: 打开 PDF 失败: %v", ErrExtraction, err)
	}
	defer doc.Close()

	firstPageText, probeErr := doc.Text(0)
	kind := ClassifyDocument(fileName, firstPageText, probeErr)
	if probeErr != nil {
		log.Warnf("[Selector] PDF 首页文本探测失败, 按扫描件处理, file: %s, err: %v", fileName, probeErr)
	}
	log.Infof("[Selector] PDF 分类结果: %s, file: %s, 共 %d 页", kind, fileName, doc.NumPage())

	switch kind {
	case KindSearchablePDF:
		return s.extractSearchablePDF(doc, filePath, fileName)
	default:
		return s.extractScannedPDF(ctx, doc, filePath, fileName)
	}
}

// extractSearchablePDF 逐页直接提取文本（快路径，不触发 OCR）。
func (s *Selector) extractSearchablePDF(doc *fitz.Document, filePath, fileName string) ([]model.ExtractionUnit, error) {
	lastModified := fileLastModified(filePath)
	units := make([]model.ExtractionUnit, 0, doc.NumPage())
	for page := 0; page < doc.NumPage(); page++ {
		text, err := doc.Text(page)
		if err != nil {
			return nil, fmt.Errorf("%w: 提取第 %d 页文本失败: %v", ErrExtraction, page+1, err)
		}
		units = append(units, model.ExtractionUnit{
			Text:         text,
			UnitType:     "page",
			PageNumber:   page + 1,
			Languages:    s.ocrCfg.Languages,
			Filetype:     "application/pdf",
			LastModified: lastModified,
		})
	}
	log.Infof("[Selector] 可检索 PDF 提取完成, file: %s, 共 %d 页", fileName, len(units))
	return units, nil
}

// extractScannedPDF 把每一页栅格化成图片后逐页 OCR，每页识别结果拼成一条文本。
func (s *Selector) extractScannedPDF(ctx context.Context, doc *fitz.Document, filePath, fileName string) ([]model.ExtractionUnit, error) {
	reader, err := s.acquireReader(ctx)
	if err != nil {
		return nil, err
	}

	lastModified := fileLastModified(filePath)
	units := make([]model.ExtractionUnit, 0, doc.NumPage())
	for page := 0; page < doc.NumPage(); page++ {
		img, err := doc.Image(page)
		if err != nil {
			return nil, fmt.Errorf("%w: 栅格化第 %d 页失败: %v", ErrExtraction, page+1, err)
		}

		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("%w: 编码第 %d 页图像失败: %v", ErrExtraction, page+1, err)
		}

		text, err := reader.ReadText(ctx, buf.Bytes())
		if err != nil {
			return nil, fmt.Errorf("%w: 第 %d 页 OCR 失败: %v", ErrExtraction, page+1, err)
		}
		units = append(units, model.ExtractionUnit{
			Text:         text,
			UnitType:     "page",
			PageNumber:   page + 1,
			Languages:    s.ocrCfg.Languages,
			Filetype:     "application/pdf",
			LastModified: lastModified,
		})
	}
	log.Infof("[Selector] 扫描件 PDF OCR 完成, file: %s, 共 %d 页", fileName, len(units))
	return units, nil
}

// processImage 对单张图片执行 OCR，产出一个页码为 1 的单元。
func (s *Selector) processImage(ctx context.Context, filePath, fileName string) ([]model.ExtractionUnit, error) {
	reader, err := s.acquireReader(ctx)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("%w: 读取图片失败: %v", ErrExtraction, err)
	}

	text, err := reader.ReadText(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("%w: 图片 OCR 失败: %v", ErrExtraction, err)
	}

	log.Infof("[Selector] 图片 OCR 完成, file: %s, 文本长度: %d", fileName, len(text))
	return []model.ExtractionUnit{{
		Text:         text,
		UnitType:     "image",
		PageNumber:   1,
		Languages:    s.ocrCfg.Languages,
		Filetype:     mimeTypeFor(fileName),
		LastModified: fileLastModified(filePath),
	}}, nil
}

// acquireReader 通过模型缓存获取当前语言集合对应的 OCR 识别会话。
func (s *Selector) acquireReader(ctx context.Context) (*ocr.Reader, error) {
	key := "ocr:" + ocr.LanguageKey(s.ocrCfg.Languages)
	handle, err := s.cache.Acquire(key, func() (interface{}, error) {
		return ocr.NewReader(ctx, s.ocrCfg, s.ocrCfg.Languages)
	})
	if err != nil {
		return nil, err
	}
	return handle.(*ocr.Reader), nil
}

func fileLastModified(filePath string) string {
	info, err := os.Stat(filePath)
	if err != nil {
		return ""
	}
	return info.ModTime().UTC().Format(time.RFC3339)
}

func mimeTypeFor(fileName string) string {
	mimeType := mime.TypeByExtension(strings.ToLower(filepath.Ext(fileName)))
	if mimeType == "" {
		return "application/octet-stream"
	}
	return mimeType
}
