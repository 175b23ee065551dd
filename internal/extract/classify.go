// Package extract 实现了按文件类型分派的文档提取策略。
package extract

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// 提取阶段的错误分类。
var (
	// ErrUnsupportedFileType 表示定向提取路径不支持该文件类型。
	ErrUnsupportedFileType = errors.New("unsupported file type")
	// ErrExtraction 表示解析/识别后端执行失败。
	ErrExtraction = errors.New("extraction failure")
)

// Kind 是文档分类的确定结果，每份文档恰好落在一个变体上。
type Kind int

const (
	// KindSearchablePDF 表示内容流中含有可提取文本的 PDF，无需 OCR。
	KindSearchablePDF Kind = iota
	// KindScannedPDF 表示扫描件/纯图片 PDF，需要逐页栅格化后 OCR。
	KindScannedPDF
	// KindImage 表示单张图片文件，直接 OCR。
	KindImage
	// KindGeneric 表示其余所有文件类型，交给通用解析服务处理。
	KindGeneric
)

func (k Kind) String() string {
	switch k {
	case KindSearchablePDF:
		return "searchable_pdf"
	case KindScannedPDF:
		return "scanned_pdf"
	case KindImage:
		return "image"
	default:
		return "generic"
	}
}

// 定向提取路径接受的图片扩展名。
var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".tiff": true,
	".bmp":  true,
}

// AcceptedExtensions 返回定向提取路径接受的全部扩展名，用于错误提示。
func AcceptedExtensions() []string {
	exts := make([]string, 0, len(imageExtensions)+1)
	exts = append(exts, ".pdf")
	for ext := range imageExtensions {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// ClassifyDocument 把一份文档归入唯一的提取变体。
//
// PDF 的可检索性由首页文本探测决定；探测本身失败时按既定策略视为扫描件
// （宁可走 OCR 也不因首页损坏丢掉整份文档），而不是向上抛错。
func ClassifyDocument(fileName string, firstPageText string, probeErr error) Kind {
	ext := strings.ToLower(filepath.Ext(fileName))

	if imageExtensions[ext] {
		return KindImage
	}
	if ext != ".pdf" {
		return KindGeneric
	}
	if probeErr != nil {
		return KindScannedPDF
	}
	if strings.TrimSpace(firstPageText) == "" {
		return KindScannedPDF
	}
	return KindSearchablePDF
}

// unsupportedError 构造带有受支持扩展名列表的错误。
func unsupportedError(fileName string) error {
	return fmt.Errorf("%w: '%s', 支持的扩展名: %s",
		ErrUnsupportedFileType, filepath.Ext(fileName), strings.Join(AcceptedExtensions(), ", "))
}
