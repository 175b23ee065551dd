// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"docurag-go/internal/extract"
	"docurag-go/internal/repository"
	"docurag-go/internal/service"
	"docurag-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// DocumentHandler 负责处理文档摄取相关的 API 请求。
type DocumentHandler struct {
	docService    service.DocumentService
	answerService service.AnswerService
}

// NewDocumentHandler 创建一个新的 DocumentHandler 实例。
func NewDocumentHandler(docService service.DocumentService, answerService service.AnswerService) *DocumentHandler {
	return &DocumentHandler{
		docService:    docService,
		answerService: answerService,
	}
}

// ProcessDocument 处理通用文档摄取请求: multipart 上传 + 目标集合名。
func (h *DocumentHandler) ProcessDocument(c *gin.Context) {
	collection := c.PostForm("collection_name")
	if collection == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "缺少 collection_name 参数"})
		return
	}

	data, fileName, ok := readUploadedFile(c)
	if !ok {
		return
	}
	log.Infof("[DocumentHandler] 收到文档摄取请求, file: %s, collection: %s", fileName, collection)

	chunks, err := h.docService.ProcessDocument(c.Request.Context(), data, fileName, collection)
	if err != nil {
		log.Errorf("[DocumentHandler] 文档摄取失败, file: %s, err: %v", fileName, err)
		status := statusForError(err)
		c.JSON(status, gin.H{"error": fmt.Sprintf("could not process document: %v", err)})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "文档摄取成功",
		"data": gin.H{
			"file_name":       fileName,
			"collection_name": collection,
			"chunk_count":     len(chunks),
		},
	})
}

// ProcessInvoice 处理票据定向提取请求，只返回提取单元，不写入集合。
func (h *DocumentHandler) ProcessInvoice(c *gin.Context) {
	data, fileName, ok := readUploadedFile(c)
	if !ok {
		return
	}
	log.Infof("[DocumentHandler] 收到票据处理请求, file: %s", fileName)

	units, err := h.docService.ProcessInvoice(c.Request.Context(), data, fileName)
	if err != nil {
		log.Errorf("[DocumentHandler] 票据处理失败, file: %s, err: %v", fileName, err)
		status := statusForError(err)
		c.JSON(status, gin.H{"error": fmt.Sprintf("could not process document: %v", err)})
		return
	}

	// 摘要失败只降级该字段，提取单元照常返回
	summary := h.answerService.SummarizeInvoice(c.Request.Context(), units)

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "票据处理成功",
		"data": gin.H{
			"file_name": fileName,
			"units":     units,
			"summary":   summary,
		},
	})
}

// ListRecords 处理获取摄取登记记录的请求。
func (h *DocumentHandler) ListRecords(c *gin.Context) {
	collection := c.Query("collection_name")

	records, err := h.docService.ListRecords(collection)
	if err != nil {
		log.Errorf("[DocumentHandler] 获取摄取记录失败, err: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "获取摄取记录失败"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "获取摄取记录成功",
		"data":    records,
	})
}

// readUploadedFile 从 multipart 表单中读取上传文件的内容和文件名。
// 失败时直接写出响应并返回 ok=false。
func readUploadedFile(c *gin.Context) (data []byte, fileName string, ok bool) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "缺少上传文件"})
		return nil, "", false
	}

	f, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "读取上传文件失败"})
		return nil, "", false
	}
	defer f.Close()

	data, err = io.ReadAll(f)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "读取上传文件失败"})
		return nil, "", false
	}
	return data, fileHeader.Filename, true
}

// statusForError 把领域错误映射为 HTTP 状态码。
func statusForError(err error) int {
	switch {
	case errors.Is(err, extract.ErrUnsupportedFileType):
		return http.StatusBadRequest
	case errors.Is(err, repository.ErrCollectionNotFound):
		return http.StatusNotFound
	case errors.Is(err, repository.ErrCollectionAlreadyExists):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
