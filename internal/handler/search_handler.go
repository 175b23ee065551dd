package handler

import (
	"net/http"

	"docurag-go/internal/service"
	"docurag-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// SearchHandler 负责处理检索相关的 API 请求。
type SearchHandler struct {
	searchService service.SearchService
}

// NewSearchHandler 创建一个新的 SearchHandler 实例。
func NewSearchHandler(searchService service.SearchService) *SearchHandler {
	return &SearchHandler{searchService: searchService}
}

type searchRequest struct {
	Query          string `json:"query" binding:"required"`
	Limit          int    `json:"limit"`
	CollectionName string `json:"collection_name" binding:"required"`
}

// Search 处理检索与答案合成请求。
func (h *SearchHandler) Search(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("[SearchHandler] 检索请求参数无效: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求参数"})
		return
	}
	if req.Limit <= 0 {
		req.Limit = 10
	}
	log.Infof("[SearchHandler] 收到检索请求, query: '%s', limit: %d, collection: %s",
		req.Query, req.Limit, req.CollectionName)

	result, err := h.searchService.Search(c.Request.Context(), req.Query, req.Limit, req.CollectionName)
	if err != nil {
		log.Errorf("[SearchHandler] 检索失败, query: '%s', err: %v", req.Query, err)
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data": gin.H{
			"final_answer": result.FinalAnswer,
			"metadata":     result.Metadata,
		},
	})
}
