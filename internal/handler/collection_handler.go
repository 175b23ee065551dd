package handler

import (
	"net/http"

	"docurag-go/internal/service"
	"docurag-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// CollectionHandler 负责处理向量集合管理相关的 API 请求。
type CollectionHandler struct {
	collectionService service.CollectionService
}

// NewCollectionHandler 创建一个新的 CollectionHandler 实例。
func NewCollectionHandler(collectionService service.CollectionService) *CollectionHandler {
	return &CollectionHandler{collectionService: collectionService}
}

type collectionRequest struct {
	CollectionName string `json:"collection_name" binding:"required"`
}

// Create 处理创建集合的请求。
func (h *CollectionHandler) Create(c *gin.Context) {
	var req collectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "缺少 collection_name 参数"})
		return
	}

	if err := h.collectionService.Create(c.Request.Context(), req.CollectionName); err != nil {
		log.Errorf("[CollectionHandler] 创建集合失败, name: %s, err: %v", req.CollectionName, err)
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "集合创建成功",
		"data":    gin.H{"collection_name": req.CollectionName},
	})
}

// Delete 处理删除集合的请求。
func (h *CollectionHandler) Delete(c *gin.Context) {
	var req collectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "缺少 collection_name 参数"})
		return
	}

	if err := h.collectionService.Delete(c.Request.Context(), req.CollectionName); err != nil {
		log.Errorf("[CollectionHandler] 删除集合失败, name: %s, err: %v", req.CollectionName, err)
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "集合删除成功",
		"data":    gin.H{"collection_name": req.CollectionName},
	})
}

// Details 处理获取单个集合诊断信息的请求。
func (h *CollectionHandler) Details(c *gin.Context) {
	var req collectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "缺少 collection_name 参数"})
		return
	}

	details, err := h.collectionService.Details(c.Request.Context(), req.CollectionName)
	if err != nil {
		log.Errorf("[CollectionHandler] 获取集合详情失败, name: %s, err: %v", req.CollectionName, err)
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "获取集合详情成功",
		"data":    details,
	})
}

// AllDetails 处理获取全部集合诊断信息的请求。
func (h *CollectionHandler) AllDetails(c *gin.Context) {
	details, err := h.collectionService.AllDetails(c.Request.Context())
	if err != nil {
		log.Errorf("[CollectionHandler] 获取集合列表失败, err: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "获取集合列表成功",
		"data":    details,
	})
}
