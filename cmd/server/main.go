// Package main 是应用程序的入口点。
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"docurag-go/internal/config"
	"docurag-go/internal/extract"
	"docurag-go/internal/handler"
	"docurag-go/internal/middleware"
	"docurag-go/internal/model"
	"docurag-go/internal/repository"
	"docurag-go/internal/service"
	"docurag-go/pkg/database"
	"docurag-go/pkg/embedding"
	"docurag-go/pkg/es"
	"docurag-go/pkg/kafka"
	"docurag-go/pkg/llm"
	"docurag-go/pkg/log"
	"docurag-go/pkg/modelcache"
	"docurag-go/pkg/storage"
	"docurag-go/pkg/unstructured"

	"github.com/gin-gonic/gin"
)

func main() {
	// 1. 初始化配置
	config.Init("./configs/config.yaml")
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync() // 确保在程序退出时刷新所有缓冲的日志条目
	log.Info("日志记录器初始化成功")

	// 3. 初始化数据库、对象存储与向量存储
	database.InitMySQL(cfg.Database.MySQL.DSN)
	if err := database.DB.AutoMigrate(&model.DocumentRecord{}); err != nil {
		log.Fatalf("摄取记录表迁移失败: %v", err)
	}
	database.InitRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)
	storage.InitMinIO(cfg.MinIO)
	if err := es.InitES(cfg.Elasticsearch); err != nil {
		log.Errorf("es 初始化失败 %s", err)
		return
	}
	kafka.InitProducer(cfg.Kafka)

	// 4. 初始化模型缓存与外部服务客户端
	cache := modelcache.New(cfg.ModelCache.Capacity)
	embeddingClient := embedding.NewClient(cfg.Embedding, cache)
	llmClient := llm.NewClient(cfg.LLM)
	unstructuredClient := unstructured.NewClient(cfg.Unstructured)
	selector := extract.NewSelector(cfg.OCR, cache, unstructuredClient)

	// 5. 初始化 Repository
	vectorRepo := repository.NewVectorRepository(es.ESClient, embeddingClient)
	recordRepo := repository.NewDocumentRecordRepository(database.DB)

	// 6. 初始化 Service (依赖注入)
	answerService := service.NewAnswerService(llmClient)
	answerTTL := time.Duration(cfg.Database.Redis.AnswerTTLSecs) * time.Second
	searchService := service.NewSearchService(vectorRepo, answerService, database.RDB, answerTTL)
	documentService := service.NewDocumentService(selector, vectorRepo, recordRepo, cfg.MinIO, cfg.Chunking)
	collectionService := service.NewCollectionService(vectorRepo, recordRepo, database.RDB)

	// 7. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New() // 使用 New() 创建一个不带默认中间件的引擎
	// 添加我们自定义的日志中间件和 Gin 的 Recovery 中间件
	r.Use(middleware.RequestLogger(), gin.Recovery())

	// 8. 注册路由
	apiV1 := r.Group("/api/v1")
	{
		documents := apiV1.Group("/documents")
		{
			docHandler := handler.NewDocumentHandler(documentService, answerService)
			documents.POST("/process", docHandler.ProcessDocument)
			documents.POST("/process-invoice", docHandler.ProcessInvoice)
			documents.GET("", docHandler.ListRecords)
			documents.POST("/search", handler.NewSearchHandler(searchService).Search)
		}

		collections := apiV1.Group("/collections")
		{
			collHandler := handler.NewCollectionHandler(collectionService)
			collections.POST("/create", collHandler.Create)
			collections.POST("/delete", collHandler.Delete)
			collections.POST("/details", collHandler.Details)
			collections.GET("/details", collHandler.AllDetails)
		}
	}

	// 9. 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	// 等待中断信号以实现优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	// 设置一个5秒的超时上下文
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("HTTP 服务器关闭失败: %v", err)
	}
	log.Info("服务已优雅关闭")
}
