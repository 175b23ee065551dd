// Package service 提供了文档摄取相关的业务逻辑。
package service

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"docurag-go/internal/chunker"
	"docurag-go/internal/config"
	"docurag-go/internal/extract"
	"docurag-go/internal/model"
	"docurag-go/internal/repository"
	"docurag-go/pkg/events"
	"docurag-go/pkg/kafka"
	"docurag-go/pkg/log"
	"docurag-go/pkg/storage"
)

// DocumentService 定义了文档摄取的端到端操作。
type DocumentService interface {
	// ProcessDocument 执行通用摄取流程并把分块写入指定集合。
	// 目标集合必须已存在，摄取不会隐式创建集合。
	ProcessDocument(ctx context.Context, data []byte, fileName, collection string) ([]model.Chunk, error)
	// ProcessInvoice 执行面向 PDF/图片的定向提取路径，只返回提取单元，不写入集合。
	ProcessInvoice(ctx context.Context, data []byte, fileName string) ([]model.ExtractionUnit, error)
	// ListRecords 返回摄取登记记录；collection 为空时返回全部。
	ListRecords(collection string) ([]*model.DocumentRecord, error)
}

type documentService struct {
	selector    *extract.Selector
	vectorRepo  repository.VectorRepository
	recordRepo  repository.DocumentRecordRepository
	minioCfg    config.MinIOConfig
	chunkingCfg config.ChunkingConfig
}

// NewDocumentService 创建一个新的 DocumentService 实例。
func NewDocumentService(
	selector *extract.Selector,
	vectorRepo repository.VectorRepository,
	recordRepo repository.DocumentRecordRepository,
	minioCfg config.MinIOConfig,
	chunkingCfg config.ChunkingConfig,
) DocumentService {
	return &documentService{
		selector:    selector,
		vectorRepo:  vectorRepo,
		recordRepo:  recordRepo,
		minioCfg:    minioCfg,
		chunkingCfg: chunkingCfg,
	}
}

// ProcessDocument 是通用摄取的主流程：落盘 → 提取 → 分块 → 写入集合。
// 临时文件在任何退出路径上都保证被删除。
func (s *documentService) ProcessDocument(ctx context.Context, data []byte, fileName, collection string) ([]model.Chunk, error) {
	log.Infof("[DocumentService] 开始摄取文档, file: %s, collection: %s, size: %d", fileName, collection, len(data))

	// 1. 目标集合必须已存在
	exists, err := s.vectorRepo.Exists(ctx, collection)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", repository.ErrCollectionNotFound, collection)
	}

	// 2. 将文档落盘到临时文件
	tmpPath, err := saveTempFile(data, fileName)
	if err != nil {
		return nil, fmt.Errorf("保存临时文件失败: %w", err)
	}
	defer removeTempFile(tmpPath)

	// 3. 选择提取策略并产出提取单元
	log.Info("[DocumentService] 步骤1: 开始提取文档内容")
	units, err := s.selector.ProcessGeneric(ctx, tmpPath, fileName)
	if err != nil {
		return nil, err
	}
	log.Infof("[DocumentService] 步骤1: 提取完成, 共 %d 个单元", len(units))

	// 4. 分块
	log.Infof("[DocumentService] 步骤2: 开始分块, chunkSize: %d, chunkOverlap: %d",
		s.chunkingCfg.ChunkSize, s.chunkingCfg.ChunkOverlap)
	chunks := chunker.Split(units, s.chunkingCfg.ChunkSize, s.chunkingCfg.ChunkOverlap)
	log.Infof("[DocumentService] 步骤2: 分块完成, 共 %d 个分块", len(chunks))

	// 5. 写入向量集合
	log.Infof("[DocumentService] 步骤3: 开始写入集合 '%s'", collection)
	if err := s.vectorRepo.Upsert(ctx, collection, chunks); err != nil {
		return nil, err
	}
	log.Info("[DocumentService] 步骤3: 写入完成")

	// 6. 上传源文件到对象存储（失败只降级记录，不影响摄取结果）
	objectName := fmt.Sprintf("%s/%s", collection, fileName)
	if _, err := storage.Upload(ctx, s.minioCfg.BucketName, objectName, data, mimeTypeByName(fileName)); err != nil {
		log.Warnf("[DocumentService] 上传源文件到对象存储失败, object: %s, err: %v", objectName, err)
		objectName = ""
	}

	// 7. 登记摄取记录
	record := &model.DocumentRecord{
		FileName:   fileName,
		Collection: collection,
		Filetype:   strings.ToLower(filepath.Ext(fileName)),
		ChunkCount: len(chunks),
		ObjectName: objectName,
	}
	if err := s.recordRepo.Create(record); err != nil {
		log.Warnf("[DocumentService] 保存摄取记录失败, file: %s, err: %v", fileName, err)
	}

	// 8. 发布审计事件（发后即忘）
	kafka.PublishAudit(events.AuditEvent{
		Type:       events.TypeDocumentIngested,
		Collection: collection,
		FileName:   fileName,
		ChunkCount: len(chunks),
	})

	log.Infof("[DocumentService] 文档摄取成功, file: %s, collection: %s, chunks: %d", fileName, collection, len(chunks))
	return chunks, nil
}

// ProcessInvoice 执行定向提取路径（票据场景）。
func (s *documentService) ProcessInvoice(ctx context.Context, data []byte, fileName string) ([]model.ExtractionUnit, error) {
	log.Infof("[DocumentService] 开始处理票据, file: %s, size: %d", fileName, len(data))

	tmpPath, err := saveTempFile(data, fileName)
	if err != nil {
		return nil, fmt.Errorf("保存临时文件失败: %w", err)
	}
	defer removeTempFile(tmpPath)

	units, err := s.selector.ProcessTargeted(ctx, tmpPath, fileName)
	if err != nil {
		return nil, err
	}

	log.Infof("[DocumentService] 票据处理完成, file: %s, 共 %d 个单元", fileName, len(units))
	return units, nil
}

// ListRecords 返回摄取登记记录。
func (s *documentService) ListRecords(collection string) ([]*model.DocumentRecord, error) {
	if collection == "" {
		return s.recordRepo.List()
	}
	return s.recordRepo.ListByCollection(collection)
}

// saveTempFile 把上传内容落盘为临时文件，保留原扩展名供提取策略判断。
func saveTempFile(data []byte, fileName string) (string, error) {
	tmp, err := os.CreateTemp("", "ingest-*"+strings.ToLower(filepath.Ext(fileName)))
	if err != nil {
		return "", err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}

// removeTempFile 删除临时文件。摄取在所有退出路径上都会走到这里。
func removeTempFile(tmpPath string) {
	if tmpPath == "" {
		return
	}
	if err := os.Remove(tmpPath); err != nil && !os.IsNotExist(err) {
		log.Warnf("[DocumentService] 删除临时文件失败: %s, err: %v", tmpPath, err)
		return
	}
	log.Debugf("[DocumentService] 临时文件已删除: %s", tmpPath)
}

func mimeTypeByName(fileName string) string {
	mimeType := mime.TypeByExtension(strings.ToLower(filepath.Ext(fileName)))
	if mimeType == "" {
		return "application/octet-stream"
	}
	return mimeType
}
