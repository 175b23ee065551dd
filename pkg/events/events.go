// Package events defines the structures for audit events published to Kafka.
package events

import "time"

// 事件类型。
const (
	TypeDocumentIngested  = "document_ingested"
	TypeCollectionCreated = "collection_created"
	TypeCollectionDeleted = "collection_deleted"
)

// AuditEvent 是发布到审计主题的结构化事件，发后即忘。
type AuditEvent struct {
	Type       string    `json:"type"`
	Collection string    `json:"collection,omitempty"`
	FileName   string    `json:"file_name,omitempty"`
	ChunkCount int       `json:"chunk_count,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}
