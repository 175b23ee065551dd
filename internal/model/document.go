// Package model 定义了文档处理与检索流程中的核心数据结构。
package model

// ExtractionUnit 是从一份文档中提取出的一个逻辑文本单元。
// 由提取策略选择器产出，供分块器消费。
type ExtractionUnit struct {
	Text         string      `json:"text"`
	UnitType     string      `json:"type"`
	PageNumber   int         `json:"page_number"`
	Languages    []string    `json:"languages,omitempty"`
	Filetype     string      `json:"filetype,omitempty"`
	LastModified string      `json:"last_modified,omitempty"`
	Category     string      `json:"category,omitempty"`
	Coordinates  [][]float64 `json:"coordinates,omitempty"`
}

// Chunk 是一个带来源信息的有界文本片段，是向量集合中存储与检索的基本单位。
type Chunk struct {
	Text         string      `json:"text"`
	UnitType     string      `json:"type"`
	PageNumber   int         `json:"page_number"`
	Languages    []string    `json:"languages,omitempty"`
	Filetype     string      `json:"filetype,omitempty"`
	LastModified string      `json:"last_modified,omitempty"`
	Category     string      `json:"category,omitempty"`
	Coordinates  [][]float64 `json:"coordinates,omitempty"`
}

// SearchHit 是向量检索返回的一条命中，payload 采用扁平的来源字段约定。
type SearchHit struct {
	Score   float64                `json:"score"`
	Payload map[string]interface{} `json:"payload"`
}

// SearchResult 是检索入口返回给调用方的最终结构。
type SearchResult struct {
	FinalAnswer string                   `json:"final_answer"`
	Metadata    []map[string]interface{} `json:"metadata"`
}

// CollectionDetails 描述一个集合的只读诊断信息。
type CollectionDetails struct {
	Name        string `json:"name"`
	PointsCount int64  `json:"points_count"`
	Dimension   int    `json:"dimension"`
	Status      string `json:"status"`
}
