// Package chunker 将提取单元切分为带来源信息的有界文本分块。
package chunker

import (
	"strings"

	"docurag-go/internal/model"
)

// Split 把提取单元序列切分为长度不超过 maxSize 的分块，相邻分块之间共享
// overlap 个字符。切分以单元为边界：单元之间不合并，每个分块的来源信息
// 完整继承自它所属的那个单元。
//
// 结果是确定性的：相同的输入单元与参数总是产出完全相同的分块序列。
// 空输入返回空序列而不是错误。
func Split(units []model.ExtractionUnit, maxSize, overlap int) []model.Chunk {
	if maxSize <= 0 {
		maxSize = 1000
	}
	if overlap < 0 {
		overlap = 0
	}

	var chunks []model.Chunk
	for _, unit := range units {
		if strings.TrimSpace(unit.Text) == "" {
			continue
		}
		for _, text := range splitText(unit.Text, maxSize, overlap) {
			chunks = append(chunks, model.Chunk{
				Text:         text,
				UnitType:     unit.UnitType,
				PageNumber:   unit.PageNumber,
				Languages:    unit.Languages,
				Filetype:     unit.Filetype,
				LastModified: unit.LastModified,
				Category:     unit.Category,
				Coordinates:  unit.Coordinates,
			})
		}
	}
	return chunks
}

// splitText 将长文本按指定大小和重叠进行切分。
// 按 rune 计数，避免把多字节字符切断。
func splitText(text string, chunkSize int, chunkOverlap int) []string {
	if chunkSize <= chunkOverlap {
		// Fallback to simple split if overlap is invalid
		return simpleSplit(text, chunkSize)
	}

	var chunks []string
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	step := chunkSize - chunkOverlap
	for i := 0; i < len(runes); i += step {
		end := i + chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[i:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks
}

func simpleSplit(text string, chunkSize int) []string {
	var chunks []string
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	for i := 0; i < len(runes); i += chunkSize {
		end := i + chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[i:end]))
	}
	return chunks
}
