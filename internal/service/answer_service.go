// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"fmt"
	"strings"

	"docurag-go/internal/model"
	"docurag-go/pkg/llm"
	"docurag-go/pkg/log"
)

// 检索与合成的固定应答文案，属于对外契约的一部分。
const (
	// NoResultsAnswer 在检索结果为空时直接返回，不调用模型。
	NoResultsAnswer = "No results found"
	// FailedAnswer 在模型调用失败时返回：合成失败只降级应答，不中断检索。
	FailedAnswer = "Failed to generate final answer."
)

// AnswerService 根据检索到的分块和用户问题合成最终答案。
type AnswerService interface {
	Synthesize(ctx context.Context, hits []model.SearchHit, query string) string
	// SummarizeInvoice 把票据提取单元整理成统一格式的结构化摘要文本。
	SummarizeInvoice(ctx context.Context, units []model.ExtractionUnit) string
}

type answerService struct {
	llmClient llm.Client
}

// NewAnswerService 创建一个新的 AnswerService 实例。
func NewAnswerService(llmClient llm.Client) AnswerService {
	return &answerService{llmClient: llmClient}
}

// Synthesize 构建接地提示词并调用模型生成仅依据上下文的答案。
func (s *answerService) Synthesize(ctx context.Context, hits []model.SearchHit, query string) string {
	if len(hits) == 0 {
		return NoResultsAnswer
	}

	texts := make([]string, 0, len(hits))
	for _, hit := range hits {
		if text, ok := hit.Payload["text"].(string); ok {
			texts = append(texts, text)
		}
	}
	prompt := buildGroundedPrompt(strings.Join(texts, "\n"), query)

	log.Infof("[AnswerService] 开始合成答案, 上下文分块数: %d", len(hits))
	answer, err := s.llmClient.Invoke(ctx, prompt)
	if err != nil {
		log.Errorf("[AnswerService] 调用 LLM 合成答案失败: %v", err)
		return FailedAnswer
	}
	return answer
}

// SummarizeInvoice 用结构化摘要模板整理票据提取结果。
// 合成失败与检索路径一样只降级应答，提取单元本身仍会返回给调用方。
func (s *answerService) SummarizeInvoice(ctx context.Context, units []model.ExtractionUnit) string {
	texts := make([]string, 0, len(units))
	for _, unit := range units {
		if strings.TrimSpace(unit.Text) != "" {
			texts = append(texts, unit.Text)
		}
	}
	if len(texts) == 0 {
		return ""
	}

	log.Infof("[AnswerService] 开始整理票据摘要, 单元数: %d", len(units))
	answer, err := s.llmClient.Invoke(ctx, InvoiceSummaryPrompt+strings.Join(texts, "\n"))
	if err != nil {
		log.Errorf("[AnswerService] 调用 LLM 整理票据摘要失败: %v", err)
		return FailedAnswer
	}
	return answer
}

// buildGroundedPrompt 构建提示词：检索内容是唯一允许的上下文，
// 要求模型在上下文不足时明确说明，并引用支撑答案的上下文片段。
func buildGroundedPrompt(combinedText, query string) string {
	return fmt.Sprintf(`
Context:
%s

Question:
%s

Instructions:
1. Answer the question based exclusively on the information provided in the Context.
2. Do not introduce any external knowledge or make assumptions beyond what is explicitly stated in the Context.
3. If the Context does not contain sufficient information to answer the question fully, state this clearly in your response.
4. Cite specific parts of the Context to support your answer when possible.
5. If any part of the question cannot be answered using the given information, explain why.

Please provide your answer below:
`, combinedText, query)
}
