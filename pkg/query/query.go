package query

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/iWorld-y/pubmed_feed/pkg/llm"
	"github.com/iWorld-y/pubmed_feed/pkg/logger"
)

const systemPrompt = `You are an expert in medical literature search and PubMed query syntax.

Your task is to convert natural language descriptions of research interests into optimized PubMed search queries.

Guidelines:
1. Translate non-English concepts to English medical terminology
2. Use MeSH terms when appropriate
3. Include both exact phrases (in quotes) and related keywords
4. Use Boolean operators (AND, OR, NOT) effectively
5. Add field tags like [Title/Abstract], [MeSH Terms] when helpful
6. Keep the query focused but comprehensive
7. Target healthcare and medicine research areas

Examples:
Input: "AI in cancer diagnosis"
Output: ("artificial intelligence" OR "machine learning" OR "deep learning") AND (cancer OR neoplasm OR tumor) AND (diagnosis OR detection OR screening)[Title/Abstract]

Input: "LLM在医疗影像诊断中的应用"
Output: ("large language model" OR LLM OR "transformer") AND ("medical imaging" OR radiology OR "diagnostic imaging") AND (diagnosis OR detection)[Title/Abstract]

Input: "大语言模型在药物发现中的研究"
Output: ("large language model" OR LLM OR "foundation model") AND ("drug discovery" OR "drug development" OR "pharmaceutical research")[Title/Abstract]

Return ONLY the query string, no explanation. Do not use Chinese characters in the query.`

// Completer 大模型补全能力，*llm.Client 满足该接口
type Completer interface {
	Complete(ctx context.Context, req llm.Request) (string, error)
}

// Translator 把自然语言研究兴趣翻译为 PubMed 检索式
type Translator struct {
	llm Completer
	log *logrus.Entry
}

// NewTranslator 创建翻译器
func NewTranslator(c Completer, log *logrus.Entry) *Translator {
	return &Translator{llm: c, log: logger.Component(log, "query")}
}

// Fallback 大模型不可用时的检索式：整句限定在标题/摘要中
func Fallback(interest string) string {
	return fmt.Sprintf("(%s)[Title/Abstract]", interest)
}

// Translate 总是返回可用的检索式；err 非空表示使用了降级检索式
func (t *Translator) Translate(ctx context.Context, interest string) (string, error) {
	interest = strings.TrimSpace(interest)

	out, err := t.llm.Complete(ctx, llm.Request{
		System:      systemPrompt,
		User:        interest,
		Temperature: 0.3,
		MaxTokens:   500,
	})
	if err != nil {
		t.log.Warnf("检索式生成失败，使用降级检索式 [%s]: %v", interest, err)
		return Fallback(interest), fmt.Errorf("translate %q: %w", interest, err)
	}

	t.log.Debugf("检索式生成成功 [%s] -> %s", interest, out)
	return out, nil
}

// TranslateAll 依次翻译，失败项使用降级检索式，错误合并返回
func (t *Translator) TranslateAll(ctx context.Context, interests []string) ([]string, error) {
	queries := make([]string, 0, len(interests))
	var errs []error
	for _, interest := range interests {
		q, err := t.Translate(ctx, interest)
		if err != nil {
			errs = append(errs, err)
		}
		queries = append(queries, q)
	}
	return queries, errors.Join(errs...)
}

// Combine 多个检索式用 OR 连接，单个检索式原样返回
func Combine(queries []string) string {
	switch len(queries) {
	case 0:
		return ""
	case 1:
		return queries[0]
	}
	parts := make([]string, len(queries))
	for i, q := range queries {
		parts[i] = "(" + q + ")"
	}
	return strings.Join(parts, " OR ")
}
