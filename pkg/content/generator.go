package content

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/iWorld-y/pubmed_feed/pkg/llm"
	"github.com/iWorld-y/pubmed_feed/pkg/logger"
	"github.com/iWorld-y/pubmed_feed/pkg/metrics"
	dm "github.com/iWorld-y/pubmed_feed/pkg/model"
)

// Completer 大模型补全能力，*llm.Client 满足该接口
type Completer interface {
	Complete(ctx context.Context, req llm.Request) (string, error)
}

// variantSpec 单个文案类型的人设、提示词、采样参数与兜底模板
type variantSpec struct {
	variant     dm.Variant
	persona     string
	temperature float32
	maxTokens   int
	prompt      func(a *dm.Article) string
	fallback    func(a *dm.Article) string
}

var specs = []variantSpec{
	{
		variant:     dm.XiaohongshuLong,
		persona:     "你是医学AI领域的小红书博主，擅长用技术视角解读最新研究，语言生动活泼，emoji使用恰当。",
		temperature: 0.7,
		maxTokens:   1000,
		prompt:      xiaohongshuLongPrompt,
		fallback:    xiaohongshuLongFallback,
	},
	{
		variant:     dm.XiaohongshuShort,
		persona:     "你是医学AI资讯博主，擅长快速提炼论文精华，语言精炼，数字准确。",
		temperature: 0.7,
		maxTokens:   500,
		prompt:      xiaohongshuShortPrompt,
		fallback:    xiaohongshuShortFallback,
	},
	{
		variant:     dm.WechatLong,
		persona:     "你是医学AI领域的专业写手，擅长深度解读最新研究，对统计学和机器学习都有深入理解，写作风格严谨专业，面向医生和AI开发者。",
		temperature: 0.7,
		maxTokens:   2000,
		prompt:      wechatLongPrompt,
		fallback:    wechatLongFallback,
	},
	{
		variant:     dm.WechatShort,
		persona:     "你是医学AI资讯编辑，擅长提炼研究精华，语言简洁专业，面向忙碌的医学工作者。",
		temperature: 0.7,
		maxTokens:   800,
		prompt:      wechatShortPrompt,
		fallback:    wechatShortFallback,
	},
}

// Generator 为单篇文章生成四种平台文案
type Generator struct {
	llm Completer
	log *logrus.Entry
}

// NewGenerator 创建文案生成器
func NewGenerator(c Completer, log *logrus.Entry) *Generator {
	return &Generator{llm: c, log: logger.Component(log, "content")}
}

// GenerateAll 依次生成四种文案，每种只调用一次大模型。
// 某一种失败时只有该种使用兜底模板，返回的映射始终包含全部四个键；
// err 汇总了使用兜底的原因。
func (g *Generator) GenerateAll(ctx context.Context, a *dm.Article) (dm.GeneratedContent, error) {
	out := make(dm.GeneratedContent, len(specs))
	var errs []error

	for _, spec := range specs {
		text, err := g.llm.Complete(ctx, llm.Request{
			System:      spec.persona,
			User:        spec.prompt(a),
			Temperature: spec.temperature,
			MaxTokens:   spec.maxTokens,
		})
		if err != nil {
			g.log.Warnf("文案生成失败，使用兜底模板 [%s] pmid=%s: %v", spec.variant, a.PMID, err)
			metrics.GenerationsTotal.WithLabelValues(string(spec.variant), "fallback").Inc()
			out[spec.variant] = spec.fallback(a)
			errs = append(errs, fmt.Errorf("%s: %w", spec.variant, err))
			continue
		}
		metrics.GenerationsTotal.WithLabelValues(string(spec.variant), "llm").Inc()
		out[spec.variant] = text
	}
	return out, errors.Join(errs...)
}

// Fallback 返回指定文案类型的兜底文本，只依赖文章自身字段
func Fallback(v dm.Variant, a *dm.Article) string {
	for _, spec := range specs {
		if spec.variant == v {
			return spec.fallback(a)
		}
	}
	return ""
}
