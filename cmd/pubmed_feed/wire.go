package main

import (
	"context"
	"fmt"

	"github.com/iWorld-y/pubmed_feed/pkg/config"
	"github.com/iWorld-y/pubmed_feed/pkg/content"
	"github.com/iWorld-y/pubmed_feed/pkg/engine"
	"github.com/iWorld-y/pubmed_feed/pkg/llm"
	"github.com/iWorld-y/pubmed_feed/pkg/logger"
	"github.com/iWorld-y/pubmed_feed/pkg/pubmed"
	"github.com/iWorld-y/pubmed_feed/pkg/query"
	"github.com/iWorld-y/pubmed_feed/pkg/report"
	"github.com/iWorld-y/pubmed_feed/pkg/storage"
)

// components 一次命令执行所需的全部组件
type components struct {
	store     *storage.Store
	pubmed    *pubmed.Client
	assembler *report.Assembler
	engine    *engine.Engine
}

// newComponents 按配置装配存储、PubMed 客户端、大模型与引擎，返回的 cleanup 负责关闭数据库
func newComponents(ctx context.Context, c *config.Config) (*components, func(), error) {
	log := logger.Component(nil, "app")

	store, err := storage.Open(c.DB, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("无法连接数据库: %w", err)
	}
	cleanup := func() {
		if err := store.Close(); err != nil {
			log.Warnf("关闭数据库失败: %v", err)
		}
	}

	if c.LLM.APIKey == "" {
		log.Warn("未配置 LLM API Key，检索式与文案将使用降级模板")
	}
	cm, err := llm.NewChatModel(ctx, c.LLM)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	limiter := llm.NewLimiter(c.Concurrency)
	log.Infof("限流器已配置: Limit=%.2f req/s, Burst=%d", float64(limiter.Limit()), limiter.Burst())
	client := llm.NewClient(cm, limiter, c.LLM.Timeout)

	pm := pubmed.NewClient(c.PubMed)
	assembler := report.NewAssembler(c.Reports.Dir, store, nil)

	eng := engine.NewEngine(engine.Deps{
		Translator: query.NewTranslator(client, nil),
		Literature: pm,
		Store:      store,
		Generator:  content.NewGenerator(client, nil),
		Assembler:  assembler,
	}, engine.Settings{
		Interests:  c.Interests,
		Days:       c.PubMed.SearchDays,
		MaxResults: c.PubMed.MaxResults,
		Workers:    c.Concurrency.Workers,
	}, nil)

	return &components{store: store, pubmed: pm, assembler: assembler, engine: eng}, cleanup, nil
}
