package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"golang.org/x/time/rate"

	"github.com/iWorld-y/pubmed_feed/pkg/config"
	dm "github.com/iWorld-y/pubmed_feed/pkg/model"
)

// ChatModel Client 依赖的最小接口，openai.ChatModel 满足该接口
type ChatModel interface {
	Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error)
}

// Request 单次补全请求
type Request struct {
	System      string
	User        string
	Temperature float32 // 总是随请求发送，0 即确定性输出
	MaxTokens   int     // 0 表示使用模型默认值
}

// Client 带限流和超时的大模型调用封装
type Client struct {
	cm      ChatModel
	limiter *rate.Limiter
	timeout time.Duration
}

// NewChatModel 按配置创建 OpenAI 兼容的 ChatModel
func NewChatModel(ctx context.Context, cfg config.LLMConfig) (*openai.ChatModel, error) {
	cm, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		BaseURL: cfg.BaseURL,
		APIKey:  cfg.APIKey,
		Model:   cfg.Model,
		Timeout: cfg.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("LLM 初始化失败: %w", err)
	}
	return cm, nil
}

// NewLimiter RPM 决定速率，QPS 决定突发量
func NewLimiter(cfg config.ConcurrencyConfig) *rate.Limiter {
	if cfg.RPM <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	burst := cfg.QPS
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(float64(cfg.RPM)/60.0), burst)
}

// NewClient limiter 为空时不限流，timeout 为 0 时不额外设置超时
func NewClient(cm ChatModel, limiter *rate.Limiter, timeout time.Duration) *Client {
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 1)
	}
	return &Client{cm: cm, limiter: limiter, timeout: timeout}
}

// Complete 发送 system + user 两条消息并返回首条回复文本。
// 所有失败都包装为 model.ErrGeneration，不做重试。
func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	if c == nil || c.cm == nil {
		return "", fmt.Errorf("%w: 未配置大模型", dm.ErrGeneration)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("%w: %v", dm.ErrGeneration, err)
	}

	messages := []*schema.Message{
		{Role: schema.System, Content: req.System},
		{Role: schema.User, Content: req.User},
	}

	opts := []model.Option{model.WithTemperature(req.Temperature)}
	if req.MaxTokens > 0 {
		opts = append(opts, model.WithMaxTokens(req.MaxTokens))
	}

	resp, err := c.cm.Generate(ctx, messages, opts...)
	if err != nil {
		return "", fmt.Errorf("%w: %v", dm.ErrGeneration, err)
	}
	if resp == nil {
		return "", fmt.Errorf("%w: 空响应", dm.ErrGeneration)
	}

	content := CleanContent(resp.Content)
	if content == "" {
		return "", fmt.Errorf("%w: 返回内容为空", dm.ErrGeneration)
	}
	return content, nil
}

// CleanContent 去掉首尾空白以及包裹的 ``` 代码块标记
func CleanContent(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// 去掉语言标记，例如 ```markdown
	if i := strings.IndexByte(s, '\n'); i >= 0 && !strings.ContainsAny(s[:i], " \t") {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
