package ai

import (
	"context"
	"errors"
	"sync"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"ai-platform-server/internal/config"
)

// openaiProvider OpenAI 兼容接口的提供商
// 通过 langchaingo 调用，支持官方 OpenAI 和本地部署（Ollama 等）
// 同时实现 Completer 和 Streamer
type openaiProvider struct {
	apiKey  string
	baseURL string
	model   string

	// 客户端延迟初始化
	// 凭据缺失等问题在首次调用时暴露为 UpstreamError，而不是启动时崩溃
	once    sync.Once
	llm     *openai.LLM
	initErr error
}

func newOpenAIProvider(cfg *config.AIConfig) *openaiProvider {
	return &openaiProvider{
		apiKey:  cfg.OpenAIAPIKey,
		baseURL: cfg.OpenAIBaseURL,
		model:   cfg.OpenAIModel,
	}
}

// client 初始化并返回 langchaingo 客户端
func (p *openaiProvider) client() (*openai.LLM, error) {
	p.once.Do(func() {
		if p.apiKey == "" && p.baseURL == "" {
			p.initErr = errors.New("OPENAI_API_KEY missing")
			return
		}

		opts := []openai.Option{}
		if p.apiKey != "" {
			opts = append(opts, openai.WithToken(p.apiKey))
		} else {
			// 本地部署不校验 Key，但 langchaingo 要求非空
			opts = append(opts, openai.WithToken("unused"))
		}
		if p.baseURL != "" {
			opts = append(opts, openai.WithBaseURL(p.baseURL))
		}
		if p.model != "" {
			opts = append(opts, openai.WithModel(p.model))
		}

		p.llm, p.initErr = openai.New(opts...)
	})
	return p.llm, p.initErr
}

// Complete 一次性补全
func (p *openaiProvider) Complete(ctx context.Context, prompt string) (string, error) {
	llm, err := p.client()
	if err != nil {
		return "", err
	}
	return llms.GenerateFromSinglePrompt(ctx, llm, prompt)
}

// StreamInto 原生增量流
// langchaingo 的流式回调每收到一个 token 片段调用一次
func (p *openaiProvider) StreamInto(ctx context.Context, prompt string, emit func(string) error) error {
	llm, err := p.client()
	if err != nil {
		return err
	}

	_, err = llms.GenerateFromSinglePrompt(ctx, llm, prompt,
		llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
			return emit(string(chunk))
		}),
	)
	return err
}

// textOnlyProvider 只暴露一次性补全能力的包装
// 用于显式验证"提供商不支持流式"的降级路径
type textOnlyProvider struct {
	inner Completer
}

func (p *textOnlyProvider) Complete(ctx context.Context, prompt string) (string, error) {
	return p.inner.Complete(ctx, prompt)
}
