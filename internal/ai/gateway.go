// Package ai 封装对上游大模型服务的调用
// 对外提供两种调用方式:
//   - Complete: 一次性补全，阻塞直到拿到全文
//   - Stream: 流式补全，返回一个惰性的、有限的、不可重启的片段序列
//
// 上游提供商的响应形态差异（原生增量流 / SSE 字节流 / 只有一次性全文）
// 在这一层被抹平，调用方只看到纯文本片段
package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"ai-platform-server/internal/config"
)

// ErrUpstream 上游 AI 服务调用失败
// 缺少凭据、网络错误、响应格式异常都归入此类
var ErrUpstream = errors.New("upstream AI service error")

// Completer 支持一次性补全的提供商
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Streamer 支持原生增量流的提供商
// emit 对每个片段调用一次，返回错误时提供商应停止生成
type Streamer interface {
	StreamInto(ctx context.Context, prompt string, emit func(fragment string) error) error
}

// BodyStreamer 以原始字节流响应的提供商
// 返回的 Body 需要由网关增量解码
type BodyStreamer interface {
	OpenStreamBody(ctx context.Context, prompt string) (io.ReadCloser, error)
}

// Gateway AI 网关
// 持有一个提供商实例，按提供商的能力选择流式策略
type Gateway struct {
	provider   interface{}   // 提供商实例，能力通过类型断言解析
	chunkSize  int           // 分片回放的每片字符数
	chunkDelay time.Duration // 分片回放的片间延迟
	logger     *zap.Logger
}

// New 创建 AI 网关
// 根据配置选择提供商:
//   - openai: OpenAI 兼容接口（langchaingo），支持原生流式
//   - dashscope: 阿里云 DashScope，SSE 字节流
//   - text-only: 只用一次性补全，流式请求走分片回放
//
// 参数:
//   - cfg: AI 配置
//   - logger: 日志实例
//
// 返回:
//   - *Gateway: 网关实例
//   - error: 未知的提供商类型
func New(cfg *config.AIConfig, logger *zap.Logger) (*Gateway, error) {
	g := &Gateway{
		chunkSize:  cfg.ChunkSize,
		chunkDelay: cfg.ChunkDelay,
		logger:     logger,
	}
	if g.chunkSize <= 0 {
		g.chunkSize = DefaultChunkSize
	}
	if g.chunkDelay <= 0 {
		g.chunkDelay = DefaultChunkDelay
	}

	switch cfg.Provider {
	case "openai", "":
		g.provider = newOpenAIProvider(cfg)
	case "dashscope":
		g.provider = newDashScopeProvider(cfg)
	case "text-only":
		// 与 openai 相同的客户端，但只暴露一次性补全能力
		g.provider = &textOnlyProvider{inner: newOpenAIProvider(cfg)}
	default:
		return nil, fmt.Errorf("unknown AI provider: %s", cfg.Provider)
	}

	return g, nil
}

// NewWithProvider 用自定义提供商创建网关
// 测试时注入 Stub 提供商使用
func NewWithProvider(provider interface{}, chunkSize int, chunkDelay time.Duration, logger *zap.Logger) *Gateway {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkDelay < 0 {
		chunkDelay = 0
	}
	return &Gateway{
		provider:   provider,
		chunkSize:  chunkSize,
		chunkDelay: chunkDelay,
		logger:     logger,
	}
}

// Complete 一次性补全
// 参数:
//   - ctx: 上下文
//   - prompt: 用户输入
//
// 返回:
//   - string: 补全全文
//   - error: 上游失败时返回包装了 ErrUpstream 的错误
func (g *Gateway) Complete(ctx context.Context, prompt string) (string, error) {
	completer, ok := g.provider.(Completer)
	if !ok {
		return "", fmt.Errorf("%w: provider does not support completion", ErrUpstream)
	}

	text, err := completer.Complete(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	return text, nil
}

// Stream 流式补全
// 按提供商能力选择策略，每次调用只解析一次:
//  1. 原生增量流（Streamer）
//  2. SSE 字节流增量解码（BodyStreamer）
//  3. 一次性补全 + 分片回放（Completer）
//
// 三种能力都没有时返回 ErrUpstream
//
// 返回的 Stream 是有限且不可重启的，调用方通过 Recv 逐个取片段
func (g *Gateway) Stream(ctx context.Context, prompt string) (*Stream, error) {
	switch p := g.provider.(type) {
	case Streamer:
		return g.streamNative(ctx, p, prompt), nil
	case BodyStreamer:
		return g.streamBody(ctx, p, prompt), nil
	case Completer:
		return g.streamFallback(ctx, p, prompt), nil
	default:
		return nil, fmt.Errorf("%w: provider supports neither streaming nor completion", ErrUpstream)
	}
}

// streamNative 原生增量流
// 提供商自己推送片段，网关负责标准化和过长片段的二次切分
// 发起失败且尚未产出任何片段时，退回一次性补全 + 分片回放
// （与提供商 SDK 偶发不支持流式的情况兼容）
func (g *Gateway) streamNative(ctx context.Context, p Streamer, prompt string) *Stream {
	s := newStream()

	go func() {
		defer s.close()

		emitted := false
		err := p.StreamInto(ctx, prompt, func(fragment string) error {
			if fragment == "" {
				return nil
			}
			emitted = true
			// 过长的片段二次切分，UI 显示更平滑
			if len(fragment) > LongFragmentLen {
				return g.emitChunked(ctx, s, fragment)
			}
			return s.emit(ctx, fragment)
		})
		if err == nil {
			return
		}

		// 一个片段都没有发出，说明流式发起就失败了
		// 尝试退回一次性补全
		if !emitted {
			if completer, ok := g.provider.(Completer); ok {
				g.logger.Info("native streaming unavailable, falling back to completion",
					zap.Error(err))
				text, cerr := completer.Complete(ctx, prompt)
				if cerr != nil {
					s.fail(ctx, fmt.Errorf("%w: %v", ErrUpstream, cerr))
					return
				}
				if ferr := g.emitChunked(ctx, s, text); ferr != nil {
					s.fail(ctx, ferr)
				}
				return
			}
		}

		s.fail(ctx, fmt.Errorf("%w: %v", ErrUpstream, err))
	}()

	return s
}

// streamBody SSE 字节流
// 逐行读取响应体，data: 行经过标准化后作为片段发出
func (g *Gateway) streamBody(ctx context.Context, p BodyStreamer, prompt string) *Stream {
	s := newStream()

	go func() {
		defer s.close()

		body, err := p.OpenStreamBody(ctx, prompt)
		if err != nil {
			s.fail(ctx, fmt.Errorf("%w: %v", ErrUpstream, err))
			return
		}
		defer body.Close()

		if err := decodeEventBody(ctx, body, func(fragment string) error {
			if fragment == "" {
				return nil
			}
			return s.emit(ctx, fragment)
		}); err != nil {
			s.fail(ctx, fmt.Errorf("%w: %v", ErrUpstream, err))
		}
	}()

	return s
}

// streamFallback 一次性补全 + 分片回放
// 提供商完全不支持流式时，把全文按固定大小切片，
// 片间加一个短延迟，让下游观察到稳定的"涓流"而不是一次性爆发
func (g *Gateway) streamFallback(ctx context.Context, p Completer, prompt string) *Stream {
	s := newStream()

	go func() {
		defer s.close()

		text, err := p.Complete(ctx, prompt)
		if err != nil {
			s.fail(ctx, fmt.Errorf("%w: %v", ErrUpstream, err))
			return
		}
		if err := g.emitChunked(ctx, s, text); err != nil {
			s.fail(ctx, err)
		}
	}()

	return s
}

// emitChunked 把整段文本按 chunkSize 切片发出，片间延迟 chunkDelay
func (g *Gateway) emitChunked(ctx context.Context, s *Stream, text string) error {
	for i, piece := range SplitChunks(text, g.chunkSize) {
		if i > 0 && g.chunkDelay > 0 {
			select {
			case <-time.After(g.chunkDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if err := s.emit(ctx, piece); err != nil {
			return err
		}
	}
	return nil
}
