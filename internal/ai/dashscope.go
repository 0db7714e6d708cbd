package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"ai-platform-server/internal/config"
)

const (
	// DashScope API Endpoint
	qwenEndpoint = "https://dashscope.aliyuncs.com/api/v1/services/aigc/text-generation/generation"
	// Model Name
	qwenModel = "qwen-turbo"
)

// dashScopeProvider 阿里云 DashScope 提供商
// 流式模式下 DashScope 以 SSE 字节流响应，由网关增量解码，
// 因此实现 Completer 和 BodyStreamer
type dashScopeProvider struct {
	apiKey string
	client *http.Client
}

func newDashScopeProvider(cfg *config.AIConfig) *dashScopeProvider {
	return &dashScopeProvider{
		apiKey: cfg.QwenAPIKey,
		client: &http.Client{
			// 流式响应不能整体设超时，连接阶段的超时由 Transport 控制
			Timeout: 0,
		},
	}
}

// dashScopeRequest DashScope API 请求结构
type dashScopeRequest struct {
	Model string `json:"model"`
	Input struct {
		Messages []dashScopeMessage `json:"messages"`
	} `json:"input"`
	Parameters struct {
		ResultFormat      string `json:"result_format"` // "message"
		IncrementalOutput bool   `json:"incremental_output,omitempty"`
	} `json:"parameters"`
}

type dashScopeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// dashScopeResponse DashScope API 响应结构
type dashScopeResponse struct {
	Output struct {
		Choices []struct {
			Message dashScopeMessage `json:"message"`
		} `json:"choices"`
	} `json:"output"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// newRequest 构造 HTTP 请求
// stream 为 true 时要求 SSE 响应并开启增量输出
func (p *dashScopeProvider) newRequest(ctx context.Context, prompt string, stream bool) (*http.Request, error) {
	if p.apiKey == "" {
		return nil, errors.New("AI service not configured (missing API Key)")
	}

	dashReq := dashScopeRequest{Model: qwenModel}
	dashReq.Input.Messages = []dashScopeMessage{
		{Role: "user", Content: prompt},
	}
	dashReq.Parameters.ResultFormat = "message"
	dashReq.Parameters.IncrementalOutput = stream

	jsonData, err := json.Marshal(dashReq)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", qwenEndpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, err
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	if stream {
		// 要求服务端以 SSE 推送增量结果
		httpReq.Header.Set("X-DashScope-SSE", "enable")
		httpReq.Header.Set("Accept", "text/event-stream")
	}

	return httpReq, nil
}

// Complete 一次性补全
func (p *dashScopeProvider) Complete(ctx context.Context, prompt string) (string, error) {
	httpReq, err := p.newRequest(ctx, prompt, false)
	if err != nil {
		return "", err
	}

	// 非流式调用设置请求级超时
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()
	httpReq = httpReq.WithContext(ctx)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to call AI service: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("AI service returned status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var dashResp dashScopeResponse
	if err := json.Unmarshal(bodyBytes, &dashResp); err != nil {
		return "", fmt.Errorf("failed to parse AI response: %w", err)
	}

	if dashResp.Code != "" {
		return "", fmt.Errorf("AI service error: %s - %s", dashResp.Code, dashResp.Message)
	}

	if len(dashResp.Output.Choices) == 0 {
		return "", errors.New("AI returned no content")
	}

	return dashResp.Output.Choices[0].Message.Content, nil
}

// OpenStreamBody 发起流式调用并返回原始响应体
// 调用方负责增量解码和关闭
func (p *dashScopeProvider) OpenStreamBody(ctx context.Context, prompt string) (io.ReadCloser, error) {
	httpReq, err := p.newRequest(ctx, prompt, true)
	if err != nil {
		return nil, err
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to call AI service: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("AI service returned status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	return resp.Body, nil
}
