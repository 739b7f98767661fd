package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"questforge_backend/internal/config"
	"questforge_backend/internal/contract"
	"questforge_backend/internal/util"
	"strings"
	"time"
)

// GenerationTool 暴露给模型的只读数据获取能力。模型在产出最终结果前
// 可以调用零次或多次，不接收参数，不产生副作用。
type GenerationTool struct {
	Name        string
	Description string
	Invoke      func(ctx context.Context) (any, error)
}

// GenerationRequest 一次生成调用：提示词 + 输出契约 + 可选工具。
// 契约同时渲染进提示词并在返回后用于校验。
type GenerationRequest struct {
	System   string
	Prompt   string
	Contract *contract.Contract
	Tools    []GenerationTool
}

// GenerationClient 生成式模型提供商的抽象。实现不做内部重试，
// 超时和提供商错误以error返回，绝不无限悬挂。
type GenerationClient interface {
	Generate(ctx context.Context, req GenerationRequest) (json.RawMessage, error)
}

// NewGenerationClient 按配置装配客户端。未配置APIKey时返回快速失败的
// 空实现，宿主应用的AI功能整体降级但不影响其它模块。
func NewGenerationClient(cfg config.AIConfig) GenerationClient {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return &NullGenerationClient{}
	}
	return &OpenAIGenerationClient{
		cfg: cfg,
		client: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
	}
}

// NullGenerationClient 未配置凭证时的替身：每次调用立即、确定性地失败。
type NullGenerationClient struct{}

func (c *NullGenerationClient) Generate(ctx context.Context, req GenerationRequest) (json.RawMessage, error) {
	return nil, util.ErrGenerationUnavailable
}

// OpenAIGenerationClient 调用OpenAI兼容的chat/completions接口。
type OpenAIGenerationClient struct {
	cfg    config.AIConfig
	client *http.Client
}

type chatMessage struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []toolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

type toolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// 工具调用轮数上限，防止模型反复索取数据不收敛
const maxToolRounds = 4

func (c *OpenAIGenerationClient) Generate(ctx context.Context, req GenerationRequest) (json.RawMessage, error) {
	system := req.System
	if req.Contract != nil {
		system += "\n\n" + req.Contract.PromptSpec()
	}

	messages := []chatMessage{
		{Role: "system", Content: system},
		{Role: "user", Content: req.Prompt},
	}

	for round := 0; round <= maxToolRounds; round++ {
		msg, err := c.complete(ctx, messages, req.Tools)
		if err != nil {
			return nil, err
		}

		if len(msg.ToolCalls) == 0 {
			return json.RawMessage(msg.Content), nil
		}

		messages = append(messages, *msg)
		for _, call := range msg.ToolCalls {
			result, err := c.invokeTool(ctx, req.Tools, call)
			if err != nil {
				return nil, err
			}
			messages = append(messages, chatMessage{
				Role:       "tool",
				ToolCallID: call.ID,
				Content:    result,
			})
		}
	}

	return nil, fmt.Errorf("generation did not converge after %d tool rounds", maxToolRounds)
}

func (c *OpenAIGenerationClient) invokeTool(ctx context.Context, tools []GenerationTool, call toolCall) (string, error) {
	for _, tool := range tools {
		if tool.Name != call.Function.Name {
			continue
		}
		result, err := tool.Invoke(ctx)
		if err != nil {
			return "", fmt.Errorf("tool %s failed: %w", tool.Name, err)
		}
		payload, err := json.Marshal(result)
		if err != nil {
			return "", err
		}
		return string(payload), nil
	}
	return "", fmt.Errorf("model requested unknown tool %q", call.Function.Name)
}

func (c *OpenAIGenerationClient) complete(ctx context.Context, messages []chatMessage, tools []GenerationTool) (*chatMessage, error) {
	reqBody := map[string]interface{}{
		"model":           c.cfg.Model,
		"messages":        messages,
		"response_format": map[string]string{"type": "json_object"},
	}

	if len(tools) > 0 {
		defs := make([]map[string]interface{}, len(tools))
		for i, tool := range tools {
			defs[i] = map[string]interface{}{
				"type": "function",
				"function": map[string]interface{}{
					"name":        tool.Name,
					"description": tool.Description,
					"parameters": map[string]interface{}{
						"type":       "object",
						"properties": map[string]interface{}{},
					},
				},
			}
		}
		reqBody["tools"] = defs
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.cfg.BaseURL+"/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("AI API error (status %d): %s", resp.StatusCode, string(body))
	}

	var result chatCompletionResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, err
	}

	if result.Error != nil {
		return nil, fmt.Errorf("AI API error: %s", result.Error.Message)
	}
	if len(result.Choices) == 0 {
		return nil, fmt.Errorf("AI returned no choices")
	}

	return &result.Choices[0].Message, nil
}
