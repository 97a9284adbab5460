package llm

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"k8s.io/klog/v2"

	"github.com/bookforge/backend/config"
)

// ChatModel 文本生成接口
// 流水线各组件依赖该接口而非具体实现，测试中以内存实现替换
type ChatModel interface {
	Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error)
}

// LLMChatModel 封装 Eino 原生的 OpenAI ChatModel
// 直接使用 cloudwego/eino-ext/components/model/openai 实现
type LLMChatModel struct {
	chatModel model.ToolCallingChatModel
}

// NewLLMChatModel 创建 LLM ChatModel
// 返回: 实现了 ChatModel 接口的实例
func NewLLMChatModel(cfg *config.LLMConfig) (*LLMChatModel, error) {
	klog.V(6).Infof("[LLMChatModel] 创建 OpenAI ChatModel: model=%s, baseURL=%s", cfg.Model, cfg.APIURL)

	modelConfig := &openai.ChatModelConfig{
		APIKey: cfg.APIKey,
		Model:  cfg.Model,
	}

	if cfg.APIURL != "" {
		modelConfig.BaseURL = cfg.APIURL
	}

	if cfg.MaxTokens > 0 {
		maxTokens := cfg.MaxTokens
		modelConfig.MaxTokens = &maxTokens
	}

	chatModel, err := openai.NewChatModel(context.Background(), modelConfig)
	if err != nil {
		klog.Errorf("[LLMChatModel] 创建 ChatModel 失败: %v", err)
		return nil, err
	}

	klog.V(6).Infof("[LLMChatModel] ChatModel 创建成功")
	return &LLMChatModel{chatModel: chatModel}, nil
}

// Generate 生成响应
func (m *LLMChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	klog.V(6).Infof("[LLMChatModel] Generate 开始: messageCount=%d", len(input))

	for i, msg := range input {
		klog.V(8).Infof("[LLMChatModel]   Message[%d]: role=%s, content=%s", i, msg.Role, msg.Content)
	}

	resp, err := m.chatModel.Generate(ctx, input, opts...)
	if err != nil {
		klog.Errorf("[LLMChatModel] Generate 失败: %v", err)
		return nil, err
	}

	klog.V(6).Infof("[LLMChatModel] Generate 完成: responseLength=%d", len(resp.Content))
	return resp, nil
}

// GenerateText 以 system + user 两条消息发起一次生成，返回纯文本内容
func GenerateText(ctx context.Context, cm ChatModel, systemPrompt, userPrompt string) (string, error) {
	messages := []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(userPrompt),
	}

	resp, err := cm.Generate(ctx, messages)
	if err != nil {
		return "", err
	}
	if resp == nil || resp.Content == "" {
		return "", fmt.Errorf("no response from LLM")
	}
	return resp.Content, nil
}
