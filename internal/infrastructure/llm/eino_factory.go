// Package llm 提供基于 Eino 的 ChatModel 工厂
package llm

import (
	"context"
	"fmt"
	"sync"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"

	"inkwell-ai-api/internal/config"
	"inkwell-ai-api/pkg/errors"
)

// EinoFactory 按提供商名称惰性构建并复用 ChatModel 客户端。
// 生成调用器只依赖 Get，空名称落到配置的默认提供商。
type EinoFactory struct {
	cfg     *config.LLMConfig
	clients map[string]model.BaseChatModel
	mu      sync.RWMutex
}

// NewEinoFactory 创建 ChatModel 工厂
func NewEinoFactory(cfg *config.Config) *EinoFactory {
	return &EinoFactory{
		cfg:     &cfg.LLM,
		clients: make(map[string]model.BaseChatModel),
	}
}

// Get 获取指定提供商的 ChatModel，未指定时用默认提供商
func (f *EinoFactory) Get(ctx context.Context, name string) (model.BaseChatModel, error) {
	if name == "" {
		name = f.cfg.DefaultProvider
	}

	f.mu.RLock()
	client, ok := f.clients[name]
	f.mu.RUnlock()
	if ok {
		return client, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if client, ok = f.clients[name]; ok {
		return client, nil
	}

	providerCfg, ok := f.cfg.Providers[name]
	if !ok {
		return nil, errors.New(errors.KindUnknown,
			fmt.Sprintf("llm provider %q not configured", name))
	}

	temperature := float32(providerCfg.Temperature)
	client, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		APIKey:      providerCfg.APIKey,
		BaseURL:     providerCfg.BaseURL,
		Model:       providerCfg.Model,
		MaxTokens:   &providerCfg.MaxTokens,
		Temperature: &temperature,
		Timeout:     providerCfg.Timeout,
	})
	if err != nil {
		return nil, errors.Wrap(fmt.Errorf("create chat model for provider %q: %w", name, err), errors.KindUnknown)
	}

	f.clients[name] = client
	return client, nil
}
