package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inkwell-ai-api/internal/config"
	"inkwell-ai-api/pkg/errors"
)

func TestEinoFactoryUnknownProvider(t *testing.T) {
	cfg := &config.Config{}
	cfg.LLM.DefaultProvider = "openai"
	factory := NewEinoFactory(cfg)

	_, err := factory.Get(context.Background(), "no-such-provider")
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindUnknown))
	assert.Contains(t, err.Error(), "no-such-provider")
}

func TestEinoFactoryEmptyNameUsesDefaultProvider(t *testing.T) {
	cfg := &config.Config{}
	cfg.LLM.DefaultProvider = "deepseek"
	factory := NewEinoFactory(cfg)

	// 默认提供商同样未配置，但错误要落在它头上
	_, err := factory.Get(context.Background(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "deepseek")
}
