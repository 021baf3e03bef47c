package generation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	"inkwell-ai-api/internal/domain/entity"
	"inkwell-ai-api/pkg/errors"
)

// buildMessages 按操作类型组装对话消息
func buildMessages(req *Request) ([]*schema.Message, error) {
	system := strings.TrimSpace(req.SystemInstruction)
	if system == "" {
		system = defaultSystemInstruction(req)
	}

	user, err := buildUserPrompt(req)
	if err != nil {
		return nil, err
	}
	if ctx := strings.TrimSpace(req.Context); ctx != "" {
		user = fmt.Sprintf("Reference context:\n%s\n\n%s", ctx, user)
	}

	return []*schema.Message{
		schema.SystemMessage(system),
		schema.UserMessage(user),
	}, nil
}

func defaultSystemInstruction(req *Request) string {
	lang := req.Language
	if lang == "" {
		lang = "zh-CN"
	}
	return fmt.Sprintf(
		"You are a professional novel-writing assistant. Always respond in language %q. "+
			"When asked for JSON, output only the JSON value with no surrounding prose.", lang)
}

func buildUserPrompt(req *Request) (string, error) {
	switch req.Operation {
	case entity.OperationIdeas:
		return fmt.Sprintf("Generate several distinct story ideas based on the following direction:\n\n%s", req.Prompt), nil

	case entity.OperationArchitecture:
		return fmt.Sprintf("Design the overall architecture for a novel (world, characters, volume structure) from this premise:\n\n%s", req.Prompt), nil

	case entity.OperationChapter:
		var b strings.Builder
		b.WriteString("Write the full chapter text for the following outline:\n\n")
		b.WriteString(req.ChapterOutline)
		if req.TargetWordCount > 0 {
			fmt.Fprintf(&b, "\n\nTarget length: about %d words.", req.TargetWordCount)
		}
		return b.String(), nil

	case entity.OperationOutlineRegen, entity.OperationOutlineGrow:
		if req.Node == nil {
			return "", errors.New(errors.KindUnknown, "outline operation requires a node payload")
		}
		nodeJSON, err := json.Marshal(req.Node)
		if err != nil {
			return "", errors.Wrap(err, errors.KindUnknown)
		}
		verb := "Regenerate the content of"
		if req.Operation == entity.OperationOutlineGrow {
			verb = "Expand with more child nodes"
		}
		var b strings.Builder
		fmt.Fprintf(&b, "%s this outline node and return the updated node as JSON with the same shape:\n\n%s", verb, nodeJSON)
		if req.Instruction != "" {
			fmt.Fprintf(&b, "\n\nAdditional instruction: %s", req.Instruction)
		}
		return b.String(), nil

	case entity.OperationRewrite:
		return fmt.Sprintf("Rewrite the following text.\nInstruction: %s\n\nText:\n%s", req.Instruction, req.SourceText), nil

	case entity.OperationTrends:
		return fmt.Sprintf("Analyze current web-novel market trends relevant to:\n\n%s", req.Prompt), nil

	default:
		return "", errors.New(errors.KindUnknown, fmt.Sprintf("unsupported operation: %s", req.Operation))
	}
}
