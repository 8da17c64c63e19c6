package nodes

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/flowbase-io/flowbase/internal/node/runtime"
)

// LLM runs a chat completion. It is the streaming exemplar: with
// streaming enabled each delta becomes a chunk before the final output.
type LLM struct {
	client *openai.Client
}

func NewLLM(apiKey string) *LLM {
	if apiKey == "" {
		return &LLM{}
	}
	return &LLM{client: openai.NewClient(apiKey)}
}

func (l *LLM) Type() string { return "llm" }

func (l *LLM) ConfigSchema() map[string]interface{} {
	return schema([]string{"prompt"}, map[string]interface{}{
		"prompt":      prop("string", "User prompt"),
		"system":      prop("string", "Optional system prompt"),
		"model":       prop("string", "Model name, default gpt-4o-mini"),
		"temperature": prop("number", "Sampling temperature"),
	})
}

func (l *LLM) Execute(ctx context.Context, cfg map[string]interface{}, _ runtime.Input) (interface{}, error) {
	if l.client == nil {
		return nil, errors.New("llm is not configured")
	}
	request, err := l.request(cfg)
	if err != nil {
		return nil, err
	}

	resp, err := l.client.CreateChatCompletion(ctx, request)
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("chat completion returned no choices")
	}
	return map[string]interface{}{
		"text":  resp.Choices[0].Message.Content,
		"model": resp.Model,
	}, nil
}

func (l *LLM) ExecuteStream(ctx context.Context, cfg map[string]interface{}, _ runtime.Input, onChunk runtime.ChunkFunc) (interface{}, error) {
	if l.client == nil {
		return nil, errors.New("llm is not configured")
	}
	request, err := l.request(cfg)
	if err != nil {
		return nil, err
	}
	request.Stream = true

	stream, err := l.client.CreateChatCompletionStream(ctx, request)
	if err != nil {
		return nil, fmt.Errorf("chat completion stream failed: %w", err)
	}
	defer stream.Close()

	var builder strings.Builder
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("stream receive failed: %w", err)
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		builder.WriteString(delta)
		onChunk(delta)
	}

	return map[string]interface{}{"text": builder.String()}, nil
}

func (l *LLM) request(cfg map[string]interface{}) (openai.ChatCompletionRequest, error) {
	prompt, err := stringConfig(cfg, "prompt")
	if err != nil {
		return openai.ChatCompletionRequest{}, err
	}

	messages := []openai.ChatCompletionMessage{}
	if system := optionalString(cfg, "system", ""); system != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role: openai.ChatMessageRoleSystem, Content: system,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role: openai.ChatMessageRoleUser, Content: prompt,
	})

	request := openai.ChatCompletionRequest{
		Model:    optionalString(cfg, "model", openai.GPT4oMini),
		Messages: messages,
	}
	if temperature, ok := cfg["temperature"].(float64); ok {
		request.Temperature = float32(temperature)
	}
	return request, nil
}
