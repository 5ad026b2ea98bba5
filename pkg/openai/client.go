package openai

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"

	"github.com/sashabaranov/go-openai"

	"github.com/raulbalestra/helovox/pkg/domain"
)

const visionPrompt = "Descreva a imagem a seguir de maneira detalhada."

const visionMaxTokens = 300

type client struct {
	api   *openai.Client
	model string
}

func NewClient(token, model string) (*client, error) {
	if token == "" {
		return nil, fmt.Errorf("token is empty")
	}
	return &client{
		api:   openai.NewClient(token),
		model: model,
	}, nil
}

// Generate runs a single-shot completion over an already assembled prompt.
// All conversational context lives inside the prompt itself.
func (c *client) Generate(ctx context.Context, prompt string, opts domain.GenerateOptions) (string, error) {
	slog.InfoContext(ctx, "Calling OpenAI for chat completion",
		"model", c.model, "promptLength", len(prompt))

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
	})
	if err != nil {
		return "", &domain.GatewayError{Op: "generate", Err: err}
	}
	if len(resp.Choices) == 0 {
		return "", &domain.GatewayError{Op: "generate", Err: fmt.Errorf("no choices in response")}
	}

	return resp.Choices[0].Message.Content, nil
}

// DescribeImage asks the vision model for a detailed description of the
// image bytes.
func (c *client) DescribeImage(ctx context.Context, image []byte) (string, error) {
	slog.InfoContext(ctx, "Calling OpenAI for image description", "imageSizeBytes", len(image))

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: visionPrompt},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(image),
							Detail: openai.ImageURLDetailHigh,
						},
					},
				},
			},
		},
		MaxTokens: visionMaxTokens,
	})
	if err != nil {
		return "", &domain.GatewayError{Op: "describe_image", Err: err}
	}
	if len(resp.Choices) == 0 {
		return "", &domain.GatewayError{Op: "describe_image", Err: fmt.Errorf("no choices in response")}
	}

	return resp.Choices[0].Message.Content, nil
}

// Transcribe runs Whisper over an audio file already converted to a
// canonical encoding.
func (c *client) Transcribe(ctx context.Context, audioFilePath string) (string, error) {
	slog.InfoContext(ctx, "Calling OpenAI for transcription", "path", audioFilePath)

	resp, err := c.api.CreateTranscription(ctx, openai.AudioRequest{
		Model:    openai.Whisper1,
		FilePath: audioFilePath,
	})
	if err != nil {
		return "", &domain.GatewayError{Op: "transcribe", Err: err}
	}

	return resp.Text, nil
}
