package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/pavelanni/pathway/internal/narration"

	openai "github.com/sashabaranov/go-openai"
)

const (
	// DefaultModel is the speech model used when none is configured.
	DefaultModel = string(openai.TTSModel1)
	// DefaultVoice is the narration voice used when none is configured.
	DefaultVoice = string(openai.VoiceAlloy)
)

// Client wraps an OpenAI-compatible speech API.
type Client struct {
	api   *openai.Client
	model string
	voice string
}

// New creates a new speech client.
func New(baseURL, apiKey, modelName, voice string) *Client {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	if modelName == "" {
		modelName = DefaultModel
	}
	if voice == "" {
		voice = DefaultVoice
	}
	return &Client{
		api:   openai.NewClientWithConfig(config),
		model: modelName,
		voice: voice,
	}
}

// Ping checks that the endpoint is reachable and the key is accepted.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.api.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// Synthesize returns raw 16-bit PCM speech at 24 kHz for text. Quota and
// rate-limit rejections wrap narration.ErrQuotaExceeded.
func (c *Client) Synthesize(ctx context.Context, text string) ([]byte, error) {
	resp, err := c.api.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(c.model),
		Input:          text,
		Voice:          openai.SpeechVoice(c.voice),
		ResponseFormat: openai.SpeechResponseFormatPcm,
	})
	if err != nil {
		return nil, classify(err)
	}
	defer resp.Close()

	data, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("read speech audio: %w", err)
	}
	slog.Debug("synthesized speech", "chars", len(text), "bytes", len(data))
	return data, nil
}

func classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == http.StatusTooManyRequests ||
			apiErr.Type == "insufficient_quota" || apiErr.Code == "insufficient_quota" {
			return fmt.Errorf("%w: %s", narration.ErrQuotaExceeded, apiErr.Message)
		}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: %v", narration.ErrQuotaExceeded, reqErr.Err)
	}
	return fmt.Errorf("speech API call: %w", err)
}
