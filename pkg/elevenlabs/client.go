package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"

	"github.com/raulbalestra/helovox/pkg/domain"
)

const baseURL = "https://api.elevenlabs.io/v1/text-to-speech/"

const maxSpeechChars = 300

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

type ttsRequest struct {
	Text          string        `json:"text"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

type client struct {
	apiKey  string
	voiceID string
	hc      *http.Client
}

func NewClient(apiKey, voiceID string) (*client, error) {
	if apiKey == "" || voiceID == "" {
		return nil, fmt.Errorf("api key or voice id is empty")
	}
	return &client{
		apiKey:  apiKey,
		voiceID: voiceID,
		hc:      &http.Client{},
	}, nil
}

// Synthesize renders text as speech audio (mp3 bytes).
func (c *client) Synthesize(ctx context.Context, text string) ([]byte, error) {
	simplified := SimplifyText(text)

	slog.InfoContext(ctx, "Calling ElevenLabs for speech synthesis", "textLength", len(simplified))

	body, err := json.Marshal(ttsRequest{
		Text: simplified,
		VoiceSettings: voiceSettings{
			Stability:       0.5,
			SimilarityBoost: 0.8,
		},
	})
	if err != nil {
		return nil, &domain.GatewayError{Op: "synthesize", Err: fmt.Errorf("marshaling request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+c.voiceID, bytes.NewReader(body))
	if err != nil {
		return nil, &domain.GatewayError{Op: "synthesize", Err: fmt.Errorf("creating request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", c.apiKey)

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, &domain.GatewayError{Op: "synthesize", Err: fmt.Errorf("executing request: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, &domain.GatewayError{
			Op:  "synthesize",
			Err: fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, respBody),
		}
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.GatewayError{Op: "synthesize", Err: fmt.Errorf("reading response body: %w", err)}
	}

	return audio, nil
}

var simplifyRe = regexp.MustCompile(`[^\w\s.,?!]`)

// SimplifyText strips characters the voice model stumbles on (emoji,
// markdown leftovers) and caps the length so replies stay short.
func SimplifyText(text string) string {
	simplified := simplifyRe.ReplaceAllString(text, "")
	runes := []rune(simplified)
	if len(runes) > maxSpeechChars {
		runes = runes[:maxSpeechChars]
	}
	return string(runes)
}
