// Package openai is a focused client for the OpenAI chat completions and speech endpoints.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ashureev/career-agent/internal/llm"
)

const (
	defaultBaseURL     = "https://api.openai.com/v1"
	defaultChatModel   = "gpt-4o-mini"
	defaultSpeechModel = "gpt-4o-mini-tts"
	defaultVoice       = "coral"
	defaultAudioFormat = "mp3"

	maxChatResponseBytes  = 1 << 20
	maxAudioResponseBytes = 16 << 20
)

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []llm.Message   `json:"messages"`
	Temperature    *float64        `json:"temperature,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message llm.Message `json:"message"`
	} `json:"choices"`
}

type speechRequest struct {
	Model          string `json:"model"`
	Voice          string `json:"voice"`
	Input          string `json:"input"`
	ResponseFormat string `json:"response_format"`
	Instructions   string `json:"instructions,omitempty"`
}

// ErrResponseTooLarge is returned when an upstream body exceeds the read limit.
var ErrResponseTooLarge = errors.New("openai: response exceeds size limit")

// HTTPStatusError captures non-2xx upstream responses.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("openai: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

// Client calls the chat completions and speech endpoints with one API key.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client

	chatModel         string
	speechModel       string
	voice             string
	audioFormat       string
	voiceInstructions string
	maxAudio          int64
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if v := strings.TrimSpace(baseURL); v != "" {
			c.baseURL = v
		}
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func WithChatModel(model string) Option {
	return func(c *Client) {
		if v := strings.TrimSpace(model); v != "" {
			c.chatModel = v
		}
	}
}

// WithSpeech configures the text-to-speech model, voice and audio format.
// Empty values keep the defaults.
func WithSpeech(model, voice, format string) Option {
	return func(c *Client) {
		if v := strings.TrimSpace(model); v != "" {
			c.speechModel = v
		}
		if v := strings.TrimSpace(voice); v != "" {
			c.voice = v
		}
		if v := strings.TrimSpace(format); v != "" {
			c.audioFormat = v
		}
	}
}

// WithVoiceInstructions sets the speaking style sent with every speech request.
func WithVoiceInstructions(instructions string) Option {
	return func(c *Client) {
		c.voiceInstructions = strings.TrimSpace(instructions)
	}
}

// NewClient creates a Client authenticated with apiKey.
func NewClient(apiKey string, opts ...Option) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("openai: api key must not be empty")
	}
	c := &Client{
		apiKey:      apiKey,
		baseURL:     defaultBaseURL,
		httpClient:  &http.Client{Timeout: 60 * time.Second},
		chatModel:   defaultChatModel,
		speechModel: defaultSpeechModel,
		voice:       defaultVoice,
		audioFormat: defaultAudioFormat,
		maxAudio:    maxAudioResponseBytes,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func endpointURL(baseURL, path string) string {
	base := strings.TrimRight(baseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	if strings.HasSuffix(base, "/v1") {
		return base + path
	}
	return base + "/v1" + path
}

// Complete runs one chat completion and returns the first choice's content.
func (c *Client) Complete(ctx context.Context, req llm.Request) (string, error) {
	if len(req.Messages) == 0 {
		return "", errors.New("openai: at least one message is required")
	}

	payload := chatRequest{
		Model:       c.chatModel,
		Messages:    req.Messages,
		Temperature: req.Temperature,
	}
	if req.JSON {
		payload.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	url := endpointURL(c.baseURL, "/chat/completions")
	raw, err := c.post(ctx, url, payload, maxChatResponseBytes)
	if err != nil {
		return "", fmt.Errorf("openai: chat request failed: %w", err)
	}

	var resp chatResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("openai: decode chat response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai: no choices in response")
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", llm.ErrEmptyResponse
	}
	return content, nil
}

// Narrate synthesizes text to audio in the configured format.
func (c *Client) Narrate(ctx context.Context, text string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("openai: narration text must not be empty")
	}

	url := endpointURL(c.baseURL, "/audio/speech")
	audio, err := c.post(ctx, url, speechRequest{
		Model:          c.speechModel,
		Voice:          c.voice,
		Input:          text,
		ResponseFormat: c.audioFormat,
		Instructions:   c.voiceInstructions,
	}, c.maxAudio)
	if err != nil {
		return nil, fmt.Errorf("openai: speech request failed: %w", err)
	}
	if len(audio) == 0 {
		return nil, errors.New("openai: speech response was empty")
	}
	return audio, nil
}

func (c *Client) post(ctx context.Context, url string, payload any, limit int64) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return nil, &HTTPStatusError{StatusCode: res.StatusCode, URL: url, Body: string(buf)}
	}

	buf, err := io.ReadAll(io.LimitReader(res.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if int64(len(buf)) > limit {
		return nil, fmt.Errorf("%w: more than %d bytes from %s", ErrResponseTooLarge, limit, url)
	}
	return buf, nil
}
