// Package ai is the client for the hosted LLM gateway. It shapes the
// three operations the planner needs (structuring free text into
// bullets, project catch-up summaries, audio transcription) on top of
// an OpenAI-compatible HTTP API.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"planner/pkg/circuitbreaker"
	"planner/pkg/metrics"
	"planner/pkg/trace"
)

const (
	maxRetries   = 3
	initialDelay = 1 * time.Second

	// Summarization payload limits: at most 10 tasks, capped with the
	// rough 4-chars-per-token heuristic.
	maxSummaryTasks = 10
	maxInputTokens  = 3500
	charsPerToken   = 4

	structurePrompt = "You format unstructured text into concise professional bullet points. Output only the bullet list."
	summarySystem   = "You are a senior project assistant. Produce a concise catch-up summary for the project. Structure sections: 1) Recent Accomplishments 2) Active / Pending Items 3) Risks / Blockers 4) Suggested Next Steps. Keep it under 400 words. Preserve factual details; do not fabricate. Use markdown headings and bullet points. Most recent tasks are first in the input."
)

type Client struct {
	baseURL      string
	apiKey       string
	model        string
	whisperModel string
	httpClient   *http.Client
	retryDelay   time.Duration
	cb           *circuitbreaker.CircuitBreaker
	logger       *zap.Logger
}

func NewClient(baseURL, apiKey, model, whisperModel string, logger *zap.Logger) *Client {
	if model == "" {
		model = "gpt-4o-mini"
	}
	if whisperModel == "" {
		whisperModel = "whisper-1"
	}
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		apiKey:       apiKey,
		model:        model,
		whisperModel: whisperModel,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		retryDelay: initialDelay,
		cb:         circuitbreaker.NewCircuitBreaker(circuitbreaker.DefaultConfig()),
		logger:     logger,
	}
}

// Keyed returns a client using the given API key instead of the
// server-wide default. The breaker and transport are shared.
func (c *Client) Keyed(apiKey string) *Client {
	if apiKey == "" {
		return c
	}
	keyed := *c
	keyed.apiKey = apiKey
	return &keyed
}

// TaskContext is one deliverable's contribution to a project summary.
type TaskContext struct {
	Title        string
	Deliverables string
	Reports      string
}

// StructureText turns free text into a bullet rendition. Empty or
// whitespace-only input returns "" without touching the network.
func (c *Client) StructureText(ctx context.Context, raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", nil
	}

	messages := []chatMessage{
		{Role: "system", Content: structurePrompt},
		{Role: "user", Content: raw},
	}
	return c.chat(ctx, "structure_text", messages, 600, 0.3)
}

// SummarizeProject builds a catch-up summary from at most ten task
// contexts, truncated to the input token budget.
func (c *Client) SummarizeProject(ctx context.Context, projectName string, tasks []TaskContext) (string, error) {
	if len(tasks) == 0 {
		return "", fmt.Errorf("no tasks provided")
	}
	if len(tasks) > maxSummaryTasks {
		tasks = tasks[:maxSummaryTasks]
	}

	assembled := assembleContext(tasks)
	user := fmt.Sprintf("Project: %s\n\nContext (truncated to token budget):\n\n%s", projectName, assembled)

	messages := []chatMessage{
		{Role: "system", Content: summarySystem},
		{Role: "user", Content: user},
	}
	return c.chat(ctx, "summarize_project", messages, 800, 0.4)
}

// assembleContext renders task blocks most-recent-first under the
// shared token budget.
func assembleContext(tasks []TaskContext) string {
	remaining := maxInputTokens
	blocks := make([]string, 0, len(tasks))

	for _, t := range tasks {
		title := truncateForTokenBudget(fmt.Sprintf("TITLE: %s\n", t.Title), &remaining)
		deliverables := truncateForTokenBudget(fmt.Sprintf("DELIVERABLES: %s\n", t.Deliverables), &remaining)
		reports := ""
		if t.Reports != "" {
			reports = truncateForTokenBudget(fmt.Sprintf("REPORTS: %s\n", t.Reports), &remaining)
		}
		blocks = append(blocks, strings.TrimSpace(title+deliverables+reports))
		if remaining <= 0 {
			break
		}
	}

	return strings.Join(blocks, "\n\n")
}

func truncateForTokenBudget(s string, remaining *int) string {
	if *remaining <= 0 {
		return ""
	}
	approxTokens := (len(s) + charsPerToken - 1) / charsPerToken
	if approxTokens <= *remaining {
		*remaining -= approxTokens
		return s
	}
	allowed := *remaining * charsPerToken
	*remaining = 0
	return s[:allowed] + "\n...[truncated]"
}

// TranscribeAudio submits one encoded clip for transcription. No
// streaming or partial results.
func (c *Client) TranscribeAudio(ctx context.Context, audio []byte, filename, language string) (string, error) {
	if len(audio) == 0 {
		return "", fmt.Errorf("empty audio clip")
	}
	if filename == "" {
		filename = "audio.webm"
	}
	if language == "" {
		language = "en"
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(audio); err != nil {
		return "", err
	}
	_ = w.WriteField("model", c.whisperModel)
	_ = w.WriteField("language", language)
	if err := w.Close(); err != nil {
		return "", err
	}

	var transcript string
	err = c.cb.Execute(func() error {
		start := time.Now()

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/audio/transcriptions", bytes.NewReader(buf.Bytes()))
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("Content-Type", w.FormDataContentType())
		if traceID := trace.FromContext(ctx); traceID != "" {
			req.Header.Set(trace.HeaderName(), traceID)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			metrics.RecordAICallLatency("transcribe_audio", "error", time.Since(start))
			return err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			metrics.RecordAICallLatency("transcribe_audio", "error", time.Since(start))
			return err
		}

		if resp.StatusCode != http.StatusOK {
			metrics.RecordAICallLatency("transcribe_audio", fmt.Sprintf("%d", resp.StatusCode), time.Since(start))
			return apiError(resp.StatusCode, body)
		}
		metrics.RecordAICallLatency("transcribe_audio", "success", time.Since(start))

		var parsed struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal(body, &parsed); err != nil {
			return fmt.Errorf("failed to decode transcription response: %w", err)
		}
		transcript = parsed.Text
		return nil
	})
	if err != nil {
		return "", err
	}
	return transcript, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

func apiError(status int, body []byte) error {
	var parsed errorResponse
	if json.Unmarshal(body, &parsed) == nil && parsed.Error.Message != "" {
		return fmt.Errorf("ai gateway error (%d): %s", status, parsed.Error.Message)
	}
	return fmt.Errorf("ai gateway error (%d): %s", status, string(body))
}

// chat issues a chat-completions call with retries on 429/5xx.
func (c *Client) chat(ctx context.Context, operation string, messages []chatMessage, maxTokens int, temperature float64) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("no API key configured")
	}

	payload, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	var content string
	err = c.cb.Execute(func() error {
		var lastErr error
		for attempt := 0; attempt < maxRetries; attempt++ {
			if attempt > 0 {
				delay := time.Duration(math.Pow(2, float64(attempt-1))) * c.retryDelay
				select {
				case <-time.After(delay):
				case <-ctx.Done():
					return ctx.Err()
				}
			}

			start := time.Now()
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
			if err != nil {
				return err
			}
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
			req.Header.Set("Content-Type", "application/json")
			if traceID := trace.FromContext(ctx); traceID != "" {
				req.Header.Set(trace.HeaderName(), traceID)
			}

			resp, err := c.httpClient.Do(req)
			if err != nil {
				metrics.RecordAICallLatency(operation, "error", time.Since(start))
				lastErr = err
				continue
			}

			body, err := io.ReadAll(resp.Body)
			resp.Body.Close()
			if err != nil {
				metrics.RecordAICallLatency(operation, "error", time.Since(start))
				lastErr = err
				continue
			}

			if resp.StatusCode != http.StatusOK {
				metrics.RecordAICallLatency(operation, fmt.Sprintf("%d", resp.StatusCode), time.Since(start))
				lastErr = apiError(resp.StatusCode, body)
				if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
					continue
				}
				return lastErr
			}
			metrics.RecordAICallLatency(operation, "success", time.Since(start))

			var parsed chatResponse
			if err := json.Unmarshal(body, &parsed); err != nil {
				return fmt.Errorf("failed to decode response: %w", err)
			}
			if len(parsed.Choices) == 0 {
				return fmt.Errorf("empty completion response")
			}
			content = parsed.Choices[0].Message.Content
			return nil
		}
		return fmt.Errorf("max retries (%d) exceeded: %w", maxRetries, lastErr)
	})
	if err != nil {
		return "", err
	}
	return content, nil
}
