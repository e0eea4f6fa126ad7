package verification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"time"
)

// Client talks to the vision-model chat endpoint. Verify never returns an
// error: transport and parsing failures are folded into a failed verdict so
// the caller cannot accidentally treat an infrastructure problem as anything
// other than an unverified document.
type Client struct {
	endpoint   string
	apiKey     string
	model      string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewClient(endpoint, apiKey, model string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		endpoint:   endpoint,
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

type chatMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Message *struct {
		Content string `json:"content"`
	} `json:"message"`
	Content string `json:"content"`
}

// Verify sends the image to the model and returns its verdict.
func (c *Client) Verify(ctx context.Context, imageBase64 string) Verdict {
	payload := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: idDetectionPrompt},
			{Role: "user", Content: userInstruction, Images: []string{imageBase64}},
		},
		Temperature: 1,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return failureVerdict(fmt.Sprintf("Failed to process image: %v", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return failureVerdict(fmt.Sprintf("Failed to process image: %v", err))
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.WarnContext(ctx, "vision request failed", "error", err)
		return failureVerdict(fmt.Sprintf("Network error while processing image: %v", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.WarnContext(ctx, "vision response read failed", "error", err)
		return failureVerdict(fmt.Sprintf("Network error while processing image: %v", err))
	}

	// Non-2xx is a transport-level failure, same shape as a network error.
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.WarnContext(ctx, "vision API error",
			"status", resp.StatusCode,
			"body", string(respBody),
		)
		return failureVerdict(fmt.Sprintf("Network error while processing image: vision API error: %d - %s", resp.StatusCode, respBody))
	}

	var chat chatResponse
	if err := json.Unmarshal(respBody, &chat); err != nil {
		return failureVerdict(fmt.Sprintf("Failed to process image: %v", err))
	}
	content := chat.Content
	if chat.Message != nil && chat.Message.Content != "" {
		content = chat.Message.Content
	}

	verdict, err := parseVerdict(content)
	if err != nil {
		c.logger.WarnContext(ctx, "vision output rejected", "error", err)
		return failureVerdict(fmt.Sprintf("Failed to process image: %v", err))
	}
	return verdict
}

var jsonObjectPattern = regexp.MustCompile(`(?s)\{.*\}`)

// parseVerdict turns the model's free text into a Verdict. Two-stage parse:
// direct JSON first, then the outermost {...} block to tolerate incidental
// wrapping (markdown fences, prose). Anything else fails closed.
func parseVerdict(content string) (Verdict, error) {
	raw := []byte(content)
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		match := jsonObjectPattern.Find(raw)
		if match == nil {
			return Verdict{}, fmt.Errorf("no valid JSON found in response")
		}
		if err := json.Unmarshal(match, &fields); err != nil {
			return Verdict{}, fmt.Errorf("invalid JSON object in response: %w", err)
		}
		raw = match
	}

	for _, key := range []string{"success", "identity", "is_fake"} {
		if _, ok := fields[key]; !ok {
			return Verdict{}, fmt.Errorf("invalid response structure: missing %q", key)
		}
	}

	var verdict Verdict
	if err := json.Unmarshal(raw, &verdict); err != nil {
		return Verdict{}, fmt.Errorf("invalid response structure: %w", err)
	}
	if verdict.Success && verdict.Identity == nil {
		return Verdict{}, fmt.Errorf("invalid response structure: success without identity")
	}
	return verdict, nil
}
