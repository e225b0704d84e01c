package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// callTimeout bounds every outbound capability call. Moderation runs on the
// hot path of chat delivery, so a slow upstream must not stall the engine;
// callers treat a timeout as "not toxic via this path".
const callTimeout = 5 * time.Second

// HTTPClassifier calls the platform's toxicity classifier service.
//
//	POST <base>/api/v1/score  {"text": "..."}
//	200  {"scores": {"toxic": 0.91, "insult": 0.40, ...}}
type HTTPClassifier struct {
	baseURL string
	client  *http.Client
}

// NewHTTPClassifier returns a classifier client for the given base URL.
func NewHTTPClassifier(baseURL string) *HTTPClassifier {
	return &HTTPClassifier{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: callTimeout},
	}
}

// Predict fetches per-category toxicity scores for text.
func (c *HTTPClassifier) Predict(ctx context.Context, text string) (map[string]float64, error) {
	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return nil, fmt.Errorf("classifier: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/score", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("classifier: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("classifier: score call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("classifier: score call: status %d", resp.StatusCode)
	}

	var decoded struct {
		Scores map[string]float64 `json:"scores"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("classifier: decode response: %w", err)
	}
	return decoded.Scores, nil
}

// PersonalityModerator asks the AI personality service for a contextual
// verdict. The service replies with free text; anything starting with "TOXIC"
// is a flag, everything else is treated as SAFE.
type PersonalityModerator struct {
	baseURL string
	client  *http.Client
}

// NewPersonalityModerator returns a contextual moderator backed by the AI
// personality service at the given base URL.
func NewPersonalityModerator(baseURL string) *PersonalityModerator {
	return &PersonalityModerator{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: callTimeout},
	}
}

// Judge submits text for contextual review. The expected reply is either
// "TOXIC: <reason>" or "SAFE".
func (m *PersonalityModerator) Judge(ctx context.Context, text string) (bool, string, error) {
	prompt := fmt.Sprintf("Analyze if this message is toxic, hateful, harassing, or inappropriate. "+
		"Reply ONLY with 'TOXIC: <reason>' if it is, or 'SAFE' if it's not: %q", text)

	body, err := json.Marshal(map[string]string{
		"message":  prompt,
		"platform": "moderation",
	})
	if err != nil {
		return false, "", fmt.Errorf("classifier: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/api/v1/chat", bytes.NewReader(body))
	if err != nil {
		return false, "", fmt.Errorf("classifier: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return false, "", fmt.Errorf("classifier: chat call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, "", fmt.Errorf("classifier: chat call: status %d", resp.StatusCode)
	}

	var decoded struct {
		Response string `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return false, "", fmt.Errorf("classifier: decode response: %w", err)
	}

	verdict := strings.TrimSpace(decoded.Response)
	if strings.HasPrefix(verdict, "TOXIC") {
		reason := strings.TrimSpace(strings.TrimPrefix(verdict, "TOXIC"))
		reason = strings.TrimSpace(strings.TrimPrefix(reason, ":"))
		return true, reason, nil
	}
	return false, "", nil
}
