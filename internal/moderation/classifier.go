package moderation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"dialer-platform/internal/config"
)

// Classifier scores a text against risk categories. Scores are in [0,1].
// Implementations must be timeout-bounded; callers treat failures as
// best-effort and degrade to wordlist-only moderation.
type Classifier interface {
	Classify(ctx context.Context, text, language string) (Scores, error)
}

type Scores struct {
	Spam     float64 `json:"spam"`
	Toxicity float64 `json:"toxicity"`
	Threat   float64 `json:"threat"`
}

// Max returns the highest category score.
func (s Scores) Max() float64 {
	m := s.Spam
	if s.Toxicity > m {
		m = s.Toxicity
	}
	if s.Threat > m {
		m = s.Threat
	}
	return m
}

// HTTPClassifier calls an external moderation service over HTTP.
type HTTPClassifier struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewHTTPClassifier(cfg config.ClassifierConfig) *HTTPClassifier {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &HTTPClassifier{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: timeout},
	}
}

type classifyRequest struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

type classifyResponse struct {
	Scores Scores `json:"scores"`
}

func (c *HTTPClassifier) Classify(ctx context.Context, text, language string) (Scores, error) {
	body, err := json.Marshal(classifyRequest{Text: text, Language: language})
	if err != nil {
		return Scores{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/classify", bytes.NewReader(body))
	if err != nil {
		return Scores{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return Scores{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Scores{}, fmt.Errorf("classifier returned status %d", resp.StatusCode)
	}

	var out classifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Scores{}, err
	}
	return out.Scores, nil
}
