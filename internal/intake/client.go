package intake

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"commerce-core/internal/model"
)

// maxResponseBytes bounds collaborator response bodies.
const maxResponseBytes = 1 << 20

// HTTPClassifier calls a defect classification service. The image is posted
// as the raw request body to {baseURL}/classify.
type HTTPClassifier struct {
	baseURL string
	client  *http.Client
}

// NewHTTPClassifier creates a classifier client.
func NewHTTPClassifier(baseURL string, timeout time.Duration) *HTTPClassifier {
	return &HTTPClassifier{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClassifier) Classify(ctx context.Context, image Image) (*Classification, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/classify", bytes.NewReader(image.Data))
	if err != nil {
		return nil, fmt.Errorf("failed to build classify request: %w", err)
	}
	req.Header.Set("Content-Type", image.ContentType)
	req.Header.Set("Accept", "application/json")
	if image.Filename != "" {
		req.Header.Set("X-Filename", image.Filename)
	}

	var out Classification
	if err := do(c.client, req, &out); err != nil {
		return nil, fmt.Errorf("failed to classify evidence: %w", err)
	}
	if out.Confidence < 0 || out.Confidence > 1 {
		return nil, fmt.Errorf("classifier returned confidence %v outside [0,1]", out.Confidence)
	}
	return &out, nil
}

// HTTPMatcher calls a product matching service at {baseURL}/match.
type HTTPMatcher struct {
	baseURL string
	client  *http.Client
}

// NewHTTPMatcher creates a matcher client.
func NewHTTPMatcher(baseURL string, timeout time.Duration) *HTTPMatcher {
	return &HTTPMatcher{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

type matchRequest struct {
	TargetProduct  string         `json:"target_product"`
	Classification Classification `json:"classification"`
}

func (m *HTTPMatcher) Match(ctx context.Context, targetProduct string, c Classification) (*Match, error) {
	body, err := json.Marshal(matchRequest{TargetProduct: targetProduct, Classification: c})
	if err != nil {
		return nil, fmt.Errorf("failed to encode match request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/match", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build match request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	var out Match
	if err := do(m.client, req, &out); err != nil {
		return nil, fmt.Errorf("failed to match product: %w", err)
	}
	if out.Confidence < 0 || out.Confidence > 1 {
		return nil, fmt.Errorf("matcher returned confidence %v outside [0,1]", out.Confidence)
	}
	return &out, nil
}

func do(client *http.Client, req *http.Request, out any) error {
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body := io.LimitReader(resp.Body, maxResponseBytes)

	if resp.StatusCode == http.StatusUnsupportedMediaType {
		return model.ErrUnsupportedFile
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(body, 512))
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	if err := json.NewDecoder(body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
