package explain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	dErrors "iam-sentinel/pkg/domain-errors"
)

const defaultMaxNewTokens = 300

// HTTPGenerator calls a hosted text-generation endpoint. The request and
// response shapes follow the common inference-API convention: a JSON body
// with an "inputs" field, answered by either an array of candidates or a
// single object carrying "generated_text".
type HTTPGenerator struct {
	endpoint   string
	apiKey     string
	model      string
	timeout    time.Duration
	httpClient *http.Client
}

var _ Generator = (*HTTPGenerator)(nil)

// HTTPGeneratorOption configures the HTTPGenerator.
type HTTPGeneratorOption func(*HTTPGenerator)

// WithHTTPClient sets a custom HTTP client (for testing).
func WithHTTPClient(client *http.Client) HTTPGeneratorOption {
	return func(g *HTTPGenerator) {
		g.httpClient = client
	}
}

// NewHTTPGenerator creates a generator backed by an external inference service.
func NewHTTPGenerator(endpoint, apiKey, model string, timeout time.Duration, opts ...HTTPGeneratorOption) *HTTPGenerator {
	g := &HTTPGenerator{
		endpoint: endpoint,
		apiKey:   apiKey,
		model:    model,
		timeout:  timeout,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

type generateRequest struct {
	Inputs     string             `json:"inputs"`
	Parameters generateParameters `json:"parameters"`
	Options    generateOptions    `json:"options"`
}

type generateParameters struct {
	MaxNewTokens   int  `json:"max_new_tokens"`
	ReturnFullText bool `json:"return_full_text"`
}

type generateOptions struct {
	WaitForModel bool `json:"wait_for_model"`
}

type generateCandidate struct {
	GeneratedText string `json:"generated_text"`
}

// Generate submits the prompt and returns the trimmed completion.
func (g *HTTPGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	reqBody, err := json.Marshal(generateRequest{
		Inputs: prompt,
		Parameters: generateParameters{
			MaxNewTokens:   defaultMaxNewTokens,
			ReturnFullText: false,
		},
		Options: generateOptions{WaitForModel: true},
	})
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "marshal generate request")
	}

	url := strings.TrimRight(g.endpoint, "/")
	if g.model != "" {
		url = fmt.Sprintf("%s/models/%s", url, g.model)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "create generate request")
	}
	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", dErrors.Wrap(err, dErrors.CodeTimeout, "generation request timed out")
		}
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "execute generate request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "read generate response")
	}
	if resp.StatusCode != http.StatusOK {
		return "", dErrors.New(dErrors.CodeInternal,
			fmt.Sprintf("generation service returned status %d", resp.StatusCode))
	}

	text, err := parseGenerated(body)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// parseGenerated accepts both response shapes: `[{"generated_text": ...}]`
// and `{"generated_text": ...}`.
func parseGenerated(body []byte) (string, error) {
	var candidates []generateCandidate
	if err := json.Unmarshal(body, &candidates); err == nil && len(candidates) > 0 {
		return candidates[0].GeneratedText, nil
	}
	var single generateCandidate
	if err := json.Unmarshal(body, &single); err == nil && single.GeneratedText != "" {
		return single.GeneratedText, nil
	}
	return "", dErrors.New(dErrors.CodeInternal, "generation response has no generated_text")
}
