package intelligence

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
)

const (
	defaultTimeout  = 90 * time.Second
	maxResponseSize = 1 << 20
)

// Analyzer scores a proposal. Implemented by Client and by test fakes.
type Analyzer interface {
	Analyze(ctx context.Context, req AnalyzeRequest) (AnalyzeResponse, error)
}

// AnalyzeRequest is the body of POST /analyze.
type AnalyzeRequest struct {
	ProposalID    string `json:"proposal_id"`
	ProposalText  string `json:"proposal_text"`
	WalletAddress string `json:"wallet_address"`
}

// RiskProfile lists alerts raised by individual agents.
type RiskProfile struct {
	AgentAlerts []string `json:"agent_alerts"`
}

// Snapshot is the structured synopsis shown to human reviewers.
type Snapshot struct {
	ExecutiveSummary string         `json:"executive_summary"`
	Deliverables     []string       `json:"deliverables"`
	Timeline         string         `json:"timeline"`
	BudgetBreakdown  map[string]any `json:"budget_breakdown"`
	RiskProfile      RiskProfile    `json:"risk_profile"`
}

// AnalyzeResponse is the scorer's verdict for one proposal.
type AnalyzeResponse struct {
	ProposalID       string          `json:"proposal_id"`
	ReputationScore  float64         `json:"agent_1_score"`
	NLPScore         float64         `json:"agent_2_score"`
	MediatorScore    float64         `json:"agent_3_score"`
	CompositeScore   float64         `json:"composite_risk_score"`
	ReputationReason string          `json:"agent_1_reasoning"`
	NLPReason        string          `json:"agent_2_reasoning"`
	MediatorReason   string          `json:"agent_3_reasoning"`
	RedFlags         []string        `json:"red_flags"`
	Snapshot         Snapshot        `json:"snapshot"`
	Raw              json.RawMessage `json:"-"`
}

// AgentBreakdown returns per-agent scores and reasoning keyed by agent name.
func (r AnalyzeResponse) AgentBreakdown() map[string]any {
	return map[string]any{
		"reputation": map[string]any{"score": r.ReputationScore, "reasoning": r.ReputationReason},
		"nlp":        map[string]any{"score": r.NLPScore, "reasoning": r.NLPReason},
		"mediator":   map[string]any{"score": r.MediatorScore, "reasoning": r.MediatorReason},
		"redFlags":   r.RedFlags,
	}
}

// SimulateResponse is the stateless feedback for a draft proposal.
type SimulateResponse struct {
	SuccessProbability float64  `json:"success_probability"`
	RiskScore          float64  `json:"risk_score"`
	Classification     string   `json:"classification"`
	Suggestions        []string `json:"suggestions"`
	RedFlags           []string `json:"red_flags"`
}

// HealthResponse mirrors GET /health.
type HealthResponse struct {
	Status  string            `json:"status"`
	Version string            `json:"version"`
	Agents  map[string]string `json:"agents"`
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("intelligence http status %d: %s", e.StatusCode, e.Body)
}

// Client calls the Intelligence scoring service over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient constructs a Client. A non-positive timeout uses the default.
func NewClient(baseURL string, timeout time.Duration) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("INTELLIGENCE_URL is required")
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// Analyze scores a proposal. The raw response body is kept on the result for archiving.
func (c *Client) Analyze(ctx context.Context, req AnalyzeRequest) (AnalyzeResponse, error) {
	if strings.TrimSpace(req.ProposalID) == "" {
		return AnalyzeResponse{}, errors.New("proposal id is required")
	}
	body, err := c.post(ctx, "/analyze", req)
	if err != nil {
		return AnalyzeResponse{}, err
	}
	var out AnalyzeResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return AnalyzeResponse{}, fmt.Errorf("intelligence analyze parse: %w", err)
	}
	if out.CompositeScore < 0 || out.CompositeScore > 100 {
		return AnalyzeResponse{}, fmt.Errorf("intelligence analyze: composite score %.2f out of range", out.CompositeScore)
	}
	out.Raw = json.RawMessage(body)
	return out, nil
}

// Simulate scores a draft without persisting anything.
func (c *Client) Simulate(ctx context.Context, draftText string) (SimulateResponse, error) {
	if strings.TrimSpace(draftText) == "" {
		return SimulateResponse{}, errors.New("draft text is required")
	}
	body, err := c.post(ctx, "/simulate", map[string]string{"draft_text": draftText})
	if err != nil {
		return SimulateResponse{}, err
	}
	var out SimulateResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return SimulateResponse{}, fmt.Errorf("intelligence simulate parse: %w", err)
	}
	return out, nil
}

// Health queries the scorer's health endpoint.
func (c *Client) Health(ctx context.Context) (HealthResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return HealthResponse{}, err
	}
	body, err := c.do(httpReq)
	if err != nil {
		return HealthResponse{}, err
	}
	var out HealthResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return HealthResponse{}, fmt.Errorf("intelligence health parse: %w", err)
	}
	return out, nil
}

func (c *Client) post(ctx context.Context, path string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	return c.do(httpReq)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "Client.Timeout") {
			return nil, fmt.Errorf("intelligence request timeout: %w", err)
		}
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return body, nil
}

var _ Analyzer = (*Client)(nil)
