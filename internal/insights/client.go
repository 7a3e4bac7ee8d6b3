package insights

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/nazlul/analytics-dash/internal/config"
)

var (
	ErrNotConfigured = errors.New("insights upstream not configured")
	ErrUpstream      = errors.New("insights upstream request failed")
)

// UpstreamError is a non-2xx answer from the Graph API. The transport
// passes StatusCode through to the caller.
type UpstreamError struct {
	StatusCode int
	Message    string
}

func (e *UpstreamError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("insights upstream status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("insights upstream status %d", e.StatusCode)
}

func (e *UpstreamError) Unwrap() error { return ErrUpstream }

// CampaignInsight is one row of the ad account insights report. Numeric
// fields arrive from the Graph API as strings and are passed through
// untouched; formatting is the frontend's concern.
type CampaignInsight struct {
	CampaignName string `json:"campaign_name"`
	Clicks       string `json:"clicks"`
	Impressions  string `json:"impressions"`
	CTR          string `json:"ctr"`
	Spend        string `json:"spend"`
}

type insightsEnvelope struct {
	Data  []CampaignInsight `json:"data"`
	Error *graphError       `json:"error"`
}

type graphError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    int    `json:"code"`
}

// Client proxies campaign insight reports from the Graph API. The
// server-held access token never reaches the browser.
type Client struct {
	baseURL     string
	accessToken string
	adAccountID string
	httpClient  *http.Client
}

func NewClient(cfg *config.Config) *Client {
	return &Client{
		baseURL:     strings.TrimSuffix(cfg.FBGraphBaseURL, "/"),
		accessToken: cfg.FBAccessToken,
		adAccountID: cfg.FBAdAccountID,
		httpClient: &http.Client{
			Timeout:   15 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// WithBaseURL points the client at a different Graph endpoint.
// Used by tests.
func (c *Client) WithBaseURL(baseURL string) *Client {
	clone := *c
	clone.baseURL = strings.TrimSuffix(baseURL, "/")
	return &clone
}

func (c *Client) Configured() bool {
	return c.accessToken != "" && c.adAccountID != ""
}

func (c *Client) FetchCampaignInsights(ctx context.Context) ([]CampaignInsight, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	endpoint := fmt.Sprintf("%s/%s/insights", c.baseURL, url.PathEscape(c.adAccountID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	q := req.URL.Query()
	q.Set("fields", "campaign_name,clicks,impressions,ctr,spend")
	q.Set("level", "campaign")
	q.Set("access_token", c.accessToken)
	req.URL.RawQuery = q.Encode()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
	}

	if resp.StatusCode != http.StatusOK {
		upstream := &UpstreamError{StatusCode: resp.StatusCode}
		var failure insightsEnvelope
		if err := json.Unmarshal(body, &failure); err == nil && failure.Error != nil {
			upstream.Message = failure.Error.Message
		}
		return nil, upstream
	}

	var envelope insightsEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("%w: decode response: %w", ErrUpstream, err)
	}
	if envelope.Data == nil {
		return []CampaignInsight{}, nil
	}
	return envelope.Data, nil
}
