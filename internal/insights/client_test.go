package insights

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nazlul/analytics-dash/internal/config"
)

func newTestClient(baseURL string) *Client {
	cfg := &config.Config{
		FBGraphBaseURL: baseURL,
		FBAccessToken:  "test-token",
		FBAdAccountID:  "act_123",
	}
	return NewClient(cfg).WithBaseURL(baseURL)
}

func TestFetchCampaignInsights(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		var gotPath, gotFields, gotToken string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			gotFields = r.URL.Query().Get("fields")
			gotToken = r.URL.Query().Get("access_token")
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"data":[{"campaign_name":"Spring Sale","clicks":"120","impressions":"4000","ctr":"3.0","spend":"55.20"}]}`))
		}))
		defer server.Close()

		rows, err := newTestClient(server.URL).FetchCampaignInsights(context.Background())
		if err != nil {
			t.Fatalf("fetch: %v", err)
		}
		if gotPath != "/act_123/insights" {
			t.Fatalf("unexpected path: %q", gotPath)
		}
		if gotFields != "campaign_name,clicks,impressions,ctr,spend" {
			t.Fatalf("unexpected fields: %q", gotFields)
		}
		if gotToken != "test-token" {
			t.Fatalf("unexpected token: %q", gotToken)
		}
		if len(rows) != 1 || rows[0].CampaignName != "Spring Sale" || rows[0].Spend != "55.20" {
			t.Fatalf("unexpected rows: %+v", rows)
		}
	})

	t.Run("graph error payload", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"message":"Invalid OAuth access token","type":"OAuthException","code":190}}`))
		}))
		defer server.Close()

		_, err := newTestClient(server.URL).FetchCampaignInsights(context.Background())
		if !errors.Is(err, ErrUpstream) {
			t.Fatalf("expected ErrUpstream, got %v", err)
		}
		var upstream *UpstreamError
		if !errors.As(err, &upstream) || upstream.StatusCode != http.StatusBadRequest {
			t.Fatalf("expected upstream status 400, got %v", err)
		}
		if upstream.Message != "Invalid OAuth access token" {
			t.Fatalf("expected graph message carried, got %q", upstream.Message)
		}
	})

	t.Run("empty data", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"data":[]}`))
		}))
		defer server.Close()

		rows, err := newTestClient(server.URL).FetchCampaignInsights(context.Background())
		if err != nil {
			t.Fatalf("fetch: %v", err)
		}
		if len(rows) != 0 {
			t.Fatalf("expected no rows, got %+v", rows)
		}
	})

	t.Run("not configured", func(t *testing.T) {
		client := NewClient(&config.Config{FBGraphBaseURL: "https://graph.example.com"})
		if _, err := client.FetchCampaignInsights(context.Background()); !errors.Is(err, ErrNotConfigured) {
			t.Fatalf("expected ErrNotConfigured, got %v", err)
		}
	})

	t.Run("malformed body", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`not json`))
		}))
		defer server.Close()

		if _, err := newTestClient(server.URL).FetchCampaignInsights(context.Background()); !errors.Is(err, ErrUpstream) {
			t.Fatalf("expected ErrUpstream, got %v", err)
		}
	})
}
