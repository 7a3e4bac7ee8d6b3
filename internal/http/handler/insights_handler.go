package handler

import (
	"errors"
	"net/http"

	"github.com/nazlul/analytics-dash/internal/http/response"
	"github.com/nazlul/analytics-dash/internal/insights"
	"github.com/nazlul/analytics-dash/internal/observability"
)

type InsightsHandler struct {
	client *insights.Client
}

func NewInsightsHandler(client *insights.Client) *InsightsHandler {
	return &InsightsHandler{client: client}
}

// CampaignInsights proxies the ad account report. The upstream access
// token lives server-side only.
func (h *InsightsHandler) CampaignInsights(w http.ResponseWriter, r *http.Request) {
	rows, err := h.client.FetchCampaignInsights(r.Context())
	if err != nil {
		var upstream *insights.UpstreamError
		switch {
		case errors.Is(err, insights.ErrNotConfigured):
			observability.RecordInsightsFetch(r.Context(), "not_configured")
			response.Error(w, r, http.StatusInternalServerError, "NOT_CONFIGURED", "insights upstream not configured", nil)
		case errors.As(err, &upstream):
			// The Graph API's own status carries through to the caller.
			status := upstream.StatusCode
			if status < http.StatusBadRequest {
				status = http.StatusBadGateway
			}
			observability.RecordInsightsFetch(r.Context(), "upstream_error")
			response.Error(w, r, status, "UPSTREAM_ERROR", "failed to fetch insights", nil)
		default:
			observability.RecordInsightsFetch(r.Context(), "upstream_error")
			response.Error(w, r, http.StatusBadGateway, "UPSTREAM_ERROR", "failed to fetch insights", nil)
		}
		return
	}
	observability.RecordInsightsFetch(r.Context(), "success")
	response.JSON(w, r, http.StatusOK, map[string]any{"insights": rows})
}
