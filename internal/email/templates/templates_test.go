package templates

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderSyncFailureEmail(t *testing.T) {
	html, err := RenderSyncFailureEmail(SyncFailureData{
		ObjectType:   "contacts",
		Mode:         "incremental",
		Trigger:      "scheduled",
		RunID:        "7b46a6a5-55a7-4f0f-9a3e-94cb49a3e2d1",
		Synced:       240,
		Skipped:      12,
		Failed:       3,
		ErrorMessage: "hubspot api error (status 500)",
		StartedAt:    "2024-06-01 03:00 UTC",
		Duration:     "42s",
		DashboardURL: "https://dash.example.com",
	})
	require.NoError(t, err)

	assert.Contains(t, html, "contacts")
	assert.Contains(t, html, "incremental")
	assert.Contains(t, html, "hubspot api error (status 500)")
	assert.Contains(t, html, "https://dash.example.com/sync")
	assert.Contains(t, html, ">3<")
	// Year defaults to the current year
	assert.Contains(t, html, fmt.Sprintf("%d", time.Now().Year()))
}

func TestRenderSyncFailureEscapesErrorText(t *testing.T) {
	html, err := RenderSyncFailureEmail(SyncFailureData{
		ObjectType:   "contacts",
		ErrorMessage: `<script>alert("x")</script>`,
	})
	require.NoError(t, err)
	assert.NotContains(t, html, "<script>")
}

func TestRenderAccountUnhealthyEmail(t *testing.T) {
	html, err := RenderAccountUnhealthyEmail(AccountUnhealthyData{
		AccountID: "apn_8kVmX2",
		Label:     "listings@agency.io",
		LastError: "proxy call failed (status 401)",
		CheckedAt: "2024-06-01 14:05 UTC",
	})
	require.NoError(t, err)

	assert.Contains(t, html, "apn_8kVmX2")
	assert.Contains(t, html, "listings@agency.io")
	assert.Contains(t, html, "proxy call failed (status 401)")
}

func TestRenderAccountUnhealthyOmitsEmptyLabel(t *testing.T) {
	html, err := RenderAccountUnhealthyEmail(AccountUnhealthyData{AccountID: "apn_8kVmX2"})
	require.NoError(t, err)
	assert.NotContains(t, html, "Google account")
}

func TestRenderSyncSummaryEmail(t *testing.T) {
	html, err := RenderSyncSummaryEmail(SyncSummaryData{
		From:       "2024-05-25",
		To:         "2024-06-01",
		TotalRuns:  14,
		FailedRuns: 1,
		Synced:     3200,
		Skipped:    41,
		Failed:     5,
		Rows: []SummaryRow{
			{ObjectType: "contacts", Runs: 8, Synced: 2900, Skipped: 30, Failed: 5},
			{ObjectType: "companies", Runs: 6, Synced: 300, Skipped: 11},
		},
	})
	require.NoError(t, err)

	assert.Contains(t, html, "2024-05-25")
	assert.Contains(t, html, "contacts")
	assert.Contains(t, html, "companies")
	assert.Contains(t, html, ">2900<")
}
