// listings-service/internal/email/templates/sync_summary.go
package templates

import (
	"html/template"
	"strings"
	"time"
)

var syncSummaryTmpl = template.Must(template.New("sync_summary").Parse(syncSummaryHTML))

// SummaryRow is one object type's aggregate over the reporting window.
type SummaryRow struct {
	ObjectType string
	Runs       int
	Synced     int
	Skipped    int
	Failed     int
}

type SyncSummaryData struct {
	From         string
	To           string
	TotalRuns    int
	FailedRuns   int
	Synced       int
	Skipped      int
	Failed       int
	Rows         []SummaryRow
	DashboardURL string
	Year         int // auto-set if 0
}

func RenderSyncSummaryEmail(data SyncSummaryData) (string, error) {
	if data.Year == 0 {
		data.Year = time.Now().Year()
	}
	var buf strings.Builder
	err := syncSummaryTmpl.Execute(&buf, data)
	return buf.String(), err
}
