// internal/email/templates/sync_failure.go
package templates

import (
	"html/template"
	"strings"
	"time"
)

var syncFailureTmpl = template.Must(template.New("sync_failure").Parse(syncFailureHTML))

type SyncFailureData struct {
	ObjectType   string // "contacts" | "companies"
	Mode         string // "full" | "incremental"
	Trigger      string // "scheduled" | "manual" | "service"
	RunID        string
	Synced       int
	Skipped      int
	Failed       int
	ErrorMessage string // empty when the run completed but had record failures
	StartedAt    string
	Duration     string
	DashboardURL string
	Year         int // auto-set if 0
}

func RenderSyncFailureEmail(data SyncFailureData) (string, error) {
	if data.Year == 0 {
		data.Year = time.Now().Year()
	}
	var buf strings.Builder
	err := syncFailureTmpl.Execute(&buf, data)
	return buf.String(), err
}
