// listings-service/internal/email/templates/account_unhealthy.go
package templates

import (
	"html/template"
	"strings"
	"time"
)

var accountUnhealthyTmpl = template.Must(template.New("account_unhealthy").Parse(accountUnhealthyHTML))

type AccountUnhealthyData struct {
	AccountID    string // proxy-assigned id ("apn_...")
	Label        string // connected Google account email, may be empty
	LastError    string
	CheckedAt    string
	DashboardURL string
	Year         int // auto-set if 0
}

func RenderAccountUnhealthyEmail(data AccountUnhealthyData) (string, error) {
	if data.Year == 0 {
		data.Year = time.Now().Year()
	}
	var buf strings.Builder
	err := accountUnhealthyTmpl.Execute(&buf, data)
	return buf.String(), err
}
