package templates

import (
	_ "embed"
)

//go:embed sync_failure.html
var syncFailureHTML string

//go:embed account_unhealthy.html
var accountUnhealthyHTML string

//go:embed sync_summary.html
var syncSummaryHTML string
