// internal/alerts/notifier.go
package alerts

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"listings-service/internal/config"
	"listings-service/internal/email"
	"listings-service/internal/email/templates"
	"listings-service/internal/fcm"
	"listings-service/internal/listing"
	"listings-service/internal/sync"
	"listings-service/pkg/models"

	"gorm.io/gorm"
)

// alertTimeout bounds the email+push fan-out triggered from sync and
// health-check code paths that carry no caller context.
const alertTimeout = 30 * time.Second

const checkedAtLayout = "2006-01-02 15:04 MST"

// Notifier turns operational events into emails for the agency ops list and
// FCM pushes for registered dashboard devices. Delivery is best effort: a
// failed alert is logged, never propagated back into the code path that
// raised it.
type Notifier struct {
	db     *gorm.DB
	sender *email.Sender
	fcm    *fcm.FCMClient // nil when FCM credentials are not configured
	cfg    *config.Config
}

func NewNotifier(sender *email.Sender, fcmClient *fcm.FCMClient, cfg *config.Config) *Notifier {
	return &Notifier{
		db:     listing.GetDB(),
		sender: sender,
		fcm:    fcmClient,
		cfg:    cfg,
	}
}

// SyncFailed reports a sync run that finished in the failed state.
func (n *Notifier) SyncFailed(run *models.SyncRun) {
	ctx, cancel := context.WithTimeout(context.Background(), alertTimeout)
	defer cancel()

	errMsg := ""
	if run.ErrorMessage != nil {
		errMsg = *run.ErrorMessage
	}

	html, err := templates.RenderSyncFailureEmail(templates.SyncFailureData{
		ObjectType:   run.ObjectType,
		Mode:         string(run.Mode),
		Trigger:      string(run.Trigger),
		RunID:        run.ID.String(),
		Synced:       run.RecordsSynced,
		Skipped:      run.RecordsSkipped,
		Failed:       run.RecordsFailed,
		ErrorMessage: errMsg,
		StartedAt:    run.StartedAt.Format(checkedAtLayout),
		Duration:     (time.Duration(run.DurationMS) * time.Millisecond).String(),
		DashboardURL: n.cfg.DashboardURL,
	})
	if err != nil {
		log.Printf("❌ [Alerts] Rendering sync failure email failed: %v", err)
		return
	}

	subject := fmt.Sprintf("[Listings] %s sync failed", run.ObjectType)
	n.email(ctx, subject, html)

	n.push(ctx, "Sync failed",
		fmt.Sprintf("%s %s sync failed: %d synced, %d failed", run.ObjectType, run.Mode, run.RecordsSynced, run.RecordsFailed),
		map[string]string{
			"type":        "sync_failed",
			"run_id":      run.ID.String(),
			"object_type": run.ObjectType,
		})
}

// AccountUnhealthy reports a connected account whose health probe started
// failing. Callers fire this only on the healthy to unhealthy transition, so
// a flapping account does not spam the ops list.
func (n *Notifier) AccountUnhealthy(acct *models.ConnectedAccount) {
	ctx, cancel := context.WithTimeout(context.Background(), alertTimeout)
	defer cancel()

	label := ""
	if acct.Label != nil {
		label = *acct.Label
	}
	lastErr := ""
	if acct.LastError != nil {
		lastErr = *acct.LastError
	}
	checkedAt := time.Now().UTC()
	if acct.LastCheckedAt != nil {
		checkedAt = *acct.LastCheckedAt
	}

	html, err := templates.RenderAccountUnhealthyEmail(templates.AccountUnhealthyData{
		AccountID:    acct.AccountID,
		Label:        label,
		LastError:    lastErr,
		CheckedAt:    checkedAt.Format(checkedAtLayout),
		DashboardURL: n.cfg.DashboardURL,
	})
	if err != nil {
		log.Printf("❌ [Alerts] Rendering account unhealthy email failed: %v", err)
		return
	}

	subject := fmt.Sprintf("[Listings] Connected account %s is unhealthy", acct.AccountID)
	n.email(ctx, subject, html)

	n.push(ctx, "Account unhealthy",
		fmt.Sprintf("Google Business Profile account %s failed its health check", acct.AccountID),
		map[string]string{
			"type":       "account_unhealthy",
			"account_id": acct.AccountID,
		})
}

// SendSummary emails an aggregate report for the window covered by summary.
func (n *Notifier) SendSummary(ctx context.Context, summary *sync.Summary) error {
	rows := make([]templates.SummaryRow, 0, len(summary.Objects))
	for _, obj := range summary.Objects {
		rows = append(rows, templates.SummaryRow{
			ObjectType: obj.ObjectType,
			Runs:       obj.Runs,
			Synced:     obj.RecordsSynced,
			Skipped:    obj.RecordsSkipped,
			Failed:     obj.RecordsFailed,
		})
	}

	html, err := templates.RenderSyncSummaryEmail(templates.SyncSummaryData{
		From:         summary.From.Format("2006-01-02"),
		To:           summary.To.Format("2006-01-02"),
		TotalRuns:    summary.TotalRuns,
		FailedRuns:   summary.FailedRuns,
		Synced:       summary.RecordsSynced,
		Skipped:      summary.RecordsSkipped,
		Failed:       summary.RecordsFailed,
		Rows:         rows,
		DashboardURL: n.cfg.DashboardURL,
	})
	if err != nil {
		return fmt.Errorf("failed to render sync summary email: %w", err)
	}

	recipients := n.recipients()
	if len(recipients) == 0 {
		return fmt.Errorf("no alert recipients configured")
	}

	subject := fmt.Sprintf("[Listings] Sync summary %s to %s",
		summary.From.Format("2006-01-02"), summary.To.Format("2006-01-02"))
	return n.sender.SendToAll(ctx, recipients, subject, html)
}

func (n *Notifier) recipients() []string {
	var out []string
	for _, addr := range strings.Split(n.cfg.AlertEmails, ",") {
		if addr = strings.TrimSpace(addr); addr != "" {
			out = append(out, addr)
		}
	}
	return out
}

func (n *Notifier) email(ctx context.Context, subject, html string) {
	recipients := n.recipients()
	if len(recipients) == 0 {
		log.Printf("⚠️ [Alerts] No alert recipients configured, skipping email %q", subject)
		return
	}
	if err := n.sender.SendToAll(ctx, recipients, subject, html); err != nil {
		log.Printf("❌ [Alerts] Alert email %q failed: %v", subject, err)
	}
}

func (n *Notifier) push(ctx context.Context, title, body string, data map[string]string) {
	if n.fcm == nil {
		return
	}

	var tokens []string
	err := n.db.WithContext(ctx).Model(&models.DeviceToken{}).Pluck("token", &tokens).Error
	if err != nil {
		log.Printf("❌ [Alerts] Loading device tokens failed: %v", err)
		return
	}
	if len(tokens) == 0 {
		return
	}

	if err := n.fcm.SendToMultipleTokens(ctx, tokens, title, body, data); err != nil {
		log.Printf("❌ [Alerts] Push alert failed: %v", err)
	}
}
