// internal/transport/http/sync.go
package http

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"listings-service/internal/middleware"
	"listings-service/internal/sse"
	"listings-service/internal/sync"
	"listings-service/pkg/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

func toJSON(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		log.Printf("⚠️ toJSON marshal error: %v", err)
		return "{}"
	}
	return string(b)
}

// SyncRuns lists recent runs, newest first. ?object_type filters.
func (h *Handler) SyncRuns(c *fiber.Ctx) error {
	limit := getQueryInt(c, "limit", 50, 1, 200)

	runs, err := h.syncSvc.Runs(c.Context(), c.Query("object_type"), limit)
	if err != nil {
		log.Printf("❌ [SyncRuns] %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "failed to fetch sync runs"})
	}
	return c.JSON(fiber.Map{"success": true, "runs": runs})
}

func (h *Handler) SyncStatus(c *fiber.Ctx) error {
	status, err := h.syncSvc.Status(c.Context())
	if err != nil {
		log.Printf("❌ [SyncStatus] %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "failed to fetch sync status"})
	}
	return c.JSON(fiber.Map{"success": true, "status": status})
}

// StreamSyncEvents pushes live sync progress and account health changes over
// SSE. Auth already happened in SSEAuthMiddleware (token query param).
func (h *Handler) StreamSyncEvents(c *fiber.Ctx) error {
	userIDStr, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "user id not found in context"})
	}
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "invalid user id in context"})
	}

	connStart := time.Now()
	log.Printf("✅ [SSE] 🟢 Stream opened for user=%s", userID)

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no")
	c.Set("Transfer-Encoding", "chunked")

	if origin := c.Get("Origin"); origin != "" {
		c.Set("Access-Control-Allow-Origin", origin)
		c.Set("Access-Control-Allow-Credentials", "true")
	}

	// The stream writer runs after this handler returns, so it must not
	// touch the pooled fiber.Ctx. Everything it needs is captured here.
	broker := h.listings.GetSSEBroker()
	syncSvc := h.syncSvc
	reqCtx := c.Context()

	reqCtx.SetBodyStreamWriter(func(w *bufio.Writer) {
		clientChan := make(chan sse.Event, 10)
		broker.Register(userID, clientChan)
		defer func() {
			broker.Unregister(userID, clientChan)
			log.Printf("🔌 [SSE] 🔴 Stream closed for user=%s after %v", userID, time.Since(connStart))
		}()

		// Initial snapshot so a freshly opened dashboard shows current state
		// without waiting for the next run.
		if status, err := syncSvc.Status(reqCtx); err != nil {
			log.Printf("⚠️ [SSE] Failed to load sync status for user=%s: %v", userID, err)
		} else {
			fmt.Fprintf(w, "event: sync.status\ndata: %s\n\n", toJSON(status))
			if err := w.Flush(); err != nil {
				return
			}
		}

		fmt.Fprintf(w, "event: ready\ndata: %s\n\n", toJSON(fiber.Map{
			"status":  "ready",
			"at":      time.Now().Format(time.RFC3339Nano),
			"user_id": userID.String(),
		}))
		if err := w.Flush(); err != nil {
			return
		}

		done := reqCtx.Done()
		heartbeat := time.NewTicker(30 * time.Second)
		defer heartbeat.Stop()

		for {
			select {
			case <-done:
				log.Printf("🔌 [SSE] Context done for user=%s", userID)
				return

			case event, open := <-clientChan:
				if !open {
					return
				}
				payload, err := json.Marshal(event.Data)
				if err != nil {
					log.Printf("⚠️ [SSE] Failed to marshal %s event: %v", event.Type, err)
					continue
				}
				if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, payload); err != nil {
					log.Printf("⚠️ [SSE] Write error for user=%s: %v", userID, err)
					return
				}
				if err := w.Flush(); err != nil {
					return
				}

			case <-heartbeat.C:
				if _, err := w.WriteString(": heartbeat\n\n"); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					return
				}
			}
		}
	})

	return nil
}

func parseSince(c *fiber.Ctx) (time.Time, error) {
	s := c.Query("since")
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, s)
}

// TriggerContactSync starts a contact sync and blocks until it finishes.
// ?since=RFC3339 bounds an incremental run; omitted means full.
func (h *Handler) TriggerContactSync(c *fiber.Ctx) error {
	since, err := parseSince(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "invalid since (expect RFC3339)"})
	}

	run, err := h.syncSvc.SyncContactsSince(c.Context(), since, models.SyncTriggerService)
	return h.syncTriggerResponse(c, "TriggerContactSync", run, err)
}

func (h *Handler) TriggerCompanySync(c *fiber.Ctx) error {
	since, err := parseSince(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "invalid since (expect RFC3339)"})
	}

	run, err := h.syncSvc.SyncCompaniesSince(c.Context(), since, models.SyncTriggerService)
	return h.syncTriggerResponse(c, "TriggerCompanySync", run, err)
}

func (h *Handler) syncTriggerResponse(c *fiber.Ctx, op string, run *models.SyncRun, err error) error {
	if err != nil {
		if errors.Is(err, sync.ErrSyncInFlight) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"success": false, "error": err.Error()})
		}
		log.Printf("❌ [%s] %v", op, err)
		resp := fiber.Map{"success": false, "error": "sync failed"}
		if run != nil {
			resp["run"] = run
		}
		return c.Status(fiber.StatusInternalServerError).JSON(resp)
	}
	return c.JSON(fiber.Map{"success": true, "run": run})
}

// SyncSummaryReport aggregates a reporting window and emails it to the ops
// list. The window defaults to the trailing 7 days.
func (h *Handler) SyncSummaryReport(c *fiber.Ctx) error {
	var req struct {
		From *time.Time `json:"from"`
		To   *time.Time `json:"to"`
	}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "invalid request body"})
		}
	}

	to := time.Now().UTC()
	if req.To != nil {
		to = *req.To
	}
	from := to.AddDate(0, 0, -7)
	if req.From != nil {
		from = *req.From
	}
	if !from.Before(to) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "from must be before to"})
	}

	summary, err := h.syncSvc.Summarize(c.Context(), from, to)
	if err != nil {
		log.Printf("❌ [SyncSummaryReport] %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "failed to build summary"})
	}

	if err := h.notifier.SendSummary(c.Context(), summary); err != nil {
		log.Printf("❌ [SyncSummaryReport] Email failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "failed to email summary"})
	}

	return c.JSON(fiber.Map{"success": true, "summary": summary})
}
