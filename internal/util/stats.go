package util

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/pterm/pterm"
)

// ──────────────────────────────────────────────────────────────────────────────
// Global stats singleton
// ──────────────────────────────────────────────────────────────────────────────

// Stats is the process-wide RPC traffic counter.
var Stats = &stats{}

type stats struct {
	RequestsSent      atomic.Int64 // cumulative requests sent since process start
	ResponsesReceived atomic.Int64 // cumulative responses (success or error) received
	NotificationsSent atomic.Int64 // cumulative notifications sent
	NotificationsRecv atomic.Int64 // cumulative notifications received
	Timeouts          atomic.Int64 // cumulative requests that settled via timeout
	PongsReceived     atomic.Int64 // cumulative liveness replies observed
}

func (s *stats) AddRequestSent()      { s.RequestsSent.Add(1) }
func (s *stats) AddResponseReceived() { s.ResponsesReceived.Add(1) }
func (s *stats) AddNotificationSent() { s.NotificationsSent.Add(1) }
func (s *stats) AddNotificationRecv() { s.NotificationsRecv.Add(1) }
func (s *stats) AddTimeout()          { s.Timeouts.Add(1) }
func (s *stats) AddPongReceived()     { s.PongsReceived.Add(1) }

// ──────────────────────────────────────────────────────────────────────────────
// Periodic reporter
// ──────────────────────────────────────────────────────────────────────────────

// StartStatsReporter launches a goroutine that logs peer traffic statistics
// every 10 seconds. It stops when ctx is cancelled.
func StartStatsReporter(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()

		var prevReq, prevResp, prevNotifySent, prevNotifyRecv int64
		for {
			select {
			case <-ticker.C:
				req := Stats.RequestsSent.Load()
				resp := Stats.ResponsesReceived.Load()
				notifySent := Stats.NotificationsSent.Load()
				notifyRecv := Stats.NotificationsRecv.Load()

				dReq := req - prevReq
				dResp := resp - prevResp
				dNotifySent := notifySent - prevNotifySent
				dNotifyRecv := notifyRecv - prevNotifyRecv

				if dReq > 0 || dResp > 0 || dNotifySent > 0 || dNotifyRecv > 0 {
					pterm.DefaultLogger.Info(formatStats(dReq, dResp, dNotifySent, dNotifyRecv, Stats.Timeouts.Load()))
				}

				prevReq, prevResp, prevNotifySent, prevNotifyRecv = req, resp, notifySent, notifyRecv

			case <-ctx.Done():
				return
			}
		}
	}()
}

// formatStats returns a formatted string of the current stats for display in the logger.
func formatStats(req, resp, notifySent, notifyRecv, timeouts int64) string {
	return fmt.Sprintf("req: %3d/10s | resp: %3d/10s | notify: %3d↑ %3d↓ | timeouts: %d",
		req, resp, notifySent, notifyRecv, timeouts)
}
