package jobs

import (
	"log"
	"os"
	"strconv"
	"time"

	"coinops/engine"
	"coinops/models"

	"gorm.io/gorm"
)

// StartSessionJanitor cancels sessions that stayed Active past the horizon
// on machines flagged offline, where the hardware fault report never arrived.
// Cancellation clears the rule slot and writes no settlement. The returned
// stop func quiesces the job for graceful shutdown.
func StartSessionJanitor(db *gorm.DB, eng *engine.Engine) (stop func()) {
	horizon := 6 * time.Hour
	if v := os.Getenv("STALE_SESSION_HOURS"); v != "" {
		if hours, err := strconv.Atoi(v); err == nil && hours > 0 {
			horizon = time.Duration(hours) * time.Hour
		} else {
			log.Printf("⚠️  Invalid value for STALE_SESSION_HOURS: %s\n", v)
		}
	}

	ticker := time.NewTicker(5 * time.Minute)
	done := make(chan struct{})
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				cancelStaleSessions(db, eng, horizon)
			}
		}
	}()
	return func() { close(done) }
}

func cancelStaleSessions(db *gorm.DB, eng *engine.Engine, horizon time.Duration) {
	cutoff := time.Now().Add(-horizon)

	var stale []models.GameSession
	err := db.
		Joins("JOIN machines ON machines.id = game_sessions.machine_id").
		Where("game_sessions.status = ? AND game_sessions.start_time < ? AND machines.offline = ?",
			models.SessionStatusActive, cutoff, true).
		Find(&stale).Error
	if err != nil {
		log.Printf("❌ Failed to query stale sessions: %v", err)
		return
	}

	for _, s := range stale {
		if _, err := eng.CancelSession(s.MachineID); err != nil {
			log.Printf("❌ Failed to cancel stale session %s: %v", s.SessionID, err)
			continue
		}
		log.Printf("✅ Cancelled stale session %s on offline machine %d", s.SessionID, s.MachineID)
	}
}
