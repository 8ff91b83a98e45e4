package workers

import (
	"context"
	"log"
	"time"

	"dare-engine/models"
	"dare-engine/services"

	"gorm.io/gorm"
)

// OutboxWorker drains the settlement-instruction and notification outboxes.
// Rows are written inside the same transaction as the state change that
// caused them; this worker dispatches them *after* commit so no database
// transaction ever spans a network call to an external collaborator.
type OutboxWorker struct {
	DB       *gorm.DB
	Escrow   *services.EscrowClient
	Notifier *services.NotifierClient
	Batch    int
}

func NewOutboxWorker(db *gorm.DB, escrow *services.EscrowClient, notifier *services.NotifierClient) *OutboxWorker {
	return &OutboxWorker{DB: db, Escrow: escrow, Notifier: notifier, Batch: 50}
}

// Poll runs until the context is cancelled. Dispatch is at-least-once: a row
// is only marked dispatched after the collaborator acknowledged it, so the
// receiving side must dedupe on instruction/event id.
func (w *OutboxWorker) Poll(ctx context.Context, interval time.Duration) {
	log.Println("Starting outbox dispatch worker...")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Outbox dispatch worker stopped.")
			return
		case <-ticker.C:
			w.dispatchInstructions(ctx)
			w.dispatchEvents(ctx)
		}
	}
}

func (w *OutboxWorker) dispatchInstructions(ctx context.Context) {
	var pending []models.SettlementInstruction
	if err := w.DB.Where("dispatched = ?", false).
		Order("created_at ASC").
		Limit(w.Batch).
		Find(&pending).Error; err != nil {
		log.Printf("❌ [Outbox] failed to load pending instructions: %v", err)
		return
	}

	for i := range pending {
		inst := &pending[i]
		if err := w.Escrow.DispatchInstruction(ctx, inst); err != nil {
			log.Printf("❌ [Outbox] instruction %s dispatch failed (attempt %d): %v", inst.ID, inst.Attempts+1, err)
			if uerr := w.DB.Model(inst).Update("attempts", inst.Attempts+1).Error; uerr != nil {
				log.Printf("❌ [Outbox] failed to record attempt for instruction %s: %v", inst.ID, uerr)
			}
			continue
		}
		now := time.Now()
		if err := w.DB.Model(inst).Updates(map[string]interface{}{
			"dispatched":    true,
			"dispatched_at": now,
			"attempts":      inst.Attempts + 1,
		}).Error; err != nil {
			log.Printf("❌ [Outbox] failed to mark instruction %s dispatched: %v", inst.ID, err)
			continue
		}
		log.Printf("💸 [Outbox] instruction %s (%s %.2f → %s) dispatched to escrow",
			inst.ID, inst.Type, inst.Amount, inst.RecipientID)
	}
}

func (w *OutboxWorker) dispatchEvents(ctx context.Context) {
	var pending []models.NotificationEvent
	if err := w.DB.Where("dispatched = ?", false).
		Order("created_at ASC").
		Limit(w.Batch).
		Find(&pending).Error; err != nil {
		log.Printf("❌ [Outbox] failed to load pending events: %v", err)
		return
	}

	for i := range pending {
		event := &pending[i]
		if err := w.Notifier.DispatchEvent(ctx, event); err != nil {
			log.Printf("❌ [Outbox] event %s dispatch failed (attempt %d): %v", event.ID, event.Attempts+1, err)
			if uerr := w.DB.Model(event).Update("attempts", event.Attempts+1).Error; uerr != nil {
				log.Printf("❌ [Outbox] failed to record attempt for event %s: %v", event.ID, uerr)
			}
			continue
		}
		now := time.Now()
		if err := w.DB.Model(event).Updates(map[string]interface{}{
			"dispatched":    true,
			"dispatched_at": now,
			"attempts":      event.Attempts + 1,
		}).Error; err != nil {
			log.Printf("❌ [Outbox] failed to mark event %s dispatched: %v", event.ID, err)
			continue
		}
		log.Printf("🔔 [Outbox] event %s (%s) dispatched to notification channel", event.ID, event.Kind)
	}
}
