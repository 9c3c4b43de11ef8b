package stream

import (
	"context"
	"fmt"
	"time"

	"github.com/crewdeck/crewdeck/internal/models"
	"gorm.io/gorm"
)

// memoryPoller emits one "memory" event per board memory created at-or-
// after the watermark, ascending by creation time.
type memoryPoller struct {
	boardID   string
	watermark time.Time
}

// MemoryEvents starts a background poller for a board's memory feed.
func MemoryEvents(ctx context.Context, db *gorm.DB, boardID, sinceValue string) <-chan Event {
	p := &memoryPoller{boardID: boardID, watermark: SinceOrNow(sinceValue)}
	out := make(chan Event, channelBuffer)
	go run(ctx, db, p, PollInterval, out)
	return out
}

func (p *memoryPoller) poll(db *gorm.DB) ([]Event, error) {
	var memories []models.BoardMemory
	if err := db.Where("board_id = ? AND created_at >= ?", p.boardID, p.watermark).
		Order("created_at ASC").
		Find(&memories).Error; err != nil {
		return nil, fmt.Errorf("query memories: %w", err)
	}
	if len(memories) == 0 {
		return nil, nil
	}

	var total int64
	if err := db.Model(&models.BoardMemory{}).
		Where("board_id = ?", p.boardID).
		Count(&total).Error; err != nil {
		return nil, fmt.Errorf("count memories: %w", err)
	}

	events := make([]Event, 0, len(memories))
	for i := range memories {
		p.watermark = advance(p.watermark, memories[i].CreatedAt)
		events = append(events, Event{Name: "memory", Data: map[string]any{
			"memory":         memories[i],
			"memories_count": total,
		}})
	}
	return events, nil
}
