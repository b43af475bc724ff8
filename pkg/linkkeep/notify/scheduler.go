// Package notify holds the deadline-notification contract. Actual delivery
// is an external concern; the catalog only needs to schedule and cancel by
// key, where the key is the canonical URL.
package notify

import (
	"time"

	"go.uber.org/zap"
)

// Scheduler schedules and cancels deadline notifications.
type Scheduler interface {
	Schedule(key, title string, fireAt time.Time)
	Cancel(key string)
}

// LogScheduler is the default Scheduler: it only records intent in the log.
type LogScheduler struct {
	log *zap.Logger
}

// NewLogScheduler creates a log-only scheduler.
func NewLogScheduler(log *zap.Logger) *LogScheduler {
	return &LogScheduler{log: log}
}

func (s *LogScheduler) Schedule(key, title string, fireAt time.Time) {
	s.log.Info("deadline notification scheduled",
		zap.String("key", key),
		zap.String("title", title),
		zap.Time("fire_at", fireAt))
}

func (s *LogScheduler) Cancel(key string) {
	s.log.Info("deadline notification cancelled", zap.String("key", key))
}
