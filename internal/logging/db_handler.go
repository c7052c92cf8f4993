package logging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/ahmetcoskunkizilkaya/watchlist-backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	defaultBatchSize     = 50
	defaultFlushInterval = 5 * time.Second
)

// DBHandler is an slog.Handler that batches ERROR+ records into the
// system_logs table. Writes happen off the logging path.
type DBHandler struct {
	*sink
	attrs []slog.Attr
	group string
}

type sink struct {
	db        *gorm.DB
	level     slog.Level
	batchSize int
	interval  time.Duration
	// fallback reports flush failures without feeding them back into the buffer.
	fallback *slog.Logger

	mu     sync.Mutex
	buffer []models.SystemLog

	done     chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once
	flushing sync.WaitGroup
}

type DBOption func(*sink)

func WithBatchSize(n int) DBOption {
	return func(s *sink) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

func WithFlushInterval(d time.Duration) DBOption {
	return func(s *sink) {
		if d > 0 {
			s.interval = d
		}
	}
}

func WithMinLevel(l slog.Level) DBOption {
	return func(s *sink) { s.level = l }
}

func NewDBHandler(db *gorm.DB, opts ...DBOption) *DBHandler {
	s := &sink{
		db:        db,
		level:     slog.LevelError,
		batchSize: defaultBatchSize,
		interval:  defaultFlushInterval,
		fallback:  slog.New(slog.NewJSONHandler(os.Stderr, nil)),
		done:      make(chan struct{}),
		stopped:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.buffer = make([]models.SystemLog, 0, s.batchSize)
	go s.flushLoop()
	return &DBHandler{sink: s}
}

func (s *sink) flushLoop() {
	defer close(s.stopped)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.Flush()
		case <-s.done:
			s.Flush()
			return
		}
	}
}

// Flush writes everything buffered so far.
func (s *sink) Flush() {
	s.mu.Lock()
	if len(s.buffer) == 0 {
		s.mu.Unlock()
		return
	}
	batch := s.buffer
	s.buffer = make([]models.SystemLog, 0, s.batchSize)
	s.mu.Unlock()

	if err := s.db.CreateInBatches(batch, s.batchSize).Error; err != nil {
		s.fallback.Error("failed to flush system logs to DB", "error", err, "count", len(batch))
	}
}

// Stop flushes the remaining buffer and ends the background loop. Safe to
// call more than once.
func (s *sink) Stop() {
	s.stopOnce.Do(func() {
		// under mu so Handle never schedules a flush after this point
		s.mu.Lock()
		close(s.done)
		s.mu.Unlock()
	})
	<-s.stopped
	s.flushing.Wait()
}

func (h *DBHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level && !h.stopping()
}

// stopping reports whether Stop has been called. Records arriving after
// that point are dropped; the flush loop will not write them.
func (s *sink) stopping() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (h *DBHandler) Handle(_ context.Context, record slog.Record) error {
	if h.stopping() {
		return nil
	}

	entry := models.SystemLog{
		ID:        uuid.New(),
		Timestamp: record.Time.UTC(),
		Level:     record.Level.String(),
		Message:   record.Message,
	}

	extra := make(map[string]any)
	for _, a := range h.attrs {
		assign(&entry, extra, a)
	}
	record.Attrs(func(a slog.Attr) bool {
		assign(&entry, extra, h.qualify(a))
		return true
	})

	if len(extra) > 0 {
		if b, err := json.Marshal(extra); err == nil {
			entry.Extra = datatypes.JSON(b)
		}
	}

	h.mu.Lock()
	if h.stopping() {
		h.mu.Unlock()
		return nil
	}
	h.buffer = append(h.buffer, entry)
	if len(h.buffer) >= h.batchSize {
		h.flushing.Add(1)
		go func() {
			defer h.flushing.Done()
			h.Flush()
		}()
	}
	h.mu.Unlock()
	return nil
}

// qualify prefixes the key with the open group, so grouped attrs never
// land in the dedicated columns.
func (h *DBHandler) qualify(a slog.Attr) slog.Attr {
	if h.group != "" {
		a.Key = h.group + "." + a.Key
	}
	return a
}

func assign(entry *models.SystemLog, extra map[string]any, a slog.Attr) {
	v := a.Value.Resolve()
	switch a.Key {
	case "request_id":
		entry.RequestID = v.String()
	case "user_id":
		if id, ok := userID(v); ok {
			entry.UserID = &id
		} else {
			extra[a.Key] = attrValue(v)
		}
	case "email":
		entry.Email = v.String()
	case "action":
		entry.Action = v.String()
	case "error":
		entry.Error = v.String()
	default:
		extra[a.Key] = attrValue(v)
	}
}

func userID(v slog.Value) (uint, bool) {
	switch v.Kind() {
	case slog.KindUint64:
		return uint(v.Uint64()), true
	case slog.KindInt64:
		if v.Int64() >= 0 {
			return uint(v.Int64()), true
		}
	}
	return 0, false
}

func attrValue(v slog.Value) any {
	switch v.Kind() {
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return err.Error()
		}
		if s, ok := v.Any().(fmt.Stringer); ok {
			return s.String()
		}
		return v.Any()
	case slog.KindGroup:
		m := make(map[string]any, len(v.Group()))
		for _, a := range v.Group() {
			m[a.Key] = attrValue(a.Value.Resolve())
		}
		return m
	default:
		return v.Any()
	}
}

func (h *DBHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = append([]slog.Attr{}, h.attrs...)
	for _, a := range attrs {
		next.attrs = append(next.attrs, h.qualify(a))
	}
	return &next
}

// WithGroup nests later attributes under the group name inside Extra.
func (h *DBHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	if h.group != "" {
		name = h.group + "." + name
	}
	next.group = name
	return &next
}
