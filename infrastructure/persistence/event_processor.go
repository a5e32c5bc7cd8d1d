package persistence

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tolik-unicornrider/llm-bias-detector/domain/persistence"
)

const (
	defaultQueueSize   = 1000
	defaultWorkerCount = 2
	writeTimeout       = 5 * time.Second
)

// EventProcessor applies persistence events to the repositories on background
// workers. Enqueueing never blocks the caller: a full queue drops the event
// with a warning rather than stalling a submission.
type EventProcessor struct {
	sessions persistence.SessionRepository
	messages persistence.MessageRepository
	reports  persistence.ReportRepository

	queue   chan interface{}
	workers int

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	processed atomic.Int64
	errors    atomic.Int64
}

// ProcessorOption customizes an EventProcessor.
type ProcessorOption func(*EventProcessor)

// WithWorkers sets the worker goroutine count.
func WithWorkers(n int) ProcessorOption {
	return func(p *EventProcessor) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithQueueSize sets the event buffer size.
func WithQueueSize(n int) ProcessorOption {
	return func(p *EventProcessor) {
		if n > 0 {
			p.queue = make(chan interface{}, n)
		}
	}
}

// NewEventProcessor builds a processor over the given repositories.
func NewEventProcessor(sessions persistence.SessionRepository, messages persistence.MessageRepository, reports persistence.ReportRepository, opts ...ProcessorOption) *EventProcessor {
	p := &EventProcessor{
		sessions: sessions,
		messages: messages,
		reports:  reports,
		queue:    make(chan interface{}, defaultQueueSize),
		workers:  defaultWorkerCount,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start launches the worker goroutines.
func (p *EventProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return fmt.Errorf("event processor already running")
	}

	workerCtx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.running = true

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(workerCtx, i)
	}

	logrus.WithField("workers", p.workers).Info("Event processor started")
	return nil
}

// Stop drains in-flight work and shuts the workers down.
func (p *EventProcessor) Stop() error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	close(p.queue)
	p.mu.Unlock()

	p.wg.Wait()
	p.cancel()

	logrus.WithFields(logrus.Fields{
		"processed": p.processed.Load(),
		"errors":    p.errors.Load(),
	}).Info("Event processor stopped")
	return nil
}

// ProcessEvent enqueues an event. It returns an error when the processor is
// stopped or the queue is full; callers log and move on.
func (p *EventProcessor) ProcessEvent(event interface{}) error {
	p.mu.Lock()
	running := p.running
	p.mu.Unlock()
	if !running {
		return fmt.Errorf("event processor not running")
	}

	select {
	case p.queue <- event:
		return nil
	default:
		p.errors.Add(1)
		return fmt.Errorf("event queue full, dropping event")
	}
}

// Health reports queue depth and counters.
func (p *EventProcessor) Health() persistence.ProcessorHealth {
	p.mu.Lock()
	running := p.running
	p.mu.Unlock()
	return persistence.ProcessorHealth{
		IsRunning:      running,
		QueueSize:      len(p.queue),
		ProcessedCount: p.processed.Load(),
		ErrorCount:     p.errors.Load(),
	}
}

func (p *EventProcessor) worker(ctx context.Context, id int) {
	defer p.wg.Done()
	for event := range p.queue {
		if err := p.handle(ctx, event); err != nil {
			p.errors.Add(1)
			logrus.WithError(err).WithFields(logrus.Fields{
				"worker": id,
				"event":  persistence.TypeOf(event),
			}).Error("Failed to process persistence event")
			continue
		}
		p.processed.Add(1)
	}
}

func (p *EventProcessor) handle(ctx context.Context, event interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	switch e := event.(type) {
	case persistence.SaveSessionEvent:
		return p.sessions.Create(ctx, &persistence.SessionRecord{
			ID:        e.SessionID,
			Provider:  e.Provider,
			StartTime: e.StartTime,
		})
	case persistence.SaveMessageEvent:
		return p.messages.Create(ctx, &persistence.MessageRecord{
			SessionID: e.SessionID,
			Role:      e.Role,
			Content:   e.Content,
			Timestamp: e.Timestamp,
		})
	case persistence.ClearSessionEvent:
		return p.messages.DeleteBySessionID(ctx, e.SessionID)
	case persistence.SaveReportEvent:
		return p.reports.Create(ctx, &persistence.ReportRecord{
			ID:           e.ReportID,
			Provider:     e.Provider,
			Model:        e.Model,
			Query:        e.Query,
			Runs:         e.Runs,
			Status:       e.Status,
			ResponsesRaw: e.Responses,
			MappingsRaw:  e.Mappings,
			SharesRaw:    e.Shares,
		})
	default:
		return fmt.Errorf("unknown event type %T", event)
	}
}
