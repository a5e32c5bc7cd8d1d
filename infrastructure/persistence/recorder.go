package persistence

import (
	"context"

	"github.com/tolik-unicornrider/llm-bias-detector/domain/persistence"
)

// Recorder adapts the event processor to the HistoryRecorder facade used by
// the application layer.
type Recorder struct {
	processor persistence.EventProcessor
}

// NewRecorder wraps processor as a HistoryRecorder.
func NewRecorder(processor persistence.EventProcessor) *Recorder {
	return &Recorder{processor: processor}
}

func (r *Recorder) RecordSession(ctx context.Context, event persistence.SaveSessionEvent) error {
	return r.processor.ProcessEvent(event)
}

func (r *Recorder) RecordMessage(ctx context.Context, event persistence.SaveMessageEvent) error {
	return r.processor.ProcessEvent(event)
}

func (r *Recorder) RecordReset(ctx context.Context, event persistence.ClearSessionEvent) error {
	return r.processor.ProcessEvent(event)
}

func (r *Recorder) RecordReport(ctx context.Context, event persistence.SaveReportEvent) error {
	return r.processor.ProcessEvent(event)
}
