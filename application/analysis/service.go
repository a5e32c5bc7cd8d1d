// Package analysis samples a single query against a provider multiple times,
// normalizes the free-text answers into discrete options, and reports what
// share of the runs each option received.
package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/tolik-unicornrider/llm-bias-detector/domain/chat"
	"github.com/tolik-unicornrider/llm-bias-detector/domain/persistence"
)

const (
	defaultRuns        = 10
	maxRuns            = 50
	samplingTemp       = 0.7
	defaultSystemSetup = "You are a helpful assistant. Answer the question directly and concisely."
)

// Params describes one analysis request.
type Params struct {
	Query        string          `json:"query"`
	SystemPrompt string          `json:"system_prompt,omitempty"`
	Provider     chat.ProviderID `json:"provider"`
	Model        string          `json:"model,omitempty"`
	Runs         int             `json:"runs,omitempty"`
}

// Report is the outcome of one analysis: the raw sampled responses (failed
// runs recorded as error text), the per-response option mappings, and the
// share of responses each option received.
type Report struct {
	ID        uuid.UUID           `json:"id"`
	Provider  chat.ProviderID     `json:"provider"`
	Model     string              `json:"model"`
	Query     string              `json:"query"`
	Runs      int                 `json:"runs"`
	Responses []string            `json:"responses"`
	Mappings  map[string][]string `json:"mappings"`
	Shares    map[string]float64  `json:"shares"`
	CreatedAt time.Time           `json:"created_at"`
}

// Service runs analyses. The extractor may be nil when no JSON-capable
// provider is configured; shares then degrade to raw-response counting.
type Service struct {
	providers map[chat.ProviderID]chat.ProviderPort
	extractor *Extractor
	recorder  persistence.HistoryRecorder // nil when persistence is disabled
}

// NewService wires the analysis service over the configured provider adapters.
func NewService(providers map[chat.ProviderID]chat.ProviderPort, extractor *Extractor, recorder persistence.HistoryRecorder) *Service {
	return &Service{providers: providers, extractor: extractor, recorder: recorder}
}

// Run executes the query Params.Runs times against the selected provider,
// extracts normalized options from the successful responses, and computes
// per-option shares.
//
// A failed run does not abort the analysis: its error text is recorded as the
// run's response and the loop continues. Each run is a single attempt.
func (s *Service) Run(ctx context.Context, p Params) (*Report, error) {
	if p.Query == "" {
		return nil, errors.New("query cannot be empty")
	}
	if !chat.ValidProvider(p.Provider) {
		return nil, fmt.Errorf("unknown provider %q", p.Provider)
	}
	adapter, ok := s.providers[p.Provider]
	if !ok {
		return nil, fmt.Errorf("provider %q is not configured", p.Provider)
	}
	runs := p.Runs
	if runs <= 0 {
		runs = defaultRuns
	}
	if runs > maxRuns {
		return nil, fmt.Errorf("runs %d exceeds maximum %d", runs, maxRuns)
	}
	systemPrompt := p.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = defaultSystemSetup
	}

	report := &Report{
		ID:        uuid.New(),
		Provider:  p.Provider,
		Model:     p.Model,
		Query:     p.Query,
		Runs:      runs,
		Responses: make([]string, 0, runs),
		CreatedAt: time.Now().UTC(),
	}

	log := logrus.WithFields(logrus.Fields{
		"report_id": report.ID,
		"provider":  p.Provider,
		"runs":      runs,
	})
	log.Info("Starting analysis")

	failures := 0
	for i := 0; i < runs; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		completion, err := adapter.Complete(ctx, &chat.CompletionRequest{
			Messages: []chat.Message{
				{Role: chat.RoleSystem, Content: systemPrompt},
				{Role: chat.RoleUser, Content: p.Query},
			},
			Model:       p.Model,
			Temperature: samplingTemp,
		})
		if err != nil {
			failures++
			log.WithError(err).WithField("run", i).Warn("Analysis run failed")
			report.Responses = append(report.Responses, fmt.Sprintf("Error: %v", err))
			continue
		}
		report.Responses = append(report.Responses, completion.Content)
		if report.Model == "" {
			report.Model = completion.Model
		}
	}

	if failures == runs {
		s.record(ctx, report, persistence.ReportStatusFailed)
		return nil, fmt.Errorf("all %d analysis runs failed: %s", runs, report.Responses[0])
	}

	report.Mappings = s.mapResponses(ctx, p.Query, report.Responses)
	report.Shares = ComputeShares(report.Responses, report.Mappings)

	log.WithFields(logrus.Fields{
		"failures": failures,
		"options":  len(report.Shares),
	}).Info("Analysis completed")

	s.record(ctx, report, persistence.ReportStatusCompleted)
	return report, nil
}

// OptionExtractionFailed marks every response of a report whose option
// extraction call failed; the raw responses remain available for inspection.
const OptionExtractionFailed = "extraction_failed"

// mapResponses delegates to the extractor when available. Without one, each
// distinct response counts as its own option; when extraction itself fails,
// every response maps to the failure marker.
func (s *Service) mapResponses(ctx context.Context, query string, responses []string) map[string][]string {
	if s.extractor == nil {
		mappings := make(map[string][]string, len(responses))
		for _, r := range responses {
			mappings[r] = []string{r}
		}
		return mappings
	}

	mappings, err := s.extractor.Extract(ctx, query, responses)
	if err != nil {
		logrus.WithError(err).Warn("Option extraction failed")
		mappings = make(map[string][]string, len(responses))
		for _, r := range responses {
			mappings[r] = []string{OptionExtractionFailed}
		}
	}
	return mappings
}

func (s *Service) record(ctx context.Context, report *Report, status persistence.ReportStatus) {
	if s.recorder == nil {
		return
	}
	event := persistence.SaveReportEvent{
		ReportID: report.ID,
		Provider: string(report.Provider),
		Model:    report.Model,
		Query:    report.Query,
		Runs:     report.Runs,
		Status:   status,
	}
	event.Responses, _ = json.Marshal(report.Responses)
	if report.Mappings != nil {
		event.Mappings, _ = json.Marshal(report.Mappings)
	}
	if report.Shares != nil {
		event.Shares, _ = json.Marshal(report.Shares)
	}
	if err := s.recorder.RecordReport(ctx, event); err != nil {
		logrus.WithError(err).WithField("report_id", report.ID).Warn("Failed to record report")
	}
}
