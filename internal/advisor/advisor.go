// Package advisor produces triage suggestions for a ticket draft. It has two
// paths: an optional Gemini-backed classifier and a deterministic heuristic
// fallback. The external path is an availability hedge only; any failure on
// it is logged and recovered locally, so Analyze never fails because of the
// external service.
package advisor

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/repository"
)

// Source identifies which path produced an analysis.
const (
	SourceGemini    = "gemini"
	SourceHeuristic = "heuristic"
)

// Input is the ticket draft plus the interaction state the SPA tracks.
type Input struct {
	Title            string
	Description      string
	DoneActions      []string
	RejectedActions  []string
	PriorSuggestions []string
}

// Analysis is the advisory result surfaced to the caller.
type Analysis struct {
	Suggestions         []string
	PredictedDepartment *string
	Confidence          *float64
	PriorityHint        *string
	Rationale           *string
	Source              string
	NextAction          *string
	FollowUpQuestions   []string
}

// Service orchestrates the two analysis paths.
type Service struct {
	gemini      *GeminiClient
	departments repository.DepartmentRepository
	logger      *zap.Logger
}

// NewService builds the advisory service. gemini may be nil when no API
// credential is configured; the heuristic path then serves every request.
func NewService(gemini *GeminiClient, departments repository.DepartmentRepository, logger *zap.Logger) *Service {
	return &Service{gemini: gemini, departments: departments, logger: logger}
}

// Analyze runs the external path when configured, falling back to the
// heuristic on any failure or unusable answer. Caller cancellation aborts
// the analysis outright; the fallback is not invoked for a dead context.
func (s *Service) Analyze(ctx context.Context, input Input) (*Analysis, error) {
	departments, err := s.departments.ListActive(ctx)
	if err != nil {
		s.logger.Warn("advisor: department list unavailable", zap.Error(err))
		departments = nil
	}

	if s.gemini != nil {
		analysis, err := s.gemini.Analyze(ctx, input, departmentNames(departments))
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if err == nil && usable(analysis) {
			return analysis, nil
		}
		if err != nil {
			s.logger.Warn("advisor: external classifier failed, using heuristic", zap.Error(err))
		}
	}

	return heuristicAnalyze(input, departments), nil
}

func usable(a *Analysis) bool {
	return a != nil && (len(a.Suggestions) > 0 || a.PredictedDepartment != nil)
}

func departmentNames(departments []domain.Department) []string {
	names := make([]string, 0, len(departments))
	for _, d := range departments {
		names = append(names, d.Name)
	}
	return names
}

// filterExcluded drops candidates already present (case-insensitively) in
// any exclusion list, deduplicating while preserving order.
func filterExcluded(candidates []string, exclusions ...[]string) []string {
	excluded := make(map[string]struct{})
	for _, list := range exclusions {
		for _, item := range list {
			excluded[strings.ToLower(strings.TrimSpace(item))] = struct{}{}
		}
	}
	seen := make(map[string]struct{})
	kept := make([]string, 0, len(candidates))
	for _, candidate := range candidates {
		key := strings.ToLower(strings.TrimSpace(candidate))
		if key == "" {
			continue
		}
		if _, ok := excluded[key]; ok {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		kept = append(kept, candidate)
	}
	return kept
}

func capList(items []string, limit int) []string {
	if len(items) > limit {
		return items[:limit]
	}
	return items
}
