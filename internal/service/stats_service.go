package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"simulation-service/internal/cache"
	"simulation-service/internal/models"
	"simulation-service/internal/progression"
	"simulation-service/internal/repository"
)

// SessionHistory is the read side of the durable session record used by the
// aggregation engine.
type SessionHistory interface {
	FindCompletedByCase(ctx context.Context, caseID string) ([]models.Session, error)
	FindCompletedByUserSince(ctx context.Context, userID string, since time.Time) ([]models.Session, error)
}

// StatsStore persists the versioned per-case aggregate record.
type StatsStore interface {
	FindByCase(ctx context.Context, caseID string) (*models.CaseStats, error)
	SaveCAS(ctx context.Context, stats *models.CaseStats) error
}

// PerformanceCache holds computed user-performance results under a short TTL.
type PerformanceCache interface {
	SavePerformance(ctx context.Context, perf *models.UserPerformance, ttl time.Duration) error
	GetPerformance(ctx context.Context, userID, timeframe string) (*models.UserPerformance, error)
}

// Supported reporting timeframes.
const (
	TimeframeWeek    = "week"
	TimeframeMonth   = "month"
	TimeframeQuarter = "quarter"
	TimeframeYear    = "year"
	TimeframeAll     = "all"
)

// casRetryLimit bounds the read-modify-write loop on the aggregate record.
const casRetryLimit = 5

// StatsService is the aggregation engine. Case statistics are maintained
// incrementally on each completion; user breakdowns are recomputed in full
// from the session history and cached by (user, timeframe). Either form must
// agree with a full recomputation.
type StatsService struct {
	Sessions       SessionHistory
	Stats          StatsStore
	Cases          CaseProvider
	Cache          PerformanceCache
	PerformanceTTL time.Duration

	now func() time.Time
}

func NewStatsService(
	sessions SessionHistory,
	stats StatsStore,
	cases CaseProvider,
	performanceCache PerformanceCache,
	performanceTTL time.Duration,
) *StatsService {
	return &StatsService{
		Sessions:       sessions,
		Stats:          stats,
		Cases:          cases,
		Cache:          performanceCache,
		PerformanceTTL: performanceTTL,
		now:            time.Now,
	}
}

// RecordCompletion folds one completed session into the case's running
// aggregate via compare-and-swap, retrying on conflict with a fresh read.
func (s *StatsService) RecordCompletion(ctx context.Context, session *models.Session) error {
	for attempt := 0; attempt < casRetryLimit; attempt++ {
		stats, err := s.Stats.FindByCase(ctx, session.CaseID)
		if errors.Is(err, repository.ErrNotFound) {
			stats = &models.CaseStats{CaseID: session.CaseID}
		} else if err != nil {
			return err
		}

		ApplyCompletion(stats, session, s.now())

		err = s.Stats.SaveCAS(ctx, stats)
		if errors.Is(err, repository.ErrConflict) {
			continue
		}
		return err
	}
	return fmt.Errorf("case stats for %s: gave up after %d conflicting writes", session.CaseID, casRetryLimit)
}

// ApplyCompletion performs the online-mean update on a case aggregate. The
// pre-increment completion count is the weight; the count moves only after
// both averages have been folded.
func ApplyCompletion(stats *models.CaseStats, session *models.Session, now time.Time) {
	stats.AverageScore = progression.UpdateRunningMean(stats.AverageScore, stats.CompletionCount, session.Score)
	stats.AverageTimeSpent = progression.UpdateRunningMean(stats.AverageTimeSpent, stats.CompletionCount, float64(session.TimeSpentSeconds))
	stats.CompletionCount++
	stats.UpdatedAt = now
}

// CaseStats returns the running aggregate for a case; a case with no
// completions yet reports zeroes.
func (s *StatsService) CaseStats(ctx context.Context, caseID string) (*models.CaseStats, error) {
	stats, err := s.Stats.FindByCase(ctx, caseID)
	if errors.Is(err, repository.ErrNotFound) {
		return &models.CaseStats{CaseID: caseID}, nil
	}
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// RecomputeCaseStats rebuilds a case aggregate from the full completed
// session history, replacing whatever the incremental path has accumulated.
// This is the reconciliation path for aggregates that missed an update.
func (s *StatsService) RecomputeCaseStats(ctx context.Context, caseID string) (*models.CaseStats, error) {
	sessions, err := s.Sessions.FindCompletedByCase(ctx, caseID)
	if err != nil {
		return nil, err
	}
	fresh := ComputeCaseStats(caseID, sessions, s.now())

	for attempt := 0; attempt < casRetryLimit; attempt++ {
		current, err := s.Stats.FindByCase(ctx, caseID)
		if errors.Is(err, repository.ErrNotFound) {
			current = &models.CaseStats{CaseID: caseID}
		} else if err != nil {
			return nil, err
		}

		current.CompletionCount = fresh.CompletionCount
		current.AverageScore = fresh.AverageScore
		current.AverageTimeSpent = fresh.AverageTimeSpent
		current.UpdatedAt = fresh.UpdatedAt

		err = s.Stats.SaveCAS(ctx, current)
		if errors.Is(err, repository.ErrConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return current, nil
	}
	return nil, fmt.Errorf("case stats recompute for %s: gave up after %d conflicting writes", caseID, casRetryLimit)
}

// ComputeCaseStats is the full-recomputation counterpart of ApplyCompletion.
func ComputeCaseStats(caseID string, sessions []models.Session, now time.Time) *models.CaseStats {
	stats := &models.CaseStats{CaseID: caseID, UpdatedAt: now}
	if len(sessions) == 0 {
		return stats
	}
	var scoreSum, timeSum float64
	for _, sess := range sessions {
		scoreSum += sess.Score
		timeSum += float64(sess.TimeSpentSeconds)
	}
	stats.CompletionCount = int64(len(sessions))
	stats.AverageScore = scoreSum / float64(len(sessions))
	stats.AverageTimeSpent = timeSum / float64(len(sessions))
	return stats
}

// UserPerformance reports a user's breakdown over a timeframe. Results are
// cached under (user, timeframe) and invalidated by TTL expiry only; a miss
// always triggers a full recomputation from the session history.
func (s *StatsService) UserPerformance(ctx context.Context, userID, timeframe string) (*models.UserPerformance, error) {
	timeframe = normalizeTimeframe(timeframe)

	if s.Cache != nil {
		perf, err := s.Cache.GetPerformance(ctx, userID, timeframe)
		if err == nil {
			return perf, nil
		}
		if !errors.Is(err, cache.ErrMiss) {
			log.Printf("performance cache read failed for user %s: %v", userID, err)
		}
	}

	now := s.now()
	sessions, err := s.Sessions.FindCompletedByUserSince(ctx, userID, timeframeCutoff(timeframe, now))
	if err != nil {
		return nil, err
	}

	cases := make(map[string]*models.CaseGraph)
	for _, sess := range sessions {
		if _, seen := cases[sess.CaseID]; seen {
			continue
		}
		graph, err := s.Cases.FindByID(ctx, sess.CaseID)
		if errors.Is(err, repository.ErrNotFound) {
			cases[sess.CaseID] = nil
			continue
		}
		if err != nil {
			return nil, err
		}
		cases[sess.CaseID] = graph
	}

	perf := BuildUserPerformance(userID, timeframe, sessions, cases, now)

	if s.Cache != nil {
		if err := s.Cache.SavePerformance(ctx, perf, s.PerformanceTTL); err != nil {
			log.Printf("performance cache write failed for user %s: %v", userID, err)
		}
	}
	return perf, nil
}

// BuildUserPerformance is pure: it partitions completed sessions by case
// specialty and difficulty and buckets them into Monday-aligned weeks.
// Scores are percentage scores so cases with different maxima compare.
func BuildUserPerformance(userID, timeframe string, sessions []models.Session, cases map[string]*models.CaseGraph, now time.Time) *models.UserPerformance {
	perf := &models.UserPerformance{
		UserID:              userID,
		Timeframe:           timeframe,
		SpecialtyBreakdown:  make(map[string]models.PerformanceSlice),
		DifficultyBreakdown: make(map[string]models.PerformanceSlice),
		WeeklyTrend:         []models.WeeklyTrendPoint{},
		GeneratedAt:         now,
	}

	specialty := newSliceAccumulator()
	difficulty := newSliceAccumulator()
	weekly := make(map[time.Time]*sliceTotals)

	var scoreSum float64
	for _, sess := range sessions {
		perf.CasesCompleted++
		perf.TotalTimeSeconds += sess.TimeSpentSeconds
		scoreSum += sess.PercentageScore

		specialtyKey, difficultyKey := "unknown", "unknown"
		if graph := cases[sess.CaseID]; graph != nil {
			if graph.Specialty != "" {
				specialtyKey = graph.Specialty
			}
			if graph.Difficulty != "" {
				difficultyKey = graph.Difficulty
			}
		}
		specialty.add(specialtyKey, &sess)
		difficulty.add(difficultyKey, &sess)

		endedAt := sess.StartedAt
		if sess.EndedAt != nil {
			endedAt = *sess.EndedAt
		}
		week := progression.WeekStart(endedAt)
		if weekly[week] == nil {
			weekly[week] = &sliceTotals{}
		}
		weekly[week].add(&sess)
	}

	if perf.CasesCompleted > 0 {
		perf.AverageScore = scoreSum / float64(perf.CasesCompleted)
	}
	perf.SpecialtyBreakdown = specialty.slices()
	perf.DifficultyBreakdown = difficulty.slices()

	weeks := make([]time.Time, 0, len(weekly))
	for week := range weekly {
		weeks = append(weeks, week)
	}
	sort.Slice(weeks, func(i, j int) bool { return weeks[i].Before(weeks[j]) })
	for _, week := range weeks {
		totals := weekly[week]
		perf.WeeklyTrend = append(perf.WeeklyTrend, models.WeeklyTrendPoint{
			WeekStart:          week,
			CasesCompleted:     totals.count,
			AverageScore:       totals.averageScore(),
			AverageTimeSeconds: totals.averageTime(),
		})
	}
	return perf
}

func normalizeTimeframe(timeframe string) string {
	switch timeframe {
	case TimeframeWeek, TimeframeMonth, TimeframeQuarter, TimeframeYear, TimeframeAll:
		return timeframe
	default:
		return TimeframeAll
	}
}

// timeframeCutoff returns the lower bound for completed-session queries; the
// zero time means unbounded.
func timeframeCutoff(timeframe string, now time.Time) time.Time {
	switch timeframe {
	case TimeframeWeek:
		return now.AddDate(0, 0, -7)
	case TimeframeMonth:
		return now.AddDate(0, -1, 0)
	case TimeframeQuarter:
		return now.AddDate(0, -3, 0)
	case TimeframeYear:
		return now.AddDate(-1, 0, 0)
	default:
		return time.Time{}
	}
}

type sliceTotals struct {
	count    int
	scoreSum float64
	timeSum  float64
}

func (t *sliceTotals) add(sess *models.Session) {
	t.count++
	t.scoreSum += sess.PercentageScore
	t.timeSum += float64(sess.TimeSpentSeconds)
}

func (t *sliceTotals) averageScore() float64 {
	if t.count == 0 {
		return 0
	}
	return t.scoreSum / float64(t.count)
}

func (t *sliceTotals) averageTime() float64 {
	if t.count == 0 {
		return 0
	}
	return t.timeSum / float64(t.count)
}

type sliceAccumulator struct {
	buckets map[string]*sliceTotals
}

func newSliceAccumulator() *sliceAccumulator {
	return &sliceAccumulator{buckets: make(map[string]*sliceTotals)}
}

func (a *sliceAccumulator) add(key string, sess *models.Session) {
	if a.buckets[key] == nil {
		a.buckets[key] = &sliceTotals{}
	}
	a.buckets[key].add(sess)
}

func (a *sliceAccumulator) slices() map[string]models.PerformanceSlice {
	out := make(map[string]models.PerformanceSlice, len(a.buckets))
	for key, totals := range a.buckets {
		out[key] = models.PerformanceSlice{
			CasesCompleted:     totals.count,
			AverageScore:       totals.averageScore(),
			AverageTimeSeconds: totals.averageTime(),
		}
	}
	return out
}
