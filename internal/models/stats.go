package models

import "time"

// CaseStats is the running aggregate for one case, maintained incrementally
// as sessions complete. Revision backs the compare-and-swap update so the
// online-mean arithmetic stays correct across concurrent service instances.
type CaseStats struct {
	CaseID           string    `bson:"_id" json:"case_id"`
	CompletionCount  int64     `bson:"completion_count" json:"completion_count"`
	AverageScore     float64   `bson:"average_score" json:"average_score"`
	AverageTimeSpent float64   `bson:"average_time_spent" json:"average_time_spent"`
	UpdatedAt        time.Time `bson:"updated_at" json:"updated_at"`
	Revision         int64     `bson:"revision" json:"-"`
}

// PerformanceSlice aggregates the completed sessions of one partition
// (a specialty or a difficulty level).
type PerformanceSlice struct {
	CasesCompleted     int     `json:"cases_completed"`
	AverageScore       float64 `json:"average_score"`
	AverageTimeSeconds float64 `json:"average_time_seconds"`
}

// WeeklyTrendPoint is one Monday-aligned bucket of a user's completions.
type WeeklyTrendPoint struct {
	WeekStart          time.Time `json:"week_start"`
	CasesCompleted     int       `json:"cases_completed"`
	AverageScore       float64   `json:"average_score"`
	AverageTimeSeconds float64   `json:"average_time_seconds"`
}

// UserPerformance is a user's aggregate breakdown over a timeframe. It is
// fully derived from completed sessions and recomputable at any time.
type UserPerformance struct {
	UserID              string                      `json:"user_id"`
	Timeframe           string                      `json:"timeframe"`
	CasesCompleted      int                         `json:"cases_completed"`
	AverageScore        float64                     `json:"average_score"`
	TotalTimeSeconds    int                         `json:"total_time_seconds"`
	SpecialtyBreakdown  map[string]PerformanceSlice `json:"specialty_breakdown"`
	DifficultyBreakdown map[string]PerformanceSlice `json:"difficulty_breakdown"`
	WeeklyTrend         []WeeklyTrendPoint          `json:"weekly_trend"`
	GeneratedAt         time.Time                   `json:"generated_at"`
}
