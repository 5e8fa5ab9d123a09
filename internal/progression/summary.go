package progression

import (
	"math"
	"time"

	"simulation-service/internal/models"
)

// Performance bands by percentage score.
const (
	BandExcellent        = "Excellent"
	BandGood             = "Good"
	BandSatisfactory     = "Satisfactory"
	BandNeedsImprovement = "Needs Improvement"
	BandPoor             = "Poor"
)

// Advisory recommendations attached to a completion summary.
const (
	RecommendReviewObjectives = "Review the learning objectives for this case before attempting similar ones"
	RecommendPracticeTiming   = "Practice similar cases to improve your decision speed"
	RecommendReviewReasoning  = "Review the reasoning behind the diagnostic steps you answered incorrectly"
)

// Summary is the completion payload computed when the resolver is exhausted.
type Summary struct {
	FinalScore       float64  `json:"final_score"`
	MaxPossibleScore float64  `json:"max_possible_score"`
	PercentageScore  float64  `json:"percentage_score"`
	Accuracy         float64  `json:"accuracy"`
	PerformanceBand  string   `json:"performance_band"`
	StepsCompleted   int      `json:"steps_completed"`
	TimeSpentSeconds int      `json:"time_spent_seconds"`
	Recommendations  []string `json:"recommendations"`
}

// PercentageScore converts a raw score into a rounded percentage clamped to
// [0, 100]. A non-positive max score yields 0 rather than dividing by zero.
func PercentageScore(score, maxScore float64) float64 {
	if maxScore <= 0 {
		return 0
	}
	pct := math.Round(score / maxScore * 100)
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

// Accuracy is the rounded percentage of attempted steps answered correctly.
func Accuracy(correct, attempted int) float64 {
	if attempted <= 0 {
		return 0
	}
	return math.Round(float64(correct) / float64(attempted) * 100)
}

// Band maps a percentage score to its qualitative performance band.
func Band(percentage float64) string {
	switch {
	case percentage >= 90:
		return BandExcellent
	case percentage >= 80:
		return BandGood
	case percentage >= 70:
		return BandSatisfactory
	case percentage >= 60:
		return BandNeedsImprovement
	default:
		return BandPoor
	}
}

// Recommendations derives the advisory pointers for a completed session.
// The rules are deterministic: low percentage suggests reviewing objectives,
// running well over the expected duration suggests timing practice, and any
// incorrect step suggests reviewing the reasoning.
func Recommendations(percentage float64, timeSpentSeconds, expectedDurationSeconds int, anyIncorrect bool) []string {
	var recs []string
	if percentage < 70 {
		recs = append(recs, RecommendReviewObjectives)
	}
	if expectedDurationSeconds > 0 && float64(timeSpentSeconds) > 1.5*float64(expectedDurationSeconds) {
		recs = append(recs, RecommendPracticeTiming)
	}
	if anyIncorrect {
		recs = append(recs, RecommendReviewReasoning)
	}
	return recs
}

// BuildSummary computes the completion summary for a finished session.
func BuildSummary(session *models.Session, graph *models.CaseGraph) *Summary {
	attempted := len(session.StepPerformance)
	correct := session.CorrectSteps()
	pct := PercentageScore(session.Score, session.MaxPossibleScore)

	return &Summary{
		FinalScore:       session.Score,
		MaxPossibleScore: session.MaxPossibleScore,
		PercentageScore:  pct,
		Accuracy:         Accuracy(correct, attempted),
		PerformanceBand:  Band(pct),
		StepsCompleted:   session.StepsCompleted,
		TimeSpentSeconds: session.TimeSpentSeconds,
		Recommendations:  Recommendations(pct, session.TimeSpentSeconds, graph.ExpectedDurationSeconds, correct < attempted),
	}
}

// UpdateRunningMean folds one new sample into a running average. The
// pre-increment count is the weight; applying the post-increment count here
// silently corrupts the average, which is why this lives in one place.
func UpdateRunningMean(mean float64, count int64, sample float64) float64 {
	return (mean*float64(count) + sample) / float64(count+1)
}

// WeekStart returns the Monday 00:00 UTC that starts the week containing t.
func WeekStart(t time.Time) time.Time {
	t = t.UTC()
	day := t.Truncate(24 * time.Hour)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}
