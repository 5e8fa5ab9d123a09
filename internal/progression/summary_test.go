package progression

import (
	"math"
	"testing"
	"time"

	"simulation-service/internal/models"
)

const epsilon = 1e-9

func TestPercentageScore(t *testing.T) {
	testCases := []struct {
		name     string
		score    float64
		maxScore float64
		expected float64
	}{
		{"full marks", 20, 20, 100},
		{"half marks", 10, 20, 50},
		{"rounds up", 2, 3, 67},
		{"zero score", 0, 20, 0},
		{"zero max score", 10, 0, 0},
		{"negative score clamps", -5, 20, 0},
		{"overshoot clamps", 25, 20, 100},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := PercentageScore(tc.score, tc.maxScore)
			if math.Abs(got-tc.expected) > epsilon {
				t.Errorf("expected %.1f, got %.1f", tc.expected, got)
			}
			if got < 0 || got > 100 {
				t.Errorf("percentage %.1f outside [0,100]", got)
			}
		})
	}
}

func TestBandThresholds(t *testing.T) {
	testCases := []struct {
		percentage float64
		expected   string
	}{
		{100, BandExcellent},
		{90, BandExcellent},
		{89, BandGood},
		{80, BandGood},
		{79, BandSatisfactory},
		{70, BandSatisfactory},
		{69, BandNeedsImprovement},
		{60, BandNeedsImprovement},
		{59, BandPoor},
		{0, BandPoor},
	}

	for _, tc := range testCases {
		if got := Band(tc.percentage); got != tc.expected {
			t.Errorf("Band(%.0f): expected %q, got %q", tc.percentage, tc.expected, got)
		}
	}
}

func TestAccuracy(t *testing.T) {
	if got := Accuracy(2, 2); got != 100 {
		t.Errorf("expected 100, got %.1f", got)
	}
	if got := Accuracy(1, 2); got != 50 {
		t.Errorf("expected 50, got %.1f", got)
	}
	if got := Accuracy(0, 0); got != 0 {
		t.Errorf("expected 0 for no attempts, got %.1f", got)
	}
}

func TestRecommendations(t *testing.T) {
	testCases := []struct {
		name         string
		percentage   float64
		timeSpent    int
		expected     int
		anyIncorrect bool
	}{
		{"clean fast run", 100, 200, 0, false},
		{"low score", 50, 200, 2, true},
		{"slow run", 95, 500, 1, false},
		{"everything wrong and slow", 30, 600, 3, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			recs := Recommendations(tc.percentage, tc.timeSpent, 300, tc.anyIncorrect)
			if len(recs) != tc.expected {
				t.Errorf("expected %d recommendations, got %d: %v", tc.expected, len(recs), recs)
			}
		})
	}
}

func TestBuildSummary(t *testing.T) {
	graph := &models.CaseGraph{ID: "case-1", ExpectedDurationSeconds: 300}
	session := &models.Session{
		Score:            10,
		MaxPossibleScore: 20,
		StepsCompleted:   2,
		TimeSpentSeconds: 75,
		StepPerformance: []models.StepResult{
			{StepID: "s1", IsCorrect: false},
			{StepID: "s2", IsCorrect: true, PointsAwarded: 10},
		},
	}

	summary := BuildSummary(session, graph)
	if summary.PercentageScore != 50 {
		t.Errorf("expected percentage 50, got %.1f", summary.PercentageScore)
	}
	if summary.Accuracy != 50 {
		t.Errorf("expected accuracy 50, got %.1f", summary.Accuracy)
	}
	if summary.PerformanceBand != BandPoor {
		t.Errorf("expected band %q, got %q", BandPoor, summary.PerformanceBand)
	}
	if len(summary.Recommendations) != 2 {
		t.Errorf("expected review-objectives and review-reasoning pointers, got %v", summary.Recommendations)
	}
}

// The incremental mean after N samples must equal the arithmetic mean of all
// N samples, for every prefix.
func TestUpdateRunningMeanMatchesArithmeticMean(t *testing.T) {
	samples := []float64{20, 0, 10, 15.5, 7, 100, 42}

	mean := 0.0
	sum := 0.0
	for i, sample := range samples {
		mean = UpdateRunningMean(mean, int64(i), sample)
		sum += sample
		expected := sum / float64(i+1)
		if math.Abs(mean-expected) > epsilon {
			t.Fatalf("after %d samples: incremental %.6f, arithmetic %.6f", i+1, mean, expected)
		}
	}
}

func TestWeekStart(t *testing.T) {
	testCases := []struct {
		name     string
		input    time.Time
		expected time.Time
	}{
		{
			"midweek",
			time.Date(2024, 5, 16, 13, 45, 0, 0, time.UTC), // Thursday
			time.Date(2024, 5, 13, 0, 0, 0, 0, time.UTC),
		},
		{
			"monday maps to itself",
			time.Date(2024, 5, 13, 0, 0, 1, 0, time.UTC),
			time.Date(2024, 5, 13, 0, 0, 0, 0, time.UTC),
		},
		{
			"sunday belongs to the preceding monday",
			time.Date(2024, 5, 19, 23, 59, 0, 0, time.UTC),
			time.Date(2024, 5, 13, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := WeekStart(tc.input); !got.Equal(tc.expected) {
				t.Errorf("expected %v, got %v", tc.expected, got)
			}
		})
	}
}
