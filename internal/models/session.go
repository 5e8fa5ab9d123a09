package models

import "time"

const (
	SessionStarted   = "started"
	SessionPaused    = "paused"
	SessionCompleted = "completed"
	SessionAbandoned = "abandoned"
)

// StepResult records the outcome of one answered step. A session holds at
// most one StepResult per step id, in submission order.
type StepResult struct {
	StepID           string    `bson:"step_id" json:"step_id"`
	SelectedOptionID string    `bson:"selected_option_id" json:"selected_option_id"`
	IsCorrect        bool      `bson:"is_correct" json:"is_correct"`
	PointsAwarded    float64   `bson:"points_awarded" json:"points_awarded"`
	TimeSpentSeconds int       `bson:"time_spent_seconds" json:"time_spent_seconds"`
	AnsweredAt       time.Time `bson:"answered_at" json:"answered_at"`
}

// Session is one learner's attempt at a case. The durable record is the
// single source of truth; Score always equals the sum of PointsAwarded over
// StepPerformance. Revision backs the compare-and-swap write path.
type Session struct {
	ID               string       `bson:"_id,omitempty" json:"id"`
	UserID           string       `bson:"user_id" json:"user_id"`
	CaseID           string       `bson:"case_id" json:"case_id"`
	Status           string       `bson:"status" json:"status"`
	Score            float64      `bson:"score" json:"score"`
	MaxPossibleScore float64      `bson:"max_possible_score" json:"max_possible_score"`
	PercentageScore  float64      `bson:"percentage_score" json:"percentage_score"`
	StepsCompleted   int          `bson:"steps_completed" json:"steps_completed"`
	TotalSteps       int          `bson:"total_steps" json:"total_steps"`
	TimeSpentSeconds int          `bson:"time_spent_seconds" json:"time_spent_seconds"`
	StepPerformance  []StepResult `bson:"step_performance" json:"step_performance"`
	Feedback         string       `bson:"feedback,omitempty" json:"feedback,omitempty"`
	StartedAt        time.Time    `bson:"started_at" json:"started_at"`
	EndedAt          *time.Time   `bson:"ended_at,omitempty" json:"ended_at,omitempty"`
	Revision         int64        `bson:"revision" json:"-"`
}

// Terminal reports whether the session has reached a final state.
func (s *Session) Terminal() bool {
	return s.Status == SessionCompleted || s.Status == SessionAbandoned
}

// CompletedStepIDs returns the answered step ids in submission order.
func (s *Session) CompletedStepIDs() []string {
	ids := make([]string, 0, len(s.StepPerformance))
	for _, sp := range s.StepPerformance {
		ids = append(ids, sp.StepID)
	}
	return ids
}

// StepResultFor returns the recorded outcome for a step, or nil if the step
// has not been answered.
func (s *Session) StepResultFor(stepID string) *StepResult {
	for i := range s.StepPerformance {
		if s.StepPerformance[i].StepID == stepID {
			return &s.StepPerformance[i]
		}
	}
	return nil
}

// CorrectSteps counts the correctly answered steps.
func (s *Session) CorrectSteps() int {
	correct := 0
	for _, sp := range s.StepPerformance {
		if sp.IsCorrect {
			correct++
		}
	}
	return correct
}

// CanTransition reports whether a pure status change from one state to
// another is allowed. Completion is excluded here: it is reached only through
// step-resolver exhaustion, never as a direct transition request.
func CanTransition(from, to string) bool {
	switch to {
	case SessionPaused:
		return from == SessionStarted
	case SessionStarted:
		return from == SessionPaused
	case SessionAbandoned:
		return from == SessionStarted || from == SessionPaused
	}
	return false
}

// SessionCacheEntry is the ephemeral, advisory snapshot of session progress
// held in the cache. It is a derived view: the engine must operate correctly
// after it is evicted, recomputing completed-step state from the durable
// Session.
type SessionCacheEntry struct {
	SessionID        string   `json:"session_id"`
	UserID           string   `json:"user_id"`
	CaseID           string   `json:"case_id"`
	CompletedStepIDs []string `json:"completed_step_ids"`
	TotalSteps       int      `json:"total_steps"`
}

// NewSessionCacheEntry derives a cache entry from the durable record.
func NewSessionCacheEntry(session *Session) *SessionCacheEntry {
	return &SessionCacheEntry{
		SessionID:        session.ID,
		UserID:           session.UserID,
		CaseID:           session.CaseID,
		CompletedStepIDs: session.CompletedStepIDs(),
		TotalSteps:       session.TotalSteps,
	}
}
