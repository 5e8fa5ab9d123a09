package service

import (
	"context"
	"errors"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"simulation-service/internal/cache"
	"simulation-service/internal/event"
	"simulation-service/internal/models"
	"simulation-service/internal/progression"
	"simulation-service/internal/repository"
)

// CaseProvider supplies immutable, publish-time-validated case graphs.
type CaseProvider interface {
	FindByID(ctx context.Context, id string) (*models.CaseGraph, error)
	FindPublishedByID(ctx context.Context, id string) (*models.CaseGraph, error)
}

// SessionStore is the durable, authoritative record of attempts. UpdateCAS
// must reject writes whose revision lost to a concurrent writer.
type SessionStore interface {
	Create(ctx context.Context, session *models.Session) error
	FindByID(ctx context.Context, id string) (*models.Session, error)
	UpdateCAS(ctx context.Context, session *models.Session) error
}

// ProgressCache is the ephemeral snapshot store. Every method may fail or
// miss; the engine falls back to the durable record and carries on.
type ProgressCache interface {
	SaveProgress(ctx context.Context, entry *models.SessionCacheEntry, ttl time.Duration) error
	GetProgress(ctx context.Context, sessionID string) (*models.SessionCacheEntry, error)
	DeleteProgress(ctx context.Context, sessionID string) error
}

// CompletionRecorder folds a completed session into the running aggregates.
type CompletionRecorder interface {
	RecordCompletion(ctx context.Context, session *models.Session) error
}

// CompletionPublisher emits the one event per finished session.
type CompletionPublisher interface {
	PublishSessionCompleted(evt event.SessionCompletedEvent) error
}

// SessionService is the simulation session engine: it creates sessions,
// resolves the next step from the prerequisite graph, records outcomes, and
// drives the lifecycle state machine. Cache, recorder, and publisher are
// optional collaborators; a nil or failing one never fails a request.
type SessionService struct {
	Cases      CaseProvider
	Sessions   SessionStore
	Cache      ProgressCache
	Recorder   CompletionRecorder
	Publisher  CompletionPublisher
	SessionTTL time.Duration

	now func() time.Time
}

func NewSessionService(
	cases CaseProvider,
	sessions SessionStore,
	progressCache ProgressCache,
	recorder CompletionRecorder,
	publisher CompletionPublisher,
	sessionTTL time.Duration,
) *SessionService {
	return &SessionService{
		Cases:      cases,
		Sessions:   sessions,
		Cache:      progressCache,
		Recorder:   recorder,
		Publisher:  publisher,
		SessionTTL: sessionTTL,
		now:        time.Now,
	}
}

// StartResult is the payload for a freshly created session: the durable
// record plus the first step, redacted for presentation.
type StartResult struct {
	Session   *models.Session  `json:"session"`
	FirstStep *models.StepView `json:"first_step,omitempty"`
}

// SubmitResult is the outcome of one step submission: either the next
// eligible step with progress counters, or the completion summary.
type SubmitResult struct {
	SessionID      string               `json:"session_id"`
	Replayed       bool                 `json:"replayed"`
	StepResult     models.StepResult    `json:"step_result"`
	StepsCompleted int                  `json:"steps_completed"`
	TotalSteps     int                  `json:"total_steps"`
	NextStep       *models.StepView     `json:"next_step,omitempty"`
	Completed      bool                 `json:"completed"`
	Summary        *progression.Summary `json:"summary,omitempty"`
}

// StartSession creates a new attempt against a published case.
func (s *SessionService) StartSession(ctx context.Context, userID, caseID string) (*StartResult, error) {
	graph, err := s.Cases.FindPublishedByID(ctx, caseID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrCaseUnavailable
	}
	if err != nil {
		return nil, err
	}

	session := &models.Session{
		ID:               primitive.NewObjectID().Hex(),
		UserID:           userID,
		CaseID:           caseID,
		Status:           models.SessionStarted,
		MaxPossibleScore: graph.MaxScore,
		TotalSteps:       len(graph.Steps),
		StepPerformance:  []models.StepResult{},
		StartedAt:        s.now(),
		Revision:         1,
	}
	if err := s.Sessions.Create(ctx, session); err != nil {
		return nil, err
	}
	s.refreshCache(ctx, session)

	result := &StartResult{Session: session}
	if first, ok := progression.Resolve(graph, nil); ok {
		result.FirstStep = models.NewStepView(first)
	}
	return result, nil
}

// SubmitStep records the outcome of one answered step and resolves what
// comes next. Resubmitting an already-recorded step is a no-op replay that
// returns the stored outcome, so a retried network call cannot double-count.
func (s *SessionService) SubmitStep(ctx context.Context, sessionID, stepID, optionID string, timeSpentSeconds int) (*SubmitResult, error) {
	session, err := s.findSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	graph, err := s.Cases.FindByID(ctx, session.CaseID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrCaseUnavailable
	}
	if err != nil {
		return nil, err
	}

	step := graph.Step(stepID)
	if step == nil {
		return nil, ErrUnknownStep
	}
	option := step.Option(optionID)
	if option == nil {
		return nil, ErrUnknownOption
	}

	// Replay of an already-recorded step returns the stored outcome
	// unchanged, even on a terminal session: the duplicate of the final
	// submission is the retry we most need to absorb.
	if recorded := session.StepResultFor(stepID); recorded != nil {
		return s.replayResult(session, graph, recorded), nil
	}
	if session.Terminal() {
		return nil, ErrSessionTerminated
	}
	if session.Status != models.SessionStarted {
		return nil, ErrInvalidStateTransition
	}

	points := 0.0
	if option.IsCorrect {
		points = option.Points
	}
	outcome := models.StepResult{
		StepID:           stepID,
		SelectedOptionID: optionID,
		IsCorrect:        option.IsCorrect,
		PointsAwarded:    points,
		TimeSpentSeconds: timeSpentSeconds,
		AnsweredAt:       s.now(),
	}
	session.StepPerformance = append(session.StepPerformance, outcome)
	session.Score += points
	session.StepsCompleted++
	session.TimeSpentSeconds += timeSpentSeconds

	completedSet := progression.CompletedSet(session.CompletedStepIDs())
	next, ok := progression.Resolve(graph, completedSet)

	result := &SubmitResult{
		SessionID:      session.ID,
		StepResult:     outcome,
		StepsCompleted: session.StepsCompleted,
		TotalSteps:     session.TotalSteps,
	}

	if ok {
		if err := s.persist(ctx, session); err != nil {
			return nil, err
		}
		s.refreshCache(ctx, session)
		result.NextStep = models.NewStepView(next)
		return result, nil
	}

	// Resolver exhaustion: finalize the session.
	endedAt := s.now()
	session.Status = models.SessionCompleted
	session.EndedAt = &endedAt
	session.PercentageScore = progression.PercentageScore(session.Score, session.MaxPossibleScore)
	if err := s.persist(ctx, session); err != nil {
		return nil, err
	}

	result.Completed = true
	result.Summary = progression.BuildSummary(session, graph)
	s.fanOutCompletion(ctx, session)
	return result, nil
}

// PauseSession suspends a started session.
func (s *SessionService) PauseSession(ctx context.Context, sessionID, userID string) (*models.Session, error) {
	return s.transition(ctx, sessionID, userID, models.SessionPaused)
}

// ResumeSession returns a paused session to started.
func (s *SessionService) ResumeSession(ctx context.Context, sessionID, userID string) (*models.Session, error) {
	return s.transition(ctx, sessionID, userID, models.SessionStarted)
}

// AbandonSession terminates a session without scoring side effects.
func (s *SessionService) AbandonSession(ctx context.Context, sessionID, userID string) (*models.Session, error) {
	return s.transition(ctx, sessionID, userID, models.SessionAbandoned)
}

// AttachFeedback stores post-hoc feedback on a terminal session. Score and
// status are untouched.
func (s *SessionService) AttachFeedback(ctx context.Context, sessionID, userID, feedback string) (*models.Session, error) {
	session, err := s.findOwnedSession(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	if !session.Terminal() {
		return nil, ErrInvalidStateTransition
	}
	session.Feedback = feedback
	if err := s.persist(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// GetSession reads the durable record for a caller that owns it.
func (s *SessionService) GetSession(ctx context.Context, sessionID, userID string) (*models.Session, error) {
	return s.findOwnedSession(ctx, sessionID, userID)
}

// GetProgress serves the denormalized progress snapshot, read-through: a
// cache hit avoids the durable lookup, a miss recomputes the snapshot from
// the authoritative record and re-warms the cache.
func (s *SessionService) GetProgress(ctx context.Context, sessionID string) (*models.SessionCacheEntry, error) {
	if s.Cache != nil {
		entry, err := s.Cache.GetProgress(ctx, sessionID)
		if err == nil {
			return entry, nil
		}
		if !errors.Is(err, cache.ErrMiss) {
			log.Printf("progress cache read failed for session %s: %v", sessionID, err)
		}
	}
	session, err := s.findSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	entry := models.NewSessionCacheEntry(session)
	s.refreshCache(ctx, session)
	return entry, nil
}

func (s *SessionService) transition(ctx context.Context, sessionID, userID, target string) (*models.Session, error) {
	session, err := s.findOwnedSession(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	if session.Terminal() {
		return nil, ErrSessionTerminated
	}
	if !models.CanTransition(session.Status, target) {
		return nil, ErrInvalidStateTransition
	}

	session.Status = target
	if target == models.SessionAbandoned {
		endedAt := s.now()
		session.EndedAt = &endedAt
	}
	if err := s.persist(ctx, session); err != nil {
		return nil, err
	}
	if target == models.SessionAbandoned && s.Cache != nil {
		if err := s.Cache.DeleteProgress(ctx, session.ID); err != nil {
			log.Printf("progress cache delete failed for session %s: %v", session.ID, err)
		}
	}
	return session, nil
}

func (s *SessionService) replayResult(session *models.Session, graph *models.CaseGraph, recorded *models.StepResult) *SubmitResult {
	result := &SubmitResult{
		SessionID:      session.ID,
		Replayed:       true,
		StepResult:     *recorded,
		StepsCompleted: session.StepsCompleted,
		TotalSteps:     session.TotalSteps,
	}
	completedSet := progression.CompletedSet(session.CompletedStepIDs())
	if next, ok := progression.Resolve(graph, completedSet); ok {
		result.NextStep = models.NewStepView(next)
	} else {
		result.Completed = true
		if session.Status == models.SessionCompleted {
			result.Summary = progression.BuildSummary(session, graph)
		}
	}
	return result
}

func (s *SessionService) findSession(ctx context.Context, sessionID string) (*models.Session, error) {
	session, err := s.Sessions.FindByID(ctx, sessionID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return session, nil
}

// findOwnedSession hides sessions that belong to another user; the caller
// cannot distinguish them from missing ones.
func (s *SessionService) findOwnedSession(ctx context.Context, sessionID, userID string) (*models.Session, error) {
	session, err := s.findSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.UserID != userID {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

func (s *SessionService) persist(ctx context.Context, session *models.Session) error {
	err := s.Sessions.UpdateCAS(ctx, session)
	if errors.Is(err, repository.ErrConflict) {
		return ErrConcurrentModification
	}
	return err
}

// refreshCache writes the advisory snapshot. Failures are logged only: the
// cache is never allowed to fail a request.
func (s *SessionService) refreshCache(ctx context.Context, session *models.Session) {
	if s.Cache == nil {
		return
	}
	entry := models.NewSessionCacheEntry(session)
	if err := s.Cache.SaveProgress(ctx, entry, s.SessionTTL); err != nil {
		log.Printf("progress cache write failed for session %s: %v", session.ID, err)
	}
}

// fanOutCompletion updates aggregates and emits the completion event. The
// terminal state is already durable at this point, so failures here are
// logged and left to the backfill path, never rolled back into the request.
func (s *SessionService) fanOutCompletion(ctx context.Context, session *models.Session) {
	if s.Recorder != nil {
		if err := s.Recorder.RecordCompletion(ctx, session); err != nil {
			log.Printf("aggregate update failed for session %s: %v", session.ID, err)
		}
	}
	if s.Publisher != nil {
		evt := event.SessionCompletedEvent{
			SessionID:        session.ID,
			UserID:           session.UserID,
			CaseID:           session.CaseID,
			PercentageScore:  session.PercentageScore,
			TimeSpentSeconds: session.TimeSpentSeconds,
			CompletedAt:      session.EndedAt.Unix(),
		}
		if err := s.Publisher.PublishSessionCompleted(evt); err != nil {
			log.Printf("completion event publish failed for session %s: %v", session.ID, err)
		}
	}
	if s.Cache != nil {
		if err := s.Cache.DeleteProgress(ctx, session.ID); err != nil {
			log.Printf("progress cache delete failed for session %s: %v", session.ID, err)
		}
	}
}
