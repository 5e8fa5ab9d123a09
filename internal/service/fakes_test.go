package service

import (
	"context"
	"errors"
	"time"

	"simulation-service/internal/cache"
	"simulation-service/internal/event"
	"simulation-service/internal/models"
	"simulation-service/internal/repository"
)

func cloneSession(s *models.Session) *models.Session {
	clone := *s
	clone.StepPerformance = append([]models.StepResult(nil), s.StepPerformance...)
	if s.EndedAt != nil {
		endedAt := *s.EndedAt
		clone.EndedAt = &endedAt
	}
	return &clone
}

// fakeSessionStore keeps deep copies so that, like a real database, mutations
// become visible only through UpdateCAS.
type fakeSessionStore struct {
	sessions  map[string]*models.Session
	conflicts int
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{sessions: make(map[string]*models.Session)}
}

func (f *fakeSessionStore) Create(ctx context.Context, session *models.Session) error {
	f.sessions[session.ID] = cloneSession(session)
	return nil
}

func (f *fakeSessionStore) FindByID(ctx context.Context, id string) (*models.Session, error) {
	stored, ok := f.sessions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneSession(stored), nil
}

func (f *fakeSessionStore) UpdateCAS(ctx context.Context, session *models.Session) error {
	if f.conflicts > 0 {
		f.conflicts--
		return repository.ErrConflict
	}
	stored, ok := f.sessions[session.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if stored.Revision != session.Revision {
		return repository.ErrConflict
	}
	session.Revision++
	f.sessions[session.ID] = cloneSession(session)
	return nil
}

func (f *fakeSessionStore) FindCompletedByCase(ctx context.Context, caseID string) ([]models.Session, error) {
	var out []models.Session
	for _, s := range f.sessions {
		if s.CaseID == caseID && s.Status == models.SessionCompleted {
			out = append(out, *cloneSession(s))
		}
	}
	return out, nil
}

func (f *fakeSessionStore) FindCompletedByUserSince(ctx context.Context, userID string, since time.Time) ([]models.Session, error) {
	var out []models.Session
	for _, s := range f.sessions {
		if s.UserID != userID || s.Status != models.SessionCompleted {
			continue
		}
		if !since.IsZero() && s.EndedAt != nil && s.EndedAt.Before(since) {
			continue
		}
		out = append(out, *cloneSession(s))
	}
	return out, nil
}

type fakeCaseProvider struct {
	cases map[string]*models.CaseGraph
}

func newFakeCaseProvider(graphs ...*models.CaseGraph) *fakeCaseProvider {
	p := &fakeCaseProvider{cases: make(map[string]*models.CaseGraph)}
	for _, g := range graphs {
		p.cases[g.ID] = g
	}
	return p
}

func (f *fakeCaseProvider) FindByID(ctx context.Context, id string) (*models.CaseGraph, error) {
	g, ok := f.cases[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return g, nil
}

func (f *fakeCaseProvider) FindPublishedByID(ctx context.Context, id string) (*models.CaseGraph, error) {
	g, ok := f.cases[id]
	if !ok || !g.Published() {
		return nil, repository.ErrNotFound
	}
	return g, nil
}

var errCacheDown = errors.New("cache down")

// fakeProgressCache simulates the ephemeral store, including total outage
// (fail) and entry eviction.
type fakeProgressCache struct {
	entries     map[string]*models.SessionCacheEntry
	performance map[string]*models.UserPerformance
	fail        bool
}

func newFakeProgressCache() *fakeProgressCache {
	return &fakeProgressCache{
		entries:     make(map[string]*models.SessionCacheEntry),
		performance: make(map[string]*models.UserPerformance),
	}
}

func (f *fakeProgressCache) SaveProgress(ctx context.Context, entry *models.SessionCacheEntry, ttl time.Duration) error {
	if f.fail {
		return errCacheDown
	}
	f.entries[entry.SessionID] = entry
	return nil
}

func (f *fakeProgressCache) GetProgress(ctx context.Context, sessionID string) (*models.SessionCacheEntry, error) {
	if f.fail {
		return nil, errCacheDown
	}
	entry, ok := f.entries[sessionID]
	if !ok {
		return nil, cache.ErrMiss
	}
	return entry, nil
}

func (f *fakeProgressCache) DeleteProgress(ctx context.Context, sessionID string) error {
	if f.fail {
		return errCacheDown
	}
	delete(f.entries, sessionID)
	return nil
}

func (f *fakeProgressCache) evict(sessionID string) {
	delete(f.entries, sessionID)
}

func (f *fakeProgressCache) SavePerformance(ctx context.Context, perf *models.UserPerformance, ttl time.Duration) error {
	if f.fail {
		return errCacheDown
	}
	f.performance[perf.UserID+":"+perf.Timeframe] = perf
	return nil
}

func (f *fakeProgressCache) GetPerformance(ctx context.Context, userID, timeframe string) (*models.UserPerformance, error) {
	if f.fail {
		return nil, errCacheDown
	}
	perf, ok := f.performance[userID+":"+timeframe]
	if !ok {
		return nil, cache.ErrMiss
	}
	return perf, nil
}

type fakePublisher struct {
	events []event.SessionCompletedEvent
}

func (f *fakePublisher) PublishSessionCompleted(evt event.SessionCompletedEvent) error {
	f.events = append(f.events, evt)
	return nil
}

// fakeStatsStore supports forcing a bounded number of CAS conflicts to
// exercise the retry loop.
type fakeStatsStore struct {
	stats     map[string]*models.CaseStats
	conflicts int
}

func newFakeStatsStore() *fakeStatsStore {
	return &fakeStatsStore{stats: make(map[string]*models.CaseStats)}
}

func (f *fakeStatsStore) FindByCase(ctx context.Context, caseID string) (*models.CaseStats, error) {
	stored, ok := f.stats[caseID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	clone := *stored
	return &clone, nil
}

func (f *fakeStatsStore) SaveCAS(ctx context.Context, stats *models.CaseStats) error {
	if f.conflicts > 0 {
		f.conflicts--
		return repository.ErrConflict
	}
	stored, ok := f.stats[stats.CaseID]
	if stats.Revision == 0 {
		if ok {
			return repository.ErrConflict
		}
		stats.Revision = 1
	} else {
		if !ok || stored.Revision != stats.Revision {
			return repository.ErrConflict
		}
		stats.Revision++
	}
	clone := *stats
	f.stats[stats.CaseID] = &clone
	return nil
}
