package repository

import (
	"context"
	"errors"
	"time"

	"simulation-service/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type SessionRepository struct {
	Col *mongo.Collection
}

func NewSessionRepository(db *mongo.Database) *SessionRepository {
	return &SessionRepository{Col: db.Collection("sessions")}
}

func (r *SessionRepository) Create(ctx context.Context, session *models.Session) error {
	_, err := r.Col.InsertOne(ctx, session)
	return err
}

func (r *SessionRepository) FindByID(ctx context.Context, id string) (*models.Session, error) {
	var session models.Session
	err := r.Col.FindOne(ctx, bson.M{"_id": id}).Decode(&session)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// UpdateCAS writes the session back, guarded by the revision it was read at.
// A concurrent writer bumps the revision first and this write matches
// nothing, which surfaces as ErrConflict instead of a silent lost update.
func (r *SessionRepository) UpdateCAS(ctx context.Context, session *models.Session) error {
	filter := bson.M{"_id": session.ID, "revision": session.Revision}
	update := bson.M{
		"$set": bson.M{
			"status":             session.Status,
			"score":              session.Score,
			"percentage_score":   session.PercentageScore,
			"steps_completed":    session.StepsCompleted,
			"time_spent_seconds": session.TimeSpentSeconds,
			"step_performance":   session.StepPerformance,
			"feedback":           session.Feedback,
			"ended_at":           session.EndedAt,
		},
		"$inc": bson.M{"revision": 1},
	}
	res, err := r.Col.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrConflict
	}
	session.Revision++
	return nil
}

// FindCompletedByCase returns every completed session for a case, for the
// aggregate backfill path.
func (r *SessionRepository) FindCompletedByCase(ctx context.Context, caseID string) ([]models.Session, error) {
	filter := bson.M{"case_id": caseID, "status": models.SessionCompleted}
	return r.find(ctx, filter, nil)
}

// FindCompletedByUserSince returns a user's completed sessions whose end time
// falls at or after the cutoff, oldest first. A zero cutoff means no lower
// bound.
func (r *SessionRepository) FindCompletedByUserSince(ctx context.Context, userID string, since time.Time) ([]models.Session, error) {
	filter := bson.M{"user_id": userID, "status": models.SessionCompleted}
	if !since.IsZero() {
		filter["ended_at"] = bson.M{"$gte": since}
	}
	opts := options.Find().SetSort(bson.D{{Key: "ended_at", Value: 1}})
	return r.find(ctx, filter, opts)
}

func (r *SessionRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.Session, error) {
	var cur *mongo.Cursor
	var err error
	if opts != nil {
		cur, err = r.Col.Find(ctx, filter, opts)
	} else {
		cur, err = r.Col.Find(ctx, filter)
	}
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var sessions []models.Session
	for cur.Next(ctx) {
		var s models.Session
		if err := cur.Decode(&s); err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, cur.Err()
}
