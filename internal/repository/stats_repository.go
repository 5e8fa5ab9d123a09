package repository

import (
	"context"
	"errors"

	"simulation-service/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type StatsRepository struct {
	Col *mongo.Collection
}

func NewStatsRepository(db *mongo.Database) *StatsRepository {
	return &StatsRepository{Col: db.Collection("case_stats")}
}

func (r *StatsRepository) FindByCase(ctx context.Context, caseID string) (*models.CaseStats, error) {
	var stats models.CaseStats
	err := r.Col.FindOne(ctx, bson.M{"_id": caseID}).Decode(&stats)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

// SaveCAS persists the aggregate record guarded by the revision it was read
// at. A zero revision means the record has never been written; a duplicate
// key on insert or a missed match on update both mean another instance got
// there first.
func (r *StatsRepository) SaveCAS(ctx context.Context, stats *models.CaseStats) error {
	if stats.Revision == 0 {
		insert := *stats
		insert.Revision = 1
		_, err := r.Col.InsertOne(ctx, insert)
		if mongo.IsDuplicateKeyError(err) {
			return ErrConflict
		}
		if err != nil {
			return err
		}
		stats.Revision = 1
		return nil
	}

	filter := bson.M{"_id": stats.CaseID, "revision": stats.Revision}
	update := bson.M{
		"$set": bson.M{
			"completion_count":   stats.CompletionCount,
			"average_score":      stats.AverageScore,
			"average_time_spent": stats.AverageTimeSpent,
			"updated_at":         stats.UpdatedAt,
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
	stats.Revision++
	return nil
}
