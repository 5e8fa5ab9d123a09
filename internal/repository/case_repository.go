package repository

import (
	"context"
	"errors"

	"simulation-service/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type CaseRepository struct {
	Col *mongo.Collection
}

func NewCaseRepository(db *mongo.Database) *CaseRepository {
	return &CaseRepository{Col: db.Collection("cases")}
}

func (r *CaseRepository) FindByID(ctx context.Context, id string) (*models.CaseGraph, error) {
	var graph models.CaseGraph
	err := r.Col.FindOne(ctx, bson.M{"_id": id}).Decode(&graph)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &graph, nil
}

// FindPublishedByID returns the case only when it is publicly consumable.
func (r *CaseRepository) FindPublishedByID(ctx context.Context, id string) (*models.CaseGraph, error) {
	var graph models.CaseGraph
	filter := bson.M{"_id": id, "status": models.CaseStatusPublished}
	err := r.Col.FindOne(ctx, filter).Decode(&graph)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &graph, nil
}

// Publish validates the graph and flips its status to published. Validation
// happens here, once, so the session engine never re-checks graph shape.
func (r *CaseRepository) Publish(ctx context.Context, graph *models.CaseGraph) error {
	if err := graph.Validate(); err != nil {
		return err
	}
	_, err := r.Col.UpdateOne(ctx,
		bson.M{"_id": graph.ID},
		bson.M{"$set": bson.M{"status": models.CaseStatusPublished}},
	)
	return err
}
