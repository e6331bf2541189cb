package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"recipehub/internal/model"
)

type profileDocument struct {
	UID         string    `bson:"_id"`
	DisplayName string    `bson:"display_name"`
	PhotoURL    *string   `bson:"photo_url,omitempty"`
	UpdatedAt   time.Time `bson:"updated_at"`
}

type mongoUserRepository struct {
	profiles *mongo.Collection
}

func NewMongoUserRepository(db *mongo.Database) UserRepository {
	return &mongoUserRepository{profiles: db.Collection(profilesCollection)}
}

func (r *mongoUserRepository) GetProfile(ctx context.Context, uid string) (*model.UserProfile, error) {
	var doc profileDocument
	err := r.profiles.FindOne(ctx, bson.M{"_id": uid}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, model.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return &model.UserProfile{
		UID:         doc.UID,
		DisplayName: doc.DisplayName,
		PhotoURL:    doc.PhotoURL,
		UpdatedAt:   doc.UpdatedAt.UTC(),
	}, nil
}

func (r *mongoUserRepository) UpsertProfile(ctx context.Context, p *model.UserProfile) error {
	p.UpdatedAt = time.Now().UTC().Truncate(time.Millisecond)
	doc := profileDocument{
		UID:         p.UID,
		DisplayName: p.DisplayName,
		PhotoURL:    p.PhotoURL,
		UpdatedAt:   p.UpdatedAt,
	}
	_, err := r.profiles.ReplaceOne(ctx, bson.M{"_id": p.UID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to upsert profile: %w", err)
	}
	return nil
}
