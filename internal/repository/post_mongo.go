package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"recipehub/internal/model"
)

const (
	postsCollection    = "posts"
	profilesCollection = "user_profiles"
)

// postDocument is the stored shape of a post. Comments are embedded and
// excluded from post reads by projection.
type postDocument struct {
	ID           primitive.ObjectID `bson:"_id"`
	AuthorID     string             `bson:"author_id"`
	AuthorName   string             `bson:"author_name"`
	AuthorImage  string             `bson:"author_image"`
	Content      string             `bson:"content"`
	Media        []model.Media      `bson:"media"`
	Tags         []string           `bson:"tags"`
	Recipe       string             `bson:"recipe,omitempty"`
	LikeCount    int                `bson:"like_count"`
	LikedBy      []string           `bson:"liked_by"`
	ShareCount   int                `bson:"share_count"`
	SharedBy     []string           `bson:"shared_by"`
	Comments     []commentDocument  `bson:"comments"`
	CommentCount int                `bson:"comment_count"`
	Version      int64              `bson:"version"`
	CreatedAt    time.Time          `bson:"created_at"`
	UpdatedAt    time.Time          `bson:"updated_at"`
}

func (d postDocument) toModel() model.Post {
	p := model.Post{
		ID:           d.ID.Hex(),
		AuthorID:     d.AuthorID,
		AuthorName:   d.AuthorName,
		AuthorImage:  d.AuthorImage,
		Content:      d.Content,
		Media:        d.Media,
		Tags:         nonNil(d.Tags),
		LikeCount:    d.LikeCount,
		LikedBy:      nonNil(d.LikedBy),
		ShareCount:   d.ShareCount,
		SharedBy:     nonNil(d.SharedBy),
		CommentCount: d.CommentCount,
		Version:      d.Version,
		CreatedAt:    d.CreatedAt.UTC(),
		UpdatedAt:    d.UpdatedAt.UTC(),
	}
	if p.Media == nil {
		p.Media = []model.Media{}
	}
	if d.Recipe != "" {
		p.Recipe = json.RawMessage(d.Recipe)
	}
	return p
}

var (
	withoutComments = bson.M{"comments": 0}
	newestFirst     = bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}}
)

type mongoPostRepository struct {
	posts *mongo.Collection
}

// NewMongoPostRepository stores posts with embedded comments in one
// document per post.
func NewMongoPostRepository(db *mongo.Database) PostRepository {
	return &mongoPostRepository{posts: db.Collection(postsCollection)}
}

// EnsureMongoIndexes creates the text, listing and comment lookup indexes.
func EnsureMongoIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(postsCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "content", Value: "text"},
				{Key: "author_name", Value: "text"},
				{Key: "tags", Value: "text"},
			},
			Options: options.Index().SetName("posts_text").SetDefaultLanguage("english"),
		},
		{Keys: newestFirst},
		{Keys: bson.D{{Key: "author_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "comments.id", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("create post indexes: %w", err)
	}
	return nil
}

func (r *mongoPostRepository) Create(ctx context.Context, post *model.Post) error {
	now := time.Now().UTC().Truncate(time.Millisecond)
	oid := primitive.NewObjectID()
	post.ID = oid.Hex()
	post.CreatedAt = now
	post.UpdatedAt = now
	post.Version = 1
	normalizePost(post)

	doc := postDocument{
		ID:          oid,
		AuthorID:    post.AuthorID,
		AuthorName:  post.AuthorName,
		AuthorImage: post.AuthorImage,
		Content:     post.Content,
		Media:       post.Media,
		Tags:        post.Tags,
		Recipe:      string(post.Recipe),
		LikedBy:     post.LikedBy,
		SharedBy:    post.SharedBy,
		Comments:    []commentDocument{},
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if _, err := r.posts.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert post: %w", err)
	}
	return nil
}

func (r *mongoPostRepository) GetByID(ctx context.Context, postID string) (*model.Post, error) {
	oid, err := primitive.ObjectIDFromHex(postID)
	if err != nil {
		return nil, model.ErrPostNotFound
	}

	var doc postDocument
	err = r.posts.FindOne(ctx, bson.M{"_id": oid}, options.FindOne().SetProjection(withoutComments)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, model.ErrPostNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get post: %w", err)
	}

	post := doc.toModel()
	return &post, nil
}

func (r *mongoPostRepository) GetByIDs(ctx context.Context, postIDs []string) ([]model.Post, error) {
	oids := make([]primitive.ObjectID, 0, len(postIDs))
	for _, id := range postIDs {
		if oid, err := primitive.ObjectIDFromHex(id); err == nil {
			oids = append(oids, oid)
		}
	}
	if len(oids) == 0 {
		return []model.Post{}, nil
	}

	docs, err := r.find(ctx, bson.M{"_id": bson.M{"$in": oids}}, options.Find().SetProjection(withoutComments))
	if err != nil {
		return nil, fmt.Errorf("get posts by ids: %w", err)
	}

	byID := make(map[string]model.Post, len(docs))
	for _, p := range docs {
		byID[p.ID] = p
	}
	ordered := make([]model.Post, 0, len(oids))
	for _, oid := range oids {
		if p, ok := byID[oid.Hex()]; ok {
			ordered = append(ordered, p)
		}
	}
	return ordered, nil
}

func (r *mongoPostRepository) UpdateContent(ctx context.Context, post *model.Post, expectedVersion int64) error {
	normalizePost(post)
	now := time.Now().UTC().Truncate(time.Millisecond)
	err := r.updateVersioned(ctx, post.ID, expectedVersion, bson.M{
		"content":    post.Content,
		"tags":       post.Tags,
		"media":      post.Media,
		"updated_at": now,
	})
	if err != nil {
		return err
	}
	post.UpdatedAt = now
	post.Version = expectedVersion + 1
	return nil
}

func (r *mongoPostRepository) SaveEngagement(ctx context.Context, post *model.Post, expectedVersion int64) error {
	normalizePost(post)
	err := r.updateVersioned(ctx, post.ID, expectedVersion, bson.M{
		"like_count":  len(post.LikedBy),
		"liked_by":    post.LikedBy,
		"share_count": len(post.SharedBy),
		"shared_by":   post.SharedBy,
	})
	if err != nil {
		return err
	}
	post.Version = expectedVersion + 1
	return nil
}

func (r *mongoPostRepository) updateVersioned(ctx context.Context, postID string, expectedVersion int64, set bson.M) error {
	oid, err := primitive.ObjectIDFromHex(postID)
	if err != nil {
		return model.ErrPostNotFound
	}

	res, err := r.posts.UpdateOne(ctx,
		bson.M{"_id": oid, "version": expectedVersion},
		bson.M{"$set": set, "$inc": bson.M{"version": 1}},
	)
	if err != nil {
		return fmt.Errorf("update post: %w", err)
	}
	if res.MatchedCount > 0 {
		return nil
	}

	n, err := r.posts.CountDocuments(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("check post exists: %w", err)
	}
	if n == 0 {
		return model.ErrPostNotFound
	}
	return model.ErrVersionConflict
}

// Delete removes the post document, embedded comments included.
func (r *mongoPostRepository) Delete(ctx context.Context, postID string) error {
	oid, err := primitive.ObjectIDFromHex(postID)
	if err != nil {
		return model.ErrPostNotFound
	}
	res, err := r.posts.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	if res.DeletedCount == 0 {
		return model.ErrPostNotFound
	}
	return nil
}

func (r *mongoPostRepository) List(ctx context.Context, q model.PostQuery) ([]model.Post, int, error) {
	filter := bson.M{}
	if q.AuthorID != "" {
		filter["author_id"] = q.AuthorID
	}
	if q.Since != nil {
		filter["created_at"] = bson.M{"$gte": *q.Since}
	}
	return r.page(ctx, filter, newestFirst, nil, q.Skip, q.Limit)
}

// SearchText uses the posts_text index and orders by textScore.
func (r *mongoPostRepository) SearchText(ctx context.Context, query string, skip, limit int) ([]model.Post, int, error) {
	filter := bson.M{"$text": bson.M{"$search": query}}
	sort := bson.D{
		{Key: "score", Value: bson.M{"$meta": "textScore"}},
		{Key: "created_at", Value: -1},
		{Key: "_id", Value: 1},
	}
	projection := bson.M{"comments": 0, "score": bson.M{"$meta": "textScore"}}
	return r.page(ctx, filter, sort, projection, skip, limit)
}

// SearchSubstring ORs a case-insensitive literal regex over the
// searchable fields.
func (r *mongoPostRepository) SearchSubstring(ctx context.Context, query string, skip, limit int) ([]model.Post, int, error) {
	re := primitive.Regex{Pattern: regexp.QuoteMeta(query), Options: "i"}
	filter := bson.M{"$or": bson.A{
		bson.M{"content": re},
		bson.M{"author_name": re},
		bson.M{"tags": re},
	}}
	return r.page(ctx, filter, newestFirst, nil, skip, limit)
}

func (r *mongoPostRepository) page(ctx context.Context, filter interface{}, sort bson.D, projection interface{}, skip, limit int) ([]model.Post, int, error) {
	total, err := r.posts.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count posts: %w", err)
	}
	if total == 0 || int64(skip) >= total {
		return []model.Post{}, int(total), nil
	}

	if projection == nil {
		projection = withoutComments
	}
	opts := options.Find().
		SetSort(sort).
		SetSkip(int64(skip)).
		SetLimit(int64(limit)).
		SetProjection(projection)
	posts, err := r.find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("find posts: %w", err)
	}
	return posts, int(total), nil
}

func (r *mongoPostRepository) find(ctx context.Context, filter interface{}, opts *options.FindOptions) ([]model.Post, error) {
	cursor, err := r.posts.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []postDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	posts := make([]model.Post, len(docs))
	for i, d := range docs {
		posts[i] = d.toModel()
	}
	return posts, nil
}
