package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"recipehub/internal/model"
)

type commentDocument struct {
	ID          string    `bson:"id"`
	AuthorID    string    `bson:"author_id"`
	AuthorName  string    `bson:"author_name"`
	AuthorImage string    `bson:"author_image"`
	Content     string    `bson:"content"`
	ParentID    *string   `bson:"parent_id,omitempty"`
	LikeCount   int       `bson:"like_count"`
	LikedBy     []string  `bson:"liked_by"`
	CreatedAt   time.Time `bson:"created_at"`
}

func (d commentDocument) toModel(postID string) model.Comment {
	return model.Comment{
		ID:          d.ID,
		PostID:      postID,
		AuthorID:    d.AuthorID,
		AuthorName:  d.AuthorName,
		AuthorImage: d.AuthorImage,
		Content:     d.Content,
		ParentID:    d.ParentID,
		LikeCount:   d.LikeCount,
		LikedBy:     nonNil(d.LikedBy),
		CreatedAt:   d.CreatedAt.UTC(),
	}
}

type mongoCommentRepository struct {
	posts *mongo.Collection
}

// NewMongoCommentRepository reads and writes the comments array of post
// documents. Lookups by comment ID use the multikey index on comments.id.
func NewMongoCommentRepository(db *mongo.Database) CommentRepository {
	return &mongoCommentRepository{posts: db.Collection(postsCollection)}
}

// Append pushes the comment and bumps the counter in one document update.
func (r *mongoCommentRepository) Append(ctx context.Context, postID string, c *model.Comment) (int, error) {
	oid, err := primitive.ObjectIDFromHex(postID)
	if err != nil {
		return 0, model.ErrPostNotFound
	}

	c.ID = uuid.NewString()
	c.PostID = postID
	c.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	c.LikedBy = nonNil(c.LikedBy)

	doc := commentDocument{
		ID:          c.ID,
		AuthorID:    c.AuthorID,
		AuthorName:  c.AuthorName,
		AuthorImage: c.AuthorImage,
		Content:     c.Content,
		ParentID:    c.ParentID,
		LikedBy:     c.LikedBy,
		CreatedAt:   c.CreatedAt,
	}
	update := bson.M{
		"$push": bson.M{"comments": doc},
		"$inc":  bson.M{"comment_count": 1, "version": 1},
	}
	return r.updateCount(ctx, bson.M{"_id": oid}, update, model.ErrPostNotFound)
}

func (r *mongoCommentRepository) GetByID(ctx context.Context, commentID string) (*model.Comment, error) {
	var doc struct {
		ID       primitive.ObjectID `bson:"_id"`
		Comments []commentDocument  `bson:"comments"`
	}
	opts := options.FindOne().SetProjection(bson.M{"comments.$": 1})
	err := r.posts.FindOne(ctx, bson.M{"comments.id": commentID}, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, model.ErrCommentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get comment: %w", err)
	}
	if len(doc.Comments) == 0 {
		return nil, model.ErrCommentNotFound
	}

	c := doc.Comments[0].toModel(doc.ID.Hex())
	return &c, nil
}

// Delete pulls the comment and decrements the counter in one update.
func (r *mongoCommentRepository) Delete(ctx context.Context, commentID string) (string, int, error) {
	var doc struct {
		ID           primitive.ObjectID `bson:"_id"`
		CommentCount int                `bson:"comment_count"`
	}
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetProjection(bson.M{"comment_count": 1})
	update := bson.M{
		"$pull": bson.M{"comments": bson.M{"id": commentID}},
		"$inc":  bson.M{"comment_count": -1, "version": 1},
	}
	err := r.posts.FindOneAndUpdate(ctx, bson.M{"comments.id": commentID}, update, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", 0, model.ErrCommentNotFound
	}
	if err != nil {
		return "", 0, fmt.Errorf("delete comment: %w", err)
	}
	return doc.ID.Hex(), doc.CommentCount, nil
}

// ListByPost unwinds the comments array, keeping the array index so equal
// timestamps stay in append order.
func (r *mongoCommentRepository) ListByPost(ctx context.Context, postID string, skip, limit int) ([]model.Comment, int, error) {
	oid, err := primitive.ObjectIDFromHex(postID)
	if err != nil {
		return []model.Comment{}, 0, nil
	}

	var head struct {
		CommentCount int `bson:"comment_count"`
	}
	err = r.posts.FindOne(ctx, bson.M{"_id": oid}, options.FindOne().SetProjection(bson.M{"comment_count": 1})).Decode(&head)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return []model.Comment{}, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("count comments: %w", err)
	}
	total := head.CommentCount
	if total == 0 || skip >= total {
		return []model.Comment{}, total, nil
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"_id": oid}}},
		{{Key: "$unwind", Value: bson.M{"path": "$comments", "includeArrayIndex": "idx"}}},
		{{Key: "$replaceRoot", Value: bson.M{"newRoot": bson.M{"$mergeObjects": bson.A{"$comments", bson.M{"idx": "$idx"}}}}}},
		{{Key: "$sort", Value: bson.D{{Key: "created_at", Value: -1}, {Key: "idx", Value: 1}}}},
		{{Key: "$skip", Value: int64(skip)}},
		{{Key: "$limit", Value: int64(limit)}},
	}
	cursor, err := r.posts.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, 0, fmt.Errorf("list comments: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []commentDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, 0, fmt.Errorf("decode comments: %w", err)
	}
	comments := make([]model.Comment, len(docs))
	for i, d := range docs {
		comments[i] = d.toModel(postID)
	}
	return comments, total, nil
}

func (r *mongoCommentRepository) updateCount(ctx context.Context, filter, update bson.M, notFound error) (int, error) {
	var doc struct {
		CommentCount int `bson:"comment_count"`
	}
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetProjection(bson.M{"comment_count": 1})
	err := r.posts.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, notFound
	}
	if err != nil {
		return 0, fmt.Errorf("update comments: %w", err)
	}
	return doc.CommentCount, nil
}
