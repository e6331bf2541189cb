package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"recipehub/internal/model"
)

const commentColumns = `id, post_id, author_id, author_name, author_image, content, parent_id,
	like_count, liked_by, created_at`

type commentRow struct {
	ID          string         `db:"id"`
	PostID      string         `db:"post_id"`
	AuthorID    string         `db:"author_id"`
	AuthorName  string         `db:"author_name"`
	AuthorImage string         `db:"author_image"`
	Content     string         `db:"content"`
	ParentID    *string        `db:"parent_id"`
	LikeCount   int            `db:"like_count"`
	LikedBy     pq.StringArray `db:"liked_by"`
	CreatedAt   time.Time      `db:"created_at"`
}

func (row commentRow) toModel() model.Comment {
	return model.Comment{
		ID:          row.ID,
		PostID:      row.PostID,
		AuthorID:    row.AuthorID,
		AuthorName:  row.AuthorName,
		AuthorImage: row.AuthorImage,
		Content:     row.Content,
		ParentID:    row.ParentID,
		LikeCount:   row.LikeCount,
		LikedBy:     nonNil(row.LikedBy),
		CreatedAt:   row.CreatedAt,
	}
}

type commentRepository struct {
	db *sqlx.DB
}

// NewCommentRepository stores comments in post_comments. The table's
// primary key is the commentId → postId index.
func NewCommentRepository(db *sqlx.DB) CommentRepository {
	return &commentRepository{db: db}
}

// Append inserts a comment and recounts the post's comments while holding
// the post row lock.
func (r *commentRepository) Append(ctx context.Context, postID string, c *model.Comment) (int, error) {
	if !isUUID(postID) {
		return 0, model.ErrPostNotFound
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := lockPost(ctx, tx, postID); err != nil {
		return 0, err
	}

	c.ID = uuid.NewString()
	c.PostID = postID
	c.CreatedAt = time.Now().UTC().Truncate(time.Microsecond)
	c.LikedBy = nonNil(c.LikedBy)

	_, err = tx.ExecContext(ctx, `
		INSERT INTO post_comments (id, post_id, author_id, author_name, author_image, content, parent_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, c.ID, postID, c.AuthorID, c.AuthorName, c.AuthorImage, c.Content, c.ParentID, c.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("insert comment: %w", err)
	}

	count, err := recountComments(ctx, tx, postID)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}
	return count, nil
}

// GetByID looks a comment up directly by its ID.
func (r *commentRepository) GetByID(ctx context.Context, commentID string) (*model.Comment, error) {
	if !isUUID(commentID) {
		return nil, model.ErrCommentNotFound
	}

	var row commentRow
	err := r.db.GetContext(ctx, &row, `SELECT `+commentColumns+` FROM post_comments WHERE id = $1`, commentID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrCommentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get comment: %w", err)
	}

	c := row.toModel()
	return &c, nil
}

// Delete removes a single comment. Replies keep their parent_id since
// listings are flat.
func (r *commentRepository) Delete(ctx context.Context, commentID string) (string, int, error) {
	if !isUUID(commentID) {
		return "", 0, model.ErrCommentNotFound
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var postID string
	err = tx.GetContext(ctx, &postID, `SELECT post_id FROM post_comments WHERE id = $1`, commentID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", 0, model.ErrCommentNotFound
	}
	if err != nil {
		return "", 0, fmt.Errorf("get comment: %w", err)
	}

	if err := lockPost(ctx, tx, postID); err != nil {
		return "", 0, err
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM post_comments WHERE id = $1`, commentID)
	if err != nil {
		return "", 0, fmt.Errorf("delete comment: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return "", 0, fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		// Removed concurrently between the lookup and the lock.
		return "", 0, model.ErrCommentNotFound
	}

	count, err := recountComments(ctx, tx, postID)
	if err != nil {
		return "", 0, err
	}

	if err := tx.Commit(); err != nil {
		return "", 0, fmt.Errorf("commit transaction: %w", err)
	}
	return postID, count, nil
}

// ListByPost returns a page of a post's comments, newest first.
func (r *commentRepository) ListByPost(ctx context.Context, postID string, skip, limit int) ([]model.Comment, int, error) {
	if !isUUID(postID) {
		return []model.Comment{}, 0, nil
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM post_comments WHERE post_id = $1`, postID); err != nil {
		return nil, 0, fmt.Errorf("count comments: %w", err)
	}
	if total == 0 || skip >= total {
		return []model.Comment{}, total, nil
	}

	var rows []commentRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT `+commentColumns+`
		FROM post_comments
		WHERE post_id = $1
		ORDER BY created_at DESC, seq ASC
		LIMIT $2 OFFSET $3
	`, postID, limit, skip)
	if err != nil {
		return nil, 0, fmt.Errorf("list comments: %w", err)
	}

	comments := make([]model.Comment, len(rows))
	for i, row := range rows {
		comments[i] = row.toModel()
	}
	return comments, total, nil
}

func lockPost(ctx context.Context, tx *sqlx.Tx, postID string) error {
	var id string
	err := tx.GetContext(ctx, &id, `SELECT id FROM posts WHERE id = $1 FOR UPDATE`, postID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ErrPostNotFound
	}
	if err != nil {
		return fmt.Errorf("lock post: %w", err)
	}
	return nil
}

// recountComments recomputes comment_count from the table and bumps the
// post version so concurrent engagement writes retry.
func recountComments(ctx context.Context, tx *sqlx.Tx, postID string) (int, error) {
	var count int
	err := tx.GetContext(ctx, &count, `
		UPDATE posts
		SET comment_count = (SELECT COUNT(*) FROM post_comments WHERE post_id = $1),
		    version = version + 1
		WHERE id = $1
		RETURNING comment_count
	`, postID)
	if err != nil {
		return 0, fmt.Errorf("update comment count: %w", err)
	}
	return count, nil
}
