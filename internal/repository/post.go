package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"recipehub/internal/model"
)

const postColumns = `id, author_id, author_name, author_image, content, media, tags, recipe,
	like_count, liked_by, share_count, shared_by, comment_count, version, created_at, updated_at`

// tsQuery ORs the query terms together so any matching word ranks the post.
const tsQuery = `replace(plainto_tsquery('english', $1)::text, ' & ', ' | ')::tsquery`

type postRow struct {
	ID           string         `db:"id"`
	AuthorID     string         `db:"author_id"`
	AuthorName   string         `db:"author_name"`
	AuthorImage  string         `db:"author_image"`
	Content      string         `db:"content"`
	Media        []byte         `db:"media"`
	Tags         pq.StringArray `db:"tags"`
	Recipe       []byte         `db:"recipe"`
	LikeCount    int            `db:"like_count"`
	LikedBy      pq.StringArray `db:"liked_by"`
	ShareCount   int            `db:"share_count"`
	SharedBy     pq.StringArray `db:"shared_by"`
	CommentCount int            `db:"comment_count"`
	Version      int64          `db:"version"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
}

func (row postRow) toModel() (model.Post, error) {
	p := model.Post{
		ID:           row.ID,
		AuthorID:     row.AuthorID,
		AuthorName:   row.AuthorName,
		AuthorImage:  row.AuthorImage,
		Content:      row.Content,
		Tags:         nonNil(row.Tags),
		LikeCount:    row.LikeCount,
		LikedBy:      nonNil(row.LikedBy),
		ShareCount:   row.ShareCount,
		SharedBy:     nonNil(row.SharedBy),
		CommentCount: row.CommentCount,
		Version:      row.Version,
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
	}
	if len(row.Recipe) > 0 {
		p.Recipe = json.RawMessage(row.Recipe)
	}
	p.Media = []model.Media{}
	if len(row.Media) > 0 {
		if err := json.Unmarshal(row.Media, &p.Media); err != nil {
			return model.Post{}, fmt.Errorf("decode media for post %s: %w", row.ID, err)
		}
	}
	return p, nil
}

type postRepository struct {
	db *sqlx.DB
}

func NewPostRepository(db *sqlx.DB) PostRepository {
	return &postRepository{db: db}
}

// Create inserts a new post.
func (r *postRepository) Create(ctx context.Context, post *model.Post) error {
	now := time.Now().UTC().Truncate(time.Microsecond)
	post.ID = uuid.NewString()
	post.CreatedAt = now
	post.UpdatedAt = now
	post.Version = 1
	normalizePost(post)

	media, err := json.Marshal(post.Media)
	if err != nil {
		return fmt.Errorf("encode media: %w", err)
	}

	query := `
		INSERT INTO posts (id, author_id, author_name, author_image, content, media, tags, recipe,
		                   search, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, to_tsvector('english', $9), 1, $10, $10)
	`
	_, err = r.db.ExecContext(ctx, query,
		post.ID,
		post.AuthorID,
		post.AuthorName,
		post.AuthorImage,
		post.Content,
		string(media),
		pq.Array(post.Tags),
		nullableJSON(post.Recipe),
		post.SearchDocument(),
		now,
	)
	if err != nil {
		return fmt.Errorf("insert post: %w", err)
	}
	return nil
}

// GetByID retrieves a single post.
func (r *postRepository) GetByID(ctx context.Context, postID string) (*model.Post, error) {
	if !isUUID(postID) {
		return nil, model.ErrPostNotFound
	}

	var row postRow
	err := r.db.GetContext(ctx, &row, `SELECT `+postColumns+` FROM posts WHERE id = $1`, postID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrPostNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get post: %w", err)
	}

	post, err := row.toModel()
	if err != nil {
		return nil, err
	}
	return &post, nil
}

// GetByIDs retrieves multiple posts by their IDs.
// Used for hydrating feed pages from cache.
func (r *postRepository) GetByIDs(ctx context.Context, postIDs []string) ([]model.Post, error) {
	valid := make([]string, 0, len(postIDs))
	for _, id := range postIDs {
		if isUUID(id) {
			valid = append(valid, id)
		}
	}
	if len(valid) == 0 {
		return []model.Post{}, nil
	}

	var rows []postRow
	err := r.db.SelectContext(ctx, &rows, `SELECT `+postColumns+` FROM posts WHERE id = ANY($1)`, pq.Array(valid))
	if err != nil {
		return nil, fmt.Errorf("get posts by ids: %w", err)
	}

	// Re-order posts to match input order
	byID := make(map[string]model.Post, len(rows))
	for _, row := range rows {
		p, err := row.toModel()
		if err != nil {
			return nil, err
		}
		byID[p.ID] = p
	}
	ordered := make([]model.Post, 0, len(valid))
	for _, id := range valid {
		if p, ok := byID[id]; ok {
			ordered = append(ordered, p)
		}
	}
	return ordered, nil
}

// UpdateContent writes the editable fields under a version check.
func (r *postRepository) UpdateContent(ctx context.Context, post *model.Post, expectedVersion int64) error {
	if !isUUID(post.ID) {
		return model.ErrPostNotFound
	}
	normalizePost(post)
	media, err := json.Marshal(post.Media)
	if err != nil {
		return fmt.Errorf("encode media: %w", err)
	}

	now := time.Now().UTC().Truncate(time.Microsecond)
	query := `
		UPDATE posts
		SET content = $1, tags = $2, media = $3, search = to_tsvector('english', $4),
		    updated_at = $5, version = version + 1
		WHERE id = $6 AND version = $7
	`
	result, err := r.db.ExecContext(ctx, query,
		post.Content,
		pq.Array(post.Tags),
		string(media),
		post.SearchDocument(),
		now,
		post.ID,
		expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("update post: %w", err)
	}
	if err := r.checkVersioned(ctx, result, post.ID); err != nil {
		return err
	}

	post.UpdatedAt = now
	post.Version = expectedVersion + 1
	return nil
}

// SaveEngagement writes like and share state under a version check.
func (r *postRepository) SaveEngagement(ctx context.Context, post *model.Post, expectedVersion int64) error {
	if !isUUID(post.ID) {
		return model.ErrPostNotFound
	}
	normalizePost(post)

	query := `
		UPDATE posts
		SET like_count = $1, liked_by = $2, share_count = $3, shared_by = $4, version = version + 1
		WHERE id = $5 AND version = $6
	`
	result, err := r.db.ExecContext(ctx, query,
		len(post.LikedBy),
		pq.Array(post.LikedBy),
		len(post.SharedBy),
		pq.Array(post.SharedBy),
		post.ID,
		expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("save engagement: %w", err)
	}
	if err := r.checkVersioned(ctx, result, post.ID); err != nil {
		return err
	}

	post.Version = expectedVersion + 1
	return nil
}

// checkVersioned distinguishes a missing post from a stale version when a
// conditional update touched no rows.
func (r *postRepository) checkVersioned(ctx context.Context, result sql.Result, postID string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows > 0 {
		return nil
	}

	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM posts WHERE id = $1)`, postID); err != nil {
		return fmt.Errorf("check post exists: %w", err)
	}
	if !exists {
		return model.ErrPostNotFound
	}
	return model.ErrVersionConflict
}

// Delete removes a post. Its comments go with it via ON DELETE CASCADE.
func (r *postRepository) Delete(ctx context.Context, postID string) error {
	if !isUUID(postID) {
		return model.ErrPostNotFound
	}

	result, err := r.db.ExecContext(ctx, `DELETE FROM posts WHERE id = $1`, postID)
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return model.ErrPostNotFound
	}
	return nil
}

// List returns a page of posts and the total matching count.
func (r *postRepository) List(ctx context.Context, q model.PostQuery) ([]model.Post, int, error) {
	var (
		conds []string
		args  []interface{}
	)
	if q.AuthorID != "" {
		args = append(args, q.AuthorID)
		conds = append(conds, fmt.Sprintf("author_id = $%d", len(args)))
	}
	if q.Since != nil {
		args = append(args, *q.Since)
		conds = append(conds, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM posts`+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count posts: %w", err)
	}
	if total == 0 || q.Skip >= total {
		return []model.Post{}, total, nil
	}

	query := fmt.Sprintf(`SELECT %s FROM posts%s ORDER BY created_at DESC, seq ASC LIMIT $%d OFFSET $%d`,
		postColumns, where, len(args)+1, len(args)+2)
	posts, err := r.selectPosts(ctx, query, append(args, q.Limit, q.Skip)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list posts: %w", err)
	}
	return posts, total, nil
}

// SearchText ranks posts by ts_rank against the english text vector.
func (r *postRepository) SearchText(ctx context.Context, query string, skip, limit int) ([]model.Post, int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM posts WHERE search @@ `+tsQuery, query); err != nil {
		return nil, 0, fmt.Errorf("count text search: %w", err)
	}
	if total == 0 || skip >= total {
		return []model.Post{}, total, nil
	}

	sqlQuery := `SELECT ` + postColumns + ` FROM posts WHERE search @@ ` + tsQuery + `
		ORDER BY ts_rank(search, ` + tsQuery + `) DESC, created_at DESC, seq ASC
		LIMIT $2 OFFSET $3`
	posts, err := r.selectPosts(ctx, sqlQuery, query, limit, skip)
	if err != nil {
		return nil, 0, fmt.Errorf("text search: %w", err)
	}
	return posts, total, nil
}

// SearchSubstring matches content, author name or any tag with ILIKE.
func (r *postRepository) SearchSubstring(ctx context.Context, query string, skip, limit int) ([]model.Post, int, error) {
	pattern := "%" + escapeLike(query) + "%"
	where := ` WHERE content ILIKE $1 OR author_name ILIKE $1
		OR EXISTS (SELECT 1 FROM unnest(tags) AS t(tag) WHERE t.tag ILIKE $1)`

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM posts`+where, pattern); err != nil {
		return nil, 0, fmt.Errorf("count substring search: %w", err)
	}
	if total == 0 || skip >= total {
		return []model.Post{}, total, nil
	}

	posts, err := r.selectPosts(ctx,
		`SELECT `+postColumns+` FROM posts`+where+` ORDER BY created_at DESC, seq ASC LIMIT $2 OFFSET $3`,
		pattern, limit, skip)
	if err != nil {
		return nil, 0, fmt.Errorf("substring search: %w", err)
	}
	return posts, total, nil
}

func (r *postRepository) selectPosts(ctx context.Context, query string, args ...interface{}) ([]model.Post, error) {
	var rows []postRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	posts := make([]model.Post, 0, len(rows))
	for _, row := range rows {
		p, err := row.toModel()
		if err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, nil
}

// Helper functions

func isUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func normalizePost(p *model.Post) {
	p.Tags = nonNil(p.Tags)
	p.LikedBy = nonNil(p.LikedBy)
	p.SharedBy = nonNil(p.SharedBy)
	if p.Media == nil {
		p.Media = []model.Media{}
	}
}

// nullableJSON passes JSONB as text; lib/pq would send []byte as bytea.
func nullableJSON(raw json.RawMessage) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
