package repository

import (
	"context"

	"github.com/Construye-bit/ehc-gym-repo-sub003/internal/models"
	"github.com/jackc/pgx/v5"
)

const postColumns = `id, author_id, title, content, status, likes_count, published_at, deleted_at,
	created_at, updated_at`

type CreatePostInput struct {
	AuthorID int64
	Title    string
	Content  string
	Status   string
}

type PostRepository struct {
	db DBTX
}

func NewPostRepository(db DBTX) *PostRepository {
	return &PostRepository{db: db}
}

func scanPost(row pgx.Row, post *models.Post) error {
	return row.Scan(
		&post.ID,
		&post.AuthorID,
		&post.Title,
		&post.Content,
		&post.Status,
		&post.LikesCount,
		&post.PublishedAt,
		&post.DeletedAt,
		&post.CreatedAt,
		&post.UpdatedAt,
	)
}

func (r *PostRepository) getOne(ctx context.Context, query string, args ...any) (*models.Post, error) {
	var post models.Post
	if err := scanPost(r.db.QueryRow(ctx, query, args...), &post); err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *PostRepository) Create(ctx context.Context, input CreatePostInput) (*models.Post, error) {
	query := `
		INSERT INTO posts (author_id, title, content, status, published_at)
		VALUES ($1, $2, $3, $4, CASE WHEN $4 = 'PUBLISHED' THEN NOW() END)
		RETURNING ` + postColumns
	return r.getOne(ctx, query, input.AuthorID, input.Title, input.Content, input.Status)
}

func (r *PostRepository) GetByID(ctx context.Context, postID int64) (*models.Post, error) {
	query := `SELECT ` + postColumns + `
		FROM posts
		WHERE id = $1
	`
	return r.getOne(ctx, query, postID)
}

func (r *PostRepository) GetByIDForUpdate(ctx context.Context, postID int64) (*models.Post, error) {
	query := `SELECT ` + postColumns + `
		FROM posts
		WHERE id = $1
		FOR UPDATE
	`
	return r.getOne(ctx, query, postID)
}

func (r *PostRepository) ListPublished(ctx context.Context, limit int, offset int) ([]models.Post, int, error) {
	var total int
	if err := r.db.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM posts
		WHERE status = 'PUBLISHED' AND deleted_at IS NULL
	`).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + postColumns + `
		FROM posts
		WHERE status = 'PUBLISHED' AND deleted_at IS NULL
		ORDER BY published_at DESC, id DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	posts := make([]models.Post, 0)
	for rows.Next() {
		var post models.Post
		if err := scanPost(rows, &post); err != nil {
			return nil, 0, err
		}
		posts = append(posts, post)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return posts, total, nil
}

// Publish moves a live draft to PUBLISHED. Returns pgx.ErrNoRows otherwise.
func (r *PostRepository) Publish(ctx context.Context, postID int64) (*models.Post, error) {
	query := `
		UPDATE posts
		SET status = 'PUBLISHED', published_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = 'DRAFT' AND deleted_at IS NULL
		RETURNING ` + postColumns
	return r.getOne(ctx, query, postID)
}

func (r *PostRepository) SoftDelete(ctx context.Context, postID int64) (*models.Post, error) {
	query := `
		UPDATE posts
		SET deleted_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING ` + postColumns
	return r.getOne(ctx, query, postID)
}

func (r *PostRepository) IncrementLikes(ctx context.Context, postID int64) (int, error) {
	var likesCount int
	err := r.db.QueryRow(ctx, `
		UPDATE posts
		SET likes_count = likes_count + 1, updated_at = NOW()
		WHERE id = $1
		RETURNING likes_count
	`, postID).Scan(&likesCount)
	return likesCount, err
}

func (r *PostRepository) DecrementLikes(ctx context.Context, postID int64) (int, error) {
	var likesCount int
	err := r.db.QueryRow(ctx, `
		UPDATE posts
		SET likes_count = GREATEST(likes_count - 1, 0), updated_at = NOW()
		WHERE id = $1
		RETURNING likes_count
	`, postID).Scan(&likesCount)
	return likesCount, err
}

// DriftedPostIDs lists posts whose likes_count disagrees with post_likes.
// The scan takes no locks, so callers recheck each id under its row lock.
func (r *PostRepository) DriftedPostIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.db.Query(ctx, `
		SELECT p.id
		FROM posts p
		LEFT JOIN post_likes pl ON pl.post_id = p.id
		GROUP BY p.id
		HAVING p.likes_count <> COUNT(pl.id)
		ORDER BY p.id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// RepairLikeCount recounts one post from post_likes. The caller holds the
// post row lock, so the count sees every toggle committed before the lock.
func (r *PostRepository) RepairLikeCount(ctx context.Context, postID int64) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE posts
		SET likes_count = (SELECT COUNT(*) FROM post_likes WHERE post_id = $1), updated_at = NOW()
		WHERE id = $1
		  AND likes_count <> (SELECT COUNT(*) FROM post_likes WHERE post_id = $1)
	`, postID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
