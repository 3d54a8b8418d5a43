package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Construye-bit/ehc-gym-repo-sub003/internal/models"
	"github.com/jackc/pgx/v5"
)

type PostLikeRepository struct {
	db DBTX
}

func NewPostLikeRepository(db DBTX) *PostLikeRepository {
	return &PostLikeRepository{db: db}
}

func (r *PostLikeRepository) GetByPostAndUser(ctx context.Context, postID int64, userID int64) (*models.PostLike, error) {
	query := `
		SELECT id, post_id, user_id, created_at
		FROM post_likes
		WHERE post_id = $1 AND user_id = $2
	`
	var like models.PostLike
	err := r.db.QueryRow(ctx, query, postID, userID).
		Scan(&like.ID, &like.PostID, &like.UserID, &like.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &like, nil
}

// Insert adds the like unless one already exists for the pair; the boolean
// reports whether a row was written.
func (r *PostLikeRepository) Insert(
	ctx context.Context,
	postID int64,
	userID int64,
	likedAt time.Time,
) (*models.PostLike, bool, error) {
	query := `
		INSERT INTO post_likes (post_id, user_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (post_id, user_id) DO NOTHING
		RETURNING id, post_id, user_id, created_at
	`
	var like models.PostLike
	err := r.db.QueryRow(ctx, query, postID, userID, likedAt).
		Scan(&like.ID, &like.PostID, &like.UserID, &like.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return &like, true, nil
}

func (r *PostLikeRepository) Delete(ctx context.Context, likeID int64) (bool, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM post_likes WHERE id = $1`, likeID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PostLikeRepository) CountByPost(ctx context.Context, postID int64) (int, error) {
	var total int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM post_likes WHERE post_id = $1`, postID).Scan(&total)
	return total, err
}
