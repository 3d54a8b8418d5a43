package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Construye-bit/ehc-gym-repo-sub003/internal/messaging"
	"github.com/Construye-bit/ehc-gym-repo-sub003/internal/models"
	"github.com/Construye-bit/ehc-gym-repo-sub003/internal/repository"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

const (
	maxPostTitleLength   = 200
	maxPostContentLength = 20000
)

type PostService struct {
	db           txBeginner
	postRepo     *repository.PostRepository
	postLikeRepo *repository.PostLikeRepository
	cache        PostCache
	observers    Observers
	now          func() time.Time
}

// NewPostService wires the post service. cache may be nil, in which case
// every read goes to Postgres.
func NewPostService(
	db txBeginner,
	postRepo *repository.PostRepository,
	postLikeRepo *repository.PostLikeRepository,
	cache PostCache,
	observers Observers,
) *PostService {
	return &PostService{
		db:           db,
		postRepo:     postRepo,
		postLikeRepo: postLikeRepo,
		cache:        cache,
		observers:    observers.withDefaults(),
		now:          time.Now,
	}
}

type CreatePostInput struct {
	Title   string
	Content string
	Publish bool
}

func canAuthor(role string) bool {
	return role == models.RoleTrainer || role == models.RoleAdmin
}

func canManagePost(actorID int64, role string, post *models.Post) bool {
	return role == models.RoleAdmin || (role == models.RoleTrainer && post.AuthorID == actorID)
}

func (s *PostService) CreatePost(
	ctx context.Context,
	actorID int64,
	role string,
	input CreatePostInput,
) (*models.Post, error) {
	if actorID <= 0 {
		return nil, ErrUnauthenticated
	}
	if !canAuthor(role) {
		return nil, ErrForbidden
	}

	title := strings.TrimSpace(input.Title)
	content := strings.TrimSpace(input.Content)
	if title == "" || len([]rune(title)) > maxPostTitleLength {
		return nil, ErrInvalidInput
	}
	if content == "" || len([]rune(content)) > maxPostContentLength {
		return nil, ErrInvalidInput
	}

	status := models.PostStatusDraft
	if input.Publish {
		status = models.PostStatusPublished
	}

	return s.postRepo.Create(ctx, repository.CreatePostInput{
		AuthorID: actorID,
		Title:    title,
		Content:  content,
		Status:   status,
	})
}

// PublishPost moves a draft to PUBLISHED. Publishing twice returns the
// published post unchanged.
func (s *PostService) PublishPost(ctx context.Context, actorID int64, role string, postID int64) (*models.Post, error) {
	post, err := s.loadManaged(ctx, actorID, role, postID)
	if err != nil {
		return nil, err
	}
	if post.Status == models.PostStatusPublished {
		return post, nil
	}

	published, err := s.postRepo.Publish(ctx, postID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidStateTransition
		}
		return nil, err
	}
	s.invalidate(ctx, postID)
	return published, nil
}

func (s *PostService) DeletePost(ctx context.Context, actorID int64, role string, postID int64) error {
	if _, err := s.loadManaged(ctx, actorID, role, postID); err != nil {
		return err
	}

	if _, err := s.postRepo.SoftDelete(ctx, postID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	s.invalidate(ctx, postID)
	return nil
}

func (s *PostService) loadManaged(ctx context.Context, actorID int64, role string, postID int64) (*models.Post, error) {
	if actorID <= 0 {
		return nil, ErrUnauthenticated
	}
	if postID <= 0 {
		return nil, ErrInvalidInput
	}

	post, err := s.postRepo.GetByID(ctx, postID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if post.DeletedAt != nil {
		return nil, ErrNotFound
	}
	if !canManagePost(actorID, role, post) {
		return nil, ErrForbidden
	}
	return post, nil
}

// GetPost returns a post with the caller's like flag. Drafts are visible to
// their author and admins only; deleted posts to nobody.
func (s *PostService) GetPost(ctx context.Context, actorID int64, role string, postID int64) (*models.PostView, error) {
	if actorID <= 0 {
		return nil, ErrUnauthenticated
	}
	if postID <= 0 {
		return nil, ErrInvalidInput
	}

	post, err := s.cachedPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post.DeletedAt != nil {
		return nil, ErrNotFound
	}
	if post.Status != models.PostStatusPublished && !canManagePost(actorID, role, post) {
		return nil, ErrNotFound
	}

	view := &models.PostView{Post: *post}
	if _, err := s.postLikeRepo.GetByPostAndUser(ctx, postID, actorID); err == nil {
		view.LikedByMe = true
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	return view, nil
}

func (s *PostService) cachedPost(ctx context.Context, postID int64) (*models.Post, error) {
	if s.cache != nil {
		if post, err := s.cache.Get(ctx, postID); err == nil {
			return post, nil
		}
	}

	post, err := s.postRepo.GetByID(ctx, postID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, post); err != nil {
			s.observers.Logger.Warn("cache post failed", zap.Int64("post_id", postID), zap.Error(err))
		}
	}
	return post, nil
}

func (s *PostService) ListPublished(ctx context.Context, page int, limit int) ([]models.Post, int, error) {
	if page <= 0 || limit <= 0 {
		return nil, 0, ErrInvalidInput
	}
	return s.postRepo.ListPublished(ctx, limit, (page-1)*limit)
}

// ToggleLike flips the user's like on a published post. The post row is
// locked for the whole toggle, and likes_count is taken from the row the
// branch updated.
func (s *PostService) ToggleLike(ctx context.Context, actorID int64, postID int64) (*models.LikeToggleResult, error) {
	if actorID <= 0 {
		return nil, ErrUnauthenticated
	}
	if postID <= 0 {
		return nil, ErrInvalidInput
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	txPostRepo := repository.NewPostRepository(tx)
	txLikeRepo := repository.NewPostLikeRepository(tx)

	post, err := txPostRepo.GetByIDForUpdate(ctx, postID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !post.Likeable() {
		return nil, ErrInvalidState
	}

	result := &models.LikeToggleResult{PostID: postID, LikesCount: post.LikesCount}

	existing, err := txLikeRepo.GetByPostAndUser(ctx, postID, actorID)
	switch {
	case err == nil:
		deleted, err := txLikeRepo.Delete(ctx, existing.ID)
		if err != nil {
			return nil, err
		}
		if deleted {
			if result.LikesCount, err = txPostRepo.DecrementLikes(ctx, postID); err != nil {
				return nil, err
			}
		}
		result.Liked = false
	case errors.Is(err, pgx.ErrNoRows):
		_, inserted, err := txLikeRepo.Insert(ctx, postID, actorID, s.now().UTC())
		if err != nil {
			return nil, err
		}
		if inserted {
			if result.LikesCount, err = txPostRepo.IncrementLikes(ctx, postID); err != nil {
				return nil, err
			}
		}
		result.Liked = true
	default:
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	s.invalidate(ctx, postID)
	s.observers.Metrics.LikeToggled(result.Liked)
	s.observers.publish(ctx, messaging.SubjectLikeToggled, map[string]any{
		"post_id":     postID,
		"user_id":     actorID,
		"liked":       result.Liked,
		"likes_count": result.LikesCount,
	})
	return result, nil
}

// ReconcileLikes rewrites drifted likes_count values from post_likes. Each
// post is repaired in its own transaction under the same row lock ToggleLike
// takes, so a concurrent toggle cannot be overwritten with a stale count.
func (s *PostService) ReconcileLikes(ctx context.Context) (int64, error) {
	ids, err := s.postRepo.DriftedPostIDs(ctx)
	if err != nil {
		return 0, err
	}

	var count int64
	for _, postID := range ids {
		repaired, err := s.repairLikes(ctx, postID)
		if err != nil {
			s.observers.Metrics.LikesReconciled(count)
			return count, err
		}
		if repaired {
			count++
			s.invalidate(ctx, postID)
		}
	}

	s.observers.Metrics.LikesReconciled(count)
	if count > 0 {
		s.observers.Logger.Warn("likes_count drift corrected", zap.Int64("posts", count))
	}
	return count, nil
}

func (s *PostService) repairLikes(ctx context.Context, postID int64) (bool, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	txPostRepo := repository.NewPostRepository(tx)
	if _, err := txPostRepo.GetByIDForUpdate(ctx, postID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}

	repaired, err := txPostRepo.RepairLikeCount(ctx, postID)
	if err != nil {
		return false, err
	}
	return repaired, tx.Commit(ctx)
}

func (s *PostService) invalidate(ctx context.Context, postID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, postID); err != nil {
		s.observers.Logger.Warn("invalidate cached post failed", zap.Int64("post_id", postID), zap.Error(err))
	}
}
