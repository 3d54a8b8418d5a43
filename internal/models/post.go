package models

import "time"

const (
	PostStatusDraft     = "DRAFT"
	PostStatusPublished = "PUBLISHED"
)

type Post struct {
	ID          int64      `json:"id"`
	AuthorID    int64      `json:"author_id"`
	Title       string     `json:"title"`
	Content     string     `json:"content"`
	Status      string     `json:"status"`
	LikesCount  int        `json:"likes_count"`
	PublishedAt *time.Time `json:"published_at"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Likeable reports whether the post currently accepts likes.
func (p *Post) Likeable() bool {
	return p.Status == PostStatusPublished && p.DeletedAt == nil
}

type PostLike struct {
	ID        int64     `json:"id"`
	PostID    int64     `json:"post_id"`
	UserID    int64     `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

type PostView struct {
	Post
	LikedByMe bool `json:"liked_by_me"`
}

type LikeToggleResult struct {
	PostID     int64 `json:"post_id"`
	Liked      bool  `json:"liked"`
	LikesCount int   `json:"likes_count"`
}
