package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrNotFound          = errors.New("store: not found")
	ErrDuplicateEmail    = errors.New("store: email already in use")
	ErrDuplicateUserName = errors.New("store: user name already in use")
	ErrInvalidFeedQuery  = errors.New("store: invalid feed query")
)

type Users interface {
	CreateUser(ctx context.Context, u User) (User, error)
	GetUser(ctx context.Context, id string) (User, error)
	// GetUserByIdentifier matches a lowercased email or user name.
	GetUserByIdentifier(ctx context.Context, identifier string) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
	UpdateUser(ctx context.Context, id string, upd UserUpdate) (User, error)
	// DeleteUser removes the user with their posts and likes. It returns the
	// media keys that belonged to the removed rows, including replies other
	// users made to the removed posts and the profile photo.
	DeleteUser(ctx context.Context, id string) ([]string, error)
	UpdatePasswordHash(ctx context.Context, id, hash string) error
}

type Posts interface {
	// CreatePost stores a post. A reply increments its parent's reply count;
	// a missing parent is ErrNotFound.
	CreatePost(ctx context.Context, in NewPost) (Post, error)
	GetPost(ctx context.Context, id string) (Post, error)
	// DeletePost removes the post and its replies and returns the media keys
	// they referenced.
	DeletePost(ctx context.Context, id string) ([]string, error)
	Feed(ctx context.Context, q FeedQuery) (FeedPage, error)
}

type Likes interface {
	// ToggleLike adds the like when absent and removes it otherwise.
	ToggleLike(ctx context.Context, postID, userID string) (liked bool, likesCount int, err error)
	HasLiked(ctx context.Context, postID, userID string) (bool, error)
	// LikedPosts returns the subset of postIDs the user has liked.
	LikedPosts(ctx context.Context, userID string, postIDs []string) (map[string]bool, error)
}

type Store interface {
	Users
	Posts
	Likes
	Ping(ctx context.Context) error
	Close() error
}

// NormalizeFeedQuery applies defaults and rejects out-of-range values.
func NormalizeFeedQuery(q FeedQuery) (FeedQuery, error) {
	if q.Limit == 0 {
		q.Limit = DefaultFeedLimit
	}
	if q.Limit < 1 || q.Limit > MaxFeedLimit {
		return q, fmt.Errorf("%w: limit must be between 1 and %d", ErrInvalidFeedQuery, MaxFeedLimit)
	}
	switch Order(strings.ToLower(string(q.Order))) {
	case "", OrderDesc:
		q.Order = OrderDesc
	case OrderAsc:
		q.Order = OrderAsc
	default:
		return q, fmt.Errorf("%w: order must be asc or desc", ErrInvalidFeedQuery)
	}
	if q.Cursor != "" {
		if _, err := decodeCursor(q.Cursor); err != nil {
			return q, err
		}
	}
	return q, nil
}

// ParseFeedLimit parses a query-string limit; empty means the default.
func ParseFeedLimit(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: limit must be a number", ErrInvalidFeedQuery)
	}
	return n, nil
}
