package store

import "time"

// User status values. They match socialn.AccountStatus.
const (
	UserActive   uint8 = 0
	UserDisabled uint8 = 1
)

// User is an account. ProfilePhotoKey is the media storage key behind
// ProfilePhoto.
type User struct {
	ID              string    `db:"id"`
	UserName        string    `db:"user_name"`
	FullName        string    `db:"full_name"`
	Email           string    `db:"email"`
	PasswordHash    string    `db:"password_hash"`
	ProfilePhoto    string    `db:"profile_photo"`
	ProfilePhotoKey string    `db:"profile_photo_key"`
	Location        string    `db:"location"`
	Status          uint8     `db:"status"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}

// UserUpdate is a partial update; nil fields are left unchanged.
type UserUpdate struct {
	UserName        *string
	FullName        *string
	Email           *string
	Location        *string
	ProfilePhoto    *string
	ProfilePhotoKey *string
	PasswordHash    *string
}

// Empty reports whether the update changes nothing.
func (u UserUpdate) Empty() bool {
	return u.UserName == nil && u.FullName == nil && u.Email == nil &&
		u.Location == nil && u.ProfilePhoto == nil && u.ProfilePhotoKey == nil &&
		u.PasswordHash == nil
}

// MediaType is the kind of a post attachment.
type MediaType string

const (
	MediaImage MediaType = "image"
	MediaVideo MediaType = "video"
)

type Media struct {
	Type MediaType `json:"type"`
	URL  string    `json:"url"`
	// Key identifies the blob in media storage so it can be removed with
	// the post.
	Key string `json:"key,omitempty"`
}

// Author is the public view of a post's author, filled in on reads.
type Author struct {
	ID           string
	UserName     string
	FullName     string
	ProfilePhoto string
}

type Post struct {
	ID           string
	AuthorID     string
	Author       Author
	Text         string
	ParentPostID string
	Media        []Media
	LikesCount   int
	RepliesCount int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewPost is the input to Posts.Create.
type NewPost struct {
	AuthorID     string
	Text         string
	ParentPostID string
	Media        []Media
}

// Order is the feed sort direction by creation time.
type Order string

const (
	OrderDesc Order = "desc"
	OrderAsc  Order = "asc"
)

const (
	DefaultFeedLimit = 10
	MaxFeedLimit     = 50
)

type FeedQuery struct {
	Limit  int
	Order  Order
	Cursor string
}

type FeedPage struct {
	Items []Post
	// NextCursor is empty on the last page.
	NextCursor string
}
