package client

import "time"

type User struct {
	ID           string    `json:"_id"`
	UserName     string    `json:"userName"`
	FullName     string    `json:"fullName"`
	Email        string    `json:"email"`
	ProfilePhoto string    `json:"profilePhoto,omitempty"`
	Location     string    `json:"location,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type PostAuthor struct {
	ID        string `json:"_id"`
	UserName  string `json:"userName"`
	FullName  string `json:"fullName"`
	AvatarURL string `json:"avatarUrl"`
}

type PostMedia struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

type Post struct {
	ID           string      `json:"_id"`
	Text         string      `json:"text"`
	Author       PostAuthor  `json:"author"`
	ParentPost   string      `json:"parentPost,omitempty"`
	Media        []PostMedia `json:"media"`
	LikesCount   int         `json:"likesCount"`
	RepliesCount int         `json:"repliesCount"`
	LikedByMe    bool        `json:"likedByMe"`
	CreatedAt    time.Time   `json:"createdAt"`
	UpdatedAt    time.Time   `json:"updatedAt"`
}

// AuthResponse is returned by register and login.
type AuthResponse struct {
	Message     string `json:"message"`
	AccessToken string `json:"accessToken"`
	User        User   `json:"user"`
}

type FeedPage struct {
	Items      []Post `json:"items"`
	NextCursor string `json:"nextCursor,omitempty"`
}

type LikeState struct {
	Liked      bool `json:"liked"`
	LikesCount int  `json:"likesCount"`
}

// RegisterRequest is the body of POST /api/auth/register.
type RegisterRequest struct {
	UserName string `json:"userName"`
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// MediaFile is an in-memory attachment for CreatePost.
type MediaFile struct {
	Name        string
	ContentType string
	Data        []byte
}

type CreatePostInput struct {
	Text       string
	ParentPost string
	Media      []MediaFile
}

// FeedOrder selects the feed sort direction.
type FeedOrder string

const (
	FeedNewest FeedOrder = "desc"
	FeedOldest FeedOrder = "asc"
)
