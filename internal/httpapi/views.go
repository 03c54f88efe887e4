package httpapi

import (
	"time"

	"github.com/socialn/socialn/store"
)

type userView struct {
	ID           string    `json:"_id"`
	UserName     string    `json:"userName"`
	FullName     string    `json:"fullName"`
	Email        string    `json:"email"`
	ProfilePhoto string    `json:"profilePhoto,omitempty"`
	Location     string    `json:"location,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func newUserView(u store.User) userView {
	return userView{
		ID:           u.ID,
		UserName:     u.UserName,
		FullName:     u.FullName,
		Email:        u.Email,
		ProfilePhoto: u.ProfilePhoto,
		Location:     u.Location,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

type authorView struct {
	ID        string `json:"_id"`
	UserName  string `json:"userName"`
	FullName  string `json:"fullName"`
	AvatarURL string `json:"avatarUrl"`
}

type mediaView struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

type postView struct {
	ID           string      `json:"_id"`
	Text         string      `json:"text"`
	Author       authorView  `json:"author"`
	ParentPost   string      `json:"parentPost,omitempty"`
	Media        []mediaView `json:"media"`
	LikesCount   int         `json:"likesCount"`
	RepliesCount int         `json:"repliesCount"`
	LikedByMe    bool        `json:"likedByMe"`
	CreatedAt    time.Time   `json:"createdAt"`
	UpdatedAt    time.Time   `json:"updatedAt"`
}

func newPostView(p store.Post, likedByMe bool) postView {
	v := postView{
		ID:   p.ID,
		Text: p.Text,
		Author: authorView{
			ID:        p.Author.ID,
			UserName:  p.Author.UserName,
			FullName:  p.Author.FullName,
			AvatarURL: p.Author.ProfilePhoto,
		},
		ParentPost:   p.ParentPostID,
		Media:        make([]mediaView, 0, len(p.Media)),
		LikesCount:   p.LikesCount,
		RepliesCount: p.RepliesCount,
		LikedByMe:    likedByMe,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
	for _, m := range p.Media {
		v.Media = append(v.Media, mediaView{Type: string(m.Type), URL: m.URL})
	}
	return v
}

type feedView struct {
	Items      []postView `json:"items"`
	NextCursor string     `json:"nextCursor,omitempty"`
}

type authView struct {
	Message     string   `json:"message"`
	AccessToken string   `json:"accessToken"`
	User        userView `json:"user"`
}
