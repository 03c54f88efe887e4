package client

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"

	"github.com/socialn/socialn/upload"
)

// Register creates an account. The server logs the new user in, so the
// returned access token is stored and the refresh cookie lands in the jar.
func (c *Client) Register(ctx context.Context, in RegisterRequest) (*AuthResponse, error) {
	var out AuthResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/auth/register", nil, in, &out); err != nil {
		return nil, err
	}
	c.tokens.SetToken(out.AccessToken)
	return &out, nil
}

// Login authenticates with an email or user name and stores the access token.
func (c *Client) Login(ctx context.Context, emailOrUserName, password string) (*AuthResponse, error) {
	in := map[string]string{"emailOrUsername": emailOrUserName, "password": password}

	var out AuthResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/auth/login", nil, in, &out); err != nil {
		return nil, err
	}
	c.tokens.SetToken(out.AccessToken)
	return &out, nil
}

// Logout ends the server session. The local token is cleared even when the
// call fails.
func (c *Client) Logout(ctx context.Context) error {
	defer c.tokens.Clear()
	return c.doJSON(ctx, http.MethodPost, "/api/auth/logout", nil, nil, nil)
}

// Me returns the authenticated user.
func (c *Client) Me(ctx context.Context) (*User, error) {
	var out User
	if err := c.doJSON(ctx, http.MethodGet, "/api/users/me", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListUsers(ctx context.Context) ([]User, error) {
	var out []User
	if err := c.doJSON(ctx, http.MethodGet, "/api/users", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Feed fetches one page of top-level posts. A zero limit uses the server
// default and an empty order means newest first.
func (c *Client) Feed(ctx context.Context, limit int, cursor string, order FeedOrder) (*FeedPage, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if order == "" {
		order = FeedNewest
	}
	q.Set("order", string(order))
	if cursor != "" {
		q.Set("cursor", cursor)
	}

	var out FeedPage
	if err := c.doJSON(ctx, http.MethodGet, "/api/posts/feed", q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetPost(ctx context.Context, id string) (*Post, error) {
	var out Post
	if err := c.doJSON(ctx, http.MethodGet, "/api/posts/"+url.PathEscape(id), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeletePost(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/posts/"+url.PathEscape(id), nil, nil, nil)
}

// ToggleLike likes the post, or removes an existing like.
func (c *Client) ToggleLike(ctx context.Context, postID string) (*LikeState, error) {
	var out LikeState
	path := "/api/likes/" + url.PathEscape(postID) + "/toggle"
	if err := c.doJSON(ctx, http.MethodPost, path, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreatePost uploads a post as multipart form data. Attachments are checked
// against upload.PostMediaPolicy first; a rejected batch returns the
// *upload.LimitError without contacting the server.
func (c *Client) CreatePost(ctx context.Context, in CreatePostInput) (*Post, error) {
	files := make([]upload.File, 0, len(in.Media))
	for _, m := range in.Media {
		files = append(files, upload.File{Name: m.Name, ContentType: m.ContentType, Size: int64(len(m.Data))})
	}
	if _, err := upload.PostMediaPolicy().Validate(files); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("text", in.Text); err != nil {
		return nil, err
	}
	if in.ParentPost != "" {
		if err := mw.WriteField("parentPost", in.ParentPost); err != nil {
			return nil, err
		}
	}
	for _, m := range in.Media {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="media"; filename=%q`, m.Name))
		h.Set("Content-Type", m.ContentType)
		part, err := mw.CreatePart(h)
		if err != nil {
			return nil, err
		}
		if _, err := part.Write(m.Data); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url("/api/posts", nil), bytes.NewReader(buf.Bytes()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	var out Post
	if err := decodeResponse(resp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
