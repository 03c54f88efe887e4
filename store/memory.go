package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type likeKey struct {
	postID string
	userID string
}

// Memory is a Store kept in process memory.
type Memory struct {
	mu    sync.RWMutex
	users map[string]User
	posts map[string]Post
	likes map[likeKey]time.Time
	clock func() time.Time
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		users: make(map[string]User),
		posts: make(map[string]Post),
		likes: make(map[likeKey]time.Time),
		clock: now,
	}
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) Close() error { return nil }

func (m *Memory) CreateUser(_ context.Context, u User) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkUniqueLocked("", u.Email, u.UserName); err != nil {
		return User{}, err
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	t := m.clock()
	u.CreatedAt, u.UpdatedAt = t, t
	m.users[u.ID] = u
	return u, nil
}

func (m *Memory) checkUniqueLocked(selfID, email, userName string) error {
	for id, existing := range m.users {
		if id == selfID {
			continue
		}
		if email != "" && existing.Email == email {
			return ErrDuplicateEmail
		}
		if userName != "" && existing.UserName == userName {
			return ErrDuplicateUserName
		}
	}
	return nil
}

func (m *Memory) GetUser(_ context.Context, id string) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (m *Memory) GetUserByIdentifier(_ context.Context, identifier string) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.Email == identifier || u.UserName == identifier {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}

func (m *Memory) ListUsers(context.Context) ([]User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (m *Memory) UpdateUser(_ context.Context, id string, upd UserUpdate) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	var email, userName string
	if upd.Email != nil {
		email = *upd.Email
	}
	if upd.UserName != nil {
		userName = *upd.UserName
	}
	if err := m.checkUniqueLocked(id, email, userName); err != nil {
		return User{}, err
	}

	applyUserUpdate(&u, upd)
	u.UpdatedAt = m.clock()
	m.users[id] = u
	return u, nil
}

func applyUserUpdate(u *User, upd UserUpdate) {
	if upd.UserName != nil {
		u.UserName = *upd.UserName
	}
	if upd.FullName != nil {
		u.FullName = *upd.FullName
	}
	if upd.Email != nil {
		u.Email = *upd.Email
	}
	if upd.Location != nil {
		u.Location = *upd.Location
	}
	if upd.ProfilePhoto != nil {
		u.ProfilePhoto = *upd.ProfilePhoto
	}
	if upd.ProfilePhotoKey != nil {
		u.ProfilePhotoKey = *upd.ProfilePhotoKey
	}
	if upd.PasswordHash != nil {
		u.PasswordHash = *upd.PasswordHash
	}
}

func (m *Memory) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	_, err := m.UpdateUser(ctx, id, UserUpdate{PasswordHash: &hash})
	return err
}

func (m *Memory) DeleteUser(_ context.Context, id string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	for k := range m.likes {
		if k.userID == id {
			m.unlikeLocked(k)
		}
	}
	var keys []string
	if u.ProfilePhotoKey != "" {
		keys = append(keys, u.ProfilePhotoKey)
	}
	for pid, p := range m.posts {
		if p.AuthorID == id {
			if _, still := m.posts[pid]; still {
				keys = m.deletePostLocked(pid, keys)
			}
		}
	}
	delete(m.users, id)
	return keys, nil
}

func (m *Memory) CreatePost(_ context.Context, in NewPost) (Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[in.AuthorID]; !ok {
		return Post{}, ErrNotFound
	}
	if in.ParentPostID != "" {
		parent, ok := m.posts[in.ParentPostID]
		if !ok {
			return Post{}, ErrNotFound
		}
		parent.RepliesCount++
		m.posts[parent.ID] = parent
	}

	t := m.clock()
	p := Post{
		ID:           uuid.NewString(),
		AuthorID:     in.AuthorID,
		Text:         in.Text,
		ParentPostID: in.ParentPostID,
		Media:        append([]Media(nil), in.Media...),
		CreatedAt:    t,
		UpdatedAt:    t,
	}
	m.posts[p.ID] = p
	return m.withAuthorLocked(p), nil
}

func (m *Memory) withAuthorLocked(p Post) Post {
	if u, ok := m.users[p.AuthorID]; ok {
		p.Author = Author{ID: u.ID, UserName: u.UserName, FullName: u.FullName, ProfilePhoto: u.ProfilePhoto}
	}
	p.Media = append([]Media(nil), p.Media...)
	return p
}

func (m *Memory) GetPost(_ context.Context, id string) (Post, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.posts[id]
	if !ok {
		return Post{}, ErrNotFound
	}
	return m.withAuthorLocked(p), nil
}

func (m *Memory) DeletePost(_ context.Context, id string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.posts[id]; !ok {
		return nil, ErrNotFound
	}
	return m.deletePostLocked(id, nil), nil
}

// deletePostLocked removes the post, its replies and likes, and fixes the
// parent's reply count. Media keys of removed posts are appended to keys.
func (m *Memory) deletePostLocked(id string, keys []string) []string {
	p := m.posts[id]
	delete(m.posts, id)
	for _, media := range p.Media {
		if media.Key != "" {
			keys = append(keys, media.Key)
		}
	}
	for k := range m.likes {
		if k.postID == id {
			delete(m.likes, k)
		}
	}
	if parent, ok := m.posts[p.ParentPostID]; ok {
		parent.RepliesCount--
		m.posts[parent.ID] = parent
	}
	for cid, c := range m.posts {
		if c.ParentPostID == id {
			keys = m.deletePostLocked(cid, keys)
		}
	}
	return keys
}

func (m *Memory) Feed(_ context.Context, q FeedQuery) (FeedPage, error) {
	q, err := NormalizeFeedQuery(q)
	if err != nil {
		return FeedPage{}, err
	}
	var cur *cursor
	if q.Cursor != "" {
		c, _ := decodeCursor(q.Cursor)
		cur = &c
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var top []Post
	for _, p := range m.posts {
		if p.ParentPostID != "" {
			continue
		}
		if cur != nil && !cur.after(p, q.Order) {
			continue
		}
		top = append(top, p)
	}
	sort.Slice(top, func(i, j int) bool {
		a, b := top[i], top[j]
		if a.CreatedAt.Equal(b.CreatedAt) {
			if q.Order == OrderAsc {
				return a.ID < b.ID
			}
			return a.ID > b.ID
		}
		if q.Order == OrderAsc {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.CreatedAt.After(b.CreatedAt)
	})

	var page FeedPage
	if len(top) > q.Limit {
		top = top[:q.Limit]
		page.NextCursor = encodeCursor(top[len(top)-1])
	}
	page.Items = make([]Post, 0, len(top))
	for _, p := range top {
		page.Items = append(page.Items, m.withAuthorLocked(p))
	}
	return page, nil
}

func (m *Memory) ToggleLike(_ context.Context, postID, userID string) (bool, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.posts[postID]
	if !ok {
		return false, 0, ErrNotFound
	}
	k := likeKey{postID: postID, userID: userID}
	if _, liked := m.likes[k]; liked {
		m.unlikeLocked(k)
		return false, m.posts[postID].LikesCount, nil
	}
	m.likes[k] = m.clock()
	p.LikesCount++
	m.posts[postID] = p
	return true, p.LikesCount, nil
}

func (m *Memory) unlikeLocked(k likeKey) {
	delete(m.likes, k)
	if p, ok := m.posts[k.postID]; ok {
		p.LikesCount--
		m.posts[k.postID] = p
	}
}

func (m *Memory) HasLiked(_ context.Context, postID, userID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.likes[likeKey{postID: postID, userID: userID}]
	return ok, nil
}

func (m *Memory) LikedPosts(_ context.Context, userID string, postIDs []string) (map[string]bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]bool, len(postIDs))
	for _, id := range postIDs {
		if _, ok := m.likes[likeKey{postID: id, userID: userID}]; ok {
			out[id] = true
		}
	}
	return out, nil
}
