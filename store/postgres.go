package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

const userColumns = `id, user_name, full_name, email, password_hash, profile_photo, profile_photo_key, location, status, created_at, updated_at`

// treeMediaKeys selects the media keys of the posts matching the root
// condition and of every reply below them.
const treeMediaKeys = `WITH RECURSIVE tree AS (
	SELECT id, media FROM posts WHERE %s
	UNION
	SELECT c.id, c.media FROM posts c JOIN tree t ON c.parent_post_id = t.id
)
SELECT e->>'key' FROM tree CROSS JOIN LATERAL jsonb_array_elements(tree.media) AS e
WHERE e->>'key' <> ''`

const postSelect = `SELECT p.id, p.author_id, p.text, p.parent_post_id, p.media, p.likes_count, p.replies_count,
	p.created_at, p.updated_at, u.user_name AS author_user_name, u.full_name AS author_full_name,
	u.profile_photo AS author_profile_photo
FROM posts p JOIN users u ON u.id = p.author_id`

// Postgres is a Store backed by PostgreSQL.
type Postgres struct {
	db    *sqlx.DB
	clock func() time.Time
}

var _ Store = (*Postgres)(nil)

// OpenPostgres connects with lib/pq and verifies the connection.
func OpenPostgres(ctx context.Context, dsn string, maxOpenConns int) (*Postgres, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if maxOpenConns > 0 {
		db.SetMaxOpenConns(maxOpenConns)
		db.SetMaxIdleConns(maxOpenConns)
	}
	return NewPostgres(db), nil
}

func NewPostgres(db *sqlx.DB) *Postgres {
	return &Postgres{db: db, clock: now}
}

// DB exposes the handle, e.g. for Migrate.
func (p *Postgres) DB() *sqlx.DB {
	return p.db
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

func (p *Postgres) Close() error {
	return p.db.Close()
}

func (p *Postgres) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// mapError translates driver errors into store sentinels.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqUniqueViolation:
			switch pqErr.Constraint {
			case "users_email_key":
				return ErrDuplicateEmail
			case "users_user_name_key":
				return ErrDuplicateUserName
			}
		case pqForeignKeyViolation:
			return ErrNotFound
		}
	}
	return err
}

func rowsAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) CreateUser(ctx context.Context, u User) (User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	t := p.clock()
	u.CreatedAt, u.UpdatedAt = t, t

	_, err := p.db.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, u.ID, u.UserName, u.FullName, u.Email, u.PasswordHash, u.ProfilePhoto, u.ProfilePhotoKey, u.Location, u.Status, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return User{}, mapError(err)
	}
	return u, nil
}

func (p *Postgres) GetUser(ctx context.Context, id string) (User, error) {
	var u User
	err := p.db.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return u, mapError(err)
}

func (p *Postgres) GetUserByIdentifier(ctx context.Context, identifier string) (User, error) {
	var u User
	err := p.db.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE email = $1 OR user_name = $1 LIMIT 1`, identifier)
	return u, mapError(err)
}

func (p *Postgres) ListUsers(ctx context.Context) ([]User, error) {
	var users []User
	if err := p.db.SelectContext(ctx, &users, `SELECT `+userColumns+` FROM users ORDER BY created_at, id`); err != nil {
		return nil, err
	}
	return users, nil
}

func (p *Postgres) UpdateUser(ctx context.Context, id string, upd UserUpdate) (User, error) {
	var out User
	err := p.inTx(ctx, func(tx *sqlx.Tx) error {
		var u User
		if err := tx.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, id); err != nil {
			return err
		}
		applyUserUpdate(&u, upd)
		u.UpdatedAt = p.clock()

		_, err := tx.ExecContext(ctx, `
			UPDATE users
			SET user_name = $2, full_name = $3, email = $4, location = $5,
			    profile_photo = $6, profile_photo_key = $7, password_hash = $8, updated_at = $9
			WHERE id = $1
		`, u.ID, u.UserName, u.FullName, u.Email, u.Location, u.ProfilePhoto, u.ProfilePhotoKey, u.PasswordHash, u.UpdatedAt)
		if err != nil {
			return err
		}
		out = u
		return nil
	})
	if err != nil {
		return User{}, mapError(err)
	}
	return out, nil
}

func (p *Postgres) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	res, err := p.db.ExecContext(ctx, `UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1`, id, hash, p.clock())
	if err != nil {
		return err
	}
	return rowsAffected(res)
}

func (p *Postgres) DeleteUser(ctx context.Context, id string) ([]string, error) {
	var keys []string
	err := p.inTx(ctx, func(tx *sqlx.Tx) error {
		var photoKey string
		if err := tx.GetContext(ctx, &photoKey, `SELECT profile_photo_key FROM users WHERE id = $1 FOR UPDATE`, id); err != nil {
			return err
		}
		if photoKey != "" {
			keys = append(keys, photoKey)
		}
		var postKeys []string
		if err := tx.SelectContext(ctx, &postKeys, fmt.Sprintf(treeMediaKeys, "author_id = $1"), id); err != nil {
			return err
		}
		keys = append(keys, postKeys...)

		// Counters on other users' posts do not follow the cascade.
		if _, err := tx.ExecContext(ctx, `
			UPDATE posts SET likes_count = likes_count - 1
			WHERE id IN (SELECT post_id FROM likes WHERE user_id = $1)
		`, id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE posts p SET replies_count = p.replies_count - r.n
			FROM (
				SELECT parent_post_id, count(*) AS n FROM posts
				WHERE author_id = $1 AND parent_post_id IS NOT NULL
				GROUP BY parent_post_id
			) r
			WHERE p.id = r.parent_post_id
		`, id); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
		if err != nil {
			return err
		}
		return rowsAffected(res)
	})
	if err != nil {
		return nil, mapError(err)
	}
	return keys, nil
}

type postRow struct {
	ID             string         `db:"id"`
	AuthorID       string         `db:"author_id"`
	Text           string         `db:"text"`
	ParentPostID   sql.NullString `db:"parent_post_id"`
	Media          []byte         `db:"media"`
	LikesCount     int            `db:"likes_count"`
	RepliesCount   int            `db:"replies_count"`
	CreatedAt      time.Time      `db:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at"`
	AuthorUserName string         `db:"author_user_name"`
	AuthorFullName string         `db:"author_full_name"`
	AuthorPhoto    string         `db:"author_profile_photo"`
}

func (r postRow) post() (Post, error) {
	p := Post{
		ID:           r.ID,
		AuthorID:     r.AuthorID,
		Text:         r.Text,
		ParentPostID: r.ParentPostID.String,
		LikesCount:   r.LikesCount,
		RepliesCount: r.RepliesCount,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
		Author: Author{
			ID:           r.AuthorID,
			UserName:     r.AuthorUserName,
			FullName:     r.AuthorFullName,
			ProfilePhoto: r.AuthorPhoto,
		},
	}
	if len(r.Media) > 0 {
		if err := json.Unmarshal(r.Media, &p.Media); err != nil {
			return Post{}, fmt.Errorf("decode media of post %s: %w", r.ID, err)
		}
	}
	return p, nil
}

func (p *Postgres) CreatePost(ctx context.Context, in NewPost) (Post, error) {
	media := in.Media
	if media == nil {
		media = []Media{}
	}
	mediaJSON, err := json.Marshal(media)
	if err != nil {
		return Post{}, err
	}

	id := uuid.NewString()
	t := p.clock()
	err = p.inTx(ctx, func(tx *sqlx.Tx) error {
		if in.ParentPostID != "" {
			res, err := tx.ExecContext(ctx, `UPDATE posts SET replies_count = replies_count + 1 WHERE id = $1`, in.ParentPostID)
			if err != nil {
				return err
			}
			if err := rowsAffected(res); err != nil {
				return err
			}
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO posts (id, author_id, text, parent_post_id, media, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, id, in.AuthorID, in.Text, sql.NullString{String: in.ParentPostID, Valid: in.ParentPostID != ""}, mediaJSON, t, t)
		return err
	})
	if err != nil {
		return Post{}, mapError(err)
	}
	return p.GetPost(ctx, id)
}

func (p *Postgres) GetPost(ctx context.Context, id string) (Post, error) {
	var row postRow
	if err := p.db.GetContext(ctx, &row, postSelect+` WHERE p.id = $1`, id); err != nil {
		return Post{}, mapError(err)
	}
	return row.post()
}

func (p *Postgres) DeletePost(ctx context.Context, id string) ([]string, error) {
	var keys []string
	err := p.inTx(ctx, func(tx *sqlx.Tx) error {
		if err := tx.SelectContext(ctx, &keys, fmt.Sprintf(treeMediaKeys, "id = $1"), id); err != nil {
			return err
		}
		var parent sql.NullString
		if err := tx.GetContext(ctx, &parent, `DELETE FROM posts WHERE id = $1 RETURNING parent_post_id`, id); err != nil {
			return err
		}
		if parent.Valid {
			_, err := tx.ExecContext(ctx, `UPDATE posts SET replies_count = replies_count - 1 WHERE id = $1`, parent.String)
			return err
		}
		return nil
	})
	if err != nil {
		return nil, mapError(err)
	}
	return keys, nil
}

func (p *Postgres) Feed(ctx context.Context, q FeedQuery) (FeedPage, error) {
	q, err := NormalizeFeedQuery(q)
	if err != nil {
		return FeedPage{}, err
	}

	query := postSelect + ` WHERE p.parent_post_id IS NULL`
	var args []any
	cmp, dir := "<", "DESC"
	if q.Order == OrderAsc {
		cmp, dir = ">", "ASC"
	}
	if q.Cursor != "" {
		c, _ := decodeCursor(q.Cursor)
		query += fmt.Sprintf(` AND (p.created_at, p.id) %s ($1, $2)`, cmp)
		args = append(args, c.At, c.ID)
	}
	query += fmt.Sprintf(` ORDER BY p.created_at %s, p.id %s LIMIT $%d`, dir, dir, len(args)+1)
	args = append(args, q.Limit+1)

	var rows []postRow
	if err := p.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return FeedPage{}, err
	}

	more := len(rows) > q.Limit
	if more {
		rows = rows[:q.Limit]
	}
	page := FeedPage{Items: make([]Post, 0, len(rows))}
	for _, r := range rows {
		post, err := r.post()
		if err != nil {
			return FeedPage{}, err
		}
		page.Items = append(page.Items, post)
	}
	if more {
		page.NextCursor = encodeCursor(page.Items[len(page.Items)-1])
	}
	return page, nil
}

func (p *Postgres) ToggleLike(ctx context.Context, postID, userID string) (bool, int, error) {
	var (
		liked bool
		count int
	)
	err := p.inTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM likes WHERE post_id = $1 AND user_id = $2`, postID, userID)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n > 0 {
			liked = false
			return tx.GetContext(ctx, &count, `UPDATE posts SET likes_count = likes_count - 1 WHERE id = $1 RETURNING likes_count`, postID)
		}

		res, err = tx.ExecContext(ctx, `
			INSERT INTO likes (post_id, user_id, created_at) VALUES ($1, $2, $3)
			ON CONFLICT (post_id, user_id) DO NOTHING
		`, postID, userID, p.clock())
		if err != nil {
			return err
		}
		liked = true
		if n, _ := res.RowsAffected(); n == 0 {
			// A concurrent toggle liked it first.
			return tx.GetContext(ctx, &count, `SELECT likes_count FROM posts WHERE id = $1`, postID)
		}
		return tx.GetContext(ctx, &count, `UPDATE posts SET likes_count = likes_count + 1 WHERE id = $1 RETURNING likes_count`, postID)
	})
	if err != nil {
		return false, 0, mapError(err)
	}
	return liked, count, nil
}

func (p *Postgres) HasLiked(ctx context.Context, postID, userID string) (bool, error) {
	var ok bool
	err := p.db.GetContext(ctx, &ok, `SELECT EXISTS (SELECT 1 FROM likes WHERE post_id = $1 AND user_id = $2)`, postID, userID)
	return ok, err
}

func (p *Postgres) LikedPosts(ctx context.Context, userID string, postIDs []string) (map[string]bool, error) {
	out := make(map[string]bool, len(postIDs))
	if len(postIDs) == 0 {
		return out, nil
	}
	var ids []string
	if err := p.db.SelectContext(ctx, &ids, `SELECT post_id FROM likes WHERE user_id = $1 AND post_id = ANY($2)`, userID, pq.Array(postIDs)); err != nil {
		return nil, err
	}
	for _, id := range ids {
		out[id] = true
	}
	return out, nil
}
