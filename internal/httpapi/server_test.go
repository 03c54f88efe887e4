package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/socialn/socialn"
	"github.com/socialn/socialn/media"
	"github.com/socialn/socialn/store"
	"github.com/socialn/socialn/upload"
)

const testPassword = "correct horse battery"

func testEngineConfig() socialn.Config {
	cfg := socialn.DefaultConfig()
	cfg.JWT.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Audit.Enabled = false
	return cfg
}

type harness struct {
	t      *testing.T
	srv    *httptest.Server
	client *http.Client
	store  *store.Memory
	mr     *miniredis.Miniredis
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWith(t, Config{})
}

func newHarnessWith(t *testing.T, cfg Config) *harness {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	mem := store.NewMemory()
	reg := prometheus.NewRegistry()

	engine, err := socialn.New().
		WithConfig(testEngineConfig()).
		WithRedis(rdb).
		WithUserProvider(store.AuthProvider(mem)).
		WithMetricsRegisterer(reg).
		Build()
	require.NoError(t, err)

	disk, err := media.NewLocalDisk(t.TempDir(), "/media")
	require.NoError(t, err)

	api, err := New(Deps{
		Auth:         engine,
		Store:        mem,
		Media:        disk,
		MediaHandler: disk.Handler(),
		Registry:     reg,
		Config:       cfg,
	})
	require.NoError(t, err)

	srv := httptest.NewServer(api.Handler())
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	t.Cleanup(func() {
		srv.Close()
		engine.Close()
		_ = rdb.Close()
	})
	return &harness{t: t, srv: srv, client: &http.Client{Jar: jar}, store: mem, mr: mr}
}

func (h *harness) do(method, path, token string, body io.Reader, contentType string) *http.Response {
	h.t.Helper()
	req, err := http.NewRequest(method, h.srv.URL+path, body)
	require.NoError(h.t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := h.client.Do(req)
	require.NoError(h.t, err)
	return resp
}

func (h *harness) doJSON(method, path, token string, in any) (int, map[string]any) {
	h.t.Helper()
	var body io.Reader
	contentType := ""
	if in != nil {
		data, err := json.Marshal(in)
		require.NoError(h.t, err)
		body = bytes.NewReader(data)
		contentType = "application/json"
	}
	resp := h.do(method, path, token, body, contentType)
	return decodeBody(h.t, resp)
}

func decodeBody(t *testing.T, resp *http.Response) (int, map[string]any) {
	t.Helper()
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func (h *harness) register(name string) (token, id string) {
	h.t.Helper()
	status, body := h.doJSON(http.MethodPost, "/api/auth/register", "", map[string]string{
		"userName": name,
		"fullName": strings.ToUpper(name),
		"email":    name + "@example.com",
		"password": testPassword,
	})
	require.Equal(h.t, http.StatusCreated, status, body)
	user := body["user"].(map[string]any)
	return body["accessToken"].(string), user["_id"].(string)
}

func (h *harness) refreshCookie() string {
	h.t.Helper()
	u, err := url.Parse(h.srv.URL + "/api/auth/refresh")
	require.NoError(h.t, err)
	for _, c := range h.client.Jar.Cookies(u) {
		if c.Name == refreshCookieName {
			return c.Value
		}
	}
	return ""
}

type filePart struct {
	field, name, contentType string
	data                     []byte
}

func multipartBody(t *testing.T, fields map[string]string, files ...filePart) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for _, f := range files {
		hdr := make(textproto.MIMEHeader)
		hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, f.field, f.name))
		hdr.Set("Content-Type", f.contentType)
		w, err := mw.CreatePart(hdr)
		require.NoError(t, err)
		_, err = w.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestRegisterSetsCookieAndReturnsUser(t *testing.T) {
	h := newHarness(t)

	resp := h.do(http.MethodPost, "/api/auth/register", "", strings.NewReader(
		`{"userName":"  Alice ","fullName":"Alice A","email":"ALICE@example.com","password":"`+testPassword+`"}`,
	), "application/json")

	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == refreshCookieName {
			cookie = c
		}
	}
	status, body := decodeBody(t, resp)
	require.Equal(t, http.StatusCreated, status, body)

	assert.Equal(t, "User created successfully", body["message"])
	assert.NotEmpty(t, body["accessToken"])
	user := body["user"].(map[string]any)
	assert.Equal(t, "alice", user["userName"])
	assert.Equal(t, "alice@example.com", user["email"])
	assert.NotContains(t, user, "password")
	assert.NotContains(t, user, "passwordHash")

	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, refreshCookiePath, cookie.Path)
	assert.Equal(t, int((7 * 24 * time.Hour).Seconds()), cookie.MaxAge)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
}

func TestRegisterValidation(t *testing.T) {
	h := newHarness(t)
	h.register("alice")

	status, body := h.doJSON(http.MethodPost, "/api/auth/register", "", map[string]string{
		"userName": "bob", "email": "bob@example.com",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Missing required fields", body["message"])
	assert.Equal(t, []any{"fullName", "password"}, body["missingFields"])

	status, body = h.doJSON(http.MethodPost, "/api/auth/register", "", map[string]string{
		"userName": "bob", "fullName": "Bob", "email": "Alice@Example.com", "password": testPassword,
	})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, msgEmailTaken, body["message"])

	status, body = h.doJSON(http.MethodPost, "/api/auth/register", "", map[string]string{
		"userName": "ALICE", "fullName": "Bob", "email": "bob@example.com", "password": testPassword,
	})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, msgUserNameTaken, body["message"])

	status, body = h.doJSON(http.MethodPost, "/api/auth/register", "", map[string]string{
		"userName": "bob", "fullName": "Bob", "email": "bob@example.com", "password": "short",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, msgPasswordPolicy, body["message"])

	resp := h.do(http.MethodPost, "/api/auth/register", "", strings.NewReader("{"), "application/json")
	status, body = decodeBody(t, resp)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, msgInvalidJSON, body["message"])
}

func TestLogin(t *testing.T) {
	h := newHarness(t)
	h.register("alice")

	status, body := h.doJSON(http.MethodPost, "/api/auth/login", "", map[string]string{
		"emailOrUsername": "ALICE@example.com", "password": testPassword,
	})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "User logged in successfully", body["message"])
	assert.NotEmpty(t, body["accessToken"])

	status, body = h.doJSON(http.MethodPost, "/api/auth/login", "", map[string]string{
		"emailOrUsername": "alice", "password": "wrong password",
	})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, msgBadCredentials, body["message"])

	status, body = h.doJSON(http.MethodPost, "/api/auth/login", "", map[string]string{"password": "x"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, []any{"emailOrUsername"}, body["missingFields"])
}

func TestRefreshRotatesAndDetectsReuse(t *testing.T) {
	h := newHarness(t)
	token, _ := h.register("alice")
	first := h.refreshCookie()
	require.NotEmpty(t, first)

	status, body := h.doJSON(http.MethodPost, "/api/auth/refresh", "", nil)
	require.Equal(t, http.StatusOK, status, body)
	assert.NotEmpty(t, body["accessToken"])
	second := h.refreshCookie()
	assert.NotEqual(t, first, second)

	req, err := http.NewRequest(http.MethodPost, h.srv.URL+"/api/auth/refresh", nil)
	require.NoError(t, err)
	req.AddCookie(&http.Cookie{Name: refreshCookieName, Value: first})
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	status, body = decodeBody(t, resp)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, msgInvalidRefresh, body["message"])

	// Reuse destroyed the session: the current cookie and the access token
	// are both dead.
	status, _ = h.doJSON(http.MethodPost, "/api/auth/refresh", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	status, _ = h.doJSON(http.MethodGet, "/api/users/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestRefreshWithoutCookie(t *testing.T) {
	h := newHarness(t)
	status, body := h.doJSON(http.MethodPost, "/api/auth/refresh", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Refresh token missing", body["message"])
}

func TestLogoutEndsSession(t *testing.T) {
	h := newHarness(t)
	token, _ := h.register("alice")

	status, body := h.doJSON(http.MethodPost, "/api/auth/logout", "", nil)
	require.Equal(t, http.StatusOK, status, body)
	assert.Empty(t, h.refreshCookie())

	status, body = h.doJSON(http.MethodGet, "/api/users/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Invalid or expired token", body["message"])
}

func TestGuardMessages(t *testing.T) {
	h := newHarness(t)

	status, body := h.doJSON(http.MethodGet, "/api/users", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Missing or invalid token", body["message"])

	status, body = h.doJSON(http.MethodGet, "/api/users", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Invalid or expired token", body["message"])
}

func TestListUsersAndMe(t *testing.T) {
	h := newHarness(t)
	h.register("alice")
	token, id := h.register("bob")

	resp := h.do(http.MethodGet, "/api/users", token, nil, "")
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var users []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&users))
	require.Len(t, users, 2)
	assert.Equal(t, "alice", users[0]["userName"])

	status, body := h.doJSON(http.MethodGet, "/api/users/me", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, id, body["_id"])
	assert.Equal(t, "BOB", body["fullName"])
}

func TestUpdateUser(t *testing.T) {
	h := newHarness(t)
	aliceToken, aliceID := h.register("alice")
	_, bobID := h.register("bob")

	status, body := h.doJSON(http.MethodPatch, "/api/users/update/"+bobID, aliceToken, map[string]string{"fullName": "X"})
	assert.Equal(t, http.StatusForbidden, status, body)

	status, body = h.doJSON(http.MethodPatch, "/api/users/update/"+aliceID, aliceToken, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "At least one field or file is required for this update", body["message"])

	status, body = h.doJSON(http.MethodPatch, "/api/users/update/"+aliceID, aliceToken, map[string]string{"userName": "Bob"})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, msgUserNameTaken, body["message"])

	status, body = h.doJSON(http.MethodPatch, "/api/users/update/"+aliceID, aliceToken, map[string]string{
		"fullName": "Alice Liddell", "location": "Oxford",
	})
	require.Equal(t, http.StatusOK, status, body)
	user := body["user"].(map[string]any)
	assert.Equal(t, "Alice Liddell", user["fullName"])
	assert.Equal(t, "Oxford", user["location"])

	reader, ct := multipartBody(t, nil, filePart{field: profilePhotoField, name: "me.png", contentType: "image/png", data: []byte("png")})
	status, body = decodeBody(t, h.do(http.MethodPatch, "/api/users/update/"+aliceID, aliceToken, reader, ct))
	require.Equal(t, http.StatusOK, status, body)
	photo := body["user"].(map[string]any)["profilePhoto"].(string)
	assert.True(t, strings.HasPrefix(photo, "/media/"))

	reader, ct = multipartBody(t, nil, filePart{field: profilePhotoField, name: "clip.mp4", contentType: "video/mp4", data: []byte("mp4")})
	status, body = decodeBody(t, h.do(http.MethodPatch, "/api/users/update/"+aliceID, aliceToken, reader, ct))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Only images are allowed", body["message"])
}

func TestUpdatePasswordAllowsNewLogin(t *testing.T) {
	h := newHarness(t)
	token, id := h.register("alice")

	status, body := h.doJSON(http.MethodPatch, "/api/users/update/"+id, token, map[string]string{"password": "short"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, msgPasswordPolicy, body["message"])

	status, _ = h.doJSON(http.MethodPatch, "/api/users/update/"+id, token, map[string]string{"password": "a much longer secret"})
	require.Equal(t, http.StatusOK, status)

	status, _ = h.doJSON(http.MethodPost, "/api/auth/login", "", map[string]string{
		"emailOrUsername": "alice", "password": "a much longer secret",
	})
	assert.Equal(t, http.StatusOK, status)
}

func TestPasswordChangeRevokesOtherSessions(t *testing.T) {
	h := newHarness(t)
	current, id := h.register("alice")

	status, body := h.doJSON(http.MethodPost, "/api/auth/login", "", map[string]string{
		"emailOrUsername": "alice", "password": testPassword,
	})
	require.Equal(t, http.StatusOK, status, body)
	other := body["accessToken"].(string)

	status, body = h.doJSON(http.MethodPatch, "/api/users/update/"+id, current, map[string]string{"password": "a much longer secret"})
	require.Equal(t, http.StatusOK, status, body)

	status, _ = h.doJSON(http.MethodGet, "/api/users/me", current, nil)
	assert.Equal(t, http.StatusOK, status, "the session that changed the password stays signed in")

	status, _ = h.doJSON(http.MethodGet, "/api/users/me", other, nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	// The jar holds the second login's cookie, whose session is gone.
	status, _ = h.doJSON(http.MethodPost, "/api/auth/refresh", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestDeleteUser(t *testing.T) {
	h := newHarness(t)
	aliceToken, aliceID := h.register("alice")
	bobToken, _ := h.register("bob")

	status, _ := h.doJSON(http.MethodDelete, "/api/users/delete/"+aliceID, bobToken, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, body := h.doJSON(http.MethodDelete, "/api/users/delete/"+aliceID, aliceToken, nil)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "User deleted successfully", body["message"])

	status, _ = h.doJSON(http.MethodGet, "/api/users/me", aliceToken, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func (h *harness) createPost(token string, fields map[string]string, files ...filePart) (int, map[string]any) {
	h.t.Helper()
	reader, ct := multipartBody(h.t, fields, files...)
	return decodeBody(h.t, h.do(http.MethodPost, "/api/posts", token, reader, ct))
}

// mediaURLs returns the media URLs of a post body.
func mediaURLs(body map[string]any) []string {
	var urls []string
	items, _ := body["media"].([]any)
	for _, it := range items {
		urls = append(urls, it.(map[string]any)["url"].(string))
	}
	return urls
}

func (h *harness) mediaStatus(path string) int {
	h.t.Helper()
	resp, err := http.Get(h.srv.URL + path)
	require.NoError(h.t, err)
	resp.Body.Close()
	return resp.StatusCode
}

func (h *harness) setProfilePhoto(token, id, name string) string {
	h.t.Helper()
	reader, ct := multipartBody(h.t, nil, filePart{field: profilePhotoField, name: name, contentType: "image/png", data: []byte(name)})
	status, body := decodeBody(h.t, h.do(http.MethodPatch, "/api/users/update/"+id, token, reader, ct))
	require.Equal(h.t, http.StatusOK, status, body)
	return body["user"].(map[string]any)["profilePhoto"].(string)
}

func TestDeleteUserRemovesStoredMedia(t *testing.T) {
	h := newHarness(t)
	aliceToken, aliceID := h.register("alice")
	bobToken, _ := h.register("bob")

	photo := h.setProfilePhoto(aliceToken, aliceID, "me.png")
	status, post := h.createPost(aliceToken, map[string]string{"text": "hello"},
		filePart{field: mediaField, name: "a.png", contentType: "image/png", data: []byte("a")})
	require.Equal(t, http.StatusCreated, status, post)
	status, reply := h.createPost(bobToken, map[string]string{"text": "nice", "parentPost": post["_id"].(string)},
		filePart{field: mediaField, name: "b.png", contentType: "image/png", data: []byte("b")})
	require.Equal(t, http.StatusCreated, status, reply)
	status, kept := h.createPost(bobToken, map[string]string{"text": "mine"},
		filePart{field: mediaField, name: "c.png", contentType: "image/png", data: []byte("c")})
	require.Equal(t, http.StatusCreated, status, kept)

	urls := append([]string{photo}, mediaURLs(post)...)
	urls = append(urls, mediaURLs(reply)...)
	for _, u := range urls {
		require.Equal(t, http.StatusOK, h.mediaStatus(u), u)
	}

	status, body := h.doJSON(http.MethodDelete, "/api/users/delete/"+aliceID, aliceToken, nil)
	require.Equal(t, http.StatusOK, status, body)

	for _, u := range urls {
		assert.Equal(t, http.StatusNotFound, h.mediaStatus(u), u)
	}
	assert.Equal(t, http.StatusOK, h.mediaStatus(mediaURLs(kept)[0]))
}

func TestDeletePostRemovesReplyMedia(t *testing.T) {
	h := newHarness(t)
	aliceToken, _ := h.register("alice")
	bobToken, _ := h.register("bob")

	status, post := h.createPost(aliceToken, map[string]string{"text": "root"},
		filePart{field: mediaField, name: "root.png", contentType: "image/png", data: []byte("root")})
	require.Equal(t, http.StatusCreated, status, post)
	status, reply := h.createPost(bobToken, map[string]string{"text": "reply", "parentPost": post["_id"].(string)},
		filePart{field: mediaField, name: "reply.mp4", contentType: "video/mp4", data: []byte("reply")})
	require.Equal(t, http.StatusCreated, status, reply)

	resp := h.do(http.MethodDelete, "/api/posts/"+post["_id"].(string), aliceToken, nil, "")
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	for _, u := range append(mediaURLs(post), mediaURLs(reply)...) {
		assert.Equal(t, http.StatusNotFound, h.mediaStatus(u), u)
	}
}

func TestReplacingProfilePhotoRemovesOldFile(t *testing.T) {
	h := newHarness(t)
	token, id := h.register("alice")

	first := h.setProfilePhoto(token, id, "first.png")
	second := h.setProfilePhoto(token, id, "second.png")
	require.NotEqual(t, first, second)

	assert.Equal(t, http.StatusNotFound, h.mediaStatus(first))
	assert.Equal(t, http.StatusOK, h.mediaStatus(second))

	u, err := h.store.GetUser(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, second, u.ProfilePhoto)
	assert.NotEmpty(t, u.ProfilePhotoKey)
}

func TestCreatePostWithMedia(t *testing.T) {
	h := newHarness(t)
	token, id := h.register("alice")

	status, body := h.createPost(token, map[string]string{"text": "hello world"},
		filePart{field: mediaField, name: "a.png", contentType: "image/png", data: []byte("png-bytes")},
		filePart{field: mediaField, name: "b.mp4", contentType: "video/mp4", data: []byte("mp4-bytes")},
	)
	require.Equal(t, http.StatusCreated, status, body)
	assert.Equal(t, "hello world", body["text"])
	assert.Equal(t, id, body["author"].(map[string]any)["_id"])

	items := body["media"].([]any)
	require.Len(t, items, 2)
	first := items[0].(map[string]any)
	assert.Equal(t, "image", first["type"])
	assert.Equal(t, "video", items[1].(map[string]any)["type"])

	resp, err := http.Get(h.srv.URL + first["url"].(string))
	require.NoError(t, err)
	data, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "png-bytes", string(data))
}

func TestCreatePostValidation(t *testing.T) {
	h := newHarness(t)
	token, _ := h.register("alice")

	status, body := h.createPost(token, map[string]string{"text": "  "})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Missing required form-data fields", body["message"])
	assert.Equal(t, []any{"text"}, body["missingFields"])

	var six []filePart
	for i := 0; i < 6; i++ {
		six = append(six, filePart{field: mediaField, name: fmt.Sprintf("%d.png", i), contentType: "image/png", data: []byte("x")})
	}
	status, body = h.createPost(token, map[string]string{"text": "too many"}, six...)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Maximum 5 photos allowed. You uploaded 6.", body["message"])
	assert.NotEmpty(t, body["violations"])

	big := bytes.Repeat([]byte("x"), 6*upload.MB)
	status, body = h.createPost(token, map[string]string{"text": "big"},
		filePart{field: mediaField, name: "big.png", contentType: "image/png", data: big})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, `Photo "big.png" is 6.00MB. Maximum photo size is 5MB.`, body["message"])

	status, body = h.createPost(token, map[string]string{"text": "doc"},
		filePart{field: mediaField, name: "a.pdf", contentType: "application/pdf", data: []byte("%PDF")})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Only images and videos are allowed", body["message"])

	status, body = h.createPost(token, map[string]string{"text": "reply", "parentPost": "missing"})
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "Parent post not found", body["message"])

	status, body = h.doJSON(http.MethodPost, "/api/posts", token, map[string]string{"text": "json"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Request must be multipart/form-data", body["message"])
}

func TestFeedLikesAndDelete(t *testing.T) {
	h := newHarness(t)
	aliceToken, _ := h.register("alice")
	bobToken, _ := h.register("bob")

	var ids []string
	for i := 0; i < 3; i++ {
		status, body := h.createPost(aliceToken, map[string]string{"text": fmt.Sprintf("post %d", i)})
		require.Equal(t, http.StatusCreated, status, body)
		ids = append(ids, body["_id"].(string))
	}
	status, body := h.createPost(bobToken, map[string]string{"text": "reply", "parentPost": ids[0]})
	require.Equal(t, http.StatusCreated, status, body)
	assert.Equal(t, ids[0], body["parentPost"])

	status, body = h.doJSON(http.MethodPost, "/api/likes/"+ids[1]+"/toggle", bobToken, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["liked"])
	assert.Equal(t, float64(1), body["likesCount"])

	status, body = h.doJSON(http.MethodGet, "/api/posts/feed?limit=2&order=asc", bobToken, nil)
	require.Equal(t, http.StatusOK, status, body)
	items := body["items"].([]any)
	require.Len(t, items, 2)
	assert.Equal(t, ids[0], items[0].(map[string]any)["_id"])
	assert.Equal(t, float64(1), items[0].(map[string]any)["repliesCount"])
	assert.Equal(t, true, items[1].(map[string]any)["likedByMe"])
	cursor := body["nextCursor"].(string)

	status, body = h.doJSON(http.MethodGet, "/api/posts/feed?limit=2&order=asc&cursor="+url.QueryEscape(cursor), bobToken, nil)
	require.Equal(t, http.StatusOK, status, body)
	items = body["items"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, ids[2], items[0].(map[string]any)["_id"])
	assert.NotContains(t, body, "nextCursor")

	status, body = h.doJSON(http.MethodPost, "/api/likes/"+ids[1]+"/toggle", bobToken, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, body["liked"])
	assert.Equal(t, float64(0), body["likesCount"])

	status, _ = h.doJSON(http.MethodPost, "/api/likes/missing/toggle", bobToken, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = h.doJSON(http.MethodDelete, "/api/posts/"+ids[2], bobToken, nil)
	assert.Equal(t, http.StatusForbidden, status)

	resp := h.do(http.MethodDelete, "/api/posts/"+ids[2], aliceToken, nil, "")
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	status, body = h.doJSON(http.MethodGet, "/api/posts/"+ids[2], aliceToken, nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "Post not found", body["message"])
}

func TestFeedRejectsBadQuery(t *testing.T) {
	h := newHarness(t)
	token, _ := h.register("alice")

	status, body := h.doJSON(http.MethodGet, "/api/posts/feed?limit=500", token, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid feed query: limit must be between 1 and 50", body["message"])

	status, _ = h.doJSON(http.MethodGet, "/api/posts/feed?order=random", token, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = h.doJSON(http.MethodGet, "/api/posts/feed?cursor=%21%21", token, nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestHealthReadinessAndMetrics(t *testing.T) {
	h := newHarness(t)

	status, body := h.doJSON(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])

	status, body = h.doJSON(http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusOK, status, body)

	resp := h.do(http.MethodGet, "/metrics", "", nil, "")
	raw, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(raw), "socialn_http_requests_total")

	h.mr.Close()
	status, body = h.doJSON(http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, "unavailable", body["status"])
}

func TestUnknownRoute(t *testing.T) {
	h := newHarness(t)
	status, body := h.doJSON(http.MethodGet, "/api/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "Route not found", body["message"])
}
