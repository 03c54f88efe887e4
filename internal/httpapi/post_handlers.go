package httpapi

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/socialn/socialn/media"
	"github.com/socialn/socialn/store"
	"github.com/socialn/socialn/upload"
)

const (
	mediaField      = "media"
	multipartMemory = 8 << 20
)

func (s *Server) storeUpload(r *http.Request, fh *multipart.FileHeader) (media.Object, error) {
	f, err := fh.Open()
	if err != nil {
		return media.Object{}, err
	}
	defer f.Close()
	return s.media.Put(r.Context(), fh.Filename, fh.Header.Get("Content-Type"), f)
}

func (s *Server) discardMedia(r *http.Request, keys ...string) {
	for _, key := range keys {
		if err := s.media.Delete(r.Context(), key); err != nil {
			s.logger.Warn("media cleanup failed", zap.String("key", key), zap.Error(err))
		}
	}
}

func (s *Server) createPost(w http.ResponseWriter, r *http.Request) {
	policy := upload.PostMediaPolicy()
	r.Body = http.MaxBytesReader(w, r.Body, upload.RequestLimit(policy))
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		if errors.Is(err, http.ErrNotMultipart) {
			writeMessage(w, http.StatusBadRequest, "Request must be multipart/form-data")
			return
		}
		s.fail(w, r, multipartError(err))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	text := strings.TrimSpace(r.FormValue("text"))
	if text == "" {
		writeMissing(w, "Missing required form-data fields", []string{"text"})
		return
	}

	headers := r.MultipartForm.File[mediaField]
	files := upload.FromMultipart(headers)
	if _, err := policy.Validate(files); err != nil {
		s.fail(w, r, err)
		return
	}

	in := store.NewPost{
		AuthorID:     callerID(r),
		Text:         text,
		ParentPostID: strings.TrimSpace(r.FormValue("parentPost")),
	}
	var keys []string
	for i, fh := range headers {
		obj, err := s.storeUpload(r, fh)
		if err != nil {
			s.discardMedia(r, keys...)
			s.fail(w, r, err)
			return
		}
		keys = append(keys, obj.Key)
		kind, _ := files[i].Kind()
		in.Media = append(in.Media, store.Media{Type: store.MediaType(kind), URL: obj.URL, Key: obj.Key})
	}

	post, err := s.store.CreatePost(r.Context(), in)
	if err != nil {
		s.discardMedia(r, keys...)
		if errors.Is(err, store.ErrNotFound) {
			writeMessage(w, http.StatusNotFound, "Parent post not found")
			return
		}
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newPostView(post, false))
}

func (s *Server) feed(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := store.ParseFeedLimit(q.Get("limit"))
	if err != nil {
		s.fail(w, r, err)
		return
	}

	page, err := s.store.Feed(r.Context(), store.FeedQuery{
		Limit:  limit,
		Order:  store.Order(q.Get("order")),
		Cursor: q.Get("cursor"),
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}

	ids := make([]string, len(page.Items))
	for i, p := range page.Items {
		ids[i] = p.ID
	}
	liked, err := s.store.LikedPosts(r.Context(), callerID(r), ids)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	out := feedView{Items: make([]postView, 0, len(page.Items)), NextCursor: page.NextCursor}
	for _, p := range page.Items {
		out.Items = append(out.Items, newPostView(p, liked[p.ID]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getPost(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	post, err := s.store.GetPost(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeMessage(w, http.StatusNotFound, "Post not found")
		return
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	liked, err := s.store.HasLiked(r.Context(), id, callerID(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newPostView(post, liked))
}

func (s *Server) deletePost(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	post, err := s.store.GetPost(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeMessage(w, http.StatusNotFound, "Post not found")
		return
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if post.AuthorID != callerID(r) {
		writeMessage(w, http.StatusForbidden, "You can only delete your own posts")
		return
	}

	keys, err := s.store.DeletePost(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.discardMedia(r, keys...)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) toggleLike(w http.ResponseWriter, r *http.Request) {
	liked, count, err := s.store.ToggleLike(r.Context(), chi.URLParam(r, "postId"), callerID(r))
	if errors.Is(err, store.ErrNotFound) {
		writeMessage(w, http.StatusNotFound, "Post not found")
		return
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"liked": liked, "likesCount": count})
}
