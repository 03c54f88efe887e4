package httpapi

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/socialn/socialn/internal/flows"
	"github.com/socialn/socialn/middleware"
	"github.com/socialn/socialn/store"
	"github.com/socialn/socialn/upload"
)

const profilePhotoField = "profilePhoto"

func callerID(r *http.Request) string {
	res, ok := middleware.AuthResultFromContext(r.Context())
	if !ok {
		return ""
	}
	return res.UserID
}

func callerSessionID(r *http.Request) string {
	res, ok := middleware.AuthResultFromContext(r.Context())
	if !ok {
		return ""
	}
	return res.SessionID
}

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.store.ListUsers(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := make([]userView, 0, len(users))
	for _, u := range users {
		out = append(out, newUserView(u))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	u, err := s.store.GetUser(r.Context(), callerID(r))
	if errors.Is(err, store.ErrNotFound) {
		writeMessage(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newUserView(u))
}

// updateForm is the union of the JSON and multipart update bodies.
type updateForm struct {
	fields map[string]string
	photo  *multipart.FileHeader
}

func (s *Server) readUpdateForm(w http.ResponseWriter, r *http.Request) (updateForm, error) {
	form := updateForm{fields: map[string]string{}}

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		limit := upload.RequestLimit(upload.ProfilePhotoPolicy())
		r.Body = http.MaxBytesReader(w, r.Body, limit)
		if err := r.ParseMultipartForm(limit); err != nil {
			return form, multipartError(err)
		}
		for k, vs := range r.MultipartForm.Value {
			if len(vs) > 0 {
				form.fields[k] = vs[0]
			}
		}
		headers := r.MultipartForm.File[profilePhotoField]
		if _, err := upload.ProfilePhotoPolicy().Validate(upload.FromMultipart(headers)); err != nil {
			return form, err
		}
		if len(headers) > 0 {
			form.photo = headers[0]
		}
		return form, nil
	}

	if r.ContentLength == 0 {
		return form, nil
	}
	if err := s.decodeJSON(w, r, &form.fields); err != nil {
		return form, err
	}
	return form, nil
}

func (s *Server) updateUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id != callerID(r) {
		writeMessage(w, http.StatusForbidden, "You can only update your own account")
		return
	}

	form, err := s.readUpdateForm(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	var upd store.UserUpdate
	if v, ok := nonEmpty(form.fields, "userName"); ok {
		v = flows.NormalizeIdentifier(v)
		if strings.ContainsAny(v, " @") {
			writeMessage(w, http.StatusBadRequest, "Invalid username")
			return
		}
		upd.UserName = &v
	}
	if v, ok := nonEmpty(form.fields, "email"); ok {
		v = flows.NormalizeIdentifier(v)
		if !strings.Contains(v, "@") {
			writeMessage(w, http.StatusBadRequest, "Invalid email")
			return
		}
		upd.Email = &v
	}
	if v, ok := nonEmpty(form.fields, "fullName"); ok {
		upd.FullName = &v
	}
	if v, ok := form.fields["location"]; ok {
		v = strings.TrimSpace(v)
		upd.Location = &v
	}
	if v, ok := form.fields["password"]; ok && v != "" {
		hash, err := s.auth.HashPassword(v)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		upd.PasswordHash = &hash
	}

	if upd.Empty() && form.photo == nil {
		writeMessage(w, http.StatusBadRequest, "At least one field or file is required for this update")
		return
	}

	var stored, replaced string
	if form.photo != nil {
		prev, err := s.store.GetUser(r.Context(), id)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		replaced = prev.ProfilePhotoKey

		obj, err := s.storeUpload(r, form.photo)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		stored = obj.Key
		upd.ProfilePhoto = &obj.URL
		upd.ProfilePhotoKey = &obj.Key
	}

	u, err := s.store.UpdateUser(r.Context(), id, upd)
	if err != nil {
		if stored != "" {
			s.discardMedia(r, stored)
		}
		s.fail(w, r, err)
		return
	}
	if replaced != "" && replaced != stored {
		s.discardMedia(r, replaced)
	}
	if upd.PasswordHash != nil {
		if err := s.auth.LogoutOthers(r.Context(), id, callerSessionID(r)); err != nil {
			s.logger.Warn("update user: revoking other sessions failed", zap.String("user_id", id), zap.Error(err))
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "User updated successfully",
		"user":    newUserView(u),
	})
}

func nonEmpty(fields map[string]string, key string) (string, bool) {
	v := strings.TrimSpace(fields[key])
	return v, v != ""
}

func (s *Server) deleteUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id != callerID(r) {
		writeMessage(w, http.StatusForbidden, "You can only delete your own account")
		return
	}

	keys, err := s.store.DeleteUser(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.discardMedia(r, keys...)
	if err := s.auth.LogoutAll(r.Context(), id); err != nil {
		s.logger.Warn("delete user: session cleanup failed", zap.String("user_id", id), zap.Error(err))
	}
	s.clearRefreshCookie(w)
	writeMessage(w, http.StatusOK, "User deleted successfully")
}
