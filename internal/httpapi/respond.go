package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

var (
	errBadJSON      = errors.New("invalid JSON body")
	errBadMultipart = errors.New("invalid multipart body")
)

// multipartError keeps body-size errors and marks the rest as client errors.
func multipartError(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return err
	}
	return errors.Join(errBadMultipart, err)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}

// decodeJSON reads a bounded JSON object body into v.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	body := http.MaxBytesReader(w, r.Body, s.cfg.MaxJSONBytes)
	dec := json.NewDecoder(body)
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return err
		}
		if errors.Is(err, io.EOF) {
			return errBadJSON
		}
		return errors.Join(errBadJSON, err)
	}
	return nil
}

type missingFieldsResponse struct {
	Message       string   `json:"message"`
	MissingFields []string `json:"missingFields"`
}

func writeMissing(w http.ResponseWriter, message string, fields []string) {
	writeJSON(w, http.StatusBadRequest, missingFieldsResponse{Message: message, MissingFields: fields})
}
