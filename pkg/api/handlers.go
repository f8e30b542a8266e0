package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	ferrors "github.com/AGES-Pro-Mata/frontend-sub002/internal/errors"
	"github.com/AGES-Pro-Mata/frontend-sub002/pkg/features/filters"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// StateResponse is the JSON form of one entry.
type StateResponse struct {
	Key     string         `json:"key"`
	Exists  bool           `json:"exists"`
	Values  filters.Values `json:"values"`
	Filters filters.Values `json:"filters"`
	Query   string         `json:"query"`
}

// KeysResponse lists the keys with an entry.
type KeysResponse struct {
	Keys []string `json:"keys"`
}

type errorResponse struct {
	Error *ferrors.Error `json:"error"`
}

func (s *Server) stateResponse(key string) StateResponse {
	st, ok := s.store.Lookup(key)
	return StateResponse{
		Key:     key,
		Exists:  ok,
		Values:  st.Values,
		Filters: st.Filters,
		Query:   st.Query,
	}
}

func (s *Server) handleKeys(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, KeysResponse{Keys: s.store.Keys()})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	key, err := pathParam(r, "key")
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.stateResponse(key))
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	key, err := pathParam(r, "key")
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.store.DeleteFilter(key)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSetValues(w http.ResponseWriter, r *http.Request) {
	key, err := pathParam(r, "key")
	if err != nil {
		s.writeError(w, err)
		return
	}
	commit, err := commitParam(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	body, err := readBody(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var partial filters.Values
	if err := json.Unmarshal(body, &partial); err != nil {
		s.writeError(w, ferrors.New("A001").WithDetail("The request body must be a JSON object.").Wrap(err))
		return
	}

	s.store.SetFilters(key, partial, commit)
	writeJSON(w, http.StatusOK, s.stateResponse(key))
}

func (s *Server) handleSetField(w http.ResponseWriter, r *http.Request) {
	key, err := pathParam(r, "key")
	if err != nil {
		s.writeError(w, err)
		return
	}
	field, err := pathParam(r, "field")
	if err != nil {
		s.writeError(w, err)
		return
	}
	commit, err := commitParam(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	body, err := readBody(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	value, err := decodeValue(body)
	if err != nil {
		s.writeError(w, ferrors.New("A001").Wrap(err))
		return
	}

	s.store.SetFilter(key, field, value, commit)
	writeJSON(w, http.StatusOK, s.stateResponse(key))
}

func (s *Server) handleApply(w http.ResponseWriter, r *http.Request) {
	key, err := pathParam(r, "key")
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.store.ApplyValues(key)
	writeJSON(w, http.StatusOK, s.stateResponse(key))
}

func pathParam(r *http.Request, name string) (string, error) {
	raw := chi.URLParam(r, name)
	v, err := url.PathUnescape(raw)
	if err != nil {
		return "", ferrors.New("A002").WithDetailf("path parameter %s=%q", name, raw).Wrap(err)
	}
	return v, nil
}

// commitParam reads ?commit=. Absent means true.
func commitParam(r *http.Request) (bool, error) {
	raw := r.URL.Query().Get("commit")
	if raw == "" {
		return true, nil
	}
	commit, err := strconv.ParseBool(raw)
	if err != nil {
		return false, ferrors.New("A002").WithDetailf("commit=%q is not a boolean", raw).Wrap(err)
	}
	return commit, nil
}

func readBody(r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return nil, ferrors.New("A001").Wrap(err)
	}
	return body, nil
}

// decodeValue parses a single JSON value. null yields nil, numbers keep
// their literal form.
func decodeValue(body []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	e := ferrors.FromError(err, "A001")
	status := e.HTTPStatus()
	if status >= http.StatusInternalServerError {
		s.logger.Error("api error", "code", e.Code, "error", err)
	}
	writeJSON(w, status, errorResponse{Error: e})
}
