package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/portfolio-cms/apiserver/internal/logutil"
	"github.com/portfolio-cms/apiserver/internal/services"
	"github.com/portfolio-cms/apiserver/internal/store"
)

const (
	defaultLimit    = 20
	maxLimit        = 100
	maxJSONBodySize = 1 << 20
)

type contextKey string

const contextUserIDKey contextKey = "userId"

// ErrorResponse is a simple error payload.
type ErrorResponse struct {
	Error string `json:"error"`
}

// MessageResponse is a simple confirmation payload.
type MessageResponse struct {
	Message string `json:"message"`
}

func withUserID(ctx context.Context, userID int) context.Context {
	return context.WithValue(ctx, contextUserIDKey, userID)
}

func userIDFromContext(ctx context.Context) (int, error) {
	userID, ok := ctx.Value(contextUserIDKey).(int)
	if !ok {
		return 0, errors.New("missing user id")
	}
	if userID < 1 {
		return 0, errors.New("invalid user id")
	}
	return userID, nil
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// writeServiceError maps service and store errors onto responses. Anything
// unrecognised is logged and reported as a 500 with message.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error, notFound, message string) {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Message)
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, notFound)
	default:
		logger := logutil.GetOrDefault(r.Context())
		logger.Error().Err(err).Msg(message)
		writeError(w, http.StatusInternalServerError, message)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxJSONBodySize)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		return errors.New("invalid request body")
	}
	return nil
}

// parsePagination reads the optional page and limit query parameters. Without
// either, limit is zero and the whole collection is returned.
func parsePagination(r *http.Request) (limit, offset int, err error) {
	rawPage := strings.TrimSpace(r.URL.Query().Get("page"))
	rawLimit := strings.TrimSpace(r.URL.Query().Get("limit"))
	if rawPage == "" && rawLimit == "" {
		return 0, 0, nil
	}

	page := 1
	if rawPage != "" {
		page, err = strconv.Atoi(rawPage)
		if err != nil || page < 1 {
			return 0, 0, errors.New("invalid page")
		}
	}

	limit = defaultLimit
	if rawLimit != "" {
		limit, err = strconv.Atoi(rawLimit)
		if err != nil || limit < 1 {
			return 0, 0, errors.New("invalid limit")
		}
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	return limit, (page - 1) * limit, nil
}

func setTotalCount(w http.ResponseWriter, total int) {
	w.Header().Set("X-Total-Count", strconv.Itoa(total))
}

func parseID(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.Atoi(raw)
	if err != nil || id < 1 {
		return 0, errors.New("invalid id")
	}
	return id, nil
}

var errFileTooLarge = errors.New("uploaded file too large")

func readFileLimited(reader io.Reader, limit int64) ([]byte, error) {
	limited := io.LimitReader(reader, limit+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, errors.New("failed to read upload")
	}
	if int64(len(data)) > limit {
		return nil, errFileTooLarge
	}
	return data, nil
}
