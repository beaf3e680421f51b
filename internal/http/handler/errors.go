package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sandeepkv93/realtime-hub/internal/http/response"
	"github.com/sandeepkv93/realtime-hub/internal/observability"
	"github.com/sandeepkv93/realtime-hub/internal/repository"
	"github.com/sandeepkv93/realtime-hub/internal/service"
)

// writeError maps the service error taxonomy onto HTTP statuses.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		upstream    *service.UpstreamError
		storage     *service.StorageError
		unreachable *service.UpstreamUnreachableError
	)
	switch {
	case errors.Is(err, service.ErrInvalidArgument):
		response.Error(w, r, http.StatusBadRequest, "INVALID_ARGUMENT", err.Error(), nil)
	case errors.Is(err, service.ErrTokenExpired):
		response.Error(w, r, http.StatusUnauthorized, "TOKEN_EXPIRED", "access token expired", nil)
	case errors.Is(err, service.ErrUnauthenticated):
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", err.Error(), nil)
	case errors.Is(err, service.ErrForbidden):
		response.Error(w, r, http.StatusForbidden, "FORBIDDEN", err.Error(), nil)
	case errors.Is(err, service.ErrNotFound):
		response.Error(w, r, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
	case errors.Is(err, service.ErrConflict):
		response.Error(w, r, http.StatusConflict, "CONFLICT", err.Error(), nil)
	case errors.As(err, &upstream):
		status := upstream.Status
		if status < 400 || status > 599 {
			status = http.StatusBadGateway
		}
		response.Error(w, r, status, "UPSTREAM_ERROR", "upstream error: "+upstream.Message, nil)
	case errors.As(err, &unreachable):
		slog.WarnContext(r.Context(), "upstream unreachable", "url", unreachable.URL, "error", unreachable.Err)
		response.Error(w, r, http.StatusBadGateway, "UPSTREAM_UNREACHABLE", "upstream model is unreachable", nil)
	case errors.As(err, &storage):
		slog.ErrorContext(r.Context(), "storage failure", "op", storage.Op, "error", storage.Err)
		observability.Audit(r, "storage.failure", "op", storage.Op)
		response.Error(w, r, http.StatusInternalServerError, "STORAGE_ERROR", "storage unavailable", nil)
	default:
		slog.ErrorContext(r.Context(), "unhandled request error", "error", err)
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "internal server error", nil)
	}
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return fmt.Errorf("%w: request body too large", service.ErrInvalidArgument)
		case errors.Is(err, io.EOF):
			return fmt.Errorf("%w: request body is empty", service.ErrInvalidArgument)
		default:
			return fmt.Errorf("%w: malformed json: %v", service.ErrInvalidArgument, err)
		}
	}
	return nil
}

func uintParam(r *http.Request, name string) (uint, error) {
	raw := chi.URLParam(r, name)
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || v == 0 {
		return 0, fmt.Errorf("%w: %s must be a positive integer", service.ErrInvalidArgument, name)
	}
	return uint(v), nil
}

func pageRequest(r *http.Request) repository.PageRequest {
	q := r.URL.Query()
	page, _ := strconv.Atoi(strings.TrimSpace(q.Get("page")))
	size, _ := strconv.Atoi(strings.TrimSpace(q.Get("page_size")))
	return repository.PageRequest{Page: page, PageSize: size}
}
