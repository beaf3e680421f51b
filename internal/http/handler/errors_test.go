package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sandeepkv93/realtime-hub/internal/service"
)

type errorEnvelope struct {
	Success bool `json:"success"`
	Error   struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func TestWriteErrorMapsTaxonomy(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"invalid", fmt.Errorf("%w: bad", service.ErrInvalidArgument), http.StatusBadRequest, "INVALID_ARGUMENT"},
		{"unauthenticated", service.ErrUnauthenticated, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"expired", service.ErrTokenExpired, http.StatusUnauthorized, "TOKEN_EXPIRED"},
		{"forbidden", fmt.Errorf("%w: nope", service.ErrForbidden), http.StatusForbidden, "FORBIDDEN"},
		{"not found", fmt.Errorf("%w: gone", service.ErrNotFound), http.StatusNotFound, "NOT_FOUND"},
		{"conflict", fmt.Errorf("%w: taken", service.ErrConflict), http.StatusConflict, "CONFLICT"},
		{"upstream", &service.UpstreamError{Status: http.StatusTooManyRequests, Message: "slow down"}, http.StatusTooManyRequests, "UPSTREAM_ERROR"},
		{"upstream bogus status", &service.UpstreamError{Status: 200, Message: "odd"}, http.StatusBadGateway, "UPSTREAM_ERROR"},
		{"unreachable", &service.UpstreamUnreachableError{URL: "http://x", Err: errors.New("dial")}, http.StatusBadGateway, "UPSTREAM_UNREACHABLE"},
		{"storage", &service.StorageError{Op: "find", Err: errors.New("disk")}, http.StatusInternalServerError, "STORAGE_ERROR"},
		{"unknown", errors.New("mystery"), http.StatusInternalServerError, "INTERNAL"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			writeError(rr, httptest.NewRequest(http.MethodGet, "/", nil), tc.err)
			if rr.Code != tc.status {
				t.Fatalf("expected status %d, got %d", tc.status, rr.Code)
			}
			var env errorEnvelope
			if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
				t.Fatalf("decode envelope: %v", err)
			}
			if env.Success || env.Error.Code != tc.code {
				t.Fatalf("expected code %s, got %+v", tc.code, env)
			}
		})
	}
}

func TestWriteErrorHidesStorageDetail(t *testing.T) {
	rr := httptest.NewRecorder()
	writeError(rr, httptest.NewRequest(http.MethodGet, "/", nil), &service.StorageError{Op: "find", Err: errors.New("password=hunter2")})
	if strings.Contains(rr.Body.String(), "hunter2") {
		t.Fatalf("storage detail leaked: %s", rr.Body.String())
	}
}

func TestDecodeJSONRejectsEmptyAndMalformed(t *testing.T) {
	var dst map[string]any
	for _, body := range []string{"", "{not json"} {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		if err := decodeJSON(req, &dst); !errors.Is(err, service.ErrInvalidArgument) {
			t.Fatalf("body %q: expected invalid argument, got %v", body, err)
		}
	}
}
