package handler

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/blogcore/internal/model"
)

func TestMapAPIErrorToHTTPStatus(t *testing.T) {
	tests := []struct {
		err  *model.APIError
		want int
	}{
		{model.NewDuplicateNameError("alice"), http.StatusConflict},
		{model.NewDuplicateEmailError(), http.StatusConflict},
		{model.NewNameNotFoundError(), http.StatusNotFound},
		{model.NewBadPasswordError(), http.StatusUnauthorized},
		{model.NewInvalidCredentialsError(), http.StatusUnauthorized},
		{model.NewSessionStaleError(), http.StatusUnauthorized},
		{model.NewUnauthorizedError(), http.StatusUnauthorized},
		{model.NewValidationError(map[string]string{"name": "required"}), http.StatusBadRequest},
		{model.NewUserNotFoundError(), http.StatusNotFound},
		{model.NewPostNotFoundError(1), http.StatusNotFound},
		{model.NewCommentNotFoundError(1), http.StatusNotFound},
		{&model.APIError{Code: "SOMETHING_ELSE"}, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Code, func(t *testing.T) {
			if got := mapAPIErrorToHTTPStatus(tt.err); got != tt.want {
				t.Errorf("mapAPIErrorToHTTPStatus(%s) = %d, want %d", tt.err.Code, got, tt.want)
			}
		})
	}
}

func TestHandleServiceError_WrappedStoreError(t *testing.T) {
	err := fmt.Errorf("register: %w", model.NewStoreError("user.create", errors.New("disk full")))

	req := httptest.NewRequest(http.MethodPost, "/register", nil)
	w := httptest.NewRecorder()
	handleServiceError(w, req, err)

	resp := w.Result()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusInternalServerError)
	}
	if body := decodeErrorBody(t, resp); body.Code != model.ErrCodeStoreError {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeStoreError)
	}
}
