package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/blogcore/internal/middleware"
	"github.com/hitoshi/blogcore/internal/model"
)

// maxRequestBodyBytes はリクエストボディの上限サイズ。
const maxRequestBodyBytes = 1 << 20

// statusResponse は状態のみを返すレスポンス。
type statusResponse struct {
	Status string `json:"status"`
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// decodeRequest はJSONボディをdstに読み込み、validateタグで検証する。
// 失敗した場合はVALIDATION_FAILEDを書き込みfalseを返す。
func decodeRequest(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewValidationError(map[string]string{"body": "invalid_json"}))
		return false
	}
	if fields := validateStruct(dst); len(fields) > 0 {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError(fields))
		return false
	}
	return true
}

// parseIDParam はURLパラメータのIDを正の整数として解釈する。
// 不正な場合はVALIDATION_FAILEDを書き込みfalseを返す。
func parseIDParam(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewValidationError(map[string]string{name: "invalid_id"}))
		return 0, false
	}
	return id, true
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	var storeErr *model.StoreError
	if errors.As(err, &storeErr) {
		slog.Error("store error",
			slog.String("op", storeErr.Op),
			slog.String("error", storeErr.Err.Error()),
			slog.String("request_id", middleware.RequestIDFromContext(r.Context())),
		)
		middleware.WriteStoreErrorResponse(w)
		return
	}

	slog.Error("internal server error",
		slog.String("error", err.Error()),
		slog.String("request_id", middleware.RequestIDFromContext(r.Context())),
	)
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeNameTaken, model.ErrCodeEmailTaken:
		return http.StatusConflict
	case model.ErrCodeNameNotFound, model.ErrCodeUserNotFound,
		model.ErrCodePostNotFound, model.ErrCodeCommentNotFound:
		return http.StatusNotFound
	case model.ErrCodePasswordIncorrect, model.ErrCodeInvalidCredentials,
		model.ErrCodeUnauthorized, model.ErrCodeSessionStale:
		return http.StatusUnauthorized
	case model.ErrCodeValidationFailed:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
