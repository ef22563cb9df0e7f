// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/hitoshi/sharediary/internal/diary"
	"github.com/hitoshi/sharediary/internal/group"
	"github.com/hitoshi/sharediary/internal/middleware"
	"github.com/hitoshi/sharediary/internal/model"
)

// リクエストボディの上限
const maxBodyBytes = 1 << 20

// newValidator はフィールド名としてJSONタグ名を報告するバリデーターを生成する。
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// decodeJSON はリクエストボディをdstにデコードし、validateタグで検証する。
// 失敗した場合はmodel.ErrValidationをラップしたエラーを返す。
func decodeJSON(w http.ResponseWriter, r *http.Request, v *validator.Validate, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("request body is required: %w", model.ErrValidation)
		}
		return fmt.Errorf("invalid request body: %w", model.ErrValidation)
	}
	if err := v.Struct(dst); err != nil {
		return fmt.Errorf("%s: %w", describeValidation(err), model.ErrValidation)
	}
	return nil
}

// describeValidation はvalidatorのエラーを利用者向けの短い文言にする。
func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid request"
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s is %s", jsonFieldName(fe), describeTag(fe.Tag())))
	}
	return strings.Join(fields, ", ")
}

func jsonFieldName(fe validator.FieldError) string {
	if fe.Field() == "" {
		return "field"
	}
	return fe.Field()
}

func describeTag(tag string) string {
	switch tag {
	case "required":
		return "required"
	case "email":
		return "not a valid email"
	case "max":
		return "too long"
	default:
		return "invalid"
	}
}

// parseIDParam はURLパラメータを正の整数IDとして取り出す。
func parseIDParam(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer: %w", name, model.ErrValidation)
	}
	return id, nil
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
// 5xxの詳細はログのみに記録する。
func handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrNotAvailable):
		slog.Warn("persistence not available", slog.String("error", err.Error()))
		middleware.WriteErrorResponse(w, http.StatusServiceUnavailable, model.NewServiceUnavailableError())
	case errors.Is(err, model.ErrAuthentication):
		middleware.WriteUnauthorized(w)
	case errors.Is(err, model.ErrForbidden):
		middleware.WriteErrorResponse(w, http.StatusForbidden, model.NewForbiddenError())
	case errors.Is(err, group.ErrGroupNotFound):
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewGroupNotFoundError())
	case errors.Is(err, diary.ErrEntryNotFound):
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewEntryNotFoundError())
	case errors.Is(err, group.ErrMemberNotFound):
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewMemberNotFoundError())
	case errors.Is(err, model.ErrNotFound):
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewNotFoundError())
	case errors.Is(err, model.ErrConflict):
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewConflictError(clientMessage(err, model.ErrConflict)))
	case errors.Is(err, model.ErrValidation), errors.Is(err, model.ErrInvalidCredential):
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError(clientMessage(err, model.ErrValidation)))
	default:
		slog.Error("internal server error", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
	}
}

// clientMessage はラップされたエラーから分類名の接尾辞を除いた文言を返す。
// 外側の"failed to ..."は内部の処理名なので、最も内側の説明だけを残す。
func clientMessage(err, sentinel error) string {
	msg := strings.TrimSuffix(err.Error(), ": "+sentinel.Error())
	if i := strings.LastIndex(msg, ": "); i >= 0 {
		msg = msg[i+2:]
	}
	if msg == "" || msg == sentinel.Error() {
		return "invalid request"
	}
	return msg
}
