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
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/hitoshi/ytreply/internal/middleware"
	"github.com/hitoshi/ytreply/internal/model"
)

// maxRequestBodyBytes はJSONリクエストボディの上限。
const maxRequestBodyBytes = 64 << 10

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// エラーのフィールド名にはJSONタグ名を使う
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeJSON はリクエストボディをdstに読み込み、validateタグで検証する。
// 失敗した場合はVALIDATION_FAILEDのAPIErrorを返す。
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return model.NewValidationError("body", "JSONとして解釈できません")
	}

	if err := validate.Struct(dst); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) && len(ve) > 0 {
			return model.NewValidationError(ve[0].Field(), validationReason(ve[0]))
		}
		return model.NewValidationError("body", err.Error())
	}
	return nil
}

func validationReason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "必須項目です"
	case "max":
		return fmt.Sprintf("%s文字以内で入力してください", fe.Param())
	case "url", "http_url":
		return "URLの形式が正しくありません"
	default:
		return fe.Tag()
	}
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// requireUserID はコンテキストからユーザーIDを取り出す。取れなければ401を書き込みfalseを返す。
func requireUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteUnauthorized(w)
		return "", false
	}
	return userID, true
}

// handleServiceError はサービス層のエラーをHTTPレスポンスに変換する。
// APIErrorであればコードに応じたステータスで返し、それ以外は500として詳細をログのみに残す。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	slog.Error("unexpected service error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorのコードからHTTPステータスを決定する。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeInvalidVideoURL, model.ErrCodeValidation, model.ErrCodeInvalidPrice:
		return http.StatusBadRequest
	case model.ErrCodeVideoLimit, model.ErrCodeDuplicateVideo:
		return http.StatusConflict
	case model.ErrCodeVideoNotFound, model.ErrCodeChannelNotFound,
		model.ErrCodeProfileNotFound, model.ErrCodeUserNotFound:
		return http.StatusNotFound
	case model.ErrCodeChannelConnectUnavailable:
		return http.StatusNotImplemented
	case model.ErrCodeCheckoutUnavailable:
		return http.StatusServiceUnavailable
	case model.ErrCodeCheckoutFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
