package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/hitoshi/fileteluss/internal/model"
)

// ErrorResponseBody はすべてのAPIエラーで共通のJSON本文。
// Redirect はルートガードがクライアントに遷移先を指示する場合のみ含まれる。
type ErrorResponseBody struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
	Redirect string `json:"redirect,omitempty"`
}

var internalError = &model.APIError{
	Code:     "INTERNAL_ERROR",
	Message:  "An internal error occurred.",
	Category: "system",
	Action:   "Please wait a moment and try again.",
}

// WriteErrorResponse はapiErrを共通フォーマットで書き込む。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	writeError(w, statusCode, apiErr, "")
}

// WriteRedirectResponse はログイン画面・ホーム画面への遷移先を添えてエラーを書き込む。
func WriteRedirectResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError, redirect string) {
	writeError(w, statusCode, apiErr, redirect)
}

// WriteInternalServerError は原因を伏せた500レスポンスを書き込む。原因は呼び出し側でログに残す。
func WriteInternalServerError(w http.ResponseWriter) {
	writeError(w, http.StatusInternalServerError, internalError, "")
}

func writeError(w http.ResponseWriter, statusCode int, apiErr *model.APIError, redirect string) {
	if apiErr == nil {
		apiErr = internalError
	}
	h := w.Header()
	h.Set("Content-Type", "application/json")
	h.Set("Cache-Control", "no-store")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(ErrorResponseBody{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
		Redirect: redirect,
	})
}
