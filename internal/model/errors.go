// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, access, validation, storage, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	// NotFound: 正常な否定結果として扱う
	ErrCodeUserNotFound  = "USER_NOT_FOUND"
	ErrCodeFileNotFound  = "FILE_NOT_FOUND"
	ErrCodeVideoNotFound = "VIDEO_NOT_FOUND"

	// StorageFailure: ローカルストレージの失敗
	ErrCodeStorageFailure = "STORAGE_FAILURE"

	// AuthFailure
	ErrCodeAuthFailed      = "AUTH_FAILED"
	ErrCodeDuplicateEmail  = "DUPLICATE_EMAIL"
	ErrCodeAccountPending  = "ACCOUNT_PENDING"
	ErrCodeAccountRejected = "ACCOUNT_REJECTED"
	ErrCodeUnauthorized    = "UNAUTHORIZED"

	// ValidationError: ストレージ・ネットワーク呼び出し前に検出する
	ErrCodeValidationFailed  = "VALIDATION_FAILED"
	ErrCodePasswordMismatch  = "PASSWORD_MISMATCH"
	ErrCodePasswordTooShort  = "PASSWORD_TOO_SHORT"
	ErrCodeFileTooLarge      = "FILE_TOO_LARGE"
	ErrCodeInvalidVideo      = "INVALID_VIDEO"
	ErrCodeInvalidYouTubeURL = "INVALID_YOUTUBE_URL"
	ErrCodeInvalidFeature    = "INVALID_FEATURE"
	ErrCodeInvalidRole       = "INVALID_ROLE"
	ErrCodeInvalidStatus     = "INVALID_STATUS"

	// アクセス制御
	ErrCodeFeatureDenied = "FEATURE_DENIED"
	ErrCodeAccessExpired = "ACCESS_EXPIRED"
	ErrCodeAdminRequired = "ADMIN_REQUIRED"
)

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "User not found",
		Category: "auth",
		Action:   "Check the email address and try again.",
	}
}

// NewFileNotFoundError はファイルが見つからない場合のエラーを生成する。
func NewFileNotFoundError(id string) *APIError {
	return &APIError{
		Code:     ErrCodeFileNotFound,
		Message:  fmt.Sprintf("File not found: %s", id),
		Category: "storage",
		Action:   "Reload the file list.",
	}
}

// NewVideoNotFoundError は動画が見つからない場合のエラーを生成する。
func NewVideoNotFoundError(id string) *APIError {
	return &APIError{
		Code:     ErrCodeVideoNotFound,
		Message:  fmt.Sprintf("Video not found: %s", id),
		Category: "storage",
		Action:   "Reload the video library.",
	}
}

// NewStorageFailureError はローカルストレージ操作の失敗を表すエラーを生成する。
func NewStorageFailureError(operation string) *APIError {
	return &APIError{
		Code:     ErrCodeStorageFailure,
		Message:  fmt.Sprintf("Error %s. Please try again.", operation),
		Category: "storage",
		Action:   "Please try again.",
	}
}

// NewAuthFailedError は認証失敗エラーを生成する。
func NewAuthFailedError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeAuthFailed,
		Message:  message,
		Category: "auth",
		Action:   "Check your email and password and try again.",
	}
}

// NewDuplicateEmailError は登録済みメールアドレスでの再登録エラーを生成する。
func NewDuplicateEmailError() *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateEmail,
		Message:  "This email address is already registered.",
		Category: "auth",
		Action:   "Sign in with the existing account.",
	}
}

// NewAccountPendingError は承認待ちアカウントでのログインエラーを生成する。
func NewAccountPendingError() *APIError {
	return &APIError{
		Code:     ErrCodeAccountPending,
		Message:  "Your account is waiting for admin approval.",
		Category: "auth",
		Action:   "Wait for an administrator to approve your registration.",
	}
}

// NewAccountRejectedError は却下されたアカウントでのログインエラーを生成する。
func NewAccountRejectedError() *APIError {
	return &APIError{
		Code:     ErrCodeAccountRejected,
		Message:  "Your account has been rejected.",
		Category: "auth",
		Action:   "Contact your administrator.",
	}
}

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "Authentication required.",
		Category: "auth",
		Action:   "Please sign in.",
	}
}

// NewValidationError は入力検証エラーを生成する。
func NewValidationError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeValidationFailed,
		Message:  message,
		Category: "validation",
		Action:   "Correct the highlighted fields and try again.",
	}
}

// NewPasswordMismatchError はパスワード確認の不一致エラーを生成する。
func NewPasswordMismatchError() *APIError {
	return &APIError{
		Code:     ErrCodePasswordMismatch,
		Message:  "Passwords do not match",
		Category: "validation",
		Action:   "Enter the same password in both fields.",
	}
}

// NewPasswordTooShortError はパスワード長不足エラーを生成する。
func NewPasswordTooShortError(minLength int) *APIError {
	return &APIError{
		Code:     ErrCodePasswordTooShort,
		Message:  fmt.Sprintf("Password must be at least %d characters", minLength),
		Category: "validation",
		Action:   "Choose a longer password.",
	}
}

// NewFileTooLargeError はアップロードサイズ超過エラーを生成する。
func NewFileTooLargeError(limit int64) *APIError {
	return &APIError{
		Code:     ErrCodeFileTooLarge,
		Message:  fmt.Sprintf("File size too large. Maximum size is %d bytes.", limit),
		Category: "validation",
		Action:   "Select a smaller file.",
	}
}

// NewInvalidVideoError は動画ファイルとして受け付けられない場合のエラーを生成する。
func NewInvalidVideoError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidVideo,
		Message:  reason,
		Category: "validation",
		Action:   "Please select a valid video file.",
	}
}

// NewInvalidYouTubeURLError はYouTube URLから動画IDを抽出できない場合のエラーを生成する。
func NewInvalidYouTubeURLError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidYouTubeURL,
		Message:  "Invalid YouTube URL. Please provide a valid YouTube video URL or ID",
		Category: "validation",
		Action:   "Supports: youtube.com/watch?v=..., youtu.be/..., or just the video ID",
	}
}

// NewInvalidFeatureError はカタログ外の機能タグが指定された場合のエラーを生成する。
func NewInvalidFeatureError(feature string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidFeature,
		Message:  fmt.Sprintf("Unknown feature: %s", feature),
		Category: "validation",
		Action:   "Use one of: home, videos, portfolio, files, notes.",
	}
}

// NewInvalidRoleError はカタログ外のロールが指定された場合のエラーを生成する。
func NewInvalidRoleError(role string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRole,
		Message:  fmt.Sprintf("Unknown role: %s", role),
		Category: "validation",
		Action:   "Use one of: user, editor, premium, admin.",
	}
}

// NewInvalidStatusError はカタログ外の承認状態が指定された場合のエラーを生成する。
func NewInvalidStatusError(status string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidStatus,
		Message:  fmt.Sprintf("Unknown status: %s", status),
		Category: "validation",
		Action:   "Use one of: pending, approved, rejected.",
	}
}

// NewFeatureDeniedError は機能へのアクセス権がない場合のエラーを生成する。
func NewFeatureDeniedError(feature Feature) *APIError {
	return &APIError{
		Code:     ErrCodeFeatureDenied,
		Message:  fmt.Sprintf("You don't have access to this feature. Feature: %s", feature),
		Category: "access",
		Action:   "Contact your administrator to request access.",
	}
}

// NewAccessExpiredError はアクセス期限切れエラーを生成する。
func NewAccessExpiredError() *APIError {
	return &APIError{
		Code:     ErrCodeAccessExpired,
		Message:  "Your access has expired.",
		Category: "access",
		Action:   "Please contact your administrator to renew your access.",
	}
}

// NewAdminRequiredError は管理者権限が必要な場合のエラーを生成する。
func NewAdminRequiredError() *APIError {
	return &APIError{
		Code:     ErrCodeAdminRequired,
		Message:  "Administrator privileges are required.",
		Category: "access",
		Action:   "Return to the home page.",
	}
}
