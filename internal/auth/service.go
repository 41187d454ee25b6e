// Package auth はパスワード認証による登録・ログイン・ログアウトとセッション解決を提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/hitoshi/fileteluss/internal/directory"
	"github.com/hitoshi/fileteluss/internal/metrics"
	"github.com/hitoshi/fileteluss/internal/model"
	"github.com/hitoshi/fileteluss/internal/security"
)

// DefaultPasswordMinLength はパスワードの既定の最小文字数。
const DefaultPasswordMinLength = 6

// RegistrationMessage は登録成功時にUIへ返すメッセージ。
const RegistrationMessage = "Registration successful. Awaiting admin approval."

// 認証メトリクスのアクションと結果
const (
	actionRegister = "register"
	actionLogin    = "login"
	actionLogout   = "logout"
	actionResolve  = "resolve"

	outcomeSuccess   = "success"
	outcomeInvalid   = "invalid"
	outcomeDuplicate = "duplicate"
	outcomePending   = "pending"
	outcomeRejected  = "rejected"
	outcomeRevoked   = "revoked"
	outcomeError     = "error"
)

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	PasswordMinLength int // パスワードの最小文字数
}

// RegisterInput は登録フォームの入力値。
type RegisterInput struct {
	Name            string
	Email           string
	Password        string
	ConfirmPassword string
}

// LoginResult はログイン成功時の結果。
type LoginResult struct {
	Credential *model.Credential
	Session    *model.Session
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	directory directory.Directory
	authn     directory.Authenticator
	sanitizer security.TextSanitizer
	metrics   metrics.MetricsCollector
	config    ServiceConfig
	logger    *slog.Logger
	now       func() time.Time
}

// NewService はServiceを生成する。
func NewService(
	dir directory.Directory,
	authn directory.Authenticator,
	sanitizer security.TextSanitizer,
	mc metrics.MetricsCollector,
	config ServiceConfig,
	logger *slog.Logger,
) *Service {
	if config.PasswordMinLength <= 0 {
		config.PasswordMinLength = DefaultPasswordMinLength
	}
	if mc == nil {
		mc = metrics.NopCollector{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		directory: dir,
		authn:     authn,
		sanitizer: sanitizer,
		metrics:   mc,
		config:    config,
		logger:    logger,
		now:       time.Now,
	}
}

// SetClock はテスト用に現在時刻の取得関数を差し替える。
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// validateRegistration はディレクトリを呼び出す前に登録入力を検証する。
func (s *Service) validateRegistration(in RegisterInput) error {
	if strings.TrimSpace(in.Name) == "" || strings.TrimSpace(in.Email) == "" ||
		in.Password == "" || in.ConfirmPassword == "" {
		return model.NewValidationError("All fields are required")
	}
	if _, err := mail.ParseAddress(strings.TrimSpace(in.Email)); err != nil {
		return model.NewValidationError("Please enter a valid email address")
	}
	if in.Password != in.ConfirmPassword {
		return model.NewPasswordMismatchError()
	}
	if len([]rune(in.Password)) < s.config.PasswordMinLength {
		return model.NewPasswordTooShortError(s.config.PasswordMinLength)
	}
	return nil
}

// Register は資格情報とユーザーレコードを作成する。
// ユーザーは role=user、status=pending で作成され、管理者の承認までログインできない。
func (s *Service) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	// 1. 入力検証（ディレクトリ呼び出し前）
	if err := s.validateRegistration(in); err != nil {
		s.metrics.RecordAuthOutcome(actionRegister, outcomeInvalid)
		return nil, err
	}

	email := model.NormalizeEmail(in.Email)
	name := in.Name
	if s.sanitizer != nil {
		name = s.sanitizer.SanitizeText(name)
	}

	// 2. 資格情報を作成
	userID, err := s.authn.RegisterCredential(ctx, email, in.Password)
	if err != nil {
		if errors.Is(err, directory.ErrDuplicateEmail) {
			s.metrics.RecordAuthOutcome(actionRegister, outcomeDuplicate)
			return nil, model.NewDuplicateEmailError()
		}
		s.metrics.RecordAuthOutcome(actionRegister, outcomeError)
		return nil, fmt.Errorf("failed to register credential: %w", err)
	}

	// 3. ユーザーレコードを作成（失敗時は資格情報を巻き戻す）
	user, err := model.NewUser(userID, name, email, s.now())
	if err == nil {
		err = s.directory.CreateUser(ctx, user)
	}
	if err != nil {
		if rbErr := s.authn.RemoveCredential(ctx, userID); rbErr != nil {
			s.logger.Error("failed to roll back credential",
				slog.String("user_id", userID),
				slog.String("error", rbErr.Error()),
			)
		}
		s.metrics.RecordAuthOutcome(actionRegister, outcomeError)
		if errors.Is(err, directory.ErrDuplicateEmail) {
			return nil, model.NewDuplicateEmailError()
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.metrics.RecordAuthOutcome(actionRegister, outcomeSuccess)
	s.logger.Info("user registered",
		slog.String("user_id", user.ID),
		slog.String("email", user.Email),
	)
	return user, nil
}

// Login はパスワードを照合し、承認済みユーザーにのみ資格情報を発行する。
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		s.metrics.RecordAuthOutcome(actionLogin, outcomeInvalid)
		return nil, model.NewValidationError("Email and password are required")
	}

	// 1. パスワードを照合
	userID, err := s.authn.Authenticate(ctx, model.NormalizeEmail(email), password)
	if err != nil {
		if errors.Is(err, directory.ErrInvalidCredentials) {
			s.metrics.RecordAuthOutcome(actionLogin, outcomeInvalid)
			return nil, model.NewAuthFailedError("Invalid email or password")
		}
		s.metrics.RecordAuthOutcome(actionLogin, outcomeError)
		return nil, fmt.Errorf("failed to authenticate: %w", err)
	}

	// 2. ユーザーレコードを取得して承認状態を確認
	user, err := s.directory.GetUserByID(ctx, userID)
	if err != nil {
		s.metrics.RecordAuthOutcome(actionLogin, outcomeError)
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil {
		s.metrics.RecordAuthOutcome(actionLogin, outcomeError)
		return nil, model.NewUserNotFoundError()
	}
	switch user.Status {
	case model.StatusPending:
		s.metrics.RecordAuthOutcome(actionLogin, outcomePending)
		return nil, model.NewAccountPendingError()
	case model.StatusRejected:
		s.metrics.RecordAuthOutcome(actionLogin, outcomeRejected)
		return nil, model.NewAccountRejectedError()
	}

	session, err := model.NewSession(user)
	if err != nil {
		s.metrics.RecordAuthOutcome(actionLogin, outcomeError)
		return nil, fmt.Errorf("failed to build session: %w", err)
	}

	// 3. 資格情報を発行
	cred, err := s.authn.IssueCredential(ctx, user.ID)
	if err != nil {
		s.metrics.RecordAuthOutcome(actionLogin, outcomeError)
		return nil, fmt.Errorf("failed to issue credential: %w", err)
	}

	s.metrics.RecordAuthOutcome(actionLogin, outcomeSuccess)
	s.logger.Info("user logged in",
		slog.String("user_id", user.ID),
		slog.String("role", string(user.Role)),
	)
	return &LoginResult{Credential: cred, Session: session}, nil
}

// Logout はセッションを失効させる。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}

	if err := s.authn.Deauthenticate(ctx, sessionID); err != nil {
		s.metrics.RecordAuthOutcome(actionLogout, outcomeError)
		return fmt.Errorf("failed to delete session: %w", err)
	}

	s.metrics.RecordAuthOutcome(actionLogout, outcomeSuccess)
	s.logger.Info("user logged out", slog.String("session_id", sessionID))
	return nil
}

// CurrentSession はトークンからセッションを解決し、最新のユーザーレコードから投影を再構築する。
// トークンが無効な場合は (nil, nil, nil) を返す。
// ユーザーが削除済みまたは承認済みでなくなった場合はセッションを失効させ、同様にnilを返す。
func (s *Service) CurrentSession(ctx context.Context, token string) (*model.Session, *model.AuthSession, error) {
	if token == "" {
		return nil, nil, nil
	}

	authSession, err := s.authn.ResolveCredential(ctx, token)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to resolve credential: %w", err)
	}
	if authSession == nil {
		return nil, nil, nil
	}

	user, err := s.directory.GetUserByID(ctx, authSession.UserID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil || user.Status != model.StatusApproved {
		if err := s.authn.Deauthenticate(ctx, authSession.ID); err != nil {
			s.logger.Warn("failed to revoke session",
				slog.String("session_id", authSession.ID),
				slog.String("error", err.Error()),
			)
		}
		s.metrics.RecordAuthOutcome(actionResolve, outcomeRevoked)
		return nil, nil, nil
	}

	session, err := model.NewSession(user)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build session: %w", err)
	}
	return session, authSession, nil
}
