// Package auth はOAuthログイン、セッションの発行・延長・破棄を提供する。
// 認証状態ストアに対するセッションプロバイダーの実装も含む。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/ytreply/internal/model"
	"github.com/hitoshi/ytreply/internal/repository"
	"github.com/hitoshi/ytreply/internal/sessionevent"
)

// ErrSessionIDRequired はセッションIDが空の場合のエラー。
var ErrSessionIDRequired = errors.New("session ID is required")

// ErrSessionNotFound はセッションが存在しないか期限切れの場合のエラー。
var ErrSessionNotFound = errors.New("session not found or expired")

// OAuthUserInfo はOAuthプロバイダーから取得したユーザー情報を表す。
type OAuthUserInfo struct {
	ProviderUserID string
	Email          string
	Name           string
	Provider       string // "google" 等
}

// OAuthProvider はOAuth認証プロバイダーのインターフェース。
type OAuthProvider interface {
	// GetLoginURL はOAuth認証URLを生成する。
	GetLoginURL(state string) string
	// ExchangeCode は認可コードをトークンに交換し、ユーザー情報を取得する。
	ExchangeCode(ctx context.Context, code string) (*OAuthUserInfo, error)
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge time.Duration // セッション有効期間
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	oauth       OAuthProvider
	userRepo    repository.UserRepository
	identRepo   repository.IdentityRepository
	sessionRepo repository.SessionRepository
	hub         sessionevent.Hub
	config      ServiceConfig
	logger      *slog.Logger
	now         func() time.Time
}

// NewService はServiceを生成する。
func NewService(
	oauth OAuthProvider,
	userRepo repository.UserRepository,
	identRepo repository.IdentityRepository,
	sessionRepo repository.SessionRepository,
	hub sessionevent.Hub,
	config ServiceConfig,
	logger *slog.Logger,
) *Service {
	if config.SessionMaxAge <= 0 {
		config.SessionMaxAge = 24 * time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		oauth:       oauth,
		userRepo:    userRepo,
		identRepo:   identRepo,
		sessionRepo: sessionRepo,
		hub:         hub,
		config:      config,
		logger:      logger,
		now:         time.Now,
	}
}

// GetLoginURL はOAuth認証URLを生成する。
func (s *Service) GetLoginURL(state string) string {
	return s.oauth.GetLoginURL(state)
}

// HandleCallback はOAuthコールバックを処理し、セッションを発行する。
// 未登録ユーザーの場合はユーザー、identity、無料プランのプロフィールを同時に作成する。
func (s *Service) HandleCallback(ctx context.Context, code string) (*model.Session, *model.User, error) {
	userInfo, err := s.oauth.ExchangeCode(ctx, code)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to exchange oauth code: %w", err)
	}

	user, err := s.findOrRegister(ctx, userInfo)
	if err != nil {
		return nil, nil, err
	}

	session, err := s.createSession(ctx, user.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create session: %w", err)
	}

	s.publish(ctx, sessionevent.Event{
		SessionID: session.ID,
		UserID:    user.ID,
		Email:     user.Email,
		Kind:      sessionevent.KindSignedIn,
		ExpiresAt: session.ExpiresAt,
	})

	return session, user, nil
}

// findOrRegister はidentityに紐付くユーザーを返す。未登録なら登録する。
// 同じアカウントの初回サインインが並行した場合は、先に登録された側のユーザーを返す。
func (s *Service) findOrRegister(ctx context.Context, info *OAuthUserInfo) (*model.User, error) {
	user, err := s.findByIdentity(ctx, info)
	if err != nil || user != nil {
		return user, err
	}

	user, err = s.registerUser(ctx, info)
	if errors.Is(err, repository.ErrDuplicate) {
		user, err = s.findByIdentity(ctx, info)
		if err == nil && user == nil {
			err = fmt.Errorf("identity %s/%s vanished after duplicate insert", info.Provider, info.ProviderUserID)
		}
	}
	return user, err
}

func (s *Service) findByIdentity(ctx context.Context, info *OAuthUserInfo) (*model.User, error) {
	identity, err := s.identRepo.FindByProviderAndProviderUserID(ctx, info.Provider, info.ProviderUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find identity: %w", err)
	}
	if identity == nil {
		return nil, nil
	}

	user, err := s.userRepo.FindByID(ctx, identity.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("identity %s references missing user", identity.ID)
	}
	s.logger.Info("existing user logged in",
		slog.String("user_id", user.ID),
		slog.String("provider", info.Provider),
	)
	return user, nil
}

func (s *Service) registerUser(ctx context.Context, info *OAuthUserInfo) (*model.User, error) {
	now := s.now()
	user := &model.User{
		ID:        uuid.New().String(),
		Email:     info.Email,
		Name:      info.Name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	identity := &model.Identity{
		ID:             uuid.New().String(),
		UserID:         user.ID,
		Provider:       info.Provider,
		ProviderUserID: info.ProviderUserID,
		CreatedAt:      now,
	}
	profile := &model.Profile{
		ID:        user.ID,
		Email:     info.Email,
		FullName:  info.Name,
		PlanType:  model.PlanFree,
		CreatedAt: now,
	}

	if err := s.userRepo.CreateWithIdentity(ctx, user, identity, profile); err != nil {
		return nil, fmt.Errorf("failed to create user and identity: %w", err)
	}

	s.logger.Info("new user created",
		slog.String("user_id", user.ID),
		slog.String("provider", info.Provider),
	)
	return user, nil
}

// Logout はセッションを破棄し、サインアウトを通知する。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return ErrSessionIDRequired
	}

	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	s.publish(ctx, sessionevent.Event{SessionID: sessionID, Kind: sessionevent.KindSignedOut})
	s.logger.Info("user logged out", slog.String("session_id", sessionID))
	return nil
}

// ResolveSession はセッションとユーザーを取得する。
// 残り有効期間が最大有効期間の半分を下回っていれば期限を延長し、延長を通知する。
// セッションが存在しない場合は (nil, nil, nil) を返す。
func (s *Service) ResolveSession(ctx context.Context, sessionID string) (*model.Session, *model.User, error) {
	if sessionID == "" {
		return nil, nil, nil
	}

	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return nil, nil, nil
	}

	user, err := s.userRepo.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, nil, nil
	}

	now := s.now()
	if session.ExpiresAt.Sub(now) < s.config.SessionMaxAge/2 {
		extended := now.Add(s.config.SessionMaxAge)
		if err := s.sessionRepo.ExtendExpiry(ctx, session.ID, extended); err != nil {
			// 延長に失敗しても現在のセッションは有効なまま使える
			s.logger.Warn("failed to extend session",
				slog.String("user_id", user.ID),
				slog.String("error", err.Error()),
			)
		} else {
			session.ExpiresAt = extended
			s.publish(ctx, sessionevent.Event{
				SessionID: session.ID,
				UserID:    user.ID,
				Email:     user.Email,
				Kind:      sessionevent.KindRefreshed,
				ExpiresAt: extended,
			})
		}
	}

	return session, user, nil
}

// GetCurrentUser はセッションから現在のユーザーを取得する。
func (s *Service) GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error) {
	if sessionID == "" {
		return nil, ErrSessionIDRequired
	}

	_, user, err := s.ResolveSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrSessionNotFound
	}
	return user, nil
}

// createSession はセッションを作成し永続化する。
func (s *Service) createSession(ctx context.Context, userID string) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := s.now()
	session := &model.Session{
		ID:        sessionID,
		UserID:    userID,
		ExpiresAt: now.Add(s.config.SessionMaxAge),
		CreatedAt: now,
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}

// publish はイベントを配信する。配信失敗は認証処理の結果に影響させない。
func (s *Service) publish(ctx context.Context, e sessionevent.Event) {
	if s.hub == nil {
		return
	}
	if e.At.IsZero() {
		e.At = s.now()
	}
	if err := s.hub.Publish(ctx, e); err != nil {
		s.logger.Warn("failed to publish session event",
			slog.String("kind", string(e.Kind)),
			slog.String("error", err.Error()),
		)
	}
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
