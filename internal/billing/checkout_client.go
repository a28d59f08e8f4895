// Package billing は有料プランのチェックアウト開始を扱う。
// 決済セッションの作成自体は外部エンドポイントが行う。
package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	tokenIssuer   = "ytreply"
	tokenAudience = "checkout"
	tokenLifetime = time.Minute
)

// ErrEmptySessionID はエンドポイントがセッションIDを返さなかったことを示す。
var ErrEmptySessionID = errors.New("checkout endpoint returned empty session id")

// checkoutClaims はチェックアウトエンドポイントへの呼び出しを認可するトークンのクレーム。
type checkoutClaims struct {
	jwt.RegisteredClaims
	Email   string `json:"email"`
	PriceID string `json:"price_id"`
}

// CheckoutClient は外部のチェックアウトセッション作成エンドポイントのクライアント。
// 呼び出しごとに短命のHS256トークンをBearerで付与する。
type CheckoutClient struct {
	httpClient *http.Client
	endpoint   string
	secret     []byte
	logger     *slog.Logger
	now        func() time.Time
}

// NewCheckoutClient はCheckoutClientを生成する。
func NewCheckoutClient(httpClient *http.Client, endpoint, secret string, logger *slog.Logger) *CheckoutClient {
	return &CheckoutClient{
		httpClient: httpClient,
		endpoint:   endpoint,
		secret:     []byte(secret),
		logger:     logger,
		now:        time.Now,
	}
}

type createSessionRequest struct {
	PriceID string `json:"priceId"`
}

type createSessionResponse struct {
	SessionID string `json:"sessionId"`
}

// CreateSession はpriceIDのチェックアウトセッションを作成し、そのIDを返す。
func (c *CheckoutClient) CreateSession(ctx context.Context, priceID, userID, email string) (string, error) {
	token, err := c.signToken(priceID, userID, email)
	if err != nil {
		return "", err
	}

	body, err := json.Marshal(createSessionRequest{PriceID: priceID})
	if err != nil {
		return "", fmt.Errorf("failed to marshal checkout request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create checkout request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("checkout endpoint request failed",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return "", fmt.Errorf("failed to call checkout endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("checkout endpoint returned error status",
			slog.String("user_id", userID),
			slog.Int("http_status", resp.StatusCode),
		)
		return "", fmt.Errorf("checkout endpoint returned status %d", resp.StatusCode)
	}

	var out createSessionResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode checkout response: %w", err)
	}
	if out.SessionID == "" {
		return "", ErrEmptySessionID
	}
	return out.SessionID, nil
}

func (c *CheckoutClient) signToken(priceID, userID, email string) (string, error) {
	now := c.now()
	claims := checkoutClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Issuer:    tokenIssuer,
			Subject:   userID,
			Audience:  jwt.ClaimStrings{tokenAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenLifetime)),
		},
		Email:   email,
		PriceID: priceID,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign checkout token: %w", err)
	}
	return signed, nil
}
