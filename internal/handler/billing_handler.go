package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/ytreply/internal/plan"
)

// BillingServiceInterface は課金ハンドラーが必要とするサービスインターフェース。
type BillingServiceInterface interface {
	Plans() []plan.Plan
	StartCheckout(ctx context.Context, userID, email, priceID string) (string, error)
}

// BillingHandler はプラン一覧とチェックアウトのHTTPハンドラー。
type BillingHandler struct {
	billing BillingServiceInterface
	users   UserServiceInterface
}

// NewBillingHandler はBillingHandlerを生成する。
// チェックアウトに渡すメールアドレスはプロフィールから取得する。
func NewBillingHandler(billing BillingServiceInterface, users UserServiceInterface) *BillingHandler {
	return &BillingHandler{billing: billing, users: users}
}

type checkoutRequest struct {
	PriceID string `json:"price_id" validate:"required,max=200"`
}

type planResponse struct {
	Type              string   `json:"type"`
	Name              string   `json:"name"`
	Price             string   `json:"price"`
	Currency          string   `json:"currency"`
	PriceID           string   `json:"price_id,omitempty"`
	VideoLimit        int      `json:"video_limit"`
	MonthlyReplyLimit int      `json:"monthly_reply_limit"`
	Features          []string `json:"features"`
	Popular           bool     `json:"popular"`
	ContactSales      bool     `json:"contact_sales"`
	Purchasable       bool     `json:"purchasable"`
}

func toPlanResponse(p plan.Plan) planResponse {
	features := p.Features
	if features == nil {
		features = []string{}
	}
	return planResponse{
		Type:              string(p.Type),
		Name:              p.Name,
		Price:             p.Price.StringFixed(2),
		Currency:          p.Currency,
		PriceID:           p.PriceID,
		VideoLimit:        p.VideoLimit,
		MonthlyReplyLimit: p.MonthlyReplyLimit,
		Features:          features,
		Popular:           p.Popular,
		ContactSales:      p.ContactSales,
		Purchasable:       p.Purchasable(),
	}
}

// ListPlans はプラン一覧を返す。
// GET /api/plans
func (h *BillingHandler) ListPlans(w http.ResponseWriter, r *http.Request) {
	plans := h.billing.Plans()
	resp := make([]planResponse, len(plans))
	for i, p := range plans {
		resp[i] = toPlanResponse(p)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Checkout はチェックアウトセッションを作成し、そのIDを返す。
// POST /api/checkout
func (h *BillingHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req checkoutRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	profile, err := h.users.Profile(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	sessionID, err := h.billing.StartCheckout(r.Context(), userID, profile.Email, req.PriceID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"session_id": sessionID})
}
