// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
type User struct {
	ID        string
	Email     string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Identity は外部IdPとの紐付け情報を表す。
type Identity struct {
	ID             string
	UserID         string
	Provider       string
	ProviderUserID string
	CreatedAt      time.Time
}

// Session はユーザーのログインセッションを表す。
// ExpiresAtはスライディング更新で延長される。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// PlanType は契約プランの種別。
type PlanType string

const (
	PlanFree       PlanType = "free"
	PlanPro        PlanType = "pro"
	PlanBusiness   PlanType = "business"
	PlanEnterprise PlanType = "enterprise"
)

// Valid は既知のプラン種別かどうかを返す。
func (p PlanType) Valid() bool {
	switch p {
	case PlanFree, PlanPro, PlanBusiness, PlanEnterprise:
		return true
	default:
		return false
	}
}

// Profile はユーザーの表示名と契約プランを保持する。
// IDはusers.idと同一。
type Profile struct {
	ID        string
	Email     string
	FullName  string
	PlanType  PlanType
	CreatedAt time.Time
}

// DisplayName は画面表示用の名前を返す。未設定の場合はメールアドレス。
func (p *Profile) DisplayName() string {
	if p.FullName != "" {
		return p.FullName
	}
	return p.Email
}
