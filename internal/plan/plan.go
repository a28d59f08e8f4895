// Package plan は契約プランのカタログを提供する。
// カタログはバイナリに埋め込んだYAMLから読み込む。
package plan

import (
	_ "embed"
	"fmt"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/hitoshi/ytreply/internal/model"
)

//go:embed plans.yaml
var defaultCatalogYAML []byte

// Plan は1つの契約プランを表す。
type Plan struct {
	Type              model.PlanType
	Name              string
	Price             decimal.Decimal // 月額
	Currency          string
	PriceID           string // 決済サービス側の価格ID。無料・要問い合わせのプランは空
	VideoLimit        int
	MonthlyReplyLimit int
	Features          []string
	Popular           bool
	ContactSales      bool
}

// Purchasable はチェックアウトで購入できるプランかどうかを返す。
func (p Plan) Purchasable() bool {
	return p.PriceID != "" && p.Price.IsPositive()
}

// DisplayPrice は画面表示用の価格文字列を返す（例: "$49"）。
func (p Plan) DisplayPrice() string {
	return "$" + p.Price.StringFixedBank(0)
}

type catalogFile struct {
	Plans []struct {
		Type              string   `yaml:"type"`
		Name              string   `yaml:"name"`
		Price             string   `yaml:"price"`
		Currency          string   `yaml:"currency"`
		PriceID           string   `yaml:"price_id"`
		VideoLimit        int      `yaml:"video_limit"`
		MonthlyReplyLimit int      `yaml:"monthly_reply_limit"`
		Features          []string `yaml:"features"`
		Popular           bool     `yaml:"popular"`
		ContactSales      bool     `yaml:"contact_sales"`
	} `yaml:"plans"`
}

// Catalog はプランの一覧と検索を提供する。生成後は読み取り専用。
type Catalog struct {
	plans     []Plan
	byType    map[model.PlanType]Plan
	byPriceID map[string]Plan
}

// Default は埋め込みのカタログを返す。埋め込みYAMLが不正な場合はpanicする。
func Default() *Catalog {
	c, err := Parse(defaultCatalogYAML)
	if err != nil {
		panic(fmt.Sprintf("invalid embedded plan catalog: %v", err))
	}
	return c
}

// Parse はYAMLからカタログを生成する。
func Parse(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse plan catalog: %w", err)
	}
	if len(f.Plans) == 0 {
		return nil, fmt.Errorf("plan catalog is empty")
	}

	c := &Catalog{
		byType:    make(map[model.PlanType]Plan),
		byPriceID: make(map[string]Plan),
	}
	for _, raw := range f.Plans {
		t := model.PlanType(raw.Type)
		if !t.Valid() {
			return nil, fmt.Errorf("unknown plan type %q", raw.Type)
		}
		if _, dup := c.byType[t]; dup {
			return nil, fmt.Errorf("duplicate plan type %q", raw.Type)
		}
		price, err := decimal.NewFromString(raw.Price)
		if err != nil {
			return nil, fmt.Errorf("invalid price for plan %q: %w", raw.Type, err)
		}
		if price.IsNegative() {
			return nil, fmt.Errorf("negative price for plan %q", raw.Type)
		}
		p := Plan{
			Type:              t,
			Name:              raw.Name,
			Price:             price,
			Currency:          raw.Currency,
			PriceID:           raw.PriceID,
			VideoLimit:        raw.VideoLimit,
			MonthlyReplyLimit: raw.MonthlyReplyLimit,
			Features:          raw.Features,
			Popular:           raw.Popular,
			ContactSales:      raw.ContactSales,
		}
		c.plans = append(c.plans, p)
		c.byType[t] = p
		if p.PriceID != "" {
			c.byPriceID[p.PriceID] = p
		}
	}
	if _, ok := c.byType[model.PlanFree]; !ok {
		return nil, fmt.Errorf("plan catalog must contain the free plan")
	}
	return c, nil
}

// All は定義順のプラン一覧のコピーを返す。
func (c *Catalog) All() []Plan {
	out := make([]Plan, len(c.plans))
	copy(out, c.plans)
	return out
}

// Lookup はプラン種別からプランを返す。未知の種別は無料プランとして扱う。
func (c *Catalog) Lookup(t model.PlanType) Plan {
	if p, ok := c.byType[t]; ok {
		return p
	}
	return c.byType[model.PlanFree]
}

// ByPriceID は価格IDに対応する購入可能なプランを返す。
func (c *Catalog) ByPriceID(priceID string) (Plan, bool) {
	p, ok := c.byPriceID[priceID]
	if !ok || !p.Purchasable() {
		return Plan{}, false
	}
	return p, true
}
