package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order represents a pending order awaiting payment at its own dedicated
// receiving address. Everything except the payment fields is an opaque
// payload passed back to the merchant once the order is paid.
type Order struct {
	ID              string          `gorm:"primaryKey" json:"id"`
	EmailAddress    string          `json:"email_address"`
	ShippingName    string          `json:"shipping_name"`
	ShippingAddress string          `json:"shipping_address"`
	Qty             int             `json:"qty"`
	BchAddr         string          `gorm:"uniqueIndex" json:"bch_addr"`
	HDIndex         uint32          `json:"hd_index"`
	WIF             string          `json:"-"` // spending credential, stays inside the core
	PriceDue        decimal.Decimal `gorm:"type:text" json:"price_due"`
	CreatedAt       time.Time       `json:"created_at"`
}

// PaidBy reports whether the measured on-chain balance satisfies the
// quoted price. The comparison is non-strict: overpayment counts as paid.
func (o *Order) PaidBy(balance decimal.Decimal) bool {
	return balance.GreaterThanOrEqual(o.PriceDue)
}

// ExpiredAt reports whether the order is older than ttl at the given
// instant. A zero ttl disables expiry.
func (o *Order) ExpiredAt(now time.Time, ttl time.Duration) bool {
	if ttl <= 0 {
		return false
	}
	return now.Sub(o.CreatedAt) > ttl
}

// PaidOrder is the archival snapshot of a paid Order. The original order
// ID is dropped: the row ID below is storage identity only, assigned by
// the database. A PaidOrder is written exactly once and never mutated.
type PaidOrder struct {
	RowID           uint            `gorm:"primaryKey" json:"-"`
	EmailAddress    string          `json:"email_address"`
	ShippingName    string          `json:"shipping_name"`
	ShippingAddress string          `json:"shipping_address"`
	Qty             int             `json:"qty"`
	BchAddr         string          `gorm:"index" json:"bch_addr"`
	HDIndex         uint32          `json:"hd_index"`
	WIF             string          `json:"-"`
	PriceDue        decimal.Decimal `gorm:"type:text" json:"price_due"`
	OrderedAt       time.Time       `json:"ordered_at"`
	PaidAt          time.Time       `json:"paid_at"`
}

// Snapshot copies the order into its archival form, dropping the order ID.
func (o *Order) Snapshot(paidAt time.Time) *PaidOrder {
	return &PaidOrder{
		EmailAddress:    o.EmailAddress,
		ShippingName:    o.ShippingName,
		ShippingAddress: o.ShippingAddress,
		Qty:             o.Qty,
		BchAddr:         o.BchAddr,
		HDIndex:         o.HDIndex,
		WIF:             o.WIF,
		PriceDue:        o.PriceDue,
		OrderedAt:       o.CreatedAt,
		PaidAt:          paidAt,
	}
}
