package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// PriceOracle defines the interface for USD/BCH exchange rate sources
type PriceOracle interface {
	USDPerBCH() (decimal.Decimal, error)
}

// KeyPair is a spending credential and the receiving address it controls
type KeyPair struct {
	Index    uint32
	WIF      string
	CashAddr string
}

// AddressAllocator hands out receiving keypairs from a monotonic index.
// NextIndex must be atomic across concurrent callers; gaps from failed
// order creations are acceptable, reuse is not.
type AddressAllocator interface {
	NextIndex() (uint32, error)
	KeyPair(index uint32) (KeyPair, error)
}

// BalanceOracle reports the confirmed on-chain balance of an address
type BalanceOracle interface {
	ConfirmedBalance(ctx context.Context, addr string) (decimal.Decimal, error)
}

// SecureNotifier delivers an end-to-end encrypted message to a recipient:
// upload the ciphertext to a content-addressed store, then broadcast a
// signal transaction referencing it. Both steps are funded by wif.
type SecureNotifier interface {
	EncryptAndUpload(ctx context.Context, bchAddr, message, wif string) (hash string, err error)
	SendSignal(ctx context.Context, bchAddr, subject, hash, wif string) (txid string, err error)
}

// OrderStore is the durable record of orders awaiting payment
type OrderStore interface {
	InsertOrder(o *Order) error
	ListOrders() ([]Order, error)
	FindOrder(bchAddr string) (*Order, error)
	DeleteOrder(id string) error
}

// PaidOrderStore is the append-only archive of paid orders
type PaidOrderStore interface {
	InsertPaidOrder(p *PaidOrder) error
	FindPaidOrder(bchAddr string) (*PaidOrder, error)
}
