package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"merchant_go/internal/domain"
	"merchant_go/internal/infra"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// CreateOrderRequest is the inbound order payload. Qty arrives as a
// string from the request layer and is validated here.
type CreateOrderRequest struct {
	EmailAddress    string `json:"emailAddress"`
	ShippingName    string `json:"shippingName"`
	ShippingAddress string `json:"shippingAddress"`
	Qty             string `json:"qty"`
}

// OrderQuote is what the customer needs to pay: the dedicated receiving
// address and the BCH amount due.
type OrderQuote struct {
	BchAddr  string
	PriceDue decimal.Decimal
}

// Config holds the order-handling policy.
type Config struct {
	UnitPriceUSD decimal.Decimal
	MerchantAddr string
	TTL          time.Duration // zero disables expiry
	MaxParallel  int
	CallTimeout  time.Duration
}

// Deps are the collaborators the service drives.
type Deps struct {
	Orders    domain.OrderStore
	Paid      domain.PaidOrderStore
	Allocator domain.AddressAllocator
	Rates     domain.PriceOracle
	Balance   domain.BalanceOracle
	Notifier  domain.SecureNotifier
	Metrics   *infra.Metrics
}

// OrderService owns the order lifecycle: creation, the periodic
// reconciliation of pending orders against on-chain balances, and the
// one-shot merchant notification when an order is paid.
type OrderService struct {
	cfg  Config
	deps Deps
	now  func() time.Time
}

// NewOrderService creates the service with defaults applied.
func NewOrderService(cfg Config, deps Deps) *OrderService {
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = 5
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 30 * time.Second
	}
	if deps.Metrics == nil {
		deps.Metrics = infra.GlobalMetrics
	}
	return &OrderService{
		cfg:  cfg,
		deps: deps,
		now:  time.Now,
	}
}

// CreateOrder quotes and persists a new order. The quoted price is fixed
// at creation: the customer pays what they saw, even if the exchange
// rate moves before reconciliation.
func (s *OrderService) CreateOrder(ctx context.Context, req CreateOrderRequest) (*OrderQuote, error) {
	qty, err := strconv.Atoi(strings.TrimSpace(req.Qty))
	if err != nil {
		return nil, domain.NewValidationError("qty", fmt.Errorf("must be an integer: %w", err))
	}
	if qty <= 0 {
		return nil, domain.NewValidationError("qty", errors.New("must be positive"))
	}

	// The cursor advances even if a later step fails; a leaked index
	// just skips an address, it is never reused.
	index, err := s.deps.Allocator.NextIndex()
	if err != nil {
		return nil, domain.NewDependencyError("wallet", "next-index", err)
	}
	kp, err := s.deps.Allocator.KeyPair(index)
	if err != nil {
		return nil, domain.NewDependencyError("wallet", "derive-keypair", err)
	}

	rate, err := s.deps.Rates.USDPerBCH()
	if err != nil {
		return nil, domain.NewDependencyError("price-oracle", "usd-per-bch", err)
	}

	priceDue := domain.FloorCrypto(
		s.cfg.UnitPriceUSD.Mul(decimal.NewFromInt(int64(qty))).Div(rate),
	)

	order := &domain.Order{
		ID:              uuid.NewString(),
		EmailAddress:    req.EmailAddress,
		ShippingName:    req.ShippingName,
		ShippingAddress: req.ShippingAddress,
		Qty:             qty,
		BchAddr:         kp.CashAddr,
		HDIndex:         kp.Index,
		WIF:             kp.WIF,
		PriceDue:        priceDue,
		CreatedAt:       s.now(),
	}
	if err := s.deps.Orders.InsertOrder(order); err != nil {
		return nil, domain.NewDependencyError("order-store", "insert", err)
	}

	s.deps.Metrics.RecordOrderCreated()
	slog.Info("Order created",
		slog.String("order_id", order.ID),
		slog.String("address", order.BchAddr),
		slog.String("price_due", priceDue.String()),
	)

	return &OrderQuote{BchAddr: kp.CashAddr, PriceDue: priceDue}, nil
}

// Reconcile runs one reconciliation cycle over all pending orders. It
// never raises: per-order failures are logged and contained, and only a
// failure to enumerate the order store reports false.
func (s *OrderService) Reconcile(ctx context.Context) bool {
	start := time.Now()

	orders, err := s.deps.Orders.ListOrders()
	if err != nil {
		slog.Error("Cannot enumerate pending orders", slog.Any("error", err))
		s.deps.Metrics.RecordCycle(false, time.Since(start))
		return false
	}

	slog.Info("Reconciliation cycle started", slog.Int("pending", len(orders)))

	// Orders are independent; fan out with a bounded group. Each task
	// swallows its own failures so the group never cancels.
	var g errgroup.Group
	g.SetLimit(s.cfg.MaxParallel)
	for i := range orders {
		order := orders[i]
		g.Go(func() error {
			s.reconcileOrder(ctx, &order)
			return nil
		})
	}
	g.Wait()

	s.deps.Metrics.RecordCycle(true, time.Since(start))
	return true
}

// reconcileOrder processes a single pending order: expiry check, balance
// check, then archive → notify → delete, strictly in that sequence.
func (s *OrderService) reconcileOrder(ctx context.Context, order *domain.Order) {
	log := slog.With(slog.String("order_id", order.ID), slog.String("address", order.BchAddr))

	if order.ExpiredAt(s.now(), s.cfg.TTL) {
		if err := s.deps.Orders.DeleteOrder(order.ID); err != nil {
			log.Error("Failed to discard expired order", slog.Any("error", err))
			return
		}
		s.deps.Metrics.RecordOrderExpired()
		log.Info("Expired unpaid order discarded", slog.Duration("ttl", s.cfg.TTL))
		return
	}

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
	balance, err := s.deps.Balance.ConfirmedBalance(callCtx, order.BchAddr)
	cancel()
	if err != nil {
		log.Warn("Balance query failed",
			slog.Any("error", domain.NewDependencyError("balance-oracle", "confirmed-balance", err)))
		return
	}

	if !order.PaidBy(balance) {
		return
	}
	log.Info("Order paid",
		slog.String("balance", balance.String()),
		slog.String("price_due", order.PriceDue.String()),
	)

	// Archive before delete, always: a crash between the two leaves the
	// order pending, and the existence check keeps the archive single.
	existing, err := s.deps.Paid.FindPaidOrder(order.BchAddr)
	if err != nil {
		log.Error("Paid-order lookup failed", slog.Any("error", err))
		return
	}
	if existing == nil {
		if err := s.deps.Paid.InsertPaidOrder(order.Snapshot(s.now())); err != nil {
			log.Error("Failed to archive paid order", slog.Any("error", err))
			return
		}
		s.deps.Metrics.RecordOrderPaid()

		// Best-effort, at most once: a failed notification is logged,
		// never retried, and never blocks removal of the order.
		if err := s.sendMessage(ctx, order); err != nil {
			s.deps.Metrics.RecordNotifyFailure()
			log.Error("Merchant notification failed", slog.Any("error", err))
		}
	}

	if err := s.deps.Orders.DeleteOrder(order.ID); err != nil {
		log.Error("Failed to remove archived order", slog.Any("error", err))
	}
}

// sendMessage delivers the encrypted order details to the merchant,
// funded by the order's own spending credential.
func (s *OrderService) sendMessage(ctx context.Context, order *domain.Order) error {
	// The WIF is excluded by its json tag and stays out of the message
	details, err := json.MarshalIndent(order, "", "  ")
	if err != nil {
		return err
	}
	message := fmt.Sprintf("Order %s has been paid.\norderDetails: %s", order.ID, details)

	uploadCtx, cancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
	hash, err := s.deps.Notifier.EncryptAndUpload(uploadCtx, s.cfg.MerchantAddr, message, order.WIF)
	cancel()
	if err != nil {
		return fmt.Errorf("encrypt and upload: %w", err)
	}

	signalCtx, cancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
	txid, err := s.deps.Notifier.SendSignal(signalCtx, s.cfg.MerchantAddr, "Order Paid", hash, order.WIF)
	cancel()
	if err != nil {
		return fmt.Errorf("send signal: %w", err)
	}

	slog.Info("Merchant notified", slog.String("order_id", order.ID), slog.String("txid", txid))
	return nil
}

// CheckPayment reports whether the order at bchAddr has been paid: an
// archived record exists and no pending order remains.
func (s *OrderService) CheckPayment(ctx context.Context, bchAddr string) (bool, error) {
	if bchAddr == "" {
		return false, domain.NewValidationError("bchAddr", errors.New("must not be empty"))
	}

	paid, err := s.deps.Paid.FindPaidOrder(bchAddr)
	if err != nil {
		return false, domain.NewDependencyError("paid-order-store", "find", err)
	}
	if paid == nil {
		return false, nil
	}

	pending, err := s.deps.Orders.FindOrder(bchAddr)
	if err != nil {
		return false, domain.NewDependencyError("order-store", "find", err)
	}
	return pending == nil, nil
}
