package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"merchant_go/internal/domain"
	"merchant_go/internal/service"

	"github.com/shopspring/decimal"
)

type fakeService struct {
	createFn func(req service.CreateOrderRequest) (*service.OrderQuote, error)
	checkFn  func(addr string) (bool, error)
}

func (f *fakeService) CreateOrder(ctx context.Context, req service.CreateOrderRequest) (*service.OrderQuote, error) {
	return f.createFn(req)
}

func (f *fakeService) CheckPayment(ctx context.Context, addr string) (bool, error) {
	return f.checkFn(addr)
}

func serve(t *testing.T, svc OrderService, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	srv := NewServer(":0", svc, nil)
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestCreateOrder_OK(t *testing.T) {
	var got service.CreateOrderRequest
	svc := &fakeService{
		createFn: func(req service.CreateOrderRequest) (*service.OrderQuote, error) {
			got = req
			return &service.OrderQuote{
				BchAddr:  "bitcoincash:qtest",
				PriceDue: decimal.RequireFromString("0.01"),
			}, nil
		},
	}

	body := `{"order":{"emailAddress":"a@b.c","shippingName":"Buyer","shippingAddress":"123 Somewhere","qty":1}}`
	rec := serve(t, svc, http.MethodPost, "/order", body)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	if got.Qty != "1" || got.EmailAddress != "a@b.c" {
		t.Errorf("request not forwarded to the service: %+v", got)
	}

	var resp struct {
		Success    bool   `json:"success"`
		BchAddr    string `json:"bchAddr"`
		BchPayment string `json:"bchPayment"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if !resp.Success || resp.BchAddr != "bitcoincash:qtest" || resp.BchPayment != "0.01" {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestCreateOrder_QtyAsString(t *testing.T) {
	svc := &fakeService{
		createFn: func(req service.CreateOrderRequest) (*service.OrderQuote, error) {
			if req.Qty != "2" {
				t.Errorf("expected qty 2, got %q", req.Qty)
			}
			return &service.OrderQuote{BchAddr: "bitcoincash:qtest"}, nil
		},
	}

	rec := serve(t, svc, http.MethodPost, "/order", `{"order":{"qty":"2"}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestCreateOrder_ValidationError(t *testing.T) {
	svc := &fakeService{
		createFn: func(req service.CreateOrderRequest) (*service.OrderQuote, error) {
			return nil, domain.NewValidationError("qty", errors.New("must be a positive integer"))
		},
	}

	rec := serve(t, svc, http.MethodPost, "/order", `{"order":{"qty":0}}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
}

func TestCreateOrder_DependencyError(t *testing.T) {
	svc := &fakeService{
		createFn: func(req service.CreateOrderRequest) (*service.OrderQuote, error) {
			return nil, domain.NewDependencyError("price-oracle", "spot", errors.New("unreachable"))
		},
	}

	rec := serve(t, svc, http.MethodPost, "/order", `{"order":{"qty":1}}`)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
}

func TestCreateOrder_MalformedBody(t *testing.T) {
	svc := &fakeService{
		createFn: func(req service.CreateOrderRequest) (*service.OrderQuote, error) {
			t.Fatal("service must not be called for malformed bodies")
			return nil, nil
		},
	}

	rec := serve(t, svc, http.MethodPost, "/order", `{"order":`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
}

func TestCheckPayment_Route(t *testing.T) {
	svc := &fakeService{
		checkFn: func(addr string) (bool, error) {
			if addr != "bitcoincash:qsomeaddr" {
				t.Errorf("url param not forwarded, got %q", addr)
			}
			return true, nil
		},
	}

	rec := serve(t, svc, http.MethodGet, "/order/payment/bitcoincash:qsomeaddr", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp checkPaymentResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if !resp.Paid {
		t.Error("expected paid=true")
	}
}

func TestCheckPayment_Unpaid(t *testing.T) {
	svc := &fakeService{
		checkFn: func(addr string) (bool, error) { return false, nil },
	}

	rec := serve(t, svc, http.MethodGet, "/order/payment/bitcoincash:qother", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"paid":false`) {
		t.Errorf("expected paid=false, got %s", rec.Body)
	}
}
