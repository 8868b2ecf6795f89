package handler

import (
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"

	"trustline/internal/billing"
	"trustline/internal/token"
	"trustline/pkg/domain"
	"trustline/pkg/requestcontext"
	"trustline/pkg/testutil"
)

const actingAsHeader = "X-Acting-As"

func TestSubmitBillRequiresAuth(t *testing.T) {
	router, _ := newBillingRouter(t)

	req := testutil.NewJSONRequest(t, http.MethodPost, "/billing/alice/bob/bill",
		map[string]any{"amount": "100"})
	rr := testutil.DoRequest(router, req)
	testutil.AssertStatus(t, rr, http.StatusUnauthorized)
}

func TestBillLifecycleViaHandlers(t *testing.T) {
	router, _ := newBillingRouter(t)

	req := testutil.NewJSONRequest(t, http.MethodPost, "/billing/alice/bob/bill",
		map[string]any{"amount": "100", "notes": "march retainer", "date": "2026-03-31T00:00:00Z"})
	req.Header.Set(actingAsHeader, "alice")
	rr := testutil.DoRequest(router, req)
	testutil.AssertStatus(t, rr, http.StatusCreated)

	// The bill is visible without auth.
	rr = testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, "/billing/alice/bob/bill", nil))
	testutil.AssertStatus(t, rr, http.StatusOK)
	bill := testutil.UnmarshalResponse[billing.Bill](t, rr)
	if bill.Notes != "march retainer" {
		t.Fatalf("unexpected pending bill: %+v", bill)
	}

	// Resolve as the retainee.
	req = testutil.NewJSONRequest(t, http.MethodPost, "/billing/alice/bob/resolve",
		map[string]any{"status": "approved", "notes": "paid", "date": "2026-04-02T00:00:00Z"})
	req.Header.Set(actingAsHeader, "bob")
	rr = testutil.DoRequest(router, req)
	testutil.AssertStatus(t, rr, http.StatusOK)

	resolved := testutil.UnmarshalResponse[struct {
		Receipt billing.Receipt `json:"receipt"`
		Index   uint32          `json:"index"`
	}](t, rr)
	if resolved.Index != 0 || resolved.Receipt.Status != billing.StatusApproved {
		t.Fatalf("unexpected resolution: %+v", resolved)
	}

	// Slot is empty again.
	rr = testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, "/billing/alice/bob/bill", nil))
	testutil.AssertStatus(t, rr, http.StatusNotFound)

	// Receipt readable at its dense index.
	rr = testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, "/billing/alice/bob/receipts/0", nil))
	testutil.AssertStatus(t, rr, http.StatusOK)

	rr = testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, "/billing/alice/bob/history-index", nil))
	testutil.AssertStatus(t, rr, http.StatusOK)
	hi := testutil.UnmarshalResponse[struct {
		HistoryIndex uint32 `json:"history_index"`
	}](t, rr)
	if hi.HistoryIndex != 1 {
		t.Fatalf("expected history index 1, got %d", hi.HistoryIndex)
	}
}

func TestResolveByRetainorForbidden(t *testing.T) {
	router, _ := newBillingRouter(t)

	req := testutil.NewJSONRequest(t, http.MethodPost, "/billing/alice/bob/bill",
		map[string]any{"amount": "100"})
	req.Header.Set(actingAsHeader, "alice")
	testutil.AssertStatus(t, testutil.DoRequest(router, req), http.StatusCreated)

	req = testutil.NewJSONRequest(t, http.MethodPost, "/billing/alice/bob/resolve",
		map[string]any{"status": "approved"})
	req.Header.Set(actingAsHeader, "alice")
	rr := testutil.DoRequest(router, req)
	testutil.AssertStatus(t, rr, http.StatusForbidden)
}

func TestBalanceEndpoints(t *testing.T) {
	router, bank := newBillingRouter(t)
	bank.Mint("usdc", "alice", domain.NewAmount(1000))

	req := testutil.NewJSONRequest(t, http.MethodPost, "/billing/alice/bob/balance",
		map[string]any{"amount": "300", "token": "usdc"})
	req.Header.Set(actingAsHeader, "alice")
	rr := testutil.DoRequest(router, req)
	testutil.AssertStatus(t, rr, http.StatusOK)

	// Single record resolves without naming the token.
	rr = testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, "/billing/alice/bob/balance", nil))
	testutil.AssertStatus(t, rr, http.StatusOK)
	balance := testutil.UnmarshalResponse[billing.RetainerBalance](t, rr)
	if balance.Token != "usdc" || !balance.Amount.Equal(domain.NewAmount(300)) {
		t.Fatalf("unexpected balance: %+v", balance)
	}

	rr = testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, "/billing/alice/bob/balances", nil))
	testutil.AssertStatus(t, rr, http.StatusOK)
	balances := testutil.UnmarshalResponse[[]billing.RetainerBalance](t, rr)
	if len(*balances) != 1 {
		t.Fatalf("expected one balance record, got %d", len(*balances))
	}

	// Unknown pair has nothing to show.
	rr = testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, "/billing/carol/bob/balance", nil))
	testutil.AssertStatus(t, rr, http.StatusNotFound)
}

func TestNegativeAmountUnprocessable(t *testing.T) {
	router, _ := newBillingRouter(t)

	req := testutil.NewJSONRequest(t, http.MethodPost, "/billing/alice/bob/bill",
		map[string]any{"amount": "-5"})
	req.Header.Set(actingAsHeader, "alice")
	rr := testutil.DoRequest(router, req)
	testutil.AssertStatus(t, rr, http.StatusUnprocessableEntity)
	testutil.AssertErrorCode(t, rr, "negative_amount")
}

func newBillingRouter(t *testing.T) (http.Handler, *token.MemoryBank) {
	t.Helper()
	store := billing.NewInMemoryStore()
	bank := token.NewMemoryBank()
	svc := billing.NewService(store, bank)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	h := New(svc, logger)
	r := chi.NewRouter()
	h.Register(r, headerAuth)
	return r, bank
}

func headerAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := r.Header.Get(actingAsHeader)
		if actor == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		ctx := requestcontext.WithActingAs(r.Context(), domain.Address(actor))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
