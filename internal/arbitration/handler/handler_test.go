package handler

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"

	"trustline/internal/arbitration"
	"trustline/pkg/domain"
	"trustline/pkg/requestcontext"
	"trustline/pkg/testutil"
)

const actingAsHeader = "X-Acting-As"

func TestCreateRequiresAuth(t *testing.T) {
	router := newArbitrationRouter(t)

	req := testutil.NewJSONRequest(t, http.MethodPost, "/arbitration", map[string]any{
		"arbiter": "judge", "cosigners": []string{"p1", "p2"}, "approvals": 2,
	})
	rr := testutil.DoRequest(router, req)
	testutil.AssertStatus(t, rr, http.StatusUnauthorized)
}

func TestCreateAndReadConfig(t *testing.T) {
	router := newArbitrationRouter(t)

	req := testutil.NewJSONRequest(t, http.MethodPost, "/arbitration", map[string]any{
		"arbiter": "judge", "cosigners": []string{"p1", "p2", "p2", "p3"}, "approvals": 2,
	})
	req.Header.Set(actingAsHeader, "judge")
	rr := testutil.DoRequest(router, req)
	testutil.AssertStatus(t, rr, http.StatusCreated)

	rr = testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, "/arbitration/judge", nil))
	testutil.AssertStatus(t, rr, http.StatusOK)
	config := testutil.UnmarshalResponse[arbitration.ArbitrationConfig](t, rr)
	if len(config.Cosigners) != 3 {
		t.Fatalf("expected duplicate cosigners collapsed to 3, got %d", len(config.Cosigners))
	}
	if config.Approvals != 2 {
		t.Fatalf("expected approvals 2, got %d", config.Approvals)
	}
}

func TestCreateForAnotherArbiterForbidden(t *testing.T) {
	router := newArbitrationRouter(t)

	req := testutil.NewJSONRequest(t, http.MethodPost, "/arbitration", map[string]any{
		"arbiter": "judge", "cosigners": []string{"p1"}, "approvals": 1,
	})
	req.Header.Set(actingAsHeader, "mallory")
	rr := testutil.DoRequest(router, req)
	testutil.AssertStatus(t, rr, http.StatusForbidden)
}

func TestCreateAboveQuorumRejected(t *testing.T) {
	router := newArbitrationRouter(t)

	req := testutil.NewJSONRequest(t, http.MethodPost, "/arbitration", map[string]any{
		"arbiter": "judge", "cosigners": []string{"p1", "p2"}, "approvals": 3,
	})
	req.Header.Set(actingAsHeader, "judge")
	rr := testutil.DoRequest(router, req)
	testutil.AssertStatus(t, rr, http.StatusUnprocessableEntity)
}

func TestConfigUnknownArbiter(t *testing.T) {
	router := newArbitrationRouter(t)

	rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, "/arbitration/nobody", nil))
	testutil.AssertStatus(t, rr, http.StatusNotFound)
}

func TestSignReachesQuorum(t *testing.T) {
	router := newArbitrationRouter(t)
	createPanel(t, router, "judge", []string{"p1", "p2", "p3"}, 2)

	// No signatures yet.
	rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, "/arbitration/judge/events/carol/0", nil))
	testutil.AssertStatus(t, rr, http.StatusOK)
	if testutil.UnmarshalResponse[struct {
		Authorized bool `json:"authorized"`
	}](t, rr).Authorized {
		t.Fatal("expected unauthorized before any signature")
	}

	signAs(t, router, "p1", "judge", "carol", 0)
	signAs(t, router, "p2", "judge", "carol", 0)

	rr = testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, "/arbitration/judge/events/carol/0", nil))
	testutil.AssertStatus(t, rr, http.StatusOK)
	if !testutil.UnmarshalResponse[struct {
		Authorized bool `json:"authorized"`
	}](t, rr).Authorized {
		t.Fatal("expected authorized after quorum")
	}
}

func TestSignByNonMemberUnauthorized(t *testing.T) {
	router := newArbitrationRouter(t)
	createPanel(t, router, "judge", []string{"p1", "p2"}, 2)

	req := testutil.NewJSONRequest(t, http.MethodPost, "/arbitration/judge/sign", map[string]any{
		"depositor": "carol", "index": 0,
	})
	req.Header.Set(actingAsHeader, "mallory")
	rr := testutil.DoRequest(router, req)
	testutil.AssertStatus(t, rr, http.StatusUnauthorized)
}

func newArbitrationRouter(t *testing.T) http.Handler {
	t.Helper()
	svc := arbitration.NewService(arbitration.NewInMemoryStore())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	h := New(svc, logger)
	r := chi.NewRouter()
	h.Register(r, headerAuth)
	return r
}

func createPanel(t *testing.T, router http.Handler, arbiter string, cosigners []string, approvals uint32) {
	t.Helper()
	req := testutil.NewJSONRequest(t, http.MethodPost, "/arbitration", map[string]any{
		"arbiter": arbiter, "cosigners": cosigners, "approvals": approvals,
	})
	req.Header.Set(actingAsHeader, arbiter)
	testutil.AssertStatus(t, testutil.DoRequest(router, req), http.StatusCreated)
}

func signAs(t *testing.T, router http.Handler, cosigner, arbiter, depositor string, index uint32) {
	t.Helper()
	req := testutil.NewJSONRequest(t, http.MethodPost, fmt.Sprintf("/arbitration/%s/sign", arbiter), map[string]any{
		"depositor": depositor, "index": index,
	})
	req.Header.Set(actingAsHeader, cosigner)
	testutil.AssertStatus(t, testutil.DoRequest(router, req), http.StatusOK)
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
