package audit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/claimflow/claims/internal/claim/domain"
	"github.com/claimflow/claims/internal/claim/reconcile"
	"github.com/claimflow/claims/internal/claim/service"
	"github.com/claimflow/claims/internal/shared/auth"
	"github.com/claimflow/claims/internal/shared/config"
	"github.com/claimflow/claims/internal/shared/events"
	"github.com/claimflow/claims/internal/shared/types"
)

var (
	claimant = domain.Operator{ID: types.NewID(), Name: "Sun Qi", Type: domain.OperatorClaimant}
	insurer  = domain.Operator{ID: types.NewID(), Name: "Insurer", Type: domain.OperatorInsurer}
)

func party() domain.Party {
	return domain.Party{
		Name:             "Sun Qi",
		CredentialType:   types.CredentialTypeIDCard,
		CredentialNumber: types.CredentialNumber("11010519491231002X"),
	}
}

// recordedClaim drives a personal claim through a few transitions with the
// subscriber attached, and returns the claim with the filled repository.
func recordedClaim(t *testing.T) (*domain.InsuranceClaim, *MemoryRepository, *events.MemoryBus) {
	t.Helper()
	ctx := context.Background()
	bus := events.NewMemoryBus(zerolog.Nop())
	repo := NewMemoryRepository()

	if err := NewSubscriber(repo, bus, zerolog.Nop()).Start(ctx); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	svc := service.New(bus, nil, reconcile.NewReconciler(reconcile.NewMemoryHistoryStore(), zerolog.Nop()),
		config.ClaimsConfig{}, zerolog.Nop())

	c := domain.NewInsuranceClaim(types.NewID(), "P-5", party(), party(), claimant)
	if err := svc.Flush(ctx, c); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	steps := []struct {
		op       domain.Operation
		operator domain.Operator
	}{
		{domain.OpSubmit, claimant},
		{domain.OpAuditApplication, domain.SystemOperator},
		{domain.OpSystemAccept, domain.SystemOperator},
	}
	for _, s := range steps {
		if err := svc.Transition(ctx, c, s.op, s.operator, ""); err != nil {
			t.Fatalf("%s: expected no error, got %v", s.op, err)
		}
	}
	return c, repo, bus
}

func TestSubscriberRecordsClaimEvents(t *testing.T) {
	c, repo, bus := recordedClaim(t)

	stored, err := repo.ListByClaim(context.Background(), c.ID, 0, 0)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(stored) != len(c.Events) {
		t.Fatalf("Expected %d stored events, got %d", len(c.Events), len(stored))
	}
	for i := range stored {
		if stored[i].ID != c.Events[i].ID || stored[i].Status != c.Events[i].Status {
			t.Errorf("Event %d: expected %s/%s, got %s/%s", i, c.Events[i].ID, c.Events[i].Status, stored[i].ID, stored[i].Status)
		}
	}

	// redelivery of the same event is ignored
	first := bus.Published()[0]
	if err := bus.Publish(context.Background(), first); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	again, _ := repo.ListByClaim(context.Background(), c.ID, 0, 0)
	if len(again) != len(stored) {
		t.Errorf("Expected %d events after redelivery, got %d", len(stored), len(again))
	}
}

func TestSubscriberIgnoresOtherEvents(t *testing.T) {
	bus := events.NewMemoryBus(zerolog.Nop())
	repo := NewMemoryRepository()
	_ = NewSubscriber(repo, bus, zerolog.Nop()).Start(context.Background())

	event, _ := events.NewEvent("policy.renewed", "policy", map[string]string{"id": "x"})
	_ = bus.Publish(context.Background(), event)

	event, _ = events.NewEvent("claim.status_changed", "claims", map[string]string{"unrelated": "x"})
	_ = bus.Publish(context.Background(), event)

	if len(repo.events) != 0 {
		t.Errorf("Expected nothing stored, got %d", len(repo.events))
	}
}

func TestMemoryRepositoryPaging(t *testing.T) {
	repo := NewMemoryRepository()
	claimID := types.NewID()
	for i := 0; i < 5; i++ {
		_ = repo.Append(context.Background(), domain.ClaimEvent{ID: types.NewID(), ClaimID: claimID})
	}
	_ = repo.Append(context.Background(), domain.ClaimEvent{ID: types.NewID(), ClaimID: types.NewID()})

	tests := []struct {
		limit, offset, expected int
	}{
		{0, 0, 5},
		{2, 0, 2},
		{2, 4, 1},
		{10, 5, 0},
		{10, -3, 5},
	}
	for _, tt := range tests {
		got, err := repo.ListByClaim(context.Background(), claimID, tt.limit, tt.offset)
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if len(got) != tt.expected {
			t.Errorf("limit %d offset %d: expected %d, got %d", tt.limit, tt.offset, tt.expected, len(got))
		}
	}
}

func TestListClaimEventsDevMode(t *testing.T) {
	c, repo, _ := recordedClaim(t)
	r := chi.NewRouter()
	r.Mount("/api/v1/claims", NewHandler(repo, true).Routes())

	tests := []struct {
		name     string
		path     string
		status   int
		expected int
	}{
		{"all events", "/api/v1/claims/" + c.ID.String() + "/events", http.StatusOK, 4},
		{"paged", "/api/v1/claims/" + c.ID.String() + "/events?limit=2&offset=1", http.StatusOK, 2},
		{"unknown claim", "/api/v1/claims/" + types.NewID().String() + "/events", http.StatusOK, 0},
		{"invalid id", "/api/v1/claims/not-a-uuid/events", http.StatusBadRequest, 0},
		{"invalid limit", "/api/v1/claims/" + c.ID.String() + "/events?limit=ten", http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			if rec.Code != tt.status {
				t.Fatalf("Expected %d, got %d: %s", tt.status, rec.Code, rec.Body.String())
			}
			if tt.status != http.StatusOK {
				return
			}
			var body struct {
				Data []domain.ClaimEvent `json:"data"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("Expected JSON body, got %v", err)
			}
			if len(body.Data) != tt.expected {
				t.Errorf("Expected %d events, got %d", tt.expected, len(body.Data))
			}
		})
	}
}

func TestListClaimEventsRequiresAuditor(t *testing.T) {
	c, repo, _ := recordedClaim(t)
	cfg := config.AuthConfig{JWTSecret: "audit-secret"}

	r := chi.NewRouter()
	r.Route("/api/v1/claims", func(r chi.Router) {
		r.Use(auth.Middleware(cfg))
		r.Mount("/", NewHandler(repo, false).Routes())
	})

	token := func(opType string) string {
		tok, err := auth.IssueToken(cfg, auth.User{ID: types.NewID(), OperatorType: opType},
			jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))})
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		return tok
	}

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"no token", "", http.StatusUnauthorized},
		{"claimant", "Bearer " + token(auth.TypeClaimant), http.StatusForbidden},
		{"insurer", "Bearer " + token(string(insurer.Type)), http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/claims/"+c.ID.String()+"/events", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			if rec.Code != tt.status {
				t.Errorf("Expected %d, got %d", tt.status, rec.Code)
			}
		})
	}
}

func TestListClaimEventsWithoutMiddleware(t *testing.T) {
	_, repo, _ := recordedClaim(t)
	h := NewHandler(repo, false)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x/events", nil)
	h.ListClaimEvents(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without an authenticated user, got %d", rec.Code)
	}
}
