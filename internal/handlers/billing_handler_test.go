package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/saeid-a/CoachBillingBack/internal/models"
	"github.com/saeid-a/CoachBillingBack/internal/repository"
	"github.com/saeid-a/CoachBillingBack/internal/services"
)

type stubBillingService struct {
	dashboardResult *models.BillingDashboard
	dashboardErr    error
	listResult      []models.Transaction
	listTotal       int
	listErr         error
	getResult       *models.Transaction
	getErr          error

	lastPartyID int64
	lastRole    string
	lastFilter  repository.TransactionFilter
	lastTxID    string
}

func (s *stubBillingService) Dashboard(_ context.Context, partyID int64, role string) (*models.BillingDashboard, error) {
	s.lastPartyID = partyID
	s.lastRole = role
	return s.dashboardResult, s.dashboardErr
}

func (s *stubBillingService) ListTransactions(_ context.Context, filter repository.TransactionFilter) ([]models.Transaction, int, error) {
	s.lastFilter = filter
	return s.listResult, s.listTotal, s.listErr
}

func (s *stubBillingService) GetTransaction(_ context.Context, id string) (*models.Transaction, error) {
	s.lastTxID = id
	return s.getResult, s.getErr
}

type stubPaymentRecorder struct {
	result *models.Transaction
	err    error

	lastClientID int64
	lastCoachID  int64
	lastAmount   int64
	lastMethod   string
}

func (s *stubPaymentRecorder) RecordPayment(_ context.Context, clientID, coachID, amountMinor int64, method string) (*models.Transaction, error) {
	s.lastClientID = clientID
	s.lastCoachID = coachID
	s.lastAmount = amountMinor
	s.lastMethod = method
	return s.result, s.err
}

func newBillingApp(billing billingQueryService, recorder paymentRecorder, role, userID string) *fiber.App {
	handler := &BillingHandler{billing: billing, recorder: recorder}

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("role", role)
		c.Locals("user_id", userID)
		return c.Next()
	})
	app.Get("/api/v1/billing/dashboard/:party_id/:role", handler.GetDashboard)
	app.Post("/api/v1/billing/payments", handler.RecordPayment)
	app.Get("/api/v1/billing/transactions", handler.ListTransactions)
	app.Get("/api/v1/billing/transactions/:id", handler.GetTransaction)
	return app
}

func TestGetDashboardAllowsMatchingActor(t *testing.T) {
	balance := int64(12500)
	service := &stubBillingService{
		dashboardResult: &models.BillingDashboard{CurrentBalanceMinor: &balance},
	}
	app := newBillingApp(service, &stubPaymentRecorder{}, "coach", "7")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/billing/dashboard/7/coach", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if service.lastPartyID != 7 || service.lastRole != "coach" {
		t.Fatalf("unexpected dashboard call: party=%d role=%q", service.lastPartyID, service.lastRole)
	}
}

func TestGetDashboardForbiddenForOtherParty(t *testing.T) {
	service := &stubBillingService{dashboardResult: &models.BillingDashboard{}}
	app := newBillingApp(service, &stubPaymentRecorder{}, "client", "42")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/billing/dashboard/43/client", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
}

func TestGetDashboardForbiddenForRoleMismatch(t *testing.T) {
	service := &stubBillingService{dashboardResult: &models.BillingDashboard{}}
	app := newBillingApp(service, &stubPaymentRecorder{}, "client", "42")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/billing/dashboard/42/coach", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
}

func TestGetDashboardStaffCanViewAnyParty(t *testing.T) {
	service := &stubBillingService{dashboardResult: &models.BillingDashboard{}}
	app := newBillingApp(service, &stubPaymentRecorder{}, "staff", "3")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/billing/dashboard/42/client", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestGetDashboardRejectsUnknownRoleParam(t *testing.T) {
	service := &stubBillingService{}
	app := newBillingApp(service, &stubPaymentRecorder{}, "staff", "3")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/billing/dashboard/42/admin", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestRecordPaymentForwardsFields(t *testing.T) {
	recorder := &stubPaymentRecorder{
		result: &models.Transaction{ID: "tx-1", Type: models.TransactionTypePayment},
	}
	app := newBillingApp(&stubBillingService{}, recorder, "staff", "3")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/billing/payments", strings.NewReader(`{
		"client_id": 42,
		"coach_id": 7,
		"amount_minor": 10000,
		"payment_method": "card"
	}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	if recorder.lastClientID != 42 || recorder.lastCoachID != 7 {
		t.Fatalf("unexpected parties: client=%d coach=%d", recorder.lastClientID, recorder.lastCoachID)
	}
	if recorder.lastAmount != 10000 || recorder.lastMethod != "card" {
		t.Fatalf("unexpected payment: amount=%d method=%q", recorder.lastAmount, recorder.lastMethod)
	}
}

func TestRecordPaymentForbiddenForNonStaff(t *testing.T) {
	app := newBillingApp(&stubBillingService{}, &stubPaymentRecorder{}, "coach", "7")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/billing/payments", strings.NewReader(`{"client_id":42,"coach_id":7,"amount_minor":100,"payment_method":"card"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
}

func TestListTransactionsParsesFilter(t *testing.T) {
	service := &stubBillingService{
		listResult: []models.Transaction{{ID: "tx-2"}},
		listTotal:  41,
	}
	app := newBillingApp(service, &stubPaymentRecorder{}, "staff", "3")

	req := httptest.NewRequest(http.MethodGet,
		"/api/v1/billing/transactions?coach_id=7&type=payment,refund&status=completed&page=2&limit=20", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if service.lastFilter.CoachID == nil || *service.lastFilter.CoachID != 7 {
		t.Fatalf("expected coach filter 7, got %v", service.lastFilter.CoachID)
	}
	if len(service.lastFilter.Types) != 2 ||
		service.lastFilter.Types[0] != models.TransactionTypePayment ||
		service.lastFilter.Types[1] != models.TransactionTypeRefund {
		t.Fatalf("unexpected type filter: %+v", service.lastFilter.Types)
	}
	if service.lastFilter.Limit != 20 || service.lastFilter.Offset != 20 {
		t.Fatalf("unexpected paging: limit=%d offset=%d", service.lastFilter.Limit, service.lastFilter.Offset)
	}

	var body struct {
		Pagination models.PaginationMeta `json:"pagination"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if body.Pagination.Total != 41 || body.Pagination.TotalPages != 3 {
		t.Fatalf("unexpected pagination: %+v", body.Pagination)
	}
}

func TestListTransactionsRejectsUnknownType(t *testing.T) {
	app := newBillingApp(&stubBillingService{}, &stubPaymentRecorder{}, "staff", "3")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/billing/transactions?type=chargeback", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestGetTransactionReturnsNotFound(t *testing.T) {
	service := &stubBillingService{getErr: services.ErrNotFound}
	app := newBillingApp(service, &stubPaymentRecorder{}, "staff", "3")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/billing/transactions/missing", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestMapBillingErrorStatuses(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"validation", services.ErrValidation, http.StatusBadRequest},
		{"invalid transition", services.ErrInvalidTransition, http.StatusUnprocessableEntity},
		{"conflict", services.ErrConflict, http.StatusConflict},
		{"not found", services.ErrNotFound, http.StatusNotFound},
		{"no rows", pgx.ErrNoRows, http.StatusNotFound},
		{"forbidden", services.ErrForbidden, http.StatusForbidden},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		app := fiber.New()
		app.Get("/", func(c *fiber.Ctx) error {
			return mapBillingError(c, tc.err)
		})

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("%s: app.Test: %v", tc.name, err)
		}
		resp.Body.Close()

		if resp.StatusCode != tc.want {
			t.Fatalf("%s: expected %d, got %d", tc.name, tc.want, resp.StatusCode)
		}
	}
}
