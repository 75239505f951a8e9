package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/saeid-a/CoachBillingBack/internal/models"
	"github.com/saeid-a/CoachBillingBack/internal/services"
)

type stubPayoutService struct {
	earningsResult models.PendingEarnings
	earningsErr    error
	submitResult   *models.PayoutRequest
	submitErr      error
	resolveResult  *models.PayoutRequest
	resolveErr     error
	listResult     []models.PayoutRequest
	listErr        error

	lastCoachID     int64
	lastSubmitInput services.SubmitPayoutInput
	lastID          string
	lastPayoutDate  time.Time
	lastReason      string
	lastAction      string
}

func (s *stubPayoutService) PendingEarnings(_ context.Context, coachID int64) (models.PendingEarnings, error) {
	s.lastCoachID = coachID
	return s.earningsResult, s.earningsErr
}

func (s *stubPayoutService) Submit(_ context.Context, input services.SubmitPayoutInput) (*models.PayoutRequest, error) {
	s.lastSubmitInput = input
	return s.submitResult, s.submitErr
}

func (s *stubPayoutService) MarkProcessing(_ context.Context, id string) (*models.PayoutRequest, error) {
	s.lastID = id
	s.lastAction = "mark_processing"
	return s.resolveResult, s.resolveErr
}

func (s *stubPayoutService) Complete(_ context.Context, id string, payoutDate time.Time) (*models.PayoutRequest, error) {
	s.lastID = id
	s.lastAction = "complete"
	s.lastPayoutDate = payoutDate
	return s.resolveResult, s.resolveErr
}

func (s *stubPayoutService) Fail(_ context.Context, id string, failureReason string) (*models.PayoutRequest, error) {
	s.lastID = id
	s.lastAction = "fail"
	s.lastReason = failureReason
	return s.resolveResult, s.resolveErr
}

func (s *stubPayoutService) Reject(_ context.Context, id string, rejectionReason string) (*models.PayoutRequest, error) {
	s.lastID = id
	s.lastAction = "reject"
	s.lastReason = rejectionReason
	return s.resolveResult, s.resolveErr
}

func (s *stubPayoutService) ListForCoach(_ context.Context, coachID int64) ([]models.PayoutRequest, error) {
	s.lastCoachID = coachID
	return s.listResult, s.listErr
}

func newPayoutApp(service payoutWorkflowService, role, userID string) *fiber.App {
	handler := &PayoutHandler{service: service}

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("role", role)
		c.Locals("user_id", userID)
		return c.Next()
	})
	app.Get("/api/v1/billing/payouts/pending-earnings", handler.PendingEarnings)
	app.Post("/api/v1/billing/payouts/request", handler.Submit)
	app.Get("/api/v1/billing/payouts/my-requests", handler.MyRequests)
	app.Patch("/api/v1/billing/payouts/:id", handler.Resolve)
	return app
}

func TestPendingEarningsReturnsTotals(t *testing.T) {
	service := &stubPayoutService{
		earningsResult: models.PendingEarnings{TotalMinor: 15000, PaymentCount: 3},
	}
	app := newPayoutApp(service, "coach", "7")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/billing/payouts/pending-earnings", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if service.lastCoachID != 7 {
		t.Fatalf("expected coach 7, got %d", service.lastCoachID)
	}

	var body struct {
		TotalEarnings int64 `json:"totalEarnings"`
		PaymentCount  int   `json:"paymentCount"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if body.TotalEarnings != 15000 || body.PaymentCount != 3 {
		t.Fatalf("unexpected payload: %+v", body)
	}
}

func TestPendingEarningsForbiddenForClient(t *testing.T) {
	service := &stubPayoutService{}
	app := newPayoutApp(service, "client", "42")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/billing/payouts/pending-earnings", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
}

func TestSubmitPayoutForwardsAmountAndMethod(t *testing.T) {
	service := &stubPayoutService{
		submitResult: &models.PayoutRequest{ID: "po-1", Status: models.PayoutStatusPending},
	}
	app := newPayoutApp(service, "coach", "7")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/billing/payouts/request", strings.NewReader(`{
		"amount_cents": 5000,
		"payout_method": "paypal"
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
	if service.lastSubmitInput.CoachID != 7 {
		t.Fatalf("expected coach 7, got %d", service.lastSubmitInput.CoachID)
	}
	if service.lastSubmitInput.AmountMinor == nil || *service.lastSubmitInput.AmountMinor != 5000 {
		t.Fatalf("expected amount 5000, got %v", service.lastSubmitInput.AmountMinor)
	}
	if service.lastSubmitInput.PayoutMethod != "paypal" {
		t.Fatalf("expected paypal method, got %q", service.lastSubmitInput.PayoutMethod)
	}
}

func TestSubmitPayoutOmittedAmountStaysNil(t *testing.T) {
	service := &stubPayoutService{
		submitResult: &models.PayoutRequest{ID: "po-2", Status: models.PayoutStatusPending},
	}
	app := newPayoutApp(service, "coach", "7")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/billing/payouts/request", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	if service.lastSubmitInput.AmountMinor != nil {
		t.Fatalf("expected nil amount for full withdrawal, got %d", *service.lastSubmitInput.AmountMinor)
	}
}

func TestSubmitPayoutExceedingEarningsReturnsPayload(t *testing.T) {
	service := &stubPayoutService{
		submitErr: &services.AmountExceedsAvailableError{RequestedMinor: 20000, AvailableMinor: 15000},
	}
	app := newPayoutApp(service, "coach", "7")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/billing/payouts/request", strings.NewReader(`{"amount_cents": 20000}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}

	var body struct {
		AvailableMinor int64 `json:"available_minor"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if body.AvailableMinor != 15000 {
		t.Fatalf("expected available 15000, got %d", body.AvailableMinor)
	}
}

func TestResolvePayoutDispatchesActions(t *testing.T) {
	service := &stubPayoutService{
		resolveResult: &models.PayoutRequest{ID: "po-3", Status: models.PayoutStatusProcessing},
	}
	app := newPayoutApp(service, "staff", "3")

	req := httptest.NewRequest(http.MethodPatch, "/api/v1/billing/payouts/po-3", strings.NewReader(`{"action":"mark_processing"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("mark_processing: expected 200, got %d", resp.StatusCode)
	}
	if service.lastAction != "mark_processing" || service.lastID != "po-3" {
		t.Fatalf("mark_processing not forwarded: action=%q id=%q", service.lastAction, service.lastID)
	}

	req = httptest.NewRequest(http.MethodPatch, "/api/v1/billing/payouts/po-3", strings.NewReader(`{"action":"complete","payout_date":"2026-04-01T00:00:00Z"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("complete: expected 200, got %d", resp.StatusCode)
	}
	want := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	if !service.lastPayoutDate.Equal(want) {
		t.Fatalf("expected payout date %v, got %v", want, service.lastPayoutDate)
	}

	req = httptest.NewRequest(http.MethodPatch, "/api/v1/billing/payouts/po-3", strings.NewReader(`{"action":"fail","reason":"bank transfer bounced"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("fail: expected 200, got %d", resp.StatusCode)
	}
	if service.lastReason != "bank transfer bounced" {
		t.Fatalf("expected forwarded failure reason, got %q", service.lastReason)
	}

	req = httptest.NewRequest(http.MethodPatch, "/api/v1/billing/payouts/po-3", strings.NewReader(`{"action":"reject","reason":"coach account flagged"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("reject: expected 200, got %d", resp.StatusCode)
	}
	if service.lastAction != "reject" {
		t.Fatalf("expected reject action, got %q", service.lastAction)
	}
}

func TestResolvePayoutRejectsBadPayoutDate(t *testing.T) {
	service := &stubPayoutService{}
	app := newPayoutApp(service, "staff", "3")

	req := httptest.NewRequest(http.MethodPatch, "/api/v1/billing/payouts/po-4", strings.NewReader(`{"action":"complete","payout_date":"tomorrow"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestResolvePayoutInvalidTransitionReturnsUnprocessable(t *testing.T) {
	service := &stubPayoutService{resolveErr: services.ErrInvalidTransition}
	app := newPayoutApp(service, "staff", "3")

	req := httptest.NewRequest(http.MethodPatch, "/api/v1/billing/payouts/po-5", strings.NewReader(`{"action":"reject","reason":"nope"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
}

func TestResolvePayoutForbiddenForCoach(t *testing.T) {
	service := &stubPayoutService{}
	app := newPayoutApp(service, "coach", "7")

	req := httptest.NewRequest(http.MethodPatch, "/api/v1/billing/payouts/po-6", strings.NewReader(`{"action":"complete"}`))
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

func TestMyRequestsReturnsCoachPayouts(t *testing.T) {
	service := &stubPayoutService{
		listResult: []models.PayoutRequest{
			{ID: "po-7", Status: models.PayoutStatusCompleted},
			{ID: "po-8", Status: models.PayoutStatusPending},
		},
	}
	app := newPayoutApp(service, "coach", "7")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/billing/payouts/my-requests", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if service.lastCoachID != 7 {
		t.Fatalf("expected coach 7, got %d", service.lastCoachID)
	}

	var body struct {
		PayoutRequests []models.PayoutRequest `json:"payout_requests"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(body.PayoutRequests) != 2 {
		t.Fatalf("expected 2 payout requests, got %d", len(body.PayoutRequests))
	}
}
