package cashbalance

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/ptm-finance-backend/api/middleware"
	internalcashbalance "github.com/angelmondragon/ptm-finance-backend/internal/cashbalance"
	pkgerrors "github.com/angelmondragon/ptm-finance-backend/pkg/errors"
	"github.com/angelmondragon/ptm-finance-backend/pkg/logger"
	"github.com/angelmondragon/ptm-finance-backend/pkg/pagination"
)

type stubService struct {
	balance decimal.Decimal
	err     error

	gotActor   int64
	gotInput   internalcashbalance.UpdateBalanceInput
	gotToken   string
	gotParams  pagination.Params
	history    internalcashbalance.HistoryResult
	updateHits int
}

func (s *stubService) GetBalance(context.Context) (decimal.Decimal, error) {
	return s.balance, s.err
}

func (s *stubService) UpdateBalance(_ context.Context, actorID int64, input internalcashbalance.UpdateBalanceInput) (decimal.Decimal, error) {
	s.updateHits++
	s.gotActor = actorID
	s.gotInput = input
	if s.err != nil {
		return decimal.Zero, s.err
	}
	return s.balance.Add(input.Value), nil
}

func (s *stubService) GetHistory(_ context.Context, token string, params pagination.Params) (internalcashbalance.HistoryResult, error) {
	s.gotToken = token
	s.gotParams = params
	return s.history, s.err
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return env
}

func withActor(req *http.Request, actorID int64) *http.Request {
	return req.WithContext(middleware.WithActor(req.Context(), actorID, "tok-"+req.Method))
}

func TestGetBalance(t *testing.T) {
	handler := Get(&stubService{balance: decimal.RequireFromString("1250.50")}, logger.Nop())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/finance/cash-balance", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	env := decode(t, rec)
	if env.Message != "Cash balance retrieved successfully" {
		t.Fatalf("unexpected message %q", env.Message)
	}
	var payload balancePayload
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if !payload.Balance.Equal(decimal.RequireFromString("1250.50")) {
		t.Fatalf("expected 1250.50 got %s", payload.Balance)
	}
}

func TestGetBalanceServiceFailure(t *testing.T) {
	handler := Get(&stubService{err: errors.New("db down")}, logger.Nop())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/finance/cash-balance", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", rec.Code)
	}
}

func TestUpdateBalanceValidation(t *testing.T) {
	cases := []struct {
		name    string
		body    string
		message string
	}{
		{name: "missing status", body: `{"value":10,"description":"x"}`, message: "Status is required!"},
		{name: "missing value", body: `{"status":true,"description":"x"}`, message: "Value is required!"},
		{name: "zero value", body: `{"status":true,"value":0,"description":"x"}`, message: "Value must be greater than 0!"},
		{name: "negative value", body: `{"status":false,"value":-5,"description":"x"}`, message: "Value must be greater than 0!"},
		{name: "missing description", body: `{"status":true,"value":10}`, message: "Description is required!"},
		{name: "blank description", body: `{"status":true,"value":10,"description":"   "}`, message: "Description is required!"},
		{name: "long description", body: `{"status":true,"value":10,"description":"` + strings.Repeat("é", 256) + `"}`, message: "Description must not be longer than 255 characters!"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &stubService{}
			handler := Update(svc, logger.Nop())

			req := httptest.NewRequest(http.MethodPut, "/api/finance/cash-balance", strings.NewReader(tc.body))
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, withActor(req, 9))

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400 got %d", rec.Code)
			}
			env := decode(t, rec)
			if env.Message != tc.message {
				t.Fatalf("expected %q got %q", tc.message, env.Message)
			}
			if svc.updateHits != 0 {
				t.Fatalf("service must not be called")
			}
		})
	}
}

func TestUpdateBalanceSuccess(t *testing.T) {
	svc := &stubService{balance: decimal.NewFromInt(100)}
	handler := Update(svc, logger.Nop())

	req := httptest.NewRequest(http.MethodPut, "/api/finance/cash-balance", strings.NewReader(`{"status":true,"value":"25.75","description":"  Donation  "}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, withActor(req, 9))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%s", rec.Code, rec.Body.String())
	}
	if svc.gotActor != 9 {
		t.Fatalf("expected actor 9 got %d", svc.gotActor)
	}
	if svc.gotInput.Description != "Donation" || !svc.gotInput.Status {
		t.Fatalf("unexpected input %+v", svc.gotInput)
	}
	env := decode(t, rec)
	if env.Message != "Cash balance updated successfully" {
		t.Fatalf("unexpected message %q", env.Message)
	}
}

func TestUpdateBalanceRequiresActor(t *testing.T) {
	handler := Update(&stubService{}, logger.Nop())

	req := httptest.NewRequest(http.MethodPut, "/api/finance/cash-balance", strings.NewReader(`{"status":true,"value":5,"description":"x"}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
}

func TestUpdateBalanceKeepsMultiByteDescription(t *testing.T) {
	svc := &stubService{balance: decimal.NewFromInt(100)}
	handler := Update(svc, logger.Nop())

	description := strings.Repeat("é", 255)
	req := httptest.NewRequest(http.MethodPut, "/api/finance/cash-balance", strings.NewReader(`{"status":true,"value":5,"description":"`+description+`"}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, withActor(req, 9))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%s", rec.Code, rec.Body.String())
	}
	if svc.gotInput.Description != description {
		t.Fatalf("description must reach the service unchanged, got %d bytes", len(svc.gotInput.Description))
	}
}

func TestUpdateBalanceServiceValidationPassesThrough(t *testing.T) {
	svc := &stubService{err: pkgerrors.New(pkgerrors.CodeValidation, "Value must have at most 2 decimal places!")}
	handler := Update(svc, logger.Nop())

	req := httptest.NewRequest(http.MethodPut, "/api/finance/cash-balance", strings.NewReader(`{"status":false,"value":5,"description":"x"}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, withActor(req, 1))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
	if env := decode(t, rec); env.Message != "Value must have at most 2 decimal places!" {
		t.Fatalf("unexpected message %q", env.Message)
	}
}

func TestHistoryPassesCursorLimitAndToken(t *testing.T) {
	next := int64(41)
	svc := &stubService{history: internalcashbalance.HistoryResult{Items: []internalcashbalance.HistoryItem{}, NextCursor: &next, HasMore: true, Limit: 5}}
	handler := History(svc, logger.Nop())

	req := httptest.NewRequest(http.MethodGet, "/api/finance/cash-balance/history?cursor=50&limit=5", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, withActor(req, 1))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if svc.gotParams.Limit != 5 || svc.gotParams.Cursor == nil || *svc.gotParams.Cursor != 50 {
		t.Fatalf("unexpected params %+v", svc.gotParams)
	}
	if svc.gotToken != "tok-GET" {
		t.Fatalf("expected token forwarded, got %q", svc.gotToken)
	}
	env := decode(t, rec)
	if env.Message != "History balance retrieved successfully" {
		t.Fatalf("unexpected message %q", env.Message)
	}
	var result internalcashbalance.HistoryResult
	if err := json.Unmarshal(env.Data, &result); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if !result.HasMore || result.NextCursor == nil || *result.NextCursor != 41 {
		t.Fatalf("unexpected meta %+v", result)
	}
}

func TestHistoryRejectsBadLimit(t *testing.T) {
	svc := &stubService{}
	handler := History(svc, logger.Nop())

	req := httptest.NewRequest(http.MethodGet, "/api/finance/cash-balance/history?limit=500", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
	if env := decode(t, rec); env.Message != "Limit must not be greater than 100!" {
		t.Fatalf("unexpected message %q", env.Message)
	}
}
