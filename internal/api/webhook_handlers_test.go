package api

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/waspershola/hospitech-nexus-sub003/internal/app"
	"github.com/waspershola/hospitech-nexus-sub003/internal/config"
	"github.com/waspershola/hospitech-nexus-sub003/internal/domain"
	"github.com/waspershola/hospitech-nexus-sub003/internal/store"
)

type webhookRepoStub struct {
	store.Repository

	finalized      bool
	finalizeParams store.FinalizePaymentParams
}

func (s *webhookRepoStub) FinalizePayment(ctx context.Context, params store.FinalizePaymentParams) (*store.FinalizePaymentResult, error) {
	s.finalized = true
	s.finalizeParams = params
	payment := &domain.PlatformPayment{ID: uuid.New(), Status: domain.PaymentSuccessful}
	return &store.FinalizePaymentResult{Payment: payment, Claimed: true}, nil
}

func webhookHandler(repo store.Repository, cfg config.Config) *Handler {
	service := app.NewService(repo, nil, nil, app.NoopLocker{})
	return NewHandler(service, cfg)
}

func paystackSign(secret string, body []byte) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestProviderWebhook_ValidPaystackSignatureSettles(t *testing.T) {
	repo := &webhookRepoStub{}
	handler := webhookHandler(repo, config.Config{PaystackSecretKey: "sk_test"})

	body := []byte(`{"event":"charge.success","data":{"reference":"PF-1","amount":1000,"status":"success"}}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/payments", bytes.NewReader(body))
	req.Header.Set("x-paystack-signature", paystackSign("sk_test", body))
	rec := httptest.NewRecorder()

	handler.handleProviderWebhook(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !repo.finalized {
		t.Fatal("expected settlement to be applied")
	}
	if repo.finalizeParams.DegradedTrust {
		t.Fatal("expected a verified signature not to be flagged as degraded trust")
	}
}

func TestProviderWebhook_BadSignatureRejected(t *testing.T) {
	repo := &webhookRepoStub{}
	handler := webhookHandler(repo, config.Config{PaystackSecretKey: "sk_test"})

	body := []byte(`{"event":"charge.success","data":{"reference":"PF-1","amount":1000,"status":"success"}}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/payments", bytes.NewReader(body))
	req.Header.Set("x-paystack-signature", "deadbeef")
	rec := httptest.NewRecorder()

	handler.handleProviderWebhook(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if repo.finalized {
		t.Fatal("expected no settlement on a bad signature")
	}
}

func TestProviderWebhook_NonTerminalEventAcknowledged(t *testing.T) {
	repo := &webhookRepoStub{}
	handler := webhookHandler(repo, config.Config{PaystackSecretKey: "sk_test"})

	body := []byte(`{"event":"subscription.create","data":{"reference":"SUB-1","amount":1000}}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/payments", bytes.NewReader(body))
	req.Header.Set("x-paystack-signature", paystackSign("sk_test", body))
	rec := httptest.NewRecorder()

	handler.handleProviderWebhook(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected acknowledgement, got %d", rec.Code)
	}
	if repo.finalized {
		t.Fatal("expected no settlement for a non-terminal event")
	}
}

func TestProviderWebhook_UnrecognizedPayloadRejected(t *testing.T) {
	handler := webhookHandler(&webhookRepoStub{}, config.Config{})

	req := httptest.NewRequest(http.MethodPost, "/webhooks/payments", bytes.NewReader([]byte(`{"hello":"world"}`)))
	rec := httptest.NewRecorder()

	handler.handleProviderWebhook(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestProviderWebhook_MissingSecretDegradedTrust(t *testing.T) {
	repo := &webhookRepoStub{}
	handler := webhookHandler(repo, config.Config{})

	body := []byte(`{"event":"charge.success","data":{"reference":"PF-1","amount":1000,"status":"success"}}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/payments", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	handler.handleProviderWebhook(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected degraded-trust acceptance, got %d", rec.Code)
	}
	if !repo.finalized {
		t.Fatal("expected settlement to proceed without a configured secret")
	}
	if !repo.finalizeParams.DegradedTrust {
		t.Fatal("expected the unverified acceptance to be flagged for the audit trail")
	}
}
