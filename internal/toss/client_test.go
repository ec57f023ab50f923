package toss

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfirmPayment(t *testing.T) {
	var gotReq ConfirmRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/payments/confirm", r.URL.Path)

		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "sk_test_secret", user)
		assert.Equal(t, "", pass)

		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(Payment{
			PaymentKey:  gotReq.PaymentKey,
			OrderID:     gotReq.OrderID,
			Status:      "DONE",
			TotalAmount: gotReq.Amount,
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "sk_test_secret")

	payment, err := client.ConfirmPayment(context.Background(), "registration-abc", 470000, "pk-123")
	require.NoError(t, err)

	assert.Equal(t, "registration-abc", gotReq.OrderID)
	assert.Equal(t, int64(470000), gotReq.Amount)
	assert.Equal(t, "pk-123", gotReq.PaymentKey)

	assert.Equal(t, "DONE", payment.Status)
	assert.Equal(t, int64(470000), payment.TotalAmount)
}

func TestConfirmPaymentRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":"ALREADY_PROCESSED_PAYMENT","message":"이미 처리된 결제 입니다."}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "sk_test_secret")

	_, err := client.ConfirmPayment(context.Background(), "registration-abc", 470000, "pk-123")
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "ALREADY_PROCESSED_PAYMENT", apiErr.Code)
	assert.Equal(t, "이미 처리된 결제 입니다.", apiErr.Message)
}

func TestConfirmPaymentNonJSONError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("bad gateway"))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "sk_test_secret")

	_, err := client.ConfirmPayment(context.Background(), "registration-abc", 470000, "pk-123")
	require.Error(t, err)

	var apiErr *APIError
	assert.False(t, errors.As(err, &apiErr))
	assert.Contains(t, err.Error(), "502")
}
