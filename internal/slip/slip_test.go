package slip

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestMatchAccount(t *testing.T) {
	cases := []struct {
		masked, account string
		want            bool
	}{
		{"123-4-56789-0", "1234567890", true},
		{"xxx-x-x6789-x", "123-4-56789-0", true},
		{"xxx-x-x6788-x", "123-4-56789-0", false},
		{"XXX-X-X6789-X", "1234567890", true},
		{"x-6789", "123-4-56789", true},
		{"x-6780", "123-4-56789", false},
		{"xxx-x-xxxxx-x", "1234567890", false},
		{"xxxxxxxxx0", "1234567890", false},
		{"xxxxxxx890", "1234567890", false},
		{"xxx-x-x67xx-0", "123-4-56789-0", false},
		{"xxxxxx7890", "1234567890", true},
		{"", "1234567890", false},
		{"1234567890", "", false},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, MatchAccount(tc.masked, tc.account), "%q vs %q", tc.masked, tc.account)
	}
}

func newProvider(t *testing.T, status int, body interface{}) *HTTPVerifier {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "qr-payload", req["data"])

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return NewHTTPVerifier(srv.URL, "secret", 2*time.Second, zerolog.Nop())
}

func TestVerifySuccess(t *testing.T) {
	v := newProvider(t, http.StatusOK, map[string]interface{}{
		"success": true,
		"data": map[string]interface{}{
			"trans_ref":        "TX-001",
			"amount":           100.5,
			"sender_name":      "Somchai",
			"receiver_account": "xxx-x-x6789-x",
			"trans_date":       "2026-03-15T10:00:00+07:00",
		},
	})

	got, err := v.Verify(context.Background(), "qr-payload")
	require.NoError(t, err)
	require.Equal(t, "TX-001", got.TransRef)
	require.Equal(t, "100.5", got.AmountBaht.String())
	require.Equal(t, "xxx-x-x6789-x", got.ReceiverAccount)
	require.NotNil(t, got.TransferredAt)
}

func TestVerifyRejected(t *testing.T) {
	v := newProvider(t, http.StatusOK, map[string]interface{}{"success": false, "message": "slip not found"})
	_, err := v.Verify(context.Background(), "qr-payload")
	require.ErrorIs(t, err, ErrSlipInvalid)

	v = newProvider(t, http.StatusBadRequest, map[string]interface{}{"message": "bad qr"})
	_, err = v.Verify(context.Background(), "qr-payload")
	require.ErrorIs(t, err, ErrSlipInvalid)

	v = newProvider(t, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    map[string]interface{}{"trans_ref": "TX-002", "amount": 0},
	})
	_, err = v.Verify(context.Background(), "qr-payload")
	require.ErrorIs(t, err, ErrSlipInvalid)
}

func TestVerifyUnavailable(t *testing.T) {
	v := newProvider(t, http.StatusBadGateway, map[string]interface{}{"message": "upstream down"})
	_, err := v.Verify(context.Background(), "qr-payload")
	require.ErrorIs(t, err, ErrVerifierUnavailable)

	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close()
	v = NewHTTPVerifier(srv.URL, "secret", time.Second, zerolog.Nop())
	_, err = v.Verify(context.Background(), "qr-payload")
	require.ErrorIs(t, err, ErrVerifierUnavailable)

	v = NewHTTPVerifier("", "", time.Second, zerolog.Nop())
	_, err = v.Verify(context.Background(), "qr-payload")
	require.ErrorIs(t, err, ErrVerifierUnavailable)
}
