package slip

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// HTTPVerifier calls the external slip verification API.
//
// Request:  POST <url>  {"data": "<payload>"}  with Authorization: Bearer <key>
// Response: {"success": bool, "message": string, "data": {...}}
type HTTPVerifier struct {
	url    string
	apiKey string
	client *http.Client
	log    zerolog.Logger
}

// NewHTTPVerifier creates a verifier with its own client timeout.
func NewHTTPVerifier(url, apiKey string, timeout time.Duration, log zerolog.Logger) *HTTPVerifier {
	return &HTTPVerifier{
		url:    url,
		apiKey: apiKey,
		client: &http.Client{Timeout: timeout},
		log:    log.With().Str("component", "slip").Logger(),
	}
}

type verifyResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    struct {
		TransRef        string          `json:"trans_ref"`
		Amount          decimal.Decimal `json:"amount"`
		SenderName      string          `json:"sender_name"`
		ReceiverAccount string          `json:"receiver_account"`
		ReceiverName    string          `json:"receiver_name"`
		TransDate       *time.Time      `json:"trans_date"`
	} `json:"data"`
}

// Verify submits the payload. 4xx answers and explicit rejections map to
// ErrSlipInvalid; transport failures and 5xx map to ErrVerifierUnavailable.
func (v *HTTPVerifier) Verify(ctx context.Context, payload string) (*Verification, error) {
	if v.url == "" {
		return nil, fmt.Errorf("%w: no verification endpoint configured", ErrVerifierUnavailable)
	}

	body, err := json.Marshal(map[string]string{"data": payload})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrVerifierUnavailable, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrVerifierUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if v.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+v.apiKey)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		v.log.Warn().Err(err).Msg("slip provider request failed")
		return nil, fmt.Errorf("%w: %v", ErrVerifierUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		io.Copy(io.Discard, resp.Body)
		v.log.Warn().Int("status", resp.StatusCode).Msg("slip provider error")
		return nil, fmt.Errorf("%w: provider status %d", ErrVerifierUnavailable, resp.StatusCode)
	}

	var out verifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("%w: provider status %d", ErrSlipInvalid, resp.StatusCode)
		}
		return nil, fmt.Errorf("%w: decode response: %v", ErrVerifierUnavailable, err)
	}

	if resp.StatusCode >= 400 || !out.Success {
		msg := out.Message
		if msg == "" {
			msg = fmt.Sprintf("provider status %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("%w: %s", ErrSlipInvalid, msg)
	}
	if out.Data.TransRef == "" || !out.Data.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: missing reference or amount", ErrSlipInvalid)
	}

	return &Verification{
		TransRef:        out.Data.TransRef,
		AmountBaht:      out.Data.Amount,
		SenderName:      out.Data.SenderName,
		ReceiverAccount: out.Data.ReceiverAccount,
		ReceiverName:    out.Data.ReceiverName,
		TransferredAt:   out.Data.TransDate,
	}, nil
}
