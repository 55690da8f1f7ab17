package recon

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adityaks/nftpay/internal/domain"
)

func TestParseSignal_AmountPhrasings(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "inr with thousands separator",
			body: "Your a/c XX1234 has been credited with INR 2,500.00 on 26-Aug-26. UPI Ref No 123456789012.",
			want: "2500.00",
		},
		{
			name: "rs with dot",
			body: "Rs. 2500 received via UPI from buyer@okicici.",
			want: "2500",
		},
		{
			name: "rs without dot",
			body: "Credit alert: Rs 999.50 UPI Txn ID: AXI123ABC",
			want: "999.50",
		},
		{
			name: "rupee symbol",
			body: "₹2500.00 credited to your account via UPI.",
			want: "2500.00",
		},
		{
			name: "trailing currency",
			body: "You have received 2500.00 INR via UPI. UTR 223344556677.",
			want: "2500.00",
		},
		{
			name: "single fraction digit",
			body: "INR 120.5 credited via UPI.",
			want: "120.5",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig, err := ParseSignal(domain.RawSignal{ID: "m1", Body: tt.body})
			require.NoError(t, err)
			assert.True(t, sig.Amount.Equal(inr(tt.want)),
				"amount = %s, want %s", sig.Amount, tt.want)
			assert.Equal(t, domain.CurrencyINR, sig.Currency)
		})
	}
}

func TestParseSignal_Reference(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "upi ref no",
			body: "INR 2,500.00 credited. UPI Ref No 123456789012 for order abc.",
			want: "123456789012",
		},
		{
			name: "ref no with colon",
			body: "Rs. 100 received. Ref No: ABC-123",
			want: "ABC-123",
		},
		{
			name: "txn id",
			body: "₹50.00 credited. UPI Txn ID #XYZ987",
			want: "XYZ987",
		},
		{
			name: "utr",
			body: "2500 INR credited. UTR 556677889900",
			want: "556677889900",
		},
		{
			name: "no reference at all",
			body: "INR 42.00 credited via UPI.",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig, err := ParseSignal(domain.RawSignal{ID: "m2", Body: tt.body})
			require.NoError(t, err)
			assert.Equal(t, tt.want, sig.Reference)
		})
	}
}

func TestParseSignal_NoAmountFails(t *testing.T) {
	bodies := []string{
		"Your monthly account statement is now available.",
		"OTP for your login is 123456. Do not share it.",
		"",
	}
	for _, body := range bodies {
		_, err := ParseSignal(domain.RawSignal{ID: "m3", Body: body})
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrParseFailure)
	}
}

func TestParseSignal_CarriesMetadata(t *testing.T) {
	received := time.Date(2026, 8, 26, 10, 30, 0, 0, time.UTC)
	sig, err := ParseSignal(domain.RawSignal{
		ID:         "imap-42",
		ReceivedAt: received,
		Body:       "INR 2,500.00 credited via UPI. UPI Ref No 123456789012.",
	})
	require.NoError(t, err)
	assert.Equal(t, "imap-42", sig.SourceID)
	assert.Equal(t, received, sig.ObservedAt)
	assert.Contains(t, sig.Note, "credited via UPI")
}

func TestParseSignal_NoteTruncated(t *testing.T) {
	long := "INR 10.00 credited. "
	for len(long) <= noteLimit {
		long += "padding padding padding "
	}
	sig, err := ParseSignal(domain.RawSignal{ID: "m4", Body: long})
	require.NoError(t, err)
	assert.Len(t, sig.Note, noteLimit)
}
