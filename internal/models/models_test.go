package models

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestClassifyTransactionCode(t *testing.T) {
	tests := []struct {
		code string
		want TransactionType
	}{
		{"P", TxPurchase},
		{"S", TxSale},
		{"A", TxAward},
		{"D", TxDisposition},
		{"G", TxGift},
		{"M", TxExercise},
		{"X", TxExercise},
		{"F", TransactionType("F")},
		{"", TransactionType("")},
	}

	for _, tt := range tests {
		if got := ClassifyTransactionCode(tt.code); got != tt.want {
			t.Errorf("ClassifyTransactionCode(%q) = %q, want %q", tt.code, got, tt.want)
		}
	}
}

func TestComputeTotalValue(t *testing.T) {
	shares := decimal.NewFromInt(1000)
	price := decimal.NewFromFloat(12.345)

	got := ComputeTotalValue(shares, &price)
	if got == nil {
		t.Fatal("expected non-nil total")
	}
	if want := decimal.NewFromFloat(12345.00); !got.Equal(want) {
		t.Errorf("total = %s, want %s", got, want)
	}
}

func TestComputeTotalValueRoundsToCents(t *testing.T) {
	shares := decimal.NewFromInt(3)
	price := decimal.NewFromFloat(10.3333)

	got := ComputeTotalValue(shares, &price)
	if want := decimal.NewFromFloat(31.00); got == nil || !got.Equal(want) {
		t.Errorf("total = %v, want %s", got, want)
	}
}

func TestComputeTotalValueNilPrice(t *testing.T) {
	if got := ComputeTotalValue(decimal.NewFromInt(500), nil); got != nil {
		t.Errorf("expected nil total for nil price, got %s", got)
	}
}
