package money

import (
	"testing"
)

var (
	NGN = MustGetAsset("NGN")
	USD = MustGetAsset("USD")
)

func TestFromMajor(t *testing.T) {
	tests := []struct {
		name       string
		asset      Asset
		major      string
		wantAtomic int64
		wantErr    bool
	}{
		{"NGN 10000", NGN, "10000", 1000000, false},
		{"NGN 10000.00", NGN, "10000.00", 1000000, false},
		{"NGN 0.01", NGN, "0.01", 1, false},
		{"USD 10.50", USD, "10.50", 1050, false},
		{"USD rounding up", USD, "10.555", 1056, false},
		{"USD rounding down", USD, "10.554", 1055, false},
		{"USD negative", USD, "-5.25", -525, false},

		{"invalid format", USD, "10.50.30", 0, true},
		{"invalid number", USD, "abc", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FromMajor(tt.asset, tt.major)
			if (err != nil) != tt.wantErr {
				t.Errorf("FromMajor() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && got.Atomic != tt.wantAtomic {
				t.Errorf("FromMajor() atomic = %v, want %v", got.Atomic, tt.wantAtomic)
			}
		})
	}
}

func TestFromFloat(t *testing.T) {
	tests := []struct {
		name       string
		amount     float64
		wantAtomic int64
	}{
		{"whole number", 10000, 1000000},
		{"half major unit", 10000.5, 1000050},
		{"single kobo", 0.01, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FromFloat(NGN, tt.amount)
			if err != nil {
				t.Fatalf("FromFloat() error = %v", err)
			}
			if got.Atomic != tt.wantAtomic {
				t.Errorf("FromFloat() atomic = %v, want %v", got.Atomic, tt.wantAtomic)
			}
		})
	}
}

func TestToMajor(t *testing.T) {
	tests := []struct {
		name  string
		money Money
		want  string
	}{
		{"NGN 10000.00", Money{NGN, 1000000}, "10000.00"},
		{"USD 10.50", Money{USD, 1050}, "10.50"},
		{"USD 0.01", Money{USD, 1}, "0.01"},
		{"USD zero", Money{USD, 0}, "0.00"},
		{"USD negative", Money{USD, -525}, "-5.25"},
		{"USD negative below one", Money{USD, -25}, "-0.25"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.money.ToMajor(); got != tt.want {
				t.Errorf("ToMajor() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAddSub(t *testing.T) {
	a := New(NGN, 850000)
	b := New(NGN, 150000)

	sum, err := a.Add(b)
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if sum.Atomic != 1000000 {
		t.Errorf("Add() = %d, want 1000000", sum.Atomic)
	}

	diff, err := sum.Sub(b)
	if err != nil {
		t.Fatalf("Sub() error = %v", err)
	}
	if !diff.Equal(a) {
		t.Errorf("Sub() = %v, want %v", diff, a)
	}

	if _, err := a.Add(New(USD, 1)); err == nil {
		t.Error("Add() with mismatched assets should fail")
	}
}

func TestMulBasisPoints(t *testing.T) {
	tests := []struct {
		name   string
		atomic int64
		bps    int64
		want   int64
	}{
		{"15% of 10000.00", 1000000, 1500, 150000},
		{"15% of 99.99", 9999, 1500, 1500},
		{"zero rate", 1000000, 0, 0},
		{"rounds half up", 10, 2500, 3}, // 2.5 -> 3
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := New(NGN, tt.atomic).MulBasisPoints(tt.bps)
			if err != nil {
				t.Fatalf("MulBasisPoints() error = %v", err)
			}
			if got.Atomic != tt.want {
				t.Errorf("MulBasisPoints() = %d, want %d", got.Atomic, tt.want)
			}
		})
	}
}

func TestGetAsset(t *testing.T) {
	if _, err := GetAsset("ngn"); err != nil {
		t.Errorf("GetAsset(ngn) should be case-insensitive: %v", err)
	}
	if _, err := GetAsset("DOGE"); err == nil {
		t.Error("GetAsset(DOGE) should fail")
	}
}
