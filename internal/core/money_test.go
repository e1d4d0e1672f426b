package core

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"12.34", "12.34", true},
		{"12,34", "12.34", true},
		{"0.01", "0.01", true},
		{" 500 ", "500", true},
		{"999.99", "999.99", true},
		{"", "", false},
		{"abc", "", false},
		{"12.3.4", "", false},
		{"-5", "", false},
		{"+5", "", false},
		{"0", "", false},
		{"0.00", "", false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil {
				t.Errorf("ParseAmount(%q) unexpected error: %v", tc.in, err)
				continue
			}
			want := decimal.RequireFromString(tc.want)
			if !got.Equal(want) {
				t.Errorf("ParseAmount(%q) = %s, want %s", tc.in, got, want)
			}
		} else if err == nil {
			t.Errorf("ParseAmount(%q) expected error, got %s", tc.in, got)
		}
	}
}

func TestParseAmountKeepsExactPrecision(t *testing.T) {
	a, err := ParseAmount("0.02")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := ParseAmount("999.99")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sum := a.Add(b)
	if !sum.Equal(decimal.RequireFromString("1000.01")) {
		t.Fatalf("0.02 + 999.99 = %s, want 1000.01", sum)
	}
}
