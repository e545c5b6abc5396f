package units

import (
	"errors"
	"math/big"
	"math/rand"
	"strings"
	"testing"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"0", "0"},
		{"1", "1000000000000000000"},
		{"0.0001", "100000000000000"},
		{" 2.5 ", "2500000000000000000"},
		{".5", "500000000000000000"},
		{"7.", "7000000000000000000"},
		{"0.000000000000000001", "1"},
		{"0.0000000000000000019", "1"}, // truncated past 18 digits
		{"100", "100000000000000000000"},
	}
	for _, c := range cases {
		got, err := ParseAmount(c.in)
		if err != nil {
			t.Fatalf("ParseAmount(%q): %v", c.in, err)
		}
		if got.String() != c.want {
			t.Fatalf("ParseAmount(%q) = %s, want %s", c.in, got, c.want)
		}
	}
}

func TestParseAmountRejectsMalformed(t *testing.T) {
	for _, in := range []string{"", ".", "-1", "+1", "1e18", "abc", "1.2.3", "1,5", "0x10"} {
		if _, err := ParseAmount(in); !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("ParseAmount(%q) error = %v, want ErrInvalidAmount", in, err)
		}
	}
}

func TestParseAmountFloat(t *testing.T) {
	got, err := ParseAmountFloat(0.25)
	if err != nil {
		t.Fatal(err)
	}
	if got.String() != "250000000000000000" {
		t.Fatalf("got %s", got)
	}

	if _, err := ParseAmountFloat(-1); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for negative, got %v", err)
	}
}

func TestFormatAmount(t *testing.T) {
	cases := map[string]string{
		"0":                     "0",
		"1":                     "0.000000000000000001",
		"100000000000000":       "0.0001",
		"1000000000000000000":   "1",
		"1500000000000000000":   "1.5",
		"123456789000000000000": "123.456789",
		"-500000000000000000":   "-0.5",
	}
	for in, want := range cases {
		v, _ := new(big.Int).SetString(in, 10)
		if got := FormatAmount(v); got != want {
			t.Fatalf("FormatAmount(%s) = %q, want %q", in, got, want)
		}
	}
	if FormatAmount(nil) != "0" {
		t.Fatal("nil should format as 0")
	}
}

func TestAmountRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 500; i++ {
		s := randomDecimal(rng)
		first, err := ParseAmount(s)
		if err != nil {
			t.Fatalf("ParseAmount(%q): %v", s, err)
		}
		again, err := ParseAmount(FormatAmount(first))
		if err != nil {
			t.Fatalf("re-parse of %q: %v", FormatAmount(first), err)
		}
		if first.Cmp(again) != 0 {
			t.Fatalf("round trip of %q: %s != %s", s, first, again)
		}
	}
}

func randomDecimal(rng *rand.Rand) string {
	var b strings.Builder
	for n := rng.Intn(25) + 1; n > 0; n-- {
		b.WriteByte(byte('0' + rng.Intn(10)))
	}
	if frac := rng.Intn(Decimals + 1); frac > 0 {
		b.WriteByte('.')
		for ; frac > 0; frac-- {
			b.WriteByte(byte('0' + rng.Intn(10)))
		}
	}
	return b.String()
}

func TestFitsUint256(t *testing.T) {
	max := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	if !FitsUint256(max) {
		t.Fatal("2^256-1 should fit")
	}
	if FitsUint256(new(big.Int).Add(max, big.NewInt(1))) {
		t.Fatal("2^256 should not fit")
	}
	if FitsUint256(big.NewInt(-1)) || FitsUint256(nil) {
		t.Fatal("negative and nil should not fit")
	}
}
