package entity

import (
	"errors"
	"testing"
)

func TestParsePositionType(t *testing.T) {
	cases := []struct {
		in   string
		want PositionType
	}{
		{"deposit", PositionTypeDeposit},
		{" Staked ", PositionTypeStaked},
		{"staking", PositionTypeStaked},
		{"LOAN", PositionTypeLoan},
		{"rewards", PositionTypeReward},
		{"airdrop", PositionTypeUnknown},
		{"", PositionTypeUnknown},
	}
	for _, c := range cases {
		if got := ParsePositionType(c.in); got != c.want {
			t.Errorf("ParsePositionType(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestParseProtocolModule(t *testing.T) {
	if got := ParseProtocolModule(""); got != ModuleNone {
		t.Fatalf("empty module should stay absent, got %q", got)
	}
	if got := ParseProtocolModule("Lending"); got != ModuleLending {
		t.Fatalf("expected lending, got %q", got)
	}
	if got := ParseProtocolModule("perps"); got != ModuleUnknown {
		t.Fatalf("expected unknown, got %q", got)
	}
}

func TestParsePositionFilter(t *testing.T) {
	if f, err := ParsePositionFilter(""); err != nil || f != FilterNoFilter {
		t.Fatalf("empty filter: got %q, %v", f, err)
	}
	if f, err := ParsePositionFilter("only_complex"); err != nil || f != FilterOnlyComplex {
		t.Fatalf("only_complex: got %q, %v", f, err)
	}
	if _, err := ParsePositionFilter("everything"); !errors.Is(err, ErrInvalidFilter) {
		t.Fatalf("expected ErrInvalidFilter, got %v", err)
	}
}

func TestNewTokenReferenceNormalizes(t *testing.T) {
	a := NewTokenReference("Ethereum", "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	b := NewTokenReference("ethereum", "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48")
	if a != b {
		t.Fatalf("checksum and lower-case forms should be equal: %v vs %v", a, b)
	}
	for _, native := range []string{"", "native", ZeroAddress, "0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE"} {
		if ref := NewTokenReference("base", native); !ref.IsNative() {
			t.Errorf("%q should normalise to native, got %q", native, ref.Address)
		}
	}
	sol := NewTokenReference("solana", "So11111111111111111111111111111111111111112")
	if sol.Address != "So11111111111111111111111111111111111111112" {
		t.Fatalf("non-EVM address must be kept as given, got %q", sol.Address)
	}
}

func TestParseTokenIDRoundTrip(t *testing.T) {
	ref := NewTokenReference("arbitrum", "0x82aF49447D8a07e3bd95BD0d56f35241523fBab1")
	got, err := ParseTokenID(ref.ID())
	if err != nil {
		t.Fatalf("ParseTokenID: %v", err)
	}
	if got != ref {
		t.Fatalf("round trip mismatch: %v vs %v", got, ref)
	}
	if _, err := ParseTokenID("no-separator"); err == nil {
		t.Fatal("expected error for malformed id")
	}
}

func TestProviderErrorIs(t *testing.T) {
	err := &ProviderError{Provider: "positions", Kind: KindTransient, StatusCode: 502}
	if !errors.Is(err, ErrProviderUnavailable) {
		t.Fatal("transient errors should match ErrProviderUnavailable")
	}
	if errors.Is(err, ErrAuthentication) {
		t.Fatal("transient errors must not match ErrAuthentication")
	}
	budget := &BudgetExceededError{Budget: "minute", Limit: 10}
	if !errors.Is(budget, ErrRateLimited) || !errors.Is(budget, ErrBudgetExceeded) {
		t.Fatal("budget errors should match both rate-limit sentinels")
	}
}
