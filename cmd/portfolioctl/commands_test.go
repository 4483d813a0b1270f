package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"portfolio_aggregator/internal/domain/entity"
)

const rawPositions = `[
  {"id": "eth-wallet", "protocolId": "wallet", "network": "ethereum", "positionType": "wallet", "valueUsd": 10,
   "tokens": []},
  {"id": "base-wallet", "protocolId": "wallet", "network": "base", "positionType": "wallet", "valueUsd": 5,
   "tokens": []}
]`

func TestAggregateCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "raw.json")
	if err := os.WriteFile(path, []byte(rawPositions), 0o600); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"aggregate", path, "--wallet", "0xABC"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	var structure entity.PortfolioStructure
	if err := json.Unmarshal(out.Bytes(), &structure); err != nil {
		t.Fatalf("output is not a structure: %v\n%s", err, out.String())
	}
	if structure.Wallet != "0xabc" || len(structure.Networks) != 2 {
		t.Fatalf("unexpected structure %+v", structure)
	}
	if len(structure.ByNetwork["ethereum"]) != 1 || len(structure.ByNetwork["base"]) != 1 {
		t.Fatalf("positions should be indexed by network, got %v", structure.ByNetwork)
	}
}

func TestAggregateCommandRequiresFile(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"aggregate", filepath.Join(t.TempDir(), "missing.json")})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

func TestSplitNetworks(t *testing.T) {
	got := splitNetworks(" ethereum, ,base,")
	if len(got) != 2 || got[0] != "ethereum" || got[1] != "base" {
		t.Fatalf("unexpected %v", got)
	}
	if splitNetworks("") != nil {
		t.Fatal("empty input should yield nil")
	}
}
