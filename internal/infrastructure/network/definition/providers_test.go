package networkdefinition

import (
	"testing"

	"portfolio_aggregator/internal/domain/entity"
	"portfolio_aggregator/internal/pkg/logger"
)

func TestLookupByIdentifierAndName(t *testing.T) {
	p, err := NewNetworkDefinitionProvider(logger.NewNop(), nil)
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"ethereum", "Ethereum", " ETHEREUM ", "Ethereum Mainnet"} {
		def, ok := p.GetNetworkDefinitionByName(name)
		if !ok || def.Identifier != "ethereum" {
			t.Fatalf("lookup %q: got %+v %v", name, def, ok)
		}
	}
	if _, ok := p.GetNetworkDefinitionByName("solana"); ok {
		t.Fatal("unknown networks must not resolve")
	}

	all := p.GetAllNetworkDefinitions()
	if len(all) != len(KnownDefinitions()) {
		t.Fatalf("expected %d networks, got %d", len(KnownDefinitions()), len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i-1].Identifier >= all[i].Identifier {
			t.Fatalf("definitions not ordered: %s before %s", all[i-1].Identifier, all[i].Identifier)
		}
	}
}

func TestCustomDefinitions(t *testing.T) {
	custom := []entity.NetworkDefinition{
		{Identifier: "Ethereum", Name: "Ethereum (archive)", PrimaryChainID: "ethereum", DEXScreenerChainID: "ethereum"},
		{Identifier: "sonic", PrimaryChainID: "sonic", DEXScreenerChainID: "sonic", ChainID: 146},
	}
	p, err := NewNetworkDefinitionProvider(logger.NewNop(), custom)
	if err != nil {
		t.Fatal(err)
	}
	eth, _ := p.GetNetworkDefinitionByName("ethereum")
	if eth.Name != "Ethereum (archive)" {
		t.Fatalf("custom definition should replace the predefined one, got %q", eth.Name)
	}
	sonic, ok := p.GetNetworkDefinitionByName("sonic")
	if !ok || sonic.Decimals != 18 || sonic.Name != "sonic" {
		t.Fatalf("unexpected defaults on custom network %+v", sonic)
	}
	if len(p.GetAllNetworkDefinitions()) != len(KnownDefinitions())+1 {
		t.Fatal("custom network should extend the registry")
	}

	if _, err := NewNetworkDefinitionProvider(logger.NewNop(), []entity.NetworkDefinition{{Name: "nameless"}}); err == nil {
		t.Fatal("a definition without identifier must be rejected")
	}
}

func TestGetAllReturnsCopy(t *testing.T) {
	p, _ := NewNetworkDefinitionProvider(logger.NewNop(), nil)
	all := p.GetAllNetworkDefinitions()
	all[0].Identifier = "mutated"
	if p.GetAllNetworkDefinitions()[0].Identifier == "mutated" {
		t.Fatal("callers must not be able to mutate the registry")
	}
}
