package registry

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestGovernedRoles(t *testing.T) {
	owner := common.HexToAddress("0x0000000000000000000000000000000000000a01")
	stranger := common.HexToAddress("0x0000000000000000000000000000000000000a02")
	manager := common.HexToAddress("0x0000000000000000000000000000000000000b01")

	g := NewGoverned(owner)

	if got := g.GetAddress("BetManager"); got != (common.Address{}) {
		t.Errorf("unset role = %s, want zero address", got.Hex())
	}

	if err := g.ChangeAddress(stranger, "BetManager", manager); !errors.Is(err, ErrNotOwner) {
		t.Errorf("ChangeAddress by stranger error = %v, want %v", err, ErrNotOwner)
	}
	if err := g.ChangeAddress(owner, "BetManager", manager); err != nil {
		t.Fatalf("ChangeAddress failed: %v", err)
	}
	if got := g.GetAddress("BetManager"); got != manager {
		t.Errorf("GetAddress = %s, want %s", got.Hex(), manager.Hex())
	}

	// Reassignment is visible immediately.
	next := common.HexToAddress("0x0000000000000000000000000000000000000b02")
	if err := g.ChangeAddress(owner, "BetManager", next); err != nil {
		t.Fatalf("ChangeAddress failed: %v", err)
	}
	if got := g.GetAddress("BetManager"); got != next {
		t.Errorf("GetAddress after reassignment = %s, want %s", got.Hex(), next.Hex())
	}
}
