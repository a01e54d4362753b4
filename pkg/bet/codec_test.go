package bet

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/openlay/openlay/params"
)

func sampleOrder() *Order {
	return &Order{
		Backer:       common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"),
		Layer:        common.Address{},
		Token:        common.HexToAddress("0x1000000000000000000000000000000000000001"),
		FeeRecipient: common.HexToAddress("0x1000000000000000000000000000000000000002"),
		League:       common.HexToAddress("0x1000000000000000000000000000000000000003"),
		Resolver:     common.HexToAddress("0x1000000000000000000000000000000000000004"),
		BackerStake:  big.NewInt(1000),
		BackerFee:    big.NewInt(10),
		LayerFee:     big.NewInt(20),
		Fixture:      big.NewInt(7),
		Odds:         new(big.Int).Mul(big.NewInt(2), params.OddsOne),
		Expiration:   big.NewInt(1900000000),
		Payload:      common.LeftPadBytes([]byte{byte(BackerWins)}, 32),
	}
}

func TestDigestDeterministic(t *testing.T) {
	a := Digest(sampleOrder(), 1)
	b := Digest(sampleOrder(), 1)
	if a != b {
		t.Errorf("same order hashed to %s and %s", a.Hex(), b.Hex())
	}
	if a == (common.Hash{}) {
		t.Error("digest is the zero hash")
	}
}

func TestDigestSensitiveToEveryField(t *testing.T) {
	base := Digest(sampleOrder(), 1)

	tests := []struct {
		name   string
		mutate func(*Order)
	}{
		{"backer", func(o *Order) { o.Backer = common.HexToAddress("0xbb") }},
		{"layer", func(o *Order) { o.Layer = common.HexToAddress("0xcc") }},
		{"token", func(o *Order) { o.Token = common.HexToAddress("0xdd") }},
		{"feeRecipient", func(o *Order) { o.FeeRecipient = common.HexToAddress("0xee") }},
		{"league", func(o *Order) { o.League = common.HexToAddress("0xff") }},
		{"resolver", func(o *Order) { o.Resolver = common.HexToAddress("0x11") }},
		{"backerStake", func(o *Order) { o.BackerStake = big.NewInt(1001) }},
		{"backerFee", func(o *Order) { o.BackerFee = big.NewInt(11) }},
		{"layerFee", func(o *Order) { o.LayerFee = big.NewInt(21) }},
		{"fixture", func(o *Order) { o.Fixture = big.NewInt(8) }},
		{"odds", func(o *Order) { o.Odds = new(big.Int).Mul(big.NewInt(3), params.OddsOne) }},
		{"expiration", func(o *Order) { o.Expiration = big.NewInt(1900000001) }},
		{"payload", func(o *Order) { o.Payload = common.LeftPadBytes([]byte{byte(Push)}, 32) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := sampleOrder()
			tt.mutate(o)
			if Digest(o, 1) == base {
				t.Errorf("changing %s did not change the digest", tt.name)
			}
		})
	}
}

func TestDigestSensitiveToNonce(t *testing.T) {
	o := sampleOrder()
	if Digest(o, 1) == Digest(o, 2) {
		t.Error("nonce change did not change the digest")
	}
}

func TestDigestNilNumericIsZero(t *testing.T) {
	a := sampleOrder()
	a.BackerFee = nil
	b := sampleOrder()
	b.BackerFee = big.NewInt(0)
	if Digest(a, 1) != Digest(b, 1) {
		t.Error("nil numeric field hashed differently from explicit zero")
	}
}

func TestLayerCapacityAndBackerDebit(t *testing.T) {
	oddsOf := func(num, den int64) *big.Int {
		o := new(big.Int).Mul(big.NewInt(num), params.OddsOne)
		return o.Div(o, big.NewInt(den))
	}

	tests := []struct {
		name     string
		stake    int64
		odds     *big.Int
		fill     int64
		wantCap  int64
		wantDeb  int64
	}{
		{"even odds", 1000, oddsOf(2, 1), 2000, 2000, 1000},
		{"odds 1.5", 1000, oddsOf(3, 2), 1500, 1500, 1000},
		{"partial fill", 1000, oddsOf(2, 1), 600, 2000, 300},
		{"rounds down", 1000, oddsOf(3, 1), 100, 3000, 33},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := sampleOrder()
			o.BackerStake = big.NewInt(tt.stake)
			o.Odds = tt.odds
			if got := o.LayerCapacity(); got.Int64() != tt.wantCap {
				t.Errorf("LayerCapacity() = %s, want %d", got, tt.wantCap)
			}
			if got := o.BackerDebit(big.NewInt(tt.fill)); got.Int64() != tt.wantDeb {
				t.Errorf("BackerDebit(%d) = %s, want %d", tt.fill, got, tt.wantDeb)
			}
		})
	}
}

func TestDecodeOutcome(t *testing.T) {
	word := func(code byte) []byte { return common.LeftPadBytes([]byte{code}, 32) }

	tests := []struct {
		name    string
		payload []byte
		want    Outcome
		wantErr bool
	}{
		{"backer wins word", word(1), BackerWins, false},
		{"push word", word(5), Push, false},
		{"short payload", []byte{3}, LayerWins, false},
		{"empty", nil, 0, true},
		{"zero code", word(0), 0, true},
		{"out of range", word(6), 0, true},
		{"non-scalar word", append([]byte{0xff}, word(1)[1:]...), 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeOutcome(tt.payload)
			if tt.wantErr {
				if err == nil {
					t.Errorf("DecodeOutcome() = %v, want error", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeOutcome() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("DecodeOutcome() = %v, want %v", got, tt.want)
			}
		})
	}
}
