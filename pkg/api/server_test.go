package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/openlay/openlay/params"
	"github.com/openlay/openlay/pkg/bet"
	olcrypto "github.com/openlay/openlay/pkg/crypto"
	"github.com/openlay/openlay/pkg/engine"
	"github.com/openlay/openlay/pkg/league"
	"github.com/openlay/openlay/pkg/registry"
	"github.com/openlay/openlay/pkg/vault"
)

var (
	govOwner     = common.HexToAddress("0x0000000000000000000000000000000000000a01")
	engineAddr   = common.HexToAddress("0x00000000000000000000000000000000004f4c01")
	layerAddr    = common.HexToAddress("0x0000000000000000000000000000000000000a11")
	betToken     = common.HexToAddress("0x0000000000000000000000000000000000000c01")
	feeToken     = common.HexToAddress("0x0000000000000000000000000000000000000c02")
	feeRecipient = common.HexToAddress("0x0000000000000000000000000000000000000c03")
	leagueAddr   = common.HexToAddress("0x0000000000000000000000000000000000000d01")
	resolverAddr = common.HexToAddress("0x0000000000000000000000000000000000000e01")
)

type fixture struct {
	server *Server
	backer *olcrypto.Signer
	order  OrderJSON
	sig    string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	reg := registry.NewGoverned(govOwner)
	if err := reg.ChangeAddress(govOwner, params.RoleBetManager, engineAddr); err != nil {
		t.Fatalf("failed to seed registry: %v", err)
	}
	if err := reg.ChangeAddress(govOwner, params.RoleFeeToken, feeToken); err != nil {
		t.Fatalf("failed to seed registry: %v", err)
	}

	bridge := vault.NewLedgerBridge()
	v := vault.New(govOwner, reg, bridge, nil, nil)
	if err := v.AddSpender(govOwner, engineAddr); err != nil {
		t.Fatalf("failed to install spender: %v", err)
	}

	catalog := league.NewCatalog(govOwner)
	if err := catalog.CreateLeague(govOwner, leagueAddr, "NFL"); err != nil {
		t.Fatalf("failed to create league: %v", err)
	}
	if err := catalog.ScheduleFixture(govOwner, leagueAddr, big.NewInt(1)); err != nil {
		t.Fatalf("failed to schedule fixture: %v", err)
	}
	if err := catalog.RegisterResolver(govOwner, leagueAddr, resolverAddr); err != nil {
		t.Fatalf("failed to register resolver: %v", err)
	}

	backer, err := olcrypto.GenerateKey()
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}

	fund := func(addr, token common.Address, amount int64) {
		bridge.Mint(token, addr, big.NewInt(amount))
		if err := v.Deposit(addr, token, big.NewInt(amount), big.NewInt(0)); err != nil {
			t.Fatalf("deposit failed: %v", err)
		}
		if err := v.Approve(addr, engineAddr); err != nil {
			t.Fatalf("approve failed: %v", err)
		}
	}
	fund(backer.Address(), betToken, 1000)
	fund(layerAddr, betToken, 2000)

	eng := engine.New(engineAddr, v, catalog, reg, nil, nil, nil)
	server := NewServer(eng, v, nil)

	order := &bet.Order{
		Backer:       backer.Address(),
		Token:        betToken,
		FeeRecipient: feeRecipient,
		League:       leagueAddr,
		Resolver:     resolverAddr,
		BackerStake:  big.NewInt(1000),
		BackerFee:    big.NewInt(0),
		LayerFee:     big.NewInt(0),
		Fixture:      big.NewInt(1),
		Odds:         new(big.Int).Mul(big.NewInt(2), params.OddsOne),
		Expiration:   big.NewInt(time.Now().Add(time.Hour).Unix()),
		Payload:      common.LeftPadBytes([]byte{byte(bet.BackerWins)}, 32),
	}
	digest := bet.Digest(order, 1)
	blob, err := backer.SignBlob(olcrypto.ModePersonal, digest.Bytes())
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}

	return &fixture{
		server: server,
		backer: backer,
		order:  FromOrder(order),
		sig:    hexutil.Encode(blob),
	}
}

func (f *fixture) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	f.server.router.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return v
}

func TestFillAndReadEndpoints(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, "POST", "/api/v1/fills", FillRequest{
		Caller:     layerAddr.Hex(),
		Order:      f.order,
		Nonce:      1,
		FillAmount: "600",
		Signature:  f.sig,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("fill status = %d, body %s", w.Code, w.Body.String())
	}
	digest := decodeBody[DigestResponse](t, w).Digest

	w = f.do(t, "GET", "/api/v1/orders/"+digest, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get order status = %d", w.Code)
	}
	details := decodeBody[OrderDetailsResponse](t, w)
	if details.TotalFilled != "600" || details.BackerMatched != "300" {
		t.Errorf("details filled/matched = %s/%s, want 600/300", details.TotalFilled, details.BackerMatched)
	}
	if len(details.Layers) != 1 || details.Layers[0] != layerAddr.Hex() {
		t.Errorf("details layers = %v", details.Layers)
	}

	w = f.do(t, "GET", fmt.Sprintf("/api/v1/orders/%s/fills/%s", digest, layerAddr.Hex()), nil)
	if got := decodeBody[FillAmountResponse](t, w); got.Filled != "600" {
		t.Errorf("fill amount = %s, want 600", got.Filled)
	}

	w = f.do(t, "GET", fmt.Sprintf("/api/v1/balances/%s/%s", betToken.Hex(), layerAddr.Hex()), nil)
	if got := decodeBody[BalanceResponse](t, w); got.Balance != "1400" {
		t.Errorf("layer balance = %s, want 1400", got.Balance)
	}

	w = f.do(t, "GET", fmt.Sprintf("/api/v1/subjects/%s/orders", f.backer.Address().Hex()), nil)
	if got := decodeBody[[]string](t, w); len(got) != 1 || got[0] != digest {
		t.Errorf("subject orders = %v", got)
	}
}

func TestErrorStatusMapping(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name     string
		method   string
		path     string
		body     interface{}
		wantCode int
	}{
		{
			name:     "unknown order is 404",
			method:   "GET",
			path:     "/api/v1/orders/" + common.Hash{0x01}.Hex(),
			wantCode: http.StatusNotFound,
		},
		{
			name:     "malformed digest is 400",
			method:   "GET",
			path:     "/api/v1/orders/nothex",
			wantCode: http.StatusBadRequest,
		},
		{
			name:   "self fill is 403",
			method: "POST",
			path:   "/api/v1/fills",
			body: FillRequest{
				Caller:     f.order.Backer,
				Order:      f.order,
				Nonce:      1,
				FillAmount: "100",
				Signature:  f.sig,
			},
			wantCode: http.StatusForbidden,
		},
		{
			name:   "claim before resolution is 409",
			method: "POST",
			path:   "/api/v1/claims",
			body: ClaimRequest{
				Caller: f.order.Backer,
				Digest: mustFill(t, f).Hex(),
			},
			wantCode: http.StatusConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(t, tt.method, tt.path, tt.body)
			if w.Code != tt.wantCode {
				t.Errorf("status = %d, want %d (body %s)", w.Code, tt.wantCode, w.Body.String())
			}
		})
	}
}

func mustFill(t *testing.T, f *fixture) common.Hash {
	t.Helper()
	w := f.do(t, "POST", "/api/v1/fills", FillRequest{
		Caller:     layerAddr.Hex(),
		Order:      f.order,
		Nonce:      1,
		FillAmount: "100",
		Signature:  f.sig,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("fill status = %d, body %s", w.Code, w.Body.String())
	}
	return common.HexToHash(decodeBody[DigestResponse](t, w).Digest)
}

func TestCancelEndpointBothShapes(t *testing.T) {
	f := newFixture(t)

	// Cancel by full order before any fill.
	w := f.do(t, "POST", "/api/v1/cancels", CancelRequest{
		Caller: f.order.Backer,
		Order:  &f.order,
		Nonce:  1,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("cancel status = %d, body %s", w.Code, w.Body.String())
	}
	digest := decodeBody[DigestResponse](t, w).Digest

	// A fill against the tombstone conflicts.
	w = f.do(t, "POST", "/api/v1/fills", FillRequest{
		Caller:     layerAddr.Hex(),
		Order:      f.order,
		Nonce:      1,
		FillAmount: "100",
		Signature:  f.sig,
	})
	if w.Code != http.StatusConflict {
		t.Errorf("fill after cancel status = %d, want 409", w.Code)
	}

	// Cancel by digest of the same order conflicts too.
	w = f.do(t, "POST", "/api/v1/cancels", CancelRequest{
		Caller: f.order.Backer,
		Digest: digest,
	})
	if w.Code != http.StatusConflict {
		t.Errorf("double cancel status = %d, want 409", w.Code)
	}
}

func TestOrderJSONRoundTrip(t *testing.T) {
	f := newFixture(t)
	order, err := f.order.ToOrder()
	if err != nil {
		t.Fatalf("ToOrder failed: %v", err)
	}
	// The wire round trip must preserve the digest, or signatures would
	// break crossing the API boundary.
	a := bet.Digest(order, 1)
	wire := FromOrder(order)
	back, err := wire.ToOrder()
	if err != nil {
		t.Fatalf("ToOrder failed: %v", err)
	}
	if b := bet.Digest(back, 1); a != b {
		t.Errorf("digest changed across wire round trip: %s vs %s", a.Hex(), b.Hex())
	}

	if _, err := (&OrderJSON{BackerStake: "not-a-number"}).ToOrder(); err == nil {
		t.Error("ToOrder accepted a malformed amount")
	}
	if _, err := (&OrderJSON{Payload: "zz"}).ToOrder(); err == nil {
		t.Error("ToOrder accepted a malformed payload")
	}
}

func TestVaultEndpoints(t *testing.T) {
	f := newFixture(t)
	depositor := common.HexToAddress("0x0000000000000000000000000000000000000b77")

	// Native deposits carry the value field and no token amount.
	w := f.do(t, "POST", "/api/v1/deposits", DepositRequest{
		Caller: depositor.Hex(),
		Token:  params.NativeToken.Hex(),
		Value:  "500",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("deposit status = %d, body %s", w.Code, w.Body.String())
	}
	if got := decodeBody[BalanceResponse](t, w); got.Balance != "500" {
		t.Errorf("balance after deposit = %s, want 500", got.Balance)
	}

	w = f.do(t, "POST", "/api/v1/withdrawals", WithdrawRequest{
		Caller: depositor.Hex(),
		Token:  params.NativeToken.Hex(),
		Amount: "200",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("withdraw status = %d, body %s", w.Code, w.Body.String())
	}
	if got := decodeBody[BalanceResponse](t, w); got.Balance != "300" {
		t.Errorf("balance after withdraw = %s, want 300", got.Balance)
	}

	// Overdrawing conflicts rather than draining.
	w = f.do(t, "POST", "/api/v1/withdrawals", WithdrawRequest{
		Caller: depositor.Hex(),
		Token:  params.NativeToken.Hex(),
		Amount: "1000",
	})
	if w.Code != http.StatusConflict {
		t.Errorf("overdraw status = %d, want 409", w.Code)
	}

	// A native deposit with a token amount instead of value is malformed.
	w = f.do(t, "POST", "/api/v1/deposits", DepositRequest{
		Caller: depositor.Hex(),
		Token:  params.NativeToken.Hex(),
		Amount: "100",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("malformed deposit status = %d, want 400", w.Code)
	}

	w = f.do(t, "POST", "/api/v1/approvals", ApproveRequest{
		Caller: depositor.Hex(),
		Agent:  engineAddr.Hex(),
	})
	if w.Code != http.StatusOK {
		t.Fatalf("approve status = %d, body %s", w.Code, w.Body.String())
	}
	if !f.server.vault.IsApproved(depositor, engineAddr) {
		t.Error("approval not recorded")
	}

	// Approving anything but the installed spender is refused.
	w = f.do(t, "POST", "/api/v1/approvals", ApproveRequest{
		Caller: depositor.Hex(),
		Agent:  layerAddr.Hex(),
	})
	if w.Code != http.StatusForbidden {
		t.Errorf("approve unknown agent status = %d, want 403", w.Code)
	}
}

func TestHealthEndpoint(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, "GET", "/health", nil)
	if w.Code != http.StatusOK {
		t.Errorf("health status = %d, want 200", w.Code)
	}
}
