// sign-bet generates a keypair, canonically hashes a sample wager order,
// and prints the mode-framed signature blob a layer would submit with a
// fill. Useful for exercising the API by hand.
package main

import (
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/openlay/openlay/params"
	"github.com/openlay/openlay/pkg/bet"
	"github.com/openlay/openlay/pkg/crypto"
)

func main() {
	fmt.Println("Generating backer keypair...")
	signer, err := crypto.GenerateKey()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Address: %s\n", signer.Address().Hex())
	fmt.Printf("Private Key: %s (KEEP SECRET!)\n\n", signer.PrivateKeyHex())

	// 2.0x odds, 1000-unit stake, expires in an hour.
	odds := new(big.Int).Mul(big.NewInt(2), params.OddsOne)
	order := &bet.Order{
		Backer:       signer.Address(),
		Layer:        common.Address{}, // open to any layer
		Token:        common.HexToAddress("0x1000000000000000000000000000000000000001"),
		FeeRecipient: common.HexToAddress("0x1000000000000000000000000000000000000002"),
		League:       common.HexToAddress("0x1000000000000000000000000000000000000003"),
		Resolver:     common.HexToAddress("0x1000000000000000000000000000000000000004"),
		BackerStake:  big.NewInt(1000),
		BackerFee:    big.NewInt(10),
		LayerFee:     big.NewInt(20),
		Fixture:      big.NewInt(1),
		Odds:         odds,
		Expiration:   big.NewInt(time.Now().Add(time.Hour).Unix()),
		Payload:      common.LeftPadBytes([]byte{byte(bet.BackerWins)}, 32),
	}

	const nonce = 1
	digest := bet.Digest(order, nonce)
	fmt.Printf("Schema: %s\n", bet.Schema)
	fmt.Printf("Digest: %s\n\n", digest.Hex())

	blob, err := signer.SignBlob(crypto.ModePersonal, digest.Bytes())
	if err != nil {
		fmt.Printf("Error signing: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Signature blob: %s\n\n", hexutil.Encode(blob))

	out := map[string]interface{}{
		"order": map[string]string{
			"backer":       order.Backer.Hex(),
			"token":        order.Token.Hex(),
			"feeRecipient": order.FeeRecipient.Hex(),
			"league":       order.League.Hex(),
			"resolver":     order.Resolver.Hex(),
			"backerStake":  order.BackerStake.String(),
			"backerFee":    order.BackerFee.String(),
			"layerFee":     order.LayerFee.String(),
			"fixture":      order.Fixture.String(),
			"odds":         order.Odds.String(),
			"expiration":   order.Expiration.String(),
			"payload":      hexutil.Encode(order.Payload),
		},
		"nonce":     nonce,
		"signature": hexutil.Encode(blob),
	}
	body, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		fmt.Printf("Error marshaling JSON: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Fill request body (set caller and fillAmount):")
	fmt.Println(string(body))

	fmt.Println("\nVerifying signature...")
	if !crypto.IsValidSignature(digest.Bytes(), signer.Address(), blob) {
		fmt.Println("FAILED: signature does not verify")
		os.Exit(1)
	}
	recovered, _ := crypto.Recover(digest.Bytes(), blob)
	fmt.Printf("Recovered signer: %s\n", recovered.Hex())
}
