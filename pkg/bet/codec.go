package bet

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Schema is the versioned descriptor of the signed field set. Orders are
// signed against the hash of this string; changing the field set requires
// bumping the version so signatures under the old layout can never be
// replayed against the new one.
const Schema = "Bet:v1(" +
	"address backer," +
	"address layer," +
	"address token," +
	"address feeRecipient," +
	"address league," +
	"address resolver," +
	"uint256 backerStake," +
	"uint256 backerFee," +
	"uint256 layerFee," +
	"uint256 fixture," +
	"uint256 odds," +
	"uint256 expiration," +
	"bytes payload" +
	")"

var schemaHash = crypto.Keccak256Hash([]byte(Schema))

// SchemaHash returns the keccak256 of the schema descriptor.
func SchemaHash() common.Hash { return schemaHash }

// word left-pads a non-negative integer to a 32-byte big-endian word.
// Nil is treated as zero so the codec stays total on any well-typed order.
func word(x *big.Int) []byte {
	if x == nil {
		return make([]byte, 32)
	}
	return common.LeftPadBytes(x.Bytes(), 32)
}

// Digest computes the canonical order digest:
//
//	inner = keccak(schemaHash || subjects || params || keccak(payload))
//	final = keccak(uint256(nonce) || inner)
//
// Subjects pack tightly as 20-byte addresses, numeric params as 32-byte
// words. The nonce lets two otherwise-identical orders coexist; the digest
// is the order's primary key everywhere else in the system.
func Digest(o *Order, nonce uint64) common.Hash {
	buf := make([]byte, 0, 32+6*20+6*32+32)
	buf = append(buf, schemaHash.Bytes()...)
	for _, subject := range o.Subjects() {
		buf = append(buf, subject.Bytes()...)
	}
	for _, param := range o.NumericParams() {
		buf = append(buf, word(param)...)
	}
	buf = append(buf, crypto.Keccak256(o.Payload)...)

	inner := crypto.Keccak256(buf)
	return crypto.Keccak256Hash(word(new(big.Int).SetUint64(nonce)), inner)
}
