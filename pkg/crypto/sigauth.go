package crypto

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// SignatureMode selects how the signed message was derived from the digest.
// Signing front-ends prefix messages differently before signing; the mode
// byte lets the verifier reconstruct exactly what was signed.
type SignatureMode byte

const (
	// ModePersonal recovers over the "\x19Ethereum Signed Message:\n32"
	// prefixed digest (geth eth_sign and wallet personal_sign).
	ModePersonal SignatureMode = 0x01
	// ModeDirect recovers over the raw digest.
	ModeDirect SignatureMode = 0x02
)

// BlobLength is the fixed framing: mode(1) || v(1) || r(32) || s(32).
const BlobLength = 66

var (
	ErrMalformedSignature = errors.New("sigauth: malformed signature blob")
	ErrUnknownMode        = errors.New("sigauth: unknown signature mode")
)

const personalPrefix = "\x19Ethereum Signed Message:\n32"

func personalDigest(digest []byte) []byte {
	return crypto.Keccak256(append([]byte(personalPrefix), digest...))
}

// Recover returns the address that produced the signature blob over digest.
// Unknown modes and malformed blobs fail closed.
func Recover(digest []byte, blob []byte) (common.Address, error) {
	if len(digest) != 32 {
		return common.Address{}, fmt.Errorf("%w: digest length %d", ErrMalformedSignature, len(digest))
	}
	if len(blob) != BlobLength {
		return common.Address{}, fmt.Errorf("%w: blob length %d", ErrMalformedSignature, len(blob))
	}

	var signed []byte
	switch SignatureMode(blob[0]) {
	case ModePersonal:
		signed = personalDigest(digest)
	case ModeDirect:
		signed = digest
	default:
		return common.Address{}, fmt.Errorf("%w: 0x%02x", ErrUnknownMode, blob[0])
	}

	v := blob[1]
	if v != 27 && v != 28 {
		return common.Address{}, fmt.Errorf("%w: recovery id %d", ErrMalformedSignature, v)
	}

	// Repack to the [R || S || V] layout secp256k1 recovery expects.
	sig := make([]byte, 65)
	copy(sig[0:32], blob[2:34])
	copy(sig[32:64], blob[34:66])
	sig[64] = v - 27

	pubBytes, err := crypto.Ecrecover(signed, sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("sigauth: recover: %w", err)
	}
	pub, err := crypto.UnmarshalPubkey(pubBytes)
	if err != nil {
		return common.Address{}, fmt.Errorf("sigauth: unmarshal pubkey: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// IsValidSignature reports whether blob is a valid signature over digest by
// the claimed signer. All failures collapse to false.
func IsValidSignature(digest []byte, signer common.Address, blob []byte) bool {
	recovered, err := Recover(digest, blob)
	if err != nil {
		return false
	}
	return recovered == signer
}
