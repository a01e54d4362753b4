package crypto

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Signer manages a secp256k1 key pair used to sign order digests off-band.
type Signer struct {
	privateKey *ecdsa.PrivateKey
	publicKey  *ecdsa.PublicKey
	address    common.Address
}

// GenerateKey creates a new random secp256k1 key pair.
func GenerateKey() (*Signer, error) {
	privateKey, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return fromECDSA(privateKey)
}

// FromPrivateKeyHex creates a Signer from a hex-encoded private key
// (64 hex chars, no 0x prefix).
func FromPrivateKeyHex(hexKey string) (*Signer, error) {
	privateKey, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	return fromECDSA(privateKey)
}

func fromECDSA(privateKey *ecdsa.PrivateKey) (*Signer, error) {
	publicKey, ok := privateKey.Public().(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("failed to cast public key to ECDSA")
	}
	return &Signer{
		privateKey: privateKey,
		publicKey:  publicKey,
		address:    crypto.PubkeyToAddress(*publicKey),
	}, nil
}

// Address returns the address derived from the public key.
func (s *Signer) Address() common.Address {
	return s.address
}

// PrivateKeyHex returns the private key as hex string (WITHOUT 0x prefix).
// WARNING: keep this secret.
func (s *Signer) PrivateKeyHex() string {
	return fmt.Sprintf("%x", crypto.FromECDSA(s.privateKey))
}

// Sign signs a 32-byte digest and returns the raw [R || S || V] signature,
// V in {0, 1}.
func (s *Signer) Sign(digest []byte) ([]byte, error) {
	if len(digest) != 32 {
		return nil, fmt.Errorf("digest must be 32 bytes, got %d", len(digest))
	}
	sig, err := crypto.Sign(digest, s.privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign: %w", err)
	}
	return sig, nil
}

// SignBlob signs digest under the given mode and frames the result as the
// self-describing blob the authorizer consumes: mode || v || r || s with
// v in {27, 28}. ModePersonal signs the prefixed digest the way geth's
// eth_sign does; ModeDirect signs the raw digest.
func (s *Signer) SignBlob(mode SignatureMode, digest []byte) ([]byte, error) {
	var signed []byte
	switch mode {
	case ModePersonal:
		signed = personalDigest(digest)
	case ModeDirect:
		signed = digest
	default:
		return nil, fmt.Errorf("unsupported signature mode: %d", mode)
	}

	sig, err := s.Sign(signed)
	if err != nil {
		return nil, err
	}

	blob := make([]byte, BlobLength)
	blob[0] = byte(mode)
	blob[1] = sig[64] + 27
	copy(blob[2:34], sig[0:32])
	copy(blob[34:66], sig[32:64])
	return blob, nil
}
