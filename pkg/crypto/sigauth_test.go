package crypto

import (
	"bytes"
	"errors"
	"testing"

	gethcrypto "github.com/ethereum/go-ethereum/crypto"
)

func testDigest(seed string) []byte {
	return gethcrypto.Keccak256([]byte(seed))
}

func TestSignBlobRoundTrip(t *testing.T) {
	signer, err := GenerateKey()
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	digest := testDigest("round-trip")

	for _, mode := range []SignatureMode{ModePersonal, ModeDirect} {
		blob, err := signer.SignBlob(mode, digest)
		if err != nil {
			t.Fatalf("mode 0x%02x: sign failed: %v", mode, err)
		}
		if len(blob) != BlobLength {
			t.Fatalf("mode 0x%02x: blob length = %d, want %d", mode, len(blob), BlobLength)
		}
		if blob[0] != byte(mode) {
			t.Errorf("mode 0x%02x: mode byte = 0x%02x", mode, blob[0])
		}
		if blob[1] != 27 && blob[1] != 28 {
			t.Errorf("mode 0x%02x: recovery id = %d, want 27 or 28", mode, blob[1])
		}

		recovered, err := Recover(digest, blob)
		if err != nil {
			t.Fatalf("mode 0x%02x: recover failed: %v", mode, err)
		}
		if recovered != signer.Address() {
			t.Errorf("mode 0x%02x: recovered %s, want %s", mode, recovered.Hex(), signer.Address().Hex())
		}
		if !IsValidSignature(digest, signer.Address(), blob) {
			t.Errorf("mode 0x%02x: IsValidSignature = false", mode)
		}
	}
}

func TestModesAreNotInterchangeable(t *testing.T) {
	signer, _ := GenerateKey()
	digest := testDigest("mode-swap")

	blob, err := signer.SignBlob(ModePersonal, digest)
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}

	// Relabel the same signature as direct-mode: recovery runs over the
	// unprefixed digest and must yield a different signer.
	swapped := bytes.Clone(blob)
	swapped[0] = byte(ModeDirect)
	if IsValidSignature(digest, signer.Address(), swapped) {
		t.Error("personal-mode signature verified under direct mode")
	}
}

func TestRecoverRejectsMalformedBlobs(t *testing.T) {
	signer, _ := GenerateKey()
	digest := testDigest("malformed")
	blob, err := signer.SignBlob(ModePersonal, digest)
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}

	tests := []struct {
		name    string
		mutate  func([]byte) []byte
		wantErr error
	}{
		{
			name:    "truncated blob",
			mutate:  func(b []byte) []byte { return b[:BlobLength-1] },
			wantErr: ErrMalformedSignature,
		},
		{
			name:    "oversized blob",
			mutate:  func(b []byte) []byte { return append(bytes.Clone(b), 0x00) },
			wantErr: ErrMalformedSignature,
		},
		{
			name: "unknown mode byte",
			mutate: func(b []byte) []byte {
				c := bytes.Clone(b)
				c[0] = 0x7f
				return c
			},
			wantErr: ErrUnknownMode,
		},
		{
			name: "recovery id out of range",
			mutate: func(b []byte) []byte {
				c := bytes.Clone(b)
				c[1] = 29
				return c
			},
			wantErr: ErrMalformedSignature,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Recover(digest, tt.mutate(blob))
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Recover() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestBitFlipChangesRecoveredSigner(t *testing.T) {
	signer, _ := GenerateKey()
	digest := testDigest("bit-flip")
	blob, err := signer.SignBlob(ModeDirect, digest)
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}

	flipped := bytes.Clone(blob)
	flipped[10] ^= 0x01 // somewhere inside r
	if IsValidSignature(digest, signer.Address(), flipped) {
		t.Error("bit-flipped signature still verified for the original signer")
	}
}

func TestRecoverRejectsBadDigestLength(t *testing.T) {
	signer, _ := GenerateKey()
	blob, err := signer.SignBlob(ModeDirect, testDigest("short"))
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	if _, err := Recover([]byte{0x01, 0x02}, blob); !errors.Is(err, ErrMalformedSignature) {
		t.Errorf("Recover() error = %v, want %v", err, ErrMalformedSignature)
	}
}

func TestFromPrivateKeyHexRoundTrip(t *testing.T) {
	signer, _ := GenerateKey()
	restored, err := FromPrivateKeyHex(signer.PrivateKeyHex())
	if err != nil {
		t.Fatalf("failed to restore key: %v", err)
	}
	if restored.Address() != signer.Address() {
		t.Errorf("restored address %s, want %s", restored.Address().Hex(), signer.Address().Hex())
	}
}
