package storage

import "github.com/ethereum/go-ethereum/common"

// Key layout, all prefix-scannable:
//
//	o:<32-byte digest>              -> order record (JSON)
//	vb:<20-byte token><20-byte own> -> escrow balance (decimal string)
//	va:<20-byte owner><20-byte agt> -> approval flag (0x01)
//	vs:                             -> installed spender (20 bytes)
func orderKey(digest common.Hash) []byte {
	return append([]byte("o:"), digest[:]...)
}

func orderPrefix() []byte { return []byte("o:") }

func balanceKey(token, owner common.Address) []byte {
	key := append([]byte("vb:"), token[:]...)
	return append(key, owner[:]...)
}

func balancePrefix() []byte { return []byte("vb:") }

func approvalKey(owner, agent common.Address) []byte {
	key := append([]byte("va:"), owner[:]...)
	return append(key, agent[:]...)
}

func approvalPrefix() []byte { return []byte("va:") }

func spenderKey() []byte { return []byte("vs:") }

// keyUpperBound returns the smallest key greater than every key with the
// given prefix, for iterator bounds.
func keyUpperBound(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil // prefix is all 0xff
}
