// Package storage persists the settlement history and escrow ledger in
// pebble. Both maps are append-friendly key-value shapes: order records
// keyed by digest, balances by (token, owner), approvals by (owner, agent).
package storage

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/cockroachdb/pebble"
	"github.com/ethereum/go-ethereum/common"

	"github.com/openlay/openlay/pkg/engine"
	"github.com/openlay/openlay/pkg/vault"
)

var (
	_ engine.Journal = (*Store)(nil)
	_ vault.Journal  = (*Store)(nil)
)

type Store struct {
	db *pebble.DB
}

// Open opens (or creates) the pebble database at path.
func Open(path string) (*Store, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble db at %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// PutOrder persists an order's settlement record.
func (s *Store) PutOrder(digest common.Hash, rec *engine.OrderRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal order record: %w", err)
	}
	if err := s.db.Set(orderKey(digest), data, pebble.Sync); err != nil {
		return fmt.Errorf("failed to save order record: %w", err)
	}
	return nil
}

// LoadOrders loads every persisted order record.
func (s *Store) LoadOrders() (map[common.Hash]*engine.OrderRecord, error) {
	prefix := orderPrefix()
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	records := make(map[common.Hash]*engine.OrderRecord)
	for iter.First(); iter.Valid(); iter.Next() {
		var rec engine.OrderRecord
		if err := json.Unmarshal(iter.Value(), &rec); err != nil {
			return nil, fmt.Errorf("failed to unmarshal order record: %w", err)
		}
		var digest common.Hash
		copy(digest[:], iter.Key()[len(prefix):])
		records[digest] = &rec
	}
	return records, nil
}

// PutBalance persists one (token, owner) escrow balance.
func (s *Store) PutBalance(token, owner common.Address, amount *big.Int) error {
	if err := s.db.Set(balanceKey(token, owner), []byte(amount.String()), pebble.Sync); err != nil {
		return fmt.Errorf("failed to save balance: %w", err)
	}
	return nil
}

// LoadBalances loads all persisted escrow balances as token -> owner -> amount.
func (s *Store) LoadBalances() (map[common.Address]map[common.Address]*big.Int, error) {
	prefix := balancePrefix()
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	balances := make(map[common.Address]map[common.Address]*big.Int)
	for iter.First(); iter.Valid(); iter.Next() {
		rest := iter.Key()[len(prefix):]
		if len(rest) != 40 {
			continue
		}
		var token, owner common.Address
		copy(token[:], rest[:20])
		copy(owner[:], rest[20:])
		amount, ok := new(big.Int).SetString(string(iter.Value()), 10)
		if !ok {
			return nil, fmt.Errorf("corrupt balance entry for %s/%s", token.Hex(), owner.Hex())
		}
		m, ok := balances[token]
		if !ok {
			m = make(map[common.Address]*big.Int)
			balances[token] = m
		}
		m[owner] = amount
	}
	return balances, nil
}

// PutApproval persists one (owner, agent) approval flag.
func (s *Store) PutApproval(owner, agent common.Address, approved bool) error {
	key := approvalKey(owner, agent)
	if !approved {
		if err := s.db.Delete(key, pebble.Sync); err != nil {
			return fmt.Errorf("failed to delete approval: %w", err)
		}
		return nil
	}
	if err := s.db.Set(key, []byte{0x01}, pebble.Sync); err != nil {
		return fmt.Errorf("failed to save approval: %w", err)
	}
	return nil
}

// LoadApprovals loads all persisted approvals as owner -> agent -> true.
func (s *Store) LoadApprovals() (map[common.Address]map[common.Address]bool, error) {
	prefix := approvalPrefix()
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	approvals := make(map[common.Address]map[common.Address]bool)
	for iter.First(); iter.Valid(); iter.Next() {
		rest := iter.Key()[len(prefix):]
		if len(rest) != 40 {
			continue
		}
		var owner, agent common.Address
		copy(owner[:], rest[:20])
		copy(agent[:], rest[20:])
		m, ok := approvals[owner]
		if !ok {
			m = make(map[common.Address]bool)
			approvals[owner] = m
		}
		m[agent] = true
	}
	return approvals, nil
}

// PutSpender persists the installed vault spender.
func (s *Store) PutSpender(agent common.Address) error {
	if err := s.db.Set(spenderKey(), agent[:], pebble.Sync); err != nil {
		return fmt.Errorf("failed to save spender: %w", err)
	}
	return nil
}

// LoadSpender returns the installed spender, or the zero address if none
// was persisted.
func (s *Store) LoadSpender() (common.Address, error) {
	val, closer, err := s.db.Get(spenderKey())
	if err == pebble.ErrNotFound {
		return common.Address{}, nil
	}
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to get spender: %w", err)
	}
	defer closer.Close()
	var agent common.Address
	copy(agent[:], val)
	return agent, nil
}
