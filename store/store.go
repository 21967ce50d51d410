// Package store persists the full engine state as a single borsh-encoded
// snapshot, the same encoding the on-chain accounts use.
package store

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	bin "github.com/gagliardetto/binary"

	"github.com/fragmetric-labs/fragmetric-engine/fund"
	"github.com/fragmetric-labs/fragmetric-engine/operation"
	"github.com/fragmetric-labs/fragmetric-engine/reward"
)

const snapshotVersion uint16 = 1

// Snapshot is the complete persisted state of one fund: the ledger, the
// reward registry, every user account and the operation pipeline cursor.
// User slices are ordered by pubkey so equal states encode identically.
type Snapshot struct {
	Version uint16

	Fund   fund.Account
	Reward reward.Account

	FundUsers   []fund.UserAccount
	RewardUsers []reward.UserAccount

	Operation operation.State
}

func NewSnapshot() *Snapshot {
	return &Snapshot{Version: snapshotVersion}
}

func (s *Snapshot) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	if err := bin.NewBorshEncoder(&buf).Encode(s); err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return buf.Bytes(), nil
}

func Unmarshal(data []byte) (*Snapshot, error) {
	snap := &Snapshot{}
	if err := bin.NewBorshDecoder(data).Decode(snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if snap.Version != snapshotVersion {
		return nil, fmt.Errorf("unsupported snapshot version %d", snap.Version)
	}
	return snap, nil
}

// Save writes the snapshot atomically: a temp file in the target directory
// renamed over the destination.
func Save(path string, snap *Snapshot) error {
	data, err := snap.Marshal()
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename snapshot: %w", err)
	}
	return nil
}

func Load(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return Unmarshal(data)
}
