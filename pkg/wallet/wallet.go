// Package wallet loads the batch's wallets from plain line files and performs
// the self-transfer step.
package wallet

import (
	"bufio"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var ErrNoKeys = errors.New("wallet: no private keys found")

// Wallet is one entry of the batch. Index is one based and, with Total, is
// used only for labelling.
type Wallet struct {
	Index      int
	Total      int
	Address    common.Address
	Key        *ecdsa.PrivateKey
	Credential string
}

func (w *Wallet) Label() string {
	return fmt.Sprintf("%d/%d", w.Index, w.Total)
}

// ReadLines returns the trimmed, non-empty lines of r.
func ReadLines(r io.Reader) ([]string, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

// LoadLines reads path with ReadLines. A missing file is reported with an
// error matching fs.ErrNotExist so callers can treat optional files leniently.
func LoadLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	return ReadLines(f)
}

// ParseKey accepts a hex private key with or without 0x prefix.
func ParseKey(hexKey string) (*ecdsa.PrivateKey, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimPrefix(hexKey, "0x"), "0X"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return key, nil
}

// Build pairs keys with credentials by position. Credential i belongs to key
// i; keys beyond the credential list get none.
func Build(keys, credentials []string) ([]*Wallet, error) {
	if len(keys) == 0 {
		return nil, ErrNoKeys
	}
	wallets := make([]*Wallet, 0, len(keys))
	for i, hexKey := range keys {
		key, err := ParseKey(hexKey)
		if err != nil {
			return nil, fmt.Errorf("key %d: %w", i+1, err)
		}
		w := &Wallet{
			Index:   i + 1,
			Total:   len(keys),
			Address: crypto.PubkeyToAddress(key.PublicKey),
			Key:     key,
		}
		if i < len(credentials) {
			w.Credential = credentials[i]
		}
		wallets = append(wallets, w)
	}
	return wallets, nil
}
