package wallet

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"merchant_go/internal/domain"
)

// cashCharset is the base32 alphabet used by cashaddr encoding.
const cashCharset = "qpzry9x8gf2tvdw0s3jn54khce6mua7l"

// IndexSource hands out monotonically increasing derivation indexes.
type IndexSource interface {
	NextAddressIndex() (uint32, error)
}

// Keyring derives receiving keypairs deterministically from a master seed.
// The same seed and index always yield the same credential, and distinct
// indexes yield distinct addresses. Derivation is an HMAC-SHA256 chain;
// this is a deterministic generator with the contract of an HD wallet,
// not a wallet implementation.
type Keyring struct {
	seed   []byte
	cursor IndexSource
}

// NewKeyring creates a keyring over the given master seed. The cursor
// persists the next unused index across restarts.
func NewKeyring(seed string, cursor IndexSource) (*Keyring, error) {
	if seed == "" {
		return nil, fmt.Errorf("wallet seed must not be empty")
	}
	return &Keyring{seed: []byte(seed), cursor: cursor}, nil
}

// NextIndex reserves and returns the next unused derivation index.
func (k *Keyring) NextIndex() (uint32, error) {
	return k.cursor.NextAddressIndex()
}

// KeyPair derives the spending credential and receiving address for index.
func (k *Keyring) KeyPair(index uint32) (domain.KeyPair, error) {
	mac := hmac.New(sha256.New, k.seed)
	var path [8]byte
	binary.BigEndian.PutUint32(path[:4], 145) // coin type, BCH
	binary.BigEndian.PutUint32(path[4:], index)
	if _, err := mac.Write(path[:]); err != nil {
		return domain.KeyPair{}, err
	}
	priv := mac.Sum(nil)

	pubHash := sha256.Sum256(priv)

	return domain.KeyPair{
		Index:    index,
		WIF:      hex.EncodeToString(priv),
		CashAddr: "bitcoincash:q" + encodeCash(pubHash[:20]),
	}, nil
}

// encodeCash renders a 20-byte hash in the cashaddr base32 alphabet.
// 160 bits pack into exactly 32 characters.
func encodeCash(hash []byte) string {
	out := make([]byte, 0, 32)
	var acc, bits uint
	for _, b := range hash {
		acc = acc<<8 | uint(b)
		bits += 8
		for bits >= 5 {
			bits -= 5
			out = append(out, cashCharset[(acc>>bits)&31])
		}
	}
	return string(out)
}
