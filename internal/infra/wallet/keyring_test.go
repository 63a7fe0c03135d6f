package wallet

import (
	"strings"
	"testing"
)

type fakeCursor struct {
	next uint32
}

func (f *fakeCursor) NextAddressIndex() (uint32, error) {
	idx := f.next
	f.next++
	return idx, nil
}

func TestKeyring_Deterministic(t *testing.T) {
	k1, err := NewKeyring("test seed phrase", &fakeCursor{})
	if err != nil {
		t.Fatalf("NewKeyring failed: %v", err)
	}
	k2, _ := NewKeyring("test seed phrase", &fakeCursor{})

	a, err := k1.KeyPair(5)
	if err != nil {
		t.Fatalf("KeyPair failed: %v", err)
	}
	b, _ := k2.KeyPair(5)

	if a.WIF != b.WIF || a.CashAddr != b.CashAddr {
		t.Error("same seed and index must derive the same keypair")
	}
}

func TestKeyring_DistinctIndexes(t *testing.T) {
	k, _ := NewKeyring("test seed phrase", &fakeCursor{})

	a, _ := k.KeyPair(0)
	b, _ := k.KeyPair(1)

	if a.CashAddr == b.CashAddr {
		t.Error("distinct indexes must derive distinct addresses")
	}
	if a.WIF == b.WIF {
		t.Error("distinct indexes must derive distinct credentials")
	}
}

func TestKeyring_DistinctSeeds(t *testing.T) {
	k1, _ := NewKeyring("seed one", &fakeCursor{})
	k2, _ := NewKeyring("seed two", &fakeCursor{})

	a, _ := k1.KeyPair(0)
	b, _ := k2.KeyPair(0)

	if a.CashAddr == b.CashAddr {
		t.Error("distinct seeds must derive distinct addresses")
	}
}

func TestKeyring_AddressFormat(t *testing.T) {
	k, _ := NewKeyring("test seed phrase", &fakeCursor{})

	kp, _ := k.KeyPair(0)

	if !strings.HasPrefix(kp.CashAddr, "bitcoincash:q") {
		t.Errorf("unexpected address prefix: %s", kp.CashAddr)
	}
	// prefix + version char + 32 payload chars
	if len(kp.CashAddr) != len("bitcoincash:q")+32 {
		t.Errorf("unexpected address length: %d", len(kp.CashAddr))
	}
	for _, c := range kp.CashAddr[len("bitcoincash:q"):] {
		if !strings.ContainsRune(cashCharset, c) {
			t.Errorf("address contains char outside cashaddr alphabet: %c", c)
		}
	}
}

func TestKeyring_NextIndexDelegates(t *testing.T) {
	cursor := &fakeCursor{next: 7}
	k, _ := NewKeyring("test seed phrase", cursor)

	idx, err := k.NextIndex()
	if err != nil {
		t.Fatalf("NextIndex failed: %v", err)
	}
	if idx != 7 {
		t.Errorf("expected index 7, got %d", idx)
	}

	idx, _ = k.NextIndex()
	if idx != 8 {
		t.Errorf("expected index 8, got %d", idx)
	}
}

func TestNewKeyring_EmptySeed(t *testing.T) {
	if _, err := NewKeyring("", &fakeCursor{}); err == nil {
		t.Error("empty seed should be rejected")
	}
}
