package wallet

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/0xmhha/txverify/internal/errs"
)

const (
	testPrivateKey = "0x5fb92d6e98884f76de468fa3f6278f8807c48bebc13595d45af5bdc4da702133"
	testAddress    = "0xf24FF3a9CF04c71Dbc94D0b566f7A27B94566cac"
	testMnemonic   = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"
)

func TestNewFromPrivateKey(t *testing.T) {
	tests := []struct {
		name       string
		privateKey string
		wantErr    bool
	}{
		{
			name:       "valid key with 0x prefix",
			privateKey: testPrivateKey,
			wantErr:    false,
		},
		{
			name:       "valid key without 0x prefix",
			privateKey: testPrivateKey[2:],
			wantErr:    false,
		},
		{
			name:       "invalid key",
			privateKey: "invalid",
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, err := NewFromPrivateKey(tt.privateKey)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewFromPrivateKey() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if err != nil {
				if !errors.Is(err, errs.ErrSigning) {
					t.Errorf("NewFromPrivateKey() error = %v, want ErrSigning", err)
				}
				return
			}
			if got := w.Sender().Address; got != common.HexToAddress(testAddress) {
				t.Errorf("Sender().Address = %s, want %s", got.Hex(), testAddress)
			}
			if !w.Sender().HasKey() {
				t.Error("Sender().HasKey() = false")
			}
			if w.IsMnemonic() {
				t.Error("IsMnemonic() = true for a private key wallet")
			}
		})
	}
}

func TestNewFromMnemonic(t *testing.T) {
	tests := []struct {
		name     string
		mnemonic string
		wantErr  bool
	}{
		{
			name:     "valid mnemonic",
			mnemonic: testMnemonic,
			wantErr:  false,
		},
		{
			name:     "invalid mnemonic",
			mnemonic: "invalid mnemonic phrase",
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, err := NewFromMnemonic(tt.mnemonic, 0)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewFromMnemonic() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if err == nil {
				if !w.Sender().HasKey() {
					t.Error("Sender() has no key")
				}
				if !w.IsMnemonic() {
					t.Error("IsMnemonic() = false")
				}
			}
		})
	}
}

func TestNewFromMnemonic_IndexDerivesDistinctAccounts(t *testing.T) {
	first, err := NewFromMnemonic(testMnemonic, 0)
	if err != nil {
		t.Fatalf("NewFromMnemonic(0) failed: %v", err)
	}
	second, err := NewFromMnemonic(testMnemonic, 1)
	if err != nil {
		t.Fatalf("NewFromMnemonic(1) failed: %v", err)
	}
	again, err := NewFromMnemonic(testMnemonic, 0)
	if err != nil {
		t.Fatalf("NewFromMnemonic(0) failed: %v", err)
	}

	if first.Sender().Address == second.Sender().Address {
		t.Error("index 0 and 1 derived the same address")
	}
	if first.Sender().Address != again.Sender().Address {
		t.Error("derivation is not deterministic")
	}
	if want := crypto.PubkeyToAddress(first.Sender().Key.PublicKey); first.Sender().Address != want {
		t.Errorf("address %s does not match key %s", first.Sender().Address.Hex(), want.Hex())
	}
}

func TestWallet_Recipients(t *testing.T) {
	w, err := NewFromPrivateKey(testPrivateKey)
	if err != nil {
		t.Fatalf("NewFromPrivateKey() failed: %v", err)
	}

	a, err := w.NewRecipient()
	if err != nil {
		t.Fatalf("NewRecipient() failed: %v", err)
	}
	b, err := w.NewRecipient()
	if err != nil {
		t.Fatalf("NewRecipient() failed: %v", err)
	}

	if a.Address == b.Address {
		t.Error("fresh recipients share an address")
	}
	if a.Address == w.Sender().Address {
		t.Error("recipient equals sender")
	}
	if len(w.Recipients()) != 2 {
		t.Fatalf("Recipients() count = %d, want 2", len(w.Recipients()))
	}

	w.Discard()
	if len(w.Recipients()) != 0 {
		t.Errorf("Recipients() count after Discard = %d, want 0", len(w.Recipients()))
	}
	if a.HasKey() {
		t.Error("discarded recipient still holds a key")
	}
	if !w.Sender().HasKey() {
		t.Error("Discard dropped the sender key")
	}
}

func TestAccount_HasKey(t *testing.T) {
	var nilAccount *Account
	if nilAccount.HasKey() {
		t.Error("nil account reports a key")
	}

	watchOnly := &Account{Address: common.HexToAddress(testAddress)}
	if watchOnly.HasKey() {
		t.Error("address-only account reports a key")
	}
	if watchOnly.String() != testAddress {
		t.Errorf("String() = %s, want %s", watchOnly.String(), testAddress)
	}
}
