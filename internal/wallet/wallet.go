package wallet

import (
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	hdwallet "github.com/miguelmota/go-ethereum-hdwallet"

	"github.com/0xmhha/txverify/internal/errs"
)

// Account is an address with an optional private key
type Account struct {
	Address common.Address
	Key     *ecdsa.PrivateKey
}

// HasKey returns true if the account can sign
func (a *Account) HasKey() bool {
	return a != nil && a.Key != nil
}

// String returns the checksummed address
func (a *Account) String() string {
	return a.Address.Hex()
}

// Wallet holds the funded sender and the recipients generated during a run
type Wallet struct {
	sender     *Account
	recipients []*Account
	hdWallet   *hdwallet.Wallet
}

// NewFromPrivateKey creates a wallet whose sender is the given hex key
func NewFromPrivateKey(privateKeyHex string) (*Wallet, error) {
	sender, err := AccountFromKey(privateKeyHex)
	if err != nil {
		return nil, err
	}
	return &Wallet{sender: sender}, nil
}

// NewFromMnemonic creates a wallet whose sender is derived from a BIP39
// mnemonic at m/44'/60'/0'/0/index
func NewFromMnemonic(mnemonic string, index uint32) (*Wallet, error) {
	hd, err := hdwallet.NewFromMnemonic(mnemonic)
	if err != nil {
		return nil, errs.Signing("wallet.NewFromMnemonic", fmt.Errorf("invalid mnemonic: %w", err))
	}

	path := hdwallet.MustParseDerivationPath(fmt.Sprintf("m/44'/60'/0'/0/%d", index))
	account, err := hd.Derive(path, false)
	if err != nil {
		return nil, errs.Signing("wallet.NewFromMnemonic", fmt.Errorf("failed to derive account %d: %w", index, err))
	}

	key, err := hd.PrivateKey(account)
	if err != nil {
		return nil, errs.Signing("wallet.NewFromMnemonic", fmt.Errorf("failed to get private key: %w", err))
	}

	return &Wallet{
		sender:   &Account{Address: account.Address, Key: key},
		hdWallet: hd,
	}, nil
}

// AccountFromKey parses a hex private key, with or without 0x prefix
func AccountFromKey(privateKeyHex string) (*Account, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, errs.Signing("wallet.AccountFromKey", fmt.Errorf("invalid private key: %w", err))
	}
	return &Account{Address: crypto.PubkeyToAddress(key.PublicKey), Key: key}, nil
}

// Generate creates a fresh random account
func Generate() (*Account, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, errs.Signing("wallet.Generate", fmt.Errorf("failed to generate key: %w", err))
	}
	return &Account{Address: crypto.PubkeyToAddress(key.PublicKey), Key: key}, nil
}

// Sender returns the funded sender account
func (w *Wallet) Sender() *Account {
	return w.sender
}

// NewRecipient generates a fresh recipient and tracks it until Discard
func (w *Wallet) NewRecipient() (*Account, error) {
	account, err := Generate()
	if err != nil {
		return nil, err
	}
	w.recipients = append(w.recipients, account)
	return account, nil
}

// Recipients returns the recipients generated so far
func (w *Wallet) Recipients() []*Account {
	return w.recipients
}

// Discard drops the generated recipients and their keys
func (w *Wallet) Discard() {
	for _, r := range w.recipients {
		r.Key = nil
	}
	w.recipients = nil
}

// IsMnemonic returns true if the sender was derived from a mnemonic
func (w *Wallet) IsMnemonic() bool {
	return w.hdWallet != nil
}
