package core

// Client-side key custody for the gateway (spec.md §6 "client-facing"
// operations all need a signer behind them). Grounded on the teacher's
// core/wallet.go: Ed25519 keys only, SLIP-0010-style hardened HD derivation
// over a BIP-39 seed, addresses derived from the public key. Retargeted from
// the teacher's account-model Transaction/TxPool to this package's envelope
// types: SignTransactionData produces the Signature that goes into a
// Transaction alongside a TransactionData.
//
// Import hygiene: wallet depends only on crypto + logging + the bip39
// library, never on object_store/gateway_node, to stay at the lowest tier.

import (
	"crypto/ed25519"
	"crypto/hmac"
	crand "crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/binary"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
	bip39 "github.com/tyler-smith/go-bip39"
)

const (
	hardenedOffset uint32 = 0x80000000
	masterHMACKey         = "ed25519 seed" // SLIP-0010 master-key string
)

func SetWalletLogger(l *log.Logger) { globalLogger = l }

var globalLogger = log.New()

// HDWallet keeps master key material in-memory only. Derivation is
// SLIP-0010 hardened-only, path m / account' / index' (ed25519 has no
// unhardened children).
type HDWallet struct {
	seed        []byte
	masterKey   []byte
	masterChain []byte
	logger      *log.Logger
}

// Seed returns a copy of the wallet's master seed. Callers should securely
// wipe the returned slice after use.
func (w *HDWallet) Seed() []byte {
	out := make([]byte, len(w.seed))
	copy(out, w.seed)
	return out
}

// NewRandomWallet generates entropyBits (128/256) of RNG entropy and returns
// a wallet plus its mnemonic. The caller must wipe or store the mnemonic
// securely.
func NewRandomWallet(entropyBits int) (*HDWallet, string, error) {
	if entropyBits != 128 && entropyBits != 256 {
		return nil, "", fmt.Errorf("unsupported entropy size %d", entropyBits)
	}
	entropy, err := bip39.NewEntropy(entropyBits)
	if err != nil {
		return nil, "", fmt.Errorf("entropy: %w", err)
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return nil, "", fmt.Errorf("mnemonic: %w", err)
	}
	seed := bip39.NewSeed(mnemonic, "")
	w, err := NewHDWalletFromSeed(seed, globalLogger)
	if err != nil {
		return nil, "", err
	}
	return w, mnemonic, nil
}

// WalletFromMnemonic imports an existing BIP-39 phrase.
func WalletFromMnemonic(mnemonic, passphrase string) (*HDWallet, error) {
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, errors.New("invalid mnemonic checksum")
	}
	seed := bip39.NewSeed(mnemonic, passphrase)
	return NewHDWalletFromSeed(seed, globalLogger)
}

func NewHDWalletFromSeed(seed []byte, lg *log.Logger) (*HDWallet, error) {
	if len(seed) < 16 {
		return nil, errors.New("seed too short")
	}
	I := hmacSHA512([]byte(masterHMACKey), seed)
	w := &HDWallet{
		seed:        seed,
		masterKey:   I[:32],
		masterChain: I[32:],
		logger:      lg,
	}
	lg.Infof("wallet: master key initialised (%d bytes seed)", len(seed))
	return w, nil
}

// derivePrivate returns the key material and chain code for a hardened
// index. index must already carry the hardened offset.
func derivePrivate(parentKey, parentChain []byte, index uint32) (key, ccode []byte, err error) {
	if index < hardenedOffset {
		return nil, nil, errors.New("non-hardened derivation not supported for ed25519")
	}
	data := make([]byte, 1+32+4)
	copy(data[1:], parentKey)
	binary.BigEndian.PutUint32(data[33:], index)
	I := hmacSHA512(parentChain, data)
	return I[:32], I[32:], nil
}

func hmacSHA512(key, data []byte) []byte {
	h := hmac.New(sha512.New, key)
	h.Write(data)
	return h.Sum(nil)
}

// PrivateKey returns the ed25519 key pair for derivation path
// m / account' / index'. account and index are hardened internally.
func (w *HDWallet) PrivateKey(account, index uint32) (ed25519.PrivateKey, ed25519.PublicKey, error) {
	account |= hardenedOffset
	index |= hardenedOffset

	k1, c1, err := derivePrivate(w.masterKey, w.masterChain, account)
	if err != nil {
		return nil, nil, err
	}
	k2, _, err := derivePrivate(k1, c1, index)
	if err != nil {
		return nil, nil, err
	}
	priv := ed25519.NewKeyFromSeed(k2)
	pub := priv.Public().(ed25519.PublicKey)
	return priv, pub, nil
}

// pubKeyToAddress truncates the raw ed25519 public key's SHA-256 digest to
// the gateway's 20-byte Address width, matching the derivation scheme used
// for account identifiers elsewhere in this package.
func pubKeyToAddress(pub ed25519.PublicKey) Address {
	sum := sha256.Sum256(pub)
	var out Address
	copy(out[:], sum[:20])
	return out
}

// NewAddress derives the (account, index) key pair and returns its Address.
func (w *HDWallet) NewAddress(account, index uint32) (Address, error) {
	_, pub, err := w.PrivateKey(account, index)
	if err != nil {
		return Address{}, err
	}
	return pubKeyToAddress(pub), nil
}

// SignTransactionData derives the (account, index) key and signs data,
// returning the envelope Signature and the signer's Address. Callers embed
// both into a Transaction (common_structs.go) before submitting it to
// GatewayState.ExecuteTransaction.
func (w *HDWallet) SignTransactionData(data TransactionData, account, index uint32) (Signature, Address, error) {
	priv, pub, err := w.PrivateKey(account, index)
	if err != nil {
		return Signature{}, Address{}, err
	}
	addr := pubKeyToAddress(pub)

	encoded, err := EncodeTransactionData(data)
	if err != nil {
		return Signature{}, Address{}, fmt.Errorf("wallet: encode transaction data: %w", err)
	}
	sig, err := Sign(encoded, priv)
	if err != nil {
		return Signature{}, Address{}, err
	}
	w.logger.Printf("wallet: signed transaction for %s (account %d idx %d)", addr.Hex(), account, index)
	return sig, addr, nil
}

// RandomMnemonicEntropy produces cryptographically secure random entropy of
// the given bit length.
func RandomMnemonicEntropy(bits int) ([]byte, error) {
	if bits%32 != 0 {
		return nil, errors.New("entropy bits must be multiple of 32")
	}
	b := make([]byte, bits/8)
	if _, err := crand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}

// Wipe zeroes a byte slice in place (best-effort; the GC may still hold a
// copy elsewhere).
func Wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
