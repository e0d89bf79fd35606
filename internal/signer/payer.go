package signer

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// Payer holds the fee payer key that submits units and funds account creation.
type Payer struct {
	key solana.PrivateKey
}

func NewPayer(base58Key string) (*Payer, error) {
	if base58Key == "" {
		return nil, fmt.Errorf("payer key is required")
	}
	key, err := solana.PrivateKeyFromBase58(base58Key)
	if err != nil {
		return nil, fmt.Errorf("invalid payer key: %v", err)
	}
	return &Payer{key: key}, nil
}

// NewRandomPayer is used by the in-memory ledger where no funded key exists.
func NewRandomPayer() (*Payer, error) {
	key, err := solana.NewRandomPrivateKey()
	if err != nil {
		return nil, err
	}
	return &Payer{key: key}, nil
}

func (p *Payer) PublicKey() solana.PublicKey {
	return p.key.PublicKey()
}

// Sign signs a unit digest.
func (p *Payer) Sign(digest []byte) (solana.Signature, error) {
	return p.key.Sign(digest)
}
