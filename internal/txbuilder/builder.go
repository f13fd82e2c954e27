// Package txbuilder assembles signed transactions from a set of unspent
// outputs.
package txbuilder

import (
	"fmt"

	uuid "github.com/satori/go.uuid"

	"github.com/thanhnp/coin-ledger/internal/cryptoutil"
	"github.com/thanhnp/coin-ledger/internal/hashing"
	"github.com/thanhnp/coin-ledger/internal/models"
)

// Builder accumulates the parts of a transaction. Nothing is validated
// until Build.
type Builder struct {
	hp            hashing.Provider
	utxo          []models.UnspentOutput
	outputAddress []byte
	amount        *int64
	changeAddress []byte
	fee           int64
	secret        []byte
	txType        models.TransactionType
}

// New creates a Builder for a regular transaction
func New(hp hashing.Provider) *Builder {
	return &Builder{hp: hp, txType: models.TransactionRegular}
}

// From sets the unspent outputs funding the transaction
func (b *Builder) From(utxo []models.UnspentOutput) *Builder {
	b.utxo = utxo
	return b
}

// To sets the destination address and amount
func (b *Builder) To(address []byte, amount int64) *Builder {
	b.outputAddress = address
	b.amount = &amount
	return b
}

// Change sets where the change goes. It defaults to the signer's address.
func (b *Builder) Change(address []byte) *Builder {
	b.changeAddress = address
	return b
}

// Fee sets the fee left to the block producer
func (b *Builder) Fee(amount int64) *Builder {
	b.fee = amount
	return b
}

// Sign sets the secret whose key pair signs every input
func (b *Builder) Sign(secret []byte) *Builder {
	b.secret = secret
	return b
}

// Type sets the transaction type
func (b *Builder) Type(t models.TransactionType) *Builder {
	b.txType = t
	return b
}

// Build returns the signed transaction with a fresh random ID and no hash.
// Change is only added when positive; a funding set too small for amount
// plus fee is accepted here and rejected by Check.
func (b *Builder) Build() (*models.Transaction, error) {
	if b.utxo == nil {
		return nil, &models.ArgumentError{Argument: "utxo", Message: "a list of unspent outputs is required"}
	}
	if b.outputAddress == nil {
		return nil, &models.ArgumentError{Argument: "to", Message: "a destination address is required"}
	}
	if b.amount == nil {
		return nil, &models.ArgumentError{Argument: "amount", Message: "a transaction amount is required"}
	}
	if len(b.secret) == 0 {
		return nil, &models.ArgumentError{Argument: "secret", Message: "a signing secret is required"}
	}

	keys, err := cryptoutil.KeyPairFromSecret(b.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to derive signing key: %w", err)
	}

	var total int64
	inputs := make([]models.TransactionInput, 0, len(b.utxo))
	for _, u := range b.utxo {
		msg := models.SigningMessage(b.hp, u.TransactionID, u.Index, u.Address)
		sig, err := cryptoutil.Sign(keys.PrivateKey, msg)
		if err != nil {
			return nil, fmt.Errorf("failed to sign input %s: %w", u.OutPoint(), err)
		}
		inputs = append(inputs, models.TransactionInput{
			TransactionID: u.TransactionID,
			Index:         u.Index,
			Address:       u.Address,
			Amount:        u.Amount,
			Signature:     sig,
		})
		total += u.Amount
	}

	outputs := []models.TransactionOutput{{Address: b.outputAddress, Amount: *b.amount}}

	if change := total - *b.amount - b.fee; change > 0 {
		changeAddress := b.changeAddress
		if changeAddress == nil {
			changeAddress = []byte(keys.PublicKey)
		}
		outputs = append(outputs, models.TransactionOutput{Address: changeAddress, Amount: change})
	}

	return &models.Transaction{
		ID:   uuid.NewV4().String(),
		Type: b.txType,
		Data: &models.TransactionData{
			Inputs:  inputs,
			Outputs: outputs,
		},
	}, nil
}
