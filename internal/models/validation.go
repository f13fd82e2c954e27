package models

import (
	"bytes"
	"fmt"

	"github.com/thanhnp/coin-ledger/internal/cryptoutil"
	"github.com/thanhnp/coin-ledger/internal/hashing"
)

// Check validates tx against the unspent outputs in view. It has no side
// effects; applying the spend is up to the caller.
//
// A regular transaction must:
//  1. carry the hash of its ID, type and data
//  2. spend only known outputs, matching their address and amount
//  3. sign every input with the key of the spent address
//  4. leave a fee within the configured bounds
//
// Fee and reward transactions mint their outputs and may not have inputs.
// A nil view holds no outputs.
func (tx *Transaction) Check(hp hashing.Provider, view OutputView, settings CoinSettings) error {
	if view == nil {
		view = MapView{}
	}
	computed := hp.ComputeHash(tx)
	if !bytes.Equal(tx.Hash, computed) {
		return &TransactionAssertionError{
			TransactionID: tx.ID,
			Reason:        ReasonInvalidHash,
			Err:           &HashMismatchError{Entity: "transaction", Stored: tx.Hash, Computed: computed},
		}
	}

	if !tx.Type.Valid() {
		return assertionf(tx, ReasonUnknownType, "type %d", tx.Type)
	}
	if tx.Data == nil {
		return assertionf(tx, ReasonMissingData, "transaction has no data")
	}
	for i, out := range tx.Data.Outputs {
		if out.Amount < 0 {
			return assertionf(tx, ReasonNegativeAmount, "output %d amount %d", i, out.Amount)
		}
	}
	outputTotal, ok := tx.OutputTotal()
	if !ok {
		return assertionf(tx, ReasonAmountOverflow, "output total overflows")
	}

	if tx.Type != TransactionRegular {
		if len(tx.Data.Inputs) != 0 {
			return assertionf(tx, ReasonUnexpectedInputs, "%s transaction has %d inputs", tx.Type, len(tx.Data.Inputs))
		}
		return nil
	}

	if err := tx.checkInputs(hp, view); err != nil {
		return err
	}

	inputTotal, ok := tx.InputTotal()
	if !ok {
		return assertionf(tx, ReasonAmountOverflow, "input total overflows")
	}
	if inputTotal < outputTotal {
		return assertionf(tx, ReasonInsufficientInputs, "inputs %d, outputs %d", inputTotal, outputTotal)
	}
	if fee := inputTotal - outputTotal; !settings.feeInRange(fee) {
		return assertionf(tx, ReasonFeeOutOfRange, "fee %d outside [%d, %d]", fee, settings.MinimumFee, settings.MaximumFee)
	}
	return nil
}

func (tx *Transaction) checkInputs(hp hashing.Provider, view OutputView) error {
	seen := make(map[OutPoint]bool, len(tx.Data.Inputs))
	for i, in := range tx.Data.Inputs {
		op := in.OutPoint()
		if seen[op] {
			return assertionf(tx, ReasonDoubleSpend, "input %d spends %s twice", i, op)
		}
		seen[op] = true

		if o, ok := view.(*overlayView); ok && o.isSpent(op) {
			return assertionf(tx, ReasonDoubleSpend, "input %d spends %s already spent in this block", i, op)
		}

		out, err := view.LookupOutput(op)
		if err != nil {
			return fmt.Errorf("failed to resolve input %s: %w", op, err)
		}
		if out == nil {
			return assertionf(tx, ReasonUnknownInput, "input %d references %s", i, op)
		}
		if !bytes.Equal(out.Address, in.Address) {
			return assertionf(tx, ReasonAddressMismatch, "input %d address does not own %s", i, op)
		}
		if out.Amount != in.Amount {
			return assertionf(tx, ReasonAmountMismatch, "input %d amount %d, output holds %d", i, in.Amount, out.Amount)
		}

		msg := SigningMessage(hp, in.TransactionID, in.Index, in.Address)
		if !cryptoutil.Verify(in.Address, in.Signature, msg) {
			return assertionf(tx, ReasonInvalidSignature, "input %d", i)
		}
	}
	return nil
}

// Fee returns the implicit fee of a checked regular transaction
func (tx *Transaction) Fee() int64 {
	if tx.Type != TransactionRegular {
		return 0
	}
	in, _ := tx.InputTotal()
	out, _ := tx.OutputTotal()
	return in - out
}
