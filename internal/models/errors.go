package models

import (
	"encoding/hex"
	"fmt"
)

// HashMismatchError reports a stored hash that differs from the one
// recomputed from content. It indicates tampering or a bug and is never
// repaired.
type HashMismatchError struct {
	Entity   string
	Stored   []byte
	Computed []byte
}

func (e *HashMismatchError) Error() string {
	return fmt.Sprintf("invalid %s hash %s, computed %s", e.Entity, hex.EncodeToString(e.Stored), hex.EncodeToString(e.Computed))
}

// Reason names the rule a transaction broke
type Reason int

const (
	ReasonInvalidHash Reason = iota + 1
	ReasonMissingData
	ReasonUnknownInput
	ReasonAddressMismatch
	ReasonAmountMismatch
	ReasonInvalidSignature
	ReasonDoubleSpend
	ReasonNegativeAmount
	ReasonAmountOverflow
	ReasonInsufficientInputs
	ReasonFeeOutOfRange
	ReasonUnexpectedInputs
	ReasonDuplicateTransaction
	ReasonRewardExceeded
	ReasonFeeExceeded
	ReasonUnknownType
)

var reasonNames = map[Reason]string{
	ReasonInvalidHash:          "invalid hash",
	ReasonMissingData:          "missing data",
	ReasonUnknownInput:         "unknown input",
	ReasonAddressMismatch:      "address mismatch",
	ReasonAmountMismatch:       "amount mismatch",
	ReasonInvalidSignature:     "invalid signature",
	ReasonDoubleSpend:          "double spend",
	ReasonNegativeAmount:       "negative amount",
	ReasonAmountOverflow:       "amount overflow",
	ReasonInsufficientInputs:   "outputs exceed inputs",
	ReasonFeeOutOfRange:        "fee out of range",
	ReasonUnexpectedInputs:     "unexpected inputs",
	ReasonDuplicateTransaction: "duplicate transaction",
	ReasonRewardExceeded:       "reward exceeded",
	ReasonFeeExceeded:          "fee exceeded",
	ReasonUnknownType:          "unknown transaction type",
}

func (r Reason) String() string {
	if s, ok := reasonNames[r]; ok {
		return s
	}
	return fmt.Sprintf("reason(%d)", int(r))
}

// TransactionAssertionError is a semantic validation failure of one
// transaction.
type TransactionAssertionError struct {
	TransactionID string
	Reason        Reason
	Detail        string
	Err           error
}

func (e *TransactionAssertionError) Error() string {
	msg := fmt.Sprintf("transaction %s: %s", e.TransactionID, e.Reason)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *TransactionAssertionError) Unwrap() error {
	return e.Err
}

func assertionf(tx *Transaction, reason Reason, format string, args ...interface{}) *TransactionAssertionError {
	return &TransactionAssertionError{
		TransactionID: tx.ID,
		Reason:        reason,
		Detail:        fmt.Sprintf(format, args...),
	}
}

// ChainLinkageError reports a block that does not extend the current tip.
type ChainLinkageError struct {
	Field    string
	Expected string
	Got      string
}

func (e *ChainLinkageError) Error() string {
	return fmt.Sprintf("block does not extend tip: %s is %s, expected %s", e.Field, e.Got, e.Expected)
}

// ArgumentError reports misuse of a builder or API, detected before any
// cryptographic or storage work.
type ArgumentError struct {
	Argument string
	Message  string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("invalid argument %s: %s", e.Argument, e.Message)
}
