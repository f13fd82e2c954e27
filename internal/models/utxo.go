package models

import (
	"fmt"
)

// OutPoint identifies a transaction output by its transaction ID and its
// position in that transaction's output list.
type OutPoint struct {
	TransactionID string
	Index         int64
}

func (o OutPoint) String() string {
	return fmt.Sprintf("%s:%d", o.TransactionID, o.Index)
}

// UnspentOutput is a spendable output together with the point naming it
type UnspentOutput struct {
	TransactionID string `json:"transaction_id"`
	Index         int64  `json:"index"`
	Address       []byte `json:"address"`
	Amount        int64  `json:"amount"`
}

// OutPoint returns the point naming u
func (u UnspentOutput) OutPoint() OutPoint {
	return OutPoint{TransactionID: u.TransactionID, Index: u.Index}
}

// OutputView resolves unspent outputs. LookupOutput returns nil, nil when
// the output is unknown or already spent.
type OutputView interface {
	LookupOutput(op OutPoint) (*TransactionOutput, error)
}

// MapView is an in-memory OutputView
type MapView map[OutPoint]TransactionOutput

// LookupOutput implements OutputView
func (m MapView) LookupOutput(op OutPoint) (*TransactionOutput, error) {
	out, ok := m[op]
	if !ok {
		return nil, nil
	}
	return &out, nil
}

// LedgerDelta is the UTXO-set transition implied by a validated block.
// Spent lists outputs consumed from the prior set, in spending order.
// Created holds outputs that remain unspent at the end of the block.
type LedgerDelta struct {
	Spent   []OutPoint
	Created map[OutPoint]TransactionOutput
}

// Apply applies the delta to an in-memory view
func (d *LedgerDelta) Apply(view MapView) {
	for _, op := range d.Spent {
		delete(view, op)
	}
	for op, out := range d.Created {
		view[op] = out
	}
}

// overlayView layers the effects of already checked transactions over a
// base view, so later transactions in a block can spend earlier outputs and
// nothing is spent twice.
type overlayView struct {
	base      OutputView
	created   map[OutPoint]TransactionOutput
	spent     map[OutPoint]bool
	baseSpent []OutPoint
}

func newOverlayView(base OutputView) *overlayView {
	return &overlayView{
		base:    base,
		created: make(map[OutPoint]TransactionOutput),
		spent:   make(map[OutPoint]bool),
	}
}

func (v *overlayView) LookupOutput(op OutPoint) (*TransactionOutput, error) {
	if v.spent[op] {
		return nil, nil
	}
	if out, ok := v.created[op]; ok {
		return &out, nil
	}
	if v.base == nil {
		return nil, nil
	}
	return v.base.LookupOutput(op)
}

func (v *overlayView) isSpent(op OutPoint) bool {
	return v.spent[op]
}

func (v *overlayView) apply(tx *Transaction) {
	if tx.Data == nil {
		return
	}
	for _, in := range tx.Data.Inputs {
		op := in.OutPoint()
		if _, ok := v.created[op]; ok {
			delete(v.created, op)
		} else {
			v.baseSpent = append(v.baseSpent, op)
		}
		v.spent[op] = true
	}
	for i, out := range tx.Data.Outputs {
		v.created[OutPoint{TransactionID: tx.ID, Index: int64(i)}] = out
	}
}

func (v *overlayView) delta() *LedgerDelta {
	created := make(map[OutPoint]TransactionOutput, len(v.created))
	for op, out := range v.created {
		created[op] = out
	}
	return &LedgerDelta{
		Spent:   append([]OutPoint(nil), v.baseSpent...),
		Created: created,
	}
}
