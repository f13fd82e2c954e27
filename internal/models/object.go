package models

import (
	"github.com/thanhnp/coin-ledger/internal/encoding"
	"github.com/thanhnp/coin-ledger/internal/hashing"
)

// ObjectKind tags a block object in the canonical encoding
type ObjectKind byte

const (
	KindTransaction ObjectKind = 0x01
)

// BlockObject is a ledger object carried by a block. The set of kinds is
// closed: every kind is listed in ObjectKind and decoded by readObject.
type BlockObject interface {
	encoding.Encodable
	encoding.Hashable

	Kind() ObjectKind
	Check(hp hashing.Provider, view OutputView, settings CoinSettings) error

	blockObject()
}

// Kind implements BlockObject
func (tx *Transaction) Kind() ObjectKind {
	return KindTransaction
}

func (tx *Transaction) blockObject() {}

const minObjectSize = 1 + minTransactionSize

func writeObject(w *encoding.Writer, obj BlockObject) {
	w.WriteUint8(byte(obj.Kind()))
	obj.Encode(w)
}

func readObject(r *encoding.Reader) BlockObject {
	kind := ObjectKind(r.ReadUint8("object.kind"))
	if r.Err() != nil {
		return nil
	}
	switch kind {
	case KindTransaction:
		return ReadTransaction(r)
	}
	r.Fail("object.kind", encoding.ErrInvalidValue)
	return nil
}
