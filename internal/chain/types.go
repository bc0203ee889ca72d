package chain

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"

	"github.com/casthq/warden/pkg/errors"
)

// TxKind distinguishes the legacy and versioned transaction shapes.
type TxKind string

// Transaction shapes.
const (
	TxLegacy    TxKind = "legacy"
	TxVersioned TxKind = "versioned"
)

// AccountMeta names one account an instruction touches.
type AccountMeta struct {
	PublicKey  string `json:"pubkey"`
	IsSigner   bool   `json:"isSigner"`
	IsWritable bool   `json:"isWritable"`
}

// Instruction is one program invocation inside a transaction.
type Instruction struct {
	ProgramID string        `json:"programId"`
	Accounts  []AccountMeta `json:"accounts"`
	Data      []byte        `json:"data"`
}

// Transaction is an unsigned transaction. The vault signs its Message.
type Transaction struct {
	Kind            TxKind        `json:"kind"`
	FeePayer        string        `json:"feePayer"`
	RecentBlockhash string        `json:"recentBlockhash"`
	Instructions    []Instruction `json:"instructions"`
	Memo            string        `json:"memo,omitempty"`
}

// SignedTransaction pairs a transaction with its fee payer's signature.
type SignedTransaction struct {
	Tx        *Transaction `json:"tx"`
	Signature []byte       `json:"signature"`
	Signer    string       `json:"signer"`
}

// Message returns the canonical byte encoding signed by the fee payer.
// Versioned transactions prepend a version byte so the two shapes never
// produce colliding messages.
func (t *Transaction) Message() []byte {
	var buf bytes.Buffer

	if t.Kind == TxVersioned {
		buf.WriteByte(0x80) // version 0 marker
	}
	writeString(&buf, t.FeePayer)
	writeString(&buf, t.RecentBlockhash)

	var n [4]byte
	binary.LittleEndian.PutUint32(n[:], uint32(len(t.Instructions)))
	buf.Write(n[:])

	for _, ins := range t.Instructions {
		writeString(&buf, ins.ProgramID)
		binary.LittleEndian.PutUint32(n[:], uint32(len(ins.Accounts)))
		buf.Write(n[:])
		for _, acc := range ins.Accounts {
			writeString(&buf, acc.PublicKey)
			flags := byte(0)
			if acc.IsSigner {
				flags |= 1
			}
			if acc.IsWritable {
				flags |= 2
			}
			buf.WriteByte(flags)
		}
		binary.LittleEndian.PutUint32(n[:], uint32(len(ins.Data)))
		buf.Write(n[:])
		buf.Write(ins.Data)
	}

	writeString(&buf, t.Memo)
	return buf.Bytes()
}

func writeString(buf *bytes.Buffer, s string) {
	var n [4]byte
	binary.LittleEndian.PutUint32(n[:], uint32(len(s)))
	buf.Write(n[:])
	buf.WriteString(s)
}

// Serialize encodes the transaction for transport (base64 over JSON).
func (t *Transaction) Serialize() (string, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return "", errors.Internal("serializing transaction", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// DeserializeTransaction decodes a transaction produced by Serialize.
func DeserializeTransaction(encoded string) (*Transaction, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, errors.Validation("invalid base64 transaction: %v", err)
	}
	var tx Transaction
	if err := json.Unmarshal(data, &tx); err != nil {
		return nil, errors.Validation("invalid transaction payload: %v", err)
	}
	if tx.Kind == "" {
		tx.Kind = TxLegacy
	}
	return &tx, nil
}

// ParseInstructions converts a caller-supplied instructions array (as
// decoded from JSON) into typed instructions. Data may be base64 or a
// byte array.
func ParseInstructions(raw []any) ([]Instruction, error) {
	out := make([]Instruction, 0, len(raw))
	for i, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, errors.Validation("instruction %d is not an object", i)
		}

		ins := Instruction{}
		if pid, ok := m["programId"].(string); ok {
			ins.ProgramID = pid
		}
		if ins.ProgramID == "" {
			return nil, errors.Validation("instruction %d missing programId", i)
		}

		if accs, ok := m["accounts"].([]any); ok {
			for j, a := range accs {
				am, ok := a.(map[string]any)
				if !ok {
					return nil, errors.Validation("instruction %d account %d is not an object", i, j)
				}
				meta := AccountMeta{}
				if pk, ok := am["pubkey"].(string); ok {
					meta.PublicKey = pk
				}
				if s, ok := am["isSigner"].(bool); ok {
					meta.IsSigner = s
				}
				if w, ok := am["isWritable"].(bool); ok {
					meta.IsWritable = w
				}
				ins.Accounts = append(ins.Accounts, meta)
			}
		}

		switch data := m["data"].(type) {
		case string:
			decoded, err := base64.StdEncoding.DecodeString(data)
			if err != nil {
				return nil, errors.Validation("instruction %d data is not valid base64", i)
			}
			ins.Data = decoded
		case []any:
			for _, b := range data {
				f, ok := b.(float64)
				if !ok || f < 0 || f > 255 {
					return nil, errors.Validation("instruction %d data contains a non-byte value", i)
				}
				ins.Data = append(ins.Data, byte(f))
			}
		case nil:
		default:
			return nil, errors.Validation("instruction %d data has unsupported type", i)
		}

		out = append(out, ins)
	}
	return out, nil
}
