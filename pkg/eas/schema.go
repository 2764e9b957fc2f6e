package eas

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// SchemaItem is one named, typed value of an attestation payload.
type SchemaItem struct {
	Name  string
	Value interface{}
	Type  string
}

type schemaField struct {
	name string
	typ  string
	arg  abi.Argument
}

// SchemaEncoder ABI-encodes values for a schema declared as
// "<type> <name>, <type> <name>, ...".
type SchemaEncoder struct {
	schema string
	fields []schemaField
	args   abi.Arguments
}

// NewSchemaEncoder parses a schema declaration.
func NewSchemaEncoder(schema string) (*SchemaEncoder, error) {
	if strings.TrimSpace(schema) == "" {
		return nil, fmt.Errorf("empty schema")
	}

	enc := &SchemaEncoder{schema: schema}
	seen := make(map[string]bool)

	for i, part := range strings.Split(schema, ",") {
		tokens := strings.Fields(part)
		if len(tokens) != 2 {
			return nil, fmt.Errorf("schema field %d: expected \"<type> <name>\", got %q", i, strings.TrimSpace(part))
		}
		typ, name := tokens[0], tokens[1]
		if typ == "ipfsHash" {
			typ = "bytes32"
		}
		if seen[name] {
			return nil, fmt.Errorf("schema field %d: duplicate name %q", i, name)
		}
		seen[name] = true

		abiType, err := abi.NewType(typ, "", nil)
		if err != nil {
			return nil, fmt.Errorf("schema field %q: %w", name, err)
		}

		arg := abi.Argument{Name: name, Type: abiType}
		enc.fields = append(enc.fields, schemaField{name: name, typ: typ, arg: arg})
		enc.args = append(enc.args, arg)
	}

	return enc, nil
}

// Schema returns the declaration the encoder was built from.
func (e *SchemaEncoder) Schema() string {
	return e.schema
}

// EncodeData packs items in schema order. Names and types must match the
// declaration position by position.
func (e *SchemaEncoder) EncodeData(items []SchemaItem) ([]byte, error) {
	if len(items) != len(e.fields) {
		return nil, fmt.Errorf("schema has %d fields, got %d values", len(e.fields), len(items))
	}

	values := make([]interface{}, len(items))
	for i, item := range items {
		field := e.fields[i]
		if item.Name != field.name {
			return nil, fmt.Errorf("field %d: expected name %q, got %q", i, field.name, item.Name)
		}
		if item.Type != field.typ {
			return nil, fmt.Errorf("field %q: expected type %q, got %q", field.name, field.typ, item.Type)
		}
		v, err := normalizeValue(field.arg.Type, item.Value)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", field.name, err)
		}
		values[i] = v
	}

	data, err := e.args.Pack(values...)
	if err != nil {
		return nil, fmt.Errorf("abi pack: %w", err)
	}
	return data, nil
}

// DecodeData unpacks an encoded payload back into schema items.
func (e *SchemaEncoder) DecodeData(data []byte) ([]SchemaItem, error) {
	values, err := e.args.Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("abi unpack: %w", err)
	}

	items := make([]SchemaItem, len(values))
	for i, v := range values {
		items[i] = SchemaItem{Name: e.fields[i].name, Value: v, Type: e.fields[i].typ}
	}
	return items, nil
}

// SchemaUID computes the registry identifier of a schema registration:
// keccak256(abi.encodePacked(schema, resolver, revocable)).
func SchemaUID(schema string, resolver common.Address, revocable bool) common.Hash {
	revocableByte := byte(0)
	if revocable {
		revocableByte = 1
	}
	return crypto.Keccak256Hash([]byte(schema), resolver.Bytes(), []byte{revocableByte})
}

// normalizeValue widens plain Go integers to *big.Int for the big ABI integer types.
func normalizeValue(t abi.Type, v interface{}) (interface{}, error) {
	if (t.T != abi.UintTy && t.T != abi.IntTy) || t.Size <= 64 {
		return v, nil
	}

	switch n := v.(type) {
	case *big.Int:
		if n == nil {
			return nil, fmt.Errorf("nil integer")
		}
		if t.T == abi.UintTy && n.Sign() < 0 {
			return nil, fmt.Errorf("negative value %s for unsigned type", n)
		}
		return n, nil
	case int:
		return normalizeValue(t, big.NewInt(int64(n)))
	case int64:
		return normalizeValue(t, big.NewInt(n))
	case uint64:
		return new(big.Int).SetUint64(n), nil
	default:
		return v, nil
	}
}
