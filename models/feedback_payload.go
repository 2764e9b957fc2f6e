package models

import (
	"fmt"
	"math/big"
	"strings"
	"unicode"

	"github.com/NomadCrew/feedback-attestation/errors"
	"github.com/NomadCrew/feedback-attestation/pkg/eas"
	"github.com/NomadCrew/feedback-attestation/types"
	"github.com/ethereum/go-ethereum/common"
)

// Schema declarations registered on-chain. The strings are part of the wire
// contract and must not be reformatted.
const (
	FeedbackSchema  = "uint256 id, string buttonName, uint256 amount"
	NotUsefulSchema = "uint256 id, string notUseful"
)

// maxUint256 is 2^256 - 1.
var maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

var (
	feedbackEncoder  = mustEncoder(FeedbackSchema)
	notUsefulEncoder = mustEncoder(NotUsefulSchema)
)

func mustEncoder(schema string) *eas.SchemaEncoder {
	enc, err := eas.NewSchemaEncoder(schema)
	if err != nil {
		panic(fmt.Sprintf("invalid built-in schema %q: %v", schema, err))
	}
	return enc
}

// EncodeOptions carries the configured schema UIDs and the numeric parsing mode.
type EncodeOptions struct {
	FeedbackSchemaUID  common.Hash
	NotUsefulSchemaUID common.Hash
	PermissiveNumbers  bool
}

// SchemaFor returns the schema declaration and UID a category attests against.
func (o EncodeOptions) SchemaFor(category types.FeedbackCategory) (string, common.Hash) {
	if category == types.FeedbackNotUseful {
		return NotUsefulSchema, o.NotUsefulSchemaUID
	}
	return FeedbackSchema, o.FeedbackSchemaUID
}

// SchemaUIDMismatch is a configured schema UID that does not match the UID
// derived from the schema declaration.
type SchemaUIDMismatch struct {
	Schema     string
	Configured common.Hash
	Derived    common.Hash
}

// SchemaUIDMismatches compares the configured UIDs with the registry UIDs of
// the built-in declarations, assuming they were registered with no resolver
// and as non-revocable. A schema registered any other way is reported too, so
// callers should warn rather than fail.
func (o EncodeOptions) SchemaUIDMismatches() []SchemaUIDMismatch {
	var out []SchemaUIDMismatch
	for _, s := range []struct {
		schema string
		uid    common.Hash
	}{
		{FeedbackSchema, o.FeedbackSchemaUID},
		{NotUsefulSchema, o.NotUsefulSchemaUID},
	} {
		derived := eas.SchemaUID(s.schema, common.Address{}, false)
		if derived != s.uid {
			out = append(out, SchemaUIDMismatch{Schema: s.schema, Configured: s.uid, Derived: derived})
		}
	}
	return out
}

// EncodePayload maps a category and form to the attestation payload. Positive
// and negative feedback share one schema.
func EncodePayload(category types.FeedbackCategory, form types.FormState, opts EncodeOptions) (types.EncodedPayload, error) {
	if !category.IsValid() {
		return types.EncodedPayload{}, errors.ValidationFailed("Invalid feedback category", string(category))
	}

	id, err := parseUint256(types.FieldID, form.ID, opts.PermissiveNumbers)
	if err != nil {
		return types.EncodedPayload{}, err
	}

	var (
		enc   *eas.SchemaEncoder
		items []eas.SchemaItem
	)
	if category == types.FeedbackNotUseful {
		enc = notUsefulEncoder
		items = []eas.SchemaItem{
			{Name: types.FieldID, Value: id, Type: "uint256"},
			{Name: types.FieldNotUseful, Value: form.NotUseful, Type: "string"},
		}
	} else {
		amount := new(big.Int)
		if strings.TrimSpace(form.Amount) != "" {
			amount, err = parseUint256(types.FieldAmount, form.Amount, opts.PermissiveNumbers)
			if err != nil {
				return types.EncodedPayload{}, err
			}
		}
		enc = feedbackEncoder
		items = []eas.SchemaItem{
			{Name: types.FieldID, Value: id, Type: "uint256"},
			{Name: types.FieldButtonName, Value: form.ButtonName, Type: "string"},
			{Name: types.FieldAmount, Value: amount, Type: "uint256"},
		}
	}

	data, err := enc.EncodeData(items)
	if err != nil {
		return types.EncodedPayload{}, errors.EncodingFault("payload", err)
	}

	_, uid := opts.SchemaFor(category)
	return types.EncodedPayload{
		SchemaUID: uid,
		Schema:    enc.Schema(),
		Category:  category,
		Data:      data,
	}, nil
}

// parseUint256 reads a decimal unsigned integer. Strict mode accepts digits
// only (surrounding whitespace trimmed). Permissive mode skips leading
// whitespace and an optional '+' and stops at the first non-digit, but a
// 0x/0X prefix is rejected rather than read as a leading zero. Either way at
// least one digit is required.
func parseUint256(field, raw string, permissive bool) (*big.Int, error) {
	s := strings.TrimSpace(raw)
	if permissive {
		s = strings.TrimPrefix(strings.TrimLeftFunc(raw, unicode.IsSpace), "+")
		if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
			return nil, errors.EncodingFault(field, fmt.Errorf("%q: hexadecimal values are not accepted", raw))
		}
		end := 0
		for end < len(s) && s[end] >= '0' && s[end] <= '9' {
			end++
		}
		s = s[:end]
	}

	if s == "" {
		return nil, errors.EncodingFault(field, fmt.Errorf("%q is not a number", raw))
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return nil, errors.EncodingFault(field, fmt.Errorf("%q is not an unsigned integer", raw))
		}
	}

	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, errors.EncodingFault(field, fmt.Errorf("%q is not an unsigned integer", raw))
	}
	if n.Cmp(maxUint256) > 0 {
		return nil, errors.EncodingFault(field, fmt.Errorf("%q exceeds uint256", raw))
	}
	return n, nil
}

// DecodePayload reverses EncodePayload for one of the two feedback schemas,
// rendering every value as text.
func DecodePayload(schema string, data []byte) (map[string]string, error) {
	var enc *eas.SchemaEncoder
	switch schema {
	case FeedbackSchema:
		enc = feedbackEncoder
	case NotUsefulSchema:
		enc = notUsefulEncoder
	default:
		return nil, fmt.Errorf("unknown schema %q", schema)
	}

	items, err := enc.DecodeData(data)
	if err != nil {
		return nil, err
	}
	fields := make(map[string]string, len(items))
	for _, item := range items {
		fields[item.Name] = fmt.Sprint(item.Value)
	}
	return fields, nil
}
