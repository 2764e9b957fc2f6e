package models

import (
	"math/big"
	"strings"
	"testing"

	"github.com/NomadCrew/feedback-attestation/errors"
	"github.com/NomadCrew/feedback-attestation/pkg/eas"
	"github.com/NomadCrew/feedback-attestation/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testOpts = EncodeOptions{
	FeedbackSchemaUID:  common.HexToHash("0xf96cba05e00404771493fc70715f5afa43f784d8bd464954358f216fc014e090"),
	NotUsefulSchemaUID: common.HexToHash("0x74e3a8fc864bea385b06b01eae46dc3252332350946fd1a454464b40e08c549f"),
}

func decode(t *testing.T, payload types.EncodedPayload) []eas.SchemaItem {
	t.Helper()
	enc, err := eas.NewSchemaEncoder(payload.Schema)
	require.NoError(t, err)
	items, err := enc.DecodeData(payload.Data)
	require.NoError(t, err)
	return items
}

func TestEncodePayload_SharedFeedbackSchema(t *testing.T) {
	for _, category := range []types.FeedbackCategory{types.FeedbackPositive, types.FeedbackNegative} {
		t.Run(string(category), func(t *testing.T) {
			payload, err := EncodePayload(category, types.FormState{
				ID:         "1",
				ButtonName: "Dashboard",
				Amount:     "50",
			}, testOpts)
			require.NoError(t, err)

			assert.Equal(t, testOpts.FeedbackSchemaUID, payload.SchemaUID)
			assert.Equal(t, FeedbackSchema, payload.Schema)
			assert.Equal(t, category, payload.Category)

			items := decode(t, payload)
			require.Len(t, items, 3)
			assert.Equal(t, []string{"id", "buttonName", "amount"}, []string{items[0].Name, items[1].Name, items[2].Name})
			assert.Equal(t, 0, big.NewInt(1).Cmp(items[0].Value.(*big.Int)))
			assert.Equal(t, "Dashboard", items[1].Value)
			assert.Equal(t, 0, big.NewInt(50).Cmp(items[2].Value.(*big.Int)))
		})
	}
}

func TestEncodePayload_NotUseful(t *testing.T) {
	payload, err := EncodePayload(types.FeedbackNotUseful, types.FormState{
		ID:         "2",
		NotUseful:  "Settings page",
		ButtonName: "ignored",
		Amount:     "ignored",
	}, testOpts)
	require.NoError(t, err)

	assert.Equal(t, testOpts.NotUsefulSchemaUID, payload.SchemaUID)
	assert.Equal(t, NotUsefulSchema, payload.Schema)

	items := decode(t, payload)
	require.Len(t, items, 2)
	assert.Equal(t, "id", items[0].Name)
	assert.Equal(t, 0, big.NewInt(2).Cmp(items[0].Value.(*big.Int)))
	assert.Equal(t, "notUseful", items[1].Name)
	assert.Equal(t, "Settings page", items[1].Value)
}

func TestEncodePayload_EmptyAmountIsZero(t *testing.T) {
	payload, err := EncodePayload(types.FeedbackPositive, types.FormState{ID: "3", ButtonName: "Home"}, testOpts)
	require.NoError(t, err)

	items := decode(t, payload)
	assert.Equal(t, 0, new(big.Int).Cmp(items[2].Value.(*big.Int)))
	assert.Equal(t, "Home", items[1].Value)
}

func TestEncodePayload_Deterministic(t *testing.T) {
	form := types.FormState{ID: "42", ButtonName: "Checkout", Amount: "7"}
	a, err := EncodePayload(types.FeedbackNegative, form, testOpts)
	require.NoError(t, err)
	b, err := EncodePayload(types.FeedbackNegative, form, testOpts)
	require.NoError(t, err)
	assert.Equal(t, a.Data, b.Data)

	c, err := EncodePayload(types.FeedbackPositive, form, testOpts)
	require.NoError(t, err)
	assert.Equal(t, a.Data, c.Data)
}

func TestEncodePayload_EncodingFaults(t *testing.T) {
	tests := []struct {
		name     string
		category types.FeedbackCategory
		form     types.FormState
	}{
		{"non-numeric id", types.FeedbackPositive, types.FormState{ID: "abc", ButtonName: "x", Amount: "1"}},
		{"empty id", types.FeedbackNotUseful, types.FormState{NotUseful: "x"}},
		{"negative id", types.FeedbackNotUseful, types.FormState{ID: "-1", NotUseful: "x"}},
		{"trailing garbage in strict mode", types.FeedbackPositive, types.FormState{ID: "12abc", ButtonName: "x"}},
		{"non-numeric amount", types.FeedbackPositive, types.FormState{ID: "1", ButtonName: "x", Amount: "lots"}},
		{"id above uint256", types.FeedbackNotUseful, types.FormState{ID: "1" + strings.Repeat("0", 78), NotUseful: "x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := EncodePayload(tt.category, tt.form, testOpts)
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.EncodingFaultError))
		})
	}
}

func TestEncodePayload_InvalidCategory(t *testing.T) {
	_, err := EncodePayload("neutral", types.FormState{ID: "1"}, testOpts)
	assert.True(t, errors.IsType(err, errors.ValidationError))
}

func TestParseUint256(t *testing.T) {
	tests := []struct {
		raw        string
		permissive bool
		want       string
		wantErr    bool
	}{
		{raw: "0", want: "0"},
		{raw: " 17 ", want: "17"},
		{raw: "17px", wantErr: true},
		{raw: "17px", permissive: true, want: "17"},
		{raw: "  +8.5", permissive: true, want: "8"},
		{raw: "px17", permissive: true, wantErr: true},
		{raw: "", permissive: true, wantErr: true},
		{raw: "1e3", wantErr: true},
		{raw: "1e3", permissive: true, want: "1"},
		{raw: "0x1A", permissive: true, wantErr: true},
		{raw: " +0X10", permissive: true, wantErr: true},
		{raw: "0x1A", wantErr: true},
		{raw: "0", permissive: true, want: "0"},
		{raw: maxUint256.String(), want: maxUint256.String()},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			n, err := parseUint256("id", tt.raw, tt.permissive)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, n.String())
		})
	}
}

func TestEncodePayload_PermissiveNumbers(t *testing.T) {
	opts := testOpts
	opts.PermissiveNumbers = true

	lenient, err := EncodePayload(types.FeedbackPositive, types.FormState{ID: "1st", ButtonName: "Dashboard", Amount: "50 coins"}, opts)
	require.NoError(t, err)
	exact, err := EncodePayload(types.FeedbackPositive, types.FormState{ID: "1", ButtonName: "Dashboard", Amount: "50"}, testOpts)
	require.NoError(t, err)
	assert.Equal(t, exact.Data, lenient.Data)
}

func TestEncodeOptions_SchemaUIDMismatches(t *testing.T) {
	opts := EncodeOptions{
		FeedbackSchemaUID:  eas.SchemaUID(FeedbackSchema, common.Address{}, false),
		NotUsefulSchemaUID: eas.SchemaUID(NotUsefulSchema, common.Address{}, false),
	}
	assert.Empty(t, opts.SchemaUIDMismatches())

	opts.NotUsefulSchemaUID = common.HexToHash("0x01")
	mismatches := opts.SchemaUIDMismatches()
	require.Len(t, mismatches, 1)
	assert.Equal(t, NotUsefulSchema, mismatches[0].Schema)
	assert.Equal(t, common.HexToHash("0x01"), mismatches[0].Configured)
	assert.Equal(t, eas.SchemaUID(NotUsefulSchema, common.Address{}, false), mismatches[0].Derived)
}
