package coherence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSchemaMixedSegments(t *testing.T) {
	schema, err := ParseSchema("outcome={outcome}/tool_family={tool_family}/decile(step)/{step}.json")
	require.NoError(t, err)
	require.Len(t, schema, 4)

	assert.Equal(t, SegmentKey, schema[0].Kind)
	assert.Equal(t, "outcome", schema[0].Literal)
	assert.Equal(t, "outcome", schema[0].Key)

	assert.Equal(t, SegmentKey, schema[1].Kind)
	assert.Equal(t, "tool_family", schema[1].Literal)
	assert.Equal(t, "tool_family", schema[1].Key)

	assert.Equal(t, SegmentGroup, schema[2].Kind)
	assert.Equal(t, "decile", schema[2].Group)
	assert.Equal(t, "step", schema[2].Key)

	assert.Equal(t, SegmentKey, schema[3].Kind)
	assert.Equal(t, "step", schema[3].Key)
	assert.Equal(t, ".json", schema[3].FileSuffix)
}

func TestParseSchemaLiteralOnly(t *testing.T) {
	schema, err := ParseSchema("chronicle/insights.jsonl")
	require.NoError(t, err)
	require.Len(t, schema, 2)
	assert.Equal(t, SegmentLiteral, schema[0].Kind)
	assert.Equal(t, SegmentLiteral, schema[1].Kind)
}

func TestParseSchemaRejectsUnsupportedMix(t *testing.T) {
	_, err := ParseSchema("prefix{key}suffix")
	assert.Error(t, err)
}

func TestRequiredKeysFirstAppearanceOrder(t *testing.T) {
	schema, err := ParseSchema("a={a}/decile(b)/{a}.json")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, schema.RequiredKeys())
}

func TestGroupDecileBuckets(t *testing.T) {
	assert.Equal(t, "0-9", groupDecile(5))
	assert.Equal(t, "0-9", groupDecile(0))
	assert.Equal(t, "10-19", groupDecile(10))
	assert.Equal(t, "90-99", groupDecile(95))
}

func TestParseSchemaHexSegment(t *testing.T) {
	schema, err := ParseSchema("hex(content_hash)/{content_hash}.json")
	require.NoError(t, err)
	require.Len(t, schema, 2)
	assert.Equal(t, SegmentGroup, schema[0].Kind)
	assert.Equal(t, "hex", schema[0].Group)
	assert.Equal(t, "content_hash", schema[0].Key)
}

func TestParseSchemaEnumSegment(t *testing.T) {
	schema, err := ParseSchema("enum(outcome:success,failure,retry)/{step}.json")
	require.NoError(t, err)
	require.Len(t, schema, 2)
	assert.Equal(t, SegmentGroup, schema[0].Kind)
	assert.Equal(t, "enum", schema[0].Group)
	assert.Equal(t, "outcome", schema[0].Key)
	assert.Equal(t, []string{"success", "failure", "retry"}, schema[0].EnumValues)
}

func TestParseSchemaEnumSegmentRejectsMissingValues(t *testing.T) {
	_, err := ParseSchema("enum(outcome)")
	assert.Error(t, err)
}

func TestGroupHexValidatesAndLowercases(t *testing.T) {
	value, err := groupHex("DEADBEEF1234")
	require.NoError(t, err)
	assert.Equal(t, "deadbeef1234", value)

	_, err = groupHex("not-hex")
	assert.Error(t, err)
}

func TestGroupEnumValidatesMembership(t *testing.T) {
	value, err := groupEnum("failure", []string{"success", "failure", "retry"})
	require.NoError(t, err)
	assert.Equal(t, "failure", value)

	_, err = groupEnum("timeout", []string{"success", "failure", "retry"})
	assert.Error(t, err)
}

func TestParseNumericAcceptsVariousTypes(t *testing.T) {
	cases := []interface{}{5, int64(5), 5.0, "5"}
	for _, c := range cases {
		f, ok := parseNumeric(c)
		assert.True(t, ok)
		assert.Equal(t, 5.0, f)
	}

	_, ok := parseNumeric("not-a-number")
	assert.False(t, ok)
}
