package mcpserver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/templetwo/sovereign-stack/internal/sovereignerr"
)

func TestArgStringRequiredMissingIsInvalidInput(t *testing.T) {
	_, err := argString(map[string]interface{}{}, "name", true)
	require.Error(t, err)
	assert.Equal(t, sovereignerr.InvalidInput, sovereignerr.KindOf(err))
}

func TestArgStringOptionalMissingReturnsEmpty(t *testing.T) {
	v, err := argString(map[string]interface{}{}, "name", false)
	require.NoError(t, err)
	assert.Empty(t, v)
}

func TestArgStringWrongTypeIsInvalidInput(t *testing.T) {
	_, err := argString(map[string]interface{}{"name": 5}, "name", true)
	require.Error(t, err)
	assert.Equal(t, sovereignerr.InvalidInput, sovereignerr.KindOf(err))
}

func TestArgBoolFallsBackToDefaultOnMissingOrWrongType(t *testing.T) {
	assert.True(t, argBool(map[string]interface{}{}, "flag", true))
	assert.False(t, argBool(map[string]interface{}{"flag": "yes"}, "flag", false))
	assert.True(t, argBool(map[string]interface{}{"flag": true}, "flag", false))
}

func TestArgFloatAcceptsFloatAndInt(t *testing.T) {
	assert.Equal(t, 3.5, argFloat(map[string]interface{}{"n": 3.5}, "n", 0))
	assert.Equal(t, float64(4), argFloat(map[string]interface{}{"n": 4}, "n", 0))
	assert.Equal(t, 9.0, argFloat(map[string]interface{}{}, "n", 9))
}

func TestArgIntTruncatesFloat(t *testing.T) {
	assert.Equal(t, 3, argInt(map[string]interface{}{"n": 3.9}, "n", 0))
}

func TestArgStringSliceRejectsNonStringElements(t *testing.T) {
	_, err := argStringSlice(map[string]interface{}{"items": []interface{}{"a", 2}}, "items")
	require.Error(t, err)
	assert.Equal(t, sovereignerr.InvalidInput, sovereignerr.KindOf(err))
}

func TestArgStringSliceAcceptsHomogeneousStrings(t *testing.T) {
	out, err := argStringSlice(map[string]interface{}{"items": []interface{}{"a", "b"}}, "items")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, out)
}

func TestArgMapRequiredMissingIsInvalidInput(t *testing.T) {
	_, err := argMap(map[string]interface{}{}, "packet", true)
	require.Error(t, err)
	assert.Equal(t, sovereignerr.InvalidInput, sovereignerr.KindOf(err))
}

func TestArgMapOptionalMissingReturnsEmptyMap(t *testing.T) {
	m, err := argMap(map[string]interface{}{}, "packet", false)
	require.NoError(t, err)
	assert.Empty(t, m)
}

func TestOptionalFloatPtrReturnsNilWhenAbsent(t *testing.T) {
	assert.Nil(t, optionalFloatPtr(map[string]interface{}{}, "confidence"))
}

func TestOptionalFloatPtrReturnsValueWhenPresent(t *testing.T) {
	ptr := optionalFloatPtr(map[string]interface{}{"confidence": 0.75}, "confidence")
	require.NotNil(t, ptr)
	assert.Equal(t, 0.75, *ptr)
}
