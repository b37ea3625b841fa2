package coherence

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/templetwo/sovereign-stack/internal/sovereignerr"
)

func TestTransmitRoutesAndWritesPacket(t *testing.T) {
	root := t.TempDir()
	engine := NewEngine(root)
	schema, err := ParseSchema("outcome={outcome}/tool_family={tool_family}/decile(step)/{step}.json")
	require.NoError(t, err)

	packet := Packet{"outcome": "success", "tool_family": "search", "step": 5}
	path, err := engine.Transmit(packet, schema, false)
	require.NoError(t, err)

	want := filepath.Join(root, "memory", "outcome=success", "tool_family=search", "0-9", "5.json")
	assert.Equal(t, want, path)
	assert.FileExists(t, path)
}

func TestTransmitDryRunDoesNotWrite(t *testing.T) {
	root := t.TempDir()
	engine := NewEngine(root)
	schema, err := ParseSchema("outcome={outcome}/{outcome}.json")
	require.NoError(t, err)

	path, err := engine.Transmit(Packet{"outcome": "success"}, schema, true)
	require.NoError(t, err)
	assert.NoFileExists(t, path)
}

func TestTransmitMissingKeyIsInvalidInput(t *testing.T) {
	engine := NewEngine(t.TempDir())
	schema, err := ParseSchema("outcome={outcome}/{outcome}.json")
	require.NoError(t, err)

	_, err = engine.Transmit(Packet{}, schema, true)
	require.Error(t, err)
	assert.Equal(t, sovereignerr.InvalidInput, sovereignerr.KindOf(err))
}

func TestTransmitSanitizesUnsafeSubstitution(t *testing.T) {
	engine := NewEngine(t.TempDir())
	schema, err := ParseSchema("outcome={outcome}/{outcome}.json")
	require.NoError(t, err)

	path, err := engine.Transmit(Packet{"outcome": "../../etc/passwd"}, schema, true)
	require.NoError(t, err)
	assert.NotContains(t, path, "..")
}

func TestTransmitPureTraversalIsUnsafePath(t *testing.T) {
	engine := NewEngine(t.TempDir())
	schema, err := ParseSchema("{outcome}/x.json")
	require.NoError(t, err)

	_, err = engine.Transmit(Packet{"outcome": "../.."}, schema, true)
	require.Error(t, err)
	assert.Equal(t, sovereignerr.UnsafePath, sovereignerr.KindOf(err))
}

func TestTransmitOverwritesAtomically(t *testing.T) {
	root := t.TempDir()
	engine := NewEngine(root)
	schema, err := ParseSchema("{outcome}.json")
	require.NoError(t, err)

	path, err := engine.Transmit(Packet{"outcome": "x"}, schema, false)
	require.NoError(t, err)

	_, err = engine.Transmit(Packet{"outcome": "x", "extra": "v"}, schema, false)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "extra")
}

func TestReceiveSubstitutesKnownLeavesUnknownAsWildcard(t *testing.T) {
	root := t.TempDir()
	engine := NewEngine(root)
	schema, err := ParseSchema("outcome={outcome}/tool_family={tool_family}/decile(step)/{step}.json")
	require.NoError(t, err)

	glob, err := engine.Receive(schema, Packet{"outcome": "success"})
	require.NoError(t, err)

	want := filepath.Join(root, "memory", "outcome=success", "tool_family=*", "*", "*.json")
	assert.Equal(t, want, glob)
}

func TestDeriveRoundTripsTransmittedPaths(t *testing.T) {
	root := t.TempDir()
	engine := NewEngine(root)
	schema, err := ParseSchema("outcome={outcome}/tool_family={tool_family}/decile(step)/{step}.json")
	require.NoError(t, err)

	packets := []Packet{
		{"outcome": "success", "tool_family": "search", "step": 5},
		{"outcome": "success", "tool_family": "search", "step": 23},
		{"outcome": "failure", "tool_family": "search", "step": 41},
	}

	var paths []string
	for _, p := range packets {
		path, err := engine.Transmit(p, schema, true)
		require.NoError(t, err)
		paths = append(paths, path)
	}

	derived, err := engine.Derive(paths)
	require.NoError(t, err)
	require.Len(t, derived, 4)

	assert.Equal(t, SegmentKey, derived[0].Kind)
	assert.Equal(t, "outcome", derived[0].Literal)
	assert.Equal(t, SegmentLiteral, derived[1].Kind)
	assert.Equal(t, "tool_family=search", derived[1].Literal)
	assert.Equal(t, SegmentGroup, derived[2].Kind)
	assert.Equal(t, "decile", derived[2].Group)
	assert.Equal(t, SegmentKey, derived[3].Kind)
	assert.Equal(t, ".json", derived[3].FileSuffix)

	for i, p := range packets {
		redone, err := engine.Transmit(Packet{
			derived[0].Key: p["outcome"],
			derived[2].Key: p["step"],
			derived[3].Key: p["step"],
		}, derived, true)
		require.NoError(t, err)
		assert.Equal(t, paths[i], redone)
	}
}

func TestDeriveRecognizesHexPrefixGroup(t *testing.T) {
	engine := NewEngine(t.TempDir())
	schema, err := ParseSchema("hex(content_hash)/{content_hash}.json")
	require.NoError(t, err)

	hashes := []string{"deadbeef1234", "cafebabe5678", "1234567890ab"}
	var paths []string
	for _, h := range hashes {
		path, err := engine.Transmit(Packet{"content_hash": h}, schema, true)
		require.NoError(t, err)
		paths = append(paths, path)
	}

	derived, err := engine.Derive(paths)
	require.NoError(t, err)
	require.Len(t, derived, 2)
	assert.Equal(t, SegmentGroup, derived[0].Kind)
	assert.Equal(t, "hex", derived[0].Group)
}

func TestDeriveRecognizesEnumGroup(t *testing.T) {
	engine := NewEngine(t.TempDir())
	schema, err := ParseSchema("{outcome}/{step}.json")
	require.NoError(t, err)

	outcomes := []string{"success", "failure", "success", "retry", "success"}
	var paths []string
	for i, o := range outcomes {
		path, err := engine.Transmit(Packet{"outcome": o, "step": i}, schema, true)
		require.NoError(t, err)
		paths = append(paths, path)
	}

	derived, err := engine.Derive(paths)
	require.NoError(t, err)
	require.Len(t, derived, 2)
	assert.Equal(t, SegmentGroup, derived[0].Kind)
	assert.Equal(t, "enum", derived[0].Group)
	assert.ElementsMatch(t, []string{"success", "failure", "retry"}, derived[0].EnumValues)
}

func TestDeriveRejectsEmptyCorpus(t *testing.T) {
	engine := NewEngine(t.TempDir())
	_, err := engine.Derive(nil)
	require.Error(t, err)
	assert.Equal(t, sovereignerr.InvalidInput, sovereignerr.KindOf(err))
}

func TestDeriveRejectsMismatchedSegmentCounts(t *testing.T) {
	engine := NewEngine(t.TempDir())
	_, err := engine.Derive([]string{"a/b.json", "a/b/c.json"})
	assert.Error(t, err)
}
