// Package coherence implements schema-driven semantic routing: packets of
// scalar fields are routed to filesystem paths by a Schema (transmit), the
// inverse glob for a set of constraints is derived from the same schema
// (receive), and a schema can be inferred back from a corpus of paths
// (derive).
package coherence

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// SegmentKind distinguishes the three shapes a path segment can take.
type SegmentKind int

const (
	// SegmentLiteral is a fixed path component, e.g. "memory".
	SegmentLiteral SegmentKind = iota
	// SegmentKey substitutes a packet value, e.g. "{outcome}".
	SegmentKey
	// SegmentGroup computes a segment from a packet value via a named
	// grouping function, e.g. decile(step).
	SegmentGroup
)

// Segment is one component of a Schema.
type Segment struct {
	Kind SegmentKind

	// Literal holds the fixed text when Kind == SegmentLiteral, or the
	// "name=" prefix when a key substitution is written "name={key}".
	Literal string

	// Key is the packet field referenced by SegmentKey or SegmentGroup.
	Key string

	// Group names the computed-group function for SegmentGroup: "decile"
	// (groupDecile), "hex" (groupHex), or "enum" (groupEnum).
	Group string

	// EnumValues is the closed set of values a SegmentGroup with
	// Group == "enum" accepts; only meaningful for that group.
	EnumValues []string

	// FileSuffix, when non-empty, marks this as the terminal filename
	// segment and is appended after the substituted/grouped value
	// (e.g. "{step}.json" -> FileSuffix == ".json").
	FileSuffix string
}

// Schema is an ordered sequence of path segments, applied relative to a
// routing root (conventionally "memory/").
type Schema []Segment

var keyRefPattern = regexp.MustCompile(`\{([a-zA-Z0-9_]+)\}`)

// ParseSchema parses a schema string such as
//
//	"outcome={outcome}/tool_family={tool_family}/decile(step)/{step}.json"
//
// into a Schema. Each '/'-delimited component becomes one Segment.
func ParseSchema(spec string) (Schema, error) {
	parts := strings.Split(spec, "/")
	schema := make(Schema, 0, len(parts))
	for i, part := range parts {
		seg, err := parseSegment(part, i == len(parts)-1)
		if err != nil {
			return nil, fmt.Errorf("segment %d (%q): %w", i, part, err)
		}
		schema = append(schema, seg)
	}
	return schema, nil
}

func parseSegment(part string, terminal bool) (Segment, error) {
	if strings.HasPrefix(part, "decile(") && strings.HasSuffix(part, ")") {
		key := strings.TrimSuffix(strings.TrimPrefix(part, "decile("), ")")
		return Segment{Kind: SegmentGroup, Group: "decile", Key: key}, nil
	}

	if strings.HasPrefix(part, "hex(") && strings.HasSuffix(part, ")") {
		key := strings.TrimSuffix(strings.TrimPrefix(part, "hex("), ")")
		return Segment{Kind: SegmentGroup, Group: "hex", Key: key}, nil
	}

	if strings.HasPrefix(part, "enum(") && strings.HasSuffix(part, ")") {
		body := strings.TrimSuffix(strings.TrimPrefix(part, "enum("), ")")
		key, rawValues, ok := strings.Cut(body, ":")
		if !ok || key == "" || rawValues == "" {
			return Segment{}, fmt.Errorf("enum segment %q must be enum(key:v1,v2,...)", part)
		}
		return Segment{Kind: SegmentGroup, Group: "enum", Key: key, EnumValues: strings.Split(rawValues, ",")}, nil
	}

	if m := keyRefPattern.FindStringSubmatchIndex(part); m != nil {
		key := part[m[2]:m[3]]
		prefix := part[:m[0]]
		suffix := part[m[1]:]
		if prefix != "" && !strings.HasSuffix(prefix, "=") {
			return Segment{}, fmt.Errorf("unsupported literal/key mix %q", part)
		}
		literal := strings.TrimSuffix(prefix, "=")
		return Segment{Kind: SegmentKey, Literal: literal, Key: key, FileSuffix: suffix}, nil
	}

	return Segment{Kind: SegmentLiteral, Literal: part}, nil
}

// RequiredKeys returns every packet key this schema references, in order
// of first appearance.
func (s Schema) RequiredKeys() []string {
	seen := make(map[string]bool)
	var keys []string
	for _, seg := range s {
		if seg.Kind == SegmentLiteral {
			continue
		}
		if !seen[seg.Key] {
			seen[seg.Key] = true
			keys = append(keys, seg.Key)
		}
	}
	return keys
}

// groupDecile buckets a numeric value into a "N0-N9" decile label (spec §3
// example, §4.1 grouping pattern).
func groupDecile(value float64) string {
	bucket := int(value) / 10
	lo := bucket * 10
	hi := lo + 9
	return fmt.Sprintf("%d-%d", lo, hi)
}

// groupHex validates a content-hash-shaped value (spec §4.1 "hex prefix")
// and returns it lowercased, so a schema position can declare "this is a
// hash, not free text" without constraining its exact length.
func groupHex(value string) (string, error) {
	if !hexPattern.MatchString(value) {
		return "", fmt.Errorf("value %q is not a hex digest", value)
	}
	return strings.ToLower(value), nil
}

// groupEnum validates a value against a schema-declared closed set (spec
// §4.1 "enum"), returning an error if the value falls outside it.
func groupEnum(value string, allowed []string) (string, error) {
	for _, a := range allowed {
		if value == a {
			return value, nil
		}
	}
	return "", fmt.Errorf("value %q is not one of the declared enum values %v", value, allowed)
}

// parseNumeric extracts a float64 from a packet scalar value: a numeric
// string, or a value already typed as int, int64 or float64. Any other
// type is reported as not numeric.
func parseNumeric(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
