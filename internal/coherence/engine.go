package coherence

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/templetwo/sovereign-stack/internal/logging"
	"github.com/templetwo/sovereign-stack/internal/sovereignerr"
	"github.com/templetwo/sovereign-stack/internal/storage"
)

// Packet is an opaque mapping from string keys to scalar values (string,
// number, boolean).
type Packet map[string]interface{}

// Engine routes packets to paths under root/memory and derives schemas
// back from a corpus of paths.
type Engine struct {
	root string
}

// NewEngine returns a coherence Engine rooted at root (the configured
// Sovereign Stack root directory; routing always writes under
// root/memory).
func NewEngine(root string) *Engine {
	return &Engine{root: root}
}

// allowedChars keeps sanitized segments limited to a conservative
// allowlist: letters, digits, dot, dash, underscore.
var allowedChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// sanitizeSegment strips path separators and parent references, collapses
// whitespace, and applies the character allowlist (spec §4.1).
func sanitizeSegment(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.Join(strings.Fields(s), "_")
	s = allowedChars.ReplaceAllString(s, "_")
	s = strings.Trim(s, "._")

	if s == "" || s == "." || s == ".." {
		return "", sovereignerr.New(sovereignerr.UnsafePath, "sanitized segment is empty or unsafe")
	}
	return s, nil
}

func scalarToString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		if t {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprintf("%v", t)
	}
}

// Transmit validates the packet against schema, sanitizes every
// substitution, computes derived segments, and joins them under
// root/memory. When dryRun is false the packet is persisted as JSON at
// the resulting path (write-to-temp + rename; overwrites atomically).
// Returns the absolute path.
func (e *Engine) Transmit(packet Packet, schema Schema, dryRun bool) (string, error) {
	for _, key := range schema.RequiredKeys() {
		if _, ok := packet[key]; !ok {
			return "", sovereignerr.New(sovereignerr.InvalidInput, fmt.Sprintf("schema references missing packet key %q", key))
		}
	}

	var components []string
	for _, seg := range schema {
		part, err := renderSegment(seg, packet)
		if err != nil {
			return "", err
		}
		components = append(components, part)
	}

	relPath := filepath.Join(components...)
	absPath := filepath.Join(e.root, "memory", relPath)

	if !dryRun {
		if err := storage.WriteJSONAtomic(absPath, packet); err != nil {
			logging.Get(logging.CategoryCoherence).Error("transmit write failed for path under memory/: %v", err)
			return "", err
		}
	}
	logging.Get(logging.CategoryCoherence).Debug("transmit routed packet to %s (dry_run=%v)", relPath, dryRun)
	return absPath, nil
}

func renderSegment(seg Segment, packet Packet) (string, error) {
	switch seg.Kind {
	case SegmentLiteral:
		return seg.Literal, nil

	case SegmentKey:
		raw := scalarToString(packet[seg.Key])
		clean, err := sanitizeSegment(raw)
		if err != nil {
			return "", err
		}
		value := clean + seg.FileSuffix
		if seg.Literal != "" {
			return seg.Literal + "=" + value, nil
		}
		return value, nil

	case SegmentGroup:
		switch seg.Group {
		case "decile":
			f, ok := parseNumeric(packet[seg.Key])
			if !ok {
				return "", sovereignerr.New(sovereignerr.InvalidInput, fmt.Sprintf("key %q is not numeric for decile grouping", seg.Key))
			}
			return groupDecile(f), nil
		case "hex":
			value, err := groupHex(scalarToString(packet[seg.Key]))
			if err != nil {
				return "", sovereignerr.New(sovereignerr.InvalidInput, err.Error())
			}
			return value, nil
		case "enum":
			value, err := groupEnum(scalarToString(packet[seg.Key]), seg.EnumValues)
			if err != nil {
				return "", sovereignerr.New(sovereignerr.InvalidInput, err.Error())
			}
			return value, nil
		default:
			return "", sovereignerr.New(sovereignerr.InvalidInput, fmt.Sprintf("unknown computed group %q", seg.Group))
		}

	default:
		return "", sovereignerr.New(sovereignerr.Internal, "unknown segment kind")
	}
}

// Receive returns a glob pattern under root/memory produced by substituting
// known constraints into their schema positions and leaving unknown
// positions as "*".
func (e *Engine) Receive(schema Schema, constraints Packet) (string, error) {
	var components []string
	for _, seg := range schema {
		switch seg.Kind {
		case SegmentLiteral:
			components = append(components, seg.Literal)
		case SegmentKey:
			if raw, ok := constraints[seg.Key]; ok {
				clean, err := sanitizeSegment(scalarToString(raw))
				if err != nil {
					return "", err
				}
				value := clean + seg.FileSuffix
				if seg.Literal != "" {
					components = append(components, seg.Literal+"="+value)
				} else {
					components = append(components, value)
				}
			} else {
				wildcard := "*" + seg.FileSuffix
				if seg.Literal != "" {
					wildcard = seg.Literal + "=" + wildcard
				}
				components = append(components, wildcard)
			}
		case SegmentGroup:
			raw, ok := constraints[seg.Key]
			if !ok {
				components = append(components, "*")
				continue
			}
			switch seg.Group {
			case "decile":
				f, ok2 := parseNumeric(raw)
				if !ok2 {
					return "", sovereignerr.New(sovereignerr.InvalidInput, fmt.Sprintf("key %q is not numeric for decile grouping", seg.Key))
				}
				components = append(components, groupDecile(f))
			case "hex":
				value, err := groupHex(scalarToString(raw))
				if err != nil {
					return "", sovereignerr.New(sovereignerr.InvalidInput, err.Error())
				}
				components = append(components, value)
			case "enum":
				value, err := groupEnum(scalarToString(raw), seg.EnumValues)
				if err != nil {
					return "", sovereignerr.New(sovereignerr.InvalidInput, err.Error())
				}
				components = append(components, value)
			default:
				return "", sovereignerr.New(sovereignerr.InvalidInput, fmt.Sprintf("unknown computed group %q", seg.Group))
			}
		}
	}
	return filepath.Join(e.root, "memory", filepath.Join(components...)), nil
}

// hexPattern matches pure hexadecimal tokens of content-hash length,
// used both to validate the "hex" computed group at Transmit/Receive and
// to detect it during Derive.
var hexPattern = regexp.MustCompile(`^[0-9a-fA-F]{6,}$`)

// decilePattern matches the "N0-N9" shape produced by groupDecile.
var decilePattern = regexp.MustCompile(`^\d+-\d+$`)

// Derive infers a Schema from a corpus of paths previously produced by
// Transmit (absolute or already relative to root/memory — both accepted
// and normalized). Each '/'-delimited position across the corpus is
// classified independently, trying each rule in this order: a position
// holding the same literal value in every path becomes SegmentLiteral; a
// position matching the decile shape in every path becomes a decile
// SegmentGroup; one matching the hex-digest shape in every path becomes a
// hex SegmentGroup; a "prefix=value" shape recurring in every row becomes
// a literal-prefixed SegmentKey (even when its values repeat); a small
// repeating set of values becomes an enum SegmentGroup; otherwise the
// position becomes a bare SegmentKey substitution. Derived keys are named
// key1, key2, ... in column order. Re-applying the derived schema via
// Transmit reproduces each input path up to sanitization.
func (e *Engine) Derive(paths []string) (Schema, error) {
	if len(paths) == 0 {
		return nil, sovereignerr.New(sovereignerr.InvalidInput, "derive requires at least one path")
	}

	rows := make([][]string, 0, len(paths))
	width := -1
	for _, p := range paths {
		rel := e.relativeToMemory(p)
		parts := strings.Split(rel, "/")
		if width == -1 {
			width = len(parts)
		} else if len(parts) != width {
			return nil, sovereignerr.New(sovereignerr.InvalidInput, "paths do not share a common segment count")
		}
		rows = append(rows, parts)
	}

	schema := make(Schema, width)
	keyIndex := 0
	for col := 0; col < width; col++ {
		values := make([]string, len(rows))
		for r, row := range rows {
			values[r] = row[col]
		}
		terminal := col == width-1
		schema[col] = deriveSegment(values, terminal, &keyIndex)
	}
	return schema, nil
}

func (e *Engine) relativeToMemory(p string) string {
	clean := filepath.ToSlash(p)
	if idx := strings.Index(clean, "memory/"); idx >= 0 {
		clean = clean[idx+len("memory/"):]
	}
	return strings.TrimPrefix(clean, "/")
}

func allEqual(values []string) bool {
	for _, v := range values[1:] {
		if v != values[0] {
			return false
		}
	}
	return true
}

func allMatch(values []string, re *regexp.Regexp) bool {
	for _, v := range values {
		if !re.MatchString(v) {
			return false
		}
	}
	return true
}

// maxEnumCardinality bounds how many distinct values a position may take
// and still be classified as a closed enum rather than a free-form key
// substitution (spec §4.1: decile, hex prefix, enum, in that preference
// order below literal).
const maxEnumCardinality = 6

func deriveSegment(values []string, terminal bool, keyIndex *int) Segment {
	if allEqual(values) {
		return Segment{Kind: SegmentLiteral, Literal: values[0]}
	}

	if allMatch(values, decilePattern) {
		*keyIndex++
		return Segment{Kind: SegmentGroup, Group: "decile", Key: fmt.Sprintf("key%d", *keyIndex)}
	}

	if allMatch(values, hexPattern) {
		*keyIndex++
		return Segment{Kind: SegmentGroup, Group: "hex", Key: fmt.Sprintf("key%d", *keyIndex)}
	}

	if prefix, ok := commonEqualsPrefix(values); ok {
		*keyIndex++
		return Segment{Kind: SegmentKey, Literal: prefix, Key: fmt.Sprintf("key%d", *keyIndex)}
	}

	if distinct, ok := boundedEnum(values); ok {
		*keyIndex++
		return Segment{Kind: SegmentGroup, Group: "enum", Key: fmt.Sprintf("key%d", *keyIndex), EnumValues: distinct}
	}

	*keyIndex++
	seg := Segment{Kind: SegmentKey, Key: fmt.Sprintf("key%d", *keyIndex)}
	if terminal {
		if suffix, ok := commonSuffix(values); ok {
			seg.FileSuffix = suffix
		}
	}
	return seg
}

// boundedEnum reports whether values is drawn from a small, recurring set
// of distinct values (evidence of a closed domain rather than free text):
// at most maxEnumCardinality distinct values, with at least one repeat.
func boundedEnum(values []string) ([]string, bool) {
	seen := make(map[string]bool, len(values))
	var distinct []string
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			distinct = append(distinct, v)
		}
	}
	if len(distinct) == 0 || len(distinct) > maxEnumCardinality || len(distinct) == len(values) {
		return nil, false
	}
	return distinct, true
}

func commonEqualsPrefix(values []string) (string, bool) {
	idx := strings.Index(values[0], "=")
	if idx <= 0 {
		return "", false
	}
	prefix := values[0][:idx]
	for _, v := range values[1:] {
		if !strings.HasPrefix(v, prefix+"=") {
			return "", false
		}
	}
	return prefix, true
}

func commonSuffix(values []string) (string, bool) {
	candidates := []string{".json", ".jsonl", ".yaml", ".yml", ".log"}
	for _, c := range candidates {
		ok := true
		for _, v := range values {
			if !strings.HasSuffix(v, c) {
				ok = false
				break
			}
		}
		if ok {
			return c, true
		}
	}
	return "", false
}
