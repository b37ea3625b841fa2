package mcpserver

import (
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/templetwo/sovereign-stack/internal/sovereignerr"
)

// argString/argBool/argFloat/argStringSlice/argMap pull typed values out
// of a tool call's argument map. argString, argStringSlice and argMap
// report InvalidInput on a missing required field or a type mismatch;
// argBool, argFloat and argInt return the caller's default for a missing
// or mistyped value. Kept deliberately small and
// defensive rather than relying on a particular helper-parsing API
// surface of the underlying transport library.

func argsOf(request mcp.CallToolRequest) map[string]interface{} {
	return request.GetArguments()
}

func argString(args map[string]interface{}, key string, required bool) (string, error) {
	v, ok := args[key]
	if !ok || v == nil {
		if required {
			return "", sovereignerr.New(sovereignerr.InvalidInput, fmt.Sprintf("missing required argument %q", key))
		}
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", sovereignerr.New(sovereignerr.InvalidInput, fmt.Sprintf("argument %q must be a string", key))
	}
	return s, nil
}

func argBool(args map[string]interface{}, key string, def bool) bool {
	v, ok := args[key]
	if !ok || v == nil {
		return def
	}
	b, ok := v.(bool)
	if !ok {
		return def
	}
	return b
}

func argFloat(args map[string]interface{}, key string, def float64) float64 {
	v, ok := args[key]
	if !ok || v == nil {
		return def
	}
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return def
	}
}

func argInt(args map[string]interface{}, key string, def int) int {
	return int(argFloat(args, key, float64(def)))
}

func argStringSlice(args map[string]interface{}, key string) ([]string, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return nil, sovereignerr.New(sovereignerr.InvalidInput, fmt.Sprintf("missing required argument %q", key))
	}
	raw, ok := v.([]interface{})
	if !ok {
		return nil, sovereignerr.New(sovereignerr.InvalidInput, fmt.Sprintf("argument %q must be an array", key))
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		s, ok := item.(string)
		if !ok {
			return nil, sovereignerr.New(sovereignerr.InvalidInput, fmt.Sprintf("argument %q must be an array of strings", key))
		}
		out = append(out, s)
	}
	return out, nil
}

func argMap(args map[string]interface{}, key string, required bool) (map[string]interface{}, error) {
	v, ok := args[key]
	if !ok || v == nil {
		if required {
			return nil, sovereignerr.New(sovereignerr.InvalidInput, fmt.Sprintf("missing required argument %q", key))
		}
		return map[string]interface{}{}, nil
	}
	m, ok := v.(map[string]interface{})
	if !ok {
		return nil, sovereignerr.New(sovereignerr.InvalidInput, fmt.Sprintf("argument %q must be an object", key))
	}
	return m, nil
}

func optionalFloatPtr(args map[string]interface{}, key string) *float64 {
	v, ok := args[key]
	if !ok || v == nil {
		return nil
	}
	switch n := v.(type) {
	case float64:
		return &n
	case int:
		f := float64(n)
		return &f
	default:
		return nil
	}
}
