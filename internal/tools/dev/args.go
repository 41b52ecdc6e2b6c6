package dev

import "time"

// argString extracts a string argument, returning fallback when absent.
func argString(args map[string]any, key, fallback string) string {
	if v, ok := args[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

// argInt extracts an integer argument. JSON decoding produces float64, so
// both forms are accepted.
func argInt(args map[string]any, key string, fallback int) int {
	switch v := args[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return fallback
	}
}

// argBool extracts a boolean argument, returning fallback when absent.
func argBool(args map[string]any, key string, fallback bool) bool {
	if v, ok := args[key].(bool); ok {
		return v
	}
	return fallback
}

// argTimeout converts a timeout_seconds argument to a duration; zero means
// "use the default".
func argTimeout(args map[string]any, key string) time.Duration {
	secs := argInt(args, key, 0)
	if secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// argStringSlice extracts a []string argument from a JSON array.
func argStringSlice(args map[string]any, key string) []string {
	raw, ok := args[key].([]any)
	if !ok {
		if direct, ok := args[key].([]string); ok {
			return direct
		}
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// argStringMap extracts a map[string]string argument from a JSON object.
func argStringMap(args map[string]any, key string) map[string]string {
	raw, ok := args[key].(map[string]any)
	if !ok {
		if direct, ok := args[key].(map[string]string); ok {
			return direct
		}
		return nil
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}
