package runners

import "github.com/ragflow-go/ragflow/retrieval"

func getString(inputs map[string]any, name, def string) string {
	if v, ok := inputs[name].(string); ok {
		return v
	}
	return def
}

func getInt(inputs map[string]any, name string, def int) int {
	switch v := inputs[name].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return def
}

func getFloat(inputs map[string]any, name string, def float64) float64 {
	switch v := inputs[name].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return def
}

func getBool(inputs map[string]any, name string, def bool) bool {
	if v, ok := inputs[name].(bool); ok {
		return v
	}
	return def
}

func getStringSlice(inputs map[string]any, name string) []string {
	v, ok := inputs[name].([]string)
	if ok {
		return v
	}
	raw, ok := inputs[name].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		if s, ok := r.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func getDocs(inputs map[string]any, name string) []retrieval.Document {
	if v, ok := inputs[name].([]retrieval.Document); ok {
		return v
	}
	return nil
}
