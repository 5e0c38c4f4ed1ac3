package config

// Safe type assertion helpers prevent panics when services read their
// dynamic ServiceConfig.Config sections as maps.

// GetString safely extracts a string value from a config map
func GetString(cfg map[string]any, key string, defaultVal string) string {
	if val, ok := cfg[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return defaultVal
}

// GetInt safely extracts an integer value from a config map
func GetInt(cfg map[string]any, key string, defaultVal int) int {
	if val, ok := cfg[key]; ok {
		switch v := val.(type) {
		case int:
			return v
		case int64:
			return int(v)
		case int32:
			return int(v)
		case float64:
			return int(v)
		case float32:
			return int(v)
		}
	}
	return defaultVal
}

// GetFloat64 safely extracts a float64 value from a config map
func GetFloat64(cfg map[string]any, key string, defaultVal float64) float64 {
	if val, ok := cfg[key]; ok {
		switch v := val.(type) {
		case float64:
			return v
		case float32:
			return float64(v)
		case int:
			return float64(v)
		case int64:
			return float64(v)
		case int32:
			return float64(v)
		}
	}
	return defaultVal
}

// GetBool safely extracts a boolean value from a config map
func GetBool(cfg map[string]any, key string, defaultVal bool) bool {
	if val, ok := cfg[key]; ok {
		if boolVal, ok := val.(bool); ok {
			return boolVal
		}
	}
	return defaultVal
}

// GetStringSlice safely extracts a string slice from a config map
func GetStringSlice(cfg map[string]any, key string, defaultVal []string) []string {
	if val, ok := cfg[key]; ok {
		if slice, ok := val.([]string); ok {
			return slice
		}
		// JSON unmarshals arrays as []any
		if interfaceSlice, ok := val.([]any); ok {
			result := make([]string, 0, len(interfaceSlice))
			for _, item := range interfaceSlice {
				if str, ok := item.(string); ok {
					result = append(result, str)
				}
			}
			if len(result) == len(interfaceSlice) {
				return result
			}
		}
	}
	return defaultVal
}

// HasKey checks if a key exists in the config map
func HasKey(cfg map[string]any, key string) bool {
	_, ok := cfg[key]
	return ok
}
