package executor

import (
	"fmt"

	"dario.cat/mergo"
)

// MergeSettings накладывает настройки экземпляра на значения по умолчанию.
// Значения экземпляра побеждают, в том числе явно пустые ("", 0, nil);
// вложенные maps сливаются по ключам. Исходные maps не изменяются.
func MergeSettings(defaults, instance map[string]any) (map[string]any, error) {
	merged := cloneSettings(defaults)
	if len(instance) == 0 {
		return merged, nil
	}
	src := cloneSettings(instance)
	if err := mergo.Merge(&merged, src, mergo.WithOverride); err != nil {
		return nil, fmt.Errorf("merge settings: %w", err)
	}
	// mergo не переносит пустые значения поверх непустых.
	keepExplicit(merged, src)
	return merged, nil
}

func keepExplicit(dst, src map[string]any) {
	for k, v := range src {
		sub, ok := v.(map[string]any)
		if cur, curOK := dst[k].(map[string]any); ok && curOK {
			keepExplicit(cur, sub)
			continue
		}
		dst[k] = v
	}
}

// cloneSettings копирует map вместе с вложенными maps.
func cloneSettings(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if sub, ok := v.(map[string]any); ok {
			v = cloneSettings(sub)
		}
		out[k] = v
	}
	return out
}

// GetString извлекает строковое значение.
func GetString(m map[string]any, key string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// GetBool извлекает булево значение.
func GetBool(m map[string]any, key string, defaultVal bool) bool {
	if v, ok := m[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return defaultVal
}

// GetMap извлекает вложенный map.
func GetMap(m map[string]any, key string) map[string]any {
	if v, ok := m[key]; ok {
		if mm, ok := v.(map[string]any); ok {
			return mm
		}
	}
	return nil
}
