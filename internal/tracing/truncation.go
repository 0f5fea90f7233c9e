package tracing

import (
	"strings"
)

const (
	DefaultMaxLength = 200
	MaxSQLLength     = 500
	MaxRedisLength   = 100
	// MaxResumeLength bounds résumé and JD excerpts attached to spans.
	MaxResumeLength = 150
)

// piiKeys are attribute name fragments whose values are masked.
var piiKeys = []string{"email", "phone", "password", "address", "name", "secret", "token", "api_key"}

// SafeAttributeValue masks values of personal attributes and truncates
// everything else to maxLength runes.
func SafeAttributeValue(name string, value string, maxLength int) string {
	lower := strings.ToLower(name)
	for _, k := range piiKeys {
		if strings.Contains(lower, k) {
			return MaskPII(value)
		}
	}
	return TruncateString(value, maxLength)
}

// MaskPII keeps the first and last characters of a value.
//
//	"Li" -> "L*", "Ana" -> "A*a", "jane@x.com" -> "ja******om"
func MaskPII(value string) string {
	runes := []rune(value)
	n := len(runes)
	switch {
	case n == 0:
		return ""
	case n == 1:
		return "*"
	case n == 2:
		return string(runes[:1]) + "*"
	case n <= 4:
		return string(runes[:1]) + strings.Repeat("*", n-2) + string(runes[n-1:])
	}
	return string(runes[:2]) + strings.Repeat("*", n-4) + string(runes[n-2:])
}

// TruncateString keeps the head and tail of s joined by "...".
func TruncateString(s string, maxLength int) string {
	runes := []rune(s)
	if len(runes) <= maxLength {
		return s
	}
	if maxLength <= 3 {
		return string(runes[:maxLength])
	}
	half := max((maxLength-3)/2, 1)
	return string(runes[:half]) + "..." + string(runes[len(runes)-half:])
}

func SafeSQL(sql string) string {
	return TruncateString(sql, MaxSQLLength)
}

func SafeRedisKey(key string) string {
	return TruncateString(key, MaxRedisLength)
}

// SafeResumeContent shortens résumé or JD text for span attributes.
func SafeResumeContent(content string) string {
	return TruncateString(content, MaxResumeLength)
}
