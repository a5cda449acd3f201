package utils

import (
	"strconv"
	"strings"
)

// ParseInt converts string to int with default value
func ParseInt(value string, defaultValue int) int {
	if value == "" {
		return defaultValue
	}

	result, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	if result < 1 {
		return defaultValue
	}

	return result
}

// NormalizeCode trims and lower-cases an enum-like input such as a currency.
func NormalizeCode(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
