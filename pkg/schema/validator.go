package schema

import (
	"fmt"
	"strconv"
	"strings"
)

// defaultTypos lists misspellings of SQL functions seen in default(...) tags.
var defaultTypos = []struct{ wrong, right string }{
	{"CURRENT TIMESTAMP", "CURRENT_TIMESTAMP"},
	{"CURRENT TIME", "CURRENT_TIME"},
	{"CURRENT DATE", "CURRENT_DATE"},
	{"NOW ()", "NOW()"},
	{"GEN RANDOM UUID", "gen_random_uuid()"},
}

var sqlKeywords = map[string]bool{
	"NULL": true, "TRUE": true, "FALSE": true,
	"CURRENT_TIMESTAMP": true, "CURRENT_TIME": true, "CURRENT_DATE": true,
	"LOCALTIMESTAMP": true, "LOCALTIME": true,
}

// ValidateDefaultValue rejects default expressions that are almost certainly
// typos, so they fail at parse time instead of inside a migration.
func ValidateDefaultValue(defaultVal string) error {
	trimmed := strings.TrimSpace(defaultVal)
	if trimmed == "" {
		return fmt.Errorf("invalid DEFAULT value: empty expression")
	}
	upper := strings.ToUpper(trimmed)

	for _, typo := range defaultTypos {
		if strings.Contains(upper, typo.wrong) {
			return fmt.Errorf("invalid DEFAULT value %q: use %s instead of %s", defaultVal, typo.right, typo.wrong)
		}
	}

	if sqlKeywords[upper] || strings.ContainsAny(trimmed, "('") || isNumeric(trimmed) {
		return nil
	}

	lower := strings.ToLower(trimmed)
	if strings.Contains(lower, "random") || strings.Contains(lower, "uuid") || lower == "now" {
		return fmt.Errorf("invalid DEFAULT value %q: function call is missing parentheses, try default(%s())", defaultVal, trimmed)
	}
	return nil
}

func isNumeric(s string) bool {
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}
