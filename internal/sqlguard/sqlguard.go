// Package sqlguard gates model-generated SQL behind a fixed safety policy:
// the first statement must be a SELECT, and a denylist of mutating keywords
// is rejected as a substring match anywhere in the text, including string
// literals and comments. The substring semantics are deliberately blunt and
// are part of the documented safety boundary; do not replace them with a
// parser-level check.
package sqlguard

import "strings"

var denylist = []string{"DROP", "DELETE", "UPDATE", "INSERT", "ALTER", "CREATE", "TRUNCATE"}

// Validate reports whether candidate SQL may be executed. False means do not
// execute, with no sanitized or partial execution path.
func Validate(candidate string) bool {
	statements := splitStatements(candidate)
	if len(statements) == 0 {
		return false
	}

	if !strings.EqualFold(firstKeyword(trimLeadingComments(statements[0])), "SELECT") {
		return false
	}

	upper := strings.ToUpper(candidate)
	for _, keyword := range denylist {
		if strings.Contains(upper, keyword) {
			return false
		}
	}

	return true
}

func splitStatements(text string) []string {
	parts := strings.Split(text, ";")
	statements := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			statements = append(statements, trimmed)
		}
	}
	return statements
}

// trimLeadingComments removes line and block comments ahead of the first
// keyword. Comment bodies remain subject to the denylist check, which runs
// over the unmodified text.
func trimLeadingComments(statement string) string {
	for {
		statement = strings.TrimSpace(statement)
		switch {
		case strings.HasPrefix(statement, "--"):
			newline := strings.IndexByte(statement, '\n')
			if newline < 0 {
				return ""
			}
			statement = statement[newline+1:]
		case strings.HasPrefix(statement, "/*"):
			end := strings.Index(statement, "*/")
			if end < 0 {
				return ""
			}
			statement = statement[end+2:]
		default:
			return statement
		}
	}
}

func firstKeyword(statement string) string {
	for i, r := range statement {
		isWord := r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
		if !isWord {
			return statement[:i]
		}
	}
	return statement
}
