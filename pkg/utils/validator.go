package utils

import (
	"go/token"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	snakeCaseRegex  = regexp.MustCompile(`^[a-z][a-z0-9]*(_[a-z0-9]+)*$`)
	identifierRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

// IsSnakeCase reports whether s is a lower snake_case identifier
func IsSnakeCase(s string) bool {
	return snakeCaseRegex.MatchString(s)
}

// IsIdentifier reports whether s can be used as a Go identifier
func IsIdentifier(s string) bool {
	return identifierRegex.MatchString(s) && !token.IsKeyword(s)
}

// ToSnakeCase converts PascalCase, camelCase and kebab-case names to snake_case.
// Acronyms stay together: "HTTPRequest" becomes "http_request".
func ToSnakeCase(s string) string {
	runes := []rune(strings.TrimSpace(s))
	var sb strings.Builder
	for i, r := range runes {
		switch {
		case r == '-' || r == ' ' || r == '_':
			if sb.Len() > 0 && !strings.HasSuffix(sb.String(), "_") {
				sb.WriteRune('_')
			}
		case unicode.IsUpper(r):
			if i > 0 && sb.Len() > 0 && !strings.HasSuffix(sb.String(), "_") {
				prev := runes[i-1]
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
					sb.WriteRune('_')
				}
			}
			sb.WriteRune(unicode.ToLower(r))
		default:
			sb.WriteRune(r)
		}
	}
	return strings.TrimSuffix(sb.String(), "_")
}

// ToPascalCase converts snake_case or kebab-case names to PascalCase.
// Names that are already PascalCase are returned unchanged.
func ToPascalCase(s string) string {
	caser := cases.Title(language.Und, cases.NoLower)
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == '_' || r == '-' || r == ' '
	})
	var sb strings.Builder
	for _, part := range parts {
		sb.WriteString(caser.String(part))
	}
	return sb.String()
}
