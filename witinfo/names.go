package witinfo

import (
	"strings"
)

// typeName turns a kebab-case WIT name into a CamelCase type name.
func typeName(s string) string {
	var b strings.Builder
	for _, part := range strings.Split(s, "-") {
		if part == "" {
			continue
		}
		b.WriteString(strings.ToUpper(part[:1]))
		b.WriteString(part[1:])
	}
	return b.String()
}

// identName turns a kebab-case WIT name into a snake_case identifier.
func identName(s string) string {
	return strings.ReplaceAll(s, "-", "_")
}
