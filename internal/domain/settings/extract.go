package settings

import (
	"regexp"
	"strings"
)

var (
	hex32     = regexp.MustCompile(`([a-f0-9]{32})`)
	hex32Only = regexp.MustCompile(`^[a-f0-9]{32}$`)
)

// ExtractDatabaseID pulls a 32-hex Notion database ID out of a raw ID, a dashed UUID or a
// share URL. Integration tokens pasted into the wrong field are rejected.
func ExtractDatabaseID(input string) (string, bool) {
	if input == "" {
		return "", false
	}
	s := strings.TrimSpace(input)
	if strings.HasPrefix(s, "secret_") || strings.HasPrefix(s, "ntn_") {
		return "", false
	}
	if m := hex32.FindStringSubmatch(s); m != nil {
		return m[1], true
	}
	clean := strings.ReplaceAll(s, "-", "")
	if hex32Only.MatchString(clean) {
		return clean, true
	}
	return "", false
}
