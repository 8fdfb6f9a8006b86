package duplicates

import "strings"

var socialMarkers = []string{"facebook.com/", "instagram.com/"}

// NormalizeSocialURL reduces a profile URL to a comparable form such as
// "facebook.com/mypage". ok is false when the result does not point at a
// Facebook or Instagram profile; such input is unmatchable, not an error.
func NormalizeSocialURL(raw string) (normalized string, ok bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return "", false
	}
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "http://")
	s = strings.TrimPrefix(s, "www.")
	if i := strings.Index(s, "?"); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimRight(s, "/")

	for _, marker := range socialMarkers {
		if strings.Contains(s, marker) {
			return s, true
		}
	}
	return "", false
}
