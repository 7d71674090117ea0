package geoguessr

import "strings"

// TokenFromURL extracts the challenge token from a share URL such as
// https://www.geoguessr.com/challenge/xyz789?ref=share.
func TokenFromURL(url string) (string, bool) {
	_, rest, ok := strings.Cut(url, "/challenge/")
	if !ok {
		return "", false
	}
	rest, _, _ = strings.Cut(rest, "?")
	rest = strings.Trim(rest, "/")
	if rest == "" || strings.Contains(rest, "/") {
		return "", false
	}
	return rest, true
}
