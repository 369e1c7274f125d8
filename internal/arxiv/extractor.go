package arxiv

import "regexp"

var abstractURL = regexp.MustCompile(`https://arxiv\.org/abs/\d+\.\d+`)

// ExtractURL returns the first arXiv abstract URL found in text.
// Only the textual shape is checked; the identifier is not looked up.
func ExtractURL(text string) (string, bool) {
	if text == "" {
		return "", false
	}
	match := abstractURL.FindString(text)
	if match == "" {
		return "", false
	}
	return match, true
}
