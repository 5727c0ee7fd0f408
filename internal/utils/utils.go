package utils

import "strings"

// Allows you to specify *.png or *.ico to do a suffix match.
// If the first character is a *, it checks to see if the matcher is a suffix of the path,
// otherwise the matcher is treated as a path prefix
func MatchesPathPattern(path string, matcher string) bool {
	if matcher == "" {
		return false
	}
	if matcher[0] == '*' {
		return strings.HasSuffix(path, matcher[1:])
	}
	return strings.HasPrefix(path, matcher)
}

func SliceHasMatch(matchers []string, path string) bool {
	for _, m := range matchers {
		if MatchesPathPattern(path, m) {
			return true
		}
	}

	return false
}

func Contains(s []string, val string) bool {
	for _, v := range s {
		if v == val {
			return true
		}
	}

	return false
}
