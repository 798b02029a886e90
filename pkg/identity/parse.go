package identity

import (
	"regexp"
	"strings"
)

const msgMarker = "/?msg="

var codePattern = regexp.MustCompile(`code=([^&]+)`)

// ExtractAuthorizationCode returns the value of the first code= parameter in
// an authorization redirect location.
func ExtractAuthorizationCode(location string) (string, error) {
	m := codePattern.FindStringSubmatch(location)
	if m == nil || m[1] == "" {
		return "", ErrMissingAuthorizationCode
	}
	return m[1], nil
}

// ExtractSessionToken parses a callback redirect of the form
// <prefix>/?msg=<username>/<token>. Only the first marker counts; everything
// after the first slash that follows it is the token, so tokens may contain
// slashes or even a second marker.
func ExtractSessionToken(location string) (username, token string, err error) {
	_, msg, found := strings.Cut(location, msgMarker)
	if !found {
		return "", "", ErrMissingSessionToken
	}
	username, token, found = strings.Cut(msg, "/")
	if !found || token == "" {
		return "", "", ErrMissingSessionToken
	}
	return username, token, nil
}
