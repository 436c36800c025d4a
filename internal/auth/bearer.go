package auth

import "strings"

const bearerScheme = "Bearer"

// ExtractFromHeader returns the token from an Authorization header value of
// exactly the form "Bearer <token>": case-sensitive scheme, one space, one
// token.  Anything else yields ("", false), never a partial token.
func ExtractFromHeader(value string) (string, bool) {
	parts := strings.Fields(value)
	if len(parts) != 2 || parts[0] != bearerScheme {
		return "", false
	}
	if value != bearerScheme+" "+parts[1] {
		return "", false
	}
	return parts[1], true
}

// BearerHeader formats a token for the Authorization header.
func BearerHeader(token string) string {
	return bearerScheme + " " + token
}
