package processor

import (
	"fmt"
	"strconv"
	"strings"
)

// auth.go classifies arbitrary vendor error payloads as auth failures.
//
// Vendors and MCP servers report expired credentials in wildly different
// shapes: typed errors, JSON maps, bare strings. The detector extracts a
// textual form from whatever it is handed, checks the status code and the
// marker list, and matches the offending MCP server by name so the
// consumer can target re-authentication at one server instead of failing
// the whole turn. Unrecognized shapes are never an error, just "not auth".

// AuthMarkers are the case-insensitive substrings that mark an error as
// an authentication/authorization failure. Kept as a variable so the
// marker set reads as configuration, not buried business logic.
var AuthMarkers = []string{
	"401",
	"403",
	"unauthorized",
	"forbidden",
	"authentication required",
	"access denied",
	"invalid token",
	"token expired",
	"authentication",
}

// DetectAuthError classifies v. server is the matched MCP server name,
// empty when none of the known names appears in the error text.
func DetectAuthError(v any, serverNames []string) (isAuth bool, server string) {
	text := errorText(v)
	if text == "" {
		return false, ""
	}

	isAuth = authStatus(statusCode(v))
	if !isAuth {
		lower := strings.ToLower(text)
		for _, marker := range AuthMarkers {
			if strings.Contains(lower, marker) {
				isAuth = true
				break
			}
		}
	}
	if !isAuth {
		return false, ""
	}
	return true, matchServer(text, serverNames)
}

func authStatus(status int) bool {
	return status == 401 || status == 403
}

// errorText extracts a textual representation regardless of input shape.
func errorText(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case error:
		return val.Error()
	case map[string]any:
		// Prefer the conventional message fields, fall back to the
		// whole mapping.
		var b strings.Builder
		for _, key := range []string{"message", "error", "detail", "description"} {
			if field, ok := val[key]; ok {
				fmt.Fprintf(&b, "%v ", field)
			}
		}
		if status, ok := val["status"]; ok {
			fmt.Fprintf(&b, "%v ", status)
		}
		if b.Len() > 0 {
			return b.String()
		}
		return fmt.Sprintf("%v", val)
	default:
		return fmt.Sprintf("%+v", val)
	}
}

// statusCode pulls a numeric status out of mapping-shaped errors.
func statusCode(v any) int {
	m, ok := v.(map[string]any)
	if !ok {
		return 0
	}
	for _, key := range []string{"status", "status_code", "code"} {
		field, ok := m[key]
		if !ok {
			continue
		}
		switch n := field.(type) {
		case int:
			return n
		case int64:
			return int(n)
		case float64:
			return int(n)
		case string:
			if parsed, err := strconv.Atoi(n); err == nil {
				return parsed
			}
		}
	}
	return 0
}

// matchServer returns the first server whose name appears in the text,
// case-insensitively.
func matchServer(text string, serverNames []string) string {
	lower := strings.ToLower(text)
	for _, name := range serverNames {
		if name == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(name)) {
			return name
		}
	}
	return ""
}
