package processor

import (
	"errors"
	"testing"
)

func TestDetectAuthErrorByStatus(t *testing.T) {
	isAuth, server := DetectAuthError(map[string]any{"status": 401, "message": "bad"}, nil)
	if !isAuth {
		t.Error("status 401 must classify as auth error")
	}
	if server != "" {
		t.Errorf("server = %q, want empty", server)
	}

	if isAuth, _ := DetectAuthError(map[string]any{"status": 403}, nil); !isAuth {
		t.Error("status 403 must classify as auth error")
	}
	if isAuth, _ := DetectAuthError(map[string]any{"status": 500, "message": "boom"}, nil); isAuth {
		t.Error("status 500 without markers must not classify as auth error")
	}
}

func TestDetectAuthErrorByMarker(t *testing.T) {
	cases := []struct {
		in   any
		want bool
	}{
		{"Tool returned Unauthorized", true},
		{"FORBIDDEN by policy", true},
		{"invalid token supplied", true},
		{"Token Expired, refresh required", true},
		{"authentication required for endpoint", true},
		{"disk full", false},
		{"connection reset by peer", false},
	}
	for _, tc := range cases {
		if got, _ := DetectAuthError(tc.in, nil); got != tc.want {
			t.Errorf("DetectAuthError(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestDetectAuthErrorMatchesServer(t *testing.T) {
	servers := []string{"github-mcp", "notion"}

	isAuth, server := DetectAuthError("Tool 'github-mcp' returned Unauthorized", servers)
	if !isAuth {
		t.Fatal("must classify as auth error")
	}
	if server != "github-mcp" {
		t.Errorf("server = %q, want github-mcp", server)
	}

	// Matching is case-insensitive on both sides.
	_, server = DetectAuthError("NOTION says token expired", servers)
	if server != "notion" {
		t.Errorf("server = %q, want notion", server)
	}

	// Auth error with no known server still classifies, with no identity.
	isAuth, server = DetectAuthError("upstream said forbidden", servers)
	if !isAuth || server != "" {
		t.Errorf("got (%v, %q), want (true, \"\")", isAuth, server)
	}
}

func TestDetectAuthErrorShapes(t *testing.T) {
	// error values
	if isAuth, _ := DetectAuthError(errors.New("401 unauthorized"), nil); !isAuth {
		t.Error("error value not classified")
	}

	// mapping with string status
	if isAuth, _ := DetectAuthError(map[string]any{"status": "401"}, nil); !isAuth {
		t.Error("string status not classified")
	}

	// arbitrary struct must not panic
	type weird struct{ Reason string }
	if isAuth, _ := DetectAuthError(weird{Reason: "forbidden"}, nil); !isAuth {
		t.Error("struct shape not classified")
	}

	// nil must not panic and must not classify
	if isAuth, _ := DetectAuthError(nil, []string{"github"}); isAuth {
		t.Error("nil classified as auth error")
	}
}
