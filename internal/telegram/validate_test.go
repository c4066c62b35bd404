package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const testToken = "1234567890:AAEhBOweik6ad9r_QXMENQjcrGbqCr4K-pc"

func TestLooksLikeToken(t *testing.T) {
	tests := []struct {
		token string
		want  bool
	}{
		{testToken, true},
		{"123:ABCDEFGHIJ", true},
		{"no-colon-here", false},
		{"letters:ABCDEFGHIJ", false},
		{"123:short", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := LooksLikeToken(tt.token); got != tt.want {
			t.Errorf("LooksLikeToken(%q) = %v, want %v", tt.token, got, tt.want)
		}
	}
}

func botAPIStub(t *testing.T, body string, status int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/getMe") {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
}

func TestValidateResolvesUsernameLabel(t *testing.T) {
	srv := botAPIStub(t, `{"ok":true,"result":{"id":42,"is_bot":true,"first_name":"Claw","username":"clawbot"}}`, http.StatusOK)
	defer srv.Close()

	v := NewValidator(WithAPIServer(srv.URL))
	label, err := v.Validate(context.Background(), testToken)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if label != "@clawbot" {
		t.Errorf("label = %q, want @clawbot", label)
	}
}

func TestValidateFallsBackToFirstName(t *testing.T) {
	srv := botAPIStub(t, `{"ok":true,"result":{"id":42,"is_bot":true,"first_name":"Claw"}}`, http.StatusOK)
	defer srv.Close()

	v := NewValidator(WithAPIServer(srv.URL))
	label, err := v.Validate(context.Background(), testToken)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if label != "Claw" {
		t.Errorf("label = %q, want Claw", label)
	}
}

func TestValidateRejectsBadShapeWithoutNetwork(t *testing.T) {
	v := NewValidator(WithAPIServer("http://127.0.0.1:1")) // would fail if dialed

	_, err := v.Validate(context.Background(), "not-a-token")
	if !errors.Is(err, ErrInvalidFormat) {
		t.Errorf("error = %v, want ErrInvalidFormat", err)
	}
}

func TestValidateRejectedToken(t *testing.T) {
	srv := botAPIStub(t, `{"ok":false,"error_code":401,"description":"Unauthorized"}`, http.StatusUnauthorized)
	defer srv.Close()

	v := NewValidator(WithAPIServer(srv.URL))
	_, err := v.Validate(context.Background(), testToken)
	if !errors.Is(err, ErrNotOK) {
		t.Errorf("error = %v, want ErrNotOK", err)
	}
}
