// civictrack/utils/security_test.go
package utils

import (
	"net/http/httptest"
	"testing"
	"time"
)

func TestTokenRoundTrip(t *testing.T) {
	token, err := GenerateToken(42, "secret", time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}
	id, err := ParseToken(token, "secret")
	if err != nil {
		t.Fatalf("ParseToken failed: %v", err)
	}
	if id != 42 {
		t.Errorf("Parsed user id = %d, want 42", id)
	}
}

func TestTokenWrongSecret(t *testing.T) {
	token, err := GenerateToken(42, "secret", time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}
	if _, err := ParseToken(token, "other-secret"); err == nil {
		t.Error("Token verified with the wrong secret")
	}
}

func TestTokenExpired(t *testing.T) {
	token, err := GenerateToken(42, "secret", -time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}
	if _, err := ParseToken(token, "secret"); err == nil {
		t.Error("Expired token accepted")
	}
}

func TestTokenGarbage(t *testing.T) {
	if _, err := ParseToken("not.a.token", "secret"); err == nil {
		t.Error("Garbage token accepted")
	}
}

func TestGenerateTokenRequiresSecret(t *testing.T) {
	if _, err := GenerateToken(1, "", time.Hour); err == nil {
		t.Error("Expected an error for an empty secret")
	}
}

func TestGetIPAddress(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "203.0.113.9:4321"
	if ip := GetIPAddress(r); ip != "203.0.113.9" {
		t.Errorf("RemoteAddr ip = %q", ip)
	}

	r.Header.Set("X-Real-IP", "198.51.100.7")
	if ip := GetIPAddress(r); ip != "198.51.100.7" {
		t.Errorf("X-Real-IP ip = %q", ip)
	}

	r.Header.Set("X-Forwarded-For", "192.0.2.1, 198.51.100.7")
	if ip := GetIPAddress(r); ip != "192.0.2.1" {
		t.Errorf("X-Forwarded-For ip = %q", ip)
	}
}
