package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func patientClaims(exp time.Time) Claims {
	return Claims{
		Rol:        2,
		IDPaciente: 15,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "31",
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
}

func TestHS256RoundTrip(t *testing.T) {
	token, err := SignHS256(patientClaims(time.Now().Add(time.Hour)), "test-secret")
	if err != nil {
		t.Fatalf("SignHS256: %v", err)
	}
	claims, err := NewVerifier("test-secret", nil).Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	h := claims.Headers()
	if h["X-User-Id"] != "31" || h["X-Role"] != "2" || h["X-Paciente-Id"] != "15" {
		t.Fatalf("unexpected headers %v", h)
	}
	if _, ok := h["X-Odontologo-Id"]; ok {
		t.Fatal("patient token must not carry a dentist id")
	}
	if _, err := NewVerifier("wrong-secret", nil).Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	token, err := SignHS256(patientClaims(time.Now().Add(-time.Hour)), "s")
	if err != nil {
		t.Fatalf("SignHS256: %v", err)
	}
	if _, err := NewVerifier("s", nil).Verify(token); err == nil {
		t.Fatal("expected expired token to fail")
	}
}

func TestRS256ViaJWKS(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("rsa.GenerateKey: %v", err)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"keys": []map[string]string{{
			"kty": "RSA",
			"kid": "kid-1",
			"n":   base64.RawURLEncoding.EncodeToString(key.PublicKey.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.PublicKey.E)).Bytes()),
		}}})
	}))
	defer srv.Close()

	claims := Claims{
		Rol:          3,
		IDOdontologo: 4,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "9",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = "kid-1"
	signed, err := tok.SignedString(key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	got, err := NewVerifier("", NewJWKSClient(srv.URL, time.Minute)).Verify(signed)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if got.Headers()["X-Odontologo-Id"] != "4" {
		t.Fatalf("unexpected claims %+v", got)
	}

	tok.Header["kid"] = "unknown"
	other, _ := tok.SignedString(key)
	if _, err := NewVerifier("", NewJWKSClient(srv.URL, time.Minute)).Verify(other); err == nil {
		t.Fatal("expected unknown kid to fail")
	}
}
