package auth

import (
	"testing"
	"time"

	"github.com/okabe-dev/bidhouse-backend/pkg/config"
	"github.com/okabe-dev/bidhouse-backend/pkg/enums"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:            "test-secret",
		Issuer:            "bidhouse",
		ExpirationMinutes: 15,
	}
}

func TestMintAndParseAccessToken(t *testing.T) {
	cfg := testJWTConfig()
	now := time.Now().UTC()

	signed, err := MintAccessToken(cfg, now, AccessTokenPayload{
		Address: "trader:alice",
		Role:    enums.ActorRoleTrader,
	})
	if err != nil {
		t.Fatalf("MintAccessToken: %v", err)
	}

	claims, err := ParseAccessToken(cfg, signed)
	if err != nil {
		t.Fatalf("ParseAccessToken: %v", err)
	}
	if claims.Address != "trader:alice" {
		t.Fatalf("unexpected address %q", claims.Address)
	}
	if claims.Role != enums.ActorRoleTrader {
		t.Fatalf("unexpected role %q", claims.Role)
	}
	if claims.Subject != "trader:alice" {
		t.Fatalf("unexpected subject %q", claims.Subject)
	}
	if claims.ID == "" {
		t.Fatal("expected generated jti")
	}
}

func TestMintAccessTokenValidation(t *testing.T) {
	now := time.Now().UTC()
	valid := AccessTokenPayload{Address: "trader:alice", Role: enums.ActorRoleTrader}

	cfg := testJWTConfig()
	cfg.Secret = ""
	if _, err := MintAccessToken(cfg, now, valid); err == nil {
		t.Fatal("expected error for missing secret")
	}

	cfg = testJWTConfig()
	cfg.Issuer = ""
	if _, err := MintAccessToken(cfg, now, valid); err == nil {
		t.Fatal("expected error for missing issuer")
	}

	cfg = testJWTConfig()
	if _, err := MintAccessToken(cfg, now, AccessTokenPayload{Role: enums.ActorRoleTrader}); err == nil {
		t.Fatal("expected error for missing address")
	}
	if _, err := MintAccessToken(cfg, now, AccessTokenPayload{Address: "trader:alice", Role: "ghost"}); err == nil {
		t.Fatal("expected error for invalid role")
	}
}

func TestParseAccessTokenRejectsExpired(t *testing.T) {
	cfg := testJWTConfig()
	past := time.Now().UTC().Add(-2 * time.Hour)

	signed, err := MintAccessToken(cfg, past, AccessTokenPayload{
		Address: "operator:root",
		Role:    enums.ActorRoleOperator,
	})
	if err != nil {
		t.Fatalf("MintAccessToken: %v", err)
	}

	if _, err := ParseAccessToken(cfg, signed); err == nil {
		t.Fatal("expected expiry error")
	}

	claims, err := ParseAccessTokenAllowExpired(cfg, signed)
	if err != nil {
		t.Fatalf("ParseAccessTokenAllowExpired: %v", err)
	}
	if claims.Address != "operator:root" {
		t.Fatalf("unexpected address %q", claims.Address)
	}
}

func TestParseAccessTokenRejectsWrongIssuer(t *testing.T) {
	cfg := testJWTConfig()
	signed, err := MintAccessToken(cfg, time.Now().UTC(), AccessTokenPayload{
		Address: "trader:alice",
		Role:    enums.ActorRoleTrader,
	})
	if err != nil {
		t.Fatalf("MintAccessToken: %v", err)
	}

	other := cfg
	other.Issuer = "someone-else"
	if _, err := ParseAccessToken(other, signed); err == nil {
		t.Fatal("expected issuer mismatch error")
	}
}
