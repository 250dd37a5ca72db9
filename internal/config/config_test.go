package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATAREG_AUTH_SECRET", "s3cret")

	c, err := load(viper.New())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.HTTP.Addr != ":8080" || c.GRPC.Addr != ":9090" {
		t.Fatalf("unexpected addrs %q %q", c.HTTP.Addr, c.GRPC.Addr)
	}
	if c.Auth.TokenTTL != 8*time.Hour {
		t.Fatalf("token ttl %v", c.Auth.TokenTTL)
	}
	if c.Uploads.Dir != "./uploads" || c.Uploads.MaxBytes != 32<<20 {
		t.Fatalf("uploads %+v", c.Uploads)
	}
	if c.RateLimit.RPS != 10 || c.RateLimit.Burst != 20 {
		t.Fatalf("rate limit %+v", c.RateLimit)
	}
	if !c.UseMemory() {
		t.Fatalf("empty dsn should select the memory store")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("DATAREG_AUTH_SECRET", "s3cret")
	t.Setenv("DATAREG_DATABASE_DSN", "postgres://localhost/datareg")
	t.Setenv("DATAREG_HTTP_ADDR", ":18080")
	t.Setenv("DATAREG_AUTH_TOKEN_TTL", "30m")

	c, err := load(viper.New())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.UseMemory() || c.Database.DSN != "postgres://localhost/datareg" {
		t.Fatalf("dsn not picked up: %q", c.Database.DSN)
	}
	if c.HTTP.Addr != ":18080" {
		t.Fatalf("addr %q", c.HTTP.Addr)
	}
	if c.Auth.TokenTTL != 30*time.Minute {
		t.Fatalf("ttl %v", c.Auth.TokenTTL)
	}
}

func TestLoadRequiresSecret(t *testing.T) {
	t.Setenv("DATAREG_AUTH_SECRET", "")
	_, err := load(viper.New())
	if err == nil || !strings.Contains(err.Error(), "auth.secret") {
		t.Fatalf("expected missing secret error, got %v", err)
	}
}
