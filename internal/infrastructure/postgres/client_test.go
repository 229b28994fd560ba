package postgres

import (
	"context"
	"strings"
	"testing"
)

func TestConnect_InvalidDSN(t *testing.T) {
	_, err := Connect(context.Background(), "postgres://u:p@host:notaport/db", DefaultPoolConfig())
	if err == nil {
		t.Fatal("Connect() expected error for invalid DSN")
	}
	if !strings.Contains(err.Error(), "parse postgres dsn") {
		t.Errorf("error = %v, want a parse failure", err)
	}
}

func TestDefaultPoolConfig(t *testing.T) {
	pc := DefaultPoolConfig()
	if pc.MinConns > pc.MaxConns {
		t.Errorf("MinConns %d > MaxConns %d", pc.MinConns, pc.MaxConns)
	}
	if pc.MaxConnLifetime <= 0 || pc.MaxConnIdleTime <= 0 {
		t.Errorf("lifetimes must be positive: %+v", pc)
	}
}
