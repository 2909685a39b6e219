package pgvector

import (
	"context"
	"testing"
)

func TestParseConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		config    *Config
		expectErr bool
		checkFn   func(t *testing.T, cfg Config)
	}{
		{
			name:      "nil config",
			config:    nil,
			expectErr: true,
		},
		{
			name:      "missing connection string",
			config:    &Config{},
			expectErr: true,
		},
		{
			name:      "negative dimension",
			config:    &Config{ConnectionString: "postgres://localhost/db", VectorDimension: -1},
			expectErr: true,
		},
		{
			name:   "defaults",
			config: &Config{ConnectionString: "postgres://localhost/db"},
			checkFn: func(t *testing.T, cfg Config) {
				if cfg.TableName != "movies" {
					t.Errorf("TableName = %q, want movies", cfg.TableName)
				}
				if cfg.VectorDimension != 0 {
					t.Errorf("VectorDimension = %d, want 0", cfg.VectorDimension)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg, err := parseConfig(tt.config)
			if (err != nil) != tt.expectErr {
				t.Fatalf("parseConfig() error = %v, expectErr %v", err, tt.expectErr)
			}
			if tt.checkFn != nil {
				tt.checkFn(t, cfg)
			}
		})
	}
}

func TestNewInvalidConnectionString(t *testing.T) {
	if _, err := New(context.Background(), &Config{ConnectionString: "postgres://:badport"}); err == nil {
		t.Error("New() with an unparsable connection string should fail")
	}
}

func TestDecodeMetadata(t *testing.T) {
	t.Parallel()
	if m, err := decodeMetadata([]byte("null")); err != nil || m != nil {
		t.Errorf("decodeMetadata(null) = %v, %v", m, err)
	}
	m, err := decodeMetadata([]byte(`{"title":"The Northman"}`))
	if err != nil || m["title"] != "The Northman" {
		t.Errorf("decodeMetadata() = %v, %v", m, err)
	}
	if _, err := decodeMetadata([]byte("{")); err == nil {
		t.Error("decodeMetadata() should reject malformed JSON")
	}
}
