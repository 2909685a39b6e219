package helpers

import (
	"testing"
	"time"
)

func TestGetFromEnv(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		checkFn func(t *testing.T, key string)
	}{
		{
			name:  "string set",
			value: "qdrant",
			checkFn: func(t *testing.T, key string) {
				if got := GetStringFromEnv(key, "memory"); got != "qdrant" {
					t.Errorf("GetStringFromEnv() = %q, want qdrant", got)
				}
			},
		},
		{
			name:  "string unset",
			value: "",
			checkFn: func(t *testing.T, key string) {
				if got := GetStringFromEnv(key, "memory"); got != "memory" {
					t.Errorf("GetStringFromEnv() = %q, want memory", got)
				}
			},
		},
		{
			name:  "int valid",
			value: " 8 ",
			checkFn: func(t *testing.T, key string) {
				if got := GetIntFromEnv(key, 4); got != 8 {
					t.Errorf("GetIntFromEnv() = %d, want 8", got)
				}
			},
		},
		{
			name:  "int invalid falls back",
			value: "eight",
			checkFn: func(t *testing.T, key string) {
				if got := GetIntFromEnv(key, 4); got != 4 {
					t.Errorf("GetIntFromEnv() = %d, want 4", got)
				}
			},
		},
		{
			name:  "float valid",
			value: "0.7",
			checkFn: func(t *testing.T, key string) {
				if got := GetFloatFromEnv(key, 0); got != 0.7 {
					t.Errorf("GetFloatFromEnv() = %v, want 0.7", got)
				}
			},
		},
		{
			name:  "bool valid",
			value: "true",
			checkFn: func(t *testing.T, key string) {
				if !GetBoolFromEnv(key, false) {
					t.Error("GetBoolFromEnv() = false, want true")
				}
			},
		},
		{
			name:  "duration valid",
			value: "90s",
			checkFn: func(t *testing.T, key string) {
				if got := GetDurationFromEnv(key, time.Second); got != 90*time.Second {
					t.Errorf("GetDurationFromEnv() = %v, want 90s", got)
				}
			},
		},
		{
			name:  "duration invalid falls back",
			value: "soon",
			checkFn: func(t *testing.T, key string) {
				if got := GetDurationFromEnv(key, time.Second); got != time.Second {
					t.Errorf("GetDurationFromEnv() = %v, want 1s", got)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := "MOVIERAG_HELPERS_TEST"
			t.Setenv(key, tt.value)
			tt.checkFn(t, key)
		})
	}
}

func TestPtrOf(t *testing.T) {
	p := PtrOf(0.0)
	if p == nil || *p != 0 {
		t.Errorf("PtrOf(0.0) = %v", p)
	}
}
