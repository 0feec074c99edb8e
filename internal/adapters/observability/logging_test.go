package observability_test

import (
	"testing"

	"github.com/rs/zerolog"

	"jetstay/internal/adapters/observability"
)

func TestNewLogger_Levels(t *testing.T) {
	cases := []struct {
		env, level string
		want       zerolog.Level
	}{
		{"prod", "", zerolog.InfoLevel},
		{"dev", "", zerolog.DebugLevel},
		{"prod", "warn", zerolog.WarnLevel},
		{"development", "error", zerolog.ErrorLevel},
		{"prod", "nonsense", zerolog.InfoLevel},
	}
	for _, c := range cases {
		l := observability.NewLogger(c.env, c.level)
		if got := l.GetLevel(); got != c.want {
			t.Fatalf("NewLogger(%q,%q) level = %v, want %v", c.env, c.level, got, c.want)
		}
	}
}
