package util

import "testing"

func TestParseBoolEnv(t *testing.T) {
	tests := []struct {
		name  string
		value string
		def   bool
		want  bool
	}{
		{"unset uses default", "", true, true},
		{"true", "true", false, true},
		{"numeric true", "1", false, true},
		{"yes", "YES", false, true},
		{"false", "false", true, false},
		{"off", "off", true, false},
		{"invalid uses default", "maybe", true, true},
		{"whitespace trimmed", "  on  ", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_BOOL", tt.value)
			if got := ParseBoolEnv("TEST_BOOL", tt.def); got != tt.want {
				t.Errorf("ParseBoolEnv(%q, %v) = %v, want %v", tt.value, tt.def, got, tt.want)
			}
		})
	}
}

func TestParseIntEnv(t *testing.T) {
	tests := []struct {
		name  string
		value string
		def   int64
		want  int64
	}{
		{"unset uses default", "", 50000, 50000},
		{"valid", "75000", 50000, 75000},
		{"negative", "-1", 0, -1},
		{"invalid uses default", "lots", 50000, 50000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_INT", tt.value)
			if got := ParseIntEnv("TEST_INT", tt.def); got != tt.want {
				t.Errorf("ParseIntEnv(%q, %d) = %d, want %d", tt.value, tt.def, got, tt.want)
			}
		})
	}
}

func TestGetEnvDefault(t *testing.T) {
	t.Setenv("TEST_STR", "")
	if got := GetEnvDefault("TEST_STR", "fallback"); got != "fallback" {
		t.Errorf("GetEnvDefault = %q", got)
	}
	t.Setenv("TEST_STR", "value")
	if got := GetEnvDefault("TEST_STR", "fallback"); got != "value" {
		t.Errorf("GetEnvDefault = %q", got)
	}
}
