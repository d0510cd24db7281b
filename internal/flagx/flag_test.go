package flagx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		allowed []string
		want    []string
	}{
		{
			name:    "short flag with separate value",
			args:    []string{"-u", "https://store", "profile", "show"},
			allowed: []string{"-u", "-k"},
			want:    []string{"-u", "https://store"},
		},
		{
			name:    "flag with equals",
			args:    []string{"-k=anon", "rewards", "list"},
			allowed: []string{"-u", "-k"},
			want:    []string{"-k=anon"},
		},
		{
			name:    "preserve order of several flags",
			args:    []string{"-k=anon", "-x", "1", "-u", "https://store"},
			allowed: []string{"-u", "-k"},
			want:    []string{"-k=anon", "-u", "https://store"},
		},
		{
			name:    "flag followed by another flag keeps no value",
			args:    []string{"-u", "-k", "anon"},
			allowed: []string{"-u", "-k"},
			want:    []string{"-u", "-k", "anon"},
		},
		{
			name:    "unknown flags ignored",
			args:    []string{"--category=running", "positional"},
			allowed: []string{"-u"},
			want:    []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FilterArgs(tt.args, tt.allowed)
			assert.NotNil(t, got)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConfigFile(t *testing.T) {
	assert.Equal(t, "a.json", ConfigFile([]string{"-c", "a.json", "profile"}))
	assert.Equal(t, "b.json", ConfigFile([]string{"profile", "-config=b.json"}))
	assert.Equal(t, "c.json", ConfigFile([]string{"--config", "c.json"}))
	assert.Equal(t, "", ConfigFile([]string{"rewards", "list"}))
}
