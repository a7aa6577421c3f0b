package mixer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Bass", "bass"},
		{"  MIC  ", "mic"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeName(tt.in))
		})
	}
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Bass", DisplayName("bass"))
	assert.Equal(t, "Élan", DisplayName("élan"))
	assert.Equal(t, "", DisplayName(""))
}

func TestCommandTarget(t *testing.T) {
	tests := []struct {
		kind CommandKind
		want PropertyKind
	}{
		{SetVolume, Volume},
		{IncreaseVolume, Volume},
		{DecreaseVolume, Volume},
		{MuteChannel, Mute},
		{UnmuteChannel, Mute},
		{ToggleMute, Mute},
		{ToggleSolo, Solo},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, Command{Kind: tt.kind}.Target())
		})
	}
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 0, Clamp(-1))
	assert.Equal(t, 127, Clamp(128))
	assert.Equal(t, 64, Clamp(64))
}
