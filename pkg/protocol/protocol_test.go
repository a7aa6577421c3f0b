package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/james-see/jackmixercc/pkg/mixer"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		control string
		want    mixer.Command
	}{
		{"1v,50", mixer.Command{Kind: mixer.SetVolume, Value: 50}},
		{"1v,0", mixer.Command{Kind: mixer.SetVolume, Value: 0}},
		{"1v,-3", mixer.Command{Kind: mixer.SetVolume, Value: -3}},
		{"1i", mixer.Command{Kind: mixer.IncreaseVolume}},
		{"1d", mixer.Command{Kind: mixer.DecreaseVolume}},
		{"2m", mixer.Command{Kind: mixer.MuteChannel}},
		{"2u", mixer.Command{Kind: mixer.UnmuteChannel}},
		{"2t", mixer.Command{Kind: mixer.ToggleMute}},
		{"2", mixer.Command{Kind: mixer.ToggleMute}},
		{"3t", mixer.Command{Kind: mixer.ToggleSolo}},
		{"3", mixer.Command{Kind: mixer.ToggleSolo}},
	}
	for _, tt := range tests {
		t.Run(tt.control, func(t *testing.T) {
			got, err := ParseCommand(tt.control)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseCommandErrors(t *testing.T) {
	for _, control := range []string{"", "1", "1v,", "1v,abc", "4t", "2x", "1x"} {
		t.Run(control, func(t *testing.T) {
			_, err := ParseCommand(control)
			assert.ErrorIs(t, err, ErrProtocolDecode)
		})
	}
}

func TestFormatCommandMatchesParse(t *testing.T) {
	for _, kind := range []mixer.CommandKind{
		mixer.SetVolume, mixer.IncreaseVolume, mixer.DecreaseVolume,
		mixer.MuteChannel, mixer.UnmuteChannel, mixer.ToggleMute, mixer.ToggleSolo,
	} {
		cmd := mixer.Command{Kind: kind}
		got, err := ParseCommand(FormatCommand(cmd))
		require.NoError(t, err)
		assert.Equal(t, cmd, got)
	}
}

func TestDecode(t *testing.T) {
	req, err := Decode("bass⚏1v,100\n")
	require.NoError(t, err)
	assert.Equal(t, "bass", req.Channel)
	assert.Equal(t, mixer.Command{Kind: mixer.SetVolume, Value: 100}, req.Command)

	_, err = Decode("bass 2t")
	assert.ErrorIs(t, err, ErrProtocolDecode)

	_, err = Decode("⚏2t")
	assert.ErrorIs(t, err, ErrProtocolDecode)

	_, err = Decode("bass⚏9z")
	assert.ErrorIs(t, err, ErrProtocolDecode)
}

func TestEncode(t *testing.T) {
	assert.Equal(t, "Bass⚏100⚏Off⚏Off", Encode(mixer.Status{Name: "bass", Volume: 100}))
	assert.Equal(t, "Bass⚏100⚏On⚏Off", Encode(mixer.Status{Name: "bass", Volume: 100, Mute: true}))
	assert.Equal(t, "Mic⚏0⚏Off⚏On", Encode(mixer.Status{Name: "mic", Solo: true}))
}

func TestEncodeUnknown(t *testing.T) {
	assert.Equal(t, "unknown channel⚏0⚏Off⚏Off", EncodeUnknown())
}

func TestEncodeRequest(t *testing.T) {
	assert.Equal(t, "bass⚏1v,20", EncodeRequest("bass", mixer.Command{Kind: mixer.SetVolume, Value: 20}))
}
