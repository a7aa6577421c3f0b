package mixer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	calls []mirrorCall
}

type mirrorCall struct {
	ref   string
	kind  PropertyKind
	value int
}

func (s *recordingSink) Notify(ref string, kind PropertyKind, value int) {
	s.calls = append(s.calls, mirrorCall{ref, kind, value})
}

func testChannels() []Channel {
	return []Channel{
		{Name: "Bass", Volume: Property{CC: 10, Value: 64}, Mute: Property{CC: 11}},
		{Name: "mic", Volume: Property{CC: 20}, Mute: Property{CC: 21}, Solo: Property{CC: 22}, Mirror: "42"},
	}
}

func TestApplySetVolume(t *testing.T) {
	e := NewEngine(testChannels())

	status, err := e.Apply("bass", Command{Kind: SetVolume, Value: 100})
	require.NoError(t, err)
	assert.Equal(t, Status{Name: "bass", Volume: 100}, status)
	assert.Equal(t, []Message{{Status: 176, CC: 10, Value: 100}}, e.Drain(nil))
	assert.False(t, e.Dirty(), "only surface events mark the session dirty")
}

func TestApplyCaseInsensitive(t *testing.T) {
	e := NewEngine(testChannels())

	status, err := e.Apply("BASS", Command{Kind: MuteChannel})
	require.NoError(t, err)
	assert.Equal(t, "bass", status.Name)
	assert.True(t, status.Mute)
}

func TestApplyToggleMuteInvolution(t *testing.T) {
	for _, start := range []int{MinValue, MaxValue} {
		chans := testChannels()
		chans[0].Mute.Value = start
		e := NewEngine(chans)

		first, err := e.Apply("bass", Command{Kind: ToggleMute})
		require.NoError(t, err)
		assert.Equal(t, start != MaxValue, first.Mute)

		second, err := e.Apply("bass", Command{Kind: ToggleMute})
		require.NoError(t, err)
		assert.Equal(t, start == MaxValue, second.Mute)
		assert.Equal(t, start, e.Channels()[0].Mute.Value)
	}
}

func TestApplyToggleTreatsPartialValueAsOff(t *testing.T) {
	chans := testChannels()
	chans[1].Solo.Value = 64
	e := NewEngine(chans)

	status, err := e.Apply("mic", Command{Kind: ToggleSolo})
	require.NoError(t, err)
	assert.True(t, status.Solo)
	assert.Equal(t, MaxValue, e.Channels()[1].Solo.Value)
}

func TestApplyVolumeSaturates(t *testing.T) {
	chans := testChannels()
	chans[0].Volume.Value = 126
	e := NewEngine(chans, WithStep(2))

	for i := 0; i < 5; i++ {
		status, err := e.Apply("bass", Command{Kind: IncreaseVolume})
		require.NoError(t, err)
		assert.Equal(t, MaxValue, status.Volume)
	}

	chans[0].Volume.Value = 1
	e = NewEngine(chans, WithStep(2))
	status, err := e.Apply("bass", Command{Kind: DecreaseVolume})
	require.NoError(t, err)
	assert.Equal(t, MinValue, status.Volume)
}

func TestApplyVolumeAlwaysInRange(t *testing.T) {
	cmds := []Command{
		{Kind: SetVolume, Value: -40},
		{Kind: SetVolume, Value: 500},
		{Kind: IncreaseVolume},
		{Kind: DecreaseVolume},
	}
	for _, start := range []int{0, 1, 63, 126, 127} {
		for _, cmd := range cmds {
			chans := testChannels()
			chans[0].Volume.Value = start
			e := NewEngine(chans, WithStep(5))
			status, err := e.Apply("bass", cmd)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, status.Volume, MinValue, "start=%d cmd=%s", start, cmd)
			assert.LessOrEqual(t, status.Volume, MaxValue, "start=%d cmd=%s", start, cmd)
		}
	}
}

func TestApplyNotFoundHasNoSideEffects(t *testing.T) {
	e := NewEngine(testChannels())
	before := e.Channels()

	status, err := e.Apply("drums2", Command{Kind: ToggleMute})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, Status{}, status)
	assert.Equal(t, before, e.Channels())
	assert.Zero(t, e.Pending())
	assert.False(t, e.Dirty())
}

func TestApplyUnboundPropertyQueuesNothing(t *testing.T) {
	e := NewEngine(testChannels())

	status, err := e.Apply("bass", Command{Kind: ToggleSolo})
	require.NoError(t, err)
	assert.True(t, status.Solo)
	assert.Zero(t, e.Pending())
}

func TestApplyRejectsInvalidAndClosed(t *testing.T) {
	e := NewEngine(testChannels())

	_, err := e.Apply("bass", Command{})
	assert.ErrorIs(t, err, ErrInvalidCommand)

	e.Close()
	_, err = e.Apply("bass", Command{Kind: MuteChannel})
	assert.ErrorIs(t, err, ErrClosed)
	assert.Zero(t, e.Pending())
}

func TestIngest(t *testing.T) {
	sink := &recordingSink{}
	e := NewEngine(testChannels(), WithMirror(sink))

	assert.True(t, e.Ingest(20, 90))
	assert.True(t, e.Ingest(21, 127))
	assert.True(t, e.Ingest(22, 127))

	ch := e.Channels()[1]
	assert.Equal(t, 90, ch.Volume.Value)
	assert.Equal(t, 127, ch.Mute.Value)
	assert.Equal(t, 127, ch.Solo.Value)
	assert.Zero(t, e.Pending(), "ingest must not echo")
	assert.True(t, e.Dirty())
	assert.Equal(t, []mirrorCall{{"42", Volume, 90}, {"42", Mute, 127}}, sink.calls)
}

func TestIngestUnknownIsNoop(t *testing.T) {
	e := NewEngine(testChannels())
	before := e.Channels()

	assert.False(t, e.Ingest(99, 5))
	assert.False(t, e.Ingest(0, 5), "control-id 0 never matches")
	assert.Equal(t, before, e.Channels())
	assert.False(t, e.Dirty())
}

func TestIngestFirstMatchWins(t *testing.T) {
	chans := []Channel{
		{Name: "a", Volume: Property{CC: 5}},
		{Name: "b", Mute: Property{CC: 5}},
	}
	e := NewEngine(chans)

	assert.True(t, e.Ingest(5, 77))
	got := e.Channels()
	assert.Equal(t, 77, got[0].Volume.Value)
	assert.Equal(t, 0, got[1].Mute.Value)
}

func TestDrainClears(t *testing.T) {
	e := NewEngine(testChannels())
	e.Enqueue(10, 1)
	e.Enqueue(11, 127)

	buf := e.Drain(nil)
	assert.Len(t, buf, 2)
	assert.Zero(t, e.Pending())

	buf = e.Drain(buf)
	assert.Empty(t, buf)
}

func TestTakeDirty(t *testing.T) {
	e := NewEngine(testChannels())
	assert.False(t, e.TakeDirty())

	e.Ingest(10, 3)
	assert.True(t, e.TakeDirty())
	assert.False(t, e.TakeDirty())
	assert.False(t, e.Dirty())
}

func TestBoundOrder(t *testing.T) {
	e := NewEngine(testChannels())
	assert.Equal(t, []Property{
		{CC: 10, Value: 64}, {CC: 11},
		{CC: 20}, {CC: 21}, {CC: 22},
	}, e.Bound())
}

func TestStatus(t *testing.T) {
	e := NewEngine(testChannels())

	status, err := e.Status("Mic")
	require.NoError(t, err)
	assert.Equal(t, "mic", status.Name)

	_, err = e.Status("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}
