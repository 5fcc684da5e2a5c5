package stream

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/Honorable-Knights-of-the-Roundtable/i2sstream/pkg/peripheral"
	"github.com/Honorable-Knights-of-the-Roundtable/i2sstream/pkg/storage"
	"github.com/Honorable-Knights-of-the-Roundtable/i2sstream/pkg/wavcontainer"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOneSecondStereoFileFinishesAfterFortyTicks(t *testing.T) {
	payload := pcmPayload(176400)
	store, _ := writeWAV(t, "song.wav", 44100, 16, 2, payload)
	m := newTickPeripheral(4410)

	c, err := Open(store, m, playbackSpec("song.wav", 10000))
	require.NoError(t, err)
	defer c.Close()
	assert.Equal(t, int64(176400), c.Container().DataLength)

	require.NoError(t, c.Play())
	runTicks(t, c, m, 39)
	assert.Equal(t, Playing, c.State())

	runTicks(t, c, m, 1)
	status := c.Status()
	assert.Equal(t, Finished, status.State)
	assert.Equal(t, int64(176400), status.BytesTransferred)
	assert.Zero(t, status.UnderrunCount)
	assert.Equal(t, payload, m.written.Bytes())
	assert.True(t, c.Done())
}

func TestPlaybackRoundTripWritesEveryFrame(t *testing.T) {
	const frames = 1000
	payload := pcmPayload(frames * 4)
	store, _ := writeWAV(t, "frames.wav", 8000, 16, 2, payload)
	m := newTickPeripheral(1 << 20)

	c, err := Open(store, m, playbackSpec("frames.wav", 1024))
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Play())
	for i := 0; i < 100 && !c.Done(); i++ {
		runTicks(t, c, m, 1)
	}

	require.True(t, c.Done())
	assert.Equal(t, frames*4, m.written.Len())
	assert.Equal(t, payload, m.written.Bytes())
	assert.Zero(t, c.Status().UnderrunCount)
}

func TestSlowRefillCountsUnderruns(t *testing.T) {
	store, _ := writeWAV(t, "song.wav", 44100, 16, 2, pcmPayload(176400))
	m := newTickPeripheral(4410)

	c, err := Open(store, m, playbackSpec("song.wav", 1000))
	require.NoError(t, err)
	defer c.Close()

	// Prefill once, then never refill again.
	n, err := c.Refill()
	require.NoError(t, err)
	assert.Equal(t, 1000, n)
	require.NoError(t, c.Play())

	m.Tick()
	require.NoError(t, c.Service())
	assert.Zero(t, c.Status().UnderrunCount)

	m.Tick()
	require.NoError(t, c.Service())
	assert.Equal(t, uint64(1), c.Status().UnderrunCount)
	assert.Equal(t, int64(1000), c.Status().BytesTransferred)

	// Streaming carries on once storage catches up.
	runTicks(t, c, m, 1)
	assert.Equal(t, Playing, c.State())
	assert.Equal(t, int64(2000), c.Status().BytesTransferred)
}

func TestInvalidTransitionsLeaveStateUnchanged(t *testing.T) {
	store, _ := writeWAV(t, "a.wav", 8000, 16, 1, pcmPayload(1600))
	m := newTickPeripheral(160)

	c, err := Open(store, m, playbackSpec("a.wav", 512))
	require.NoError(t, err)
	defer c.Close()

	err = c.Pause()
	assert.ErrorIs(t, err, ErrInvalidStateTransition)
	var transition *TransitionError
	require.ErrorAs(t, err, &transition)
	assert.Equal(t, "pause", transition.Op)
	assert.Equal(t, Idle, transition.From)
	assert.Equal(t, Idle, c.State())

	assert.ErrorIs(t, c.Resume(), ErrInvalidStateTransition)

	require.NoError(t, c.Play())
	// Playing an already playing stream is a caller error, not a no-op.
	assert.ErrorIs(t, c.Play(), ErrInvalidStateTransition)
	assert.ErrorIs(t, c.Resume(), ErrInvalidStateTransition)
	assert.Equal(t, Playing, c.State())

	require.NoError(t, c.Pause())
	assert.ErrorIs(t, c.Pause(), ErrInvalidStateTransition)
	// play from Paused resumes
	require.NoError(t, c.Play())
	assert.Equal(t, Playing, c.State())
}

func TestFinishedIsTerminal(t *testing.T) {
	store, _ := writeWAV(t, "a.wav", 8000, 16, 1, pcmPayload(320))
	m := newTickPeripheral(1 << 10)

	c, err := Open(store, m, playbackSpec("a.wav", 512))
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Play())
	runTicks(t, c, m, 2)
	require.Equal(t, Finished, c.State())

	for name, op := range map[string]func() error{
		"play": c.Play, "pause": c.Pause, "resume": c.Resume, "stop": c.Stop,
	} {
		assert.ErrorIs(t, op(), ErrInvalidStateTransition, name)
	}
	_, err = c.Refill()
	assert.ErrorIs(t, err, ErrSourceExhausted)
	assert.Equal(t, int64(320), c.Status().BytesTransferred)
}

func TestPauseResumeWithoutServiceKeepsBytesTransferred(t *testing.T) {
	store, _ := writeWAV(t, "a.wav", 8000, 16, 1, pcmPayload(16000))
	m := newTickPeripheral(160)

	c, err := Open(store, m, playbackSpec("a.wav", 1024))
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Play())
	runTicks(t, c, m, 3)
	before := c.Status().BytesTransferred
	require.Equal(t, int64(480), before)

	require.NoError(t, c.Pause())
	require.NoError(t, c.Resume())
	assert.Equal(t, before, c.Status().BytesTransferred)

	// While paused nothing moves in either direction.
	require.NoError(t, c.Pause())
	buffered := c.Status().BytesBuffered
	runTicks(t, c, m, 2)
	assert.Equal(t, before, c.Status().BytesTransferred)
	assert.Equal(t, buffered, c.Status().BytesBuffered)
	assert.Zero(t, c.Status().UnderrunCount)
}

func TestFinishedWaitsForPeripheralDrain(t *testing.T) {
	store, _ := writeWAV(t, "a.wav", 8000, 16, 1, pcmPayload(320))
	m := newTickPeripheral(1 << 10)
	m.drainComplete = false

	c, err := Open(store, m, playbackSpec("a.wav", 512))
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Play())
	runTicks(t, c, m, 3)
	status := c.Status()
	assert.Equal(t, Playing, status.State)
	assert.True(t, status.Drained)
	assert.Equal(t, int64(320), status.BytesTransferred)
	assert.Zero(t, status.UnderrunCount, "an empty ring after the last sample is not an underrun")

	m.drainComplete = true
	require.NoError(t, c.Service())
	assert.Equal(t, Finished, c.State())
}

func TestStopResetsAndPlayRestartsFromFirstSample(t *testing.T) {
	payload := pcmPayload(1600)
	store, _ := writeWAV(t, "a.wav", 8000, 16, 1, payload)
	m := newTickPeripheral(160)

	c, err := Open(store, m, playbackSpec("a.wav", 512))
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Play())
	runTicks(t, c, m, 2)
	require.NoError(t, c.Stop())

	status := c.Status()
	assert.Equal(t, Stopped, status.State)
	assert.Zero(t, status.BytesTransferred)
	assert.Zero(t, status.BytesBuffered)
	assert.Equal(t, 2, m.configures, "stop reconfigures the peripheral")
	assert.ErrorIs(t, c.Stop(), ErrInvalidStateTransition)

	m.written.Reset()
	require.NoError(t, c.Play())
	runTicks(t, c, m, 1)
	assert.Equal(t, payload[:160], m.written.Bytes())
}

func TestLoopingPlaybackNeverFinishes(t *testing.T) {
	payload := pcmPayload(40)
	store, _ := writeWAV(t, "loop.wav", 8000, 16, 2, payload)
	m := newTickPeripheral(1 << 10)

	spec := playbackSpec("loop.wav", 100)
	spec.Loop = true
	c, err := Open(store, m, spec)
	require.NoError(t, err)
	defer c.Close()

	n, err := c.Refill()
	require.NoError(t, err)
	assert.Equal(t, 100, n)
	assert.Equal(t, uint64(2), c.Status().Loops)

	require.NoError(t, c.Play())
	runTicks(t, c, m, 5)
	assert.Equal(t, Playing, c.State())
	assert.False(t, c.Status().Drained)

	written := m.written.Bytes()
	require.GreaterOrEqual(t, len(written), 120)
	assert.Equal(t, payload, written[:40])
	assert.Equal(t, payload, written[40:80])
	assert.Equal(t, payload, written[80:120])
}

func TestTruncatedFilePlaysWhatIsThere(t *testing.T) {
	mem := afero.NewMemMapFs()
	container, err := wavcontainer.New(8000, 16, 2)
	require.NoError(t, err)
	header := container.WithDataLength(4000).Header()
	payload := pcmPayload(101)
	require.NoError(t, afero.WriteFile(mem, "/sd/cut.wav", append(header[:], payload...), 0o644))

	m := newTickPeripheral(1 << 10)
	c, err := Open(storage.New(mem, "/sd"), m, playbackSpec("cut.wav", 512))
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Play())
	runTicks(t, c, m, 3)
	assert.Equal(t, Finished, c.State())
	assert.Equal(t, int64(100), c.Status().BytesTransferred)
	assert.Equal(t, payload[:100], m.written.Bytes())
}

func TestOpenFailsBeforeStreaming(t *testing.T) {
	mem := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(mem, "/sd/junk.wav", []byte("RIFX....WAVE"), 0o644))
	store := storage.New(mem, "/sd")
	m := newTickPeripheral(160)

	_, err := Open(store, m, playbackSpec("junk.wav", 512))
	assert.ErrorIs(t, err, wavcontainer.ErrMalformedHeader)

	_, err = Open(store, m, playbackSpec("missing.wav", 512))
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.Zero(t, m.configures)
}

func TestDirectionMismatch(t *testing.T) {
	store, _ := writeWAV(t, "a.wav", 8000, 16, 1, pcmPayload(160))
	c, err := Open(store, newTickPeripheral(160), playbackSpec("a.wav", 512))
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Drain()
	assert.ErrorIs(t, err, ErrDirection)
}

func TestStatusJSON(t *testing.T) {
	store, _ := writeWAV(t, "a.wav", 8000, 16, 1, pcmPayload(160))
	c, err := Open(store, newTickPeripheral(160), playbackSpec("a.wav", 512))
	require.NoError(t, err)
	defer c.Close()
	require.NoError(t, c.Play())

	raw, err := json.Marshal(c.Status())
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "playing", decoded["state"])
	assert.Equal(t, c.ID(), decoded["id"])

	var status Status
	require.NoError(t, json.Unmarshal(raw, &status))
	assert.Equal(t, Playing, status.State)
}

func TestCloseReleasesPeripheral(t *testing.T) {
	store, _ := writeWAV(t, "a.wav", 8000, 16, 1, pcmPayload(160))
	m := newTickPeripheral(160)
	c, err := Open(store, m, Spec{
		Name:       "a.wav",
		Direction:  peripheral.Playback,
		BufferSize: 512,
	})
	require.NoError(t, err)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.True(t, m.closed)
}

func TestPeripheralErrorsPropagate(t *testing.T) {
	store, _ := writeWAV(t, "a.wav", 8000, 16, 1, pcmPayload(1600))
	m := newTickPeripheral(160)
	c, err := Open(store, m, playbackSpec("a.wav", 512))
	require.NoError(t, err)
	defer c.Close()
	require.NoError(t, c.Play())

	busFault := errors.New("bus fault")
	m.writeErr = busFault
	_, err = c.Pump()
	require.NoError(t, err)
	m.Tick()
	assert.ErrorIs(t, c.Service(), busFault)
	assert.Zero(t, c.Status().BytesTransferred)

	// Nothing was lost: the samples are still buffered for the next tick.
	m.writeErr = nil
	require.NoError(t, c.Service())
	assert.Equal(t, pcmPayload(1600)[:160], m.written.Bytes())
}
