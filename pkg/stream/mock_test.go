package stream

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/Honorable-Knights-of-the-Roundtable/i2sstream/pkg/peripheral"
	"github.com/Honorable-Knights-of-the-Roundtable/i2sstream/pkg/storage"
	"github.com/Honorable-Knights-of-the-Roundtable/i2sstream/pkg/wavcontainer"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

// tickPeripheral is a peripheral mock whose hardware clock only advances
// when the test calls Tick: each tick frees (playback) or fills (capture)
// perTick bytes of its hardware buffer. Space or data left over carries
// into the next tick, so a rate that is not a whole number of frames per
// tick still averages out.
type tickPeripheral struct {
	perTick int
	budget  int

	written bytes.Buffer

	// capture side
	sample []byte
	ready  int
	pos    int

	drainComplete bool
	configures    int
	closed        bool

	writeErr error
	readErr  error
}

func newTickPeripheral(perTick int) *tickPeripheral {
	return &tickPeripheral{perTick: perTick, drainComplete: true}
}

func (m *tickPeripheral) Tick() {
	m.budget += m.perTick
	m.ready += m.perTick
}

func (m *tickPeripheral) Configure(cfg peripheral.Config) error {
	m.configures++
	m.budget = 0
	m.ready = 0
	return nil
}

func (m *tickPeripheral) AvailableToWrite() (int, error) {
	return m.budget, nil
}

func (m *tickPeripheral) Write(p []byte) (int, error) {
	if m.writeErr != nil {
		return 0, m.writeErr
	}
	n := min(len(p), m.budget)
	m.written.Write(p[:n])
	m.budget -= n
	return n, nil
}

func (m *tickPeripheral) AvailableToRead() (int, error) {
	return m.ready, nil
}

func (m *tickPeripheral) Read(p []byte) (int, error) {
	if m.readErr != nil {
		return 0, m.readErr
	}
	n := min(len(p), m.ready)
	for i := range n {
		if len(m.sample) > 0 {
			p[i] = m.sample[(m.pos+i)%len(m.sample)]
		} else {
			p[i] = 0
		}
	}
	m.pos += n
	m.ready -= n
	return n, nil
}

func (m *tickPeripheral) DrainComplete() bool {
	return m.drainComplete
}

func (m *tickPeripheral) Close() error {
	m.closed = true
	return nil
}

// pcmPayload returns n bytes of a counting 16-bit pattern, so that any
// reordering or loss shows up in a comparison.
func pcmPayload(n int) []byte {
	payload := make([]byte, n)
	for i := 0; i+1 < n; i += 2 {
		binary.LittleEndian.PutUint16(payload[i:], uint16(i/2))
	}
	return payload
}

// writeWAV stores a canonical WAV file holding payload below /sd and returns
// a Storage rooted there.
func writeWAV(t *testing.T, name string, sampleRate, bits, channels int, payload []byte) (*storage.Storage, afero.Fs) {
	t.Helper()
	mem := afero.NewMemMapFs()
	container, err := wavcontainer.New(sampleRate, bits, channels)
	require.NoError(t, err)

	var file bytes.Buffer
	require.NoError(t, wavcontainer.WriteHeader(&file, container.WithDataLength(int64(len(payload)))))
	file.Write(payload)
	require.NoError(t, afero.WriteFile(mem, "/sd/"+name, file.Bytes(), 0o644))

	return storage.New(mem, "/sd"), mem
}

func playbackSpec(name string, bufferSize int) Spec {
	return Spec{
		Name:       name,
		Direction:  peripheral.Playback,
		BufferSize: bufferSize,
		Peripheral: peripheral.Config{BufferBytes: 4096},
	}
}

// runTicks drives a stream the way a scheduler does: storage first, then
// one peripheral tick, then Service.
func runTicks(t *testing.T, c *Controller, m *tickPeripheral, ticks int) {
	t.Helper()
	for range ticks {
		_, err := c.Pump()
		require.NoError(t, err)
		m.Tick()
		require.NoError(t, c.Service())
	}
}
