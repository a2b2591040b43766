package sensor

import (
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		name       string
		line       string
		wantMicros uint64
		wantRaw    int32
		wantErr    bool
	}{
		{name: "valid line", line: "1234567,8388112", wantMicros: 1234567, wantRaw: 8388112},
		{name: "negative reading", line: "10,-42", wantMicros: 10, wantRaw: -42},
		{name: "min 24-bit", line: "10,-8388608", wantMicros: 10, wantRaw: -8388608},
		{name: "above 24-bit", line: "10,8388608", wantErr: true},
		{name: "missing field", line: "1234567", wantErr: true},
		{name: "extra field", line: "1,2,3", wantErr: true},
		{name: "bad timestamp", line: "abc,12", wantErr: true},
		{name: "bad reading", line: "12,abc", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			micros, raw, err := parseLine(tt.line)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantMicros, micros)
			assert.Equal(t, tt.wantRaw, raw)
		})
	}
}

func TestSerial_ReadsLatestOnce(t *testing.T) {
	pr, pw := io.Pipe()
	s := NewSerial("test", 0, nil)
	require.NoError(t, s.attach(pr))
	assert.True(t, s.IsConnected())

	_, err := s.ReadRaw()
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = io.WriteString(pw, "100,5\ngarbage\n200,7\n")
	require.NoError(t, err)

	// io.Pipe writes return once the scanner consumed the bytes; wait for the parse.
	require.Eventually(t, func() bool {
		lines, bad := s.Stats()
		return lines == 2 && bad == 1
	}, time.Second, time.Millisecond)

	raw, err := s.ReadRaw()
	require.NoError(t, err)
	assert.Equal(t, int32(7), raw)

	_, err = s.ReadRaw()
	assert.ErrorIs(t, err, ErrUnavailable)

	require.NoError(t, s.Close())
	assert.False(t, s.IsConnected())
	require.NoError(t, s.Close())
}

func TestSerial_AttachTwice(t *testing.T) {
	pr, _ := io.Pipe()
	s := NewSerial("test", 0, nil)
	require.NoError(t, s.attach(pr))
	defer s.Close()

	pr2, _ := io.Pipe()
	assert.Error(t, s.attach(pr2))
}
