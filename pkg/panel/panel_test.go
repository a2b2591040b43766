package panel

import (
	"testing"
	"time"

	"github.com/itohio/loadrig/pkg/clock"
	"github.com/stretchr/testify/assert"
)

func TestPanel_PressHolds(t *testing.T) {
	clk := clock.NewFake(time.Time{})
	p := New(100*time.Millisecond, clk)

	assert.False(t, p.Record())
	p.Press(KeyRecord)
	assert.True(t, p.Record())
	assert.False(t, p.Forward())

	clk.Advance(99 * time.Millisecond)
	assert.True(t, p.Record())
	clk.Advance(time.Millisecond)
	assert.False(t, p.Record())
}

func TestPanel_RepeatExtends(t *testing.T) {
	clk := clock.NewFake(time.Time{})
	p := New(100*time.Millisecond, clk)

	p.Press(KeyForward)
	for range 5 {
		clk.Advance(50 * time.Millisecond)
		p.Press(KeyForward)
	}
	assert.True(t, p.Forward())

	clk.Advance(150 * time.Millisecond)
	assert.False(t, p.Forward())
}

func TestPanel_Release(t *testing.T) {
	clk := clock.NewFake(time.Time{})
	p := New(0, clk)

	p.Press(KeyForward)
	p.Press(KeyBack)
	assert.True(t, p.Forward())
	assert.True(t, p.Back())

	p.Release()
	assert.False(t, p.Forward())
	assert.False(t, p.Back())
}

func TestPanel_DefaultHold(t *testing.T) {
	clk := clock.NewFake(time.Time{})
	p := New(0, clk)

	p.Press(KeyBack)
	clk.Advance(DefaultHold - time.Millisecond)
	assert.True(t, p.Back())
	clk.Advance(time.Millisecond)
	assert.False(t, p.Back())
}

func TestPanel_Indicator(t *testing.T) {
	p := New(0, clock.NewFake(time.Time{}))

	assert.False(t, p.Indicator())
	p.Set(true)
	assert.True(t, p.Indicator())
	p.Set(false)
	assert.False(t, p.Indicator())
}

func TestPanel_UnknownKeyIgnored(t *testing.T) {
	p := New(0, clock.NewFake(time.Time{}))
	assert.NotPanics(t, func() {
		p.Press(Key(-1))
		p.Press(keyCount)
	})
}
