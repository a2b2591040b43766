//go:build tinygo

//go:generate tinygo flash -target=xiao

package main

import (
	"machine"
	"time"
)

var (
	start    time.Time
	lastRead time.Time
)

func main() {
	PIN_HX711_SCK.Configure(machine.PinConfig{Mode: machine.PinOutput})
	PIN_HX711_DOUT.Configure(machine.PinConfig{Mode: machine.PinInput})
	PIN_LED.Configure(machine.PinConfig{Mode: machine.PinOutput})

	// SCK held high for more than 60us powers the HX711 down; start low.
	PIN_HX711_SCK.Low()

	start = time.Now()
	lastRead = start

	interval := time.Duration(SAMPLE_INTERVAL_US) * time.Microsecond

	for {
		now := time.Now()

		if now.Sub(lastRead) >= interval {
			lastRead = now
			if ready() {
				PIN_LED.High()
				outputReading(now, readRaw())
			} else {
				PIN_LED.Low()
			}
		}

		time.Sleep(100 * time.Microsecond)
	}
}

// ready reports whether a conversion is waiting. DOUT goes low when data is ready.
func ready() bool {
	return !PIN_HX711_DOUT.Get()
}

// readRaw clocks out one 24-bit two's complement conversion and selects the
// gain of the next one.
func readRaw() int32 {
	var value uint32
	for range 24 {
		PIN_HX711_SCK.High()
		time.Sleep(time.Microsecond)
		value <<= 1
		if PIN_HX711_DOUT.Get() {
			value |= 1
		}
		PIN_HX711_SCK.Low()
		time.Sleep(time.Microsecond)
	}

	for range HX711_GAIN_PULSES {
		PIN_HX711_SCK.High()
		time.Sleep(time.Microsecond)
		PIN_HX711_SCK.Low()
		time.Sleep(time.Microsecond)
	}

	return signExtend24(value)
}

func signExtend24(v uint32) int32 {
	if v&0x800000 != 0 {
		v |= 0xff000000
	}
	return int32(v)
}

func outputReading(now time.Time, raw int32) {
	// Output format: "board_micros,raw\n"
	// Example: "1234567,8388112\n"
	micros := uint32(now.Sub(start) / time.Microsecond)
	print(micros)
	print(",")
	print(raw)
	print("\n")
}
