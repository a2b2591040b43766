//go:build tinygo

package main

import "machine"

const (
	// Sampling configuration
	SAMPLE_INTERVAL_US = 3125 // Target reading interval in microseconds (320 Hz)
	HX711_GAIN_PULSES  = 1    // Extra clock pulses after the 24 data bits: 1 = channel A gain 128

	// HX711 pins
	PIN_HX711_DOUT = machine.D2
	PIN_HX711_SCK  = machine.D3

	// Status LED, lit while the ADC responds
	PIN_LED = machine.LED

	// Output goes to the USB CDC console via print().
	// Format "board_micros,raw\n", e.g. "4294967295,-8388608\n" = 20 bytes max per line
	// 320 lines/sec * 20 bytes/line = 6,400 bytes/sec, well inside full-speed USB
)
