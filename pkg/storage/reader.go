package storage

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"time"

	"github.com/itohio/loadrig/pkg/sample"
)

// ReadSession parses a session file back into samples.
func ReadSession(r io.Reader) ([]sample.Sample, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(Header)
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if !slices.Equal(header, Header) {
		return nil, fmt.Errorf("unexpected header %v", header)
	}

	var samples []sample.Sample
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return samples, nil
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		s, err := parseRow(rec)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		samples = append(samples, s)
	}
}

// parseRow parses one "ns,value,motor" record.
func parseRow(rec []string) (sample.Sample, error) {
	ns, err := strconv.ParseInt(rec[0], 10, 64)
	if err != nil {
		return sample.Sample{}, fmt.Errorf("invalid timestamp: %w", err)
	}

	value, err := strconv.ParseFloat(rec[1], 32)
	if err != nil {
		return sample.Sample{}, fmt.Errorf("invalid value: %w", err)
	}

	var motor bool
	switch rec[2] {
	case "0":
	case "1":
		motor = true
	default:
		return sample.Sample{}, fmt.Errorf("invalid motor flag %q", rec[2])
	}

	return sample.Sample{
		Timestamp:   time.Duration(ns),
		Value:       float32(value),
		MotorActive: motor,
	}, nil
}
