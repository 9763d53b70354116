package config

import (
	"encoding/json"
	"fmt"
)

// RunSequence is the parsed form of a config file, which per §6 is either a
// single config object (one run) or an ordered list of objects (a
// sequential run for each entry, sharing nothing but file position).
//
// Grounded on cmd/config.go's single-object Config paired with the
// spec-only "ordered list of objects" extension: rather than special-case
// array-vs-object at every call site, ReadRunSequence normalizes both
// shapes into a []Config up front.
type RunSequence []Config

// ReadRunSequence parses a config file's raw JSON as either a lone object
// or an array of objects, validating every entry's browserServerOptions
// eagerly the same way FromFile does for the single-run case.
func ReadRunSequence(data []byte) (RunSequence, error) {
	trimmed := trimLeadingSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var seq RunSequence
		if err := json.Unmarshal(data, &seq); err != nil {
			return nil, fmt.Errorf("parsing config run sequence: %w", err)
		}
		if err := seq.Validate(); err != nil {
			return nil, err
		}
		return seq, nil
	}

	var c Config
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	seq := RunSequence{c}
	if err := seq.Validate(); err != nil {
		return nil, err
	}
	return seq, nil
}

// Validate checks every run's browserServerOptions is well-formed JSON and
// that the sequence isn't empty.
func (seq RunSequence) Validate() error {
	if len(seq) == 0 {
		return fmt.Errorf("config run sequence must contain at least one run")
	}
	for i, c := range seq {
		if len(c.BrowserServerOptions) == 0 {
			continue
		}
		if err := validateBrowserServerOptions(c.BrowserServerOptions); err != nil {
			return fmt.Errorf("run %d: %w", i, err)
		}
	}
	return nil
}

func trimLeadingSpace(data []byte) []byte {
	i := 0
	for i < len(data) {
		switch data[i] {
		case ' ', '\t', '\n', '\r':
			i++
			continue
		}
		break
	}
	return data[i:]
}
