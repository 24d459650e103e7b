// Package opt is a typed, JSON-backed configuration store for the machine
// package: clock pacing, ISR poll cadence, synchronous/asynchronous
// delivery flags, and the RAM encoder/compressor pair the state package
// uses for snapshots.
package opt

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/afero"
)

// Options holds every recognized configuration key and its default value.
type Options struct {
	ClockSamplingFreq float64 `json:"clockSamplingFreq"`
	ISRFreq           float64 `json:"isrFreq"`
	RunAsync          bool    `json:"runAsync"`
	SaveAsync         bool    `json:"saveAsync"`
	LoadAsync         bool    `json:"loadAsync"`
	Encoder           string  `json:"encoder"`
	Compressor        string  `json:"compressor"`
}

// Default returns the engine's built-in option set: no clock pacing, an
// isrFreq of 0 (the machine polls for interrupts before every instruction),
// fully synchronous, base64/zlib for snapshots.
func Default() Options {
	return Options{
		ClockSamplingFreq: -1,
		ISRFreq:           0,
		RunAsync:          false,
		SaveAsync:         false,
		LoadAsync:         false,
		Encoder:           "base64",
		Compressor:        "zlib",
	}
}

// Opt wraps Options with the file-loading and merge semantics SetOptions
// needs. The zero value is not usable; construct with New.
type Opt struct {
	fs   afero.Fs
	opts Options
}

// New constructs an Opt with the default option set. A nil fs defaults to
// the real filesystem; tests substitute an afero.MemMapFs.
func New(fs afero.Fs) *Opt {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Opt{fs: fs, opts: Default()}
}

func (o *Opt) ClockSamplingFreq() float64 { return o.opts.ClockSamplingFreq }
func (o *Opt) ISRFreq() float64           { return o.opts.ISRFreq }
func (o *Opt) RunAsync() bool             { return o.opts.RunAsync }
func (o *Opt) SaveAsync() bool            { return o.opts.SaveAsync }
func (o *Opt) LoadAsync() bool            { return o.opts.LoadAsync }
func (o *Opt) Encoder() string            { return o.opts.Encoder }
func (o *Opt) Compressor() string         { return o.opts.Compressor }

// SetOptions merges new configuration over the current set. input may be
// "file://<path>" (read via the Opt's afero.Fs), "json://<literal>", a bare
// JSON object, or empty (resets to Default). Recognized keys are merged
// field-by-field, matching the reference implementation's partial-update
// Merge rather than a wholesale replace; keys not in Options are collected
// and reported via ErrUnknownOption without rejecting the recognized ones.
func (o *Opt) SetOptions(input string) error {
	raw, err := o.resolve(input)
	if err != nil {
		return err
	}

	if raw == nil {
		o.opts = Default()
		return nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return fmt.Errorf("opt: %w: %w", ErrJsonParse, err)
	}

	merged := o.opts
	var unknown []string

	for key, value := range fields {
		var unmarshalErr error
		switch key {
		case "clockSamplingFreq":
			unmarshalErr = json.Unmarshal(value, &merged.ClockSamplingFreq)
		case "isrFreq":
			unmarshalErr = json.Unmarshal(value, &merged.ISRFreq)
		case "runAsync":
			unmarshalErr = json.Unmarshal(value, &merged.RunAsync)
		case "saveAsync":
			unmarshalErr = json.Unmarshal(value, &merged.SaveAsync)
		case "loadAsync":
			unmarshalErr = json.Unmarshal(value, &merged.LoadAsync)
		case "encoder":
			unmarshalErr = json.Unmarshal(value, &merged.Encoder)
		case "compressor":
			unmarshalErr = json.Unmarshal(value, &merged.Compressor)
		default:
			unknown = append(unknown, key)
			continue
		}
		if unmarshalErr != nil {
			return fmt.Errorf("opt: %w: %w", ErrJsonConfig, unmarshalErr)
		}
	}

	if merged.ISRFreq < 0 {
		return ErrJsonConfig
	}
	if merged.Encoder != "base64" {
		return ErrEncoder
	}
	if merged.Compressor != "zlib" && merged.Compressor != "none" {
		return ErrCompressor
	}

	o.opts = merged

	if len(unknown) > 0 {
		return fmt.Errorf("%w: %v", ErrUnknownOption, unknown)
	}
	return nil
}

func (o *Opt) resolve(input string) ([]byte, error) {
	switch {
	case input == "":
		return nil, nil
	case strings.HasPrefix(input, "file://"):
		path := strings.TrimPrefix(input, "file://")
		data, err := afero.ReadFile(o.fs, path)
		if err != nil {
			return nil, fmt.Errorf("opt: %w: %w", ErrJsonConfig, err)
		}
		return data, nil
	case strings.HasPrefix(input, "json://"):
		return []byte(strings.TrimPrefix(input, "json://")), nil
	case strings.HasPrefix(strings.TrimSpace(input), "{"):
		return []byte(input), nil
	default:
		return nil, ErrJsonConfig
	}
}
