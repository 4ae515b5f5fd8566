package gc

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config carries the collector's construction-time parameters.
type Config struct {
	PausePercent int64 // pause threshold as percent of live-bytes estimate
	StepMul      int64 // collection work per byte of debt, percent
	StepSize     int64 // bytes of allocation granted between incremental steps
	GenMinorMul  int64 // minor pacing / good-major fraction, percent
	GenMajorMul  int64 // old-bytes share of the heap that forces a major, percent
	Generational bool  // start in generational mode
	DebugChecks  bool  // validate the heap after every atomic phase
}

func defaultConfig() Config {
	return Config{
		PausePercent: 200,
		StepMul:      100,
		StepSize:     8192,
		GenMinorMul:  20,
		GenMajorMul:  70,
	}
}

// Option adjusts the collector configuration.
type Option func(*Config)

// WithPausePercent sets the pause threshold percentage.
func WithPausePercent(v int64) Option { return func(c *Config) { c.PausePercent = v } }

// WithStepMul sets the step multiplier percentage.
func WithStepMul(v int64) Option { return func(c *Config) { c.StepMul = v } }

// WithStepSize sets the incremental step size in bytes.
func WithStepSize(v int64) Option { return func(c *Config) { c.StepSize = v } }

// WithGenMinorMul sets the minor-collection pacing percentage.
func WithGenMinorMul(v int64) Option { return func(c *Config) { c.GenMinorMul = v } }

// WithGenMajorMul sets the major-escalation percentage.
func WithGenMajorMul(v int64) Option { return func(c *Config) { c.GenMajorMul = v } }

// WithGenerational starts the collector in generational mode.
func WithGenerational() Option { return func(c *Config) { c.Generational = true } }

// WithDebugChecks enables invariant validation after every atomic phase.
func WithDebugChecks() Option { return func(c *Config) { c.DebugChecks = true } }

// Tuning is the live-adjustable subset of the configuration. Zero
// fields mean "leave unchanged", so a tuning file may set only the keys
// it cares about.
type Tuning struct {
	PausePercent int64 `json:"pausePercent,omitempty"`
	StepMul      int64 `json:"stepMul,omitempty"`
	StepSize     int64 `json:"stepSize,omitempty"`
	GenMinorMul  int64 `json:"genMinorMul,omitempty"`
	GenMajorMul  int64 `json:"genMajorMul,omitempty"`
}

// ApplyTuning installs the non-zero fields of t. Safe to call from the
// tuning watcher goroutine: the tunables are atomics and every consumer
// reads them at most once per step.
func (c *Context) ApplyTuning(t Tuning) {
	if t.PausePercent > 0 {
		c.pausePercent.Store(t.PausePercent)
	}
	if t.StepMul > 0 {
		c.stepMul.Store(t.StepMul)
	}
	if t.StepSize > 0 {
		c.stepSize.Store(t.StepSize)
	}
	if t.GenMinorMul > 0 {
		c.genMinorMul.Store(t.GenMinorMul)
	}
	if t.GenMajorMul > 0 {
		c.genMajorMul.Store(t.GenMajorMul)
	}
}

// CurrentTuning returns the live tunable values.
func (c *Context) CurrentTuning() Tuning {
	return Tuning{
		PausePercent: c.pausePercent.Load(),
		StepMul:      c.stepMul.Load(),
		StepSize:     c.stepSize.Load(),
		GenMinorMul:  c.genMinorMul.Load(),
		GenMajorMul:  c.genMajorMul.Load(),
	}
}

// ParseTuningFile reads a key=value tuning file. Blank lines and lines
// starting with '#' are ignored. Recognized keys: pausepercent,
// stepmul, stepsize, genminormul, genmajormul.
func ParseTuningFile(path string) (Tuning, error) {
	var t Tuning
	f, err := os.Open(path)
	if err != nil {
		return t, err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		key, val, ok := strings.Cut(text, "=")
		if !ok {
			return t, &CollectError{Code: ErrTuning, Message: fmt.Sprintf("%s:%d: expected key=value", path, line)}
		}
		n, err := strconv.ParseInt(strings.TrimSpace(val), 10, 64)
		if err != nil || n <= 0 {
			return t, &CollectError{Code: ErrTuning, Message: fmt.Sprintf("%s:%d: invalid value %q", path, line, strings.TrimSpace(val))}
		}
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "pausepercent":
			t.PausePercent = n
		case "stepmul":
			t.StepMul = n
		case "stepsize":
			t.StepSize = n
		case "genminormul":
			t.GenMinorMul = n
		case "genmajormul":
			t.GenMajorMul = n
		default:
			return t, &CollectError{Code: ErrTuning, Message: fmt.Sprintf("%s:%d: unknown key %q", path, line, strings.TrimSpace(key))}
		}
	}
	return t, sc.Err()
}
