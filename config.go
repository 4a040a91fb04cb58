package viewmux

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/gogpu/viewmux/render"
)

// Config holds the scheduler's tunable thresholds. The defaults are
// empirically tuned and carry no deeper meaning; tests may pin their own.
type Config struct {
	// FrameInterval is the frame period of the system clock.
	FrameInterval time.Duration

	// Idle tick cadence: IdleFast below IdleSlowdownStage, IdleMedium
	// until IdleFreeTargetsStage, IdleSlow after.
	IdleFast   time.Duration
	IdleMedium time.Duration
	IdleSlow   time.Duration

	// IdleSlowdownStage is also the cap the idle stage is held at while
	// any viewer still holds a GPU-backed surface.
	IdleSlowdownStage    int
	IdleFreeTargetsStage int
	IdleFreeScenesStage  int
	IdleFreeGlobalsStage int

	// FreezeAfter is how long a canvas viewer may go without rendering
	// before it is frozen to an image.
	FreezeAfter time.Duration

	// FreezeGrace is how long a superseded canvas stays alive under its
	// frozen image.
	FreezeGrace time.Duration

	// QuietPeriod is how long the realtime viewer may go without
	// rendering before it is demoted.
	QuietPeriod time.Duration

	// Implicit promotion: a viewer with at least PromotionMinRenders
	// renders in the trailing PromotionWindow, and at least PromotionRatio
	// times as many as the resident realtime viewer, takes the slot.
	PromotionWindow     time.Duration
	PromotionMinRenders int
	PromotionRatio      float64

	// InteractionWindow is how recent a descriptor's interaction must be
	// to count, and how close two interactions must be to claim the slot.
	InteractionWindow time.Duration

	// InteractionTTL is how long a claim on the slot lasts.
	InteractionTTL time.Duration

	// Samples is the MSAA sample count of render targets.
	Samples int

	// Pixel ratio caps, see render.Policy.
	MaxPixelRatio      float64
	RealtimePixelRatio float64

	// DescriptorEpsilon is the relative tolerance for numeric descriptor
	// fields.
	DescriptorEpsilon float64
}

// DefaultConfig returns the tuned defaults.
func DefaultConfig() Config {
	return Config{
		FrameInterval:        16 * time.Millisecond,
		IdleFast:             100 * time.Millisecond,
		IdleMedium:           time.Second,
		IdleSlow:             10 * time.Second,
		IdleSlowdownStage:    10,
		IdleFreeTargetsStage: 20,
		IdleFreeScenesStage:  22,
		IdleFreeGlobalsStage: 25,
		FreezeAfter:          10 * time.Second,
		FreezeGrace:          60 * time.Millisecond,
		QuietPeriod:          time.Second,
		PromotionWindow:      500 * time.Millisecond,
		PromotionMinRenders:  2,
		PromotionRatio:       1.5,
		InteractionWindow:    500 * time.Millisecond,
		InteractionTTL:       time.Second,
		Samples:              4,
		MaxPixelRatio:        0,
		RealtimePixelRatio:   1,
		DescriptorEpsilon:    1e-12,
	}
}

// Policy returns the resolution policy described by c.
func (c Config) Policy() render.Policy {
	return render.Policy{MaxPixelRatio: c.MaxPixelRatio, RealtimePixelRatio: c.RealtimePixelRatio}
}

// ErrInvalidConfig is wrapped by Validate errors.
var ErrInvalidConfig = errors.New("viewmux: invalid config")

// Validate checks that durations are positive and idle stages ascend.
func (c Config) Validate() error {
	durations := []struct {
		name string
		d    time.Duration
	}{
		{"FrameInterval", c.FrameInterval},
		{"IdleFast", c.IdleFast},
		{"IdleMedium", c.IdleMedium},
		{"IdleSlow", c.IdleSlow},
		{"FreezeAfter", c.FreezeAfter},
		{"QuietPeriod", c.QuietPeriod},
		{"PromotionWindow", c.PromotionWindow},
		{"InteractionWindow", c.InteractionWindow},
		{"InteractionTTL", c.InteractionTTL},
	}
	for _, d := range durations {
		if d.d <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %v", ErrInvalidConfig, d.name, d.d)
		}
	}
	if c.FreezeGrace < 0 {
		return fmt.Errorf("%w: FreezeGrace must not be negative", ErrInvalidConfig)
	}
	if !(0 < c.IdleSlowdownStage &&
		c.IdleSlowdownStage < c.IdleFreeTargetsStage &&
		c.IdleFreeTargetsStage < c.IdleFreeScenesStage &&
		c.IdleFreeScenesStage < c.IdleFreeGlobalsStage) {
		return fmt.Errorf("%w: idle stages must ascend: %d < %d < %d < %d", ErrInvalidConfig,
			c.IdleSlowdownStage, c.IdleFreeTargetsStage, c.IdleFreeScenesStage, c.IdleFreeGlobalsStage)
	}
	if c.PromotionMinRenders < 1 {
		return fmt.Errorf("%w: PromotionMinRenders must be at least 1", ErrInvalidConfig)
	}
	if c.PromotionRatio < 1 {
		return fmt.Errorf("%w: PromotionRatio must be at least 1, got %v", ErrInvalidConfig, c.PromotionRatio)
	}
	if c.Samples < 1 {
		return fmt.Errorf("%w: Samples must be at least 1", ErrInvalidConfig)
	}
	if c.DescriptorEpsilon < 0 {
		return fmt.Errorf("%w: DescriptorEpsilon must not be negative", ErrInvalidConfig)
	}
	return nil
}

// EnvPrefix prefixes every configuration variable.
const EnvPrefix = "VIEWMUX_"

// LoadConfig returns DefaultConfig overridden by the given dotenv files and
// then by the process environment. Variables are named after the fields in
// upper snake case with EnvPrefix, e.g. VIEWMUX_IDLE_FAST=250ms or
// VIEWMUX_PROMOTION_RATIO=2. Durations use time.ParseDuration syntax.
func LoadConfig(files ...string) (Config, error) {
	cfg := DefaultConfig()

	vars := make(map[string]string)
	if len(files) > 0 {
		env, err := godotenv.Read(files...)
		if err != nil {
			return cfg, fmt.Errorf("viewmux: read config: %w", err)
		}
		vars = env
	}
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok && strings.HasPrefix(k, EnvPrefix) {
			vars[k] = v
		}
	}

	setters := cfg.fields()
	for key, val := range vars {
		name, ok := strings.CutPrefix(key, EnvPrefix)
		if !ok {
			continue
		}
		set, ok := setters[name]
		if !ok {
			continue
		}
		if err := set(strings.TrimSpace(val)); err != nil {
			return cfg, fmt.Errorf("viewmux: %s=%q: %w", key, val, err)
		}
	}
	return cfg, cfg.Validate()
}

// fields maps variable names, without prefix, to setters.
func (c *Config) fields() map[string]func(string) error {
	dur := func(p *time.Duration) func(string) error {
		return func(s string) error {
			d, err := time.ParseDuration(s)
			if err == nil {
				*p = d
			}
			return err
		}
	}
	num := func(p *int) func(string) error {
		return func(s string) error {
			n, err := strconv.Atoi(s)
			if err == nil {
				*p = n
			}
			return err
		}
	}
	flt := func(p *float64) func(string) error {
		return func(s string) error {
			f, err := strconv.ParseFloat(s, 64)
			if err == nil {
				*p = f
			}
			return err
		}
	}
	return map[string]func(string) error{
		"FRAME_INTERVAL":          dur(&c.FrameInterval),
		"IDLE_FAST":               dur(&c.IdleFast),
		"IDLE_MEDIUM":             dur(&c.IdleMedium),
		"IDLE_SLOW":               dur(&c.IdleSlow),
		"IDLE_SLOWDOWN_STAGE":     num(&c.IdleSlowdownStage),
		"IDLE_FREE_TARGETS_STAGE": num(&c.IdleFreeTargetsStage),
		"IDLE_FREE_SCENES_STAGE":  num(&c.IdleFreeScenesStage),
		"IDLE_FREE_GLOBALS_STAGE": num(&c.IdleFreeGlobalsStage),
		"FREEZE_AFTER":            dur(&c.FreezeAfter),
		"FREEZE_GRACE":            dur(&c.FreezeGrace),
		"QUIET_PERIOD":            dur(&c.QuietPeriod),
		"PROMOTION_WINDOW":        dur(&c.PromotionWindow),
		"PROMOTION_MIN_RENDERS":   num(&c.PromotionMinRenders),
		"PROMOTION_RATIO":         flt(&c.PromotionRatio),
		"INTERACTION_WINDOW":      dur(&c.InteractionWindow),
		"INTERACTION_TTL":         dur(&c.InteractionTTL),
		"SAMPLES":                 num(&c.Samples),
		"MAX_PIXEL_RATIO":         flt(&c.MaxPixelRatio),
		"REALTIME_PIXEL_RATIO":    flt(&c.RealtimePixelRatio),
		"DESCRIPTOR_EPSILON":      flt(&c.DescriptorEpsilon),
	}
}
