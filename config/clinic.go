package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/BurntSushi/toml"

	"github.com/Marcosotoladev/DhermicaApp-sub000/schedule"
)

// ClinicConfig describes opening hours and booking policy for the clinic.
type ClinicConfig struct {
	Name             string `toml:"name"`
	Timezone         string `toml:"timezone"`
	SlotStepMinutes  int    `toml:"slot_step_minutes"`
	MinNoticeMinutes int    `toml:"min_notice_minutes"`
	AdvanceDays      int    `toml:"advance_days"`

	// CancelNoticeHours is how long before the start a client may still cancel.
	CancelNoticeHours int `toml:"cancel_notice_hours"`

	// DefaultHours maps lowercase weekday names to "HH:MM-HH:MM" ranges. It is
	// used for professionals without their own working hours.
	DefaultHours map[string][]string `toml:"default_hours"`

	// Clock overrides the wall clock; nil means time.Now.
	Clock func() time.Time `toml:"-"`

	location *time.Location
	weekly   schedule.Weekly
}

// DefaultClinicConfig returns the policy used when no clinic file is present.
func DefaultClinicConfig() *ClinicConfig {
	weekdays := []string{"09:00-19:00"}
	c := &ClinicConfig{
		Name:              "Dhermica",
		Timezone:          "America/Argentina/Buenos_Aires",
		SlotStepMinutes:   15,
		MinNoticeMinutes:  60,
		AdvanceDays:       60,
		CancelNoticeHours: 24,
		DefaultHours: map[string][]string{
			"monday":    weekdays,
			"tuesday":   weekdays,
			"wednesday": weekdays,
			"thursday":  weekdays,
			"friday":    weekdays,
			"saturday":  {"09:00-13:00"},
		},
	}
	// the defaults are known to be valid
	_ = c.finalize()
	return c
}

// LoadClinicConfig reads the TOML clinic file at path. An empty path or a
// missing file yields the defaults; fields absent from the file keep their default.
func LoadClinicConfig(path string) (*ClinicConfig, error) {
	cfg := DefaultClinicConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read clinic config: %w", err)
	}
	cfg, err = ParseClinicConfig(string(data))
	if err != nil {
		return nil, fmt.Errorf("clinic config %s: %w", path, err)
	}
	return cfg, nil
}

// ParseClinicConfig decodes clinic TOML from a string. A default_hours table in
// the document replaces the default opening hours as a whole.
func ParseClinicConfig(data string) (*ClinicConfig, error) {
	cfg := DefaultClinicConfig()
	defaults := cfg.DefaultHours
	cfg.DefaultHours = nil
	md, err := toml.Decode(data, cfg)
	if err != nil {
		return nil, fmt.Errorf("decode clinic config: %w", err)
	}
	if !md.IsDefined("default_hours") {
		cfg.DefaultHours = defaults
	}
	if err := cfg.finalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *ClinicConfig) finalize() error {
	if c.Timezone == "" {
		c.location = time.UTC
	} else {
		loc, err := time.LoadLocation(c.Timezone)
		if err != nil {
			return fmt.Errorf("timezone %q: %w", c.Timezone, err)
		}
		c.location = loc
	}

	if c.SlotStepMinutes <= 0 {
		c.SlotStepMinutes = schedule.DefaultStepMinutes
	}
	if c.MinNoticeMinutes < 0 {
		return fmt.Errorf("min_notice_minutes must not be negative")
	}
	if c.AdvanceDays < 0 {
		return fmt.Errorf("advance_days must not be negative")
	}

	weekly := schedule.Weekly{}
	for name, ranges := range c.DefaultHours {
		day, ok := parseWeekday(name)
		if !ok {
			return fmt.Errorf("unknown weekday %q", name)
		}
		for _, r := range ranges {
			start, end, found := strings.Cut(r, "-")
			if !found {
				return fmt.Errorf("%s: range %q must look like HH:MM-HH:MM", name, r)
			}
			b, err := schedule.NewBlock(start, end)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			weekly[day] = append(weekly[day], b)
		}
	}
	if err := schedule.ValidateWeekly(weekly); err != nil {
		return err
	}
	c.weekly = weekly
	return nil
}

// Location is the clinic time zone used to decide what "today" is.
func (c *ClinicConfig) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}

// DefaultWeekly returns a copy of the clinic opening hours.
func (c *ClinicConfig) DefaultWeekly() schedule.Weekly {
	out := make(schedule.Weekly, len(c.weekly))
	for day, blocks := range c.weekly {
		out[day] = append([]schedule.Block(nil), blocks...)
	}
	return out
}

// ScheduleOptions converts the policy into options for a schedule.Manager.
func (c *ClinicConfig) ScheduleOptions() schedule.Options {
	return schedule.Options{
		StepMinutes:      c.SlotStepMinutes,
		MinNoticeMinutes: c.MinNoticeMinutes,
		AdvanceDays:      c.AdvanceDays,
		Location:         c.Location(),
	}
}

// Now returns the current time in the clinic time zone.
func (c *ClinicConfig) Now() time.Time {
	if c.Clock != nil {
		return c.Clock().In(c.Location())
	}
	return time.Now().In(c.Location())
}

func parseWeekday(name string) (time.Weekday, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "sunday", "sun":
		return time.Sunday, true
	case "monday", "mon":
		return time.Monday, true
	case "tuesday", "tue":
		return time.Tuesday, true
	case "wednesday", "wed":
		return time.Wednesday, true
	case "thursday", "thu":
		return time.Thursday, true
	case "friday", "fri":
		return time.Friday, true
	case "saturday", "sat":
		return time.Saturday, true
	}
	return 0, false
}
