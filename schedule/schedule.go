// Package schedule computes a professional's working blocks for a date and the
// appointment slots that remain bookable inside them.
package schedule

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// Defaults used when Options leaves a field at zero.
const (
	DefaultStepMinutes = 15
)

var (
	ErrInvalidBlock     = errors.New("block start must be before end")
	ErrOverlappingBlock = errors.New("blocks overlap")
)

// Block is a half-open [Start, End) range of clock time on a single day.
type Block struct {
	Start Clock `json:"start"`
	End   Clock `json:"end"`
}

// NewBlock parses two HH:MM strings into a validated block.
func NewBlock(start, end string) (Block, error) {
	s, err := ParseClock(start)
	if err != nil {
		return Block{}, err
	}
	e, err := ParseClock(end)
	if err != nil {
		return Block{}, err
	}
	b := Block{Start: s, End: e}
	return b, b.Validate()
}

func (b Block) Validate() error {
	if b.Start < 0 || b.End > MinutesPerDay || b.Start >= b.End {
		return fmt.Errorf("%w: %s-%s", ErrInvalidBlock, b.Start, b.End)
	}
	return nil
}

// Minutes is the length of the block.
func (b Block) Minutes() int {
	return int(b.End - b.Start)
}

// Contains reports whether other lies entirely inside b.
func (b Block) Contains(other Block) bool {
	return other.Start >= b.Start && other.End <= b.End
}

func (b Block) String() string {
	return b.Start.String() + "-" + b.End.String()
}

// Interval is a busy range, such as an existing appointment.
type Interval = Block

// Overlaps is the half-open overlap test: touching blocks do not overlap.
func Overlaps(a, b Block) bool {
	return a.Start < b.End && b.Start < a.End
}

func overlapsAny(b Block, others []Block) bool {
	for _, o := range others {
		if Overlaps(b, o) {
			return true
		}
	}
	return false
}

// MergeBlocks sorts blocks and joins the ones that overlap or touch.
func MergeBlocks(blocks []Block) []Block {
	if len(blocks) == 0 {
		return nil
	}
	sorted := make([]Block, len(blocks))
	copy(sorted, blocks)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Start == sorted[j].Start {
			return sorted[i].End < sorted[j].End
		}
		return sorted[i].Start < sorted[j].Start
	})

	merged := []Block{sorted[0]}
	for _, b := range sorted[1:] {
		last := &merged[len(merged)-1]
		if b.Start <= last.End {
			if b.End > last.End {
				last.End = b.End
			}
			continue
		}
		merged = append(merged, b)
	}
	return merged
}

// Subtract removes every busy range from blocks and returns what is left.
func Subtract(blocks, busy []Block) []Block {
	free := MergeBlocks(blocks)
	for _, b := range MergeBlocks(busy) {
		next := make([]Block, 0, len(free))
		for _, f := range free {
			if !Overlaps(f, b) {
				next = append(next, f)
				continue
			}
			if f.Start < b.Start {
				next = append(next, Block{Start: f.Start, End: b.Start})
			}
			if b.End < f.End {
				next = append(next, Block{Start: b.End, End: f.End})
			}
		}
		free = next
	}
	return free
}

// Weekly maps each weekday to its working blocks.
type Weekly map[time.Weekday][]Block

// ValidateWeekly rejects invalid blocks and blocks overlapping on the same weekday.
func ValidateWeekly(w Weekly) error {
	for day, blocks := range w {
		for i, b := range blocks {
			if err := b.Validate(); err != nil {
				return fmt.Errorf("%s: %w", day, err)
			}
			for _, other := range blocks[i+1:] {
				if Overlaps(b, other) {
					return fmt.Errorf("%s: %w: %s and %s", day, ErrOverlappingBlock, b, other)
				}
			}
		}
	}
	return nil
}

// Exception overrides the weekly blocks on one date. DayOff wins over Blocks.
type Exception struct {
	Date   string  `json:"date"`
	DayOff bool    `json:"day_off"`
	Blocks []Block `json:"blocks,omitempty"`
}

// Options tune slot generation.
type Options struct {
	// StepMinutes is the distance between candidate slot starts.
	StepMinutes int
	// MinNoticeMinutes is how long before a slot starts it can still be booked.
	MinNoticeMinutes int
	// AdvanceDays limits how far ahead slots are offered. Zero means unlimited.
	AdvanceDays int
	// Location defines "today". Nil means UTC.
	Location *time.Location
}

// Slot is a bookable appointment window.
type Slot struct {
	Start Clock `json:"start_time"`
	End   Clock `json:"end_time"`
}

// Day summarizes a professional's day.
type Day struct {
	Date    string  `json:"date"`
	Working bool    `json:"working"`
	DayOff  bool    `json:"day_off"`
	Blocks  []Block `json:"blocks"`
	Busy    []Block `json:"busy"`
	Free    []Block `json:"free"`
	Minutes int     `json:"working_minutes"`
}

// Manager answers availability questions for a single professional.
type Manager struct {
	weekly     Weekly
	exceptions map[string]Exception
	opts       Options
}

// NewManager validates the weekly plan and exceptions and applies option defaults.
func NewManager(weekly Weekly, exceptions []Exception, opts Options) (*Manager, error) {
	if err := ValidateWeekly(weekly); err != nil {
		return nil, err
	}
	if opts.StepMinutes <= 0 {
		opts.StepMinutes = DefaultStepMinutes
	}
	if opts.MinNoticeMinutes < 0 {
		opts.MinNoticeMinutes = 0
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}

	m := &Manager{
		weekly:     make(Weekly, len(weekly)),
		exceptions: make(map[string]Exception, len(exceptions)),
		opts:       opts,
	}
	for day, blocks := range weekly {
		m.weekly[day] = MergeBlocks(blocks)
	}
	for _, ex := range exceptions {
		if _, err := ParseDate(ex.Date, nil); err != nil {
			return nil, err
		}
		for _, b := range ex.Blocks {
			if err := b.Validate(); err != nil {
				return nil, fmt.Errorf("exception %s: %w", ex.Date, err)
			}
		}
		// several exception rows may exist for the same date; their blocks add up
		// and any day-off row closes the whole day
		merged := m.exceptions[ex.Date]
		merged.Date = ex.Date
		merged.DayOff = merged.DayOff || ex.DayOff
		merged.Blocks = append(merged.Blocks, ex.Blocks...)
		m.exceptions[ex.Date] = merged
	}
	return m, nil
}

// Location returns the location used to decide what "today" is.
func (m *Manager) Location() *time.Location {
	return m.opts.Location
}

// BlocksFor returns the merged working blocks for the calendar date of date.
func (m *Manager) BlocksFor(date time.Time) []Block {
	if ex, ok := m.exceptions[date.Format(DateLayout)]; ok {
		if ex.DayOff {
			return nil
		}
		return MergeBlocks(ex.Blocks)
	}
	return MergeBlocks(m.weekly[date.Weekday()])
}

func (m *Manager) IsWorkingDay(date time.Time) bool {
	return len(m.BlocksFor(date)) > 0
}

// Fits reports whether an appointment of durationMinutes starting at start lies
// entirely inside one working block of the date.
func (m *Manager) Fits(date time.Time, start Clock, durationMinutes int) bool {
	if durationMinutes <= 0 {
		return false
	}
	end, err := start.Add(durationMinutes)
	if err != nil {
		return false
	}
	candidate := Block{Start: start, End: end}
	for _, b := range m.BlocksFor(date) {
		if b.Contains(candidate) {
			return true
		}
	}
	return false
}

// Bookable reports whether date is inside the booking horizon relative to now
// and, when date is today, returns the earliest clock a slot may start at.
func (m *Manager) Bookable(date, now time.Time) (Clock, bool) {
	day := civil(date)
	today := civil(now.In(m.opts.Location))
	if day.Before(today) {
		return 0, false
	}
	if m.opts.AdvanceDays > 0 && day.After(today.AddDate(0, 0, m.opts.AdvanceDays)) {
		return 0, false
	}
	if !day.Equal(today) {
		return 0, true
	}
	earliest := int(ClockOf(now.In(m.opts.Location))) + m.opts.MinNoticeMinutes
	if earliest >= MinutesPerDay {
		return 0, false
	}
	return Clock(earliest), true
}

// GenerateSlots lists the slot starts on date for an appointment lasting
// durationMinutes. Candidates start at each block's opening and advance by the
// step; any candidate overlapping busy, or starting before now plus the minimum
// notice, is dropped.
func (m *Manager) GenerateSlots(date time.Time, durationMinutes int, busy []Block, now time.Time) []Slot {
	if durationMinutes <= 0 {
		return nil
	}
	earliest, ok := m.Bookable(date, now)
	if !ok {
		return nil
	}

	var slots []Slot
	for _, b := range m.BlocksFor(date) {
		for start := b.Start; int(start)+durationMinutes <= int(b.End); start += Clock(m.opts.StepMinutes) {
			if start < earliest {
				continue
			}
			candidate := Block{Start: start, End: start + Clock(durationMinutes)}
			if overlapsAny(candidate, busy) {
				continue
			}
			slots = append(slots, Slot{Start: candidate.Start, End: candidate.End})
		}
	}
	return slots
}

// Describe returns the day view used by the admin schedule screen.
func (m *Manager) Describe(date time.Time, busy []Block) Day {
	blocks := m.BlocksFor(date)
	d := Day{
		Date:    date.Format(DateLayout),
		Working: len(blocks) > 0,
		Blocks:  blocks,
		Busy:    MergeBlocks(busy),
		Free:    Subtract(blocks, busy),
	}
	if ex, ok := m.exceptions[d.Date]; ok && ex.DayOff {
		d.DayOff = true
	}
	for _, b := range blocks {
		d.Minutes += b.Minutes()
	}
	if d.Blocks == nil {
		d.Blocks = []Block{}
	}
	if d.Busy == nil {
		d.Busy = []Block{}
	}
	if d.Free == nil {
		d.Free = []Block{}
	}
	return d
}
