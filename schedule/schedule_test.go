package schedule

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustBlock(t *testing.T, start, end string) Block {
	t.Helper()
	b, err := NewBlock(start, end)
	require.NoError(t, err)
	return b
}

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := ParseDate(s, nil)
	require.NoError(t, err)
	return d
}

func slotStarts(slots []Slot) []string {
	out := make([]string, 0, len(slots))
	for _, s := range slots {
		out = append(out, s.Start.String())
	}
	return out
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		input    string
		expected Clock
		wantErr  bool
	}{
		{input: "9:00", expected: 540},
		{input: "09:30", expected: 570},
		{input: "14.45", expected: 885},
		{input: " 18:05 ", expected: 1085},
		{input: "00:00", expected: 0},
		{input: "24:00", expected: MinutesPerDay},
		{input: "24:01", wantErr: true},
		{input: "25:00", wantErr: true},
		{input: "12:60", wantErr: true},
		{input: "9:5", wantErr: true},
		{input: "ab:cd", wantErr: true},
		{input: "0900", wantErr: true},
		{input: "+9:30", wantErr: true},
		{input: "-1:00", wantErr: true},
		{input: "9:+5", wantErr: true},
		{input: " 9: 30", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseClock(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidClock))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestClockStringAndAdd(t *testing.T) {
	c := Clock(9*60 + 5)
	assert.Equal(t, "09:05", c.String())

	next, err := c.Add(55)
	require.NoError(t, err)
	assert.Equal(t, "10:00", next.String())

	end, err := Clock(23 * 60).Add(60)
	require.NoError(t, err)
	assert.Equal(t, "24:00", end.String())

	_, err = Clock(23 * 60).Add(61)
	assert.True(t, errors.Is(err, ErrClockOverflow))
}

func TestClockJSON(t *testing.T) {
	var payload struct {
		At Clock `json:"at"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"at":"13:15"}`), &payload))
	assert.Equal(t, Clock(795), payload.At)

	out, err := json.Marshal(payload)
	require.NoError(t, err)
	assert.JSONEq(t, `{"at":"13:15"}`, string(out))

	assert.Error(t, json.Unmarshal([]byte(`{"at":"31:00"}`), &payload))
}

func TestClockOfRoundsUp(t *testing.T) {
	assert.Equal(t, Clock(600), ClockOf(time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)))
	assert.Equal(t, Clock(601), ClockOf(time.Date(2025, 3, 10, 10, 0, 1, 0, time.UTC)))
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2025-03-10", nil)
	require.NoError(t, err)
	assert.Equal(t, time.Monday, d.Weekday())

	_, err = ParseDate("10/03/2025", nil)
	assert.True(t, errors.Is(err, ErrInvalidDate))
}

func TestNewBlockRejectsInverted(t *testing.T) {
	_, err := NewBlock("12:00", "09:00")
	assert.True(t, errors.Is(err, ErrInvalidBlock))

	_, err = NewBlock("09:00", "09:00")
	assert.True(t, errors.Is(err, ErrInvalidBlock))
}

func TestOverlapsIsHalfOpen(t *testing.T) {
	a := mustBlock(t, "09:00", "10:00")
	assert.False(t, Overlaps(a, mustBlock(t, "10:00", "11:00")))
	assert.True(t, Overlaps(a, mustBlock(t, "09:59", "11:00")))
	assert.True(t, Overlaps(a, mustBlock(t, "09:15", "09:30")))
	assert.False(t, Overlaps(a, mustBlock(t, "08:00", "09:00")))
}

func TestMergeBlocks(t *testing.T) {
	merged := MergeBlocks([]Block{
		mustBlock(t, "10:00", "12:00"),
		mustBlock(t, "09:00", "10:00"),
		mustBlock(t, "11:00", "13:00"),
		mustBlock(t, "15:00", "16:00"),
	})
	assert.Equal(t, []Block{
		mustBlock(t, "09:00", "13:00"),
		mustBlock(t, "15:00", "16:00"),
	}, merged)

	assert.Nil(t, MergeBlocks(nil))
}

func TestSubtract(t *testing.T) {
	free := Subtract(
		[]Block{mustBlock(t, "09:00", "12:00"), mustBlock(t, "14:00", "18:00")},
		[]Block{mustBlock(t, "10:00", "11:00"), mustBlock(t, "13:00", "14:30")},
	)
	assert.Equal(t, []Block{
		mustBlock(t, "09:00", "10:00"),
		mustBlock(t, "11:00", "12:00"),
		mustBlock(t, "14:30", "18:00"),
	}, free)

	assert.Empty(t, Subtract([]Block{mustBlock(t, "09:00", "10:00")}, []Block{mustBlock(t, "08:00", "11:00")}))
}

func TestValidateWeeklyRejectsOverlap(t *testing.T) {
	weekly := Weekly{
		time.Monday: {mustBlock(t, "09:00", "12:00"), mustBlock(t, "11:00", "14:00")},
	}
	err := ValidateWeekly(weekly)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrOverlappingBlock))

	_, err = NewManager(weekly, nil, Options{})
	assert.Error(t, err)

	adjacent := Weekly{
		time.Monday: {mustBlock(t, "09:00", "12:00"), mustBlock(t, "12:00", "14:00")},
	}
	assert.NoError(t, ValidateWeekly(adjacent))
}

func TestNewManagerRejectsBadException(t *testing.T) {
	_, err := NewManager(nil, []Exception{{Date: "2025-13-01", DayOff: true}}, Options{})
	assert.True(t, errors.Is(err, ErrInvalidDate))

	_, err = NewManager(nil, []Exception{{Date: "2025-03-10", Blocks: []Block{{Start: 600, End: 540}}}}, Options{})
	assert.True(t, errors.Is(err, ErrInvalidBlock))
}

func TestBlocksForUsesExceptions(t *testing.T) {
	weekly := Weekly{
		time.Monday:  {mustBlock(t, "14:00", "18:00"), mustBlock(t, "09:00", "12:00")},
		time.Tuesday: {mustBlock(t, "09:00", "17:00")},
	}
	exceptions := []Exception{
		{Date: "2025-03-11", DayOff: true},
		{Date: "2025-03-16", Blocks: []Block{mustBlock(t, "10:00", "13:00")}},
	}
	m, err := NewManager(weekly, exceptions, Options{})
	require.NoError(t, err)

	monday := m.BlocksFor(mustDate(t, "2025-03-10"))
	assert.Equal(t, []Block{mustBlock(t, "09:00", "12:00"), mustBlock(t, "14:00", "18:00")}, monday)

	assert.Empty(t, m.BlocksFor(mustDate(t, "2025-03-11")))
	assert.False(t, m.IsWorkingDay(mustDate(t, "2025-03-11")))

	// Sunday has no weekly hours but the exception opens it.
	assert.True(t, m.IsWorkingDay(mustDate(t, "2025-03-16")))
	assert.Equal(t, []Block{mustBlock(t, "10:00", "13:00")}, m.BlocksFor(mustDate(t, "2025-03-16")))

	assert.False(t, m.IsWorkingDay(mustDate(t, "2025-03-15")))
}

func TestExceptionsOnSameDateCombine(t *testing.T) {
	weekly := Weekly{time.Monday: {mustBlock(t, "09:00", "18:00")}}
	m, err := NewManager(weekly, []Exception{
		{Date: "2025-03-10", Blocks: []Block{mustBlock(t, "09:00", "11:00")}},
		{Date: "2025-03-10", Blocks: []Block{mustBlock(t, "15:00", "17:00")}},
	}, Options{})
	require.NoError(t, err)
	assert.Len(t, m.BlocksFor(mustDate(t, "2025-03-10")), 2)

	m, err = NewManager(weekly, []Exception{
		{Date: "2025-03-10", Blocks: []Block{mustBlock(t, "09:00", "11:00")}},
		{Date: "2025-03-10", DayOff: true},
	}, Options{})
	require.NoError(t, err)
	assert.Empty(t, m.BlocksFor(mustDate(t, "2025-03-10")))
}

func TestFits(t *testing.T) {
	m, err := NewManager(Weekly{time.Monday: {mustBlock(t, "09:00", "12:00"), mustBlock(t, "14:00", "18:00")}}, nil, Options{})
	require.NoError(t, err)
	monday := mustDate(t, "2025-03-10")

	assert.True(t, m.Fits(monday, 660, 60))
	assert.False(t, m.Fits(monday, 690, 60))
	assert.False(t, m.Fits(monday, 690, 180))
	assert.True(t, m.Fits(monday, 840, 240))
	assert.False(t, m.Fits(monday, 540, 0))
	assert.False(t, m.Fits(mustDate(t, "2025-03-11"), 540, 30))
	assert.False(t, m.Fits(monday, 1430, 30))
}

func TestGenerateSlots(t *testing.T) {
	m, err := NewManager(Weekly{time.Monday: {mustBlock(t, "09:00", "12:00")}}, nil, Options{StepMinutes: 30})
	require.NoError(t, err)
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	monday := mustDate(t, "2025-03-10")

	slots := m.GenerateSlots(monday, 60, nil, now)
	assert.Equal(t, []string{"09:00", "09:30", "10:00", "10:30", "11:00"}, slotStarts(slots))
	assert.Equal(t, "12:00", slots[len(slots)-1].End.String())

	busy := []Interval{mustBlock(t, "10:00", "11:00")}
	slots = m.GenerateSlots(monday, 60, busy, now)
	assert.Equal(t, []string{"09:00", "11:00"}, slotStarts(slots))

	assert.Nil(t, m.GenerateSlots(monday, 0, nil, now))
	assert.Nil(t, m.GenerateSlots(monday, 240, nil, now))
	assert.Nil(t, m.GenerateSlots(mustDate(t, "2025-03-11"), 30, nil, now))
}

func TestGenerateSlotsDefaultStep(t *testing.T) {
	m, err := NewManager(Weekly{time.Monday: {mustBlock(t, "09:00", "10:00")}}, nil, Options{})
	require.NoError(t, err)
	slots := m.GenerateSlots(mustDate(t, "2025-03-10"), 30, nil, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, []string{"09:00", "09:15", "09:30"}, slotStarts(slots))
}

func TestGenerateSlotsTodayHonoursNotice(t *testing.T) {
	m, err := NewManager(Weekly{time.Monday: {mustBlock(t, "09:00", "12:00")}}, nil, Options{StepMinutes: 30, MinNoticeMinutes: 60})
	require.NoError(t, err)
	now := time.Date(2025, 3, 10, 9, 20, 0, 0, time.UTC)

	slots := m.GenerateSlots(mustDate(t, "2025-03-10"), 30, nil, now)
	assert.Equal(t, []string{"10:30", "11:00", "11:30"}, slotStarts(slots))
}

func TestGenerateSlotsPastAndHorizon(t *testing.T) {
	weekly := Weekly{}
	for d := time.Sunday; d <= time.Saturday; d++ {
		weekly[d] = []Block{mustBlock(t, "09:00", "10:00")}
	}
	m, err := NewManager(weekly, nil, Options{StepMinutes: 30, AdvanceDays: 5})
	require.NoError(t, err)
	now := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)

	assert.Nil(t, m.GenerateSlots(mustDate(t, "2025-03-09"), 30, nil, now))
	assert.Len(t, m.GenerateSlots(mustDate(t, "2025-03-15"), 30, nil, now), 2)
	assert.Nil(t, m.GenerateSlots(mustDate(t, "2025-03-16"), 30, nil, now))
}

func TestBookableUsesManagerLocation(t *testing.T) {
	art := time.FixedZone("ART", -3*60*60)
	m, err := NewManager(nil, nil, Options{MinNoticeMinutes: 60, Location: art})
	require.NoError(t, err)
	assert.Equal(t, art, m.Location())

	// 02:00 UTC on the 11th is still 23:00 on the 10th in the clinic.
	now := time.Date(2025, 3, 11, 2, 0, 0, 0, time.UTC)
	_, ok := m.Bookable(mustDate(t, "2025-03-10"), now)
	assert.False(t, ok)

	earliest, ok := m.Bookable(mustDate(t, "2025-03-11"), now)
	assert.True(t, ok)
	assert.Equal(t, Clock(0), earliest)

	now = time.Date(2025, 3, 10, 13, 0, 0, 0, time.UTC)
	earliest, ok = m.Bookable(mustDate(t, "2025-03-10"), now)
	assert.True(t, ok)
	assert.Equal(t, "11:00", earliest.String())
}

func TestDescribe(t *testing.T) {
	m, err := NewManager(
		Weekly{time.Monday: {mustBlock(t, "09:00", "12:00"), mustBlock(t, "14:00", "18:00")}},
		[]Exception{{Date: "2025-03-17", DayOff: true}},
		Options{},
	)
	require.NoError(t, err)

	day := m.Describe(mustDate(t, "2025-03-10"), []Interval{mustBlock(t, "10:00", "11:00")})
	assert.Equal(t, "2025-03-10", day.Date)
	assert.True(t, day.Working)
	assert.False(t, day.DayOff)
	assert.Equal(t, 420, day.Minutes)
	assert.Equal(t, []Block{
		mustBlock(t, "09:00", "10:00"),
		mustBlock(t, "11:00", "12:00"),
		mustBlock(t, "14:00", "18:00"),
	}, day.Free)

	off := m.Describe(mustDate(t, "2025-03-17"), nil)
	assert.True(t, off.DayOff)
	assert.False(t, off.Working)
	assert.Equal(t, []Block{}, off.Free)
	assert.Equal(t, []Block{}, off.Blocks)
}
