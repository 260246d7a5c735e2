package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Marcosotoladev/DhermicaApp-sub000/schedule"
)

// Test that LoadConfig returns a non-nil config and respects APPENV=test
func TestLoadConfigAndConnectMySQL_TestEnv(t *testing.T) {
	t.Setenv("APPENV", "test")

	cfg := LoadConfig()
	require.NotNil(t, cfg)
	assert.True(t, IsTestEnv())

	db, err := ConnectMySQL()
	require.NoError(t, err)
	require.NotNil(t, db)

	var one int
	require.NoError(t, db.Raw("SELECT 1").Scan(&one).Error)
	assert.Equal(t, 1, one)
}

func TestLoadConfigIsSingleton(t *testing.T) {
	assert.Same(t, LoadConfig(), LoadConfig())
}

func TestDefaultClinicConfig(t *testing.T) {
	c := DefaultClinicConfig()
	assert.Equal(t, 15, c.SlotStepMinutes)
	assert.Equal(t, 60, c.MinNoticeMinutes)
	assert.Equal(t, 60, c.AdvanceDays)
	assert.Equal(t, "America/Argentina/Buenos_Aires", c.Location().String())

	weekly := c.DefaultWeekly()
	require.Len(t, weekly[time.Monday], 1)
	assert.Equal(t, "09:00-19:00", weekly[time.Monday][0].String())
	assert.Equal(t, "09:00-13:00", weekly[time.Saturday][0].String())
	assert.Empty(t, weekly[time.Sunday])
}

func TestDefaultWeeklyIsACopy(t *testing.T) {
	c := DefaultClinicConfig()
	weekly := c.DefaultWeekly()
	weekly[time.Monday][0] = schedule.Block{Start: 0, End: 60}
	assert.Equal(t, "09:00-19:00", c.DefaultWeekly()[time.Monday][0].String())
}

func TestParseClinicConfig(t *testing.T) {
	c, err := ParseClinicConfig(`
name = "Dhermica Centro"
timezone = "UTC"
slot_step_minutes = 30

[default_hours]
tuesday = ["10:00-13:00", "14:00-18:00"]
`)
	require.NoError(t, err)
	assert.Equal(t, "Dhermica Centro", c.Name)
	assert.Equal(t, time.UTC, c.Location())
	assert.Equal(t, 30, c.SlotStepMinutes)
	// fields missing from the file keep their defaults
	assert.Equal(t, 60, c.MinNoticeMinutes)

	weekly := c.DefaultWeekly()
	assert.Len(t, weekly[time.Tuesday], 2)
	assert.Empty(t, weekly[time.Monday], "a default_hours table replaces the defaults")

	opts := c.ScheduleOptions()
	assert.Equal(t, 30, opts.StepMinutes)
	assert.Equal(t, 60, opts.AdvanceDays)
}

func TestParseClinicConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{name: "bad timezone", doc: `timezone = "Mars/Olympus"`},
		{name: "bad weekday", doc: "[default_hours]\nfunday = [\"09:00-10:00\"]"},
		{name: "bad range", doc: "[default_hours]\nmonday = [\"09:00\"]"},
		{name: "inverted range", doc: "[default_hours]\nmonday = [\"12:00-09:00\"]"},
		{name: "overlapping ranges", doc: "[default_hours]\nmonday = [\"09:00-12:00\", \"11:00-13:00\"]"},
		{name: "negative notice", doc: `min_notice_minutes = -5`},
		{name: "not toml", doc: `= =`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseClinicConfig(tt.doc)
			assert.Error(t, err)
		})
	}
}

func TestLoadClinicConfigFromFile(t *testing.T) {
	dir := t.TempDir()

	c, err := LoadClinicConfig(filepath.Join(dir, "missing.toml"))
	require.NoError(t, err)
	assert.Equal(t, 15, c.SlotStepMinutes)

	path := filepath.Join(dir, "clinic.toml")
	require.NoError(t, os.WriteFile(path, []byte("advance_days = 30\n"), 0o600))
	c, err = LoadClinicConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 30, c.AdvanceDays)

	require.NoError(t, os.WriteFile(path, []byte("advance_days = \"soon\"\n"), 0o600))
	_, err = LoadClinicConfig(path)
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(&Config{AppEnv: "development", LogLevel: "debug"})
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zap.DebugLevel))

	logger, err = NewLogger(&Config{LogLevel: "warn"})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zap.InfoLevel))
	assert.True(t, logger.Core().Enabled(zap.WarnLevel))

	logger, err = NewLogger(nil)
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zap.InfoLevel))
}

func TestClinicNowUsesClock(t *testing.T) {
	cfg := DefaultClinicConfig()
	fixed := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	cfg.Clock = func() time.Time { return fixed }

	now := cfg.Now()
	assert.True(t, now.Equal(fixed))
	assert.Equal(t, 12, now.Hour())
}
