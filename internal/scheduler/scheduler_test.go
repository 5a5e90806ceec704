package scheduler

import (
	"context"
	"testing"

	"github.com/familyos/go-pipeline-service/internal/shared/config"
	"github.com/familyos/go-pipeline-service/internal/shared/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTicks() Ticks {
	noop := func(context.Context) error { return nil }
	return Ticks{Dispatch: noop, Reminders: noop, Conflicts: noop, Daily: noop, Weekly: noop}
}

func TestSchedulerStartStop(t *testing.T) {
	cfg := config.SchedulerConfig{
		DispatchSpec: "* * * * *",
		ReminderSpec: "*/5 * * * *",
		ConflictSpec: "0 * * * *",
		DailySpec:    "0 6 * * *",
		WeeklySpec:   "0 6 * * 1",
	}

	s := NewPipelineScheduler(cfg, testTicks(), logger.NewLogger())
	require.NoError(t, s.Start())
	s.Stop()
}

func TestSchedulerRejectsBadSpec(t *testing.T) {
	cfg := config.SchedulerConfig{
		DispatchSpec: "not a cron spec",
	}

	s := NewPipelineScheduler(cfg, testTicks(), logger.NewLogger())
	assert.Error(t, s.Start())
}

func TestSchedulerSkipsMissingTicks(t *testing.T) {
	cfg := config.SchedulerConfig{
		DispatchSpec: "* * * * *",
		// The other specs are empty, but their ticks are nil so they are
		// never registered and the empty specs never parsed.
	}

	s := NewPipelineScheduler(cfg, Ticks{Dispatch: func(context.Context) error { return nil }}, logger.NewLogger())
	require.NoError(t, s.Start())
	s.Stop()
}
