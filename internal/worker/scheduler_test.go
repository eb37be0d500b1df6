package worker

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"familytasks/internal/logging"
)

func TestSchedulerAdd(t *testing.T) {
	s := NewScheduler(logging.Nop())
	defer s.Stop()

	noop := func(context.Context) error { return nil }

	tests := []struct {
		name    string
		spec    string
		wantErr bool
	}{
		{"every interval", "@every 1m", false},
		{"cron expression", "0 */5 * * * *", false},
		{"disabled", "", false},
		{"garbage", "whenever", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.Add(tt.name, tt.spec, noop)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.name)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestSchedulerRunLogsFailures(t *testing.T) {
	var buf bytes.Buffer
	s := NewScheduler(logging.NewWithWriter(logging.Config{Level: "debug"}, &buf))
	defer s.Stop()

	s.run("relay", func(context.Context) error { return errors.New("broker down") })
	assert.Contains(t, buf.String(), "scheduled job failed")
	assert.Contains(t, buf.String(), "broker down")

	buf.Reset()
	s.run("repair", func(ctx context.Context) error { return ctx.Err() })
	assert.Contains(t, buf.String(), "scheduled job finished")
}

func TestSchedulerStopCancelsJobs(t *testing.T) {
	s := NewScheduler(logging.Nop())
	s.Start()
	s.Stop()

	var seen error
	s.run("late", func(ctx context.Context) error {
		seen = ctx.Err()
		return nil
	})
	assert.ErrorIs(t, seen, context.Canceled)
}
