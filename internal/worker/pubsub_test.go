package worker_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/aqtracker/aqtracker/internal/airquality"
	"github.com/aqtracker/aqtracker/internal/worker"
)

func TestDispatcher_Handle(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		refresher *mockRefresher
		wantAck   bool
		wantCalls int32
	}{
		{
			name:      "refresh succeeds",
			body:      `{"job_type":"refresh"}`,
			refresher: &mockRefresher{ingested: 3},
			wantAck:   true,
			wantCalls: 1,
		},
		{
			name:      "refresh already running",
			body:      `{"job_type":"refresh"}`,
			refresher: &mockRefresher{err: airquality.ErrRefreshInProgress},
			wantAck:   true,
			wantCalls: 1,
		},
		{
			name:      "persistence failure waits for the schedule",
			body:      `{"job_type":"refresh"}`,
			refresher: &mockRefresher{err: fmt.Errorf("%w: %w", airquality.ErrPersistence, errors.New("timeout"))},
			wantAck:   true,
			wantCalls: 1,
		},
		{
			name:      "health check",
			body:      `{"job_type":"health_check"}`,
			refresher: &mockRefresher{},
			wantAck:   true,
		},
		{
			name:      "health check store down",
			body:      `{"job_type":"health_check"}`,
			refresher: &mockRefresher{emptyErr: errors.New("connection refused")},
			wantAck:   false,
		},
		{
			name:      "unknown job type",
			body:      `{"job_type":"provider_refresh"}`,
			refresher: &mockRefresher{},
			wantAck:   true,
		},
		{
			name:      "malformed",
			body:      `{"job_type":`,
			refresher: &mockRefresher{},
			wantAck:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := worker.NewDispatcher(newJob(tt.refresher), zerolog.New(io.Discard))
			assert.Equal(t, tt.wantAck, d.Handle(context.Background(), []byte(tt.body)))
			assert.Equal(t, tt.wantCalls, tt.refresher.calls.Load())
		})
	}
}
