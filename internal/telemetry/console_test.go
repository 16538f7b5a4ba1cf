package telemetry

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/flowguard/go-supervisor/internal/supervisor"
)

func TestConsoleReporter_Format(t *testing.T) {
	tests := []struct {
		decision supervisor.Decision
		want     string
	}{
		{supervisor.Approved, "[TELEM] [SAFE] APPROVED | Safe (1.23ms)\n"},
		{supervisor.Modified, "[TELEM] [WARN] MODIFIED | Action Clamped to Limits (1.23ms)\n"},
		{supervisor.Rejected, "[TELEM] [CRIT] REJECTED | Blocked by 1 checks (1.23ms)\n"},
	}
	for _, tt := range tests {
		t.Run(string(tt.decision), func(t *testing.T) {
			var buf bytes.Buffer
			c := NewConsoleReporter(&buf)
			require.NoError(t, c.Report(context.Background(), sampleReport(tt.decision)))
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestConsoleReporter_EmergencyStopIsCritical(t *testing.T) {
	var buf bytes.Buffer
	r := sampleReport(supervisor.Rejected)
	r.Outcome.Decision = supervisor.EmergencyStop
	require.NoError(t, NewConsoleReporter(&buf).Report(context.Background(), r))
	assert.Contains(t, buf.String(), "[CRIT] EMERGENCY_STOP")
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errSink }

func TestConsoleReporter_NeverFails(t *testing.T) {
	c := NewConsoleReporter(failingWriter{})
	assert.NoError(t, c.Report(context.Background(), sampleReport(supervisor.Approved)))
	assert.Equal(t, "console", c.Name())
}
