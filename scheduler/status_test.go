package scheduler

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStatus_StringCoversAllValues(t *testing.T) {
	statuses := []Status{StatusOK, StatusWait, StatusIdle, StatusSkipped, StatusEOF, StatusInvalid, StatusNotImplemented}
	for _, s := range statuses {
		require.NotEqual(t, "unknown", s.String())
	}
	require.Equal(t, "unknown", Status(99).String())
}
