package payment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatus_CanTransitionTo_AllPairs(t *testing.T) {
	allowed := map[Status]map[Status]bool{
		StatusPending:    {StatusProcessing: true, StatusCancelled: true},
		StatusProcessing: {StatusCompleted: true, StatusFailed: true, StatusCancelled: true},
		StatusCompleted:  {StatusRefunded: true},
		StatusFailed:     {StatusPending: true},
	}

	for _, from := range AllStatuses {
		for _, to := range AllStatuses {
			want := allowed[from][to]
			assert.Equalf(t, want, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
}

func TestStatus_IsTerminal(t *testing.T) {
	assert.True(t, StatusCancelled.IsTerminal())
	assert.True(t, StatusRefunded.IsTerminal())
	assert.False(t, StatusFailed.IsTerminal())
	assert.False(t, Status("BOGUS").IsTerminal())
}

func TestParseStatus(t *testing.T) {
	got, err := ParseStatus(" completed ")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got)

	_, err = ParseStatus("settled")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestParseProcessingMode(t *testing.T) {
	tests := []struct {
		in      string
		want    ProcessingMode
		wantErr bool
	}{
		{"", ProcessingAuto, false},
		{"AUTO", ProcessingAuto, false},
		{"external", ProcessingExternal, false},
		{"manual", "", true},
	}
	for _, tt := range tests {
		got, err := ParseProcessingMode(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}
