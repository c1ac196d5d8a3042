package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRecordingSegment_TimesAreUTC(t *testing.T) {
	seg := RecordingSegment{ID: "s1", StartTime: 1710064850.5, EndTime: 1710064860}

	want := time.Date(2024, 3, 10, 10, 0, 50, int(500*time.Millisecond), time.UTC)
	assert.Equal(t, want, seg.Start())
	assert.Equal(t, want.Add(9500*time.Millisecond), seg.End())
	assert.Equal(t, time.UTC, seg.Range().Start.Location())
}
