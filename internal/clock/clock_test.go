package clock

import (
	"testing"
	"time"
)

func TestNow_ReturnsCurrentTime(t *testing.T) {
	before := time.Now()
	result := Now()
	after := time.Now()

	if result.Before(before) || result.After(after) {
		t.Errorf("Now() returned %v, expected between %v and %v", result, before, after)
	}
}

func TestMockClock_Advance(t *testing.T) {
	mockTime := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	mock := NewMockClock(mockTime)

	mock.Advance(time.Hour)
	if got := mock.Now(); !got.Equal(mockTime.Add(time.Hour)) {
		t.Errorf("After Advance, Now() = %v", got)
	}
	if got := mock.Since(mockTime); got != time.Hour {
		t.Errorf("Since() = %v, expected 1h", got)
	}
}

func TestUse_InstallsAndRestores(t *testing.T) {
	mockTime := time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)
	restore := Use(NewMockClock(mockTime))

	if got := Now(); !got.Equal(mockTime) {
		t.Errorf("Now() with mock installed = %v, expected %v", got, mockTime)
	}

	restore()
	if Now().Equal(mockTime) {
		t.Error("restore did not reinstall the real clock")
	}
}
