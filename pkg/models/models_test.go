package models

import (
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============== FileEntry Tests ==============

func TestNewFileEntry(t *testing.T) {
	now := time.Now()
	entry := NewFileEntry("/home/user/docs/report.pdf", 2048, now)

	assert.Equal(t, "report.pdf", entry.Name)
	assert.Equal(t, "/home/user/docs/report.pdf", entry.Path)
	assert.Equal(t, int64(2048), entry.Size)
	assert.True(t, entry.ModTime.Equal(now))

	refs := Refs([]FileEntry{entry})
	require.Len(t, refs, 1)
	assert.Equal(t, FileRef{Name: "report.pdf", Path: "/home/user/docs/report.pdf"}, refs[0])
}

// ============== Mode Tests ==============

func TestMode(t *testing.T) {
	t.Run("FromOnline", func(t *testing.T) {
		assert.Equal(t, ModeOnline, ModeFromOnline(true))
		assert.Equal(t, ModeOffline, ModeFromOnline(false))
	})

	t.Run("Parse", func(t *testing.T) {
		tests := []struct {
			input   string
			want    Mode
			wantErr bool
		}{
			{"online", ModeOnline, false},
			{"OFFLINE", ModeOffline, false},
			{" online ", ModeOnline, false},
			{"remote", "", true},
		}
		for _, tt := range tests {
			got, err := ParseMode(tt.input)
			if tt.wantErr {
				assert.Error(t, err, tt.input)
				continue
			}
			require.NoError(t, err, tt.input)
			assert.Equal(t, tt.want, got)
		}
	})

	t.Run("IsOnline", func(t *testing.T) {
		assert.True(t, ModeOnline.IsOnline())
		assert.False(t, ModeOffline.IsOnline())
	})
}

func TestLimitPolicyValid(t *testing.T) {
	assert.True(t, PolicyFailFast.Valid())
	assert.True(t, PolicyFallbackOffline.Valid())
	assert.False(t, LimitPolicy("retry").Valid())
}

// ============== Error Tests ==============

func TestValidationError(t *testing.T) {
	err := &ValidationError{
		Field:   "TestField",
		Message: "test message",
	}
	assert.Equal(t, "TestField: test message", err.Error())
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestOpError(t *testing.T) {
	t.Run("MatchesKindAndCause", func(t *testing.T) {
		err := NewOpError("analyze", ErrServiceFailure, "/tmp/x", os.ErrNotExist)

		assert.ErrorIs(t, err, ErrServiceFailure)
		assert.ErrorIs(t, err, os.ErrNotExist)
		assert.NotErrorIs(t, err, ErrRateLimited)
		assert.Contains(t, err.Error(), "analyze")
		assert.Contains(t, err.Error(), "/tmp/x")
	})

	t.Run("WrappedByFmt", func(t *testing.T) {
		err := fmt.Errorf("outer: %w", NewOpError("generate", ErrMissingCredential, "", nil))

		var opErr *OpError
		require.True(t, errors.As(err, &opErr))
		assert.Equal(t, "generate", opErr.Op)
		assert.Equal(t, ErrMissingCredential, KindOf(err))
	})

	t.Run("KindOfUnknown", func(t *testing.T) {
		assert.Nil(t, KindOf(errors.New("boom")))
	})
}

// ============== RenameReport Tests ==============

func TestRenameReportFinish(t *testing.T) {
	tests := []struct {
		name      string
		succeeded int
		skipped   int
		failed    int
		cancelled bool
		want      ReportStatus
	}{
		{"Empty", 0, 0, 0, false, StatusSuccess},
		{"AllSucceeded", 3, 0, 0, false, StatusSuccess},
		{"Mixed", 2, 0, 1, false, StatusPartial},
		{"SkippedAndFailed", 0, 1, 1, false, StatusPartial},
		{"AllFailed", 0, 0, 2, false, StatusFailed},
		{"Cancelled", 1, 0, 0, true, StatusCancelled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := &RenameReport{StartTime: time.Now()}
			for i := 0; i < tt.succeeded; i++ {
				report.AddSuccess("a", "b", ActionRename, false)
			}
			for i := 0; i < tt.skipped; i++ {
				report.Skipped = append(report.Skipped, "c")
			}
			for i := 0; i < tt.failed; i++ {
				report.AddFailure("d", errors.New("denied"))
			}
			report.Finish(tt.cancelled)

			assert.Equal(t, tt.want, report.Status)
			if tt.failed > 0 {
				assert.ErrorIs(t, report.Err(), ErrPartialRenameFailure)
			} else {
				assert.NoError(t, report.Err())
			}
		})
	}
}

func TestReportStatusExitCode(t *testing.T) {
	assert.Equal(t, 0, StatusSuccess.ExitCode())
	assert.Equal(t, 1, StatusPartial.ExitCode())
	assert.Equal(t, 2, StatusFailed.ExitCode())
	assert.Equal(t, 3, StatusCancelled.ExitCode())
	assert.Equal(t, 2, ReportStatus("unknown").ExitCode())
}
