package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDeadlinePassedInclusiveCloseDay(t *testing.T) {
	close := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	require.False(t, DeadlinePassed(close, time.Date(2026, 3, 9, 23, 59, 0, 0, time.UTC)))
	require.False(t, DeadlinePassed(close, time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)))
	require.False(t, DeadlinePassed(close, time.Date(2026, 3, 10, 23, 59, 59, 0, time.UTC)))
	require.True(t, DeadlinePassed(close, time.Date(2026, 3, 11, 0, 0, 1, 0, time.UTC)))
}

func TestDeriveStatusLazyExpiry(t *testing.T) {
	close := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	before := close.AddDate(0, 0, -1)
	after := close.AddDate(0, 0, 2)

	pending := FailedSubject{Status: StatusPendingAdminApproval, RecoveryCloseDate: close}
	require.Equal(t, StatusPendingAdminApproval, pending.DeriveStatus(before))
	require.Equal(t, StatusExpiredNoAdminAction, pending.DeriveStatus(after))

	approved := FailedSubject{
		Status:              StatusAdminApproved,
		TeacherGradedStatus: TeacherGradeNone,
		RecoveryCloseDate:   close,
	}
	require.Equal(t, StatusAdminApproved, approved.DeriveStatus(before))
	require.Equal(t, StatusExpiredTeacherNoGrade, approved.DeriveStatus(after))
}

func TestDeriveStatusFinalizedIsStable(t *testing.T) {
	close := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	processedAt := close.AddDate(0, 0, -2)
	record := FailedSubject{
		Status:              StatusTeacherApproved,
		TeacherGradedStatus: TeacherGradeApproved,
		RecoveryProcessed:   true,
		ProcessedAt:         &processedAt,
		RecoveryCloseDate:   close,
	}

	require.Equal(t, StatusTeacherApproved, record.DeriveStatus(close.AddDate(0, 0, 30)))
}

func TestVisibleInPanelWindow(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	unprocessed := FailedSubject{Status: StatusPendingAdminApproval}
	require.True(t, unprocessed.VisibleInPanel(now))

	recent := now.AddDate(0, 0, -10)
	fresh := FailedSubject{RecoveryProcessed: true, ProcessedAt: &recent}
	require.True(t, fresh.VisibleInPanel(now))

	old := now.AddDate(0, 0, -31)
	stale := FailedSubject{RecoveryProcessed: true, ProcessedAt: &old}
	require.False(t, stale.VisibleInPanel(now))
}

func TestRecoveryStatusTerminal(t *testing.T) {
	require.False(t, StatusPendingAdminApproval.Terminal())
	require.False(t, StatusAdminApproved.Terminal())
	for _, status := range []RecoveryStatus{
		StatusAdminRejected,
		StatusTeacherApproved,
		StatusTeacherRejected,
		StatusExpiredNoAdminAction,
		StatusExpiredTeacherNoGrade,
	} {
		require.True(t, status.Terminal(), string(status))
	}
	require.True(t, StatusTeacherApproved.Passing())
	require.False(t, StatusTeacherRejected.Passing())
}
