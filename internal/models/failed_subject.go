package models

import "time"

// RecoveryStatus tags the lifecycle position of a failed-subject record.
type RecoveryStatus string

const (
	// StatusPendingAdminApproval is the initial state after detection.
	StatusPendingAdminApproval RecoveryStatus = "pending_admin_approval"
	// StatusAdminApproved means an admin authorized the recovery attempt.
	StatusAdminApproved RecoveryStatus = "admin_approved"
	// StatusAdminRejected is terminal: the admin declined to offer a recovery.
	StatusAdminRejected RecoveryStatus = "admin_rejected"
	// StatusTeacherApproved is terminal: the teacher passed the recovery attempt.
	StatusTeacherApproved RecoveryStatus = "teacher_approved"
	// StatusTeacherRejected is terminal: the teacher failed the recovery attempt.
	StatusTeacherRejected RecoveryStatus = "teacher_rejected"
	// StatusExpiredNoAdminAction is terminal: the deadline passed with no admin decision.
	StatusExpiredNoAdminAction RecoveryStatus = "expired_no_admin_action"
	// StatusExpiredTeacherNoGrade is terminal: approved but never graded before the deadline.
	StatusExpiredTeacherNoGrade RecoveryStatus = "expired_teacher_no_grade"
)

// Terminal reports whether the status permits no further transitions.
func (s RecoveryStatus) Terminal() bool {
	switch s {
	case StatusAdminRejected, StatusTeacherApproved, StatusTeacherRejected,
		StatusExpiredNoAdminAction, StatusExpiredTeacherNoGrade:
		return true
	}
	return false
}

// Passing reports whether the status resolves the failed subject as passed.
func (s RecoveryStatus) Passing() bool {
	return s == StatusTeacherApproved
}

// TeacherGradedStatus values for FailedSubject.TeacherGradedStatus.
const (
	TeacherGradeNone     = "none"
	TeacherGradeApproved = "approved"
	TeacherGradeRejected = "rejected"
)

// PanelVisibilityWindow is how long finalized records stay on active panels.
const PanelVisibilityWindow = 30 * 24 * time.Hour

// FailedSubject records a student's sub-threshold subject average in a closed
// module and the authorization lifecycle of its recovery attempt. At most one
// record exists per (student, subject, module).
type FailedSubject struct {
	ID                  uint           `gorm:"primaryKey" json:"id"`
	StudentID           uint           `gorm:"not null;uniqueIndex:idx_failed_subject" json:"student_id"`
	SubjectID           uint           `gorm:"not null;uniqueIndex:idx_failed_subject" json:"subject_id"`
	ModuleNumber        int            `gorm:"not null;uniqueIndex:idx_failed_subject" json:"module_number"`
	CourseGroupID       uint           `gorm:"not null;index" json:"course_group_id"`
	AverageGrade        float64        `gorm:"not null" json:"average_grade"`
	RecoveryApproved    bool           `gorm:"not null;default:false" json:"recovery_approved"`
	RecoveryCloseDate   time.Time      `gorm:"not null" json:"recovery_close_date"`
	TeacherGradedStatus string         `gorm:"size:16;not null;default:none" json:"teacher_graded_status"`
	RecoveryProcessed   bool           `gorm:"not null;default:false" json:"recovery_processed"`
	ProcessedAt         *time.Time     `json:"processed_at"`
	Status              RecoveryStatus `gorm:"size:32;not null;index" json:"status"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
	Student             Student        `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"student"`
	Subject             Subject        `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"subject"`
	CourseGroup         CourseGroup    `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"course_group"`
}

// DeriveStatus is the pure read-time projection of the record's status. The
// stored status is authoritative once the record is finalized; before that,
// a passed deadline surfaces the corresponding expired state even if the
// expiry sweep has not yet run.
func (f FailedSubject) DeriveStatus(now time.Time) RecoveryStatus {
	if f.RecoveryProcessed {
		return f.Status
	}

	if DeadlinePassed(f.RecoveryCloseDate, now) {
		switch f.Status {
		case StatusPendingAdminApproval:
			return StatusExpiredNoAdminAction
		case StatusAdminApproved:
			if f.TeacherGradedStatus == TeacherGradeNone {
				return StatusExpiredTeacherNoGrade
			}
		}
	}

	return f.Status
}

// Finalized reports whether the record has an immutable verdict.
func (f FailedSubject) Finalized() bool {
	return f.RecoveryProcessed
}

// VisibleInPanel reports whether the record should appear on active panels.
// Records finalized more than the visibility window ago are hidden, never
// deleted.
func (f FailedSubject) VisibleInPanel(now time.Time) bool {
	if !f.RecoveryProcessed || f.ProcessedAt == nil {
		return true
	}
	return now.Sub(*f.ProcessedAt) <= PanelVisibilityWindow
}

// RecoveryClosed reports whether the recovery deadline has passed.
func (f FailedSubject) RecoveryClosed(now time.Time) bool {
	return DeadlinePassed(f.RecoveryCloseDate, now)
}

/// DeadlinePassed reports whether now is past an inclusive close date: the
// deadline holds through the whole close day, regardless of the time-of-day
// stored on either value. Every deadline comparison in the engine goes
// through here so all callers agree.
func DeadlinePassed(closeDate, now time.Time) bool {
	return dateOnly(now).After(dateOnly(closeDate))
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
