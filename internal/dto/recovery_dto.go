package dto

import (
	"time"

	"github.com/tevo-edu/recovery-api/internal/models"
)

// ApproveRecoveryRequest is the admin decision on a pending recovery.
type ApproveRecoveryRequest struct {
	Approve *bool `json:"approve" validate:"required"`
}

// GradeRecoveryRequest is the teacher verdict on an approved recovery attempt.
type GradeRecoveryRequest struct {
	Approve *bool `json:"approve" validate:"required"`
}

// RecoveryRecordResponse serializes a failed-subject record for admin and
// teacher panels, with names resolved for display.
type RecoveryRecordResponse struct {
	ID                  uint                  `json:"id"`
	StudentID           uint                  `json:"student_id"`
	StudentName         string                `json:"student_name"`
	SubjectID           uint                  `json:"subject_id"`
	SubjectName         string                `json:"subject_name"`
	SubjectCode         string                `json:"subject_code"`
	CourseGroupID       uint                  `json:"course_group_id"`
	CourseGroupName     string                `json:"course_group_name"`
	ProgramName         string                `json:"program_name"`
	ModuleNumber        int                   `json:"module_number"`
	AverageGrade        float64               `json:"average_grade"`
	RecoveryApproved    bool                  `json:"recovery_approved"`
	RecoveryProcessed   bool                  `json:"recovery_processed"`
	ProcessedAt         *time.Time            `json:"processed_at"`
	TeacherGradedStatus string                `json:"teacher_graded_status"`
	Status              models.RecoveryStatus `json:"status"`
	RecoveryCloseDate   time.Time             `json:"recovery_close_date"`
}

// NewRecoveryRecordResponse converts a record into its panel representation.
// The reported status is the read-time projection, so an overdue record shows
// as expired even before the sweep has finalized it.
func NewRecoveryRecordResponse(record models.FailedSubject, now time.Time) RecoveryRecordResponse {
	return RecoveryRecordResponse{
		ID:                  record.ID,
		StudentID:           record.StudentID,
		StudentName:         record.Student.Name,
		SubjectID:           record.SubjectID,
		SubjectName:         record.Subject.Name,
		SubjectCode:         record.Subject.Code,
		CourseGroupID:       record.CourseGroupID,
		CourseGroupName:     record.CourseGroup.Name,
		ProgramName:         record.Subject.Program.Name,
		ModuleNumber:        record.ModuleNumber,
		AverageGrade:        record.AverageGrade,
		RecoveryApproved:    record.RecoveryApproved,
		RecoveryProcessed:   record.RecoveryProcessed,
		ProcessedAt:         record.ProcessedAt,
		TeacherGradedStatus: record.TeacherGradedStatus,
		Status:              record.DeriveStatus(now),
		RecoveryCloseDate:   record.RecoveryCloseDate,
	}
}

// RecoveryPanelResponse is the admin recovery panel.
type RecoveryPanelResponse struct {
	Items    []RecoveryRecordResponse `json:"items"`
	CacheHit bool                     `json:"cache_hit"`
}

// StudentRecoveryResponse is one approved recovery from the student's view.
type StudentRecoveryResponse struct {
	ID                uint                  `json:"id"`
	SubjectID         uint                  `json:"subject_id"`
	SubjectName       string                `json:"subject_name"`
	SubjectCode       string                `json:"subject_code"`
	ModuleNumber      int                   `json:"module_number"`
	AverageGrade      float64               `json:"average_grade"`
	Status            models.RecoveryStatus `json:"status"`
	RecoveryCloseDate time.Time             `json:"recovery_close_date"`
	RecoveryClosed    bool                  `json:"recovery_closed"`
}

// NewStudentRecoveryResponse converts a record into the student view.
func NewStudentRecoveryResponse(record models.FailedSubject, now time.Time) StudentRecoveryResponse {
	return StudentRecoveryResponse{
		ID:                record.ID,
		SubjectID:         record.SubjectID,
		SubjectName:       record.Subject.Name,
		SubjectCode:       record.Subject.Code,
		ModuleNumber:      record.ModuleNumber,
		AverageGrade:      record.AverageGrade,
		Status:            record.DeriveStatus(now),
		RecoveryCloseDate: record.RecoveryCloseDate,
		RecoveryClosed:    record.RecoveryClosed(now),
	}
}

// DetectorRunResponse summarizes one failed-subject detection sweep.
type DetectorRunResponse struct {
	SchedulesScanned int `json:"schedules_scanned"`
	RecordsCreated   int `json:"records_created"`
	RecordsInvalid   int `json:"records_invalidated"`
}

// ExpireSweepResponse summarizes one expiry sweep.
type ExpireSweepResponse struct {
	ExpiredNoAdminAction  int64 `json:"expired_no_admin_action"`
	ExpiredTeacherNoGrade int64 `json:"expired_teacher_no_grade"`
}
