package dto

import (
	"time"

	"github.com/tevo-edu/recovery-api/internal/models"
)

// ModuleOutcome is the aggregate verdict for a student's module.
type ModuleOutcome string

const (
	// OutcomePass means every subject of the module resolved as passing.
	OutcomePass ModuleOutcome = "PASS"
	// OutcomeFail means at least one subject resolved as failing.
	OutcomeFail ModuleOutcome = "FAIL"
	// OutcomeUndecided means at least one subject awaits a final verdict.
	OutcomeUndecided ModuleOutcome = "UNDECIDED"
)

// SubjectResolution describes how a single subject resolved inside a module.
type SubjectResolution string

const (
	// ResolutionPassed: the original average met the threshold.
	ResolutionPassed SubjectResolution = "passed"
	// ResolutionRecovered: the recovery path ended in teacher approval.
	ResolutionRecovered SubjectResolution = "recovered"
	// ResolutionFailed: a terminal rejection or expiry.
	ResolutionFailed SubjectResolution = "failed"
	// ResolutionPending: no final verdict yet.
	ResolutionPending SubjectResolution = "pending"
)

// SubjectOutcomeResponse details one subject's resolution within a module.
type SubjectOutcomeResponse struct {
	SubjectID   uint                  `json:"subject_id"`
	SubjectName string                `json:"subject_name"`
	SubjectCode string                `json:"subject_code"`
	Average     float64               `json:"average"`
	HasGrades   bool                  `json:"has_grades"`
	Resolution  SubjectResolution     `json:"resolution"`
	Status      models.RecoveryStatus `json:"status,omitempty"`
}

// ModuleOutcomeResponse is the resolver's verdict plus per-subject detail.
type ModuleOutcomeResponse struct {
	StudentID    uint                     `json:"student_id"`
	ModuleNumber int                      `json:"module_number"`
	Outcome      ModuleOutcome            `json:"outcome"`
	Subjects     []SubjectOutcomeResponse `json:"subjects"`
}

// StudentResponse serializes a student's progression state.
type StudentResponse struct {
	ID            uint      `json:"id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	CourseGroupID uint      `json:"course_group_id"`
	CurrentModule int       `json:"current_module"`
	FinalModule   int       `json:"final_module"`
	Status        string    `json:"status"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// NewStudentResponse converts a student model into a DTO.
func NewStudentResponse(student models.Student) StudentResponse {
	return StudentResponse{
		ID:            student.ID,
		Name:          student.Name,
		Email:         student.Email,
		CourseGroupID: student.CourseGroupID,
		CurrentModule: student.CurrentModule,
		FinalModule:   student.FinalModule,
		Status:        student.Status,
		UpdatedAt:     student.UpdatedAt,
	}
}

// PurgeGraduatedResponse reports the row counts removed by the purge.
type PurgeGraduatedResponse struct {
	Students       int64 `json:"students"`
	Grades         int64 `json:"grades"`
	FailedSubjects int64 `json:"failed_subjects"`
}
