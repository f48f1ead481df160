package dto

import (
	"time"

	"github.com/tevo-edu/recovery-api/internal/models"
)

// RecordGradeRequest registers or corrects a grade for one activity.
type RecordGradeRequest struct {
	StudentID  uint    `json:"student_id" validate:"required"`
	ActivityID uint    `json:"activity_id" validate:"required"`
	Value      float64 `json:"value"`
}

// GradeResponse serializes a ledger entry.
type GradeResponse struct {
	ID         uint      `json:"id"`
	StudentID  uint      `json:"student_id"`
	ActivityID uint      `json:"activity_id"`
	Value      float64   `json:"value"`
	GradedBy   uint      `json:"graded_by"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// NewGradeResponse converts a grade model into a DTO.
func NewGradeResponse(grade models.Grade) GradeResponse {
	return GradeResponse{
		ID:         grade.ID,
		StudentID:  grade.StudentID,
		ActivityID: grade.ActivityID,
		Value:      grade.Value,
		GradedBy:   grade.GradedBy,
		UpdatedAt:  grade.UpdatedAt,
	}
}

// SubjectAverageResponse is one subject's computed average for a student.
type SubjectAverageResponse struct {
	SubjectID   uint    `json:"subject_id"`
	SubjectName string  `json:"subject_name"`
	SubjectCode string  `json:"subject_code"`
	Average     float64 `json:"average"`
	HasGrades   bool    `json:"has_grades"`
	Passing     bool    `json:"passing"`
}

// ModuleAveragesResponse lists a student's subject averages for one module.
type ModuleAveragesResponse struct {
	StudentID    uint                     `json:"student_id"`
	ModuleNumber int                      `json:"module_number"`
	Subjects     []SubjectAverageResponse `json:"subjects"`
}
