package models

import "time"

// Activity is a gradable piece of work inside a subject. Recovery activities
// are remedial attempts and never count toward the ordinary subject average.
type Activity struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	SubjectID     uint      `gorm:"not null;index" json:"subject_id"`
	CourseGroupID uint      `gorm:"not null;index" json:"course_group_id"`
	Title         string    `gorm:"size:255;not null" json:"title"`
	DueDate       time.Time `json:"due_date"`
	IsRecovery    bool      `gorm:"not null;default:false" json:"is_recovery"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	Subject       Subject   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"subject"`
}

// Grade is a numeric score a student obtained on an activity.
type Grade struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	StudentID  uint      `gorm:"not null;uniqueIndex:idx_student_activity" json:"student_id"`
	ActivityID uint      `gorm:"not null;uniqueIndex:idx_student_activity" json:"activity_id"`
	Value      float64   `gorm:"not null" json:"value"`
	GradedBy   uint      `json:"graded_by"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	Activity   Activity  `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"activity"`
}

const (
	// GradeMin is the lowest grade on the provider's scale.
	GradeMin = 0.0
	// GradeMax is the highest grade on the provider's scale.
	GradeMax = 5.0
	// PassingGrade is the threshold a subject average must reach to pass.
	PassingGrade = 3.0
)
