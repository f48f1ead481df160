package models

import "time"

// Student represents a learner enrolled in a course group of a technical program.
type Student struct {
	ID            uint        `gorm:"primaryKey" json:"id"`
	Name          string      `gorm:"size:255;not null" json:"name"`
	Email         string      `gorm:"size:255;uniqueIndex;not null" json:"email"`
	CourseGroupID uint        `gorm:"not null;index" json:"course_group_id"`
	CurrentModule int         `gorm:"not null;default:1" json:"current_module"`
	FinalModule   int         `gorm:"not null;default:1" json:"final_module"`
	Status        string      `gorm:"size:32;not null;default:active" json:"status"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
	CourseGroup   CourseGroup `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"course_group"`
}

const (
	// StudentStatusActive indicates the student is still progressing through modules.
	StudentStatusActive = "active"
	// StudentStatusGraduated indicates the student has completed the final module.
	StudentStatusGraduated = "graduated"
)

// IsGraduated reports whether the student has finished the program.
func (s Student) IsGraduated() bool {
	return s.Status == StudentStatusGraduated
}
