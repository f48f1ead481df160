package models

import "time"

// CourseGroup is a cohort of students taught together within a program.
type CourseGroup struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	ProgramID uint      `gorm:"not null;index" json:"program_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Program   Program   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"program"`
}

// ModuleSchedule holds the start and close dates of one module for a course group.
type ModuleSchedule struct {
	ID            uint        `gorm:"primaryKey" json:"id"`
	CourseGroupID uint        `gorm:"not null;uniqueIndex:idx_group_module" json:"course_group_id"`
	ModuleNumber  int         `gorm:"not null;uniqueIndex:idx_group_module" json:"module_number"`
	StartDate     time.Time   `gorm:"not null" json:"start_date"`
	CloseDate     time.Time   `gorm:"not null;index" json:"close_date"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
	CourseGroup   CourseGroup `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"course_group"`
}

// Closed reports whether the module's close date has passed. Close dates are
// inclusive: the module remains open through the whole close day.
func (m ModuleSchedule) Closed(now time.Time) bool {
	return DeadlinePassed(m.CloseDate, now)
}
