package models

import "time"

// Program is a technical program made up of sequential modules.
type Program struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:255;not null" json:"name"`
	ModuleCount int       `gorm:"not null;default:1" json:"module_count"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Subject is a course unit taught inside one module of a program.
type Subject struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Name         string    `gorm:"size:255;not null" json:"name"`
	Code         string    `gorm:"size:32;uniqueIndex;not null" json:"code"`
	ModuleNumber int       `gorm:"not null;index" json:"module_number"`
	ProgramID    uint      `gorm:"not null;index" json:"program_id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	Program      Program   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"program"`
}
