package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tevo-edu/recovery-api/internal/models"
)

// CourseGroupRepository reads cohort structure: schedules, rosters and the
// subjects taught per module.
type CourseGroupRepository interface {
	GetByID(ctx context.Context, id uint) (models.CourseGroup, error)
	ScheduleFor(ctx context.Context, courseGroupID uint, moduleNumber int) (models.ModuleSchedule, error)
	ClosedSchedules(ctx context.Context, before time.Time) ([]models.ModuleSchedule, error)
	StudentsInModule(ctx context.Context, courseGroupID uint, moduleNumber int) ([]models.Student, error)
	SubjectsForModule(ctx context.Context, programID uint, moduleNumber int) ([]models.Subject, error)
}

type courseGroupRepository struct {
	db *gorm.DB
}

// NewCourseGroupRepository constructs the course group repository.
func NewCourseGroupRepository(db *gorm.DB) CourseGroupRepository {
	return &courseGroupRepository{db: db}
}

func (r *courseGroupRepository) GetByID(ctx context.Context, id uint) (models.CourseGroup, error) {
	var group models.CourseGroup
	if err := r.db.WithContext(ctx).Preload("Program").First(&group, id).Error; err != nil {
		return models.CourseGroup{}, err
	}

	return group, nil
}

func (r *courseGroupRepository) ScheduleFor(ctx context.Context, courseGroupID uint, moduleNumber int) (models.ModuleSchedule, error) {
	var schedule models.ModuleSchedule
	err := r.db.WithContext(ctx).
		Where("course_group_id = ? AND module_number = ?", courseGroupID, moduleNumber).
		First(&schedule).Error
	if err != nil {
		return models.ModuleSchedule{}, err
	}

	return schedule, nil
}

func (r *courseGroupRepository) ClosedSchedules(ctx context.Context, before time.Time) ([]models.ModuleSchedule, error) {
	var schedules []models.ModuleSchedule
	err := r.db.WithContext(ctx).
		Preload("CourseGroup").
		Where("close_date < ?", before).
		Find(&schedules).Error
	if err != nil {
		return nil, err
	}

	return schedules, nil
}

func (r *courseGroupRepository) StudentsInModule(ctx context.Context, courseGroupID uint, moduleNumber int) ([]models.Student, error) {
	var students []models.Student
	err := r.db.WithContext(ctx).
		Where("course_group_id = ?", courseGroupID).
		Where("current_module = ?", moduleNumber).
		Where("status = ?", models.StudentStatusActive).
		Find(&students).Error
	if err != nil {
		return nil, err
	}

	return students, nil
}

func (r *courseGroupRepository) SubjectsForModule(ctx context.Context, programID uint, moduleNumber int) ([]models.Subject, error) {
	var subjects []models.Subject
	err := r.db.WithContext(ctx).
		Where("program_id = ?", programID).
		Where("module_number = ?", moduleNumber).
		Order("code ASC").
		Find(&subjects).Error
	if err != nil {
		return nil, err
	}

	return subjects, nil
}
