package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/tevo-edu/recovery-api/internal/models"
)

// PurgeResult reports how many rows a graduated-student purge removed.
type PurgeResult struct {
	Students       int64
	Grades         int64
	FailedSubjects int64
}

// StudentRepository exposes student lookups, progression updates and the
// irreversible graduated-student purge.
type StudentRepository interface {
	GetByID(ctx context.Context, id uint) (models.Student, error)
	Update(ctx context.Context, id uint, updates map[string]interface{}) (models.Student, error)
	PurgeGraduated(ctx context.Context) (PurgeResult, error)
}

type studentRepository struct {
	db *gorm.DB
}

// NewStudentRepository constructs the student repository.
func NewStudentRepository(db *gorm.DB) StudentRepository {
	return &studentRepository{db: db}
}

func (r *studentRepository) GetByID(ctx context.Context, id uint) (models.Student, error) {
	var student models.Student
	err := r.db.WithContext(ctx).
		Preload("CourseGroup").
		Preload("CourseGroup.Program").
		First(&student, id).Error
	if err != nil {
		return models.Student{}, err
	}

	return student, nil
}

func (r *studentRepository) Update(ctx context.Context, id uint, updates map[string]interface{}) (models.Student, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Student{}).
		Where("id = ?", id).
		Updates(updates)
	if result.Error != nil {
		return models.Student{}, result.Error
	}

	if result.RowsAffected == 0 {
		return models.Student{}, gorm.ErrRecordNotFound
	}

	return r.GetByID(ctx, id)
}

// PurgeGraduated irreversibly deletes graduated students together with their
// grades and failed-subject records in a single transaction.
func (r *studentRepository) PurgeGraduated(ctx context.Context) (PurgeResult, error) {
	var result PurgeResult

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ids []uint
		err := tx.Model(&models.Student{}).
			Where("status = ?", models.StudentStatusGraduated).
			Pluck("id", &ids).Error
		if err != nil {
			return err
		}

		if len(ids) == 0 {
			return nil
		}

		grades := tx.Where("student_id IN ?", ids).Delete(&models.Grade{})
		if grades.Error != nil {
			return grades.Error
		}
		result.Grades = grades.RowsAffected

		failed := tx.Where("student_id IN ?", ids).Delete(&models.FailedSubject{})
		if failed.Error != nil {
			return failed.Error
		}
		result.FailedSubjects = failed.RowsAffected

		students := tx.Where("id IN ?", ids).Delete(&models.Student{})
		if students.Error != nil {
			return students.Error
		}
		result.Students = students.RowsAffected

		return nil
	})
	if err != nil {
		return PurgeResult{}, err
	}

	return result, nil
}
