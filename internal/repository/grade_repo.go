package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tevo-edu/recovery-api/internal/models"
)

// SubjectAverage is the mean of a student's non-recovery activity grades for
// one subject.
type SubjectAverage struct {
	SubjectID uint
	Average   float64
	Count     int64
}

// GradeRepository exposes the grade ledger's persistence operations.
type GradeRepository interface {
	Upsert(ctx context.Context, grade *models.Grade) error
	GetActivity(ctx context.Context, activityID uint) (models.Activity, error)
	SubjectAverage(ctx context.Context, studentID, subjectID uint) (SubjectAverage, error)
	SubjectAverages(ctx context.Context, studentID uint, subjectIDs []uint) (map[uint]SubjectAverage, error)
}

type gradeRepository struct {
	db *gorm.DB
}

// NewGradeRepository constructs the grade ledger repository.
func NewGradeRepository(db *gorm.DB) GradeRepository {
	return &gradeRepository{db: db}
}

func (r *gradeRepository) Upsert(ctx context.Context, grade *models.Grade) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "student_id"}, {Name: "activity_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "graded_by", "updated_at"}),
	}).Create(grade).Error
}

func (r *gradeRepository) GetActivity(ctx context.Context, activityID uint) (models.Activity, error) {
	var activity models.Activity
	if err := r.db.WithContext(ctx).First(&activity, activityID).Error; err != nil {
		return models.Activity{}, err
	}

	return activity, nil
}

func (r *gradeRepository) SubjectAverage(ctx context.Context, studentID, subjectID uint) (SubjectAverage, error) {
	averages, err := r.SubjectAverages(ctx, studentID, []uint{subjectID})
	if err != nil {
		return SubjectAverage{}, err
	}

	avg, ok := averages[subjectID]
	if !ok {
		return SubjectAverage{SubjectID: subjectID}, nil
	}

	return avg, nil
}

func (r *gradeRepository) SubjectAverages(ctx context.Context, studentID uint, subjectIDs []uint) (map[uint]SubjectAverage, error) {
	if len(subjectIDs) == 0 {
		return map[uint]SubjectAverage{}, nil
	}

	var rows []SubjectAverage
	err := r.db.WithContext(ctx).
		Model(&models.Grade{}).
		Select("activities.subject_id AS subject_id, AVG(grades.value) AS average, COUNT(grades.id) AS count").
		Joins("JOIN activities ON activities.id = grades.activity_id").
		Where("grades.student_id = ?", studentID).
		Where("activities.subject_id IN ?", subjectIDs).
		Where("activities.is_recovery = ?", false).
		Group("activities.subject_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	averages := make(map[uint]SubjectAverage, len(rows))
	for _, row := range rows {
		averages[row.SubjectID] = row
	}

	return averages, nil
}
