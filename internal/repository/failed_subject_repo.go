package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tevo-edu/recovery-api/internal/models"
)

// FailedSubjectFilter narrows failed-subject queries. Zero-valued fields are
// ignored. Visibility-window filtering is intentionally absent: hiding old
// processed records is a read-time decision made by the service layer.
type FailedSubjectFilter struct {
	StudentID     uint
	CourseGroupID uint
	Statuses      []models.RecoveryStatus
	Unprocessed   bool
}

// FailedSubjectRepository persists failed-subject records and performs the
// conditional status transitions the state machine relies on.
type FailedSubjectRepository interface {
	Create(ctx context.Context, record *models.FailedSubject) error
	GetByID(ctx context.Context, id uint) (models.FailedSubject, error)
	Find(ctx context.Context, studentID, subjectID uint, moduleNumber int) (models.FailedSubject, error)
	List(ctx context.Context, filter FailedSubjectFilter) ([]models.FailedSubject, error)
	ListForStudentModule(ctx context.Context, studentID uint, moduleNumber int) ([]models.FailedSubject, error)
	Transition(ctx context.Context, id uint, expected models.RecoveryStatus, updates map[string]interface{}) error
	ExpireBatch(ctx context.Context, expected, next models.RecoveryStatus, today, processedAt time.Time) (int64, error)
	DeleteUnprocessed(ctx context.Context, id uint) error
}

type failedSubjectRepository struct {
	db *gorm.DB
}

// NewFailedSubjectRepository constructs the failed-subject repository.
func NewFailedSubjectRepository(db *gorm.DB) FailedSubjectRepository {
	return &failedSubjectRepository{db: db}
}

func (r *failedSubjectRepository) Create(ctx context.Context, record *models.FailedSubject) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *failedSubjectRepository) GetByID(ctx context.Context, id uint) (models.FailedSubject, error) {
	var record models.FailedSubject
	err := r.db.WithContext(ctx).
		Preload("Student").
		Preload("Subject").
		Preload("Subject.Program").
		Preload("CourseGroup").
		First(&record, id).Error
	if err != nil {
		return models.FailedSubject{}, err
	}

	return record, nil
}

func (r *failedSubjectRepository) Find(ctx context.Context, studentID, subjectID uint, moduleNumber int) (models.FailedSubject, error) {
	var record models.FailedSubject
	err := r.db.WithContext(ctx).
		Where("student_id = ? AND subject_id = ? AND module_number = ?", studentID, subjectID, moduleNumber).
		First(&record).Error
	if err != nil {
		return models.FailedSubject{}, err
	}

	return record, nil
}

func (r *failedSubjectRepository) List(ctx context.Context, filter FailedSubjectFilter) ([]models.FailedSubject, error) {
	query := r.db.WithContext(ctx).
		Model(&models.FailedSubject{}).
		Preload("Student").
		Preload("Subject").
		Preload("Subject.Program").
		Preload("CourseGroup")

	if filter.StudentID != 0 {
		query = query.Where("student_id = ?", filter.StudentID)
	}

	if filter.CourseGroupID != 0 {
		query = query.Where("course_group_id = ?", filter.CourseGroupID)
	}

	if len(filter.Statuses) > 0 {
		query = query.Where("status IN ?", filter.Statuses)
	}

	if filter.Unprocessed {
		query = query.Where("recovery_processed = ?", false)
	}

	var records []models.FailedSubject
	if err := query.Order("created_at ASC").Find(&records).Error; err != nil {
		return nil, err
	}

	return records, nil
}

func (r *failedSubjectRepository) ListForStudentModule(ctx context.Context, studentID uint, moduleNumber int) ([]models.FailedSubject, error) {
	var records []models.FailedSubject
	err := r.db.WithContext(ctx).
		Where("student_id = ? AND module_number = ?", studentID, moduleNumber).
		Find(&records).Error
	if err != nil {
		return nil, err
	}

	return records, nil
}

// Transition applies updates only while the record still holds the expected
// status and is not finalized. A concurrent grading action or expiry sweep
// that got there first leaves zero affected rows, reported as
// gorm.ErrRecordNotFound for the caller to re-inspect.
func (r *failedSubjectRepository) Transition(ctx context.Context, id uint, expected models.RecoveryStatus, updates map[string]interface{}) error {
	result := r.db.WithContext(ctx).
		Model(&models.FailedSubject{}).
		Where("id = ?", id).
		Where("status = ?", expected).
		Where("recovery_processed = ?", false).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}

// ExpireBatch finalizes every unprocessed record in the expected status whose
// recovery close date lies strictly before today. Safe to call repeatedly.
func (r *failedSubjectRepository) ExpireBatch(ctx context.Context, expected, next models.RecoveryStatus, today, processedAt time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.FailedSubject{}).
		Where("status = ?", expected).
		Where("recovery_processed = ?", false).
		Where("teacher_graded_status = ?", models.TeacherGradeNone).
		Where("recovery_close_date < ?", today).
		Updates(map[string]interface{}{
			"status":             next,
			"recovery_processed": true,
			"processed_at":       processedAt,
		})
	if result.Error != nil {
		return 0, result.Error
	}

	return result.RowsAffected, nil
}

func (r *failedSubjectRepository) DeleteUnprocessed(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).
		Where("id = ?", id).
		Where("recovery_processed = ?", false).
		Delete(&models.FailedSubject{})
	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}
