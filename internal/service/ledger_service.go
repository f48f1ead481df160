package service

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"

	"github.com/tevo-edu/recovery-api/internal/dto"
	"github.com/tevo-edu/recovery-api/internal/models"
	"github.com/tevo-edu/recovery-api/internal/repository"
)

// LedgerService is the grade ledger: it records grades and computes the
// subject averages every downstream component depends on.
type LedgerService interface {
	RecordGrade(ctx context.Context, actor Actor, payload dto.RecordGradeRequest) (dto.GradeResponse, error)
	SubjectAverage(ctx context.Context, studentID, subjectID uint) (float64, bool, error)
	ModuleAverages(ctx context.Context, studentID uint, moduleNumber int) (dto.ModuleAveragesResponse, error)
}

type ledgerService struct {
	grades    repository.GradeRepository
	students  repository.StudentRepository
	groups    repository.CourseGroupRepository
	validator *validator.Validate
	audit     AuditRecorder
	logger    zerolog.Logger
	now       func() time.Time
}

// NewLedgerService constructs the grade ledger service.
func NewLedgerService(grades repository.GradeRepository, students repository.StudentRepository, groups repository.CourseGroupRepository, validator *validator.Validate, audit AuditRecorder, logger zerolog.Logger) LedgerService {
	return &ledgerService{
		grades:    grades,
		students:  students,
		groups:    groups,
		validator: validator,
		audit:     audit,
		logger:    logger.With().Str("component", "ledger_service").Logger(),
		now:       time.Now,
	}
}

func (s *ledgerService) RecordGrade(ctx context.Context, actor Actor, payload dto.RecordGradeRequest) (dto.GradeResponse, error) {
	tracer := otel.Tracer("github.com/tevo-edu/recovery-api/internal/service/ledger")
	ctx, span := tracer.Start(ctx, "ledger.record_grade")
	span.SetAttributes(
		attribute.Int64("ledger.student_id", int64(payload.StudentID)),
		attribute.Int64("ledger.activity_id", int64(payload.ActivityID)),
	)
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation_failed")
		return dto.GradeResponse{}, err
	}

	if payload.Value < models.GradeMin || payload.Value > models.GradeMax {
		span.SetStatus(codes.Error, "grade_out_of_range")
		return dto.GradeResponse{}, ErrGradeOutOfRange
	}

	if _, err := s.grades.GetActivity(ctx, payload.ActivityID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			span.SetStatus(codes.Error, "activity_not_found")
			return dto.GradeResponse{}, ErrActivityNotFound
		}
		span.RecordError(err)
		return dto.GradeResponse{}, err
	}

	if _, err := s.students.GetByID(ctx, payload.StudentID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			span.SetStatus(codes.Error, "student_not_found")
			return dto.GradeResponse{}, ErrStudentNotFound
		}
		span.RecordError(err)
		return dto.GradeResponse{}, err
	}

	grade := models.Grade{
		StudentID:  payload.StudentID,
		ActivityID: payload.ActivityID,
		Value:      payload.Value,
		GradedBy:   actor.ID,
	}
	if err := s.grades.Upsert(ctx, &grade); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "grade_upsert_failed")
		return dto.GradeResponse{}, err
	}

	if s.audit != nil {
		_, _ = s.audit.Record(ctx, AuditEntry{
			ActorID:    actor.ID,
			ActorRole:  actor.Role,
			Action:     "grade.recorded",
			EntityType: "grade",
			EntityID:   &grade.ID,
			Metadata: map[string]interface{}{
				"student_id":  payload.StudentID,
				"activity_id": payload.ActivityID,
				"value":       payload.Value,
			},
		})
	}

	return dto.NewGradeResponse(grade), nil
}

func (s *ledgerService) SubjectAverage(ctx context.Context, studentID, subjectID uint) (float64, bool, error) {
	avg, err := s.grades.SubjectAverage(ctx, studentID, subjectID)
	if err != nil {
		return 0, false, err
	}

	return avg.Average, avg.Count > 0, nil
}

func (s *ledgerService) ModuleAverages(ctx context.Context, studentID uint, moduleNumber int) (dto.ModuleAveragesResponse, error) {
	student, err := s.students.GetByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ModuleAveragesResponse{}, ErrStudentNotFound
		}
		return dto.ModuleAveragesResponse{}, err
	}

	subjects, err := s.groups.SubjectsForModule(ctx, student.CourseGroup.ProgramID, moduleNumber)
	if err != nil {
		return dto.ModuleAveragesResponse{}, err
	}

	subjectIDs := make([]uint, 0, len(subjects))
	for _, subject := range subjects {
		subjectIDs = append(subjectIDs, subject.ID)
	}

	averages, err := s.grades.SubjectAverages(ctx, studentID, subjectIDs)
	if err != nil {
		return dto.ModuleAveragesResponse{}, err
	}

	response := dto.ModuleAveragesResponse{
		StudentID:    studentID,
		ModuleNumber: moduleNumber,
		Subjects:     make([]dto.SubjectAverageResponse, 0, len(subjects)),
	}
	for _, subject := range subjects {
		avg, ok := averages[subject.ID]
		response.Subjects = append(response.Subjects, dto.SubjectAverageResponse{
			SubjectID:   subject.ID,
			SubjectName: subject.Name,
			SubjectCode: subject.Code,
			Average:     avg.Average,
			HasGrades:   ok && avg.Count > 0,
			Passing:     ok && avg.Count > 0 && avg.Average >= models.PassingGrade,
		})
	}

	return response, nil
}
