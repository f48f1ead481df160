package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"

	"github.com/tevo-edu/recovery-api/internal/dto"
	"github.com/tevo-edu/recovery-api/internal/models"
	"github.com/tevo-edu/recovery-api/internal/repository"
)

// PromotionService advances students through modules and into graduation,
// gated by the outcome resolver's verdict.
type PromotionService interface {
	Promote(ctx context.Context, actor Actor, studentID uint, now time.Time) (dto.StudentResponse, error)
	Graduate(ctx context.Context, actor Actor, studentID uint, now time.Time) (dto.StudentResponse, error)
	PurgeGraduated(ctx context.Context, actor Actor) (dto.PurgeGraduatedResponse, error)
}

type promotionService struct {
	students repository.StudentRepository
	outcomes OutcomeService
	audit    AuditRecorder
	logger   zerolog.Logger
}

// NewPromotionService constructs the promotion/graduation service.
func NewPromotionService(students repository.StudentRepository, outcomes OutcomeService, audit AuditRecorder, logger zerolog.Logger) PromotionService {
	return &promotionService{
		students: students,
		outcomes: outcomes,
		audit:    audit,
		logger:   logger.With().Str("component", "promotion_service").Logger(),
	}
}

// Promote advances the student's module counter by one after a PASS verdict
// on the current module; at the final module it graduates the student
// instead.
func (s *promotionService) Promote(ctx context.Context, actor Actor, studentID uint, now time.Time) (dto.StudentResponse, error) {
	tracer := otel.Tracer("github.com/tevo-edu/recovery-api/internal/service/promotion")
	ctx, span := tracer.Start(ctx, "promotion.promote")
	span.SetAttributes(attribute.Int64("promotion.student_id", int64(studentID)))
	defer span.End()

	student, err := s.gate(ctx, span.SetStatus, studentID, now)
	if err != nil {
		return dto.StudentResponse{}, err
	}

	updates := map[string]interface{}{}
	action := "student.promoted"
	if student.CurrentModule >= student.FinalModule {
		updates["status"] = models.StudentStatusGraduated
		action = "student.graduated"
	} else {
		updates["current_module"] = student.CurrentModule + 1
	}

	updated, err := s.students.Update(ctx, studentID, updates)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "student_update_failed")
		return dto.StudentResponse{}, err
	}

	s.recordAudit(ctx, actor, action, student, updated)
	span.SetAttributes(
		attribute.Int("promotion.module", updated.CurrentModule),
		attribute.String("promotion.status", updated.Status),
	)

	return dto.NewStudentResponse(updated), nil
}

// Graduate marks a final-module student as graduated after a PASS verdict.
func (s *promotionService) Graduate(ctx context.Context, actor Actor, studentID uint, now time.Time) (dto.StudentResponse, error) {
	tracer := otel.Tracer("github.com/tevo-edu/recovery-api/internal/service/promotion")
	ctx, span := tracer.Start(ctx, "promotion.graduate")
	span.SetAttributes(attribute.Int64("promotion.student_id", int64(studentID)))
	defer span.End()

	student, err := s.gate(ctx, span.SetStatus, studentID, now)
	if err != nil {
		return dto.StudentResponse{}, err
	}

	if student.CurrentModule < student.FinalModule {
		span.SetStatus(codes.Error, "not_final_module")
		return dto.StudentResponse{}, ErrNotFinalModule
	}

	updated, err := s.students.Update(ctx, studentID, map[string]interface{}{
		"status": models.StudentStatusGraduated,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "student_update_failed")
		return dto.StudentResponse{}, err
	}

	s.recordAudit(ctx, actor, "student.graduated", student, updated)
	return dto.NewStudentResponse(updated), nil
}

// gate loads the student and rejects the action unless the current module
// resolved to PASS. FAIL and UNDECIDED surface as distinct reasons so the UI
// can say why promotion is unavailable.
func (s *promotionService) gate(ctx context.Context, setStatus func(codes.Code, string), studentID uint, now time.Time) (models.Student, error) {
	student, err := s.students.GetByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			setStatus(codes.Error, "student_not_found")
			return models.Student{}, ErrStudentNotFound
		}
		return models.Student{}, err
	}

	if student.IsGraduated() {
		setStatus(codes.Error, "already_graduated")
		return models.Student{}, ErrInvalidTransition
	}

	outcome, err := s.outcomes.Resolve(ctx, studentID, student.CurrentModule, now)
	if err != nil {
		return models.Student{}, err
	}

	switch outcome.Outcome {
	case dto.OutcomeFail:
		setStatus(codes.Error, "module_failed")
		return models.Student{}, ErrModuleFailed
	case dto.OutcomeUndecided:
		setStatus(codes.Error, "module_undecided")
		return models.Student{}, ErrModuleUndecided
	}

	return student, nil
}

// PurgeGraduated irreversibly removes graduated students and every dependent
// grade and recovery record.
func (s *promotionService) PurgeGraduated(ctx context.Context, actor Actor) (dto.PurgeGraduatedResponse, error) {
	tracer := otel.Tracer("github.com/tevo-edu/recovery-api/internal/service/promotion")
	ctx, span := tracer.Start(ctx, "promotion.purge_graduated")
	defer span.End()

	result, err := s.students.PurgeGraduated(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "purge_failed")
		return dto.PurgeGraduatedResponse{}, err
	}

	if s.audit != nil {
		_, _ = s.audit.Record(ctx, AuditEntry{
			ActorID:    actor.ID,
			ActorRole:  actor.Role,
			Action:     "students.purge_graduated",
			EntityType: "student",
			Metadata: map[string]interface{}{
				"students":        result.Students,
				"grades":          result.Grades,
				"failed_subjects": result.FailedSubjects,
			},
		})
	}

	s.logger.Info().
		Int64("students", result.Students).
		Int64("grades", result.Grades).
		Int64("failed_subjects", result.FailedSubjects).
		Msg("graduated students purged")

	span.SetAttributes(attribute.Int64("promotion.purged_students", result.Students))

	return dto.PurgeGraduatedResponse{
		Students:       result.Students,
		Grades:         result.Grades,
		FailedSubjects: result.FailedSubjects,
	}, nil
}

func (s *promotionService) recordAudit(ctx context.Context, actor Actor, action string, before, after models.Student) {
	if s.audit == nil {
		return
	}
	id := after.ID
	_, _ = s.audit.Record(ctx, AuditEntry{
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Action:     action,
		EntityType: "student",
		EntityID:   &id,
		Metadata: map[string]interface{}{
			"from_module": before.CurrentModule,
			"to_module":   after.CurrentModule,
			"status":      after.Status,
		},
	})
}
