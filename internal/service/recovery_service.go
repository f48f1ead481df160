package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tevo-edu/recovery-api/internal/dto"
	"github.com/tevo-edu/recovery-api/internal/models"
	"github.com/tevo-edu/recovery-api/internal/observability"
	"github.com/tevo-edu/recovery-api/internal/repository"
)

const panelCacheKey = "recovery:panel:v1"

// RecoveryService owns the failed-subject lifecycle: admin authorization,
// teacher grading, automatic expiry, and the panel views built on top.
type RecoveryService interface {
	Approve(ctx context.Context, actor Actor, recordID uint, payload dto.ApproveRecoveryRequest) (dto.RecoveryRecordResponse, error)
	Grade(ctx context.Context, actor Actor, recordID uint, payload dto.GradeRecoveryRequest) (dto.RecoveryRecordResponse, error)
	ExpireSweep(ctx context.Context, now time.Time) (dto.ExpireSweepResponse, error)
	Panel(ctx context.Context, now time.Time) (dto.RecoveryPanelResponse, error)
	StudentRecoveries(ctx context.Context, studentID uint, now time.Time) ([]dto.StudentRecoveryResponse, error)
	TeacherQueue(ctx context.Context, courseGroupID uint, now time.Time) ([]dto.RecoveryRecordResponse, error)
}

type recoveryService struct {
	records   repository.FailedSubjectRepository
	validator *validator.Validate
	cache     *redis.Client
	cacheTTL  time.Duration
	audit     AuditRecorder
	logger    zerolog.Logger
	now       func() time.Time
	tracer    trace.Tracer
}

// NewRecoveryService constructs the recovery state machine service. The redis
// client is optional; without it the panel is computed on every request.
func NewRecoveryService(records repository.FailedSubjectRepository, validator *validator.Validate, cache *redis.Client, cacheTTL time.Duration, audit AuditRecorder, logger zerolog.Logger) RecoveryService {
	if cacheTTL <= 0 {
		cacheTTL = time.Minute
	}
	return &recoveryService{
		records:   records,
		validator: validator,
		cache:     cache,
		cacheTTL:  cacheTTL,
		audit:     audit,
		logger:    logger.With().Str("component", "recovery_service").Logger(),
		now:       time.Now,
		tracer:    otel.Tracer("github.com/tevo-edu/recovery-api/internal/service/recovery"),
	}
}

// Approve applies the admin decision on a pending record. approve=true moves
// it to admin_approved; approve=false is a terminal rejection that is never
// offered to the teacher. Repeating an identical approval while the record is
// already admin_approved is a no-op success.
func (s *recoveryService) Approve(ctx context.Context, actor Actor, recordID uint, payload dto.ApproveRecoveryRequest) (dto.RecoveryRecordResponse, error) {
	ctx, span := s.tracer.Start(ctx, "recovery.approve")
	span.SetAttributes(
		attribute.Int64("recovery.record_id", int64(recordID)),
		attribute.Int64("recovery.actor_id", int64(actor.ID)),
	)
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation_failed")
		return dto.RecoveryRecordResponse{}, err
	}
	approve := *payload.Approve

	record, err := s.records.GetByID(ctx, recordID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			span.SetStatus(codes.Error, "record_not_found")
			return dto.RecoveryRecordResponse{}, ErrRecoveryNotFound
		}
		span.RecordError(err)
		return dto.RecoveryRecordResponse{}, err
	}

	now := s.now()
	if record.Finalized() {
		span.SetStatus(codes.Error, "already_finalized")
		return dto.RecoveryRecordResponse{}, ErrAlreadyFinalized
	}

	if approve && record.Status == models.StatusAdminApproved {
		span.SetAttributes(attribute.Bool("recovery.idempotent", true))
		return dto.NewRecoveryRecordResponse(record, now), nil
	}

	if record.Status != models.StatusPendingAdminApproval {
		span.SetStatus(codes.Error, "invalid_transition")
		return dto.RecoveryRecordResponse{}, ErrInvalidTransition
	}

	if record.RecoveryClosed(now) {
		span.SetStatus(codes.Error, "deadline_passed")
		return dto.RecoveryRecordResponse{}, ErrDeadlinePassed
	}

	updates := map[string]interface{}{
		"recovery_approved": approve,
	}
	action := "recovery.admin_approved"
	if approve {
		updates["status"] = models.StatusAdminApproved
	} else {
		updates["status"] = models.StatusAdminRejected
		updates["recovery_processed"] = true
		updates["processed_at"] = now
		action = "recovery.admin_rejected"
	}

	if err := s.transition(ctx, record.ID, models.StatusPendingAdminApproval, updates, "approve"); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transition_failed")
		return dto.RecoveryRecordResponse{}, err
	}

	s.invalidatePanel(ctx)
	s.recordAudit(ctx, actor, action, record.ID, map[string]interface{}{
		"student_id": record.StudentID,
		"subject_id": record.SubjectID,
		"module":     record.ModuleNumber,
		"approve":    approve,
	})
	observability.Transitions().WithLabelValues("approve", string(updates["status"].(models.RecoveryStatus))).Inc()

	updated, err := s.records.GetByID(ctx, record.ID)
	if err != nil {
		span.RecordError(err)
		return dto.RecoveryRecordResponse{}, err
	}

	span.SetAttributes(attribute.String("recovery.status", string(updated.Status)))
	return dto.NewRecoveryRecordResponse(updated, now), nil
}

// Grade applies the teacher verdict on an admin-approved record and finalizes
// it. Teachers can only grade records of their own course group.
func (s *recoveryService) Grade(ctx context.Context, actor Actor, recordID uint, payload dto.GradeRecoveryRequest) (dto.RecoveryRecordResponse, error) {
	ctx, span := s.tracer.Start(ctx, "recovery.grade")
	span.SetAttributes(
		attribute.Int64("recovery.record_id", int64(recordID)),
		attribute.Int64("recovery.actor_id", int64(actor.ID)),
	)
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation_failed")
		return dto.RecoveryRecordResponse{}, err
	}
	approve := *payload.Approve

	record, err := s.records.GetByID(ctx, recordID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			span.SetStatus(codes.Error, "record_not_found")
			return dto.RecoveryRecordResponse{}, ErrRecoveryNotFound
		}
		span.RecordError(err)
		return dto.RecoveryRecordResponse{}, err
	}

	if actor.CourseGroupID != 0 && actor.CourseGroupID != record.CourseGroupID {
		span.SetStatus(codes.Error, "outside_course_group")
		return dto.RecoveryRecordResponse{}, ErrOutsideCourseGroup
	}

	now := s.now()
	if record.Finalized() {
		span.SetStatus(codes.Error, "already_finalized")
		return dto.RecoveryRecordResponse{}, ErrAlreadyFinalized
	}

	if record.Status != models.StatusAdminApproved || record.TeacherGradedStatus != models.TeacherGradeNone {
		span.SetStatus(codes.Error, "invalid_transition")
		return dto.RecoveryRecordResponse{}, ErrInvalidTransition
	}

	if record.RecoveryClosed(now) {
		span.SetStatus(codes.Error, "deadline_passed")
		return dto.RecoveryRecordResponse{}, ErrDeadlinePassed
	}

	status := models.StatusTeacherRejected
	graded := models.TeacherGradeRejected
	action := "recovery.teacher_rejected"
	if approve {
		status = models.StatusTeacherApproved
		graded = models.TeacherGradeApproved
		action = "recovery.teacher_approved"
	}

	updates := map[string]interface{}{
		"status":                status,
		"teacher_graded_status": graded,
		"recovery_processed":    true,
		"processed_at":          now,
	}
	if err := s.transition(ctx, record.ID, models.StatusAdminApproved, updates, "grade"); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transition_failed")
		return dto.RecoveryRecordResponse{}, err
	}

	s.invalidatePanel(ctx)
	s.recordAudit(ctx, actor, action, record.ID, map[string]interface{}{
		"student_id": record.StudentID,
		"subject_id": record.SubjectID,
		"module":     record.ModuleNumber,
		"approve":    approve,
	})
	observability.Transitions().WithLabelValues("grade", string(status)).Inc()

	updated, err := s.records.GetByID(ctx, record.ID)
	if err != nil {
		span.RecordError(err)
		return dto.RecoveryRecordResponse{}, err
	}

	span.SetAttributes(attribute.String("recovery.status", string(updated.Status)))
	return dto.NewRecoveryRecordResponse(updated, now), nil
}

// transition performs the conditional check-then-set. Losing the race against
// a concurrent actor surfaces as zero affected rows; the record is fetched
// again to report the precise reason.
func (s *recoveryService) transition(ctx context.Context, recordID uint, expected models.RecoveryStatus, updates map[string]interface{}, action string) error {
	err := s.records.Transition(ctx, recordID, expected, updates)
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	current, fetchErr := s.records.GetByID(ctx, recordID)
	if fetchErr != nil {
		if errors.Is(fetchErr, gorm.ErrRecordNotFound) {
			return ErrRecoveryNotFound
		}
		return fetchErr
	}

	s.logger.Warn().
		Uint("record_id", recordID).
		Str("action", action).
		Str("status", string(current.Status)).
		Msg("transition lost race, record changed concurrently")

	if current.Finalized() {
		return ErrAlreadyFinalized
	}
	return ErrInvalidTransition
}

// ExpireSweep finalizes every overdue record still awaiting an admin decision
// or a teacher grade. It is idempotent and never touches finalized records;
// racing a concurrent grading action simply yields zero rows for that record.
func (s *recoveryService) ExpireSweep(ctx context.Context, now time.Time) (dto.ExpireSweepResponse, error) {
	ctx, span := s.tracer.Start(ctx, "recovery.expire_sweep")
	defer span.End()

	start := time.Now()
	defer func() {
		observability.SweepDuration().WithLabelValues("expiry").Observe(time.Since(start).Seconds())
	}()
	observability.SweepRuns().WithLabelValues("expiry").Inc()

	// Records expire the day after their inclusive close date.
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	noAdmin, err := s.records.ExpireBatch(ctx, models.StatusPendingAdminApproval, models.StatusExpiredNoAdminAction, today, now)
	if err != nil {
		span.RecordError(err)
		return dto.ExpireSweepResponse{}, err
	}

	noGrade, err := s.records.ExpireBatch(ctx, models.StatusAdminApproved, models.StatusExpiredTeacherNoGrade, today, now)
	if err != nil {
		span.RecordError(err)
		return dto.ExpireSweepResponse{}, err
	}

	if noAdmin > 0 {
		observability.Transitions().WithLabelValues("expire", string(models.StatusExpiredNoAdminAction)).Add(float64(noAdmin))
	}
	if noGrade > 0 {
		observability.Transitions().WithLabelValues("expire", string(models.StatusExpiredTeacherNoGrade)).Add(float64(noGrade))
	}
	if noAdmin > 0 || noGrade > 0 {
		s.invalidatePanel(ctx)
		s.logger.Info().
			Int64("expired_no_admin", noAdmin).
			Int64("expired_no_grade", noGrade).
			Msg("expiry sweep finalized overdue records")
	}

	span.SetAttributes(
		attribute.Int64("recovery.expired_no_admin", noAdmin),
		attribute.Int64("recovery.expired_no_grade", noGrade),
	)

	return dto.ExpireSweepResponse{
		ExpiredNoAdminAction:  noAdmin,
		ExpiredTeacherNoGrade: noGrade,
	}, nil
}

// Panel returns the admin recovery panel: every record still inside the
// visibility window, with display names resolved. Served from cache when
// fresh.
func (s *recoveryService) Panel(ctx context.Context, now time.Time) (dto.RecoveryPanelResponse, error) {
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, panelCacheKey).Result()
		if err == nil {
			var items []dto.RecoveryRecordResponse
			if unmarshalErr := json.Unmarshal([]byte(cached), &items); unmarshalErr == nil {
				return dto.RecoveryPanelResponse{Items: items, CacheHit: true}, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			s.logger.Warn().Err(err).Msg("panel cache read failed")
		}
	}

	records, err := s.records.List(ctx, repository.FailedSubjectFilter{})
	if err != nil {
		return dto.RecoveryPanelResponse{}, err
	}

	items := make([]dto.RecoveryRecordResponse, 0, len(records))
	for _, record := range records {
		if !record.VisibleInPanel(now) {
			continue
		}
		if record.Student.IsGraduated() {
			continue
		}
		items = append(items, dto.NewRecoveryRecordResponse(record, now))
	}

	if s.cache != nil {
		if payload, marshalErr := json.Marshal(items); marshalErr == nil {
			if err := s.cache.Set(ctx, panelCacheKey, payload, s.cacheTTL).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("panel cache write failed")
			}
		}
	}

	return dto.RecoveryPanelResponse{Items: items}, nil
}

// StudentRecoveries lists the student's approved, non-expired recovery
// attempts for display.
func (s *recoveryService) StudentRecoveries(ctx context.Context, studentID uint, now time.Time) ([]dto.StudentRecoveryResponse, error) {
	records, err := s.records.List(ctx, repository.FailedSubjectFilter{
		StudentID: studentID,
		Statuses: []models.RecoveryStatus{
			models.StatusAdminApproved,
			models.StatusTeacherApproved,
			models.StatusTeacherRejected,
		},
	})
	if err != nil {
		return nil, err
	}

	items := make([]dto.StudentRecoveryResponse, 0, len(records))
	for _, record := range records {
		status := record.DeriveStatus(now)
		if status == models.StatusExpiredTeacherNoGrade || status == models.StatusExpiredNoAdminAction {
			continue
		}
		if !record.VisibleInPanel(now) {
			continue
		}
		items = append(items, dto.NewStudentRecoveryResponse(record, now))
	}

	return items, nil
}

// TeacherQueue lists the admin-approved, still-gradable records of one course
// group.
func (s *recoveryService) TeacherQueue(ctx context.Context, courseGroupID uint, now time.Time) ([]dto.RecoveryRecordResponse, error) {
	records, err := s.records.List(ctx, repository.FailedSubjectFilter{
		CourseGroupID: courseGroupID,
		Statuses:      []models.RecoveryStatus{models.StatusAdminApproved},
		Unprocessed:   true,
	})
	if err != nil {
		return nil, err
	}

	items := make([]dto.RecoveryRecordResponse, 0, len(records))
	for _, record := range records {
		if record.TeacherGradedStatus != models.TeacherGradeNone {
			continue
		}
		if record.RecoveryClosed(now) {
			continue
		}
		items = append(items, dto.NewRecoveryRecordResponse(record, now))
	}

	return items, nil
}

func (s *recoveryService) invalidatePanel(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, panelCacheKey).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("panel cache invalidation failed")
	}
}

func (s *recoveryService) recordAudit(ctx context.Context, actor Actor, action string, recordID uint, metadata map[string]interface{}) {
	if s.audit == nil {
		return
	}
	id := recordID
	_, _ = s.audit.Record(ctx, AuditEntry{
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Action:     action,
		EntityType: "failed_subject",
		EntityID:   &id,
		Metadata:   metadata,
	})
}
