package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"github.com/tevo-edu/recovery-api/internal/dto"
	"github.com/tevo-edu/recovery-api/internal/models"
	"github.com/tevo-edu/recovery-api/internal/observability"
	"github.com/tevo-edu/recovery-api/internal/repository"
)

// DetectorService scans closed modules for sub-threshold subject averages and
// opens failed-subject records in the initial pending state. It only ever
// creates or invalidates records, never touches grades.
type DetectorService interface {
	Run(ctx context.Context, now time.Time) (dto.DetectorRunResponse, error)
}

type detectorService struct {
	records       repository.FailedSubjectRepository
	grades        repository.GradeRepository
	groups        repository.CourseGroupRepository
	extensionDays int
	logger        zerolog.Logger
}

// NewDetectorService constructs the failed-subject detector. extensionDays is
// how many days past the module close date the recovery window stays open.
func NewDetectorService(records repository.FailedSubjectRepository, grades repository.GradeRepository, groups repository.CourseGroupRepository, extensionDays int, logger zerolog.Logger) DetectorService {
	if extensionDays <= 0 {
		extensionDays = 14
	}
	return &detectorService{
		records:       records,
		grades:        grades,
		groups:        groups,
		extensionDays: extensionDays,
		logger:        logger.With().Str("component", "detector_service").Logger(),
	}
}

func (s *detectorService) Run(ctx context.Context, now time.Time) (dto.DetectorRunResponse, error) {
	tracer := otel.Tracer("github.com/tevo-edu/recovery-api/internal/service/detector")
	ctx, span := tracer.Start(ctx, "detector.run")
	defer span.End()

	start := time.Now()
	defer func() {
		observability.SweepDuration().WithLabelValues("detector").Observe(time.Since(start).Seconds())
	}()
	observability.SweepRuns().WithLabelValues("detector").Inc()

	schedules, err := s.groups.ClosedSchedules(ctx, now)
	if err != nil {
		span.RecordError(err)
		return dto.DetectorRunResponse{}, err
	}

	result := dto.DetectorRunResponse{}
	for _, schedule := range schedules {
		if !schedule.Closed(now) {
			continue
		}
		result.SchedulesScanned++

		if err := s.scanSchedule(ctx, schedule, &result); err != nil {
			span.RecordError(err)
			return result, err
		}
	}

	span.SetAttributes(
		attribute.Int("detector.created", result.RecordsCreated),
		attribute.Int("detector.invalidated", result.RecordsInvalid),
	)
	s.logger.Info().
		Int("schedules", result.SchedulesScanned).
		Int("created", result.RecordsCreated).
		Int("invalidated", result.RecordsInvalid).
		Msg("detector sweep finished")

	return result, nil
}

func (s *detectorService) scanSchedule(ctx context.Context, schedule models.ModuleSchedule, result *dto.DetectorRunResponse) error {
	subjects, err := s.groups.SubjectsForModule(ctx, schedule.CourseGroup.ProgramID, schedule.ModuleNumber)
	if err != nil {
		return err
	}
	if len(subjects) == 0 {
		return nil
	}

	subjectIDs := make([]uint, 0, len(subjects))
	for _, subject := range subjects {
		subjectIDs = append(subjectIDs, subject.ID)
	}

	students, err := s.groups.StudentsInModule(ctx, schedule.CourseGroupID, schedule.ModuleNumber)
	if err != nil {
		return err
	}

	closeDate := schedule.CloseDate.AddDate(0, 0, s.extensionDays)
	for _, student := range students {
		averages, err := s.grades.SubjectAverages(ctx, student.ID, subjectIDs)
		if err != nil {
			return err
		}

		for _, subject := range subjects {
			avg, graded := averages[subject.ID]
			if !graded || avg.Count == 0 {
				// Ungraded subjects stay invisible to the detector; the
				// resolver keeps the module undecided until grades land.
				continue
			}

			if avg.Average < models.PassingGrade {
				if err := s.ensureRecord(ctx, student, subject, schedule, avg.Average, closeDate, result); err != nil {
					return err
				}
				continue
			}

			if err := s.invalidateRecovered(ctx, student.ID, subject.ID, schedule.ModuleNumber, result); err != nil {
				return err
			}
		}
	}

	return nil
}

func (s *detectorService) ensureRecord(ctx context.Context, student models.Student, subject models.Subject, schedule models.ModuleSchedule, average float64, closeDate time.Time, result *dto.DetectorRunResponse) error {
	_, err := s.records.Find(ctx, student.ID, subject.ID, schedule.ModuleNumber)
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	record := models.FailedSubject{
		StudentID:           student.ID,
		SubjectID:           subject.ID,
		ModuleNumber:        schedule.ModuleNumber,
		CourseGroupID:       schedule.CourseGroupID,
		AverageGrade:        average,
		RecoveryCloseDate:   closeDate,
		TeacherGradedStatus: models.TeacherGradeNone,
		Status:              models.StatusPendingAdminApproval,
	}
	if err := s.records.Create(ctx, &record); err != nil {
		return err
	}

	result.RecordsCreated++
	s.logger.Debug().
		Uint("student_id", student.ID).
		Uint("subject_id", subject.ID).
		Int("module", schedule.ModuleNumber).
		Float64("average", average).
		Msg("failed subject detected")

	return nil
}

// invalidateRecovered removes an unprocessed record whose original average
// climbed back over the threshold, typically after a data-entry correction.
// Finalized records are left alone; those corrections stay a manual admin
// action.
func (s *detectorService) invalidateRecovered(ctx context.Context, studentID, subjectID uint, moduleNumber int, result *dto.DetectorRunResponse) error {
	record, err := s.records.Find(ctx, studentID, subjectID, moduleNumber)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}

	if record.Finalized() {
		return nil
	}

	if err := s.records.DeleteUnprocessed(ctx, record.ID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}

	result.RecordsInvalid++
	return nil
}
