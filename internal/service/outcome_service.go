package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/tevo-edu/recovery-api/internal/dto"
	"github.com/tevo-edu/recovery-api/internal/models"
	"github.com/tevo-edu/recovery-api/internal/repository"
)

// OutcomeService aggregates every subject of a student's module into a single
// PASS, FAIL or UNDECIDED verdict.
type OutcomeService interface {
	Resolve(ctx context.Context, studentID uint, moduleNumber int, now time.Time) (dto.ModuleOutcomeResponse, error)
}

type outcomeService struct {
	students repository.StudentRepository
	groups   repository.CourseGroupRepository
	grades   repository.GradeRepository
	records  repository.FailedSubjectRepository
	logger   zerolog.Logger
}

// NewOutcomeService constructs the module outcome resolver.
func NewOutcomeService(students repository.StudentRepository, groups repository.CourseGroupRepository, grades repository.GradeRepository, records repository.FailedSubjectRepository, logger zerolog.Logger) OutcomeService {
	return &outcomeService{
		students: students,
		groups:   groups,
		grades:   grades,
		records:  records,
		logger:   logger.With().Str("component", "outcome_service").Logger(),
	}
}

// Resolve determines the module verdict. The student passes only when every
// subject resolved as passing, directly or through an approved recovery. A
// single terminal rejection or expiry fails the module outright; any subject
// still awaiting a verdict keeps it undecided.
func (s *outcomeService) Resolve(ctx context.Context, studentID uint, moduleNumber int, now time.Time) (dto.ModuleOutcomeResponse, error) {
	student, err := s.students.GetByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ModuleOutcomeResponse{}, ErrStudentNotFound
		}
		return dto.ModuleOutcomeResponse{}, err
	}

	subjects, err := s.groups.SubjectsForModule(ctx, student.CourseGroup.ProgramID, moduleNumber)
	if err != nil {
		return dto.ModuleOutcomeResponse{}, err
	}

	subjectIDs := make([]uint, 0, len(subjects))
	for _, subject := range subjects {
		subjectIDs = append(subjectIDs, subject.ID)
	}

	averages, err := s.grades.SubjectAverages(ctx, studentID, subjectIDs)
	if err != nil {
		return dto.ModuleOutcomeResponse{}, err
	}

	failedRecords, err := s.records.ListForStudentModule(ctx, studentID, moduleNumber)
	if err != nil {
		return dto.ModuleOutcomeResponse{}, err
	}
	recordsBySubject := make(map[uint]models.FailedSubject, len(failedRecords))
	for _, record := range failedRecords {
		recordsBySubject[record.SubjectID] = record
	}

	response := dto.ModuleOutcomeResponse{
		StudentID:    studentID,
		ModuleNumber: moduleNumber,
		Subjects:     make([]dto.SubjectOutcomeResponse, 0, len(subjects)),
	}

	anyFailed := false
	anyPending := false
	for _, subject := range subjects {
		detail := resolveSubject(subject, averages[subject.ID], recordsBySubject, now)
		switch detail.Resolution {
		case dto.ResolutionFailed:
			anyFailed = true
		case dto.ResolutionPending:
			anyPending = true
		}
		response.Subjects = append(response.Subjects, detail)
	}

	switch {
	case anyFailed:
		response.Outcome = dto.OutcomeFail
	case anyPending:
		response.Outcome = dto.OutcomeUndecided
	default:
		response.Outcome = dto.OutcomePass
	}

	return response, nil
}

func resolveSubject(subject models.Subject, avg repository.SubjectAverage, records map[uint]models.FailedSubject, now time.Time) dto.SubjectOutcomeResponse {
	detail := dto.SubjectOutcomeResponse{
		SubjectID:   subject.ID,
		SubjectName: subject.Name,
		SubjectCode: subject.Code,
		Average:     avg.Average,
		HasGrades:   avg.Count > 0,
	}

	if record, ok := records[subject.ID]; ok {
		status := record.DeriveStatus(now)
		detail.Status = status
		switch {
		case status.Passing():
			detail.Resolution = dto.ResolutionRecovered
		case status.Terminal() || record.RecoveryClosed(now):
			detail.Resolution = dto.ResolutionFailed
		default:
			detail.Resolution = dto.ResolutionPending
		}
		return detail
	}

	// No failed record: the subject passed directly, or its module has not
	// been detected yet. Without grades there is nothing to promote on.
	if avg.Count > 0 && avg.Average >= models.PassingGrade {
		detail.Resolution = dto.ResolutionPassed
	} else {
		detail.Resolution = dto.ResolutionPending
	}

	return detail
}
