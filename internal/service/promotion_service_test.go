package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tevo-edu/recovery-api/internal/dto"
	"github.com/tevo-edu/recovery-api/internal/models"
	"github.com/tevo-edu/recovery-api/internal/repository"
)

type stubOutcomeService struct {
	outcome dto.ModuleOutcome
	err     error
}

func (s *stubOutcomeService) Resolve(ctx context.Context, studentID uint, moduleNumber int, now time.Time) (dto.ModuleOutcomeResponse, error) {
	if s.err != nil {
		return dto.ModuleOutcomeResponse{}, s.err
	}
	return dto.ModuleOutcomeResponse{
		StudentID:    studentID,
		ModuleNumber: moduleNumber,
		Outcome:      s.outcome,
	}, nil
}

func promotionFixture(students *fakeStudentRepo, outcome dto.ModuleOutcome) PromotionService {
	return NewPromotionService(students, &stubOutcomeService{outcome: outcome}, nil, testLogger())
}

func midProgramStudent() *fakeStudentRepo {
	return &fakeStudentRepo{students: map[uint]models.Student{
		1: {ID: 1, Name: "Ana Silva", CourseGroupID: 5, CurrentModule: 2, FinalModule: 4,
			Status: models.StudentStatusActive},
	}}
}

func finalModuleStudent() *fakeStudentRepo {
	return &fakeStudentRepo{students: map[uint]models.Student{
		1: {ID: 1, Name: "Ana Silva", CourseGroupID: 5, CurrentModule: 4, FinalModule: 4,
			Status: models.StudentStatusActive},
	}}
}

func TestPromoteAdvancesModule(t *testing.T) {
	students := midProgramStudent()
	svc := promotionFixture(students, dto.OutcomePass)

	resp, err := svc.Promote(context.Background(), Actor{ID: 9, Role: "admin"}, 1, time.Now())
	require.NoError(t, err)
	require.Equal(t, 3, resp.CurrentModule)
	require.Equal(t, models.StudentStatusActive, resp.Status)
}

func TestPromoteAtFinalModuleGraduates(t *testing.T) {
	students := finalModuleStudent()
	svc := promotionFixture(students, dto.OutcomePass)

	resp, err := svc.Promote(context.Background(), Actor{ID: 9, Role: "admin"}, 1, time.Now())
	require.NoError(t, err)
	require.Equal(t, 4, resp.CurrentModule)
	require.Equal(t, models.StudentStatusGraduated, resp.Status)
}

func TestPromoteBlockedWhileUndecided(t *testing.T) {
	students := midProgramStudent()
	svc := promotionFixture(students, dto.OutcomeUndecided)

	_, err := svc.Promote(context.Background(), Actor{ID: 9, Role: "admin"}, 1, time.Now())
	require.ErrorIs(t, err, ErrModuleUndecided)
	require.Zero(t, students.updateCalls)
}

func TestPromoteBlockedOnFailedModule(t *testing.T) {
	students := midProgramStudent()
	svc := promotionFixture(students, dto.OutcomeFail)

	_, err := svc.Promote(context.Background(), Actor{ID: 9, Role: "admin"}, 1, time.Now())
	require.ErrorIs(t, err, ErrModuleFailed)
	require.Zero(t, students.updateCalls)
}

func TestPromoteGraduatedStudentRejected(t *testing.T) {
	students := &fakeStudentRepo{students: map[uint]models.Student{
		1: {ID: 1, CurrentModule: 4, FinalModule: 4, Status: models.StudentStatusGraduated},
	}}
	svc := promotionFixture(students, dto.OutcomePass)

	_, err := svc.Promote(context.Background(), Actor{ID: 9, Role: "admin"}, 1, time.Now())
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestPromoteUnknownStudent(t *testing.T) {
	svc := promotionFixture(midProgramStudent(), dto.OutcomePass)

	_, err := svc.Promote(context.Background(), Actor{ID: 9, Role: "admin"}, 42, time.Now())
	require.ErrorIs(t, err, ErrStudentNotFound)
}

func TestGraduateRequiresFinalModule(t *testing.T) {
	students := midProgramStudent()
	svc := promotionFixture(students, dto.OutcomePass)

	_, err := svc.Graduate(context.Background(), Actor{ID: 9, Role: "admin"}, 1, time.Now())
	require.ErrorIs(t, err, ErrNotFinalModule)
	require.Zero(t, students.updateCalls)
}

func TestGraduateAtFinalModule(t *testing.T) {
	students := finalModuleStudent()
	svc := promotionFixture(students, dto.OutcomePass)

	resp, err := svc.Graduate(context.Background(), Actor{ID: 9, Role: "admin"}, 1, time.Now())
	require.NoError(t, err)
	require.Equal(t, models.StudentStatusGraduated, resp.Status)
}

func TestPurgeGraduatedReportsCounts(t *testing.T) {
	students := midProgramStudent()
	students.purgeResult = repository.PurgeResult{Students: 2, Grades: 40, FailedSubjects: 3}
	svc := promotionFixture(students, dto.OutcomePass)

	resp, err := svc.PurgeGraduated(context.Background(), Actor{ID: 9, Role: "admin"})
	require.NoError(t, err)
	require.Equal(t, int64(2), resp.Students)
	require.Equal(t, int64(40), resp.Grades)
	require.Equal(t, int64(3), resp.FailedSubjects)
}
