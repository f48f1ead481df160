package handler_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/tevo-edu/recovery-api/internal/config"
	"github.com/tevo-edu/recovery-api/internal/dto"
	"github.com/tevo-edu/recovery-api/internal/handler"
	"github.com/tevo-edu/recovery-api/internal/models"
	"github.com/tevo-edu/recovery-api/internal/repository"
	"github.com/tevo-edu/recovery-api/internal/router"
	"github.com/tevo-edu/recovery-api/internal/service"
)

type apiEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

func setupRecoveryApp(t *testing.T, role string) (*fiber.App, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Program{},
		&models.Subject{},
		&models.CourseGroup{},
		&models.ModuleSchedule{},
		&models.Student{},
		&models.Activity{},
		&models.Grade{},
		&models.FailedSubject{},
		&models.ActivityLog{},
	))

	mini := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mini.Addr()})

	validate := validator.New(validator.WithRequiredStructEnabled())
	logger := zerolog.New(io.Discard)

	failedRepo := repository.NewFailedSubjectRepository(db)
	gradeRepo := repository.NewGradeRepository(db)
	groupRepo := repository.NewCourseGroupRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	logRepo := repository.NewActivityLogRepository(db)

	audit := service.NewAuditService(logRepo, logger)
	recoveries := service.NewRecoveryService(failedRepo, validate, cache, time.Minute, audit, logger)
	detector := service.NewDetectorService(failedRepo, gradeRepo, groupRepo, 14, logger)
	ledger := service.NewLedgerService(gradeRepo, studentRepo, groupRepo, validate, audit, logger)
	outcomes := service.NewOutcomeService(studentRepo, groupRepo, gradeRepo, failedRepo, logger)
	promotions := service.NewPromotionService(studentRepo, outcomes, audit, logger)

	app := fiber.New()
	router.Register(app, config.Config{AppName: "Test", JWTSecret: "secret"}, router.Dependencies{
		AdminRecoveryHandler:   handler.NewAdminRecoveryHandler(recoveries, detector, logger),
		TeacherRecoveryHandler: handler.NewTeacherRecoveryHandler(recoveries, logger),
		StudentRecoveryHandler: handler.NewStudentRecoveryHandler(recoveries, ledger, logger),
		LedgerHandler:          handler.NewLedgerHandler(ledger, logger),
		PromotionHandler:       handler.NewPromotionHandler(promotions, outcomes, logger),
		JWTMiddleware: func(c *fiber.Ctx) error {
			c.Locals("user_id", uint(1))
			c.Locals("user_role", role)
			c.Locals("course_group_id", uint(1))
			return c.Next()
		},
	})

	return app, db
}

// seedModule creates a single-module program with one closed schedule, one
// active student and two subjects: one graded below the threshold, one above.
func seedModule(t *testing.T, db *gorm.DB) models.Student {
	t.Helper()

	program := models.Program{Name: "Informatica", ModuleCount: 1}
	require.NoError(t, db.Create(&program).Error)

	group := models.CourseGroup{Name: "INF-2026A", ProgramID: program.ID}
	require.NoError(t, db.Create(&group).Error)

	schedule := models.ModuleSchedule{
		CourseGroupID: group.ID,
		ModuleNumber:  1,
		StartDate:     time.Now().AddDate(0, -2, 0),
		CloseDate:     time.Now().AddDate(0, 0, -2),
	}
	require.NoError(t, db.Create(&schedule).Error)

	student := models.Student{
		Name:          "Ana Silva",
		Email:         "ana@example.com",
		CourseGroupID: group.ID,
		CurrentModule: 1,
		FinalModule:   1,
		Status:        models.StudentStatusActive,
	}
	require.NoError(t, db.Create(&student).Error)

	math := models.Subject{Name: "Mathematics", Code: "MAT1", ModuleNumber: 1, ProgramID: program.ID}
	require.NoError(t, db.Create(&math).Error)
	portuguese := models.Subject{Name: "Portuguese", Code: "POR1", ModuleNumber: 1, ProgramID: program.ID}
	require.NoError(t, db.Create(&portuguese).Error)

	mathExam := models.Activity{SubjectID: math.ID, CourseGroupID: group.ID, Title: "Math exam"}
	require.NoError(t, db.Create(&mathExam).Error)
	porExam := models.Activity{SubjectID: portuguese.ID, CourseGroupID: group.ID, Title: "Portuguese exam"}
	require.NoError(t, db.Create(&porExam).Error)

	require.NoError(t, db.Create(&models.Grade{StudentID: student.ID, ActivityID: mathExam.ID, Value: 2.0}).Error)
	require.NoError(t, db.Create(&models.Grade{StudentID: student.ID, ActivityID: porExam.ID, Value: 4.0}).Error)

	return student
}

func doJSON(t *testing.T, app *fiber.App, method, path string, payload interface{}) (int, apiEnvelope) {
	t.Helper()

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var envelope apiEnvelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	return resp.StatusCode, envelope
}

func TestRecoveryLifecycle(t *testing.T) {
	app, db := setupRecoveryApp(t, "admin")
	student := seedModule(t, db)

	// The detector opens a record for the failing subject only.
	status, envelope := doJSON(t, app, fiber.MethodPost, "/api/v1/admin/detector/run", nil)
	require.Equal(t, fiber.StatusOK, status)

	var run dto.DetectorRunResponse
	require.NoError(t, json.Unmarshal(envelope.Data, &run))
	require.Equal(t, 1, run.RecordsCreated)

	status, envelope = doJSON(t, app, fiber.MethodGet, "/api/v1/admin/recovery-panel", nil)
	require.Equal(t, fiber.StatusOK, status)

	var panel dto.RecoveryPanelResponse
	require.NoError(t, json.Unmarshal(envelope.Data, &panel))
	require.Len(t, panel.Items, 1)
	require.Equal(t, models.StatusPendingAdminApproval, panel.Items[0].Status)
	require.Equal(t, "Ana Silva", panel.Items[0].StudentName)
	recordID := panel.Items[0].ID

	// Promotion stays blocked while the recovery is undecided.
	status, _ = doJSON(t, app, fiber.MethodPut, fmt.Sprintf("/api/v1/admin/students/%d/promote", student.ID), nil)
	require.Equal(t, fiber.StatusConflict, status)

	// Teacher cannot grade before the admin approves.
	status, _ = doJSON(t, app, fiber.MethodPost, fmt.Sprintf("/api/v1/teacher/recoveries/%d/grade", recordID), fiber.Map{"approve": true})
	require.Equal(t, fiber.StatusConflict, status)

	status, envelope = doJSON(t, app, fiber.MethodPost, fmt.Sprintf("/api/v1/admin/recoveries/%d/approve", recordID), fiber.Map{"approve": true})
	require.Equal(t, fiber.StatusOK, status)

	var record dto.RecoveryRecordResponse
	require.NoError(t, json.Unmarshal(envelope.Data, &record))
	require.Equal(t, models.StatusAdminApproved, record.Status)

	// The approved record shows up in the teacher's grading queue.
	status, envelope = doJSON(t, app, fiber.MethodGet, "/api/v1/teacher/recoveries?course_group_id=1", nil)
	require.Equal(t, fiber.StatusOK, status)

	var queue []dto.RecoveryRecordResponse
	require.NoError(t, json.Unmarshal(envelope.Data, &queue))
	require.Len(t, queue, 1)

	status, envelope = doJSON(t, app, fiber.MethodPost, fmt.Sprintf("/api/v1/teacher/recoveries/%d/grade", recordID), fiber.Map{"approve": true})
	require.Equal(t, fiber.StatusOK, status)
	require.NoError(t, json.Unmarshal(envelope.Data, &record))
	require.Equal(t, models.StatusTeacherApproved, record.Status)
	require.True(t, record.RecoveryProcessed)

	// Grading again conflicts: the record is finalized.
	status, _ = doJSON(t, app, fiber.MethodPost, fmt.Sprintf("/api/v1/teacher/recoveries/%d/grade", recordID), fiber.Map{"approve": false})
	require.Equal(t, fiber.StatusConflict, status)

	// The recovered subject turns the module outcome into a pass.
	status, envelope = doJSON(t, app, fiber.MethodGet, fmt.Sprintf("/api/v1/admin/students/%d/module-outcome?module=1", student.ID), nil)
	require.Equal(t, fiber.StatusOK, status)

	var outcome dto.ModuleOutcomeResponse
	require.NoError(t, json.Unmarshal(envelope.Data, &outcome))
	require.Equal(t, dto.OutcomePass, outcome.Outcome)

	// Final module plus a pass: promotion graduates the student.
	status, envelope = doJSON(t, app, fiber.MethodPut, fmt.Sprintf("/api/v1/admin/students/%d/promote", student.ID), nil)
	require.Equal(t, fiber.StatusOK, status)

	var promoted dto.StudentResponse
	require.NoError(t, json.Unmarshal(envelope.Data, &promoted))
	require.Equal(t, models.StudentStatusGraduated, promoted.Status)
}

func TestAdminRejectIsTerminal(t *testing.T) {
	app, db := setupRecoveryApp(t, "admin")
	student := seedModule(t, db)

	status, _ := doJSON(t, app, fiber.MethodPost, "/api/v1/admin/detector/run", nil)
	require.Equal(t, fiber.StatusOK, status)

	var record models.FailedSubject
	require.NoError(t, db.Where("student_id = ?", student.ID).First(&record).Error)

	status, envelope := doJSON(t, app, fiber.MethodPost, fmt.Sprintf("/api/v1/admin/recoveries/%d/approve", record.ID), fiber.Map{"approve": false})
	require.Equal(t, fiber.StatusOK, status)

	var rejected dto.RecoveryRecordResponse
	require.NoError(t, json.Unmarshal(envelope.Data, &rejected))
	require.Equal(t, models.StatusAdminRejected, rejected.Status)

	// A rejected record cannot be approved afterwards.
	status, _ = doJSON(t, app, fiber.MethodPost, fmt.Sprintf("/api/v1/admin/recoveries/%d/approve", record.ID), fiber.Map{"approve": true})
	require.Equal(t, fiber.StatusConflict, status)

	// And the module now fails, blocking graduation.
	status, envelope = doJSON(t, app, fiber.MethodGet, fmt.Sprintf("/api/v1/admin/students/%d/module-outcome?module=1", student.ID), nil)
	require.Equal(t, fiber.StatusOK, status)

	var outcome dto.ModuleOutcomeResponse
	require.NoError(t, json.Unmarshal(envelope.Data, &outcome))
	require.Equal(t, dto.OutcomeFail, outcome.Outcome)

	status, _ = doJSON(t, app, fiber.MethodPut, fmt.Sprintf("/api/v1/admin/students/%d/graduate", student.ID), nil)
	require.Equal(t, fiber.StatusConflict, status)
}

func TestExpireSweepEndpoint(t *testing.T) {
	app, db := setupRecoveryApp(t, "admin")
	student := seedModule(t, db)

	require.NoError(t, db.Create(&models.FailedSubject{
		StudentID:           student.ID,
		SubjectID:           1,
		ModuleNumber:        1,
		CourseGroupID:       student.CourseGroupID,
		AverageGrade:        2.0,
		RecoveryCloseDate:   time.Now().AddDate(0, 0, -10),
		TeacherGradedStatus: models.TeacherGradeNone,
		Status:              models.StatusPendingAdminApproval,
	}).Error)

	status, envelope := doJSON(t, app, fiber.MethodPost, "/api/v1/admin/recoveries/expire", nil)
	require.Equal(t, fiber.StatusOK, status)

	var sweep dto.ExpireSweepResponse
	require.NoError(t, json.Unmarshal(envelope.Data, &sweep))
	require.Equal(t, int64(1), sweep.ExpiredNoAdminAction)
}

func TestRecordGradeEndpoint(t *testing.T) {
	app, db := setupRecoveryApp(t, "admin")
	student := seedModule(t, db)

	var activity models.Activity
	require.NoError(t, db.First(&activity).Error)

	status, envelope := doJSON(t, app, fiber.MethodPost, "/api/v1/teacher/grades", dto.RecordGradeRequest{
		StudentID:  student.ID,
		ActivityID: activity.ID,
		Value:      3.5,
	})
	require.Equal(t, fiber.StatusOK, status)

	var grade dto.GradeResponse
	require.NoError(t, json.Unmarshal(envelope.Data, &grade))
	require.InDelta(t, 3.5, grade.Value, 0.001)

	// Out-of-range values are rejected before touching the ledger.
	status, _ = doJSON(t, app, fiber.MethodPost, "/api/v1/teacher/grades", dto.RecordGradeRequest{
		StudentID:  student.ID,
		ActivityID: activity.ID,
		Value:      7.5,
	})
	require.Equal(t, fiber.StatusBadRequest, status)
}

func TestStudentRecoveriesEndpoint(t *testing.T) {
	app, db := setupRecoveryApp(t, "student")
	student := seedModule(t, db)
	require.Equal(t, uint(1), student.ID)

	require.NoError(t, db.Create(&models.FailedSubject{
		StudentID:           student.ID,
		SubjectID:           1,
		ModuleNumber:        1,
		CourseGroupID:       student.CourseGroupID,
		AverageGrade:        2.0,
		RecoveryApproved:    true,
		RecoveryCloseDate:   time.Now().AddDate(0, 0, 7),
		TeacherGradedStatus: models.TeacherGradeNone,
		Status:              models.StatusAdminApproved,
	}).Error)

	status, envelope := doJSON(t, app, fiber.MethodGet, "/api/v1/student/my-recoveries", nil)
	require.Equal(t, fiber.StatusOK, status)

	var items []dto.StudentRecoveryResponse
	require.NoError(t, json.Unmarshal(envelope.Data, &items))
	require.Len(t, items, 1)
	require.Equal(t, models.StatusAdminApproved, items[0].Status)
	require.False(t, items[0].RecoveryClosed)

	// Students cannot reach the admin surface.
	status, _ = doJSON(t, app, fiber.MethodGet, "/api/v1/admin/recovery-panel", nil)
	require.Equal(t, fiber.StatusForbidden, status)
}

func TestUnknownRecoveryRecord(t *testing.T) {
	app, _ := setupRecoveryApp(t, "admin")

	status, _ := doJSON(t, app, fiber.MethodPost, "/api/v1/admin/recoveries/999/approve", fiber.Map{"approve": true})
	require.Equal(t, fiber.StatusNotFound, status)
}
