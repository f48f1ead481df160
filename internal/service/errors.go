package service

import "errors"

// ErrRecoveryNotFound indicates the failed-subject record does not exist.
var ErrRecoveryNotFound = errors.New("recovery record not found")

// ErrStudentNotFound indicates the student does not exist.
var ErrStudentNotFound = errors.New("student not found")

// ErrActivityNotFound indicates the graded activity does not exist.
var ErrActivityNotFound = errors.New("activity not found")

// ErrInvalidTransition indicates the record is not in the state the requested
// action requires.
var ErrInvalidTransition = errors.New("action not valid for current status")

// ErrAlreadyFinalized indicates a mutation was attempted after the record
// received its immutable verdict.
var ErrAlreadyFinalized = errors.New("recovery record already finalized")

// ErrDeadlinePassed indicates the recovery close date is behind us.
var ErrDeadlinePassed = errors.New("recovery deadline has passed")

// ErrGradeOutOfRange indicates a grade value outside the 0.0-5.0 scale.
var ErrGradeOutOfRange = errors.New("grade must be between 0.0 and 5.0")

// ErrOutsideCourseGroup indicates a teacher acted on a record belonging to
// another course group.
var ErrOutsideCourseGroup = errors.New("record belongs to another course group")

// ErrModuleUndecided indicates promotion was attempted while a subject still
// awaits a final recovery verdict.
var ErrModuleUndecided = errors.New("module outcome is undecided")

// ErrModuleFailed indicates promotion was attempted on a failed module.
var ErrModuleFailed = errors.New("module outcome is fail")

// ErrNotFinalModule indicates graduation was requested before the final module.
var ErrNotFinalModule = errors.New("student has not reached the final module")
