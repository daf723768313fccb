package util

import "errors"

var (
	ErrValidation       = errors.New("validation failed")
	ErrNotFound         = errors.New("resource not found")
	ErrNotEnrolled      = errors.New("you are not enrolled in this course")
	ErrAttemptsExceeded = errors.New("maximum attempts exceeded")
	ErrConflict         = errors.New("concurrent update conflict, please retry")
	ErrLessonLocked     = errors.New("complete previous lessons to access this content")
	ErrPermissionDenied = errors.New("permission denied")
)
