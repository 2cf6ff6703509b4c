package handlers

import "errors"

var (
	ErrAlreadyRegistered    = errors.New("peer is already registered")
	ErrNotRegistered        = errors.New("peer must register before sending this message")
	ErrTeacherOnly          = errors.New("only a teacher may send this message")
	ErrInvalidClassroomCode = errors.New("invalid or expired classroom code")
)
