package types

import "errors"

var (
	ErrInvalidRole         = errors.New("role must be 'teacher' or 'student'")
	ErrInvalidLanguageCode = errors.New("languageCode must be a valid BCP-47 tag")
	ErrInvalidClassroomCode = errors.New("classroom code must match ^[A-Z0-9]{6}$")
)
