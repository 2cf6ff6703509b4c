package types

import "regexp"

// Regex compiled once at package initialization.
var (
	classroomCodeRegex = regexp.MustCompile(`^[A-Z0-9]{6}$`)
	languageCodeRegex  = regexp.MustCompile(`^[a-zA-Z]{2,3}(-[a-zA-Z0-9]{2,8})*$`)
)

// IsValidClassroomCode checks the spec.md §8 boundary: exactly six
// uppercase base-36 characters.
func IsValidClassroomCode(code string) bool {
	return classroomCodeRegex.MatchString(code)
}

// IsValidLanguageCode performs a light BCP-47 shape check ("en", "en-US",
// "zh-Hans-CN", ...). It intentionally does not validate against the IANA
// subtag registry — the speech pipeline is the authority on whether a code
// is actually usable.
func IsValidLanguageCode(code string) bool {
	return code != "" && languageCodeRegex.MatchString(code)
}

// IsValidRole reports whether role is one of the two registerable roles.
func IsValidRole(role string) bool {
	return role == string(RoleTeacher) || role == string(RoleStudent)
}
