package interfaces

import "context"

// TeacherAuthenticator verifies a bearer token presented by a teacher
// client and resolves it to a durable teacher id. Authentication itself is
// an out-of-scope collaborator (spec.md §1); the core only ever calls
// Verify and treats any error as AuthError (spec.md §7).
type TeacherAuthenticator interface {
	Verify(ctx context.Context, bearerToken string) (teacherID string, err error)
}
