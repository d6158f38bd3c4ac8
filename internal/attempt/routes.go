package attempt

import (
	"fmt"
	"net/url"
)

// OverviewPath is the quiz page.
func OverviewPath(slug string) string {
	return fmt.Sprintf("/community/quizzes/%s", url.PathEscape(slug))
}

// AttemptPath is the attempt page carrying a session token.
func AttemptPath(slug, publicID string) string {
	return fmt.Sprintf("/community/quizzes/%s/attempt?session=%s", url.PathEscape(slug), url.QueryEscape(publicID))
}

// ResultsPath is the results view of an attempt. Tutors have their own
// route to an equivalent page.
func ResultsPath(slug string, attemptID int64, role Role) string {
	if role == RoleTutor {
		return fmt.Sprintf("/tutor/community/quizzes/%s/result/%d", url.PathEscape(slug), attemptID)
	}
	return fmt.Sprintf("/community/quizzes/%s/result/%d", url.PathEscape(slug), attemptID)
}
