package types

import "regexp"

var userIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// IsValidUserID checks if a user ID meets format requirements.
func IsValidUserID(userID string) bool {
	if len(userID) < 1 || len(userID) > 50 {
		return false
	}
	return userIDRegex.MatchString(userID)
}

// ValidateContent checks post text bounds.
func ValidateContent(content string) error {
	if len(content) < 1 || len(content) > 10000 {
		return ErrInvalidContent
	}
	return nil
}

// ValidateRating checks a review rating. A nil rating is valid: only
// top-level posts in course-review threads carry one.
func ValidateRating(rating *int) error {
	if rating == nil {
		return nil
	}
	if *rating < 1 || *rating > 5 {
		return ErrInvalidRating
	}
	return nil
}
