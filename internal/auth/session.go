package auth

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var ErrInvalidSession = errors.New("invalid session value")

// session values are stored as "<userID>:<createdAtUnix>"
func encodeSession(userID int, createdAt time.Time) string {
	return fmt.Sprintf("%d:%d", userID, createdAt.Unix())
}

func decodeSession(value string) (int, time.Time, error) {
	userPart, createdPart, found := strings.Cut(value, ":")
	if !found {
		return 0, time.Time{}, fmt.Errorf("%w: %q", ErrInvalidSession, value)
	}
	userID, err := strconv.Atoi(userPart)
	if err != nil || userID <= 0 {
		return 0, time.Time{}, fmt.Errorf("%w: user id %q", ErrInvalidSession, userPart)
	}
	createdAtUnix, err := strconv.ParseInt(createdPart, 10, 64)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("%w: created at %q", ErrInvalidSession, createdPart)
	}
	return userID, time.Unix(createdAtUnix, 0), nil
}
