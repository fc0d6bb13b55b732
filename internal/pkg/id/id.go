package id

import (
	"crypto/rand"
	"strconv"
	"strings"
	"time"

	"github.com/go-event-registration/internal/pkg/token"
	"github.com/oklog/ulid/v2"
)

// New generates a new ULID string. ULIDs are lexicographically sortable
// by creation time and safe for use as DynamoDB partition keys.
func New() string {
	return ulid.MustNew(ulid.Now(), rand.Reader).String()
}

// NewTeamID mints TEAM-<base36 millisecond timestamp>-<5 random base36 chars>.
// Uniqueness is practical, not guaranteed; there is no central sequence.
func NewTeamID(now time.Time) (string, error) {
	suffix, err := token.Base36(5)
	if err != nil {
		return "", err
	}
	ts := strings.ToUpper(strconv.FormatInt(now.UnixMilli(), 36))
	return "TEAM-" + ts + "-" + suffix, nil
}
