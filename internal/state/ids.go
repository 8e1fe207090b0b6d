package state

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewScheduleID returns a unique schedule id that sorts roughly by creation
// time (base36 epoch-ms prefix) with a random suffix to break ties.
func NewScheduleID(now time.Time) string {
	suffix := strings.SplitN(uuid.NewString(), "-", 2)[0]
	return strconv.FormatInt(now.UnixMilli(), 36) + "-" + suffix
}
