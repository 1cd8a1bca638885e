package support

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var ticketIDPattern = regexp.MustCompile(`^ST-\d{8}-\d{4}$`)

// TicketIDPrefix is the per-day prefix, e.g. "ST-20240131-".
func TicketIDPrefix(day time.Time) string {
	return "ST-" + day.UTC().Format("20060102") + "-"
}

// ErrTicketIDExhausted is returned once a day's 9999 sequence numbers are used.
var ErrTicketIDExhausted = errors.New("support: daily ticket id sequence exhausted")

// NextTicketID returns the ID following last for the same day.
// An empty or foreign last starts at 0001.
func NextTicketID(day time.Time, last string) (string, error) {
	prefix := TicketIDPrefix(day)
	seq := 1
	if strings.HasPrefix(last, prefix) {
		if n, err := strconv.Atoi(strings.TrimPrefix(last, prefix)); err == nil {
			seq = n + 1
		}
	}
	if seq > 9999 {
		return "", ErrTicketIDExhausted
	}
	return fmt.Sprintf("%s%04d", prefix, seq), nil
}

func ValidTicketID(id string) bool { return ticketIDPattern.MatchString(id) }

func roundHours(d time.Duration) float64 {
	return float64(int64(d.Hours()*100+0.5)) / 100
}
