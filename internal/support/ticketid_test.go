package support

import (
	"errors"
	"testing"
	"time"
)

func TestNextTicketID(t *testing.T) {
	day := time.Date(2024, 1, 31, 23, 0, 0, 0, time.UTC)
	cases := []struct {
		last, want string
	}{
		{"", "ST-20240131-0001"},
		{"ST-20240131-0001", "ST-20240131-0002"},
		{"ST-20240131-0099", "ST-20240131-0100"},
		{"ST-20240130-0042", "ST-20240131-0001"},
	}
	for _, tc := range cases {
		got, err := NextTicketID(day, tc.last)
		if err != nil {
			t.Fatalf("last=%q: %v", tc.last, err)
		}
		if got != tc.want {
			t.Fatalf("last=%q: got %q want %q", tc.last, got, tc.want)
		}
		if !ValidTicketID(got) {
			t.Fatalf("%q does not match the ticket id format", got)
		}
	}
	if _, err := NextTicketID(day, "ST-20240131-9999"); !errors.Is(err, ErrTicketIDExhausted) {
		t.Fatalf("expected exhaustion error, got %v", err)
	}
}

func TestTicketIDPrefix_UsesUTC(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+1800)
	// 2024-02-01 02:00 IST is still 2024-01-31 in UTC.
	if got := TicketIDPrefix(time.Date(2024, 2, 1, 2, 0, 0, 0, ist)); got != "ST-20240131-" {
		t.Fatalf("unexpected prefix %q", got)
	}
}

func TestIsOverdue(t *testing.T) {
	created := time.Unix(1700000000, 0).UTC()
	tk := Ticket{Status: StatusOpen, Priority: PriorityCritical, CreatedAt: created}
	if tk.IsOverdue(created.Add(3 * time.Hour)) {
		t.Fatalf("critical ticket not overdue after 3h")
	}
	if !tk.IsOverdue(created.Add(5 * time.Hour)) {
		t.Fatalf("critical ticket overdue after 5h")
	}
	tk.Priority = "unknown"
	if tk.IsOverdue(created.Add(23 * time.Hour)) {
		t.Fatalf("unknown priority uses 24h")
	}
	tk.Status = StatusReopened
	if tk.IsOverdue(created.Add(100 * time.Hour)) {
		t.Fatalf("reopened tickets are never overdue")
	}
}
