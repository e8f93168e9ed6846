package transaction

import (
	"fmt"
	"sort"
	"strings"
)

type Status string

// StatusNew is the status of an aggregate with no events folded in.
const StatusNew Status = ""

const (
	StatusActivated              Status = "ACTIVATED"
	StatusAuthorizationRequested Status = "AUTHORIZATION_REQUESTED"
	StatusAuthorizationCompleted Status = "AUTHORIZATION_COMPLETED"
	StatusClosureRequested       Status = "CLOSURE_REQUESTED"
	StatusClosed                 Status = "CLOSED"
	StatusClosureFailed          Status = "CLOSURE_FAILED"
	StatusClosureError           Status = "CLOSURE_ERROR"
	StatusNotifiedOk             Status = "NOTIFIED_OK"
	StatusNotifiedKo             Status = "NOTIFIED_KO"
	StatusRefundRequested        Status = "REFUND_REQUESTED"
	StatusRefundError            Status = "REFUND_ERROR"
	StatusRefunded               Status = "REFUNDED"
	StatusCanceled               Status = "CANCELED"
	StatusExpired                Status = "EXPIRED"
	StatusExpiredNotAuthorized   Status = "EXPIRED_NOT_AUTHORIZED"
	StatusCancellationExpired    Status = "CANCELLATION_EXPIRED"
)

// Statuses lists every reachable status.
func Statuses() []Status {
	return []Status{
		StatusActivated,
		StatusAuthorizationRequested,
		StatusAuthorizationCompleted,
		StatusClosureRequested,
		StatusClosed,
		StatusClosureFailed,
		StatusClosureError,
		StatusNotifiedOk,
		StatusNotifiedKo,
		StatusRefundRequested,
		StatusRefundError,
		StatusRefunded,
		StatusCanceled,
		StatusExpired,
		StatusExpiredNotAuthorized,
		StatusCancellationExpired,
	}
}

// Final reports statuses no event can leave.
func (s Status) Final() bool {
	switch s {
	case StatusNotifiedOk, StatusRefunded, StatusExpiredNotAuthorized, StatusCancellationExpired:
		return true
	}
	return false
}

// ValidateStatusMapping fails when names does not list exactly the domain statuses.
// Outer layers call it at startup with their own enum.
func ValidateStatusMapping(names []string) error {
	want := make(map[string]bool)
	for _, s := range Statuses() {
		want[string(s)] = true
	}
	got := make(map[string]bool)
	for _, n := range names {
		got[n] = true
	}

	var missing, unknown []string
	for n := range want {
		if !got[n] {
			missing = append(missing, n)
		}
	}
	for n := range got {
		if !want[n] {
			unknown = append(unknown, n)
		}
	}
	if len(missing) == 0 && len(unknown) == 0 {
		return nil
	}
	sort.Strings(missing)
	sort.Strings(unknown)
	return fmt.Errorf("status enum mismatch: missing [%s] unknown [%s]",
		strings.Join(missing, ","), strings.Join(unknown, ","))
}
