package orders

import (
	"fmt"
	"strings"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusShipping  Status = "SHIPPING"
	StatusDelivered Status = "DELIVERED"
	StatusCancelled Status = "CANCELLED"
)

// AllStatuses in lifecycle order.
var AllStatuses = []Status{StatusPending, StatusConfirmed, StatusShipping, StatusDelivered, StatusCancelled}

var validNext = map[Status]map[Status]bool{
	StatusPending:   {StatusConfirmed: true, StatusCancelled: true},
	StatusConfirmed: {StatusShipping: true, StatusCancelled: true},
	StatusShipping:  {StatusDelivered: true, StatusCancelled: true},
	StatusDelivered: {},
	StatusCancelled: {},
}

// CanTransition reports whether from may move to to. Staying on the same
// status is always allowed and treated as a no-op by the service.
func CanTransition(from, to Status) bool {
	if from == to {
		_, known := validNext[from]
		return known
	}
	return validNext[from][to]
}

// Action is one admin control offered for an order.
type Action struct {
	Label  string `json:"label"`
	Target Status `json:"target"`
}

var actions = map[Status][]Action{
	StatusPending:   {{Label: "Confirm", Target: StatusConfirmed}, {Label: "Cancel", Target: StatusCancelled}},
	StatusConfirmed: {{Label: "Ship", Target: StatusShipping}, {Label: "Cancel", Target: StatusCancelled}},
	StatusShipping:  {{Label: "Mark delivered", Target: StatusDelivered}, {Label: "Cancel", Target: StatusCancelled}},
}

// NextActions lists the controls for s. Terminal statuses get none.
func NextActions(s Status) []Action {
	a := actions[s]
	out := make([]Action, len(a))
	copy(out, a)
	return out
}

// Offers reports whether NextActions(s) contains target.
func Offers(s, target Status) bool {
	for _, a := range actions[s] {
		if a.Target == target {
			return true
		}
	}
	return false
}

func IsTerminal(s Status) bool {
	next, ok := validNext[s]
	return ok && len(next) == 0
}

// ParseStatus normalizes case and whitespace.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := validNext[st]; !ok {
		return "", fmt.Errorf("%w: invalid status %q", ErrValidation, s)
	}
	return st, nil
}
