package workorders

import "github.com/angelmondragon/shopfloor-backend/pkg/enums"

type sideEffect int

const (
	effectNone sideEffect = iota
	effectReserve
	effectConsume
	effectRelease
)

func (e sideEffect) String() string {
	switch e {
	case effectReserve:
		return "reserve"
	case effectConsume:
		return "consume"
	case effectRelease:
		return "release"
	default:
		return "none"
	}
}

type edge struct {
	from enums.WorkOrderStatus
	to   enums.WorkOrderStatus
}

// Nothing re-enters pending and nothing leaves cancelled. Reopening a
// completed order moves no stock; its parts stay consumed.
var transitions = map[edge]sideEffect{
	{enums.WorkOrderStatusPending, enums.WorkOrderStatusInProgress}:   effectReserve,
	{enums.WorkOrderStatusPending, enums.WorkOrderStatusCancelled}:    effectNone,
	{enums.WorkOrderStatusInProgress, enums.WorkOrderStatusOnHold}:    effectNone,
	{enums.WorkOrderStatusInProgress, enums.WorkOrderStatusCompleted}: effectConsume,
	{enums.WorkOrderStatusInProgress, enums.WorkOrderStatusCancelled}: effectRelease,
	{enums.WorkOrderStatusOnHold, enums.WorkOrderStatusInProgress}:    effectReserve,
	{enums.WorkOrderStatusCompleted, enums.WorkOrderStatusInProgress}: effectNone,
}

// CanTransition reports whether the lifecycle permits moving from -> to.
func CanTransition(from, to enums.WorkOrderStatus) bool {
	_, ok := transitions[edge{from, to}]
	return ok
}

// AllowedTargets lists the statuses reachable from the given one.
func AllowedTargets(from enums.WorkOrderStatus) []enums.WorkOrderStatus {
	var out []enums.WorkOrderStatus
	for _, to := range enums.WorkOrderStatuses() {
		if CanTransition(from, to) {
			out = append(out, to)
		}
	}
	return out
}

func effectFor(from, to enums.WorkOrderStatus) sideEffect {
	return transitions[edge{from, to}]
}

// partsEditable reports whether parts may be attached in the given status.
func partsEditable(status enums.WorkOrderStatus) bool {
	return status == enums.WorkOrderStatusPending || status == enums.WorkOrderStatusOnHold
}
