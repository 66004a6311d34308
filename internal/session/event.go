package session

import (
	"encoding/json"
	"fmt"

	"github.com/dealyze/pos-demo/internal/dealyze"
	"github.com/dealyze/pos-demo/internal/socketio"
)

// EventKind enumerates the inbound events the controller understands.
type EventKind int

const (
	EventConnect EventKind = iota
	EventDisconnect
	EventCustomer
	EventOrder
)

func (k EventKind) String() string {
	switch k {
	case EventConnect:
		return "connect"
	case EventDisconnect:
		return "disconnect"
	case EventCustomer:
		return dealyze.EventCustomer
	case EventOrder:
		return dealyze.EventOrder
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// Inbound is one event delivered by the transport.
type Inbound struct {
	Kind    EventKind
	Reason  string          // disconnect only
	Payload json.RawMessage // customer and order only
}

// Action tells the controller what to do with a dispatched event.
type Action int

const (
	ActionNone Action = iota
	ActionReconnect
	ActionPayBill
	ActionRedeem
)

func (a Action) String() string {
	switch a {
	case ActionReconnect:
		return "reconnect"
	case ActionPayBill:
		return "pay-bill"
	case ActionRedeem:
		return "redeem"
	default:
		return "none"
	}
}

// Result is the outcome of Dispatch.
type Result struct {
	Action   Action
	Line     string // operator-facing line, empty for silence
	Customer *dealyze.Customer
	Order    *dealyze.Order
	Err      error // payload could not be decoded
}

// Dispatch maps an inbound event to the action it requires.
func Dispatch(ev Inbound) Result {
	switch ev.Kind {
	case EventConnect:
		return Result{Line: "connected"}

	case EventDisconnect:
		r := Result{Line: "disconnected " + ev.Reason}
		// The server dropped us on purpose; the transport will not retry.
		if ev.Reason == socketio.ReasonServerDisconnect {
			r.Action = ActionReconnect
		}
		return r

	case EventCustomer:
		payload, err := dealyze.DecodeCustomerEvent(ev.Payload)
		if err != nil {
			return Result{Line: "customer: malformed payload", Err: err}
		}
		if msg, ok := payload.Err(); ok {
			return Result{Line: "customer: " + msg}
		}
		if payload.Customer == nil {
			return Result{Line: "customer: event without customer"}
		}
		return Result{
			Action:   ActionPayBill,
			Line:     "customer signed in with phone number " + payload.Customer.PhoneNumber,
			Customer: payload.Customer,
		}

	case EventOrder:
		payload, err := dealyze.DecodeOrderEvent(ev.Payload)
		if err != nil {
			return Result{Line: "order: malformed payload", Err: err}
		}
		if msg, ok := payload.Err(); ok {
			return Result{Line: "order: " + msg}
		}
		d, ok := payload.Order.FirstDiscount()
		if !ok {
			return Result{}
		}
		return Result{
			Action: ActionRedeem,
			Line:   "order received with " + d.Name,
			Order:  payload.Order,
		}
	}
	return Result{}
}
