// Package dealyze defines the documents exchanged with a Dealyze server.
// Fields the client does not model are kept verbatim so that echoed orders
// reach the server unchanged apart from the edits the operator approved.
package dealyze

import (
	"encoding/json"
	"fmt"
)

// Event names used on the wire.
const (
	EventCustomer = "customer"
	EventOrder    = "order"
)

// Employee identifies who approved a transaction.
type Employee struct {
	Code         string `json:"code" yaml:"code"`
	FirstName    string `json:"firstName" yaml:"first_name"`
	LastName     string `json:"lastName" yaml:"last_name"`
	EmailAddress string `json:"emailAddress" yaml:"email_address"`
}

// TestEmployee returns the placeholder employee attached to every response.
func TestEmployee() Employee {
	return Employee{
		Code:         "123456",
		FirstName:    "Bob",
		LastName:     "Johnson",
		EmailAddress: "bob@dealyze.com",
	}
}

// Customer is the signed-in customer carried by a customer event.
type Customer struct {
	PhoneNumber string
	Extra       map[string]json.RawMessage
}

// Discount is a reward or promotion attached to an order.
type Discount struct {
	Name string
	// Skus is kept raw; the server decides its element type.
	Skus  json.RawMessage
	Extra map[string]json.RawMessage
}

// Order is the order document pushed by the server and echoed back.
type Order struct {
	// Discounts is nil when the key was absent. A non-nil empty slice is
	// encoded as [].
	Discounts []Discount
	Items     []any
	Total     *float64
	Extra     map[string]json.RawMessage
}

// LineItem is an item the client adds to an order.
type LineItem struct {
	Name string   `json:"name"`
	Skus []string `json:"skus"`
}

// BillPayItem is the flat line item recorded for a bill payment.
func BillPayItem() LineItem {
	return LineItem{Name: "Bill Pay", Skus: []string{"abc123"}}
}

// ResponseEnvelope wraps an order with the approving employee.
type ResponseEnvelope struct {
	Order    *Order    `json:"order"`
	Employee *Employee `json:"employee,omitempty"`
}

// CustomerEvent is the payload of a customer event.
type CustomerEvent struct {
	Error    json.RawMessage `json:"error,omitempty"`
	Customer *Customer       `json:"customer,omitempty"`
}

// Err reports the server-side error carried by the event, if any.
func (e CustomerEvent) Err() (string, bool) {
	return errorText(e.Error)
}

// OrderEvent is the payload of an order event.
type OrderEvent struct {
	Error json.RawMessage `json:"error,omitempty"`
	Order *Order          `json:"order,omitempty"`
}

// Err reports the server-side error carried by the event, if any.
func (e OrderEvent) Err() (string, bool) {
	return errorText(e.Error)
}

// FirstDiscount returns the first discount of the order.
func (o *Order) FirstDiscount() (Discount, bool) {
	if o == nil || len(o.Discounts) == 0 {
		return Discount{}, false
	}
	return o.Discounts[0], true
}

// Clone returns a copy that can be edited without touching o.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	c := &Order{Extra: cloneExtra(o.Extra)}
	if o.Discounts != nil {
		c.Discounts = make([]Discount, len(o.Discounts))
		for i, d := range o.Discounts {
			c.Discounts[i] = Discount{Name: d.Name, Skus: cloneRaw(d.Skus), Extra: cloneExtra(d.Extra)}
		}
	}
	if o.Items != nil {
		c.Items = append([]any{}, o.Items...)
	}
	if o.Total != nil {
		t := *o.Total
		c.Total = &t
	}
	return c
}

func errorText(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}
	return string(raw), true
}

func cloneRaw(raw json.RawMessage) json.RawMessage {
	if raw == nil {
		return nil
	}
	return append(json.RawMessage{}, raw...)
}

func cloneExtra(extra map[string]json.RawMessage) map[string]json.RawMessage {
	if extra == nil {
		return nil
	}
	c := make(map[string]json.RawMessage, len(extra))
	for k, v := range extra {
		c[k] = cloneRaw(v)
	}
	return c
}

// DecodeCustomerEvent decodes a customer event payload. Payloads that arrive
// as a JSON string holding a document are unwrapped first.
func DecodeCustomerEvent(raw json.RawMessage) (CustomerEvent, error) {
	var ev CustomerEvent
	data, err := unwrapString(raw)
	if err != nil {
		return ev, err
	}
	if err := json.Unmarshal(data, &ev); err != nil {
		return ev, fmt.Errorf("decode customer event: %w", err)
	}
	return ev, nil
}

// DecodeOrderEvent decodes an order event payload.
func DecodeOrderEvent(raw json.RawMessage) (OrderEvent, error) {
	var ev OrderEvent
	data, err := unwrapString(raw)
	if err != nil {
		return ev, err
	}
	if err := json.Unmarshal(data, &ev); err != nil {
		return ev, fmt.Errorf("decode order event: %w", err)
	}
	return ev, nil
}

func unwrapString(raw json.RawMessage) ([]byte, error) {
	if len(raw) == 0 || raw[0] != '"' {
		return raw, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decode string payload: %w", err)
	}
	return []byte(s), nil
}
