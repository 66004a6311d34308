package mock

import (
	"encoding/json"
	"fmt"

	"github.com/dealyze/pos-demo/internal/dealyze"
)

// Kind names a scripted event.
type Kind string

const (
	KindCustomer      Kind = "customer"
	KindOrder         Kind = "order"
	KindOrderMulti    Kind = "order-multi"
	KindOrderError    Kind = "order-error"
	KindCustomerError Kind = "customer-error"
)

// Rotation is the order the generator pushes events in.
var Rotation = []Kind{KindCustomer, KindOrder, KindOrderError, KindOrderMulti, KindCustomerError}

var scripts = map[Kind]struct {
	event   string
	payload string
}{
	KindCustomer: {dealyze.EventCustomer, `{"customer":{"phoneNumber":"5551234567","firstName":"Ada"}}`},
	KindOrder: {dealyze.EventOrder, `{"order":{"id":"ord-1001",
		"discounts":[{"name":"Free Coffee","skus":["cof-sm","cof-md"]}],
		"items":[{"name":"Coffee","sku":"cof-md","price":3.25}],"total":3.25}}`},
	KindOrderMulti: {dealyze.EventOrder, `{"order":{"id":"ord-1002",
		"discounts":[{"name":"Free Pastry","skus":["pst-1"]},{"name":"10% Off","skus":[]}],
		"items":[{"name":"Croissant","sku":"pst-1","price":2.5}],"total":2.5}}`},
	KindOrderError:    {dealyze.EventOrder, `{"error":"reward already redeemed"}`},
	KindCustomerError: {dealyze.EventCustomer, `{"error":"unknown phone number"}`},
}

// Script returns the event name and payload for kind.
func Script(kind Kind) (string, json.RawMessage, error) {
	s, ok := scripts[kind]
	if !ok {
		return "", nil, fmt.Errorf("mock: unknown kind %q", kind)
	}
	return s.event, json.RawMessage(s.payload), nil
}
