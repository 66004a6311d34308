package dealyze

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeOrderEventKeepsUnknownFields(t *testing.T) {
	raw := json.RawMessage(`{
		"order": {
			"id": "ord-9",
			"discounts": [{"name": "Free Coffee", "skus": ["cof-1"], "points": 100}],
			"items": [{"name": "Latte"}],
			"total": 4.5,
			"location": {"store": 12}
		}
	}`)

	ev, err := DecodeOrderEvent(raw)
	require.NoError(t, err)
	_, hasErr := ev.Err()
	assert.False(t, hasErr)
	require.NotNil(t, ev.Order)

	d, ok := ev.Order.FirstDiscount()
	require.True(t, ok)
	assert.Equal(t, "Free Coffee", d.Name)
	assert.JSONEq(t, `["cof-1"]`, string(d.Skus))
	require.NotNil(t, ev.Order.Total)
	assert.Equal(t, 4.5, *ev.Order.Total)

	out, err := json.Marshal(ev.Order)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"id": "ord-9",
		"discounts": [{"name": "Free Coffee", "skus": ["cof-1"], "points": 100}],
		"items": [{"name": "Latte"}],
		"total": 4.5,
		"location": {"store": 12}
	}`, string(out))
}

func TestDecodeOrderEventError(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr string
		hasErr  bool
	}{
		{name: "string error", raw: `{"error": "reward expired"}`, wantErr: "reward expired", hasErr: true},
		{name: "object error", raw: `{"error": {"code": 4}}`, wantErr: `{"code": 4}`, hasErr: true},
		{name: "null error", raw: `{"error": null, "order": {}}`, hasErr: false},
		{name: "no error", raw: `{"order": {}}`, hasErr: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := DecodeOrderEvent(json.RawMessage(tt.raw))
			require.NoError(t, err)
			msg, ok := ev.Err()
			assert.Equal(t, tt.hasErr, ok)
			assert.Equal(t, tt.wantErr, msg)
		})
	}
}

func TestDecodeStringWrappedPayload(t *testing.T) {
	inner := `{"customer":{"phoneNumber":"5551234","name":"Ann"}}`
	quoted, err := json.Marshal(inner)
	require.NoError(t, err)

	ev, err := DecodeCustomerEvent(quoted)
	require.NoError(t, err)
	require.NotNil(t, ev.Customer)
	assert.Equal(t, "5551234", ev.Customer.PhoneNumber)
	assert.JSONEq(t, `"Ann"`, string(ev.Customer.Extra["name"]))
}

func TestDecodeMalformed(t *testing.T) {
	_, err := DecodeOrderEvent(json.RawMessage(`{"order": {"discounts": "nope"}}`))
	assert.Error(t, err)

	_, err = DecodeCustomerEvent(json.RawMessage(`[1,2]`))
	assert.Error(t, err)

	_, err = DecodeOrderEvent(nil)
	assert.Error(t, err)
}

func TestOrderCloneIsIndependent(t *testing.T) {
	total := 10.0
	o := &Order{
		Discounts: []Discount{{Name: "A", Skus: json.RawMessage(`["x"]`)}, {Name: "B"}},
		Items:     []any{"one"},
		Total:     &total,
		Extra:     map[string]json.RawMessage{"id": json.RawMessage(`"o1"`)},
	}

	c := o.Clone()
	c.Discounts = c.Discounts[1:]
	c.Items[0] = "changed"
	*c.Total = 0
	c.Extra["id"] = json.RawMessage(`"o2"`)

	assert.Len(t, o.Discounts, 2)
	assert.Equal(t, "one", o.Items[0])
	assert.Equal(t, 10.0, *o.Total)
	assert.Equal(t, `"o1"`, string(o.Extra["id"]))
}

func TestEmptyDiscountsEncodedAsArray(t *testing.T) {
	o := Order{Discounts: []Discount{}}
	out, err := json.Marshal(o)
	require.NoError(t, err)
	assert.JSONEq(t, `{"discounts": []}`, string(out))

	out, err = json.Marshal(Order{Items: []any{BillPayItem()}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"items": [{"name": "Bill Pay", "skus": ["abc123"]}]}`, string(out))
}

func TestTestEmployee(t *testing.T) {
	out, err := json.Marshal(TestEmployee())
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"code": "123456",
		"firstName": "Bob",
		"lastName": "Johnson",
		"emailAddress": "bob@dealyze.com"
	}`, string(out))
}
