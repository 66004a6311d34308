package dealyze

import (
	"encoding/json"
	"fmt"
)

// document holds the top-level keys of a JSON object while known keys are
// peeled off; whatever remains is kept as Extra.
type document map[string]json.RawMessage

func splitDocument(data []byte) (document, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// take decodes key into dst and removes it. Missing keys leave dst untouched.
func (d document) take(key string, dst any) error {
	raw, ok := d[key]
	if !ok {
		return nil
	}
	delete(d, key)
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	return nil
}

func (d document) rest() map[string]json.RawMessage {
	if len(d) == 0 {
		return nil
	}
	return d
}

func encodeDocument(extra map[string]json.RawMessage, known map[string]any) ([]byte, error) {
	out := make(map[string]any, len(extra)+len(known))
	for k, v := range extra {
		out[k] = v
	}
	for k, v := range known {
		out[k] = v
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *Customer) UnmarshalJSON(data []byte) error {
	doc, err := splitDocument(data)
	if err != nil {
		return fmt.Errorf("customer: %w", err)
	}
	*c = Customer{}
	if err := doc.take("phoneNumber", &c.PhoneNumber); err != nil {
		return fmt.Errorf("customer: %w", err)
	}
	c.Extra = doc.rest()
	return nil
}

// MarshalJSON implements json.Marshaler.
func (c Customer) MarshalJSON() ([]byte, error) {
	return encodeDocument(c.Extra, map[string]any{"phoneNumber": c.PhoneNumber})
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Discount) UnmarshalJSON(data []byte) error {
	doc, err := splitDocument(data)
	if err != nil {
		return fmt.Errorf("discount: %w", err)
	}
	*d = Discount{}
	if err := doc.take("name", &d.Name); err != nil {
		return fmt.Errorf("discount: %w", err)
	}
	if raw, ok := doc["skus"]; ok {
		d.Skus = raw
		delete(doc, "skus")
	}
	d.Extra = doc.rest()
	return nil
}

// MarshalJSON implements json.Marshaler.
func (d Discount) MarshalJSON() ([]byte, error) {
	known := map[string]any{"name": d.Name}
	if d.Skus != nil {
		known["skus"] = d.Skus
	}
	return encodeDocument(d.Extra, known)
}

// UnmarshalJSON implements json.Unmarshaler.
func (o *Order) UnmarshalJSON(data []byte) error {
	doc, err := splitDocument(data)
	if err != nil {
		return fmt.Errorf("order: %w", err)
	}
	*o = Order{}
	if err := doc.take("discounts", &o.Discounts); err != nil {
		return fmt.Errorf("order: %w", err)
	}
	var items []json.RawMessage
	if err := doc.take("items", &items); err != nil {
		return fmt.Errorf("order: %w", err)
	}
	if items != nil {
		o.Items = make([]any, len(items))
		for i, it := range items {
			o.Items[i] = it
		}
	}
	if err := doc.take("total", &o.Total); err != nil {
		return fmt.Errorf("order: %w", err)
	}
	o.Extra = doc.rest()
	return nil
}

// MarshalJSON implements json.Marshaler.
func (o Order) MarshalJSON() ([]byte, error) {
	known := make(map[string]any, 3)
	if o.Discounts != nil {
		known["discounts"] = o.Discounts
	}
	if o.Items != nil {
		known["items"] = o.Items
	}
	if o.Total != nil {
		known["total"] = *o.Total
	}
	return encodeDocument(o.Extra, known)
}
