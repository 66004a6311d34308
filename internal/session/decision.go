package session

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dealyze/pos-demo/internal/dealyze"
)

// Operator-facing lines.
const (
	BillPayQuestion = "how many bills did the customer pay ? [integer > 0/cancel]:"

	lineRedeemApproved = "approved redemption"
	lineRedeemCanceled = "redemption canceled"
	lineRedeemUsage    = "you must enter 'yes', 'no', or 'cancel'"
	lineBillCancelled  = "bill payment cancelled"
	lineBillUsage      = "you must enter a number > 0"
)

// Outbound is an event to send back to the server.
type Outbound struct {
	Event   string
	Payload any
	// AsText marks documents that older clients sent as JSON text.
	AsText bool
}

// Outcome is what a prompt answer resolves to.
type Outcome struct {
	Emit *Outbound
	Line string
}

// RedemptionQuestion is the prompt shown for an order's first discount.
func RedemptionQuestion(order *dealyze.Order) string {
	d, _ := order.FirstDiscount()
	return "approve the redemption of " + d.Name + "? [yes/no/cancel]: "
}

func normalize(answer string) string {
	return strings.ToLower(strings.TrimSpace(answer))
}

// Redeem resolves the operator's answer to a redemption prompt.
//
// Approving replaces the items with the first discount's name and skus,
// zeroes the total and sends the order wrapped with the employee. Declining
// drops the first discount and sends the bare order, with no employee.
func Redeem(order *dealyze.Order, answer string, employee dealyze.Employee) Outcome {
	d, ok := order.FirstDiscount()
	if !ok {
		return Outcome{}
	}

	switch normalize(answer) {
	case "cancel":
		return Outcome{}

	case "yes":
		resp := order.Clone()
		resp.Items = []any{d.Name, d.Skus}
		total := 0.0
		resp.Total = &total
		return Outcome{
			Emit: &Outbound{
				Event:   dealyze.EventOrder,
				Payload: dealyze.ResponseEnvelope{Order: resp, Employee: &employee},
				AsText:  true,
			},
			Line: lineRedeemApproved,
		}

	case "no":
		resp := order.Clone()
		resp.Discounts = append([]dealyze.Discount{}, resp.Discounts[1:]...)
		return Outcome{
			Emit: &Outbound{Event: dealyze.EventOrder, Payload: resp, AsText: true},
			Line: lineRedeemCanceled,
		}
	}
	return Outcome{Line: lineRedeemUsage}
}

// ParseBillCount parses a bill count. Zero and negative counts are rejected.
func ParseBillCount(answer string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(answer))
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// PayBill resolves the operator's answer to a bill-payment prompt.
func PayBill(customer *dealyze.Customer, answer string, employee dealyze.Employee) Outcome {
	if customer == nil {
		return Outcome{}
	}
	if normalize(answer) == "cancel" {
		return Outcome{Line: lineBillCancelled}
	}
	n, ok := ParseBillCount(answer)
	if !ok {
		return Outcome{Line: lineBillUsage}
	}

	order := &dealyze.Order{Items: []any{dealyze.BillPayItem()}}
	plural := ""
	if n > 1 {
		plural = "s"
	}
	return Outcome{
		Emit: &Outbound{
			Event:   dealyze.EventOrder,
			Payload: dealyze.ResponseEnvelope{Order: order, Employee: &employee},
		},
		Line: fmt.Sprintf("%d bill%s paid", n, plural),
	}
}
