package extraction

import (
	"encoding/json"
	"strings"

	"github.com/imrishuroy/go-chat-orderflow/internal/orders"
)

const systemInstruction = `You are an assistant for a Vietnamese bakery that reads customer chat messages and extracts cake order details.
Answer with a single JSON object and nothing else, using exactly these keys:
  customer_name, phone, address, delivery_time, note (strings) and items (array of {"name": string, "quantity": integer}).
Rules:
- Leave a field as an empty string when the message does not state it. Never guess.
- quantity must be a positive integer; one object per distinct cake.
- Keep names, addresses and times in the customer's own wording.`

// priorSnapshot is the part of a record the model needs as context.
type priorSnapshot struct {
	CustomerName string            `json:"customer_name"`
	Phone        string            `json:"phone"`
	Address      string            `json:"address"`
	DeliveryTime string            `json:"delivery_time"`
	Note         string            `json:"note"`
	Items        []orders.LineItem `json:"items"`
}

func buildPrompt(message string, prior *orders.OrderRecord) string {
	var b strings.Builder
	if prior == nil {
		b.WriteString("Extract a new order from the message below.\n")
	} else {
		snap := priorSnapshot{
			CustomerName: prior.CustomerName,
			Phone:        prior.Phone,
			Address:      prior.Address,
			DeliveryTime: prior.DeliveryTime,
			Note:         prior.Note,
			Items:        prior.Items,
		}
		if snap.Items == nil {
			snap.Items = []orders.LineItem{}
		}
		known, _ := json.Marshal(snap)
		b.WriteString("The order collected so far is:\n")
		b.Write(known)
		b.WriteString("\nUpdate it with the message below. Keep every known value unless the message clearly replaces it. ")
		b.WriteString("Return only cakes mentioned in this message in items; a cake already in the order with a new quantity should be returned with that quantity, new cakes are added.\n")
	}
	b.WriteString("Message: ")
	b.WriteString(quoteJSON(message))
	return b.String()
}

// quoteJSON quotes the message as a JSON string so embedded quotes cannot
// break out of the prompt structure.
func quoteJSON(s string) string {
	q, _ := json.Marshal(s)
	return string(q)
}
