package extraction

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/imrishuroy/go-chat-orderflow/internal/orders"
)

type wireItem struct {
	Name     string  `json:"name"`
	Quantity flexInt `json:"quantity"`
}

type wireFragment struct {
	CustomerName string     `json:"customer_name"`
	Phone        string     `json:"phone"`
	Address      string     `json:"address"`
	DeliveryTime string     `json:"delivery_time"`
	Note         string     `json:"note"`
	Items        []wireItem `json:"items"`
}

// flexInt accepts 2, 2.0 and "2"; models are not always strict about types.
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = 0
		return nil
	}
	s := strings.Trim(string(data), `"`)
	if s == "" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return fmt.Errorf("quantity %s: %w", data, err)
	}
	if n != math.Trunc(n) || n > math.MaxInt32 || n < math.MinInt32 {
		return fmt.Errorf("quantity %s is not a whole number in range", data)
	}
	*f = flexInt(n)
	return nil
}

// parseFragment decodes the model's answer. Items failing validation are
// returned separately and never reach the fragment.
func parseFragment(raw string, v *validatorv10.Validate) (orders.Fragment, []orders.LineItem, error) {
	body := stripFences(raw)
	start, end := strings.Index(body, "{"), strings.LastIndex(body, "}")
	if start < 0 || end < start {
		return orders.Fragment{}, nil, fmt.Errorf("%w: no JSON object in %q", ErrMalformedOutput, truncate(raw, 120))
	}

	var wf wireFragment
	if err := json.Unmarshal([]byte(body[start:end+1]), &wf); err != nil {
		return orders.Fragment{}, nil, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}

	frag := orders.Fragment{
		CustomerName: strings.TrimSpace(wf.CustomerName),
		Phone:        strings.TrimSpace(wf.Phone),
		Address:      strings.TrimSpace(wf.Address),
		DeliveryTime: strings.TrimSpace(wf.DeliveryTime),
		Note:         strings.TrimSpace(wf.Note),
	}
	var dropped []orders.LineItem
	for _, wi := range wf.Items {
		item := orders.LineItem{Name: strings.TrimSpace(wi.Name), Quantity: int(wi.Quantity)}
		if err := v.Struct(item); err != nil {
			dropped = append(dropped, item)
			continue
		}
		frag.Items = append(frag.Items, item)
	}
	return frag, dropped, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:] // drop the language tag line
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
