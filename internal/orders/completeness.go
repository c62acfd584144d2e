package orders

import "strings"

// Completeness is the outcome of CheckCompleteness.
type Completeness struct {
	IsComplete    bool
	MissingFields []Field
}

// CheckCompleteness reports which required fields are still missing, in
// RequiredFields order.
func CheckCompleteness(rec OrderRecord) Completeness {
	missing := make([]Field, 0, len(RequiredFields))
	for _, f := range RequiredFields {
		if !rec.has(f) {
			missing = append(missing, f)
		}
	}
	return Completeness{
		IsComplete:    len(missing) == 0,
		MissingFields: missing,
	}
}

// StatusFor maps a completeness result to the draft-side status. Confirmed is
// only ever set by the commit step.
func StatusFor(c Completeness) Status {
	if c.IsComplete {
		return StatusComplete
	}
	return StatusDraft
}

func (r OrderRecord) has(f Field) bool {
	switch f {
	case FieldCustomerName:
		return !isBlank(r.CustomerName)
	case FieldPhone:
		return !isBlank(r.Phone)
	case FieldAddress:
		return !isBlank(r.Address)
	case FieldDeliveryTime:
		return !isBlank(r.DeliveryTime)
	case FieldItems:
		for _, it := range r.Items {
			if NormalizeItemName(it.Name) != "" && it.Quantity > 0 {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func isBlank(s string) bool { return strings.TrimSpace(s) == "" }
