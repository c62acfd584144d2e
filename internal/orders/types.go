package orders

import "time"

// Order statuses
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusComplete  Status = "COMPLETE"
	StatusConfirmed Status = "CONFIRMED"
)

// Field names a required field of an order record.
type Field string

const (
	FieldCustomerName Field = "customerName"
	FieldPhone        Field = "phone"
	FieldItems        Field = "items"
	FieldAddress      Field = "address"
	FieldDeliveryTime Field = "deliveryTime"
)

// RequiredFields is the fixed order in which completeness is reported.
var RequiredFields = []Field{
	FieldCustomerName,
	FieldPhone,
	FieldItems,
	FieldAddress,
	FieldDeliveryTime,
}

// LineItem is a single product line. Two items are the same line when
// their NormalizeItemName values match.
type LineItem struct {
	Name     string `json:"name" dynamodbav:"name" validate:"required"`
	Quantity int    `json:"quantity" dynamodbav:"quantity" validate:"min=1"`
}

// OrderRecord is the cumulative order assembled from a conversation. The same
// shape is persisted in both the draft and the confirmed tables.
type OrderRecord struct {
	ID           int64      `json:"id" dynamodbav:"id"` // PK
	CustomerName string     `json:"customer_name,omitempty" dynamodbav:"customer_name,omitempty"`
	Phone        string     `json:"phone,omitempty" dynamodbav:"phone,omitempty"`
	Address      string     `json:"address,omitempty" dynamodbav:"address,omitempty"`
	DeliveryTime string     `json:"delivery_time,omitempty" dynamodbav:"delivery_time,omitempty"`
	Note         string     `json:"note,omitempty" dynamodbav:"note,omitempty"`
	Items        []LineItem `json:"items" dynamodbav:"items,omitempty"`
	Status       Status     `json:"status" dynamodbav:"status"` // DRAFT | COMPLETE | CONFIRMED
	CreatedAt    time.Time  `json:"created_at" dynamodbav:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" dynamodbav:"updated_at"`
	ConfirmedAt  *time.Time `json:"confirmed_at,omitempty" dynamodbav:"confirmed_at,omitempty"`
}

// Clone returns a deep copy so callers can mutate the result freely.
func (r OrderRecord) Clone() OrderRecord {
	out := r
	if r.Items != nil {
		out.Items = make([]LineItem, len(r.Items))
		copy(out.Items, r.Items)
	}
	if r.ConfirmedAt != nil {
		t := *r.ConfirmedAt
		out.ConfirmedAt = &t
	}
	return out
}

// Fragment is the partial data the extraction oracle pulled out of one message.
// Blank fields mean "not mentioned".
type Fragment struct {
	CustomerName string     `json:"customer_name"`
	Phone        string     `json:"phone"`
	Address      string     `json:"address"`
	DeliveryTime string     `json:"delivery_time"`
	Note         string     `json:"note"`
	Items        []LineItem `json:"items"`
}
