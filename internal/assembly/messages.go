package assembly

import (
	"fmt"
	"strings"

	"github.com/imrishuroy/go-chat-orderflow/internal/orders"
)

var fieldPhrases = map[orders.Field]string{
	orders.FieldCustomerName: "tên người nhận",
	orders.FieldPhone:        "số điện thoại liên hệ",
	orders.FieldItems:        "loại bánh và số lượng",
	orders.FieldAddress:      "địa chỉ giao hàng",
	orders.FieldDeliveryTime: "thời gian giao hàng",
}

// MissingInfoMessage asks for exactly the given fields, in the given order.
// One field gets a single sentence, several get a bulleted list.
func MissingInfoMessage(missing []orders.Field) string {
	switch len(missing) {
	case 0:
		return ""
	case 1:
		return fmt.Sprintf("Bạn vui lòng cho mình xin %s để hoàn tất đơn hàng nhé.", fieldPhrases[missing[0]])
	}
	var b strings.Builder
	b.WriteString("Để hoàn tất đơn hàng, bạn vui lòng cung cấp thêm:")
	for _, f := range missing {
		b.WriteString("\n• ")
		b.WriteString(fieldPhrases[f])
	}
	return b.String()
}

// ConfirmationMessage summarizes every field and line item of a complete
// record and asks the customer to confirm.
func ConfirmationMessage(rec orders.OrderRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Mình xác nhận lại đơn hàng #%d của bạn:\n", rec.ID)
	fmt.Fprintf(&b, "• Tên người nhận: %s\n", rec.CustomerName)
	fmt.Fprintf(&b, "• Số điện thoại: %s\n", rec.Phone)
	fmt.Fprintf(&b, "• Địa chỉ giao hàng: %s\n", rec.Address)
	fmt.Fprintf(&b, "• Thời gian giao hàng: %s\n", rec.DeliveryTime)
	note := rec.Note
	if strings.TrimSpace(note) == "" {
		note = "(không có)"
	}
	fmt.Fprintf(&b, "• Ghi chú: %s\n", note)
	b.WriteString("• Bánh:\n")
	for _, it := range rec.Items {
		fmt.Fprintf(&b, "  - %d x %s\n", it.Quantity, it.Name)
	}
	b.WriteString("Nếu thông tin đã chính xác, bạn bấm xác nhận để mình lên đơn nhé.")
	return b.String()
}

// ConfirmedMessage is shown once an order has been committed.
func ConfirmedMessage(rec orders.OrderRecord) string {
	return fmt.Sprintf("Đơn hàng #%d đã được xác nhận. Cảm ơn bạn đã đặt bánh!", rec.ID)
}
