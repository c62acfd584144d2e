package orders

import "strings"

// NormalizeItemName is the identity key of a line item: trimmed and lower-cased.
// Merge and the completeness check both compare items through it.
func NormalizeItemName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Merge folds a fragment into an existing record and returns the result; old is
// not modified.
//
// Scalar fields follow last-non-blank-wins: a value from the fragment replaces
// the old one only if it is non-blank after trimming, so a blank fragment never
// erases known data. Items are merged by normalized name: a known name gets the
// fragment's quantity, an unknown name is appended. First-seen order is kept.
// ID, status and timestamps are carried over from old untouched.
func Merge(old OrderRecord, frag Fragment) OrderRecord {
	merged := old.Clone()

	merged.CustomerName = pick(old.CustomerName, frag.CustomerName)
	merged.Phone = pick(old.Phone, frag.Phone)
	merged.Address = pick(old.Address, frag.Address)
	merged.DeliveryTime = pick(old.DeliveryTime, frag.DeliveryTime)
	merged.Note = pick(old.Note, frag.Note)
	merged.Items = mergeItems(old.Items, frag.Items)

	return merged
}

func pick(old, next string) string {
	if v := strings.TrimSpace(next); v != "" {
		return v
	}
	return old
}

func mergeItems(old, incoming []LineItem) []LineItem {
	out := make([]LineItem, 0, len(old)+len(incoming))
	index := make(map[string]int, len(old)+len(incoming))

	add := func(it LineItem) {
		key := NormalizeItemName(it.Name)
		if key == "" || it.Quantity < 1 {
			return
		}
		if i, ok := index[key]; ok {
			out[i].Quantity = it.Quantity
			return
		}
		index[key] = len(out)
		out = append(out, LineItem{Name: strings.TrimSpace(it.Name), Quantity: it.Quantity})
	}

	for _, it := range old {
		add(it)
	}
	for _, it := range incoming {
		add(it)
	}
	return out
}
