package models

// Page is the envelope for list endpoints: the total count alongside
// the requested slice of items.
type Page[T any] struct {
	Count int `json:"count"`
	Items []T `json:"items"`
}

func NewPage[T any](count int, items []T) Page[T] {
	if items == nil {
		items = []T{}
	}

	return Page[T]{Count: count, Items: items}
}
