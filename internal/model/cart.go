package model

type CartItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// Cart is a point-in-time snapshot. Callers get their own copy of Items.
type Cart struct {
	UserID string     `json:"user_id"`
	Items  []CartItem `json:"items"`
}

func NewCart(userID string, items []CartItem) Cart {
	cp := make([]CartItem, len(items))
	copy(cp, items)
	return Cart{UserID: userID, Items: cp}
}

func (c Cart) Quantity(productID string) int {
	for _, it := range c.Items {
		if it.ProductID == productID {
			return it.Quantity
		}
	}
	return 0
}
