package stock

// DefaultLowStockThreshold is applied when a record is provisioned without an
// explicit threshold. The stored value is always authoritative afterwards.
const DefaultLowStockThreshold int64 = 3

// AvailableToSell returns the sellable quantity: on-hand stock minus the
// units held by active reservations. It is the only place this derivation
// lives; callers must not recompute it inline.
func AvailableToSell(stockLevel, reservedStock int64) int64 {
	return stockLevel - reservedStock
}

// IsLowStock returns true when the sellable quantity has fallen to or below
// the threshold. A record that is out of stock is always low stock.
func IsLowStock(stockLevel, reservedStock, threshold int64) bool {
	return AvailableToSell(stockLevel, reservedStock) <= threshold
}

// IsOutOfStock returns true when nothing is sellable. Fully reserved records
// count as out of stock even while physical units remain on hand.
func IsOutOfStock(stockLevel, reservedStock int64) bool {
	return AvailableToSell(stockLevel, reservedStock) == 0
}
