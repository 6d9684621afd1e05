package domain

// OrderBook representa el libro de órdenes de un token.
type OrderBook struct {
	TokenID string
	Bids    []BookEntry // ordenados mayor a menor precio
	Asks    []BookEntry // ordenados menor a mayor precio
}

// BookEntry es un nivel de precio en el orderbook.
type BookEntry struct {
	Price float64
	Size  float64
}

// BestBidLevel devuelve el mejor nivel de compra. ok es false si no hay bids.
func (ob OrderBook) BestBidLevel() (BookEntry, bool) {
	if len(ob.Bids) == 0 {
		return BookEntry{}, false
	}
	return ob.Bids[0], true
}

// BestAskLevel devuelve el mejor nivel de venta. ok es false si no hay asks.
func (ob OrderBook) BestAskLevel() (BookEntry, bool) {
	if len(ob.Asks) == 0 {
		return BookEntry{}, false
	}
	return ob.Asks[0], true
}

// BestBid devuelve el mejor precio de compra (mayor bid).
// Devuelve 0 si el book está vacío.
func (ob OrderBook) BestBid() float64 {
	b, _ := ob.BestBidLevel()
	return b.Price
}

// BestAsk devuelve el mejor precio de venta (menor ask).
// Devuelve 0 si el book está vacío.
func (ob OrderBook) BestAsk() float64 {
	a, _ := ob.BestAskLevel()
	return a.Price
}

// Spread devuelve el spread del book (ask - bid).
// Devuelve 0 si falta cualquiera de los dos lados.
func (ob OrderBook) Spread() float64 {
	bid := ob.BestBid()
	ask := ob.BestAsk()
	if bid == 0 || ask == 0 {
		return 0
	}
	return ask - bid
}

// Quote es el resultado de una comprobación de liquidez superada.
type Quote struct {
	TokenID string
	Ask     float64
	AskSize float64
	Bid     float64 // 0 si no hay bids
	Spread  float64
}
