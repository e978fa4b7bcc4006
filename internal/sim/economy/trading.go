package economy

import (
	"errors"
	"fmt"
	"math"

	"starconquest.ai/internal/sim/tuning"
)

// Market is one resource's price curve.
type Market struct {
	Resource      Resource
	MinPrice      float64
	MaxPrice      float64
	DesiredAmount int
	Stock         int
	Price         float64
}

func newMarket(r Resource, c tuning.MarketCurve) *Market {
	m := &Market{
		Resource:      r,
		MinPrice:      c.MinPrice,
		MaxPrice:      c.MaxPrice,
		DesiredAmount: c.DesiredAmount,
		Stock:         c.StartingStock,
	}
	m.Recalculate()
	return m
}

// Recalculate interpolates linearly from MaxPrice at zero stock to MinPrice at or above
// the desired amount.
func (m *Market) Recalculate() {
	fill := 1.0
	if m.DesiredAmount > 0 {
		fill = math.Min(float64(m.Stock)/float64(m.DesiredAmount), 1)
	}
	m.Price = m.MaxPrice - (m.MaxPrice-m.MinPrice)*fill
}

type TradeType uint8

const (
	TradeBuy TradeType = iota + 1
	TradeSell
)

func (t TradeType) String() string {
	switch t {
	case TradeBuy:
		return "BUY"
	case TradeSell:
		return "SELL"
	default:
		return "UNKNOWN"
	}
}

func ParseTradeType(s string) (TradeType, bool) {
	switch s {
	case "BUY":
		return TradeBuy, true
	case "SELL":
		return TradeSell, true
	}
	return 0, false
}

type TradeOrder struct {
	ID       uint64
	PlayerID string
	// Food is delivered to or taken from this planet.
	PlanetID uint64
	Resource Resource
	Type     TradeType
	Amount   int
}

type TradeResult struct {
	Order    *TradeOrder
	Executed bool
	Gold     int
	Reason   string
}

var (
	ErrBadTrade      = errors.New("invalid trade order")
	ErrTradeNotFound = errors.New("trade order not found")
)

type TradingCenter struct {
	Food    *Market
	Ore     *Market
	Iridium *Market
	// Pending orders in submission order.
	Orders []*TradeOrder
}

func NewTradingCenter(rules tuning.Market) *TradingCenter {
	return &TradingCenter{
		Food:    newMarket(ResourceFood, rules.Food),
		Ore:     newMarket(ResourceOre, rules.Ore),
		Iridium: newMarket(ResourceIridium, rules.Iridium),
	}
}

func (tc *TradingCenter) Market(r Resource) *Market {
	switch r {
	case ResourceFood:
		return tc.Food
	case ResourceOre:
		return tc.Ore
	case ResourceIridium:
		return tc.Iridium
	default:
		return nil
	}
}

func (tc *TradingCenter) Submit(o *TradeOrder) error {
	if o.Amount <= 0 {
		return fmt.Errorf("%w: amount %d", ErrBadTrade, o.Amount)
	}
	if tc.Market(o.Resource) == nil {
		return fmt.Errorf("%w: resource %s", ErrBadTrade, o.Resource)
	}
	if o.Type != TradeBuy && o.Type != TradeSell {
		return fmt.Errorf("%w: type %d", ErrBadTrade, o.Type)
	}
	tc.Orders = append(tc.Orders, o)
	return nil
}

func (tc *TradingCenter) Cancel(playerID string, orderID uint64) error {
	for i, o := range tc.Orders {
		if o.ID == orderID && o.PlayerID == playerID {
			tc.Orders = append(tc.Orders[:i], tc.Orders[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %d", ErrTradeNotFound, orderID)
}

// DropPlayer forgets a player's pending orders.
func (tc *TradingCenter) DropPlayer(playerID string) {
	out := tc.Orders[:0]
	for _, o := range tc.Orders {
		if o.PlayerID != playerID {
			out = append(out, o)
		}
	}
	tc.Orders = out
}

func BuyCost(amount int, price, fee float64) int {
	return int(math.Ceil(float64(amount) * price * (1 + fee)))
}

func SellProceeds(amount int, price, fee float64) int {
	return int(math.Floor(float64(amount) * price * (1 - fee)))
}

// Execute runs every pending order in submission order and clears the list. Each executed
// trade moves stock and reprices its market before the next order is considered.
func (tc *TradingCenter) Execute(players map[string]*Player, planets map[uint64]*Planet, fee float64) []TradeResult {
	orders := tc.Orders
	tc.Orders = nil
	out := make([]TradeResult, 0, len(orders))
	for _, o := range orders {
		out = append(out, tc.execute(o, players, planets, fee))
	}
	return out
}

func (tc *TradingCenter) execute(o *TradeOrder, players map[string]*Player, planets map[uint64]*Planet, fee float64) TradeResult {
	res := TradeResult{Order: o}
	pl := players[o.PlayerID]
	m := tc.Market(o.Resource)
	if pl == nil || m == nil {
		res.Reason = "unknown player or resource"
		return res
	}
	var planet *Planet
	if o.Resource == ResourceFood {
		planet = planets[o.PlanetID]
		if planet == nil || planet.OwnerID != pl.ID {
			res.Reason = "food planet not owned"
			return res
		}
	}

	switch o.Type {
	case TradeBuy:
		if m.Stock < o.Amount {
			res.Reason = "market stock too low"
			return res
		}
		cost := BuyCost(o.Amount, m.Price, fee)
		if pl.Ledger.Gold < cost {
			res.Reason = "not enough gold"
			return res
		}
		pl.Ledger.Gold -= cost
		switch o.Resource {
		case ResourceFood:
			planet.Food += o.Amount
		case ResourceOre:
			pl.Ledger.Ore += o.Amount
		case ResourceIridium:
			pl.Ledger.Iridium += o.Amount
		}
		m.Stock -= o.Amount
		res.Gold = -cost
	case TradeSell:
		switch o.Resource {
		case ResourceFood:
			if planet.Food < o.Amount {
				res.Reason = "not enough food"
				return res
			}
			planet.Food -= o.Amount
		case ResourceOre:
			if pl.Ledger.Ore < o.Amount {
				res.Reason = "not enough ore"
				return res
			}
			pl.Ledger.Ore -= o.Amount
		case ResourceIridium:
			if pl.Ledger.Iridium < o.Amount {
				res.Reason = "not enough iridium"
				return res
			}
			pl.Ledger.Iridium -= o.Amount
		}
		gold := SellProceeds(o.Amount, m.Price, fee)
		pl.Ledger.Gold += gold
		m.Stock += o.Amount
		res.Gold = gold
	}
	m.Recalculate()
	res.Executed = true
	return res
}
