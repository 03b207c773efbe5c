package model

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/tidwall/btree"
)

// DividendEvent is a single dividend declaration in a snapshot's dividend
// series.
type DividendEvent struct {
	Underlier      string          `json:"underlier"`
	ExDate         time.Time       `json:"ex_date"`
	PayDate        time.Time       `json:"pay_date"`
	AmountPerShare decimal.Decimal `json:"amount_per_share"`
	Currency       string          `json:"currency"`
}

// Series is an ordered date-keyed value series. Keys are DateKey strings so
// the btree's lexical order matches chronological order, which makes the
// "most recent observation at or before day" lookup a single descending seek.
type Series struct {
	m *btree.Map[string, decimal.Decimal]
}

// NewSeries builds an empty series.
func NewSeries() *Series {
	return &Series{m: btree.NewMap[string, decimal.Decimal](32)}
}

// Set records an observation for the given date.
func (s *Series) Set(day time.Time, v decimal.Decimal) {
	s.m.Set(DateKey(day), v)
}

// At returns the observation on exactly the given date.
func (s *Series) At(day time.Time) (decimal.Decimal, bool) {
	return s.m.Get(DateKey(day))
}

// AtOrBefore returns the most recent observation at or before the given date.
// No interpolation: absence means the caller sees a miss, never a zero.
func (s *Series) AtOrBefore(day time.Time) (decimal.Decimal, bool) {
	var out decimal.Decimal
	found := false
	s.m.Descend(DateKey(day), func(_ string, v decimal.Decimal) bool {
		out = v
		found = true
		return false
	})
	return out, found
}

// Len returns the number of observations.
func (s *Series) Len() int { return s.m.Len() }

// Each visits every observation in chronological order.
func (s *Series) Each(fn func(day time.Time, v decimal.Decimal)) {
	s.m.Scan(func(k string, v decimal.Decimal) bool {
		day, err := time.Parse("2006-01-02", k)
		if err != nil {
			return true
		}
		fn(day, v)
		return true
	})
}

// Copy returns an independent copy of the series.
func (s *Series) Copy() *Series {
	return &Series{m: s.m.Copy()}
}

// MarketDataSnapshot is the full set of market inputs resolved for one
// calculation. It is immutable once resolved; recalculations resolve a fresh
// snapshot rather than mutating a prior one.
type MarketDataSnapshot struct {
	AsOf       time.Time
	ValidUntil time.Time

	prices    map[string]*Series // by underlier
	rates     map[string]*Series // by rate index
	dividends map[string][]DividendEvent
}

// NewMarketDataSnapshot builds an empty snapshot with the given validity
// window.
func NewMarketDataSnapshot(asOf time.Time, validity time.Duration) *MarketDataSnapshot {
	return &MarketDataSnapshot{
		AsOf:       asOf,
		ValidUntil: asOf.Add(validity),
		prices:     make(map[string]*Series),
		rates:      make(map[string]*Series),
		dividends:  make(map[string][]DividendEvent),
	}
}

// SetPrice records a closing price for an underlier on a date.
func (s *MarketDataSnapshot) SetPrice(underlier string, day time.Time, px decimal.Decimal) {
	ser, ok := s.prices[underlier]
	if !ok {
		ser = NewSeries()
		s.prices[underlier] = ser
	}
	ser.Set(day, px)
}

// SetRate records a rate fixing for an index on a date.
func (s *MarketDataSnapshot) SetRate(index string, day time.Time, rate decimal.Decimal) {
	ser, ok := s.rates[index]
	if !ok {
		ser = NewSeries()
		s.rates[index] = ser
	}
	ser.Set(day, rate)
}

// AddDividend appends a dividend event for an underlier.
func (s *MarketDataSnapshot) AddDividend(ev DividendEvent) {
	s.dividends[ev.Underlier] = append(s.dividends[ev.Underlier], ev)
}

// Price returns the closing price for the underlier on exactly the given day.
func (s *MarketDataSnapshot) Price(underlier string, day time.Time) (decimal.Decimal, bool) {
	ser, ok := s.prices[underlier]
	if !ok {
		return decimal.Decimal{}, false
	}
	return ser.At(day)
}

// PriceAtOrBefore returns the most recent closing price at or before day.
func (s *MarketDataSnapshot) PriceAtOrBefore(underlier string, day time.Time) (decimal.Decimal, bool) {
	ser, ok := s.prices[underlier]
	if !ok {
		return decimal.Decimal{}, false
	}
	return ser.AtOrBefore(day)
}

// RateAtOrBefore resolves the fixing for an index as of the most recent reset
// date at or before day.
func (s *MarketDataSnapshot) RateAtOrBefore(index string, day time.Time) (decimal.Decimal, bool) {
	ser, ok := s.rates[index]
	if !ok {
		return decimal.Decimal{}, false
	}
	return ser.AtOrBefore(day)
}

// Dividends returns the dividend events recorded for an underlier.
func (s *MarketDataSnapshot) Dividends(underlier string) []DividendEvent {
	return s.dividends[underlier]
}

// Expired reports whether the snapshot is past its validity window at the
// given instant.
func (s *MarketDataSnapshot) Expired(now time.Time) bool {
	return now.After(s.ValidUntil)
}

// Merge copies every observation from other into s. Used by the hybrid
// resolver when layering fallback sources.
func (s *MarketDataSnapshot) Merge(other *MarketDataSnapshot) {
	if other == nil {
		return
	}
	for u, ser := range other.prices {
		dst, ok := s.prices[u]
		if !ok {
			s.prices[u] = ser.Copy()
			continue
		}
		ser.m.Scan(func(k string, v decimal.Decimal) bool {
			if _, exists := dst.m.Get(k); !exists {
				dst.m.Set(k, v)
			}
			return true
		})
	}
	for idx, ser := range other.rates {
		dst, ok := s.rates[idx]
		if !ok {
			s.rates[idx] = ser.Copy()
			continue
		}
		ser.m.Scan(func(k string, v decimal.Decimal) bool {
			if _, exists := dst.m.Get(k); !exists {
				dst.m.Set(k, v)
			}
			return true
		})
	}
	for u, evs := range other.dividends {
		if _, ok := s.dividends[u]; !ok {
			s.dividends[u] = append([]DividendEvent(nil), evs...)
		}
	}
}
