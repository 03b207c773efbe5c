package model

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// snapshotDTO is the wire form of a snapshot for the cache and the audit
// input archive. Series become date-keyed maps of decimal strings so the
// round trip is exact.
type snapshotDTO struct {
	AsOf       time.Time                    `json:"as_of"`
	ValidUntil time.Time                    `json:"valid_until"`
	Prices     map[string]map[string]string `json:"prices"`
	Rates      map[string]map[string]string `json:"rates"`
	Dividends  map[string][]DividendEvent   `json:"dividends"`
}

// MarshalJSON renders the snapshot in its wire form.
func (s *MarketDataSnapshot) MarshalJSON() ([]byte, error) {
	dto := snapshotDTO{
		AsOf:       s.AsOf,
		ValidUntil: s.ValidUntil,
		Prices:     make(map[string]map[string]string, len(s.prices)),
		Rates:      make(map[string]map[string]string, len(s.rates)),
		Dividends:  s.dividends,
	}
	for u, ser := range s.prices {
		dto.Prices[u] = seriesToMap(ser)
	}
	for idx, ser := range s.rates {
		dto.Rates[idx] = seriesToMap(ser)
	}
	return json.Marshal(dto)
}

// UnmarshalJSON rebuilds the snapshot from its wire form.
func (s *MarketDataSnapshot) UnmarshalJSON(data []byte) error {
	var dto snapshotDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return err
	}
	s.AsOf = dto.AsOf
	s.ValidUntil = dto.ValidUntil
	s.prices = make(map[string]*Series, len(dto.Prices))
	s.rates = make(map[string]*Series, len(dto.Rates))
	s.dividends = dto.Dividends
	if s.dividends == nil {
		s.dividends = make(map[string][]DividendEvent)
	}
	for u, m := range dto.Prices {
		ser, err := seriesFromMap(m)
		if err != nil {
			return err
		}
		s.prices[u] = ser
	}
	for idx, m := range dto.Rates {
		ser, err := seriesFromMap(m)
		if err != nil {
			return err
		}
		s.rates[idx] = ser
	}
	return nil
}

func seriesToMap(ser *Series) map[string]string {
	out := make(map[string]string, ser.Len())
	ser.m.Scan(func(k string, v decimal.Decimal) bool {
		out[k] = v.String()
		return true
	})
	return out
}

func seriesFromMap(m map[string]string) (*Series, error) {
	ser := NewSeries()
	for k, v := range m {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return nil, err
		}
		ser.m.Set(k, d)
	}
	return ser, nil
}
