package contracts

import "time"

// PriceBar 일별 가격 바
type PriceBar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// PriceSeries 시간순 정렬된 가격 시계열
// 거래일 오프셋은 캘린더 일수가 아니라 바 인덱스 차이로 계산한다.
type PriceSeries struct {
	Symbol string     `json:"symbol"`
	Bars   []PriceBar `json:"bars"`
}

// Len returns the number of bars in the series
func (s *PriceSeries) Len() int {
	return len(s.Bars)
}

// At returns the bar at index i
func (s *PriceSeries) At(i int) PriceBar {
	return s.Bars[i]
}

// IndexOf returns the index of the bar on the given date, or -1
func (s *PriceSeries) IndexOf(date time.Time) int {
	target := date.Format("2006-01-02")
	for i := range s.Bars {
		if s.Bars[i].Date.Format("2006-01-02") == target {
			return i
		}
	}
	return -1
}

// Closes returns the closing prices of all bars
func (s *PriceSeries) Closes() []float64 {
	closes := make([]float64, len(s.Bars))
	for i := range s.Bars {
		closes[i] = s.Bars[i].Close
	}
	return closes
}

// DailyReturns returns close-to-close returns (length Len()-1)
func (s *PriceSeries) DailyReturns() []float64 {
	if len(s.Bars) < 2 {
		return nil
	}

	returns := make([]float64, 0, len(s.Bars)-1)
	for i := 1; i < len(s.Bars); i++ {
		prev := s.Bars[i-1].Close
		if prev == 0 {
			returns = append(returns, 0)
			continue
		}
		returns = append(returns, (s.Bars[i].Close-prev)/prev)
	}
	return returns
}
