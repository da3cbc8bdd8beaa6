package model

import (
	"errors"
	"testing"
	"time"
)

func TestNewSeries_SortsAscending(t *testing.T) {
	s, err := NewSeries([]Candle{
		{Time: 300, Close: 3},
		{Time: 100, Close: 1},
		{Time: 200, Close: 2},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Len() != 3 {
		t.Fatalf("expected 3 candles, got %d", s.Len())
	}
	for i, want := range []int64{100, 200, 300} {
		if got := s.At(i).Time; got != want {
			t.Errorf("index %d: time=%d, want %d", i, got, want)
		}
	}
}

func TestNewSeries_RejectsDuplicateTime(t *testing.T) {
	_, err := NewSeries([]Candle{{Time: 1}, {Time: 2}, {Time: 1}})
	if !errors.Is(err, ErrDuplicateTime) {
		t.Fatalf("expected ErrDuplicateTime, got %v", err)
	}
}

func TestNewSeries_DoesNotAliasInput(t *testing.T) {
	in := []Candle{{Time: 1, Close: 10}}
	s := MustSeries(in)
	in[0].Close = 99
	if s.At(0).Close != 10 {
		t.Errorf("series mutated through input slice: close=%v", s.At(0).Close)
	}

	out := s.Candles()
	out[0].Close = 42
	if s.At(0).Close != 10 {
		t.Errorf("series mutated through Candles() copy: close=%v", s.At(0).Close)
	}
}

func TestSeries_Slice(t *testing.T) {
	s := MustSeries([]Candle{{Time: 1}, {Time: 2}, {Time: 3}})
	if got := s.Slice(2).Len(); got != 2 {
		t.Errorf("Slice(2).Len()=%d, want 2", got)
	}
	if got := s.Slice(10).Len(); got != 3 {
		t.Errorf("Slice(10).Len()=%d, want 3", got)
	}
	if got := s.Slice(-1).Len(); got != 0 {
		t.Errorf("Slice(-1).Len()=%d, want 0", got)
	}
}

func TestCandle_Field(t *testing.T) {
	c := Candle{Open: 1, High: 4, Low: 2, Close: 3, Volume: 10}
	cases := map[string]float64{
		FieldOpen:   1,
		FieldHigh:   4,
		FieldLow:    2,
		FieldClose:  3,
		FieldVolume: 10,
		FieldHL2:    3,
		FieldHLC3:   3,
		FieldOHLC4:  2.5,
	}
	for name, want := range cases {
		got, err := c.Field(name)
		if err != nil {
			t.Fatalf("%s: unexpected error %v", name, err)
		}
		if got != want {
			t.Errorf("%s: got %v, want %v", name, got, want)
		}
	}
	if _, err := c.Field("vwap"); !errors.Is(err, ErrUnknownField) {
		t.Errorf("expected ErrUnknownField, got %v", err)
	}
}

func TestSeries_Field(t *testing.T) {
	s := MustSeries([]Candle{{Time: 1, Close: 5}, {Time: 2, Close: 6}})
	got, err := s.Field(FieldClose)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0] != 5 || got[1] != 6 {
		t.Errorf("unexpected closes: %v", got)
	}
}

func TestCandle_Timestamp(t *testing.T) {
	sec := Candle{Time: 1700000000}
	ms := Candle{Time: 1700000000000}
	if !sec.Timestamp().Equal(ms.Timestamp()) {
		t.Errorf("seconds %v and milliseconds %v differ", sec.Timestamp(), ms.Timestamp())
	}
	if got := sec.Timestamp().Weekday(); got != time.Tuesday {
		t.Errorf("weekday %v, want Tuesday", got)
	}
}

func TestSeries_AtResultMethods(t *testing.T) {
	s := MustSeries([]Candle{{Time: 1700000000, High: 3, Low: 1, Close: 2}})
	// At returns a value; its methods must be callable without a local copy
	if got := s.At(0).Timestamp().Weekday(); got != time.Tuesday {
		t.Errorf("weekday %v, want Tuesday", got)
	}
	if f, err := s.At(0).Field("hl2"); err != nil || f != 2 {
		t.Errorf("hl2 = %v, %v", f, err)
	}
	if len(s.At(0).JSON()) == 0 {
		t.Error("empty JSON")
	}
}
