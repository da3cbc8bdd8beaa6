// Package fixture loads candle fixtures from JSON.
//
// Accepted layouts:
//   - Binance REST kline rows: [[openTime, "open", "high", "low", "close", "volume", ...], ...]
//   - objects: [{"time": ..., "open": ..., ...}] with short keys (t, o, h, l, c, v) allowed
//   - a wrapper object {"candles": [...]}
//   - newline-delimited kline stream events ({"k": {...}} per line)
//
// Numbers may be JSON numbers or strings.
package fixture

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/tidwall/gjson"

	"github.com/egisz/crypto-trading-bot/internal/model"
)

// ErrInvalidJSON is returned for input that is not valid JSON.
var ErrInvalidJSON = errors.New("fixture: invalid JSON")

var aliases = struct {
	time, open, high, low, close, volume []string
}{
	time:   []string{"time", "t", "openTime", "open_time", "timestamp"},
	open:   []string{"open", "o"},
	high:   []string{"high", "h"},
	low:    []string{"low", "l"},
	close:  []string{"close", "c"},
	volume: []string{"volume", "v"},
}

// Load reads path and returns the candles as a validated series.
func Load(path string) (*model.Series, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("fixture: read %s: %w", path, err)
	}
	candles, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("fixture %s: %w", path, err)
	}
	return model.NewSeries(candles)
}

// Parse decodes candles in file order.
func Parse(data []byte) ([]model.Candle, error) {
	if gjson.ValidBytes(data) {
		doc := gjson.ParseBytes(data)
		switch {
		case doc.IsArray():
			return parseRows(doc)
		case doc.IsObject() && doc.Get("candles").IsArray():
			return parseRows(doc.Get("candles"))
		}
	}
	return parseLines(data)
}

func parseRows(arr gjson.Result) ([]model.Candle, error) {
	rows := arr.Array()
	out := make([]model.Candle, 0, len(rows))
	for i, row := range rows {
		c, err := parseCandle(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out = append(out, c)
	}
	return out, nil
}

func parseLines(data []byte) ([]model.Candle, error) {
	var out []model.Candle
	for i, line := range bytes.Split(data, []byte("\n")) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		if !gjson.ValidBytes(line) {
			return nil, fmt.Errorf("line %d: %w", i+1, ErrInvalidJSON)
		}
		c, err := parseCandle(gjson.ParseBytes(line))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		out = append(out, c)
	}
	if out == nil {
		return nil, ErrInvalidJSON
	}
	return out, nil
}

func parseCandle(v gjson.Result) (model.Candle, error) {
	if v.IsArray() {
		row := v.Array()
		if len(row) < 6 {
			return model.Candle{}, fmt.Errorf("kline row has %d columns, want at least 6", len(row))
		}
		return model.Candle{
			Time:   row[0].Int(),
			Open:   row[1].Float(),
			High:   row[2].Float(),
			Low:    row[3].Float(),
			Close:  row[4].Float(),
			Volume: row[5].Float(),
		}, nil
	}
	if !v.IsObject() {
		return model.Candle{}, fmt.Errorf("unexpected %s value", v.Type)
	}
	if k := v.Get("k"); k.IsObject() {
		v = k
	}

	t, ok := first(v, aliases.time)
	if !ok {
		return model.Candle{}, errors.New("missing time")
	}
	c := model.Candle{Time: t.Int()}
	for _, f := range []struct {
		dst  *float64
		keys []string
	}{
		{&c.Open, aliases.open},
		{&c.High, aliases.high},
		{&c.Low, aliases.low},
		{&c.Close, aliases.close},
		{&c.Volume, aliases.volume},
	} {
		r, ok := first(v, f.keys)
		if !ok {
			return model.Candle{}, fmt.Errorf("missing %s", f.keys[0])
		}
		*f.dst = r.Float()
	}
	return c, nil
}

func first(v gjson.Result, keys []string) (gjson.Result, bool) {
	for _, k := range keys {
		if r := v.Get(k); r.Exists() {
			return r, true
		}
	}
	return gjson.Result{}, false
}
