package fixture

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/egisz/crypto-trading-bot/internal/model"
)

func TestParse_BinanceRows(t *testing.T) {
	data := `[
		[1700000060000, "101.5", "103", "100", "102", "12.5", 1700000119999, "0", 10],
		[1700000000000, "100", "102", "99", "101.5", "8", 1700000059999, "0", 7]
	]`
	got, err := Parse([]byte(data))
	if err != nil {
		t.Fatal(err)
	}
	want := model.Candle{Time: 1700000060000, Open: 101.5, High: 103, Low: 100, Close: 102, Volume: 12.5}
	if len(got) != 2 || got[0] != want {
		t.Fatalf("got %+v", got)
	}
}

func TestParse_Objects(t *testing.T) {
	data := `{"candles": [
		{"time": 1, "open": 1, "high": 2, "low": 0.5, "close": 1.5, "volume": 10},
		{"t": 2, "o": "1.5", "h": "2.5", "l": "1", "c": "2", "v": "11"}
	]}`
	got, err := Parse([]byte(data))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[1].Close != 2 || got[1].Volume != 11 || got[0].Low != 0.5 {
		t.Fatalf("got %+v", got)
	}
}

func TestParse_StreamLines(t *testing.T) {
	data := `{"e":"kline","k":{"t":1000,"o":"1","h":"2","l":"0.5","c":"1.5","v":"3"}}

{"e":"kline","k":{"t":2000,"o":"1.5","h":"2","l":"1","c":"1.8","v":"4"}}
`
	got, err := Parse([]byte(data))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[1].Time != 2000 || got[1].Close != 1.8 {
		t.Fatalf("got %+v", got)
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"empty", ""},
		{"truncated", "[[1, 2"},
		{"short row", `[[1, "2", "3"]]`},
		{"missing field", `[{"time": 1, "open": 1, "high": 1, "low": 1, "close": 1}]`},
		{"missing time", `[{"open": 1, "high": 1, "low": 1, "close": 1, "volume": 1}]`},
		{"scalar rows", `[1, 2]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.data)); err == nil {
				t.Error("expected error")
			}
		})
	}
	if _, err := Parse([]byte("not json")); !errors.Is(err, ErrInvalidJSON) {
		t.Errorf("expected ErrInvalidJSON, got %v", err)
	}
}

func TestLoad_SortsAndRejectsDuplicates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "candles.json")
	if err := os.WriteFile(path, []byte(`[[3,1,1,1,1,1],[1,1,1,1,1,1],[2,1,1,1,1,1]]`), 0o644); err != nil {
		t.Fatal(err)
	}
	s, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if s.Len() != 3 || s.At(0).Time != 1 || s.At(2).Time != 3 {
		t.Errorf("series not sorted: %+v", s.Candles())
	}

	dup := filepath.Join(dir, "dup.json")
	if err := os.WriteFile(dup, []byte(`[[1,1,1,1,1,1],[1,2,2,2,2,2]]`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(dup); !errors.Is(err, model.ErrDuplicateTime) {
		t.Errorf("expected ErrDuplicateTime, got %v", err)
	}
	if _, err := Load(filepath.Join(dir, "absent.json")); err == nil {
		t.Error("expected error for missing file")
	}
}
