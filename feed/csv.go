// Package feed supplies tick streams for the simulation: CSV files,
// optionally xz- or gzip-compressed, and a synthetic random walk.
package feed

import (
	"compress/gzip"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ulikunitz/xz"

	"github.com/zuchengchen/martingrid/market"
)

// CSVFeed streams ticks from a CSV file with a header row. Required
// columns: time, symbol, price, quantity. Optional: buyer_initiated,
// trade_id. Time is RFC3339 or unix milliseconds. Rows repeating the
// previous trade ID are dropped as exchange-side duplicates.
type CSVFeed struct {
	r       *csv.Reader
	closers []io.Closer
	cols    map[string]int
	line    int
	lastID  int64
}

// OpenCSV opens a tick file, decompressing by extension (.xz, .gz).
func OpenCSV(path string) (*CSVFeed, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open tick file: %w", err)
	}

	var src io.Reader = f
	closers := []io.Closer{f}
	switch {
	case strings.HasSuffix(path, ".xz"):
		xr, err := xz.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("xz reader: %w", err)
		}
		src = xr
	case strings.HasSuffix(path, ".gz"):
		gr, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("gzip reader: %w", err)
		}
		src = gr
		closers = append([]io.Closer{gr}, closers...)
	}

	r := csv.NewReader(src)
	r.ReuseRecord = true

	header, err := r.Read()
	if err != nil {
		closeAll(closers)
		return nil, fmt.Errorf("read header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"time", "symbol", "price", "quantity"} {
		if _, ok := cols[required]; !ok {
			closeAll(closers)
			return nil, fmt.Errorf("tick file missing column %q", required)
		}
	}

	return &CSVFeed{r: r, closers: closers, cols: cols, line: 1, lastID: -1}, nil
}

func (f *CSVFeed) Next() (market.Tick, bool, error) {
	for {
		rec, err := f.r.Read()
		if err == io.EOF {
			return market.Tick{}, false, nil
		}
		if err != nil {
			return market.Tick{}, false, err
		}
		f.line++

		t, err := f.parse(rec)
		if err != nil {
			return market.Tick{}, false, fmt.Errorf("line %d: %w", f.line, err)
		}

		if t.TradeID > 0 && t.TradeID == f.lastID {
			continue
		}
		if t.TradeID > 0 {
			f.lastID = t.TradeID
		}
		return t, true, nil
	}
}

func (f *CSVFeed) parse(rec []string) (market.Tick, error) {
	field := func(name string) string {
		i, ok := f.cols[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	ts, err := parseTime(field("time"))
	if err != nil {
		return market.Tick{}, err
	}

	price, err := strconv.ParseFloat(field("price"), 64)
	if err != nil {
		return market.Tick{}, fmt.Errorf("price: %w", err)
	}
	if price <= 0 {
		return market.Tick{}, fmt.Errorf("price must be positive, got %v", price)
	}

	qty, err := strconv.ParseFloat(field("quantity"), 64)
	if err != nil {
		return market.Tick{}, fmt.Errorf("quantity: %w", err)
	}

	t := market.Tick{
		Time:     ts,
		Symbol:   field("symbol"),
		Price:    price,
		Quantity: qty,
	}
	if t.Symbol == "" {
		return market.Tick{}, fmt.Errorf("empty symbol")
	}

	if s := field("buyer_initiated"); s != "" {
		t.BuyerInitiated = s == "true" || s == "1"
	}
	if s := field("trade_id"); s != "" {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return market.Tick{}, fmt.Errorf("trade_id: %w", err)
		}
		t.TradeID = id
	}
	return t, nil
}

func (f *CSVFeed) Close() error {
	return closeAll(f.closers)
}

func closeAll(closers []io.Closer) error {
	var first error
	for _, c := range closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func parseTime(s string) (time.Time, error) {
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("time %q: %w", s, err)
	}
	return t, nil
}
