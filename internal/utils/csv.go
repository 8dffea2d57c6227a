package utils

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"fxengine/internal/domain"
)

// WriteBarsToCSV saves a bar sequence with a header row.
func WriteBarsToCSV(bars []domain.Bar, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	writer.Write([]string{"time", "symbol", "open", "high", "low", "close", "volume"})
	for _, b := range bars {
		writer.Write([]string{
			b.Time.Format(time.RFC3339),
			b.Symbol,
			strconv.FormatFloat(b.Open, 'f', -1, 64),
			strconv.FormatFloat(b.High, 'f', -1, 64),
			strconv.FormatFloat(b.Low, 'f', -1, 64),
			strconv.FormatFloat(b.Close, 'f', -1, 64),
			strconv.FormatFloat(b.Volume, 'f', -1, 64),
		})
	}
	return writer.Error()
}

// WriteTradesToCSV saves closed trades with a header row.
func WriteTradesToCSV(trades []*domain.Trade, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	writer.Write([]string{
		"position_id", "symbol", "direction", "lots",
		"entry_price", "exit_price", "entry_time", "exit_time",
		"profit", "bars_held", "exit_reason",
	})
	for _, t := range trades {
		writer.Write([]string{
			t.PositionID,
			t.Symbol,
			string(t.Direction),
			strconv.FormatFloat(t.Lots, 'f', -1, 64),
			strconv.FormatFloat(t.EntryPrice, 'f', -1, 64),
			strconv.FormatFloat(t.ExitPrice, 'f', -1, 64),
			t.EntryTime.Format(time.RFC3339),
			t.ExitTime.Format(time.RFC3339),
			strconv.FormatFloat(t.Profit, 'f', -1, 64),
			strconv.Itoa(t.BarsHeld),
			string(t.ExitReason),
		})
	}
	return writer.Error()
}

// ReadBarsFromCSV loads bars written by WriteBarsToCSV. Rows must be in
// strictly increasing time order; the simulator rejects anything else.
func ReadBarsFromCSV(filename string) ([]domain.Bar, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	if len(header) < 7 {
		return nil, fmt.Errorf("unexpected header with %d columns", len(header))
	}

	var bars []domain.Bar
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		bar, err := parseBarRecord(record)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

func parseBarRecord(record []string) (domain.Bar, error) {
	if len(record) < 7 {
		return domain.Bar{}, fmt.Errorf("expected 7 fields, got %d", len(record))
	}
	ts, err := time.Parse(time.RFC3339, record[0])
	if err != nil {
		return domain.Bar{}, fmt.Errorf("parsing time %q: %w", record[0], err)
	}
	fields := make([]float64, 5)
	for i, raw := range record[2:7] {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return domain.Bar{}, fmt.Errorf("parsing field %q: %w", raw, err)
		}
		fields[i] = v
	}
	return domain.Bar{
		Time:   ts,
		Symbol: record[1],
		Open:   fields[0],
		High:   fields[1],
		Low:    fields[2],
		Close:  fields[3],
		Volume: fields[4],
	}, nil
}
