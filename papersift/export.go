package papersift

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/parquet-go/parquet-go"

	"yashubustudio/papersift/selection"
)

// ScoreColumn is appended to exported rows.
const ScoreColumn = "similarity_score"

// WriteSelectedCSV writes the selected rows of lib with their scores,
// highest score first. Every original column is kept verbatim.
func WriteSelectedCSV(w io.Writer, lib *Library, res selection.Result) error {
	selected := rankByScore(res.Selected)
	writer := csv.NewWriter(w)
	if lib.Comma != 0 {
		writer.Comma = lib.Comma
	}
	width := len(lib.Header)
	for _, item := range selected {
		if item.Index < 0 || item.Index >= len(lib.Rows) {
			return fmt.Errorf("selected index %d outside library of %d rows", item.Index, len(lib.Rows))
		}
		width = max(width, len(lib.Rows[item.Index]))
	}
	// Ragged rows keep their extra cells; the score column stays last.
	header := make([]string, width, width+1)
	copy(header, lib.Header)
	if err := writer.Write(append(header, ScoreColumn)); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, item := range selected {
		row := make([]string, width, width+1)
		copy(row, lib.Rows[item.Index])
		row = append(row, strconv.FormatFloat(item.Score, 'f', 6, 64))
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

func rankByScore(items []selection.Scored) []selection.Scored {
	out := make([]selection.Scored, len(items))
	copy(out, items)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out
}

// SaveSelectedCSV writes the selected rows to path, creating its directory.
func SaveSelectedCSV(path string, lib *Library, res selection.Result) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	if err := WriteSelectedCSV(f, lib, res); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ScoreRow is one paper in the Parquet score export.
type ScoreRow struct {
	ID       string  `parquet:"id"`
	Row      int64   `parquet:"row"`
	Title    string  `parquet:"title,optional"`
	Score    float64 `parquet:"similarity_score"`
	Selected bool    `parquet:"selected"`
	Cutoff   float64 `parquet:"threshold"`
}

// ScoreRows lists every paper in input order with its score and selection flag.
func ScoreRows(lib *Library, res selection.Result) []ScoreRow {
	rows := make([]ScoreRow, 0, len(res.Selected)+len(res.Rejected))
	add := func(items []selection.Scored, selected bool) {
		for _, it := range items {
			r := ScoreRow{ID: it.ID, Score: it.Score, Selected: selected, Cutoff: res.Cutoff}
			if it.Index >= 0 && it.Index < len(lib.Papers) {
				r.Row = int64(lib.Papers[it.Index].Row)
				r.Title = lib.Papers[it.Index].Title
			}
			rows = append(rows, r)
		}
	}
	add(res.Selected, true)
	add(res.Rejected, false)
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Row < rows[j].Row })
	return rows
}

// WriteScoresParquet writes every scored paper, selected or not, to a Parquet file.
func WriteScoresParquet(path string, lib *Library, res selection.Result) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := parquet.WriteFile(path, ScoreRows(lib, res)); err != nil {
		return fmt.Errorf("write parquet: %w", err)
	}
	return nil
}
