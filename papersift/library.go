package papersift

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ParseOptions chooses which columns map to paper fields.
// Empty column names are auto-detected from Candidates; "#N" selects the
// N-th column (1-based).
type ParseOptions struct {
	KeyColumn      string
	TitleColumn    string
	AbstractColumn string
	Candidates     ColumnCandidates
	Separator      string
}

// LibraryMetadata provides header information and automatic column suggestions.
type LibraryMetadata struct {
	Columns   []string
	Suggested ParseOptions
}

// Library is a parsed bibliographic export. Rows keep every original cell so
// exports can pass unknown columns through unchanged.
type Library struct {
	Header         []string
	Rows           [][]string
	Papers         []Paper
	KeyColumn      string
	TitleColumn    string
	AbstractColumn string
	Comma          rune
}

// Len returns the number of papers.
func (l *Library) Len() int {
	if l == nil {
		return 0
	}
	return len(l.Papers)
}

// Texts returns the embedding text of every paper in order.
func (l *Library) Texts() []string {
	out := make([]string, len(l.Papers))
	for i, p := range l.Papers {
		out[i] = p.Text
	}
	return out
}

// Field returns the named column of row i, or "" when absent.
func (l *Library) Field(i int, column string) string {
	idx := indexOf(l.Header, column)
	if idx < 0 || i < 0 || i >= len(l.Rows) || idx >= len(l.Rows[i]) {
		return ""
	}
	return l.Rows[i][idx]
}

// ValidationReport summarises how complete a library is.
type ValidationReport struct {
	Total         int
	WithTitle     int
	WithAbstract  int
	MissingTitles int
}

// Warnings lists human readable notes about incomplete rows.
func (r ValidationReport) Warnings() []string {
	var out []string
	if r.MissingTitles > 0 {
		out = append(out, fmt.Sprintf("%d papers have no title", r.MissingTitles))
	}
	if missing := r.Total - r.WithAbstract; missing > 0 {
		out = append(out, fmt.Sprintf("%d papers have no abstract", missing))
	}
	return out
}

func commaFor(path string) rune {
	if strings.EqualFold(filepath.Ext(path), ".tsv") {
		return '\t'
	}
	return ','
}

// ReadLibrary reads a CSV (or .tsv) export from disk.
func ReadLibrary(path string, opts ParseOptions) (*Library, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()
	lib, err := ParseLibrary(f, commaFor(path), opts)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	return lib, nil
}

// ParseLibrary parses a delimited export with a header row.
func ParseLibrary(r io.Reader, comma rune, opts ParseOptions) (*Library, error) {
	reader := csv.NewReader(r)
	reader.Comma = comma
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrEmptyLibrary
	}
	header := make([]string, len(rows[0]))
	for i, cell := range rows[0] {
		header[i] = cleanCell(cell)
	}
	cols, err := resolveColumns(header, opts)
	if err != nil {
		return nil, err
	}
	sep := opts.Separator
	if sep == "" {
		sep = DefaultSeparator
	}
	lib := &Library{
		Header:         header,
		Rows:           make([][]string, 0, len(rows)-1),
		Papers:         make([]Paper, 0, len(rows)-1),
		KeyColumn:      headerName(header, cols.key),
		TitleColumn:    headerName(header, cols.title),
		AbstractColumn: headerName(header, cols.abstract),
		Comma:          comma,
	}
	for n, row := range rows[1:] {
		if isBlankRow(row) {
			continue
		}
		padded := make([]string, max(len(header), len(row)))
		copy(padded, row)
		p := Paper{Row: n + 1}
		p.Title = cell(padded, cols.title)
		p.Abstract = cell(padded, cols.abstract)
		p.ID = cell(padded, cols.key)
		if p.ID == "" {
			p.ID = "row-" + strconv.Itoa(p.Row)
		}
		p.Text = CombineTitleAbstract(p.Title, p.Abstract, sep)
		lib.Rows = append(lib.Rows, padded)
		lib.Papers = append(lib.Papers, p)
	}
	return lib, nil
}

// ValidateLibrary checks a library is usable for selection.
func ValidateLibrary(lib *Library) (ValidationReport, error) {
	if lib == nil || len(lib.Papers) == 0 {
		return ValidationReport{}, ErrEmptyLibrary
	}
	rep := ValidationReport{Total: len(lib.Papers)}
	for _, p := range lib.Papers {
		if strings.TrimSpace(p.Title) != "" {
			rep.WithTitle++
		}
		if strings.TrimSpace(p.Abstract) != "" {
			rep.WithAbstract++
		}
	}
	rep.MissingTitles = rep.Total - rep.WithTitle
	if rep.WithTitle == 0 {
		return rep, ErrNoTitles
	}
	return rep, nil
}

// ReadLibraryMetadata returns the header of a delimited export and the columns
// that auto-detection would pick.
func ReadLibraryMetadata(path string, candidates ColumnCandidates) (LibraryMetadata, error) {
	meta := LibraryMetadata{}
	f, err := os.Open(path)
	if err != nil {
		return meta, fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()
	reader := csv.NewReader(f)
	reader.Comma = commaFor(path)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	row, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return meta, nil
		}
		return meta, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	header := make([]string, len(row))
	for i, c := range row {
		header[i] = cleanCell(c)
	}
	meta.Columns = header
	candidates = candidates.withDefaults()
	meta.Suggested = ParseOptions{
		KeyColumn:      headerName(header, findColumn(header, candidates.Key)),
		TitleColumn:    headerName(header, findColumn(header, candidates.Title)),
		AbstractColumn: headerName(header, findColumn(header, candidates.Abstract)),
		Candidates:     candidates,
	}
	return meta, nil
}

// LoadReferenceText reads the reference description from a text file.
func LoadReferenceText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read reference: %w", err)
	}
	text := strings.TrimSpace(strings.TrimPrefix(string(data), "\ufeff"))
	if text == "" {
		return "", fmt.Errorf("%s: %w", filepath.Base(path), ErrEmptyReference)
	}
	return text, nil
}

type libraryColumns struct {
	key      int
	title    int
	abstract int
}

func resolveColumns(header []string, opts ParseOptions) (libraryColumns, error) {
	candidates := opts.Candidates.withDefaults()
	var cols libraryColumns
	var err error
	if cols.title, err = pickColumn(header, opts.TitleColumn, candidates.Title); err != nil {
		return cols, err
	}
	if cols.title < 0 {
		return cols, fmt.Errorf("%w (tried %s; available: %s)", ErrNoTitleColumn,
			strings.Join(candidates.Title, ", "), strings.Join(header, ", "))
	}
	if cols.abstract, err = pickColumn(header, opts.AbstractColumn, candidates.Abstract); err != nil {
		return cols, err
	}
	if cols.abstract < 0 {
		return cols, fmt.Errorf("%w (tried %s; available: %s)", ErrNoAbstractColumn,
			strings.Join(candidates.Abstract, ", "), strings.Join(header, ", "))
	}
	if cols.key, err = pickColumn(header, opts.KeyColumn, candidates.Key); err != nil {
		return cols, err
	}
	return cols, nil
}

func cleanCell(v string) string {
	v = strings.TrimSpace(v)
	v = strings.TrimPrefix(v, "\ufeff")
	return v
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return cleanCell(row[idx])
}

func isBlankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// findColumn returns the first header matching a candidate, candidates in priority order.
func findColumn(header []string, candidates []string) int {
	for _, cand := range candidates {
		for i, col := range header {
			if col == cand {
				return i
			}
		}
	}
	for _, cand := range candidates {
		for i, col := range header {
			if strings.EqualFold(col, cand) {
				return i
			}
		}
	}
	return -1
}

func indexOf(header []string, column string) int {
	for i, col := range header {
		if col == column {
			return i
		}
	}
	return -1
}

func pickColumn(header []string, explicit string, candidates []string) (int, error) {
	if strings.TrimSpace(explicit) != "" {
		return matchExplicitColumn(header, explicit)
	}
	return findColumn(header, candidates), nil
}

func matchExplicitColumn(header []string, explicit string) (int, error) {
	trimmed := strings.TrimSpace(explicit)
	for i, col := range header {
		if strings.EqualFold(col, trimmed) {
			return i, nil
		}
	}
	if strings.HasPrefix(trimmed, "#") {
		idx, err := parseColumnIndex(trimmed)
		if err != nil {
			return -1, err
		}
		if idx >= len(header) {
			return -1, fmt.Errorf("column index %s is out of range", trimmed)
		}
		return idx, nil
	}
	return -1, fmt.Errorf("column %q not found", explicit)
}

func parseColumnIndex(token string) (int, error) {
	trimmed := strings.TrimSpace(strings.TrimPrefix(token, "#"))
	idx, err := strconv.Atoi(trimmed)
	if err != nil {
		return -1, fmt.Errorf("invalid column index %q", token)
	}
	if idx <= 0 {
		return -1, fmt.Errorf("column indices are 1-based: %q", token)
	}
	return idx - 1, nil
}

func headerName(header []string, idx int) string {
	if idx < 0 {
		return ""
	}
	if idx < len(header) && header[idx] != "" {
		return header[idx]
	}
	return fmt.Sprintf("#%d", idx+1)
}
