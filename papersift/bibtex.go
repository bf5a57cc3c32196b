package papersift

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"yashubustudio/papersift/selection"
)

var (
	yearPattern    = regexp.MustCompile(`\d{4}`)
	nonLetter      = regexp.MustCompile(`[^a-zA-Z]`)
	nonLowerLetter = regexp.MustCompile(`[^a-z]`)
)

// bibFields maps export columns to BibTeX fields; the first non-empty column
// wins when several map to the same field.
var bibFields = []struct {
	column string
	field  string
}{
	{"Title", "title"},
	{"Author", "author"},
	{"Publication Year", "year"},
	{"Year", "year"},
	{"Abstract Note", "abstract"},
	{"Abstract", "abstract"},
	{"DOI", "doi"},
	{"URL", "url"},
	{"Publication Title", "journal"},
	{"Journal", "journal"},
	{"Publisher", "publisher"},
	{"Volume", "volume"},
	{"Issue", "number"},
	{"Pages", "pages"},
	{"Book Title", "booktitle"},
	{"Conference Name", "booktitle"},
	{"Series", "series"},
	{"Edition", "edition"},
	{"Place", "address"},
	{"ISBN", "isbn"},
	{"ISSN", "issn"},
}

var itemTypes = map[string]string{
	"journalarticle":  "article",
	"conferencepaper": "inproceedings",
	"book":            "book",
	"booksection":     "incollection",
	"thesis":          "phdthesis",
	"report":          "techreport",
	"webpage":         "misc",
	"preprint":        "article",
	"manuscript":      "unpublished",
}

// EscapeBibTeX escapes characters that BibTeX treats specially.
func EscapeBibTeX(text string) string {
	return strings.NewReplacer(
		"{", `\{`,
		"}", `\}`,
		"%", `\%`,
		"&", `\&`,
		"_", `\_`,
	).Replace(text)
}

// EntryType maps an export item type such as "journalArticle" to a BibTeX entry type.
func EntryType(itemType string) string {
	key := nonLowerLetter.ReplaceAllString(strings.ToLower(itemType), "")
	if t, ok := itemTypes[key]; ok {
		return t
	}
	return "article"
}

// CitationKey builds "<LastName><Year>_<index>" from the first author and year.
func CitationKey(author, year string, index int) string {
	last := firstAuthorLastName(author)
	key := last
	if y := strings.TrimSpace(year); y != "" {
		if m := yearPattern.FindString(y); m != "" {
			y = m
		}
		key += y
	}
	return fmt.Sprintf("%s_%d", key, index)
}

func firstAuthorLastName(author string) string {
	author = strings.TrimSpace(author)
	if author == "" {
		return "Unknown"
	}
	var last string
	switch {
	case strings.Contains(author, ","):
		last = strings.TrimSpace(strings.SplitN(author, ",", 2)[0])
	case strings.Contains(author, ";"):
		first := strings.TrimSpace(strings.SplitN(author, ";", 2)[0])
		parts := strings.Fields(first)
		if len(parts) == 0 {
			return "Unknown"
		}
		last = parts[len(parts)-1]
	default:
		parts := strings.Fields(author)
		last = parts[len(parts)-1]
	}
	return nonLetter.ReplaceAllString(last, "")
}

// BibEntry renders one BibTeX entry from a header/row pair; index is 1-based.
func BibEntry(header, row []string, index int) string {
	get := func(col string) string {
		for i, h := range header {
			if h == col && i < len(row) {
				return strings.TrimSpace(row[i])
			}
		}
		return ""
	}
	year := get("Publication Year")
	if year == "" {
		year = get("Year")
	}
	itemType := get("Item Type")
	var b strings.Builder
	fmt.Fprintf(&b, "@%s{%s,\n", EntryType(itemType), CitationKey(get("Author"), year, index))
	written := make(map[string]bool)
	for _, m := range bibFields {
		if written[m.field] {
			continue
		}
		raw := get(m.column)
		if raw == "" {
			continue
		}
		value := EscapeBibTeX(raw)
		switch m.field {
		case "author":
			value = strings.ReplaceAll(value, ";", " and")
		case "year":
			if y := yearPattern.FindString(value); y != "" {
				value = y
			}
		}
		fmt.Fprintf(&b, "  %s = {%s},\n", m.field, value)
		written[m.field] = true
	}
	b.WriteString("}\n")
	return b.String()
}

// ConvertCSVToBibTeX converts every row of a CSV export to BibTeX entries
// and returns how many were written.
func ConvertCSVToBibTeX(r io.Reader, w io.Writer) (int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	rows, err := reader.ReadAll()
	if err != nil {
		return 0, fmt.Errorf("parse csv: %w", err)
	}
	if len(rows) == 0 {
		return 0, ErrEmptyLibrary
	}
	header := make([]string, len(rows[0]))
	for i, c := range rows[0] {
		header[i] = cleanCell(c)
	}
	return writeBibEntries(w, header, rows[1:])
}

// WriteSelectedBibTeX writes the selected papers of lib as BibTeX entries,
// highest score first, and returns how many were written.
func WriteSelectedBibTeX(w io.Writer, lib *Library, res selection.Result) (int, error) {
	ranked := rankByScore(res.Selected)
	rows := make([][]string, 0, len(ranked))
	for _, item := range ranked {
		if item.Index < 0 || item.Index >= len(lib.Rows) {
			return 0, fmt.Errorf("selected index %d outside library of %d rows", item.Index, len(lib.Rows))
		}
		rows = append(rows, lib.Rows[item.Index])
	}
	return writeBibEntries(w, lib.Header, rows)
}

func writeBibEntries(w io.Writer, header []string, rows [][]string) (int, error) {
	bw := bufio.NewWriter(w)
	n := 0
	for _, row := range rows {
		if isBlankRow(row) {
			continue
		}
		if n > 0 {
			if _, err := bw.WriteString("\n"); err != nil {
				return n, err
			}
		}
		n++
		if _, err := bw.WriteString(BibEntry(header, row, n)); err != nil {
			return n, fmt.Errorf("write entry: %w", err)
		}
	}
	if err := bw.Flush(); err != nil {
		return n, fmt.Errorf("write bibtex: %w", err)
	}
	return n, nil
}

// ConvertCSVFileToBibTeX converts inPath to outPath, creating the output directory.
func ConvertCSVFileToBibTeX(inPath, outPath string) (int, error) {
	in, err := os.Open(inPath)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", filepath.Base(inPath), err)
	}
	defer in.Close()
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return 0, fmt.Errorf("create output dir: %w", err)
	}
	out, err := os.Create(outPath)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", filepath.Base(outPath), err)
	}
	n, err := ConvertCSVToBibTeX(in, out)
	if err != nil {
		out.Close()
		return n, err
	}
	return n, out.Close()
}
