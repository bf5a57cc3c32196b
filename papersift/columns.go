package papersift

// ColumnCandidates defines possible header names for auto-detecting library columns.
type ColumnCandidates struct {
	Title    []string `json:"title" toml:"title"`
	Abstract []string `json:"abstract" toml:"abstract"`
	Key      []string `json:"key" toml:"key"`
}

func defaultColumnCandidates() ColumnCandidates {
	return ColumnCandidates{
		Title:    []string{"Title", "title", "Publication Title"},
		Abstract: []string{"Abstract Note", "Abstract", "abstract", "Summary"},
		Key:      []string{"Key", "ID", "id"},
	}
}

// DefaultColumnCandidates returns the built-in column detection candidates.
func DefaultColumnCandidates() ColumnCandidates {
	return defaultColumnCandidates()
}

// withDefaults fills nil fields from the built-in candidates, so callers can
// override only the parts they need.
func (c ColumnCandidates) withDefaults() ColumnCandidates {
	defaults := defaultColumnCandidates()
	return ColumnCandidates{
		Title:    pickStrings(c.Title, defaults.Title),
		Abstract: pickStrings(c.Abstract, defaults.Abstract),
		Key:      pickStrings(c.Key, defaults.Key),
	}
}

func pickStrings(custom, fallback []string) []string {
	if custom == nil {
		return cloneStrings(fallback)
	}
	return cloneStrings(custom)
}

func cloneStrings(values []string) []string {
	if values == nil {
		return nil
	}
	out := make([]string, len(values))
	copy(out, values)
	return out
}
