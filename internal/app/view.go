package app

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"yashubustudio/papersift/papersift"
	"yashubustudio/papersift/selection"
)

type strategyChoice struct {
	Label  string
	Method string
}

const methodCustom = "custom"

var strategyChoices = []strategyChoice{
	{Label: "Auto (mean + 2σ)", Method: "auto"},
	{Label: "Lenient (mean + 1σ)", Method: "lenient"},
	{Label: "Median (top 50%)", Method: "median"},
	{Label: "Top 25%", Method: "top25"},
	{Label: "Top 10%", Method: "top10"},
	{Label: "Custom threshold", Method: methodCustom},
}

var errCustomValue = errors.New("enter a value for the custom threshold")

func strategyLabels() []string {
	out := make([]string, len(strategyChoices))
	for i, c := range strategyChoices {
		out[i] = c.Label
	}
	return out
}

func methodForLabel(label string) string {
	for _, c := range strategyChoices {
		if c.Label == label {
			return c.Method
		}
	}
	return ""
}

// labelForMethod maps a configured method name to its choice, falling back to Auto.
func labelForMethod(method string) string {
	method = strings.ToLower(strings.TrimSpace(method))
	switch method {
	case "mean_2std":
		method = "auto"
	case "mean_1std":
		method = "lenient"
	case "percentile_75":
		method = "top25"
	case "percentile_90":
		method = "top10"
	}
	for _, c := range strategyChoices {
		if c.Method == method {
			return c.Label
		}
	}
	return strategyChoices[0].Label
}

func specFor(label, custom string) (selection.ThresholdSpec, error) {
	method := methodForLabel(label)
	if method == methodCustom {
		if strings.TrimSpace(custom) == "" {
			return nil, errCustomValue
		}
		return papersift.ResolveThresholdSpec("", custom)
	}
	return selection.ParseThresholdSpec(method)
}

// rankSelected returns the selected papers, highest score first.
func rankSelected(res selection.Result) []selection.Scored {
	out := append([]selection.Scored(nil), res.Selected...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// barHeights scales bin counts so the tallest bar is maxHeight.
func barHeights(bins []selection.Bin, maxHeight float32) []float32 {
	peak := 0
	for _, b := range bins {
		peak = max(peak, b.Count)
	}
	out := make([]float32, len(bins))
	if peak == 0 {
		return out
	}
	for i, b := range bins {
		out[i] = maxHeight * float32(b.Count) / float32(peak)
	}
	return out
}

func encodingKey(model, reference string) string {
	return model + "\x00" + strings.TrimSpace(reference)
}

func librarySummary(name string, lib *papersift.Library, rep papersift.ValidationReport) string {
	abstract := lib.AbstractColumn
	if abstract == "" {
		abstract = "none"
	}
	return fmt.Sprintf("%s: %d papers (title: %s, abstract: %s, with abstract: %d)",
		name, rep.Total, lib.TitleColumn, abstract, rep.WithAbstract)
}

func truncateText(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max]) + "…"
}
