package app

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/data/binding"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"yashubustudio/papersift/internal/report"
	"yashubustudio/papersift/papersift"
	"yashubustudio/papersift/selection"
)

const (
	histogramHeight = 140
	histogramBarW   = 8
)

type tableColumn struct {
	Title  string
	Width  float32
	Render func(selection.Scored) string
}

type uiState struct {
	cfgMu  sync.Mutex
	cfg    papersift.Config
	pool   *papersift.EmbedderPool
	logger *log.Logger
	format *report.Formatter

	mu       sync.Mutex
	library  *papersift.Library
	libName  string
	encoding *papersift.Encoding
	encKey   string
	result   *selection.Result

	// rows is only touched on the UI goroutine.
	rows []selection.Scored

	w            fyne.Window
	reference    *widget.Entry
	model        *widget.Entry
	strategy     *widget.Select
	custom       *widget.Entry
	libLabel     *widget.Label
	stats        *widget.Label
	histogram    *fyne.Container
	progress     *widget.ProgressBar
	progressBind binding.Float
	statusBind   binding.String
	resTbl       *widget.Table
	columns      []tableColumn

	runBtn     *widget.Button
	loadBtn    *widget.Button
	refBtn     *widget.Button
	csvBtn     *widget.Button
	bibBtn     *widget.Button
	parquetBtn *widget.Button
}

func buildUI(a fyne.App, cfg papersift.Config, pool *papersift.EmbedderPool, logger *log.Logger, logBind binding.String) *uiState {
	u := &uiState{cfg: cfg, pool: pool, logger: logger, format: report.New()}
	u.format.NoColor = true
	u.w = a.NewWindow("PaperSift - semantic paper filter")

	u.statusBind = binding.NewString()
	_ = u.statusBind.Set("Ready")
	u.progressBind = binding.NewFloat()

	u.reference = widget.NewMultiLineEntry()
	u.reference.SetPlaceHolder("Describe the research topic you are looking for")
	u.reference.Wrapping = fyne.TextWrapWord
	u.reference.SetMinRowsVisible(6)

	u.model = widget.NewEntry()
	u.model.SetText(pool.DefaultModel())

	u.custom = widget.NewEntry()
	u.custom.SetPlaceHolder("e.g. 0.45")
	if cfg.Threshold.Value != nil {
		u.custom.SetText(fmt.Sprintf("%.4f", *cfg.Threshold.Value))
	}
	u.custom.OnSubmitted = func(string) { u.reselect() }

	u.strategy = widget.NewSelect(strategyLabels(), nil)
	initial := labelForMethod(cfg.Threshold.Method)
	if cfg.Threshold.Value != nil {
		initial = labelForMethod(methodCustom)
	}
	u.strategy.SetSelected(initial)
	if methodForLabel(initial) != methodCustom {
		u.custom.Disable()
	}
	u.strategy.OnChanged = func(string) { u.onStrategyChanged() }

	u.libLabel = widget.NewLabel("No library loaded")
	u.libLabel.Wrapping = fyne.TextWrapWord
	u.stats = widget.NewLabel("")
	u.stats.TextStyle = fyne.TextStyle{Monospace: true}
	u.histogram = container.NewHBox()

	u.progress = widget.NewProgressBarWithData(u.progressBind)
	u.progress.Hide()
	status := widget.NewLabelWithData(u.statusBind)

	logView := widget.NewEntryWithData(logBind)
	logView.MultiLine = true
	logView.Wrapping = fyne.TextWrapWord
	logView.Disable()

	u.loadBtn = widget.NewButtonWithIcon("Load CSV", theme.FolderOpenIcon(), func() { u.onLoadLibrary() })
	u.refBtn = widget.NewButtonWithIcon("Load reference", theme.DocumentIcon(), func() { u.onLoadReference() })
	u.runBtn = widget.NewButtonWithIcon("Run", theme.ConfirmIcon(), func() { u.onRun() })
	u.csvBtn = widget.NewButtonWithIcon("Export CSV", theme.DocumentSaveIcon(), func() { u.onExport("csv") })
	u.bibBtn = widget.NewButtonWithIcon("Export BibTeX", theme.DocumentSaveIcon(), func() { u.onExport("bib") })
	u.parquetBtn = widget.NewButtonWithIcon("Export scores", theme.DocumentSaveIcon(), func() { u.onExport("parquet") })

	u.columns = []tableColumn{
		{Title: "Score", Width: 80, Render: func(s selection.Scored) string { return fmt.Sprintf("%.4f", s.Score) }},
		{Title: "Key", Width: 110, Render: func(s selection.Scored) string { return s.ID }},
		{Title: "Title", Width: 520, Render: func(s selection.Scored) string { return truncateText(u.titleAt(s.Index), 120) }},
	}
	u.resTbl = widget.NewTable(
		func() (int, int) { return len(u.rows) + 1, len(u.columns) },
		func() fyne.CanvasObject { return widget.NewLabel("") },
		func(id widget.TableCellID, obj fyne.CanvasObject) {
			lbl := obj.(*widget.Label)
			if id.Row == 0 {
				lbl.TextStyle = fyne.TextStyle{Bold: true}
				lbl.SetText(u.columns[id.Col].Title)
				return
			}
			lbl.TextStyle = fyne.TextStyle{}
			if id.Row-1 >= len(u.rows) {
				lbl.SetText("")
				return
			}
			lbl.SetText(u.columns[id.Col].Render(u.rows[id.Row-1]))
		},
	)
	for i, col := range u.columns {
		u.resTbl.SetColumnWidth(i, col.Width)
	}
	u.resTbl.OnSelected = func(id widget.TableCellID) {
		if id.Row <= 0 || id.Row-1 >= len(u.rows) {
			return
		}
		row := u.rows[id.Row-1]
		dialog.ShowInformation(row.ID, truncateText(row.Text, 1200), u.w)
	}

	form := widget.NewForm(
		widget.NewFormItem("Model", u.model),
		widget.NewFormItem("Strategy", u.strategy),
		widget.NewFormItem("Custom", u.custom),
	)
	left := container.NewVBox(
		widget.NewLabelWithStyle("Library", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		u.libLabel,
		container.NewGridWithColumns(2, u.loadBtn, u.refBtn),
		widget.NewLabelWithStyle("Reference", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		u.reference,
		form,
		u.runBtn,
		u.progress,
		status,
		widget.NewSeparator(),
		container.NewGridWithColumns(3, u.csvBtn, u.bibBtn, u.parquetBtn),
		widget.NewSeparator(),
		widget.NewLabelWithStyle("Log", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		container.NewMax(logView),
	)
	top := container.NewHBox(u.stats, container.NewVBox(
		widget.NewLabelWithStyle("Score distribution", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		u.histogram,
	))
	right := container.NewBorder(top, nil, nil, nil, u.resTbl)
	split := container.NewHSplit(container.NewVScroll(left), right)
	split.Offset = 0.35

	u.w.SetContent(split)
	u.w.Resize(fyne.NewSize(1280, 800))
	u.setExportEnabled(false)
	return u
}

func (u *uiState) config() papersift.Config {
	u.cfgMu.Lock()
	defer u.cfgMu.Unlock()
	return u.cfg.Clone()
}

func (u *uiState) saveConfig() {
	if err := papersift.SaveConfig("", u.config()); err != nil {
		u.logger.Printf("save config: %v", err)
	}
}

func (u *uiState) titleAt(index int) string {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.library == nil || index < 0 || index >= u.library.Len() {
		return ""
	}
	return u.library.Papers[index].Title
}

func (u *uiState) setStatus(text string) {
	_ = u.statusBind.Set(text)
}

func (u *uiState) setBusy(b bool) {
	fyne.Do(func() {
		for _, btn := range []*widget.Button{u.runBtn, u.loadBtn, u.refBtn} {
			if b {
				btn.Disable()
			} else {
				btn.Enable()
			}
		}
		if b {
			u.progress.Show()
		} else {
			u.progress.Hide()
		}
	})
}

func (u *uiState) setExportEnabled(b bool) {
	for _, btn := range []*widget.Button{u.csvBtn, u.bibBtn, u.parquetBtn} {
		if b {
			btn.Enable()
		} else {
			btn.Disable()
		}
	}
}

func (u *uiState) onLoadLibrary() {
	fd := dialog.NewFileOpen(func(rc fyne.URIReadCloser, err error) {
		if err != nil || rc == nil {
			return
		}
		defer rc.Close()
		cfg := u.config()
		name := filepath.Base(rc.URI().Path())
		comma := ','
		if strings.EqualFold(rc.URI().Extension(), ".tsv") {
			comma = '\t'
		}
		lib, err := papersift.ParseLibrary(rc, comma, papersift.ParseOptions{Candidates: cfg.Columns, Separator: cfg.Separator})
		if err != nil {
			dialog.ShowError(err, u.w)
			return
		}
		rep, err := papersift.ValidateLibrary(lib)
		if err != nil {
			dialog.ShowError(err, u.w)
			return
		}
		u.mu.Lock()
		u.library, u.libName = lib, name
		u.encoding, u.encKey, u.result = nil, "", nil
		u.mu.Unlock()
		u.rows = nil

		u.libLabel.SetText(librarySummary(name, lib, rep))
		u.stats.SetText("")
		u.histogram.RemoveAll()
		u.resTbl.Refresh()
		u.setExportEnabled(false)
		u.logger.Printf("Loaded %s (%d papers)", name, rep.Total)
		for _, w := range rep.Warnings() {
			u.logger.Printf("warning: %s", w)
		}
	}, u.w)
	fd.SetFilter(storage.NewExtensionFileFilter([]string{".csv", ".tsv"}))
	fd.Show()
}

func (u *uiState) onLoadReference() {
	fd := dialog.NewFileOpen(func(rc fyne.URIReadCloser, err error) {
		if err != nil || rc == nil {
			return
		}
		path := rc.URI().Path()
		rc.Close()
		text, err := papersift.LoadReferenceText(path)
		if err != nil {
			dialog.ShowError(err, u.w)
			return
		}
		u.reference.SetText(text)
	}, u.w)
	fd.SetFilter(storage.NewExtensionFileFilter([]string{".txt", ".md"}))
	fd.Show()
}

func (u *uiState) onStrategyChanged() {
	if methodForLabel(u.strategy.Selected) == methodCustom {
		u.custom.Enable()
	} else {
		u.custom.Disable()
	}
	u.reselect()
}

// reselect applies the chosen strategy to cached scores, if any.
func (u *uiState) reselect() {
	spec, err := specFor(u.strategy.Selected, u.custom.Text)
	if err != nil {
		if !errors.Is(err, errCustomValue) {
			u.setStatus(err.Error())
		}
		return
	}
	u.rememberStrategy(spec)
	u.mu.Lock()
	enc := u.encoding
	u.mu.Unlock()
	if enc != nil {
		u.applySelection(enc, spec)
	}
}

func (u *uiState) rememberStrategy(spec selection.ThresholdSpec) {
	u.cfgMu.Lock()
	if f, ok := spec.(selection.Fixed); ok {
		v := f.Value
		u.cfg.Threshold.Value = &v
	} else {
		u.cfg.Threshold.Method = methodForLabel(u.strategy.Selected)
		u.cfg.Threshold.Value = nil
	}
	u.cfgMu.Unlock()
	u.saveConfig()
}

func (u *uiState) onRun() {
	u.mu.Lock()
	lib := u.library
	u.mu.Unlock()
	if lib == nil {
		dialog.ShowInformation("Info", "Load a CSV library first", u.w)
		return
	}
	reference := strings.TrimSpace(u.reference.Text)
	if reference == "" {
		dialog.ShowInformation("Info", "Enter a reference text", u.w)
		return
	}
	spec, err := specFor(u.strategy.Selected, u.custom.Text)
	if err != nil {
		dialog.ShowError(err, u.w)
		return
	}
	embedder, err := u.pool.Get(u.model.Text)
	if err != nil {
		dialog.ShowError(fmt.Errorf("load model: %w", err), u.w)
		return
	}
	key := encodingKey(embedder.ModelID(), reference)

	u.mu.Lock()
	enc := u.encoding
	cached := enc != nil && u.encKey == key
	u.mu.Unlock()
	if cached {
		u.logger.Printf("Reusing embeddings for %s", embedder.ModelID())
		u.applySelection(enc, spec)
		return
	}

	svc, err := papersift.NewService(embedder, u.config(), u.logger)
	if err != nil {
		dialog.ShowError(err, u.w)
		return
	}
	total := lib.Len()
	fyne.Do(func() {
		u.progress.Min, u.progress.Max = 0, float64(total)
	})
	_ = u.progressBind.Set(0)
	u.setBusy(true)
	u.setStatus("Embedding...")
	start := time.Now()

	go func() {
		defer u.setBusy(false)
		enc, err := svc.Encode(context.Background(), reference, lib.Papers, func(done, total int) {
			_ = u.progressBind.Set(float64(done))
			u.setStatus(fmt.Sprintf("Embedding %d/%d", done, total))
		})
		if err != nil {
			u.setStatus("Error")
			u.logger.Printf("encode: %v", err)
			fyne.Do(func() { dialog.ShowError(err, u.w) })
			return
		}
		u.mu.Lock()
		u.encoding, u.encKey = enc, key
		u.mu.Unlock()
		u.setStatus(fmt.Sprintf("Embedded %d papers (%.1fs)", total, time.Since(start).Seconds()))
		u.applySelection(enc, spec)
	}()
}

func (u *uiState) applySelection(enc *papersift.Encoding, spec selection.ThresholdSpec) {
	res, err := enc.Select(spec)
	if err != nil {
		fyne.Do(func() { dialog.ShowError(err, u.w) })
		return
	}
	rows := rankSelected(res)
	u.mu.Lock()
	u.result = &res
	u.mu.Unlock()
	u.logger.Printf("Selected %d of %d papers (%s, cutoff %.4f)", len(res.Selected), len(enc.Scores), spec, res.Cutoff)

	statsText := u.format.Statistics(res.Stats, spec.String())
	bins := selection.Histogram(enc.Scores, u.config().Web.HistogramBin)
	fyne.Do(func() {
		u.stats.SetText(statsText)
		u.drawHistogram(bins, res.Cutoff)
		u.rows = rows
		u.resTbl.Refresh()
		u.setExportEnabled(true)
	})
}

func (u *uiState) drawHistogram(bins []selection.Bin, cutoff float64) {
	u.histogram.RemoveAll()
	selected := theme.Color(theme.ColorNamePrimary)
	var rejected color.Color = color.NRGBA{R: 0x9e, G: 0x9e, B: 0x9e, A: 0xff}
	for i, h := range barHeights(bins, histogramHeight) {
		fill := rejected
		if bins[i].Lo >= cutoff {
			fill = selected
		}
		bar := canvas.NewRectangle(fill)
		bar.SetMinSize(fyne.NewSize(histogramBarW, h))
		u.histogram.Add(container.NewVBox(layout.NewSpacer(), bar))
	}
	u.histogram.Refresh()
}

func (u *uiState) onExport(format string) {
	u.mu.Lock()
	lib, res, name := u.library, u.result, u.libName
	u.mu.Unlock()
	if lib == nil || res == nil {
		dialog.ShowInformation("Info", "Nothing to export yet", u.w)
		return
	}
	base := strings.TrimSuffix(name, filepath.Ext(name))
	fd := dialog.NewFileSave(func(uc fyne.URIWriteCloser, err error) {
		if err != nil || uc == nil {
			return
		}
		switch format {
		case "csv":
			err = papersift.WriteSelectedCSV(uc, lib, *res)
			uc.Close()
		case "bib":
			_, err = papersift.WriteSelectedBibTeX(uc, lib, *res)
			uc.Close()
		case "parquet":
			uc.Close()
			err = papersift.WriteScoresParquet(uc.URI().Path(), lib, *res)
		}
		if err != nil {
			dialog.ShowError(err, u.w)
			return
		}
		u.logger.Printf("Exported %s", uc.URI().Path())
	}, u.w)
	switch format {
	case "csv":
		fd.SetFileName(base + "_selected.csv")
	case "bib":
		fd.SetFileName(base + "_selected.bib")
	case "parquet":
		fd.SetFileName(base + "_scores.parquet")
	}
	fd.Show()
}
