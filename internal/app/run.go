package app

import (
	"io"
	"log"
	"os"

	fyneapp "fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/data/binding"

	"yashubustudio/papersift/papersift"
)

const fyneAppID = "yashubustudio.papersift"

// Run loads the configuration and starts the desktop UI.
func Run() error {
	cfg, err := papersift.LoadConfig("")
	if err != nil {
		return err
	}

	logBind := binding.NewString()
	logger := log.New(io.MultiWriter(os.Stdout, newLogCapture(logBind, 300)), "", log.LstdFlags)

	pool := papersift.NewEmbedderPool(cfg, nil)
	defer pool.Close()

	a := fyneapp.NewWithID(fyneAppID)
	u := buildUI(a, cfg, pool, logger, logBind)
	u.w.ShowAndRun()
	u.saveConfig()
	return nil
}
