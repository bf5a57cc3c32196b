package main

import (
	"log"

	"yashubustudio/papersift/internal/app"
)

func main() {
	if err := app.Run(); err != nil {
		log.Fatalf("papersift-desktop: %v", err)
	}
}
