package utils

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/Perceptus-Labs/roomscout/models"
)

var (
	headerColor  = color.New(color.FgCyan, color.Bold)
	roomColor    = color.New(color.FgGreen, color.Bold)
	unknownColor = color.New(color.FgHiBlack)
	warningColor = color.New(color.FgRed)
)

// PrintAnalysis writes a human readable analysis report for console mode.
func PrintAnalysis(w io.Writer, a *models.AnalysisResult) {
	rule := strings.Repeat("=", 50)

	fmt.Fprintln(w)
	headerColor.Fprintln(w, rule)
	headerColor.Fprintln(w, "Room Analysis Update")
	headerColor.Fprintln(w, rule)

	fmt.Fprint(w, "\nRoom Type: ")
	if a.RoomType != nil {
		roomColor.Fprintln(w, displayName(*a.RoomType))
	} else {
		unknownColor.Fprintln(w, "Unknown")
	}

	fmt.Fprintln(w, "\nDetected Objects:")
	for _, obj := range a.DetectedObjects {
		fmt.Fprintf(w, "- %s\n", obj)
	}

	fmt.Fprintln(w, "\nSuggestions:")
	for _, s := range a.Suggestions {
		fmt.Fprintf(w, "- %s\n", s)
	}

	if len(a.Warnings) > 0 {
		fmt.Fprintln(w, "\nWarnings:")
		for _, warning := range a.Warnings {
			warningColor.Fprintf(w, "- %s\n", warning)
		}
	}

	fmt.Fprintln(w)
	headerColor.Fprintln(w, rule)
}

// displayName turns "living_room" into "Living Room".
func displayName(room string) string {
	words := strings.Fields(strings.ReplaceAll(room, "_", " "))
	for i, word := range words {
		words[i] = strings.ToUpper(word[:1]) + word[1:]
	}
	return strings.Join(words, " ")
}
