//go:build ignore

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/muurk/mefit/internal/rom"
)

// Statistics tracks validation results across a directory of dumps
type Statistics struct {
	TotalFiles   int
	Valid        int
	Rejected     int
	ReadErrors   int
	Families     map[string]int
	Reasons      map[string]int
	CRCMismatch  []string
	FailedImages []FailedImage
	Serials      map[string][]string
}

// FailedImage stores information about a rejected dump
type FailedImage struct {
	File    string
	Reason  string
	Message string
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: scan_dumps <directory-or-file>")
		fmt.Println("Example: go run tools/scan_dumps.go dumps/")
		fmt.Println("         go run tools/scan_dumps.go MBP151.rom")
		os.Exit(1)
	}

	path := os.Args[1]

	stats := Statistics{
		Families: make(map[string]int),
		Reasons:  make(map[string]int),
		Serials:  make(map[string][]string),
	}

	info, err := os.Stat(path)
	if err != nil {
		fmt.Printf("Error accessing path: %v\n", err)
		os.Exit(1)
	}

	var files []string
	if info.IsDir() {
		for _, pattern := range []string{"*.rom", "*.bin"} {
			matches, err := filepath.Glob(filepath.Join(path, pattern))
			if err != nil {
				fmt.Printf("Error finding dumps: %v\n", err)
				os.Exit(1)
			}
			files = append(files, matches...)
		}
		if len(files) == 0 {
			fmt.Printf("No .rom or .bin files found in %s\n", path)
			os.Exit(1)
		}
	} else {
		files = []string{path}
	}

	fmt.Printf("=== mefit dump scanner ===\n")
	fmt.Printf("Files to process: %d\n\n", len(files))

	for _, file := range files {
		processFile(file, &stats)
	}

	printStatistics(&stats)
}

func processFile(filename string, stats *Statistics) {
	stats.TotalFiles++

	img, res, err := rom.Open(filename, rom.DefaultOptions())
	if err != nil {
		stats.ReadErrors++
		fmt.Printf("Error reading %s: %v\n", filename, err)
		return
	}

	if !res.Valid() {
		stats.Rejected++
		stats.Reasons[res.Reason.String()]++
		stats.FailedImages = append(stats.FailedImages, FailedImage{
			File:    filename,
			Reason:  res.Reason.String(),
			Message: res.Message,
		})
		return
	}

	stats.Valid++
	stats.Families[img.Family.String()]++

	if img.Fsys != nil && !img.Fsys.CRCMatches() {
		stats.CRCMismatch = append(stats.CRCMismatch, filename)
	}
	if serial := img.Serial(); serial.Valid {
		stats.Serials[serial.Value] = append(stats.Serials[serial.Value], filename)
	}
}

func printStatistics(stats *Statistics) {
	fmt.Printf("=== Results ===\n")
	fmt.Printf("Files:       %d\n", stats.TotalFiles)
	fmt.Printf("Valid:       %d\n", stats.Valid)
	fmt.Printf("Rejected:    %d\n", stats.Rejected)
	fmt.Printf("Read errors: %d\n", stats.ReadErrors)

	if len(stats.Families) > 0 {
		fmt.Printf("\nFamilies:\n")
		for _, name := range sortedKeys(stats.Families) {
			fmt.Printf("  %-14s %d\n", name, stats.Families[name])
		}
	}

	if len(stats.Reasons) > 0 {
		fmt.Printf("\nRejection reasons:\n")
		for _, name := range sortedKeys(stats.Reasons) {
			fmt.Printf("  %-18s %d\n", name, stats.Reasons[name])
		}
	}

	if len(stats.CRCMismatch) > 0 {
		fmt.Printf("\nStale Fsys CRC (%d):\n", len(stats.CRCMismatch))
		for _, f := range stats.CRCMismatch {
			fmt.Printf("  %s\n", f)
		}
	}

	// The same serial in two dumps usually means a board was cloned
	var dupes []string
	for serial, files := range stats.Serials {
		if len(files) > 1 {
			dupes = append(dupes, fmt.Sprintf("  %s: %s", serial, strings.Join(files, ", ")))
		}
	}
	if len(dupes) > 0 {
		sort.Strings(dupes)
		fmt.Printf("\nDuplicate serials:\n%s\n", strings.Join(dupes, "\n"))
	}

	if len(stats.FailedImages) > 0 {
		fmt.Printf("\n=== Rejected dumps ===\n")
		for _, f := range stats.FailedImages {
			fmt.Printf("%s\n  %s: %s\n", f.File, f.Reason, f.Message)
		}
	}
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
