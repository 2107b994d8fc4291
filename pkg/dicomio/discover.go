package dicomio

import (
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Large series carry small non-image files (reports, DICOMDIR stubs). Once a
// directory holds more than smallFileCutoff candidates, files of at most
// smallFileSize bytes are dropped.
const (
	smallFileCutoff = 100
	smallFileSize   = 1024
)

var sliceExtensions = map[string]bool{
	".dcm":   true,
	".dicom": true,
	".dic":   true,
	"":       true,
}

// Discover keeps the entries that look like slice files and orders them by
// the number in their file name, then by name
func Discover(entries []Entry) []Entry {
	var out []Entry
	for _, e := range entries {
		if strings.HasPrefix(e.Name, ".") {
			continue
		}
		if sliceExtensions[strings.ToLower(filepath.Ext(e.Name))] {
			out = append(out, e)
		}
	}

	if len(out) > smallFileCutoff {
		kept := out[:0]
		for _, e := range out {
			if e.Size > smallFileSize {
				kept = append(kept, e)
			}
		}
		out = kept
	}

	sort.SliceStable(out, func(i, j int) bool {
		numI := extractNumber(out[i].Name)
		numJ := extractNumber(out[j].Name)
		if numI != numJ {
			return numI < numJ
		}
		return out[i].Name < out[j].Name
	})

	return out
}

// extractNumber extracts the last run of digits from a filename, so that
// IM-0001-0012.dcm sorts as slice 12
func extractNumber(filename string) int {
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))

	end := -1
	for i := len(base) - 1; i >= 0; i-- {
		if base[i] >= '0' && base[i] <= '9' {
			end = i + 1
			break
		}
	}
	if end < 0 {
		return 0
	}
	start := end - 1
	for start > 0 && base[start-1] >= '0' && base[start-1] <= '9' {
		start--
	}

	num, err := strconv.Atoi(base[start:end])
	if err != nil {
		return 0
	}
	return num
}

// selectSlices drops the leading study information slice when asked and
// subsamples evenly down to max slices
func selectSlices(entries []Entry, skipFirst bool, max int) []Entry {
	if skipFirst && len(entries) > 1 {
		entries = entries[1:]
	}
	if max <= 0 || len(entries) <= max {
		return entries
	}

	step := len(entries) / max
	out := make([]Entry, 0, max)
	for i := 0; i < len(entries) && len(out) < max; i += step {
		out = append(out, entries[i])
	}
	return out
}
