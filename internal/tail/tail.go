// Package tail reads the last lines of a file through a bounded-size
// window, so large journals and logs are never loaded whole.
package tail

import (
	"os"
	"strings"
)

// windowBytes bounds how much of the file tail is read. Enough for
// hundreds of structured JSONL lines.
const windowBytes = 256 * 1024

// maxLines caps a single tail request.
const maxLines = 2000

// Lines returns up to lineCount trailing lines of the file. truncated
// reports whether more history exists than was returned. A line that
// starts before the read window is dropped as partial.
func Lines(path string, lineCount int) (lines []string, truncated bool, err error) {
	if lineCount < 1 {
		lineCount = 1
	}
	if lineCount > maxLines {
		lineCount = maxLines
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, false, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, false, err
	}

	start := info.Size() - windowBytes
	if start < 0 {
		start = 0
	}
	buf := make([]byte, info.Size()-start)
	if _, err := f.ReadAt(buf, start); err != nil {
		return nil, false, err
	}
	text := string(buf)

	all := splitLines(text)
	// A partial read window may begin mid-line; drop that fragment.
	if start > 0 && len(all) > 0 && !strings.HasPrefix(text, "\n") && !strings.HasPrefix(text, "\r") {
		all = all[1:]
	}

	truncated = start > 0 || len(all) > lineCount
	if len(all) > lineCount {
		all = all[len(all)-lineCount:]
	}
	return all, truncated, nil
}

func splitLines(text string) []string {
	var lines []string
	for _, l := range strings.Split(text, "\n") {
		l = strings.TrimSuffix(l, "\r")
		if l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}
