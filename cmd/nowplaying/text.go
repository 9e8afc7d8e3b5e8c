package main

import (
	"fmt"
	"strconv"
	"strings"
)

// scrollSeparator pads long text so the scroll loops smoothly.
const scrollSeparator = "  •  "

// formatTime converts seconds to MM:SS format
func formatTime(seconds int64) string {
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

// parseSeconds reads a duration or position field. Empty or malformed
// values count as zero.
func parseSeconds(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}

// scrollText returns a scrolling window of text with smooth looping
func scrollText(text string, max int, offset int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}

	fullText := append(runes, []rune(scrollSeparator)...)
	textLen := len(fullText)

	offset = offset % textLen

	var result []rune
	for i := 0; i < max; i++ {
		result = append(result, fullText[(offset+i)%textLen])
	}
	return string(result)
}
