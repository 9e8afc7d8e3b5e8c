package main

import (
	"github.com/charmbracelet/bubbletea"
)

// keyMsg builds a key press for a single printable key.
func keyMsg(key string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
}
