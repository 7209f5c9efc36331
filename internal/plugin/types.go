// Package plugin discovers and runs helper executables. Each helper lives
// in its own directory with a plugin.json manifest and speaks one JSON
// request on stdin and one JSON response on stdout.
package plugin

import "encoding/json"

// Well-known actions.
const (
	ActionSpeak  = "speak"
	ActionListen = "listen"
)

// Manifest describes a plugin's metadata and capabilities.
type Manifest struct {
	Name        string   `json:"name"`
	Version     string   `json:"version"`
	Description string   `json:"description"`
	Executable  string   `json:"executable"`
	Actions     []string `json:"actions"`
	// Languages lists the languages the helper handles. Empty means any.
	Languages []string `json:"languages,omitempty"`
}

// Supports reports whether the manifest declares action.
func (m Manifest) Supports(action string) bool {
	for _, a := range m.Actions {
		if a == action {
			return true
		}
	}
	return false
}

// SupportsLanguage reports whether the helper handles lang.
func (m Manifest) SupportsLanguage(lang string) bool {
	if len(m.Languages) == 0 {
		return true
	}
	for _, l := range m.Languages {
		if l == lang {
			return true
		}
	}
	return false
}

// Request is sent to a plugin on stdin.
type Request struct {
	Action string          `json:"action"`
	Text   string          `json:"text,omitempty"`
	Lang   string          `json:"lang,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Response is read from a plugin's stdout.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Text    string          `json:"text,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Plugin represents a discovered plugin with its manifest and location.
type Plugin struct {
	Manifest   Manifest
	Path       string
	Executable string
}
