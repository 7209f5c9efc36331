// Package main provides a speech synthesis plugin.
// It speaks text with espeak-ng on Linux and Windows and with say on macOS.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
)

// Request represents the input from the plugin executor.
type Request struct {
	Action string          `json:"action"`
	Text   string          `json:"text"`
	Lang   string          `json:"lang"`
	Params json.RawMessage `json:"params"`
}

// Response represents the output to the plugin executor.
type Response struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// SpeakParams tunes the voice.
type SpeakParams struct {
	Rate int `json:"rate"` // words per minute
}

// voices maps phrase languages to espeak-ng voice names.
var voices = map[string]string{
	"fr": "fr",
	"en": "en-us",
	"ar": "ar",
}

// sayVoices maps phrase languages to macOS say voices.
var sayVoices = map[string]string{
	"fr": "Thomas",
	"en": "Samantha",
	"ar": "Maged",
}

// defaultRates slows Arabic down, which synthesizes poorly at full speed.
var defaultRates = map[string]int{
	"fr": 160,
	"en": 160,
	"ar": 130,
}

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeErrorResponse(fmt.Sprintf("failed to decode request: %v", err))
		return
	}

	switch req.Action {
	case "speak":
		if err := handleSpeak(req); err != nil {
			writeErrorResponse(fmt.Sprintf("action %s failed: %v", req.Action, err))
			return
		}
	default:
		writeErrorResponse(fmt.Sprintf("unknown action: %s", req.Action))
		return
	}

	writeSuccessResponse()
}

// handleSpeak validates the request and runs the platform synthesizer.
func handleSpeak(req Request) error {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return fmt.Errorf("text is required")
	}

	var p SpeakParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return fmt.Errorf("failed to parse params: %w", err)
		}
	}
	if p.Rate <= 0 {
		p.Rate = defaultRates[req.Lang]
	}
	if p.Rate <= 0 {
		p.Rate = 160
	}

	name, args, err := buildCommand(runtime.GOOS, req.Lang, text, p.Rate)
	if err != nil {
		return err
	}
	return run(name, args...)
}

// buildCommand returns the synthesizer command line for goos.
func buildCommand(goos, lang, text string, rate int) (string, []string, error) {
	if goos == "darwin" {
		voice, ok := sayVoices[lang]
		if !ok {
			return "", nil, fmt.Errorf("unsupported language %q", lang)
		}
		return "say", []string{"-v", voice, "-r", strconv.Itoa(rate), text}, nil
	}

	voice, ok := voices[lang]
	if !ok {
		return "", nil, fmt.Errorf("unsupported language %q", lang)
	}
	bin := "espeak-ng"
	if _, err := exec.LookPath(bin); err != nil {
		bin = "espeak"
	}
	return bin, []string{"-v", voice, "-s", strconv.Itoa(rate), text}, nil
}

// run executes a command and returns any error with its output.
func run(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, strings.TrimSpace(string(output)))
	}
	return nil
}

// writeErrorResponse writes an error response to stdout.
func writeErrorResponse(errMsg string) {
	json.NewEncoder(os.Stdout).Encode(Response{Success: false, Error: errMsg})
}

// writeSuccessResponse writes a success response to stdout.
func writeSuccessResponse() {
	json.NewEncoder(os.Stdout).Encode(Response{Success: true})
}
