// Package main provides a speech recognition plugin.
// It runs an external recognizer command that records from the microphone
// and prints the transcript on stdout.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// CommandEnv names the variable holding the recognizer command line. The
// placeholder {lang} is replaced with the requested language, e.g.
//
//	ISHARA_STT_COMMAND="whisper-mic --language {lang} --once"
const CommandEnv = "ISHARA_STT_COMMAND"

// Request represents the input from the plugin executor.
type Request struct {
	Action string          `json:"action"`
	Lang   string          `json:"lang"`
	Params json.RawMessage `json:"params"`
}

// Response represents the output to the plugin executor.
type Response struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Text    string `json:"text,omitempty"`
}

// ListenParams overrides the recognizer command for one request.
type ListenParams struct {
	Command string `json:"command"`
}

// locales maps phrase languages to recognizer locale codes.
var locales = map[string]string{
	"fr": "fr-FR",
	"en": "en-US",
	"ar": "ar-TN",
}

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeErrorResponse(fmt.Sprintf("failed to decode request: %v", err))
		return
	}

	switch req.Action {
	case "listen":
		text, err := handleListen(req)
		if err != nil {
			writeErrorResponse(fmt.Sprintf("action %s failed: %v", req.Action, err))
			return
		}
		writeTextResponse(text)
	default:
		writeErrorResponse(fmt.Sprintf("unknown action: %s", req.Action))
	}
}

// handleListen runs the recognizer and returns its trimmed output.
func handleListen(req Request) (string, error) {
	var p ListenParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return "", fmt.Errorf("failed to parse params: %w", err)
		}
	}

	line := p.Command
	if line == "" {
		line = os.Getenv(CommandEnv)
	}
	args, err := buildArgs(line, req.Lang)
	if err != nil {
		return "", err
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.Command(args[0], args[1:]...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))
	}

	return strings.TrimSpace(stdout.String()), nil
}

// buildArgs splits a command line on whitespace and substitutes {lang}
// and {locale}.
func buildArgs(line, lang string) ([]string, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, fmt.Errorf("no recognizer configured, set %s", CommandEnv)
	}
	locale := locales[lang]
	if locale == "" {
		locale = lang
	}
	for i, f := range fields {
		f = strings.ReplaceAll(f, "{lang}", lang)
		fields[i] = strings.ReplaceAll(f, "{locale}", locale)
	}
	return fields, nil
}

// writeErrorResponse writes an error response to stdout.
func writeErrorResponse(errMsg string) {
	json.NewEncoder(os.Stdout).Encode(Response{Success: false, Error: errMsg})
}

// writeTextResponse writes a success response carrying the transcript.
func writeTextResponse(text string) {
	json.NewEncoder(os.Stdout).Encode(Response{Success: true, Text: text})
}
