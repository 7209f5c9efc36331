package plugin

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

// scriptPlugin writes a shell script plugin into a temp dir.
func scriptPlugin(t *testing.T, name, script string) *Plugin {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("skipping test on Windows")
	}

	dir := t.TempDir()
	path := filepath.Join(dir, name+".sh")
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("failed to write script: %v", err)
	}
	return &Plugin{
		Manifest:   Manifest{Name: name, Version: "1.0.0", Executable: name + ".sh", Actions: []string{ActionSpeak}},
		Path:       dir,
		Executable: path,
	}
}

func TestExecutor_Execute(t *testing.T) {
	p := scriptPlugin(t, "ok", `#!/bin/sh
cat <<'EOF'
{"success":true,"text":"bonjour"}
EOF
`)

	resp, err := NewExecutor(5*time.Second).Execute(context.Background(), p, &Request{Action: ActionListen, Lang: "fr"})
	if err != nil {
		t.Fatalf("Execute() failed: %v", err)
	}
	if !resp.Success || resp.Text != "bonjour" {
		t.Errorf("response = %+v", resp)
	}
}

func TestExecutor_Execute_ReadsStdin(t *testing.T) {
	p := scriptPlugin(t, "echo", `#!/bin/sh
INPUT=$(cat)
echo "{\"success\":true,\"data\":$INPUT}"
`)

	resp, err := NewExecutor(5*time.Second).Execute(context.Background(), p, &Request{Action: ActionSpeak, Text: "salam", Lang: "ar"})
	if err != nil {
		t.Fatalf("Execute() failed: %v", err)
	}
	got := string(resp.Data)
	for _, want := range []string{`"action":"speak"`, `"text":"salam"`, `"lang":"ar"`} {
		if !strings.Contains(got, want) {
			t.Errorf("echoed request %s missing %s", got, want)
		}
	}
}

func TestExecutor_Timeout(t *testing.T) {
	p := scriptPlugin(t, "slow", `#!/bin/sh
sleep 10
echo '{"success":true}'
`)

	_, err := NewExecutor(100*time.Millisecond).Execute(context.Background(), p, &Request{Action: ActionSpeak})
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Execute() error = %v, want ErrTimeout", err)
	}
}

func TestExecutor_ParentContextDeadline(t *testing.T) {
	p := scriptPlugin(t, "slow", `#!/bin/sh
sleep 10
`)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := NewExecutor(time.Minute).Execute(ctx, p, &Request{Action: ActionListen})
	if err == nil {
		t.Fatal("expected error")
	}
	if time.Since(start) > 5*time.Second {
		t.Error("parent deadline was not honored")
	}
}

func TestExecutor_Canceled(t *testing.T) {
	p := scriptPlugin(t, "slow", `#!/bin/sh
sleep 10
`)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := NewExecutor(time.Minute).Execute(ctx, p, &Request{}); !errors.Is(err, context.Canceled) {
		t.Errorf("Execute() error = %v, want context.Canceled", err)
	}
}

func TestExecutor_Execute_ErrorResponse(t *testing.T) {
	p := scriptPlugin(t, "fail", `#!/bin/sh
echo '{"success":false,"error":"no voice for ar"}'
`)

	resp, err := NewExecutor(5*time.Second).Execute(context.Background(), p, &Request{Action: ActionSpeak})
	if err != nil {
		t.Fatalf("Execute() failed: %v", err)
	}
	if resp.Success || resp.Error != "no voice for ar" {
		t.Errorf("response = %+v", resp)
	}
}

func TestExecutor_Execute_BadOutput(t *testing.T) {
	p := scriptPlugin(t, "garbage", `#!/bin/sh
echo 'not json'
`)

	if _, err := NewExecutor(5*time.Second).Execute(context.Background(), p, &Request{}); err == nil {
		t.Error("expected parse error")
	}
}

func TestExecutor_Execute_NonZeroExit(t *testing.T) {
	p := scriptPlugin(t, "crash", `#!/bin/sh
echo 'espeak: not found' >&2
exit 3
`)

	_, err := NewExecutor(5*time.Second).Execute(context.Background(), p, &Request{})
	if err == nil || !strings.Contains(err.Error(), "espeak: not found") {
		t.Errorf("Execute() error = %v, want stderr in message", err)
	}
}

func TestNewExecutor_DefaultTimeout(t *testing.T) {
	if got := NewExecutor(0).Timeout(); got != DefaultTimeout {
		t.Errorf("Timeout() = %v, want %v", got, DefaultTimeout)
	}
}
