package system

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"wg-console/internal/wgstatus"
)

// ExecBackend drives the host's wg and wg-quick binaries.
type ExecBackend struct {
	exec Executor
	now  func() time.Time
}

// NewExecBackend creates a backend with per-command deadlines.
func NewExecBackend(commandTimeout time.Duration) *ExecBackend {
	return NewExecBackendWithDeps(NewExecutor(commandTimeout))
}

// NewExecBackendWithDeps creates a backend with a custom executor for tests.
func NewExecBackendWithDeps(executor Executor) *ExecBackend {
	return &ExecBackend{exec: executor, now: time.Now}
}

func (b *ExecBackend) Kind() string { return "exec" }

func (b *ExecBackend) GenerateKeypair(ctx context.Context) (string, string, error) {
	out, err := b.exec.Output(ctx, "wg", "genkey")
	if err != nil {
		return "", "", commandError("wg genkey", err, out)
	}
	privateKey := strings.TrimSpace(string(out))

	publicKey, err := b.PublicKey(ctx, privateKey)
	if err != nil {
		return "", "", err
	}
	return privateKey, publicKey, nil
}

func (b *ExecBackend) PublicKey(ctx context.Context, privateKey string) (string, error) {
	if privateKey == "" {
		return "", nil
	}
	out, err := b.exec.OutputInput(ctx, privateKey+"\n", "wg", "pubkey")
	if err != nil {
		return "", commandError("wg pubkey", err, out)
	}
	return strings.TrimSpace(string(out)), nil
}

func (b *ExecBackend) Status(ctx context.Context, name string) (*wgstatus.Snapshot, error) {
	out, err := b.exec.Output(ctx, "wg", "show", name)
	if err != nil {
		// Interface down or wg missing: no runtime state to report.
		return nil, nil
	}
	return wgstatus.Parse(name, string(out), b.now()), nil
}

func (b *ExecBackend) IsActive(ctx context.Context, name string) bool {
	return b.exec.Run(ctx, "ip", "link", "show", name) == nil
}

func (b *ExecBackend) SetActive(ctx context.Context, name string, active bool) error {
	action := "down"
	if active {
		action = "up"
	}
	out, err := b.exec.Output(ctx, "wg-quick", action, name)
	if err != nil {
		// wg-quick complains when the interface is already in the requested
		// state; treat that as success.
		if strings.Contains(strings.ToLower(string(out)), "already") {
			return nil
		}
		return commandError("wg-quick "+action, err, out)
	}
	return nil
}

// Sync strips the config file with wg-quick (wg syncconf rejects wg-quick
// extensions like Address and PostUp), feeds the result to wg syncconf via a
// transient file, and removes the file afterwards.
func (b *ExecBackend) Sync(ctx context.Context, name, configPath string) error {
	stripped, err := b.exec.Output(ctx, "wg-quick", "strip", configPath)
	if err != nil {
		return commandError("wg-quick strip", err, stripped)
	}

	tmp, err := os.CreateTemp("", "wgconsole-sync-*.conf")
	if err != nil {
		return fmt.Errorf("create sync temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := os.Chmod(tmpPath, 0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod sync temp file: %w", err)
	}
	if _, err := tmp.Write(stripped); err != nil {
		tmp.Close()
		return fmt.Errorf("write sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close sync temp file: %w", err)
	}

	if out, err := b.exec.Output(ctx, "wg", "syncconf", name, tmpPath); err != nil {
		return commandError("wg syncconf", err, out)
	}
	return nil
}

func (b *ExecBackend) Installed(context.Context) bool {
	_, err := exec.LookPath("wg")
	return err == nil
}

// Version reports the installed wg tool version, empty when the probe fails.
func (b *ExecBackend) Version(ctx context.Context) string {
	out, err := b.exec.Output(ctx, "wg", "--version")
	if err != nil {
		return ""
	}
	line, _, _ := strings.Cut(strings.TrimSpace(string(out)), "\n")
	return strings.TrimSpace(line)
}

func commandError(action string, err error, output []byte) error {
	detail := strings.TrimSpace(string(output))
	if detail == "" {
		return fmt.Errorf("%s: %w", action, err)
	}
	return fmt.Errorf("%s: %w: %s", action, err, detail)
}
