package passphrase

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"syscall"
	"time"

	"github.com/tgragnato/ftpstls/common/constants"
	"github.com/tgragnato/ftpstls/vhost"
)

// Provider runs an external, privileged program to supply a passphrase,
// the "cross-process passphrase provider" of spec §9: a small RPC over
// pipes, positional arguments arg0=program, arg1="host:port",
// arg2=kind, response is stdout up to one page, stderr logged.
type Provider struct {
	Path       string
	StderrSink func(line string)
	Timeout    time.Duration
}

// NewProvider returns a Provider invoking path, with the default
// PROVIDER_TIMEOUT (spec §4.1, §5).
func NewProvider(path string, stderrSink func(string)) *Provider {
	return &Provider{Path: path, StderrSink: stderrSink, Timeout: constants.ProviderTimeout}
}

// Run forks the provider program, supplying hostPort and kind as
// positional arguments, and reads up to one page from stdout. It kills
// the child with SIGTERM on timeout, escalating to SIGKILL if the
// process does not exit promptly.
func (p *Provider) Run(ctx context.Context, hostPort string, kind vhost.CredentialKind) ([]byte, error) {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = constants.ProviderTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, p.Path, hostPort, kind.String())
	// On timeout send SIGTERM; exec kills the child with SIGKILL if it
	// is still running ProviderKillGrace later.
	cmd.Cancel = func() error { return cmd.Process.Signal(syscall.SIGTERM) }
	cmd.WaitDelay = constants.ProviderKillGrace
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("passphrase provider: stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("passphrase provider: stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("passphrase provider: start: %w", err)
	}

	stderrDone := make(chan struct{})
	go func() {
		defer close(stderrDone)
		p.drainStderr(stderr)
	}()

	out := make([]byte, pageSize)
	n, readErr := io.ReadFull(stdout, out)
	if readErr == io.ErrUnexpectedEOF || readErr == io.EOF {
		readErr = nil
	}

	waitErr := p.waitWithEscalation(cmd)
	<-stderrDone

	if readErr != nil {
		return nil, fmt.Errorf("passphrase provider: read stdout: %w", readErr)
	}
	if waitErr != nil {
		return nil, fmt.Errorf("passphrase provider: %w", waitErr)
	}

	candidate := bytes.TrimRight(out[:n], "\r\n")
	if len(candidate) == 0 {
		return nil, fmt.Errorf("passphrase provider: empty secret")
	}
	return candidate, nil
}

func (p *Provider) drainStderr(r io.Reader) {
	if p.StderrSink == nil {
		_, _ = io.Copy(io.Discard, r)
		return
	}
	buf := make([]byte, 4096)
	var line bytes.Buffer
	for {
		n, err := r.Read(buf)
		for _, b := range buf[:n] {
			if b == '\n' {
				p.StderrSink(line.String())
				line.Reset()
				continue
			}
			line.WriteByte(b)
		}
		if err != nil {
			if line.Len() > 0 {
				p.StderrSink(line.String())
			}
			return
		}
	}
}

func (p *Provider) waitWithEscalation(cmd *exec.Cmd) error {
	err := cmd.Wait()
	if err == nil {
		return nil
	}
	if cmd.ProcessState != nil && cmd.ProcessState.Exited() {
		return err
	}
	if cmd.Process != nil {
		_ = cmd.Process.Signal(syscall.SIGTERM)
		done := make(chan error, 1)
		go func() { done <- cmd.Wait() }()
		select {
		case <-time.After(constants.ProviderKillGrace):
			_ = cmd.Process.Kill()
			<-done
		case <-done:
		}
	}
	return err
}
