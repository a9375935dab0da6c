package cgi

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/watt-toolkit/filament/pkg/filament/config"
)

// Chunk sizes for the non-blocking pipe I/O.
const (
	writeChunkSize = 64 * 1024
	readChunkSize  = 64 * 1024
)

// DefaultTimeout is how long a script may run before it is killed and the
// client receives a 504.
const DefaultTimeout = 30 * time.Second

// Process is one running CGI child and the I/O state the event loop drives.
// The stdin and stdout descriptors are registered with the poller by the
// connection registry; this struct owns the underlying files.
type Process struct {
	PID int

	// ScriptURL is the script's URL prefix (the SCRIPT_NAME handed to the
	// child), as split off the request path at spawn.
	ScriptURL string

	// Body is the request body still owed to the child's stdin.
	Body       []byte
	BodyOffset int

	// Output accumulates everything the child writes to stdout.
	Output []byte

	Started time.Time

	stdin  *os.File // write end of the child's stdin pipe; nil once closed
	stdout *os.File // read end of the child's stdout pipe; nil once closed

	reaped bool
}

// StdinFD returns the pollable descriptor of the stdin pipe, or -1 when it
// is already closed.
func (p *Process) StdinFD() int {
	if p.stdin == nil {
		return -1
	}
	return int(p.stdin.Fd())
}

// StdoutFD returns the pollable descriptor of the stdout pipe, or -1 when
// it is already closed.
func (p *Process) StdoutFD() int {
	if p.stdout == nil {
		return -1
	}
	return int(p.stdout.Fd())
}

// CloseStdin closes the write end of the child's stdin. Safe to call twice.
func (p *Process) CloseStdin() {
	if p.stdin != nil {
		p.stdin.Close()
		p.stdin = nil
	}
}

// CloseStdout closes the read end of the child's stdout. Safe to call twice.
func (p *Process) CloseStdout() {
	if p.stdout != nil {
		p.stdout.Close()
		p.stdout = nil
	}
}

// TimedOut reports whether the child has been running longer than timeout.
func (p *Process) TimedOut(now time.Time, timeout time.Duration) bool {
	return !p.Started.IsZero() && now.Sub(p.Started) >= timeout
}

// Engine spawns and reaps CGI children.
type Engine struct {
	log     *logrus.Logger
	Timeout time.Duration
}

// NewEngine returns an engine logging through log.
func NewEngine(log *logrus.Logger) *Engine {
	return &Engine{log: log, Timeout: DefaultTimeout}
}

// Start spawns the interpreter for scriptFile with stdin and stdout wired
// to pipes, working directory set to the script's directory, and the
// CGI/1.1 environment in place. The parent's pipe ends come back
// non-blocking inside the returned Process.
//
// Ownership is all-or-nothing: on any error every descriptor created here
// is closed before returning.
func (e *Engine) Start(srv *config.Server, loc *config.Location, method, cleanPath, query,
	scriptFile string, head, body []byte) (*Process, error) {

	ext := MatchExtension(cleanPath, loc)
	if ext == "" {
		return nil, fmt.Errorf("cgi: %s has no configured extension", cleanPath)
	}
	interpreter, err := Interpreter(ext, loc)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(scriptFile); err != nil {
		return nil, fmt.Errorf("cgi: script %s: %w", scriptFile, err)
	}

	scriptURL, pathInfo := SplitScriptURL(cleanPath)
	env := BuildEnv(srv, method, scriptURL, scriptFile, pathInfo, query, head, len(body))

	stdinR, stdinW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("cgi: stdin pipe: %w", err)
	}
	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		stdinR.Close()
		stdinW.Close()
		return nil, fmt.Errorf("cgi: stdout pipe: %w", err)
	}

	argv := []string{interpreter}
	if isInterpreterStyle(interpreter) {
		argv = append(argv, filepath.Base(scriptFile))
	}

	attr := &os.ProcAttr{
		Dir:   filepath.Dir(scriptFile),
		Env:   env,
		Files: []*os.File{stdinR, stdoutW, os.Stderr},
	}
	child, err := os.StartProcess(interpreter, argv, attr)
	if err != nil {
		stdinR.Close()
		stdinW.Close()
		stdoutR.Close()
		stdoutW.Close()
		return nil, fmt.Errorf("cgi: exec %s: %w", interpreter, err)
	}
	pid := child.Pid
	_ = child.Release()

	// child ends live in the child now
	stdinR.Close()
	stdoutW.Close()

	if err := unix.SetNonblock(int(stdinW.Fd()), true); err != nil {
		e.log.WithError(err).Warn("cgi: stdin nonblock")
	}
	if err := unix.SetNonblock(int(stdoutR.Fd()), true); err != nil {
		e.log.WithError(err).Warn("cgi: stdout nonblock")
	}

	e.log.WithFields(logrus.Fields{
		"pid":    pid,
		"script": scriptFile,
	}).Info("cgi: started")

	return &Process{
		PID:       pid,
		ScriptURL: scriptURL,
		Body:      body,
		Started:   time.Now(),
		stdin:     stdinW,
		stdout:    stdoutR,
	}, nil
}

// WriteBody pushes up to one chunk of the pending request body into the
// child's stdin. done means the body is exhausted (or the pipe reported a
// zero write) and the stdin pipe should be detached and closed; err is a
// hard pipe failure that should abort the CGI with a 500.
func (p *Process) WriteBody() (done bool, err error) {
	if p.stdin == nil || p.BodyOffset >= len(p.Body) {
		return true, nil
	}
	end := p.BodyOffset + writeChunkSize
	if end > len(p.Body) {
		end = len(p.Body)
	}
	n, werr := unix.Write(int(p.stdin.Fd()), p.Body[p.BodyOffset:end])
	if werr != nil {
		if werr == unix.EAGAIN {
			return false, nil
		}
		return false, fmt.Errorf("cgi: write to child: %w", werr)
	}
	if n == 0 {
		return true, nil
	}
	p.BodyOffset += n
	return p.BodyOffset >= len(p.Body), nil
}

// ReadOutput drains up to one chunk from the child's stdout into the
// accumulator. eof means the child closed its end (normal completion);
// err is a hard read failure. Neither EAGAIN nor a short read is an error.
func (p *Process) ReadOutput() (eof bool, err error) {
	if p.stdout == nil {
		return true, nil
	}
	buf := make([]byte, readChunkSize)
	n, rerr := unix.Read(int(p.stdout.Fd()), buf)
	if rerr != nil {
		if rerr == unix.EAGAIN {
			return false, nil
		}
		return false, fmt.Errorf("cgi: read from child: %w", rerr)
	}
	if n == 0 {
		return true, nil
	}
	p.Output = append(p.Output, buf[:n]...)
	return false, nil
}

// Reap collects the child's exit status without blocking. Abnormal exits
// are logged; reaping twice is a no-op.
func (e *Engine) Reap(p *Process) {
	if p.reaped || p.PID <= 0 {
		return
	}
	var status unix.WaitStatus
	pid, err := unix.Wait4(p.PID, &status, unix.WNOHANG, nil)
	if err != nil || pid == 0 {
		return
	}
	p.reaped = true
	switch {
	case status.Exited() && status.ExitStatus() != 0:
		e.log.WithFields(logrus.Fields{"pid": p.PID, "code": status.ExitStatus()}).
			Error("cgi: process exited with non-zero status")
	case status.Signaled():
		e.log.WithFields(logrus.Fields{"pid": p.PID, "signal": status.Signal()}).
			Error("cgi: process killed by signal")
	}
}

// Kill terminates the child with SIGKILL and makes one non-blocking attempt
// to collect it; a child that has not exited by that instant is left
// uncollected. Used on timeout and on hard pipe errors.
func (e *Engine) Kill(p *Process) {
	if p.PID > 0 && !p.reaped {
		_ = unix.Kill(p.PID, unix.SIGKILL)
		var status unix.WaitStatus
		if pid, err := unix.Wait4(p.PID, &status, unix.WNOHANG, nil); err == nil && pid > 0 {
			p.reaped = true
		}
	}
}
