package workflow

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/user"
	"path/filepath"
	"strings"
	"time"

	"github.com/termai-core/termai/internal/arbiter"
	"github.com/termai-core/termai/internal/llmchat"
)

const (
	defaultShellTimeout = 60 * time.Second
	shellOutputCap      = 10 * 1024 * 1024 // 10 MiB, fallback child-process path only
	fileReadCap         = 4 * 1024 * 1024
)

// execShellNode runs a shell node. The preferred path delegates to the
// attached Session so the command is visible in the user's own PTY; the
// fallback spawns a bare child process when no Session is attached.
func (e *Engine) execShellNode(ctx context.Context, data map[string]interface{}) (*ShellPayload, error) {
	command, _ := data["command"].(string)
	timeout := durationField(data["timeout"], defaultShellTimeout)
	cwd, _ := data["cwd"].(string)

	if e.session != nil {
		return e.execShellViaSession(ctx, command, timeout, cwd)
	}
	return execShellViaChildProcess(ctx, command, timeout, cwd)
}

func (e *Engine) execShellViaSession(ctx context.Context, command string, timeout time.Duration, cwd string) (*ShellPayload, error) {
	opts := arbiter.DefaultWriteAgentOptions()
	opts.Timeout = timeout
	if cwd != "" {
		command = fmt.Sprintf("cd %s && %s", shellQuote(cwd), command)
	}
	res, err := e.session.WriteAgent(ctx, command, opts)
	if err != nil {
		return nil, err
	}
	exitCode := 0
	if res.Interrupted {
		exitCode = 130 // conventional SIGINT exit code, matches §4.2's mapping
	} else if res.TimedOut {
		return nil, ErrTimedOut
	}
	return &ShellPayload{
		Stdout:   string(res.Output),
		ExitCode: exitCode,
		Cwd:      res.Cwd,
	}, nil
}

func execShellViaChildProcess(ctx context.Context, command string, timeout time.Duration, cwd string) (*ShellPayload, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	shellPath := os.Getenv("SHELL")
	if shellPath == "" {
		shellPath = "/bin/sh"
	}
	cmd := exec.CommandContext(ctx, shellPath, "-c", command)
	if cwd != "" {
		cmd.Dir = cwd
	}

	var stdout, stderr capBuffer
	stdout.limit = shellOutputCap
	stderr.limit = shellOutputCap
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return nil, ErrTimedOut
	}

	exitCode := 0
	if runErr != nil {
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			return nil, runErr
		}
	}
	return &ShellPayload{Stdout: stdout.String(), Stderr: stderr.String(), ExitCode: exitCode, Cwd: cwd}, nil
}

// capBuffer is a bytes.Buffer that silently stops accepting writes past
// limit instead of growing unbounded, for the fallback child-process
// path's output cap.
type capBuffer struct {
	bytes.Buffer
	limit int
}

func (c *capBuffer) Write(p []byte) (int, error) {
	if c.Len() >= c.limit {
		return len(p), nil
	}
	remaining := c.limit - c.Len()
	if len(p) > remaining {
		p = p[:remaining]
	}
	return c.Buffer.Write(p)
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// execAINode calls the bound LLM capability with a single user message.
func (e *Engine) execAINode(ctx context.Context, data map[string]interface{}) (*AIPayload, error) {
	if e.llm == nil {
		return nil, ErrLLMUnavail
	}
	prompt, _ := data["prompt"].(string)
	systemPrompt, _ := data["systemPrompt"].(string)
	provider, _ := data["provider"].(string)
	model, _ := data["model"].(string)

	response, err := e.llm.Chat(ctx, systemPrompt, []llmchat.Message{{Role: "user", Content: prompt}})
	if err != nil {
		return nil, err
	}
	return &AIPayload{Response: response, Provider: provider, Model: model}, nil
}

// execBranchNode evaluates the restricted condition sub-language. This
// call is total: it has no error return, matching §4.2's
// "evaluator error yields conditionResult=false ... not raised as
// failed".
func execBranchNode(data map[string]interface{}) *BranchPayload {
	condition, _ := data["condition"].(string)
	result, evaluated := evaluateCondition(condition)
	return &BranchPayload{ConditionResult: result, Evaluated: evaluated}
}

// fileOperation is the closed set of file node operations.
type fileOperation string

const (
	fileRead   fileOperation = "read"
	fileWrite  fileOperation = "write"
	fileAppend fileOperation = "append"
	fileExists fileOperation = "exists"
	fileDelete fileOperation = "delete"
)

// execFileNode performs one sandboxed filesystem operation. Every path
// is resolved and required to live under either the invoking user's
// home directory or the process working directory.
func execFileNode(data map[string]interface{}) (*FilePayload, error) {
	op := fileOperation(stringField(data["operation"]))
	rawPath := stringField(data["filePath"])
	content := stringField(data["content"])

	resolved, err := resolveSandboxedPath(rawPath)
	if err != nil {
		return nil, err
	}

	switch op {
	case fileRead:
		b, err := os.ReadFile(resolved)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, ErrNotFound
			}
			return nil, err
		}
		if len(b) > fileReadCap {
			b = b[:fileReadCap]
		}
		return &FilePayload{FilePath: resolved, Content: string(b)}, nil

	case fileWrite, fileAppend:
		if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
			return nil, err
		}
		flags := os.O_CREATE | os.O_WRONLY
		if op == fileAppend {
			flags |= os.O_APPEND
		} else {
			flags |= os.O_TRUNC
		}
		f, err := os.OpenFile(resolved, flags, 0o644)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		n, err := io.WriteString(f, content)
		if err != nil {
			return nil, err
		}
		return &FilePayload{FilePath: resolved, BytesWritten: n}, nil

	case fileExists:
		_, err := os.Stat(resolved)
		return &FilePayload{FilePath: resolved, Exists: err == nil}, nil

	case fileDelete:
		if err := os.Remove(resolved); err != nil && !os.IsNotExist(err) {
			return nil, err
		}
		return &FilePayload{FilePath: resolved}, nil

	default:
		return nil, fmt.Errorf("workflow: unknown file operation %q", op)
	}
}

func resolveSandboxedPath(raw string) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		if u, uerr := user.Current(); uerr == nil {
			home = u.HomeDir
		}
	}
	if strings.HasPrefix(raw, "~") {
		raw = filepath.Join(home, strings.TrimPrefix(raw, "~"))
	}
	abs, err := filepath.Abs(raw)
	if err != nil {
		return "", err
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	if withinRoot(abs, home) || withinRoot(abs, cwd) {
		return abs, nil
	}
	return "", ErrPathEscape
}

func withinRoot(path, root string) bool {
	if root == "" {
		return false
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel == "." || (!strings.HasPrefix(rel, "..") && !filepath.IsAbs(rel))
}

func stringField(v interface{}) string {
	s, _ := v.(string)
	return s
}

func durationField(v interface{}, fallback time.Duration) time.Duration {
	switch t := v.(type) {
	case float64:
		return time.Duration(t) * time.Millisecond
	case int:
		return time.Duration(t) * time.Millisecond
	case time.Duration:
		return t
	default:
		return fallback
	}
}
