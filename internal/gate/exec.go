package gate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
)

// Command внешняя команда стадии
type Command struct {
	Args []string
	Dir  string
	Env  map[string]string
}

// Executor запускает внешние команды
type Executor interface {
	// Run возвращает код завершения. Ошибка без кода означает, что команда не запустилась.
	Run(ctx context.Context, cmd Command) (int, error)
}

// ExecExecutor запускает команды через os/exec
type ExecExecutor struct {
	Stdout io.Writer
	Stderr io.Writer
}

// NewExecExecutor создает исполнителя, пишущего вывод команд в stdout и stderr процесса
func NewExecExecutor() *ExecExecutor {
	return &ExecExecutor{Stdout: os.Stdout, Stderr: os.Stderr}
}

// Run запускает команду и сохраняет ее код завершения
func (e *ExecExecutor) Run(ctx context.Context, cmd Command) (int, error) {
	if len(cmd.Args) == 0 {
		return 1, errors.New("empty command")
	}

	c := exec.CommandContext(ctx, cmd.Args[0], cmd.Args[1:]...)
	c.Dir = cmd.Dir
	c.Env = mergeEnv(os.Environ(), cmd.Env)
	c.Stdout = e.Stdout
	c.Stderr = e.Stderr

	err := c.Run()
	if err == nil {
		return 0, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code := exitErr.ExitCode()
		if code < 0 {
			// убит сигналом или отменой контекста
			code = 1
		}
		return code, fmt.Errorf("%s exited with code %d", filepath.Base(cmd.Args[0]), code)
	}
	return 1, fmt.Errorf("failed to run %s: %w", cmd.Args[0], err)
}

// mergeEnv дописывает переменные в детерминированном порядке; последнее значение побеждает
func mergeEnv(base []string, extra map[string]string) []string {
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	env := append([]string(nil), base...)
	for _, k := range keys {
		env = append(env, k+"="+extra[k])
	}
	return env
}
