package buildsys

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

// Executor runs a single command inside dir and waits for it to finish.
// A non-zero exit status is reported as *ExitError, a command that could not
// be started as *LaunchError.
type Executor interface {
	Exec(ctx context.Context, dir string, cmd Command) error
}

// ExitError reports a command that ran but exited with a non-zero status
type ExitError struct {
	Command Command
	Code    int
}

var _ error = (*ExitError)(nil)

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s exited with status %d", e.Command, e.Code)
}

// LaunchError reports a command that could not be started at all
type LaunchError struct {
	Command Command
	Dir     string
	Err     error
}

var _ error = (*LaunchError)(nil)

func (e *LaunchError) Error() string {
	return fmt.Sprintf("failed to launch %s in %s: %v", e.Command, e.Dir, e.Err)
}

func (e *LaunchError) Unwrap() error {
	return e.Err
}

// ShellExecutor runs commands through the mvdan.cc/sh interpreter
type ShellExecutor struct {
	Stdout io.Writer
	Stderr io.Writer
	// Env defaults to the environment of the current process
	Env []string
	// Middlewares wrap the exec handler, outermost first
	Middlewares []func(next interp.ExecHandlerFunc) interp.ExecHandlerFunc
}

// NewShellExecutor returns an executor that passes output through to the
// current process' stdout and stderr
func NewShellExecutor() *ShellExecutor {
	return &ShellExecutor{
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
}

// lookupHandler turns missing binaries into launch errors. The default handler
// would report them as exit status 127 which we can't tell apart from a
// failing build. The lookup uses the runner's PATH and working directory.
func lookupHandler(next interp.ExecHandlerFunc) interp.ExecHandlerFunc {
	return func(ctx context.Context, args []string) error {
		if len(args) > 0 {
			hc := interp.HandlerCtx(ctx)
			if _, err := interp.LookPathDir(hc.Dir, hc.Env, args[0]); err != nil {
				return &LaunchError{
					Command: Command(args),
					Dir:     hc.Dir,
					Err:     err,
				}
			}
		}

		return next(ctx, args)
	}
}

// Exec implements Executor
func (e *ShellExecutor) Exec(ctx context.Context, dir string, cmd Command) error {
	if len(cmd) == 0 {
		return eris.New("empty command")
	}

	info, err := os.Stat(dir)
	if err != nil {
		return &LaunchError{Command: cmd, Dir: dir, Err: err}
	}
	if !info.IsDir() {
		return &LaunchError{Command: cmd, Dir: dir, Err: eris.Errorf("%s is not a directory", dir)}
	}

	env := e.Env
	if env == nil {
		env = os.Environ()
	}

	var launchErr *LaunchError
	capture := func(next interp.ExecHandlerFunc) interp.ExecHandlerFunc {
		return func(ctx context.Context, args []string) error {
			err := next(ctx, args)
			if err != nil {
				errors.As(err, &launchErr)
			}
			return err
		}
	}

	middlewares := append([]func(interp.ExecHandlerFunc) interp.ExecHandlerFunc{capture}, e.Middlewares...)
	middlewares = append(middlewares, lookupHandler)

	runner, err := interp.New(
		interp.Dir(dir),
		interp.Env(expand.ListEnviron(env...)),
		interp.ExecHandlers(middlewares...),
		interp.StdIO(nil, e.Stdout, e.Stderr),
	)
	if err != nil {
		return eris.Wrap(err, "Failed to initialize runner")
	}

	err = runner.Run(ctx, &syntax.Stmt{Cmd: callExpr(cmd)})
	if launchErr != nil {
		return launchErr
	}

	if err != nil {
		if status, ok := interp.IsExitStatus(err); ok {
			return &ExitError{Command: cmd, Code: int(status)}
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		return eris.Wrapf(err, "failed to run %s", cmd)
	}

	return nil
}
