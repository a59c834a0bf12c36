package buildsys

import (
	"fmt"
	"runtime"
	"strconv"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// DefaultRemote is prefixed to user/repo pairs when cloning
const DefaultRemote = "https://github.com"

var sanitizerFlags = []string{
	"EXTRA_FLAGS=-fsanitize=address",
	"EXTRA_LDFLAGS=-fsanitize=address",
}

// DetectJobs returns the number of processing units available to the build tool
func DetectJobs() int {
	return runtime.NumCPU()
}

// CloneCmd returns the command that clones user/repo from the given remote
func CloneCmd(remote, user, repo string) Command {
	if remote == "" {
		remote = DefaultRemote
	}

	url := fmt.Sprintf("%s/%s/%s.git", strings.TrimSuffix(remote, "/"), user, repo)
	return Command{"git", "clone", url}
}

// CheckoutCmd returns the command that switches the current checkout to branch
func CheckoutCmd(branch string) Command {
	return Command{"git", "checkout", branch}
}

// BuildSequence returns the commands run in the host directory and in every
// plugin directory. Each call returns fresh slices.
func BuildSequence(jobs int, profile Profile) []Command {
	j := strconv.Itoa(jobs)
	dep := Command{"make", "-j", j, "dep"}
	build := Command{"make", "-j", j}

	if profile == ProfileASan {
		dep = append(dep, sanitizerFlags...)
		build = append(build, sanitizerFlags...)
	}

	return []Command{
		{"git", "submodule", "update", "--init", "--recursive"},
		dep,
		build,
	}
}

// StepName returns a short label for a command in the build sequence
func StepName(cmd Command) string {
	if len(cmd) == 0 {
		return "empty"
	}

	switch cmd[0] {
	case "git":
		if len(cmd) > 1 {
			return cmd[1]
		}
	case "make":
		for _, arg := range cmd[1:] {
			if arg == "dep" {
				return "dep"
			}
		}
		return "build"
	}

	return cmd[0]
}

func needsQuoting(arg string) bool {
	if arg == "" {
		return true
	}

	return strings.ContainsAny(arg, " \t\n$'\"\\*?[]{}~;&|<>()`#!")
}

func callExpr(cmd Command) *syntax.CallExpr {
	call := &syntax.CallExpr{
		Args: make([]*syntax.Word, len(cmd)),
	}

	for idx, arg := range cmd {
		var part syntax.WordPart

		switch {
		case !needsQuoting(arg):
			part = &syntax.Lit{Value: arg}
		case !strings.Contains(arg, "'"):
			part = &syntax.SglQuoted{Value: arg}
		default:
			escaped := strings.NewReplacer(`\`, `\\`, `"`, `\"`, `$`, `\$`, "`", "\\`").Replace(arg)
			part = &syntax.DblQuoted{
				Parts: []syntax.WordPart{&syntax.Lit{Value: escaped}},
			}
		}

		call.Args[idx] = &syntax.Word{Parts: []syntax.WordPart{part}}
	}

	return call
}
