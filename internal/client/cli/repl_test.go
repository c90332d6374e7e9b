package cli

import (
	"bufio"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type stubExec struct {
	loggedIn bool
	calls    []string
}

func (s *stubExec) isLoggedIn() bool { return s.loggedIn }

func (s *stubExec) record(name string) error {
	s.calls = append(s.calls, name)
	return nil
}

func (s *stubExec) Register(ctx context.Context) error    { return s.record("register") }
func (s *stubExec) Login(ctx context.Context) error       { return s.record("login") }
func (s *stubExec) Me(ctx context.Context) error          { return s.record("me") }
func (s *stubExec) Instructors(ctx context.Context) error { return s.record("instructors") }
func (s *stubExec) Tokens(ctx context.Context) error      { return s.record("tokens") }
func (s *stubExec) Refresh(ctx context.Context) error     { return s.record("refresh") }
func (s *stubExec) Logout(ctx context.Context) error      { return s.record("logout") }

func runScript(t *testing.T, exec *stubExec, script string) []string {
	t.Helper()

	var printed []string
	orig := printlnFn
	printlnFn = func(a ...any) (int, error) {
		for _, v := range a {
			if s, ok := v.(string); ok {
				printed = append(printed, s)
			}
		}
		return 0, nil
	}
	defer func() { printlnFn = orig }()

	scanner := bufio.NewScanner(strings.NewReader(script))
	runREPL(context.Background(), exec, func() string { return "test" }, scanner)
	return printed
}

func TestREPL_DispatchesCommands(t *testing.T) {
	exec := &stubExec{loggedIn: true}

	runScript(t, exec, "me\ninstructors\ntokens\nrefresh\nlogout\nexit\n")

	assert.Equal(t, []string{"me", "instructors", "tokens", "refresh", "logout"}, exec.calls)
}

func TestREPL_ExitsOnQuit(t *testing.T) {
	exec := &stubExec{}
	runScript(t, exec, "quit\nregister\n")
	assert.Empty(t, exec.calls, "commands after quit must not run")
}

func TestREPL_ExitsOnEOF(t *testing.T) {
	exec := &stubExec{}
	runScript(t, exec, "login\n")
	assert.Equal(t, []string{"login"}, exec.calls)
}

func TestREPL_UnknownCommand(t *testing.T) {
	exec := &stubExec{}
	printed := runScript(t, exec, "frobnicate\nexit\n")

	assert.Empty(t, exec.calls)
	assert.Contains(t, strings.Join(printed, "\n"), "Unknown command")
}

func TestREPL_HelpReflectsLoginState(t *testing.T) {
	printed := runScript(t, &stubExec{loggedIn: false}, "help\nexit\n")
	assert.Contains(t, strings.Join(printed, "\n"), "register, login")

	printed = runScript(t, &stubExec{loggedIn: true}, "help\nexit\n")
	assert.Contains(t, strings.Join(printed, "\n"), "me, instructors")
}
