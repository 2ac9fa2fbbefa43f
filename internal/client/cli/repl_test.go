package cli

import (
	"bufio"
	"bytes"
	"context"
	"strings"
	"testing"
)

type fakeExec struct {
	loggedIn bool
	calls    []string
}

func (f *fakeExec) isLoggedIn() bool { return f.loggedIn }
func (f *fakeExec) Register(ctx context.Context) error {
	f.calls = append(f.calls, "register")
	return nil
}
func (f *fakeExec) Login(ctx context.Context) error {
	f.calls = append(f.calls, "login")
	f.loggedIn = true
	return nil
}
func (f *fakeExec) Refresh(ctx context.Context) error {
	f.calls = append(f.calls, "refresh")
	return nil
}
func (f *fakeExec) WhoAmI(ctx context.Context) error {
	f.calls = append(f.calls, "whoami")
	return nil
}
func (f *fakeExec) Logout(ctx context.Context) error {
	f.calls = append(f.calls, "logout")
	f.loggedIn = false
	return nil
}

func TestRunREPL_DispatchesCommands(t *testing.T) {
	input := strings.Join([]string{
		"help",
		"register",
		"login",
		"help",
		"",
		"whoami",
		"refresh",
		"logout",
		"foobar",
		"exit",
		"login",
	}, "\n")

	exec := &fakeExec{}
	var out bytes.Buffer
	runREPL(context.Background(), exec, func() string { return "status" }, bufio.NewReader(strings.NewReader(input)), &out)

	want := []string{"register", "login", "whoami", "refresh", "logout"}
	if strings.Join(exec.calls, ",") != strings.Join(want, ",") {
		t.Fatalf("calls = %v, want %v", exec.calls, want)
	}

	s := out.String()
	for _, sub := range []string{
		"Available commands: register, login, exit",
		"Available commands: whoami, refresh, logout, login, register, exit",
		"Unknown command: foobar",
		"Bye!",
		"auth status> ",
	} {
		if !strings.Contains(s, sub) {
			t.Errorf("output missing %q:\n%s", sub, s)
		}
	}
}

func TestRunREPL_StopsAtEOF(t *testing.T) {
	exec := &fakeExec{}
	var out bytes.Buffer

	runREPL(context.Background(), exec, func() string { return "" }, bufio.NewReader(strings.NewReader("login")), &out)

	if len(exec.calls) != 1 || exec.calls[0] != "login" {
		t.Fatalf("unexpected calls: %v", exec.calls)
	}
}
