package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/carmarket/marketauth/internal/client/client"
	"github.com/carmarket/marketauth/internal/common"
	"github.com/carmarket/marketauth/internal/cryptox"
)

// getSimpleText and getPassword are swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// Register prompts for name, email, role and password and creates the
// account. It does not log in.
func (a *App) Register(ctx context.Context) error {
	var fields [3]string
	for i, prompt := range []string{"Enter name", "Enter email", "Enter role (Admin, Seller, Buyer)"} {
		v, err := getSimpleText(a.reader, prompt, a.out)
		if err != nil {
			return err
		}
		fields[i] = v
	}

	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer cryptox.WipeByteArray(password)

	user, err := a.client.Register(ctx, fields[0], fields[1], string(password), fields[2])
	if err != nil {
		return a.report("Registration failed", err)
	}

	fmt.Fprintf(a.out, "Registered %s as %s (id %d)\n", user.Email, user.Role, user.Id)
	return nil
}

// Login prompts for credentials and starts a session, replacing any
// current one.
func (a *App) Login(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}

	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer cryptox.WipeByteArray(password)

	s, err := a.client.Login(ctx, email, string(password))
	if err != nil {
		return a.report("Login failed", err)
	}

	fmt.Fprintf(a.out, "Logged in as %s (%s)\n", s.Name, s.Role)
	return nil
}

func (a *App) Refresh(ctx context.Context) error {
	s, err := a.client.Refresh(ctx)
	if err != nil {
		return a.report("Refresh failed", err)
	}
	fmt.Fprintf(a.out, "Session refreshed, access token valid until %s\n", s.ExpiresAt.Local().Format(time.DateTime))
	return nil
}

func (a *App) WhoAmI(_ context.Context) error {
	s, ok := a.client.Session()
	if !ok {
		return a.report("whoami", client.ErrNoSession)
	}
	fmt.Fprintf(a.out, "id: %d\nname: %s\nrole: %s\naccess token expires: %s\n",
		s.UserID, s.Name, s.Role, s.ExpiresAt.Local().Format(time.DateTime))
	return nil
}

func (a *App) Logout(ctx context.Context) error {
	if err := a.client.Logout(ctx); err != nil {
		return a.report("Logout failed", err)
	}
	fmt.Fprintln(a.out, "Logged out")
	return nil
}

// report prints a user-facing message for err and returns err.
func (a *App) report(action string, err error) error {
	fmt.Fprintf(a.out, "%s: %s\n", action, describeError(err))
	return err
}

func describeError(err error) string {
	switch {
	case errors.Is(err, common.ErrDuplicateEmail):
		return "email is already registered"
	case errors.Is(err, common.ErrInvalidInput):
		return err.Error()
	case errors.Is(err, common.ErrInvalidCredentials):
		return "wrong email or password"
	case errors.Is(err, common.ErrInvalidToken), errors.Is(err, common.ErrTokenExpired):
		return "session is no longer valid, please log in again"
	case errors.Is(err, common.ErrNotFound):
		return "user no longer exists"
	case errors.Is(err, client.ErrNoSession):
		return "not logged in"
	case errors.Is(err, client.ErrUnavailable):
		return "server unavailable"
	default:
		return err.Error()
	}
}
