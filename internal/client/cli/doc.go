// Package cli provides the interactive command-line client for the auth
// service.
//
// The REPL keeps one session in memory and supports:
//   - register  create an account (name, email, role, password)
//   - login     start a session
//   - refresh   rotate the session's token pair
//   - whoami    show the session's user id, name, role and token expiry
//   - logout    end the session on the server
//
// Start it with App.Run, which blocks until the user exits or stdin ends.
package cli
