package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/carmarket/marketauth/internal/client/client"
	"github.com/carmarket/marketauth/internal/client/config"
)

type App struct {
	config *config.Config
	client client.Client
	reader *bufio.Reader
	out    io.Writer
}

func NewApp(c *config.Config) (*App, error) {
	apiClient, err := client.NewAuthClient(c.ServerEndpointAddr, c.RequestTimeout)
	if err != nil {
		return nil, err
	}
	return &App{config: c, client: apiClient, reader: bufio.NewReader(os.Stdin), out: os.Stdout}, nil
}

func (a *App) Run(ctx context.Context) {
	defer a.client.Close()

	fmt.Fprintf(a.out, "CarMarket auth CLI, server %s (type 'help' for commands)\n", a.config.ServerEndpointAddr)
	runREPL(ctx, a, a.getStatus, a.reader, a.out)
}

func (a *App) isLoggedIn() bool {
	_, ok := a.client.Session()
	return ok
}

func (a *App) getStatus() string {
	s, ok := a.client.Session()
	if !ok {
		return ""
	}
	return fmt.Sprintf("(%s %s)", s.Name, s.Role)
}
