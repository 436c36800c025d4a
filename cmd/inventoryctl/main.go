// inventoryctl is a command line client for the inventory admin server.
// It keeps the session the way the web front end does: token and profile
// in client storage, the token mirrored into a cookie for page requests
// and sent as a bearer header on API calls.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/inventory-admin/internal/client"
	"github.com/iliyamo/inventory-admin/internal/policy"
	"github.com/iliyamo/inventory-admin/internal/session"
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		if errors.Is(err, client.ErrReauthRequired) {
			os.Exit(3)
		}
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout io.Writer) error {
	var (
		configPath string
		server     string
		storePath  string
		password   string
		verbose    bool
	)
	flagSet := pflag.NewFlagSet("inventoryctl", pflag.ContinueOnError)
	flagSet.StringVarP(&configPath, "config", "c", defaultConfigPath(), "path to YAML config")
	flagSet.StringVar(&server, "server", "", "server base URL (overrides config)")
	flagSet.StringVar(&storePath, "session-file", "", "session file path (overrides config)")
	flagSet.StringVarP(&password, "password", "p", "", "password for login (default: $INVENTORY_PASSWORD or stdin)")
	flagSet.BoolVarP(&verbose, "verbose", "v", false, "debug logging to stderr")
	flagSet.SetInterspersed(true)
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printUsage(stdout, flagSet)
			return nil
		}
		return err
	}

	rest := flagSet.Args()
	if len(rest) == 0 {
		printUsage(stdout, flagSet)
		return nil
	}

	cfg, err := loadConfig(configPath, flagSet.Changed("config"))
	if err != nil {
		return err
	}
	if server != "" {
		cfg.Server = server
	}
	if storePath != "" {
		cfg.Storage.Kind, cfg.Storage.Path = "file", storePath
	}

	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	storage, closeStorage, err := openStorage(cfg.Storage)
	if err != nil {
		return err
	}
	defer closeStorage()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := client.New(cfg.Server, storage, client.WithLogger(logger))
	if err != nil {
		return err
	}
	if err := c.Init(ctx); err != nil {
		return err
	}
	if c.ExpiringSoon(ctx) && !c.Store().IsExpired(ctx) {
		fmt.Fprintln(os.Stderr, "warning: your session expires in less than 5 minutes; run `inventoryctl login` to renew it")
	}

	cmd := &command{c: c, out: stdout, in: stdin, password: password, logger: logger}
	return cmd.dispatch(ctx, rest[0], rest[1:])
}

type command struct {
	c        *client.Client
	out      io.Writer
	in       io.Reader
	password string
	logger   *slog.Logger
}

func (cmd *command) dispatch(ctx context.Context, name string, args []string) error {
	switch name {
	case "login":
		return cmd.login(ctx, args)
	case "logout":
		return cmd.c.Logout(ctx)
	case "status":
		return cmd.status(ctx)
	case "whoami":
		id, err := cmd.c.Me(ctx)
		if err != nil {
			return err
		}
		return cmd.print(id)
	case "dashboard":
		id, err := cmd.c.Dashboard(ctx)
		if err != nil {
			return err
		}
		return cmd.print(id)
	case "list", "get", "create", "update", "delete":
		return cmd.resource(ctx, name, args)
	case "watch":
		return cmd.watch(ctx)
	}
	return fmt.Errorf("unknown command %q", name)
}

func (cmd *command) login(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: inventoryctl login <username>")
	}
	pw := cmd.password
	if pw == "" {
		pw = os.Getenv("INVENTORY_PASSWORD")
	}
	if pw == "" {
		fmt.Fprint(cmd.out, "password: ")
		line, err := bufio.NewReader(cmd.in).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("read password: %w", err)
		}
		pw = strings.TrimRight(line, "\r\n")
	}
	user, dest, err := cmd.c.Login(ctx, args[0], pw)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.out, "logged in as %s (%s)\n", user.Username, user.Role)
	if dest != "/" {
		fmt.Fprintf(cmd.out, "resume: %s\n", dest)
	}
	return nil
}

func (cmd *command) status(ctx context.Context) error {
	st := cmd.c.Store()
	rec := st.Get(ctx)
	if rec == nil {
		fmt.Fprintln(cmd.out, "not logged in")
		return nil
	}
	state := "active"
	switch {
	case st.IsExpired(ctx):
		state = "expired"
	case st.IsExpiringSoon(ctx, session.DefaultExpiryWindow):
		state = "expiring soon"
	}
	fmt.Fprintf(cmd.out, "user:     %s (%s)\n", rec.User.Username, rec.User.Role)
	fmt.Fprintf(cmd.out, "expires:  %s (%s)\n", rec.ExpiresAt.Local().Format(time.RFC1123), state)
	if tab := st.CurrentTab(ctx); tab != "" {
		fmt.Fprintf(cmd.out, "tab:      %s\n", tab)
	}
	caps := policy.CapabilitiesOf(rec.User.Role)
	fmt.Fprintf(cmd.out, "can:      create=%v delete=%v admin=%v\n", caps.CanCreateRecords, caps.CanDeleteRecords, caps.IsAdmin)
	return nil
}

func (cmd *command) resource(ctx context.Context, verb string, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: inventoryctl %s <resource> ...", verb)
	}
	resource := args[0]
	if err := cmd.c.Store().SetCurrentTab(ctx, resource); err != nil {
		cmd.logger.DebugContext(ctx, "remember current tab failed", "tab", resource, "err", err)
	}

	var out json.RawMessage
	var err error
	switch verb {
	case "list":
		out, err = cmd.c.List(ctx, resource, nil)
	case "get":
		if len(args) != 2 {
			return errors.New("usage: inventoryctl get <resource> <id>")
		}
		out, err = cmd.c.Get(ctx, resource, args[1])
	case "create":
		if len(args) != 2 {
			return errors.New("usage: inventoryctl create <resource> <json>")
		}
		out, err = cmd.c.Create(ctx, resource, json.RawMessage(args[1]))
	case "update":
		if len(args) != 3 {
			return errors.New("usage: inventoryctl update <resource> <id> <json>")
		}
		out, err = cmd.c.Update(ctx, resource, args[1], json.RawMessage(args[2]))
	case "delete":
		if len(args) != 2 {
			return errors.New("usage: inventoryctl delete <resource> <id>")
		}
		err = cmd.c.Delete(ctx, resource, args[1])
	}
	if err != nil {
		return err
	}
	if len(out) > 0 {
		_, err = fmt.Fprintln(cmd.out, string(out))
	}
	return err
}

// watch reports session changes made by other processes sharing the
// storage until interrupted.
func (cmd *command) watch(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		last := cookieState(cmd.c)
		fmt.Fprintf(cmd.out, "session cookie: %s\n", last)
		t := time.NewTicker(500 * time.Millisecond)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-t.C:
				if now := cookieState(cmd.c); now != last {
					fmt.Fprintf(cmd.out, "session cookie: %s\n", now)
					last = now
				}
			}
		}
	})
	g.Go(func() error {
		t := time.NewTicker(30 * time.Second)
		defer t.Stop()
		warned := false
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-t.C:
				if soon := cmd.c.ExpiringSoon(ctx); soon && !warned {
					fmt.Fprintln(cmd.out, "session expires soon; log in again to continue")
					warned = true
				} else if !soon {
					warned = false
				}
			}
		}
	})
	return g.Wait()
}

func cookieState(c *client.Client) string {
	if len(c.Cookies()) == 0 {
		return "cleared"
	}
	return "present"
}

func (cmd *command) print(v any) error {
	enc := json.NewEncoder(cmd.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printUsage(w io.Writer, flagSet *pflag.FlagSet) {
	fmt.Fprintf(w, `inventoryctl talks to the inventory admin server.

Usage:
  inventoryctl [flags] <command> [args]

Commands:
  login <username>                 sign in and store the session
  logout                           sign out here and clear the session cookie
  status                           show the stored session
  whoami                           ask the server who you are (bearer token)
  dashboard                        load the dashboard page (cookie only)
  list <resource>                  employees, hardware, software, assignments, users
  get <resource> <id>
  create <resource> <json>         manager or admin
  update <resource> <id> <json>    manager or admin
  delete <resource> <id>           admin
  watch                            follow session changes from other processes

Flags:
%s`, flagSet.FlagUsages())
}
