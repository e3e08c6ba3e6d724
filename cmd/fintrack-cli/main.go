// Command fintrack-cli signs in to the finance API from a terminal, prints
// the dashboard totals and exports an account's transactions to a file.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/term"

	"fintrack/internal/api"
	"fintrack/internal/cli"
	"fintrack/internal/config"
	"fintrack/internal/core"
	"fintrack/internal/export"
	"fintrack/internal/log"
	"fintrack/internal/services"
	"fintrack/internal/session"
)

const usage = `Usage: fintrack-cli [-api URL] [-credentials FILE] <command> [flags]

Commands:
  login    -email <email> [-password <password>]
  summary
  export   -format xlsx|pdf [-account <id>] [-type income|expense] [-category <id>] [-from YYYY-MM-DD] [-to YYYY-MM-DD] [-o <file>]
  logout
`

var errNotLoggedIn = errors.New("not logged in, run fintrack-cli login first")

func main() {
	cli.LoadEnvFile()
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app is one invocation: the configured client bound to the credentials
// file.
type app struct {
	cfg    *config.Config
	creds  *session.FileCredentials
	client *api.Client
	logger *log.Logger
	stdout io.Writer
	now    func() time.Time
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	cfg := config.Load()

	fs := flag.NewFlagSet("fintrack-cli", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { fmt.Fprint(stderr, usage) }
	apiURL := fs.String("api", cfg.APIBaseURL, "Base URL of the finance API")
	credsPath := fs.String("credentials", "", "Credentials file (default: user config dir)")
	verbose := fs.Bool("v", false, "Log API calls")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return errors.New("missing command")
	}

	path := *credsPath
	if path == "" {
		var err error
		if path, err = session.DefaultCredentialsPath(); err != nil {
			return err
		}
	}
	level := "warn"
	if *verbose {
		level = "debug"
	}
	logger := cli.SetupLogger(stderr, level, false).WithComponent(log.ComponentCLI)

	a := &app{
		cfg:    cfg,
		creds:  session.NewFileCredentials(path),
		logger: logger,
		stdout: stdout,
		now:    time.Now,
	}
	client := api.NewClient(*apiURL, &http.Client{Timeout: cfg.APITimeout}, logger)
	client.OnUnauthenticated(func(ctx context.Context, err *api.RequestError) {
		if cerr := a.creds.Clear(); cerr != nil {
			logger.ErrorContext(ctx, "Failed to clear credentials", log.FieldError, cerr)
		}
	})
	a.client = client.WithCredentials(a.creds)

	ctx := context.Background()
	cmd, rest := fs.Arg(0), fs.Args()[1:]
	switch cmd {
	case "login":
		return a.login(ctx, rest, stdin, stderr)
	case "summary":
		return a.summary(ctx)
	case "export":
		return a.export(ctx, rest, stderr)
	case "logout":
		if err := a.creds.Clear(); err != nil {
			return err
		}
		fmt.Fprintln(stdout, "Logged out")
		return nil
	}
	fs.Usage()
	return fmt.Errorf("unknown command %q", cmd)
}

func (a *app) login(ctx context.Context, args []string, stdin io.Reader, stderr io.Writer) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	fs.SetOutput(stderr)
	email := fs.String("email", "", "Account email")
	passwordFlag := fs.String("password", "", "Password (optional, will prompt if omitted)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*email) == "" {
		return errors.New("missing required flags: email")
	}

	password := *passwordFlag
	if password == "" {
		fmt.Fprint(a.stdout, "Password: ")
		var err error
		password, err = readPassword(stdin)
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(a.stdout)
	}
	if password == "" {
		return errors.New("password cannot be empty")
	}

	res, err := a.client.Login(ctx, *email, password)
	if err != nil {
		return errors.New(api.Message(err, "Login failed. Please check your credentials."))
	}
	if res.Token == "" {
		msg := res.Message
		if msg == "" {
			msg = "Login failed. Please check your credentials."
		}
		return errors.New(msg)
	}
	fmt.Fprintf(a.stdout, "Logged in as %s\n", core.UserFromRecord(res.User).DisplayName())
	return nil
}

func (a *app) requireLogin(ctx context.Context) error {
	if a.creds.Token(ctx) == "" {
		return errNotLoggedIn
	}
	return nil
}

func (a *app) summary(ctx context.Context) error {
	if err := a.requireLogin(ctx); err != nil {
		return err
	}
	d, err := services.NewDashboardService(a.logger).Load(ctx, a.client)
	if err != nil {
		return a.remoteError(err)
	}

	money := func(m core.Money) string { return m.Format(a.cfg.CurrencySymbol) }
	w := a.stdout
	fmt.Fprintf(w, "Total balance:  %s\n", money(d.Stats.TotalBalance))
	fmt.Fprintf(w, "Total income:   %s\n", money(d.Stats.TotalIncome))
	fmt.Fprintf(w, "Total expense:  %s\n", money(d.Stats.TotalExpense))
	fmt.Fprintf(w, "Accounts:       %d\n", d.Stats.AccountCount)
	for _, acc := range d.Accounts {
		fmt.Fprintf(w, "  %-24s %-14s %s\n", acc.Name, acc.Type.Label(), money(acc.Balance))
	}
	if len(d.Recent) > 0 {
		fmt.Fprintln(w, "Recent transactions:")
		for _, t := range d.Recent {
			fmt.Fprintf(w, "  %s  %-16s %-24s %s\n",
				core.DisplayDate(t.CreatedAt), t.AccountName, t.Description,
				core.SignedAmount(t.Transaction, a.cfg.CurrencySymbol))
		}
	}
	if d.PartiallyLoaded() {
		fmt.Fprintf(w, "Some transactions could not be loaded: %s\n", strings.Join(d.FailedAccounts, ", "))
	}
	return nil
}

func (a *app) export(ctx context.Context, args []string, stderr io.Writer) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	fs.SetOutput(stderr)
	formatFlag := fs.String("format", "xlsx", "xlsx or pdf")
	account := fs.String("account", "", "Account id (default: first account)")
	txType := fs.String("type", "", "income or expense")
	category := fs.String("category", "", "Category id")
	from := fs.String("from", "", "Start date")
	to := fs.String("to", "", "End date")
	out := fs.String("o", "", "Output file (default: generated name)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	format, err := export.ParseFormat(*formatFlag)
	if err != nil {
		return err
	}
	if format == export.FormatSheets {
		return errors.New("sheets export is only available from the web interface")
	}
	if err := a.requireLogin(ctx); err != nil {
		return err
	}

	q := services.TransactionQuery{
		AccountID: strings.TrimSpace(*account),
		Filter: api.TransactionFilter{
			CategoryID: strings.TrimSpace(*category),
			StartDate:  strings.TrimSpace(*from),
			EndDate:    strings.TrimSpace(*to),
		},
	}
	if t, ok := core.ParseTxType(*txType); ok {
		q.Filter.Type = string(t)
	}
	list, err := services.LoadTransactionList(ctx, a.client, q)
	if err != nil {
		return a.remoteError(err)
	}
	if !list.HasAccount {
		return errors.New("no account to export")
	}

	report := export.NewReport(list, a.cfg.CurrencySymbol, a.now())
	path := *out
	if path == "" {
		path = report.Filename(format)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	switch format {
	case export.FormatXLSX:
		err = export.WriteXLSX(f, report)
	case export.FormatPDF:
		err = export.WritePDF(f, report)
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return fmt.Errorf("write %s: %w", path, err)
	}
	fmt.Fprintf(a.stdout, "Exported %d transaction(s) from %s to %s\n", len(report.Rows), list.Account.Name, path)
	return nil
}

// remoteError turns an expired session into the login hint.
func (a *app) remoteError(err error) error {
	if api.IsUnauthenticated(err) {
		return errNotLoggedIn
	}
	return errors.New(api.Message(err, err.Error()))
}

func readPassword(stdin io.Reader) (string, error) {
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		if err != nil {
			return "", err
		}
		return string(b), nil
	}

	// pipes and tests
	scanner := bufio.NewScanner(stdin)
	if scanner.Scan() {
		return scanner.Text(), nil
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}
