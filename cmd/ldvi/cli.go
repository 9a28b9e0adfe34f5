// Package main is the thin CLI glue for ldvi: it parses flags with kong,
// searches an LDAP directory, materializes the result into a clean file,
// lets a human edit a copy, diffs the two, and applies the result through
// ldapclient.Handler. None of this is part of the core (spec §1 names the
// wire client, CLI parsing, and editor/TTY interaction as out of scope for
// the diff engine); this package exists to wire the core's pieces into a
// runnable tool, the same relationship oba/cmd/oba has to oba's own
// internal packages.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/alecthomas/kong"

	"github.com/KilimcininKorOglu/ldvi/internal/config"
	"github.com/KilimcininKorOglu/ldvi/internal/logging"
)

var (
	version = "0.1.0"
	commit  = "unknown"
)

// CLI holds every flag kong understands. Mirrors
// DrThundercat-gofun/generate_ldap_entries/internal/cli.CLIConfig's shape:
// one flat struct, kong.Parse fills it, a Run method does the work.
type CLI struct {
	Address      string `help:"LDAP URL to connect to." name:"address"`
	BindDN       string `help:"DN to bind as before searching or modifying." name:"bind-dn"`
	BindPassword string `help:"Bind password." name:"bind-password"`
	StartTLS     bool   `help:"Issue STARTTLS after connecting." name:"starttls"`
	Timeout      time.Duration `help:"Dial and bind timeout." name:"timeout"`

	BaseDN string   `help:"Base DN to search." required:"true" name:"base-dn"`
	Filter string   `help:"LDAP search filter." default:"(objectClass=*)" name:"filter"`
	Attrs  []string `help:"Attributes to fetch; empty means all user attributes." name:"attr"`

	Dialect     string `help:"Data-file dialect: extended or ldif." name:"dialect"`
	Readability string `help:"Printer readability policy: ascii, utf8, or any." name:"readability"`
	FoldWidth   int    `help:"LDIF line fold width." name:"fold-width"`
	TempDir     string `help:"Directory for the clean/data file pair." name:"temp-dir"`

	Editor string `help:"Editor command invoked on the data file; defaults to $EDITOR, then vi." name:"editor"`
	Keep   bool   `help:"Keep the clean/data temp files after applying (for inspection)." name:"keep"`
	DryRun bool   `help:"Compute and print the operation sequence without applying it." name:"dry-run"`

	ConfigFile string `help:"Optional YAML configuration file, layered under these flags." name:"config"`

	LogLevel  string `help:"Logging level: debug, info, warn, or error." default:"info" name:"log-level"`
	LogFormat string `help:"Logging format: text or json." default:"text" name:"log-format"`

	Version bool `help:"Print version and exit." name:"version"`
}

func main() {
	os.Exit(run(os.Args[1:]))
}

// run parses args and executes the CLI, returning a process exit code.
// Separated from main so tests can drive it without os.Exit.
func run(args []string) int {
	var cli CLI
	parser, err := kong.New(&cli,
		kong.Name("ldvi"),
		kong.Description("Materialize an LDAP subtree to a text file, edit it, and reconcile the directory."),
	)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if _, err := parser.Parse(args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	if cli.Version {
		fmt.Printf("ldvi version %s (%s)\n", version, commit)
		return 0
	}

	// Tag every line this invocation logs with one ID, so a user who ran
	// ldvi several times against the same directory can grep stderr for a
	// single edit's worth of output.
	log := logging.New(logging.Config{
		Level:  cli.LogLevel,
		Format: cli.LogFormat,
		Output: "stderr",
	}).WithRequestID(logging.GenerateRequestID())

	cfg, err := resolveConfig(&cli)
	if err != nil {
		log.Error("invalid configuration", "error", err)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.LDAP.Timeout)
	defer cancel()

	if err := runEdit(ctx, &cli, cfg, log); err != nil {
		log.Error("edit failed", "error", err)
		return 1
	}
	return 0
}

// resolveConfig layers cli's flags over a file (if given) over
// config.Default, with non-zero flags always winning: kong already applied
// its own defaults, so any field a user explicitly set takes priority over
// both the file and config.Default.
func resolveConfig(cli *CLI) (*config.Config, error) {
	var cfg *config.Config
	if cli.ConfigFile != "" {
		loaded, err := config.LoadConfig(cli.ConfigFile)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", cli.ConfigFile, err)
		}
		cfg = loaded
	} else {
		cfg = config.Default()
	}

	if cli.Address != "" {
		cfg.LDAP.Address = cli.Address
	}
	if cli.BindDN != "" {
		cfg.LDAP.BindDN = cli.BindDN
	}
	if cli.BindPassword != "" {
		cfg.LDAP.BindPassword = cli.BindPassword
	}
	if cli.StartTLS {
		cfg.LDAP.StartTLS = true
	}
	if cli.Timeout != 0 {
		cfg.LDAP.Timeout = cli.Timeout
	}
	if cfg.LDAP.Timeout == 0 {
		cfg.LDAP.Timeout = 30 * time.Second
	}
	if cli.TempDir != "" {
		cfg.TempDir = cli.TempDir
	}
	if cli.FoldWidth != 0 {
		cfg.FoldWidth = cli.FoldWidth
	}
	if cli.Dialect != "" {
		d, ok := config.ParseDialect(cli.Dialect)
		if !ok {
			return nil, fmt.Errorf("unknown dialect %q", cli.Dialect)
		}
		cfg.Dialect = d
	}
	if cli.Readability != "" {
		r, ok := config.ParseReadability(cli.Readability)
		if !ok {
			return nil, fmt.Errorf("unknown readability %q", cli.Readability)
		}
		cfg.Readability = r
	}

	if errs := config.ValidateConfig(cfg); len(errs) > 0 {
		return nil, errs[0]
	}
	return cfg, nil
}
