package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/exec"

	"github.com/go-ldap/ldap/v3"

	"github.com/KilimcininKorOglu/ldvi/internal/config"
	"github.com/KilimcininKorOglu/ldvi/internal/diff"
	"github.com/KilimcininKorOglu/ldvi/internal/extfmt"
	"github.com/KilimcininKorOglu/ldvi/internal/ldapclient"
	"github.com/KilimcininKorOglu/ldvi/internal/ldif"
	"github.com/KilimcininKorOglu/ldvi/internal/logging"
	"github.com/KilimcininKorOglu/ldvi/internal/model"
	"github.com/KilimcininKorOglu/ldvi/internal/passwordhash"
	"github.com/KilimcininKorOglu/ldvi/internal/record"
	"github.com/KilimcininKorOglu/ldvi/internal/session"
)

// runEdit drives one full edit-diff-apply cycle: search, materialize,
// edit, diff, apply.
func runEdit(ctx context.Context, cli *CLI, cfg *config.Config, log logging.Logger) error {
	conn, err := ldapclient.DialContext(ctx, cfg.LDAP.Address)
	if err != nil {
		return err
	}
	defer conn.Close()

	if cfg.LDAP.StartTLS {
		if err := conn.StartTLS(&tls.Config{ServerName: hostFromAddress(cfg.LDAP.Address)}); err != nil {
			return fmt.Errorf("starttls: %w", err)
		}
	}
	if cfg.LDAP.BindDN != "" {
		if err := conn.Bind(cfg.LDAP.BindDN, cfg.LDAP.BindPassword); err != nil {
			return fmt.Errorf("bind as %s: %w", cfg.LDAP.BindDN, err)
		}
	}

	entries, err := search(conn, cli.BaseDN, cli.Filter, cli.Attrs)
	if err != nil {
		return err
	}
	log.Info("search complete", "base_dn", cli.BaseDN, "count", len(entries))

	paths := session.New(cfg.TempDir)
	if !cli.Keep {
		defer os.Remove(paths.Clean)
		defer os.Remove(paths.Data)
	}

	offsets, err := writeClean(paths.Clean, entries, cfg.Dialect, cfg.Printer())
	if err != nil {
		return fmt.Errorf("writing clean file: %w", err)
	}
	if err := copyFile(paths.Data, paths.Clean); err != nil {
		return fmt.Errorf("seeding data file: %w", err)
	}

	if err := invokeEditor(editorCommand(cli.Editor), paths.Data); err != nil {
		return fmt.Errorf("editor: %w", err)
	}

	clean, err := os.Open(paths.Clean)
	if err != nil {
		return err
	}
	defer clean.Close()
	data, err := os.Open(paths.Data)
	if err != nil {
		return err
	}
	defer data.Close()

	parser := dataParser(cfg.Dialect)
	handler := applyHandler(cli.DryRun, conn, log)

	if err := diff.CompareStreams(parser, handler, clean, data, offsets); err != nil {
		if pe, ok := asParseError(err); ok {
			return fmt.Errorf("data file error at offset %d (%s): %s", pe.Offset, pe.Kind, pe.Message)
		}
		return err
	}
	log.Info("edit applied", "dry_run", cli.DryRun)
	return nil
}

// search issues an LDAP search and converts the results into entries the
// rest of the pipeline understands.
func search(conn *ldap.Conn, baseDN, filter string, attrs []string) ([]*model.Entry, error) {
	req := ldap.NewSearchRequest(
		baseDN,
		ldap.ScopeWholeSubtree, ldap.NeverDerefAliases, 0, 0, false,
		filter, attrs, nil,
	)
	result, err := conn.Search(req)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", baseDN, err)
	}
	entries := make([]*model.Entry, 0, len(result.Entries))
	for _, e := range result.Entries {
		entry := model.NewEntry(model.DN(e.DN))
		for _, a := range e.Attributes {
			for _, v := range a.ByteValues {
				entry.AddValue(a.Name, model.Value(v))
			}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// writeClean prints entries to path in dialect, each tagged with its index
// as a numeric key, and returns the byte offset of every record so the
// diff engine's Offsets array is ready to use.
func writeClean(path string, entries []*model.Entry, dialect config.Dialect, opts config.PrinterOptions) ([]int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	printEntry := extfmt.NewPrinter(opts).PrintEntry
	if dialect == config.DialectLDIF {
		printEntry = ldif.NewPrinter(opts).PrintKeyedEntry
	}
	offsets := make([]int64, len(entries))
	for i, entry := range entries {
		pos, err := f.Seek(0, io.SeekCurrent)
		if err != nil {
			return nil, err
		}
		offsets[i] = pos
		key := record.Key(fmt.Sprintf("%d", i))
		if err := printEntry(f, key, entry); err != nil {
			return nil, err
		}
	}
	return offsets, nil
}

func copyFile(dst, src string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, in)
	return err
}

func editorCommand(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if e := os.Getenv("EDITOR"); e != "" {
		return e
	}
	return "vi"
}

func invokeEditor(editor, path string) error {
	cmd := exec.Command(editor, path)
	cmd.Stdin, cmd.Stdout, cmd.Stderr = os.Stdin, os.Stdout, os.Stderr
	return cmd.Run()
}

func dataParser(d config.Dialect) record.Parser {
	if d == config.DialectLDIF {
		return ldif.NewParser()
	}
	return extfmt.NewParser(passwordhash.Hasher{})
}

func applyHandler(dryRun bool, conn *ldap.Conn, log logging.Logger) diff.Handler {
	if dryRun {
		return &printingHandler{log: log}
	}
	return ldapclient.New(conn)
}

func hostFromAddress(addr string) string {
	u, err := url.Parse(addr)
	if err != nil {
		return addr
	}
	return u.Hostname()
}

func asParseError(err error) (*record.ParseError, bool) {
	var pe *record.ParseError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
