package cli

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"doclookup/internal/config"
	"doclookup/internal/lookup"
	"doclookup/internal/screen"

	"go.uber.org/zap"
)

type Runner struct {
	options Options
	logger  *zap.Logger
	svc     screen.Lookup

	in     io.Reader
	out    io.Writer
	errOut io.Writer
}

func NewRunner(cfg config.Config, logger *zap.Logger, svc *lookup.Service) *Runner {
	return newRunner(Options{Type: "so", Top: cfg.PageSize}, logger, svc, os.Stdin, os.Stdout, os.Stderr)
}

func newRunner(opts Options, logger *zap.Logger, svc screen.Lookup, in io.Reader, out, errOut io.Writer) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		options: opts,
		logger:  logger.Named("cli"),
		svc:     svc,
		in:      in,
		out:     out,
		errOut:  errOut,
	}
}

func (r *Runner) Execute() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	return r.run(ctx, os.Args[1:])
}

func (r *Runner) run(ctx context.Context, argv []string) error {
	opts := r.options

	fs := flag.NewFlagSet("doclookup", flag.ContinueOnError)
	fs.SetOutput(r.errOut)
	fs.Usage = func() {
		fmt.Fprintf(r.errOut, "Usage: %s [flags] [command [args...]]\n", fs.Name())
		fs.PrintDefaults()
		fmt.Fprintln(r.errOut)
		fmt.Fprintln(r.errOut, helpText)
	}
	fs.StringVar(&opts.Type, "type", opts.Type, "Document type: so (sales order) or bd (billing document)")
	fs.BoolVar(&opts.JSON, "json", opts.JSON, "Output JSON, one object per command")
	fs.IntVar(&opts.Top, "top", opts.Top, "Rows loaded into the selection list (PAGE_SIZE)")

	if err := fs.Parse(argv); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	if opts.Top < 0 {
		return fmt.Errorf("-top must not be negative, got %d", opts.Top)
	}
	opts.Args = fs.Args()

	docType, err := lookup.ParseDocumentType(opts.Type)
	if err != nil {
		return err
	}
	sess, err := newSession(r.svc, docType, opts.Top, r.logger)
	if err != nil {
		return err
	}

	r.logger.Info("session started",
		zap.Stringer("doc_type", docType),
		zap.Bool("json", opts.JSON),
		zap.Int("top", opts.Top),
		zap.Bool("interactive", len(opts.Args) == 0),
	)

	if len(opts.Args) == 0 {
		return r.runREPL(ctx, &opts, sess)
	}
	return r.runOneShot(ctx, &opts, sess, opts.Args)
}

func (r *Runner) runOneShot(ctx context.Context, opts *Options, sess *session, args []string) error {
	_, err := r.handleCommand(ctx, opts, sess, args[0], args[1:])
	return err
}

func (r *Runner) runREPL(ctx context.Context, opts *Options, sess *session) error {
	reader := bufio.NewScanner(r.in)
	if !opts.JSON {
		fmt.Fprintln(r.out, "Document lookup (type 'help' for commands, 'exit' to quit)")
	}

	for {
		if ctx.Err() != nil {
			return nil
		}
		if !opts.JSON {
			fmt.Fprintf(r.out, "%s> ", sess.active.Definition().Label)
		}
		if !reader.Scan() {
			return reader.Err()
		}

		line := strings.TrimSpace(reader.Text())
		switch strings.ToLower(line) {
		case "":
			continue
		case "exit", "quit":
			return nil
		}

		args, err := splitArgs(line)
		if err != nil {
			fmt.Fprintln(r.errOut, err)
			continue
		}
		if len(args) == 0 {
			continue
		}
		if _, err := r.handleCommand(ctx, opts, sess, args[0], args[1:]); err != nil {
			var usage usageError
			if errors.As(err, &usage) {
				fmt.Fprintln(r.errOut, usage.Message)
			}
			// Lookup failures were already shown as notices.
		}
	}
}

func (r *Runner) handleCommand(ctx context.Context, opts *Options, sess *session, name string, args []string) (response, error) {
	resp, record, err := trackCall(r.logger, name, args, func() (response, error) {
		return execute(ctx, sess, name, args)
	})
	var usage usageError
	if errors.As(err, &usage) {
		return resp, err
	}
	resp.MS = record.MS
	logResponse(r.logger, resp)
	if werr := writeResponse(r.out, opts.JSON, resp); werr != nil {
		return resp, werr
	}
	return resp, err
}
