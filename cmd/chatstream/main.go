// Command chatstream is a terminal chat client for a document question
// answering backend that streams replies as server-sent events.
//
// Usage:
//
//	CHATSTREAM_TOKEN=... chatstream [flags]
//
// Flags:
//
//	-config string   Path to a YAML config file
//	-api-url string  Backend base URL (overrides config)
//	-token string    Bearer token (overrides config)
//	-docs string     Comma-separated document IDs to scope questions to
//	-p string        Ask one question, print the reply to stdout, and exit
//	-debug           Log at debug level (to chatstream-debug.log unless log_file is set)
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/fwojciec/chatstream"
	"github.com/fwojciec/chatstream/api"
	"github.com/fwojciec/chatstream/batch"
	bt "github.com/fwojciec/chatstream/bubbletea"
	"github.com/fwojciec/chatstream/config"
	"github.com/fwojciec/chatstream/stream"
	"go.uber.org/zap"
)

const debugLogFile = "chatstream-debug.log"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "chatstream: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	configPath string
	apiURL     string
	token      string
	docs       []string
	prompt     string
	debug      bool
}

func parseFlags(args []string) (options, error) {
	var o options
	var docs string
	fs := flag.NewFlagSet("chatstream", flag.ContinueOnError)
	fs.StringVar(&o.configPath, "config", "", "Path to a YAML config file")
	fs.StringVar(&o.apiURL, "api-url", "", "Backend base URL (overrides config)")
	fs.StringVar(&o.token, "token", "", "Bearer token (overrides config)")
	fs.StringVar(&docs, "docs", "", "Comma-separated document IDs to scope questions to")
	fs.StringVar(&o.prompt, "p", "", "Ask one question, print the reply, and exit")
	fs.BoolVar(&o.debug, "debug", false, "Log at debug level")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	o.docs = splitList(docs)
	return o, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// loadConfig reads the config file and environment, then applies flags.
func loadConfig(o options, lookup func(string) (string, bool)) (config.Config, error) {
	cfg, err := config.NewLoader().WithPath(o.configPath).WithLookup(lookup).Load()
	if err != nil {
		return config.Config{}, err
	}
	if o.apiURL != "" {
		cfg.APIURL = o.apiURL
	}
	if o.token != "" {
		cfg.Token = o.token
	}
	if o.debug {
		cfg.LogLevel = "debug"
		if cfg.LogFile == "" {
			cfg.LogFile = debugLogFile
		}
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func run() error {
	o, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	// Handle OS signals for graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg, err := loadConfig(o, os.LookupEnv)
	if err != nil {
		return err
	}
	logger, err := cfg.Logger()
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	logger.Debug("starting", zap.String("api_url", cfg.APIURL), zap.Strings("document_ids", o.docs))

	client := api.New(
		api.WithBaseURL(cfg.APIURL),
		api.WithTokenSource(api.StaticToken(cfg.Token)),
		api.WithRetry(cfg.RetryAttempts, cfg.RetryDelay),
		api.WithLogger(logger.Named("api")),
	)

	if o.prompt != "" {
		orch := stream.New(client,
			stream.WithTimeout(cfg.Timeout),
			stream.WithScheduler(batch.Immediate),
			stream.WithLogger(logger.Named("stream")),
		)
		return ask(ctx, orch, o.prompt, o.docs, os.Stdout, os.Stderr)
	}

	orch := stream.New(client,
		stream.WithTimeout(cfg.Timeout),
		stream.WithScheduler(batch.Interval(cfg.BatchInterval)),
		stream.WithLogger(logger.Named("stream")),
	)
	tuiModel := bt.New(orch, chatstream.DefaultTheme(),
		bt.WithHistory(client, cfg.HistoryLimit),
		bt.WithBannerTimeout(cfg.BannerTimeout),
		bt.WithDocumentIDs(o.docs...),
	)
	if err := bt.Run(ctx, tuiModel); err != nil {
		return fmt.Errorf("TUI: %w", err)
	}
	orch.Abort()
	return nil
}

// ask streams one reply to w. Error events go to errw. Interrupting ctx
// aborts the stream silently.
func ask(ctx context.Context, s chatstream.Streamer, prompt string, documentIDs []string, w, errw io.Writer) error {
	var writeErr error
	h := chatstream.Handlers{
		OnToken: func(_ context.Context, text string) {
			if writeErr == nil {
				_, writeErr = io.WriteString(w, text)
			}
		},
		OnComplete: func(context.Context, chatstream.EventComplete) {
			if writeErr == nil {
				_, writeErr = io.WriteString(w, "\n")
			}
		},
		OnError: func(_ context.Context, err *chatstream.StreamError) {
			fmt.Fprintf(errw, "error: %v\n", err)
		},
	}
	err := s.StreamMessage(ctx, prompt, h, documentIDs...)
	if errors.Is(err, chatstream.ErrAborted) {
		return nil
	}
	if err != nil {
		return err
	}
	return writeErr
}
