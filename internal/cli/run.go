package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/udonmeta/internal/batch"
	"github.com/roach88/udonmeta/internal/codec"
	"github.com/roach88/udonmeta/internal/config"
	"github.com/roach88/udonmeta/internal/store"
)

// session is the per-invocation state shared by commands: loaded config,
// the installed logger and the output formatter.
type session struct {
	cfg       *config.Config
	logger    *slog.Logger
	formatter *OutputFormatter
	policy    failurePolicy
}

// failurePolicy says how setup failures (config, database) end a command.
// Batch commands exit 1 on any fatal condition and, when the output path is
// known, record the failure in the output file.
type failurePolicy struct {
	exitCode int
	output   string
}

var commandFailure = failurePolicy{exitCode: ExitCommandError}

func batchPolicy(output string) failurePolicy {
	return failurePolicy{exitCode: ExitFailure, output: output}
}

func (p failurePolicy) fail(f *OutputFormatter, code, message string, err error) error {
	if p.output != "" {
		msg := message
		if err != nil {
			msg = fmt.Sprintf("%s: %v", message, err)
		}
		if werr := batch.WriteFailure(p.output, msg); werr != nil {
			slog.Warn("write failure output", "path", p.output, "error", werr)
		}
	}
	return f.Fail(p.exitCode, code, message, err)
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}
}

// startSession loads configuration and installs the slog default handler.
func startSession(opts *RootOptions, cmd *cobra.Command) (*session, error) {
	return startSessionWith(opts, cmd, commandFailure)
}

func startSessionWith(opts *RootOptions, cmd *cobra.Command, policy failurePolicy) (*session, error) {
	formatter := newFormatter(opts, cmd)

	root := opts.Dir
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, policy.fail(formatter, ErrCodeConfig, "cannot determine working directory", err)
		}
		root = wd
	}

	cfg, err := config.NewLoader(root, opts.ConfigFile).Load()
	if err != nil {
		return nil, policy.fail(formatter, ErrCodeConfig, "failed to load configuration", err)
	}

	logLevel := cfg.Log.SlogLevel()
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: logLevel,
	})
	logger := slog.New(handler)
	slog.SetDefault(logger)

	logger.Debug("configuration loaded", "root", root, "database", cfg.Jobs.Database, "workdir", cfg.Jobs.Workdir)
	return &session{cfg: cfg, logger: logger, formatter: formatter, policy: policy}, nil
}

// openStore opens the job database, creating its directory when needed.
// The caller closes the store.
func (s *session) openStore() (*store.Store, error) {
	path := s.cfg.Jobs.Database
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, s.policy.fail(s.formatter, ErrCodeStore, "cannot create database directory", err)
	}
	s.logger.Debug("opening database", "path", path)
	st, err := store.Open(path)
	if err != nil {
		return nil, s.policy.fail(s.formatter, ErrCodeStore, fmt.Sprintf("failed to open database %s", path), err)
	}
	return st, nil
}

func (s *session) closeStore(st *store.Store) {
	if err := st.Close(); err != nil {
		s.logger.Error("error closing database", "error", err)
	}
}

func (s *session) orchestrator(st *store.Store) *batch.Orchestrator {
	return batch.New(st, batch.Options{
		Workdir:    s.cfg.Jobs.Workdir,
		Compiler:   batch.AssetCompiler{Workdir: s.cfg.Jobs.Workdir, Decoder: s.decoder()},
		StaleAfter: s.cfg.Jobs.StaleAfter,
		Logger:     s.logger,
	})
}

func (s *session) decoder() *codec.Decoder {
	return codec.NewDecoder(s.cfg.Asset.Key, nil)
}
