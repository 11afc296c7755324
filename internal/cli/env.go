package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"alkalytics/internal/config"
	"alkalytics/internal/docstore"
	apperrors "alkalytics/internal/errors"
	"alkalytics/internal/infrastructure"
)

// env is what a command needs to run against the store
type env struct {
	cfg    *config.Config
	db     docstore.Database
	logger *slog.Logger
	out    *OutputFormatter
}

func openEnv(cmd *cobra.Command, opts *RootOptions) (*env, error) {
	out := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load configuration", err)
	}

	level := "warn"
	if opts.Verbose {
		level = "debug"
	}
	logger, _, err := infrastructure.NewLogger(config.LoggingConfig{Level: level, Output: "console"}, cmd.ErrOrStderr())
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to create logger", err)
	}

	db, err := docstore.Open(cmd.Context(), cfg.Store)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open document store", err)
	}
	out.VerboseLog("Using %s store %s", cfg.Store.Driver, cfg.Store.DSN)

	return &env{cfg: cfg, db: db, logger: logger, out: out}, nil
}

func loadConfig(opts *RootOptions) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if opts.ConfigFile != "" {
		cfg, err = config.LoadFile(opts.ConfigFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if opts.StoreDriver != "" {
		cfg.Store.Driver = opts.StoreDriver
	}
	if opts.StoreDSN != "" {
		cfg.Store.DSN = opts.StoreDSN
	}
	return cfg, nil
}

func (e *env) Close() error {
	return e.db.Close()
}

// fail reports err through the formatter and returns the matching exit error.
func (e *env) fail(message string, err error) error {
	code := string(apperrors.TypeOf(err))
	if code == "" {
		code = "ERROR"
	}
	_ = e.out.Error(code, err.Error())
	exitErr := WrapExitError(ExitFailure, message, err)
	exitErr.Reported = true
	return exitErr
}

// isFileLevel reports whether err concerns a single input file, so the
// remaining files can still be processed.
func isFileLevel(err error) bool {
	return apperrors.IsType(err, apperrors.ErrTypeParsing) || apperrors.IsType(err, apperrors.ErrTypeValidation)
}
