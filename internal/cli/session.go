package cli

import (
	"context"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/mxyns/ietf-rfc-dep/internal/config"
	"github.com/mxyns/ietf-rfc-dep/internal/engine"
	"github.com/mxyns/ietf-rfc-dep/internal/registry"
	"github.com/mxyns/ietf-rfc-dep/internal/store"
)

// session is one command invocation against the stored snapshot.
type session struct {
	settings config.Settings
	store    *store.Store
	engine   *engine.Engine
	out      *OutputFormatter
}

// configureLogging installs the stderr text handler used by every command.
func configureLogging(w io.Writer, verbose bool) {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
}

// loadSettings reads the config file and applies the flag overrides.
func loadSettings(opts *RootOptions) (config.Settings, error) {
	settings, err := config.Load(opts.Config)
	if err != nil {
		return config.Settings{}, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if opts.Database != "" {
		settings.Database = opts.Database
	}
	if opts.Registry != "" {
		settings.Registry = opts.Registry
	}
	if err := settings.Validate(); err != nil {
		return config.Settings{}, WrapExitError(ExitCommandError, "invalid settings", err)
	}
	return settings, nil
}

// openSession loads the settings, opens the database, and builds a
// coordinator over the stored snapshot.
func openSession(ctx context.Context, opts *RootOptions, cmd *cobra.Command) (*session, error) {
	configureLogging(cmd.ErrOrStderr(), opts.Verbose)

	settings, err := loadSettings(opts)
	if err != nil {
		return nil, err
	}

	slog.Debug("opening database", "path", settings.Database)
	st, err := store.Open(settings.Database)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	loaded, err := st.LoadCache(ctx)
	if err != nil {
		st.Close()
		return nil, WrapExitError(ExitCommandError, "failed to load snapshot", err)
	}

	engineOpts := []engine.Option{engine.WithVerbose(opts.Verbose)}
	if opts.RunTokens != nil {
		engineOpts = append(engineOpts, engine.WithRunTokens(opts.RunTokens))
	}
	eng := engine.New(registry.NewDir(settings.Registry), settings, engineOpts...)
	if err := eng.Replace(loaded, false); err != nil {
		st.Close()
		return nil, WrapExitError(ExitCommandError, "failed to load snapshot", err)
	}
	slog.Debug("snapshot loaded", "documents", loaded.Len(), "registry", settings.Registry)

	return &session{
		settings: settings,
		store:    st,
		engine:   eng,
		out: &OutputFormatter{
			Format:    opts.Format,
			Writer:    cmd.OutOrStdout(),
			ErrWriter: cmd.ErrOrStderr(),
			Verbose:   opts.Verbose,
		},
	}, nil
}

// save persists the coordinator's cache.
func (s *session) save(ctx context.Context) error {
	if err := s.store.SaveCache(ctx, s.engine.Cache()); err != nil {
		return WrapExitError(ExitCommandError, "failed to save snapshot", err)
	}
	n, err := s.store.Count(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to count saved documents", err)
	}
	seq, err := s.store.Seq(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read snapshot sequence", err)
	}
	slog.Debug("snapshot saved", "documents", n, "seq", seq)
	s.out.VerboseLog("saved %d documents to %s (snapshot %d)", n, s.settings.Database, seq)
	return nil
}

func (s *session) close() {
	if err := s.store.Close(); err != nil {
		slog.Warn("error closing store", "error", err)
	}
}

// fail reports err with the pending notifications and returns it with an
// exit code.
func (s *session) fail(code int, message string, err error) error {
	if outErr := s.out.Error(err, s.engine.DrainNotifications()); outErr != nil {
		slog.Warn("failed to write error output", "error", outErr)
	}
	return WrapExitError(code, message, err)
}

// succeed writes data with the pending notifications.
func (s *session) succeed(data any, render func(w io.Writer)) error {
	return s.out.Success(data, s.engine.DrainNotifications(), render)
}
