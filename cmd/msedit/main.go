package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/pflag"

	"github.com/ritzau/msedit/pkg/auth"
	"github.com/ritzau/msedit/pkg/catalog"
	"github.com/ritzau/msedit/pkg/config"
	"github.com/ritzau/msedit/pkg/history"
	"github.com/ritzau/msedit/pkg/logging"
	"github.com/ritzau/msedit/pkg/model"
	"github.com/ritzau/msedit/pkg/output"
	"github.com/ritzau/msedit/pkg/persist"
	"github.com/ritzau/msedit/pkg/pubsub"
	"github.com/ritzau/msedit/pkg/run"
	"github.com/ritzau/msedit/pkg/session"
	"github.com/ritzau/msedit/pkg/watcher"
	"github.com/ritzau/msedit/pkg/web"
)

// systemUser opens the served file when no default user is configured
const systemUser session.User = "msedit"

func main() {
	flags := pflag.NewFlagSet("msedit", pflag.ExitOnError)
	flags.StringP("file", "f", "", "Model system file (may also be given as the first argument)")
	flags.StringP("types", "t", "types.toml", "Module type catalogue file or pattern (toml, yaml or json)")
	flags.Bool("web", false, "Start the editing server instead of printing a report")
	flags.Int("port", 8080, "Port for web server (only used with --web)")
	flags.Bool("watch", false, "Reload the model system and catalogue when they change on disk")
	flags.Bool("open", false, "Open the served model system in the browser after starting the server")
	flags.String("user", "", "Acting user for requests without an X-User header")
	flags.String("editors", "", "Comma-separated users with write access (default: everyone)")
	flags.Int("undo_capacity", 20, "Number of undo steps kept")
	flags.Duration("run_timeout", 5*time.Minute, "Time limit for a single run")
	flags.Int("run_parallel", 1, "Number of runs executed at once")
	flags.String("workdir", ".", "Working directory passed to runs")
	flags.String("runner", "", "Command that executes runs (default: construct in-process)")
	flags.String("history", "", "SQLite file recording runs (default: no history)")
	flags.String("mqtt_url", "", "MQTT broker to mirror change and run events to, e.g. tcp://localhost:1883")
	flags.String("mqtt_prefix", "msedit", "Topic prefix for mirrored events")
	flags.String("token_secret", "", "Require bearer tokens signed with this secret for edits")
	flags.Duration("token_ttl", 12*time.Hour, "Lifetime of issued tokens")
	flags.String("issue_token", "", "Print a token for the given user and exit")
	flags.Bool("json_logs", false, "Log as JSON")
	flags.String("verbosity", "", "Log level: trace, debug, info, warn or error")
	flags.CountP("verbose", "v", "Increase log verbosity (repeatable)")
	_ = flags.Parse(os.Args[1:])

	cfg, err := config.Load(flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	level, err := logging.ParseLevel(cfg.Verbosity, cfg.VerboseCnt)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	logging.Configure(level, cfg.JSONLogs)

	tokens, err := tokenService(cfg)
	if err != nil {
		logging.Fatal("invalid token settings", "error", err)
	}
	if cfg.IssueToken != "" {
		if tokens == nil {
			logging.Fatal("--issue_token needs a token_secret")
		}
		token, err := tokens.Issue(cfg.IssueToken)
		if err != nil {
			logging.Fatal("failed to issue token", "error", err)
		}
		fmt.Println(token)
		return
	}

	if cfg.File == "" && flags.NArg() > 0 {
		cfg.File = flags.Arg(0)
	}
	if cfg.File == "" {
		logging.Fatal("no model system file given")
	}

	registry, err := catalog.Load(cfg.Types)
	if err != nil {
		logging.Fatal("failed to load type catalogue", "path", cfg.Types, "error", err)
	}
	types := catalog.NewLive(registry)

	if !cfg.WebMode {
		os.Exit(inspect(cfg.File, types))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := serve(ctx, cfg, types, tokens); err != nil {
		logging.Fatal("server stopped", "error", err)
	}
}

// inspect prints the console report and returns the exit code
func inspect(path string, types model.TypeDescriber) int {
	ms, err := persist.ReadFile(path, types)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	report := output.BuildReport(ms)
	output.PrintReport(os.Stdout, report)
	if !report.Valid() {
		return 2
	}
	return 0
}

func accessChecker(cfg *config.Config) session.AccessChecker {
	editors := cfg.EditorList()
	if len(editors) == 0 {
		return session.AllowAll{}
	}
	users := make([]session.User, len(editors))
	for i, e := range editors {
		users[i] = session.User(e)
	}
	return session.NewAllowList(users...)
}

func tokenService(cfg *config.Config) (*auth.Tokens, error) {
	if cfg.TokenSecret == "" {
		return nil, nil
	}
	return auth.NewTokens([]byte(cfg.TokenSecret), cfg.TokenTTL)
}

func serve(ctx context.Context, cfg *config.Config, types *catalog.Live, tokens *auth.Tokens) error {
	opts := web.Options{
		DefaultUser: session.User(cfg.User),
		WorkDir:     cfg.WorkDir,
		Tokens:      tokens,
	}
	if cfg.History != "" {
		store, err := history.Open(cfg.History)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()
		opts.History = store
	}
	server := web.NewServer(opts)

	var runner run.Runnable = &run.ConstructRunner{Types: types}
	if p := run.NewProcessRunner(cfg.Runner); p != nil {
		logging.Info("runs use an external command", "command", cfg.Runner)
		runner = p
	}
	manager := session.NewManager(session.Options{
		Types:        types,
		Access:       accessChecker(cfg),
		UndoCapacity: cfg.UndoCapacity,
		Dispatcher:   run.NewLocalDispatcher(runner, cfg.RunParallel, cfg.RunTimeout),
		OnChange:     server.PublishChange,
	})

	owner := session.User(cfg.User)
	if owner == "" {
		owner = systemUser
	}
	sess, err := openOrCreate(manager, owner, cfg.File)
	if err != nil {
		return err
	}
	defer func() { _ = manager.Close(cfg.File) }()
	server.SetSession(sess)

	if cfg.Watch {
		if err := watch(ctx, cfg, types, sess); err != nil {
			logging.Warn("file watching disabled", "error", err)
		}
	}

	if cfg.MQTTURL != "" {
		if disconnect, err := bridge(ctx, cfg, server.Publisher()); err != nil {
			logging.Warn("mqtt bridge disabled", "broker", cfg.MQTTURL, "error", err)
		} else {
			defer disconnect()
		}
	}

	if cfg.OpenBrowser {
		go func() {
			// Wait a moment for server to start
			time.Sleep(500 * time.Millisecond)
			openBrowser(browserURL(cfg.Port))
		}()
	}
	return server.Start(ctx, cfg.Port)
}

// bridge mirrors change and run events to the configured MQTT broker
func bridge(ctx context.Context, cfg *config.Config, pub pubsub.Publisher) (func(), error) {
	client := pubsub.NewMQTTClient(cfg.MQTTURL, "msedit-"+uuid.NewString())
	if err := client.Connect(); err != nil {
		return nil, err
	}
	if err := pubsub.Bridge(ctx, pub, client, cfg.MQTTPrefix, pubsub.TopicModelSystem, pubsub.TopicRunStatus); err != nil {
		client.Disconnect()
		return nil, err
	}
	return client.Disconnect, nil
}

func openOrCreate(manager *session.Manager, user session.User, path string) (*session.EditingSession, error) {
	sess, err := manager.Open(user, path)
	if err == nil || !errors.Is(err, fs.ErrNotExist) {
		return sess, err
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	logging.Info("creating new model system", "path", path, "name", name)
	return manager.Create(user, path, model.Header{Name: name})
}

// watch reloads the session when its file or the catalogue changes
func watch(ctx context.Context, cfg *config.Config, types *catalog.Live, sess *session.EditingSession) error {
	fw, err := watcher.NewFileWatcher()
	if err != nil {
		return err
	}
	if err := fw.Watch(cfg.File, watcher.ChangeTypeModelSystem); err != nil {
		return err
	}
	catalogues, err := catalog.Files(cfg.Types)
	if err != nil {
		return err
	}
	for _, path := range catalogues {
		if err := fw.Watch(path, watcher.ChangeTypeCatalogue); err != nil {
			return err
		}
	}
	if err := fw.Start(ctx); err != nil {
		return err
	}

	debouncer := watcher.NewDebouncer(fw.Events(), 300*time.Millisecond, 2*time.Second)
	debouncer.Start(ctx)

	go func() {
		for event := range debouncer.Output() {
			analysis := watcher.AnalyzeChanges(event)
			logging.Info("files changed", "kind", event.Type, "files", len(analysis.ChangedFiles))
			if analysis.ReloadTypes {
				if err := types.Reload(cfg.Types); err != nil {
					logging.Error("failed to reload type catalogue", "path", cfg.Types, "error", err)
					continue
				}
			}
			if analysis.ReloadModelSystems {
				if _, err := watcher.ReloadSession(sess, types, analysis.ReloadTypes); err != nil {
					logging.Error("failed to reload model system", "path", cfg.File, "error", err)
				}
			}
		}
	}()
	return nil
}

// browserPath is what --open shows: the served model system
const browserPath = "/api/model-system"

func browserURL(port int) string {
	return fmt.Sprintf("http://localhost:%d%s", port, browserPath)
}

func openBrowser(url string) {
	var cmd string
	var args []string

	switch runtime.GOOS {
	case "darwin":
		cmd = "open"
		args = []string{url}
	case "linux":
		cmd = "xdg-open"
		args = []string{url}
	case "windows":
		cmd = "cmd"
		args = []string{"/c", "start", url}
	default:
		logging.Warn("cannot open browser on this platform", "os", runtime.GOOS)
		return
	}

	if err := exec.Command(cmd, args...).Start(); err != nil {
		logging.Warn("failed to open browser", "error", err)
	}
}
