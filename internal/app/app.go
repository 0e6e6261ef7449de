// Package app wires the client together: settings, platform client, file
// index, sync engine, event bus, and the control API.
package app

import (
	"fmt"
	"path/filepath"

	"github.com/frartenzo/webeep-sync/internal/config"
	"github.com/frartenzo/webeep-sync/internal/events"
	"github.com/frartenzo/webeep-sync/internal/moodle"
	websync "github.com/frartenzo/webeep-sync/internal/sync"
	"github.com/frartenzo/webeep-sync/internal/utils"
)

// Options configures the composition root. Auth is required; everything
// else has a default.
type Options struct {
	ConfigPath string
	DataDir    string
	Auth       moodle.Provider
	Tokens     moodle.TokenStore // defaults to the OS keychain
}

// App holds every long-lived component of the client.
type App struct {
	DataDir string
	Store   *config.Store
	Bus     *events.Bus
	Client  *moodle.Client
	Index   *websync.Index
	Engine  *websync.Engine
}

func New(opts *Options) (*App, error) {
	dataDir := opts.DataDir
	if dataDir == "" {
		dataDir = config.DefaultDataDir
	}
	dataDir, err := utils.ResolvePath(dataDir)
	if err != nil {
		return nil, fmt.Errorf("resolve data dir: %w", err)
	}

	configPath := opts.ConfigPath
	if configPath == "" {
		configPath = filepath.Join(dataDir, "settings.json")
	}
	configPath, err = utils.ResolvePath(configPath)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	if err := utils.EnsureDir(dataDir); err != nil {
		return nil, fmt.Errorf("create data dir %q: %w", dataDir, err)
	}

	store, err := config.NewStore(configPath)
	if err != nil {
		return nil, err
	}
	settings := store.Get()

	bus := events.NewBus()

	tokens := opts.Tokens
	if tokens == nil {
		tokens = moodle.NewKeyringStore()
	}

	client, err := moodle.NewClient(&moodle.Options{
		ServerURL: settings.ServerURL,
		Language:  settings.Language,
		Auth:      opts.Auth,
		Tokens:    tokens,
		Bus:       bus,
	})
	if err != nil {
		return nil, err
	}

	index, err := websync.OpenIndex(filepath.Join(dataDir, "files.db"))
	if err != nil {
		return nil, err
	}

	return &App{
		DataDir: dataDir,
		Store:   store,
		Bus:     bus,
		Client:  client,
		Index:   index,
		Engine:  websync.NewEngine(client, index, store, bus),
	}, nil
}

// Close releases the app's resources. It does not wait for a running sync
// pass; cancel it first.
func (a *App) Close() error {
	a.Bus.Close()
	return a.Index.Close()
}
