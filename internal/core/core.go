// Package core is the engine of the server: tenant-scoped document storage
// with reference bookkeeping, room lifecycle, per-connection session state
// and broadcast routing. Transports sit above it, stores below it.
package core

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/HillTopTRPG/quoridorn-server-lib/internal/config"
	"github.com/HillTopTRPG/quoridorn-server-lib/internal/domain"
	"github.com/HillTopTRPG/quoridorn-server-lib/internal/interop"
	"github.com/HillTopTRPG/quoridorn-server-lib/internal/objstore"
	"github.com/HillTopTRPG/quoridorn-server-lib/internal/store"
)

// Transport delivers events to connected clients. The websocket adapter
// implements it; the engine never talks to a socket directly.
type Transport interface {
	ToConnection(connID, event string, errObj, payload any) error
	ToAll(event string, errObj, payload any) error
	ToAllExcept(connID, event string, errObj, payload any) error
}

// InsertFunc overrides the stock insert for one collection suffix. Overrides
// run inside the same serial batch slot as the stock path would.
type InsertFunc func(ctx context.Context, c *Core, connID string, share domain.SendTarget, force bool, param domain.AddParam) (*domain.StoreData, error)

type UpdateFunc func(ctx context.Context, c *Core, connID string, share domain.SendTarget, param domain.UpdateParam) (*domain.StoreData, error)

type DeleteFunc func(ctx context.Context, c *Core, connID string, share domain.SendTarget, key string) error

// Core holds the engine state. All exported methods are safe for concurrent
// use as far as the underlying store is; cross-document flows are documented
// last-write-wins.
type Core struct {
	cfg     *config.Config
	store   store.Store
	objects objstore.Store
	tx      Transport
	window  interop.Window
	logger  zerolog.Logger

	// System collection names, fixed at startup from the secret suffix.
	colRoom   string
	colSocket string
	colToken  string

	insertFuncs map[string]InsertFunc
	updateFuncs map[string]UpdateFunc
	deleteFuncs map[string]DeleteFunc
}

type Options struct {
	Config    *config.Config
	Store     store.Store
	Objects   objstore.Store
	Transport Transport
	Window    interop.Window
}

func New(opts Options) *Core {
	suffix := opts.Config.SecretCollectionSuffix
	return &Core{
		cfg:         opts.Config,
		store:       opts.Store,
		objects:     opts.Objects,
		tx:          opts.Transport,
		window:      opts.Window,
		logger:      log.With().Str("module", "core").Logger(),
		colRoom:     "rooms-" + suffix,
		colSocket:   "socket-list-" + suffix,
		colToken:    "token-list-" + suffix,
		insertFuncs: make(map[string]InsertFunc),
		updateFuncs: make(map[string]UpdateFunc),
		deleteFuncs: make(map[string]DeleteFunc),
	}
}

// RoomCollectionName exposes the tenant catalog name for transports that
// report server info.
func (c *Core) RoomCollectionName() string { return c.colRoom }

// ServerVersion reports the version this build answers get-version with.
func (c *Core) ServerVersion() string { return c.cfg.ServerVersion }

// ClientWindow reports the client version range this server accepts.
func (c *Core) ClientWindow() interop.Window { return c.window }

// RegisterInsertFunc installs an insert override for a collection suffix.
// Registration happens during wiring, before any connection is accepted.
func (c *Core) RegisterInsertFunc(suffix string, fn InsertFunc) { c.insertFuncs[suffix] = fn }

func (c *Core) RegisterUpdateFunc(suffix string, fn UpdateFunc) { c.updateFuncs[suffix] = fn }

func (c *Core) RegisterDeleteFunc(suffix string, fn DeleteFunc) { c.deleteFuncs[suffix] = fn }
