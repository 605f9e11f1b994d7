package sdk

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/unicred/unicred-cli/internal/api"
	"github.com/unicred/unicred-cli/internal/config"
	"github.com/unicred/unicred-cli/internal/session"
	"github.com/unicred/unicred-cli/internal/storage"
)

// defaultDispatcherQueueSize is the mailbox size used by SDK dispatchers.
const defaultDispatcherQueueSize = 256

// Listener receives SDK events. Methods must be safe to call from any
// goroutine.
type Listener interface {
	// OnSessionChanged is called after login or token refresh with the
	// active role; the UI routes to the matching portal surface.
	OnSessionChanged(role string)
	// OnSessionCleared is called after logout or session wipe.
	OnSessionCleared()
	// OnError delivers non-fatal SDK errors for display/logging.
	OnError(message string)
}

// Client is a minimal mobile SDK client suitable for gomobile.
//
// Client owns the encrypted persisted session, the authenticated request
// pipeline, and event delivery toward the host UI. UI layers should be pure
// views: they render what the SDK hands them and route on the role reported
// by OnSessionChanged, never on state they derive themselves.
type Client struct {
	mu       sync.Mutex
	listener Listener

	store *session.Store
	api   *api.Client

	dispatch  *dispatcher
	callbacks *dispatcher

	unsubscribe func()
	closeOnce   sync.Once
}

// NewClient creates an SDK client that talks to serverURL and stores local
// state under dataDir (the app's private data directory on mobile).
//
// serverURL must not have a trailing slash; request paths are joined as
// `serverURL + "/v1/..."`.
func NewClient(serverURL, dataDir string) (*Client, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	cfg := &config.Config{
		ServerURL:     strings.TrimRight(serverURL, "/"),
		UnicredHome:   dataDir,
		SessionFile:   filepath.Join(dataDir, "session.enc"),
		DeviceKeyFile: filepath.Join(dataDir, "device.key"),
	}

	key, err := storage.GetOrCreateDeviceKey(cfg.DeviceKeyFile)
	if err != nil {
		return nil, fmt.Errorf("device key: %w", err)
	}

	store, err := session.NewStore(storage.NewFileStore(cfg.SessionFile, key))
	if err != nil {
		return nil, err
	}

	c := &Client{
		store:     store,
		api:       api.NewClient(cfg, store, sdkLog),
		dispatch:  newDispatcher(defaultDispatcherQueueSize),
		callbacks: newDispatcher(defaultDispatcherQueueSize),
	}
	c.unsubscribe = store.Subscribe(c.onSessionChange)
	return c, nil
}

// SetListener registers the listener for SDK events.
func (c *Client) SetListener(listener Listener) {
	_, _ = dispatchCall(c.dispatch, func() (struct{}, error) {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.listener = listener
		return struct{}{}, nil
	})
}

// SetDebug enables verbose SDK logging.
func (c *Client) SetDebug(enabled bool) {
	if enabled {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	}
}

// Close releases the SDK's background goroutines. The client must not be
// used afterwards.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		if c.unsubscribe != nil {
			c.unsubscribe()
		}
		c.dispatch.close()
		c.callbacks.close()
	})
}

// onSessionChange fans session updates out to the host UI. Callbacks run on
// their own queue so a slow host listener cannot stall the SDK dispatch
// goroutine.
func (c *Client) onSessionChange(snap session.Snapshot) {
	c.mu.Lock()
	listener := c.listener
	c.mu.Unlock()
	if listener == nil {
		return
	}

	if snap.Authenticated() {
		role := string(snap.Role())
		c.callbacks.do(func() { listener.OnSessionChanged(role) })
	} else {
		c.callbacks.do(func() { listener.OnSessionCleared() })
	}
}

func (c *Client) emitError(err error) {
	c.mu.Lock()
	listener := c.listener
	c.mu.Unlock()
	if listener == nil {
		return
	}
	message := err.Error()
	c.callbacks.do(func() { listener.OnError(message) })
}
