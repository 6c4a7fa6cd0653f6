package cli

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/galadrinks/storefront/internal/client"
	"github.com/galadrinks/storefront/internal/domain/auth"
	"github.com/galadrinks/storefront/internal/domain/cart"
	"github.com/galadrinks/storefront/internal/storage/kv"
	"github.com/galadrinks/storefront/internal/wire"
)

// Keys the client keeps in its local store besides the cart.
const (
	sessionKey     = "session"
	checkoutKeyKey = "checkout_key"
)

var errNotSignedIn = errors.New("not signed in: run `storefront login` first")

// App holds everything a command needs.
type App struct {
	cfg   *Config
	lg    *zap.Logger
	store kv.Store
	api   *client.Client
	cart  *cart.Store
	now   func() time.Time
}

// NewApp assembles an App and loads the cart from store.
func NewApp(ctx context.Context, cfg *Config, lg *zap.Logger, store kv.Store, api *client.Client) *App {
	a := &App{
		cfg:   cfg,
		lg:    lg,
		store: store,
		api:   api,
		cart:  cart.NewStore(store, lg.Named("cart")),
		now:   time.Now,
	}
	a.cart.Load(ctx)
	return a
}

// Open builds the App from configuration.
func Open(ctx context.Context, opts *RootOptions) (*App, error) {
	lg, err := newLogger(opts.Verbose)
	if err != nil {
		return nil, errors.Wrap(err, "create logger")
	}

	cfg, err := LoadConfig(opts.ConfigFile)
	if err != nil {
		return nil, err
	}
	if opts.APIURL != "" {
		cfg.APIURL = opts.APIURL
	}

	store, err := kv.Open(ctx, cfg.Store, cfg.DeviceID, lg.Named("store"))
	if err != nil {
		return nil, errors.Wrap(err, "open local store")
	}
	api, err := client.New(client.Config{
		BaseURL:   cfg.APIURL,
		Timeout:   cfg.Timeout,
		UserAgent: "storefront-cli",
	})
	if err != nil {
		_ = store.Close()
		return nil, errors.Wrap(err, "create api client")
	}

	lg.Debug("Opened",
		zap.String("api_url", cfg.APIURL),
		zap.String("store", cfg.Store.Driver),
		zap.String("device_id", cfg.DeviceID),
	)
	return NewApp(ctx, cfg, lg, store, api), nil
}

// Close releases the local store.
func (a *App) Close() error {
	return a.store.Close()
}

func newLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	cfg.DisableStacktrace = true
	if verbose {
		cfg.Level.SetLevel(zap.DebugLevel)
		cfg.DisableStacktrace = false
	}
	return cfg.Build()
}

// session returns the stored session, or nil when signed out or expired.
func (a *App) session(ctx context.Context) *auth.Session {
	raw, err := a.store.Get(ctx, sessionKey)
	if err != nil {
		if !errors.Is(err, kv.ErrNotFound) {
			a.lg.Warn("Read session", zap.Error(err))
		}
		return nil
	}
	var s wire.Session
	if err := wire.Unmarshal([]byte(raw), &s); err != nil {
		a.lg.Warn("Discarding unparsable session", zap.Error(err))
		return nil
	}
	sess := auth.Session(s)
	if sess.AccessToken == "" || sess.Expired(a.now()) {
		return nil
	}
	return &sess
}

// authed returns the signed-in session and a client carrying its token.
func (a *App) authed(ctx context.Context) (*auth.Session, *client.Client, error) {
	sess := a.session(ctx)
	if sess == nil {
		return nil, nil, errNotSignedIn
	}
	return sess, a.api.WithToken(sess.AccessToken), nil
}

func (a *App) saveSession(ctx context.Context, s *auth.Session) error {
	return a.store.Set(ctx, sessionKey, string(wire.Marshal(wire.Session(*s))))
}

// checkoutKey returns the pending idempotency key, creating one when none is
// stored. It survives failed placements so a retry reuses it.
func (a *App) checkoutKey(ctx context.Context, newKey func() string) (string, error) {
	key, err := a.store.Get(ctx, checkoutKeyKey)
	if err == nil && key != "" {
		return key, nil
	}
	if err != nil && !errors.Is(err, kv.ErrNotFound) {
		return "", errors.Wrap(err, "read checkout key")
	}
	key = newKey()
	if err := a.store.Set(ctx, checkoutKeyKey, key); err != nil {
		return "", errors.Wrap(err, "save checkout key")
	}
	return key, nil
}

// forgetCheckoutKey drops the pending key. It runs after every placed order
// and every cart change, so a failed delete is retried by the next one.
func (a *App) forgetCheckoutKey(ctx context.Context) {
	if err := a.store.Delete(ctx, checkoutKeyKey); err != nil {
		a.lg.Warn("Delete checkout key", zap.Error(err))
	}
}
