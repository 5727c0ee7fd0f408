package webserver

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/domteam/dom-session/internal/accesscontrol"
	"github.com/domteam/dom-session/internal/activecontext"
	"github.com/domteam/dom-session/internal/api"
	"github.com/domteam/dom-session/internal/config"
	"github.com/domteam/dom-session/internal/session"
	"github.com/domteam/dom-session/internal/storage"
)

type Webserver struct {
	echo *echo.Echo

	sessions *session.Manager
	contexts *activecontext.Resolver
	perms    *accesscontrol.Evaluator
	paths    *accesscontrol.PathMatcher
}

func New() *Webserver {
	e := echo.New()
	e.HideBanner = true

	return &Webserver{echo: e}
}

func (w *Webserver) Logger() echo.Logger {
	return w.echo.Logger
}

// Setup builds the session components from conf, restores any stored session and registers routes
func (w *Webserver) Setup(conf *config.Config) error {
	kv, err := storage.NewFileKV(conf.Session.StoragePath)
	if err != nil {
		return err
	}

	client := api.NewClient(conf.BackendURL, api.WithTimeout(conf.RequestTimeout()))

	w.perms = accesscontrol.FromConfig(conf)
	w.paths = accesscontrol.NewPathMatcher(conf)

	opts := session.OptionsFromConfig(conf)
	opts.Logger = w.echo.Logger

	w.sessions = session.NewManager(
		session.NewAPIBackend(client),
		session.NewTokenStore(kv, session.NewCodec()),
		w.perms,
		opts,
	)

	w.contexts = activecontext.NewResolver(client.Authorized(w.sessions), kv, w.sessions, w.echo.Logger)
	w.sessions.Subscribe(w.contexts.OnSessionStatus)

	w.registerRoutes()
	w.sessions.Initialize()

	return nil
}

func (w *Webserver) registerRoutes() {
	e := w.echo

	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	e.GET("/ping", w.pingRouteHandler)

	e.POST("/login", w.loginRouteHandler)
	e.POST("/logout", w.logoutRouteHandler)
	e.GET("/session", w.sessionRouteHandler)

	e.GET("/contexts", w.contextsRouteHandler)
	e.POST("/contexts/select", w.selectContextRouteHandler)

	e.Any("/*", w.pageRouteHandler)
}

func (w *Webserver) Run(conf *config.Config) {
	if err := w.Setup(conf); err != nil {
		w.echo.Logger.Fatalf("Failed to set up session: %v", err)
	}

	err := w.echo.Start(fmt.Sprintf(":%d", conf.ListenPort))
	w.echo.Logger.Fatal(err)
}
