package cmd

import (
	"github.com/labstack/echo/v4"

	"github.com/domteam/dom-session/internal/accesscontrol"
	"github.com/domteam/dom-session/internal/api"
	"github.com/domteam/dom-session/internal/config"
	"github.com/domteam/dom-session/internal/session"
	"github.com/domteam/dom-session/internal/storage"
)

type cliDeps struct {
	kv      *storage.FileKV
	client  *api.Client
	store   *session.TokenStore
	manager *session.Manager
}

func buildDeps(conf *config.Config, logger echo.Logger) (*cliDeps, error) {
	kv, err := storage.NewFileKV(conf.Session.StoragePath)
	if err != nil {
		return nil, err
	}

	client := api.NewClient(conf.BackendURL, api.WithTimeout(conf.RequestTimeout()))
	store := session.NewTokenStore(kv, session.NewCodec())

	opts := session.OptionsFromConfig(conf)
	opts.Logger = logger
	// One-shot commands never hold a session long enough to need a refresh
	opts.AutoRefresh = false

	return &cliDeps{
		kv:      kv,
		client:  client,
		store:   store,
		manager: session.NewManager(session.NewAPIBackend(client), store, accesscontrol.FromConfig(conf), opts),
	}, nil
}
