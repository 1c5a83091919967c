package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"syscall"

	"github.com/common-nighthawk/go-figure"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-auth-client/authn"
	"github.com/jrsteele09/go-auth-client/browserflow"
	"github.com/jrsteele09/go-auth-client/internal/config"
	"github.com/jrsteele09/go-auth-client/notify"
	"github.com/jrsteele09/go-auth-client/pkce"
	"github.com/jrsteele09/go-auth-client/storage"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("error running login")
	}
	log.Info().Msg("done")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Msgf("recovered from panic: %v", r)
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	_ = godotenv.Load()
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	c := config.New()
	displayAppname(c.GetAppName())

	options := config.Options(c)
	ctx := context.Background()
	if issuer := c.GetIssuer(); issuer != "" {
		endpoints, err := pkce.EndpointsFromIssuer(ctx, issuer)
		if err != nil {
			return fmt.Errorf("endpoint discovery: %w", err)
		}
		options.Endpoints = endpoints
	}

	store, err := storage.NewFileStore(filepath.Join(c.GetDataFolder(), "session.json"))
	if err != nil {
		return fmt.Errorf("open session store: %w", err)
	}
	navigator := browserflow.New(c.GetCallbackListenAddr(), c.GetCallbackPath())
	notifier := notify.New(log.Logger)

	plugin, err := authn.New(ctx, options, authn.Dependencies{
		Notifier:  notifier,
		Storage:   store,
		Navigator: navigator,
	})
	if err != nil {
		return fmt.Errorf("construct auth plugin: %w", err)
	}
	defer plugin.Destroy()

	authenticated := make(chan authn.AuthState, 1)
	cancel := plugin.Subscribe(func(state authn.AuthState) {
		if state.Kind == authn.KindAuthenticated {
			select {
			case authenticated <- state:
			default:
			}
		}
	})
	defer cancel()

	switch state := plugin.State(); state.Kind {
	case authn.KindAuthenticated:
		printSession(state)
		return nil
	default:
		plugin.StartCodeFlow()
	}

	select {
	case state := <-authenticated:
		printSession(state)
	case <-stopSignal():
		log.Info().Msg("interrupted")
	}
	return nil
}

func stopSignal() <-chan os.Signal {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	return stop
}

func printSession(state authn.AuthState) {
	session := state.Session
	log.Info().
		Str("user_id", session.UserID).
		Str("user_name", session.UserName).
		Str("issuer", session.Attributes.Issuer).
		Time("issued_at", session.Attributes.IssuedAt).
		Time("expires_at", session.Attributes.ExpiresAt).
		Msg("authenticated")
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
