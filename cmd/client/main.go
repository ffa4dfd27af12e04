package main

import (
	"bufio"
	"chat-client/auth"
	"chat-client/contract"
	"chat-client/domain/event"
	"chat-client/infrastructure/api"
	"chat-client/infrastructure/search"
	"chat-client/infrastructure/storage"
	"chat-client/infrastructure/transport"
	"chat-client/internal"
	"chat-client/runtime"
	"chat-client/runtime/workers"
	"chat-client/sink"
	"chat-client/ui"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/cenkalti/backoff/v5"
	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/gookit/color"
	"github.com/mama165/sdk-go/logs"
)

const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run keeps every defer (cache, index) executed before the process exits.
func run() (int, error) {
	// 1. Configuration & Logger
	config, err := internal.Load()
	if err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	logger := logs.GetLoggerFromString(config.LogLevel)

	identity, err := auth.ResolveIdentity(config.AuthToken, config.SelfID, config.SelfUsername)
	if err != nil {
		return exitConfig, err
	}
	logger.Info("Starting client", "user_id", identity.ID, "username", identity.Username)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Optional history cache (BadgerDB) and search index (Bluge)
	var history contract.IHistoryRepository
	if config.HistoryCachePath != "" {
		db, err := badger.Open(badgerOptions(ctx, config, logger))
		if err != nil {
			return exitRuntime, fmt.Errorf("history cache opening failed: %w", err)
		}
		defer func() {
			logger.Info("Closing BadgerDB...")
			_ = db.Close()
		}()
		history = storage.NewHistoryRepository(db, logger, config.LimitMessages)
	}

	var searcher ui.Searcher
	var index *search.Index
	if config.EnableSearch {
		if config.SearchIndexPath != "" {
			index, err = search.NewIndex(logger, config.SearchIndexPath)
		} else {
			index, err = search.NewInMemoryIndex(logger)
		}
		if err != nil {
			return exitRuntime, fmt.Errorf("search index opening failed: %w", err)
		}
		defer func() {
			logger.Info("Closing Bluge...")
			_ = index.Close()
		}()
		searcher = index
	}

	// 3. Server access
	apiClient, err := api.NewClient(api.ClientConfig{
		BaseURL:    config.ServerURL,
		Token:      config.AuthToken,
		CookieName: config.AuthCookieName,
		HTTPClient: &http.Client{Timeout: config.HTTPTimeout},
		Logger:     logger,
	})
	if err != nil {
		return exitConfig, err
	}
	cookie := &http.Cookie{Name: config.AuthCookieName, Value: config.AuthToken}
	tr := transport.NewTransport(logger, transport.GorillaDialer{
		Header:       http.Header{"Cookie": []string{cookie.String()}},
		WriteTimeout: config.WriteTimeout,
		PongTimeout:  config.PongTimeout,
		Log:          logger,
	}, transport.Config{
		URL:           config.WebsocketURL,
		DialTimeout:   config.DialTimeout,
		Policy:        reconnectPolicy(config),
		FallbackDelay: config.ReconnectDelay,
	})

	// 4. Session, fanout and sinks under supervision
	events := make(chan event.DomainEvent, config.EventBufferSize)
	session := runtime.NewSession(logger, identity, tr, apiClient, history, events)

	registry := runtime.NewRegistry()
	fanout := workers.NewEventFanout(logger, events, registry, config.SinkTimeout)
	if history != nil {
		fanout.Add(sink.NewHistorySink(history, logger))
	}
	if index != nil {
		fanout.Add(sink.NewSearchSink(index))
	}

	view := sink.NewSubscriberSink(config.SubscriberBufferSize)
	subscriberID := uuid.NewString()
	registry.Subscribe(subscriberID, view)
	defer registry.Unsubscribe(subscriberID)

	console := ui.NewConsole(session, searcher, os.Stdout, config.ServerURL, color.SupportColor())

	supCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	sup := workers.NewSupervisor(logger, config.RestartInterval)
	sup.Add(session, fanout)
	supervised := make(chan struct{})
	go func() {
		defer close(supervised)
		sup.Run(supCtx)
	}()
	go console.Watch(supCtx, view.Events())

	// 5. Read commands until quit, logout or signal
	lines := make(chan string)
	go readLines(os.Stdin, lines)

loop:
	for {
		select {
		case <-ctx.Done():
			logger.Info("Shutting down gracefully...")
			break loop
		case <-session.Done():
			break loop
		case line, ok := <-lines:
			if !ok {
				break loop
			}
			quit, err := console.Execute(ctx, line)
			if err != nil {
				fmt.Fprintf(os.Stderr, "%v\n", err)
			}
			if quit {
				break loop
			}
		}
	}

	// 6. Final Cleanup
	cancel()
	<-supervised
	logger.Info("Client stopped cleanly")
	return exitOK, nil
}

func reconnectPolicy(config internal.Config) backoff.BackOff {
	if config.ReconnectPolicy == internal.PolicyExponential {
		return transport.ExponentialPolicy(config.ReconnectDelay, config.ReconnectMaxDelay)
	}
	return transport.ConstantPolicy(config.ReconnectDelay)
}

func badgerOptions(ctx context.Context, config internal.Config, logger *slog.Logger) badger.Options {
	options := badger.DefaultOptions(config.HistoryCachePath)
	if logger.Enabled(ctx, slog.LevelDebug) {
		return options.WithLoggingLevel(badger.DEBUG)
	}
	return options.WithLoggingLevel(badger.WARNING)
}

func readLines(f *os.File, lines chan<- string) {
	defer close(lines)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines <- scanner.Text()
	}
}
