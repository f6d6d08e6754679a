package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aanchal1903/BusinessOps-Chatbot/rag"
	"github.com/aanchal1903/BusinessOps-Chatbot/server"
	"github.com/aqua777/krait"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/pterm/pterm"
)

const shutdownTimeout = 10 * time.Second

// withRuntime opens a Runtime, runs fn and releases everything fn leaves open.
func withRuntime(ctx context.Context, reg *prometheus.Registry, fn func(*rag.Runtime) error) (err error) {
	cfg, logger, cleanup, err := loadConfig()
	if err != nil {
		return err
	}
	defer cleanup()

	var registerer prometheus.Registerer
	if reg != nil {
		registerer = reg
	}
	rt, err := rag.NewRuntime(ctx, cfg, logger, registerer)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := rt.Close(); closeErr != nil {
			err = errors.Join(err, closeErr)
		}
	}()
	return fn(rt)
}

func runChat(args []string) error {
	ctx := context.Background()
	return withRuntime(ctx, nil, func(rt *rag.Runtime) error {
		if err := rt.EnsureIndexed(ctx); err != nil {
			pterm.Warning.Println(err.Error())
		}

		user := krait.GetString(KeyUser)
		if user == "" {
			user = rt.Config.Server.DefaultUser
		}
		return NewShell(rt.System, os.Stdin, os.Stdout, user).Run(ctx)
	})
}

func runAsk(args []string) error {
	question := krait.GetString(KeyQuestion)
	document := krait.GetString(KeyDocument)
	if question == "" && len(args) > 0 {
		question = args[0]
	}
	if question == "" && document == "" {
		return errors.New("a question or a document is required")
	}

	ctx := context.Background()
	return withRuntime(ctx, nil, func(rt *rag.Runtime) error {
		if err := rt.EnsureIndexed(ctx); err != nil {
			pterm.Warning.Println(err.Error())
		}

		resp := rt.System.ProcessQuery(ctx, rag.Query{Question: question, DocumentPath: document})
		printResponse(os.Stdout, resp)
		return resp.Err
	})
}

func runSeed(args []string) error {
	ctx := context.Background()
	return withRuntime(ctx, nil, func(rt *rag.Runtime) error {
		if err := rt.Seed(ctx); err != nil {
			return fmt.Errorf("failed to seed database: %w", err)
		}
		pterm.Println("Loaded the sample database into " + rt.Config.Database.DSN)
		return nil
	})
}

func runIndex(args []string) error {
	csvPath := krait.GetString(KeyCSV)
	ctx := context.Background()
	return withRuntime(ctx, nil, func(rt *rag.Runtime) error {
		if csvPath == "" {
			csvPath = rt.Config.Matcher.ProfilesCSV
		}
		n, err := rt.IndexProfiles(ctx, csvPath)
		if err != nil {
			return fmt.Errorf("failed to index candidate profiles: %w", err)
		}
		pterm.Printf("Indexed %d candidate profile(s)\n", n)
		return nil
	})
}

func runServe(args []string) error {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	return withRuntime(ctx, reg, func(rt *rag.Runtime) error {
		if err := rt.EnsureIndexed(ctx); err != nil {
			return err
		}

		cfg := rt.Config.Server
		srv := server.NewServer(rt.System, rt.Chats,
			server.WithMetrics(rt.Metrics, reg),
			server.WithAllowedOrigins(cfg.AllowedOrigins),
			server.WithDefaultUser(cfg.DefaultUser),
			server.WithMaxUploadBytes(cfg.MaxUploadBytes),
			server.WithServerLogger(rt.Logger()),
		)

		errCh := make(chan error, 1)
		go func() {
			errCh <- srv.Start(cfg.Addr)
		}()

		// Wait for interrupt signal
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case err := <-errCh:
			return err
		case <-quit:
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return <-errCh
	})
}
