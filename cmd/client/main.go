package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"github.com/cloudzz-dev/cldzchat/internal/client/bootstrap"
	"github.com/cloudzz-dev/cldzchat/internal/client/chatsync"
	"github.com/cloudzz-dev/cldzchat/internal/client/config"
	"github.com/cloudzz-dev/cldzchat/internal/client/debug"
	"github.com/cloudzz-dev/cldzchat/internal/client/session"
	"github.com/cloudzz-dev/cldzchat/internal/client/transport"
)

func main() {
	if err := run(); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	configPath := flag.String("config", "", "path to config.toml")
	profile := flag.String("profile", "", "session profile (overrides config)")
	offline := flag.Bool("offline", false, "run without a server connection")
	debugFlag := flag.Bool("debug", false, "write a debug log")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if p := strings.TrimSpace(*profile); p != "" {
		cfg.Profile = p
	}

	logger, closer, err := debug.New(cfg.LogFile, cfg.Debug || *debugFlag)
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var conn transport.Conn
	if *offline {
		conn = transport.NewLoopback()
	} else {
		ws := transport.NewClient(cfg.ServerURL, transport.Options{
			Logger:     logger,
			RetryDelay: cfg.ReconnectDelay,
		})
		conn = ws
		go func() {
			if err := ws.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Printf("transport stopped: %v", err)
			}
		}()
	}

	ctrl := chatsync.New(conn, bootstrap.File{Path: cfg.SeedFile}, chatsync.Options{Logger: logger})
	ctrl.Init()
	defer ctrl.Close()

	if lb, ok := conn.(*transport.Loopback); ok {
		lb.Connect()
	}

	sess := session.NewManager(session.NewFileStore(cfg.Profile), ctrl, logger)
	m := initialModel(ctx, ctrl, sess, cfg)
	if _, ok := sess.Restore(ctx); ok {
		m = m.loggedIn()
	}

	logger.Printf("starting client profile=%s server=%s offline=%v", cfg.Profile, cfg.ServerURL, *offline)
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err = p.Run()
	return err
}
