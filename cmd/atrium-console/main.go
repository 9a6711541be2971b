// Copyright 2026 The Atrium Authors
// SPDX-License-Identifier: Apache-2.0

// Atrium-console is a line-oriented dialog client. Each input line
// becomes a dialog request; responses print as they arrive, including
// unsolicited prompts from the server.
//
// Commands:
//
//	/login <username>   prompt for a password and log in
//	/logout             detach the person from this session
//	/quit               exit
//
// Anything else is sent as free text for Central to interpret.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/atrium-foundation/atrium/broker"
	"github.com/atrium-foundation/atrium/dialog"
	"github.com/atrium-foundation/atrium/lib/config"
	"github.com/atrium-foundation/atrium/lib/ref"
	"github.com/atrium-foundation/atrium/remote"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath string
		serverName string
		timeout    string
	)
	flags := pflag.NewFlagSet("atrium-console", pflag.ContinueOnError)
	flags.StringVar(&configPath, "config", "", "configuration file (default: $ATRIUM_CONFIG)")
	flags.StringVar(&serverName, "server", "", "Central's participant identity (default: from config)")
	flags.StringVar(&timeout, "timeout", "30s", "how long to wait for each answer")
	if err := flags.Parse(os.Args[1:]); err != nil {
		return err
	}

	logger := slog.New(slog.DiscardHandler)

	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}
	if serverName == "" {
		serverName = cfg.Station.Participant
	}
	server, err := ref.ParseParticipantID(serverName)
	if err != nil {
		return fmt.Errorf("server identity: %w", err)
	}
	timeouts, err := config.TimeoutsConfig{Startup: timeout, Shutdown: timeout, Collect: timeout}.Parse()
	if err != nil {
		return fmt.Errorf("--timeout: %w", err)
	}

	ctx := context.Background()
	backend, err := broker.NewRedisBackend(ctx, broker.RedisConfig{
		Address:  cfg.Central.Address,
		Password: cfg.Central.Password,
		Database: cfg.Central.Database,
	})
	if err != nil {
		return err
	}
	hub := broker.NewHub(backend, broker.NewMemoryBackend(), logger)
	defer hub.Close()

	client, err := remote.Dial(ctx, remote.Config{
		Central: hub.Central(),
		Server:  server,
		Timeout: timeouts.Startup,
		Notify: func(resp *dialog.Response) {
			fmt.Printf("\n%s\n> ", resp.Message)
		},
		Logger: logger,
	})
	if err != nil {
		return err
	}
	defer client.Close()

	fmt.Printf("connected as %s; /quit to exit\n", client.Self())

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch {
		case line == "/quit":
			return nil

		case strings.HasPrefix(line, "/login"):
			username := strings.TrimSpace(strings.TrimPrefix(line, "/login"))
			if username == "" {
				fmt.Println("usage: /login <username>")
				continue
			}
			password, err := readPassword()
			if err != nil {
				fmt.Printf("reading password: %v\n", err)
				continue
			}
			result, err := client.Login(ctx, username, password)
			if err != nil {
				fmt.Printf("login: %v\n", err)
				continue
			}
			fmt.Println(result.Message)

		case line == "/logout":
			if err := client.Logout(ctx); err != nil {
				fmt.Printf("logout: %v\n", err)
				continue
			}
			fmt.Println("logged out")

		default:
			resp, err := client.AskText(ctx, line)
			if err != nil {
				fmt.Printf("%v\n", err)
				continue
			}
			fmt.Println(resp.Message)
			if resp.Explanation != "" {
				fmt.Println("  " + resp.Explanation)
			}
		}
	}
}

func readPassword() (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("stdin is not a terminal")
	}
	fmt.Print("password: ")
	passwordBytes, err := term.ReadPassword(fd)
	fmt.Println()
	if err != nil {
		return "", err
	}
	return string(passwordBytes), nil
}
