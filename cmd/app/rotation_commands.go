package main

import (
	"context"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/allisson/secretvault/cmd/app/commands"
	"github.com/allisson/secretvault/internal/app"
	"github.com/allisson/secretvault/internal/config"
)

func formatFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Value:   "text",
		Usage:   "Output format: 'text' or 'json'",
	}
}

func getRotationCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "rotate-due-secrets",
			Usage: "Rotate every secret whose rotation policy is due",
			Flags: []cli.Flag{formatFlag()},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				useCase, err := container.VaultUseCase()
				if err != nil {
					return err
				}
				stopDispatcher, err := commands.StartEventDispatcher(ctx, container)
				if err != nil {
					return err
				}
				defer stopDispatcher()

				return commands.RunRotateDueSecrets(
					ctx,
					useCase,
					container.Logger(),
					commands.DefaultIO().Writer,
					time.Now().UTC(),
					cmd.String("format"),
				)
			},
		},
		{
			Name:  "rewrap-secrets",
			Usage: "Re-encrypt every secret still bound to a non-active master key",
			Flags: []cli.Flag{formatFlag()},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				useCase, err := container.VaultUseCase()
				if err != nil {
					return err
				}
				stopDispatcher, err := commands.StartEventDispatcher(ctx, container)
				if err != nil {
					return err
				}
				defer stopDispatcher()

				return commands.RunRewrapSecrets(
					ctx,
					useCase,
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.String("format"),
				)
			},
		},
	}
}
