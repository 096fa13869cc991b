package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/allisson/tokenvault/cmd/app/commands"
	"github.com/allisson/tokenvault/internal/app"
	"github.com/allisson/tokenvault/internal/config"
)

func getCredentialCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "rotate-tokens",
			Usage: "Refresh tokens that are nearing expiry, once",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:    "id",
					Aliases: []string{"i"},
					Usage:   "Only evaluate this credential (UUID)",
				},
				&cli.BoolFlag{
					Name:  "force",
					Usage: "Refresh the credential given by --id even when it is not nearing expiry",
				},
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				rotationUseCase, err := container.RotationUseCase()
				if err != nil {
					return err
				}

				return commands.RunRotateTokens(
					ctx,
					rotationUseCase,
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.String("id"),
					cmd.Bool("force"),
					cmd.String("format"),
				)
			},
		},
		{
			Name:  "reencrypt-credentials",
			Usage: "Seal plaintext tokens and re-seal envelopes under the current encryption key",
			Flags: []cli.Flag{
				&cli.IntFlag{
					Name:    "batch-size",
					Aliases: []string{"b"},
					Value:   100,
					Usage:   "Credentials loaded per page",
				},
				&cli.BoolFlag{
					Name:  "drop-plaintext",
					Usage: "Remove legacy plaintext token fields once they are encrypted",
				},
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				credentialUseCase, err := container.CredentialUseCase()
				if err != nil {
					return err
				}

				return commands.RunReEncryptCredentials(
					ctx,
					credentialUseCase,
					container.Logger(),
					commands.DefaultIO().Writer,
					int(cmd.Int("batch-size")),
					cmd.Bool("drop-plaintext"),
					cmd.String("format"),
				)
			},
		},
	}
}
