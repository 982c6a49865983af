// Command accountctl manages accounts and their progress records
// directly against the relational store.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"audiobookd/internal/config"
	"audiobookd/pkg/auth"
	"audiobookd/pkg/domain"
	"audiobookd/pkg/store"
)

var logger = log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true})

func openStore(cmd *cli.Command) (store.Store, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	st, err := store.NewGormStore(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return st, nil
}

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   config.ConfigPath,
	}
}

func createCommand() *cli.Command {
	return &cli.Command{
		Name:  "create",
		Usage: "Create an account",
		Flags: []cli.Flag{
			configFlag(),
			&cli.StringFlag{Name: "username", Aliases: []string{"u"}, Usage: "Account name", Required: true},
			&cli.StringFlag{Name: "password", Aliases: []string{"p"}, Usage: "Account password", Required: true},
			&cli.BoolFlag{Name: "admin", Usage: "Grant the admin role"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			st, err := openStore(cmd)
			if err != nil {
				return err
			}
			password := cmd.String("password")
			if err := auth.ValidatePassword(password); err != nil {
				return err
			}
			hash, err := auth.HashPassword(password)
			if err != nil {
				return fmt.Errorf("hash password: %w", err)
			}
			role := domain.RoleUser
			if cmd.Bool("admin") {
				role = domain.RoleAdmin
			}
			account, err := st.CreateAccount(domain.Account{
				Name:     cmd.String("username"),
				Password: hash,
				Role:     role,
			})
			if err != nil {
				return fmt.Errorf("create account: %w", err)
			}
			logger.Info("account created", "username", account.Name, "user_id", account.ID, "role", account.Role.String())
			return nil
		},
	}
}

func delCommand() *cli.Command {
	return &cli.Command{
		Name:  "del",
		Usage: "Delete an account",
		Flags: []cli.Flag{
			configFlag(),
			&cli.StringFlag{Name: "username", Aliases: []string{"u"}, Usage: "Account name", Required: true},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			st, err := openStore(cmd)
			if err != nil {
				return err
			}
			name := cmd.String("username")
			if err := st.DeleteAccount(name); err != nil {
				return fmt.Errorf("delete account: %w", err)
			}
			logger.Info("account deleted", "username", name)
			return nil
		},
	}
}

func updateCommand() *cli.Command {
	return &cli.Command{
		Name:  "update",
		Usage: "Set a new password for an account",
		Flags: []cli.Flag{
			configFlag(),
			&cli.StringFlag{Name: "username", Aliases: []string{"u"}, Usage: "Account name", Required: true},
			&cli.StringFlag{Name: "password", Aliases: []string{"p"}, Usage: "New password", Required: true},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			st, err := openStore(cmd)
			if err != nil {
				return err
			}
			password := cmd.String("password")
			if err := auth.ValidatePassword(password); err != nil {
				return err
			}
			hash, err := auth.HashPassword(password)
			if err != nil {
				return fmt.Errorf("hash password: %w", err)
			}
			name := cmd.String("username")
			if err := st.UpdateAccountPassword(name, hash); err != nil {
				return fmt.Errorf("update password: %w", err)
			}
			logger.Info("password updated", "username", name)
			return nil
		},
	}
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Copy an account under a new name and move its progress records",
		Flags: []cli.Flag{
			configFlag(),
			&cli.StringFlag{Name: "from", Usage: "Existing account name", Required: true},
			&cli.StringFlag{Name: "to", Usage: "New account name", Required: true},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			st, err := openStore(cmd)
			if err != nil {
				return err
			}
			old, ok, err := st.GetAccountByName(cmd.String("from"))
			if err != nil {
				return fmt.Errorf("look up account: %w", err)
			}
			if !ok {
				return fmt.Errorf("no such account: %s", cmd.String("from"))
			}
			created, err := st.CreateAccount(domain.Account{
				Name:     cmd.String("to"),
				Password: old.Password,
				Role:     old.Role,
			})
			if err != nil {
				return fmt.Errorf("create target account: %w", err)
			}
			if err := st.MigrateProgress(old.ID, created.ID); err != nil {
				return fmt.Errorf("migrate progress: %w", err)
			}
			logger.Info("account migrated", "from", old.Name, "to", created.Name, "user_id", created.ID)
			return nil
		},
	}
}

func listCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List all accounts",
		Flags: []cli.Flag{configFlag()},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			st, err := openStore(cmd)
			if err != nil {
				return err
			}
			accounts, err := st.ListAccounts()
			if err != nil {
				return fmt.Errorf("list accounts: %w", err)
			}
			for _, a := range accounts {
				fmt.Printf("%d\t%s\t%s\n", a.ID, a.Name, a.Role.String())
			}
			return nil
		},
	}
}

func main() {
	app := &cli.Command{
		Name:  "accountctl",
		Usage: "Manage audiobook server accounts",
		Commands: []*cli.Command{
			createCommand(),
			delCommand(),
			updateCommand(),
			migrateCommand(),
			listCommand(),
		},
	}
	if err := app.Run(context.Background(), os.Args); err != nil {
		logger.Fatalf("accountctl: %v", err)
	}
}
