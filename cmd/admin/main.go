package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/robinjoseph08/golib/logger"
	"github.com/urfave/cli/v2"

	"github.com/shishobooks/shisho/pkg/catalog/authors"
	"github.com/shishobooks/shisho/pkg/catalog/ebooks"
	"github.com/shishobooks/shisho/pkg/catalog/series"
	"github.com/shishobooks/shisho/pkg/catalog/users"
	"github.com/shishobooks/shisho/pkg/config"
	"github.com/shishobooks/shisho/pkg/database"
	"github.com/shishobooks/shisho/pkg/fsstore"
	"github.com/shishobooks/shisho/pkg/models"
	"github.com/shishobooks/shisho/pkg/pathmodel"
	"github.com/shishobooks/shisho/pkg/searchindex"
)

// cmd/admin is the operator CLI: account management, on-disk cleanup, and
// the upload orchestrator (upload.go), grounded on the teacher's
// cmd/migrations/main.go urfave/cli/v2 subcommand shape.
func main() {
	log := logger.New()

	app := &cli.App{
		Name:  "mbs4-admin",
		Usage: "operator CLI for the ebook library server",
		Commands: []*cli.Command{
			createUserCommand(),
			changePasswordCommand(),
			cleanupCommand(),
			uploadCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Err(err).Fatal("admin command failed")
	}
}

func createUserCommand() *cli.Command {
	return &cli.Command{
		Name:  "create-user",
		Usage: "create a local account",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "data-dir", Required: true},
			&cli.StringFlag{Name: "email", Required: true},
			&cli.StringFlag{Name: "name", Required: true},
			&cli.StringFlag{Name: "password", Required: true},
			&cli.StringSliceFlag{Name: "role", Usage: "repeatable: admin, trusted"},
		},
		Action: func(c *cli.Context) error {
			cfg := config.NewForTest()
			cfg.DataDir = c.String("data-dir")
			cfg.DatabaseURL = "sqlite://" + filepath.Join(cfg.DataDir, "mbs4.db")

			db, err := database.New(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			roles := models.RoleList{}
			for _, r := range c.StringSlice("role") {
				roles = append(roles, models.Role(r))
			}

			svc := users.NewService(db)
			user, err := svc.Create(c.Context, users.CreateOptions{
				Email:    c.String("email"),
				Name:     c.String("name"),
				Password: c.String("password"),
				Roles:    roles,
			})
			if err != nil {
				return err
			}
			fmt.Printf("created user %d (%s)\n", user.ID, user.Email)
			return nil
		},
	}
}

func changePasswordCommand() *cli.Command {
	return &cli.Command{
		Name:  "change-password",
		Usage: "reset a local account's password",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "data-dir", Required: true},
			&cli.StringFlag{Name: "email", Required: true},
			&cli.StringFlag{Name: "password", Required: true},
		},
		Action: func(c *cli.Context) error {
			cfg := config.NewForTest()
			cfg.DataDir = c.String("data-dir")
			cfg.DatabaseURL = "sqlite://" + filepath.Join(cfg.DataDir, "mbs4.db")

			db, err := database.New(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			svc := users.NewService(db)
			user, err := svc.GetByEmail(c.Context, c.String("email"))
			if err != nil {
				return err
			}
			if _, err := svc.ChangePassword(c.Context, user.ID, user.Version, c.String("password")); err != nil {
				return err
			}
			fmt.Printf("password changed for %s\n", user.Email)
			return nil
		},
	}
}

func cleanupCommand() *cli.Command {
	return &cli.Command{
		Name:  "cleanup",
		Usage: "remove stale on-disk artifacts",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "data-dir", Required: true},
			&cli.BoolFlag{Name: "uploads", Usage: "clear everything under upload/"},
			&cli.BoolFlag{Name: "all", Usage: "clear upload/ and converted/, and rebuild the search index"},
		},
		Action: func(c *cli.Context) error {
			cfg := config.NewForTest()
			cfg.DataDir = c.String("data-dir")
			cfg.DatabaseURL = "sqlite://" + filepath.Join(cfg.DataDir, "mbs4.db")

			store, err := fsstore.New(cfg.ResolvedFilesDir())
			if err != nil {
				return err
			}

			if c.Bool("uploads") || c.Bool("all") {
				if err := clearPrefix(store, pathmodel.PrefixUpload); err != nil {
					return err
				}
				fmt.Println("cleared upload/")
			}

			if c.Bool("all") {
				if err := clearPrefix(store, pathmodel.PrefixConverted); err != nil {
					return err
				}
				fmt.Println("cleared converted/")

				if err := rebuildSearchIndex(c.Context, cfg, store); err != nil {
					return err
				}
				fmt.Println("rebuilt search index")
			}
			return nil
		},
	}
}

// clearPrefix removes every file under a store namespace root. It operates
// on the raw filesystem (os.RemoveAll/os.MkdirAll) since fsstore has no
// bulk-delete primitive of its own - this is an operator-only maintenance
// path, not a per-path validated domain operation.
func clearPrefix(store *fsstore.Store, prefix pathmodel.Prefix) error {
	root, err := pathmodel.NewValidPath(string(prefix))
	if err != nil {
		return err
	}
	dir := store.LocalPath(root)
	if err := os.RemoveAll(dir); err != nil {
		return err
	}
	return os.MkdirAll(dir, 0o755)
}

func rebuildSearchIndex(ctx context.Context, cfg *config.Config, _ *fsstore.Store) error {
	db, err := database.New(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	idx, err := searchindex.Open(cfg.ResolvedIndexPath())
	if err != nil {
		return err
	}
	defer idx.Close()
	idx.Start()

	return searchindex.BootstrapFromCatalog(ctx, idx, ebooks.NewService(db), authors.NewService(db), series.NewService(db))
}
