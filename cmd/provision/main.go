// Command provision upserts the users listed in a YAML file and
// resynchronizes their roles.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-print"
	"github.com/joho/godotenv"

	auth "github.com/goliatone/go-user-auth"
	"github.com/goliatone/go-user-auth/activitymap"
	"github.com/goliatone/go-user-auth/config"
	"github.com/goliatone/go-user-auth/persistence"
)

func main() {
	configPath := flag.String("config", "config.yml", "path to the YAML configuration")
	file := flag.String("file", "users.yml", "path to the provisioning list")
	debug := flag.Bool("debug", false, "dump the parsed list before provisioning")
	flag.Parse()

	_ = godotenv.Load()

	if err := run(context.Background(), *configPath, *file, *debug); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath, file string, debug bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	level := glog.Info
	if debug {
		level = glog.Debug
	}
	lgr := glog.NewLogger(
		glog.WithName("provision"),
		glog.WithLoggerTypePretty(),
		glog.WithLevel(level),
		glog.WithAddSource(false),
		glog.WithRichErrorHandler(errors.ToSlogAttributes),
	)

	f, err := os.Open(file)
	if err != nil {
		return errors.Wrap(err, errors.CategoryBadInput, "failed to open provisioning list").
			WithMetadata(map[string]any{"file": file})
	}
	defer f.Close()

	items, err := auth.LoadProvisionList(f)
	if err != nil {
		return err
	}

	db, err := persistence.Open(ctx, cfg.Database.DSN, persistence.WithDebug(cfg.Database.Debug))
	if err != nil {
		return err
	}
	defer db.Close()

	if err := persistence.Migrate(ctx, db, auth.GetMigrationsFS(), lgr.GetLogger("migrations")); err != nil {
		return err
	}

	repo := auth.NewRepositoryManager(db)
	repo.MustValidate()

	provisioner := auth.NewProvisioner(repo.Users(), repo.Roles(), repo.RoleMappings(), cfg.GetDomain()).
		WithLoggerProvider(lgr).
		WithActivitySink(activitymap.NewSink(
			activitymap.LogPublisher(lgr.GetLogger("activity")),
			activitymap.WithActorFallback("provisioner"),
		))

	results := provisioner.UpsertList(ctx, items, debug)
	fmt.Println(print.MaybePrettyJSON(results))

	if auth.Failed(results) {
		return errors.New("some users could not be provisioned", errors.CategoryOperation)
	}

	return nil
}
