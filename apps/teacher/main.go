// Command teacher keeps a teacher's grade notes on the device and publishes
// them to the EcoleHub API once online.
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/ecolehub/backend/core"
	"github.com/ecolehub/backend/core/note"
	appfs "github.com/ecolehub/backend/fs"
	"github.com/ecolehub/backend/services/apiclient"
	logsvc "github.com/ecolehub/backend/services/logger"
	"github.com/ecolehub/backend/storage/localdb"
)

func main() {
	conf := core.NewConfig()
	logger := logsvc.NewRollbarLogger(log.New(os.Stderr, "TEACHER : ", log.LstdFlags), conf)

	opts, args, err := parseOptions(os.Args[1:], os.Stdout)
	if err != nil {
		if err != errHelp {
			logger.Error(err.Error(), err)
		}
		os.Exit(2)
	}

	cat, err := core.LoadCatalog(appfs.FS, "i18n", conf.DefaultLocale)
	errAndDie(logger, err)
	if opts.lang == "" || !cat.Has(opts.lang) {
		opts.lang = conf.DefaultLocale
	}

	store, err := localdb.Open(opts.dbPath, 0)
	errAndDie(logger, err)

	cache, err := note.NewGradeCache(store)
	errAndDie(logger, err)
	// undo the optimistic grades of a publish interrupted by a crash
	if restored, err := cache.Recover(context.Background()); err != nil {
		logger.Warn(fmt.Sprintf("recovering grade cache: %v", err), err)
	} else if len(restored) > 0 {
		logger.Info(fmt.Sprintf("rolled back %d uncommitted grade entries", len(restored)))
	}

	client := apiclient.New(opts.server, opts.token)
	syncer := note.NewSyncer(store, logger)
	syncer.SetPublishHandler(note.Optimistic(cache, client.PublishHandler()))

	uni := core.NewUniversalTranslator()

	cli := commandLine{
		out:      os.Stdout,
		opts:     opts,
		store:    store,
		syncer:   syncer,
		cache:    cache,
		client:   client,
		validate: core.NewValidate(uni),
		uni:      uni,
		cat:      cat,
	}
	err = cli.run(args)
	_ = store.Close()
	if err != nil {
		if err != errHelp {
			_, _ = fmt.Fprintln(os.Stderr, "error:", cli.message(err))
		}
		os.Exit(1)
	}
}

func errAndDie(logger core.Logger, err error) {
	if err != nil {
		logger.Fatal(err.Error(), err)
	}
}
