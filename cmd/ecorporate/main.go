package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/anyproto/any-sync/app"
	"github.com/anyproto/any-sync/app/logger"
	"go.uber.org/zap"

	"github.com/azydesilva/ecorporate-server/adminapi"
	"github.com/azydesilva/ecorporate-server/config"
	"github.com/azydesilva/ecorporate-server/db"
	"github.com/azydesilva/ecorporate-server/notify"
	"github.com/azydesilva/ecorporate-server/pendingdocs"
	"github.com/azydesilva/ecorporate-server/publisher"
	"github.com/azydesilva/ecorporate-server/regcache"
	"github.com/azydesilva/ecorporate-server/registration"
	"github.com/azydesilva/ecorporate-server/registration/registrationrepo"
	"github.com/azydesilva/ecorporate-server/store"
)

var log = logger.NewNamed("main")

var flagConfigFile = flag.String("c", "etc/config.yml", "path to the config file")

func main() {
	flag.Parse()

	conf, err := config.NewFromFile(*flagConfigFile)
	if err != nil {
		log.Fatal("can't open config file", zap.Error(err))
	}

	a := new(app.App)
	bootstrap(a, conf)

	ctx := context.Background()
	if err = a.Start(ctx); err != nil {
		log.Fatal("can't start app", zap.Error(err))
	}
	log.Info("app started")

	exit := make(chan os.Signal, 1)
	signal.Notify(exit, os.Interrupt, syscall.SIGTERM)
	sig := <-exit
	log.Info("received exit signal, stopping", zap.String("signal", sig.String()))

	if err = a.Close(ctx); err != nil {
		log.Fatal("close error", zap.Error(err))
	}
	log.Info("app stopped")
}

func bootstrap(a *app.App, conf *config.Config) {
	a.Register(conf).
		Register(db.New()).
		Register(registrationrepo.New()).
		Register(regcache.New()).
		Register(notify.New()).
		Register(registration.New()).
		Register(pendingdocs.New()).
		Register(store.New()).
		Register(publisher.New()).
		Register(adminapi.New())
}
