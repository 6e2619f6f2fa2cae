package main

import (
	"context"
	"log"
	"os"

	"github.com/go-playground/validator/v10"

	"github.com/danielortegac/qlase/core"
	"github.com/danielortegac/qlase/core/user"
	logsvc "github.com/danielortegac/qlase/services/logger"
	"github.com/danielortegac/qlase/storage"
)

var logger *log.Logger

func main() {
	logger = log.New(os.Stderr, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	conf := core.NewConfig()
	appLogger := logsvc.NewRollbarLogger(logger, conf)

	ctx, cancel := context.WithTimeout(context.Background(), 2*conf.Database.Timeout)
	store, err := storage.Open(ctx, conf, appLogger)
	cancel()
	errAndDie(err)

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	cli := commandLine{
		conf:       conf,
		store:      store,
		usrSvc:     user.NewService(store.Users, conf, appLogger),
		validate:   validate,
		translator: translator,
		out:        os.Stdout,
	}
	err = cli.run(os.Args)
	if cerr := store.Close(context.Background()); cerr != nil {
		logger.Printf("closing store: %v", cerr)
	}
	if err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
