package main

import (
	"flag"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/allo-protocol/allo-deployer/framework"
)

const (
	EnvListenAddr     = "LISTEN_ADDR"
	DefaultListenAddr = "localhost:18550"
)

func main() {
	log := logrus.NewEntry(logrus.New())
	log.Logger.SetOutput(os.Stdout)

	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault(EnvListenAddr, DefaultListenAddr)
	v.SetDefault(framework.EnvLogLevel, framework.DefaultLogLevel)

	lvl, err := logrus.ParseLevel(v.GetString(framework.EnvLogLevel))
	if err != nil {
		flag.Usage()
		log.Fatalf("invalid loglevel: %s", v.GetString(framework.EnvLogLevel))
	}
	log.Logger.SetLevel(lvl)

	bookPath := v.GetString(framework.EnvDeploymentsFile)
	if bookPath == "" {
		log.Fatalf("%s is not set", framework.EnvDeploymentsFile)
	}

	srv, err := NewBookService(log, v.GetString(EnvListenAddr), bookPath)
	if err != nil {
		log.WithError(err).Fatal("failed creating the server")
	}

	log.WithField("file", bookPath).Println("listening on", v.GetString(EnvListenAddr))
	log.Fatal(srv.StartHTTPServer())
}
