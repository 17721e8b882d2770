package main

import (
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/marcosotomac/LAST-KFC/config"
	"github.com/marcosotomac/LAST-KFC/kafka"
	"github.com/marcosotomac/LAST-KFC/service/broadcast"
	"github.com/marcosotomac/LAST-KFC/service/registry"
	"github.com/marcosotomac/LAST-KFC/ws"
)

func routerCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "router",
		Short: "route domain events to live observer connections",
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := config.Load()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			db, err := openDB(conf)
			if err != nil {
				return err
			}
			defer db.Close()

			awsConf, err := loadAWSConfig(ctx, conf)
			if err != nil {
				return err
			}

			consumer, err := kafka.NewConsumer(conf.KafkaHost, conf.EventsTopic)
			if err != nil {
				return err
			}

			registrySvc := registry.NewService(
				registry.NewRepo(db),
				time.Duration(conf.ConnectionTTLSeconds)*time.Second,
				newLogger("registry"),
			)
			pusher := ws.NewAPIGatewayPusher(awsConf, conf.WebsocketEndpoint)

			log := newLogger("router")
			svc := broadcast.NewService(consumer, registrySvc, pusher, log)

			log.WithField("topic", conf.EventsTopic).Info("event router started")
			svc.Consume(ctx, 0)
			return nil
		},
	}
}
