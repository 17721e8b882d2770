package main

import (
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/marcosotomac/LAST-KFC/bus"
	"github.com/marcosotomac/LAST-KFC/config"
	"github.com/marcosotomac/LAST-KFC/kafka"
	"github.com/marcosotomac/LAST-KFC/orchestrator"
	"github.com/marcosotomac/LAST-KFC/server"
	"github.com/marcosotomac/LAST-KFC/service/completion"
	"github.com/marcosotomac/LAST-KFC/service/order"
	"github.com/marcosotomac/LAST-KFC/service/registry"
)

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "run the HTTP API",
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

			eventsProducer, err := kafka.NewProducer(conf.KafkaHost, conf.EventsTopic)
			if err != nil {
				return err
			}

			orderRepo := order.NewRepo(db)
			orch := orchestrator.NewSFNClient(awsConf, conf.StateMachineARN, newLogger("orchestrator"))
			eventBus := bus.NewKafkaBus(eventsProducer, newLogger("bus"))

			orderSvc := order.NewService(orderRepo, eventsProducer, orch, newLogger("orders"))
			completionSvc := completion.NewService(orderRepo, eventBus, orch, newLogger("completion"))
			registrySvc := registry.NewService(
				registry.NewRepo(db),
				time.Duration(conf.ConnectionTTLSeconds)*time.Second,
				newLogger("registry"),
			)

			srv := server.New(orderSvc, completionSvc, registrySvc, orderRepo, newLogger("server"))
			return srv.Run(ctx, conf.HTTPAddr)
		},
	}
}
