package main

import (
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/marcosotomac/LAST-KFC/config"
	"github.com/marcosotomac/LAST-KFC/kafka"
	"github.com/marcosotomac/LAST-KFC/orchestrator"
	"github.com/marcosotomac/LAST-KFC/service/order"
)

func relayCommand() *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "relay",
		Short: "relay pending outbox events to the event topic",
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

			log := newLogger("relay")
			svc := order.NewService(
				order.NewRepo(db),
				eventsProducer,
				orchestrator.NewSFNClient(awsConf, conf.StateMachineARN, newLogger("orchestrator")),
				log,
			)

			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			log.Info("outbox relay started")
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					if err := svc.RelayOutbox(ctx, conf.OutboxBatchSize); err != nil {
						log.WithError(err).Error("outbox relay pass failed")
					}
				}
			}
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", 2*time.Second, "relay poll interval")
	return cmd
}
