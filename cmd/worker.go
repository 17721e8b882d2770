package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/marcosotomac/LAST-KFC/bus"
	"github.com/marcosotomac/LAST-KFC/config"
	"github.com/marcosotomac/LAST-KFC/kafka"
	"github.com/marcosotomac/LAST-KFC/model"
	"github.com/marcosotomac/LAST-KFC/service/order"
	"github.com/marcosotomac/LAST-KFC/service/worker"
)

func workerCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "worker [stage]",
		Short: "run a stage worker (kitchen, packaging or delivery)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stage := model.Stage(args[0])
			if !stage.Valid() {
				return fmt.Errorf("invalid stage %q", args[0])
			}

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

			topic, err := conf.StageTopic(stage)
			if err != nil {
				return err
			}

			consumer, err := kafka.NewConsumer(conf.KafkaHost, topic)
			if err != nil {
				return err
			}
			// Re-enqueue of failed tasks pushes back onto the same stage topic.
			stageProducer, err := kafka.NewProducer(conf.KafkaHost, topic)
			if err != nil {
				return err
			}
			eventsProducer, err := kafka.NewProducer(conf.KafkaHost, conf.EventsTopic)
			if err != nil {
				return err
			}

			log := newLogger("worker")
			svc := worker.NewService(
				stage,
				order.NewRepo(db),
				consumer,
				stageProducer,
				bus.NewKafkaBus(eventsProducer, newLogger("bus")),
				log,
			)

			log.WithField("topic", topic).Info("stage worker started")
			svc.Consume(ctx, 0)
			return nil
		},
	}
}
