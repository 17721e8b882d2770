package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/marcosotomac/LAST-KFC/model"
)

type Config struct {
	DatabaseDSN  string `mapstructure:"database_dsn"`
	MigrationDir string `mapstructure:"migration_dir"`

	KafkaHost      string `mapstructure:"kafka_host"`
	KitchenTopic   string `mapstructure:"kitchen_topic"`
	PackagingTopic string `mapstructure:"packaging_topic"`
	DeliveryTopic  string `mapstructure:"delivery_topic"`
	EventsTopic    string `mapstructure:"events_topic"`

	AWSRegion         string `mapstructure:"aws_region"`
	StateMachineARN   string `mapstructure:"state_machine_arn"`
	WebsocketEndpoint string `mapstructure:"websocket_endpoint"`

	HTTPAddr             string `mapstructure:"http_addr"`
	ConnectionTTLSeconds int    `mapstructure:"connection_ttl_seconds"`
	OutboxBatchSize      int    `mapstructure:"outbox_batch_size"`
}

var DefaultConfig = Config{
	DatabaseDSN:  "root:1@tcp(localhost:3306)/kfc_orders?parseTime=true",
	MigrationDir: "migration",

	KafkaHost:      "localhost:29092",
	KitchenTopic:   "ORDER_KITCHEN_TOPIC",
	PackagingTopic: "ORDER_PACKAGING_TOPIC",
	DeliveryTopic:  "ORDER_DELIVERY_TOPIC",
	EventsTopic:    "ORDER_EVENTS_TOPIC",

	AWSRegion:         "us-east-1",
	StateMachineARN:   "",
	WebsocketEndpoint: "",

	HTTPAddr:             ":8080",
	ConnectionTTLSeconds: 3600,
	OutboxBatchSize:      100,
}

// Load returns DefaultConfig with KFC_* environment overrides applied
// (KFC_DATABASE_DSN, KFC_KAFKA_HOST, ...).
func Load() (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("KFC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("database_dsn", DefaultConfig.DatabaseDSN)
	v.SetDefault("migration_dir", DefaultConfig.MigrationDir)
	v.SetDefault("kafka_host", DefaultConfig.KafkaHost)
	v.SetDefault("kitchen_topic", DefaultConfig.KitchenTopic)
	v.SetDefault("packaging_topic", DefaultConfig.PackagingTopic)
	v.SetDefault("delivery_topic", DefaultConfig.DeliveryTopic)
	v.SetDefault("events_topic", DefaultConfig.EventsTopic)
	v.SetDefault("aws_region", DefaultConfig.AWSRegion)
	v.SetDefault("state_machine_arn", DefaultConfig.StateMachineARN)
	v.SetDefault("websocket_endpoint", DefaultConfig.WebsocketEndpoint)
	v.SetDefault("http_addr", DefaultConfig.HTTPAddr)
	v.SetDefault("connection_ttl_seconds", DefaultConfig.ConnectionTTLSeconds)
	v.SetDefault("outbox_batch_size", DefaultConfig.OutboxBatchSize)

	return Config{
		DatabaseDSN:          v.GetString("database_dsn"),
		MigrationDir:         v.GetString("migration_dir"),
		KafkaHost:            v.GetString("kafka_host"),
		KitchenTopic:         v.GetString("kitchen_topic"),
		PackagingTopic:       v.GetString("packaging_topic"),
		DeliveryTopic:        v.GetString("delivery_topic"),
		EventsTopic:          v.GetString("events_topic"),
		AWSRegion:            v.GetString("aws_region"),
		StateMachineARN:      v.GetString("state_machine_arn"),
		WebsocketEndpoint:    v.GetString("websocket_endpoint"),
		HTTPAddr:             v.GetString("http_addr"),
		ConnectionTTLSeconds: v.GetInt("connection_ttl_seconds"),
		OutboxBatchSize:      v.GetInt("outbox_batch_size"),
	}, nil
}

// StageTopic maps a stage to its task queue topic.
func (c Config) StageTopic(stage model.Stage) (string, error) {
	switch stage {
	case model.StageKitchen:
		return c.KitchenTopic, nil
	case model.StagePackaging:
		return c.PackagingTopic, nil
	case model.StageDelivery:
		return c.DeliveryTopic, nil
	}
	return "", fmt.Errorf("no topic for stage %q", stage)
}
