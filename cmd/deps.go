package main

import (
	"context"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"github.com/marcosotomac/LAST-KFC/config"
)

func newLogger(component string) *logrus.Entry {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	return log.WithField("component", component)
}

func openDB(conf config.Config) (*sqlx.DB, error) {
	return sqlx.Connect("mysql", conf.DatabaseDSN)
}

func loadAWSConfig(ctx context.Context, conf config.Config) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(conf.AWSRegion))
}
