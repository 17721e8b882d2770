package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sfn"
	"github.com/sirupsen/logrus"
)

// IClient wraps the durable execution engine. Continuation tokens are
// single-use: the engine rejects a second redemption of the same token, so
// callers must not retry a redemption that already went through.
type IClient interface {
	StartExecution(ctx context.Context, name string, input interface{}) (string, error)
	SendTaskSuccess(ctx context.Context, token string, output interface{}) error
	SendTaskFailure(ctx context.Context, token string, errorCode string, cause string) error
	SendTaskHeartbeat(ctx context.Context, token string) error
}

func NewSFNClient(awsConf aws.Config, stateMachineARN string, log *logrus.Entry) IClient {
	return &sfnClient{
		client:          sfn.NewFromConfig(awsConf),
		stateMachineARN: stateMachineARN,
		log:             log,
	}
}

type sfnClient struct {
	client          *sfn.Client
	stateMachineARN string
	log             *logrus.Entry
}

func (c *sfnClient) StartExecution(ctx context.Context, name string, input interface{}) (string, error) {
	payload, err := json.Marshal(input)
	if err != nil {
		return "", fmt.Errorf("marshal execution input: %w", err)
	}

	req := &sfn.StartExecutionInput{
		StateMachineArn: aws.String(c.stateMachineARN),
		Input:           aws.String(string(payload)),
	}
	if name != "" {
		req.Name = aws.String(name)
	}

	res, err := c.client.StartExecution(ctx, req)
	if err != nil {
		return "", fmt.Errorf("start execution: %w", err)
	}

	c.log.WithField("execution_arn", aws.ToString(res.ExecutionArn)).Info("execution started")
	return aws.ToString(res.ExecutionArn), nil
}

func (c *sfnClient) SendTaskSuccess(ctx context.Context, token string, output interface{}) error {
	payload, err := json.Marshal(output)
	if err != nil {
		return fmt.Errorf("marshal task output: %w", err)
	}

	_, err = c.client.SendTaskSuccess(ctx, &sfn.SendTaskSuccessInput{
		TaskToken: aws.String(token),
		Output:    aws.String(string(payload)),
	})
	if err != nil {
		return fmt.Errorf("send task success: %w", err)
	}
	return nil
}

func (c *sfnClient) SendTaskFailure(ctx context.Context, token string, errorCode string, cause string) error {
	req := &sfn.SendTaskFailureInput{
		TaskToken: aws.String(token),
		Error:     aws.String(errorCode),
	}
	if cause != "" {
		req.Cause = aws.String(cause)
	}

	_, err := c.client.SendTaskFailure(ctx, req)
	if err != nil {
		return fmt.Errorf("send task failure: %w", err)
	}
	return nil
}

func (c *sfnClient) SendTaskHeartbeat(ctx context.Context, token string) error {
	_, err := c.client.SendTaskHeartbeat(ctx, &sfn.SendTaskHeartbeatInput{
		TaskToken: aws.String(token),
	})
	if err != nil {
		return fmt.Errorf("send task heartbeat: %w", err)
	}
	return nil
}
