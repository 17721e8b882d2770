package ws

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/apigatewaymanagementapi"
	"github.com/aws/aws-sdk-go-v2/service/apigatewaymanagementapi/types"
)

// ErrConnectionGone signals that the observer behind a connection id is no
// longer reachable and its registry record should be removed.
var ErrConnectionGone = errors.New("connection gone")

type IPusher interface {
	PostToConnection(ctx context.Context, connectionID string, data []byte) error
}

func NewAPIGatewayPusher(awsConf aws.Config, endpoint string) IPusher {
	client := apigatewaymanagementapi.NewFromConfig(awsConf, func(o *apigatewaymanagementapi.Options) {
		o.BaseEndpoint = aws.String(endpoint)
	})
	return &apiGatewayPusher{client: client}
}

type apiGatewayPusher struct {
	client *apigatewaymanagementapi.Client
}

func (p *apiGatewayPusher) PostToConnection(ctx context.Context, connectionID string, data []byte) error {
	_, err := p.client.PostToConnection(ctx, &apigatewaymanagementapi.PostToConnectionInput{
		ConnectionId: aws.String(connectionID),
		Data:         data,
	})
	var gone *types.GoneException
	if errors.As(err, &gone) {
		return ErrConnectionGone
	}
	return err
}
