package cloudwatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go/service/cloudwatchlogs/cloudwatchlogsiface"

	"github.com/Chichichkin/CloudWatchShipper/internal/logging"
)

// Config carries the connection settings handed through to the SDK untouched.
// Credentials come from the default chain (env, shared config, instance role).
type Config struct {
	Region   string
	Endpoint string
}

// Client implements logging.SinkClient on top of the CloudWatch Logs API.
type Client struct {
	api cloudwatchlogsiface.CloudWatchLogsAPI
}

func New(cfg Config) (*Client, error) {
	awsCfg := aws.NewConfig()
	if cfg.Region != "" {
		awsCfg = awsCfg.WithRegion(cfg.Region)
	}
	if cfg.Endpoint != "" {
		awsCfg = awsCfg.WithEndpoint(cfg.Endpoint)
	}

	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return &Client{api: cloudwatchlogs.New(sess)}, nil
}

// NewFromAPI wires an existing CloudWatch Logs API, used by tests.
func NewFromAPI(api cloudwatchlogsiface.CloudWatchLogsAPI) *Client {
	return &Client{api: api}
}

func (c *Client) DescribeStreams(ctx context.Context, group, namePrefix string) ([]string, error) {
	out, err := c.api.DescribeLogStreamsWithContext(ctx, &cloudwatchlogs.DescribeLogStreamsInput{
		LogGroupName:        aws.String(group),
		LogStreamNamePrefix: aws.String(namePrefix),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to describe log streams in %s: %w", group, err)
	}

	names := make([]string, 0, len(out.LogStreams))
	for _, s := range out.LogStreams {
		if s.LogStreamName != nil {
			names = append(names, *s.LogStreamName)
		}
	}
	return names, nil
}

func (c *Client) CreateStream(ctx context.Context, group, name string) error {
	_, err := c.api.CreateLogStreamWithContext(ctx, &cloudwatchlogs.CreateLogStreamInput{
		LogGroupName:  aws.String(group),
		LogStreamName: aws.String(name),
	})
	if err != nil {
		// A concurrent writer may have created the stream first.
		var aerr awserr.Error
		if errors.As(err, &aerr) && aerr.Code() == cloudwatchlogs.ErrCodeResourceAlreadyExistsException {
			return nil
		}
		return fmt.Errorf("failed to create log stream %s: %w", name, err)
	}
	return nil
}

func (c *Client) PutBatch(ctx context.Context, group, stream string, events []logging.LogEvent) error {
	if len(events) == 0 {
		return nil
	}

	input := &cloudwatchlogs.PutLogEventsInput{
		LogGroupName:  aws.String(group),
		LogStreamName: aws.String(stream),
		LogEvents:     make([]*cloudwatchlogs.InputLogEvent, 0, len(events)),
	}
	for _, event := range events {
		input.LogEvents = append(input.LogEvents, &cloudwatchlogs.InputLogEvent{
			Message:   aws.String(event.Message),
			Timestamp: aws.Int64(event.Timestamp),
		})
	}

	if _, err := c.api.PutLogEventsWithContext(ctx, input); err != nil {
		return fmt.Errorf("failed to put %d log events to %s: %w", len(events), stream, err)
	}
	return nil
}

// Close satisfies logging.SinkClient; the SDK manages its own transport.
func (c *Client) Close() error {
	return nil
}
