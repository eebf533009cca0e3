package queue

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

const (
	sqsDefaultRegion      = "us-east-1"
	sqsVisibilitySeconds  = 1200
	sqsNormalWaitSeconds  = 5
	sqsMaxMessagesPerPoll = 1
)

type sqsAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// SQSLanes uses one SQS queue per lane.
type SQSLanes struct {
	client    sqsAPI
	queueURLs map[string]string
}

// NewSQSLanes constructs an SQS-backed lane transport.
func NewSQSLanes(ctx context.Context, region, highURL, normalURL string) (*SQSLanes, error) {
	highURL = strings.TrimSpace(highURL)
	normalURL = strings.TrimSpace(normalURL)
	if highURL == "" || normalURL == "" {
		return nil, fmt.Errorf("SQS_HIGH_QUEUE_URL and SQS_NORMAL_QUEUE_URL are required")
	}
	if strings.TrimSpace(region) == "" {
		region = sqsDefaultRegion
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return newSQSLanes(sqs.NewFromConfig(cfg), highURL, normalURL), nil
}

func newSQSLanes(client sqsAPI, highURL, normalURL string) *SQSLanes {
	return &SQSLanes{
		client: client,
		queueURLs: map[string]string{
			LaneHigh:   highURL,
			LaneNormal: normalURL,
		},
	}
}

// Push sends the message to its lane's queue.
func (s *SQSLanes) Push(ctx context.Context, msg Message) error {
	queueURL, ok := s.queueURLs[msg.Lane]
	if !ok {
		return fmt.Errorf("unknown lane %q", msg.Lane)
	}
	payload, err := EncodeMessage(msg)
	if err != nil {
		return fmt.Errorf("encode sqs message: %w", err)
	}

	_, err = s.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(queueURL),
		MessageBody: aws.String(string(payload)),
	})
	if err != nil {
		return fmt.Errorf("sqs send message: %w", err)
	}
	return nil
}

// Pop short-polls the high lane, then long-polls the normal lane.
func (s *SQSLanes) Pop(ctx context.Context) (Delivery, error) {
	for _, lane := range []struct {
		name string
		wait int32
	}{{LaneHigh, 0}, {LaneNormal, sqsNormalWaitSeconds}} {
		queueURL := s.queueURLs[lane.name]
		resp, err := s.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(queueURL),
			MaxNumberOfMessages: sqsMaxMessagesPerPoll,
			WaitTimeSeconds:     lane.wait,
			VisibilityTimeout:   sqsVisibilitySeconds,
		})
		if err != nil {
			return Delivery{}, fmt.Errorf("sqs receive %s: %w", lane.name, err)
		}
		if len(resp.Messages) == 0 {
			continue
		}
		return s.delivery(queueURL, resp.Messages[0])
	}
	return Delivery{}, ErrNoJob
}

func (s *SQSLanes) delivery(queueURL string, m sqstypes.Message) (Delivery, error) {
	receipt := aws.ToString(m.ReceiptHandle)
	ack := func(ctx context.Context) error {
		if receipt == "" {
			return fmt.Errorf("missing receipt handle")
		}
		_, err := s.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
			QueueUrl:      aws.String(queueURL),
			ReceiptHandle: aws.String(receipt),
		})
		return err
	}
	msg, err := DecodeMessage([]byte(aws.ToString(m.Body)))
	if err != nil {
		// Undecodable messages are acked so they do not come back.
		_ = ack(context.Background())
		return Delivery{}, fmt.Errorf("decode sqs message: %w", err)
	}
	return Delivery{Message: msg, Ack: ack}, nil
}

var _ LaneTransport = (*SQSLanes)(nil)
