package queue

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

type fakeSQS struct {
	sent     map[string][]string
	queued   map[string][]string
	deleted  []string
	received []string
}

func newFakeSQS() *fakeSQS {
	return &fakeSQS{sent: map[string][]string{}, queued: map[string][]string{}}
}

func (f *fakeSQS) SendMessage(_ context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	url := aws.ToString(in.QueueUrl)
	f.sent[url] = append(f.sent[url], aws.ToString(in.MessageBody))
	f.queued[url] = append(f.queued[url], aws.ToString(in.MessageBody))
	return &sqs.SendMessageOutput{}, nil
}

func (f *fakeSQS) ReceiveMessage(_ context.Context, in *sqs.ReceiveMessageInput, _ ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	url := aws.ToString(in.QueueUrl)
	f.received = append(f.received, url)
	if len(f.queued[url]) == 0 {
		return &sqs.ReceiveMessageOutput{}, nil
	}
	body := f.queued[url][0]
	f.queued[url] = f.queued[url][1:]
	return &sqs.ReceiveMessageOutput{Messages: []sqstypes.Message{{
		Body:          aws.String(body),
		ReceiptHandle: aws.String("rh-" + url),
	}}}, nil
}

func (f *fakeSQS) DeleteMessage(_ context.Context, in *sqs.DeleteMessageInput, _ ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	f.deleted = append(f.deleted, aws.ToString(in.ReceiptHandle))
	return &sqs.DeleteMessageOutput{}, nil
}

func TestSQSLanesRouteByLane(t *testing.T) {
	fake := newFakeSQS()
	lanes := newSQSLanes(fake, "https://sqs/high", "https://sqs/normal")
	ctx := context.Background()

	if err := lanes.Push(ctx, Message{JobID: "j-1", ProposalID: "p-1", Lane: LaneNormal}); err != nil {
		t.Fatalf("push normal: %v", err)
	}
	if err := lanes.Push(ctx, Message{JobID: "j-2", ProposalID: "p-2", Lane: LaneHigh}); err != nil {
		t.Fatalf("push high: %v", err)
	}
	if len(fake.sent["https://sqs/high"]) != 1 || len(fake.sent["https://sqs/normal"]) != 1 {
		t.Fatalf("unexpected routing %v", fake.sent)
	}
	if err := lanes.Push(ctx, Message{Lane: "urgent"}); err == nil {
		t.Fatalf("expected error for unknown lane")
	}

	d, err := lanes.Pop(ctx)
	if err != nil {
		t.Fatalf("pop: %v", err)
	}
	if d.Message.JobID != "j-2" {
		t.Fatalf("expected high lane message first, got %+v", d.Message)
	}
	if err := d.Ack(ctx); err != nil {
		t.Fatalf("ack: %v", err)
	}
	if len(fake.deleted) != 1 || fake.deleted[0] != "rh-https://sqs/high" {
		t.Fatalf("unexpected deletes %v", fake.deleted)
	}

	d, err = lanes.Pop(ctx)
	if err != nil {
		t.Fatalf("pop: %v", err)
	}
	if d.Message.JobID != "j-1" {
		t.Fatalf("expected normal lane message, got %+v", d.Message)
	}

	if _, err := lanes.Pop(ctx); !errors.Is(err, ErrNoJob) {
		t.Fatalf("expected ErrNoJob, got %v", err)
	}
}
