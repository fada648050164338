// Package ingest consumes camera events from an SQS queue.
package ingest

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"parkvision-backend/config"
	"parkvision-backend/internal/parking"
)

// ErrMalformed marks messages that can never be processed.
var ErrMalformed = errors.New("malformed camera event")

const retryDelay = 5 * time.Second

// SQSAPI is the subset of the SQS client used by the consumer.
type SQSAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// Fetcher downloads images referenced by URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Orchestrator is what camera events are dispatched to.
type Orchestrator interface {
	HandleEntry(ctx context.Context, lotID string, image []byte) (*parking.EntryResult, error)
	ScanLot(ctx context.Context, lotID string, image []byte) (*parking.ScanResult, error)
	HandleExit(ctx context.Context, image []byte) (*parking.ExitResult, error)
}

// CameraEvent is the JSON body of a queue message. Exactly one of ImageURL
// and ImageBase64 carries the frame.
type CameraEvent struct {
	Type        string `json:"type"`
	LotID       string `json:"lot_id"`
	ImageURL    string `json:"image_url"`
	ImageBase64 string `json:"image_base64"`
}

// Consumer long-polls the queue and deletes each message once it has been
// handled or found malformed. Other failures are left for redelivery.
type Consumer struct {
	client  SQSAPI
	cfg     config.IngestConfig
	lots    map[string]bool
	fetcher Fetcher
	orch    Orchestrator
}

// NewConsumer creates a consumer that accepts entry and scan events only for
// the given lots.
func NewConsumer(client SQSAPI, cfg config.IngestConfig, lots []config.LotConfig, fetcher Fetcher, orch Orchestrator) *Consumer {
	known := make(map[string]bool, len(lots))
	for _, lot := range lots {
		known[lot.ID] = true
	}
	return &Consumer{client: client, cfg: cfg, lots: known, fetcher: fetcher, orch: orch}
}

// Start blocks until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context) {
	log.Printf("SQS consumer listening on queue %s", c.cfg.QueueURL)
	for {
		select {
		case <-ctx.Done():
			log.Println("SQS consumer: context cancelled, stopping.")
			return
		default:
		}

		result, err := c.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(c.cfg.QueueURL),
			MaxNumberOfMessages: c.cfg.MaxMessages,
			WaitTimeSeconds:     c.cfg.WaitTimeSeconds,
			VisibilityTimeout:   c.cfg.VisibilityTimeoutSeconds,
		})
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			log.Printf("SQS consumer: receive failed: %v", err)
			select {
			case <-time.After(retryDelay):
			case <-ctx.Done():
			}
			continue
		}

		for _, message := range result.Messages {
			c.process(ctx, aws.ToString(message.MessageId), message.Body, message.ReceiptHandle)
		}
	}
}

func (c *Consumer) process(ctx context.Context, id string, body, receiptHandle *string) {
	if body == nil {
		log.Printf("SQS consumer: message %s has no body, deleting", id)
		c.deleteMessage(ctx, receiptHandle)
		return
	}

	err := c.Handle(ctx, *body)
	switch {
	case err == nil:
		c.deleteMessage(ctx, receiptHandle)
	case errors.Is(err, ErrMalformed):
		log.Printf("SQS consumer: dropping message %s: %v", id, err)
		c.deleteMessage(ctx, receiptHandle)
	default:
		log.Printf("SQS consumer: message %s failed: %v. It will be redelivered after the visibility timeout.", id, err)
	}
}

// Handle decodes one message body and dispatches it.
func (c *Consumer) Handle(ctx context.Context, body string) error {
	var ev CameraEvent
	if err := json.Unmarshal([]byte(body), &ev); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if ev.LotID == "" {
		ev.LotID = config.DefaultLotID
	}

	switch ev.Type {
	case "entry", "scan":
		if !c.lots[ev.LotID] {
			return fmt.Errorf("%w: unknown lot %q", ErrMalformed, ev.LotID)
		}
	case "exit":
	default:
		return fmt.Errorf("%w: unknown event type %q", ErrMalformed, ev.Type)
	}

	image, err := c.image(ctx, ev)
	if err != nil {
		return err
	}

	switch ev.Type {
	case "entry":
		res, err := c.orch.HandleEntry(ctx, ev.LotID, image)
		if err != nil {
			return err
		}
		log.Printf("SQS entry at lot %s: %s (%s)", ev.LotID, res.Outcome, res.Plate)
	case "scan":
		res, err := c.orch.ScanLot(ctx, ev.LotID, image)
		if err != nil {
			return err
		}
		log.Printf("SQS scan of lot %s: %d free, decision %s", ev.LotID, len(res.Free), res.Assignment.Decision)
	case "exit":
		res, err := c.orch.HandleExit(ctx, image)
		if err != nil {
			return err
		}
		log.Printf("SQS exit: %s (%s)", res.Outcome, res.Plate)
	}
	return nil
}

func (c *Consumer) image(ctx context.Context, ev CameraEvent) ([]byte, error) {
	switch {
	case ev.ImageBase64 != "":
		image, err := base64.StdEncoding.DecodeString(ev.ImageBase64)
		if err != nil {
			return nil, fmt.Errorf("%w: image_base64: %v", ErrMalformed, err)
		}
		return image, nil
	case ev.ImageURL != "":
		return c.fetcher.Fetch(ctx, ev.ImageURL)
	default:
		return nil, fmt.Errorf("%w: no image", ErrMalformed)
	}
}

func (c *Consumer) deleteMessage(ctx context.Context, receiptHandle *string) {
	if receiptHandle == nil {
		log.Println("SQS consumer: empty receipt handle, cannot delete message.")
		return
	}
	_, err := c.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(c.cfg.QueueURL),
		ReceiptHandle: receiptHandle,
	})
	if err != nil {
		log.Printf("SQS consumer: delete failed: %v", err)
	}
}
