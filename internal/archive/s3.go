// Package archive provides optional, opt-in persistence sinks for
// Dispatcher delivery logs. Nothing in this package participates in
// delivery semantics (retry scheduling, termination); it only mirrors
// completed records to object storage for the caller's own audit trail.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/goccy/go-json"

	"github.com/coldharbor/infergate/internal/webhook"
)

// S3Config configures batched delivery-log archival to an S3-compatible
// object store.
type S3Config struct {
	BucketName    string
	Region        string
	AccessKeyID   string
	SecretKey     string
	Endpoint      string // custom endpoint, for MinIO and similar
	PathPrefix    string
	FlushInterval time.Duration
	BatchSize     int
}

// DefaultS3Config returns default configuration sourced from environment
// variables, matching the gateway's other env-driven config surfaces.
func DefaultS3Config() S3Config {
	return S3Config{
		BucketName:    os.Getenv("INFERGATE_S3_BUCKET"),
		Region:        os.Getenv("AWS_REGION"),
		AccessKeyID:   os.Getenv("AWS_ACCESS_KEY_ID"),
		SecretKey:     os.Getenv("AWS_SECRET_ACCESS_KEY"),
		Endpoint:      os.Getenv("INFERGATE_S3_ENDPOINT"),
		PathPrefix:    os.Getenv("INFERGATE_S3_PREFIX"),
		FlushInterval: 10 * time.Second,
		BatchSize:     100,
	}
}

// deliveryLogEntry is the JSONL-serialized shape of one archived Delivery.
type deliveryLogEntry struct {
	Timestamp      time.Time `json:"timestamp"`
	DeliveryID     string    `json:"delivery_id"`
	SubscriptionID string    `json:"subscription_id"`
	EventID        string    `json:"event_id"`
	EventType      string    `json:"event_type"`
	Status         string    `json:"status"`
	Attempts       int       `json:"attempts"`
	StatusCode     int       `json:"status_code,omitempty"`
	DurationMs     int64     `json:"duration_ms,omitempty"`
	Error          string    `json:"error,omitempty"`
}

// S3Archiver implements webhook.Archiver, batching terminal Delivery
// records and uploading them to S3 as newline-delimited JSON, partitioned
// by date.
type S3Archiver struct {
	config S3Config
	client *s3.Client

	mu    sync.Mutex
	queue []deliveryLogEntry

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewS3Archiver constructs an S3Archiver and starts its background flush
// loop.
func NewS3Archiver(cfg S3Config) (*S3Archiver, error) {
	if cfg.BucketName == "" {
		return nil, fmt.Errorf("archive: bucket name is required")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 10 * time.Second
	}

	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" && cfg.SecretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("archive: load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}

	a := &S3Archiver{
		config: cfg,
		client: s3.NewFromConfig(awsCfg, s3Opts...),
		queue:  make([]deliveryLogEntry, 0, cfg.BatchSize),
		stopCh: make(chan struct{}),
	}

	a.wg.Add(1)
	go a.flushLoop()

	return a, nil
}

// Archive enqueues a terminal Delivery for batched upload. Safe to call
// from any goroutine; never blocks on network I/O.
func (a *S3Archiver) Archive(delivery webhook.Delivery) {
	entry := deliveryLogEntry{
		Timestamp:      time.Now(),
		DeliveryID:     delivery.ID,
		SubscriptionID: delivery.SubscriptionID,
		EventID:        delivery.Event.ID,
		EventType:      string(delivery.Event.Type),
		Status:         string(delivery.Status),
		Attempts:       delivery.Attempts,
		Error:          delivery.Error,
	}
	if delivery.Response != nil {
		entry.StatusCode = delivery.Response.StatusCode
		entry.DurationMs = delivery.Response.DurationMs
	}

	a.mu.Lock()
	a.queue = append(a.queue, entry)
	shouldFlush := len(a.queue) >= a.config.BatchSize
	a.mu.Unlock()

	if shouldFlush {
		go a.flush(context.Background())
	}
}

// Shutdown stops the flush loop and flushes any remaining entries.
func (a *S3Archiver) Shutdown(ctx context.Context) error {
	close(a.stopCh)
	a.wg.Wait()
	return a.flush(ctx)
}

func (a *S3Archiver) flushLoop() {
	defer a.wg.Done()

	ticker := time.NewTicker(a.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.flush(context.Background())
		case <-a.stopCh:
			return
		}
	}
}

func (a *S3Archiver) flush(ctx context.Context) error {
	a.mu.Lock()
	if len(a.queue) == 0 {
		a.mu.Unlock()
		return nil
	}
	entries := a.queue
	a.queue = make([]deliveryLogEntry, 0, a.config.BatchSize)
	a.mu.Unlock()

	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	for i := range entries {
		if err := encoder.Encode(&entries[i]); err != nil {
			continue
		}
	}

	now := time.Now().UTC()
	key := a.generateKey(now)

	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.config.BucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("application/x-ndjson"),
	})
	if err != nil {
		return fmt.Errorf("archive: upload deliveries: %w", err)
	}
	return nil
}

func (a *S3Archiver) generateKey(t time.Time) string {
	datePrefix := fmt.Sprintf("year=%d/month=%02d/day=%02d/hour=%02d",
		t.Year(), t.Month(), t.Day(), t.Hour())
	filename := fmt.Sprintf("deliveries_%d.jsonl", t.UnixNano())

	if a.config.PathPrefix != "" {
		return path.Join(a.config.PathPrefix, datePrefix, filename)
	}
	return path.Join(datePrefix, filename)
}
