package archive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"tileproxy/gateway"
	"tileproxy/logger"
)

// Archiver асинхронно копирует успешно отданные тайлы в бакет.
// Прокси никогда не читает из архива.
type Archiver struct {
	config  Config
	client  putObjectAPI
	metrics *Metrics

	mu      sync.RWMutex
	stopped bool
	queue   chan *job
	wg      sync.WaitGroup
}

// New создает S3 клиент и запускает воркеры
func New(cfg *Config, reg prometheus.Registerer) (*Archiver, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid archive config: %w", err)
	}

	client, err := newS3Client(cfg)
	if err != nil {
		return nil, err
	}
	return newArchiver(cfg, client, reg), nil
}

// newS3Client создает клиент для S3-совместимого хранилища
func newS3Client(cfg *Config) (*s3.Client, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsConfig, err := config.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config for archive: %w", err)
	}

	isHTTP := strings.HasPrefix(strings.ToLower(cfg.Endpoint), "http://")
	client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		o.UsePathStyle = true
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		if isHTTP {
			// Локальные хранилища без TLS: UNSIGNED-PAYLOAD вместо хеша тела
			o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
			o.APIOptions = append(o.APIOptions, func(stack *middleware.Stack) error {
				return v4.RemoveComputePayloadSHA256Middleware(stack)
			})
		}
	})

	logger.Info("Archive S3 client created (Endpoint: %s, Bucket: %s, plain HTTP: %t)", cfg.Endpoint, cfg.Bucket, isHTTP)
	return client, nil
}

func newArchiver(cfg *Config, client putObjectAPI, reg prometheus.Registerer) *Archiver {
	a := &Archiver{
		config:  *cfg,
		client:  client,
		metrics: NewMetrics(reg),
		queue:   make(chan *job, cfg.QueueSize),
	}

	for i := 0; i < cfg.Workers; i++ {
		a.wg.Add(1)
		go a.worker(i)
	}

	logger.Info("Archiver started: workers=%d, queue=%d, max_object_size=%d",
		cfg.Workers, cfg.QueueSize, cfg.MaxObjectSize)
	return a
}

// Capture оборачивает тело ответа. Тайл ставится в очередь при закрытии,
// если тело было прочитано до конца и не превысило MaxObjectSize.
func (a *Archiver) Capture(req *gateway.TileRequest, contentType string, body io.ReadCloser) io.ReadCloser {
	return &captureReader{
		body:  body,
		limit: a.config.MaxObjectSize,
		onComplete: func(data []byte) {
			a.enqueue(&job{
				key:         ObjectKey(a.config.Prefix, req),
				contentType: contentType,
				data:        data,
				provider:    req.Provider.String(),
				requestID:   req.RequestID,
			})
		},
		onSkip: func() {
			a.metrics.Captured.WithLabelValues("skipped").Inc()
		},
	}
}

// enqueue никогда не блокирует: при полной очереди тайл отбрасывается
func (a *Archiver) enqueue(j *job) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.stopped {
		a.metrics.Captured.WithLabelValues("dropped").Inc()
		return
	}

	select {
	case a.queue <- j:
		a.metrics.Captured.WithLabelValues("queued").Inc()
		a.metrics.QueueDepth.Inc()
	default:
		a.metrics.Captured.WithLabelValues("dropped").Inc()
		logger.Debug("Archive queue is full, dropping %s", j.key)
	}
}

func (a *Archiver) worker(id int) {
	defer a.wg.Done()

	for j := range a.queue {
		a.metrics.QueueDepth.Dec()
		a.put(j)
	}
	logger.Debug("Archive worker %d stopped", id)
}

func (a *Archiver) put(j *job) {
	ctx, cancel := context.WithTimeout(context.Background(), a.config.OperationTimeout)
	defer cancel()

	start := time.Now()
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.config.Bucket),
		Key:           aws.String(j.key),
		Body:          bytes.NewReader(j.data),
		ContentLength: aws.Int64(int64(len(j.data))),
		ContentType:   aws.String(j.contentType),
		CacheControl:  aws.String(gateway.CacheControlValue),
		Metadata: map[string]string{
			"provider":   j.provider,
			"request-id": j.requestID,
		},
	})
	a.metrics.UploadLatency.Observe(time.Since(start).Seconds())

	if err != nil {
		a.metrics.Uploads.WithLabelValues("error").Inc()
		logger.Warn("Failed to archive %s: %v", j.key, err)
		return
	}

	a.metrics.Uploads.WithLabelValues("success").Inc()
	a.metrics.BytesWritten.Add(float64(len(j.data)))
	logger.Debug("Archived %s (%d bytes)", j.key, len(j.data))
}

// Stop перестает принимать тайлы, дожидается опустошения очереди и завершения воркеров
func (a *Archiver) Stop(ctx context.Context) error {
	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		return nil
	}
	a.stopped = true
	close(a.queue)
	a.mu.Unlock()

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("Archiver stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("archiver stop: %w", ctx.Err())
	}
}
