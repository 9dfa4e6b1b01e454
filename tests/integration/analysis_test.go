package integration

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcminio "github.com/testcontainers/testcontainers-go/modules/minio"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcrabbitmq "github.com/testcontainers/testcontainers-go/modules/rabbitmq"
	"github.com/vidsense/vidsense-analysis-service/internal/domain/entity"
	"github.com/vidsense/vidsense-analysis-service/internal/infra/email"
	"github.com/vidsense/vidsense-analysis-service/internal/infra/ffmpeg"
	miniostorage "github.com/vidsense/vidsense-analysis-service/internal/infra/minio"
	"github.com/vidsense/vidsense-analysis-service/internal/infra/postgres"
	"github.com/vidsense/vidsense-analysis-service/internal/infra/rabbitmq"
	"github.com/vidsense/vidsense-analysis-service/internal/infra/transcribe"
	"github.com/vidsense/vidsense-analysis-service/internal/infra/vision"
	"github.com/vidsense/vidsense-analysis-service/internal/usecase"
	"github.com/vidsense/vidsense-analysis-service/pkg/logger"
)

// stubAnnotator answers every frame with a fixed office scene.
func stubAnnotator(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/annotate" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"scene_type": "test_pattern",
			"themes":     []string{"synthetic"},
			"objects":    []string{"color_bars"},
			"confidence": 0.95,
		})
	}))
}

// stubTranscriber answers with one speech segment covering the whole clip.
func stubTranscriber(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/transcribe" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"segments": []map[string]any{
				{"start": 0.0, "end": 2.0, "text": "test tone", "confidence": 0.9},
			},
			"emotions": []map[string]any{},
		})
	}))
}

func TestAnalyzeVideoEndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not found in PATH")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	// Start PostgreSQL container
	pgContainer, err := tcpostgres.Run(ctx,
		"postgres:15-alpine",
		tcpostgres.WithDatabase("jobs"),
		tcpostgres.WithUsername("job_user"),
		tcpostgres.WithPassword("job_pass"),
		tcpostgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	defer pgContainer.Terminate(ctx)

	pgConnStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	// Start RabbitMQ container
	rmqContainer, err := tcrabbitmq.Run(ctx,
		"rabbitmq:3.12-management-alpine",
	)
	require.NoError(t, err)
	defer rmqContainer.Terminate(ctx)

	rmqURL, err := rmqContainer.AmqpURL(ctx)
	require.NoError(t, err)

	// Start MinIO container
	minioContainer, err := tcminio.Run(ctx,
		"minio/minio:latest",
		tcminio.WithUsername("minioadmin"),
		tcminio.WithPassword("minioadmin"),
	)
	require.NoError(t, err)
	defer minioContainer.Terminate(ctx)

	minioEndpoint, err := minioContainer.ConnectionString(ctx)
	require.NoError(t, err)

	// Run migrations
	err = postgres.RunMigrations(pgConnStr, "../../migrations")
	require.NoError(t, err)

	// Setup MinIO storage
	storage, err := miniostorage.NewStorage(miniostorage.StorageConfig{
		Endpoint:     minioEndpoint,
		AccessKey:    "minioadmin",
		SecretKey:    "minioadmin",
		UseSSL:       false,
		UploadBucket: "uploads",
		ResultBucket: "results",
	})
	require.NoError(t, err)
	require.NoError(t, storage.EnsureBuckets(ctx))

	// Upload test video to MinIO
	testVideoPath := filepath.Join("..", "testdata", "test.mp4")
	if _, err := os.Stat(testVideoPath); os.IsNotExist(err) {
		t.Skip("test video not found at tests/testdata/test.mp4 - generate it with: ffmpeg -f lavfi -i testsrc=duration=2:size=320x240:rate=10 -f lavfi -i sine=frequency=440:duration=2 -c:v libx264 -pix_fmt yuv420p -c:a aac tests/testdata/test.mp4")
	}

	minioClient, err := miniogo.New(minioEndpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4("minioadmin", "minioadmin", ""),
		Secure: false,
	})
	require.NoError(t, err)

	videoKey := "testuser/test.mp4"
	_, err = minioClient.FPutObject(ctx, "uploads", videoKey, testVideoPath, miniogo.PutObjectOptions{
		ContentType: "video/mp4",
	})
	require.NoError(t, err)

	// Stub sidecar services
	annotatorSrv := stubAnnotator(t)
	defer annotatorSrv.Close()
	transcriberSrv := stubTranscriber(t)
	defer transcriberSrv.Close()

	// Setup RabbitMQ publisher connection
	rmqConn, err := amqp.Dial(rmqURL)
	require.NoError(t, err)
	defer rmqConn.Close()

	pub, err := rabbitmq.NewPublisher(rmqConn, "vidsense.video")
	require.NoError(t, err)

	statusPub := rabbitmq.NewStatusPublisher(pub, "video.status")
	dlqPub := rabbitmq.NewDLQPublisher(pub, "video.analysis.dlq")

	// Setup DB pool
	pool, err := pgxpool.New(ctx, pgConnStr)
	require.NoError(t, err)
	defer pool.Close()

	// Setup use case
	log, _ := logger.New("debug")
	repo := postgres.NewJobRepository(pool)
	decoder := ffmpeg.NewDecoder(log)
	annotator := vision.NewAnnotator(annotatorSrv.URL, 10*time.Second, log)
	transcriber := transcribe.NewClient(transcriberSrv.URL, 10*time.Second, log)
	notifier := email.NewSMTPNotifier("localhost", 1025, "test@test.local", log)

	uc := usecase.NewAnalyzeVideoUseCase(
		repo, storage, decoder, annotator, transcriber,
		statusPub, dlqPub, notifier,
		log,
		usecase.AnalyzeVideoConfig{
			TempDir:    t.TempDir(),
			MaxRetries: 3,
		},
	)

	// Setup consumer
	consumer, err := rabbitmq.NewConsumer(rabbitmq.ConsumerConfig{
		URL:         rmqURL,
		Queue:       "video.analysis",
		Exchange:    "vidsense.video",
		DLQ:         "video.analysis.dlq",
		StatusQueue: "video.status",
		Prefetch:    1,
		WorkerCount: 1,
		BaseDelayMs: 100,
	}, uc.Execute, log)
	require.NoError(t, err)
	defer consumer.Close()

	// Start consumer in background
	consumerCtx, consumerCancel := context.WithCancel(ctx)
	defer consumerCancel()

	go func() {
		consumer.Start(consumerCtx)
	}()

	// Give consumer time to start
	time.Sleep(500 * time.Millisecond)

	// Publish analysis message
	jobID := uuid.New()
	videoInfo, _ := os.Stat(testVideoPath)
	analysisMsg := entity.VideoAnalysisMessage{
		JobID:     jobID,
		UserID:    "testuser",
		VideoKey:  videoKey,
		FileSize:  videoInfo.Size(),
		UserEmail: "test@test.local",
	}
	msgBody, err := json.Marshal(analysisMsg)
	require.NoError(t, err)

	pubCh, err := rmqConn.Channel()
	require.NoError(t, err)
	err = pubCh.PublishWithContext(ctx,
		"vidsense.video",
		"video.analysis",
		false, false,
		amqp.Publishing{
			ContentType: "application/json",
			Body:        msgBody,
		},
	)
	require.NoError(t, err)
	pubCh.Close()

	// Wait for the COMPLETED status on video.status (progress messages for
	// in-flight phases arrive first)
	statusCh, err := rmqConn.Channel()
	require.NoError(t, err)
	defer statusCh.Close()

	statusMsgs, err := statusCh.Consume("video.status", "", true, false, false, false, nil)
	require.NoError(t, err)

	var statusMsg entity.VideoStatusMessage
	deadline := time.After(2 * time.Minute)
	for statusMsg.Status != entity.JobStatusCompleted {
		select {
		case delivery := <-statusMsgs:
			err = json.Unmarshal(delivery.Body, &statusMsg)
			require.NoError(t, err)
			require.NotEqual(t, entity.JobStatusFailed, statusMsg.Status, "job failed: %s", statusMsg.ErrorMessage)
		case <-deadline:
			t.Fatal("timeout waiting for COMPLETED status message")
		}
	}

	// Assert status
	assert.Equal(t, jobID, statusMsg.JobID)
	assert.Greater(t, statusMsg.KeyFrameCount, 0)
	assert.NotEmpty(t, statusMsg.ResultKey)
	assert.Greater(t, statusMsg.Duration, 0.0)

	// Verify result document in MinIO
	resultObj, err := minioClient.GetObject(ctx, "results", statusMsg.ResultKey, miniogo.GetObjectOptions{})
	require.NoError(t, err)

	var doc entity.AnalysisDocument
	require.NoError(t, json.NewDecoder(resultObj).Decode(&doc))

	assert.Equal(t, jobID, doc.JobID)
	assert.Len(t, doc.KeyFrames, statusMsg.KeyFrameCount)
	assert.Len(t, doc.VisualEvents, statusMsg.KeyFrameCount, "every key frame was annotated by the stub")
	assert.NotEmpty(t, doc.AudioEvents)
	assert.NotEmpty(t, doc.Alignment.Timeline)
	assert.NotEmpty(t, doc.Alignment.TemporalSegments)
	for _, kf := range doc.KeyFrames {
		assert.True(t, kf.IsKeyFrame)
		assert.GreaterOrEqual(t, kf.SceneChangeScore, float32(0))
		assert.LessOrEqual(t, kf.SceneChangeScore, float32(1))
	}

	// First and last frames of the clip are always key frames
	assert.Equal(t, entity.ReasonVideoStart, doc.KeyFrames[0].KeyFrameReason)
	assert.Equal(t, entity.ReasonVideoEnd, doc.KeyFrames[len(doc.KeyFrames)-1].KeyFrameReason)

	// Verify job record in database
	var dbStatus string
	var dbKeyFrames int
	err = pool.QueryRow(ctx,
		"SELECT status, key_frame_count FROM analysis_jobs WHERE id=$1", jobID,
	).Scan(&dbStatus, &dbKeyFrames)
	require.NoError(t, err)
	assert.Equal(t, "COMPLETED", dbStatus)
	assert.Equal(t, statusMsg.KeyFrameCount, dbKeyFrames)

	consumerCancel()

	t.Logf("Test passed: %d key frames, result at %s", dbKeyFrames, statusMsg.ResultKey)
}

func TestAnalyzeVideoMalformedMessage(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	// Start PostgreSQL
	pgContainer, err := tcpostgres.Run(ctx,
		"postgres:15-alpine",
		tcpostgres.WithDatabase("jobs"),
		tcpostgres.WithUsername("job_user"),
		tcpostgres.WithPassword("job_pass"),
		tcpostgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	defer pgContainer.Terminate(ctx)

	pgConnStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	// Start RabbitMQ
	rmqContainer, err := tcrabbitmq.Run(ctx,
		"rabbitmq:3.12-management-alpine",
	)
	require.NoError(t, err)
	defer rmqContainer.Terminate(ctx)

	rmqURL, err := rmqContainer.AmqpURL(ctx)
	require.NoError(t, err)

	// Run migrations
	err = postgres.RunMigrations(pgConnStr, "../../migrations")
	require.NoError(t, err)

	// MinIO (no video upload needed for this test)
	minioContainer, err := tcminio.Run(ctx,
		"minio/minio:latest",
		tcminio.WithUsername("minioadmin"),
		tcminio.WithPassword("minioadmin"),
	)
	require.NoError(t, err)
	defer minioContainer.Terminate(ctx)

	minioEndpoint, err := minioContainer.ConnectionString(ctx)
	require.NoError(t, err)

	storage, err := miniostorage.NewStorage(miniostorage.StorageConfig{
		Endpoint:     minioEndpoint,
		AccessKey:    "minioadmin",
		SecretKey:    "minioadmin",
		UseSSL:       false,
		UploadBucket: "uploads",
		ResultBucket: "results",
	})
	require.NoError(t, err)
	require.NoError(t, storage.EnsureBuckets(ctx))

	// Setup
	pool, err := pgxpool.New(ctx, pgConnStr)
	require.NoError(t, err)
	defer pool.Close()

	log, _ := logger.New("debug")
	rmqConn, err := amqp.Dial(rmqURL)
	require.NoError(t, err)
	defer rmqConn.Close()

	pub, err := rabbitmq.NewPublisher(rmqConn, "vidsense.video")
	require.NoError(t, err)

	statusPub := rabbitmq.NewStatusPublisher(pub, "video.status")
	dlqPub := rabbitmq.NewDLQPublisher(pub, "video.analysis.dlq")

	annotatorSrv := stubAnnotator(t)
	defer annotatorSrv.Close()
	transcriberSrv := stubTranscriber(t)
	defer transcriberSrv.Close()

	repo := postgres.NewJobRepository(pool)
	decoder := ffmpeg.NewDecoder(log)
	annotator := vision.NewAnnotator(annotatorSrv.URL, 10*time.Second, log)
	transcriber := transcribe.NewClient(transcriberSrv.URL, 10*time.Second, log)
	notifier := email.NewSMTPNotifier("localhost", 1025, "test@test.local", log)

	uc := usecase.NewAnalyzeVideoUseCase(
		repo, storage, decoder, annotator, transcriber,
		statusPub, dlqPub, notifier,
		log,
		usecase.AnalyzeVideoConfig{
			TempDir:    t.TempDir(),
			MaxRetries: 3,
		},
	)

	consumer, err := rabbitmq.NewConsumer(rabbitmq.ConsumerConfig{
		URL:         rmqURL,
		Queue:       "video.analysis",
		Exchange:    "vidsense.video",
		DLQ:         "video.analysis.dlq",
		StatusQueue: "video.status",
		Prefetch:    1,
		WorkerCount: 1,
		BaseDelayMs: 100,
	}, uc.Execute, log)
	require.NoError(t, err)
	defer consumer.Close()

	consumerCtx, consumerCancel := context.WithCancel(ctx)
	defer consumerCancel()

	go func() {
		consumer.Start(consumerCtx)
	}()
	time.Sleep(500 * time.Millisecond)

	// Publish malformed message
	pubCh, err := rmqConn.Channel()
	require.NoError(t, err)
	err = pubCh.PublishWithContext(ctx,
		"vidsense.video",
		"video.analysis",
		false, false,
		amqp.Publishing{
			ContentType: "application/json",
			Body:        []byte(`{invalid json`),
		},
	)
	require.NoError(t, err)
	pubCh.Close()

	// Wait and verify message landed in DLQ
	time.Sleep(2 * time.Second)

	dlqCh, err := rmqConn.Channel()
	require.NoError(t, err)
	defer dlqCh.Close()

	dlqMsg, ok, err := dlqCh.Get("video.analysis.dlq", true)
	require.NoError(t, err)
	assert.True(t, ok, "malformed message should be in DLQ")
	assert.Equal(t, `{invalid json`, string(dlqMsg.Body))

	consumerCancel()
	t.Log("Test passed: malformed message sent to DLQ")
}
