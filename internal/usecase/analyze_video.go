package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/vidsense/vidsense-analysis-service/internal/analysis/keyframe"
	"github.com/vidsense/vidsense-analysis-service/internal/analysis/timeline"
	"github.com/vidsense/vidsense-analysis-service/internal/domain/entity"
	"github.com/vidsense/vidsense-analysis-service/internal/domain/port"
	"github.com/vidsense/vidsense-analysis-service/internal/infra/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type AnalyzeVideoUseCase struct {
	repo        port.JobRepository
	storage     port.VideoStorage
	decoder     port.FrameDecoder
	annotator   port.VisualAnnotator
	transcriber port.Transcriber
	publisher   port.StatusPublisher
	dlq         port.DLQPublisher
	notifier    port.FailureNotifier
	extractor   *keyframe.Extractor
	alignerCfg  timeline.Config
	logger      *zap.Logger
	tempDir     string
	maxRetry    int
}

type AnalyzeVideoConfig struct {
	TempDir    string
	MaxRetries int
	Keyframe   keyframe.Config
	Aligner    timeline.Config
}

func NewAnalyzeVideoUseCase(
	repo port.JobRepository,
	storage port.VideoStorage,
	decoder port.FrameDecoder,
	annotator port.VisualAnnotator,
	transcriber port.Transcriber,
	publisher port.StatusPublisher,
	dlq port.DLQPublisher,
	notifier port.FailureNotifier,
	logger *zap.Logger,
	cfg AnalyzeVideoConfig,
) *AnalyzeVideoUseCase {
	return &AnalyzeVideoUseCase{
		repo:        repo,
		storage:     storage,
		decoder:     decoder,
		annotator:   annotator,
		transcriber: transcriber,
		publisher:   publisher,
		dlq:         dlq,
		notifier:    notifier,
		extractor:   keyframe.NewExtractor(cfg.Keyframe, logger),
		alignerCfg:  cfg.Aligner,
		logger:      logger,
		tempDir:     cfg.TempDir,
		maxRetry:    cfg.MaxRetries,
	}
}

func (uc *AnalyzeVideoUseCase) Execute(ctx context.Context, rawMsg []byte) error {
	tracer := otel.Tracer("usecase")
	ctx, span := tracer.Start(ctx, "AnalyzeVideoUseCase.Execute")
	defer span.End()

	totalTimer := time.Now()

	var msg entity.VideoAnalysisMessage
	if err := json.Unmarshal(rawMsg, &msg); err != nil {
		uc.logger.Error("failed to unmarshal message", zap.Error(err), zap.ByteString("body", rawMsg))
		_ = uc.dlq.PublishToDLQ(ctx, rawMsg, "unmarshal_error: "+err.Error())
		return nil
	}

	span.SetAttributes(
		attribute.String("job.id", msg.JobID.String()),
		attribute.String("job.video_key", msg.VideoKey),
	)

	log := uc.logger.With(zap.String("job_id", msg.JobID.String()), zap.String("video_key", msg.VideoKey))

	job, err := uc.repo.FindByID(ctx, msg.JobID)
	if err != nil {
		job = entity.NewAnalysisJob(msg.UserID, msg.VideoKey, msg.FileSize, uc.maxRetry)
		job.ID = msg.JobID
		if err := uc.repo.Create(ctx, job); err != nil {
			log.Error("failed to create job record", zap.Error(err))
			return fmt.Errorf("create job: %w", err)
		}
	}

	if !job.CanRetry() {
		log.Warn("job exhausted retries, sending to DLQ")
		_ = uc.handlePermanentFailure(ctx, job, msg, rawMsg, "max retries exceeded")
		return nil
	}

	job.MarkProcessing()
	if err := uc.repo.Update(ctx, job); err != nil {
		log.Error("failed to update job to PROCESSING", zap.Error(err))
		return fmt.Errorf("update job: %w", err)
	}

	metrics.ActiveWorkers.Inc()
	defer metrics.ActiveWorkers.Dec()

	if err := uc.analysisPipeline(ctx, job, msg, rawMsg, log); err != nil {
		return err
	}

	metrics.JobsProcessedTotal.WithLabelValues("completed").Inc()
	metrics.JobProcessingDuration.WithLabelValues("total").Observe(time.Since(totalTimer).Seconds())

	return nil
}

func (uc *AnalyzeVideoUseCase) analysisPipeline(
	ctx context.Context,
	job *entity.AnalysisJob,
	msg entity.VideoAnalysisMessage,
	rawMsg []byte,
	log *zap.Logger,
) error {
	tracer := otel.Tracer("usecase")

	workDir := filepath.Join(uc.tempDir, job.ID.String())
	if err := os.MkdirAll(workDir, 0755); err != nil {
		return fmt.Errorf("create workdir: %w", err)
	}
	defer os.RemoveAll(workDir)

	// Download video
	uc.publishProgress(ctx, job, "download", 5, "fetching video from storage")
	dlStart := time.Now()
	ctx2, spanDl := tracer.Start(ctx, "download_video")
	videoPath := filepath.Join(workDir, "input.mp4")
	if err := uc.storage.DownloadVideo(ctx2, msg.VideoKey, videoPath); err != nil {
		spanDl.End()
		log.Error("failed to download video", zap.Error(err))
		return uc.handleRetryableFailure(ctx, job, msg, rawMsg, "download_video: "+err.Error(), log)
	}
	spanDl.End()
	metrics.JobProcessingDuration.WithLabelValues("download").Observe(time.Since(dlStart).Seconds())

	// Extract key frames
	uc.publishProgress(ctx, job, "extract", 20, "selecting key frames")
	exStart := time.Now()
	ctx3, spanEx := tracer.Start(ctx, "extract_key_frames")
	extraction, duration, err := uc.extractKeyFrames(ctx3, videoPath)
	spanEx.End()
	if err != nil {
		log.Error("key frame extraction failed", zap.Error(err))
		return uc.handleRetryableFailure(ctx, job, msg, rawMsg, "extract_key_frames: "+err.Error(), log)
	}
	metrics.JobProcessingDuration.WithLabelValues("extract").Observe(time.Since(exStart).Seconds())
	metrics.KeyFramesSelectedTotal.Add(float64(len(extraction.Frames)))
	metrics.FramesSkippedTotal.Add(float64(extraction.SkippedFrames))

	// Annotate key frames. Per-frame failures are recorded, never fatal.
	uc.publishProgress(ctx, job, "annotate", 45, "labeling key frames")
	anStart := time.Now()
	ctx4, spanAn := tracer.Start(ctx, "annotate_frames")
	visualEvents, failedLabels := uc.annotateFrames(ctx4, extraction, log)
	spanAn.End()
	metrics.JobProcessingDuration.WithLabelValues("annotate").Observe(time.Since(anStart).Seconds())
	metrics.AnnotationFailuresTotal.Add(float64(failedLabels))

	// Transcribe. A failed transcription degrades the alignment to
	// visual-only; the job still completes.
	uc.publishProgress(ctx, job, "transcribe", 65, "transcribing audio track")
	trStart := time.Now()
	ctx5, spanTr := tracer.Start(ctx, "transcribe_audio")
	audioEvents, emotionEvents := uc.transcribeAudio(ctx5, videoPath, workDir, log)
	spanTr.End()
	metrics.JobProcessingDuration.WithLabelValues("transcribe").Observe(time.Since(trStart).Seconds())

	// Align modalities
	uc.publishProgress(ctx, job, "align", 85, "fusing timelines")
	alStart := time.Now()
	_, spanAl := tracer.Start(ctx, "align_timelines")
	alignment := timeline.Align(visualEvents, audioEvents, emotionEvents, uc.alignerCfg)
	spanAl.End()
	metrics.JobProcessingDuration.WithLabelValues("align").Observe(time.Since(alStart).Seconds())
	metrics.AlignmentQualityLevel.WithLabelValues(string(alignment.Quality.QualityLevel)).Inc()

	// Upload result document
	uc.publishProgress(ctx, job, "upload", 95, "storing analysis result")
	doc := entity.AnalysisDocument{
		JobID:         job.ID,
		VideoKey:      msg.VideoKey,
		VideoDuration: duration,
		KeyFrames:     extraction.Frames,
		VisualEvents:  visualEvents,
		AudioEvents:   audioEvents,
		EmotionEvents: emotionEvents,
		Alignment:     alignment,
		SkippedFrames: extraction.SkippedFrames,
		FailedLabels:  failedLabels,
	}
	resultKey := fmt.Sprintf("%s/analysis_%s.json", msg.UserID, job.ID.String())
	if err := uc.uploadResult(ctx, resultKey, &doc); err != nil {
		log.Error("result upload failed", zap.Error(err))
		return uc.handleRetryableFailure(ctx, job, msg, rawMsg, "upload_result: "+err.Error(), log)
	}

	// Mark completed
	job.MarkCompleted(resultKey, len(extraction.Frames), extraction.SkippedFrames, duration, alignment.Quality.QualityLevel)
	if err := uc.repo.Update(ctx, job); err != nil {
		log.Error("failed to update job to COMPLETED", zap.Error(err))
		return fmt.Errorf("update job completed: %w", err)
	}

	uc.publishStatus(ctx, job, log)

	log.Info("job completed successfully",
		zap.Int("key_frames", len(extraction.Frames)),
		zap.Int("skipped_frames", extraction.SkippedFrames),
		zap.Int("failed_labels", failedLabels),
		zap.Float64("duration_secs", duration),
		zap.String("quality_level", string(alignment.Quality.QualityLevel)),
		zap.String("result_key", resultKey),
	)

	return nil
}

func (uc *AnalyzeVideoUseCase) extractKeyFrames(ctx context.Context, videoPath string) (*keyframe.Result, float64, error) {
	src, err := uc.decoder.OpenVideo(ctx, videoPath)
	if err != nil {
		return nil, 0, fmt.Errorf("open video: %w", err)
	}
	defer src.Close()

	var duration float64
	if src.FPS() > 0 {
		duration = float64(src.TotalFrames()) / src.FPS()
	}

	res, err := uc.extractor.ExtractKeyFrames(ctx, src)
	if err != nil {
		return nil, 0, err
	}
	return res, duration, nil
}

func (uc *AnalyzeVideoUseCase) annotateFrames(ctx context.Context, extraction *keyframe.Result, log *zap.Logger) ([]entity.VisualEvent, int) {
	events := make([]entity.VisualEvent, 0, len(extraction.Frames))
	failed := 0
	for i := range extraction.Frames {
		frame := &extraction.Frames[i]
		ev, err := uc.annotator.Annotate(ctx, frame, extraction.Snapshots[i], extraction.Width, extraction.Height)
		if err != nil {
			failed++
			log.Warn("annotation failed for frame",
				zap.Uint64("frame_number", frame.FrameNumber),
				zap.Float64("timestamp", frame.Timestamp),
				zap.Error(err),
			)
			continue
		}
		events = append(events, *ev)
	}
	return events, failed
}

func (uc *AnalyzeVideoUseCase) transcribeAudio(ctx context.Context, videoPath, workDir string, log *zap.Logger) ([]entity.AudioEvent, []entity.EmotionEvent) {
	audioPath := filepath.Join(workDir, "audio.wav")
	if err := uc.decoder.ExtractAudio(ctx, videoPath, audioPath); err != nil {
		log.Warn("audio extraction failed, continuing without audio", zap.Error(err))
		return nil, nil
	}

	audio, emotions, err := uc.transcriber.Transcribe(ctx, audioPath)
	if err != nil {
		log.Warn("transcription failed, continuing without audio", zap.Error(err))
		return nil, nil
	}
	return audio, emotions
}

func (uc *AnalyzeVideoUseCase) uploadResult(ctx context.Context, resultKey string, doc *entity.AnalysisDocument) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	return uc.storage.UploadResult(ctx, resultKey, bytes.NewReader(data), int64(len(data)))
}

func (uc *AnalyzeVideoUseCase) handleRetryableFailure(
	ctx context.Context,
	job *entity.AnalysisJob,
	msg entity.VideoAnalysisMessage,
	rawMsg []byte,
	errMsg string,
	log *zap.Logger,
) error {
	job.MarkFailed(errMsg)
	_ = uc.repo.Update(ctx, job)

	if !job.CanRetry() {
		return uc.handlePermanentFailure(ctx, job, msg, rawMsg, errMsg)
	}

	metrics.RetryTotal.WithLabelValues(strconv.Itoa(job.Attempt)).Inc()
	uc.publishStatus(ctx, job, log)

	return fmt.Errorf("retryable failure (attempt %d/%d): %s", job.Attempt, job.MaxAttempts, errMsg)
}

func (uc *AnalyzeVideoUseCase) handlePermanentFailure(
	ctx context.Context,
	job *entity.AnalysisJob,
	msg entity.VideoAnalysisMessage,
	rawMsg []byte,
	errMsg string,
) error {
	job.MarkFailed(errMsg)
	_ = uc.repo.Update(ctx, job)

	_ = uc.dlq.PublishToDLQ(ctx, rawMsg, errMsg)

	uc.publishStatus(ctx, job, uc.logger)

	metrics.JobsProcessedTotal.WithLabelValues("dlq").Inc()

	if msg.UserEmail != "" {
		_ = uc.notifier.NotifyFailure(ctx, msg.UserEmail, job.ID.String(), msg.VideoKey, errMsg)
	}

	return nil
}

func (uc *AnalyzeVideoUseCase) publishProgress(ctx context.Context, job *entity.AnalysisJob, phase string, percent float32, message string) {
	statusMsg := entity.VideoStatusMessage{
		JobID:       job.ID,
		UserID:      job.UserID,
		Status:      job.Status,
		VideoKey:    job.VideoKey,
		Phase:       phase,
		Percent:     percent,
		Message:     message,
		Attempt:     job.Attempt,
		MaxAttempts: job.MaxAttempts,
	}
	data, _ := json.Marshal(statusMsg)
	if err := uc.publisher.PublishStatus(ctx, data); err != nil {
		uc.logger.Warn("failed to publish progress", zap.Error(err), zap.String("phase", phase))
	}
}

func (uc *AnalyzeVideoUseCase) publishStatus(ctx context.Context, job *entity.AnalysisJob, log *zap.Logger) {
	statusMsg := entity.VideoStatusMessage{
		JobID:         job.ID,
		UserID:        job.UserID,
		Status:        job.Status,
		VideoKey:      job.VideoKey,
		ResultKey:     job.ResultKey,
		KeyFrameCount: job.KeyFrameCount,
		SkippedFrames: job.SkippedFrames,
		Duration:      job.VideoDuration,
		QualityLevel:  job.QualityLevel,
		ErrorMessage:  job.ErrorMessage,
		Attempt:       job.Attempt,
		MaxAttempts:   job.MaxAttempts,
	}
	data, _ := json.Marshal(statusMsg)
	if err := uc.publisher.PublishStatus(ctx, data); err != nil {
		log.Error("failed to publish status", zap.Error(err))
	}
}
