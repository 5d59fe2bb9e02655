package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/h2non/bimg"
	"github.com/xfrr/goffmpeg/transcoder"

	"replaydrive/internal/domain"
	"replaydrive/internal/service/events"
	"replaydrive/internal/storage"
)

const (
	thumbnailMaxSize = 640
	jpegQuality      = 80
	probeTimeout     = 30 * time.Second
	ffmpegTimeout    = 30 * time.Second
)

// ProcessingService ведет записи по конвейеру импорта:
// pending → processing → completed. Извлекает технические метаданные,
// при необходимости нормализует кодек и строит миниатюру
type ProcessingService struct {
	catalog RecordCatalog
	files   *storage.LocalStore
	syncs   *SyncRegistry
	events  events.Publisher

	mu     sync.Mutex
	active map[uuid.UUID]context.CancelFunc
}

func NewProcessingService(catalog RecordCatalog, files *storage.LocalStore, syncs *SyncRegistry, pub events.Publisher) (*ProcessingService, error) {
	// Проверяем наличие ffmpeg и ffprobe
	for _, tool := range []string{"ffmpeg", "ffprobe"} {
		if _, err := exec.LookPath(tool); err != nil {
			return nil, fmt.Errorf("%s not found: %w", tool, err)
		}
	}

	return &ProcessingService{
		catalog: catalog,
		files:   files,
		syncs:   syncs,
		events:  pub,
		active:  make(map[uuid.UUID]context.CancelFunc),
	}, nil
}

// Import создает запись из входящего видеопотока и запускает обработку.
// Запись возвращается сразу в состоянии pending
func (s *ProcessingService) Import(ctx context.Context, owner, name string, r io.Reader) (*domain.VideoRecord, error) {
	if owner == "" {
		return nil, fmt.Errorf("owner is required")
	}
	if name == "" {
		return nil, fmt.Errorf("name is required")
	}

	rec := domain.NewVideoRecord(owner, name)

	path, size, err := s.files.Store(rec.ID, r)
	if err != nil {
		return nil, fmt.Errorf("failed to store imported video: %w", err)
	}

	rec.SetLocal(domain.PresentLocalCopy(path))
	rec.SizeBytes = size

	if err := s.catalog.Create(ctx, rec); err != nil {
		if derr := s.files.Delete(rec.ID); derr != nil {
			log.Printf("[Processing] Failed to clean up file for %s: %v", rec.ID, derr)
		}
		return nil, fmt.Errorf("failed to register record: %w", err)
	}

	if s.syncs != nil {
		s.syncs.ForOwner(owner).QueueOperation(PendingOp{Type: OpCreate, RecordID: rec.ID})
	}
	if s.events != nil {
		s.events.Publish(events.Event{Type: events.EventRecordCreated, RecordID: rec.ID})
	}

	log.Printf("[Processing] Imported %s (%d bytes) for %s", rec.ID, size, owner)

	go s.process(rec)
	return rec, nil
}

// Cancel кооперативно останавливает идущую обработку
func (s *ProcessingService) Cancel(id uuid.UUID) error {
	s.mu.Lock()
	cancel, ok := s.active[id]
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("record %s: no processing in progress", id)
	}
	cancel()
	return nil
}

func (s *ProcessingService) process(rec *domain.VideoRecord) {
	ctx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.active[rec.ID] = cancel
	s.mu.Unlock()
	defer func() {
		cancel()
		s.mu.Lock()
		delete(s.active, rec.ID)
		s.mu.Unlock()
	}()

	s.setStatus(rec, domain.ProcessingStatusProcessing)

	err := s.runPipeline(ctx, rec)
	switch {
	case err == nil:
		s.setStatus(rec, domain.ProcessingStatusCompleted)
		log.Printf("[Processing] Record %s processed: %dx%d %s %.1fs",
			rec.ID, rec.Metadata.Width, rec.Metadata.Height, rec.Metadata.Codec, rec.DurationSeconds)
	case ctx.Err() != nil:
		s.setStatus(rec, domain.ProcessingStatusCancelled)
		log.Printf("[Processing] Processing of %s cancelled", rec.ID)
	default:
		s.setStatus(rec, domain.ProcessingStatusFailed)
		log.Printf("[Processing] Processing of %s failed: %v", rec.ID, err)
	}
}

func (s *ProcessingService) runPipeline(ctx context.Context, rec *domain.VideoRecord) error {
	path := s.files.Path(rec.ID)

	probe, err := probeVideo(ctx, path)
	if err != nil {
		return fmt.Errorf("probe failed: %w", err)
	}

	rec.DurationSeconds = probe.Duration
	rec.Metadata.Width = probe.Width
	rec.Metadata.Height = probe.Height
	rec.Metadata.FrameRate = probe.FrameRate
	rec.Metadata.Codec = probe.Codec

	// Нестандартные кодеки приводим к h264, чтобы клипы воспроизводились везде
	if probe.Codec != "h264" && probe.Codec != "hevc" {
		if err := s.normalize(ctx, rec, path); err != nil {
			return fmt.Errorf("normalization failed: %w", err)
		}
		rec.Metadata.Codec = "h264"
	}

	thumb, err := s.generateThumbnail(ctx, path, rec.DurationSeconds)
	if err != nil {
		// Миниатюра восстановима, её отсутствие не проваливает импорт
		log.Printf("[Processing] Failed to generate thumbnail for %s: %v", rec.ID, err)
	} else {
		thumbPath, err := s.files.SaveThumbnail(rec.ID, thumb)
		if err != nil {
			log.Printf("[Processing] Failed to save thumbnail for %s: %v", rec.ID, err)
		} else {
			rec.ThumbnailPath = &thumbPath
		}
	}

	return ctx.Err()
}

// normalize перекодирует файл в h264/aac и атомарно подменяет локальную копию
func (s *ProcessingService) normalize(ctx context.Context, rec *domain.VideoRecord, path string) error {
	out, err := os.CreateTemp(os.TempDir(), "normalized-*.mp4")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	out.Close()
	defer os.Remove(out.Name())

	trans := new(transcoder.Transcoder)
	if err := trans.Initialize(path, out.Name()); err != nil {
		return fmt.Errorf("failed to initialize transcoder: %w", err)
	}

	trans.MediaFile().SetVideoCodec("libx264")
	trans.MediaFile().SetAudioCodec("aac")

	done := trans.Run(true)
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("transcoding failed: %w", err)
		}
	case <-ctx.Done():
		return ctx.Err()
	}

	f, err := os.Open(out.Name())
	if err != nil {
		return fmt.Errorf("failed to open normalized file: %w", err)
	}
	defer f.Close()

	newPath, size, err := s.files.Store(rec.ID, f)
	if err != nil {
		return fmt.Errorf("failed to replace local file: %w", err)
	}

	rec.SetLocal(domain.PresentLocalCopy(newPath))
	rec.SizeBytes = size
	return nil
}

// generateThumbnail достает кадр на 10% длительности и сжимает его в JPEG
func (s *ProcessingService) generateThumbnail(ctx context.Context, path string, duration float64) ([]byte, error) {
	frameTime := "00:00:01"
	if duration > 10 {
		frameTime = strconv.FormatFloat(duration*0.1, 'f', 2, 64)
	}

	out, err := os.CreateTemp(os.TempDir(), "frame-*.jpg")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	out.Close()
	defer os.Remove(out.Name())

	fctx, cancel := context.WithTimeout(ctx, ffmpegTimeout)
	defer cancel()

	cmd := exec.CommandContext(fctx, "ffmpeg",
		"-ss", frameTime,
		"-i", path,
		"-vf", fmt.Sprintf("scale=%d:-1:force_original_aspect_ratio=decrease", thumbnailMaxSize),
		"-frames:v", "1",
		"-q:v", "2",
		"-f", "image2",
		"-y",
		out.Name(),
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("failed to extract frame: %w (stderr: %s)", err, stderr.String())
	}

	frame, err := os.ReadFile(out.Name())
	if err != nil {
		return nil, fmt.Errorf("failed to read frame image: %w", err)
	}

	image := bimg.NewImage(frame)
	size, err := image.Size()
	if err != nil {
		return nil, fmt.Errorf("failed to get image size: %w", err)
	}

	width, height := fitDimensions(size.Width, size.Height, thumbnailMaxSize)
	processed, err := image.Process(bimg.Options{
		Width:   width,
		Height:  height,
		Quality: jpegQuality,
		Type:    bimg.JPEG,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to process image: %w", err)
	}

	return processed, nil
}

// fitDimensions вписывает размеры в квадрат с сохранением пропорций
func fitDimensions(width, height, maxSize int) (int, int) {
	if width <= maxSize && height <= maxSize {
		return width, height
	}
	if width > height {
		return maxSize, (height * maxSize) / width
	}
	return (width * maxSize) / height, maxSize
}

func (s *ProcessingService) setStatus(rec *domain.VideoRecord, status domain.ProcessingStatus) {
	rec.ProcessingStatus = status
	if err := s.catalog.Update(context.Background(), rec); err != nil {
		log.Printf("[Processing] Failed to update status of %s: %v", rec.ID, err)
	}
	if s.events != nil {
		s.events.Publish(events.Event{
			Type:     events.EventRecordUpdated,
			RecordID: rec.ID,
			Payload:  map[string]interface{}{"processing_status": string(status)},
		})
	}
}

type probeResult struct {
	Duration  float64
	Width     int
	Height    int
	FrameRate float64
	Codec     string
}

// probeVideo извлекает технические характеристики через ffprobe
func probeVideo(ctx context.Context, path string) (*probeResult, error) {
	pctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	cmd := exec.CommandContext(pctx, "ffprobe",
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)

	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}

	var parsed struct {
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
		Streams []struct {
			CodecType    string `json:"codec_type"`
			CodecName    string `json:"codec_name"`
			Width        int    `json:"width"`
			Height       int    `json:"height"`
			AvgFrameRate string `json:"avg_frame_rate"`
		} `json:"streams"`
	}
	if err := json.Unmarshal(output, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	res := &probeResult{}
	res.Duration, _ = strconv.ParseFloat(parsed.Format.Duration, 64)

	for _, stream := range parsed.Streams {
		if stream.CodecType != "video" {
			continue
		}
		res.Width = stream.Width
		res.Height = stream.Height
		res.Codec = stream.CodecName
		res.FrameRate = parseFrameRate(stream.AvgFrameRate)
		break
	}

	if res.Codec == "" {
		return nil, fmt.Errorf("no video stream found in %s", path)
	}

	return res, nil
}

// parseFrameRate разбирает дробь вида "30000/1001"
func parseFrameRate(s string) float64 {
	parts := strings.SplitN(s, "/", 2)
	if len(parts) != 2 {
		f, _ := strconv.ParseFloat(s, 64)
		return f
	}

	num, err1 := strconv.ParseFloat(parts[0], 64)
	den, err2 := strconv.ParseFloat(parts[1], 64)
	if err1 != nil || err2 != nil || den == 0 {
		return 0
	}
	return num / den
}
