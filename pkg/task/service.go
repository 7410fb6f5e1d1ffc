package task

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wisbric/pixelgate/pkg/imaging"
	"github.com/wisbric/pixelgate/pkg/objectstore"
	"github.com/wisbric/pixelgate/pkg/upstream"
)

const (
	defaultAspectRatio = "1:1"
	defaultImageSize   = "4K"
)

// Service runs the asynchronous generation pipeline: task intake, reference
// -image normalization, the upstream model call, and result upload.
type Service struct {
	store     *Store
	fetcher   *imaging.Fetcher
	model     *upstream.Client
	objects   *objectstore.Client
	keyPrefix string
	publicURL string
	maxImages int
	logger    *slog.Logger
	now       func() time.Time
}

// NewService creates a generation Service.
func NewService(store *Store, fetcher *imaging.Fetcher, model *upstream.Client, objects *objectstore.Client, keyPrefix, publicURL string, maxImages int, logger *slog.Logger) *Service {
	if keyPrefix == "" {
		keyPrefix = "gemini/"
	}
	if maxImages <= 0 {
		maxImages = 1
	}
	return &Service{
		store:     store,
		fetcher:   fetcher,
		model:     model,
		objects:   objects,
		keyPrefix: keyPrefix,
		publicURL: publicURL,
		maxImages: maxImages,
		logger:    logger,
		now:       time.Now,
	}
}

// Submit persists a new pending task synchronously, then detaches the
// background executor before returning, per spec.md §4.2 stages 3-4: the
// task must already exist in the KV store (so a client polling immediately
// after the 202 response never sees a 404) before "the remainder" of the
// pipeline is handed off to a goroutine the request handler does not await.
func (s *Service) Submit(ctx context.Context, req CreateRequest) (Task, error) {
	aspectRatio := req.AspectRatio
	if aspectRatio == "" {
		aspectRatio = defaultAspectRatio
	}
	imageSize := req.ImageSize
	if imageSize == "" {
		imageSize = defaultImageSize
	}
	imageSize = strings.ToUpper(imageSize)

	now := s.now().UTC().Format(time.RFC3339)
	t := Task{
		TaskID:    uuid.NewString(),
		Status:    StatusPending,
		Progress:  ProgressAccepted,
		Prompt:    req.Prompt,
		Options:   Options{AspectRatio: aspectRatio, ImageSize: imageSize},
		RefImages: req.Images,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.store.Create(ctx, t); err != nil {
		return Task{}, fmt.Errorf("creating task record: %w", err)
	}

	// The executor's own context is detached from the request's: it must
	// outlive the response that is about to be written.
	go s.run(t)

	return t, nil
}

// Get retrieves a task by id.
func (s *Service) Get(ctx context.Context, id string) (Task, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) touch(t *Task) {
	t.UpdatedAt = s.now().UTC().Format(time.RFC3339)
}

func (s *Service) fail(ctx context.Context, t Task, progress int, reason string) {
	t.Status = StatusFailed
	t.Progress = progress
	t.Error = &reason
	s.touch(&t)
	if err := s.store.Update(ctx, t); err != nil {
		s.logger.Error("persisting failed task", "error", err, "task_id", t.TaskID)
	}
}

// run is the background executor. t has already been persisted by Submit;
// run only advances it through processing.
func (s *Service) run(t Task) {
	ctx := context.Background()

	t.Status = StatusProcessing
	s.touch(&t)
	if err := s.store.Update(ctx, t); err != nil {
		s.logger.Error("updating task record", "error", err, "task_id", t.TaskID)
		return
	}

	refs, err := s.normalizeReferenceImages(ctx, t.RefImages)
	if err != nil {
		s.fail(ctx, t, ProgressAccepted, fmt.Sprintf("REF_IMAGE_INVALID: %s", err))
		return
	}

	req := upstream.BuildRequest(t.Prompt, t.Options.AspectRatio, t.Options.ImageSize, refs)
	t.Progress = ProgressBuilt
	s.touch(&t)
	if err := s.store.Update(ctx, t); err != nil {
		s.logger.Error("updating task record", "error", err, "task_id", t.TaskID)
		return
	}

	resp, err := s.model.Generate(ctx, req)
	if err != nil {
		s.fail(ctx, t, ProgressBuilt, err.Error())
		return
	}
	t.Progress = ProgressCalled
	s.touch(&t)
	if err := s.store.Update(ctx, t); err != nil {
		s.logger.Error("updating task record", "error", err, "task_id", t.TaskID)
		return
	}

	images := resp.CollectImages()
	if len(images) == 0 {
		s.fail(ctx, t, ProgressCalled, "NO_IMAGE_IN_RESPONSE")
		return
	}
	if len(images) > s.maxImages {
		images = images[:s.maxImages]
	}

	urls := s.uploadResults(ctx, t.TaskID, images)
	if len(urls) == 0 {
		s.fail(ctx, t, ProgressCalled, "UPLOAD_FAILED")
		return
	}

	result := &Result{URL: urls[0]}
	if len(urls) > 1 {
		result.URLs = urls
	}

	t.Status = StatusCompleted
	t.Progress = ProgressCompleted
	t.Result = result
	s.touch(&t)
	if err := s.store.Update(ctx, t); err != nil {
		s.logger.Error("persisting completed task", "error", err, "task_id", t.TaskID)
	}
}

// normalizeReferenceImages normalizes at most the first two entries, per
// spec.md §4.2 stage 1. Entries beyond the second are silently dropped.
func (s *Service) normalizeReferenceImages(ctx context.Context, raw []json.RawMessage) ([]imaging.Image, error) {
	if len(raw) > 2 {
		raw = raw[:2]
	}

	images := make([]imaging.Image, 0, len(raw))
	for _, entry := range raw {
		img, err := s.fetcher.Normalize(ctx, entry)
		if err != nil {
			return nil, err
		}
		images = append(images, img)
	}
	return images, nil
}

func (s *Service) uploadResults(ctx context.Context, taskID string, images []imaging.Image) []string {
	var urls []string
	for _, img := range images {
		key := imaging.BuildKey(s.keyPrefix, img.MimeType, s.now())
		if err := s.objects.Upload(ctx, key, img.MimeType, img.Bytes, img.SHA1Hex()); err != nil {
			s.logger.Error("uploading generated image", "error", err, "task_id", taskID, "key", key)
			continue
		}
		urls = append(urls, s.publicURL+"/i/"+key)
	}
	return urls
}
