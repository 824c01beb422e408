package application

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/dfryer1193/retrolaminate/editor/domain"
	"github.com/dfryer1193/retrolaminate/editor/history"
)

const (
	// DefaultLocatorPrefix is where stored assets are served from.
	DefaultLocatorPrefix = "/editor/v1/blobs/"
	// DefaultMaxUploadBytes bounds a single selected image.
	DefaultMaxUploadBytes = 20 << 20

	downloadBasename = "retrolaminated-id"
	outputMediaType  = "image/png"
)

var (
	// ErrClosed is returned by operations started after Close.
	ErrClosed = errors.New("editor service is closed")
	// ErrUploadTooLarge is returned by SelectAsset for images over the upload limit.
	ErrUploadTooLarge = errors.New("upload exceeds the size limit")
)

// Phase is the step of the in-flight transformation.
type Phase int32

const (
	PhaseIdle Phase = iota
	PhaseEncoding
	PhaseAwaitingResponse
	PhaseSucceeded
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseEncoding:
		return "encoding"
	case PhaseAwaitingResponse:
		return "awaiting_response"
	case PhaseSucceeded:
		return "succeeded"
	case PhaseFailed:
		return "failed"
	}
	return "unknown"
}

// Outcome labels reported to the metrics recorder.
const (
	OutcomeSuccess         = "success"
	OutcomeEncodingFailure = "encoding_failure"
	OutcomeServiceFailure  = "service_failure"
)

// MetricsRecorder receives the editor's operational signals.
type MetricsRecorder interface {
	ObserveTransformation(outcome string, duration time.Duration)
	ObserveNavigation(direction string, accepted bool)
	SetBusy(busy bool)
	SetHistoryLength(n int)
}

type noopRecorder struct{}

func (noopRecorder) ObserveTransformation(string, time.Duration) {}
func (noopRecorder) ObserveNavigation(string, bool)              {}
func (noopRecorder) SetBusy(bool)                                {}
func (noopRecorder) SetHistoryLength(int)                        {}

// State is a consistent read of the editor.
type State struct {
	Current domain.Snapshot
	Cursor  int
	Length  int
	CanUndo bool
	CanRedo bool
	Busy    bool
	Phase   Phase
}

// Option configures an EditorService.
type Option func(*EditorService)

func WithClock(clock clockwork.Clock) Option {
	return func(s *EditorService) { s.clock = clock }
}

func WithInstruction(instruction string) Option {
	return func(s *EditorService) {
		if strings.TrimSpace(instruction) != "" {
			s.instruction = instruction
		}
	}
}

func WithLocatorPrefix(prefix string) Option {
	return func(s *EditorService) { s.locatorPrefix = prefix }
}

// WithHistoryCapacity bounds the timeline, evicting the oldest snapshots.
// Zero keeps it unbounded.
func WithHistoryCapacity(n int) Option {
	return func(s *EditorService) { s.historyCapacity = n }
}

func WithMaxUploadBytes(n int64) Option {
	return func(s *EditorService) {
		if n > 0 {
			s.maxUploadBytes = n
		}
	}
}

func WithMetrics(m MetricsRecorder) Option {
	return func(s *EditorService) {
		if m != nil {
			s.metrics = m
		}
	}
}

func WithEncoder(e Encoder) Option {
	return func(s *EditorService) { s.encoder = e }
}

// WithKeepAssets keeps the session's stored images when the service closes.
func WithKeepAssets(keep bool) Option {
	return func(s *EditorService) { s.keepAssets = keep }
}

func WithIDGenerator(gen func() string) Option {
	return func(s *EditorService) { s.newID = gen }
}

// EditorService owns one editing session: the snapshot history, the busy
// flag and the single transformation that may be in flight.
//
// Go serves requests concurrently, so mu serializes every history access.
// mu is never held while the transformation service is being called; busy
// is what keeps navigation and re-submission out during that window.
type EditorService struct {
	assets      domain.AssetRepository
	transformer domain.Transformer
	encoder     Encoder
	metrics     MetricsRecorder
	clock       clockwork.Clock
	newID       func() string

	instruction     string
	locatorPrefix   string
	maxUploadBytes  int64
	historyCapacity int
	keepAssets      bool

	mu      sync.Mutex
	history *history.History[domain.Snapshot]
	closed  bool

	busy  atomic.Bool
	phase atomic.Int32

	ownedMu sync.Mutex
	owned   map[string]struct{}

	// Service lifecycle context - cancelled when Close() is called
	ctx    context.Context
	cancel context.CancelFunc
	wg     *sync.WaitGroup
}

func NewEditorService(assets domain.AssetRepository, transformer domain.Transformer, opts ...Option) *EditorService {
	ctx, cancel := context.WithCancel(context.Background())
	s := &EditorService{
		assets:         assets,
		transformer:    transformer,
		metrics:        noopRecorder{},
		clock:          clockwork.NewRealClock(),
		newID:          uuid.NewString,
		instruction:    DefaultInstruction,
		locatorPrefix:  DefaultLocatorPrefix,
		maxUploadBytes: DefaultMaxUploadBytes,
		owned:          map[string]struct{}{},
		ctx:            ctx,
		cancel:         cancel,
		wg:             &sync.WaitGroup{},
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.encoder == nil {
		s.encoder = NewAssetEncoder(assets)
	}

	var historyOpts []history.Option
	if s.historyCapacity > 0 {
		historyOpts = append(historyOpts, history.WithCapacity(s.historyCapacity))
	}
	s.history = history.New(domain.EmptySnapshot(), historyOpts...)
	s.metrics.SetHistoryLength(s.history.Len())

	return s
}

// Close waits for an in-flight transformation, then releases the images
// stored during the session unless they are kept.
func (s *EditorService) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()

	if s.keepAssets {
		return nil
	}

	s.ownedMu.Lock()
	defer s.ownedMu.Unlock()

	var errs []error
	for id := range s.owned {
		if err := s.assets.DeleteAsset(context.Background(), id); err != nil {
			errs = append(errs, fmt.Errorf("failed to delete asset %s: %w", id, err))
			continue
		}
		delete(s.owned, id)
	}

	return errors.Join(errs...)
}

func (s *EditorService) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.closed
}

// Current returns the snapshot under the history cursor.
func (s *EditorService) Current() domain.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.history.Current()
}

func (s *EditorService) Busy() bool {
	return s.busy.Load()
}

func (s *EditorService) Phase() Phase {
	return Phase(s.phase.Load())
}

// State returns the current snapshot with the navigation flags.
// Undo and redo are reported unavailable while a transformation is in flight.
func (s *EditorService) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	busy := s.busy.Load()
	return State{
		Current: s.history.Current(),
		Cursor:  s.history.Cursor(),
		Length:  s.history.Len(),
		CanUndo: s.history.CanUndo() && !busy,
		CanRedo: s.history.CanRedo() && !busy,
		Busy:    busy,
		Phase:   s.Phase(),
	}
}

// Timeline returns a copy of every snapshot in the history.
func (s *EditorService) Timeline() []domain.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.history.Entries()
}

// SelectAsset stores a newly selected image and pushes it as the current
// snapshot. Selection is allowed while a transformation is in flight.
func (s *EditorService) SelectAsset(ctx context.Context, upload domain.Upload) (domain.Snapshot, error) {
	if s.isClosed() {
		return domain.Snapshot{}, ErrClosed
	}

	if upload.Content == nil {
		return domain.Snapshot{}, fmt.Errorf("upload has no content")
	}

	if upload.MediaType != "" && !domain.IsImageMediaType(upload.MediaType) {
		return domain.Snapshot{}, fmt.Errorf("%w: %s", domain.ErrUnsupportedMedia, upload.MediaType)
	}

	content, err := io.ReadAll(io.LimitReader(upload.Content, s.maxUploadBytes+1))
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("failed to read upload: %w", err)
	}

	if int64(len(content)) > s.maxUploadBytes {
		return domain.Snapshot{}, fmt.Errorf("%w: more than %d bytes", ErrUploadTooLarge, s.maxUploadBytes)
	}

	mediaType, err := sniffImageType(content)
	if err != nil {
		return domain.Snapshot{}, err
	}

	ref, err := s.storeAsset(ctx, content, mediaType, upload.Filename)
	if err != nil {
		return domain.Snapshot{}, err
	}

	snap := domain.NewSourceSnapshot(ref, s.locate(ref.ID), s.clock.Now())

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return domain.Snapshot{}, ErrClosed
	}
	s.history.Push(snap)
	n := s.history.Len()
	s.mu.Unlock()

	s.metrics.SetHistoryLength(n)
	log.Info().Str("asset", ref.ID).Str("mediaType", mediaType).Int64("size", ref.Size).Msg("Image selected")

	return snap, nil
}

// Process starts the transformation of the current snapshot's image.
//
// It returns domain.ErrBusy when a transformation is already in flight and
// domain.ErrNoAsset when the current snapshot has nothing to process; in
// both cases nothing is called and the history is untouched.
//
// The call runs on the service lifecycle, not on any caller's context: once
// started it completes or fails on its own. The returned channel yields the
// pushed snapshot and is then closed. Failures never surface as errors,
// they are pushed as snapshots carrying domain.FailureMessage.
func (s *EditorService) Process() (<-chan domain.Snapshot, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	if s.busy.Load() {
		s.mu.Unlock()
		return nil, domain.ErrBusy
	}
	base := s.history.Current()
	if !base.CanProcess() {
		s.mu.Unlock()
		return nil, domain.ErrNoAsset
	}
	s.busy.Store(true)
	s.metrics.SetBusy(true)

	done := make(chan domain.Snapshot, 1)
	s.wg.Go(func() {
		defer close(done)
		done <- s.run(base)
	})
	s.mu.Unlock()

	return done, nil
}

// run transforms base, pushes the outcome and clears busy, in that order.
func (s *EditorService) run(base domain.Snapshot) domain.Snapshot {
	defer func() {
		s.phase.Store(int32(PhaseIdle))
		s.busy.Store(false)
		s.metrics.SetBusy(false)
	}()

	next := s.transform(base)

	s.mu.Lock()
	s.history.Push(next)
	n := s.history.Len()
	s.mu.Unlock()

	s.metrics.SetHistoryLength(n)
	return next
}

// transform runs encode and the remote call and builds the snapshot to push.
func (s *EditorService) transform(base domain.Snapshot) (next domain.Snapshot) {
	start := s.clock.Now()
	logger := log.With().Str("asset", base.Source.ID).Logger()

	defer func() {
		if p := recover(); p != nil {
			next = s.fail(base, fmt.Errorf("%w: panic: %v", domain.ErrService, p), start)
		}
	}()

	s.phase.Store(int32(PhaseEncoding))
	payload, err := s.encoder.Encode(s.ctx, base.Source)
	if err != nil {
		if !errors.Is(err, domain.ErrEncoding) {
			err = fmt.Errorf("%w: %w", domain.ErrEncoding, err)
		}
		return s.fail(base, err, start)
	}

	s.phase.Store(int32(PhaseAwaitingResponse))
	logger.Debug().Str("mediaType", payload.MediaType).Int("bytes", len(payload.Data)).Msg("Calling transformation service")

	result, err := s.transformer.Transform(s.ctx, domain.TransformRequest{
		Payload:     payload,
		Instruction: s.instruction,
	})
	if err != nil {
		return s.fail(base, asServiceError(err), start)
	}

	if result == nil || len(result.Content) == 0 {
		return s.fail(base, fmt.Errorf("%w: no image in response", domain.ErrService), start)
	}

	mediaType := result.MediaType
	if mediaType == "" {
		mediaType = outputMediaType
	}

	output, err := s.storeAsset(s.ctx, result.Content, mediaType, DownloadFilename(mediaType))
	if err != nil {
		return s.fail(base, fmt.Errorf("%w: storing output: %w", domain.ErrService, err), start)
	}

	s.phase.Store(int32(PhaseSucceeded))
	elapsed := s.clock.Since(start)
	s.metrics.ObserveTransformation(OutcomeSuccess, elapsed)
	logger.Info().Str("output", output.ID).Dur("elapsed", elapsed).Msg("Transformation succeeded")

	return base.WithResult(output, s.locate(output.ID), s.clock.Now())
}

// fail logs the underlying error and returns base carrying the generic failure message.
func (s *EditorService) fail(base domain.Snapshot, err error, start time.Time) domain.Snapshot {
	s.phase.Store(int32(PhaseFailed))

	outcome := OutcomeServiceFailure
	if errors.Is(err, domain.ErrEncoding) {
		outcome = OutcomeEncodingFailure
	}

	elapsed := s.clock.Since(start)
	s.metrics.ObserveTransformation(outcome, elapsed)
	log.Error().Err(err).Str("asset", base.Source.ID).Str("outcome", outcome).Dur("elapsed", elapsed).Msg("Transformation failed")

	return base.WithFailure(domain.FailureMessage, s.clock.Now())
}

func asServiceError(err error) error {
	if errors.Is(err, domain.ErrService) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrService, err)
}

// Undo steps back one snapshot. It returns domain.ErrNavigationRejected at
// the start of the history or while a transformation is in flight.
func (s *EditorService) Undo() (domain.Snapshot, error) {
	return s.navigate("undo", func(h *history.History[domain.Snapshot]) (domain.Snapshot, bool) {
		return h.Undo()
	})
}

// Redo steps forward one snapshot. It returns domain.ErrNavigationRejected
// at the end of the history or while a transformation is in flight.
func (s *EditorService) Redo() (domain.Snapshot, error) {
	return s.navigate("redo", func(h *history.History[domain.Snapshot]) (domain.Snapshot, bool) {
		return h.Redo()
	})
}

func (s *EditorService) navigate(direction string, move func(*history.History[domain.Snapshot]) (domain.Snapshot, bool)) (domain.Snapshot, error) {
	s.mu.Lock()
	var (
		snap domain.Snapshot
		ok   bool
	)
	if s.busy.Load() {
		snap = s.history.Current()
	} else {
		snap, ok = move(s.history)
	}
	s.mu.Unlock()

	s.metrics.ObserveNavigation(direction, ok)
	if !ok {
		return snap, domain.ErrNavigationRejected
	}

	return snap, nil
}

// Reset pushes the empty snapshot. Earlier snapshots stay reachable by undo.
func (s *EditorService) Reset() domain.Snapshot {
	s.mu.Lock()
	s.history.Reset()
	snap := s.history.Current()
	n := s.history.Len()
	s.mu.Unlock()

	s.metrics.SetHistoryLength(n)
	return snap
}

// HandleKey applies the intent mapped from a key event. Unmapped keys
// return the current snapshot unchanged.
func (s *EditorService) HandleKey(ev KeyEvent) (domain.Snapshot, Intent, error) {
	intent := IntentForKey(ev)
	switch intent {
	case IntentUndo:
		snap, err := s.Undo()
		return snap, intent, err
	case IntentRedo:
		snap, err := s.Redo()
		return snap, intent, err
	}

	return s.Current(), IntentNone, nil
}

// Download returns the current result image. It returns domain.ErrNoResult
// when the current snapshot has none.
func (s *EditorService) Download(ctx context.Context) (*domain.Asset, error) {
	current := s.Current()
	if !current.HasResult() {
		return nil, domain.ErrNoResult
	}

	asset, err := s.assets.GetAsset(ctx, current.Output.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load result %s: %w", current.Output.ID, err)
	}

	asset.Filename = DownloadFilename(asset.MediaType)
	return asset, nil
}

// Blob resolves a locator ID to its image. Only images stored by this
// session are served.
func (s *EditorService) Blob(ctx context.Context, id string) (*domain.Asset, error) {
	s.ownedMu.Lock()
	_, ok := s.owned[id]
	s.ownedMu.Unlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrAssetNotFound, id)
	}

	return s.assets.GetAsset(ctx, id)
}

func (s *EditorService) storeAsset(ctx context.Context, content []byte, mediaType, filename string) (domain.AssetRef, error) {
	asset := &domain.Asset{
		AssetRef: domain.AssetRef{
			ID:        s.newID(),
			MediaType: mediaType,
			Size:      int64(len(content)),
			Filename:  filename,
		},
		Content:   bytes.Clone(content),
		CreatedAt: s.clock.Now(),
	}

	if err := s.assets.SaveAsset(ctx, asset); err != nil {
		return domain.AssetRef{}, fmt.Errorf("failed to store asset: %w", err)
	}

	s.ownedMu.Lock()
	s.owned[asset.ID] = struct{}{}
	s.ownedMu.Unlock()

	return asset.AssetRef, nil
}

func (s *EditorService) locate(id string) domain.Locator {
	return domain.Locator(s.locatorPrefix + id)
}

// DownloadFilename names a result file after its media type.
func DownloadFilename(mediaType string) string {
	ext := ".png"
	if exts, err := mime.ExtensionsByType(mediaType); err == nil && len(exts) > 0 {
		ext = preferredExtension(mediaType, exts)
	}
	return downloadBasename + ext
}

func preferredExtension(mediaType string, exts []string) string {
	switch mediaType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	}
	return exts[0]
}
