package rest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/dfryer1193/retrolaminate/api"
	"github.com/dfryer1193/retrolaminate/editor/application"
	"github.com/dfryer1193/retrolaminate/editor/domain"
)

const uploadField = "image"

// Editor is the editing session the handlers drive.
type Editor interface {
	State() application.State
	SelectAsset(ctx context.Context, upload domain.Upload) (domain.Snapshot, error)
	Process() (<-chan domain.Snapshot, error)
	Undo() (domain.Snapshot, error)
	Redo() (domain.Snapshot, error)
	Reset() domain.Snapshot
	HandleKey(ev application.KeyEvent) (domain.Snapshot, application.Intent, error)
	Download(ctx context.Context) (*domain.Asset, error)
	Blob(ctx context.Context, id string) (*domain.Asset, error)
}

type EditorHandler struct {
	editor         Editor
	maxUploadBytes int64
}

type HandlerOption func(*EditorHandler)

// WithMaxUploadBytes caps the multipart request body.
func WithMaxUploadBytes(n int64) HandlerOption {
	return func(h *EditorHandler) {
		if n > 0 {
			h.maxUploadBytes = n
		}
	}
}

func NewEditorHandler(editor Editor, opts ...HandlerOption) *EditorHandler {
	h := &EditorHandler{
		editor:         editor,
		maxUploadBytes: application.DefaultMaxUploadBytes,
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

func (h *EditorHandler) GetState(c *gin.Context) {
	c.JSON(http.StatusOK, toAPIState(h.editor.State()))
}

func (h *EditorHandler) PostAsset(c *gin.Context) {
	// Room for the multipart envelope around the file.
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes+1<<20)

	header, err := c.FormFile(uploadField)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			abortWithError(c, http.StatusRequestEntityTooLarge, application.ErrUploadTooLarge)
			return
		}
		abortWithError(c, http.StatusBadRequest, fmt.Errorf("missing %q file: %w", uploadField, err))
		return
	}

	file, err := header.Open()
	if err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Errorf("failed to open upload: %w", err))
		return
	}
	defer file.Close()

	_, err = h.editor.SelectAsset(c.Request.Context(), domain.Upload{
		Filename:  header.Filename,
		MediaType: header.Header.Get("Content-Type"),
		Content:   file,
	})
	if err != nil {
		abortWithError(c, statusFor(err), err)
		return
	}

	c.JSON(http.StatusCreated, toAPIState(h.editor.State()))
}

// PostProcess starts a transformation. Unless wait=false it holds the
// request until the outcome is pushed; a client that goes away early only
// stops waiting.
func (h *EditorHandler) PostProcess(c *gin.Context) {
	wait := true
	if v := c.Query("wait"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			abortWithError(c, http.StatusBadRequest, fmt.Errorf("invalid wait parameter: %w", err))
			return
		}
		wait = parsed
	}

	done, err := h.editor.Process()
	if err != nil {
		abortWithError(c, statusFor(err), err)
		return
	}

	if !wait {
		c.JSON(http.StatusAccepted, toAPIState(h.editor.State()))
		return
	}

	select {
	case <-done:
		c.JSON(http.StatusOK, toAPIState(h.editor.State()))
	case <-c.Request.Context().Done():
		log.Debug().Msg("Client stopped waiting for the transformation")
		c.JSON(http.StatusAccepted, toAPIState(h.editor.State()))
	}
}

func (h *EditorHandler) PostUndo(c *gin.Context) {
	h.navigate(c, h.editor.Undo)
}

func (h *EditorHandler) PostRedo(c *gin.Context) {
	h.navigate(c, h.editor.Redo)
}

func (h *EditorHandler) navigate(c *gin.Context, move func() (domain.Snapshot, error)) {
	if _, err := move(); err != nil {
		abortWithError(c, statusFor(err), err)
		return
	}

	c.JSON(http.StatusOK, toAPIState(h.editor.State()))
}

func (h *EditorHandler) PostReset(c *gin.Context) {
	h.editor.Reset()
	c.JSON(http.StatusOK, toAPIState(h.editor.State()))
}

// PostKey applies a keyboard shortcut. Rejected or unmapped keys still
// answer with the unchanged state.
func (h *EditorHandler) PostKey(c *gin.Context) {
	ev := &api.KeyEvent{}
	if err := c.ShouldBindJSON(ev); err != nil {
		abortWithError(c, http.StatusBadRequest, err)
		return
	}

	_, intent, err := h.editor.HandleKey(application.KeyEvent{
		Key:   ev.Key,
		Ctrl:  ev.Ctrl,
		Meta:  ev.Meta,
		Shift: ev.Shift,
	})
	if err != nil && !errors.Is(err, domain.ErrNavigationRejected) {
		abortWithError(c, statusFor(err), err)
		return
	}

	state := toAPIState(h.editor.State())
	state.Intent = string(intent)
	c.JSON(http.StatusOK, state)
}

func (h *EditorHandler) GetDownload(c *gin.Context) {
	asset, err := h.editor.Download(c.Request.Context())
	if err != nil {
		abortWithError(c, statusFor(err), err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", asset.Filename))
	c.Data(http.StatusOK, asset.MediaType, asset.Content)
}

func (h *EditorHandler) GetBlob(c *gin.Context) {
	asset, err := h.editor.Blob(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, statusFor(err), err)
		return
	}

	c.Header("Cache-Control", "private, max-age=3600, immutable")
	c.Data(http.StatusOK, asset.MediaType, asset.Content)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrBusy), errors.Is(err, domain.ErrNavigationRejected):
		return http.StatusConflict
	case errors.Is(err, domain.ErrNoAsset):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrNoResult), errors.Is(err, domain.ErrAssetNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrUnsupportedMedia):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, application.ErrUploadTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, application.ErrClosed):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// abortWithError hides the detail of server errors from the client.
func abortWithError(c *gin.Context, status int, err error) {
	_ = c.Error(err)

	msg := err.Error()
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("Request failed")
		msg = http.StatusText(status)
	}

	c.AbortWithStatusJSON(status, api.Error{Error: msg})
}

func toAPIState(s application.State) api.State {
	return api.State{
		Snapshot: toAPISnapshot(s.Current),
		Cursor:   s.Cursor,
		Length:   s.Length,
		CanUndo:  s.CanUndo,
		CanRedo:  s.CanRedo,
		Busy:     s.Busy,
		Phase:    s.Phase.String(),
	}
}

func toAPISnapshot(s domain.Snapshot) api.Snapshot {
	out := api.Snapshot{
		SourceID:  s.Source.ID,
		MediaType: s.Source.MediaType,
		Filename:  s.Source.Filename,
		Preview:   string(s.Preview),
		Result:    string(s.Result),
		Failure:   s.Failure,
		View:      string(s.View()),
	}
	if !s.CreatedAt.IsZero() {
		out.CreatedAt = s.CreatedAt.UTC().Format(time.RFC3339)
	}
	return out
}
