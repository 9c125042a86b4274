package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/gogotex/gonotes/internal/note/conflict"
	"github.com/gogotex/gonotes/internal/note/service"
	"github.com/gogotex/gonotes/internal/storage"
	"github.com/gogotex/gonotes/pkg/logger"
	"github.com/gogotex/gonotes/pkg/metrics"
	"github.com/gogotex/gonotes/pkg/middleware"
)

type createRequest struct {
	Title    string   `json:"title"`
	Content  string   `json:"content"`
	Markdown string   `json:"markdown"`
	Tags     []string `json:"tags"`
	Editor   string   `json:"editor"`
}

type editRequest struct {
	ExpectedVersion *uint64  `json:"expectedVersion"`
	Title           string   `json:"title"`
	Content         string   `json:"content"`
	Markdown        string   `json:"markdown"`
	Tags            []string `json:"tags"`
	Editor          string   `json:"editor"`
}

func (r editRequest) edit(id, editor string) conflict.Edit {
	ed := conflict.Edit{
		NoteID:   id,
		Title:    r.Title,
		Content:  r.Content,
		Markdown: r.Markdown,
		Tags:     r.Tags,
		Editor:   editor,
	}
	if r.ExpectedVersion != nil {
		ed.ExpectedVersion = *r.ExpectedVersion
	}
	return ed
}

// RegisterNoteRoutes mounts the note API on r. drafts may be nil, in which
// case rejected edits are not archived.
func RegisterNoteRoutes(r gin.IRouter, svc service.Service, drafts storage.DraftArchiver) {
	h := &noteHandler{svc: svc, drafts: drafts}
	r.GET("/api/notes", h.list)
	r.POST("/api/notes", h.create)
	r.GET("/api/notes/:id", h.get)
	r.DELETE("/api/notes/:id", h.delete)
	r.POST("/api/notes/:id/conflicts", h.checkConflicts)
	r.PUT("/api/notes/:id", h.update)
	r.PUT("/api/notes/:id/force", h.forceUpdate)
	r.GET("/api/notes/:id/drafts/:draft", h.getDraft)
}

type noteHandler struct {
	svc    service.Service
	drafts storage.DraftArchiver
}

// editorFor prefers the verified identity over the one claimed in the body.
func editorFor(c *gin.Context, fromBody string) (string, bool) {
	if ed := middleware.Editor(c); ed != "" {
		return ed, true
	}
	if fromBody != "" {
		return fromBody, true
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": "editor is required"})
	return "", false
}

func (h *noteHandler) list(c *gin.Context) {
	list, err := h.svc.List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *noteHandler) create(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	editor, ok := editorFor(c, req.Editor)
	if !ok {
		return
	}
	n, err := h.svc.Create(c.Request.Context(), service.NewNote{
		Title:    req.Title,
		Content:  req.Content,
		Markdown: req.Markdown,
		Tags:     req.Tags,
		Editor:   editor,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, n)
}

func (h *noteHandler) get(c *gin.Context) {
	n, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, n)
}

func (h *noteHandler) delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *noteHandler) checkConflicts(c *gin.Context) {
	var req editRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.ExpectedVersion == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "expectedVersion is required"})
		return
	}
	report, err := h.svc.CheckForConflicts(c.Request.Context(), req.edit(c.Param("id"), req.Editor))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *noteHandler) update(c *gin.Context) {
	var req editRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.ExpectedVersion == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "expectedVersion is required"})
		return
	}
	editor, ok := editorFor(c, req.Editor)
	if !ok {
		return
	}
	ed := req.edit(c.Param("id"), editor)
	n, err := h.svc.UpdateWithConflictCheck(c.Request.Context(), ed)
	if err != nil {
		if vc, ok := conflict.AsVersionConflict(err); ok {
			h.writeConflict(c, ed, vc)
			return
		}
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, n)
}

func (h *noteHandler) forceUpdate(c *gin.Context) {
	var req editRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	editor, ok := editorFor(c, req.Editor)
	if !ok {
		return
	}
	n, err := h.svc.ForceUpdate(c.Request.Context(), req.edit(c.Param("id"), editor))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, n)
}

// getDraft returns an archived rejected edit and a short-lived download URL.
func (h *noteHandler) getDraft(c *gin.Context) {
	reader, ok := h.drafts.(storage.DraftReader)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "draft archive not configured"})
		return
	}
	key := "drafts/" + c.Param("id") + "/" + c.Param("draft")
	d, err := reader.LoadDraft(c.Request.Context(), key)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	url, err := reader.DraftURL(c.Request.Context(), key, 15*time.Minute)
	if err != nil {
		logger.With("key", key).Warnf("failed to presign draft: %v", err)
	}
	c.JSON(http.StatusOK, gin.H{"key": key, "draft": d, "url": url})
}

// writeConflict answers a rejected checked update with the field-level report
// and, when an archive is configured, the key of the stored draft.
func (h *noteHandler) writeConflict(c *gin.Context, ed conflict.Edit, vc *conflict.VersionConflictError) {
	ctx := c.Request.Context()
	report := vc.Report
	if report == nil {
		// lost the compare-and-swap; describe the conflict against the winner
		if r, err := h.svc.CheckForConflicts(ctx, ed); err == nil {
			report = &r
		}
	}
	body := gin.H{
		"error":           "version conflict",
		"expectedVersion": vc.Expected,
		"actualVersion":   vc.Actual,
		"report":          report,
	}
	if key := h.archive(ctx, ed, vc); key != "" {
		body["draftKey"] = key
	}
	c.JSON(http.StatusConflict, body)
}

func (h *noteHandler) archive(ctx context.Context, ed conflict.Edit, vc *conflict.VersionConflictError) string {
	if h.drafts == nil {
		return ""
	}
	key, err := h.drafts.SaveDraft(ctx, storage.Draft{
		NoteID:          ed.NoteID,
		Editor:          ed.Editor,
		ExpectedVersion: vc.Expected,
		ActualVersion:   vc.Actual,
		Title:           ed.Title,
		Content:         ed.Content,
		Markdown:        ed.Markdown,
		Tags:            ed.Tags,
		RejectedAt:      time.Now().UTC(),
	})
	if err != nil {
		metrics.DraftsArchived.WithLabelValues("error").Inc()
		logger.With("note", ed.NoteID, "editor", ed.Editor).Warnf("failed to archive rejected draft: %v", err)
		return ""
	}
	metrics.DraftsArchived.WithLabelValues("ok").Inc()
	return key
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, conflict.ErrNotFound), errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, conflict.ErrVersionConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, conflict.ErrCancelled), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusRequestTimeout, gin.H{"error": "request cancelled"})
	case conflict.IsRetryable(err):
		c.Header("Retry-After", "1")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "storage unavailable, retry later"})
	default:
		logger.Errorf("note request failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
