package handle

import (
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/docvault/pkg/internal/fileops"
	"github.com/yeisme/docvault/pkg/log"
	"github.com/yeisme/docvault/pkg/rule"
)

// SubmitOperation 提交批量操作（下载打包/移动/复制/删除/标记已读）.
// 返回排队态任务快照，客户端持 id 轮询.
func (h *Handlers) SubmitOperation(c *gin.Context) {
	l := log.Logger()

	var req fileops.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		l.Warn().Err(err).Msg("invalid operation request")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

		return
	}

	if err := rule.ValidateStruct(&req); err != nil {
		l.Warn().Err(err).Msg("invalid operation payload")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

		return
	}

	p, err := principal(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing user"})
		return
	}

	snap, err := h.Ops.Submit(c.Request.Context(), p, req)
	if err != nil {
		l.Error().Err(err).Str("kind", string(req.Kind)).Msg("submit operation failed")
		respondErr(c, err)

		return
	}

	c.JSON(http.StatusAccepted, snap)
}

// PollOperation 轮询任务快照. finished=true 前 result 不可信，
// 客户端须先检查 error.
func (h *Handlers) PollOperation(c *gin.Context) {
	snap, err := h.Ops.Poll(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondErr(c, err)
		return
	}

	c.JSON(http.StatusOK, snap)
}

// CancelOperation 协作式取消：任务在下一个条目边界观察到信号.
func (h *Handlers) CancelOperation(c *gin.Context) {
	snap, err := h.Ops.Cancel(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondErr(c, err)
		return
	}

	c.JSON(http.StatusOK, snap)
}

// FinishOperation 客户端确认取走结果，释放任务记录.
func (h *Handlers) FinishOperation(c *gin.Context) {
	snap, err := h.Ops.Finish(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondErr(c, err)
		return
	}

	c.JSON(http.StatusOK, snap)
}

// FetchArchive 取回打包下载产物. 压缩包单次取用：流式返回后即删除
// 临时对象并释放任务记录.
func (h *Handlers) FetchArchive(c *gin.Context) {
	l := log.Logger()

	p, err := principal(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing user"})
		return
	}

	jobID := c.Param("id")

	snap, err := h.Ops.Poll(c.Request.Context(), jobID)
	if err != nil {
		respondErr(c, err)
		return
	}

	if snap.Owner != p.ID && !p.Admin {
		c.JSON(http.StatusForbidden, gin.H{"error": "not the operation owner"})
		return
	}

	if !snap.Finished || snap.Result == "" {
		c.JSON(http.StatusConflict, gin.H{"error": "archive not ready"})
		return
	}

	rc, err := h.Blobs.OpenTemp(c.Request.Context(), snap.Result)
	if err != nil {
		respondErr(c, fmt.Errorf("open archive: %w", err))
		return
	}
	defer func() { _ = rc.Close() }()

	c.Header("Content-Type", "application/zip")
	c.Header("Content-Disposition", `attachment; filename="archive.zip"`)
	c.Status(http.StatusOK)

	if _, err := io.Copy(c.Writer, rc); err != nil {
		l.Warn().Err(err).Str("job", jobID).Msg("stream archive interrupted")
		return
	}

	// 单次取用：删除产物并释放任务记录
	if err := h.Blobs.DeleteTemp(c.Request.Context(), snap.Result); err != nil {
		l.Warn().Err(err).Str("path", snap.Result).Msg("delete fetched archive failed")
	}

	if _, err := h.Ops.Finish(c.Request.Context(), jobID); err != nil {
		l.Debug().Err(err).Str("job", jobID).Msg("release operation record failed")
	}
}
