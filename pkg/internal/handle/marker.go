package handle

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/docvault/pkg/internal/model"
	"github.com/yeisme/docvault/pkg/log"
	"github.com/yeisme/docvault/pkg/rule"
)

// markerRequest 标记变更请求体.
type markerRequest struct {
	EntryID   string          `json:"entry_id"   rule:"required"`
	EntryType model.EntryType `json:"entry_type" rule:"required,oneof=file folder"`
	// Viewers 显式目标用户；为空时按可读性解析
	Viewers []string `json:"viewers,omitempty"`
	// AllUsers 清除时对条目上全部用户生效
	AllUsers bool `json:"all_users,omitempty"`
}

// entryOf 解析请求指向的条目.
func (h *Handlers) entryOf(c *gin.Context, req *markerRequest) (model.Entry, error) {
	if req.EntryType == model.EntryFolder {
		return h.Tree.Folder(c.Request.Context(), req.EntryID)
	}

	return h.Tree.File(c.Request.Context(), req.EntryID)
}

func (h *Handlers) bindMarker(c *gin.Context) (*markerRequest, model.Entry, bool) {
	l := log.Logger()

	var req markerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		l.Warn().Err(err).Msg("invalid marker request")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

		return nil, nil, false
	}

	if err := rule.ValidateStruct(&req); err != nil {
		l.Warn().Err(err).Msg("invalid marker payload")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

		return nil, nil, false
	}

	entry, err := h.entryOf(c, &req)
	if err != nil {
		respondErr(c, err)
		return nil, nil, false
	}

	return &req, entry, true
}

// MarkNew 为可见用户打"新"标记. 异步：入队即返回 202.
func (h *Handlers) MarkNew(c *gin.Context) {
	req, entry, ok := h.bindMarker(c)
	if !ok {
		return
	}

	p, err := principal(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing user"})
		return
	}

	if err := h.Marks.MarkNew(c.Request.Context(), entry, p.ID, req.Viewers...); err != nil {
		respondErr(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"entry_id": req.EntryID, "queued": true})
}

// RemoveNew 清除"新"标记. 同步：应用完成后返回，调用方随后读到的
// 计数已更新.
func (h *Handlers) RemoveNew(c *gin.Context) {
	req, entry, ok := h.bindMarker(c)
	if !ok {
		return
	}

	p, err := principal(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing user"})
		return
	}

	if req.AllUsers {
		err = h.Marks.RemoveNewForAll(c.Request.Context(), entry)
	} else {
		err = h.Marks.RemoveNew(c.Request.Context(), entry, p.ID)
	}

	if err != nil {
		respondErr(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"entry_id": req.EntryID, "cleared": true})
}

// NewCounts 四个根桶（我的/公共/共享/项目）的未读计数.
func (h *Handlers) NewCounts(c *gin.Context) {
	p, err := principal(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing user"})
		return
	}

	counts, err := h.Marks.GetNewCounts(c.Request.Context(), p.ID)
	if err != nil {
		respondErr(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"counts": counts})
}

// ListNew 列出文件夹子树内对当前用户仍为"新"的条目.
func (h *Handlers) ListNew(c *gin.Context) {
	p, err := principal(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing user"})
		return
	}

	entries, err := h.Marks.ListNewEntries(c.Request.Context(), c.Param("id"), p.ID)
	if err != nil {
		respondErr(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"entries": entries})
}
