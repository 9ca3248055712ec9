package comment

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mx-space/moderation/internal/middleware"
	"github.com/mx-space/moderation/internal/pkg/pagination"
	"github.com/mx-space/moderation/internal/pkg/response"
)

const selectedCommentMaxAge = 3600

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Middlewares wraps the public routes. Submit guards POST submissions; Cache
// wraps the page comment listing.
type Middlewares struct {
	Submit []gin.HandlerFunc
	Cache  gin.HandlerFunc
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, adminMW gin.HandlerFunc, optionalAdminMW gin.HandlerFunc, mw Middlewares) {
	p := rg.Group("/pages/:pageId/comments", optionalAdminMW)
	list := []gin.HandlerFunc{h.listForPage}
	if mw.Cache != nil {
		list = append([]gin.HandlerFunc{mw.Cache}, list...)
	}
	p.GET("", list...)
	p.GET("/count", h.count)
	p.POST("", append(append([]gin.HandlerFunc{}, mw.Submit...), h.create)...)

	a := rg.Group("/comments", adminMW)
	a.GET("/pending", h.pending)
	a.GET("/:id", h.get)
	a.PATCH("/:id/approve", h.approve)
	a.PATCH("/:id/unapprove", h.unapprove)
}

// CacheKey is the response cache key for a page comment listing. Keys share
// the page prefix the service invalidates on every comment write.
func CacheKey(c *gin.Context) string {
	pageID := c.Param("pageId")
	if pageID == "" {
		return ""
	}
	return PageCacheKey(pageID) + ":" + c.Request.URL.RequestURI()
}

func (h *Handler) handleError(c *gin.Context, err error) {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		response.Invalid(c, verr.Error(), verr.Fields)
	case errors.Is(err, errPageNotFound):
		response.NotFoundMsg(c, "page not found")
	case errors.Is(err, errCommentNotFound):
		response.NotFoundMsg(c, "comment not found")
	case errors.Is(err, errCommentsDisabled):
		response.ForbiddenMsg(c, "comments are closed on this page")
	default:
		response.InternalError(c, err)
	}
}

func (h *Handler) create(c *gin.Context) {
	var dto CreateCommentDTO
	if err := c.ShouldBind(&dto); err != nil {
		response.UnprocessableEntity(c, err.Error())
		return
	}

	prov := Provenance{
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
		Referrer:  c.Request.Referer(),
	}
	cm, err := h.svc.Submit(c.Request.Context(), c.Param("pageId"), &dto, prov)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SelectedCommentCookie, cm.ID, selectedCommentMaxAge, "/", "", false, true)
	response.Created(c, toResponse(cm, middleware.IsAuthenticated(c)))
}

func (h *Handler) listForPage(c *gin.Context) {
	pageID := c.Param("pageId")
	if _, err := h.svc.Page(c.Request.Context(), pageID); err != nil {
		h.handleError(c, err)
		return
	}

	selected, _ := c.Cookie(SelectedCommentCookie)
	visible, err := h.svc.VisibleTo(c.Request.Context(), pageID, selected)
	if err != nil {
		h.handleError(c, err)
		return
	}

	isAdmin := middleware.IsAuthenticated(c)
	out := gin.H{
		"data":  toResponses(visible.Approved, isAdmin),
		"count": len(visible.Approved),
	}
	if visible.Selected != nil {
		out["selected"] = toResponse(visible.Selected, isAdmin)
	}
	response.OK(c, out)
}

func (h *Handler) count(c *gin.Context) {
	pageID := c.Param("pageId")
	if _, err := h.svc.Page(c.Request.Context(), pageID); err != nil {
		h.handleError(c, err)
		return
	}
	n, err := h.svc.CountApproved(c.Request.Context(), pageID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.OK(c, gin.H{"count": n})
}

func (h *Handler) pending(c *gin.Context) {
	list, pag, err := h.svc.Pending(c.Request.Context(), pagination.FromContext(c))
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.Paged(c, toResponses(list, true), pag)
}

func (h *Handler) get(c *gin.Context) {
	cm, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.OK(c, toResponse(cm, true))
}

func (h *Handler) approve(c *gin.Context) {
	cm, err := h.svc.Approve(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.OK(c, toResponse(cm, true))
}

func (h *Handler) unapprove(c *gin.Context) {
	cm, err := h.svc.Unapprove(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.OK(c, toResponse(cm, true))
}
