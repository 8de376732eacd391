package handle

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/cloudvault/pkg/internal/service"
	"github.com/yeisme/cloudvault/pkg/internal/types"
)

// CreateLink 为文件创建分享链接.
//
//	@Summary	创建分享链接
//	@Tags		分享链接
//	@Accept		json
//	@Produce	json
//	@Param		body	body		types.CreateLinkRequest	true	"链接信息"
//	@Success	201		{object}	types.Link
//	@Failure	400		{object}	map[string]string
//	@Failure	403		{object}	map[string]string
//	@Router		/api/v1/links [post]
func CreateLink(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	var req types.CreateLinkRequest
	if !bind(c, &req) {
		return
	}

	l, err := service.NewLinkService(c.Request.Context()).Create(c.Request.Context(), user, &req)
	if err != nil {
		fail(c, err, "create link failed")
		return
	}

	c.JSON(http.StatusCreated, l)
}

// ListLinks 我创建的分享链接.
//
//	@Summary	我的分享链接
//	@Tags		分享链接
//	@Produce	json
//	@Success	200	{object}	types.ListLinksResponse
//	@Router		/api/v1/links [get]
func ListLinks(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	links, err := service.NewLinkService(c.Request.Context()).List(c.Request.Context(), user)
	if err != nil {
		fail(c, err, "list links failed")
		return
	}

	c.JSON(http.StatusOK, types.ListLinksResponse{Links: links})
}

// DeleteLink 删除分享链接.
//
//	@Summary	删除分享链接
//	@Tags		分享链接
//	@Param		linkId	path	string	true	"链接 ID"
//	@Success	204
//	@Failure	403	{object}	map[string]string
//	@Failure	404	{object}	map[string]string
//	@Router		/api/v1/links/{linkId} [delete]
func DeleteLink(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	if err := service.NewLinkService(c.Request.Context()).Delete(c.Request.Context(), c.Param("linkId"), user); err != nil {
		fail(c, err, "delete link failed")
		return
	}

	c.Status(http.StatusNoContent)
}
