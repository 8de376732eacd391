package handle

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/cloudvault/pkg/internal/service"
	"github.com/yeisme/cloudvault/pkg/internal/types"
	"github.com/yeisme/cloudvault/pkg/middleware"
)

// HeaderLinkPassword 下载受密码保护的链接时携带密码.
const HeaderLinkPassword = middleware.LinkPasswordHeader

// PublicDownload 凭下载令牌下载，不需要登录.
//
//	@Summary	令牌下载
//	@Tags		公开访问
//	@Produce	octet-stream
//	@Param		fileId	path	string	true	"文件 ID"
//	@Param		token	path	string	true	"下载令牌"
//	@Success	200
//	@Success	302
//	@Failure	403	{object}	map[string]string
//	@Router		/api/v1/public/download/{fileId}/{token} [get]
func PublicDownload(c *gin.Context) {
	ctx := c.Request.Context()
	svc := service.NewDownloadService(ctx)

	f, u, err := svc.ResolveToken(ctx, c.Param("fileId"), c.Param("token"))
	if err != nil {
		fail(c, err, "public download failed")
		return
	}

	serveFile(c, f, u, func() (io.ReadCloser, error) { return svc.Open(ctx, f) })
}

// GetPublicLink 链接概要，匿名可见.
//
//	@Summary	链接概要
//	@Tags		公开访问
//	@Produce	json
//	@Param		linkId	path		string	true	"链接 ID"
//	@Success	200		{object}	types.PublicLink
//	@Failure	404		{object}	map[string]string
//	@Router		/api/v1/public/links/{linkId} [get]
func GetPublicLink(c *gin.Context) {
	l, err := service.NewLinkService(c.Request.Context()).Get(c.Request.Context(), c.Param("linkId"))
	if err != nil {
		fail(c, err, "get link failed")
		return
	}

	c.JSON(http.StatusOK, l)
}

// AccessLink 校验密码并返回文件信息.
//
//	@Summary	访问链接
//	@Tags		公开访问
//	@Accept		json
//	@Produce	json
//	@Param		linkId	path		string					true	"链接 ID"
//	@Param		body	body		types.LinkAccessRequest	false	"密码"
//	@Success	200		{object}	types.LinkAccessResponse
//	@Failure	403		{object}	map[string]string
//	@Failure	404		{object}	map[string]string
//	@Router		/api/v1/public/links/{linkId}/access [post]
func AccessLink(c *gin.Context) {
	var req types.LinkAccessRequest
	if c.Request.ContentLength > 0 && !bind(c, &req) {
		return
	}

	res, err := service.NewLinkService(c.Request.Context()).Access(c.Request.Context(), c.Param("linkId"), req.Password)
	if err != nil {
		fail(c, err, "access link failed")
		return
	}

	c.JSON(http.StatusOK, res)
}

// DownloadLink 通过链接下载，密码放在请求头或 password 查询参数.
//
//	@Summary	链接下载
//	@Tags		公开访问
//	@Produce	octet-stream
//	@Param		linkId			path	string	true	"链接 ID"
//	@Param		X-Link-Password	header	string	false	"链接密码"
//	@Success	200
//	@Success	302
//	@Failure	403	{object}	map[string]string
//	@Failure	404	{object}	map[string]string
//	@Router		/api/v1/public/links/{linkId}/download [get]
func DownloadLink(c *gin.Context) {
	ctx := c.Request.Context()

	password := c.GetHeader(HeaderLinkPassword)
	if password == "" {
		password = c.Query("password")
	}

	f, u, err := service.NewLinkService(ctx).Download(ctx, c.Param("linkId"), password)
	if err != nil {
		fail(c, err, "link download failed")
		return
	}

	dl := service.NewDownloadService(ctx)
	serveFile(c, f, u, func() (io.ReadCloser, error) { return dl.Open(ctx, f) })
}
