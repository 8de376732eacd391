package handle

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/cloudvault/pkg/configs"
	"github.com/yeisme/cloudvault/pkg/internal/model"
	"github.com/yeisme/cloudvault/pkg/internal/service"
	"github.com/yeisme/cloudvault/pkg/internal/types"
)

// Signup 本地注册并签发会话.
//
//	@Summary	本地注册
//	@Tags		认证
//	@Accept		json
//	@Produce	json
//	@Param		body	body		types.SignupRequest	true	"注册信息"
//	@Success	201		{object}	types.AuthResponse
//	@Failure	400		{object}	map[string]string
//	@Failure	409		{object}	map[string]string
//	@Router		/api/v1/auth/signup [post]
func Signup(c *gin.Context) {
	var req types.SignupRequest
	if !bind(c, &req) {
		return
	}

	svc := service.NewUserService(c.Request.Context())

	u, err := svc.Signup(c.Request.Context(), &req)
	if err != nil {
		fail(c, err, "signup failed")
		return
	}

	issueSession(c, svc, u, http.StatusCreated)
}

// Signin 邮箱密码登录.
//
//	@Summary	本地登录
//	@Tags		认证
//	@Accept		json
//	@Produce	json
//	@Param		body	body		types.SigninRequest	true	"登录信息"
//	@Success	200		{object}	types.AuthResponse
//	@Failure	400		{object}	map[string]string
//	@Failure	401		{object}	map[string]string
//	@Router		/api/v1/auth/signin [post]
func Signin(c *gin.Context) {
	var req types.SigninRequest
	if !bind(c, &req) {
		return
	}

	svc := service.NewUserService(c.Request.Context())

	u, err := svc.Signin(c.Request.Context(), &req)
	if err != nil {
		fail(c, err, "signin failed")
		return
	}

	issueSession(c, svc, u, http.StatusOK)
}

// UpdateProfile 修改资料与密码，成功后重新签发会话.
//
//	@Summary	修改资料
//	@Tags		认证
//	@Accept		json
//	@Produce	json
//	@Param		body	body		types.UpdateProfileRequest	true	"新资料与旧密码"
//	@Success	200		{object}	types.AuthResponse
//	@Failure	400		{object}	map[string]string
//	@Failure	401		{object}	map[string]string
//	@Failure	403		{object}	map[string]string
//	@Failure	409		{object}	map[string]string
//	@Router		/api/v1/auth/update [patch]
func UpdateProfile(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	var req types.UpdateProfileRequest
	if !bind(c, &req) {
		return
	}

	svc := service.NewUserService(c.Request.Context())

	u, err := svc.UpdateProfile(c.Request.Context(), user, &req)
	if err != nil {
		fail(c, err, "update profile failed")
		return
	}

	issueSession(c, svc, u, http.StatusOK)
}

// Signout 清除会话 cookie.
//
//	@Summary	退出登录
//	@Tags		认证
//	@Success	204
//	@Router		/api/v1/auth/signout [post]
func Signout(c *gin.Context) {
	setSessionCookie(c, "", -1)
	c.Status(http.StatusNoContent)
}

func issueSession(c *gin.Context, svc *service.UserService, u *model.User, status int) {
	token, exp, err := svc.IssueToken(u)
	if err != nil {
		fail(c, err, "issue token failed")
		return
	}

	setSessionCookie(c, token, int(time.Until(exp).Seconds()))

	c.JSON(status, types.AuthResponse{
		User:      types.UserSummary{ID: u.ID, Email: u.Email, Name: u.Name},
		Token:     token,
		ExpiresAt: exp,
	})
}

func setSessionCookie(c *gin.Context, value string, maxAge int) {
	cfg := configs.GetConfig()

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(cfg.Auth.GetCookieName(), value, maxAge, "/", "", c.Request.TLS != nil, true)
}
