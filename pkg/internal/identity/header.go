package identity

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/yeisme/cloudvault/pkg/internal/errs"
)

// 代理注入的请求头.
const (
	HeaderUser  = "X-Auth-Request-User"
	HeaderEmail = "X-Auth-Request-Email"
	HeaderName  = "X-Auth-Request-Preferred-Username"
	// HeaderForwardedEmail 部分代理使用的兼容头
	HeaderForwardedEmail = "X-Forwarded-Email"
)

// headerNamespace 由邮箱派生稳定的用户 ID.
var headerNamespace = uuid.MustParse("6f1c0f5e-7a53-4d3c-9a36-4c8f3b1e2d10")

// HeaderVerifier 信任 oauth2-proxy 等反向代理注入的身份，只能部署在代理之后.
type HeaderVerifier struct{}

func (HeaderVerifier) Verify(_ context.Context, cred Credential) (*Identity, error) {
	email := strings.ToLower(strings.TrimSpace(cred.Email))
	if email == "" {
		return nil, errMissing
	}

	id := strings.TrimSpace(cred.User)
	// 代理提供的 user 不一定是 uuid，统一派生
	if _, err := uuid.Parse(id); err != nil {
		id = uuid.NewSHA1(headerNamespace, []byte(email)).String()
	}

	name := strings.TrimSpace(cred.Name)
	if name == "" {
		name = strings.TrimSpace(cred.User)
	}

	if name == "" {
		name, _, _ = strings.Cut(email, "@")
	}

	if !strings.Contains(email, "@") {
		return nil, errs.Unauthorized("invalid identity headers")
	}

	return &Identity{UserID: id, Email: email, Name: name}, nil
}
