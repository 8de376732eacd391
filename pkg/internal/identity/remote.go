package identity

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"github.com/yeisme/cloudvault/pkg/internal/errs"
)

// RemoteVerifier 调用外部认证服务 GET {baseURL}/verify-token，会话 cookie 原样转发.
type RemoteVerifier struct {
	baseURL    string
	cookieName string
	client     *http.Client
}

type verifyResponse struct {
	Valid bool     `json:"valid"`
	User  Identity `json:"user"`
}

func NewRemoteVerifier(baseURL, cookieName string, timeout time.Duration) *RemoteVerifier {
	return &RemoteVerifier{
		baseURL:    strings.TrimRight(baseURL, "/"),
		cookieName: cookieName,
		client:     &http.Client{Timeout: timeout},
	}
}

func (r *RemoteVerifier) Verify(ctx context.Context, cred Credential) (*Identity, error) {
	if cred.Token == "" {
		return nil, errMissing
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/verify-token", http.NoBody)
	if err != nil {
		return nil, errs.Internal(err)
	}

	req.AddCookie(&http.Cookie{Name: r.cookieName, Value: cred.Token})
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		if isUnreachable(err) {
			return nil, errs.Unavailable("authentication service unavailable", err)
		}

		return nil, errs.Wrap(errs.KindUnauthorized, "token verification failed", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized:
		return nil, errs.Unauthorized("invalid token")
	case http.StatusForbidden:
		return nil, errs.Unauthorized("token expired")
	case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout:
		return nil, errs.Unavailable("authentication service unavailable", fmt.Errorf("verify-token: %s", resp.Status))
	default:
		return nil, errs.Wrap(errs.KindUnauthorized, "token verification failed", fmt.Errorf("verify-token: %s", resp.Status))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return nil, errs.Unavailable("authentication service unavailable", err)
	}

	var out verifyResponse
	if err := sonic.Unmarshal(body, &out); err != nil {
		return nil, errs.Wrap(errs.KindUnauthorized, "token verification failed", err)
	}

	if !out.Valid {
		return nil, errs.Unauthorized("invalid token")
	}

	if out.User.UserID == "" || out.User.Email == "" || out.User.Name == "" {
		return nil, errs.Unauthorized("incomplete identity")
	}

	return &out.User, nil
}

// isUnreachable 连接被拒绝或超时.
func isUnreachable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}

	var oe *net.OpError

	return errors.As(err, &oe)
}
