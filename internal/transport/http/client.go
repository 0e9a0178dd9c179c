package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/cwrk-planet/pairchat/internal/domain"
	"github.com/cwrk-planet/pairchat/pkg/errs"

	"github.com/google/uuid"
)

const (
	HeaderRequestID = "X-Request-ID"
	SessionCookie   = "sid"
)

// Routes: пути REST API. {uid} и {cid} подставляются клиентом.
type Routes struct {
	DisplayName  string `yaml:"displayName"`
	OnlineUsers  string `yaml:"onlineUsers"`
	ChannelUsers string `yaml:"channelUsers"`
	Backlog      string `yaml:"backlog"`
	LeaveChannel string `yaml:"leaveChannel"`
	CreateUser   string `yaml:"createUser"`
	CurrentUser  string `yaml:"currentUser"`
}

// DefaultRoutes: развёртывание с bearer-токеном.
func DefaultRoutes() Routes {
	return Routes{
		DisplayName:  "/api/user/{uid}/name",
		OnlineUsers:  "/api/chat/chanusers/online",
		ChannelUsers: "/api/chat/chanusers",
		Backlog:      "/api/chat/channel/messages",
		LeaveChannel: "/api/chat/channel?delby={uid}",
		CreateUser:   "/api/user",
		CurrentUser:  "/api/user/me",
	}
}

// ChannelRoutes: старое развёртывание с сырым id канала.
func ChannelRoutes() Routes {
	return Routes{
		DisplayName:  "/api/user/{uid}/name",
		OnlineUsers:  "/api/users/online",
		ChannelUsers: "/api/users",
		Backlog:      "/api/channel/{cid}/messages",
		LeaveChannel: "/api/channel/{cid}?delby={uid}",
		CreateUser:   "/api/user",
		CurrentUser:  "/api/user/me",
	}
}

// merge заполняет пустые пути значениями из def.
func (r Routes) merge(def Routes) Routes {
	fill := func(v *string, d string) {
		if *v == "" {
			*v = d
		}
	}
	fill(&r.DisplayName, def.DisplayName)
	fill(&r.OnlineUsers, def.OnlineUsers)
	fill(&r.ChannelUsers, def.ChannelUsers)
	fill(&r.Backlog, def.Backlog)
	fill(&r.LeaveChannel, def.LeaveChannel)
	fill(&r.CreateUser, def.CreateUser)
	fill(&r.CurrentUser, def.CurrentUser)
	return r
}

type Options struct {
	BaseURL    string
	Scheme     domain.Scheme
	Routes     Routes
	Timeout    time.Duration
	Session    string // сохранённое значение cookie sid
	HTTPClient *http.Client
}

// Client реализует внешние вызовы ядра поверх REST API сервера.
type Client struct {
	base    *url.URL
	routes  Routes
	http    *http.Client
	timeout time.Duration
}

func New(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("%w: api client: empty base url", errs.ErrInvalidInput)
	}
	base, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: api client: %v", errs.ErrInvalidInput, err)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	def := DefaultRoutes()
	if opts.Scheme == domain.SchemeChannel {
		def = ChannelRoutes()
	}
	hc := opts.HTTPClient
	if hc == nil {
		// cookie сессии пользователя ставит сервер на createUser
		jar, _ := cookiejar.New(nil)
		hc = &http.Client{Jar: jar}
	}
	if opts.Session != "" && hc.Jar != nil {
		hc.Jar.SetCookies(base, []*http.Cookie{{Name: SessionCookie, Value: opts.Session, Path: "/"}})
	}

	return &Client{
		base:    base,
		routes:  opts.Routes.merge(def),
		http:    hc,
		timeout: opts.Timeout,
	}, nil
}

// Session: текущее значение cookie сессии, чтобы сохранить его между запусками.
func (c *Client) Session() string {
	if c.http.Jar == nil {
		return ""
	}
	for _, ck := range c.http.Jar.Cookies(c.base) {
		if ck.Name == SessionCookie {
			return ck.Value
		}
	}
	return ""
}

func (c *Client) FetchDisplayName(ctx context.Context, id domain.UserID) (string, error) {
	var out nameResponse
	if err := c.do(ctx, http.MethodGet, c.path(c.routes.DisplayName, id, nil), nil, nil, &out); err != nil {
		return "", err
	}
	return out.Name, nil
}

func (c *Client) FetchOnlineIDs(ctx context.Context, cred domain.Credential) ([]domain.UserID, error) {
	var out userIDsResponse
	if err := c.do(ctx, http.MethodGet, c.path(c.routes.OnlineUsers, "", &cred), &cred, nil, &out); err != nil {
		return nil, err
	}
	return toUserIDs(out.UserIDs), nil
}

func (c *Client) FetchChannelUserIDs(ctx context.Context, cred domain.Credential) ([]domain.UserID, error) {
	var out userIDsResponse
	if err := c.do(ctx, http.MethodGet, c.path(c.routes.ChannelUsers, "", &cred), &cred, nil, &out); err != nil {
		return nil, err
	}
	return toUserIDs(out.UserIDs), nil
}

func (c *Client) FetchBacklog(ctx context.Context, cred domain.Credential) ([]domain.Frame, error) {
	var out messagesResponse
	if err := c.do(ctx, http.MethodGet, c.path(c.routes.Backlog, "", &cred), &cred, nil, &out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}

// LeaveChannel: идемпотентное удаление канала от имени uid.
func (c *Client) LeaveChannel(ctx context.Context, cred domain.Credential, uid domain.UserID) error {
	return c.do(ctx, http.MethodDelete, c.path(c.routes.LeaveChannel, uid, &cred), &cred, nil, nil)
}

func (c *Client) CreateUser(ctx context.Context, name string) (domain.User, error) {
	var out userResponse
	if err := c.do(ctx, http.MethodPost, c.routes.CreateUser, nil, createUserRequest{Name: name}, &out); err != nil {
		return domain.User{}, err
	}
	if out.ID == "" {
		return domain.User{}, fmt.Errorf("%w: create user: empty id", errs.ErrTransientFetch)
	}
	if out.Name == "" {
		out.Name = name
	}
	return domain.User{ID: domain.UserID(out.ID), Name: out.Name}, nil
}

// FetchCurrentUser возвращает errs.ErrNotAuthenticated, если сессии на сервере нет.
func (c *Client) FetchCurrentUser(ctx context.Context) (domain.User, error) {
	var out userResponse
	if err := c.do(ctx, http.MethodGet, c.routes.CurrentUser, nil, nil, &out); err != nil {
		return domain.User{}, err
	}
	return domain.User{ID: domain.UserID(out.ID), Name: out.Name}, nil
}

func (c *Client) path(tmpl string, uid domain.UserID, cred *domain.Credential) string {
	var cid string
	if cred != nil {
		cid = cred.Token
	}
	return strings.NewReplacer(
		"{uid}", url.PathEscape(string(uid)),
		"{cid}", url.PathEscape(cid),
	).Replace(tmpl)
}

func (c *Client) do(ctx context.Context, method, path string, cred *domain.Credential, in, out any) error {
	ref, err := url.Parse(path)
	if err != nil {
		return fmt.Errorf("%w: bad path %q: %v", errs.ErrInvalidInput, path, err)
	}
	target := c.base.ResolveReference(ref)

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%w: encode request: %v", errs.ErrInvalidInput, err)
		}
		body = bytes.NewReader(b)
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, method, target.String(), body)
	if err != nil {
		return fmt.Errorf("%w: %v", errs.ErrInvalidInput, err)
	}
	reqID := uuid.NewString()
	req.Header.Set(HeaderRequestID, reqID)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cred != nil {
		cred.Scheme.Strategy().Authorize(req, cred.Token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		slog.Debug("api request failed", "req_id", reqID, "method", method, "path", req.URL.Path, "err", err)
		return fmt.Errorf("%w: %s %s: %v", errs.ErrTransientFetch, method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	slog.Debug("api request",
		"req_id", reqID,
		"method", method,
		"path", req.URL.Path,
		"status", resp.StatusCode,
		"duration", time.Since(start).String(),
	)

	if err := errs.FromHTTP(resp.StatusCode); err != nil {
		var e errorResponse
		_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&e)
		if e.Message != "" {
			return fmt.Errorf("%w: %s %s: %d %s", err, method, req.URL.Path, resp.StatusCode, e.Message)
		}
		return fmt.Errorf("%w: %s %s: %d", err, method, req.URL.Path, resp.StatusCode)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s: %v", errs.ErrTransientFetch, req.URL.Path, err)
	}
	return nil
}
