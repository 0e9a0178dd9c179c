package devserver

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cwrk-planet/pairchat/internal/domain"
	"github.com/cwrk-planet/pairchat/pkg/errs"

	"github.com/go-chi/chi/v5"
	middlewareChi "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
)

const (
	DefaultTokenTTL  = 24 * time.Hour
	DefaultPingEvery = 15 * time.Second

	sessionCookie = "sid"
	tokenIssuer   = "pairchat-dev"
)

type Options struct {
	Scheme    domain.Scheme
	Secret    []byte
	TokenTTL  time.Duration
	PingEvery time.Duration
	ChatPath  string
	MatchPath string
	Now       func() time.Time
}

// Server это локальный сервер чата для разработки, в нём REST API, сокет канала и
// сокет подбора пары, всё состояние в памяти.
type Server struct {
	opts     Options
	state    *State
	hub      *Hub
	signer   *TokenSigner
	queue    *matchQueue
	upgrader websocket.Upgrader
}

func New(opts Options) (*Server, error) {
	if opts.Scheme == "" {
		opts.Scheme = domain.SchemeBearer
	}
	if !opts.Scheme.Valid() {
		return nil, errs.ErrInvalidInput
	}
	if opts.Scheme == domain.SchemeBearer && len(opts.Secret) == 0 {
		return nil, errs.ErrInvalidInput
	}
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = DefaultTokenTTL
	}
	if opts.PingEvery <= 0 {
		opts.PingEvery = DefaultPingEvery
	}
	if opts.ChatPath == "" {
		opts.ChatPath = "/api/chat"
	}
	if opts.MatchPath == "" {
		opts.MatchPath = "/api/match"
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Server{
		opts:   opts,
		state:  NewState(),
		hub:    NewHub(),
		signer: NewTokenSigner(opts.Secret, tokenIssuer, opts.TokenTTL),
		queue:  &matchQueue{},
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}, nil
}

func (s *Server) State() *State { return s.state }

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(MiddlewareRequestID)
	r.Use(middlewareChi.RealIP)
	r.Use(middlewareChi.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://*", "https://*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", HeaderRequestID},
		ExposedHeaders:   []string{HeaderRequestID},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// сокеты
	r.Get(s.opts.ChatPath, s.HandleChat)
	r.Get(s.opts.MatchPath, s.HandleMatch)

	r.Group(func(pr chi.Router) {
		pr.Use(MiddlewareLogging)
		pr.Use(middlewareChi.Timeout(30 * time.Second))

		pr.Post("/api/user", s.CreateUser)
		pr.Get("/api/user/me", s.CurrentUser)
		pr.Get("/api/user/{uid}/name", s.DisplayName)

		pr.Group(func(cr chi.Router) {
			cr.Use(s.channelMiddleware)
			if s.opts.Scheme == domain.SchemeBearer {
				cr.Get("/api/chat/chanusers/online", s.OnlineUsers)
				cr.Get("/api/chat/chanusers", s.ChannelUsers)
				cr.Get("/api/chat/channel/messages", s.Backlog)
				cr.Delete("/api/chat/channel", s.LeaveChannel)
				return
			}
			cr.Get("/api/users/online", s.OnlineUsers)
			cr.Get("/api/users", s.ChannelUsers)
			cr.Get("/api/channel/{cid}/messages", s.Backlog)
			cr.Delete("/api/channel/{cid}", s.LeaveChannel)
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return r
}

// channelFromRequest достаёт канал по схеме развёртывания: bearer-токен
// из заголовка или query access_token, либо сырой cid из пути или query.
func (s *Server) channelFromRequest(r *http.Request) (uint64, int, error) {
	if s.opts.Scheme == domain.SchemeBearer {
		token := strings.TrimSpace(r.URL.Query().Get("access_token"))
		if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
			token = strings.TrimSpace(auth[7:])
		}
		if token == "" {
			return 0, http.StatusUnauthorized, errors.New("missing bearer token")
		}
		claims, err := s.signer.Parse(token)
		if err != nil {
			return 0, http.StatusUnauthorized, err
		}
		return claims.ChannelID, 0, nil
	}

	raw := chi.URLParam(r, "cid")
	if raw == "" {
		raw = r.URL.Query().Get("cid")
	}
	cid, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil || cid == 0 {
		return 0, http.StatusBadRequest, errors.New("invalid cid")
	}
	return cid, 0, nil
}

func (s *Server) channelMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cid, status, err := s.channelFromRequest(r)
		if err != nil {
			writeError(w, status, err.Error())
			return
		}
		ctx := context.WithValue(r.Context(), ctxKeyChannel, cid)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func channelFromCtx(ctx context.Context) uint64 {
	id, _ := ctx.Value(ctxKeyChannel).(uint64)
	return id
}

// stamp: время текстового кадра в формате схемы.
func (s *Server) stamp() domain.Stamp {
	now := s.opts.Now()
	if s.opts.Scheme == domain.SchemeBearer {
		return domain.StampMillis(now.UnixMilli())
	}
	return domain.StampAt(now)
}

// credential: то, что получает клиент после подбора пары.
func (s *Server) credential(cid uint64, uid domain.UserID) (matchReply, error) {
	if s.opts.Scheme == domain.SchemeChannel {
		return matchReply{ChannelID: strconv.FormatUint(cid, 10)}, nil
	}
	token, err := s.signer.Sign(cid, uid, s.opts.Now())
	if err != nil {
		return matchReply{}, err
	}
	return matchReply{AccessToken: token}, nil
}
