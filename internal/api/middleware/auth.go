package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/vietanh2810/mc-economy/internal/api/handler/v1/response"
	"github.com/vietanh2810/mc-economy/internal/domain"
	"github.com/vietanh2810/mc-economy/internal/pkg/jwthelper"
	"github.com/vietanh2810/mc-economy/internal/service"
)

const (
	actorKey    = "actor"
	consumerKey = "consumer"

	HeaderConsumerName = "X-Consumer-Name"
	HeaderConsumerKey  = "X-Consumer-Key"
)

var (
	errMissingBearer      = errors.New("missing bearer token")
	errMissingCredentials = errors.New("missing consumer credentials")
)

// Authenticator resolves the human identity behind a request from its bearer
// token. It only establishes who is acting; what they may do is decided by
// the services.
type Authenticator struct {
	signingKey []byte
}

func NewAuthenticator(signingKey string) *Authenticator {
	return &Authenticator{signingKey: []byte(signingKey)}
}

func (a *Authenticator) VerifyJWT() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		raw, ok := strings.CutPrefix(ctx.GetHeader("Authorization"), "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			response.RenderErr(ctx, response.ErrUnauthorized(errMissingBearer))
			return
		}

		claims, err := jwthelper.ParseToken(a.signingKey, raw)
		if err != nil {
			response.RenderErr(ctx, response.ErrUnauthorized(err))
			return
		}

		ctx.Set(actorKey, domain.Actor{ID: claims.Subject, Role: claims.Role})
		ctx.Next()
	}
}

// ConsumerCredentials reads the integration consumer headers. Verification
// happens in the integration service so that failures are audited.
func ConsumerCredentials() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		cred := service.Credentials{
			Name: ctx.GetHeader(HeaderConsumerName),
			Key:  ctx.GetHeader(HeaderConsumerKey),
		}
		if cred.Name == "" {
			cred.Name = ctx.Query("consumer")
			cred.Key = ctx.Query("key")
		}
		if cred.Name == "" || cred.Key == "" {
			response.RenderErr(ctx, response.ErrUnauthorized(errMissingCredentials))
			return
		}

		ctx.Set(consumerKey, cred)
		ctx.Next()
	}
}

func ActorFrom(ctx *gin.Context) domain.Actor {
	actor, _ := ctx.MustGet(actorKey).(domain.Actor)
	return actor
}

func CredentialsFrom(ctx *gin.Context) service.Credentials {
	cred, _ := ctx.MustGet(consumerKey).(service.Credentials)
	return cred
}

// WithActor is used by tests to bypass token parsing.
func WithActor(actor domain.Actor) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		ctx.Set(actorKey, actor)
		ctx.Next()
	}
}
