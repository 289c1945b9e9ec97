package api

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerfiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"

	"github.com/vietanh2810/mc-economy/docs"
	v1 "github.com/vietanh2810/mc-economy/internal/api/handler/v1"
	"github.com/vietanh2810/mc-economy/internal/api/middleware"
	"github.com/vietanh2810/mc-economy/internal/config"
	"github.com/vietanh2810/mc-economy/internal/governance"
	"github.com/vietanh2810/mc-economy/internal/identity"
	"github.com/vietanh2810/mc-economy/internal/lifecycle"
	"github.com/vietanh2810/mc-economy/internal/metrics"
	"github.com/vietanh2810/mc-economy/internal/pkg/idgen"
	"github.com/vietanh2810/mc-economy/internal/pkg/random"
	"github.com/vietanh2810/mc-economy/internal/repository"
	"github.com/vietanh2810/mc-economy/internal/service"
)

const defaultStreamPollInterval = 2 * time.Second

type Server struct {
	Config *config.AppConfig
	Router *gin.Engine
	Stream *v1.StreamHandler

	registry   *prometheus.Registry
	metrics    *metrics.Metrics
	classifier identity.Classifier
	ids        *idgen.Generator
}

type handlers struct {
	mc          *v1.MCHandler
	store       *v1.StoreHandler
	auction     *v1.AuctionHandler
	recognition *v1.RecognitionHandler
	governance  *v1.GovernanceHandler
	integration *v1.IntegrationHandler
}

func NewServer(conf *config.AppConfig, db *gorm.DB) (*Server, error) {
	gin.SetMode(conf.Gin.Mode)
	engine := gin.New()

	classifier, err := identity.NewPatternClassifier(conf.Economy.ForbiddenActorPatterns)
	if err != nil {
		return nil, fmt.Errorf("identity.NewPatternClassifier -> %w", err)
	}
	classifier.Allow(conf.Economy.AllowedActorIDs...)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	s := &Server{
		Config:     conf,
		Router:     engine,
		registry:   reg,
		metrics:    metrics.New(reg),
		classifier: classifier,
		ids:        idgen.New(conf.API.NodeID),
	}

	s.MountMiddlewares()
	s.MountHandlers(s.initHandlers(db))

	return s, nil
}

func (s *Server) initHandlers(db *gorm.DB) handlers {
	audit := repository.NewAuditRepository(db)
	mcRepo := repository.NewMCRepository(db)
	gmcRepo := repository.NewGMCRepository(db)
	storeRepo := repository.NewStoreRepository(db)
	auctionRepo := repository.NewAuctionRepository(db)
	rnd := random.CryptoSource{}

	mcSvc := service.NewMCService(mcRepo, audit, lifecycle.NewEngine(s.classifier), s.ids, s.metrics)
	storeSvc := service.NewStoreService(storeRepo, mcRepo, audit, s.classifier, s.Config.Maintenance(), s.ids, s.metrics)
	auctionSvc := service.NewAuctionService(auctionRepo, mcRepo, storeSvc, audit, s.classifier, rnd, s.ids, s.metrics)
	recognitionSvc := service.NewRecognitionService(gmcRepo, auctionRepo, audit, s.classifier,
		s.Config.Economy.Recognition, rnd, s.ids, s.metrics)
	governanceSvc := service.NewGovernanceService(governance.NewEvaluator(s.Config.Economy.Governance, s.classifier),
		mcRepo, audit, s.ids, s.metrics)
	integrationSvc := service.NewIntegrationService(consumers(s.Config.Integration), audit, audit, gmcRepo, mcRepo,
		gapGrace(s.Config.Integration), s.metrics)

	s.Stream = v1.NewStreamHandler(integrationSvc, pollInterval(s.Config.Integration))

	return handlers{
		mc:          v1.NewMCHandler(mcSvc),
		store:       v1.NewStoreHandler(storeSvc),
		auction:     v1.NewAuctionHandler(auctionSvc),
		recognition: v1.NewRecognitionHandler(recognitionSvc),
		governance:  v1.NewGovernanceHandler(governanceSvc),
		integration: v1.NewIntegrationHandler(integrationSvc),
	}
}

func consumers(conf *config.IntegrationConfig) []service.Consumer {
	if conf == nil {
		return nil
	}
	out := make([]service.Consumer, 0, len(conf.Consumers))
	for _, c := range conf.Consumers {
		out = append(out, service.Consumer{Name: c.Name, KeyHash: c.KeyHash, Scopes: c.Scopes})
	}
	return out
}

func pollInterval(conf *config.IntegrationConfig) time.Duration {
	if conf == nil || conf.StreamPollInterval <= 0 {
		return defaultStreamPollInterval
	}
	return conf.StreamPollInterval
}

func gapGrace(conf *config.IntegrationConfig) time.Duration {
	if conf == nil {
		return service.DefaultStreamGapGrace
	}
	return conf.StreamGapGrace
}

// Run starts the background workers that live as long as ctx.
func (s *Server) Run(ctx context.Context) {
	go s.Stream.Run(ctx)
}

func (s *Server) MountMiddlewares() {
	// Logger and Recovery are needed unless we use gin.Default().
	s.Router.Use(gin.Logger())
	s.Router.Use(gin.Recovery())
	s.Router.Use(requestid.New())
	s.Router.Use(middleware.ConfigCORS(s.Config.API.AllowedCORSDomains))
}

func (s *Server) MountHandlers(h handlers) {
	const basePath = "/api/v1"

	api := s.Router.Group(basePath, middleware.NewAuthenticator(s.Config.API.JWTSigningKey).VerifyJWT())
	{
		api.POST("/mc/grants", h.mc.HandleGrant)
		api.GET("/mc", h.mc.HandleList)
		api.GET("/mc/summary", h.mc.HandleSummary)
		api.POST("/mc/:id/freeze", h.mc.HandleFreeze)
		api.POST("/mc/:id/unfreeze", h.mc.HandleUnfreeze)
		api.POST("/mc/:id/spend", h.mc.HandleSpend)
		api.POST("/mc/:id/expire", h.mc.HandleExpire)

		api.GET("/store/access", h.store.HandleAccess)
		api.POST("/store/purchases", h.store.HandlePurchase)
		api.GET("/store/wallets/:userID", h.store.HandleWallet)
		api.POST("/store/wallets/:userID/credit", h.store.HandleCreditWallet)
		api.PUT("/store/items/:itemID", h.store.HandleUpsertItem)
		api.PUT("/store/restrictions/:userID", h.store.HandleRestrict)
		api.DELETE("/store/restrictions/:userID", h.store.HandleUnrestrict)

		api.POST("/auctions", h.auction.HandleSchedule)
		api.POST("/auctions/:id/open", h.auction.HandleOpen)
		api.POST("/auctions/:id/close", h.auction.HandleClose)
		api.POST("/auctions/:id/cancel", h.auction.HandleCancel)
		api.POST("/auctions/:id/participations", h.auction.HandleParticipate)
		api.POST("/auctions/:id/recognition/:userID", h.recognition.HandleEvaluateBridge)

		api.POST("/gmc", h.recognition.HandleRecognize)
		api.GET("/gmc/:userID", h.recognition.HandleListGMC)

		api.POST("/governance/evaluations", h.governance.HandleEvaluate)
	}

	integration := s.Router.Group(basePath+"/integration", middleware.ConsumerCredentials())
	{
		integration.GET("/audit", h.integration.HandleListAudit)
		integration.GET("/audit/stream", s.Stream.HandleStream)
		integration.GET("/gmc/:userID", h.integration.HandleListGMC)
		integration.GET("/mc/:userID/summary", h.integration.HandleMCSummary)
	}

	s.Router.GET("/", v1.HandleHealthcheck)
	s.Router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))

	// Setup Swagger UI.
	docs.SwaggerInfo.Host = s.Config.API.BaseURL
	docs.SwaggerInfo.BasePath = basePath
	docs.SwaggerInfo.Title = "MC economy API"
	docs.SwaggerInfo.Description = "Participation tokens, recognition credentials, store, auctions and governance."
	docs.SwaggerInfo.Version = "1.0"
	s.Router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerfiles.Handler))
}
