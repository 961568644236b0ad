package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/homerly/rental_backend/config"
	"github.com/homerly/rental_backend/middlewares"
	"github.com/homerly/rental_backend/models"
	"github.com/homerly/rental_backend/workflow"
	"github.com/sirupsen/logrus"
)

const defaultPort = "8080"

func customNotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
}

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	r := newRouter(logger)

	// Listen before dependencies are up; app routes answer 503 until then.
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.ListenAndServe()
	}()

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()

	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		if err := models.Migrate(db); err != nil {
			logger.WithFields(logrus.Fields{"field": "migrations"}).Fatal(err.Error())
		}
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	sweepCtx, cancelSweeps := context.WithCancel(context.Background())
	defer cancelSweeps()
	if config.SweepsEnabled() {
		go workflow.NewSweeper(logger, config.GetRedisLock()).Run(sweepCtx)
	}

	logger.WithFields(logrus.Fields{
		"info": "Connection Established",
	}).Info("listening on :", port)
	log.Println("Server started successfully")

	select {
	case <-sigCtx.Done():
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	// Stop sweeps before draining requests.
	cancelSweeps()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}

	if rdb := config.GetRedisDB(); rdb != nil {
		_ = rdb.Close()
	}
}

func newRouter(logger *logrus.Logger) *gin.Engine {
	r := gin.New()
	r.Use(middlewares.CorrelationMiddleware())
	r.Use(func(c *gin.Context) {
		if c.Request.URL.Path == "/healthz" {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		if config.GetDB() == nil {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		c.Next()
	})
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	r.Use(cors.New(corsConfig()))
	r.Use(middlewares.RateLimitMiddleware(config.RateLimitPerMinute()))
	r.Use(middlewares.SessionMiddleware())
	r.Use(customErrorLogger(logger))
	r.Use(gin.Recovery())

	registerRoutes(r)
	r.NoRoute(customNotFoundHandler)
	return r
}

func corsConfig() cors.Config {
	corsConfig := cors.DefaultConfig()
	if origins := splitAndTrim(os.Getenv("ALLOW_ORIGINS")); len(origins) > 0 {
		corsConfig.AllowOrigins = origins
		corsConfig.AllowCredentials = true
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "PUT", "DELETE", "OPTIONS")
	corsConfig.AddAllowHeaders("Origin", "Content-Type", "Authorization", middlewares.CorrelationHeader)
	corsConfig.AddExposeHeaders("Content-Length", "Content-Disposition", middlewares.CorrelationHeader)
	return corsConfig
}

func registerRoutes(r *gin.Engine) {
	r.POST("/auth/register", registerHandler())
	r.POST("/auth/login", loginHandler())
	r.POST("/payments/webhook", paymentWebhookHandler())

	api := r.Group("/", middlewares.RequireSession())
	api.POST("/auth/logout", logoutHandler())
	api.GET("/auth/me", meHandler())
	api.GET("/accounts/:id", getAccountHandler())
	api.PUT("/accounts/:id", updateAccountHandler())
	api.POST("/admin/owners/:id/approve", approveOwnerHandler())
	api.GET("/admin/accounts", listAccountsHandler())
	api.DELETE("/admin/accounts/:id", deleteAccountHandler())
	api.POST("/admin/accounts/:id/restore", restoreAccountHandler())
	api.PUT("/admin/accounts/:id/role", accountRoleHandler())
	api.GET("/admin/chat/conversations", adminConversationsHandler())

	api.POST("/properties", createPropertyHandler())
	api.GET("/properties", listPropertiesHandler())
	api.GET("/properties/:id", getPropertyHandler())
	api.PUT("/properties/:id", updatePropertyHandler())
	api.DELETE("/properties/:id", deletePropertyHandler())
	api.POST("/properties/:id/image", propertyImageHandler())
	api.GET("/properties/:id/active-tenancy", activeTenancyHandler())
	api.GET("/properties/:id/readings", propertyReadingsHandler())
	api.GET("/properties/:id/readings/latest", latestReadingHandler())
	api.GET("/properties/:id/payments", propertyPaymentsHandler())
	api.GET("/properties/:id/reports", propertyReportsHandler())

	api.POST("/tenancies", createTenancyHandler())
	api.GET("/tenancies", listTenanciesHandler())
	api.GET("/tenancies/:id", getTenancyHandler())
	api.PUT("/tenancies/:id", updateTenancyHandler())
	api.DELETE("/tenancies/:id", deleteTenancyHandler())
	api.PUT("/tenancies/:id/status", tenancyStatusHandler())
	api.POST("/tenancies/:id/confirm", confirmTenancyHandler())
	api.POST("/tenancies/:id/cancel", cancelTenancyHandler())
	api.POST("/tenancies/:id/contract", tenancyContractHandler())
	api.GET("/tenancies/:id/readings", tenancyReadingsHandler())
	api.GET("/tenancies/:id/invoices", tenancyInvoicesHandler())
	api.GET("/tenancies/:id/reports", tenancyReportsHandler())

	api.POST("/readings", createReadingHandler())
	api.GET("/readings/:id", getReadingHandler())
	api.PUT("/readings/:id", updateReadingHandler())
	api.DELETE("/readings/:id", deleteReadingHandler())
	api.POST("/readings/:id/charge", chargeReadingHandler())

	api.POST("/invoices", createInvoiceHandler())
	api.GET("/invoices", listInvoicesHandler())
	api.GET("/invoices/export", exportInvoicesHandler())
	api.GET("/invoices/:id", getInvoiceHandler())
	api.PUT("/invoices/:id", updateInvoiceHandler())
	api.DELETE("/invoices/:id", deleteInvoiceHandler())
	api.POST("/invoices/:id/send", sendInvoiceHandler())
	api.PUT("/invoices/:id/status", invoiceStatusHandler())
	api.POST("/invoices/:id/pay", payInvoiceHandler())
	api.POST("/invoices/:id/checkout", checkoutHandler())
	api.GET("/invoices/:id/payments", invoicePaymentsHandler())

	api.GET("/payments", listPaymentsHandler())
	api.GET("/payments/:id", getPaymentHandler())

	api.GET("/reports/revenue", revenueHandler())
	api.POST("/reports", createReportHandler())
	api.GET("/reports", listReportsHandler())
	api.GET("/reports/:id", getReportHandler())
	api.PUT("/reports/:id", updateReportHandler())
	api.PUT("/reports/:id/priority", reportPriorityHandler())
	api.DELETE("/reports/:id", deleteReportHandler())

	api.GET("/chat/admin", chatAdminHandler())
	api.POST("/chat/messages", sendChatMessageHandler())
	api.GET("/chat/messages", chatHistoryHandler())
	api.GET("/chat/messages/recent", recentChatMessagesHandler())
	api.POST("/chat/messages/read", markChatReadHandler())
}

// customErrorLogger logs only requests that recorded gin errors.
func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if len(c.Errors) > 0 {
			logger.Error(c.Errors.String())
		}
	}
}

func splitAndTrim(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
