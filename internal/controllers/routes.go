package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/franciscosanchezn/gin-device-auth/internal/auth"
	"github.com/franciscosanchezn/gin-device-auth/internal/middleware"
)

// Routes holds everything SetupRoutes mounts
type Routes struct {
	Auth         *AuthController
	Applications *ApplicationController
	Health       *HealthController
	Validator    middleware.Validator
	// AdminClients limits application registration to tokens of these clients
	AdminClients []string
	Metrics      http.Handler
	Swagger      bool
}

// SetupRoutes defines the routes for the Gin router
func SetupRoutes(router *gin.Engine, r Routes) {
	router.GET("/health", r.Health.Health)
	if r.Metrics != nil {
		router.GET("/metrics", gin.WrapH(r.Metrics))
	}

	v1 := router.Group("/oauth2/v1")
	{
		// Device flow
		v1.POST("/deviceCode", r.Auth.DeviceCode)
		v1.GET("/:clientId/:userCode/login", r.Auth.LoginForm)
		v1.POST("/:clientId/:userCode/login", r.Auth.Login)
		v1.POST("/:clientId/:userCode/consent", r.Auth.Consent)
		v1.POST("/token", r.Auth.Token)
		v1.POST("/refresh", r.Auth.Refresh)

		v1.POST("/users", r.Auth.Register)
		v1.GET("/applications/:clientId", r.Applications.GetApplication)

		// Protected routes (requires a live access token)
		protected := v1.Group("")
		protected.Use(middleware.TokenAuth(r.Validator, auth.AccessToken))
		{
			protected.POST("/revoke", r.Auth.Revoke)
			protected.GET("/applications", r.Applications.ListApplications)
			protected.PUT("/applications/:clientId/active", r.Applications.SetActive)
			protected.PUT("/applications/:clientId/scopes", r.Applications.UpdateScopes)
			protected.POST("/applications", middleware.RequireClient(r.AdminClients...), r.Applications.CreateApplication)
		}

		// Rotates an expired access token when a refresh token accompanies it
		v1.GET("/userinfo", middleware.RefreshingAuth(r.Validator), r.Auth.UserInfo)
	}

	if r.Swagger {
		router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}
}
