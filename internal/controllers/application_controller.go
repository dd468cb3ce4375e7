package controllers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/franciscosanchezn/gin-device-auth/internal/middleware"
	"github.com/franciscosanchezn/gin-device-auth/internal/models"
	"github.com/franciscosanchezn/gin-device-auth/internal/services"
)

var log = logrus.WithField("component", "controllers")

type ApplicationController struct {
	applicationService services.ApplicationService
}

func NewApplicationController(applicationService services.ApplicationService) *ApplicationController {
	return &ApplicationController{applicationService: applicationService}
}

type scopeRequest struct {
	Scope    string `json:"scope" binding:"required"`
	Required bool   `json:"required"`
}

// CreateApplication godoc
// @Summary Register application
// @Description Register a new application for the device flow. The secret is only returned here.
// @Tags Applications
// @Accept json
// @Produce json
// @Param application body object{displayName=string,domain=string,scopes=[]object{scope=string,required=bool}} true "Application details"
// @Success 201 {object} map[string]interface{} "Application created with clientId and applicationSecret"
// @Failure 400 {object} models.APIError "Invalid request"
// @Failure 500 {object} models.APIError "Application creation failed"
// @Security BearerAuth
// @Router /oauth2/v1/applications [post]
func (ac *ApplicationController) CreateApplication(c *gin.Context) {
	var req struct {
		DisplayName string         `json:"displayName" binding:"required"`
		Domain      string         `json:"domain"`
		Scopes      []scopeRequest `json:"scopes" binding:"dive"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.NewAPIError(models.ErrValidationFailed, err.Error()))
		return
	}

	app := &models.Application{
		DisplayName: req.DisplayName,
		Domain:      req.Domain,
		OwnerID:     c.GetString(middleware.ContextSubjectID),
		Active:      true,
	}
	scopes, ok := bindScopes(c, req.Scopes)
	if !ok {
		return
	}
	app.Scopes = scopes

	if err := ac.applicationService.CreateApplication(c.Request.Context(), app); err != nil {
		log.WithError(err).Error("Failed to create application")
		c.JSON(http.StatusInternalServerError, models.NewAPIError(models.ErrInternalServer, "application_creation_failed"))
		return
	}

	log.WithField("client_id", app.ClientID).Info("Application registered")
	c.JSON(http.StatusCreated, gin.H{
		"clientId":          app.ClientID,
		"applicationSecret": app.ApplicationSecret, // Return the secret only once
		"displayName":       app.DisplayName,
		"domain":            app.Domain,
		"scopes":            app.ScopeNames(),
	})
}

// GetApplication godoc
// @Summary Application metadata
// @Description Public metadata and declared scopes of an application
// @Tags Applications
// @Produce json
// @Param clientId path string true "Client ID"
// @Success 200 {object} models.Application
// @Failure 404 {object} models.APIError "Application not found"
// @Router /oauth2/v1/applications/{clientId} [get]
func (ac *ApplicationController) GetApplication(c *gin.Context) {
	app, err := ac.applicationService.GetApplication(c.Request.Context(), c.Param("clientId"))
	if err != nil {
		ac.respondWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, app)
}

// ListApplications godoc
// @Summary List own applications
// @Description Get all applications owned by the authenticated user
// @Tags Applications
// @Produce json
// @Success 200 {array} models.Application
// @Failure 500 {object} models.APIError "Failed to retrieve applications"
// @Security BearerAuth
// @Router /oauth2/v1/applications [get]
func (ac *ApplicationController) ListApplications(c *gin.Context) {
	apps, err := ac.applicationService.GetApplicationsByOwner(c.Request.Context(), c.GetString(middleware.ContextSubjectID))
	if err != nil {
		ac.respondWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, apps)
}

// SetActive godoc
// @Summary Enable or disable application
// @Description Inactive applications cannot start device sessions and their access tokens stop validating
// @Tags Applications
// @Accept json
// @Produce json
// @Param clientId path string true "Client ID"
// @Param state body object{active=bool} true "New state"
// @Success 204 "State updated"
// @Failure 403 {object} models.APIError "Not the owner"
// @Failure 404 {object} models.APIError "Application not found"
// @Security BearerAuth
// @Router /oauth2/v1/applications/{clientId}/active [put]
func (ac *ApplicationController) SetActive(c *gin.Context) {
	var req struct {
		Active *bool `json:"active" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.NewAPIError(models.ErrValidationFailed, err.Error()))
		return
	}

	ctx := c.Request.Context()
	clientID := c.Param("clientId")
	app, err := ac.applicationService.GetApplication(ctx, clientID)
	if err != nil {
		ac.respondWithServiceError(c, err)
		return
	}
	if app.OwnerID != c.GetString(middleware.ContextSubjectID) {
		c.JSON(http.StatusForbidden, models.NewAPIError(models.ErrApplicationForbidden, "only the owner can change an application"))
		return
	}

	if err := ac.applicationService.SetActive(ctx, clientID, *req.Active); err != nil {
		ac.respondWithServiceError(c, err)
		return
	}
	log.WithFields(logrus.Fields{"client_id": clientID, "active": *req.Active}).Info("Application state changed")
	c.Status(http.StatusNoContent)
}

// UpdateScopes godoc
// @Summary Replace declared scopes
// @Description Replace the scopes an application declares. Grants for removed scopes are dropped; a newly required scope sends users back to consent on their next login.
// @Tags Applications
// @Accept json
// @Produce json
// @Param clientId path string true "Client ID"
// @Param scopes body object{scopes=[]object{scope=string,required=bool}} true "Declared scopes"
// @Success 200 {object} models.Application
// @Failure 400 {object} models.APIError "Invalid scope"
// @Failure 403 {object} models.APIError "Not the owner"
// @Failure 404 {object} models.APIError "Application not found"
// @Security BearerAuth
// @Router /oauth2/v1/applications/{clientId}/scopes [put]
func (ac *ApplicationController) UpdateScopes(c *gin.Context) {
	var req struct {
		Scopes []scopeRequest `json:"scopes" binding:"dive"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.NewAPIError(models.ErrValidationFailed, err.Error()))
		return
	}
	scopes, ok := bindScopes(c, req.Scopes)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	clientID := c.Param("clientId")
	app, err := ac.applicationService.GetApplication(ctx, clientID)
	if err != nil {
		ac.respondWithServiceError(c, err)
		return
	}
	if app.OwnerID != c.GetString(middleware.ContextSubjectID) {
		c.JSON(http.StatusForbidden, models.NewAPIError(models.ErrApplicationForbidden, "only the owner can change an application"))
		return
	}

	if err := ac.applicationService.UpdateScopes(ctx, clientID, scopes); err != nil {
		ac.respondWithServiceError(c, err)
		return
	}
	app.Scopes = scopes
	log.WithFields(logrus.Fields{"client_id": clientID, "scopes": app.ScopeNames()}).Info("Application scopes replaced")
	c.JSON(http.StatusOK, app)
}

// bindScopes converts requested scopes, answering 400 for the first invalid or repeated name
func bindScopes(c *gin.Context, requested []scopeRequest) ([]models.ApplicationScope, bool) {
	scopes := make([]models.ApplicationScope, 0, len(requested))
	seen := make(map[string]bool, len(requested))
	for _, s := range requested {
		scope := strings.TrimSpace(s.Scope)
		if !models.IsValidScope(scope) || seen[scope] {
			c.JSON(http.StatusBadRequest, models.NewAPIError(models.ErrApplicationInvalidScope,
				"scope must have the form <category>_<read|readwrite|notify> and be declared once",
				map[string]interface{}{"scope": s.Scope}))
			return nil, false
		}
		seen[scope] = true
		scopes = append(scopes, models.ApplicationScope{Scope: scope, Required: s.Required})
	}
	return scopes, true
}

func (ac *ApplicationController) respondWithServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, models.NewAPIError(models.ErrApplicationNotFound, "application_not_found"))
		return
	case errors.Is(err, services.ErrInvalidScope):
		c.JSON(http.StatusBadRequest, models.NewAPIError(models.ErrApplicationInvalidScope, err.Error()))
		return
	}
	log.WithError(err).Error("Application lookup failed")
	c.JSON(http.StatusInternalServerError, models.NewAPIError(models.ErrInternalServer, "application_lookup_failed"))
}
