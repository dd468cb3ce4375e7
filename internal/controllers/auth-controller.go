package controllers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/franciscosanchezn/gin-device-auth/internal/auth"
	"github.com/franciscosanchezn/gin-device-auth/internal/middleware"
	"github.com/franciscosanchezn/gin-device-auth/internal/models"
	"github.com/franciscosanchezn/gin-device-auth/internal/services"
)

// AuthController serves the device authorization flow
type AuthController struct {
	server       *auth.Server
	userService  services.UserService
	passwordCost int
}

func NewAuthController(server *auth.Server, userService services.UserService, passwordCost int) *AuthController {
	return &AuthController{
		server:       server,
		userService:  userService,
		passwordCost: passwordCost,
	}
}

type deviceCodeRequest struct {
	ClientID string `json:"clientId" form:"clientId"`
}

type loginRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

type consentRequest struct {
	Approve bool `json:"approve" form:"approve"`
}

type tokenRequest struct {
	ClientID   string `json:"clientId" form:"clientId"`
	DeviceCode string `json:"deviceCode" form:"deviceCode"`
}

type refreshRequest struct {
	ClientID     string `json:"clientId" form:"clientId"`
	RefreshToken string `json:"refreshToken" form:"refreshToken"`
}

// LoginResponse is what the browser renders after each login step
type LoginResponse struct {
	Outcome       auth.LoginOutcome         `json:"outcome"`
	ClientID      string                    `json:"clientId"`
	UserCode      string                    `json:"userCode"`
	Application   string                    `json:"application"`
	Fields        auth.FieldErrors          `json:"fields,omitempty"`
	Values        map[string]string         `json:"values,omitempty"`
	Scopes        []models.ApplicationScope `json:"scopes,omitempty"`
	MissingScopes []models.ApplicationScope `json:"missingScopes,omitempty"`
	Message       string                    `json:"message,omitempty"`
}

// PollStatusResponse is returned by the token endpoint until tokens are issued
type PollStatusResponse struct {
	Status string `json:"status"`
}

func newLoginResponse(result *auth.LoginResult) LoginResponse {
	resp := LoginResponse{
		Outcome:       result.Outcome,
		ClientID:      result.ClientID,
		UserCode:      result.UserCode,
		Application:   result.Application,
		Fields:        result.FieldErrors,
		Values:        result.Values,
		Scopes:        result.Scopes,
		MissingScopes: result.MissingScopes,
	}
	switch result.Outcome {
	case auth.OutcomeAuthorized:
		resp.Message = "Login successful. You can return to your device."
	case auth.OutcomeDenied:
		resp.Message = "Access was not granted. You can close this window."
	case auth.OutcomeConsentRequired:
		resp.Message = result.Application + " is requesting access to your account."
	}
	return resp
}

// bind accepts JSON or form bodies. A malformed body is a validation error.
func bind(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBind(req); err != nil {
		middleware.AbortWithError(c, &auth.ValidationError{Fields: auth.FieldErrors{"body": err.Error()}})
		return false
	}
	return true
}

// DeviceCode godoc
// @Summary Start device authorization
// @Description Issue a device code and a user code for a registered application
// @Tags Device Flow
// @Accept json,x-www-form-urlencoded
// @Produce json
// @Param request body object{clientId=string} true "Application client ID"
// @Success 200 {object} auth.DeviceAuthorization
// @Failure 400 {object} models.OAuth2Error "Missing client ID"
// @Failure 401 {object} models.OAuth2Error "Unknown or inactive application"
// @Failure 503 {object} models.OAuth2Error "State store unavailable"
// @Router /oauth2/v1/deviceCode [post]
func (ac *AuthController) DeviceCode(c *gin.Context) {
	var req deviceCodeRequest
	if !bind(c, &req) {
		return
	}

	da, err := ac.server.Device.Initiate(c.Request.Context(), req.ClientID)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, da)
}

// LoginForm godoc
// @Summary Login form state
// @Description Describe the login form for a pending device session
// @Tags Device Flow
// @Produce json
// @Param clientId path string true "Application client ID"
// @Param userCode path string true "User code shown on the device"
// @Success 200 {object} LoginResponse
// @Failure 400 {object} models.OAuth2Error "Session expired or unknown"
// @Router /oauth2/v1/{clientId}/{userCode}/login [get]
func (ac *AuthController) LoginForm(c *gin.Context) {
	result, err := ac.server.Login.FormState(c.Request.Context(), c.Param("clientId"), c.Param("userCode"))
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, newLoginResponse(result))
}

// Login godoc
// @Summary Submit credentials
// @Description Log the user in for a pending device session. Field errors re-prompt the form.
// @Tags Device Flow
// @Accept json,x-www-form-urlencoded
// @Produce json
// @Param clientId path string true "Application client ID"
// @Param userCode path string true "User code shown on the device"
// @Param credentials body object{email=string,password=string} true "User credentials"
// @Success 200 {object} LoginResponse
// @Failure 400 {object} models.OAuth2Error "Session expired or unknown"
// @Failure 401 {object} models.OAuth2Error "Unknown or inactive application"
// @Router /oauth2/v1/{clientId}/{userCode}/login [post]
func (ac *AuthController) Login(c *gin.Context) {
	var req loginRequest
	if !bind(c, &req) {
		return
	}

	result, err := ac.server.Login.Login(c.Request.Context(), auth.LoginRequest{
		ClientID: c.Param("clientId"),
		UserCode: c.Param("userCode"),
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, newLoginResponse(result))
}

// Consent godoc
// @Summary Grant or refuse scopes
// @Description Record the user's consent decision for a session awaiting it
// @Tags Device Flow
// @Accept json,x-www-form-urlencoded
// @Produce json
// @Param clientId path string true "Application client ID"
// @Param userCode path string true "User code shown on the device"
// @Param decision body object{approve=bool} true "Consent decision"
// @Success 200 {object} LoginResponse
// @Failure 400 {object} models.OAuth2Error "No login awaiting consent"
// @Router /oauth2/v1/{clientId}/{userCode}/consent [post]
func (ac *AuthController) Consent(c *gin.Context) {
	var req consentRequest
	if !bind(c, &req) {
		return
	}

	result, err := ac.server.Login.Consent(c.Request.Context(), auth.ConsentRequest{
		ClientID: c.Param("clientId"),
		UserCode: c.Param("userCode"),
		Approve:  req.Approve,
	})
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, newLoginResponse(result))
}

// Token godoc
// @Summary Poll for tokens
// @Description Exchange a device code for tokens once the user has logged in. Until then the current status is returned.
// @Tags Device Flow
// @Accept json,x-www-form-urlencoded
// @Produce json
// @Param request body object{clientId=string,deviceCode=string} true "Device code"
// @Success 200 {object} auth.TokenResponse "Tokens, or {status} while pending or expired"
// @Failure 400 {object} models.OAuth2Error "Missing fields"
// @Failure 503 {object} models.OAuth2Error "State store unavailable"
// @Router /oauth2/v1/token [post]
func (ac *AuthController) Token(c *gin.Context) {
	var req tokenRequest
	if !bind(c, &req) {
		return
	}

	result, err := ac.server.Tokens.Poll(c.Request.Context(), req.ClientID, req.DeviceCode)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	if result.Token == nil {
		c.JSON(http.StatusOK, PollStatusResponse{Status: result.Status})
		return
	}
	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, result.Token)
}

// Refresh godoc
// @Summary Rotate tokens
// @Description Exchange a refresh token for a new token pair. The old pair stops working.
// @Tags Device Flow
// @Accept json,x-www-form-urlencoded
// @Produce json
// @Param request body object{clientId=string,refreshToken=string} true "Refresh token"
// @Success 200 {object} auth.TokenResponse
// @Failure 400 {object} models.OAuth2Error "Invalid, revoked or foreign refresh token"
// @Router /oauth2/v1/refresh [post]
func (ac *AuthController) Refresh(c *gin.Context) {
	var req refreshRequest
	if !bind(c, &req) {
		return
	}

	token, err := ac.server.Validator.Refresh(c.Request.Context(), req.ClientID, req.RefreshToken)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, token)
}

// Revoke godoc
// @Summary Log out
// @Description Revoke the caller's access and refresh tokens for the token's application
// @Tags Device Flow
// @Produce json
// @Success 204 "Tokens revoked"
// @Failure 401 {object} models.OAuth2Error "Missing or invalid access token"
// @Security BearerAuth
// @Router /oauth2/v1/revoke [post]
func (ac *AuthController) Revoke(c *gin.Context) {
	err := ac.server.Validator.RevokeSubject(c.Request.Context(),
		c.GetString(middleware.ContextSubjectID), c.GetString(middleware.ContextClientID))
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	for _, tokenType := range []auth.TokenType{auth.AccessToken, auth.RefreshToken} {
		bodyName, sigName := middleware.CookieNames(tokenType)
		c.SetCookie(bodyName, "", -1, "/", "", false, false)
		c.SetCookie(sigName, "", -1, "/", "", false, true)
	}
	c.Status(http.StatusNoContent)
}

// UserInfo godoc
// @Summary Current user
// @Description Return the profile claims carried by the caller's access token
// @Tags Device Flow
// @Produce json
// @Success 200 {object} auth.SlimUser
// @Failure 401 {object} models.OAuth2Error "Missing or invalid access token"
// @Security BearerAuth
// @Router /oauth2/v1/userinfo [get]
func (ac *AuthController) UserInfo(c *gin.Context) {
	user, ok := c.Get(middleware.ContextUser)
	if !ok {
		middleware.AbortWithError(c, errors.New("userinfo reached without authentication"))
		return
	}
	c.JSON(http.StatusOK, user)
}

// Register godoc
// @Summary Register user
// @Description Create a user account that can log in to device sessions
// @Tags Users
// @Accept json
// @Produce json
// @Param user body object{email=string,password=string,firstName=string,lastName=string} true "User details"
// @Success 201 {object} map[string]string "User created"
// @Failure 400 {object} map[string]string "Invalid request"
// @Failure 409 {object} map[string]string "User already exists"
// @Router /oauth2/v1/users [post]
func (ac *AuthController) Register(c *gin.Context) {
	var req struct {
		Email     string     `json:"email" binding:"required,email"`
		Password  string     `json:"password" binding:"required,min=8"`
		FirstName string     `json:"firstName"`
		LastName  string     `json:"lastName"`
		Phone     string     `json:"phone"`
		Birthday  *time.Time `json:"birthday"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.NewAPIError(models.ErrValidationFailed, err.Error()))
		return
	}

	user := &models.User{
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
		Birthday:  req.Birthday,
	}

	if err := user.SetPassword(req.Password, ac.passwordCost); err != nil {
		c.JSON(http.StatusInternalServerError, models.NewAPIError(models.ErrInternalServer, "password_hashing_failed"))
		return
	}

	if err := ac.userService.CreateUser(c.Request.Context(), user); err != nil {
		if errors.Is(err, services.ErrUserExists) {
			c.JSON(http.StatusConflict, models.NewAPIError(models.ErrUserExists, "user_already_exists"))
			return
		}
		c.JSON(http.StatusInternalServerError, models.NewAPIError(models.ErrInternalServer, "user_creation_failed"))
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "user_created", "oid": user.UUID})
}
