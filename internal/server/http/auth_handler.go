package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	authapp "mlwio/internal/auth/app"
	authdomain "mlwio/internal/auth/domain"
	"mlwio/internal/shared/logging"
)

// CookieConfig shapes the session cookie.
type CookieConfig struct {
	Name   string
	Secure bool
	TTL    time.Duration
}

// AuthHandler serves /api/auth/*.
type AuthHandler struct {
	service *authapp.Service
	cookie  CookieConfig
	logger  logging.Logger
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(service *authapp.Service, cookie CookieConfig) *AuthHandler {
	if strings.TrimSpace(cookie.Name) == "" {
		cookie.Name = "mlwio_session"
	}
	if cookie.TTL <= 0 {
		cookie.TTL = service.SessionTTL()
	}
	return &AuthHandler{
		service: service,
		cookie:  cookie,
		logger:  logging.NewComponentLogger("AuthHandler"),
	}
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type userDTO struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

func toUserDTO(user authdomain.User) userDTO {
	return userDTO{ID: user.ID, Username: user.Username}
}

// bindCredentials reads {username,password}; a missing or malformed body
// counts as missing credentials.
func bindCredentials(c *gin.Context) (credentialsRequest, bool) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return credentialsRequest{}, false
	}
	if req.Username == "" || req.Password == "" {
		return credentialsRequest{}, false
	}
	return req, true
}

// HandleLogin processes POST /api/auth/login.
func (h *AuthHandler) HandleLogin(c *gin.Context) {
	req, ok := bindCredentials(c)
	if !ok {
		respondError(c, http.StatusBadRequest, msgCredentials)
		return
	}
	session, user, err := h.service.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, authdomain.ErrInvalidCredentials) {
			respondError(c, http.StatusUnauthorized, msgWrongPassword)
			return
		}
		respondInternal(c, h.logger, "Login", err)
		return
	}
	h.setSessionCookie(c, session)
	c.JSON(http.StatusOK, gin.H{"user": toUserDTO(user)})
}

// HandleLogout processes POST /api/auth/logout.
func (h *AuthHandler) HandleLogout(c *gin.Context) {
	if sessionID, err := c.Cookie(h.cookie.Name); err == nil {
		if err := h.service.Logout(c.Request.Context(), sessionID); err != nil {
			h.logger.Warn("Failed to delete session on logout: %v", err)
		}
	}
	h.clearSessionCookie(c)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// HandleMe processes GET /api/auth/me.
func (h *AuthHandler) HandleMe(c *gin.Context) {
	sessionID, err := c.Cookie(h.cookie.Name)
	if err != nil || sessionID == "" {
		respondError(c, http.StatusUnauthorized, msgNotAuthenticated)
		return
	}
	user, err := h.service.CurrentUser(c.Request.Context(), sessionID)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"user": toUserDTO(user)})
	case errors.Is(err, authdomain.ErrSessionNotFound), errors.Is(err, authdomain.ErrSessionExpired):
		respondError(c, http.StatusUnauthorized, msgNotAuthenticated)
	case errors.Is(err, authdomain.ErrUserNotFound):
		respondError(c, http.StatusUnauthorized, msgUserNotFound)
	default:
		respondInternal(c, h.logger, "Current user", err)
	}
}

func (h *AuthHandler) setSessionCookie(c *gin.Context, session authdomain.Session) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     h.cookie.Name,
		Value:    session.ID,
		Path:     "/",
		Expires:  session.ExpiresAt,
		MaxAge:   int(h.cookie.TTL.Seconds()),
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: h.sameSiteMode(),
	})
}

func (h *AuthHandler) clearSessionCookie(c *gin.Context) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     h.cookie.Name,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: h.sameSiteMode(),
	})
}

func (h *AuthHandler) sameSiteMode() http.SameSite {
	if h.cookie.Secure {
		return http.SameSiteNoneMode
	}
	return http.SameSiteLaxMode
}
