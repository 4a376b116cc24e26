package devserver

import (
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/kindra-app/kindra-client/internal/profile"
	"github.com/kindra-app/kindra-client/pkg/errors"
	"github.com/kindra-app/kindra-client/pkg/jwt"
	"github.com/kindra-app/kindra-client/pkg/logger"
	"go.uber.org/zap"
)

// detailItem matches the backend's structured validation error shape
type detailItem struct {
	Msg string `json:"msg"`
}

func detailResponse(msgs ...string) gin.H {
	items := make([]detailItem, 0, len(msgs))
	for _, msg := range msgs {
		items = append(items, detailItem{Msg: msg})
	}
	return gin.H{"detail": items}
}

func bindingMessages(err error) []string {
	if fieldErrs, ok := err.(validator.ValidationErrors); ok {
		msgs := make([]string, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			switch fe.Tag() {
			case "required":
				msgs = append(msgs, fe.Field()+" is required")
			case "email":
				msgs = append(msgs, "Invalid email format")
			case "e164":
				msgs = append(msgs, "Invalid phone number format")
			case "min":
				msgs = append(msgs, fe.Field()+" must be at least "+fe.Param()+" characters")
			case "url":
				msgs = append(msgs, "Invalid URL format")
			default:
				msgs = append(msgs, fe.Field()+" is invalid")
			}
		}
		return msgs
	}
	return []string{"Invalid request body"}
}

type credentialsRequest struct {
	Email    string `json:"email" binding:"omitempty,email"`
	Phone    string `json:"phone" binding:"omitempty,e164"`
	Password string `json:"password" binding:"required,min=8"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

func (s *Server) issueTokens(c *gin.Context, status int, userID, email string) {
	access, refresh, err := s.tokens.GeneratePair(userID, email)
	if err != nil {
		logger.LogError(err, "Failed to issue token pair")
		c.JSON(http.StatusInternalServerError, detailResponse("Could not issue tokens"))
		return
	}
	c.JSON(status, tokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
	})
}

func (s *Server) handleRegister(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, detailResponse(bindingMessages(err)...))
		return
	}
	if req.Email == "" && req.Phone == "" {
		c.JSON(http.StatusUnprocessableEntity, detailResponse("Email or phone is required"))
		return
	}

	user, err := s.store.CreateUser(req.Email, req.Phone, req.Password)
	if err != nil {
		if errors.Is(err, errors.ErrConflict) {
			c.JSON(http.StatusConflict, detailResponse("Account already exists"))
			return
		}
		logger.LogError(err, "Registration failed")
		c.JSON(http.StatusInternalServerError, detailResponse("Registration failed"))
		return
	}

	logger.Info("Registered dev account", zap.String("user_id", user.ID))
	s.issueTokens(c, http.StatusCreated, user.ID, user.Email)
}

func (s *Server) handleLogin(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, detailResponse(bindingMessages(err)...))
		return
	}
	if req.Email == "" && req.Phone == "" {
		c.JSON(http.StatusUnprocessableEntity, detailResponse("Email or phone is required"))
		return
	}

	user, err := s.store.Authenticate(req.Email, req.Phone, req.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, detailResponse("Invalid credentials"))
		return
	}

	s.issueTokens(c, http.StatusOK, user.ID, user.Email)
}

func (s *Server) handleRefresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, detailResponse(bindingMessages(err)...))
		return
	}

	claims, err := s.tokens.ValidateToken(req.RefreshToken, jwt.UseRefresh)
	if err != nil {
		c.JSON(http.StatusUnauthorized, detailResponse("Invalid or expired refresh token"))
		return
	}
	if _, ok := s.store.Get(claims.UserID); !ok {
		c.JSON(http.StatusUnauthorized, detailResponse("Unknown account"))
		return
	}

	s.issueTokens(c, http.StatusOK, claims.UserID, claims.Email)
}

func (s *Server) currentUser(c *gin.Context) (*User, bool) {
	id := c.GetString(userIDKey)
	user, ok := s.store.Get(id)
	if !ok {
		c.JSON(http.StatusUnauthorized, detailResponse("Unknown account"))
		return nil, false
	}
	return user, true
}

func (s *Server) handleMe(c *gin.Context) {
	user, ok := s.currentUser(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, user.Document())
}

func (s *Server) handleGetUser(c *gin.Context) {
	user, ok := s.store.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, detailResponse("User not found"))
		return
	}
	c.JSON(http.StatusOK, user.Document())
}

func (s *Server) handleUpdatePersonalInfo(c *gin.Context) {
	user, ok := s.currentUser(c)
	if !ok {
		return
	}

	var req profile.PersonalInfoUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, detailResponse(bindingMessages(err)...))
		return
	}

	info := profile.PersonalInfo{
		FirstName:          req.FirstName,
		MiddleName:         req.MiddleName,
		LastName:           req.LastName,
		Nickname:           req.Nickname,
		Age:                req.Age,
		Location:           req.Location,
		RelationshipStatus: req.RelationshipStatus,
		Gender:             req.Gender,
	}
	if err := s.store.UpdatePersonalInfo(user.ID, info); err != nil {
		c.JSON(http.StatusNotFound, detailResponse("User not found"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

func (s *Server) handleUploadPicture(c *gin.Context) {
	user, ok := s.currentUser(c)
	if !ok {
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, detailResponse("Form field 'file' is required"))
		return
	}

	// No object storage locally; a deterministic fake URL is enough for
	// the client's refresh-after-mutation flow
	url := fmt.Sprintf("https://static.kindra.dev/uploads/%s/%s", user.ID, filepath.Base(file.Filename))
	if err := s.store.AddPicture(user.ID, url); err != nil {
		c.JSON(http.StatusNotFound, detailResponse("User not found"))
		return
	}
	c.JSON(http.StatusCreated, gin.H{"url": url})
}

type pictureURLRequest struct {
	URL string `json:"url" binding:"required,url"`
}

func (s *Server) handleAddPictureURL(c *gin.Context) {
	user, ok := s.currentUser(c)
	if !ok {
		return
	}

	var req pictureURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, detailResponse(bindingMessages(err)...))
		return
	}

	if err := s.store.AddPicture(user.ID, req.URL); err != nil {
		c.JSON(http.StatusNotFound, detailResponse("User not found"))
		return
	}
	c.JSON(http.StatusCreated, gin.H{"url": req.URL})
}

func (s *Server) handleChatHistory(c *gin.Context) {
	if _, ok := s.currentUser(c); !ok {
		return
	}
	c.JSON(http.StatusOK, s.store.History(c.Param("id")))
}

type chatSendRequest struct {
	Body string `json:"body" binding:"required"`
}

func (s *Server) handleChatSend(c *gin.Context) {
	user, ok := s.currentUser(c)
	if !ok {
		return
	}

	var req chatSendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, detailResponse(bindingMessages(err)...))
		return
	}

	msg := s.store.AppendMessage(c.Param("id"), user.ID, req.Body)
	c.JSON(http.StatusCreated, msg)
}
