package server

import (
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"tidepool/internal/models"
	"tidepool/internal/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	activationTokenTTL = 5 * time.Minute
	resetTokenTTL      = 5 * time.Minute
)

// Register handles POST /register. Nothing is persisted here: the
// pending account travels inside the activation token until the user
// follows the emailed link.
func (s *Server) Register(c *fiber.Ctx) error {
	var req struct {
		FirstName       string `json:"firstName"`
		LastName        string `json:"lastName"`
		Email           string `json:"email"`
		Password        string `json:"password"`
		ConfirmPassword string `json:"confirmPassword"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	name := strings.TrimSpace(strings.TrimSpace(req.FirstName) + " " + strings.TrimSpace(req.LastName))
	if name == "" {
		return models.Respond(c, models.NewValidationError("Name is required"))
	}
	if err := validation.ValidateEmail(req.Email); err != nil {
		return models.Respond(c, err)
	}
	if err := validation.ValidatePassword(req.Password); err != nil {
		return models.Respond(c, err)
	}
	if req.ConfirmPassword != "" && req.ConfirmPassword != req.Password {
		return models.Respond(c, models.NewValidationError("Passwords do not match"))
	}

	email := validation.NormalizeEmail(req.Email)
	existing, err := s.userRepo.GetByEmail(c.Context(), email)
	if err != nil {
		return models.Respond(c, err)
	}
	if existing != nil {
		return models.Respond(c, models.NewConflictError("Email already exists"))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return models.Respond(c, models.NewInternalError(err))
	}

	token, err := s.signScopedToken("activation", jwt.MapClaims{
		"name":  name,
		"email": email,
		"hash":  string(hash),
	}, activationTokenTTL)
	if err != nil {
		return models.Respond(c, models.NewInternalError(err))
	}

	link := fmt.Sprintf("%s/activate?token=%s", s.config.ClientURL, token)
	if err := s.mailer.SendActivation(c.Context(), email, name, link); err != nil {
		return models.Respond(c, models.NewUpstreamError("mail delivery", err))
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": fmt.Sprintf("Please check your email: %s to activate your account!", email),
	})
}

// Activate handles POST /activate-user. The token carries the pending
// registration; the User record is created here.
func (s *Server) Activate(c *fiber.Ctx) error {
	var req struct {
		Token string `json:"activation_token"`
	}
	if err := c.BodyParser(&req); err != nil || req.Token == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Activation token is required"))
	}

	claims, err := s.parseScopedToken(req.Token, "activation")
	if err != nil {
		return models.Respond(c, err)
	}

	name, _ := claims["name"].(string)
	email, _ := claims["email"].(string)
	hash, _ := claims["hash"].(string)
	if name == "" || email == "" || hash == "" {
		return models.Respond(c, models.NewUnauthorizedError("Invalid activation token"))
	}

	existing, err := s.userRepo.GetByEmail(c.Context(), email)
	if err != nil {
		return models.Respond(c, err)
	}
	if existing != nil {
		return models.Respond(c, models.NewConflictError("User already exists"))
	}

	user := &models.User{
		Name:     name,
		Email:    email,
		Password: hash,
		Role:     models.RoleUser,
		Active:   true,
	}
	// The random handle suffix can collide; retry with a fresh one.
	var createErr error
	for attempt := 0; attempt < 3; attempt++ {
		user.Username = generateUsername(name)
		if createErr = s.userRepo.Create(c.Context(), user); createErr == nil {
			break
		}
		var appErr *models.AppError
		if !errors.As(createErr, &appErr) || appErr.Code != models.CodeConflict {
			break
		}
	}
	if createErr != nil {
		return models.Respond(c, createErr)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"user":    user,
	})
}

// Login handles POST /login. The access token is returned in the body
// and set as an HTTP-only cookie.
func (s *Server) Login(c *fiber.Ctx) error {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	if req.Email == "" || req.Password == "" {
		return models.Respond(c, models.NewValidationError("Please enter email and password"))
	}

	user, err := s.userRepo.GetByEmail(c.Context(), validation.NormalizeEmail(req.Email))
	if err != nil {
		return models.Respond(c, err)
	}
	if user == nil {
		return models.Respond(c, models.NewUnauthorizedError("Invalid credentials"))
	}

	if cmpErr := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); cmpErr != nil {
		return models.Respond(c, models.NewUnauthorizedError("Invalid credentials"))
	}

	if !user.Active {
		return models.Respond(c,
			models.NewForbiddenError("This account has been suspended! Try to contact the admin"))
	}

	token, err := s.generateToken(user.ID, user.Username)
	if err != nil {
		return models.Respond(c, models.NewInternalError(err))
	}

	s.setAccessCookie(c, token, time.Now().Add(accessTokenTTL))

	return c.JSON(fiber.Map{
		"success":     true,
		"accessToken": token,
		"user":        user,
	})
}

// Logout handles GET /logout: the cookie is cleared and the token's jti
// is blacklisted until its natural expiry so the bearer copy dies too.
func (s *Server) Logout(c *fiber.Ctx) error {
	tokenString := c.Cookies(accessCookie)
	if tokenString == "" {
		if parts := strings.Split(c.Get("Authorization"), " "); len(parts) == 2 && parts[0] == "Bearer" {
			tokenString = parts[1]
		}
	}

	if tokenString != "" && s.redis != nil {
		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fiber.NewError(fiber.StatusUnauthorized, "Invalid signing method")
			}
			return []byte(s.config.JWTSecret), nil
		})
		if err == nil && token.Valid {
			if claims, ok := token.Claims.(jwt.MapClaims); ok {
				jti, _ := claims["jti"].(string)
				if jti != "" {
					ttl := accessTokenTTL
					if exp, expErr := claims.GetExpirationTime(); expErr == nil && exp != nil {
						ttl = time.Until(exp.Time)
					}
					if ttl > 0 {
						s.redis.Set(c.Context(), "blacklist:"+jti, "1", ttl)
					}
				}
			}
		}
	}

	s.setAccessCookie(c, "", time.Now().Add(-time.Hour))

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Logged out successfully",
	})
}

// ForgotPassword handles POST /forgot-password by mailing a short-lived
// reset link.
func (s *Server) ForgotPassword(c *fiber.Ctx) error {
	var req struct {
		Email string `json:"email"`
	}
	if err := c.BodyParser(&req); err != nil || req.Email == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Please provide a valid email!"))
	}

	user, err := s.userRepo.GetByEmail(c.Context(), validation.NormalizeEmail(req.Email))
	if err != nil {
		return models.Respond(c, err)
	}
	if user == nil {
		return models.Respond(c, models.NewNotFoundError("User", req.Email))
	}

	token, err := s.signScopedToken("password_reset", jwt.MapClaims{
		"sub": strconv.FormatUint(uint64(user.ID), 10),
	}, resetTokenTTL)
	if err != nil {
		return models.Respond(c, models.NewInternalError(err))
	}

	link := fmt.Sprintf("%s/reset-password?token=%s", s.config.ClientURL, token)
	if err := s.mailer.SendPasswordReset(c.Context(), user.Email, user.Name, link); err != nil {
		return models.Respond(c, models.NewUpstreamError("mail delivery", err))
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": fmt.Sprintf("Please check your email: %s to reset your password!", user.Email),
	})
}

// ResetPassword handles POST /reset-password. Reusing the current
// password is rejected.
func (s *Server) ResetPassword(c *fiber.Ctx) error {
	var req struct {
		Token       string `json:"token"`
		NewPassword string `json:"newPassword"`
	}
	if err := c.BodyParser(&req); err != nil || req.Token == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Reset token is required"))
	}

	claims, err := s.parseScopedToken(req.Token, "password_reset")
	if err != nil {
		return models.Respond(c, err)
	}
	sub, _ := claims["sub"].(string)
	userID, err := strconv.ParseUint(sub, 10, 32)
	if err != nil {
		return models.Respond(c, models.NewUnauthorizedError("Invalid reset token"))
	}

	password := strings.TrimSpace(req.NewPassword)
	if err := validation.ValidatePassword(password); err != nil {
		return models.Respond(c, err)
	}

	user, err := s.userRepo.GetByID(c.Context(), uint(userID))
	if err != nil {
		return models.Respond(c, err)
	}
	if cmpErr := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); cmpErr == nil {
		return models.Respond(c,
			models.NewValidationError("New password must be different from the previous one!"))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return models.Respond(c, models.NewInternalError(err))
	}
	if err := s.userService.ChangePassword(c.Context(), user.ID, string(hash)); err != nil {
		return models.Respond(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": "Password reset successfully, now you can login with the new password!",
	})
}

// generateToken creates a JWT access token for the given user ID and username
func (s *Server) generateToken(userID uint, username string) (string, error) {
	if s.config.JWTSecret == "" {
		return "", fmt.Errorf("JWT secret not configured")
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"sub":      strconv.FormatUint(uint64(userID), 10), // Subject (user ID as string)
		"username": username,                               // Username (cached in token)
		"iss":      tokenIssuer,                            // Issuer
		"aud":      tokenAudience,                          // Audience
		"exp":      now.Add(accessTokenTTL).Unix(),         // Expiration (7 days)
		"iat":      now.Unix(),                             // Issued at
		"nbf":      now.Unix(),                             // Not before
		"jti":      s.generateJTI(),                        // JWT ID (unique identifier)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.config.JWTSecret))
}

// generateJTI creates a unique JWT ID to prevent replay attacks
func (s *Server) generateJTI() string {
	return fmt.Sprintf("%d-%s", time.Now().Unix(), uuid.New().String()[:8])
}

// signScopedToken issues a short-lived single-purpose token (activation,
// password reset) signed with the activation key.
func (s *Server) signScopedToken(purpose string, claims jwt.MapClaims, ttl time.Duration) (string, error) {
	now := time.Now()
	claims["purpose"] = purpose
	claims["iss"] = tokenIssuer
	claims["exp"] = now.Add(ttl).Unix()
	claims["iat"] = now.Unix()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.config.ActivationKey()))
}

// parseScopedToken validates a single-purpose token and returns its claims.
func (s *Server) parseScopedToken(tokenString, purpose string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fiber.NewError(fiber.StatusUnauthorized, "Invalid signing method")
		}
		return []byte(s.config.ActivationKey()), nil
	})
	if err != nil || !token.Valid {
		return nil, models.NewUnauthorizedError("Invalid or expired token")
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, models.NewUnauthorizedError("Invalid token claims")
	}
	if p, _ := claims["purpose"].(string); p != purpose {
		return nil, models.NewUnauthorizedError("Invalid token purpose")
	}
	return claims, nil
}

// setAccessCookie writes or clears the HTTP-only access token cookie.
func (s *Server) setAccessCookie(c *fiber.Ctx, token string, expires time.Time) {
	c.Cookie(&fiber.Cookie{
		Name:     accessCookie,
		Value:    token,
		Expires:  expires,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
		Secure:   s.config.Env == "production",
		Path:     "/",
	})
}

// generateUsername derives a handle from the display name: the name
// without spaces plus a random suffix.
func generateUsername(name string) string {
	base := strings.ReplaceAll(name, " ", "")
	return fmt.Sprintf("%s%d", base, rand.Intn(1000))
}
