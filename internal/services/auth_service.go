package services

import (
	"context"
	cryptorand "crypto/rand"
	"crypto/subtle"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/golang-jwt/jwt/v5"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"golang.org/x/crypto/argon2"

	"github.com/meridianbank/core/internal/models"
	"github.com/meridianbank/core/internal/scoring"
)

const (
	maxFailedLogins = 5
	lockoutDuration = 15 * time.Minute
)

type AuthService struct {
	db        *sql.DB
	redis     *redis.Client
	validator *ValidationHelper
}

// LoginRequest represents the login request payload
// @Description Login request structure
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email" example:"user@example.com"`
	Password string `json:"password" validate:"required,min=6" example:"password123"`
}

// RegisterRequest represents the registration request payload
// @Description Registration request structure
type RegisterRequest struct {
	Email       string `json:"email" validate:"required,email" example:"user@example.com"`
	Password    string `json:"password" validate:"required,min=6" example:"password123"`
	FirstName   string `json:"firstName" validate:"required,min=2" example:"John"`
	LastName    string `json:"lastName" validate:"required,min=2" example:"Doe"`
	SSN         string `json:"ssn" validate:"required,len=11" example:"123-45-6789"`
	PhoneNumber string `json:"phoneNumber" validate:"required" example:"+15551234567"`
}

// AuthResponse represents the authentication response
// @Description Authentication response structure
type AuthResponse struct {
	Token string      `json:"token" example:"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."`
	User  models.User `json:"user"`
}

func NewAuthService(db *sql.DB, redisClient *redis.Client) *AuthService {
	return &AuthService{
		db:        db,
		redis:     redisClient,
		validator: NewValidationHelper(),
	}
}

// Register handles user registration
// @Summary Register a new user
// @Description Register a user, their customer record and an initial checking account
// @Tags auth
// @Accept json
// @Produce json
// @Param request body RegisterRequest true "Registration request"
// @Success 200 {object} AuthResponse "Registration successful"
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /auth/register [post]
func (s *AuthService) Register(w http.ResponseWriter, r *http.Request) {
	logrus.Infof("[AUTH] Registration attempt from IP: %s", r.RemoteAddr)

	var req RegisterRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}
	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	hashedPassword, err := hashPassword(req.Password)
	if err != nil {
		logrus.Errorf("[AUTH] Password hashing failed for %s: %v", req.Email, err)
		SendErrorResponse(w, "An Internal Error Occurred", http.StatusInternalServerError, nil)
		return
	}

	accountID := generateAccountID()

	// Customer, checking account and login are created atomically
	tx, err := s.db.Begin()
	if err != nil {
		logrus.Errorf("[AUTH] Transaction start failed for %s: %v", req.Email, err)
		SendErrorResponse(w, "Failed to create user", http.StatusInternalServerError, nil)
		return
	}
	defer tx.Rollback()

	var customerID int
	err = tx.QueryRow(`
		INSERT INTO customers (ssn, first_name, last_name, email, phone_number, credit_score, risk_level, status, created_at, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), 'registration')
		RETURNING id`,
		req.SSN, req.FirstName, req.LastName, strings.ToLower(req.Email), req.PhoneNumber,
		scoring.BaseScore, scoring.RiskLevel(scoring.BaseScore), models.CustomerActive).Scan(&customerID)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			logrus.Warnf("[AUTH] Duplicate SSN on registration: %s", req.Email)
			SendErrorResponse(w, "Customer with this SSN already exists", http.StatusConflict, nil)
			return
		}
		logrus.Errorf("[AUTH] Customer creation failed for %s: %v", req.Email, err)
		SendErrorResponse(w, "Failed to create user", http.StatusInternalServerError, nil)
		return
	}

	_, err = tx.Exec(`
		INSERT INTO accounts (id, customer_id, account_type, balance, available_balance, overdraft_allowed, overdraft_limit, interest_rate_bp, status, version, created_at, created_by)
		VALUES ($1, $2, $3, 0, 0, false, 0, 0, $4, 1, NOW(), 'registration')`,
		accountID, customerID, models.AccountChecking, models.AccountActive)
	if err != nil {
		logrus.Errorf("[AUTH] Account creation failed for %s: %v", req.Email, err)
		SendErrorResponse(w, "Failed to create account", http.StatusInternalServerError, nil)
		return
	}

	var userID int
	err = tx.QueryRow(`
		INSERT INTO users (email, password, first_name, last_name, customer_id, account_id, phone_number, role)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 'customer')
		RETURNING id`,
		strings.ToLower(req.Email), hashedPassword, req.FirstName, req.LastName,
		customerID, accountID, req.PhoneNumber).Scan(&userID)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			SendErrorResponse(w, "Email Already Exists", http.StatusConflict, nil)
			return
		}
		logrus.Errorf("[AUTH] User creation failed for %s: %v", req.Email, err)
		SendErrorResponse(w, "Failed to create user", http.StatusInternalServerError, nil)
		return
	}

	if err = tx.Commit(); err != nil {
		logrus.Errorf("[AUTH] Transaction commit failed for %s: %v", req.Email, err)
		SendErrorResponse(w, "Failed to create user", http.StatusInternalServerError, nil)
		return
	}

	logrus.Infof("[AUTH] User created - ID: %d, customer: %d, account: %s", userID, customerID, accountID)

	token, err := generateJWT(userID)
	if err != nil {
		logrus.Errorf("[AUTH] JWT generation failed for user %d: %v", userID, err)
		SendErrorResponse(w, "Failed to generate token", http.StatusInternalServerError, nil)
		return
	}

	response := AuthResponse{
		Token: token,
		User: models.User{
			ID:          userID,
			Email:       strings.ToLower(req.Email),
			FirstName:   req.FirstName,
			LastName:    req.LastName,
			CustomerID:  customerID,
			AccountID:   accountID,
			PhoneNumber: req.PhoneNumber,
			Role:        "customer",
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// Login handles user authentication
// @Summary Login user
// @Description Authenticate user with email and password
// @Tags auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login request"
// @Success 200 {object} AuthResponse "Login successful"
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 423 {object} ErrorResponse
// @Router /auth/login [post]
func (s *AuthService) Login(w http.ResponseWriter, r *http.Request) {
	logrus.Infof("[AUTH] Login attempt from IP: %s", r.RemoteAddr)

	var req LoginRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}
	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	var user models.User
	var hashedPassword string
	err := s.db.QueryRow(`
		SELECT id, email, first_name, last_name, password, customer_id, account_id, phone_number, role,
		       failed_login_attempts, locked_until
		FROM users
		WHERE email = $1`, strings.ToLower(req.Email)).Scan(
		&user.ID, &user.Email, &user.FirstName, &user.LastName, &hashedPassword,
		&user.CustomerID, &user.AccountID, &user.PhoneNumber, &user.Role,
		&user.FailedLoginAttempts, &user.LockedUntil)
	if err != nil {
		logrus.Warnf("[AUTH] User not found for email: %s", req.Email)
		SendErrorResponse(w, "Invalid credentials", http.StatusUnauthorized, nil)
		return
	}

	if user.LockedUntil != nil && user.LockedUntil.After(time.Now()) {
		logrus.Warnf("[AUTH] Locked account login attempt: %s", req.Email)
		SendErrorResponse(w, "Account locked, try again later", http.StatusLocked, nil)
		return
	}

	if !verifyPassword(req.Password, hashedPassword) {
		s.recordFailedLogin(&user)
		SendErrorResponse(w, "Invalid credentials", http.StatusUnauthorized, nil)
		return
	}

	if _, err := s.db.Exec(`
		UPDATE users SET failed_login_attempts = 0, locked_until = NULL, last_login = NOW() WHERE id = $1`,
		user.ID); err != nil {
		logrus.Warnf("[AUTH] Failed to reset login counters for %d: %v", user.ID, err)
	}

	token, err := generateJWT(user.ID)
	if err != nil {
		logrus.Errorf("[AUTH] JWT generation failed for user %d: %v", user.ID, err)
		SendErrorResponse(w, "Failed to generate token", http.StatusInternalServerError, nil)
		return
	}

	logrus.Infof("[AUTH] Login successful for user %d", user.ID)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(AuthResponse{Token: token, User: user})
}

// Logout handles user logout
// @Summary Logout user
// @Description Logout user and blacklist token
// @Tags auth
// @Produce json
// @Success 200 {object} map[string]string "Logout successful"
// @Router /auth/logout [post]
func (s *AuthService) Logout(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get("Authorization")
	if token != "" && len(token) > 7 {
		token = token[7:]

		if s.redis != nil {
			ctx := context.Background()
			key := fmt.Sprintf("blacklist:%s", token)
			// Blacklist token until its expiration
			expiry := time.Duration(viper.GetInt("jwt.expiry_hours")) * time.Hour
			if err := s.redis.Set(ctx, key, "1", expiry).Err(); err != nil {
				logrus.Warnf("[AUTH] Failed to blacklist token: %v", err)
			}
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Logout successful"})
}

// GetUserAccount retrieves the authenticated user's profile
// @Summary Get user account details
// @Description Get authenticated user's profile and linked customer record
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.User "User account details"
// @Failure 401 {object} ErrorResponse
// @Router /auth/account [get]
func (s *AuthService) GetUserAccount(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("userID")
	if userID == nil {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var user models.User
	err := s.db.QueryRow(`
		SELECT id, email, first_name, last_name, customer_id, account_id, phone_number, role
		FROM users
		WHERE id = $1`, userID).Scan(
		&user.ID, &user.Email, &user.FirstName, &user.LastName,
		&user.CustomerID, &user.AccountID, &user.PhoneNumber, &user.Role)
	if err != nil {
		if err == sql.ErrNoRows {
			SendErrorResponse(w, "User not found", http.StatusNotFound, nil)
		} else {
			logrus.Errorf("[AUTH] Failed to fetch user %v: %v", userID, err)
			SendErrorResponse(w, "Failed to fetch user details", http.StatusInternalServerError, nil)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(user)
}

func (s *AuthService) recordFailedLogin(user *models.User) {
	attempts := user.FailedLoginAttempts + 1
	if attempts >= maxFailedLogins {
		lockedUntil := time.Now().Add(lockoutDuration)
		if _, err := s.db.Exec(`
			UPDATE users SET failed_login_attempts = $1, locked_until = $2 WHERE id = $3`,
			attempts, lockedUntil, user.ID); err != nil {
			logrus.Warnf("[AUTH] Failed to lock user %d: %v", user.ID, err)
		}
		logrus.Warnf("[AUTH] User %d locked after %d failed attempts", user.ID, attempts)
		return
	}

	if _, err := s.db.Exec(`
		UPDATE users SET failed_login_attempts = $1 WHERE id = $2`,
		attempts, user.ID); err != nil {
		logrus.Warnf("[AUTH] Failed to record failed login for %d: %v", user.ID, err)
	}
}

func generateJWT(userID int) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"nameid":  userID,
		"exp":     time.Now().Add(time.Duration(viper.GetInt("jwt.expiry_hours")) * time.Hour).Unix(),
	})

	return token.SignedString([]byte(viper.GetString("jwt.secret_key")))
}

func hashPassword(password string) (string, error) {
	salt := make([]byte, viper.GetInt("argon2.salt_length"))
	if _, err := cryptorand.Read(salt); err != nil {
		return "", err
	}

	hash := argon2.IDKey([]byte(password), salt,
		uint32(viper.GetInt("argon2.time")),
		uint32(viper.GetInt("argon2.memory")),
		uint8(viper.GetInt("argon2.threads")),
		uint32(viper.GetInt("argon2.key_length")))
	return fmt.Sprintf("%s$%s", base64.StdEncoding.EncodeToString(salt), base64.StdEncoding.EncodeToString(hash)), nil
}

func verifyPassword(password, hashedPassword string) bool {
	parts := strings.Split(hashedPassword, "$")
	if len(parts) != 2 {
		return false
	}

	salt, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		return false
	}

	hash, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return false
	}

	computedHash := argon2.IDKey([]byte(password), salt,
		uint32(viper.GetInt("argon2.time")),
		uint32(viper.GetInt("argon2.memory")),
		uint8(viper.GetInt("argon2.threads")),
		uint32(viper.GetInt("argon2.key_length")))
	return subtle.ConstantTimeCompare(hash, computedHash) == 1
}
