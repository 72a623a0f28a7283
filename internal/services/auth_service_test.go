package services

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-redis/redismock/v8"
	"github.com/lib/pq"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func setupAuthConfig() {
	viper.Set("argon2.time", 1)
	viper.Set("argon2.memory", 64*1024)
	viper.Set("argon2.threads", 4)
	viper.Set("argon2.key_length", 32)
	viper.Set("argon2.salt_length", 16)
	viper.Set("jwt.secret_key", "test-secret")
	viper.Set("jwt.expiry_hours", 1)
}

func TestPasswordHashing(t *testing.T) {
	setupAuthConfig()

	hash, err := hashPassword("password123")
	assert.NoError(t, err)
	assert.NotEqual(t, "password123", hash)

	assert.True(t, verifyPassword("password123", hash))
	assert.False(t, verifyPassword("wrong-password", hash))
	assert.False(t, verifyPassword("password123", "malformed"))

	// fresh salt yields a different encoding that still verifies
	hash2, err := hashPassword("password123")
	assert.NoError(t, err)
	assert.NotEqual(t, hash, hash2)
	assert.True(t, verifyPassword("password123", hash2))
}

func TestAuthService_Register(t *testing.T) {
	setupAuthConfig()

	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	redisClient, _ := redismock.NewClientMock()
	service := NewAuthService(db, redisClient)

	validBody := func() []byte {
		body, _ := json.Marshal(map[string]string{
			"email":       "John@Example.com",
			"password":    "password123",
			"firstName":   "John",
			"lastName":    "Doe",
			"ssn":         "123-45-6789",
			"phoneNumber": "+15551234567",
		})
		return body
	}

	t.Run("successful registration", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("INSERT INTO customers").
			WithArgs("123-45-6789", "John", "Doe", "john@example.com", "+15551234567", 600, "HIGH", "ACTIVE").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
		mock.ExpectExec("INSERT INTO accounts").
			WithArgs(sqlmock.AnyArg(), 1, "CHECKING", "ACTIVE").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectQuery("INSERT INTO users").
			WithArgs("john@example.com", sqlmock.AnyArg(), "John", "Doe", 1, sqlmock.AnyArg(), "+15551234567").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(5))
		mock.ExpectCommit()

		req := httptest.NewRequest("POST", "/auth/register", bytes.NewBuffer(validBody()))
		w := httptest.NewRecorder()

		service.Register(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		var response AuthResponse
		json.Unmarshal(w.Body.Bytes(), &response)
		assert.NotEmpty(t, response.Token)
		assert.Equal(t, 5, response.User.ID)
		assert.Equal(t, 1, response.User.CustomerID)
		assert.Equal(t, "john@example.com", response.User.Email)
		assert.Len(t, response.User.AccountID, 10)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate SSN rejected", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("INSERT INTO customers").
			WithArgs("123-45-6789", "John", "Doe", "john@example.com", "+15551234567", 600, "HIGH", "ACTIVE").
			WillReturnError(&pq.Error{Code: "23505"})
		mock.ExpectRollback()

		req := httptest.NewRequest("POST", "/auth/register", bytes.NewBuffer(validBody()))
		w := httptest.NewRecorder()

		service.Register(w, req)

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("short password rejected", func(t *testing.T) {
		body, _ := json.Marshal(map[string]string{
			"email":       "john@example.com",
			"password":    "short",
			"firstName":   "John",
			"lastName":    "Doe",
			"ssn":         "123-45-6789",
			"phoneNumber": "+15551234567",
		})
		req := httptest.NewRequest("POST", "/auth/register", bytes.NewBuffer(body))
		w := httptest.NewRecorder()

		service.Register(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestAuthService_Login(t *testing.T) {
	setupAuthConfig()

	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	redisClient, _ := redismock.NewClientMock()
	service := NewAuthService(db, redisClient)

	hash, err := hashPassword("password123")
	assert.NoError(t, err)

	userColumns := []string{
		"id", "email", "first_name", "last_name", "password", "customer_id",
		"account_id", "phone_number", "role", "failed_login_attempts", "locked_until",
	}

	loginBody := func(password string) []byte {
		body, _ := json.Marshal(map[string]string{
			"email":    "john@example.com",
			"password": password,
		})
		return body
	}

	t.Run("successful login", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, email, first_name").
			WithArgs("john@example.com").
			WillReturnRows(sqlmock.NewRows(userColumns).
				AddRow(5, "john@example.com", "John", "Doe", hash, 1, "1234567890", "+15551234567", "customer", 0, nil))
		mock.ExpectExec("UPDATE users SET failed_login_attempts = 0").
			WithArgs(5).
			WillReturnResult(sqlmock.NewResult(0, 1))

		req := httptest.NewRequest("POST", "/auth/login", bytes.NewBuffer(loginBody("password123")))
		w := httptest.NewRecorder()

		service.Login(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		var response AuthResponse
		json.Unmarshal(w.Body.Bytes(), &response)
		assert.NotEmpty(t, response.Token)
		assert.Equal(t, 5, response.User.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("wrong password counted", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, email, first_name").
			WithArgs("john@example.com").
			WillReturnRows(sqlmock.NewRows(userColumns).
				AddRow(5, "john@example.com", "John", "Doe", hash, 1, "1234567890", "+15551234567", "customer", 0, nil))
		mock.ExpectExec("UPDATE users SET failed_login_attempts").
			WithArgs(1, 5).
			WillReturnResult(sqlmock.NewResult(0, 1))

		req := httptest.NewRequest("POST", "/auth/login", bytes.NewBuffer(loginBody("wrong-password")))
		w := httptest.NewRecorder()

		service.Login(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("fifth failure locks the account", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, email, first_name").
			WithArgs("john@example.com").
			WillReturnRows(sqlmock.NewRows(userColumns).
				AddRow(5, "john@example.com", "John", "Doe", hash, 1, "1234567890", "+15551234567", "customer", 4, nil))
		mock.ExpectExec("UPDATE users SET failed_login_attempts").
			WithArgs(5, sqlmock.AnyArg(), 5).
			WillReturnResult(sqlmock.NewResult(0, 1))

		req := httptest.NewRequest("POST", "/auth/login", bytes.NewBuffer(loginBody("wrong-password")))
		w := httptest.NewRecorder()

		service.Login(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("locked account rejected", func(t *testing.T) {
		lockedUntil := time.Now().Add(10 * time.Minute)
		mock.ExpectQuery("SELECT id, email, first_name").
			WithArgs("john@example.com").
			WillReturnRows(sqlmock.NewRows(userColumns).
				AddRow(5, "john@example.com", "John", "Doe", hash, 1, "1234567890", "+15551234567", "customer", 5, lockedUntil))

		req := httptest.NewRequest("POST", "/auth/login", bytes.NewBuffer(loginBody("password123")))
		w := httptest.NewRecorder()

		service.Login(w, req)

		assert.Equal(t, http.StatusLocked, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown email rejected", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, email, first_name").
			WithArgs("ghost@example.com").
			WillReturnError(assert.AnError)

		body, _ := json.Marshal(map[string]string{
			"email":    "ghost@example.com",
			"password": "password123",
		})
		req := httptest.NewRequest("POST", "/auth/login", bytes.NewBuffer(body))
		w := httptest.NewRecorder()

		service.Login(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestAuthService_Logout(t *testing.T) {
	setupAuthConfig()

	db, _, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	redisClient, redisMock := redismock.NewClientMock()
	service := NewAuthService(db, redisClient)

	redisMock.ExpectSet("blacklist:some-token", "1", time.Hour).SetVal("OK")

	req := httptest.NewRequest("POST", "/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer some-token")
	w := httptest.NewRecorder()

	service.Logout(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NoError(t, redisMock.ExpectationsWereMet())
}
