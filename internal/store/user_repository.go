package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/teresa-solution/tenant-branding-service/internal/crypto"
	"github.com/teresa-solution/tenant-branding-service/internal/model"
)

// ErrDuplicateUser is returned when a user with the same email already exists
var ErrDuplicateUser = errors.New("user already exists")

// UserRepository handles database operations for users
type UserRepository struct {
	db DBTX
}

func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new user, assigning its ID and timestamps
func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	user.ID = uuid.New().String()
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt

	// Encrypt phone if provided
	if user.Phone != "" {
		encryptedPhone, iv, err := crypto.Encrypt(user.Phone)
		if err != nil {
			return err
		}
		user.EncryptedPhone = encryptedPhone
		user.PhoneIV = iv
	}

	query := `INSERT INTO users (id, tenant_id, name, company, email, encrypted_phone, phone_iv, password_hash, role, auth_method, created_at, updated_at)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := r.db.Exec(ctx, query, user.ID, user.TenantID, user.Name, user.Company, user.Email,
		user.EncryptedPhone, user.PhoneIV, user.PasswordHash, user.Role, string(user.AuthMethod),
		user.CreatedAt, user.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicateUser
	}
	return err
}

// GetByID retrieves a user by ID, returning nil, nil when it does not exist
func (r *UserRepository) GetByID(ctx context.Context, id string) (*model.User, error) {
	query := `SELECT id, tenant_id, name, company, email, encrypted_phone, phone_iv, password_hash, role, auth_method, push_tokens, created_at, updated_at
              FROM users WHERE id = $1`
	user := &model.User{}
	var method string
	err := r.db.QueryRow(ctx, query, id).Scan(&user.ID, &user.TenantID, &user.Name, &user.Company, &user.Email,
		&user.EncryptedPhone, &user.PhoneIV, &user.PasswordHash, &user.Role, &method, &user.PushTokens,
		&user.CreatedAt, &user.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	user.AuthMethod = model.LoginMethod(method)

	// Decrypt phone if encrypted
	if len(user.EncryptedPhone) > 0 && len(user.PhoneIV) > 0 {
		phone, err := crypto.Decrypt(user.EncryptedPhone, user.PhoneIV)
		if err != nil {
			return nil, err
		}
		user.Phone = phone
	}
	return user, nil
}

// AddPushToken adds token to the user's token set. Adding a token that is
// already present is a no-op and reports added=false.
func (r *UserRepository) AddPushToken(ctx context.Context, userID, token string) (bool, error) {
	query := `UPDATE users SET push_tokens = array_append(push_tokens, $2), updated_at = $3
              WHERE id = $1 AND NOT ($2 = ANY(push_tokens))`
	tag, err := r.db.Exec(ctx, query, userID, token, time.Now())
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() > 0 {
		return true, nil
	}

	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&exists); err != nil {
		return false, err
	}
	if !exists {
		return false, ErrNotFound
	}
	return false, nil
}
