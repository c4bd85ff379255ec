package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/geocontrol/parental-api/internal/domain"
	"github.com/geocontrol/parental-api/internal/domain/entity"
	repo "github.com/geocontrol/parental-api/internal/domain/repository"
	"github.com/geocontrol/parental-api/pkg/helpers"
	"github.com/geocontrol/parental-api/pkg/mailer"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserInactive       = errors.New("account is deactivated")
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{3,50}$`)

// Service orchestrates the user account lifecycle. It holds no per-request
// state; every operation runs to completion against the injected
// collaborators. Redis, Elasticsearch, and the publisher are optional and
// nil-guarded so the core lifecycle works without them.
type Service struct {
	Repo            repo.UserRepository
	Hasher          *helpers.Hasher
	JWT             *helpers.JWTManager
	Redis           *redis.Client
	Logger          *logrus.Logger
	ES              *elasticsearch.Client
	ESUsersIndex    string
	Pub             *helpers.RabbitPublisher
	MailEnabled     bool
	UsernameEnabled bool
}

func NewService(r repo.UserRepository, hasher *helpers.Hasher, jwt *helpers.JWTManager, rdb *redis.Client, logger *logrus.Logger, es *elasticsearch.Client, esUsersIndex string, pub *helpers.RabbitPublisher, mailEnabled, usernameEnabled bool) *Service {
	return &Service{
		Repo:            r,
		Hasher:          hasher,
		JWT:             jwt,
		Redis:           rdb,
		Logger:          logger,
		ES:              es,
		ESUsersIndex:    esUsersIndex,
		Pub:             pub,
		MailEnabled:     mailEnabled,
		UsernameEnabled: usernameEnabled,
	}
}

func sessionKey(userID string) string {
	return "user:session:" + userID
}

func nowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// Field validation. Explicit per-field checks instead of a generic copy;
// each returns a domain.ValidationError naming the offending field.

func validateEmail(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return &domain.ValidationError{Field: "email", Reason: "must be a valid email address"}
	}
	return nil
}

func validateUsername(username string) error {
	if !usernamePattern.MatchString(username) {
		return &domain.ValidationError{Field: "username", Reason: "must be 3-50 characters of letters, digits, underscore or dash"}
	}
	return nil
}

func validatePassword(plain string) error {
	if err := helpers.ValidatePassword(plain); err != nil {
		return &domain.ValidationError{Field: "password", Reason: err.Error()}
	}
	return nil
}

// normalizeFullName trims the value and treats blank strings as absent.
// The 100-character bound counts runes, matching the binding-layer max tag.
func normalizeFullName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if utf8.RuneCountInString(name) > 100 {
		return "", &domain.ValidationError{Field: "full_name", Reason: "must be at most 100 characters long"}
	}
	return name, nil
}

// Lifecycle operations

type CreateUserInput struct {
	Username string
	Email    string
	FullName string
	Password string
}

// Create registers a new account. Email (and username, when the feature is
// enabled) is pre-checked for uniqueness; the database unique constraint
// remains the authoritative guard under concurrent creates.
func (s *Service) Create(ctx context.Context, in CreateUserInput) (*entity.Projection, error) {
	in.Email = strings.TrimSpace(in.Email)
	if err := validateEmail(in.Email); err != nil {
		return nil, err
	}
	if err := validatePassword(in.Password); err != nil {
		return nil, err
	}
	if !s.UsernameEnabled {
		in.Username = ""
	}
	if in.Username != "" {
		if err := validateUsername(in.Username); err != nil {
			return nil, err
		}
	}
	fullName, err := normalizeFullName(in.FullName)
	if err != nil {
		return nil, err
	}

	if existing, err := s.Repo.GetByEmail(ctx, in.Email); err == nil && existing != nil {
		return nil, &domain.ConflictError{Field: "email"}
	} else if err != nil && !errors.Is(err, domain.ErrUserNotFound) {
		return nil, err
	}
	if in.Username != "" {
		if existing, err := s.Repo.GetByUsername(ctx, in.Username); err == nil && existing != nil {
			return nil, &domain.ConflictError{Field: "username"}
		} else if err != nil && !errors.Is(err, domain.ErrUserNotFound) {
			return nil, err
		}
	}

	hash, err := s.Hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrHashUnavailable, err)
	}

	u := &entity.User{
		Username: in.Username,
		Email:    in.Email,
		FullName: fullName,
		Password: hash,
		IsActive: true,
	}
	if err := s.Repo.Create(ctx, u); err != nil {
		return nil, err
	}

	s.enqueueEmail(ctx, u.Email, "welcome", map[string]any{
		"Name":  u.Identity(),
		"Email": u.Email,
	})
	s.indexUser(ctx, u)
	if s.Logger != nil {
		s.Logger.WithFields(logrus.Fields{"user_id": u.ID, "email": u.Email}).Info("user created")
	}
	return u.Projection(), nil
}

// List returns a page of projections in insertion order. skip and limit are
// clamped to skip >= 0 and 1 <= limit <= 1000 (default 100).
func (s *Service) List(ctx context.Context, skip, limit int) ([]*entity.Projection, error) {
	if skip < 0 {
		skip = 0
	}
	if limit < 1 {
		limit = 100
	}
	if limit > 1000 {
		limit = 1000
	}
	users, err := s.Repo.List(ctx, skip, limit)
	if err != nil {
		return nil, err
	}
	out := make([]*entity.Projection, 0, len(users))
	for i := range users {
		out = append(out, users[i].Projection())
	}
	return out, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (*entity.Projection, error) {
	u, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return u.Projection(), nil
}

func (s *Service) GetByUsername(ctx context.Context, username string) (*entity.Projection, error) {
	if !s.UsernameEnabled {
		return nil, domain.ErrUserNotFound
	}
	u, err := s.Repo.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	return u.Projection(), nil
}

// UpdateUserInput carries a partial update; nil pointers mean "leave as is".
type UpdateUserInput struct {
	Username *string
	Email    *string
	FullName *string
	Password *string
	IsActive *bool
}

// Update applies a partial update. Each present field is re-validated; email
// and username are re-checked for uniqueness only when they actually change.
func (s *Service) Update(ctx context.Context, id string, in UpdateUserInput) (*entity.Projection, error) {
	u, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Username != nil && s.UsernameEnabled && *in.Username != u.Username {
		if err := validateUsername(*in.Username); err != nil {
			return nil, err
		}
		if existing, err := s.Repo.GetByUsername(ctx, *in.Username); err == nil && existing != nil && existing.ID != u.ID {
			return nil, &domain.ConflictError{Field: "username"}
		} else if err != nil && !errors.Is(err, domain.ErrUserNotFound) {
			return nil, err
		}
		u.Username = *in.Username
	}

	if in.Email != nil && *in.Email != u.Email {
		if err := validateEmail(*in.Email); err != nil {
			return nil, err
		}
		if existing, err := s.Repo.GetByEmail(ctx, *in.Email); err == nil && existing != nil && existing.ID != u.ID {
			return nil, &domain.ConflictError{Field: "email"}
		} else if err != nil && !errors.Is(err, domain.ErrUserNotFound) {
			return nil, err
		}
		u.Email = *in.Email
	}

	if in.FullName != nil {
		name, err := normalizeFullName(*in.FullName)
		if err != nil {
			return nil, err
		}
		u.FullName = name
	}

	if in.Password != nil {
		if err := validatePassword(*in.Password); err != nil {
			return nil, err
		}
		hash, err := s.Hasher.Hash(*in.Password)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrHashUnavailable, err)
		}
		u.Password = hash
	}

	if in.IsActive != nil {
		u.IsActive = *in.IsActive
	}

	if err := s.Repo.Update(ctx, u); err != nil {
		return nil, err
	}
	s.indexUser(ctx, u)
	return u.Projection(), nil
}

// DeleteResult confirms a hard delete, referencing the removed identity.
type DeleteResult struct {
	Message string `json:"message"`
}

func (s *Service) Delete(ctx context.Context, id string) (*DeleteResult, error) {
	u, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.Repo.Delete(ctx, id); err != nil {
		return nil, err
	}
	s.removeUserIndex(ctx, id)
	if s.Logger != nil {
		s.Logger.WithFields(logrus.Fields{"user_id": id}).Info("user deleted")
	}
	return &DeleteResult{Message: fmt.Sprintf("User %s deleted successfully", u.Identity())}, nil
}

// Activate flips is_active to true. Flipping an already-active account is a
// no-op success, not an error.
func (s *Service) Activate(ctx context.Context, id string) (*entity.Projection, error) {
	return s.setActive(ctx, id, true)
}

// Deactivate flips is_active to false, idempotently.
func (s *Service) Deactivate(ctx context.Context, id string) (*entity.Projection, error) {
	return s.setActive(ctx, id, false)
}

func (s *Service) setActive(ctx context.Context, id string, active bool) (*entity.Projection, error) {
	u, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	changed := u.IsActive != active
	u.IsActive = active
	// Persist even when the flag was already at the target value.
	if err := s.Repo.Update(ctx, u); err != nil {
		return nil, err
	}
	s.indexUser(ctx, u)
	if changed {
		state := "deactivated"
		if active {
			state = "activated"
		}
		s.enqueueEmail(ctx, u.Email, "account_status", map[string]any{
			"Name":  u.Identity(),
			"State": state,
		})
	}
	return u.Projection(), nil
}

// ChangePassword verifies the current password before applying a new one.
func (s *Service) ChangePassword(ctx context.Context, id, current, newPassword string) error {
	u, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !s.Hasher.Check(current, u.Password) {
		return ErrInvalidCredentials
	}
	if err := validatePassword(newPassword); err != nil {
		return err
	}
	hash, err := s.Hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrHashUnavailable, err)
	}
	u.Password = hash
	return s.Repo.Update(ctx, u)
}

// Delegated identity

type TokenPair struct {
	AccessToken        string
	AccessTokenExpiry  time.Time
	RefreshToken       string
	RefreshTokenExpiry time.Time
}

type LoginResponse struct {
	UserID   string `json:"user_id"`
	Email    string `json:"email"`
	Username string `json:"username,omitempty"`
}

// Authenticate validates email/password. Deactivated accounts cannot log in.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*entity.User, error) {
	u, err := s.Repo.GetByEmail(ctx, email)
	if err != nil || u == nil {
		return nil, ErrInvalidCredentials
	}
	if !s.Hasher.Check(password, u.Password) {
		return nil, ErrInvalidCredentials
	}
	if !u.IsActive {
		return nil, ErrUserInactive
	}
	return u, nil
}

// IssueTokens generates access/refresh tokens and records a session in Redis.
func (s *Service) IssueTokens(ctx context.Context, u *entity.User) (TokenPair, error) {
	sid := uuid.NewString()
	access, aexp, err := s.JWT.GenerateAccessToken(u.ID, sid)
	if err != nil {
		if s.Logger != nil {
			s.Logger.WithError(err).WithField("user_id", u.ID).Error("generate access token failed")
		}
		return TokenPair{}, err
	}
	refresh, rexp, err := s.JWT.GenerateRefreshToken(u.ID, sid)
	if err != nil {
		if s.Logger != nil {
			s.Logger.WithError(err).WithField("user_id", u.ID).Error("generate refresh token failed")
		}
		return TokenPair{}, err
	}

	if s.Redis != nil {
		fields := map[string]any{
			"user_id":    u.ID,
			"email":      u.Email,
			"username":   u.Username,
			"sid":        sid,
			"logged_in":  true,
			"created_at": nowRFC3339(),
		}
		key := sessionKey(u.ID)
		pipe := s.Redis.Pipeline()
		pipe.HSet(ctx, key, fields)
		pipe.Expire(ctx, key, 24*time.Hour)
		if _, rErr := pipe.Exec(ctx); rErr != nil && s.Logger != nil {
			s.Logger.WithError(rErr).WithField("key", key).Warn("redis pipeline failed")
		}
	}

	return TokenPair{AccessToken: access, AccessTokenExpiry: aexp, RefreshToken: refresh, RefreshTokenExpiry: rexp}, nil
}

func (s *Service) Login(ctx context.Context, email, password string) (*LoginResponse, TokenPair, error) {
	u, err := s.Authenticate(ctx, email, password)
	if err != nil {
		return nil, TokenPair{}, err
	}
	pair, err := s.IssueTokens(ctx, u)
	if err != nil {
		return nil, TokenPair{}, err
	}
	return &LoginResponse{UserID: u.ID, Email: u.Email, Username: u.Username}, pair, nil
}

// Logout drops the server-side session so outstanding refresh tokens stop
// working immediately instead of riding out their TTL.
func (s *Service) Logout(ctx context.Context, userID string) {
	if s.Redis == nil || userID == "" {
		return
	}
	if err := s.Redis.Del(ctx, sessionKey(userID)).Err(); err != nil && s.Logger != nil {
		s.Logger.WithError(err).WithField("user_id", userID).Warn("session delete failed")
	}
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, string, error) {
	claims, err := s.JWT.ParseRefreshToken(refreshToken)
	if err != nil {
		return TokenPair{}, "", ErrInvalidCredentials
	}
	u, err := s.Repo.GetByID(ctx, claims.UserID)
	if err != nil || u == nil {
		return TokenPair{}, "", ErrInvalidCredentials
	}
	if !u.IsActive {
		return TokenPair{}, "", ErrUserInactive
	}
	// Validate current session id matches the token's sid
	if s.Redis != nil {
		key := sessionKey(u.ID)
		data, rErr := s.Redis.HGetAll(ctx, key).Result()
		if rErr != nil || len(data) == 0 || data["sid"] != claims.SessionID {
			return TokenPair{}, "", ErrInvalidCredentials
		}
	}
	pair, err := s.IssueTokens(ctx, u)
	if err != nil {
		return TokenPair{}, "", err
	}
	return pair, u.ID, nil
}

// Search and index maintenance

func (s *Service) indexUser(ctx context.Context, u *entity.User) {
	if s.ES == nil || s.ESUsersIndex == "" {
		return
	}
	b, _ := json.Marshal(u.Projection())
	req := esapi.IndexRequest{Index: s.ESUsersIndex, DocumentID: u.ID, Body: strings.NewReader(string(b)), Refresh: "false"}
	c, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	res, err := req.Do(c, s.ES)
	if err != nil {
		if s.Logger != nil {
			s.Logger.WithError(err).WithField("user_id", u.ID).Warn("es index failed")
		}
		return
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() && s.Logger != nil {
		s.Logger.WithField("status", res.Status()).WithField("user_id", u.ID).Warn("es index response error")
	}
}

func (s *Service) removeUserIndex(ctx context.Context, id string) {
	if s.ES == nil || s.ESUsersIndex == "" {
		return
	}
	req := esapi.DeleteRequest{Index: s.ESUsersIndex, DocumentID: id}
	c, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	res, err := req.Do(c, s.ES)
	if err != nil {
		if s.Logger != nil {
			s.Logger.WithError(err).WithField("user_id", id).Warn("es delete failed")
		}
		return
	}
	_ = res.Body.Close()
}

// SearchUsers performs a multi_match search on email, username and full name.
func (s *Service) SearchUsers(ctx context.Context, q string, size int) ([]map[string]any, error) {
	if s.ES == nil || s.ESUsersIndex == "" {
		return []map[string]any{}, nil
	}
	if size <= 0 || size > 50 {
		size = 10
	}
	query := map[string]any{
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":  q,
				"fields": []string{"email^2", "username^2", "full_name"},
			},
		},
		"size": size,
	}
	b, _ := json.Marshal(query)

	c, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	res, err := s.ES.Search(s.ES.Search.WithContext(c), s.ES.Search.WithIndex(s.ESUsersIndex), s.ES.Search.WithBody(strings.NewReader(string(b))))
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Body.Close() }()

	var parsed struct {
		Hits struct {
			Hits []struct {
				ID     string         `json:"_id"`
				Source map[string]any `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, err
	}

	out := make([]map[string]any, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		out = append(out, h.Source)
	}
	return out, nil
}

func (s *Service) enqueueEmail(ctx context.Context, to, template string, data map[string]any) {
	if s.Pub == nil || !s.MailEnabled {
		return
	}
	job := mailer.EmailJob{To: to, Template: template, Data: data}
	if err := s.Pub.PublishJSON(ctx, job); err != nil && s.Logger != nil {
		s.Logger.WithError(err).WithField("template", template).Warn("failed to publish email job")
	}
}

// ResetPassword replaces the password without checking the current one. Used
// by the token-based reset flow after the token proves account ownership.
func (s *Service) ResetPassword(ctx context.Context, id, newPassword string) error {
	u, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := validatePassword(newPassword); err != nil {
		return err
	}
	hash, err := s.Hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrHashUnavailable, err)
	}
	u.Password = hash
	return s.Repo.Update(ctx, u)
}
