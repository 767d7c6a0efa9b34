package payoutmethods

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gebeya-market/gebeya-backend/pkg/auth"
	"github.com/gebeya-market/gebeya-backend/pkg/config"
	"github.com/gebeya-market/gebeya-backend/pkg/db/models"
	"github.com/gebeya-market/gebeya-backend/pkg/enums"
	pkgerrors "github.com/gebeya-market/gebeya-backend/pkg/errors"
	"github.com/gebeya-market/gebeya-backend/pkg/logger"
	"github.com/gebeya-market/gebeya-backend/pkg/outbox"
	"github.com/gebeya-market/gebeya-backend/pkg/outbox/payloads"
	"github.com/gebeya-market/gebeya-backend/pkg/phone"
	"github.com/gebeya-market/gebeya-backend/pkg/redis"
	"github.com/gebeya-market/gebeya-backend/pkg/security"
)

const (
	codeScope     = "payout"
	attemptsScope = "payout_attempts"
	maxLabelLen   = 60
)

var accountNumberPattern = regexp.MustCompile(`^\d{6,20}$`)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// codeStore keeps hashed verification codes and attempt counters with a TTL.
type codeStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
	VerificationKey(scope, id string) string
}

// Service manages farmer payout destinations.
type Service interface {
	Add(ctx context.Context, actor auth.Actor, input AddInput) (*PayoutMethodDTO, error)
	List(ctx context.Context, actor auth.Actor) ([]PayoutMethodDTO, error)
	ListForOwner(ctx context.Context, actor auth.Actor, ownerID uuid.UUID) ([]PayoutMethodDTO, error)
	Remove(ctx context.Context, actor auth.Actor, id uuid.UUID) error
	RequestVerification(ctx context.Context, actor auth.Actor, id uuid.UUID) (*VerificationDTO, error)
	ConfirmVerification(ctx context.Context, actor auth.Actor, id uuid.UUID, code string) (*PayoutMethodDTO, error)
}

type service struct {
	repo     Repository
	tx       txRunner
	outbox   outboxPublisher
	codes    codeStore
	cfg      config.PayoutsConfig
	logg     *logger.Logger
	now      func() time.Time
	generate func(digits int) (string, error)
}

// Option customizes the service; used by tests to pin the clock and codes.
type Option func(*service)

func WithClock(now func() time.Time) Option {
	return func(s *service) { s.now = now }
}

func WithCodeGenerator(gen func(digits int) (string, error)) Option {
	return func(s *service) { s.generate = gen }
}

func NewService(repo Repository, tx txRunner, outbox outboxPublisher, codes codeStore, cfg config.PayoutsConfig, logg *logger.Logger, opts ...Option) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("payout methods repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if codes == nil {
		return nil, fmt.Errorf("verification code store required")
	}
	if cfg.VerificationCodeTTL <= 0 {
		cfg.VerificationCodeTTL = 10 * time.Minute
	}
	if cfg.VerificationCodeDigits == 0 {
		cfg.VerificationCodeDigits = 6
	}
	if cfg.VerificationMaxTries <= 0 {
		cfg.VerificationMaxTries = 5
	}
	if logg == nil {
		logg = logger.Nop()
	}
	s := &service{
		repo:     repo,
		tx:       tx,
		outbox:   outbox,
		codes:    codes,
		cfg:      cfg,
		logg:     logg,
		now:      time.Now,
		generate: security.GenerateNumericCode,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *service) Add(ctx context.Context, actor auth.Actor, input AddInput) (*PayoutMethodDTO, error) {
	if actor.Role != enums.RoleFarmer {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only farmers can add payout methods")
	}
	method, err := buildMethod(actor.UserID, input)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, method); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payout method")
	}
	dto := toDTO(method)
	return &dto, nil
}

func (s *service) List(ctx context.Context, actor auth.Actor) ([]PayoutMethodDTO, error) {
	return s.listFor(ctx, actor.UserID)
}

func (s *service) ListForOwner(ctx context.Context, actor auth.Actor, ownerID uuid.UUID) ([]PayoutMethodDTO, error) {
	if !actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	return s.listFor(ctx, ownerID)
}

func (s *service) listFor(ctx context.Context, ownerID uuid.UUID) ([]PayoutMethodDTO, error) {
	if ownerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "owner id required")
	}
	rows, err := s.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payout methods")
	}
	out := make([]PayoutMethodDTO, 0, len(rows))
	for i := range rows {
		out = append(out, toDTO(&rows[i]))
	}
	return out, nil
}

// Remove soft-deletes a method unless a pending settlement still points at it.
func (s *service) Remove(ctx context.Context, actor auth.Actor, id uuid.UUID) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		method, err := findOwned(ctx, repo, actor, id)
		if err != nil {
			return err
		}
		pending, err := repo.HasPendingSettlement(ctx, method.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check settlements")
		}
		if pending {
			return pkgerrors.New(pkgerrors.CodeConflict, "payout method is used by a pending settlement")
		}
		if err := repo.SoftDelete(ctx, method.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove payout method")
		}
		return nil
	})
}

// RequestVerification issues a fresh single-use code, replacing any earlier
// one, and hands it to the delivery channel through the outbox.
func (s *service) RequestVerification(ctx context.Context, actor auth.Actor, id uuid.UUID) (*VerificationDTO, error) {
	method, err := findOwned(ctx, s.repo, actor, id)
	if err != nil {
		return nil, err
	}
	if method.IsVerified {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "payout method already verified")
	}

	code, err := s.generate(s.cfg.VerificationCodeDigits)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate verification code")
	}
	hash, err := security.HashCode(code)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash verification code")
	}

	codeKey, attemptsKey := s.keys(method.ID)
	if err := s.codes.Set(ctx, codeKey, hash, s.cfg.VerificationCodeTTL); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store verification code")
	}
	if err := s.codes.Del(ctx, attemptsKey); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reset verification attempts")
	}

	expiresAt := s.now().UTC().Add(s.cfg.VerificationCodeTTL)
	destination := destinationOf(method)
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPayoutVerificationRequested,
			AggregateType: enums.AggregatePayoutMethod,
			AggregateID:   method.ID,
			Actor:         actor.Ref(),
			Data: payloads.PayoutVerificationRequestedEvent{
				PayoutMethodID: method.ID,
				OwnerID:        method.OwnerID,
				Destination:    destination,
				Code:           code,
				ExpiresAt:      expiresAt,
			},
		})
	})
	if err != nil {
		if delErr := s.codes.Del(ctx, codeKey); delErr != nil {
			s.logg.Warn(s.logg.WithField(ctx, "payout_method_id", method.ID.String()), "discard undelivered verification code failed")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue verification code")
	}

	return &VerificationDTO{
		PayoutMethodID: method.ID,
		Destination:    phone.Mask(destination),
		ExpiresAt:      expiresAt,
	}, nil
}

// ConfirmVerification checks code against the stored hash. A wrong code
// leaves the method unverified and counts toward the attempt cap; the code is
// deleted after its one successful use.
func (s *service) ConfirmVerification(ctx context.Context, actor auth.Actor, id uuid.UUID, code string) (*PayoutMethodDTO, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "verification code required")
	}
	method, err := findOwned(ctx, s.repo, actor, id)
	if err != nil {
		return nil, err
	}
	if method.IsVerified {
		dto := toDTO(method)
		return &dto, nil
	}

	codeKey, attemptsKey := s.keys(method.ID)
	hash, err := s.codes.Get(ctx, codeKey)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "verification code expired or not requested")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load verification code")
	}

	attempts, err := s.codes.IncrWithTTL(ctx, attemptsKey, s.cfg.VerificationCodeTTL)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count verification attempts")
	}
	if attempts > int64(s.cfg.VerificationMaxTries) {
		if err := s.codes.Del(ctx, codeKey, attemptsKey); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "discard verification code")
		}
		return nil, pkgerrors.New(pkgerrors.CodeRateLimit, "too many attempts; request a new code")
	}
	if err := security.VerifyCode(code, hash); err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid verification code").WithDetails(map[string]any{
			"remainingAttempts": int64(s.cfg.VerificationMaxTries) - attempts,
		})
	}

	verifiedAt := s.now().UTC()
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).MarkVerified(ctx, method.ID, verifiedAt); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPayoutMethodVerified,
			AggregateType: enums.AggregatePayoutMethod,
			AggregateID:   method.ID,
			Actor:         actor.Ref(),
			Data: payloads.PayoutMethodVerifiedEvent{
				PayoutMethodID: method.ID,
				OwnerID:        method.OwnerID,
				VerifiedAt:     verifiedAt,
			},
		})
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark payout method verified")
	}
	if err := s.codes.Del(ctx, codeKey, attemptsKey); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "payout_method_id", method.ID.String()), "verification code cleanup failed")
	}

	method.IsVerified = true
	method.VerifiedAt = &verifiedAt
	dto := toDTO(method)
	return &dto, nil
}

func (s *service) keys(id uuid.UUID) (string, string) {
	return s.codes.VerificationKey(codeScope, id.String()), s.codes.VerificationKey(attemptsScope, id.String())
}

// findOwned hides other farmers' methods behind NOT_FOUND. Admins see all.
func findOwned(ctx context.Context, repo Repository, actor auth.Actor, id uuid.UUID) (*models.PayoutMethod, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payout method id required")
	}
	method, err := repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payout method not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payout method")
	}
	if method.OwnerID != actor.UserID && !actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payout method not found")
	}
	return method, nil
}

func buildMethod(ownerID uuid.UUID, in AddInput) (*models.PayoutMethod, error) {
	if ownerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	method := &models.PayoutMethod{OwnerID: ownerID, Type: in.Type}
	if in.Label != nil {
		label := strings.TrimSpace(*in.Label)
		if utf8.RuneCountInString(label) > maxLabelLen {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "label must be at most %d characters", maxLabelLen)
		}
		if label != "" {
			method.Label = &label
		}
	}

	switch in.Type {
	case enums.PayoutMethodBank:
		bank := strings.TrimSpace(in.BankName)
		account := strings.ReplaceAll(strings.TrimSpace(in.AccountNumber), " ", "")
		holder := strings.TrimSpace(in.AccountHolder)
		fields := map[string]string{}
		if bank == "" {
			fields["bankName"] = "is required"
		}
		if !accountNumberPattern.MatchString(account) {
			fields["accountNumber"] = "must be 6 to 20 digits"
		}
		if holder == "" {
			fields["accountHolder"] = "is required"
		}
		if len(fields) > 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid bank account").WithDetails(fields)
		}
		method.BankName, method.AccountNumber, method.AccountHolder = &bank, &account, &holder
	case enums.PayoutMethodMobile:
		fields := map[string]string{}
		if !in.Provider.IsValid() {
			fields["provider"] = "is invalid"
		}
		normalized := phone.Normalize(in.PhoneNumber)
		if normalized == "" {
			fields["phoneNumber"] = "must be an Ethiopian mobile number"
		}
		if len(fields) > 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid mobile money account").WithDetails(fields)
		}
		provider := in.Provider
		method.Provider, method.PhoneNumber = &provider, &normalized
	default:
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "unsupported payout method type %q", in.Type)
	}
	return method, nil
}

func destinationOf(m *models.PayoutMethod) string {
	if m.PhoneNumber != nil {
		return *m.PhoneNumber
	}
	if m.AccountNumber != nil {
		return *m.AccountNumber
	}
	return ""
}
