// Package memory implements in-memory repositories for development and tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"scaletrack/internal/domain"
)

// DB implements the record source and auth ports in memory.
type DB struct {
	mu            sync.Mutex
	records       []domain.Record
	users         []domain.User
	sessions      map[string]*domain.Session
	userIDCounter int64
}

// New creates an empty in-memory database.
func New() *DB {
	return &DB{sessions: make(map[string]*domain.Session)}
}

var _ domain.RecordSource = (*DB)(nil)

// --- RecordSource ---

// FindByDate returns the record for an owner and day, or (nil, nil).
func (db *DB) FindByDate(ctx context.Context, ownerID int64, date string) (*domain.Record, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	for i := range db.records {
		r := &db.records[i]
		if r.OwnerID == ownerID && r.Date == date {
			cp := *r
			return &cp, nil
		}
	}
	return nil, nil
}

// Create inserts a record, enforcing per-(owner, day) uniqueness.
func (db *DB) Create(ctx context.Context, ownerID int64, draft domain.RecordDraft) (*domain.Record, error) {
	if draft.Value <= 0 {
		return nil, &domain.ValidationError{Field: "value", Reason: "must be a positive finite number"}
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	for i := range db.records {
		if db.records[i].OwnerID == ownerID && db.records[i].Date == draft.Date {
			return nil, domain.ErrConflict
		}
	}
	now := time.Now().UTC()
	rec := domain.Record{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Date:      draft.Date,
		Value:     draft.Value,
		BodyFat:   draft.BodyFat,
		Note:      draft.Note,
		Public:    draft.Public,
		CreatedAt: now,
		UpdatedAt: now,
	}
	db.records = append(db.records, rec)
	cp := rec
	return &cp, nil
}

// Update overwrites the mutable fields of the record with the given id.
func (db *DB) Update(ctx context.Context, recordID string, draft domain.RecordDraft) (*domain.Record, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	for i := range db.records {
		r := &db.records[i]
		if r.ID == recordID {
			r.Value = draft.Value
			r.BodyFat = draft.BodyFat
			r.Note = draft.Note
			r.Public = draft.Public
			r.UpdatedAt = time.Now().UTC()
			cp := *r
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

// ListRange returns an owner's records with start <= day <= end, oldest first.
func (db *DB) ListRange(ctx context.Context, ownerID int64, start, end string) ([]domain.Record, error) {
	if end < start {
		return nil, &domain.ValidationError{Field: "range", Reason: "end date precedes start date"}
	}
	db.mu.Lock()
	defer db.mu.Unlock()

	out := make([]domain.Record, 0)
	for _, r := range db.records {
		if r.OwnerID == ownerID && r.Date >= start && r.Date <= end {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

// ListMonthlyAverages computes one averaged row per calendar month touching
// the range. AvgBodyFat is set only when some record in the month had one.
func (db *DB) ListMonthlyAverages(ctx context.Context, ownerID int64, start, end string) ([]domain.AggregateRecord, error) {
	if end < start {
		return nil, &domain.ValidationError{Field: "range", Reason: "end date precedes start date"}
	}
	db.mu.Lock()
	defer db.mu.Unlock()

	type acc struct {
		sum, fatSum float64
		n, fatN     int
	}
	byMonth := make(map[string]*acc)
	for _, r := range db.records {
		if r.OwnerID != ownerID || r.Date < start || r.Date > end {
			continue
		}
		month := r.Date[:7]
		a, ok := byMonth[month]
		if !ok {
			a = &acc{}
			byMonth[month] = a
		}
		a.sum += r.Value
		a.n++
		if r.BodyFat != nil {
			a.fatSum += *r.BodyFat
			a.fatN++
		}
	}

	out := make([]domain.AggregateRecord, 0, len(byMonth))
	for month, a := range byMonth {
		agg := domain.AggregateRecord{PeriodKey: month, AvgValue: a.sum / float64(a.n)}
		if a.fatN > 0 {
			fat := a.fatSum / float64(a.fatN)
			agg.AvgBodyFat = &fat
		}
		out = append(out, agg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PeriodKey < out[j].PeriodKey })
	return out, nil
}

// --- UserRepository ---

// UserRepo adapts DB to the user repository port. The record source and the
// user repository both declare a Create method, so DB cannot expose both
// directly.
type UserRepo struct {
	db *DB
}

// NewUserRepo creates a UserRepo over db.
func NewUserRepo(db *DB) *UserRepo {
	return &UserRepo{db: db}
}

var _ domain.UserRepository = (*UserRepo)(nil)

// GetByUsername returns the user with the given username, or (nil, nil).
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for i := range r.db.users {
		if r.db.users[i].Username == username {
			cp := r.db.users[i]
			return &cp, nil
		}
	}
	return nil, nil
}

// GetByID returns the user with the given id, or (nil, nil).
func (r *UserRepo) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for i := range r.db.users {
		if r.db.users[i].ID == id {
			cp := r.db.users[i]
			return &cp, nil
		}
	}
	return nil, nil
}

// Create appends a new user.
func (r *UserRepo) Create(ctx context.Context, username, passwordHash string) (*domain.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.userIDCounter++
	u := domain.User{
		ID:           r.db.userIDCounter,
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
	r.db.users = append(r.db.users, u)
	cp := u
	return &cp, nil
}

// Count returns the number of users.
func (r *UserRepo) Count(ctx context.Context) (int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return len(r.db.users), nil
}

// --- SessionRepository ---

// SessionRepo adapts DB to the session repository port.
type SessionRepo struct {
	db *DB
}

// NewSessionRepo creates a SessionRepo over db.
func NewSessionRepo(db *DB) *SessionRepo {
	return &SessionRepo{db: db}
}

var _ domain.SessionRepository = (*SessionRepo)(nil)

// Create stores a new session.
func (r *SessionRepo) Create(ctx context.Context, userID int64, token, userAgent string, expiresAt time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.sessions[token] = &domain.Session{
		Token:     token,
		UserID:    userID,
		UserAgent: userAgent,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now().UTC(),
	}
	return nil
}

// GetByToken retrieves a session, or (nil, nil) when absent.
func (r *SessionRepo) GetByToken(ctx context.Context, token string) (*domain.Session, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	s, ok := r.db.sessions[token]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

// Delete removes a session.
func (r *SessionRepo) Delete(ctx context.Context, token string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	delete(r.db.sessions, token)
	return nil
}

// DeleteExpired removes all sessions past their expiry.
func (r *SessionRepo) DeleteExpired(ctx context.Context) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	now := time.Now()
	for token, s := range r.db.sessions {
		if now.After(s.ExpiresAt) {
			delete(r.db.sessions, token)
		}
	}
	return nil
}
