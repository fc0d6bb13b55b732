package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-event-registration/internal/domain"
)

// Collection file names inside the data directory. Each holds a JSON array that
// is rewritten wholesale on every mutation.
const (
	TransactionsFile     = "transactions.json"
	UPIVerificationsFile = "upi-verifications.json"
	RegistrationsFile    = "registrations.json"
)

// Store is the durable local copy of transactions, UPI verifications and
// registrations. It is the source of truth; the remote spreadsheet mirrors it.
type Store struct {
	mu  sync.Mutex
	dir string

	transactions  []domain.Transaction
	verifications []domain.UPIVerification
	registrations []domain.Registration
}

// Open loads the three collections from dir, creating the directory if needed.
// Missing files start as empty collections.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	s := &Store{dir: dir}
	if err := readCollection(filepath.Join(dir, TransactionsFile), &s.transactions); err != nil {
		return nil, err
	}
	if err := readCollection(filepath.Join(dir, UPIVerificationsFile), &s.verifications); err != nil {
		return nil, err
	}
	if err := readCollection(filepath.Join(dir, RegistrationsFile), &s.registrations); err != nil {
		return nil, err
	}
	slog.Info("local store loaded", "dir", dir,
		"registrations", len(s.registrations),
		"transactions", len(s.transactions),
		"upi_verifications", len(s.verifications))
	return s, nil
}

// CommitRegistration persists a registration with its transaction and, when
// present, a new verification. Either every file is written or the in-memory
// state is rolled back and ErrPersistence is returned.
func (s *Store) CommitRegistration(_ context.Context, c domain.RegistrationCommit) error {
	if c.Registration == nil || c.Transaction == nil {
		return fmt.Errorf("incomplete registration commit: %w", domain.ErrValidation)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	upiID := c.Registration.Payment.Verification.UPITransactionID
	for _, r := range s.registrations {
		if upiID != "" && r.Payment.Verification.UPITransactionID == upiID {
			return fmt.Errorf("UPI transaction %s already used by registration %s: %w", upiID, r.RegistrationID, domain.ErrConflict)
		}
	}

	prevTx, prevVer, prevReg := s.transactions, s.verifications, s.registrations

	s.transactions = appendCopy(s.transactions, *c.Transaction)
	if err := s.flush(TransactionsFile, s.transactions); err != nil {
		s.transactions = prevTx
		return err
	}
	if c.Verification != nil {
		s.verifications = appendCopy(s.verifications, *c.Verification)
		if err := s.flush(UPIVerificationsFile, s.verifications); err != nil {
			s.rollback(prevTx, prevVer, prevReg)
			return err
		}
	}
	s.registrations = appendCopy(s.registrations, *c.Registration)
	if err := s.flush(RegistrationsFile, s.registrations); err != nil {
		s.rollback(prevTx, prevVer, prevReg)
		return err
	}
	return nil
}

// PutVerification appends a standalone payment claim.
func (s *Store) PutVerification(_ context.Context, v *domain.UPIVerification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.verifications
	s.verifications = appendCopy(s.verifications, *v)
	if err := s.flush(UPIVerificationsFile, s.verifications); err != nil {
		s.verifications = prev
		return err
	}
	return nil
}

func (s *Store) GetVerification(_ context.Context, verificationID string) (*domain.UPIVerification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.verifications {
		if s.verifications[i].VerificationID == verificationID {
			v := s.verifications[i]
			return &v, nil
		}
	}
	return nil, fmt.Errorf("verification %s: %w", verificationID, domain.ErrNotFound)
}

func (s *Store) FindVerificationByUPI(_ context.Context, upiTransactionID string) (*domain.UPIVerification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.verifications {
		if s.verifications[i].UPITransactionID == upiTransactionID {
			v := s.verifications[i]
			return &v, nil
		}
	}
	return nil, fmt.Errorf("verification for UPI %s: %w", upiTransactionID, domain.ErrNotFound)
}

// ApplyReview advances a claim and moves every transaction carrying it to the
// matching transaction status.
func (s *Store) ApplyReview(_ context.Context, verificationID string, next domain.VerificationStatus, at time.Time) (*domain.UPIVerification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i := range s.verifications {
		if s.verifications[i].VerificationID == verificationID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("verification %s: %w", verificationID, domain.ErrNotFound)
	}

	prevVer, prevTx := s.verifications, s.transactions
	verifications := append([]domain.UPIVerification(nil), s.verifications...)
	if err := verifications[idx].Advance(next, at); err != nil {
		return nil, err
	}
	transactions := append([]domain.Transaction(nil), s.transactions...)
	for i := range transactions {
		if transactions[i].VerificationData.VerificationID == verificationID {
			transactions[i].Status = next.TransactionStatus()
			transactions[i].VerificationData = verifications[idx]
		}
	}

	s.verifications = verifications
	if err := s.flush(UPIVerificationsFile, s.verifications); err != nil {
		s.verifications = prevVer
		return nil, err
	}
	s.transactions = transactions
	if err := s.flush(TransactionsFile, s.transactions); err != nil {
		s.rollback(prevTx, prevVer, s.registrations)
		return nil, err
	}
	v := verifications[idx]
	return &v, nil
}

// FindTeam returns the team id of an existing team registration led by
// leaderEmail for exactly eventKey.
func (s *Store) FindTeam(_ context.Context, leaderEmail, eventKey string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.registrations {
		if r.TeamID != domain.NoTeam && r.EventKey == eventKey && strings.EqualFold(r.StudentDetails.Email, leaderEmail) {
			return r.TeamID, nil
		}
	}
	return "", fmt.Errorf("team for %s / %s: %w", leaderEmail, eventKey, domain.ErrNotFound)
}

func (s *Store) ListByTeam(_ context.Context, teamID string) ([]domain.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Registration
	for _, r := range s.registrations {
		if teamID != domain.NoTeam && r.TeamID == teamID {
			out = append(out, r)
		}
	}
	return out, nil
}

// UpdateRoster overwrites the roster on every registration of teamID.
func (s *Store) UpdateRoster(_ context.Context, teamID string, roster domain.Roster) error {
	if teamID == domain.NoTeam {
		return nil
	}
	return s.mutateRegistrations(func(r *domain.Registration) bool {
		if r.TeamID != teamID {
			return false
		}
		r.Roster = roster
		return true
	})
}

func (s *Store) ListUnsynced(_ context.Context) ([]domain.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Registration
	for _, r := range s.registrations {
		if r.SyncedAt == nil {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *Store) MarkSynced(_ context.Context, registrationID string, at time.Time) error {
	found := false
	err := s.mutateRegistrations(func(r *domain.Registration) bool {
		if r.RegistrationID != registrationID {
			return false
		}
		t := at.UTC()
		r.SyncedAt = &t
		found = true
		return true
	})
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("registration %s: %w", registrationID, domain.ErrNotFound)
	}
	return nil
}

func (s *Store) GetTransaction(_ context.Context, transactionID string) (*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.transactions {
		if s.transactions[i].TransactionID == transactionID {
			t := s.transactions[i]
			return &t, nil
		}
	}
	return nil, fmt.Errorf("transaction %s: %w", transactionID, domain.ErrNotFound)
}

// Export returns the current JSON encoding of each collection keyed by file name.
func (s *Store) Export(_ context.Context) (map[string][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string][]byte, 3)
	for name, v := range map[string]any{
		TransactionsFile:     nonNil(s.transactions),
		UPIVerificationsFile: nonNil(s.verifications),
		RegistrationsFile:    nonNil(s.registrations),
	} {
		b, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", name, err)
		}
		out[name] = b
	}
	return out, nil
}

func (s *Store) mutateRegistrations(fn func(r *domain.Registration) bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := append([]domain.Registration(nil), s.registrations...)
	changed := false
	for i := range next {
		if fn(&next[i]) {
			changed = true
		}
	}
	if !changed {
		return nil
	}
	prev := s.registrations
	s.registrations = next
	if err := s.flush(RegistrationsFile, s.registrations); err != nil {
		s.registrations = prev
		return err
	}
	return nil
}

// rollback restores the in-memory collections and rewrites their files on a
// best-effort basis. Caller holds s.mu.
func (s *Store) rollback(tx []domain.Transaction, ver []domain.UPIVerification, reg []domain.Registration) {
	s.transactions, s.verifications, s.registrations = tx, ver, reg
	for name, v := range map[string]any{
		TransactionsFile:     s.transactions,
		UPIVerificationsFile: s.verifications,
		RegistrationsFile:    s.registrations,
	} {
		if err := s.flush(name, v); err != nil {
			slog.Error("local store rollback write failed", "file", name, "err", err)
		}
	}
}

// flush writes v to a temp file and renames it over name. Caller holds s.mu.
func (s *Store) flush(name string, v any) error {
	b, err := json.MarshalIndent(nonNilAny(v), "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %v: %w", name, err, domain.ErrPersistence)
	}
	path := filepath.Join(s.dir, name)
	tmp, err := os.CreateTemp(s.dir, name+".*.tmp")
	if err != nil {
		return fmt.Errorf("write %s: %v: %w", name, err, domain.ErrPersistence)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %v: %w", name, err, domain.ErrPersistence)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync %s: %v: %w", name, err, domain.ErrPersistence)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close %s: %v: %w", name, err, domain.ErrPersistence)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace %s: %v: %w", name, err, domain.ErrPersistence)
	}
	return nil
}

func readCollection[T any](path string, dst *[]T) error {
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		*dst = nil
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	if len(b) == 0 {
		return nil
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return nil
}

// appendCopy appends v to a fresh copy so a rollback can restore the old slice header.
func appendCopy[T any](src []T, v T) []T {
	out := make([]T, len(src), len(src)+1)
	copy(out, src)
	return append(out, v)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func nonNilAny(v any) any {
	switch s := v.(type) {
	case []domain.Transaction:
		return nonNil(s)
	case []domain.UPIVerification:
		return nonNil(s)
	case []domain.Registration:
		return nonNil(s)
	}
	return v
}
