package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"scrooge-bank/models"
)

var errReadOnly = errors.New("write attempted inside a read-only view")

// MemoryStore keeps every record in process behind a single RWMutex. Atomic
// units hold the write lock for their whole duration, so capacity checks and
// balance updates never interleave. When path is set, each committed unit is
// written to a JSON snapshot that is reloaded on the next start.
type MemoryStore struct {
	mu   sync.RWMutex
	data *memData
	path string
}

type memData struct {
	Users        map[int64]models.User    `json:"-"`
	Accounts     map[int64]models.Account `json:"accounts"`
	Loans        map[int64]models.Loan    `json:"loans"`
	Transactions []models.Transaction     `json:"transactions"`
	emails       map[string]int64

	NextUser    int64 `json:"next_user"`
	NextAccount int64 `json:"next_account"`
	NextLoan    int64 `json:"next_loan"`
	NextTx      int64 `json:"next_tx"`
}

// userRow is how users are written to the snapshot; models.User hides the
// hash from JSON.
type userRow struct {
	models.User
	Hash string `json:"password_hash"`
}

type memSnapshot struct {
	*memData
	Users []userRow `json:"users"`
}

func newMemData() *memData {
	return &memData{
		Users:    map[int64]models.User{},
		Accounts: map[int64]models.Account{},
		Loans:    map[int64]models.Loan{},
		emails:   map[string]int64{},
	}
}

func (d *memData) clone() *memData {
	c := &memData{
		Users:        make(map[int64]models.User, len(d.Users)),
		Accounts:     make(map[int64]models.Account, len(d.Accounts)),
		Loans:        make(map[int64]models.Loan, len(d.Loans)),
		Transactions: make([]models.Transaction, len(d.Transactions), len(d.Transactions)+1),
		emails:       make(map[string]int64, len(d.emails)),
		NextUser:     d.NextUser,
		NextAccount:  d.NextAccount,
		NextLoan:     d.NextLoan,
		NextTx:       d.NextTx,
	}
	for k, v := range d.Users {
		c.Users[k] = v
	}
	for k, v := range d.Accounts {
		c.Accounts[k] = v
	}
	for k, v := range d.Loans {
		c.Loans[k] = v
	}
	for k, v := range d.emails {
		c.emails[k] = v
	}
	copy(c.Transactions, d.Transactions)
	return c
}

// OpenMemory returns an in-process store. An empty path disables persistence.
func OpenMemory(path string) (*MemoryStore, error) {
	s := &MemoryStore{data: newMemData(), path: path}
	if path == "" {
		return s, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *MemoryStore) load() error {
	b, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) || (err == nil && len(b) == 0) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}
	snap := memSnapshot{memData: newMemData()}
	if err := json.Unmarshal(b, &snap); err != nil {
		return fmt.Errorf("decode snapshot %s: %w", s.path, err)
	}
	d := snap.memData
	if d.Accounts == nil {
		d.Accounts = map[int64]models.Account{}
	}
	if d.Loans == nil {
		d.Loans = map[int64]models.Loan{}
	}
	d.Users = map[int64]models.User{}
	d.emails = map[string]int64{}
	for _, row := range snap.Users {
		u := row.User
		u.PasswordHash = row.Hash
		d.Users[u.ID] = u
		d.emails[u.Email] = u.ID
	}
	s.data = d
	return nil
}

func (s *MemoryStore) flush(d *memData) error {
	if s.path == "" {
		return nil
	}
	snap := memSnapshot{memData: d, Users: make([]userRow, 0, len(d.Users))}
	for _, u := range d.Users {
		snap.Users = append(snap.Users, userRow{User: u, Hash: u.PasswordHash})
	}
	sort.Slice(snap.Users, func(i, j int) bool { return snap.Users[i].ID < snap.Users[j].ID })

	b, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".snapshot-*")
	if err != nil {
		return fmt.Errorf("create snapshot: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close snapshot: %w", err)
	}
	return os.Rename(tmp.Name(), s.path)
}

func (s *MemoryStore) View(ctx context.Context, fn func(q Querier) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(&memQuerier{d: s.data, readOnly: true})
}

func (s *MemoryStore) Atomic(ctx context.Context, fn func(q Querier) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	// Each unit copies the whole dataset and a committed write rewrites the
	// whole snapshot, so a write costs O(rows).
	work := s.data.clone()
	q := &memQuerier{d: work}
	if err := fn(q); err != nil {
		return err
	}
	if !q.dirty {
		return nil
	}
	if err := s.flush(work); err != nil {
		return err
	}
	s.data = work
	return nil
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *MemoryStore) Close() error {
	return nil
}

type memQuerier struct {
	d        *memData
	readOnly bool
	dirty    bool
}

func (q *memQuerier) write() error {
	if q.readOnly {
		return errReadOnly
	}
	q.dirty = true
	return nil
}

func (q *memQuerier) CreateUser(_ context.Context, u *models.User) error {
	if err := q.write(); err != nil {
		return err
	}
	if _, ok := q.d.emails[u.Email]; ok {
		return ErrDuplicateEmail
	}
	q.d.NextUser++
	u.ID = q.d.NextUser
	u.CreatedAt = now()
	if u.Role == "" {
		u.Role = models.RoleUser
	}
	q.d.Users[u.ID] = *u
	q.d.emails[u.Email] = u.ID
	return nil
}

func (q *memQuerier) GetUserByID(_ context.Context, id int64) (*models.User, error) {
	u, ok := q.d.Users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (q *memQuerier) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	id, ok := q.d.emails[email]
	if !ok {
		return nil, ErrNotFound
	}
	return q.GetUserByID(ctx, id)
}

// CreateAccount allows one account per user, open or closed.
func (q *memQuerier) CreateAccount(_ context.Context, a *models.Account) error {
	if err := q.write(); err != nil {
		return err
	}
	for _, existing := range q.d.Accounts {
		if existing.UserID == a.UserID {
			return ErrDuplicateAccount
		}
	}
	q.d.NextAccount++
	a.ID = q.d.NextAccount
	a.CreatedAt = now()
	q.d.Accounts[a.ID] = *a
	return nil
}

func (q *memQuerier) GetAccount(_ context.Context, id int64) (*models.Account, error) {
	a, ok := q.d.Accounts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &a, nil
}

func (q *memQuerier) ListAccountsByUser(_ context.Context, userID int64) ([]models.Account, error) {
	out := []models.Account{}
	for _, a := range q.d.Accounts {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (q *memQuerier) UpdateAccountBalance(_ context.Context, id, balance int64) error {
	if err := q.write(); err != nil {
		return err
	}
	a, ok := q.d.Accounts[id]
	if !ok {
		return ErrNotFound
	}
	a.Balance = balance
	q.d.Accounts[id] = a
	return nil
}

func (q *memQuerier) CloseAccount(_ context.Context, id int64) error {
	if err := q.write(); err != nil {
		return err
	}
	a, ok := q.d.Accounts[id]
	if !ok {
		return ErrNotFound
	}
	a.Status = models.StatusClosed
	q.d.Accounts[id] = a
	return nil
}

func (q *memQuerier) CreateLoan(_ context.Context, l *models.Loan) error {
	if err := q.write(); err != nil {
		return err
	}
	q.d.NextLoan++
	l.ID = q.d.NextLoan
	l.CreatedAt = now()
	q.d.Loans[l.ID] = *l
	return nil
}

func (q *memQuerier) GetLoan(_ context.Context, id int64) (*models.Loan, error) {
	l, ok := q.d.Loans[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &l, nil
}

func (q *memQuerier) ListLoansByUser(_ context.Context, userID int64) ([]models.Loan, error) {
	out := []models.Loan{}
	for _, l := range q.d.Loans {
		if l.UserID == userID {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (q *memQuerier) UpdateLoan(_ context.Context, id, outstanding int64, status models.Status) error {
	if err := q.write(); err != nil {
		return err
	}
	l, ok := q.d.Loans[id]
	if !ok {
		return ErrNotFound
	}
	l.Outstanding = outstanding
	l.Status = status
	q.d.Loans[id] = l
	return nil
}

func (q *memQuerier) InsertTransaction(_ context.Context, t *models.Transaction) error {
	if err := q.write(); err != nil {
		return err
	}
	q.d.NextTx++
	t.ID = q.d.NextTx
	t.CreatedAt = now()
	q.d.Transactions = append(q.d.Transactions, *t)
	return nil
}

func (q *memQuerier) ListTransactionsByUser(_ context.Context, userID int64, f TransactionFilter) ([]models.Transaction, error) {
	out := []models.Transaction{}
	for _, t := range q.d.Transactions {
		if !f.Match(t.CreatedAt) {
			continue
		}
		if t.AccountID != nil {
			if a, ok := q.d.Accounts[*t.AccountID]; ok && a.UserID == userID {
				out = append(out, t)
				continue
			}
		}
		if t.LoanID != nil {
			if l, ok := q.d.Loans[*t.LoanID]; ok && l.UserID == userID {
				out = append(out, t)
			}
		}
	}
	return out, nil
}

func (q *memQuerier) SumAccountBalances(context.Context) (int64, error) {
	var sum int64
	for _, a := range q.d.Accounts {
		sum = addCapped(sum, a.Balance)
	}
	return sum, nil
}

func (q *memQuerier) SumLoanOutstanding(context.Context) (int64, error) {
	var sum int64
	for _, l := range q.d.Loans {
		sum = addCapped(sum, l.Outstanding)
	}
	return sum, nil
}

// addCapped adds two non-negative amounts, stopping at math.MaxInt64.
func addCapped(a, b int64) int64 {
	if a > math.MaxInt64-b {
		return math.MaxInt64
	}
	return a + b
}
