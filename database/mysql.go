package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"scrooge-bank/models"
)

const (
	mysqlDuplicateEntry  = 1062
	mysqlLockWaitTimeout = 1205
	mysqlDeadlock        = 1213
	maxAtomicAttempts    = 3
	forUpdate            = " FOR UPDATE"
)

// MySQL sums BIGINT columns as DECIMAL; the totals are clamped to the int64
// range before they are scanned.
const (
	qInsertUser     = "INSERT INTO users (name, email, password_hash, role, created_at) VALUES (?, ?, ?, ?, ?)"
	qSelectUser     = "SELECT id, name, email, password_hash, role, created_at FROM users"
	qInsertAccount  = "INSERT INTO accounts (user_id, type, balance, currency, status, created_at) VALUES (?, ?, ?, ?, ?, ?)"
	qSelectAccount  = "SELECT id, user_id, type, balance, currency, status, created_at FROM accounts"
	qUpdateBalance  = "UPDATE accounts SET balance = ? WHERE id = ?"
	qCloseAccount   = "UPDATE accounts SET status = ? WHERE id = ?"
	qInsertLoan     = "INSERT INTO loans (user_id, principal, outstanding, interest_rate, status, created_at) VALUES (?, ?, ?, ?, ?, ?)"
	qSelectLoan     = "SELECT id, user_id, principal, outstanding, interest_rate, status, created_at FROM loans"
	qUpdateLoan     = "UPDATE loans SET outstanding = ?, status = ? WHERE id = ?"
	qInsertTx       = "INSERT INTO transactions (account_id, loan_id, type, amount, balance_after, description, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)"
	qSelectUserTxs  = "SELECT t.id, t.account_id, t.loan_id, t.type, t.amount, t.balance_after, t.description, t.created_at FROM transactions t LEFT JOIN accounts a ON t.account_id = a.id LEFT JOIN loans l ON t.loan_id = l.id WHERE (a.user_id = ? OR l.user_id = ?)"
	qSumBalances    = "SELECT LEAST(COALESCE(SUM(balance), 0), 9223372036854775807) FROM accounts"
	qSumOutstanding = "SELECT LEAST(COALESCE(SUM(outstanding), 0), 9223372036854775807) FROM loans"
)

// MySQLStore keeps the ledger in MySQL. Atomic units run as SERIALIZABLE
// transactions with locking reads.
type MySQLStore struct {
	db *sql.DB
}

// MySQLDSN builds a driver DSN that parses DATETIME columns as UTC.
func MySQLDSN(opts Options) string {
	cfg := mysql.NewConfig()
	cfg.User = opts.MySQLUser
	cfg.Passwd = opts.MySQLPassword
	cfg.Net = "tcp"
	cfg.Addr = opts.MySQLAddr
	cfg.DBName = opts.MySQLDatabase
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	return cfg.FormatDSN()
}

func OpenMySQL(ctx context.Context, dsn string) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}
	if err := Migrate(dsn); err != nil {
		db.Close()
		return nil, err
	}
	return NewMySQLStore(db), nil
}

func NewMySQLStore(db *sql.DB) *MySQLStore {
	return &MySQLStore{db: db}
}

// View runs fn in a read-only transaction so every read sees one snapshot.
func (s *MySQLStore) View(ctx context.Context, fn func(q Querier) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(&mysqlQuerier{db: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (s *MySQLStore) Atomic(ctx context.Context, fn func(q Querier) error) error {
	var err error
	for attempt := 0; attempt < maxAtomicAttempts; attempt++ {
		err = s.atomic(ctx, fn)
		if !retryable(err) {
			return err
		}
	}
	return err
}

func (s *MySQLStore) atomic(ctx context.Context, fn func(q Querier) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(&mysqlQuerier{db: tx, lock: forUpdate}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *MySQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *MySQLStore) Close() error {
	return s.db.Close()
}

func retryable(err error) bool {
	var me *mysql.MySQLError
	if !errors.As(err, &me) {
		return false
	}
	return me.Number == mysqlDeadlock || me.Number == mysqlLockWaitTimeout
}

func duplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}

type sqlExecer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// mysqlQuerier runs against the pool for views and against a *sql.Tx inside
// Atomic, where lock turns row reads into locking reads.
type mysqlQuerier struct {
	db   sqlExecer
	lock string
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (*models.User, error) {
	var u models.User
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt); err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

func scanAccount(row scanner) (*models.Account, error) {
	var a models.Account
	if err := row.Scan(&a.ID, &a.UserID, &a.Type, &a.Balance, &a.Currency, &a.Status, &a.CreatedAt); err != nil {
		return nil, notFound(err)
	}
	return &a, nil
}

func scanLoan(row scanner) (*models.Loan, error) {
	var l models.Loan
	if err := row.Scan(&l.ID, &l.UserID, &l.Principal, &l.Outstanding, &l.InterestRate, &l.Status, &l.CreatedAt); err != nil {
		return nil, notFound(err)
	}
	return &l, nil
}

func scanTransaction(row scanner) (*models.Transaction, error) {
	var (
		t                        models.Transaction
		accountID, loanID, after sql.NullInt64
	)
	if err := row.Scan(&t.ID, &accountID, &loanID, &t.Type, &t.Amount, &after, &t.Description, &t.CreatedAt); err != nil {
		return nil, err
	}
	t.AccountID = fromNull(accountID)
	t.LoanID = fromNull(loanID)
	t.BalanceAfter = fromNull(after)
	return &t, nil
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func fromNull(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

func toNull(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}

func insertID(res sql.Result) (int64, error) {
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

func affectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (q *mysqlQuerier) CreateUser(ctx context.Context, u *models.User) error {
	if u.Role == "" {
		u.Role = models.RoleUser
	}
	u.CreatedAt = now()
	res, err := q.db.ExecContext(ctx, qInsertUser, u.Name, u.Email, u.PasswordHash, u.Role, u.CreatedAt)
	if err != nil {
		if duplicate(err) {
			return ErrDuplicateEmail
		}
		return err
	}
	u.ID, err = insertID(res)
	return err
}

func (q *mysqlQuerier) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	return scanUser(q.db.QueryRowContext(ctx, qSelectUser+" WHERE id = ?", id))
}

func (q *mysqlQuerier) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return scanUser(q.db.QueryRowContext(ctx, qSelectUser+" WHERE email = ?", email))
}

func (q *mysqlQuerier) CreateAccount(ctx context.Context, a *models.Account) error {
	a.CreatedAt = now()
	res, err := q.db.ExecContext(ctx, qInsertAccount, a.UserID, a.Type, a.Balance, a.Currency, a.Status, a.CreatedAt)
	if err != nil {
		if duplicate(err) {
			return ErrDuplicateAccount
		}
		return err
	}
	a.ID, err = insertID(res)
	return err
}

func (q *mysqlQuerier) GetAccount(ctx context.Context, id int64) (*models.Account, error) {
	return scanAccount(q.db.QueryRowContext(ctx, qSelectAccount+" WHERE id = ?"+q.lock, id))
}

func (q *mysqlQuerier) ListAccountsByUser(ctx context.Context, userID int64) ([]models.Account, error) {
	rows, err := q.db.QueryContext(ctx, qSelectAccount+" WHERE user_id = ? ORDER BY id"+q.lock, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Account{}
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (q *mysqlQuerier) UpdateAccountBalance(ctx context.Context, id, balance int64) error {
	res, err := q.db.ExecContext(ctx, qUpdateBalance, balance, id)
	if err != nil {
		return err
	}
	return affectOne(res)
}

func (q *mysqlQuerier) CloseAccount(ctx context.Context, id int64) error {
	res, err := q.db.ExecContext(ctx, qCloseAccount, models.StatusClosed, id)
	if err != nil {
		return err
	}
	return affectOne(res)
}

func (q *mysqlQuerier) CreateLoan(ctx context.Context, l *models.Loan) error {
	l.CreatedAt = now()
	res, err := q.db.ExecContext(ctx, qInsertLoan, l.UserID, l.Principal, l.Outstanding, l.InterestRate, l.Status, l.CreatedAt)
	if err != nil {
		return err
	}
	l.ID, err = insertID(res)
	return err
}

func (q *mysqlQuerier) GetLoan(ctx context.Context, id int64) (*models.Loan, error) {
	return scanLoan(q.db.QueryRowContext(ctx, qSelectLoan+" WHERE id = ?"+q.lock, id))
}

func (q *mysqlQuerier) ListLoansByUser(ctx context.Context, userID int64) ([]models.Loan, error) {
	rows, err := q.db.QueryContext(ctx, qSelectLoan+" WHERE user_id = ? ORDER BY id", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Loan{}
	for rows.Next() {
		l, err := scanLoan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *l)
	}
	return out, rows.Err()
}

func (q *mysqlQuerier) UpdateLoan(ctx context.Context, id, outstanding int64, status models.Status) error {
	res, err := q.db.ExecContext(ctx, qUpdateLoan, outstanding, status, id)
	if err != nil {
		return err
	}
	return affectOne(res)
}

func (q *mysqlQuerier) InsertTransaction(ctx context.Context, t *models.Transaction) error {
	t.CreatedAt = now()
	res, err := q.db.ExecContext(ctx, qInsertTx,
		toNull(t.AccountID), toNull(t.LoanID), t.Type, t.Amount, toNull(t.BalanceAfter), t.Description, t.CreatedAt)
	if err != nil {
		return err
	}
	t.ID, err = insertID(res)
	return err
}

func (q *mysqlQuerier) ListTransactionsByUser(ctx context.Context, userID int64, f TransactionFilter) ([]models.Transaction, error) {
	var sb strings.Builder
	sb.WriteString(qSelectUserTxs)
	args := []any{userID, userID}
	if !f.From.IsZero() {
		sb.WriteString(" AND t.created_at >= ?")
		args = append(args, f.From)
	}
	if !f.To.IsZero() {
		sb.WriteString(" AND t.created_at <= ?")
		args = append(args, f.To)
	}
	sb.WriteString(" ORDER BY t.id")

	rows, err := q.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (q *mysqlQuerier) SumAccountBalances(ctx context.Context) (int64, error) {
	var sum int64
	err := q.db.QueryRowContext(ctx, qSumBalances+q.lock).Scan(&sum)
	return sum, err
}

func (q *mysqlQuerier) SumLoanOutstanding(ctx context.Context) (int64, error) {
	var sum int64
	err := q.db.QueryRowContext(ctx, qSumOutstanding+q.lock).Scan(&sum)
	return sum, err
}
