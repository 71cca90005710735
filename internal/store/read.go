package store

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/roach88/abacus/internal/ir"
)

const accountColumns = `id, name, owner, data, seq`

const invocationColumns = `id, seq, tx_id, program_id, account_id, signer, payload, status,
	error_code, error_message, state_before, state_after`

// ReadAccount retrieves an account by identity.
// Returns ErrNotFound if it does not exist.
func (s *Store) ReadAccount(ctx context.Context, id ir.Identity) (ir.StoredAccount, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE id = ?
	`, marshalIdentity(id))

	acct, err := scanAccount(row)
	if err != nil {
		return acct, errors.Wrapf(err, "read account %s", id.Short())
	}
	return acct, nil
}

// ReadAccountByName retrieves an account by its unique name.
// Returns ErrNotFound if it does not exist.
func (s *Store) ReadAccountByName(ctx context.Context, name string) (ir.StoredAccount, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE name = ?
	`, name)

	acct, err := scanAccount(row)
	if err != nil {
		return acct, errors.Wrapf(err, "read account %q", name)
	}
	return acct, nil
}

// ListAccounts returns all accounts ordered by name.
// Returns an empty slice (not nil) when there are none.
func (s *Store) ListAccounts(ctx context.Context) ([]ir.StoredAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		ORDER BY name COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, errors.Wrap(err, "query accounts")
	}
	defer rows.Close()

	accounts := []ir.StoredAccount{}
	for rows.Next() {
		acct, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, acct)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate accounts")
	}
	return accounts, nil
}

// ReadInvocation retrieves a single log entry by id.
// Returns ErrNotFound if it does not exist.
func (s *Store) ReadInvocation(ctx context.Context, id string) (ir.InvocationRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+invocationColumns+`
		FROM invocations
		WHERE id = ?
	`, id)

	rec, err := scanInvocation(row)
	if err != nil {
		return rec, errors.Wrapf(err, "read invocation %s", id)
	}
	return rec, nil
}

// ReadInvocations returns the log entries for one account in seq order.
func (s *Store) ReadInvocations(ctx context.Context, accountID ir.Identity) ([]ir.InvocationRecord, error) {
	return s.queryInvocations(ctx, `
		SELECT `+invocationColumns+`
		FROM invocations
		WHERE account_id = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, marshalIdentity(accountID))
}

// ReadProgramInvocations returns the log entries for one program in seq order.
func (s *Store) ReadProgramInvocations(ctx context.Context, programID ir.Identity) ([]ir.InvocationRecord, error) {
	return s.queryInvocations(ctx, `
		SELECT `+invocationColumns+`
		FROM invocations
		WHERE program_id = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, marshalIdentity(programID))
}

// ReadAllInvocations returns the whole log in seq order.
func (s *Store) ReadAllInvocations(ctx context.Context) ([]ir.InvocationRecord, error) {
	return s.queryInvocations(ctx, `
		SELECT `+invocationColumns+`
		FROM invocations
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`)
}

// LastSeq returns the highest seq in the log, or 0 for an empty log.
// Used to resume the logical clock.
func (s *Store) LastSeq(ctx context.Context) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(seq), 0) FROM invocations
	`).Scan(&seq)
	if err != nil {
		return 0, errors.Wrap(err, "get last seq")
	}
	return seq, nil
}

func (s *Store) queryInvocations(ctx context.Context, query string, args ...any) ([]ir.InvocationRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query invocations")
	}
	defer rows.Close()

	records := []ir.InvocationRecord{}
	for rows.Next() {
		rec, err := scanInvocation(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate invocations")
	}
	return records, nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(row scanner) (ir.StoredAccount, error) {
	var (
		acct      ir.StoredAccount
		id, owner string
	)
	if err := row.Scan(&id, &acct.Name, &owner, &acct.Data, &acct.Seq); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return acct, ErrNotFound
		}
		return acct, errors.Wrap(err, "scan account")
	}

	var err error
	if acct.ID, err = unmarshalIdentity("id", id); err != nil {
		return acct, err
	}
	if acct.Owner, err = unmarshalIdentity("owner", owner); err != nil {
		return acct, err
	}
	return acct, nil
}

func scanInvocation(row scanner) (ir.InvocationRecord, error) {
	var (
		rec                          ir.InvocationRecord
		programID, accountID, signer string
		status, code                 string
	)
	err := row.Scan(
		&rec.ID,
		&rec.Seq,
		&rec.TxID,
		&programID,
		&accountID,
		&signer,
		&rec.Payload,
		&status,
		&code,
		&rec.ErrorMessage,
		&rec.StateBefore,
		&rec.StateAfter,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rec, ErrNotFound
		}
		return rec, errors.Wrap(err, "scan invocation")
	}

	if rec.ProgramID, err = unmarshalIdentity("program_id", programID); err != nil {
		return rec, err
	}
	if rec.AccountID, err = unmarshalIdentity("account_id", accountID); err != nil {
		return rec, err
	}
	if rec.Signer, err = unmarshalIdentity("signer", signer); err != nil {
		return rec, err
	}
	rec.Status = ir.Status(status)
	rec.ErrorCode = ir.ErrorCode(code)
	return rec, nil
}
