package store

import (
	"context"

	"github.com/pkg/errors"

	"github.com/roach88/abacus/internal/ir"
)

// CreateAccount inserts a new account.
// Returns ErrAccountExists if the id or the name is already taken.
func (s *Store) CreateAccount(ctx context.Context, acct ir.StoredAccount) error {
	if acct.Name == "" {
		return errors.New("create account: name is required")
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (id, name, owner, data, seq)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`,
		marshalIdentity(acct.ID),
		acct.Name,
		marshalIdentity(acct.Owner),
		marshalBlob(acct.Data),
		acct.Seq,
	)
	if err != nil {
		return errors.Wrap(err, "create account")
	}

	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "create account")
	}
	if n == 0 {
		return errors.Wrapf(ErrAccountExists, "create account %q", acct.Name)
	}
	return nil
}

// CommitInvocation appends rec to the invocation log. For a successful
// invocation it also stores rec.StateAfter as the account's data, sets its
// owner and advances its seq, all in one transaction.
//
// Uses ON CONFLICT(id) DO NOTHING for idempotency: an id that is already
// logged leaves both tables untouched and returns inserted=false.
func (s *Store) CommitInvocation(ctx context.Context, rec ir.InvocationRecord, owner ir.Identity) (inserted bool, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, errors.Wrap(err, "commit invocation: begin tx")
	}
	defer tx.Rollback() // No-op if committed

	res, err := tx.ExecContext(ctx, `
		INSERT INTO invocations
		(id, seq, tx_id, program_id, account_id, signer, payload, status, error_code, error_message,
		 state_before, state_after, engine_version, log_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		rec.ID,
		rec.Seq,
		rec.TxID,
		marshalIdentity(rec.ProgramID),
		marshalIdentity(rec.AccountID),
		marshalIdentity(rec.Signer),
		marshalBlob(rec.Payload),
		string(rec.Status),
		string(rec.ErrorCode),
		rec.ErrorMessage,
		marshalBlob(rec.StateBefore),
		marshalBlob(rec.StateAfter),
		ir.EngineVersion,
		ir.LogVersion,
	)
	if err != nil {
		return false, errors.Wrapf(err, "commit invocation %s", rec.ID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrapf(err, "commit invocation %s", rec.ID)
	}
	if n == 0 {
		return false, nil
	}

	if rec.Status == ir.StatusOK {
		res, err := tx.ExecContext(ctx, `
			UPDATE accounts SET data = ?, owner = ?, seq = ?
			WHERE id = ?
		`,
			marshalBlob(rec.StateAfter),
			marshalIdentity(owner),
			rec.Seq,
			marshalIdentity(rec.AccountID),
		)
		if err != nil {
			return false, errors.Wrapf(err, "commit invocation %s: update account", rec.ID)
		}
		if n, err := res.RowsAffected(); err != nil || n != 1 {
			return false, errors.Wrapf(ErrNotFound, "commit invocation %s: account %s", rec.ID, rec.AccountID.Short())
		}
	}

	if err := tx.Commit(); err != nil {
		return false, errors.Wrapf(err, "commit invocation %s", rec.ID)
	}
	return true, nil
}
