package runtime

import (
	"bytes"
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/roach88/abacus/internal/engine"
	"github.com/roach88/abacus/internal/ir"
)

// Replay and determinism
//
// The log is sufficient to rebuild any account: starting from a zeroed,
// unowned buffer of the account's size, re-running every logged payload in
// seq order must reproduce every logged outcome and, at the end, the stored
// bytes and owner. Replay is read-only; it reports divergence and never
// repairs it.

// Mismatch is one divergence found by Replay.
type Mismatch struct {
	Seq          int64  `json:"seq"`
	InvocationID string `json:"invocation_id"`
	Reason       string `json:"reason"`
}

// ReplayReport summarizes a replay of one account's log.
type ReplayReport struct {
	Account    string      `json:"account"`
	Replayed   int         `json:"replayed"` // Entries re-executed
	Committed  int         `json:"committed"`
	Failed     int         `json:"failed"`
	Mismatches []Mismatch  `json:"mismatches"`
	FinalState []byte      `json:"final_state"`
	FinalOwner ir.Identity `json:"final_owner"`
}

// Consistent reports whether the replay reproduced the log exactly.
func (r ReplayReport) Consistent() bool {
	return len(r.Mismatches) == 0
}

// Replay re-executes an account's log and verifies it.
func (h *Host) Replay(ctx context.Context, name string) (ReplayReport, error) {
	acct, err := h.store.ReadAccountByName(ctx, name)
	if err != nil {
		return ReplayReport{}, errors.Wrap(err, "replay")
	}
	log, err := h.store.ReadInvocations(ctx, acct.ID)
	if err != nil {
		return ReplayReport{}, errors.Wrap(err, "replay")
	}

	report := ReplayReport{Account: name, Mismatches: []Mismatch{}}
	data := make([]byte, len(acct.Data))
	owner := ir.SystemIdentity

	mismatch := func(rec ir.InvocationRecord, reason string) {
		report.Mismatches = append(report.Mismatches, Mismatch{Seq: rec.Seq, InvocationID: rec.ID, Reason: reason})
	}

	for _, rec := range log {
		report.Replayed++

		wantID, err := ir.InvocationID(rec.ProgramID, rec.AccountID, rec.Signer, rec.Payload, rec.Seq)
		if err != nil {
			return report, errors.Wrapf(err, "replay seq %d", rec.Seq)
		}
		if wantID != rec.ID {
			mismatch(rec, "invocation id does not match its content")
		}
		if !bytes.Equal(rec.StateBefore, data) {
			mismatch(rec, "logged state_before differs from replayed state")
		}

		working := bytes.Clone(data)
		current := ir.StoredAccount{ID: acct.ID, Owner: owner}
		progErr := engine.Invoke(h.registry, rec.ProgramID, deriveAccounts(current, rec.ProgramID, rec.Signer, working), rec.Payload)

		switch {
		case rec.Status == ir.StatusOK && progErr != nil:
			mismatch(rec, "logged ok, replay failed: "+progErr.Error())
		case rec.Status == ir.StatusFailed && progErr == nil:
			mismatch(rec, "logged "+string(rec.ErrorCode)+", replay succeeded")
		case rec.Status == ir.StatusFailed && ir.CodeOf(progErr) != rec.ErrorCode:
			mismatch(rec, "logged "+string(rec.ErrorCode)+", replay failed with "+string(ir.CodeOf(progErr)))
		}

		if progErr != nil {
			report.Failed++
			continue
		}
		report.Committed++
		if !bytes.Equal(rec.StateAfter, working) {
			mismatch(rec, "logged state_after differs from replayed state")
		}
		data = working
		owner = rec.ProgramID
	}

	if !bytes.Equal(data, acct.Data) {
		report.Mismatches = append(report.Mismatches, Mismatch{Seq: acct.Seq, Reason: "stored bytes differ from replayed bytes"})
	}
	if owner != acct.Owner {
		report.Mismatches = append(report.Mismatches, Mismatch{Seq: acct.Seq, Reason: "stored owner differs from replayed owner"})
	}
	report.FinalState = data
	report.FinalOwner = owner

	h.logger.Info("replay finished",
		zap.String("account", name),
		zap.Int("replayed", report.Replayed),
		zap.Int("mismatches", len(report.Mismatches)),
	)
	return report, nil
}
