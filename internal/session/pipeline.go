package session

import (
	"context"
	"errors"

	"github.com/comzer-gov/casbot/internal/blacklist"
	"github.com/comzer-gov/casbot/internal/extraction"
	"github.com/comzer-gov/casbot/internal/identity"
	"github.com/comzer-gov/casbot/internal/joiner"
)

// Extractor is the structured extraction step. *extraction.Service implements it.
type Extractor interface {
	Extract(ctx context.Context, text string) (extraction.Record, string, error)
}

// errSessionGone aborts validation when the session ended while a call was in flight.
var errSessionGone = errors.New("session is no longer active")

type verdict struct {
	approved  bool
	reason    string
	joinerIDs []string
}

func reject(reason string) verdict {
	return verdict{reason: reason}
}

// validate runs the checks in order and stops at the first failure. It returns an
// error only when the work must be discarded: the deadline passed or the session ended.
func (m *Manager) validate(ctx context.Context, sessionID string, form extraction.Form, edition identity.Edition) (verdict, error) {
	// resume is called after every outbound call.
	resume := func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !m.alive(sessionID) {
			return errSessionGone
		}
		return nil
	}

	rec, _, err := m.extractor.Extract(ctx, form.InputText())
	if rerr := resume(); rerr != nil {
		return verdict{}, rerr
	}
	if err != nil {
		m.logf(sessionID, "整形エラー: %v", err)
		return reject(reasonParseFailed), nil
	}
	m.logf(sessionID, "整形結果: %s", rec.JSON())
	m.withSession(sessionID, func(s *Session) {
		s.Record = rec
		s.Extracted = true
	})
	return m.checkRecord(ctx, sessionID, rec, edition, resume)
}

func (m *Manager) checkRecord(ctx context.Context, sessionID string, rec extraction.Record, edition identity.Edition, resume func() error) (verdict, error) {
	hit, err := m.blacklist.IsBlacklisted(ctx, blacklist.CategoryCountry, rec.Nation)
	if rerr := resume(); rerr != nil {
		return verdict{}, rerr
	}
	if err != nil {
		m.logf(sessionID, "ブラックリスト照会エラー: %v", err)
		return reject(reasonBlacklistUnavailable), nil
	}
	if hit {
		m.logf(sessionID, "＜Blacklist(国)該当＞ %s", rec.Nation)
		return reject(reasonNationBlacklisted), nil
	}

	hit, err = m.blacklist.IsBlacklisted(ctx, blacklist.CategoryPlayer, rec.MCID)
	if rerr := resume(); rerr != nil {
		return verdict{}, rerr
	}
	if err != nil {
		m.logf(sessionID, "ブラックリスト照会エラー: %v", err)
		return reject(reasonBlacklistUnavailable), nil
	}
	if hit {
		m.logf(sessionID, "＜Blacklist(プレイヤー)該当＞ %s", rec.MCID)
		return reject(reasonPlayerBlacklisted), nil
	}

	if edition == "" {
		edition = identity.EditionJava
	}
	exists := m.identity.Exists(ctx, rec.MCID, edition)
	if rerr := resume(); rerr != nil {
		return verdict{}, rerr
	}
	if !exists {
		return reject(reasonApplicantNotFound(rec.MCID)), nil
	}

	for _, c := range rec.Companions {
		hit, err := m.blacklist.IsBlacklisted(ctx, blacklist.CategoryPlayer, c.MCID)
		if rerr := resume(); rerr != nil {
			return verdict{}, rerr
		}
		if err != nil {
			m.logf(sessionID, "ブラックリスト照会エラー: %v", err)
			return reject(reasonBlacklistUnavailable), nil
		}
		if hit {
			return reject(reasonCompanionBlacklisted(c.MCID)), nil
		}
		exists := m.identity.Exists(ctx, c.MCID, identity.CompanionEdition(c.MCID, edition))
		if rerr := resume(); rerr != nil {
			return verdict{}, rerr
		}
		if !exists {
			return reject(reasonCompanionNotFound(c.MCID)), nil
		}
		if c.Nation != "" && c.Nation != rec.Nation {
			return reject(reasonCompanionNationMismatch(c.MCID)), nil
		}
	}

	var joinerIDs []string
	if len(rec.Joiners) > 0 {
		ids, err := m.matcher.Match(ctx, rec.Joiners)
		if rerr := resume(); rerr != nil {
			return verdict{}, rerr
		}
		if err != nil {
			m.logf(sessionID, "合流者チェックエラー: %v", err)
			return reject(joinerFailureReason(err)), nil
		}
		joinerIDs = joiner.Resolve(rec.Joiners, ids)
		m.logf(sessionID, "合流者照合: %d/%d 件", len(joinerIDs), len(rec.Joiners))
	}

	stay, err := rec.Stay(m.loc)
	switch {
	case errors.Is(err, extraction.ErrInvalidDateTime):
		m.logf(sessionID, "期間の解析エラー: %v", err)
		return reject(reasonParseFailed), nil
	case err == nil && stay > m.cfg.MaxStay():
		return reject(reasonStayTooLong), nil
	}
	if !rec.Complete() {
		return reject(reasonMissingFields), nil
	}
	return verdict{approved: true, joinerIDs: joinerIDs}, nil
}

func joinerFailureReason(err error) string {
	var apiErr *joiner.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Message != "" {
			return apiErr.Message
		}
		return reasonJoinerServerError(apiErr.Status)
	}
	return reasonJoinerTransport
}

// runValidation guards validate against panics, which become the generic pipeline rejection.
func (m *Manager) runValidation(ctx context.Context, sessionID string, form extraction.Form, edition identity.Edition) (v verdict, err error) {
	defer func() {
		if r := recover(); r != nil {
			m.logf(sessionID, "審査処理の例外: %v", r)
			v, err = reject(reasonPipelineError), nil
		}
	}()
	return m.validate(ctx, sessionID, form, edition)
}
