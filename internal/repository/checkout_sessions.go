package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const insertCheckoutSession = `
INSERT INTO checkout_sessions (provider_session_id, owner, amount, currency, metadata)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, provider_session_id, owner, amount, currency, status, metadata, needs_review, created_at, updated_at
`

type InsertCheckoutSessionParams struct {
	ProviderSessionID string
	Owner             string
	Amount            pgtype.Numeric
	Currency          string
	Metadata          []byte
}

func (q *Queries) InsertCheckoutSession(
	c context.Context,
	arg InsertCheckoutSessionParams,
) (CheckoutSession, error) {
	row := q.db.QueryRow(c, insertCheckoutSession,
		arg.ProviderSessionID,
		arg.Owner,
		arg.Amount,
		arg.Currency,
		arg.Metadata,
	)
	var s CheckoutSession
	err := scanCheckoutSession(row, &s)
	return s, err
}

const findCheckoutSessionByProviderId = `
SELECT id, provider_session_id, owner, amount, currency, status, metadata, needs_review, created_at, updated_at
FROM checkout_sessions
WHERE provider_session_id = $1
`

func (q *Queries) FindCheckoutSessionByProviderId(
	c context.Context,
	providerSessionID string,
) (CheckoutSession, error) {
	row := q.db.QueryRow(c, findCheckoutSessionByProviderId, providerSessionID)
	var s CheckoutSession
	err := scanCheckoutSession(row, &s)
	return s, err
}

// transitionCheckoutSession is the compare-and-set guarding the state
// machine: it only moves a session out of 'initiated', and updating zero
// rows means another caller already applied a terminal transition.
const transitionCheckoutSession = `
UPDATE checkout_sessions
SET status = $2, updated_at = now()
WHERE provider_session_id = $1 AND status = 'initiated'
RETURNING id, provider_session_id, owner, amount, currency, status, metadata, needs_review, created_at, updated_at
`

type TransitionCheckoutSessionParams struct {
	ProviderSessionID string
	Status            CheckoutSessionStatus
}

func (q *Queries) TransitionCheckoutSession(
	c context.Context,
	arg TransitionCheckoutSessionParams,
) (CheckoutSession, error) {
	row := q.db.QueryRow(c, transitionCheckoutSession, arg.ProviderSessionID, arg.Status)
	var s CheckoutSession
	err := scanCheckoutSession(row, &s)
	return s, err
}

const flagCheckoutSessionForReview = `
UPDATE checkout_sessions
SET status = 'failed', needs_review = TRUE, updated_at = now()
WHERE provider_session_id = $1 AND status = 'initiated'
`

// FlagCheckoutSessionForReview records an operational exception: the
// provider collected the payment but the local transition could not be
// applied (for example the stock ran out underneath the session).
func (q *Queries) FlagCheckoutSessionForReview(
	c context.Context,
	providerSessionID string,
) (int64, error) {
	tag, err := q.db.Exec(c, flagCheckoutSessionForReview, providerSessionID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanCheckoutSession(row scannable, s *CheckoutSession) error {
	return row.Scan(
		&s.ID,
		&s.ProviderSessionID,
		&s.Owner,
		&s.Amount,
		&s.Currency,
		&s.Status,
		&s.Metadata,
		&s.NeedsReview,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
}
