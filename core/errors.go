package core

import "errors"

// CoreError carries one stable error-kind string plus optional context
// (e.g. the post_id that triggered it), so a future wire codec can
// serialize {kind, context} without re-deriving either from a generic
// error message.
type CoreError struct {
	Kind    string
	Context map[string]any
	cause   error
}

func (e *CoreError) Error() string {
	if e.cause != nil {
		return e.Kind + ": " + e.cause.Error()
	}
	return e.Kind
}

func (e *CoreError) Unwrap() error { return e.cause }

// Is reports whether target is the same CoreError kind, so callers can use
// errors.Is(err, ErrOnCooldown) instead of string comparison.
func (e *CoreError) Is(target error) bool {
	other, ok := target.(*CoreError)
	if !ok {
		return false
	}
	return other.Kind == e.Kind
}

func newErr(kind string) *CoreError { return &CoreError{Kind: kind} }

// withContext returns a copy of the sentinel carrying extra context, e.g.
// ErrPostDeleted.withContext("post_id", id).
func (e *CoreError) withContext(kv ...any) *CoreError {
	ctx := make(map[string]any, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		if k, ok := kv[i].(string); ok {
			ctx[k] = kv[i+1]
		}
	}
	return &CoreError{Kind: e.Kind, Context: ctx, cause: e.cause}
}

// Stable error-kind sentinels, declared together so the taxonomy stays in
// one place even though each sentinel is raised from the module file that
// owns the corresponding operation.
var (
	ErrNotFound     = newErr("NotFound")
	ErrUnauthorized = newErr("Unauthorized")

	// Role Manager
	ErrMissingRole    = newErr("MissingRole")
	ErrCannotRenounce = newErr("CannotRenounce")

	// Tribe Controller
	ErrBanned                = newErr("Banned")
	ErrAlreadyMember         = newErr("AlreadyMember")
	ErrInvalidInviteCode     = newErr("InvalidInviteCode")
	ErrInviteCodeExpired     = newErr("InviteCodeExpired")
	ErrInviteCodeExhausted   = newErr("InviteCodeExhausted")
	ErrInviteCodeRevoked     = newErr("InviteCodeRevoked")
	ErrCodeExists            = newErr("CodeExists")
	ErrTribeNotMergeable     = newErr("TribeNotMergeable")
	ErrMergeAlreadyRequested = newErr("MergeAlreadyRequested")
	ErrMergeNotApproved      = newErr("MergeNotApproved")
	ErrNFTGateNotSatisfied   = newErr("NFTGateNotSatisfied")

	// Post Minter
	ErrNotTribeMember        = newErr("NotTribeMember")
	ErrEmptyMetadata         = newErr("EmptyMetadata")
	ErrInvalidParentPost     = newErr("InvalidParentPost")
	ErrPostDeleted           = newErr("PostDeleted")
	ErrInvalidEncryptionKey  = newErr("InvalidEncryptionKey")
	ErrInvalidAddress        = newErr("InvalidAddress")
	ErrCannotInteractWithOwn = newErr("CannotInteractWithOwn")
	ErrAlreadyReported       = newErr("AlreadyReported")
	ErrNotPostCreator        = newErr("NotPostCreator")
	ErrOnCooldown            = newErr("OnCooldown")
	ErrBatchTooLarge         = newErr("BatchTooLarge")
	ErrBatchOnCooldown       = newErr("BatchOnCooldown")
	ErrPaused                = newErr("Paused")
	ErrNotRateLimitManager   = newErr("NotRateLimitManager")
)

// IsNotFound is a convenience wrapper around errors.Is for the common case.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
