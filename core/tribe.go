package core

import (
	"encoding/json"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"
)

// JoinType enumerates a tribe's join policies.
type JoinType uint8

const (
	JoinPublic JoinType = iota + 1
	JoinPrivate
	JoinInviteCode
	JoinNFTGated
	JoinMultiNFT
	JoinAnyNFT
)

// MemberStatus is the per-(tribe,address) state machine value. The zero
// value NONE is never persisted; absence of a stored record means NONE.
type MemberStatus uint8

const (
	StatusNone MemberStatus = iota
	StatusPending
	StatusActive
	StatusBanned
)

// precedence ranks statuses for the merge fold:
// BANNED > ACTIVE > PENDING > NONE.
func (s MemberStatus) precedence() int {
	switch s {
	case StatusBanned:
		return 3
	case StatusActive:
		return 2
	case StatusPending:
		return 1
	default:
		return 0
	}
}

// NFTRequirement is one entry of a tribe's NFT gate.
type NFTRequirement struct {
	Contract  Address     `json:"contract"`
	Type      NFTStandard `json:"type"`
	Mandatory bool        `json:"mandatory"`
	MinAmount uint64      `json:"min_amount"`
	TokenIDs  []uint64    `json:"token_ids,omitempty"`
}

// InviteCode is a tribe's invite_codes record.
type InviteCode struct {
	MaxUses   uint32  `json:"max_uses"`
	Uses      uint32  `json:"uses"`
	ExpiresAt int64   `json:"expires_at"`
	Revoked   bool    `json:"revoked"`
	Creator   Address `json:"creator"`
}

// MergeRequest is a merge_requests record, keyed by (source_id, target_id)
// at the call site.
type MergeRequest struct {
	RequestedBy Address `json:"requested_by"`
	Approved    bool    `json:"approved"`
	ApprovedAt  int64   `json:"approved_at,omitempty"`
}

// Tribe is the persisted tribe record.
type Tribe struct {
	ID              uint64           `json:"id"`
	Name            string           `json:"name"`
	Metadata        string           `json:"metadata"`
	Admins          []Address        `json:"admins"`
	Whitelist       map[string]bool  `json:"whitelist"`
	JoinType        JoinType         `json:"join_type"`
	EntryFee        uint64           `json:"entry_fee"`
	NFTRequirements []NFTRequirement `json:"nft_requirements,omitempty"`
	IsMergeable     bool             `json:"is_mergeable"`
	MemberCount     uint64           `json:"member_count"`
	CreatedAt       int64            `json:"created_at"`
	UpdatedAt       int64            `json:"updated_at"`
}

func (t *Tribe) isAdmin(addr Address) bool {
	for _, a := range t.Admins {
		if a == addr {
			return true
		}
	}
	return false
}

// TribeController owns the membership state machine, invite codes, NFT
// gate evaluation, and the three-phase merge protocol for tribes.
type TribeController struct {
	mu      sync.Mutex
	store   KVStore
	nftq    NFTOwnershipQuerier
	clock   Clock
	counter *counter
}

// NewTribeController constructs a controller over store. nftq may be nil if
// no tribe in this deployment ever uses an NFT-gated join type.
func NewTribeController(store KVStore, nftq NFTOwnershipQuerier, clk Clock) *TribeController {
	return &TribeController{store: store, nftq: nftq, clock: clk, counter: newCounter(store, "tribe_counter")}
}

func tribeKey(id uint64) []byte { return []byte(fmt.Sprintf("tribe:%s", idSuffix(id))) }

func tribeMemberKey(id uint64, addr Address) []byte {
	return []byte(fmt.Sprintf("tribe_member:%s:%s", idSuffix(id), addr.Hex()))
}

func tribeInviteKey(id uint64, code string) []byte {
	return []byte(fmt.Sprintf("tribe_invite:%s:%s", idSuffix(id), code))
}

func tribeMergeKey(source, target uint64) []byte {
	return []byte(fmt.Sprintf("tribe_merge:%s:%s", idSuffix(source), idSuffix(target)))
}

func (tc *TribeController) load(id uint64) (*Tribe, error) {
	raw, err := tc.store.Get(tribeKey(id))
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, ErrNotFound.withContext("tribe_id", id)
	}
	var t Tribe
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (tc *TribeController) save(t *Tribe) error {
	t.UpdatedAt = nowUnix(tc.clock)
	raw, err := json.Marshal(t)
	if err != nil {
		return err
	}
	return tc.store.Set(tribeKey(t.ID), raw)
}

// GetTribeConfigView returns the tribe record, failing NotFound for a
// merged/absent tribe.
func (tc *TribeController) GetTribeConfigView(id uint64) (*Tribe, error) {
	return tc.load(id)
}

func (tc *TribeController) statusOf(id uint64, addr Address) MemberStatus {
	raw, _ := tc.store.Get(tribeMemberKey(id, addr))
	if len(raw) == 0 {
		return StatusNone
	}
	return MemberStatus(raw[0])
}

// GetMemberStatus is the public status query; it never errors.
func (tc *TribeController) GetMemberStatus(id uint64, addr Address) MemberStatus {
	return tc.statusOf(id, addr)
}

func (tc *TribeController) setStatus(t *Tribe, addr Address, status MemberStatus) error {
	prev := tc.statusOf(t.ID, addr)
	if err := tc.store.Set(tribeMemberKey(t.ID, addr), []byte{byte(status)}); err != nil {
		return err
	}
	if prev != StatusActive && status == StatusActive {
		t.MemberCount++
	} else if prev == StatusActive && status != StatusActive {
		if t.MemberCount > 0 {
			t.MemberCount--
		}
	}
	return nil
}

// CreateTribe creates a new tribe with caller as its first admin.
func (tc *TribeController) CreateTribe(caller Address, name, metadata string, joinType JoinType, entryFee uint64, reqs []NFTRequirement, mergeable bool) (*Tribe, error) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	if name == "" {
		return nil, ErrEmptyMetadata.withContext("field", "name")
	}
	if metadata == "" {
		return nil, ErrEmptyMetadata.withContext("field", "metadata")
	}
	id, err := tc.counter.Next()
	if err != nil {
		return nil, err
	}
	now := nowUnix(tc.clock)
	t := &Tribe{
		ID:              id,
		Name:            name,
		Metadata:        metadata,
		Admins:          []Address{caller},
		Whitelist:       map[string]bool{caller.Hex(): true},
		JoinType:        joinType,
		EntryFee:        entryFee,
		NFTRequirements: reqs,
		IsMergeable:     mergeable,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := tc.setStatus(t, caller, StatusActive); err != nil {
		return nil, err
	}
	if err := tc.save(t); err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{"tribe_id": id, "creator": caller.Short()}).Info("tribe created")
	Broadcast(Event{Action: "create_tribe", Caller: caller, Attributes: map[string]any{"tribe_id": id, "name": name}})
	return t, nil
}

// preflightJoin rejects a join by a caller who is already BANNED (Banned)
// or already PENDING/ACTIVE (AlreadyMember); it does not change status.
func (tc *TribeController) preflightJoin(t *Tribe, caller Address) error {
	switch tc.statusOf(t.ID, caller) {
	case StatusBanned:
		return ErrBanned.withContext("tribe_id", t.ID)
	case StatusPending, StatusActive:
		return ErrAlreadyMember.withContext("tribe_id", t.ID)
	}
	return nil
}

// JoinTribe implements the PUBLIC, PRIVATE (request), and NFT-gated
// (NFT_GATED/MULTI_NFT/ANY_NFT) join paths. PRIVATE tribes transition
// NONE->PENDING (a join "request"); every other supported type transitions
// NONE->ACTIVE directly on success.
func (tc *TribeController) JoinTribe(caller Address, tribeID uint64) error {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	t, err := tc.load(tribeID)
	if err != nil {
		return err
	}
	if err := tc.preflightJoin(t, caller); err != nil {
		return err
	}
	switch t.JoinType {
	case JoinPublic:
		if err := tc.setStatus(t, caller, StatusActive); err != nil {
			return err
		}
	case JoinPrivate:
		if err := tc.setStatus(t, caller, StatusPending); err != nil {
			return err
		}
	case JoinNFTGated, JoinMultiNFT, JoinAnyNFT:
		ok, err := tc.evaluateNFTGate(t, caller)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNFTGateNotSatisfied.withContext("tribe_id", t.ID)
		}
		if err := tc.setStatus(t, caller, StatusActive); err != nil {
			return err
		}
	case JoinInviteCode:
		return ErrUnauthorized.withContext("reason", "use join_tribe_with_code for INVITE_CODE tribes")
	default:
		return ErrUnauthorized.withContext("reason", "unknown join type")
	}
	if err := tc.save(t); err != nil {
		return err
	}
	log.WithFields(log.Fields{"tribe_id": t.ID, "caller": caller.Short(), "status": t.JoinType}).Info("tribe join")
	Broadcast(Event{Action: "join_tribe", Caller: caller, Attributes: map[string]any{"tribe_id": t.ID}})
	return nil
}

// evaluateNFTGate implements the NFT gate evaluation rules for
// NFT_GATED/MULTI_NFT/ANY_NFT tribes.
func (tc *TribeController) evaluateNFTGate(t *Tribe, addr Address) (bool, error) {
	if tc.nftq == nil || len(t.NFTRequirements) == 0 {
		return false, nil
	}
	passes := func(r NFTRequirement) (bool, error) {
		if len(r.TokenIDs) > 0 {
			var sum uint64
			for _, id := range r.TokenIDs {
				n, err := tc.nftq.OwnsSpecific(r.Contract, addr, id)
				if err != nil {
					return false, err
				}
				sum += n
				if r.Type == NFTStandardERC721 && n > 0 {
					return true, nil
				}
			}
			return sum >= r.MinAmount, nil
		}
		n, err := tc.nftq.Owns(r.Contract, addr)
		if err != nil {
			return false, err
		}
		return n >= r.MinAmount, nil
	}

	switch t.JoinType {
	case JoinNFTGated:
		return passes(t.NFTRequirements[0])
	case JoinMultiNFT:
		for _, r := range t.NFTRequirements {
			if !r.Mandatory {
				continue
			}
			ok, err := passes(r)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil
	case JoinAnyNFT:
		for _, r := range t.NFTRequirements {
			if r.Mandatory {
				ok, err := passes(r)
				if err != nil {
					return false, err
				}
				if !ok {
					return false, nil
				}
			}
		}
		for _, r := range t.NFTRequirements {
			if r.Mandatory {
				continue
			}
			ok, err := passes(r)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	default:
		return false, nil
	}
}

// RequestToJoin is the PRIVATE-tribe request path, named separately for
// clarity at the call site. It delegates to JoinTribe, so on a PRIVATE
// tribe it records a PENDING request and on any other join type it behaves
// exactly as JoinTribe.
func (tc *TribeController) RequestToJoin(caller Address, tribeID uint64) error {
	return tc.JoinTribe(caller, tribeID)
}

// ApproveMember transitions a PENDING request to ACTIVE. Caller must be a
// tribe admin.
func (tc *TribeController) ApproveMember(caller Address, tribeID uint64, member Address) error {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	t, err := tc.load(tribeID)
	if err != nil {
		return err
	}
	if !t.isAdmin(caller) {
		return ErrUnauthorized.withContext("tribe_id", tribeID)
	}
	if tc.statusOf(tribeID, member) != StatusPending {
		return ErrUnauthorized.withContext("reason", "not pending")
	}
	if err := tc.setStatus(t, member, StatusActive); err != nil {
		return err
	}
	if err := tc.save(t); err != nil {
		return err
	}
	Broadcast(Event{Action: "approve_member", Caller: caller, Attributes: map[string]any{"tribe_id": tribeID, "member": member.Hex()}})
	return nil
}

// RejectMember erases a PENDING request back to NONE.
func (tc *TribeController) RejectMember(caller Address, tribeID uint64, member Address) error {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	t, err := tc.load(tribeID)
	if err != nil {
		return err
	}
	if !t.isAdmin(caller) {
		return ErrUnauthorized.withContext("tribe_id", tribeID)
	}
	if tc.statusOf(tribeID, member) != StatusPending {
		return ErrUnauthorized.withContext("reason", "not pending")
	}
	if err := tc.setStatus(t, member, StatusNone); err != nil {
		return err
	}
	if err := tc.store.Delete(tribeMemberKey(tribeID, member)); err != nil {
		return err
	}
	if err := tc.save(t); err != nil {
		return err
	}
	Broadcast(Event{Action: "reject_member", Caller: caller, Attributes: map[string]any{"tribe_id": tribeID, "member": member.Hex()}})
	return nil
}

// BanMember transitions any status to BANNED, a sticky terminal state. Caller
// must be a tribe admin.
func (tc *TribeController) BanMember(caller Address, tribeID uint64, member Address) error {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	t, err := tc.load(tribeID)
	if err != nil {
		return err
	}
	if !t.isAdmin(caller) {
		return ErrUnauthorized.withContext("tribe_id", tribeID)
	}
	if err := tc.setStatus(t, member, StatusBanned); err != nil {
		return err
	}
	if err := tc.save(t); err != nil {
		return err
	}
	log.WithFields(log.Fields{"tribe_id": tribeID, "member": member.Short(), "caller": caller.Short()}).Warn("member banned")
	Broadcast(Event{Action: "ban_member", Caller: caller, Attributes: map[string]any{"tribe_id": tribeID, "member": member.Hex()}})
	return nil
}

// CreateInviteCode registers a new invite code. Caller must be a tribe admin.
func (tc *TribeController) CreateInviteCode(caller Address, tribeID uint64, code string, maxUses uint32, expiresAt int64) error {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	t, err := tc.load(tribeID)
	if err != nil {
		return err
	}
	if !t.isAdmin(caller) {
		return ErrUnauthorized.withContext("tribe_id", tribeID)
	}
	if ok, _ := tc.store.Has(tribeInviteKey(tribeID, code)); ok {
		return ErrCodeExists.withContext("code", code)
	}
	ic := InviteCode{MaxUses: maxUses, ExpiresAt: expiresAt, Creator: caller}
	raw, _ := json.Marshal(ic)
	if err := tc.store.Set(tribeInviteKey(tribeID, code), raw); err != nil {
		return err
	}
	Broadcast(Event{Action: "create_invite_code", Caller: caller, Attributes: map[string]any{"tribe_id": tribeID, "code": code}})
	return nil
}

func (tc *TribeController) loadInvite(tribeID uint64, code string) (*InviteCode, error) {
	raw, err := tc.store.Get(tribeInviteKey(tribeID, code))
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, ErrInvalidInviteCode.withContext("code", code)
	}
	var ic InviteCode
	if err := json.Unmarshal(raw, &ic); err != nil {
		return nil, err
	}
	return &ic, nil
}

// JoinTribeWithCode is the only accepted join path for INVITE_CODE tribes.
func (tc *TribeController) JoinTribeWithCode(caller Address, tribeID uint64, code string) error {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	t, err := tc.load(tribeID)
	if err != nil {
		return err
	}
	if err := tc.preflightJoin(t, caller); err != nil {
		return err
	}
	ic, err := tc.loadInvite(tribeID, code)
	if err != nil {
		return err
	}
	if ic.Revoked {
		return ErrInviteCodeRevoked.withContext("code", code)
	}
	if nowUnix(tc.clock) > ic.ExpiresAt {
		return ErrInviteCodeExpired.withContext("code", code)
	}
	if ic.Uses >= ic.MaxUses {
		return ErrInviteCodeExhausted.withContext("code", code)
	}
	ic.Uses++
	raw, _ := json.Marshal(ic)
	if err := tc.store.Set(tribeInviteKey(tribeID, code), raw); err != nil {
		return err
	}
	if err := tc.setStatus(t, caller, StatusActive); err != nil {
		return err
	}
	if err := tc.save(t); err != nil {
		return err
	}
	Broadcast(Event{Action: "join_tribe_with_code", Caller: caller, Attributes: map[string]any{"tribe_id": tribeID, "code": code}})
	return nil
}

// RevokeInviteCode irreversibly disables a code. Caller must be a tribe admin.
func (tc *TribeController) RevokeInviteCode(caller Address, tribeID uint64, code string) error {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	t, err := tc.load(tribeID)
	if err != nil {
		return err
	}
	if !t.isAdmin(caller) {
		return ErrUnauthorized.withContext("tribe_id", tribeID)
	}
	ic, err := tc.loadInvite(tribeID, code)
	if err != nil {
		return err
	}
	ic.Revoked = true
	raw, _ := json.Marshal(ic)
	if err := tc.store.Set(tribeInviteKey(tribeID, code), raw); err != nil {
		return err
	}
	Broadcast(Event{Action: "revoke_invite_code", Caller: caller, Attributes: map[string]any{"tribe_id": tribeID, "code": code}})
	return nil
}

// InviteCodeStatus is the query-side view of an invite code's remaining
// capacity, used by get_invite_code_status.
type InviteCodeStatus struct {
	Exists        bool  `json:"exists"`
	RemainingUses int64 `json:"remaining_uses"`
	Revoked       bool  `json:"revoked"`
	ExpiresAt     int64 `json:"expires_at"`
}

// GetInviteCodeStatus never errors.
func (tc *TribeController) GetInviteCodeStatus(tribeID uint64, code string) InviteCodeStatus {
	ic, err := tc.loadInvite(tribeID, code)
	if err != nil || ic == nil {
		return InviteCodeStatus{}
	}
	remaining := int64(ic.MaxUses) - int64(ic.Uses)
	if remaining < 0 {
		remaining = 0
	}
	return InviteCodeStatus{Exists: true, RemainingUses: remaining, Revoked: ic.Revoked, ExpiresAt: ic.ExpiresAt}
}

// --- Merge protocol ---

func (tc *TribeController) loadMerge(source, target uint64) (*MergeRequest, error) {
	raw, err := tc.store.Get(tribeMergeKey(source, target))
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, nil
	}
	var mr MergeRequest
	if err := json.Unmarshal(raw, &mr); err != nil {
		return nil, err
	}
	return &mr, nil
}

// RequestTribeMerge begins the three-phase merge protocol. Caller must be a
// source-tribe admin; both tribes must be mergeable.
func (tc *TribeController) RequestTribeMerge(caller Address, source, target uint64) error {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	src, err := tc.load(source)
	if err != nil {
		return err
	}
	dst, err := tc.load(target)
	if err != nil {
		return err
	}
	if !src.isAdmin(caller) {
		return ErrUnauthorized.withContext("tribe_id", source)
	}
	if !src.IsMergeable || !dst.IsMergeable {
		return ErrTribeNotMergeable.withContext("source", source, "target", target)
	}
	existing, err := tc.loadMerge(source, target)
	if err != nil {
		return err
	}
	if existing != nil {
		return ErrMergeAlreadyRequested.withContext("source", source, "target", target)
	}
	mr := MergeRequest{RequestedBy: caller}
	raw, _ := json.Marshal(mr)
	if err := tc.store.Set(tribeMergeKey(source, target), raw); err != nil {
		return err
	}
	Broadcast(Event{Action: "request_tribe_merge", Caller: caller, Attributes: map[string]any{"source": source, "target": target}})
	return nil
}

// ApproveTribeMerge flips approved=true. Caller must be a target-tribe admin.
func (tc *TribeController) ApproveTribeMerge(caller Address, source, target uint64) error {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	dst, err := tc.load(target)
	if err != nil {
		return err
	}
	if !dst.isAdmin(caller) {
		return ErrUnauthorized.withContext("tribe_id", target)
	}
	mr, err := tc.loadMerge(source, target)
	if err != nil {
		return err
	}
	if mr == nil {
		return ErrNotFound.withContext("source", source, "target", target)
	}
	mr.Approved = true
	mr.ApprovedAt = nowUnix(tc.clock)
	raw, _ := json.Marshal(mr)
	if err := tc.store.Set(tribeMergeKey(source, target), raw); err != nil {
		return err
	}
	Broadcast(Event{Action: "approve_tribe_merge", Caller: caller, Attributes: map[string]any{"source": source, "target": target}})
	return nil
}

// CancelMergeRequest is available to either admin group before execution.
func (tc *TribeController) CancelMergeRequest(caller Address, source, target uint64) error {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	src, err := tc.load(source)
	if err != nil {
		return err
	}
	dst, err := tc.load(target)
	if err != nil {
		return err
	}
	if !src.isAdmin(caller) && !dst.isAdmin(caller) {
		return ErrUnauthorized.withContext("source", source, "target", target)
	}
	if err := tc.store.Delete(tribeMergeKey(source, target)); err != nil {
		return err
	}
	Broadcast(Event{Action: "cancel_merge_request", Caller: caller, Attributes: map[string]any{"source": source, "target": target}})
	return nil
}

// ExecuteTribeMerge folds source's membership into target and deletes the
// source tribe record: every non-BANNED source member inherits ACTIVE in
// target, while a BANNED source member, or a target member already
// BANNED, stays BANNED (BANNED > ACTIVE > PENDING > NONE).
func (tc *TribeController) ExecuteTribeMerge(caller Address, source, target uint64) error {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	src, err := tc.load(source)
	if err != nil {
		return err
	}
	dst, err := tc.load(target)
	if err != nil {
		return err
	}
	if !src.isAdmin(caller) && !dst.isAdmin(caller) {
		return ErrUnauthorized.withContext("source", source, "target", target)
	}
	mr, err := tc.loadMerge(source, target)
	if err != nil {
		return err
	}
	if mr == nil || !mr.Approved {
		return ErrMergeNotApproved.withContext("source", source, "target", target)
	}

	it := tc.store.PrefixIterator([]byte(fmt.Sprintf("tribe_member:%s:", idSuffix(source))))
	type memberStatus struct {
		addr   Address
		status MemberStatus
	}
	var members []memberStatus
	prefixLen := len(fmt.Sprintf("tribe_member:%s:", idSuffix(source)))
	for it.Next() {
		key := string(it.Key())
		addr, aerr := ParseAddress(key[prefixLen:])
		if aerr != nil {
			continue
		}
		members = append(members, memberStatus{addr: addr, status: MemberStatus(it.Value()[0])})
	}

	for _, m := range members {
		desired := m.status
		if desired != StatusBanned {
			desired = StatusActive
		}
		cur := tc.statusOf(target, m.addr)
		if desired.precedence() > cur.precedence() {
			if err := tc.setStatus(dst, m.addr, desired); err != nil {
				return err
			}
		}
	}
	if err := tc.save(dst); err != nil {
		return err
	}
	if err := tc.store.Delete(tribeKey(source)); err != nil {
		return err
	}
	if err := tc.store.Delete(tribeMergeKey(source, target)); err != nil {
		return err
	}
	log.WithFields(log.Fields{"source": source, "target": target}).Info("tribe merge executed")
	Broadcast(Event{Action: "execute_tribe_merge", Caller: caller, Attributes: map[string]any{"source": source, "target": target}})
	return nil
}
