package core

import (
	"encoding/json"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"
)

// RateLimitManagerRole gates the Post Minter's admin surface.
const RateLimitManagerRole = "RATE_LIMIT_MANAGER"

// PostType classifies a post's payload, inferred from the metadata's "type"
// field or defaulted to TEXT.
type PostType string

// PostTypeText is the implicit default post type.
const PostTypeText PostType = "TEXT"

// InteractionType identifies a reaction kind. LIKE and DISLIKE are
// mutually exclusive per (post, actor); other values (e.g. SHARE) are
// tracked independently.
type InteractionType string

const (
	InteractionLike    InteractionType = "LIKE"
	InteractionDislike InteractionType = "DISLIKE"
)

// Post is the persisted post record.
type Post struct {
	ID                  uint64          `json:"id"`
	Creator             Address         `json:"creator"`
	TribeID             uint64          `json:"tribe_id"`
	Metadata            string          `json:"metadata"`
	PostType            PostType        `json:"post_type"`
	IsGated             bool            `json:"is_gated"`
	CollectibleContract Address         `json:"collectible_contract,omitempty"`
	CollectibleID       uint64          `json:"collectible_id,omitempty"`
	IsEncrypted         bool            `json:"is_encrypted"`
	EncryptionKeyHash   string          `json:"encryption_key_hash,omitempty"`
	AccessSigner        Address         `json:"access_signer,omitempty"`
	ParentPostID        *uint64         `json:"parent_post_id,omitempty"`
	DeletedAt           *int64          `json:"deleted_at,omitempty"`
	ReportedBy          map[string]bool `json:"reported_by,omitempty"`
	AuthorizedViewers   map[string]bool `json:"authorized_viewers,omitempty"`
	CreatedAt           int64           `json:"created_at"`
}

func (p *Post) isDeleted() bool { return p.DeletedAt != nil }

// batchLimits is the persisted batch_limits record.
type batchLimits struct {
	MaxBatchSize  uint32 `json:"max_batch_size"`
	BatchCooldown int64  `json:"batch_cooldown"`
}

// BatchPostItem is one entry of a create_batch_posts call, sharing
// create_post's parameter shape.
type BatchPostItem struct {
	TribeID             uint64
	Metadata            string
	IsGated             bool
	CollectibleContract Address
	CollectibleID       uint64
}

// PostMinter owns post identity, the interaction ledger, encrypted-post
// viewer authorization, the cooldown rate limiter, and reply threading.
// Grounded on core/syn721_token.go's counter-plus-owner-index shape,
// generalized from a single NFT mapping to a post record plus three
// secondary indexes (by-tribe, by-user, by-parent).
type PostMinter struct {
	mu     sync.Mutex
	store  KVStore
	roles  *RoleManager
	tribes *TribeController
	nftq   NFTOwnershipQuerier
	clock  Clock

	counter *counter
}

// NewPostMinter wires the Post Minter to its collaborators and seeds the
// default cooldown and batch limits (TEXT cooldown 60s; batch limits
// {10, 300s}) if this store has never been initialized.
func NewPostMinter(store KVStore, roles *RoleManager, tribes *TribeController, nftq NFTOwnershipQuerier, clk Clock) *PostMinter {
	pm := &PostMinter{store: store, roles: roles, tribes: tribes, nftq: nftq, clock: clk, counter: newCounter(store, "post_counter")}
	if ok, _ := store.Has(postCooldownKey(PostTypeText)); !ok {
		_ = pm.setCooldown(PostTypeText, 60)
	}
	if ok, _ := store.Has(postBatchLimitsKey()); !ok {
		_ = pm.setBatchLimits(batchLimits{MaxBatchSize: 10, BatchCooldown: 300})
	}
	return pm
}

func postKey(id uint64) []byte { return []byte(fmt.Sprintf("post:%s", idSuffix(id))) }

func postInteractCountKey(id uint64, t InteractionType) []byte {
	return []byte(fmt.Sprintf("post_interact_count:%s:%s", idSuffix(id), t))
}

func postInteractKey(id uint64, t InteractionType, addr Address) []byte {
	return []byte(fmt.Sprintf("post_interact:%s:%s:%s", idSuffix(id), t, addr.Hex()))
}

func postReportedKey(id uint64, addr Address) []byte {
	return []byte(fmt.Sprintf("post_reported:%s:%s", idSuffix(id), addr.Hex()))
}

func postByTribeKey(tribeID, postID uint64) []byte {
	return []byte(fmt.Sprintf("post_by_tribe:%s:%s", idSuffix(tribeID), idSuffix(postID)))
}

func postByUserKey(addr Address, postID uint64) []byte {
	return []byte(fmt.Sprintf("post_by_user:%s:%s", addr.Hex(), idSuffix(postID)))
}

func postReplyKey(parentID, childID uint64) []byte {
	return []byte(fmt.Sprintf("post_reply:%s:%s", idSuffix(parentID), idSuffix(childID)))
}

func postCooldownKey(t PostType) []byte { return []byte(fmt.Sprintf("post_cooldown:%s", t)) }

func postLastAtKey(addr Address, t PostType) []byte {
	return []byte(fmt.Sprintf("post_last:%s:%s", addr.Hex(), t))
}

func postBatchLimitsKey() []byte { return []byte("post_batch_limits") }

func postLastBatchAtKey(addr Address) []byte {
	return []byte(fmt.Sprintf("post_last_batch:%s", addr.Hex()))
}

func postPausedKey() []byte { return []byte("post_paused") }

// derivePostType reads an optional "type" field out of an opaque JSON
// metadata payload, defaulting to TEXT. Non-JSON or typeless metadata is
// valid and simply classified as TEXT.
func derivePostType(metadata string) PostType {
	var shape struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal([]byte(metadata), &shape); err == nil && shape.Type != "" {
		return PostType(shape.Type)
	}
	return PostTypeText
}

func (pm *PostMinter) load(id uint64) (*Post, error) {
	raw, err := pm.store.Get(postKey(id))
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, ErrNotFound.withContext("post_id", id)
	}
	var p Post
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (pm *PostMinter) save(p *Post) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return pm.store.Set(postKey(p.ID), raw)
}

func (pm *PostMinter) isPaused() bool {
	ok, _ := pm.store.Has(postPausedKey())
	return ok
}

func (pm *PostMinter) cooldownFor(t PostType) int64 {
	raw, _ := pm.store.Get(postCooldownKey(t))
	if len(raw) == 0 {
		return 0
	}
	var secs int64
	_, _ = fmt.Sscanf(string(raw), "%d", &secs)
	return secs
}

func (pm *PostMinter) setCooldown(t PostType, seconds int64) error {
	return pm.store.Set(postCooldownKey(t), []byte(fmt.Sprintf("%d", seconds)))
}

func (pm *PostMinter) loadBatchLimits() batchLimits {
	raw, _ := pm.store.Get(postBatchLimitsKey())
	var bl batchLimits
	if len(raw) == 0 {
		return bl
	}
	_ = json.Unmarshal(raw, &bl)
	return bl
}

func (pm *PostMinter) setBatchLimits(bl batchLimits) error {
	raw, _ := json.Marshal(bl)
	return pm.store.Set(postBatchLimitsKey(), raw)
}

func (pm *PostMinter) lastPostAt(addr Address, t PostType) int64 {
	raw, _ := pm.store.Get(postLastAtKey(addr, t))
	if len(raw) == 0 {
		return 0
	}
	var ts int64
	_, _ = fmt.Sscanf(string(raw), "%d", &ts)
	return ts
}

func (pm *PostMinter) setLastPostAt(addr Address, t PostType, ts int64) error {
	return pm.store.Set(postLastAtKey(addr, t), []byte(fmt.Sprintf("%d", ts)))
}

func (pm *PostMinter) checkCooldown(addr Address, t PostType, now int64) error {
	cd := pm.cooldownFor(t)
	if cd == 0 {
		return nil
	}
	posted, _ := pm.store.Has(postLastAtKey(addr, t))
	if !posted {
		return nil
	}
	last := pm.lastPostAt(addr, t)
	if now-last < cd {
		return ErrOnCooldown.withContext("post_type", t, "retry_after", last+cd-now)
	}
	return nil
}

func (pm *PostMinter) indexNewPost(p *Post) error {
	if err := pm.store.Set(postByTribeKey(p.TribeID, p.ID), []byte{1}); err != nil {
		return err
	}
	if err := pm.store.Set(postByUserKey(p.Creator, p.ID), []byte{1}); err != nil {
		return err
	}
	if p.ParentPostID != nil {
		if err := pm.store.Set(postReplyKey(*p.ParentPostID, p.ID), []byte{1}); err != nil {
			return err
		}
	}
	return nil
}

// CreatePost mints a top-level post into the given tribe, enforcing active
// membership, the per-type cooldown, and the gated-post collectible shape.
func (pm *PostMinter) CreatePost(caller Address, tribeID uint64, metadata string, isGated bool, collectibleContract Address, collectibleID uint64) (*Post, error) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	if pm.isPaused() {
		return nil, ErrPaused
	}
	if metadata == "" {
		return nil, ErrEmptyMetadata
	}
	if isGated && (collectibleContract.IsZero() || collectibleID == 0) {
		return nil, ErrEmptyMetadata.withContext("reason", "gated post requires collectible contract and id")
	}
	if pm.tribes.GetMemberStatus(tribeID, caller) != StatusActive {
		return nil, ErrNotTribeMember.withContext("tribe_id", tribeID)
	}
	postType := derivePostType(metadata)
	now := nowUnix(pm.clock)
	if err := pm.checkCooldown(caller, postType, now); err != nil {
		return nil, err
	}

	id, err := pm.counter.Next()
	if err != nil {
		return nil, err
	}
	p := &Post{
		ID:                  id,
		Creator:             caller,
		TribeID:             tribeID,
		Metadata:            metadata,
		PostType:            postType,
		IsGated:             isGated,
		CollectibleContract: collectibleContract,
		CollectibleID:       collectibleID,
		CreatedAt:           now,
	}
	if err := pm.save(p); err != nil {
		return nil, err
	}
	if err := pm.indexNewPost(p); err != nil {
		return nil, err
	}
	if err := pm.setLastPostAt(caller, postType, now); err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{"post_id": id, "tribe_id": tribeID, "creator": caller.Short()}).Info("post created")
	Broadcast(Event{Action: "create_post", Caller: caller, Attributes: map[string]any{"post_id": id, "tribe_id": tribeID}})
	return p, nil
}

// CreateReply mints a reply to an existing, non-deleted post. The reply
// inherits the parent's tribe and is subject to the same membership and
// cooldown checks as a top-level post.
func (pm *PostMinter) CreateReply(caller Address, parentPostID uint64, metadata string) (*Post, error) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	if pm.isPaused() {
		return nil, ErrPaused
	}
	if metadata == "" {
		return nil, ErrEmptyMetadata
	}
	parent, err := pm.load(parentPostID)
	if err != nil {
		if IsNotFound(err) {
			return nil, ErrInvalidParentPost.withContext("parent_post_id", parentPostID)
		}
		return nil, err
	}
	if parent.isDeleted() {
		return nil, ErrPostDeleted.withContext("post_id", parentPostID)
	}
	if pm.tribes.GetMemberStatus(parent.TribeID, caller) != StatusActive {
		return nil, ErrNotTribeMember.withContext("tribe_id", parent.TribeID)
	}
	postType := derivePostType(metadata)
	now := nowUnix(pm.clock)
	if err := pm.checkCooldown(caller, postType, now); err != nil {
		return nil, err
	}

	id, err := pm.counter.Next()
	if err != nil {
		return nil, err
	}
	p := &Post{
		ID:           id,
		Creator:      caller,
		TribeID:      parent.TribeID,
		Metadata:     metadata,
		PostType:     postType,
		ParentPostID: &parentPostID,
		CreatedAt:    now,
	}
	if err := pm.save(p); err != nil {
		return nil, err
	}
	if err := pm.indexNewPost(p); err != nil {
		return nil, err
	}
	if err := pm.setLastPostAt(caller, postType, now); err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{"post_id": id, "parent_post_id": parentPostID, "creator": caller.Short()}).Info("reply created")
	Broadcast(Event{Action: "create_reply", Caller: caller, Attributes: map[string]any{"post_id": id, "parent_post_id": parentPostID}})
	return p, nil
}

// CreateEncryptedPost mints a post whose content is gated behind an
// encryption key, with explicit per-viewer authorization. The creator is
// implicitly authorized to view their own encrypted post.
func (pm *PostMinter) CreateEncryptedPost(caller Address, tribeID uint64, metadata, encryptionKeyHash string, accessSigner Address) (*Post, error) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	if pm.isPaused() {
		return nil, ErrPaused
	}
	if metadata == "" {
		return nil, ErrEmptyMetadata
	}
	if encryptionKeyHash == "" {
		return nil, ErrInvalidEncryptionKey
	}
	if accessSigner.IsZero() {
		return nil, ErrInvalidAddress.withContext("field", "access_signer")
	}
	if pm.tribes.GetMemberStatus(tribeID, caller) != StatusActive {
		return nil, ErrNotTribeMember.withContext("tribe_id", tribeID)
	}
	postType := derivePostType(metadata)
	now := nowUnix(pm.clock)
	if err := pm.checkCooldown(caller, postType, now); err != nil {
		return nil, err
	}

	id, err := pm.counter.Next()
	if err != nil {
		return nil, err
	}
	p := &Post{
		ID:                id,
		Creator:           caller,
		TribeID:           tribeID,
		Metadata:          metadata,
		PostType:          postType,
		IsEncrypted:       true,
		EncryptionKeyHash: encryptionKeyHash,
		AccessSigner:      accessSigner,
		AuthorizedViewers: map[string]bool{},
		CreatedAt:         now,
	}
	if err := pm.save(p); err != nil {
		return nil, err
	}
	if err := pm.indexNewPost(p); err != nil {
		return nil, err
	}
	if err := pm.setLastPostAt(caller, postType, now); err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{"post_id": id, "tribe_id": tribeID, "creator": caller.Short()}).Info("encrypted post created")
	Broadcast(Event{Action: "create_encrypted_post", Caller: caller, Attributes: map[string]any{"post_id": id, "tribe_id": tribeID}})
	return p, nil
}

// CreateBatchPosts mints several posts atomically: a two-phase
// validate-then-commit so a single failing item aborts the entire batch
// with no partial state mutation.
func (pm *PostMinter) CreateBatchPosts(caller Address, items []BatchPostItem) ([]*Post, error) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	if pm.isPaused() {
		return nil, ErrPaused
	}
	limits := pm.loadBatchLimits()
	if uint32(len(items)) > limits.MaxBatchSize {
		return nil, ErrBatchTooLarge.withContext("max_batch_size", limits.MaxBatchSize)
	}
	now := nowUnix(pm.clock)
	if batched, _ := pm.store.Has(postLastBatchAtKey(caller)); batched {
		lastBatch := pm.lastBatchAt(caller)
		if now-lastBatch < limits.BatchCooldown {
			return nil, ErrBatchOnCooldown.withContext("retry_after", lastBatch+limits.BatchCooldown-now)
		}
	}

	// Phase 1: validate every item without mutating state.
	types := make([]PostType, len(items))
	for i, item := range items {
		if item.Metadata == "" {
			return nil, ErrEmptyMetadata.withContext("index", i)
		}
		if item.IsGated && (item.CollectibleContract.IsZero() || item.CollectibleID == 0) {
			return nil, ErrEmptyMetadata.withContext("index", i, "reason", "gated post requires collectible contract and id")
		}
		if pm.tribes.GetMemberStatus(item.TribeID, caller) != StatusActive {
			return nil, ErrNotTribeMember.withContext("index", i, "tribe_id", item.TribeID)
		}
		t := derivePostType(item.Metadata)
		types[i] = t
		if err := pm.checkCooldown(caller, t, now); err != nil {
			return nil, err
		}
	}

	// Phase 2: commit.
	posts := make([]*Post, len(items))
	seenTypes := map[PostType]bool{}
	for i, item := range items {
		id, err := pm.counter.Next()
		if err != nil {
			return nil, err
		}
		p := &Post{
			ID:                  id,
			Creator:             caller,
			TribeID:             item.TribeID,
			Metadata:            item.Metadata,
			PostType:            types[i],
			IsGated:             item.IsGated,
			CollectibleContract: item.CollectibleContract,
			CollectibleID:       item.CollectibleID,
			CreatedAt:           now,
		}
		if err := pm.save(p); err != nil {
			return nil, err
		}
		if err := pm.indexNewPost(p); err != nil {
			return nil, err
		}
		posts[i] = p
		seenTypes[types[i]] = true
		Broadcast(Event{Action: "create_post", Caller: caller, Attributes: map[string]any{"post_id": id, "tribe_id": item.TribeID, "batch": true}})
	}
	for t := range seenTypes {
		if err := pm.setLastPostAt(caller, t, now); err != nil {
			return nil, err
		}
	}
	if err := pm.store.Set(postLastBatchAtKey(caller), []byte(fmt.Sprintf("%d", now))); err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{"count": len(posts), "creator": caller.Short()}).Info("batch posts created")
	Broadcast(Event{Action: "create_batch_posts", Caller: caller, Attributes: map[string]any{"count": len(posts)}})
	return posts, nil
}

func (pm *PostMinter) lastBatchAt(addr Address) int64 {
	raw, _ := pm.store.Get(postLastBatchAtKey(addr))
	if len(raw) == 0 {
		return 0
	}
	var ts int64
	_, _ = fmt.Sscanf(string(raw), "%d", &ts)
	return ts
}

// InteractWithPost records a caller's interaction with a post, enforcing
// LIKE/DISLIKE mutual exclusion and idempotency on repeat calls.
func (pm *PostMinter) InteractWithPost(caller Address, postID uint64, t InteractionType) error {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	if pm.isPaused() {
		return ErrPaused
	}
	p, err := pm.load(postID)
	if err != nil {
		return err
	}
	if p.isDeleted() {
		return ErrPostDeleted.withContext("post_id", postID)
	}
	if p.Creator == caller {
		return ErrCannotInteractWithOwn.withContext("post_id", postID)
	}

	already, _ := pm.store.Has(postInteractKey(postID, t, caller))
	if already {
		return nil
	}

	if t == InteractionLike || t == InteractionDislike {
		opposite := InteractionDislike
		if t == InteractionDislike {
			opposite = InteractionLike
		}
		hadOpposite, _ := pm.store.Has(postInteractKey(postID, opposite, caller))
		if hadOpposite {
			if err := pm.store.Delete(postInteractKey(postID, opposite, caller)); err != nil {
				return err
			}
			if err := pm.bumpInteractCount(postID, opposite, -1); err != nil {
				return err
			}
		}
	}

	if err := pm.store.Set(postInteractKey(postID, t, caller), []byte{1}); err != nil {
		return err
	}
	if err := pm.bumpInteractCount(postID, t, 1); err != nil {
		return err
	}
	Broadcast(Event{Action: "interact_with_post", Caller: caller, Attributes: map[string]any{"post_id": postID, "type": t}})
	return nil
}

func (pm *PostMinter) bumpInteractCount(postID uint64, t InteractionType, delta int64) error {
	raw, _ := pm.store.Get(postInteractCountKey(postID, t))
	var cur int64
	if len(raw) > 0 {
		_, _ = fmt.Sscanf(string(raw), "%d", &cur)
	}
	cur += delta
	if cur < 0 {
		cur = 0
	}
	return pm.store.Set(postInteractCountKey(postID, t), []byte(fmt.Sprintf("%d", cur)))
}

// InteractionCount is a total query; an untouched (post, type) reports 0.
func (pm *PostMinter) InteractionCount(postID uint64, t InteractionType) uint64 {
	raw, _ := pm.store.Get(postInteractCountKey(postID, t))
	if len(raw) == 0 {
		return 0
	}
	var n uint64
	_, _ = fmt.Sscanf(string(raw), "%d", &n)
	return n
}

// ReportPost records a caller's report against a post. Idempotent per
// (post, actor); a second attempt fails AlreadyReported.
func (pm *PostMinter) ReportPost(caller Address, postID uint64, reason string) error {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	p, err := pm.load(postID)
	if err != nil {
		return err
	}
	if p.isDeleted() {
		return ErrPostDeleted.withContext("post_id", postID)
	}
	already, _ := pm.store.Has(postReportedKey(postID, caller))
	if already {
		return ErrAlreadyReported.withContext("post_id", postID)
	}
	if err := pm.store.Set(postReportedKey(postID, caller), []byte{1}); err != nil {
		return err
	}
	if p.ReportedBy == nil {
		p.ReportedBy = map[string]bool{}
	}
	p.ReportedBy[caller.Hex()] = true
	if err := pm.save(p); err != nil {
		return err
	}
	Broadcast(Event{Action: "report_post", Caller: caller, Attributes: map[string]any{"post_id": postID, "reason": reason}})
	return nil
}

// AuthorizeViewer grants viewer access to an encrypted post. Caller must
// be the post's creator; the post must be encrypted.
func (pm *PostMinter) AuthorizeViewer(caller Address, postID uint64, viewer Address) error {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	p, err := pm.load(postID)
	if err != nil {
		return err
	}
	if p.Creator != caller {
		return ErrNotPostCreator.withContext("post_id", postID)
	}
	if !p.IsEncrypted {
		return ErrInvalidEncryptionKey.withContext("reason", "post is not encrypted")
	}
	if p.AuthorizedViewers == nil {
		p.AuthorizedViewers = map[string]bool{}
	}
	p.AuthorizedViewers[viewer.Hex()] = true
	if err := pm.save(p); err != nil {
		return err
	}
	Broadcast(Event{Action: "authorize_viewer", Caller: caller, Attributes: map[string]any{"post_id": postID, "viewer": viewer.Hex()}})
	return nil
}

// VerifyPostAccess is the signature-based path of can_view_post: a viewer
// presents a secp256k1 signature from the post's
// access_signer over (post_id, viewer); on success the viewer is folded
// into authorized_viewers so subsequent can_view_post calls succeed
// without re-presenting the signature.
func (pm *PostMinter) VerifyPostAccess(postID uint64, viewer Address, sig []byte) (bool, error) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	p, err := pm.load(postID)
	if err != nil {
		return false, err
	}
	if p.isDeleted() || !p.IsEncrypted {
		return false, nil
	}
	if !VerifyPostAccessSignature(p.AccessSigner, postID, viewer, sig) {
		return false, nil
	}
	if p.AuthorizedViewers == nil {
		p.AuthorizedViewers = map[string]bool{}
	}
	p.AuthorizedViewers[viewer.Hex()] = true
	if err := pm.save(p); err != nil {
		return false, err
	}
	return true, nil
}

// DeletePost tombstones a post in place. Creator-only, idempotent-rejecting
// (a second delete fails PostDeleted).
func (pm *PostMinter) DeletePost(caller Address, postID uint64) error {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	p, err := pm.load(postID)
	if err != nil {
		return err
	}
	if p.Creator != caller {
		return ErrNotPostCreator.withContext("post_id", postID)
	}
	if p.isDeleted() {
		return ErrPostDeleted.withContext("post_id", postID)
	}
	now := nowUnix(pm.clock)
	p.DeletedAt = &now
	if err := pm.save(p); err != nil {
		return err
	}
	log.WithFields(log.Fields{"post_id": postID, "creator": caller.Short()}).Info("post deleted")
	Broadcast(Event{Action: "delete_post", Caller: caller, Attributes: map[string]any{"post_id": postID}})
	return nil
}

// UpdatePost replaces a post's metadata. Creator-only, rejects tombstoned
// posts, metadata must be non-empty.
func (pm *PostMinter) UpdatePost(caller Address, postID uint64, metadata string) error {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	if metadata == "" {
		return ErrEmptyMetadata
	}
	p, err := pm.load(postID)
	if err != nil {
		return err
	}
	if p.Creator != caller {
		return ErrNotPostCreator.withContext("post_id", postID)
	}
	if p.isDeleted() {
		return ErrPostDeleted.withContext("post_id", postID)
	}
	p.Metadata = metadata
	if err := pm.save(p); err != nil {
		return err
	}
	Broadcast(Event{Action: "update_post", Caller: caller, Attributes: map[string]any{"post_id": postID}})
	return nil
}

// GetPost is a total query; returns NotFound for an absent id but
// otherwise never errors on business preconditions.
func (pm *PostMinter) GetPost(postID uint64) (*Post, error) {
	return pm.load(postID)
}

// CanViewPost reports whether viewer is currently permitted to view the
// post. It never errors: an absent post or a failed NFT lookup simply
// yields false.
func (pm *PostMinter) CanViewPost(postID uint64, viewer Address) bool {
	p, err := pm.load(postID)
	if err != nil || p.isDeleted() {
		return false
	}
	if p.IsEncrypted {
		if viewer == p.Creator {
			return true
		}
		if p.AuthorizedViewers != nil && p.AuthorizedViewers[viewer.Hex()] {
			return true
		}
		return false
	}
	if p.IsGated {
		if pm.nftq == nil {
			return false
		}
		n, err := pm.nftq.OwnsSpecific(p.CollectibleContract, viewer, p.CollectibleID)
		if err != nil || n == 0 {
			return false
		}
		return pm.tribes.GetMemberStatus(p.TribeID, viewer) == StatusActive
	}
	return pm.tribes.GetMemberStatus(p.TribeID, viewer) == StatusActive
}

// GetPostDecryptionKey returns the encryption key hash for a viewer
// currently authorized on the post, or "" otherwise. Total, never errors.
func (pm *PostMinter) GetPostDecryptionKey(postID uint64, viewer Address) string {
	if !pm.CanViewPost(postID, viewer) {
		return ""
	}
	p, err := pm.load(postID)
	if err != nil {
		return ""
	}
	return p.EncryptionKeyHash
}

// GetPostReplies returns the direct children of parentPostID in creation
// order.
func (pm *PostMinter) GetPostReplies(parentPostID uint64) []*Post {
	prefix := []byte(fmt.Sprintf("post_reply:%s:", idSuffix(parentPostID)))
	it := pm.store.PrefixIterator(prefix)
	var out []*Post
	for it.Next() {
		childIDStr := string(it.Key()[len(prefix):])
		var childID uint64
		if _, err := fmt.Sscanf(childIDStr, "%d", &childID); err != nil {
			continue
		}
		if p, err := pm.load(childID); err == nil {
			out = append(out, p)
		}
	}
	return out
}

// GetPostsByTribe paginates posts scoped to tribeID in creation order.
func (pm *PostMinter) GetPostsByTribe(tribeID, startAfter uint64, limit int) []uint64 {
	return pm.paginateIDs([]byte(fmt.Sprintf("post_by_tribe:%s:", idSuffix(tribeID))), startAfter, limit)
}

// GetPostsByUser paginates posts created by addr in creation order.
func (pm *PostMinter) GetPostsByUser(addr Address, startAfter uint64, limit int) []uint64 {
	return pm.paginateIDs([]byte(fmt.Sprintf("post_by_user:%s:", addr.Hex())), startAfter, limit)
}

func (pm *PostMinter) paginateIDs(prefix []byte, startAfter uint64, limit int) []uint64 {
	it := pm.store.PrefixIterator(prefix)
	var out []uint64
	for it.Next() {
		idStr := string(it.Key()[len(prefix):])
		var id uint64
		if _, err := fmt.Sscanf(idStr, "%d", &id); err != nil {
			continue
		}
		if id <= startAfter {
			continue
		}
		out = append(out, id)
		if len(out) >= limit {
			break
		}
	}
	return out
}

// SetPostTypeCooldown sets the per-type posting cooldown. Gated on
// RATE_LIMIT_MANAGER.
func (pm *PostMinter) SetPostTypeCooldown(caller Address, t PostType, seconds int64) error {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	if !pm.roles.HasRole(RateLimitManagerRole, caller) {
		return ErrNotRateLimitManager
	}
	if err := pm.setCooldown(t, seconds); err != nil {
		return err
	}
	Broadcast(Event{Action: "set_post_type_cooldown", Caller: caller, Attributes: map[string]any{"post_type": t, "seconds": seconds}})
	return nil
}

// SetBatchPostingLimits sets the batch size cap and batch cooldown. Gated
// on RATE_LIMIT_MANAGER.
func (pm *PostMinter) SetBatchPostingLimits(caller Address, maxBatchSize uint32, batchCooldown int64) error {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	if !pm.roles.HasRole(RateLimitManagerRole, caller) {
		return ErrNotRateLimitManager
	}
	if err := pm.setBatchLimits(batchLimits{MaxBatchSize: maxBatchSize, BatchCooldown: batchCooldown}); err != nil {
		return err
	}
	Broadcast(Event{Action: "set_batch_posting_limits", Caller: caller, Attributes: map[string]any{"max_batch_size": maxBatchSize, "batch_cooldown": batchCooldown}})
	return nil
}

// Pause halts all create_* and interact_* entry points. Gated on
// RATE_LIMIT_MANAGER; queries and deletes remain available while paused.
func (pm *PostMinter) Pause(caller Address) error {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	if !pm.roles.HasRole(RateLimitManagerRole, caller) {
		return ErrNotRateLimitManager
	}
	if err := pm.store.Set(postPausedKey(), []byte{1}); err != nil {
		return err
	}
	log.WithField("caller", caller.Short()).Warn("post minter paused")
	Broadcast(Event{Action: "pause", Caller: caller})
	return nil
}

// Unpause resumes create_* and interact_* entry points.
func (pm *PostMinter) Unpause(caller Address) error {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	if !pm.roles.HasRole(RateLimitManagerRole, caller) {
		return ErrNotRateLimitManager
	}
	if err := pm.store.Delete(postPausedKey()); err != nil {
		return err
	}
	log.WithField("caller", caller.Short()).Info("post minter unpaused")
	Broadcast(Event{Action: "unpause", Caller: caller})
	return nil
}
