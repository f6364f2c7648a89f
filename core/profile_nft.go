package core

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"sync"

	log "github.com/sirupsen/logrus"
)

// ProfileMinterRole gates mint_authorized_profile.
const ProfileMinterRole = "PROFILE_MINTER_ROLE"

// ProfileToken is a per-user identity NFT record. Modeled on
// core/syn721_token.go's SYN721Metadata/owner-map pair, trimmed to a
// mint/update/query-only surface (no transfer/approve — a transfer surface
// is an explicit out-of-scope collaborator here).
type ProfileToken struct {
	TokenID     uint64 `json:"token_id"`
	Owner       Address `json:"owner"`
	MetadataURI string  `json:"metadata_uri"`
}

// ProfileNFTMinter mints and manages non-transferable identity NFTs, with
// admin-authorized minting on another's behalf. An address may hold any
// number of profile tokens; minting does not check existing ownership.
type ProfileNFTMinter struct {
	mu      sync.Mutex
	store   KVStore
	roles   *RoleManager
	counter *counter
}

// NewProfileNFTMinter constructs a minter over store, gating the authorized
// mint path through roles.
func NewProfileNFTMinter(store KVStore, roles *RoleManager) *ProfileNFTMinter {
	return &ProfileNFTMinter{store: store, roles: roles, counter: newCounter(store, "nft_counter")}
}

func nftKey(id uint64) []byte { return []byte(fmt.Sprintf("nft:%020d", id)) }

func nftOwnerKey(addr Address, id uint64) []byte {
	return []byte(fmt.Sprintf("nft_owner:%s:%020d", addr.Hex(), id))
}

func nftOwnerPrefix(addr Address) []byte {
	return []byte(fmt.Sprintf("nft_owner:%s:", addr.Hex()))
}

// mint records a new token and its reverse owner index, shared by both the
// self-mint and authorized-mint paths.
func (m *ProfileNFTMinter) mint(owner Address, metadataURI string) (*ProfileToken, error) {
	id, err := m.counter.Next()
	if err != nil {
		return nil, err
	}
	t := &ProfileToken{TokenID: id, Owner: owner, MetadataURI: metadataURI}
	raw, _ := json.Marshal(t)
	if err := m.store.Set(nftKey(id), raw); err != nil {
		return nil, err
	}
	if err := m.store.Set(nftOwnerKey(owner, id), []byte{1}); err != nil {
		return nil, err
	}
	return t, nil
}

// MintProfileNFT self-mints a profile NFT for caller.
func (m *ProfileNFTMinter) MintProfileNFT(caller Address, metadataURI string) (*ProfileToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if metadataURI == "" {
		return nil, ErrEmptyMetadata
	}
	t, err := m.mint(caller, metadataURI)
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{"token_id": t.TokenID, "owner": caller.Short()}).Info("profile nft minted")
	Broadcast(Event{Action: "mint_profile_nft", Caller: caller, Attributes: map[string]any{"token_id": t.TokenID}})
	return t, nil
}

// MintAuthorizedProfile mints to recipient on behalf of a caller holding
// PROFILE_MINTER_ROLE.
func (m *ProfileNFTMinter) MintAuthorizedProfile(caller, recipient Address, metadataURI string) (*ProfileToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.roles.HasRole(ProfileMinterRole, caller) {
		return nil, ErrMissingRole.withContext("role", ProfileMinterRole)
	}
	if metadataURI == "" {
		return nil, ErrEmptyMetadata
	}
	t, err := m.mint(recipient, metadataURI)
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{"token_id": t.TokenID, "owner": recipient.Short(), "caller": caller.Short()}).Info("authorized profile nft minted")
	Broadcast(Event{Action: "mint_authorized_profile", Caller: caller, Attributes: map[string]any{"token_id": t.TokenID, "recipient": recipient.Hex()}})
	return t, nil
}

// UpdateProfileMetadata rewrites token_id's metadata URI. Only the current
// owner may call this.
func (m *ProfileNFTMinter) UpdateProfileMetadata(caller Address, tokenID uint64, metadataURI string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, err := m.get(tokenID)
	if err != nil {
		return err
	}
	if t.Owner != caller {
		return ErrUnauthorized.withContext("token_id", tokenID)
	}
	if metadataURI == "" {
		return ErrEmptyMetadata
	}
	t.MetadataURI = metadataURI
	raw, _ := json.Marshal(t)
	if err := m.store.Set(nftKey(tokenID), raw); err != nil {
		return err
	}
	Broadcast(Event{Action: "update_profile_metadata", Caller: caller, Attributes: map[string]any{"token_id": tokenID}})
	return nil
}

func (m *ProfileNFTMinter) get(tokenID uint64) (*ProfileToken, error) {
	raw, err := m.store.Get(nftKey(tokenID))
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, ErrNotFound.withContext("token_id", tokenID)
	}
	var t ProfileToken
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// OwnerOf returns the current owner of token_id and whether it exists.
func (m *ProfileNFTMinter) OwnerOf(tokenID uint64) (Address, bool) {
	t, err := m.get(tokenID)
	if err != nil {
		return Address{}, false
	}
	return t.Owner, true
}

// NFTInfo returns the full record for token_id and whether it exists.
func (m *ProfileNFTMinter) NFTInfo(tokenID uint64) (ProfileToken, bool) {
	t, err := m.get(tokenID)
	if err != nil {
		return ProfileToken{}, false
	}
	return *t, true
}

// IsAdmin reports whether addr holds PROFILE_MINTER_ROLE.
func (m *ProfileNFTMinter) IsAdmin(addr Address) bool {
	return m.roles.HasRole(ProfileMinterRole, addr)
}

// Tokens paginates owner's tokens in insertion (mint) order.
func (m *ProfileNFTMinter) Tokens(owner Address, startAfter uint64, limit int) []uint64 {
	it := m.store.PrefixIterator(nftOwnerPrefix(owner))
	var ids []uint64
	prefixLen := len(nftOwnerPrefix(owner))
	for it.Next() {
		key := string(it.Key())
		idStr := key[prefixLen:]
		id, err := strconv.ParseUint(idStr, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]uint64, 0, limit)
	for _, id := range ids {
		if id <= startAfter {
			continue
		}
		out = append(out, id)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}
