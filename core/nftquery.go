package core

import (
	"os"

	"gopkg.in/yaml.v3"
)

// NFTStandard enumerates the token standards the Tribe Controller's gate
// evaluation understands.
type NFTStandard uint8

const (
	NFTStandardERC721 NFTStandard = iota + 1
	NFTStandardERC1155
)

// NFTOwnershipQuerier is the external collaborator for a total function
// "owns(contract, addr) -> u64" (and, for ERC1155, a per-token-id variant).
// The core never transfers or approves tokens; it only reads balances to
// decide gate membership. Results are not cached across calls.
type NFTOwnershipQuerier interface {
	// Owns returns how many of contract the address holds in aggregate
	// (ERC721: 0 or more distinct tokens; ERC1155: summed balance).
	Owns(contract Address, addr Address) (uint64, error)
	// OwnsSpecific returns the balance of a single ERC1155 token id. For
	// ERC721 contracts implementations may treat tokenID as ignored and
	// delegate to Owns.
	OwnsSpecific(contract Address, addr Address, tokenID uint64) (uint64, error)
}

// StaticNFTQuerier is a test/demo implementation of NFTOwnershipQuerier
// backed by an in-memory table, analogous to an AuthorizedRelayers
// map-based stand-in for a real external registry (core/cross_chain.go).
type StaticNFTQuerier struct {
	balances map[Address]map[Address]uint64
	perToken map[Address]map[Address]map[uint64]uint64
}

// NewStaticNFTQuerier returns an empty StaticNFTQuerier.
func NewStaticNFTQuerier() *StaticNFTQuerier {
	return &StaticNFTQuerier{
		balances: make(map[Address]map[Address]uint64),
		perToken: make(map[Address]map[Address]map[uint64]uint64),
	}
}

// SetBalance fixes the aggregate balance an address holds of a contract.
func (q *StaticNFTQuerier) SetBalance(contract, addr Address, amount uint64) {
	if q.balances[contract] == nil {
		q.balances[contract] = make(map[Address]uint64)
	}
	q.balances[contract][addr] = amount
}

// SetTokenBalance fixes the ERC1155-style balance of a specific token id.
func (q *StaticNFTQuerier) SetTokenBalance(contract, addr Address, tokenID, amount uint64) {
	if q.perToken[contract] == nil {
		q.perToken[contract] = make(map[Address]map[uint64]uint64)
	}
	if q.perToken[contract][addr] == nil {
		q.perToken[contract][addr] = make(map[uint64]uint64)
	}
	q.perToken[contract][addr][tokenID] = amount
}

func (q *StaticNFTQuerier) Owns(contract, addr Address) (uint64, error) {
	return q.balances[contract][addr], nil
}

func (q *StaticNFTQuerier) OwnsSpecific(contract, addr Address, tokenID uint64) (uint64, error) {
	m := q.perToken[contract][addr]
	if m == nil {
		return 0, nil
	}
	return m[tokenID], nil
}

// nftFixture is the on-disk shape LoadStaticNFTQuerierFromYAML reads,
// one entry per (contract, holder) aggregate balance plus optional
// per-token ERC1155 balances.
type nftFixture struct {
	Holdings []struct {
		Contract string `yaml:"contract"`
		Holder   string `yaml:"holder"`
		Amount   uint64 `yaml:"amount"`
		TokenID  *uint64 `yaml:"token_id,omitempty"`
	} `yaml:"holdings"`
}

// LoadStaticNFTQuerierFromYAML seeds a StaticNFTQuerier from a fixture file,
// the way a deployment without a live chain indexer would pin known NFT
// holdings for NFT-gated tribes in a local or test environment.
func LoadStaticNFTQuerierFromYAML(path string) (*StaticNFTQuerier, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var fx nftFixture
	if err := yaml.Unmarshal(raw, &fx); err != nil {
		return nil, err
	}
	q := NewStaticNFTQuerier()
	for _, h := range fx.Holdings {
		contract, err := ParseAddress(h.Contract)
		if err != nil {
			return nil, err
		}
		holder, err := ParseAddress(h.Holder)
		if err != nil {
			return nil, err
		}
		if h.TokenID != nil {
			q.SetTokenBalance(contract, holder, *h.TokenID, h.Amount)
			continue
		}
		q.SetBalance(contract, holder, h.Amount)
	}
	return q, nil
}
