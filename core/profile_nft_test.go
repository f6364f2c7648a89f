package core

import "testing"

func TestProfileNFTSelfMintAndUpdate(t *testing.T) {
	admin := addrN(1)
	alice := addrN(2)
	store := NewInMemoryStore()
	roles := NewRoleManager(store, admin)
	minter := NewProfileNFTMinter(store, roles)

	tok, err := minter.MintProfileNFT(alice, "ipfs://alice")
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if tok.TokenID == 0 {
		t.Fatalf("token id must be non-zero")
	}

	owner, ok := minter.OwnerOf(tok.TokenID)
	if !ok || owner != alice {
		t.Fatalf("owner mismatch: %v %v", owner, ok)
	}

	if err := minter.UpdateProfileMetadata(alice, tok.TokenID, "ipfs://alice-v2"); err != nil {
		t.Fatalf("update: %v", err)
	}
	info, _ := minter.NFTInfo(tok.TokenID)
	if info.MetadataURI != "ipfs://alice-v2" {
		t.Fatalf("metadata not updated: %+v", info)
	}

	bob := addrN(3)
	if err := minter.UpdateProfileMetadata(bob, tok.TokenID, "ipfs://hijack"); err == nil {
		t.Fatalf("expected unauthorized update to fail")
	}
}

func TestProfileNFTAuthorizedMintRequiresRole(t *testing.T) {
	admin := addrN(1)
	recruiter := addrN(2)
	recipient := addrN(3)
	store := NewInMemoryStore()
	roles := NewRoleManager(store, admin)
	minter := NewProfileNFTMinter(store, roles)

	if _, err := minter.MintAuthorizedProfile(recruiter, recipient, "ipfs://x"); err == nil {
		t.Fatalf("expected MissingRole")
	}

	if err := roles.GrantRole(admin, ProfileMinterRole, recruiter); err != nil {
		t.Fatalf("grant: %v", err)
	}
	tok, err := minter.MintAuthorizedProfile(recruiter, recipient, "ipfs://x")
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if owner, _ := minter.OwnerOf(tok.TokenID); owner != recipient {
		t.Fatalf("recipient should own token")
	}
}

func TestProfileNFTPagination(t *testing.T) {
	admin := addrN(1)
	alice := addrN(2)
	store := NewInMemoryStore()
	roles := NewRoleManager(store, admin)
	minter := NewProfileNFTMinter(store, roles)

	var ids []uint64
	for i := 0; i < 5; i++ {
		tok, err := minter.MintProfileNFT(alice, "ipfs://x")
		if err != nil {
			t.Fatalf("mint %d: %v", i, err)
		}
		ids = append(ids, tok.TokenID)
	}

	page := minter.Tokens(alice, 0, 2)
	if len(page) != 2 || page[0] != ids[0] || page[1] != ids[1] {
		t.Fatalf("unexpected first page: %v", page)
	}
	page2 := minter.Tokens(alice, page[len(page)-1], 10)
	if len(page2) != 3 {
		t.Fatalf("unexpected second page: %v", page2)
	}
}
