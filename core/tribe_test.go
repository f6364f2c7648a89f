package core

import (
	"errors"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
)

func newTestTribeController() (*TribeController, *clock.Mock) {
	store := NewInMemoryStore()
	mock := clock.NewMock()
	return NewTribeController(store, NewStaticNFTQuerier(), mock), mock
}

func TestTribeJoinPublicAndBan(t *testing.T) {
	tc, _ := newTestTribeController()
	admin := addrN(1)
	alice := addrN(2)

	tr, err := tc.CreateTribe(admin, "Public Tribe", "meta", JoinPublic, 0, nil, false)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := tc.JoinTribe(alice, tr.ID); err != nil {
		t.Fatalf("join: %v", err)
	}
	if tc.GetMemberStatus(tr.ID, alice) != StatusActive {
		t.Fatalf("expected ACTIVE")
	}
	if err := tc.BanMember(admin, tr.ID, alice); err != nil {
		t.Fatalf("ban: %v", err)
	}
	if tc.GetMemberStatus(tr.ID, alice) != StatusBanned {
		t.Fatalf("expected BANNED")
	}
	// Banned is sticky: re-joining must fail.
	if err := tc.JoinTribe(alice, tr.ID); !errors.Is(err, ErrBanned) {
		t.Fatalf("expected ErrBanned, got %v", err)
	}
}

func TestTribePrivateRequestApproveReject(t *testing.T) {
	tc, _ := newTestTribeController()
	admin := addrN(1)
	alice := addrN(2)
	bob := addrN(3)

	tr, _ := tc.CreateTribe(admin, "Private Tribe", "meta", JoinPrivate, 0, nil, false)
	if err := tc.RequestToJoin(alice, tr.ID); err != nil {
		t.Fatalf("request: %v", err)
	}
	if tc.GetMemberStatus(tr.ID, alice) != StatusPending {
		t.Fatalf("expected PENDING")
	}
	if err := tc.ApproveMember(admin, tr.ID, alice); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if tc.GetMemberStatus(tr.ID, alice) != StatusActive {
		t.Fatalf("expected ACTIVE after approval")
	}

	if err := tc.RequestToJoin(bob, tr.ID); err != nil {
		t.Fatalf("request bob: %v", err)
	}
	if err := tc.RejectMember(admin, tr.ID, bob); err != nil {
		t.Fatalf("reject: %v", err)
	}
	if tc.GetMemberStatus(tr.ID, bob) != StatusNone {
		t.Fatalf("expected NONE after rejection")
	}
}

// TestInviteCodeUsageCap checks that a code with max_uses=2 admits exactly
// two joiners and rejects the third with InviteCodeExhausted, while an
// expired code is rejected even with uses remaining.
func TestInviteCodeUsageCap(t *testing.T) {
	tc, mock := newTestTribeController()
	admin := addrN(1)
	tr, _ := tc.CreateTribe(admin, "Invite Tribe", "meta", JoinInviteCode, 0, nil, false)

	if err := tc.CreateInviteCode(admin, tr.ID, "WELCOME", 2, mock.Now().Unix()+3600); err != nil {
		t.Fatalf("create code: %v", err)
	}

	a, b, c := addrN(2), addrN(3), addrN(4)
	if err := tc.JoinTribeWithCode(a, tr.ID, "WELCOME"); err != nil {
		t.Fatalf("join a: %v", err)
	}
	if err := tc.JoinTribeWithCode(b, tr.ID, "WELCOME"); err != nil {
		t.Fatalf("join b: %v", err)
	}
	if err := tc.JoinTribeWithCode(c, tr.ID, "WELCOME"); !errors.Is(err, ErrInviteCodeExhausted) {
		t.Fatalf("expected ErrInviteCodeExhausted, got %v", err)
	}

	status := tc.GetInviteCodeStatus(tr.ID, "WELCOME")
	if status.RemainingUses != 0 {
		t.Fatalf("expected 0 remaining, got %d", status.RemainingUses)
	}

	if err := tc.CreateInviteCode(admin, tr.ID, "SOON", 5, mock.Now().Unix()+10); err != nil {
		t.Fatalf("create code2: %v", err)
	}
	mock.Add(60 * time.Second)
	d := addrN(5)
	if err := tc.JoinTribeWithCode(d, tr.ID, "SOON"); !errors.Is(err, ErrInviteCodeExpired) {
		t.Fatalf("expected ErrInviteCodeExpired, got %v", err)
	}
}

// TestTribeMergePrecedence checks that an address BANNED in the source
// tribe and ACTIVE in the target tribe remains BANNED after merge
// (BANNED > ACTIVE > PENDING > NONE), and that a source-only ACTIVE
// member is carried over.
func TestTribeMergePrecedence(t *testing.T) {
	tc, _ := newTestTribeController()
	srcAdmin := addrN(1)
	dstAdmin := addrN(2)
	shared := addrN(3)
	srcOnly := addrN(4)

	src, _ := tc.CreateTribe(srcAdmin, "Source", "meta", JoinPublic, 0, nil, true)
	dst, _ := tc.CreateTribe(dstAdmin, "Target", "meta", JoinPublic, 0, nil, true)

	if err := tc.JoinTribe(shared, dst.ID); err != nil {
		t.Fatalf("shared joins dst: %v", err)
	}
	if err := tc.BanMember(srcAdmin, src.ID, shared); err != nil {
		t.Fatalf("ban shared in src: %v", err)
	}
	if err := tc.JoinTribe(srcOnly, src.ID); err != nil {
		t.Fatalf("srcOnly joins src: %v", err)
	}

	if err := tc.RequestTribeMerge(srcAdmin, src.ID, dst.ID); err != nil {
		t.Fatalf("request merge: %v", err)
	}
	if err := tc.ExecuteTribeMerge(srcAdmin, src.ID, dst.ID); !errors.Is(err, ErrMergeNotApproved) {
		t.Fatalf("expected ErrMergeNotApproved before approval, got %v", err)
	}
	if err := tc.ApproveTribeMerge(dstAdmin, src.ID, dst.ID); err != nil {
		t.Fatalf("approve merge: %v", err)
	}
	if err := tc.ExecuteTribeMerge(srcAdmin, src.ID, dst.ID); err != nil {
		t.Fatalf("execute merge: %v", err)
	}

	if tc.GetMemberStatus(dst.ID, shared) != StatusBanned {
		t.Fatalf("expected shared member to remain BANNED post-merge")
	}
	if tc.GetMemberStatus(dst.ID, srcOnly) != StatusActive {
		t.Fatalf("expected source-only member carried over as ACTIVE")
	}
	if _, err := tc.GetTribeConfigView(src.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected source tribe deleted, got %v", err)
	}
}

func TestTribeNFTGateVariants(t *testing.T) {
	store := NewInMemoryStore()
	nftq := NewStaticNFTQuerier()
	tc := NewTribeController(store, nftq, clock.NewMock())
	admin := addrN(1)
	alice := addrN(2)
	contractA := addrN(10)
	contractB := addrN(11)

	single, _ := tc.CreateTribe(admin, "Single Gate", "meta", JoinNFTGated, 0,
		[]NFTRequirement{{Contract: contractA, Type: NFTStandardERC721, Mandatory: true, MinAmount: 1}}, false)
	if err := tc.JoinTribe(alice, single.ID); !errors.Is(err, ErrNFTGateNotSatisfied) {
		t.Fatalf("expected gate failure, got %v", err)
	}
	nftq.SetBalance(contractA, alice, 1)
	if err := tc.JoinTribe(alice, single.ID); err != nil {
		t.Fatalf("expected gate pass: %v", err)
	}

	bob := addrN(3)
	multi, _ := tc.CreateTribe(admin, "Multi Gate", "meta", JoinMultiNFT, 0, []NFTRequirement{
		{Contract: contractA, Type: NFTStandardERC721, Mandatory: true, MinAmount: 1},
		{Contract: contractB, Type: NFTStandardERC721, Mandatory: true, MinAmount: 1},
	}, false)
	nftq.SetBalance(contractA, bob, 1)
	if err := tc.JoinTribe(bob, multi.ID); !errors.Is(err, ErrNFTGateNotSatisfied) {
		t.Fatalf("expected multi-gate failure missing contractB, got %v", err)
	}
	nftq.SetBalance(contractB, bob, 1)
	if err := tc.JoinTribe(bob, multi.ID); err != nil {
		t.Fatalf("expected multi-gate pass: %v", err)
	}

	carol := addrN(4)
	any, _ := tc.CreateTribe(admin, "Any Gate", "meta", JoinAnyNFT, 0, []NFTRequirement{
		{Contract: contractA, Type: NFTStandardERC721, Mandatory: false, MinAmount: 1},
		{Contract: contractB, Type: NFTStandardERC721, Mandatory: false, MinAmount: 1},
	}, false)
	if err := tc.JoinTribe(carol, any.ID); !errors.Is(err, ErrNFTGateNotSatisfied) {
		t.Fatalf("expected any-gate failure with nothing owned, got %v", err)
	}
	nftq.SetBalance(contractB, carol, 1)
	if err := tc.JoinTribe(carol, any.ID); err != nil {
		t.Fatalf("expected any-gate pass: %v", err)
	}
}
