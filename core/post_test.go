package core

import (
	"crypto/ecdsa"
	"errors"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/ethereum/go-ethereum/crypto"
)

func newTestPostMinter() (*PostMinter, *TribeController, *RoleManager, *clock.Mock, Address) {
	store := NewInMemoryStore()
	mock := clock.NewMock()
	admin := addrN(1)
	roles := NewRoleManager(store, admin)
	tribes := NewTribeController(store, NewStaticNFTQuerier(), mock)
	pm := NewPostMinter(store, roles, tribes, NewStaticNFTQuerier(), mock)
	return pm, tribes, roles, mock, admin
}

// TestReplyChainThenRootDelete checks that deleting a root post tombstones
// it without cascading to its replies.
func TestReplyChainThenRootDelete(t *testing.T) {
	pm, tribes, _, _, a := newTestPostMinter()
	b := addrN(2)

	tr, err := tribes.CreateTribe(a, "T1", "meta", JoinPublic, 0, nil, false)
	if err != nil {
		t.Fatalf("create tribe: %v", err)
	}
	if err := tribes.JoinTribe(b, tr.ID); err != nil {
		t.Fatalf("b joins: %v", err)
	}

	p1, err := pm.CreatePost(a, tr.ID, `{"title":"t","content":"c","type":"TEXT"}`, false, Address{}, 0)
	if err != nil {
		t.Fatalf("create post: %v", err)
	}
	p2, err := pm.CreateReply(b, p1.ID, `{"title":"r","content":"c2","type":"TEXT"}`)
	if err != nil {
		t.Fatalf("create reply: %v", err)
	}

	if err := pm.DeletePost(a, p1.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, err := pm.GetPost(p1.ID)
	if err != nil {
		t.Fatalf("get post: %v", err)
	}
	if got.DeletedAt == nil {
		t.Fatalf("expected deleted_at set")
	}

	replies := pm.GetPostReplies(p1.ID)
	if len(replies) != 1 || replies[0].ID != p2.ID {
		t.Fatalf("expected replies=[%d], got %+v", p2.ID, replies)
	}

	if _, err := pm.CreateReply(b, p1.ID, "another"); !errors.Is(err, ErrPostDeleted) {
		t.Fatalf("expected ErrPostDeleted, got %v", err)
	}
}

// TestEncryptedViewerAuthorization checks that an encrypted post's
// decryption key is withheld from an unauthorized viewer and released
// once authorized.
func TestEncryptedViewerAuthorization(t *testing.T) {
	pm, tribes, _, _, a := newTestPostMinter()
	b := addrN(2)
	c := addrN(3)

	tr, _ := tribes.CreateTribe(a, "T1", "meta", JoinPublic, 0, nil, false)
	if err := tribes.JoinTribe(b, tr.ID); err != nil {
		t.Fatalf("b joins: %v", err)
	}
	if err := tribes.JoinTribe(c, tr.ID); err != nil {
		t.Fatalf("c joins: %v", err)
	}

	p, err := pm.CreateEncryptedPost(a, tr.ID, `{"type":"TEXT"}`, "0xdead", a)
	if err != nil {
		t.Fatalf("create encrypted post: %v", err)
	}

	if pm.CanViewPost(p.ID, b) {
		t.Fatalf("expected b cannot view before authorization")
	}
	if err := pm.AuthorizeViewer(a, p.ID, b); err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if !pm.CanViewPost(p.ID, b) {
		t.Fatalf("expected b can view after authorization")
	}
	if pm.GetPostDecryptionKey(p.ID, b) != "0xdead" {
		t.Fatalf("expected decryption key for b")
	}
	if pm.GetPostDecryptionKey(p.ID, c) != "" {
		t.Fatalf("expected empty decryption key for unauthorized c")
	}
}

func TestVerifyPostAccessSignatureGrantsView(t *testing.T) {
	pm, tribes, _, _, a := newTestPostMinter()
	viewer := addrN(2)
	if err := tribes.JoinTribe(viewer, mustCreatePublicTribe(t, tribes, a)); err != nil {
		t.Fatalf("viewer joins: %v", err)
	}

	priv, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("gen key: %v", err)
	}
	var signer Address
	copy(signer[:], crypto.PubkeyToAddress(priv.PublicKey).Bytes())

	tr2, _ := tribes.CreateTribe(a, "T2", "meta", JoinPublic, 0, nil, false)
	p, err := pm.CreateEncryptedPost(a, tr2.ID, `{"type":"TEXT"}`, "0xbeef", signer)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	sig, err := SignPostAccess(priv, p.ID, viewer)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	ok, err := pm.VerifyPostAccess(p.ID, viewer, sig)
	if err != nil || !ok {
		t.Fatalf("expected valid signature to grant access: ok=%v err=%v", ok, err)
	}
	if !pm.CanViewPost(p.ID, viewer) {
		t.Fatalf("expected viewer authorized after signature verification")
	}

	badSig, _ := SignPostAccess(otherKey(t), p.ID, viewer)
	other := addrN(3)
	ok, err = pm.VerifyPostAccess(p.ID, other, badSig)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatalf("expected forged signature to fail")
	}
}

func otherKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	k, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("gen key: %v", err)
	}
	return k
}

func mustCreatePublicTribe(t *testing.T, tc *TribeController, admin Address) uint64 {
	t.Helper()
	tr, err := tc.CreateTribe(admin, "T0", "meta", JoinPublic, 0, nil, false)
	if err != nil {
		t.Fatalf("create tribe: %v", err)
	}
	return tr.ID
}

// TestCooldownEnforcement checks that a configured per-type cooldown blocks
// a second post before it elapses and admits one after.
func TestCooldownEnforcement(t *testing.T) {
	pm, tribes, roles, mock, admin := newTestPostMinter()
	if err := roles.GrantRole(admin, RateLimitManagerRole, admin); err != nil {
		t.Fatalf("grant rate limit manager: %v", err)
	}
	if err := pm.SetPostTypeCooldown(admin, PostTypeText, 120); err != nil {
		t.Fatalf("set cooldown: %v", err)
	}

	tr, _ := tribes.CreateTribe(admin, "T1", "meta", JoinPublic, 0, nil, false)

	if _, err := pm.CreatePost(admin, tr.ID, `{"type":"TEXT"}`, false, Address{}, 0); err != nil {
		t.Fatalf("first post: %v", err)
	}

	mock.Add(60 * time.Second)
	if _, err := pm.CreatePost(admin, tr.ID, `{"type":"TEXT"}`, false, Address{}, 0); !errors.Is(err, ErrOnCooldown) {
		t.Fatalf("expected ErrOnCooldown at t=60, got %v", err)
	}

	mock.Add(60 * time.Second)
	if _, err := pm.CreatePost(admin, tr.ID, `{"type":"TEXT"}`, false, Address{}, 0); err != nil {
		t.Fatalf("expected success at t=120, got %v", err)
	}
}

func TestReportPostIdempotence(t *testing.T) {
	pm, tribes, _, _, admin := newTestPostMinter()
	reporter := addrN(2)
	tr, _ := tribes.CreateTribe(admin, "T1", "meta", JoinPublic, 0, nil, false)
	if err := tribes.JoinTribe(reporter, tr.ID); err != nil {
		t.Fatalf("join: %v", err)
	}
	p, err := pm.CreatePost(admin, tr.ID, `{"type":"TEXT"}`, false, Address{}, 0)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := pm.ReportPost(reporter, p.ID, "spam"); err != nil {
		t.Fatalf("first report: %v", err)
	}
	if err := pm.ReportPost(reporter, p.ID, "spam again"); !errors.Is(err, ErrAlreadyReported) {
		t.Fatalf("expected ErrAlreadyReported, got %v", err)
	}
}

func TestInteractionLikeDislikeMutualExclusion(t *testing.T) {
	pm, tribes, _, _, admin := newTestPostMinter()
	actor := addrN(2)
	tr, _ := tribes.CreateTribe(admin, "T1", "meta", JoinPublic, 0, nil, false)
	if err := tribes.JoinTribe(actor, tr.ID); err != nil {
		t.Fatalf("join: %v", err)
	}
	p, err := pm.CreatePost(admin, tr.ID, `{"type":"TEXT"}`, false, Address{}, 0)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := pm.InteractWithPost(actor, p.ID, InteractionLike); err != nil {
		t.Fatalf("like: %v", err)
	}
	if pm.InteractionCount(p.ID, InteractionLike) != 1 {
		t.Fatalf("expected like count 1")
	}
	if err := pm.InteractWithPost(actor, p.ID, InteractionDislike); err != nil {
		t.Fatalf("dislike: %v", err)
	}
	if pm.InteractionCount(p.ID, InteractionLike) != 0 {
		t.Fatalf("expected like count decremented to 0")
	}
	if pm.InteractionCount(p.ID, InteractionDislike) != 1 {
		t.Fatalf("expected dislike count 1")
	}

	if err := pm.InteractWithPost(admin, p.ID, InteractionLike); !errors.Is(err, ErrCannotInteractWithOwn) {
		t.Fatalf("expected ErrCannotInteractWithOwn, got %v", err)
	}
}

func TestBatchPostsAtomicAbort(t *testing.T) {
	pm, tribes, _, _, admin := newTestPostMinter()
	tr, _ := tribes.CreateTribe(admin, "T1", "meta", JoinPublic, 0, nil, false)

	items := []BatchPostItem{
		{TribeID: tr.ID, Metadata: `{"type":"TEXT"}`},
		{TribeID: tr.ID, Metadata: ""},
	}
	if _, err := pm.CreateBatchPosts(admin, items); !errors.Is(err, ErrEmptyMetadata) {
		t.Fatalf("expected ErrEmptyMetadata, got %v", err)
	}
	// Whole batch must abort: the first item must not have been committed.
	if posts := pm.GetPostsByUser(admin, 0, 10); len(posts) != 0 {
		t.Fatalf("expected no posts committed after aborted batch, got %v", posts)
	}

	ok := []BatchPostItem{
		{TribeID: tr.ID, Metadata: `{"type":"TEXT"}`},
		{TribeID: tr.ID, Metadata: `{"type":"TEXT"}`},
	}
	posts, err := pm.CreateBatchPosts(admin, ok)
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if len(posts) != 2 {
		t.Fatalf("expected 2 posts committed")
	}
}

func TestPausedBlocksCreateAndInteract(t *testing.T) {
	pm, tribes, roles, _, admin := newTestPostMinter()
	if err := roles.GrantRole(admin, RateLimitManagerRole, admin); err != nil {
		t.Fatalf("grant rate limit manager: %v", err)
	}
	tr, _ := tribes.CreateTribe(admin, "T1", "meta", JoinPublic, 0, nil, false)
	member := addrN(2)
	if err := tribes.JoinTribe(member, tr.ID); err != nil {
		t.Fatalf("join: %v", err)
	}
	p, err := pm.CreatePost(member, tr.ID, `{"type":"TEXT"}`, false, Address{}, 0)
	if err != nil {
		t.Fatalf("create before pause: %v", err)
	}

	if err := pm.Pause(admin); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if _, err := pm.CreatePost(admin, tr.ID, `{"type":"TEXT"}`, false, Address{}, 0); !errors.Is(err, ErrPaused) {
		t.Fatalf("expected ErrPaused, got %v", err)
	}
	if err := pm.InteractWithPost(admin, p.ID, InteractionLike); !errors.Is(err, ErrPaused) {
		t.Fatalf("expected ErrPaused on interact, got %v", err)
	}
	if err := pm.Unpause(admin); err != nil {
		t.Fatalf("unpause: %v", err)
	}
	if _, err := pm.CreatePost(admin, tr.ID, `{"type":"TEXT"}`, false, Address{}, 0); err != nil {
		t.Fatalf("expected success after unpause: %v", err)
	}
}

func TestPostIDMonotonicity(t *testing.T) {
	pm, tribes, _, _, admin := newTestPostMinter()
	tr, _ := tribes.CreateTribe(admin, "T1", "meta", JoinPublic, 0, nil, false)

	p1, err := pm.CreatePost(admin, tr.ID, `{"type":"A"}`, false, Address{}, 0)
	if err != nil {
		t.Fatalf("p1: %v", err)
	}
	p2, err := pm.CreatePost(admin, tr.ID, `{"type":"B"}`, false, Address{}, 0)
	if err != nil {
		t.Fatalf("p2: %v", err)
	}
	if p2.ID <= p1.ID {
		t.Fatalf("expected p2.ID > p1.ID, got %d <= %d", p2.ID, p1.ID)
	}
}
