package service_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/jmlarsen/flock/internal/domain"
	"github.com/jmlarsen/flock/internal/repository/sqlite"
	"github.com/jmlarsen/flock/internal/service"
	"github.com/jmlarsen/flock/internal/sessionstore"
)

func newSocialService(t *testing.T, communityLimit int) (*service.SocialService, *service.MicropostService, *service.AuthService, *sqlite.DB) {
	t.Helper()
	db := newTestDB(t)
	store := sessionstore.NewMemory()
	auth := service.NewAuthService(db.Users(), store, 4, 0)
	social := service.NewSocialService(db.Relationships(), db.Microposts(), db.Users(), communityLimit)
	microposts := service.NewMicropostService(db.Microposts())
	return social, microposts, auth, db
}

func TestFollowUnfollow(t *testing.T) {
	social, _, auth, _ := newSocialService(t, 0)
	ctx := context.Background()
	alice := registerActivated(t, auth, "Alice", "alice@example.com", "password")
	bob := registerActivated(t, auth, "Bob", "bob@example.com", "password")

	if err := social.Follow(ctx, alice, bob.ID); err != nil {
		t.Fatalf("Follow: %v", err)
	}

	following, err := social.IsFollowing(ctx, alice.ID, bob.ID)
	if err != nil {
		t.Fatalf("IsFollowing: %v", err)
	}
	if !following {
		t.Error("alice should follow bob")
	}

	// Following is one-directional.
	reverse, err := social.IsFollowing(ctx, bob.ID, alice.ID)
	if err != nil {
		t.Fatalf("IsFollowing: %v", err)
	}
	if reverse {
		t.Error("bob should not follow alice")
	}

	// Double follow is a no-op.
	if err := social.Follow(ctx, alice, bob.ID); err != nil {
		t.Fatalf("repeat Follow: %v", err)
	}
	followingCount, followersCount, err := social.Counts(ctx, alice.ID)
	if err != nil {
		t.Fatalf("Counts: %v", err)
	}
	if followingCount != 1 || followersCount != 0 {
		t.Errorf("counts = (%d, %d), want (1, 0)", followingCount, followersCount)
	}

	if err := social.Unfollow(ctx, alice, bob.ID); err != nil {
		t.Fatalf("Unfollow: %v", err)
	}
	following, err = social.IsFollowing(ctx, alice.ID, bob.ID)
	if err != nil {
		t.Fatalf("IsFollowing: %v", err)
	}
	if following {
		t.Error("edge should be gone after unfollow")
	}

	// Unfollowing again is a no-op too.
	if err := social.Unfollow(ctx, alice, bob.ID); err != nil {
		t.Fatalf("repeat Unfollow: %v", err)
	}
}

func TestFollow_SelfIsNoOp(t *testing.T) {
	social, _, auth, _ := newSocialService(t, 0)
	ctx := context.Background()
	alice := registerActivated(t, auth, "Alice", "alice@example.com", "password")

	if err := social.Follow(ctx, alice, alice.ID); err != nil {
		t.Fatalf("Follow self: %v", err)
	}
	following, _, err := social.Counts(ctx, alice.ID)
	if err != nil {
		t.Fatalf("Counts: %v", err)
	}
	if following != 0 {
		t.Error("self-follow must never create an edge")
	}
}

func TestFollow_MissingTarget(t *testing.T) {
	social, _, auth, _ := newSocialService(t, 0)
	alice := registerActivated(t, auth, "Alice", "alice@example.com", "password")

	err := social.Follow(context.Background(), alice, 9999)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestUnfollowByEdge(t *testing.T) {
	social, _, auth, db := newSocialService(t, 0)
	ctx := context.Background()
	alice := registerActivated(t, auth, "Alice", "alice@example.com", "password")
	bob := registerActivated(t, auth, "Bob", "bob@example.com", "password")
	mallory := registerActivated(t, auth, "Mallory", "mallory@example.com", "password")

	rel := &domain.Relationship{FollowerID: alice.ID, FollowedID: bob.ID}
	if err := db.Relationships().Create(ctx, rel); err != nil {
		t.Fatalf("Create relationship: %v", err)
	}

	// Someone else's edge cannot be removed.
	if _, err := social.UnfollowByEdge(ctx, mallory, rel.ID); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("got %v, want ErrUnauthorized", err)
	}

	followedID, err := social.UnfollowByEdge(ctx, alice, rel.ID)
	if err != nil {
		t.Fatalf("UnfollowByEdge: %v", err)
	}
	if followedID != bob.ID {
		t.Errorf("followedID = %d, want %d", followedID, bob.ID)
	}

	if _, err := social.UnfollowByEdge(ctx, alice, rel.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("removed edge: got %v, want ErrNotFound", err)
	}
}

func TestFollowingFollowersLists(t *testing.T) {
	social, _, auth, _ := newSocialService(t, 0)
	ctx := context.Background()
	alice := registerActivated(t, auth, "Alice", "alice@example.com", "password")
	bob := registerActivated(t, auth, "Bob", "bob@example.com", "password")
	carol := registerActivated(t, auth, "Carol", "carol@example.com", "password")

	if err := social.Follow(ctx, alice, bob.ID); err != nil {
		t.Fatalf("Follow: %v", err)
	}
	if err := social.Follow(ctx, alice, carol.ID); err != nil {
		t.Fatalf("Follow: %v", err)
	}
	if err := social.Follow(ctx, carol, bob.ID); err != nil {
		t.Fatalf("Follow: %v", err)
	}

	following, err := social.Following(ctx, alice.ID, 1)
	if err != nil {
		t.Fatalf("Following: %v", err)
	}
	if len(following) != 2 {
		t.Errorf("alice follows %d users, want 2", len(following))
	}

	followers, err := social.Followers(ctx, bob.ID, 1)
	if err != nil {
		t.Fatalf("Followers: %v", err)
	}
	if len(followers) != 2 {
		t.Errorf("bob has %d followers, want 2", len(followers))
	}
}

func TestFeed(t *testing.T) {
	social, microposts, auth, _ := newSocialService(t, 2)
	ctx := context.Background()
	alice := registerActivated(t, auth, "Alice", "alice@example.com", "password")
	bob := registerActivated(t, auth, "Bob", "bob@example.com", "password")
	carol := registerActivated(t, auth, "Carol", "carol@example.com", "password")

	if err := social.Follow(ctx, alice, bob.ID); err != nil {
		t.Fatalf("Follow: %v", err)
	}

	if _, err := microposts.Create(ctx, alice, "alice post"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := microposts.Create(ctx, bob, "bob post"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	for i := 0; i < 5; i++ {
		if _, err := microposts.Create(ctx, carol, fmt.Sprintf("carol post %d", i)); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	feed, err := social.Feed(ctx, alice.ID, 1)
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}

	byAuthor := map[int64]int{}
	seen := map[int64]bool{}
	for _, post := range feed {
		if seen[post.ID] {
			t.Errorf("duplicate post %d in feed", post.ID)
		}
		seen[post.ID] = true
		byAuthor[post.UserID]++
	}

	if byAuthor[alice.ID] != 1 {
		t.Errorf("own posts in feed = %d, want 1", byAuthor[alice.ID])
	}
	if byAuthor[bob.ID] != 1 {
		t.Errorf("followed posts in feed = %d, want 1", byAuthor[bob.ID])
	}
	// Unfollowed authors appear, capped at the community limit.
	if byAuthor[carol.ID] != 2 {
		t.Errorf("community posts in feed = %d, want 2 (capped)", byAuthor[carol.ID])
	}
}

func TestFeed_NewestFirst(t *testing.T) {
	social, microposts, auth, _ := newSocialService(t, 0)
	ctx := context.Background()
	alice := registerActivated(t, auth, "Alice", "alice@example.com", "password")

	for i := 0; i < 3; i++ {
		if _, err := microposts.Create(ctx, alice, fmt.Sprintf("post %d", i)); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	feed, err := social.Feed(ctx, alice.ID, 1)
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if len(feed) != 3 {
		t.Fatalf("feed size = %d, want 3", len(feed))
	}
	for i := 1; i < len(feed); i++ {
		if feed[i-1].ID < feed[i].ID {
			t.Error("feed must be ordered newest first")
			break
		}
	}
}

func TestDestroyUser_CascadesPostsAndEdges(t *testing.T) {
	social, microposts, auth, db := newSocialService(t, 0)
	ctx := context.Background()
	store := sessionstore.NewMemory()
	users := service.NewUserService(db.Users(), store)

	alice := registerActivated(t, auth, "Alice", "alice@example.com", "password")
	bob := registerActivated(t, auth, "Bob", "bob@example.com", "password")

	if err := social.Follow(ctx, alice, bob.ID); err != nil {
		t.Fatalf("Follow: %v", err)
	}
	if err := social.Follow(ctx, bob, alice.ID); err != nil {
		t.Fatalf("Follow: %v", err)
	}
	if _, err := microposts.Create(ctx, bob, "bob post"); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := users.Destroy(ctx, bob.ID); err != nil {
		t.Fatalf("Destroy: %v", err)
	}

	if _, err := db.Users().GetByID(ctx, bob.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("deleted user lookup: got %v, want ErrNotFound", err)
	}
	count, err := microposts.CountByUser(ctx, bob.ID)
	if err != nil {
		t.Fatalf("CountByUser: %v", err)
	}
	if count != 0 {
		t.Errorf("posts survived user deletion: %d", count)
	}
	following, followers, err := social.Counts(ctx, alice.ID)
	if err != nil {
		t.Fatalf("Counts: %v", err)
	}
	if following != 0 || followers != 0 {
		t.Errorf("edges survived user deletion: (%d, %d)", following, followers)
	}
}

func TestMicropost_Validation(t *testing.T) {
	_, microposts, auth, _ := newSocialService(t, 0)
	ctx := context.Background()
	alice := registerActivated(t, auth, "Alice", "alice@example.com", "password")

	if _, err := microposts.Create(ctx, alice, "   "); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("blank content: got %v, want ErrInvalidInput", err)
	}

	long := make([]byte, 141)
	for i := range long {
		long[i] = 'x'
	}
	if _, err := microposts.Create(ctx, alice, string(long)); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("long content: got %v, want ErrInvalidInput", err)
	}

	// The limit counts characters: 100 multibyte characters is 300 bytes
	// but still a valid post, while 141 multibyte characters is not.
	if _, err := microposts.Create(ctx, alice, strings.Repeat("世", 100)); err != nil {
		t.Errorf("100-character multibyte content: %v", err)
	}
	if _, err := microposts.Create(ctx, alice, strings.Repeat("世", 141)); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("141-character multibyte content: got %v, want ErrInvalidInput", err)
	}
}

func TestMicropost_DeleteOwnerOnly(t *testing.T) {
	_, microposts, auth, _ := newSocialService(t, 0)
	ctx := context.Background()
	alice := registerActivated(t, auth, "Alice", "alice@example.com", "password")
	bob := registerActivated(t, auth, "Bob", "bob@example.com", "password")

	post, err := microposts.Create(ctx, alice, "mine")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := microposts.Delete(ctx, bob, post.ID); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("foreign delete: got %v, want ErrUnauthorized", err)
	}
	if err := microposts.Delete(ctx, alice, post.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := microposts.Delete(ctx, alice, post.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("second delete: got %v, want ErrNotFound", err)
	}
}
