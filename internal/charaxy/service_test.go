package charaxy

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

type staticAdmins map[string]bool

func (a staticAdmins) IsSystemAdmin(ctx context.Context, userID string) (bool, error) {
	return a[userID], nil
}

func newTestService(t *testing.T, admins AdminChecker) (*Service, *MemoryRepo) {
	t.Helper()
	repo := NewMemoryRepo()
	svc := NewService(repo, admins, nil)

	// monotonic clock so updated_at ordering is deterministic
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	svc.clock = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	n := 0
	svc.newID = func() string {
		n++
		return fmt.Sprintf("id-%03d", n)
	}
	return svc, repo
}

func TestNodes_OwnAndPublicOnly(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, nil)

	own, _ := svc.CreateNode(ctx, "u1", NodeCreate{Title: "mine"})
	pub, _ := svc.CreateNode(ctx, "u2", NodeCreate{Title: "shared", IsPublic: true})
	if _, err := svc.CreateNode(ctx, "u2", NodeCreate{Title: "private"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	nodes, err := svc.Nodes(ctx, "u1", 0, 100)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(nodes) != 2 {
		t.Fatalf("expected own+public = 2 nodes, got %d", len(nodes))
	}
	for _, n := range nodes {
		if n.ID != own.ID && n.ID != pub.ID {
			t.Fatalf("unexpected node in listing: %+v", n)
		}
	}
}

func TestNode_PrivateHiddenFromOthers(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, nil)

	n, _ := svc.CreateNode(ctx, "u1", NodeCreate{Title: "secret"})

	if _, err := svc.Node(ctx, "u2", n.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for stranger, got %v", err)
	}
	if _, err := svc.Node(ctx, "u1", n.ID); err != nil {
		t.Fatalf("owner must see own private node: %v", err)
	}
}

func TestUpdateNode_OwnerOrAdmin(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, staticAdmins{"root": true})

	n, _ := svc.CreateNode(ctx, "u1", NodeCreate{Title: "before"})
	title := "after"

	if _, err := svc.UpdateNode(ctx, "u2", n.ID, NodeUpdate{Title: &title}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("stranger update: expected ErrForbidden, got %v", err)
	}
	if _, err := svc.UpdateNode(ctx, "root", n.ID, NodeUpdate{Title: &title}); err != nil {
		t.Fatalf("system admin update should pass: %v", err)
	}
	if _, err := svc.UpdateNode(ctx, "u1", n.ID, NodeUpdate{}); !errors.Is(err, ErrNoChanges) {
		t.Fatalf("empty update: expected ErrNoChanges, got %v", err)
	}
}

func TestDeleteNode_SoftDeleteHidesFromReads(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, nil)

	n, _ := svc.CreateNode(ctx, "u1", NodeCreate{Title: "doomed", IsPublic: true})
	if _, err := svc.DeleteNode(ctx, "u1", n.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if _, err := svc.Node(ctx, "u1", n.ID); !errors.Is(err, ErrNodeNotFound) {
		t.Fatalf("deleted node must be invisible, got %v", err)
	}
	nodes, _ := svc.Nodes(ctx, "u1", 0, 100)
	if len(nodes) != 0 {
		t.Fatalf("deleted node still listed: %+v", nodes)
	}
	// deleting again is a clean not-found
	if _, err := svc.DeleteNode(ctx, "u1", n.ID); !errors.Is(err, ErrNodeNotFound) {
		t.Fatalf("second delete: expected ErrNodeNotFound, got %v", err)
	}
}

func TestCreateBlock_AppendsAtEnd(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, nil)

	n, _ := svc.CreateNode(ctx, "u1", NodeCreate{Title: "node"})
	b1, err := svc.CreateBlock(ctx, "u1", BlockCreate{Title: "first", NodeID: n.ID})
	if err != nil {
		t.Fatalf("create block: %v", err)
	}
	b2, _ := svc.CreateBlock(ctx, "u1", BlockCreate{Title: "second", NodeID: n.ID})

	if b1.SortOrder != 0 || b2.SortOrder != 1 {
		t.Fatalf("blocks must append at the end: got %d then %d", b1.SortOrder, b2.SortOrder)
	}

	// creating in someone else's node is forbidden
	if _, err := svc.CreateBlock(ctx, "u2", BlockCreate{Title: "x", NodeID: n.ID}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestReorderBlocks_AtomicOwnership(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, nil)

	n1, _ := svc.CreateNode(ctx, "u1", NodeCreate{Title: "n1"})
	n2, _ := svc.CreateNode(ctx, "u2", NodeCreate{Title: "n2"})
	a, _ := svc.CreateBlock(ctx, "u1", BlockCreate{Title: "a", NodeID: n1.ID})
	b, _ := svc.CreateBlock(ctx, "u1", BlockCreate{Title: "b", NodeID: n1.ID})
	foreign, _ := svc.CreateBlock(ctx, "u2", BlockCreate{Title: "z", NodeID: n2.ID})

	// a foreign block poisons the whole reorder, nothing moves
	if err := svc.ReorderBlocks(ctx, "u1", []string{b.ID, foreign.ID, a.ID}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	blocks, _ := svc.Blocks(ctx, "u1", n1.ID)
	if blocks[0].ID != a.ID || blocks[1].ID != b.ID {
		t.Fatalf("failed reorder must not move anything: %+v", blocks)
	}

	if err := svc.ReorderBlocks(ctx, "u1", []string{b.ID, a.ID}); err != nil {
		t.Fatalf("reorder: %v", err)
	}
	blocks, _ = svc.Blocks(ctx, "u1", n1.ID)
	if blocks[0].ID != b.ID || blocks[1].ID != a.ID {
		t.Fatalf("reorder did not apply: %+v", blocks)
	}

	// duplicates are rejected up front
	if err := svc.ReorderBlocks(ctx, "u1", []string{a.ID, a.ID}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for duplicates, got %v", err)
	}
}

func TestSetBlockTheme_SetAndClear(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, nil)

	n, _ := svc.CreateNode(ctx, "u1", NodeCreate{Title: "n"})
	b, _ := svc.CreateBlock(ctx, "u1", BlockCreate{Title: "b", NodeID: n.ID})
	th, _ := svc.CreateTheme(ctx, "u1", ThemeCreate{Title: "th"})

	got, err := svc.SetBlockTheme(ctx, "u1", b.ID, th.ID)
	if err != nil {
		t.Fatalf("set theme: %v", err)
	}
	if got.ThemeID != th.ID {
		t.Fatalf("theme not set: %+v", got)
	}

	if _, err := svc.SetBlockTheme(ctx, "u1", b.ID, "missing"); !errors.Is(err, ErrThemeNotFound) {
		t.Fatalf("unknown theme: expected ErrThemeNotFound, got %v", err)
	}

	got, err = svc.SetBlockTheme(ctx, "u1", b.ID, "")
	if err != nil {
		t.Fatalf("clear theme: %v", err)
	}
	if got.ThemeID != "" {
		t.Fatalf("theme not cleared: %+v", got)
	}
}

func TestThemeBlocks_VisibilityFilter(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, nil)

	th, _ := svc.CreateTheme(ctx, "u1", ThemeCreate{Title: "shared theme"})

	pub, _ := svc.CreateNode(ctx, "u2", NodeCreate{Title: "public", IsPublic: true})
	priv, _ := svc.CreateNode(ctx, "u2", NodeCreate{Title: "private"})
	mine, _ := svc.CreateNode(ctx, "u1", NodeCreate{Title: "mine"})

	svc.CreateBlock(ctx, "u2", BlockCreate{Title: "on public", NodeID: pub.ID, ThemeID: th.ID})
	svc.CreateBlock(ctx, "u2", BlockCreate{Title: "on private", NodeID: priv.ID, ThemeID: th.ID})
	svc.CreateBlock(ctx, "u1", BlockCreate{Title: "on mine", NodeID: mine.ID, ThemeID: th.ID})

	blocks, err := svc.ThemeBlocks(ctx, "u1", th.ID)
	if err != nil {
		t.Fatalf("theme blocks: %v", err)
	}
	if len(blocks) != 2 {
		t.Fatalf("expected public + own = 2 blocks, got %d: %+v", len(blocks), blocks)
	}
	for _, b := range blocks {
		if b.Title == "on private" {
			t.Fatal("private node's block leaked through the theme view")
		}
	}
}

func TestThemesWithCount_SkipsDeletedBlocks(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, nil)

	th, _ := svc.CreateTheme(ctx, "u1", ThemeCreate{Title: "th"})
	n, _ := svc.CreateNode(ctx, "u1", NodeCreate{Title: "n"})
	svc.CreateBlock(ctx, "u1", BlockCreate{Title: "keep", NodeID: n.ID, ThemeID: th.ID})
	dead, _ := svc.CreateBlock(ctx, "u1", BlockCreate{Title: "gone", NodeID: n.ID, ThemeID: th.ID})
	svc.DeleteBlock(ctx, "u1", dead.ID)

	themes, err := svc.ThemesWithCount(ctx)
	if err != nil {
		t.Fatalf("themes with count: %v", err)
	}
	if len(themes) != 1 || themes[0].BlockCount != 1 {
		t.Fatalf("expected one theme with block_count=1, got %+v", themes)
	}
}

func TestActivity_PublicOthersOnly(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, nil)

	pub, _ := svc.CreateNode(ctx, "u2", NodeCreate{Title: "public", IsPublic: true})
	priv, _ := svc.CreateNode(ctx, "u2", NodeCreate{Title: "private"})
	mine, _ := svc.CreateNode(ctx, "u1", NodeCreate{Title: "mine", IsPublic: true})

	svc.CreateBlock(ctx, "u2", BlockCreate{Title: "visible", NodeID: pub.ID})
	svc.CreateBlock(ctx, "u2", BlockCreate{Title: "hidden", NodeID: priv.ID})
	svc.CreateBlock(ctx, "u1", BlockCreate{Title: "own activity", NodeID: mine.ID})

	items, err := svc.Activity(ctx, "u1")
	if err != nil {
		t.Fatalf("activity: %v", err)
	}
	if len(items) != 1 || items[0].BlockTitle != "visible" {
		t.Fatalf("feed should show only other users' public blocks, got %+v", items)
	}
}

func TestSearch_RespectsVisibility(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, nil)

	pub, _ := svc.CreateNode(ctx, "u2", NodeCreate{Title: "kagra public notes", IsPublic: true})
	svc.CreateNode(ctx, "u2", NodeCreate{Title: "kagra private notes"})
	svc.CreateBlock(ctx, "u2", BlockCreate{Title: "kagra block", NodeID: pub.ID})

	res, err := svc.Search(ctx, "u1", "kagra", 20)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(res.Nodes) != 1 {
		t.Fatalf("expected only the public node, got %+v", res.Nodes)
	}
	if len(res.Blocks) != 1 {
		t.Fatalf("expected only the public node's block, got %+v", res.Blocks)
	}

	if _, err := svc.Search(ctx, "u1", "   ", 20); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("blank query: expected ErrInvalidInput, got %v", err)
	}
}

func TestBlock_OwnerOnly(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, nil)

	n, _ := svc.CreateNode(ctx, "u1", NodeCreate{Title: "n", IsPublic: true})
	b, _ := svc.CreateBlock(ctx, "u1", BlockCreate{Title: "b", NodeID: n.ID})

	if _, err := svc.Block(ctx, "u2", b.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if _, err := svc.Block(ctx, "u1", b.ID); err != nil {
		t.Fatalf("owner read: %v", err)
	}
}
