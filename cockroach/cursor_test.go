package cockroach

import (
	"testing"
	"time"

	"github.com/nebulahq/nebula/errs"
	"github.com/nebulahq/nebula/types"
)

func TestCursor_roundTrip(t *testing.T) {
	in := Cursor[time.Time]{
		ID:    "cursor-id",
		Value: time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC),
	}

	encoded, err := EncodeCursor(in)
	if err != nil {
		t.Fatalf("EncodeCursor() error = %v", err)
	}

	out, err := DecodeCursor[time.Time](encoded)
	if err != nil {
		t.Fatalf("DecodeCursor() error = %v", err)
	}

	if out.ID != in.ID {
		t.Errorf("ID = %q, want %q", out.ID, in.ID)
	}
	if !out.Value.Equal(in.Value) {
		t.Errorf("Value = %v, want %v", out.Value, in.Value)
	}
}

func TestDecodeCursor_invalid(t *testing.T) {
	_, err := DecodeCursor[time.Time]("definitely not a cursor!!!")
	if !errs.IsInvalidArgument(err) {
		t.Errorf("DecodeCursor() error = %v, want invalid argument", err)
	}
}

func Test_applyPageInfo(t *testing.T) {
	type item struct {
		ID        string
		CreatedAt time.Time
	}

	now := time.Now()
	items := func(n int) []item {
		out := make([]item, n)
		for i := range out {
			out[i] = item{ID: string(rune('a' + i)), CreatedAt: now.Add(-time.Duration(i) * time.Minute)}
		}
		return out
	}
	cursorFunc := func(it item) Cursor[time.Time] {
		return Cursor[time.Time]{ID: it.ID, Value: it.CreatedAt}
	}
	first := uint(3)

	t.Run("forwards_with_more", func(t *testing.T) {
		page := types.Page[item]{Items: items(4)}
		err := applyPageInfo(&page, PageArgs[time.Time]{First: &first}, cursorFunc)
		if err != nil {
			t.Fatalf("applyPageInfo() error = %v", err)
		}

		if len(page.Items) != 3 {
			t.Errorf("items = %d, want trimmed to 3", len(page.Items))
		}
		if !page.PageInfo.HasNextPage {
			t.Error("want HasNextPage")
		}
		if page.PageInfo.HasPreviousPage {
			t.Error("want no HasPreviousPage without an after cursor")
		}
		if page.PageInfo.StartCursor == nil || page.PageInfo.EndCursor == nil {
			t.Fatal("want start and end cursors")
		}

		start, err := DecodeCursor[time.Time](*page.PageInfo.StartCursor)
		if err != nil {
			t.Fatalf("decode start cursor: %v", err)
		}
		if start.ID != "a" {
			t.Errorf("start cursor ID = %q, want %q", start.ID, "a")
		}
	})

	t.Run("forwards_exact_page", func(t *testing.T) {
		page := types.Page[item]{Items: items(3)}
		err := applyPageInfo(&page, PageArgs[time.Time]{First: &first}, cursorFunc)
		if err != nil {
			t.Fatalf("applyPageInfo() error = %v", err)
		}

		if len(page.Items) != 3 {
			t.Errorf("items = %d, want 3", len(page.Items))
		}
		if page.PageInfo.HasNextPage {
			t.Error("want no HasNextPage when the page is not overfull")
		}
	})

	t.Run("backwards_reverses", func(t *testing.T) {
		last := uint(2)
		// Backwards queries return rows oldest first.
		asc := []item{
			{ID: "a", CreatedAt: now.Add(-3 * time.Minute)},
			{ID: "b", CreatedAt: now.Add(-2 * time.Minute)},
			{ID: "c", CreatedAt: now.Add(-time.Minute)},
		}
		page := types.Page[item]{Items: asc}
		err := applyPageInfo(&page, PageArgs[time.Time]{Last: &last}, cursorFunc)
		if err != nil {
			t.Fatalf("applyPageInfo() error = %v", err)
		}

		if len(page.Items) != 2 {
			t.Fatalf("items = %d, want trimmed to 2", len(page.Items))
		}
		if !page.PageInfo.HasPreviousPage {
			t.Error("want HasPreviousPage")
		}
		// Backwards queries run in ascending order; the page flips back to descending.
		if page.Items[0].ID != "b" || page.Items[1].ID != "a" {
			t.Errorf("items = [%s %s], want [b a]", page.Items[0].ID, page.Items[1].ID)
		}
	})

	t.Run("empty", func(t *testing.T) {
		page := types.Page[item]{}
		err := applyPageInfo(&page, PageArgs[time.Time]{First: &first}, cursorFunc)
		if err != nil {
			t.Fatalf("applyPageInfo() error = %v", err)
		}
		if page.PageInfo.StartCursor != nil || page.PageInfo.EndCursor != nil {
			t.Error("want no cursors for an empty page")
		}
	})
}
