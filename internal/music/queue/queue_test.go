package queue

import (
	"errors"
	"fmt"
	"testing"

	"sombra/internal/music/track"
)

func newTrack(n int) *track.Track {
	return &track.Track{
		Title:    fmt.Sprintf("Track %d", n),
		URL:      fmt.Sprintf("https://example.com/%d", n),
		Duration: 10,
	}
}

func fillQueue(t *testing.T, q *TrackQueue, n int) []*track.QueueItem {
	t.Helper()
	items := make([]*track.QueueItem, 0, n)
	for i := 1; i <= n; i++ {
		item, err := q.Add(newTrack(i), "user1", "Alice")
		if err != nil {
			t.Fatalf("Add #%d: %v", i, err)
		}
		items = append(items, item)
	}
	return items
}

func TestAddRespectsCapacity(t *testing.T) {
	q := New(2)
	fillQueue(t, q, 2)

	if !q.IsFull() {
		t.Error("queue should be full")
	}
	if _, err := q.Add(newTrack(3), "user1", "Alice"); !errors.Is(err, ErrQueueFull) {
		t.Errorf("Add past capacity = %v, want ErrQueueFull", err)
	}
	if q.Size() != 2 {
		t.Errorf("Size() = %d, want 2", q.Size())
	}
}

func TestGetNextIsFIFO(t *testing.T) {
	q := New(10)
	fillQueue(t, q, 3)

	for i := 1; i <= 3; i++ {
		item := q.GetNext()
		if item == nil {
			t.Fatalf("GetNext #%d returned nil", i)
		}
		if want := fmt.Sprintf("Track %d", i); item.Track.Title != want {
			t.Errorf("GetNext #%d = %q, want %q", i, item.Track.Title, want)
		}
	}
	if q.GetNext() != nil {
		t.Error("GetNext on empty queue should return nil")
	}
}

func TestPositionsWithAndWithoutCurrent(t *testing.T) {
	q := New(10)
	items := fillQueue(t, q, 3)

	// No current: queued items occupy positions 1..n.
	for i, item := range items {
		if item.Position != i+1 {
			t.Errorf("item %d position = %d, want %d", i, item.Position, i+1)
		}
	}

	first := q.GetNext()
	q.SetCurrent(first)

	// With a current track, queued items start at 2.
	for i, item := range q.GetAll() {
		if item.Position != i+2 {
			t.Errorf("item %d position = %d, want %d", i, item.Position, i+2)
		}
	}
}

func TestAddMultiplePartial(t *testing.T) {
	q := New(2)
	tracks := []*track.Track{newTrack(1), newTrack(2), newTrack(3)}
	added := q.AddMultiple(tracks, "user1", "Alice")
	if len(added) != 2 {
		t.Fatalf("AddMultiple accepted %d, want 2", len(added))
	}
	if q.Size() != 2 {
		t.Errorf("Size() = %d, want 2", q.Size())
	}
}

func TestRemoveAtDisplayPositions(t *testing.T) {
	q := New(10)
	fillQueue(t, q, 3)
	q.SetCurrent(q.GetNext()) // Track 1 playing, Track 2 at position 2

	removed := q.RemoveAt(2)
	if removed == nil || removed.Track.Title != "Track 2" {
		t.Fatalf("RemoveAt(2) = %v, want Track 2", removed)
	}
	if q.Size() != 1 {
		t.Errorf("Size() = %d, want 1", q.Size())
	}
	// Position 1 is the current item, which RemoveAt never touches.
	if q.RemoveAt(1) != nil {
		t.Error("RemoveAt(1) with a current track should return nil")
	}
	if q.RemoveAt(99) != nil {
		t.Error("RemoveAt out of range should return nil")
	}
	if q.Current() == nil {
		t.Error("current track should survive RemoveAt")
	}
}

func TestRemoveAtWithoutCurrent(t *testing.T) {
	q := New(10)
	fillQueue(t, q, 2)

	removed := q.RemoveAt(1)
	if removed == nil || removed.Track.Title != "Track 1" {
		t.Fatalf("RemoveAt(1) = %v, want Track 1", removed)
	}
}

func TestClearVariants(t *testing.T) {
	q := New(10)
	fillQueue(t, q, 3)
	q.SetCurrent(q.GetNext())

	if n := q.ClearQueued(); n != 2 {
		t.Errorf("ClearQueued() = %d, want 2", n)
	}
	if q.Current() == nil {
		t.Error("ClearQueued should keep the current track")
	}

	fillQueue(t, q, 2)
	q.Clear()
	if q.Current() != nil || !q.IsEmpty() {
		t.Error("Clear should drop queued items and current")
	}
}

func TestShuffleKeepsMembership(t *testing.T) {
	q := New(20)
	fillQueue(t, q, 10)
	q.SetCurrent(q.GetNext())
	cur := q.Current()

	before := make(map[string]bool)
	for _, item := range q.GetAll() {
		before[item.Track.URL] = true
	}

	q.Shuffle()

	after := q.GetAll()
	if len(after) != len(before) {
		t.Fatalf("Shuffle changed size: %d -> %d", len(before), len(after))
	}
	for i, item := range after {
		if !before[item.Track.URL] {
			t.Errorf("unexpected item after shuffle: %s", item.Track.URL)
		}
		if item.Position != i+2 {
			t.Errorf("item %d position = %d, want %d", i, item.Position, i+2)
		}
	}
	if q.Current() != cur {
		t.Error("Shuffle must not touch the current track")
	}
}

func TestTotalDurationIncludesCurrent(t *testing.T) {
	q := New(10)
	q.Add(&track.Track{Title: "A", URL: "a", Duration: 100}, "u", "U")
	q.SetCurrent(q.GetNext())
	q.Add(&track.Track{Title: "B", URL: "b", Duration: 60}, "u", "U")

	if got := q.TotalDuration(); got != 160 {
		t.Errorf("TotalDuration() = %d, want 160", got)
	}
	if got := q.FormatTotalDuration(); got != "2:40" {
		t.Errorf("FormatTotalDuration() = %q, want 2:40", got)
	}
}

func TestGetPageClamping(t *testing.T) {
	q := New(50)
	fillQueue(t, q, 25)

	tests := []struct {
		name       string
		page       int
		perPage    int
		wantLen    int
		wantPage   int
		wantPages  int
		firstTitle string
	}{
		{"first page", 1, 10, 10, 1, 3, "Track 1"},
		{"middle page", 2, 10, 10, 2, 3, "Track 11"},
		{"short last page", 3, 10, 5, 3, 3, "Track 21"},
		{"page clamped high", 99, 10, 5, 3, 3, "Track 21"},
		{"page clamped low", 0, 10, 10, 1, 3, "Track 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, page, pages := q.GetPage(tt.page, tt.perPage)
			if len(items) != tt.wantLen || page != tt.wantPage || pages != tt.wantPages {
				t.Fatalf("GetPage(%d, %d) = %d items, page %d/%d; want %d items, page %d/%d",
					tt.page, tt.perPage, len(items), page, pages, tt.wantLen, tt.wantPage, tt.wantPages)
			}
			if items[0].Track.Title != tt.firstTitle {
				t.Errorf("first item = %q, want %q", items[0].Track.Title, tt.firstTitle)
			}
		})
	}
}

func TestGetPageEmptyQueue(t *testing.T) {
	q := New(10)
	items, page, pages := q.GetPage(1, 10)
	if len(items) != 0 || page != 1 || pages != 1 {
		t.Errorf("GetPage on empty queue = %d items, page %d/%d; want 0 items, page 1/1", len(items), page, pages)
	}
}

func TestHistoryBounded(t *testing.T) {
	q := New(50)
	fillQueue(t, q, 15)

	for i := 0; i < 15; i++ {
		q.SetCurrent(q.GetNext())
	}

	history := q.History()
	if len(history) != historyLimit {
		t.Fatalf("history length = %d, want %d", len(history), historyLimit)
	}
	// 14 tracks were pushed out of the current slot; the newest 10 survive.
	if history[0].Track.Title != "Track 5" {
		t.Errorf("oldest history entry = %q, want Track 5", history[0].Track.Title)
	}
	if history[len(history)-1].Track.Title != "Track 14" {
		t.Errorf("newest history entry = %q, want Track 14", history[len(history)-1].Track.Title)
	}
}

func TestRequeuePreservesRequester(t *testing.T) {
	q := New(10)
	orig, _ := q.Add(newTrack(1), "user7", "Bob")
	q.SetCurrent(q.GetNext())

	requeued, err := q.Requeue(orig)
	if err != nil {
		t.Fatalf("Requeue: %v", err)
	}
	if requeued == orig {
		t.Error("Requeue should create a new item")
	}
	if requeued.RequesterID != "user7" || requeued.RequesterName != "Bob" {
		t.Errorf("requester = %s/%s, want user7/Bob", requeued.RequesterID, requeued.RequesterName)
	}
	if q.PeekNext() != requeued {
		t.Error("requeued copy should sit at the tail")
	}
}

func TestNewClampsMaxSize(t *testing.T) {
	q := New(0)
	if _, err := q.Add(newTrack(1), "u", "U"); err != nil {
		t.Fatalf("Add on clamped queue: %v", err)
	}
	if _, err := q.Add(newTrack(2), "u", "U"); !errors.Is(err, ErrQueueFull) {
		t.Errorf("second Add = %v, want ErrQueueFull", err)
	}
}
