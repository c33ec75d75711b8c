package download_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"sort"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/op/go-logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/je4/zotrecent/pkg/download"
	"github.com/je4/zotrecent/pkg/zotero"
)

const testUserId = 123

var testLogger = logging.MustGetLogger("test")

// fakeLibrary serves a minimal zotero web api: key probe, item listing,
// children, attachment files.
type fakeLibrary struct {
	items    []zotero.Item
	children map[string][]zotero.Item
	files    map[string][]byte
	fileErr  map[string]int
}

func (fl *fakeLibrary) handler(t *testing.T) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		switch {
		case path == "/keys/current":
			fmt.Fprintf(w, `{"userId":%d,"username":"tester","access":{"user":{"library":true,"files":true}}}`, testUserId)
		case path == fmt.Sprintf("/users/%d/items", testUserId):
			w.Header().Set("Total-Results", strconv.Itoa(len(fl.items)))
			require.NoError(t, json.NewEncoder(w).Encode(fl.items))
		case strings.HasSuffix(path, "/children"):
			key := strings.TrimSuffix(strings.TrimPrefix(path, fmt.Sprintf("/users/%d/items/", testUserId)), "/children")
			require.NoError(t, json.NewEncoder(w).Encode(fl.children[key]))
		case strings.HasSuffix(path, "/file"):
			key := strings.TrimSuffix(strings.TrimPrefix(path, fmt.Sprintf("/users/%d/items/", testUserId)), "/file")
			if code, ok := fl.fileErr[key]; ok {
				w.WriteHeader(code)
				return
			}
			body, ok := fl.files[key]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.Header().Set("Content-Type", "application/pdf")
			w.Write(body)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
}

func newTestDownloader(t *testing.T, fl *fakeLibrary, daysBack int64) (*download.Downloader, string) {
	t.Helper()
	srv := httptest.NewServer(fl.handler(t))
	t.Cleanup(srv.Close)
	zot, err := zotero.NewZotero(srv.URL, "secret", testUserId, testLogger)
	require.NoError(t, err)
	dir := t.TempDir()
	return download.NewDownloader(zot, download.Config{
		DaysBack:  daysBack,
		ParentDir: dir,
	}, testLogger), dir
}

func topItem(key, title string, added time.Time) zotero.Item {
	return zotero.Item{
		Key: key,
		Data: zotero.ItemData{
			Key:       key,
			ItemType:  "journalArticle",
			Title:     title,
			DateAdded: added.UTC().Format(time.RFC3339),
		},
	}
}

func attachment(key, parent, filename, linkMode string) zotero.Item {
	return zotero.Item{
		Key: key,
		Data: zotero.ItemData{
			Key:         key,
			ItemType:    "attachment",
			ParentItem:  zotero.Parent(parent),
			LinkMode:    linkMode,
			ContentType: "application/pdf",
			Filename:    filename,
		},
	}
}

func dirEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := []string{}
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

func TestRunCollisionDisambiguation(t *testing.T) {
	now := time.Now()
	fl := &fakeLibrary{
		items: []zotero.Item{
			topItem("ITEM1", "Report", now.Add(-2*time.Hour)),
			topItem("ITEM2", "Report", now.Add(-3*time.Hour)),
		},
		children: map[string][]zotero.Item{
			"ITEM1": {attachment("ATT1", "ITEM1", "a.pdf", "imported_file")},
			"ITEM2": {attachment("ATT2", "ITEM2", "b.pdf", "imported_file")},
		},
		files: map[string][]byte{
			"ATT1": []byte("%PDF-1.4 one"),
			"ATT2": []byte("%PDF-1.4 two"),
		},
	}
	dl, parent := newTestDownloader(t, fl, 7)

	summary, err := dl.Run(now)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Items)
	assert.Equal(t, 2, summary.Downloaded)
	assert.Equal(t, 0, summary.Failed)
	assert.Equal(t, []string{"Report.pdf", "Report_1.pdf"}, dirEntries(t, summary.Dir))
	assert.True(t, strings.HasPrefix(summary.Dir, parent))
}

func TestRunZeroItems(t *testing.T) {
	now := time.Now()
	fl := &fakeLibrary{items: []zotero.Item{}}
	dl, _ := newTestDownloader(t, fl, 7)

	summary, err := dl.Run(now)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Items)
	assert.Equal(t, 0, summary.Downloaded)

	// output directory is created even for an empty run
	info, err := os.Stat(summary.Dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Empty(t, dirEntries(t, summary.Dir))
}

func TestRunSkipsItemWithoutAttachment(t *testing.T) {
	now := time.Now()
	fl := &fakeLibrary{
		items: []zotero.Item{
			topItem("ITEM1", "Has File", now.Add(-time.Hour)),
			topItem("ITEM2", "No File", now.Add(-2*time.Hour)),
			topItem("ITEM3", "Linked Only", now.Add(-3*time.Hour)),
		},
		children: map[string][]zotero.Item{
			"ITEM1": {attachment("ATT1", "ITEM1", "a.pdf", "imported_file")},
			"ITEM3": {attachment("ATT3", "ITEM3", "", "linked_url")},
		},
		files: map[string][]byte{"ATT1": []byte("%PDF-1.4")},
	}
	dl, _ := newTestDownloader(t, fl, 7)

	summary, err := dl.Run(now)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Items)
	assert.Equal(t, 1, summary.Downloaded)
	assert.Equal(t, 2, summary.Skipped)
	assert.Equal(t, 0, summary.Failed)
	assert.Equal(t, []string{"Has_File.pdf"}, dirEntries(t, summary.Dir))
}

func TestRunContinuesAfterFetchFailure(t *testing.T) {
	now := time.Now()
	fl := &fakeLibrary{
		items: []zotero.Item{
			topItem("ITEM1", "Broken", now.Add(-time.Hour)),
			topItem("ITEM2", "Working", now.Add(-2*time.Hour)),
		},
		children: map[string][]zotero.Item{
			"ITEM1": {attachment("ATT1", "ITEM1", "a.pdf", "imported_file")},
			"ITEM2": {attachment("ATT2", "ITEM2", "b.pdf", "imported_file")},
		},
		files:   map[string][]byte{"ATT2": []byte("%PDF-1.4")},
		fileErr: map[string]int{"ATT1": http.StatusInternalServerError},
	}
	dl, _ := newTestDownloader(t, fl, 7)

	summary, err := dl.Run(now)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Downloaded)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, []string{"Working.pdf"}, dirEntries(t, summary.Dir))
}

func TestAuthFailureCreatesNoDirectory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	// the client fails before a downloader is ever constructed, so nothing
	// may appear under the output parent
	parent := t.TempDir()
	_, err := zotero.NewZotero(srv.URL, "bad-key", testUserId, testLogger)
	require.Error(t, err)
	assert.Empty(t, dirEntries(t, parent))
}

func TestRecentItemsWindow(t *testing.T) {
	now := time.Now()
	fl := &fakeLibrary{
		items: []zotero.Item{
			topItem("NEW1", "Inside", now.Add(-24*time.Hour)),
			topItem("NEW2", "Edge", now.Add(-6*24*time.Hour)),
			topItem("OLD1", "Outside", now.Add(-30*24*time.Hour)),
			// never reached: listing stops at the first item older than the cutoff
			topItem("OLD2", "Way Outside", now.Add(-60*24*time.Hour)),
		},
	}
	dl, _ := newTestDownloader(t, fl, 7)

	items, err := dl.RecentItems(now)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "NEW1", items[0].Key)
	assert.Equal(t, "NEW2", items[1].Key)

	cutoff := now.Add(-7 * 24 * time.Hour)
	for _, item := range items {
		added, err := item.Added()
		require.NoError(t, err)
		assert.False(t, added.Before(cutoff))
		assert.False(t, added.After(now))
	}
}

func TestRecentItemsSkipsChildrenAndDuplicates(t *testing.T) {
	now := time.Now()
	child := attachment("ATT1", "NEW1", "a.pdf", "imported_file")
	child.Data.DateAdded = now.Add(-time.Hour).UTC().Format(time.RFC3339)
	fl := &fakeLibrary{
		items: []zotero.Item{
			topItem("NEW1", "Paper", now.Add(-time.Hour)),
			child,
			topItem("NEW1", "Paper", now.Add(-time.Hour)),
		},
	}
	dl, _ := newTestDownloader(t, fl, 7)

	items, err := dl.RecentItems(now)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "NEW1", items[0].Key)
}

func TestRecentItemsZeroDays(t *testing.T) {
	now := time.Now()
	fl := &fakeLibrary{
		items: []zotero.Item{
			topItem("NEW1", "Yesterday", now.Add(-24*time.Hour)),
		},
	}
	dl, _ := newTestDownloader(t, fl, 0)

	items, err := dl.RecentItems(now)
	require.NoError(t, err)
	assert.Empty(t, items)
}
