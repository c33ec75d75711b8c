package download

import (
	"emperror.dev/errors"
	"github.com/je4/zotrecent/pkg/zotero"
	"github.com/op/go-logging"
	"os"
	"path/filepath"
	"time"
)

const dirPrefix = "zotero_recent_downloads_"

// timestamp format of the per-run output directory. Sortable.
const dirTimeFormat = "2006-01-02-1504"

type Config struct {
	DaysBack  int64
	ParentDir string
	PageLimit int64
}

// Summary collects per-run counters. Skipped counts items without any stored
// attachment, Failed counts attachments that could not be fetched or written.
type Summary struct {
	Items      int
	Downloaded int
	Skipped    int
	Failed     int
	Dir        string
}

type Downloader struct {
	zot    *zotero.Zotero
	logger *logging.Logger
	cfg    Config
}

func NewDownloader(zot *zotero.Zotero, cfg Config, logger *logging.Logger) *Downloader {
	if cfg.PageLimit <= 0 {
		cfg.PageLimit = 100
	}
	if cfg.ParentDir == "" {
		cfg.ParentDir = "."
	}
	return &Downloader{
		zot:    zot,
		logger: logger,
		cfg:    cfg,
	}
}

// RecentItems lists the top-level items added within the lookback window
// ending at now. The remote sorts by dateAdded descending, so listing stops
// at the first page position older than the cutoff; correctness does not
// depend on the order, only the early stop does.
func (dl *Downloader) RecentItems(now time.Time) ([]zotero.Item, error) {
	cutoff := now.Add(-time.Duration(dl.cfg.DaysBack) * 24 * time.Hour)
	dl.logger.Infof("fetching items added since %s", cutoff.Format(time.RFC3339))

	result := []zotero.Item{}
	seen := map[string]bool{}
	start := int64(0)
	for {
		items, total, err := dl.zot.Items(start, dl.cfg.PageLimit, "dateAdded", "desc")
		if err != nil {
			return nil, errors.Wrap(err, "cannot list items")
		}
		for _, item := range items {
			added, err := item.Added()
			if err != nil {
				dl.logger.Warningf("cannot parse date of item %s: %v", item.Key, err)
				continue
			}
			if added.Before(cutoff) {
				return result, nil
			}
			if added.After(now) {
				continue
			}
			if !item.IsTopLevel() {
				continue
			}
			if seen[item.Key] {
				continue
			}
			seen[item.Key] = true
			result = append(result, item)
		}
		if total <= start+dl.cfg.PageLimit {
			return result, nil
		}
		start += dl.cfg.PageLimit
	}
}

// Run performs one end-to-end pass: list recent items, create the output
// directory, fetch and save every stored attachment. Per-attachment failures
// are counted and logged, only listing and directory creation are fatal.
func (dl *Downloader) Run(now time.Time) (*Summary, error) {
	items, err := dl.RecentItems(now)
	if err != nil {
		return nil, err
	}

	dir := filepath.Join(dl.cfg.ParentDir, dirPrefix+now.Format(dirTimeFormat))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrapf(err, "cannot create output directory %s", dir)
	}

	summary := &Summary{
		Items: len(items),
		Dir:   dir,
	}
	names := NewNameSet()
	for _, item := range items {
		if err := dl.downloadItem(&item, dir, names, summary); err != nil {
			dl.logger.Errorf("cannot process item %s: %v", item.Key, err)
			summary.Failed++
		}
	}

	dl.logger.Infof("%v items, %v downloaded, %v skipped, %v failed, files in %s",
		summary.Items, summary.Downloaded, summary.Skipped, summary.Failed, summary.Dir)
	return summary, nil
}

func (dl *Downloader) downloadItem(item *zotero.Item, dir string, names *NameSet, summary *Summary) error {
	children, err := dl.zot.Children(item.Key)
	if err != nil {
		return errors.Wrapf(err, "cannot get children of %s", item.Key)
	}
	attachments := []zotero.Item{}
	for _, child := range children {
		if child.IsStoredAttachment() {
			attachments = append(attachments, child)
		}
	}
	if len(attachments) == 0 {
		dl.logger.Infof("item %s (%s) has no stored attachment", item.Key, item.Data.Title)
		summary.Skipped++
		return nil
	}

	for _, att := range attachments {
		body, _, err := dl.zot.Attachment(att.Key)
		if err != nil {
			dl.logger.Errorf("cannot download attachment %s of %s: %v", att.Key, item.Key, err)
			summary.Failed++
			continue
		}
		ext := att.AttachmentExt()
		name := names.Unique(Stem(item.Data.Title, att.Data.Filename, ext, att.Key), ext)
		if err := os.WriteFile(filepath.Join(dir, name), body, 0644); err != nil {
			dl.logger.Errorf("cannot write %s: %v", filepath.Join(dir, name), err)
			summary.Failed++
			continue
		}
		dl.logger.Infof("downloaded %s (original: %s)", name, att.Data.Filename)
		summary.Downloaded++
	}
	return nil
}
