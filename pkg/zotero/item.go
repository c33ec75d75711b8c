package zotero

import (
	"emperror.dev/errors"
	"encoding/json"
	"fmt"
	"gopkg.in/resty.v1"
	"net/http"
	"strconv"
	"time"
)

// zotero treats empty strings as false in parentItem
type Parent string

func (pc *Parent) UnmarshalJSON(data []byte) error {
	var i interface{}
	if err := json.Unmarshal(data, &i); err != nil {
		return err
	}
	switch i.(type) {
	case bool:
		*pc = ""
	case string:
		*pc = Parent(i.(string))
	default:
		return errors.Errorf("invalid no string for %v", string(data))
	}
	return nil
}

type User struct {
	Id       int64       `json:"id"`
	Username string      `json:"username,omitempty"`
	Links    interface{} `json:"links,omitempty"`
}

type ItemTag struct {
	Tag  string `json:"tag"`
	Type int64  `json:"type,omitempty"`
}

type ItemDataPerson struct {
	CreatorType string `json:"creatorType"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
}

type ItemMeta struct {
	CreatedByUser  User   `json:"createdByUser,omitempty"`
	CreatorSummary string `json:"creatorSummary,omitempty"`
	NumChildren    int64  `json:"numChildren,omitempty"`
}

type ItemData struct {
	Key          string           `json:"key,omitempty"`
	Version      int64            `json:"version"`
	ItemType     string           `json:"itemType"`
	Title        string           `json:"title,omitempty"`
	ParentItem   Parent           `json:"parentItem,omitempty"`
	Collections  []string         `json:"collections,omitempty"`
	Tags         []ItemTag        `json:"tags,omitempty"`
	Creators     []ItemDataPerson `json:"creators,omitempty"`
	DateAdded    string           `json:"dateAdded,omitempty"`
	DateModified string           `json:"dateModified,omitempty"`
	// attachment fields
	LinkMode    string `json:"linkMode,omitempty"`
	ContentType string `json:"contentType,omitempty"`
	Charset     string `json:"charset,omitempty"`
	Filename    string `json:"filename,omitempty"`
	Url         string `json:"url,omitempty"`
	MD5         string `json:"md5,omitempty"`
	MTime       int64  `json:"mtime,omitempty"`
}

type Item struct {
	Key     string      `json:"key"`
	Version int64       `json:"version"`
	Library Library     `json:"library,omitempty"`
	Links   interface{} `json:"links,omitempty"`
	Meta    ItemMeta    `json:"meta,omitempty"`
	Data    ItemData    `json:"data,omitempty"`
}

// Added parses the dateAdded timestamp (ISO 8601, e.g. 2024-01-15T10:30:00Z).
func (item *Item) Added() (time.Time, error) {
	t, err := time.Parse(time.RFC3339, item.Data.DateAdded)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "cannot parse dateAdded %s of item %s", item.Data.DateAdded, item.Key)
	}
	return t, nil
}

// IsTopLevel reports whether the item is a parent record rather than a child
// (attachment, note).
func (item *Item) IsTopLevel() bool {
	return string(item.Data.ParentItem) == ""
}

// Items fetches one page of the user's items sorted by the given field. It
// returns the page and the value of the Total-Results header, so callers can
// drive the paging loop themselves.
func (zot *Zotero) Items(start, limit int64, sort, direction string) ([]Item, int64, error) {
	endpoint := zot.userPath("/items")
	zot.Logger.Infof("rest call: %s [%v, %v]", endpoint, start, limit)
	call := zot.client.R().
		SetHeader("Accept", "application/json").
		SetQueryParam("format", "json").
		SetQueryParam("sort", sort).
		SetQueryParam("direction", direction).
		SetQueryParam("limit", strconv.FormatInt(limit, 10)).
		SetQueryParam("start", strconv.FormatInt(start, 10))
	var resp *resty.Response
	var err error
	for {
		resp, err = call.Get(endpoint)
		if err != nil {
			return nil, 0, errors.Wrapf(err, "cannot get items from %s", endpoint)
		}
		if !zot.CheckRetry(resp.Header()) {
			break
		}
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, 0, errors.Errorf("status %v from %s", resp.StatusCode(), endpoint)
	}
	rawBody := resp.Body()
	items := []Item{}
	if err := json.Unmarshal(rawBody, &items); err != nil {
		return nil, 0, errors.Wrapf(err, "cannot unmarshal %s", string(rawBody))
	}
	totalResult, err := strconv.ParseInt(resp.RawResponse.Header.Get("Total-Results"), 10, 64)
	if err != nil {
		totalResult = int64(len(items))
	}
	zot.CheckBackoff(resp.Header())
	return items, totalResult, nil
}

// Children fetches the child items (attachments, notes) of an item.
func (zot *Zotero) Children(key string) ([]Item, error) {
	endpoint := zot.userPath(fmt.Sprintf("/items/%s/children", key))
	zot.Logger.Infof("rest call: %s", endpoint)
	call := zot.client.R().
		SetHeader("Accept", "application/json")
	var resp *resty.Response
	var err error
	for {
		resp, err = call.Get(endpoint)
		if err != nil {
			return nil, errors.Wrapf(err, "cannot get children from %s", endpoint)
		}
		if !zot.CheckRetry(resp.Header()) {
			break
		}
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, errors.Errorf("status %v from %s", resp.StatusCode(), endpoint)
	}
	rawBody := resp.Body()
	items := []Item{}
	if err := json.Unmarshal(rawBody, &items); err != nil {
		return nil, errors.Wrapf(err, "cannot unmarshal %s", string(rawBody))
	}
	zot.CheckBackoff(resp.Header())
	return items, nil
}

// Attachment fetches the stored file of an attachment item. It returns the
// raw bytes and the content type reported by the server.
func (zot *Zotero) Attachment(key string) ([]byte, string, error) {
	endpoint := zot.userPath(fmt.Sprintf("/items/%s/file", key))
	zot.Logger.Infof("rest call: %s", endpoint)
	call := zot.client.R()
	var resp *resty.Response
	var err error
	for {
		resp, err = call.Get(endpoint)
		if err != nil {
			return nil, "", errors.Wrapf(err, "cannot get file from %s", endpoint)
		}
		if !zot.CheckRetry(resp.Header()) {
			break
		}
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, "", errors.Errorf("status %v from %s", resp.StatusCode(), endpoint)
	}
	contentType := resp.Header().Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	zot.CheckBackoff(resp.Header())
	return resp.Body(), contentType, nil
}
