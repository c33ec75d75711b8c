package zotero

import (
	"emperror.dev/errors"
	"fmt"
	"github.com/op/go-logging"
	"gopkg.in/resty.v1"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// ErrAccessDenied signals that the API rejected the key or the key has no
// read access to the library. Callers must treat this as fatal.
var ErrAccessDenied = errors.New("access to library denied")

type Zotero struct {
	baseUrl    *url.URL
	apiKey     string
	userId     int64
	client     *resty.Client
	Logger     *logging.Logger
	CurrentKey *ApiKey
}

type Library struct {
	Type  string      `json:"type"`
	Id    int64       `json:"id"`
	Name  string      `json:"name"`
	Links interface{} `json:"links"`
}

func NewZotero(baseUrl string, apiKey string, userId int64, logger *logging.Logger) (*Zotero, error) {
	burl, err := url.Parse(baseUrl)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot create url from %s", baseUrl)
	}
	zot := &Zotero{
		baseUrl: burl,
		apiKey:  apiKey,
		userId:  userId,
		Logger:  logger,
	}
	if err := zot.Init(); err != nil {
		return nil, errors.Wrap(err, "cannot init zotero")
	}
	return zot, nil
}

func (zot *Zotero) Init() (err error) {
	zot.client = resty.New()
	zot.client.SetHostURL(zot.baseUrl.String())
	zot.client.SetAuthToken(zot.apiKey)
	zot.client.SetContentLength(true)
	zot.client.SetRedirectPolicy(resty.FlexibleRedirectPolicy(3))
	zot.CurrentKey, err = zot.getCurrentKey()
	if err != nil {
		return err
	}
	if !zot.CurrentKey.Access.User.Library {
		return errors.WithMessagef(ErrAccessDenied, "key of %s has no library read access", zot.CurrentKey.Username)
	}
	return nil
}

func (zot *Zotero) UserId() int64 {
	return zot.userId
}

func (zot *Zotero) userPath(suffix string) string {
	return fmt.Sprintf("/users/%v%s", zot.userId, suffix)
}

/**
Clients accessing the Zotero API should be prepared to handle two forms of rate limiting: backoff requests and hard limiting.
If the API servers are overloaded, the API may include a Backoff: <seconds> HTTP header in responses, indicating that the client should perform the minimum number of requests necessary to maintain data consistency and then refrain from making further requests for the number of seconds indicated. Backoff can be included in any response, including successful ones.
If a client has made too many requests within a given time period, the API may return 429 Too Many Requests with a Retry-After: <seconds> header. Clients receiving a 429 should wait the number of seconds indicated in the header before retrying the request.
*/
func (zot *Zotero) CheckRetry(header http.Header) bool {
	var err error
	retryAfter := int64(0)
	retryAfterStr := header.Get("Retry-After")
	if retryAfterStr != "" {
		retryAfter, err = strconv.ParseInt(retryAfterStr, 10, 64)
		if err != nil {
			retryAfter = 0
		}
	}

	if retryAfter > 0 {
		zot.Logger.Infof("Sleeping %v seconds (RetryAfter)", retryAfter)
		time.Sleep(time.Duration(retryAfter) * time.Second)
	}
	return retryAfter > 0
}

func (zot *Zotero) CheckBackoff(header http.Header) bool {
	var err error
	backoff := int64(0)
	backoffStr := header.Get("Backoff")
	if backoffStr != "" {
		backoff, err = strconv.ParseInt(backoffStr, 10, 64)
		if err != nil {
			backoff = 0
		}
	}
	if backoff > 0 {
		zot.Logger.Infof("Sleeping %v seconds (Backoff)", backoff)
		time.Sleep(time.Duration(backoff) * time.Second)
	}
	return backoff > 0
}
