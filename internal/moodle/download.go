package moodle

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/imroc/req/v3"

	"github.com/frartenzo/webeep-sync/internal/utils"
)

const progressInterval = 500 * time.Millisecond

// DownloadFile streams one resource to destPath, reporting progress at a
// fixed interval. The caller owns the temp-then-rename discipline; this
// only writes destPath. On failure destPath is removed.
func (c *Client) DownloadFile(ctx context.Context, fileURL, destPath string, progress func(downloaded, total int64)) error {
	if !c.LoggedIn() {
		return ErrNotAuthenticated
	}
	if err := utils.EnsureParent(destPath); err != nil {
		return fmt.Errorf("moodle: download %q: %w", fileURL, err)
	}

	authURL, err := withToken(fileURL, c.currentToken())
	if err != nil {
		return &RemoteDataError{Op: "download", Err: err}
	}

	res, err := c.http.R().
		DisableAutoReadResponse().
		SetContext(ctx).
		SetOutputFile(destPath).
		SetDownloadCallbackWithInterval(func(info req.DownloadInfo) {
			if progress != nil && info.Response.Response != nil {
				progress(info.DownloadedSize, info.Response.ContentLength)
			}
		}, progressInterval).
		Get(authURL)
	if err != nil {
		os.Remove(destPath)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return &NetworkError{Op: "download", Err: err}
	}

	if res.IsErrorState() {
		// the error body was dumped into destPath by SetOutputFile
		os.Remove(destPath)
		status := res.GetStatusCode()
		if status >= 500 {
			return &NetworkError{Op: "download", Err: fmt.Errorf("http %d", status)}
		}
		return &RemoteDataError{Op: "download", Err: fmt.Errorf("http %d", status)}
	}

	return nil
}

// withToken appends the webservice token to a pluginfile URL.
func withToken(fileURL, token string) (string, error) {
	u, err := url.Parse(fileURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
