package remote

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"github.com/google/uuid"
	"github.com/timoverbrugghe/subgen-go/internal/core"
)

// transientUploadErr marks an error as retryable (network/timeout), as
// opposed to a fatal one (auth, other 4xx) that must surface immediately
// per the UploadTransient/UploadFatal split in §7.
type transientUploadErr struct{ err error }

func (e *transientUploadErr) Error() string { return e.err.Error() }
func (e *transientUploadErr) Unwrap() error { return e.err }

var uploadHTTPClient = &http.Client{
	Timeout: 0, // per-request context carries the real deadline
}

// UploadAudio stages path to the object-storage container, returning a
// time-bounded read-access URL and the blob name it was written under
// (§4.6). Uploads larger than cfg.UploadChunkThreshold are split into
// cfg.UploadChunkSize blocks, up to cfg.UploadMaxParallel concurrently.
func (c *Client) UploadAudio(ctx context.Context, path string) (readableURL, blobName string, err error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", "", core.NewJobError(core.KindUploadFatal, "stat audio file", err)
	}

	blobName = "audio/" + uuid.NewString() + filepath.Ext(path)
	if c.log != nil {
		c.log.Info().Str("blob", blobName).Str("size", humanize.Bytes(uint64(info.Size()))).Msg("uploading staged audio")
	}

	policy := buildUploadRetryPolicy()
	_, err = failsafe.Get(func() (struct{}, error) {
		uploadErr := c.putBlob(ctx, path, blobName, info.Size())
		return struct{}{}, uploadErr
	}, policy)
	if err != nil {
		var te *transientUploadErr
		if errors.As(err, &te) {
			return "", "", core.NewJobError(core.KindUploadTransient, "upload failed after retries", err)
		}
		return "", "", core.NewJobError(core.KindUploadFatal, "upload failed", err)
	}

	return c.signReadURL(blobName), blobName, nil
}

func buildUploadRetryPolicy() failsafe.Policy[struct{}] {
	return retrypolicy.Builder[struct{}]().
		HandleIf(func(_ struct{}, err error) bool {
			if err == nil {
				return false
			}
			var te *transientUploadErr
			return errors.As(err, &te)
		}).
		AbortOnErrors(context.Canceled).
		WithMaxAttempts(3).
		ReturnLastFailure().
		WithBackoffFactor(2*time.Second, 8*time.Second, 2.0).
		OnRetry(func(evt failsafe.ExecutionEvent[struct{}]) {
			fmt.Fprintf(os.Stderr, "WARN: blob upload attempt %d failed: %v; retrying...\n", evt.Attempts(), evt.LastError())
		}).
		Build()
}

func (c *Client) putBlob(ctx context.Context, path, blobName string, size int64) error {
	if size > c.cfg.UploadChunkThreshold {
		return c.putBlobChunked(ctx, path, blobName, size)
	}
	return c.putBlobSingle(ctx, path, blobName, size)
}

func (c *Client) putBlobSingle(ctx context.Context, path, blobName string, size int64) error {
	f, err := os.Open(path)
	if err != nil {
		return &transientUploadErr{err}
	}
	defer f.Close()

	reqCtx, cancel := context.WithTimeout(ctx, 10*time.Minute)
	defer cancel()

	url := c.blobURL(blobName)
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPut, url, f)
	if err != nil {
		return err
	}
	req.ContentLength = size
	req.Header.Set("x-ms-blob-type", "BlockBlob")

	return c.doPut(req)
}

// putBlobChunked uploads a large file as a sequence of staged blocks
// (threshold/size from §6), up to UploadMaxParallel concurrently, then
// commits a block list - the object-storage analogue of a multipart
// upload.
func (c *Client) putBlobChunked(ctx context.Context, path, blobName string, size int64) error {
	f, err := os.Open(path)
	if err != nil {
		return &transientUploadErr{err}
	}
	defer f.Close()

	chunkSize := c.cfg.UploadChunkSize
	numChunks := int((size + chunkSize - 1) / chunkSize)

	blockIDs := make([]string, numChunks)
	errs := make([]error, numChunks)

	sem := make(chan struct{}, c.cfg.UploadMaxParallel)
	var wg sync.WaitGroup
	var mu sync.Mutex // guards concurrent reads from f via ReadAt-style offsets

	for i := 0; i < numChunks; i++ {
		i := i
		offset := int64(i) * chunkSize
		length := chunkSize
		if offset+length > size {
			length = size - offset
		}
		blockID := base64.StdEncoding.EncodeToString([]byte(fmt.Sprintf("block-%05d", i)))
		blockIDs[i] = blockID

		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			buf := make([]byte, length)
			mu.Lock()
			_, readErr := f.ReadAt(buf, offset)
			mu.Unlock()
			if readErr != nil && readErr != io.EOF {
				errs[i] = &transientUploadErr{readErr}
				return
			}

			reqCtx, cancel := context.WithTimeout(ctx, 10*time.Minute)
			defer cancel()

			url := c.blobURL(blobName) + "&comp=block&blockid=" + blockID
			req, err := http.NewRequestWithContext(reqCtx, http.MethodPut, url, bytes.NewReader(buf))
			if err != nil {
				errs[i] = err
				return
			}
			req.ContentLength = int64(len(buf))
			errs[i] = c.doPut(req)
		}()
	}
	wg.Wait()

	for _, e := range errs {
		if e != nil {
			return e
		}
	}

	return c.commitBlockList(ctx, blobName, blockIDs)
}

func (c *Client) commitBlockList(ctx context.Context, blobName string, blockIDs []string) error {
	var body bytes.Buffer
	body.WriteString(`<?xml version="1.0" encoding="utf-8"?><BlockList>`)
	for _, id := range blockIDs {
		body.WriteString("<Latest>" + id + "</Latest>")
	}
	body.WriteString(`</BlockList>`)

	reqCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	url := c.blobURL(blobName) + "&comp=blocklist"
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPut, url, bytes.NewReader(body.Bytes()))
	if err != nil {
		return err
	}
	req.ContentLength = int64(body.Len())
	return c.doPut(req)
}

func (c *Client) doPut(req *http.Request) error {
	resp, err := uploadHTTPClient.Do(req)
	if err != nil {
		return &transientUploadErr{err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	httpErr := fmt.Errorf("object storage PUT failed: %d %s", resp.StatusCode, string(bodyBytes))

	// Auth failures and other 4xx (other than request timeout) are fatal;
	// 5xx and the request-timeout code are transient per §7.
	if resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode >= 500 {
		return &transientUploadErr{httpErr}
	}
	return httpErr
}

func (c *Client) blobURL(blobName string) string {
	return c.cfg.StorageAccountURL + "/" + c.cfg.StorageContainer + "/" + blobName + "?" + c.authQuery()
}

// authQuery is a stand-in for the storage account's own upload
// authentication mechanism (account-key header signing in the real
// service); exposed as a query string here so callers can swap in any
// token-issuing backend without touching the upload code paths.
func (c *Client) authQuery() string {
	return "key=" + c.cfg.StorageAccountKey
}

// signReadURL mints a signed, time-bounded read-access URL valid for
// cfg.ReadURLTTL (§4.6, §6): an HMAC-SHA256 over blobName and the expiry,
// keyed by the storage account key - the same shape as the service's own
// SAS tokens, without requiring its SDK.
func (c *Client) signReadURL(blobName string) string {
	expiry := time.Now().Add(c.cfg.ReadURLTTL).Unix()
	mac := hmac.New(sha256.New, []byte(c.cfg.StorageAccountKey))
	mac.Write([]byte(blobName))
	mac.Write([]byte(strconv.FormatInt(expiry, 10)))
	sig := base64.RawURLEncoding.EncodeToString(mac.Sum(nil))

	return c.cfg.StorageAccountURL + "/" + c.cfg.StorageContainer + "/" + blobName +
		"?se=" + strconv.FormatInt(expiry, 10) + "&sp=r&sig=" + sig
}

// DeleteBlob is a best-effort delete: it never raises (§4.6, §8).
func (c *Client) DeleteBlob(ctx context.Context, blobName string) bool {
	reqCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	url := c.blobURL(blobName)
	req, err := http.NewRequestWithContext(reqCtx, http.MethodDelete, url, nil)
	if err != nil {
		return false
	}
	resp, err := uploadHTTPClient.Do(req)
	if err != nil {
		if c.log != nil {
			c.log.Warn().Err(err).Str("blob", blobName).Msg("best-effort blob delete failed")
		}
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}
