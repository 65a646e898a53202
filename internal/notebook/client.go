// Package notebook is the REST client for the external document store that
// owns the notes. All writes go through here; each mutation also leaves a
// SNAPSHOT record so revision history stays reconstructable.
package notebook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/blacktokki/notesearcher/internal/apperr"
)

// FetchPageSize is the fixed page size of content listings. A page shorter
// than this is the last one.
const FetchPageSize = 256

// Content is the document store's wire representation. NOTE rows carry the
// live body; SNAPSHOT rows carry a full-content checkpoint; DELTA rows carry
// an encoded diff against a declared snapshot.
type Content struct {
	ID          int64                  `json:"id,omitempty"`
	Title       string                 `json:"title"`
	Description string                 `json:"description"`
	Type        string                 `json:"type"`
	ParentID    int64                  `json:"parentId"`
	UserID      int64                  `json:"userId"`
	Order       int                    `json:"order"`
	Input       string                 `json:"input,omitempty"`
	Updated     string                 `json:"updated,omitempty"`
	SnapshotID  int64                  `json:"snapshotId,omitempty"`
	Diff        string                 `json:"diff,omitempty"`
	Option      map[string]interface{} `json:"option,omitempty"`
}

type Client struct {
	baseURL string
	auth    string
	client  *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// WithAuthorization returns a copy of the client that forwards the given
// Authorization header on every request. The store enforces ownership; this
// service never widens it.
func (c *Client) WithAuthorization(header string) *Client {
	clone := *c
	clone.auth = header
	return &clone
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reader *bytes.Buffer
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewBuffer(jsonBody)
	} else {
		reader = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.auth != "" {
		req.Header.Set("Authorization", c.auth)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return apperr.Transient("notebook "+method+" "+path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apperr.Transient("notebook "+method+" "+path,
			fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return err
		}
	}
	return nil
}

// FetchContents lists contents of the given kinds, newest id first, one page
// of 256 at a time. parentID narrows the listing to one note's children
// (its snapshots and deltas).
func (c *Client) FetchContents(ctx context.Context, types []string, withHidden bool, parentID *int64, page int) ([]Content, error) {
	params := url.Values{}
	params.Set("sort", "id,DESC")
	params.Set("types", strings.Join(types, ","))
	params.Set("size", strconv.Itoa(FetchPageSize))
	params.Set("page", strconv.Itoa(page))
	params.Set("withHidden", strconv.FormatBool(withHidden))
	if parentID != nil {
		params.Set("parentId", strconv.FormatInt(*parentID, 10))
	}

	var result struct {
		Value []Content `json:"value"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/content?"+params.Encode(), nil, &result); err != nil {
		return nil, err
	}
	return result.Value, nil
}

// GetNoteByTitle returns the note with the exact title, or nil when absent.
func (c *Client) GetNoteByTitle(ctx context.Context, title string) (*Content, error) {
	notes, err := c.FetchContents(ctx, []string{"NOTE"}, true, nil, 0)
	if err != nil {
		return nil, err
	}
	for i := range notes {
		if notes[i].Title == title {
			return &notes[i], nil
		}
	}
	return nil, nil
}

// CreateNote creates a new note and snapshots its initial state.
func (c *Client) CreateNote(ctx context.Context, title, contentHTML string) (int64, error) {
	payload := Content{
		Title:       title,
		Description: contentHTML,
		Type:        "NOTE",
		Input:       title,
		Option:      map[string]interface{}{},
	}

	var result struct {
		ID int64 `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/content", payload, &result); err != nil {
		return 0, err
	}

	if err := c.createSnapshot(ctx, result.ID, payload); err != nil {
		return result.ID, err
	}
	return result.ID, nil
}

// UpdateNoteContent overwrites a note's body and snapshots the new state.
func (c *Client) UpdateNoteContent(ctx context.Context, current Content, newHTML string) error {
	updated := current
	updated.Description = newHTML
	updated.Type = "NOTE"

	if err := c.patch(ctx, current.ID, updated); err != nil {
		return err
	}
	return c.createSnapshot(ctx, current.ID, updated)
}

// RenameNote changes a note's title (its path) and snapshots the new state.
func (c *Client) RenameNote(ctx context.Context, current Content, newTitle string) error {
	updated := current
	updated.Title = newTitle
	updated.Type = "NOTE"

	if err := c.patch(ctx, current.ID, updated); err != nil {
		return err
	}
	return c.createSnapshot(ctx, current.ID, updated)
}

func (c *Client) patch(ctx context.Context, id int64, updated Content) error {
	payload := map[string]interface{}{
		"ids":     []int64{id},
		"updated": updated,
	}
	return c.do(ctx, http.MethodPatch, "/api/v1/content", payload, nil)
}

// createSnapshot stores the post-mutation state as a SNAPSHOT child of the
// note, mirroring the notebook frontend's save behavior.
func (c *Client) createSnapshot(ctx context.Context, parentID int64, data Content) error {
	snapshot := data
	snapshot.ID = 0
	snapshot.Type = "SNAPSHOT"
	snapshot.ParentID = parentID
	return c.do(ctx, http.MethodPost, "/api/v1/content", snapshot, nil)
}
