package editor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rpggio/gridlayout/internal/domain/activity"
	"github.com/rpggio/gridlayout/internal/domain/collab"
	"github.com/rpggio/gridlayout/internal/domain/permission"
	"github.com/rpggio/gridlayout/internal/domain/region"
)

// ExportFormatVersion is the document version written by Export.
const ExportFormatVersion = "1.0"

// Document is the exchanged region-set format.
type Document struct {
	LayoutID   string          `json:"layoutId"`
	Regions    []region.Region `json:"regions"`
	Version    string          `json:"version"`
	ExportedAt time.Time       `json:"exportedAt"`
	Metadata   Metadata        `json:"metadata"`
}

// Metadata summarizes an exported region set.
type Metadata struct {
	RegionCount int      `json:"regionCount"`
	RegionTypes []string `json:"regionTypes"`
}

// Dropped is an import entry that was skipped.
type Dropped struct {
	Index  int    `json:"index"`
	ID     string `json:"id,omitempty"`
	Reason string `json:"reason"`
}

// ImportResult lists what an import kept and what it skipped.
type ImportResult struct {
	Accepted []region.Region `json:"accepted"`
	Dropped  []Dropped       `json:"dropped,omitempty"`
}

// NewDocument builds an export document for regions.
func NewDocument(layoutID string, regions []region.Region, at time.Time) Document {
	seen := make(map[string]bool)
	types := []string{}
	for _, r := range regions {
		if !seen[string(r.Type)] {
			seen[string(r.Type)] = true
			types = append(types, string(r.Type))
		}
	}
	sort.Strings(types)
	if regions == nil {
		regions = []region.Region{}
	}
	return Document{
		LayoutID:   layoutID,
		Regions:    regions,
		Version:    ExportFormatVersion,
		ExportedAt: at.UTC(),
		Metadata:   Metadata{RegionCount: len(regions), RegionTypes: types},
	}
}

// Export serializes the live regions the principal can read.
func (c *Controller) Export(ctx context.Context, sess *Session) (Document, error) {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.closed {
		return Document{}, ErrSessionClosed
	}

	var visible []region.Region
	for _, r := range sess.store.All() {
		if c.perms != nil {
			owner := r.UserID
			if owner == "" {
				owner = sess.OwnerID
			}
			ok, err := c.perms.Check(ctx, permission.Resource{ID: r.ID, TenantID: sess.TenantID, OwnerID: owner}, sess.Principal, permission.KindRead)
			if err != nil {
				return Document{}, err
			}
			if !ok {
				continue
			}
		}
		visible = append(visible, r)
	}
	return NewDocument(sess.LayoutID, visible, time.Now()), nil
}

// Import replaces the session's regions with those in payload. Entries that
// are malformed, fail grid validation, collide with an earlier entry or
// repeat an ID are dropped; the rest are kept. Only an unreadable payload
// or one where every entry was dropped fails as a whole.
func (c *Controller) Import(ctx context.Context, sess *Session, payload []byte) (*ImportResult, error) {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.closed {
		return nil, ErrSessionClosed
	}
	if err := c.requireLayout(ctx, sess, permission.KindEdit); err != nil {
		return nil, err
	}

	var doc struct {
		Regions *[]json.RawMessage `json:"regions"`
	}
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, &ImportError{Reason: "payload is not valid JSON", Cause: err}
	}
	if doc.Regions == nil {
		return nil, &ImportError{Reason: "payload has no regions array"}
	}

	result := &ImportResult{Accepted: []region.Region{}}
	for i, raw := range *doc.Regions {
		r, err := decodeImported(raw)
		if err != nil {
			result.Dropped = append(result.Dropped, Dropped{Index: i, ID: r.ID, Reason: err.Error()})
			continue
		}
		r.TenantID = sess.TenantID
		if r.UserID == "" {
			r.UserID = sess.Principal.UserID
		}
		if reason := admit(r, result.Accepted); reason != "" {
			result.Dropped = append(result.Dropped, Dropped{Index: i, ID: r.ID, Reason: reason})
			continue
		}
		result.Accepted = append(result.Accepted, r)
	}
	for _, d := range result.Dropped {
		c.logger.Warn("import entry dropped", "layout_id", sess.LayoutID, "index", d.Index, "region_id", d.ID, "reason", d.Reason)
	}
	if len(result.Accepted) == 0 && len(result.Dropped) > 0 {
		return nil, &ImportError{Reason: fmt.Sprintf("all %d regions were invalid", len(result.Dropped))}
	}

	before := sess.store.All()
	ids := make([]string, 0, len(before)+len(result.Accepted))
	for _, r := range before {
		ids = append(ids, r.ID)
	}
	for _, r := range result.Accepted {
		ids = append(ids, r.ID)
	}

	err := c.commit(ctx, sess, ids, func() ([]collab.Change, error) {
		prev := sess.store.All()
		if err := sess.store.Restore(result.Accepted); err != nil {
			return nil, err
		}
		return diff(prev, sess.store.All()), nil
	})
	if err != nil {
		return nil, err
	}

	c.logActivity(ctx, sess, activity.TypeLayoutImported, nil,
		fmt.Sprintf("imported %d regions, dropped %d", len(result.Accepted), len(result.Dropped)))
	return result, nil
}

var errMissingField = errors.New("missing required field")

// decodeImported checks the required fields by hand before decoding, so a
// wrong-typed coordinate is reported rather than zeroed.
func decodeImported(raw json.RawMessage) (region.Region, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return region.Region{}, errors.New("entry is not an object")
	}

	var r region.Region
	if err := json.Unmarshal(fields["id"], &r.ID); err != nil || strings.TrimSpace(r.ID) == "" {
		return region.Region{}, fmt.Errorf("%w: id", errMissingField)
	}
	var rawType string
	if err := json.Unmarshal(fields["region_type"], &rawType); err != nil || rawType == "" {
		return r, fmt.Errorf("%w: region_type", errMissingField)
	}
	if !isInteger(fields["grid_row"]) {
		return r, fmt.Errorf("%w: numeric grid_row", errMissingField)
	}
	if !isInteger(fields["grid_col"]) {
		return r, fmt.Errorf("%w: numeric grid_col", errMissingField)
	}

	id := r.ID
	if err := json.Unmarshal(raw, &r); err != nil {
		return region.Region{ID: id}, fmt.Errorf("malformed entry: %v", err)
	}
	if _, err := region.ParseType(rawType); err != nil {
		return r, err
	}

	if r.RowSpan < 1 {
		r.RowSpan = 1
	}
	if r.ColSpan < 1 {
		r.ColSpan = 1
	}
	if r.MinWidth == 0 {
		r.MinWidth = region.MinPixels
	}
	if r.MinHeight == 0 {
		r.MinHeight = region.MinPixels
	}
	r.DeletedAt = nil
	return r, nil
}

func isInteger(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] == '"' {
		return false
	}
	var n int
	return json.Unmarshal(raw, &n) == nil
}

// admit returns why r cannot join accepted, or "" when it can.
func admit(r region.Region, accepted []region.Region) string {
	if err := region.Validate(r); err != nil {
		return err.Error()
	}
	for _, other := range accepted {
		if other.ID == r.ID {
			return region.ErrDuplicateRegion.Error()
		}
	}
	if other := region.FindOverlap(r, accepted); other != nil {
		return (&region.OverlapError{RegionID: r.ID, OtherID: other.ID}).Error()
	}
	return ""
}

// sanitize splits stored regions into a loadable set and the rest.
// Soft-deleted regions are kept as-is.
func sanitize(regions []region.Region) ([]region.Region, []Dropped) {
	var (
		accepted []region.Region
		live     []region.Region
		dropped  []Dropped
		seen     = make(map[string]bool)
	)
	for i, r := range regions {
		if seen[r.ID] {
			dropped = append(dropped, Dropped{Index: i, ID: r.ID, Reason: region.ErrDuplicateRegion.Error()})
			continue
		}
		if r.Deleted() {
			seen[r.ID] = true
			accepted = append(accepted, r)
			continue
		}
		if reason := admit(r, live); reason != "" {
			dropped = append(dropped, Dropped{Index: i, ID: r.ID, Reason: reason})
			continue
		}
		seen[r.ID] = true
		live = append(live, r)
		accepted = append(accepted, r)
	}
	return accepted, dropped
}
