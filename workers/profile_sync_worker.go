package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"engagement-service/models"
	"engagement-service/utils"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// profileChange matches the JSON the profile service returns for one changed
// identity. Kind distinguishes end users from coaches/creators.
type profileChange struct {
	ExternalID  string    `json:"external_id"`
	Kind        string    `json:"kind"` // "user" or "creator"
	DisplayName string    `json:"display_name"`
	Handle      string    `json:"handle,omitempty"`
	AvatarURL   *string   `json:"avatar_url,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type profileChangesResponse struct {
	Profiles []profileChange `json:"profiles"`
}

// ProfileSyncWorker mirrors display names, avatars, and creator handles from
// the profile service into local mirror tables so leaderboard reads never
// need a network call. It is the only writer of the mirror tables.
type ProfileSyncWorker struct {
	db           *gorm.DB
	interval     time.Duration
	baseURL      string
	endpointPath string
	serviceToken string
	httpClient   *http.Client
}

func NewProfileSyncWorker(db *gorm.DB, baseURL, endpointPath, serviceToken string) *ProfileSyncWorker {
	return &ProfileSyncWorker{
		db:           db,
		interval:     1 * time.Minute,
		baseURL:      baseURL,
		endpointPath: endpointPath,
		serviceToken: serviceToken,
		httpClient:   utils.HTTPClient,
	}
}

func (w *ProfileSyncWorker) Start(ctx context.Context) {
	utils.Sugar.Infow("starting profile sync worker", "base_url", w.baseURL)
	go w.run(ctx)
}

func (w *ProfileSyncWorker) run(ctx context.Context) {
	// Initial sync backfills from the beginning of time.
	if err := w.syncBatch(ctx, time.Time{}); err != nil {
		utils.Sugar.Warnw("initial profile sync failed", "err", err)
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := w.syncBatch(ctx, w.lastSyncTime()); err != nil {
				utils.Sugar.Warnw("profile sync batch failed", "err", err)
			}
		case <-ctx.Done():
			utils.Sugar.Infow("profile sync worker stopped")
			return
		}
	}
}

// lastSyncTime finds the most recent sync cursor across both mirror tables.
func (w *ProfileSyncWorker) lastSyncTime() time.Time {
	var userTime, creatorTime time.Time
	_ = w.db.Model(&models.UserMirror{}).Select("COALESCE(MAX(synced_at), '1970-01-01')").Scan(&userTime).Error
	_ = w.db.Model(&models.CreatorMirror{}).Select("COALESCE(MAX(synced_at), '1970-01-01')").Scan(&creatorTime).Error
	if creatorTime.After(userTime) {
		return creatorTime
	}
	if userTime.IsZero() {
		return time.Unix(0, 0)
	}
	return userTime
}

// syncBatch fetches profile changes since the cursor and upserts mirrors.
func (w *ProfileSyncWorker) syncBatch(ctx context.Context, since time.Time) error {
	base, err := url.Parse(w.baseURL)
	if err != nil {
		return fmt.Errorf("invalid profile service URL %q: %w", w.baseURL, err)
	}
	endpoint := base.JoinPath(w.endpointPath)
	q := endpoint.Query()
	q.Set("since", since.UTC().Format(time.RFC3339))
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+w.serviceToken)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("profile service request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("profile service returned %d: %s", resp.StatusCode, body)
	}

	var changes profileChangesResponse
	if err := json.NewDecoder(resp.Body).Decode(&changes); err != nil {
		return fmt.Errorf("decode profile changes: %w", err)
	}
	if len(changes.Profiles) == 0 {
		return nil
	}

	now := time.Now().UTC()
	for _, p := range changes.Profiles {
		if p.ExternalID == "" {
			continue
		}
		if err := w.upsert(p, now); err != nil {
			utils.Sugar.Warnw("profile mirror upsert failed", "external_id", p.ExternalID, "err", err)
		}
	}
	utils.Sugar.Infow("profile sync batch applied", "count", len(changes.Profiles))
	return nil
}

func (w *ProfileSyncWorker) upsert(p profileChange, now time.Time) error {
	if p.Kind == "creator" {
		handle := p.Handle
		if handle == "" {
			handle = p.DisplayName
		}
		mirror := models.CreatorMirror{
			ID:                uuid.NewString(),
			ExternalCreatorID: p.ExternalID,
			DisplayName:       p.DisplayName,
			Handle:            p.Handle,
			Slug:              slug.Make(handle),
			AvatarURL:         p.AvatarURL,
			SyncedAt:          now,
		}
		return w.db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "external_creator_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"display_name", "handle", "slug", "avatar_url", "synced_at", "updated_at"}),
		}).Create(&mirror).Error
	}

	mirror := models.UserMirror{
		ID:             uuid.NewString(),
		ExternalUserID: p.ExternalID,
		DisplayName:    p.DisplayName,
		AvatarURL:      p.AvatarURL,
		SyncedAt:       now,
	}
	return w.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "external_user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"display_name", "avatar_url", "synced_at", "updated_at"}),
	}).Create(&mirror).Error
}
