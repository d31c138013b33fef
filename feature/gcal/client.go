package gcal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"

	"calbridge/core/event"
	"calbridge/feature/sync"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// markerKey is the private extended property that tags every event we
// push with its source identity. It is both the fallback search key
// and the filter PurgeSynced uses to avoid touching foreign events.
const markerKey = "originalUID"

// Client talks to the Google Calendar API for one configured calendar.
type Client struct {
	svc *calendar.Service
	cfg Config
	log *zap.Logger
}

// CalendarInfo is one entry of the account's calendar list.
type CalendarInfo struct {
	ID      string `json:"id"`
	Summary string `json:"summary"`
	Primary bool   `json:"primary,omitempty"`
}

// NewClient authenticates from the configured credentials and token
// files. Missing or unreadable credentials surface as an AuthError.
func NewClient(ctx context.Context, cfg Config, log *zap.Logger) (*Client, error) {
	b, err := os.ReadFile(cfg.CredentialsFile)
	if err != nil {
		return nil, &sync.AuthError{Err: fmt.Errorf("read credentials %s: %w", cfg.CredentialsFile, err)}
	}

	oauthCfg, err := google.ConfigFromJSON(b, calendar.CalendarScope)
	if err != nil {
		return nil, &sync.AuthError{Err: fmt.Errorf("parse credentials: %w", err)}
	}

	token, err := tokenFromFile(cfg.TokenFile)
	if err != nil {
		return nil, &sync.AuthError{Err: fmt.Errorf("load token %s (run the auth flow first): %w", cfg.TokenFile, err)}
	}

	svc, err := calendar.NewService(ctx, option.WithHTTPClient(oauthCfg.Client(ctx, token)))
	if err != nil {
		return nil, &sync.AuthError{Err: fmt.Errorf("create calendar service: %w", err)}
	}

	return &Client{svc: svc, cfg: cfg, log: log}, nil
}

func tokenFromFile(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	err = json.NewDecoder(f).Decode(tok)
	return tok, err
}

// CalendarID returns the configured target calendar.
func (c *Client) CalendarID() string { return c.cfg.CalendarID }

// Create pushes a new event and returns its remote id.
func (c *Client) Create(ctx context.Context, rec event.Record) (string, error) {
	ev := c.toGoogleEvent(rec)
	created, err := c.svc.Events.Insert(c.cfg.CalendarID, ev).Context(ctx).Do()
	if err != nil {
		return "", c.wrapErr(err)
	}
	c.log.Info("Created remote event",
		zap.String("unique_uid", rec.UniqueID()),
		zap.String("remote_event_id", created.Id))
	return created.Id, nil
}

// Update replaces the remote event's content.
func (c *Client) Update(ctx context.Context, remoteEventID string, rec event.Record) error {
	ev := c.toGoogleEvent(rec)
	if _, err := c.svc.Events.Update(c.cfg.CalendarID, remoteEventID, ev).Context(ctx).Do(); err != nil {
		return c.wrapErr(err)
	}
	c.log.Info("Updated remote event",
		zap.String("unique_uid", rec.UniqueID()),
		zap.String("remote_event_id", remoteEventID))
	return nil
}

// Delete removes the remote event. An already-missing event is treated
// as success.
func (c *Client) Delete(ctx context.Context, remoteEventID string) error {
	err := c.svc.Events.Delete(c.cfg.CalendarID, remoteEventID).Context(ctx).Do()
	if err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && gerr.Code == http.StatusNotFound {
			c.log.Warn("Remote event already gone", zap.String("remote_event_id", remoteEventID))
			return nil
		}
		return c.wrapErr(err)
	}
	c.log.Info("Deleted remote event", zap.String("remote_event_id", remoteEventID))
	return nil
}

// FindByOriginalUID searches the calendar for an event carrying the
// given identity marker. Returns "" when none exists.
func (c *Client) FindByOriginalUID(ctx context.Context, uniqueUID string) (string, error) {
	res, err := c.svc.Events.List(c.cfg.CalendarID).
		PrivateExtendedProperty(markerKey + "=" + uniqueUID).
		MaxResults(10).
		Context(ctx).
		Do()
	if err != nil {
		return "", c.wrapErr(err)
	}
	if len(res.Items) == 0 {
		return "", nil
	}
	if len(res.Items) > 1 {
		c.log.Warn("Multiple remote events share one identity, using the first",
			zap.String("unique_uid", uniqueUID),
			zap.Int("count", len(res.Items)))
	}
	return res.Items[0].Id, nil
}

// ListCalendars returns the calendars visible to the authenticated
// account.
func (c *Client) ListCalendars(ctx context.Context) ([]CalendarInfo, error) {
	res, err := c.svc.CalendarList.List().Context(ctx).Do()
	if err != nil {
		return nil, c.wrapErr(err)
	}

	out := make([]CalendarInfo, 0, len(res.Items))
	for _, item := range res.Items {
		out = append(out, CalendarInfo{
			ID:      item.Id,
			Summary: item.Summary,
			Primary: item.Primary,
		})
	}
	return out, nil
}

// PurgeSynced deletes every remote event carrying the sync marker and
// returns how many were removed. Events the tool never pushed are left
// alone.
func (c *Client) PurgeSynced(ctx context.Context) (int, error) {
	deleted := 0
	pageToken := ""

	for {
		call := c.svc.Events.List(c.cfg.CalendarID).
			MaxResults(250).
			ShowDeleted(false).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		res, err := call.Do()
		if err != nil {
			return deleted, c.wrapErr(err)
		}

		for _, item := range res.Items {
			if item.ExtendedProperties == nil || item.ExtendedProperties.Private == nil {
				continue
			}
			if _, ok := item.ExtendedProperties.Private[markerKey]; !ok {
				continue
			}
			if err := c.Delete(ctx, item.Id); err != nil {
				c.log.Warn("Purge could not delete event",
					zap.String("remote_event_id", item.Id),
					zap.Error(err))
				continue
			}
			deleted++
		}

		pageToken = res.NextPageToken
		if pageToken == "" {
			break
		}
	}

	c.log.Info("Purged synced events", zap.Int("deleted", deleted))
	return deleted, nil
}

// wrapErr maps API failures onto the engine's error taxonomy.
func (c *Client) wrapErr(err error) error {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return err
	}
	if gerr.Code == http.StatusUnauthorized || gerr.Code == http.StatusForbidden {
		return &sync.AuthError{Err: err}
	}
	return &sync.RemoteError{Code: gerr.Code, Message: gerr.Message}
}
