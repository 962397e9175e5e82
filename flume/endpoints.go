package flume

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-flume-client/alerts"
	"github.com/jrsteele09/go-flume-client/devices"
	"github.com/jrsteele09/go-flume-client/internal/errors"
	"github.com/jrsteele09/go-flume-client/usage"
)

// GetDevices lists the devices visible to the account.
func (c *Client) GetDevices(ctx context.Context, opts DeviceListOptions) ([]devices.Device, error) {
	lo := withDefaultSort(opts.ListOptions, "id", "ASC")
	query := url.Values{
		"location":    {strconv.FormatBool(opts.IncludeLocation)},
		"user":        {strconv.FormatBool(opts.IncludeUser)},
		"list_shared": {strconv.FormatBool(opts.ListShared)},
	}
	return list[devices.Device](ctx, c, "/me/devices", query, lo)
}

// GetDevice returns one device together with its location.
func (c *Client) GetDevice(ctx context.Context, deviceID string) (devices.Device, error) {
	if err := requireID("device id", deviceID); err != nil {
		return devices.Device{}, err
	}
	uid, err := c.UserID(ctx)
	if err != nil {
		return devices.Device{}, err
	}
	path := fmt.Sprintf("/users/%d/devices/%s", uid, url.PathEscape(deviceID))
	cl, err := newCall(http.MethodGet, path, url.Values{"location": {"true"}, "user": {"false"}}, nil)
	if err != nil {
		return devices.Device{}, err
	}
	return first[devices.Device](ctx, c, cl)
}

// GetCurrentFlow returns the instantaneous flow of a sensor.
func (c *Client) GetCurrentFlow(ctx context.Context, deviceID string) (usage.FlowReading, error) {
	if err := requireID("device id", deviceID); err != nil {
		return usage.FlowReading{}, err
	}
	path := fmt.Sprintf("/me/devices/%s/query/active", url.PathEscape(deviceID))
	cl, err := newCall(http.MethodGet, path, nil, nil)
	if err != nil {
		return usage.FlowReading{}, err
	}
	reading, err := first[usage.FlowReading](ctx, c, cl)
	if err != nil {
		c.log.Warn().Err(err).Str("device_id", deviceID).Msg("current flow query failed")
		return usage.FlowReading{}, err
	}
	reading.DeviceID = deviceID
	return reading, nil
}

// GetUsageAlerts lists triggered usage alerts, oldest first by default.
func (c *Client) GetUsageAlerts(ctx context.Context, opts AlertListOptions) ([]alerts.UsageAlert, error) {
	uid, err := c.UserID(ctx)
	if err != nil {
		return nil, err
	}
	query := url.Values{}
	if opts.DeviceID != "" {
		query.Set("device_id", opts.DeviceID)
	}
	lo := withDefaultSort(opts.ListOptions, "triggered_datetime", "ASC")
	return list[alerts.UsageAlert](ctx, c, fmt.Sprintf("/users/%d/usage-alerts", uid), query, lo)
}

// GetNotifications lists the account notification feed, newest first by
// default.
func (c *Client) GetNotifications(ctx context.Context, opts NotificationListOptions) ([]alerts.Notification, error) {
	uid, err := c.UserID(ctx)
	if err != nil {
		return nil, err
	}
	query := url.Values{}
	if opts.UnreadOnly {
		query.Set("read", "false")
	}
	lo := withDefaultSort(opts.ListOptions, "created_datetime", "DESC")
	return list[alerts.Notification](ctx, c, fmt.Sprintf("/users/%d/notifications", uid), query, lo)
}

// GetLocations lists the account's locations.
func (c *Client) GetLocations(ctx context.Context, opts ListOptions) ([]devices.Location, error) {
	uid, err := c.UserID(ctx)
	if err != nil {
		return nil, err
	}
	lo := withDefaultSort(opts, "id", "ASC")
	return list[devices.Location](ctx, c, fmt.Sprintf("/users/%d/locations", uid), url.Values{"list_shared": {"false"}}, lo)
}

// GetLocation returns one location.
func (c *Client) GetLocation(ctx context.Context, locationID int64) (devices.Location, error) {
	if locationID <= 0 {
		return devices.Location{}, errors.Wrapf(errors.ErrInvalidArgument, "location id %d", locationID)
	}
	uid, err := c.UserID(ctx)
	if err != nil {
		return devices.Location{}, err
	}
	cl, err := newCall(http.MethodGet, fmt.Sprintf("/users/%d/locations/%d", uid, locationID), nil, nil)
	if err != nil {
		return devices.Location{}, err
	}
	return first[devices.Location](ctx, c, cl)
}

// GetAlertRules lists the usage alert rules configured on a device.
func (c *Client) GetAlertRules(ctx context.Context, deviceID string, opts ListOptions) ([]alerts.Rule, error) {
	if err := requireID("device id", deviceID); err != nil {
		return nil, err
	}
	uid, err := c.UserID(ctx)
	if err != nil {
		return nil, err
	}
	path := fmt.Sprintf("/users/%d/devices/%s/rules/usage-alerts", uid, url.PathEscape(deviceID))
	return list[alerts.Rule](ctx, c, path, nil, withDefaultSort(opts, "id", "ASC"))
}

// GetAlertRule returns one usage alert rule.
func (c *Client) GetAlertRule(ctx context.Context, deviceID, ruleID string) (alerts.Rule, error) {
	if err := requireID("device id", deviceID); err != nil {
		return alerts.Rule{}, err
	}
	if err := requireID("rule id", ruleID); err != nil {
		return alerts.Rule{}, err
	}
	uid, err := c.UserID(ctx)
	if err != nil {
		return alerts.Rule{}, err
	}
	path := fmt.Sprintf("/users/%d/devices/%s/rules/usage-alerts/%s", uid, url.PathEscape(deviceID), url.PathEscape(ruleID))
	cl, err := newCall(http.MethodGet, path, nil, nil)
	if err != nil {
		return alerts.Rule{}, err
	}
	return first[alerts.Rule](ctx, c, cl)
}

// QueryWaterUsage runs historical usage queries against a device. Results are
// keyed by each query's RequestID; a query without one gets a generated id.
func (c *Client) QueryWaterUsage(ctx context.Context, deviceID string, queries ...usage.Query) (map[string][]usage.Reading, error) {
	if err := requireID("device id", deviceID); err != nil {
		return nil, err
	}
	if len(queries) == 0 {
		return nil, errors.Wrapf(errors.ErrInvalidArgument, "no usage queries")
	}
	qs := make([]usage.Query, len(queries))
	for i, q := range queries {
		if q.Bucket == "" || q.SinceDatetime == "" {
			return nil, errors.Wrapf(errors.ErrInvalidArgument, "query %d needs bucket and since_datetime", i)
		}
		if q.RequestID == "" {
			q.RequestID = uuid.NewString()
		}
		qs[i] = q
	}

	uid, err := c.UserID(ctx)
	if err != nil {
		return nil, err
	}
	path := fmt.Sprintf("/users/%d/devices/%s/queries", uid, url.PathEscape(deviceID))
	cl, err := newCall(http.MethodPost, path, nil, map[string]any{"queries": qs})
	if err != nil {
		return nil, err
	}

	env, err := fetch[json.RawMessage](ctx, c, cl)
	if err != nil {
		return nil, err
	}
	out, err := decodeQueryResults(env.Data, qs)
	if err != nil {
		return nil, &APIError{Endpoint: path, StatusCode: http.StatusOK, Message: "malformed usage query result", Err: err}
	}
	return out, nil
}

// decodeQueryResults accepts both result shapes Flume has produced: one object
// keyed by request id per entry, or one bare array per query in query order.
func decodeQueryResults(data []json.RawMessage, queries []usage.Query) (map[string][]usage.Reading, error) {
	out := make(map[string][]usage.Reading, len(queries))
	for i, raw := range data {
		trimmed := strings.TrimSpace(string(raw))
		if strings.HasPrefix(trimmed, "[") {
			if i >= len(queries) {
				return nil, fmt.Errorf("result %d has no matching query", i)
			}
			var readings []usage.Reading
			if err := json.Unmarshal(raw, &readings); err != nil {
				return nil, err
			}
			out[queries[i].RequestID] = readings
			continue
		}
		var keyed map[string][]usage.Reading
		if err := json.Unmarshal(raw, &keyed); err != nil {
			return nil, err
		}
		for id, readings := range keyed {
			out[id] = readings
		}
	}
	return out, nil
}

func withDefaultSort(opts ListOptions, field, direction string) ListOptions {
	if opts.SortField == "" {
		opts.SortField = field
	}
	if opts.SortDirection == "" {
		opts.SortDirection = direction
	}
	opts.SortDirection = strings.ToUpper(opts.SortDirection)
	return opts
}

func requireID(name, id string) error {
	if strings.TrimSpace(id) == "" {
		return errors.Wrapf(errors.ErrInvalidArgument, "%s is required", name)
	}
	return nil
}
