package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/jrsteele09/go-flume-client/alerts"
	"github.com/jrsteele09/go-flume-client/cache/sqliterepo"
	"github.com/jrsteele09/go-flume-client/flume"
	"github.com/jrsteele09/go-flume-client/internal/watch"
	"github.com/jrsteele09/go-flume-client/monitor"
	"github.com/jrsteele09/go-flume-client/sink/influx"
	"github.com/jrsteele09/go-flume-client/timestamp"
	"github.com/jrsteele09/go-flume-client/usage"
)

const (
	cacheRetention = 24 * time.Hour
	alertInterval  = 5 * time.Minute
)

type command struct {
	minArgs int
	run     func(ctx context.Context, e *env, args []string) error
}

var commands = map[string]command{
	"devices":       {run: listDevices},
	"device":        {minArgs: 1, run: showDevice},
	"flow":          {minArgs: 1, run: showFlow},
	"alerts":        {run: listAlerts},
	"notifications": {run: listNotifications},
	"locations":     {run: listLocations},
	"rules":         {minArgs: 1, run: listRules},
	"usage":         {minArgs: 1, run: queryUsage},
	"monitor":       {run: runMonitor},
	"watch":         {run: runWatch},
}

func listDevices(ctx context.Context, e *env, _ []string) error {
	ds, err := e.client.GetDevices(ctx, flume.DeviceListOptions{IncludeLocation: true})
	if err != nil {
		return err
	}
	rows := make([][]string, 0, len(ds))
	for _, d := range ds {
		location := "-"
		if d.Location != nil {
			location = d.Location.Name
		}
		rows = append(rows, []string{d.ID, d.Type.String(), location, yesNo(d.Connected), orDash(d.BatteryLevel), formatTime(d.LastSeen)})
	}
	return renderTable(e.out, []string{"ID", "Type", "Location", "Connected", "Battery", "Last seen"}, rows)
}

func showDevice(ctx context.Context, e *env, args []string) error {
	d, err := e.client.GetDevice(ctx, args[0])
	if err != nil {
		return err
	}
	rows := [][]string{
		{"ID", d.ID},
		{"Type", d.Type.String()},
		{"Product", orDash(d.Product)},
		{"Bridge", orDash(d.BridgeID)},
		{"Connected", yesNo(d.Connected)},
		{"Oriented", yesNo(d.Oriented)},
		{"Battery", orDash(d.BatteryLevel)},
		{"Last seen", formatTime(d.LastSeen)},
	}
	if d.Location != nil {
		rows = append(rows,
			[]string{"Location", d.Location.Name},
			[]string{"Time zone", orDash(d.Location.TZ)},
		)
	}
	return renderTable(e.out, []string{"Field", "Value"}, rows)
}

func showFlow(ctx context.Context, e *env, args []string) error {
	rows := make([][]string, 0, len(args))
	for _, id := range args {
		r, err := e.client.GetCurrentFlow(ctx, id)
		if err != nil {
			rows = append(rows, []string{id, "-", "-", err.Error()})
			continue
		}
		rows = append(rows, []string{id, yesNo(r.Active), strconv.FormatFloat(r.GPM, 'f', 2, 64), formatTime(r.Datetime)})
	}
	return renderTable(e.out, []string{"Device", "Active", "GPM", "At"}, rows)
}

func listAlerts(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("alerts", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	device := fs.String("device", "", "only alerts of this device")
	limit := fs.Int("limit", 50, "maximum alerts")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	as, err := e.client.GetUsageAlerts(ctx, flume.AlertListOptions{
		ListOptions: flume.ListOptions{Limit: *limit, SortDirection: "DESC"},
		DeviceID:    *device,
	})
	if err != nil {
		return err
	}
	rows := make([][]string, 0, len(as))
	for _, a := range as {
		rows = append(rows, []string{strconv.FormatInt(a.ID, 10), a.DeviceID, a.EventRuleName, yesNo(a.FlumeLeak), formatTime(a.TriggeredDatetime)})
	}
	return renderTable(e.out, []string{"ID", "Device", "Rule", "Leak", "Triggered"}, rows)
}

func listNotifications(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("notifications", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	unread := fs.Bool("unread", false, "only unread notifications")
	limit := fs.Int("limit", 50, "maximum notifications")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	ns, err := e.client.GetNotifications(ctx, flume.NotificationListOptions{
		ListOptions: flume.ListOptions{Limit: *limit},
		UnreadOnly:  *unread,
	})
	if err != nil {
		return err
	}
	rows := make([][]string, 0, len(ns))
	for _, n := range ns {
		rows = append(rows, []string{formatTime(n.CreatedDatetime), n.DeviceID, n.Title, yesNo(n.Read), yesNo(n.Leak())})
	}
	return renderTable(e.out, []string{"Created", "Device", "Title", "Read", "Leak"}, rows)
}

func listLocations(ctx context.Context, e *env, _ []string) error {
	ls, err := e.client.GetLocations(ctx, flume.ListOptions{})
	if err != nil {
		return err
	}
	rows := make([][]string, 0, len(ls))
	for _, l := range ls {
		rows = append(rows, []string{strconv.FormatInt(l.ID, 10), l.Name, orDash(l.City), orDash(l.TZ), yesNo(l.PrimaryLocation)})
	}
	return renderTable(e.out, []string{"ID", "Name", "City", "Time zone", "Primary"}, rows)
}

func listRules(ctx context.Context, e *env, args []string) error {
	rules, err := e.client.GetAlertRules(ctx, args[0], flume.ListOptions{})
	if err != nil {
		return err
	}
	rows := make([][]string, 0, len(rules))
	for _, r := range rules {
		rows = append(rows, []string{
			string(r.ID), r.Name, yesNo(r.Active),
			strconv.FormatFloat(r.FlowRate, 'f', 2, 64),
			(time.Duration(r.Duration) * time.Second).String(),
		})
	}
	return renderTable(e.out, []string{"ID", "Name", "Active", "Flow rate", "Duration"}, rows)
}

func queryUsage(ctx context.Context, e *env, args []string) error {
	deviceID := args[0]
	fs := flag.NewFlagSet("usage", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	bucket := fs.String("bucket", string(usage.BucketHour), "MIN, HR, DAY, MON or YR")
	since := fs.String("since", time.Now().Add(-24*time.Hour).Format(timestamp.QueryLayout), "start, "+timestamp.QueryLayout)
	until := fs.String("until", "", "end, "+timestamp.QueryLayout)
	op := fs.String("op", string(usage.OperationSum), "SUM, AVG, MIN, MAX or CNT")
	units := fs.String("units", "GALLONS", "result units")
	if err := fs.Parse(args[1:]); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	q := usage.Query{
		RequestID:     "usage",
		Bucket:        usage.Bucket(*bucket),
		SinceDatetime: *since,
		UntilDatetime: *until,
		Operation:     usage.Operation(*op),
		Units:         *units,
	}
	results, err := e.client.QueryWaterUsage(ctx, deviceID, q)
	if err != nil {
		return err
	}
	readings := results[q.RequestID]
	rows := make([][]string, 0, len(readings))
	for _, r := range readings {
		rows = append(rows, []string{formatTime(r.Datetime), strconv.FormatFloat(r.Value, 'f', 2, 64)})
	}
	return renderTable(e.out, []string{"Bucket", *units}, rows)
}

func runMonitor(ctx context.Context, e *env, args []string) error {
	ids, err := deviceIDs(ctx, e, args)
	if err != nil {
		return err
	}

	opts := append(monitor.FromConfig(e.cfg),
		monitor.WithLogger(e.log),
		monitor.WithMeasurement(e.cfg.GetInfluxMeasurement()),
	)

	if dir := e.cfg.GetCacheDir(); dir != "" {
		repo, err := sqliterepo.Open(ctx, dir)
		if err != nil {
			return err
		}
		defer func() { _ = repo.Close() }()
		if n, err := repo.Purge(ctx, time.Now().Add(-cacheRetention)); err != nil {
			e.log.Warn().Err(err).Msg("cache purge failed")
		} else if n > 0 {
			e.log.Info().Int64("removed", n).Msg("purged old cached readings")
		}
		opts = append(opts, monitor.WithCache(repo))
	}

	if e.cfg.InfluxEnabled() {
		w, err := influx.New(e.cfg, influx.WithLogger(e.log))
		if err != nil {
			return err
		}
		defer w.Close()
		if err := w.Ping(ctx); err != nil {
			e.log.Warn().Err(err).Msg("influxdb not reachable, readings will only be cached")
		}
		opts = append(opts, monitor.WithSinks(w))
	} else {
		e.log.Info().Msg("influxdb not configured")
	}

	opts = append(opts,
		monitor.WithObserver(func(r usage.FlowReading) {
			fmt.Fprintf(e.out, "%s  %-22s %6.2f gpm  active=%t\n", r.Datetime.Local().Format("15:04:05"), r.DeviceID, r.GPM, r.Active)
		}),
		monitor.WithAlerts(e.client, alertInterval, ""),
		monitor.WithAlertObserver(func(a alerts.UsageAlert) {
			fmt.Fprintf(e.out, "%s  %-22s ALERT %s leak=%t\n", a.TriggeredDatetime.Local().Format("15:04:05"), a.DeviceID, a.EventRuleName, a.FlumeLeak)
		}),
	)
	return monitor.New(e.client, opts...).Run(ctx, ids...)
}

func runWatch(ctx context.Context, e *env, args []string) error {
	ids, err := deviceIDs(ctx, e, args)
	if err != nil {
		return err
	}
	return watch.Run(watch.Options{
		Context:      ctx,
		Source:       e.client,
		Devices:      ids,
		PollTick:     e.cfg.GetPollInterval(),
		CallsPerHour: e.cfg.GetCallsPerHour(),
	})
}

// deviceIDs returns args, or every sensor on the account when args is empty.
func deviceIDs(ctx context.Context, e *env, args []string) ([]string, error) {
	if len(args) > 0 {
		return args, nil
	}
	ds, err := e.client.GetDevices(ctx, flume.DeviceListOptions{})
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, d := range ds {
		if d.IsSensor() {
			ids = append(ids, d.ID)
		}
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("no sensors on this account")
	}
	sort.Strings(ids)
	return ids, nil
}
