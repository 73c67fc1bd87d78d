/*
Copyright (C) 2026 RBC Television

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/rbctelevision/rbcradio/internal/azuracast"
	"github.com/rbctelevision/rbcradio/internal/schedule"
	"github.com/rbctelevision/rbcradio/internal/telemetry"
)

var (
	scheduleDay string
	scheduleTZ  string
	scheduleICS bool
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Print the programming schedule for one day",
	Long: `Fetch the station schedule from AzuraCast and print one day of the
day-tab window, today by default.

Examples:
  # Today in the configured timezone
  rbcradio schedule

  # A specific day in another zone
  rbcradio schedule --day 2025-01-02 --tz America/New_York

  # The whole feed as iCalendar
  rbcradio schedule --ics > rbc.ics
`,
	RunE: runSchedule,
}

func init() {
	scheduleCmd.Flags().StringVar(&scheduleDay, "day", "", "Day key (YYYY-MM-DD) inside the window; defaults to today")
	scheduleCmd.Flags().StringVar(&scheduleTZ, "tz", "", "IANA timezone; defaults to RBC_SCHEDULE_TIMEZONE")
	scheduleCmd.Flags().BoolVar(&scheduleICS, "ics", false, "Print the schedule as an iCalendar feed")
	rootCmd.AddCommand(scheduleCmd)
}

func runSchedule(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	if scheduleTZ != "" {
		if loc, err = time.LoadLocation(scheduleTZ); err != nil {
			return fmt.Errorf("invalid timezone %q: %w", scheduleTZ, err)
		}
	}

	client, err := azuracast.NewClient(cfg.AzuraBaseURL, cfg.StationShortcode, cfg.AzuraAPIKey, telemetry.HTTPClient(15*time.Second))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	items, err := client.Schedule(ctx)
	if err != nil {
		return fmt.Errorf("fetch schedule: %w", err)
	}
	entries := azuracast.Entries(items)
	now := time.Now()

	if scheduleICS {
		_, err := os.Stdout.Write(schedule.ICal("RBC Radio", "rbctelevision.org", entries, now))
		return err
	}

	sel := schedule.NewSelector(schedule.Window(now, loc, cfg.ScheduleWindowDays), schedule.Group(entries, loc), loc)
	if scheduleDay != "" {
		if err := sel.Select(scheduleDay); err != nil {
			return err
		}
	}
	return printDayView(os.Stdout, sel.View())
}

func printDayView(w io.Writer, view schedule.DayView) error {
	fmt.Fprintln(w, view.Heading)
	if view.Empty {
		fmt.Fprintln(w, view.Message)
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, e := range view.Entries {
		marker := ""
		if e.OnAir {
			marker = "ON AIR"
		}
		fmt.Fprintf(tw, "%s - %s\t%s\t%s\n", e.StartLabel, e.EndLabel, e.Name, marker)
	}
	return tw.Flush()
}
