package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/codeGROOVE-dev/ditti/pkg/portal"
	"github.com/fatih/color"
)

var tableActions = []portal.Action{portal.ActionCreate, portal.ActionEdit, portal.ActionArchive}

func runList(ctx context.Context, client *portal.Client, loc *time.Location, table string) error {
	switch table {
	case "accounts":
		view, err := portal.LoadList(ctx, client.Accounts(), tableActions...)
		if err != nil {
			return err
		}
		return printTable("Accounts", view.Grants, []string{"ID", "NAME", "EMAIL", "CREATED", "LAST LOGIN"}, view.Items,
			func(a portal.Account) []string {
				return []string{fmt.Sprint(a.ID), a.FullName(), a.Email, formatTime(a.CreatedOn, loc), formatTime(a.LastLogin, loc)}
			})
	case "roles":
		view, err := portal.LoadList(ctx, client.Roles(), tableActions...)
		if err != nil {
			return err
		}
		return printTable("Roles", view.Grants, []string{"ID", "NAME", "PERMISSIONS"}, view.Items,
			func(r portal.Role) []string {
				return []string{fmt.Sprint(r.ID), r.Name, formatPermissions(r.Permissions)}
			})
	case "access-groups":
		view, err := portal.LoadList(ctx, client.AccessGroups(), tableActions...)
		if err != nil {
			return err
		}
		return printTable("Access Groups", view.Grants, []string{"ID", "NAME", "APP", "PERMISSIONS"}, view.Items,
			func(g portal.AccessGroup) []string {
				return []string{fmt.Sprint(g.ID), g.Name, g.App.Name, formatPermissions(g.Permissions)}
			})
	case "studies":
		view, err := portal.LoadList(ctx, client.Studies(), tableActions...)
		if err != nil {
			return err
		}
		return printTable("Studies", view.Grants, []string{"ID", "ACRONYM", "NAME", "DITTI ID", "EMAIL", "QI"}, view.Items,
			func(s portal.Study) []string {
				return []string{fmt.Sprint(s.ID), s.Acronym, s.Name, s.DittiID, s.Email, fmt.Sprint(s.IsQI)}
			})
	case "about-sleep-templates":
		view, err := portal.LoadList(ctx, client.AboutSleepTemplates(), tableActions...)
		if err != nil {
			return err
		}
		return printTable("About Sleep Templates", view.Grants, []string{"ID", "NAME"}, view.Items,
			func(t portal.AboutSleepTemplate) []string {
				return []string{fmt.Sprint(t.ID), t.Name}
			})
	case "tasks":
		tasks, err := client.Tasks(ctx)
		if err != nil {
			return err
		}
		return printTable("Data Processing Tasks", nil, []string{"ID", "STATUS", "CREATED", "COMPLETED", "BILLED"}, tasks,
			func(t portal.DataProcessingTask) []string {
				return []string{fmt.Sprint(t.ID), t.Status, formatTime(t.CreatedOn, loc), formatTime(t.CompletedOn, loc),
					(time.Duration(t.BilledMs) * time.Millisecond).String()}
			})
	case "participants":
		scope := portal.Scope{App: portal.AppTaps, Resource: "Participants", StudyID: *studyID}
		grants, err := client.Capabilities(ctx, scope, portal.ActionCreate, portal.ActionEdit)
		if err != nil {
			return err
		}
		users, err := client.Participants(ctx, *studyID)
		if err != nil {
			return err
		}
		now := time.Now()
		return printTable("Participants", grants, []string{"DITTI ID", "EXPIRES", "TEAM EMAIL", "TAPPING"}, users,
			func(p portal.Participant) []string {
				expires := formatTime(p.ExpTime, loc)
				if p.Expired(now) {
					expires = color.RedString(expires)
				}
				return []string{p.DittiID, expires, p.TeamEmail, fmt.Sprint(p.TapPermission)}
			})
	default:
		return fmt.Errorf("unknown table %q", table)
	}
}

func printTable[T any](title string, grants portal.Grants, header []string, items []T, row func(T) []string) error {
	fmt.Printf("\n📋 %s (%d)\n", title, len(items))
	fmt.Println(strings.Repeat("─", 50))
	if grants != nil {
		var allowed []string
		for _, a := range tableActions {
			if grants.Can(a) {
				allowed = append(allowed, string(a))
			}
		}
		if len(allowed) == 0 {
			allowed = []string{"view only"}
		}
		fmt.Printf("   You can: %s\n\n", strings.Join(allowed, ", "))
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	for _, item := range items {
		fmt.Fprintln(tw, strings.Join(row(item), "\t"))
	}
	return tw.Flush()
}

func formatTime(t portal.Timestamp, loc *time.Location) string {
	if t.IsZero() {
		return "-"
	}
	return t.In(loc).Format("2006-01-02 15:04")
}

func formatPermissions(perms []portal.Permission) string {
	parts := make([]string, 0, len(perms))
	for _, p := range perms {
		parts = append(parts, string(p.Action)+" "+p.Resource)
	}
	return strings.Join(parts, ", ")
}
