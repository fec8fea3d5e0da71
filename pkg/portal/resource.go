package portal

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// Resource is one admin entity table. The portal exposes every table with
// the same list/create/edit/archive shape.
type Resource[T any] struct {
	client *Client
	// Path is the entity segment under /admin, e.g. "account".
	Path string
	// Name is the resource name used for permission checks, e.g. "Accounts".
	Name string
	App  App
}

func newResource[T any](c *Client, path, name string) Resource[T] {
	return Resource[T]{client: c, Path: path, Name: name, App: c.app}
}

// Accounts returns the account table.
func (c *Client) Accounts() Resource[Account] {
	return newResource[Account](c, "account", "Accounts")
}

// Roles returns the role table.
func (c *Client) Roles() Resource[Role] {
	return newResource[Role](c, "role", "Roles")
}

// AccessGroups returns the access group table.
func (c *Client) AccessGroups() Resource[AccessGroup] {
	return newResource[AccessGroup](c, "access-group", "Access Groups")
}

// Studies returns the study table.
func (c *Client) Studies() Resource[Study] {
	return newResource[Study](c, "study", "Studies")
}

// AboutSleepTemplates returns the about-sleep template table.
func (c *Client) AboutSleepTemplates() Resource[AboutSleepTemplate] {
	return newResource[AboutSleepTemplate](c, "about-sleep-template", "About Sleep Templates")
}

// Scope returns the permission scope of the table.
func (r Resource[T]) Scope() Scope {
	return Scope{App: r.App, Resource: r.Name}
}

// MutationResult is the portal's reply to a create, edit or archive.
type MutationResult struct {
	Msg string `json:"msg"`
}

// List fetches every non-archived row.
func (r Resource[T]) List(ctx context.Context) ([]T, error) {
	var items []T
	q := url.Values{"app": {r.App.String()}}
	if err := r.client.get(ctx, "/admin/"+r.Path, q, &items); err != nil {
		return nil, fmt.Errorf("listing %s: %w", r.Path, err)
	}
	return items, nil
}

// Get returns the row with the given id.
func (r Resource[T]) Get(ctx context.Context, id int) (T, error) {
	var items []T
	var zero T
	q := url.Values{"app": {r.App.String()}, "id": {fmt.Sprint(id)}}
	if err := r.client.get(ctx, "/admin/"+r.Path, q, &items); err != nil {
		return zero, fmt.Errorf("getting %s %d: %w", r.Path, id, err)
	}
	if len(items) == 0 {
		return zero, &APIError{Status: http.StatusNotFound, Message: fmt.Sprintf("%s %d not found", r.Name, id)}
	}
	return items[0], nil
}

// Create adds a row.
func (r Resource[T]) Create(ctx context.Context, item T) (MutationResult, error) {
	body := map[string]any{"app": int(r.App), "create": item}
	var res MutationResult
	if err := r.client.post(ctx, "/admin/"+r.Path+"/create", body, &res); err != nil {
		return res, fmt.Errorf("creating %s: %w", r.Path, err)
	}
	return res, nil
}

// Edit updates row id with the given fields.
func (r Resource[T]) Edit(ctx context.Context, id int, item T) (MutationResult, error) {
	body := map[string]any{"app": int(r.App), "id": id, "edit": item}
	var res MutationResult
	if err := r.client.post(ctx, "/admin/"+r.Path+"/edit", body, &res); err != nil {
		return res, fmt.Errorf("editing %s %d: %w", r.Path, id, err)
	}
	return res, nil
}

// Archive hides row id from future listings.
func (r Resource[T]) Archive(ctx context.Context, id int) (MutationResult, error) {
	body := map[string]any{"app": int(r.App), "id": id}
	var res MutationResult
	if err := r.client.post(ctx, "/admin/"+r.Path+"/archive", body, &res); err != nil {
		return res, fmt.Errorf("archiving %s %d: %w", r.Path, id, err)
	}
	return res, nil
}

// Tasks lists data processing tasks, newest first as the portal returns them.
func (c *Client) Tasks(ctx context.Context) ([]DataProcessingTask, error) {
	var tasks []DataProcessingTask
	q := url.Values{"app": {c.app.String()}}
	if err := c.get(ctx, "/data_processing_task/", q, &tasks); err != nil {
		return nil, fmt.Errorf("listing tasks: %w", err)
	}
	return tasks, nil
}

// InvokeTask starts a new data processing task.
func (c *Client) InvokeTask(ctx context.Context) (MutationResult, error) {
	var res MutationResult
	body := map[string]any{"app": int(c.app)}
	if err := c.post(ctx, "/data_processing_task/invoke", body, &res); err != nil {
		return res, fmt.Errorf("invoking task: %w", err)
	}
	return res, nil
}
