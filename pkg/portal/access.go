package portal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"golang.org/x/sync/errgroup"
)

// maxConcurrentChecks bounds parallel permission checks per query.
const maxConcurrentChecks = 4

// Scope is what a permission check is about. StudyID 0 means app-wide.
type Scope struct {
	Resource string
	App      App
	StudyID  int
}

// Grants records which actions were allowed.
type Grants map[Action]bool

// Can reports whether action was granted, directly or through the wildcard.
func (g Grants) Can(action Action) bool {
	return g[action] || g[ActionAll]
}

// Capabilities asks the portal which of actions the caller may perform on
// scope. All checks run concurrently and the result arrives as one set, so
// callers never render with half of the permissions known. A denied action
// is false in Grants; any other failure fails the whole query.
func (c *Client) Capabilities(ctx context.Context, scope Scope, actions ...Action) (Grants, error) {
	results := make([]bool, len(actions))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentChecks)
	for i, action := range actions {
		g.Go(func() error {
			ok, err := c.checkAccess(ctx, scope, action)
			if err != nil {
				return fmt.Errorf("checking %s on %s: %w", action, scope.Resource, err)
			}
			results[i] = ok
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	grants := make(Grants, len(actions))
	for i, action := range actions {
		grants[action] = results[i]
	}
	c.logger.Debug("capabilities resolved", "resource", scope.Resource, "study", scope.StudyID, "grants", grants)
	return grants, nil
}

func (c *Client) checkAccess(ctx context.Context, scope Scope, action Action) (bool, error) {
	q := url.Values{
		"app":      {scope.App.String()},
		"action":   {string(action)},
		"resource": {scope.Resource},
	}
	if scope.StudyID > 0 {
		q.Set("study", fmt.Sprint(scope.StudyID))
	}

	var reply struct {
		Msg string `json:"msg"`
	}
	// Permission checks bypass the cache: a revoked grant must take effect
	// on the next render.
	body, _, err := c.send(ctx, http.MethodGet, c.url("/auth/researcher/get-access", q), nil, c.attempts)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && (apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusForbidden) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(body, &reply); err != nil {
		return false, fmt.Errorf("decoding access reply: %w", err)
	}
	return reply.Msg == "Authorized", nil
}

// ListView is a table's rows together with what the caller may do to them.
type ListView[T any] struct {
	Items  []T
	Grants Grants
}

// LoadList fetches a table and the caller's capabilities on it in parallel.
// Either failing fails the load.
func LoadList[T any](ctx context.Context, r Resource[T], actions ...Action) (ListView[T], error) {
	var view ListView[T]
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		grants, err := r.client.Capabilities(ctx, r.Scope(), actions...)
		view.Grants = grants
		return err
	})
	g.Go(func() error {
		items, err := r.List(ctx)
		view.Items = items
		return err
	})
	if err := g.Wait(); err != nil {
		return ListView[T]{}, err
	}
	return view, nil
}
