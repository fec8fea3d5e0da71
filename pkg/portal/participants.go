package portal

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"time"

	"github.com/codeGROOVE-dev/ditti/pkg/tzconvert"
)

// Participants lists enrolled participants, across studies when studyID is 0.
func (c *Client) Participants(ctx context.Context, studyID int) ([]Participant, error) {
	q := url.Values{"app": {AppTaps.String()}}
	if studyID > 0 {
		q.Set("study", fmt.Sprint(studyID))
	}
	var users []Participant
	if err := c.get(ctx, "/aws/get-users", q, &users); err != nil {
		return nil, fmt.Errorf("listing participants: %w", err)
	}
	return users, nil
}

// Enroll creates a participant in the enrollment's study.
func (c *Client) Enroll(ctx context.Context, e Enrollment) (MutationResult, error) {
	var res MutationResult
	if e.DittiID == "" {
		return res, &APIError{Status: http.StatusBadRequest, Message: "Ditti ID is required"}
	}
	if e.ExpTime.IsZero() {
		return res, &APIError{Status: http.StatusBadRequest, Message: "Expiry date is required"}
	}
	body := map[string]any{"app": int(AppTaps), "study": e.StudyID, "create": e}
	if err := c.post(ctx, "/aws/user/create", body, &res); err != nil {
		return res, fmt.Errorf("enrolling %s: %w", e.DittiID, err)
	}
	return res, nil
}

// TapQuery narrows a tap fetch. Zero fields are not sent.
type TapQuery struct {
	DittiID string
	StudyID int
}

func (q TapQuery) values() url.Values {
	v := url.Values{"app": {AppTaps.String()}}
	if q.StudyID > 0 {
		v.Set("study", fmt.Sprint(q.StudyID))
	}
	if q.DittiID != "" {
		v.Set("dittiId", q.DittiID)
	}
	return v
}

// Taps fetches tap logs sorted by time.
func (c *Client) Taps(ctx context.Context, q TapQuery) ([]Tap, error) {
	var taps []Tap
	if err := c.get(ctx, "/aws/get-taps", q.values(), &taps); err != nil {
		return nil, fmt.Errorf("fetching taps: %w", err)
	}
	if q.DittiID != "" {
		taps = slices.DeleteFunc(taps, func(t Tap) bool { return t.DittiID != q.DittiID })
	}
	slices.SortStableFunc(taps, func(a, b Tap) int { return a.Time.Compare(b.Time.Time) })
	return taps, nil
}

// AudioTaps fetches audio tap logs sorted by time.
func (c *Client) AudioTaps(ctx context.Context, q TapQuery) ([]AudioTap, error) {
	var taps []AudioTap
	if err := c.get(ctx, "/aws/get-audio-taps", q.values(), &taps); err != nil {
		return nil, fmt.Errorf("fetching audio taps: %w", err)
	}
	if q.DittiID != "" {
		taps = slices.DeleteFunc(taps, func(t AudioTap) bool { return t.DittiID != q.DittiID })
	}
	slices.SortStableFunc(taps, func(a, b AudioTap) int { return a.Time.Compare(b.Time.Time) })
	return taps, nil
}

// TapTimes returns the timestamps of taps.
func TapTimes(taps []Tap) []time.Time {
	out := make([]time.Time, len(taps))
	for i, t := range taps {
		out[i] = t.Time.Time
	}
	return out
}

// AudioTapTimes returns the timestamps of audio taps.
func AudioTapTimes(taps []AudioTap) []time.Time {
	out := make([]time.Time, len(taps))
	for i, t := range taps {
		out[i] = t.Time.Time
	}
	return out
}

// TimezoneEvents converts taps and audio taps into timezone events for
// changepoint detection.
func TimezoneEvents(taps []Tap, audio []AudioTap) []tzconvert.Event {
	events := make([]tzconvert.Event, 0, len(taps)+len(audio))
	for _, t := range taps {
		events = append(events, tzconvert.Event{Time: t.Time.Time, Timezone: t.Timezone})
	}
	for _, a := range audio {
		events = append(events, tzconvert.Event{Time: a.Time.Time, Timezone: a.Timezone})
	}
	return events
}
