package main

import (
	"encoding/json"
	"math"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/xerrors"

	"exercisetracker/common"
	"exercisetracker/tracker"
)

type createUserRequest struct {
	Username string `json:"username"`
}

type recordExerciseRequest struct {
	Description string  `json:"description"`
	Duration    minutes `json:"duration"`
	Date        string  `json:"date,omitempty"`
}

// minutes accepts a JSON number or a numeric string.
type minutes int

func (m *minutes) UnmarshalJSON(data []byte) error {
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return xerrors.New("duration must be a number")
		}
		n = json.Number(s)
	}
	v, err := parseMinutes(string(n))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// parseMinutes accepts integers and finite decimals that fit the duration
// column. Decimals are truncated toward zero.
func parseMinutes(s string) (minutes, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if i, err := strconv.ParseInt(s, 10, 32); err == nil {
		return minutes(i), nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil && !xerrors.Is(err, strconv.ErrRange) {
		return 0, &tracker.ValidationError{Field: "duration", Value: s, Reason: "not a number"}
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f > math.MaxInt32 || f < math.MinInt32 {
		return 0, &tracker.ValidationError{Field: "duration", Value: s, Reason: "out of range"}
	}
	return minutes(f), nil
}

type userResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

func newUserResponse(u common.User) userResponse {
	return userResponse{ID: u.ID, Username: u.Name}
}

type exerciseResponse struct {
	UserID          string `json:"userId"`
	Name            string `json:"name"`
	Description     string `json:"description"`
	DurationMinutes int    `json:"durationMinutes"`
	Date            string `json:"date"`
}

type logEntryResponse struct {
	Description     string `json:"description"`
	DurationMinutes int    `json:"durationMinutes"`
	Date            string `json:"date"`
}

type logResponse struct {
	UserID string             `json:"userId"`
	Name   string             `json:"name"`
	Count  int                `json:"count"`
	Log    []logEntryResponse `json:"log"`
}

func newLogResponse(v tracker.LogView) logResponse {
	resp := logResponse{
		UserID: v.UserID,
		Name:   v.Name,
		Count:  v.Count,
		Log:    make([]logEntryResponse, 0, len(v.Log)),
	}
	for _, ex := range v.Log {
		resp.Log = append(resp.Log, logEntryResponse{
			Description:     ex.Description,
			DurationMinutes: ex.DurationMinutes,
			Date:            common.FormatDate(ex.Date),
		})
	}
	return resp
}

func isJSON(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "application/json"
}

// decodeCreateUser reads a JSON body or a url-encoded form.
func decodeCreateUser(r *http.Request) (createUserRequest, error) {
	var req createUserRequest
	if isJSON(r) {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return req, &tracker.ValidationError{Field: "body", Reason: err.Error()}
		}
		return req, nil
	}
	req.Username = r.FormValue("username")
	return req, nil
}

func decodeRecordExercise(r *http.Request) (recordExerciseRequest, error) {
	var req recordExerciseRequest
	if isJSON(r) {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			var ve *tracker.ValidationError
			if xerrors.As(err, &ve) {
				return req, ve
			}
			return req, &tracker.ValidationError{Field: "body", Reason: err.Error()}
		}
		return req, nil
	}
	d, err := parseMinutes(r.FormValue("duration"))
	if err != nil {
		return req, err
	}
	req.Description = r.FormValue("description")
	req.Duration = d
	req.Date = r.FormValue("date")
	return req, nil
}

// logQuery reads from, to and limit. A limit that is not a number is ignored.
func logQuery(r *http.Request) tracker.LogQuery {
	q := r.URL.Query()
	limit, err := strconv.Atoi(strings.TrimSpace(q.Get("limit")))
	if err != nil {
		limit = 0
	}
	return tracker.LogQuery{
		From:  q.Get("from"),
		To:    q.Get("to"),
		Limit: limit,
	}
}

// unixDate lets clients submit a millisecond timestamp as the date, which
// browsers produce from Date.now(). The day is taken in UTC.
func unixDate(raw string) string {
	ms, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || ms < 100000000 {
		return raw
	}
	return time.UnixMilli(ms).UTC().Format(common.StorageLayout)
}
