// Package supabase talks to the Supabase project that owns the student
// records and the user accounts.
//
// Two Supabase services are used:
//
//	PostgREST  /rest/v1/<table>  — filtered, paginated student reads
//	GoTrue     /auth/v1/user     — resolve an access token to a user (auth-go)
//
// Filtering happens in PostgREST; this package only translates the
// dashboard's filter state into PostgREST query parameters.
package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	gotrue "github.com/supabase-community/auth-go"

	"github.com/aanand-mishra/students-paywall/internal/config"
	"github.com/aanand-mishra/students-paywall/internal/types"
)

var (
	// ErrNotConfigured means the project URL or API key is missing.
	ErrNotConfigured = errors.New("supabase not configured")

	// ErrStudentNotFound is returned by GetStudent when no row matches.
	ErrStudentNotFound = errors.New("student not found")

	// ErrInvalidToken is returned by User when Supabase rejects the token.
	ErrInvalidToken = errors.New("invalid access token")
)

// Page sizes offered by the dashboard.
const (
	DefaultPageSize = 50
	DefaultPage     = 1
)

// PageSizes lists the allowed page sizes. Anything else falls back to
// DefaultPageSize.
var PageSizes = []int{25, 50, 100}

// searchColumns are matched case-insensitively by the free-text search.
var searchColumns = []string{"name", "father", "class", "university_roll", "phone"}

// APIError is a non-2xx answer from Supabase.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("supabase returned status %d: %s", e.StatusCode, e.Body)
}

// Client is a minimal Supabase REST client.
type Client struct {
	URL            string
	AnonKey        string
	ServiceRoleKey string
	StudentsTable  string
	HTTPClient     *http.Client
}

// New builds a Client from the supabase: section of the config.
func New(cfg config.Supabase) *Client {
	table := cfg.StudentsTable
	if table == "" {
		table = "students"
	}
	return &Client{
		URL:            strings.TrimRight(cfg.URL, "/"),
		AnonKey:        cfg.AnonKey,
		ServiceRoleKey: cfg.ServiceRoleKey,
		StudentsTable:  table,
		HTTPClient:     &http.Client{Timeout: 15 * time.Second},
	}
}

// Configured reports whether the client has enough to make calls.
func (c *Client) Configured() bool {
	if c == nil || c.URL == "" || c.AnonKey == "" {
		return false
	}
	u, err := url.Parse(c.URL)
	return err == nil && u.Scheme != "" && u.Host != ""
}

// dataKey is the key used for table reads: the service role key when the
// server has one (bypasses row-level security), otherwise the anon key.
func (c *Client) dataKey() string {
	if c.ServiceRoleKey != "" {
		return c.ServiceRoleKey
	}
	return c.AnonKey
}

// NormalizePage clamps page to >= 1 and size to one of PageSizes. Page
// is also capped so that page*size fits in an int; such a page is past
// the last row and comes back empty.
func NormalizePage(page, size int) (int, int) {
	if page < 1 {
		page = DefaultPage
	}
	valid := false
	for _, s := range PageSizes {
		if size == s {
			valid = true
			break
		}
	}
	if !valid {
		size = DefaultPageSize
	}
	if maxPage := math.MaxInt / size; page > maxPage {
		page = maxPage
	}
	return page, size
}

// Range returns the inclusive row range for a 1-based page:
// page 1, size 50 → 0..49; page 3, size 25 → 50..74.
func Range(page, size int) (from, to int) {
	from = (page - 1) * size
	to = page*size - 1
	return from, to
}

// ─────────────────────────────────────────────────────────────────────────────
// StudentsQuery builds the PostgREST query string for a filter:
//
//	select=*&order=student_id
//	or=(name.ilike.*q*,father.ilike.*q*,...)   — search, when non-blank
//	class=eq.<class>                          — when set
//	semester=eq.<semester>                    — when set
//	photo_url=is.null                         — "missing photo" checkbox
//
// Pagination is not part of the query string; it travels in the Range header.
// ─────────────────────────────────────────────────────────────────────────────
func StudentsQuery(f types.StudentFilter) url.Values {
	q := url.Values{}
	q.Set("select", "*")

	if search := strings.TrimSpace(f.Search); search != "" {
		search = sanitizeSearch(search)
		parts := make([]string, 0, len(searchColumns))
		for _, col := range searchColumns {
			parts = append(parts, fmt.Sprintf("%s.ilike.*%s*", col, search))
		}
		q.Set("or", "("+strings.Join(parts, ",")+")")
	}
	if f.Class != "" {
		q.Set("class", "eq."+f.Class)
	}
	if f.Semester != "" {
		q.Set("semester", "eq."+f.Semester)
	}
	if f.MissingPhoto {
		q.Set("photo_url", "is.null")
	}

	q.Set("order", "student_id")
	return q
}

// sanitizeSearch drops characters that would break out of the or=(...)
// expression. PostgREST uses them as syntax, never as data.
func sanitizeSearch(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ',', '(', ')', '"', '\\':
			return -1
		}
		return r
	}, s)
}

// QueryStudents returns one page of students matching f, plus the total
// count of matching rows.
func (c *Client) QueryStudents(ctx context.Context, f types.StudentFilter) ([]types.Student, int64, error) {
	if !c.Configured() {
		return nil, 0, ErrNotConfigured
	}

	page, size := NormalizePage(f.Page, f.Size)
	from, to := Range(page, size)

	req, err := c.newRequest(ctx, c.restURL(StudentsQuery(f)), c.dataKey())
	if err != nil {
		return nil, 0, fmt.Errorf("supabase.QueryStudents: %w", err)
	}
	req.Header.Set("Range-Unit", "items")
	req.Header.Set("Range", fmt.Sprintf("%d-%d", from, to))
	req.Header.Set("Prefer", "count=exact")

	var students []types.Student
	resp, err := c.do(req, &students)
	if err != nil {
		// 416: the page starts past the last row. Treat it as empty.
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusRequestedRangeNotSatisfiable {
			return []types.Student{}, 0, nil
		}
		return nil, 0, fmt.Errorf("supabase.QueryStudents: %w", err)
	}

	total := parseContentRangeTotal(resp.Header.Get("Content-Range"))
	if total < 0 {
		total = int64(from + len(students))
	}

	out := make([]types.Student, 0, len(students))
	for _, s := range students {
		out = append(out, s.Normalize())
	}

	return out, total, nil
}

// GetStudent fetches one student by student_id.
func (c *Client) GetStudent(ctx context.Context, studentID string) (types.Student, error) {
	if !c.Configured() {
		return types.Student{}, ErrNotConfigured
	}

	q := url.Values{}
	q.Set("select", "*")
	q.Set("student_id", "eq."+studentID)
	q.Set("limit", "1")

	req, err := c.newRequest(ctx, c.restURL(q), c.dataKey())
	if err != nil {
		return types.Student{}, fmt.Errorf("supabase.GetStudent: %w", err)
	}

	var students []types.Student
	if _, err := c.do(req, &students); err != nil {
		return types.Student{}, fmt.Errorf("supabase.GetStudent: %w", err)
	}
	if len(students) == 0 {
		return types.Student{}, ErrStudentNotFound
	}

	return students[0].Normalize(), nil
}

// User resolves an access token to the signed-in user via Supabase Auth.
// Any rejection by Auth, including a transport failure, is reported as
// ErrInvalidToken.
func (c *Client) User(ctx context.Context, accessToken string) (types.User, error) {
	if !c.Configured() {
		return types.User{}, ErrNotConfigured
	}
	if accessToken == "" {
		return types.User{}, ErrInvalidToken
	}
	if err := ctx.Err(); err != nil {
		return types.User{}, fmt.Errorf("supabase.User: %w", err)
	}

	resp, err := c.authClient().WithToken(accessToken).GetUser()
	if err != nil {
		return types.User{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	return types.User{ID: resp.ID.String(), Email: resp.Email}, nil
}

// authClient talks to GoTrue under this project's URL rather than the
// hosted <ref>.supabase.co address, so self-hosted projects work too.
func (c *Client) authClient() gotrue.Client {
	return gotrue.New("", c.AnonKey).WithCustomAuthURL(c.URL + "/auth/v1")
}

func (c *Client) restURL(q url.Values) string {
	return c.URL + "/rest/v1/" + url.PathEscape(c.StudentsTable) + "?" + q.Encode()
}

// newRequest builds a GET with the apikey and bearer headers Supabase
// expects on every call.
func (c *Client) newRequest(ctx context.Context, rawURL, bearer string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("apikey", c.dataKey())
	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// do sends req and decodes a 2xx JSON body into out.
func (c *Client) do(req *http.Request, out any) (*http.Response, error) {
	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return resp, &APIError{StatusCode: resp.StatusCode, Body: string(text)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp, fmt.Errorf("decode: %w", err)
	}

	return resp, nil
}

// parseContentRangeTotal extracts the total from "0-49/1234" or "*/0".
// Returns -1 when the header is missing or the total is unknown ("*").
func parseContentRangeTotal(h string) int64 {
	i := strings.LastIndexByte(h, '/')
	if i < 0 {
		return -1
	}
	n, err := strconv.ParseInt(h[i+1:], 10, 64)
	if err != nil {
		return -1
	}
	return n
}
