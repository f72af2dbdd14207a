package testsupport

import (
	"fmt"
	"html"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// Listing names used in fake site paths.
const (
	ListingFilms     = "films"
	ListingDiary     = "diary"
	ListingReviews   = "reviews"
	ListingWatchlist = "watchlist"
	ListingLists     = "lists"
)

// SiteFilm is one film on a fake profile. A zero Rating renders no stars.
type SiteFilm struct {
	Slug        string
	Title       string
	Year        int
	Rating      float64
	Liked       bool
	WatchedDate string
	Rewatch     bool
	Review      string
	ReviewDate  string
	ReviewLikes int
}

// SiteList is a custom list on a fake profile.
type SiteList struct {
	Slug        string
	Title       string
	Description string
	FilmCount   int
}

// SiteProfile is a user served by the fake site.
type SiteProfile struct {
	Username         string
	DisplayName      string
	Bio              string
	Location         string
	Website          string
	FilmsPerPage     int
	DiaryPerPage     int
	ReviewsPerPage   int
	WatchlistPerPage int
	ListsPerPage     int
	Films            []SiteFilm
	Watchlist        []SiteFilm
	Lists            []SiteList
}

type fault struct {
	status     int
	retryAfter string
}

// Site is an httptest server that renders profile, films grid, diary,
// review, watchlist, and list pages in the markup the scraper parses.
type Site struct {
	server   *httptest.Server
	mu       sync.Mutex
	profiles map[string]SiteProfile
	broken   map[string]bool
	faults   map[string][]fault
	hits     map[string]int
	gate     chan struct{}
}

// NewSite starts a fake site and registers cleanup.
func NewSite(t testing.TB) *Site {
	t.Helper()
	s := &Site{
		profiles: make(map[string]SiteProfile),
		broken:   make(map[string]bool),
		faults:   make(map[string][]fault),
		hits:     make(map[string]int),
	}
	s.server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.server.Close)
	return s
}

// URL returns the base URL of the fake site.
func (s *Site) URL() string {
	return s.server.URL
}

// AddProfile registers or replaces a profile.
func (s *Site) AddProfile(p SiteProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[strings.ToLower(p.Username)] = p
}

// BreakPage makes a listing page render markup without the content root.
func (s *Site) BreakPage(username, listing string, page int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.broken[pageKey(username, listing, page)] = true
}

// FailNext queues HTTP status codes returned for path before normal service.
func (s *Site) FailNext(path string, statuses ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, status := range statuses {
		s.faults[path] = append(s.faults[path], fault{status: status})
	}
}

// RateLimitNext queues a 429 for path with the given Retry-After header value.
func (s *Site) RateLimitNext(path, retryAfter string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[path] = append(s.faults[path], fault{status: http.StatusTooManyRequests, retryAfter: retryAfter})
}

// Hits returns how many requests reached path.
func (s *Site) Hits(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

// Hold blocks every request until the returned release func is called.
func (s *Site) Hold() (release func()) {
	gate := make(chan struct{})
	s.mu.Lock()
	s.gate = gate
	s.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			s.gate = nil
			s.mu.Unlock()
			close(gate)
		})
	}
}

// ProfilePath returns the fake site path of a profile page.
func ProfilePath(username string) string {
	return "/" + username + "/"
}

// ListingPath returns the fake site path of a listing page.
func ListingPath(username, listing string, page int) string {
	var base string
	switch listing {
	case ListingFilms:
		base = "/" + username + "/films/"
	case ListingWatchlist, ListingLists:
		base = "/" + username + "/" + listing + "/"
	default:
		base = "/" + username + "/films/" + listing + "/"
	}
	if page > 1 {
		base += "page/" + strconv.Itoa(page) + "/"
	}
	return base
}

func pageKey(username, listing string, page int) string {
	return strings.ToLower(username) + "|" + listing + "|" + strconv.Itoa(page)
}

func (s *Site) serve(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.hits[r.URL.Path]++
	gate := s.gate
	var next *fault
	if queue := s.faults[r.URL.Path]; len(queue) > 0 {
		f := queue[0]
		s.faults[r.URL.Path] = queue[1:]
		next = &f
	}
	s.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-r.Context().Done():
			return
		}
	}
	if next != nil {
		if next.retryAfter != "" {
			w.Header().Set("Retry-After", next.retryAfter)
		}
		http.Error(w, http.StatusText(next.status), next.status)
		return
	}

	username, listing, page, ok := parsePath(r.URL.Path)
	if !ok {
		http.NotFound(w, r)
		return
	}
	s.mu.Lock()
	profile, found := s.profiles[strings.ToLower(username)]
	broken := s.broken[pageKey(username, listing, page)]
	s.mu.Unlock()
	if !found {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if broken {
		fmt.Fprint(w, "<html><body><div class=\"error\">Something went wrong</div></body></html>")
		return
	}
	var body string
	switch listing {
	case "":
		body = renderProfile(profile)
	case ListingFilms:
		body = renderFilms(profile, page)
	case ListingDiary:
		body = renderDiary(profile, page)
	case ListingReviews:
		body = renderReviews(profile, page)
	case ListingWatchlist:
		body = renderWatchlist(profile, page)
	case ListingLists:
		body = renderLists(profile, page)
	}
	fmt.Fprint(w, "<html><body><div id=\"content\">"+body+"</div></body></html>")
}

// parsePath splits /{user}/[films/[diary|reviews/]|watchlist/|lists/][page/N/].
func parsePath(path string) (username, listing string, page int, ok bool) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		return "", "", 0, false
	}
	username = parts[0]
	rest := parts[1:]
	page = 1
	if len(rest) == 0 {
		return username, "", page, true
	}
	switch rest[0] {
	case ListingFilms:
		listing = ListingFilms
		rest = rest[1:]
		if len(rest) > 0 && (rest[0] == ListingDiary || rest[0] == ListingReviews) {
			listing = rest[0]
			rest = rest[1:]
		}
	case ListingWatchlist, ListingLists:
		listing = rest[0]
		rest = rest[1:]
	default:
		return "", "", 0, false
	}
	if len(rest) == 2 && rest[0] == "page" {
		n, err := strconv.Atoi(rest[1])
		if err != nil || n < 1 {
			return "", "", 0, false
		}
		page = n
		rest = rest[2:]
	}
	if len(rest) != 0 {
		return "", "", 0, false
	}
	return username, listing, page, true
}

func renderProfile(p SiteProfile) string {
	var b strings.Builder
	reviews := 0
	for _, f := range p.Films {
		if f.Review != "" {
			reviews++
		}
	}
	fmt.Fprintf(&b, `<section class="profile-header"><h1 class="title-1">%s</h1>`, html.EscapeString(p.DisplayName))
	fmt.Fprintf(&b, `<img class="avatar" src="https://img.example/%s.jpg"/>`, p.Username)
	fmt.Fprintf(&b, `<div class="profile-text"><p>%s</p></div>`, html.EscapeString(p.Bio))
	b.WriteString(`<section class="profile-metadata">`)
	if p.Location != "" {
		fmt.Fprintf(&b, `<span class="location">%s</span>`, html.EscapeString(p.Location))
	}
	if p.Website != "" {
		fmt.Fprintf(&b, `<a class="url" href="%s">%s</a>`, p.Website, html.EscapeString(p.Website))
	}
	b.WriteString(`</section></section><div class="profile-stats">`)
	fmt.Fprintf(&b, `<a class="has-icon" href="/%s/films/">%s films</a>`, p.Username, thousands(len(p.Films)))
	fmt.Fprintf(&b, `<a class="has-icon" href="/%s/films/reviews/">%d reviews</a>`, p.Username, reviews)
	fmt.Fprintf(&b, `<a class="has-icon" href="/%s/lists/">%d lists</a>`, p.Username, len(p.Lists))
	b.WriteString(`</div>`)
	return b.String()
}

func paginate(total, perPage, page int) (start, end, pages int) {
	if perPage <= 0 {
		perPage = 72
	}
	pages = (total + perPage - 1) / perPage
	start = (page - 1) * perPage
	if start > total {
		start = total
	}
	end = start + perPage
	if end > total {
		end = total
	}
	return start, end, pages
}

func renderPagination(username, listing string, page, pages int) string {
	if pages <= 1 {
		return ""
	}
	var b strings.Builder
	b.WriteString(`<div class="pagination"><div class="paginate-pages"><ul>`)
	for i := 1; i <= pages; i++ {
		fmt.Fprintf(&b, `<li><a href="%s">%d</a></li>`, ListingPath(username, listing, i), i)
	}
	b.WriteString(`</ul></div>`)
	if page < pages {
		fmt.Fprintf(&b, `<a class="next" href="%s">Older</a>`, ListingPath(username, listing, page+1))
	}
	b.WriteString(`</div>`)
	return b.String()
}

func filmComponent(f SiteFilm) string {
	return fmt.Sprintf(`<div class="react-component" data-item-name="%s" data-item-slug="%s" data-film-id="%d" data-item-link="/film/%s/"></div>`,
		html.EscapeString(fmt.Sprintf("%s (%d)", f.Title, f.Year)), f.Slug, len(f.Slug)*1000+f.Year, f.Slug)
}

func stars(rating float64) string {
	if rating <= 0 {
		return ""
	}
	whole := int(rating)
	out := strings.Repeat("★", whole)
	if rating-float64(whole) >= 0.5 {
		out += "½"
	}
	return out
}

func renderFilms(p SiteProfile, page int) string {
	start, end, pages := paginate(len(p.Films), p.FilmsPerPage, page)
	var b strings.Builder
	b.WriteString(`<ul class="poster-list">`)
	for _, f := range p.Films[start:end] {
		b.WriteString(`<li class="griditem">` + filmComponent(f) + `<p class="poster-viewingdata">`)
		if f.Rating > 0 {
			fmt.Fprintf(&b, `<span class="rating rated-%d">%s</span>`, int(f.Rating*2), stars(f.Rating))
		}
		if f.Liked {
			b.WriteString(`<span class="like liked-micro has-icon icon-liked"></span>`)
		}
		b.WriteString(`</p></li>`)
	}
	b.WriteString(`</ul>`)
	b.WriteString(renderPagination(p.Username, ListingFilms, page, pages))
	return b.String()
}

var monthNames = []string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}

func renderDiary(p SiteProfile, page int) string {
	var logged []SiteFilm
	for _, f := range p.Films {
		if f.WatchedDate != "" {
			logged = append(logged, f)
		}
	}
	start, end, pages := paginate(len(logged), p.DiaryPerPage, page)
	var b strings.Builder
	b.WriteString(`<table class="diary-table"><tbody>`)
	for _, f := range logged[start:end] {
		year, month, day := f.WatchedDate[:4], f.WatchedDate[5:7], f.WatchedDate[8:10]
		m, _ := strconv.Atoi(month)
		b.WriteString(`<tr class="diary-entry-row">`)
		fmt.Fprintf(&b, `<td class="col-monthdate"><a class="month">%s</a><a class="year">%s</a></td>`, monthNames[m-1], year)
		fmt.Fprintf(&b, `<td class="col-daydate"><a class="daydate">%s</a></td>`, day)
		b.WriteString(`<td class="col-production">` + filmComponent(f) + `</td>`)
		fmt.Fprintf(&b, `<td class="col-rating"><span class="rating">%s</span></td>`, stars(f.Rating))
		if f.Liked {
			b.WriteString(`<td class="col-like"><span class="icon-liked"></span></td>`)
		} else {
			b.WriteString(`<td class="col-like"></td>`)
		}
		if f.Rewatch {
			b.WriteString(`<td class="col-rewatch"><span class="icon-rewatch"></span></td>`)
		} else {
			b.WriteString(`<td class="col-rewatch"><span class="icon-rewatch icon-status-off"></span></td>`)
		}
		if f.Review != "" {
			fmt.Fprintf(&b, `<td class="col-review"><a href="/%s/film/%s/">review</a></td>`, p.Username, f.Slug)
		} else {
			b.WriteString(`<td class="col-review"></td>`)
		}
		b.WriteString(`</tr>`)
	}
	b.WriteString(`</tbody></table>`)
	b.WriteString(renderPagination(p.Username, ListingDiary, page, pages))
	return b.String()
}

func renderReviews(p SiteProfile, page int) string {
	var reviewed []SiteFilm
	for _, f := range p.Films {
		if f.Review != "" {
			reviewed = append(reviewed, f)
		}
	}
	start, end, pages := paginate(len(reviewed), p.ReviewsPerPage, page)
	var b strings.Builder
	b.WriteString(`<div class="viewing-list">`)
	for _, f := range reviewed[start:end] {
		b.WriteString(`<article class="production-viewing">` + filmComponent(f))
		if f.Rating > 0 {
			fmt.Fprintf(&b, `<span class="rating">%s</span>`, stars(f.Rating))
		}
		if f.ReviewDate != "" {
			fmt.Fprintf(&b, `<time class="timestamp" datetime="%sT12:00:00Z">%s</time>`, f.ReviewDate, f.ReviewDate)
		}
		fmt.Fprintf(&b, `<div class="body-text"><p>%s</p></div>`, html.EscapeString(f.Review))
		fmt.Fprintf(&b, `<p class="like-link-target" data-count="%d"></p>`, f.ReviewLikes)
		b.WriteString(`</article>`)
	}
	b.WriteString(`</div>`)
	b.WriteString(renderPagination(p.Username, ListingReviews, page, pages))
	return b.String()
}

func renderWatchlist(p SiteProfile, page int) string {
	start, end, pages := paginate(len(p.Watchlist), p.WatchlistPerPage, page)
	var b strings.Builder
	b.WriteString(`<ul class="poster-list">`)
	for _, f := range p.Watchlist[start:end] {
		b.WriteString(`<li class="poster-container">` + filmComponent(f) + `</li>`)
	}
	b.WriteString(`</ul>`)
	b.WriteString(renderPagination(p.Username, ListingWatchlist, page, pages))
	return b.String()
}

func renderLists(p SiteProfile, page int) string {
	start, end, pages := paginate(len(p.Lists), p.ListsPerPage, page)
	var b strings.Builder
	for _, l := range p.Lists[start:end] {
		fmt.Fprintf(&b, `<section class="list-set"><h2 class="title"><a href="/%s/list/%s/">%s</a></h2>`,
			p.Username, l.Slug, html.EscapeString(l.Title))
		fmt.Fprintf(&b, `<span class="list-count">%d films</span>`, l.FilmCount)
		if l.Description != "" {
			fmt.Fprintf(&b, `<div class="body-text"><p>%s</p></div>`, html.EscapeString(l.Description))
		}
		b.WriteString(`</section>`)
	}
	b.WriteString(renderPagination(p.Username, ListingLists, page, pages))
	return b.String()
}

func thousands(n int) string {
	s := strconv.Itoa(n)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	pre := len(s) % 3
	if pre > 0 {
		b.WriteString(s[:pre])
	}
	for i := pre; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}
