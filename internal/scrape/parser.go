package scrape

import (
	"bytes"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"filmlog/internal/services"
	"filmlog/internal/store"
	"filmlog/internal/textutil"
)

var (
	statPattern   = regexp.MustCompile(`(?i)([\d,]+)\s+(films?|reviews?|lists?)`)
	countPattern  = regexp.MustCompile(`[\d,]+`)
	reviewFormats = []string{"2006-01-02", "02 Jan 2006", "2 Jan 2006", "Jan 02, 2006", "Jan 2, 2006"}
)

func newDocument(body []byte) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(bytes.NewReader(body))
}

func parseError(listing, message string) error {
	return services.Wrap(services.ErrParse, "parser", listing, message, nil)
}

// contentRoot returns #content or a ParseError when the page lacks it.
func contentRoot(body []byte, listing string) (*goquery.Selection, error) {
	doc, err := newDocument(body)
	if err != nil {
		return nil, services.Wrap(services.ErrParse, "parser", listing, "read html", err)
	}
	root := doc.Find("#content").First()
	if root.Length() == 0 {
		return nil, parseError(listing, "page has no content root")
	}
	return root, nil
}

// ParseRating converts star glyphs into a half-star rating. Text without
// stars yields nil.
func ParseRating(text string) *float64 {
	var value float64
	for _, r := range text {
		switch r {
		case '★':
			value++
		case '½':
			value += 0.5
		}
	}
	if value <= 0 {
		return nil
	}
	if value > 5 {
		value = 5
	}
	return &value
}

// parseFilmRef reads the film identity from the react-component placeholder
// the site renders for every poster.
func parseFilmRef(sel *goquery.Selection) (FilmRef, bool) {
	comp := sel.Find("[data-item-slug], [data-film-slug], [data-item-name]").First()
	if comp.Length() == 0 && (sel.AttrOr("data-item-slug", "") != "" || sel.AttrOr("data-item-name", "") != "") {
		comp = sel
	}
	if comp.Length() == 0 {
		return FilmRef{}, false
	}
	name := strings.TrimSpace(comp.AttrOr("data-item-name", comp.AttrOr("data-film-name", "")))
	if name == "" {
		name = strings.TrimSpace(sel.Find("img[alt]").First().AttrOr("alt", ""))
	}
	title, year := textutil.SplitTitleYear(name)
	if y := comp.AttrOr("data-film-release-year", ""); year == 0 && y != "" {
		year, _ = strconv.Atoi(y)
	}
	slug := comp.AttrOr("data-item-slug", comp.AttrOr("data-film-slug", ""))
	link := comp.AttrOr("data-item-link", comp.AttrOr("data-target-link", ""))
	if slug == "" && strings.HasPrefix(link, "/film/") {
		slug = link
	}
	key := textutil.FilmKey(slug, title, year)
	if key == "" || title == "" {
		return FilmRef{}, false
	}
	return FilmRef{
		Key:        key,
		Slug:       textutil.NormalizeSlug(slug),
		Title:      title,
		Year:       year,
		ExternalID: comp.AttrOr("data-film-id", ""),
		URL:        link,
		PosterURL:  comp.AttrOr("data-poster-url", ""),
	}, true
}

func parsePagination(root *goquery.Selection) (hasNext bool, lastPage int) {
	hasNext = root.Find("a.next").Length() > 0
	root.Find(".paginate-pages li").Each(func(_ int, li *goquery.Selection) {
		if n, err := strconv.Atoi(strings.TrimSpace(li.Text())); err == nil && n > lastPage {
			lastPage = n
		}
	})
	return hasNext, lastPage
}

// finishPage applies the page-level identity rule: a page whose items all
// lack identity is malformed rather than empty.
func finishPage[T any](page Page[T], root *goquery.Selection, listing string) (Page[T], error) {
	if len(page.Items) == 0 && page.Dropped > 0 {
		return Page[T]{}, parseError(listing, "no item on page carries an identity")
	}
	page.HasNext, page.LastPage = parsePagination(root)
	return page, nil
}

// ParseFilmsPage parses one page of the films grid.
func ParseFilmsPage(body []byte) (Page[FilmEntry], error) {
	const listing = string(ListingFilms)
	root, err := contentRoot(body, listing)
	if err != nil {
		return Page[FilmEntry]{}, err
	}
	var page Page[FilmEntry]
	root.Find("li.griditem, li.poster-container").Each(func(_ int, li *goquery.Selection) {
		ref, ok := parseFilmRef(li)
		if !ok {
			page.Dropped++
			return
		}
		entry := FilmEntry{Film: ref}
		viewing := li.Find(".poster-viewingdata")
		entry.Rating = ParseRating(viewing.Find(".rating").Text())
		entry.Liked = viewing.Find(".like, .icon-liked").Length() > 0
		page.Items = append(page.Items, entry)
	})
	return finishPage(page, root, listing)
}

// ParseDiaryPage parses one page of the diary table. Rows that omit the
// month or year cell inherit it from the row above, as the site only prints
// it on the first row of each month.
func ParseDiaryPage(body []byte) (Page[DiaryEntry], error) {
	const listing = string(ListingDiary)
	root, err := contentRoot(body, listing)
	if err != nil {
		return Page[DiaryEntry]{}, err
	}
	var (
		page              Page[DiaryEntry]
		curMonth, curYear string
	)
	root.Find("tr.diary-entry-row").Each(func(_ int, row *goquery.Selection) {
		if m := strings.TrimSpace(row.Find(".col-monthdate .month").Text()); m != "" {
			curMonth = m
		}
		if y := strings.TrimSpace(row.Find(".col-monthdate .year").Text()); y != "" {
			curYear = y
		}
		ref, ok := parseFilmRef(row.Find(".col-production, td.td-film-details").First())
		if !ok {
			page.Dropped++
			return
		}
		day := strings.TrimSpace(row.Find(".col-daydate .daydate, .td-day a").First().Text())
		entry := DiaryEntry{
			Film:        ref,
			WatchedDate: diaryDate(curYear, curMonth, day),
			Rating:      ParseRating(row.Find(".col-rating .rating").Text()),
			Liked:       row.Find(".col-like .icon-liked").Length() > 0,
		}
		if rewatch := row.Find(".col-rewatch .icon-rewatch"); rewatch.Length() > 0 {
			entry.Rewatch = !rewatch.HasClass("icon-status-off")
		}
		entry.HasReview = row.Find(".col-review a").Length() > 0
		page.Items = append(page.Items, entry)
	})
	return finishPage(page, root, listing)
}

func diaryDate(year, month, day string) string {
	if year == "" || month == "" || day == "" {
		return ""
	}
	t, err := time.Parse("2006 Jan 2", year+" "+month[:min(3, len(month))]+" "+day)
	if err != nil {
		return ""
	}
	return t.Format("2006-01-02")
}

// ParseReviewsPage parses one page of the reviews listing.
func ParseReviewsPage(body []byte) (Page[ReviewEntry], error) {
	const listing = string(ListingReviews)
	root, err := contentRoot(body, listing)
	if err != nil {
		return Page[ReviewEntry]{}, err
	}
	var page Page[ReviewEntry]
	root.Find("article.production-viewing, li.film-detail").Each(func(_ int, item *goquery.Selection) {
		ref, ok := parseFilmRef(item)
		if !ok {
			page.Dropped++
			return
		}
		entry := ReviewEntry{
			Film:       ref,
			Body:       strings.TrimSpace(item.Find(".body-text").Text()),
			Rating:     ParseRating(item.Find(".rating").First().Text()),
			ReviewDate: reviewDate(item),
		}
		if count := item.Find(".like-link-target").AttrOr("data-count", ""); count != "" {
			entry.LikeCount, _ = strconv.Atoi(strings.ReplaceAll(count, ",", ""))
		}
		page.Items = append(page.Items, entry)
	})
	return finishPage(page, root, listing)
}

// ParseWatchlistPage parses one page of the watchlist grid.
func ParseWatchlistPage(body []byte) (Page[WatchlistEntry], error) {
	const listing = string(ListingWatchlist)
	root, err := contentRoot(body, listing)
	if err != nil {
		return Page[WatchlistEntry]{}, err
	}
	var page Page[WatchlistEntry]
	root.Find("li.griditem, li.poster-container").Each(func(_ int, li *goquery.Selection) {
		ref, ok := parseFilmRef(li)
		if !ok {
			page.Dropped++
			return
		}
		page.Items = append(page.Items, WatchlistEntry{Film: ref})
	})
	return finishPage(page, root, listing)
}

// ParseListsPage parses one page of a profile's custom lists. A list is
// identified by the slug of its link.
func ParseListsPage(body []byte) (Page[ListEntry], error) {
	const listing = string(ListingLists)
	root, err := contentRoot(body, listing)
	if err != nil {
		return Page[ListEntry]{}, err
	}
	var page Page[ListEntry]
	root.Find("section.list-set, article.list-summary").Each(func(_ int, item *goquery.Selection) {
		link := item.Find("h2.title a, h2 a").First()
		href := link.AttrOr("href", "")
		entry := ListEntry{
			Slug:        textutil.NormalizeSlug(href),
			Title:       strings.TrimSpace(link.Text()),
			Description: strings.TrimSpace(item.Find(".body-text").First().Text()),
			URL:         href,
		}
		if entry.Slug == "" || entry.Title == "" {
			page.Dropped++
			return
		}
		if m := countPattern.FindString(item.Find(".list-count, small.value").First().Text()); m != "" {
			entry.FilmCount, _ = strconv.Atoi(strings.ReplaceAll(m, ",", ""))
		}
		page.Items = append(page.Items, entry)
	})
	return finishPage(page, root, listing)
}

func reviewDate(item *goquery.Selection) string {
	if dt := item.Find("time.timestamp").AttrOr("datetime", ""); len(dt) >= 10 {
		if _, err := time.Parse("2006-01-02", dt[:10]); err == nil {
			return dt[:10]
		}
	}
	text := strings.TrimSpace(item.Find("span.date").First().Text())
	for _, layout := range reviewFormats {
		if t, err := time.Parse(layout, text); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return ""
}

// ParseProfile parses the profile page header and statistics.
func ParseProfile(body []byte, username string) (store.ProfileInfo, error) {
	root, err := contentRoot(body, "profile")
	if err != nil {
		return store.ProfileInfo{}, err
	}
	info := store.ProfileInfo{
		Username:    store.NormalizeUsername(username),
		DisplayName: strings.TrimSpace(root.Find("h1.title-1, .profile-name .displayname").First().Text()),
		Bio:         strings.TrimSpace(root.Find("div.profile-text, div.bio").First().Text()),
		Location:    strings.TrimSpace(root.Find(".profile-metadata .location").First().Text()),
		Website:     strings.TrimSpace(root.Find(".profile-metadata a.url").First().AttrOr("href", "")),
		AvatarURL:   root.Find("img.avatar, .profile-avatar img").First().AttrOr("src", ""),
	}
	if joined := root.Find(".profile-metadata time.join-date").AttrOr("datetime", ""); len(joined) >= 10 {
		info.JoinDate = joined[:10]
	}
	if info.DisplayName == "" {
		info.DisplayName = textutil.TitleCase(username)
	}
	root.Find("a.has-icon, .profile-statistic").Each(func(_ int, stat *goquery.Selection) {
		m := statPattern.FindStringSubmatch(strings.Join(strings.Fields(stat.Text()), " "))
		if m == nil {
			return
		}
		n, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", ""))
		if err != nil {
			return
		}
		switch strings.ToLower(m[2])[:4] {
		case "film":
			info.ReportedFilmCount = n
		case "revi":
			info.ReportedReviewCount = n
		case "list":
			info.ReportedListCount = n
		}
	})
	return info, nil
}
