package scrape_test

import (
	"errors"
	"testing"

	"filmlog/internal/scrape"
	"filmlog/internal/services"
)

const filmsPage = `<html><body><div id="content"><ul class="poster-list">
<li class="griditem"><div class="react-component" data-item-name="Alien (1979)" data-item-slug="alien" data-film-id="51" data-item-link="/film/alien/" data-poster-url="https://img.example/alien.jpg"></div>
<p class="poster-viewingdata"><span class="rating rated-9">★★★★½</span><span class="like liked-micro"></span></p></li>
<li class="griditem"><div class="react-component" data-item-name="Heat (1995)" data-item-slug="heat-1995" data-item-link="/film/heat-1995/"></div>
<p class="poster-viewingdata"></p></li>
<li class="griditem"><div class="react-component"></div></li>
</ul>
<div class="pagination"><div class="paginate-pages"><ul><li><a href="/u/films/">1</a></li><li class="paginate-page"><a href="/u/films/page/7/">7</a></li></ul></div>
<a class="next" href="/u/films/page/2/">Older</a></div>
</div></body></html>`

func TestParseFilmsPage(t *testing.T) {
	page, err := scrape.ParseFilmsPage([]byte(filmsPage))
	if err != nil {
		t.Fatalf("ParseFilmsPage: %v", err)
	}
	if len(page.Items) != 2 || page.Dropped != 1 {
		t.Fatalf("expected 2 items and 1 dropped, got %d/%d", len(page.Items), page.Dropped)
	}
	alien := page.Items[0]
	if alien.Film.Key != "alien" || alien.Film.Title != "Alien" || alien.Film.Year != 1979 {
		t.Fatalf("unexpected film ref %+v", alien.Film)
	}
	if alien.Film.ExternalID != "51" || alien.Film.PosterURL == "" {
		t.Fatalf("expected catalog detail, got %+v", alien.Film)
	}
	if alien.Rating == nil || *alien.Rating != 4.5 || !alien.Liked {
		t.Fatalf("unexpected viewing data %+v", alien)
	}
	if heat := page.Items[1]; heat.Rating != nil || heat.Liked {
		t.Fatalf("expected unrated, unliked entry, got %+v", heat)
	}
	if !page.HasNext || page.LastPage != 7 {
		t.Fatalf("expected pagination next=true last=7, got %v/%d", page.HasNext, page.LastPage)
	}
}

func TestParsePageWithoutContentRootIsParseError(t *testing.T) {
	_, err := scrape.ParseFilmsPage([]byte(`<html><body><div class="error">oops</div></body></html>`))
	if !errors.Is(err, services.ErrParse) {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestParsePageWhereNoItemHasIdentityIsParseError(t *testing.T) {
	body := `<div id="content"><ul><li class="griditem"><div class="react-component"></div></li></ul></div>`
	if _, err := scrape.ParseFilmsPage([]byte(body)); !errors.Is(err, services.ErrParse) {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestParseEmptyPageIsNotAnError(t *testing.T) {
	page, err := scrape.ParseDiaryPage([]byte(`<div id="content"><table class="diary-table"></table></div>`))
	if err != nil {
		t.Fatalf("expected empty page to parse, got %v", err)
	}
	if len(page.Items) != 0 || page.HasNext {
		t.Fatalf("expected empty page, got %+v", page)
	}
}

const diaryPage = `<div id="content"><table class="diary-table"><tbody>
<tr class="diary-entry-row">
 <td class="col-monthdate"><a class="month">Oct</a><a class="year">2024</a></td>
 <td class="col-daydate"><a class="daydate">12</a></td>
 <td class="col-production"><div class="react-component" data-item-name="Alien (1979)" data-item-slug="alien"></div></td>
 <td class="col-rating"><span class="rating">★★★★</span></td>
 <td class="col-like"><span class="icon-liked"></span></td>
 <td class="col-rewatch"><span class="icon-rewatch"></span></td>
 <td class="col-review"><a href="/u/film/alien/">r</a></td>
</tr>
<tr class="diary-entry-row">
 <td class="col-monthdate"></td>
 <td class="col-daydate"><a class="daydate">3</a></td>
 <td class="col-production"><div class="react-component" data-item-name="Heat (1995)" data-item-slug="heat-1995"></div></td>
 <td class="col-rating"><span class="rating"></span></td>
 <td class="col-like"></td>
 <td class="col-rewatch"><span class="icon-rewatch icon-status-off"></span></td>
 <td class="col-review"></td>
</tr>
</tbody></table></div>`

func TestParseDiaryPageCarriesMonthForward(t *testing.T) {
	page, err := scrape.ParseDiaryPage([]byte(diaryPage))
	if err != nil {
		t.Fatalf("ParseDiaryPage: %v", err)
	}
	if len(page.Items) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(page.Items))
	}
	first, second := page.Items[0], page.Items[1]
	if first.WatchedDate != "2024-10-12" || !first.Rewatch || !first.Liked || !first.HasReview {
		t.Fatalf("unexpected first row %+v", first)
	}
	if first.Rating == nil || *first.Rating != 4 {
		t.Fatalf("expected rating 4, got %v", first.Rating)
	}
	if second.WatchedDate != "2024-10-03" || second.Rewatch || second.Rating != nil {
		t.Fatalf("unexpected second row %+v", second)
	}
}

func TestParseReviewsPage(t *testing.T) {
	body := `<div id="content"><div class="viewing-list">
<article class="production-viewing"><div class="react-component" data-item-name="Heat (1995)" data-item-slug="heat-1995"></div>
<span class="rating">★★★★★</span><time class="timestamp" datetime="2024-02-01T20:00:00Z">Feb 1</time>
<div class="body-text"><p>Best shootout ever.</p></div><p class="like-link-target" data-count="1,204"></p></article>
<article class="production-viewing"><div class="react-component" data-item-name="Alien (1979)" data-item-slug="alien"></div>
<span class="date">05 Mar 2023</span><div class="body-text"><p>Tense.</p></div></article>
</div></div>`
	page, err := scrape.ParseReviewsPage([]byte(body))
	if err != nil {
		t.Fatalf("ParseReviewsPage: %v", err)
	}
	if len(page.Items) != 2 {
		t.Fatalf("expected 2 reviews, got %d", len(page.Items))
	}
	heat := page.Items[0]
	if heat.Body != "Best shootout ever." || heat.ReviewDate != "2024-02-01" || heat.LikeCount != 1204 {
		t.Fatalf("unexpected review %+v", heat)
	}
	if heat.Rating == nil || *heat.Rating != 5 {
		t.Fatalf("expected 5 stars, got %v", heat.Rating)
	}
	if alien := page.Items[1]; alien.ReviewDate != "2023-03-05" || alien.Rating != nil {
		t.Fatalf("unexpected fallback date review %+v", alien)
	}
}

func TestParseWatchlistPage(t *testing.T) {
	body := `<div id="content"><ul class="poster-list">
<li class="poster-container"><div class="react-component" data-item-name="Dune (2021)" data-item-slug="dune-2021"></div></li>
<li class="poster-container"><div class="react-component" data-item-slug="past-lives"></div><img alt="Past Lives"/></li>
</ul></div>`
	page, err := scrape.ParseWatchlistPage([]byte(body))
	if err != nil {
		t.Fatalf("ParseWatchlistPage: %v", err)
	}
	if len(page.Items) != 2 || page.HasNext {
		t.Fatalf("expected 2 items on a last page, got %+v", page)
	}
	if dune := page.Items[0].Film; dune.Key != "dune-2021" || dune.Year != 2021 {
		t.Fatalf("unexpected film ref %+v", dune)
	}
	if lives := page.Items[1].Film; lives.Title != "Past Lives" || lives.Key != "past-lives" {
		t.Fatalf("expected poster alt as title, got %+v", lives)
	}
}

func TestParseListsPage(t *testing.T) {
	body := `<div id="content">
<section class="list-set"><h2 class="title"><a href="/alice/list/best-of-1995/">Best of 1995</a></h2>
<span class="list-count">1,024 films</span><div class="body-text"><p>Heat first.</p></div></section>
<section class="list-set"><h2 class="title"><a href="/alice/list/comfort/">Comfort</a></h2></section>
<section class="list-set"><h2 class="title">No link</h2></section>
</div>`
	page, err := scrape.ParseListsPage([]byte(body))
	if err != nil {
		t.Fatalf("ParseListsPage: %v", err)
	}
	if len(page.Items) != 2 || page.Dropped != 1 {
		t.Fatalf("expected 2 lists and 1 dropped, got %d/%d", len(page.Items), page.Dropped)
	}
	best := page.Items[0]
	if best.Slug != "best-of-1995" || best.Title != "Best of 1995" || best.FilmCount != 1024 || best.Description != "Heat first." {
		t.Fatalf("unexpected list %+v", best)
	}
	if comfort := page.Items[1]; comfort.FilmCount != 0 || comfort.Description != "" {
		t.Fatalf("unexpected bare list %+v", comfort)
	}
}

func TestParseProfile(t *testing.T) {
	body := `<div id="content"><section class="profile-header"><h1 class="title-1">Alice Liddell</h1>
<img class="avatar" src="https://img.example/alice.jpg"/><div class="profile-text"><p>Horror first.</p></div>
<section class="profile-metadata"><span class="location">Oxford</span><a class="url" href="https://alice.example">site</a>
<time class="join-date" datetime="2019-04-01T00:00:00Z"></time></section></section>
<div class="profile-stats"><a class="has-icon" href="/alice/films/">1,234 films</a><a class="has-icon" href="/alice/films/reviews/">56 reviews</a><a class="has-icon" href="/alice/lists/">7 lists</a></div></div>`
	info, err := scrape.ParseProfile([]byte(body), "Alice")
	if err != nil {
		t.Fatalf("ParseProfile: %v", err)
	}
	if info.Username != "alice" || info.DisplayName != "Alice Liddell" || info.Bio != "Horror first." {
		t.Fatalf("unexpected header %+v", info)
	}
	if info.Location != "Oxford" || info.Website != "https://alice.example" || info.JoinDate != "2019-04-01" {
		t.Fatalf("unexpected metadata %+v", info)
	}
	if info.ReportedFilmCount != 1234 || info.ReportedReviewCount != 56 || info.ReportedListCount != 7 {
		t.Fatalf("unexpected stats %+v", info)
	}
}

func TestParseProfileFallsBackToUsername(t *testing.T) {
	info, err := scrape.ParseProfile([]byte(`<div id="content"></div>`), "film_buff")
	if err != nil {
		t.Fatalf("ParseProfile: %v", err)
	}
	if info.DisplayName != "Film Buff" {
		t.Fatalf("expected title-cased fallback, got %q", info.DisplayName)
	}
}

func TestParseRating(t *testing.T) {
	cases := map[string]float64{
		"★":      1,
		"½":      0.5,
		"★★★½":   3.5,
		"★★★★★":  5,
		" ★★ ":   2,
		"★★★★★★": 5,
	}
	for text, want := range cases {
		got := scrape.ParseRating(text)
		if got == nil || *got != want {
			t.Fatalf("ParseRating(%q) = %v, want %v", text, got, want)
		}
	}
	if got := scrape.ParseRating(""); got != nil {
		t.Fatalf("expected nil for empty text, got %v", *got)
	}
}
